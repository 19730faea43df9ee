package handlers

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"showvault/config"
	"showvault/models"
	"showvault/services/shows"
	"showvault/utils/filter"
)

// ShowsHandler serves the per-show settings endpoints: the edit form reads
// the aggregate, submits it back form-encoded, and mutates scene
// exceptions through their own add/remove routes.
type ShowsHandler struct {
	Shows   *shows.Service
	Manager *config.Manager
}

func NewShowsHandler(svc *shows.Service, mgr *config.Manager) *ShowsHandler {
	return &ShowsHandler{Shows: svc, Manager: mgr}
}

// Register mounts the show routes on the router.
func (h *ShowsHandler) Register(r *mux.Router) {
	r.HandleFunc("/api/shows", h.ListShows).Methods(http.MethodGet)
	r.HandleFunc("/api/shows", h.CreateShow).Methods(http.MethodPost)
	r.HandleFunc("/api/shows/{showID}", h.RemoveShow).Methods(http.MethodDelete)
	r.HandleFunc("/api/shows/{showID}/settings", h.GetSettings).Methods(http.MethodGet)
	r.HandleFunc("/api/shows/{showID}/settings", h.UpdateSettings).Methods(http.MethodPost)
	r.HandleFunc("/api/shows/{showID}/exceptions", h.AddException).Methods(http.MethodPost)
	r.HandleFunc("/api/shows/{showID}/exceptions", h.RemoveException).Methods(http.MethodDelete)
}

// showSettingsResponse decorates the stored aggregate with the values the
// form actually renders: the globally gated effective subtitles flag and
// whether the season-folders control is locked on.
type showSettingsResponse struct {
	models.ShowSettings
	SubtitlesEffective  bool `json:"subtitlesEffective"`
	SeasonFoldersLocked bool `json:"seasonFoldersLocked"`
}

func (h *ShowsHandler) respond(w http.ResponseWriter, status int, s *models.ShowSettings, policy models.GlobalPolicy) {
	writeJSON(w, status, showSettingsResponse{
		ShowSettings:        *s,
		SubtitlesEffective:  s.EffectiveSubtitles(policy),
		SeasonFoldersLocked: policy.ForceSeasonFolders,
	})
}

func (h *ShowsHandler) ListShows(w http.ResponseWriter, r *http.Request) {
	settings, err := h.Manager.Load()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	policy := settings.Policy()

	all, err := h.Shows.ListShows(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	out := make([]showSettingsResponse, 0, len(all))
	for _, s := range all {
		out = append(out, showSettingsResponse{
			ShowSettings:        *s,
			SubtitlesEffective:  s.EffectiveSubtitles(policy),
			SeasonFoldersLocked: policy.ForceSeasonFolders,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *ShowsHandler) CreateShow(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "malformed form data")
		return
	}

	showID, err := strconv.ParseInt(r.PostForm.Get("show"), 10, 64)
	if err != nil {
		writeFieldError(w, "show", "show id must be an integer")
		return
	}

	settings, err := h.Manager.Load()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	created, err := h.Shows.CreateShow(r.Context(), showID,
		r.PostForm.Get("name"), r.PostForm.Get("location"),
		settings.Library, settings.Policy())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.respond(w, http.StatusCreated, created, settings.Policy())
}

func (h *ShowsHandler) RemoveShow(w http.ResponseWriter, r *http.Request) {
	showID, ok := h.showID(w, r)
	if !ok {
		return
	}

	if err := h.Shows.RemoveShow(r.Context(), showID); err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *ShowsHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	showID, ok := h.showID(w, r)
	if !ok {
		return
	}

	settings, err := h.Manager.Load()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s, err := h.Shows.LoadForShow(r.Context(), showID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.respond(w, http.StatusOK, s, settings.Policy())
}

// UpdateSettings handles the edit-show form submission. The body is
// form-encoded; checkboxes arrive only when checked, so their values derive
// from field presence, never from a default.
func (h *ShowsHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	showID, ok := h.showID(w, r)
	if !ok {
		return
	}

	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "malformed form data")
		return
	}
	form := r.PostForm
	present := func(name string) bool {
		_, ok := form[name]
		return ok
	}

	upd := shows.ShowUpdate{
		Location:                 form.Get("location"),
		SkipDownloaded:           present("skip_downloaded"),
		SubtitlesEnabled:         present("subtitles"),
		SubtitlesUseShowMetadata: present("subtitles_sr_metadata"),
		Paused:                   present("paused"),
		AirByDate:                present("air_by_date"),
		Sports:                   present("sports"),
		DVDOrder:                 present("dvdorder"),
		Anime:                    present("anime"),
		SceneNumbering:           present("scene"),
		SeasonFolders:            present("flatten_folders"),
	}

	var err error
	if upd.InitialQualities, err = parseTiers(form["anyQualities"]); err != nil {
		writeFieldError(w, "anyQualities", err.Error())
		return
	}
	if upd.UpgradeQualities, err = parseTiers(form["bestQualities"]); err != nil {
		writeFieldError(w, "bestQualities", err.Error())
		return
	}

	if present("defaultEpStatus") {
		status, err := models.ParseEpisodeStatus(form.Get("defaultEpStatus"))
		if err != nil {
			writeFieldError(w, "defaultEpStatus", err.Error())
			return
		}
		upd.DefaultEpisodeStatus = &status
	}

	if present("indexerLang") {
		lang := form.Get("indexerLang")
		upd.Language = &lang
	}

	if present("search_delay") {
		delay, err := strconv.Atoi(form.Get("search_delay"))
		if err != nil {
			writeFieldError(w, "search_delay", "search delay must be an integer")
			return
		}
		upd.SearchDelayDays = &delay
	}

	if present("rls_ignore_words") {
		words := filter.ParseWordList(form.Get("rls_ignore_words"))
		upd.IgnoreWords = &words
	}
	if present("rls_require_words") {
		words := filter.ParseWordList(form.Get("rls_require_words"))
		upd.RequireWords = &words
	}

	settings, err := h.Manager.Load()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	updated, err := h.Shows.ApplyUpdate(r.Context(), showID, upd, settings.Policy())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.respond(w, http.StatusOK, updated, settings.Policy())
}

func (h *ShowsHandler) AddException(w http.ResponseWriter, r *http.Request) {
	showID, ok := h.showID(w, r)
	if !ok {
		return
	}

	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "malformed form data")
		return
	}

	updated, err := h.Shows.AddSceneException(r.Context(), showID, r.PostForm.Get("name"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	settings, err := h.Manager.Load()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.respond(w, http.StatusOK, updated, settings.Policy())
}

func (h *ShowsHandler) RemoveException(w http.ResponseWriter, r *http.Request) {
	showID, ok := h.showID(w, r)
	if !ok {
		return
	}

	name := r.URL.Query().Get("name")
	if name == "" {
		writeFieldError(w, "name", "exception name is required")
		return
	}

	updated, err := h.Shows.RemoveSceneException(r.Context(), showID, name)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	settings, err := h.Manager.Load()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.respond(w, http.StatusOK, updated, settings.Policy())
}

func (h *ShowsHandler) showID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["showID"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "show id must be an integer")
		return 0, false
	}
	return id, true
}

func (h *ShowsHandler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shows.ErrShowNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, shows.ErrShowExists):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, shows.ErrInvalidLocation),
		errors.Is(err, shows.ErrUnsupportedLanguage),
		errors.Is(err, shows.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		log.Printf("[shows] request failed: %v", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// parseTiers converts multi-value quality checkbox submissions into tiers.
// An absent group is an empty set, which is valid ("never download").
func parseTiers(values []string) ([]models.QualityTier, error) {
	var tiers []models.QualityTier
	for _, v := range values {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, errors.New("quality values must be integers")
		}
		t := models.QualityTier(n)
		if !t.Valid() {
			return nil, errors.New("unknown quality tier")
		}
		tiers = append(tiers, t)
	}
	return tiers, nil
}

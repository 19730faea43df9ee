package shows

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/afero"

	"showvault/config"
	"showvault/internal/database"
	"showvault/models"
	"showvault/services/events"
	"showvault/utils/filter"
)

var (
	ErrShowNotFound        = errors.New("show not found")
	ErrShowExists          = errors.New("show already exists")
	ErrInvalidLocation     = errors.New("location does not exist or is not writable")
	ErrUnsupportedLanguage = errors.New("language not supported by the indexer")
	ErrValidation          = errors.New("invalid field value")
)

// locationCheckTimeout bounds the filesystem probe so a stalled mount
// cannot hang the update request.
const locationCheckTimeout = 5 * time.Second

// LanguageSource is the indexer collaborator the update path consults.
type LanguageSource interface {
	IsSupported(ctx context.Context, code string) (bool, error)
}

// Service owns the show settings aggregate: load, validated updates, scene
// exception deltas, and settings-changed notifications.
type Service struct {
	repo  *database.ShowRepository
	langs LanguageSource
	bus   *events.Bus
	fs    afero.Fs

	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

// NewService creates the shows service. The afero filesystem is what
// location validation probes; production passes afero.NewOsFs().
func NewService(repo *database.ShowRepository, langs LanguageSource, bus *events.Bus, fs afero.Fs) *Service {
	return &Service{
		repo:  repo,
		langs: langs,
		bus:   bus,
		fs:    fs,
		locks: make(map[int64]*sync.Mutex),
	}
}

// ShowUpdate carries one form submission. Checkbox fields are plain bools
// because an unchecked box is absent from the form, which means false, not
// "no change". Non-checkbox optional fields are pointers: nil means the
// field was not submitted and keeps its stored value. A submitted word list
// replaces the stored one wholesale, empty included.
type ShowUpdate struct {
	Location string

	InitialQualities []models.QualityTier
	UpgradeQualities []models.QualityTier

	DefaultEpisodeStatus *models.EpisodeStatus
	Language             *string
	SearchDelayDays      *int

	SkipDownloaded           bool
	SubtitlesEnabled         bool
	SubtitlesUseShowMetadata bool
	Paused                   bool
	AirByDate                bool
	Sports                   bool
	DVDOrder                 bool
	Anime                    bool
	SceneNumbering           bool
	SeasonFolders            bool

	IgnoreWords  *[]string
	RequireWords *[]string
}

// LoadForShow returns the stored settings for the show.
func (s *Service) LoadForShow(ctx context.Context, showID int64) (*models.ShowSettings, error) {
	cur, err := s.repo.GetShow(ctx, showID)
	if err != nil {
		return nil, err
	}
	if cur == nil {
		return nil, ErrShowNotFound
	}
	return cur, nil
}

// ListShows returns every show in the library.
func (s *Service) ListShows(ctx context.Context) ([]*models.ShowSettings, error) {
	return s.repo.ListShows(ctx)
}

// CreateShow adds a show to the library with defaults copied from the
// global library configuration.
func (s *Service) CreateShow(ctx context.Context, showID int64, name, location string, lib config.LibrarySettings, policy models.GlobalPolicy) (*models.ShowSettings, error) {
	if showID <= 0 {
		return nil, fmt.Errorf("%w: show id must be positive", ErrValidation)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: show name is required", ErrValidation)
	}

	lock := s.showLock(showID)
	lock.Lock()
	defer lock.Unlock()

	existing, err := s.repo.GetShow(ctx, showID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrShowExists
	}

	if err := s.checkLocation(ctx, location); err != nil {
		return nil, err
	}

	status := models.EpisodeStatus(lib.DefaultEpisodeStatus)
	if !status.Valid() {
		status = models.EpisodeStatusWanted
	}
	language := lib.DefaultLanguage
	if language == "" {
		language = "en"
	}

	settings := &models.ShowSettings{
		ShowID:               showID,
		Name:                 name,
		Location:             location,
		Quality:              models.QualityFromComposite(lib.DefaultQuality),
		DefaultEpisodeStatus: status,
		Language:             language,
		SeasonFolders:        models.EffectiveSeasonFolders(true, policy),
		SubtitlesEnabled:     lib.UseSubtitles,
		SearchDelayDays:      lib.DefaultSearchDelayDays,
	}

	if err := s.repo.CreateShow(ctx, settings); err != nil {
		return nil, err
	}

	log.Printf("[shows] added show %d (%s) at %s", showID, name, location)
	return settings, nil
}

// RemoveShow deletes the show and its scene exceptions.
func (s *Service) RemoveShow(ctx context.Context, showID int64) error {
	lock := s.showLock(showID)
	lock.Lock()
	defer lock.Unlock()

	ok, err := s.repo.DeleteShow(ctx, showID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrShowNotFound
	}

	log.Printf("[shows] removed show %d", showID)
	return nil
}

// ApplyUpdate validates one form submission against the stored aggregate
// and persists it. Nothing is saved on any validation failure. An update
// that changes nothing is a no-op and emits no event.
func (s *Service) ApplyUpdate(ctx context.Context, showID int64, upd ShowUpdate, policy models.GlobalPolicy) (*models.ShowSettings, error) {
	lock := s.showLock(showID)
	lock.Lock()
	defer lock.Unlock()

	cur, err := s.repo.GetShow(ctx, showID)
	if err != nil {
		return nil, err
	}
	if cur == nil {
		return nil, ErrShowNotFound
	}

	if err := s.checkLocation(ctx, upd.Location); err != nil {
		return nil, err
	}

	if upd.Language != nil {
		supported, err := s.langs.IsSupported(ctx, *upd.Language)
		if err != nil {
			return nil, fmt.Errorf("check language %q: %w", *upd.Language, err)
		}
		if !supported {
			return nil, fmt.Errorf("%w: %q", ErrUnsupportedLanguage, *upd.Language)
		}
	}

	if upd.SearchDelayDays != nil && *upd.SearchDelayDays < 0 {
		return nil, fmt.Errorf("%w: search delay must be non-negative", ErrValidation)
	}

	next := *cur
	next.Location = upd.Location
	next.Quality = models.Quality{Initial: upd.InitialQualities, Upgrade: upd.UpgradeQualities}
	if upd.DefaultEpisodeStatus != nil {
		next.DefaultEpisodeStatus = *upd.DefaultEpisodeStatus
	}
	if upd.Language != nil {
		next.Language = *upd.Language
	}
	if upd.SearchDelayDays != nil {
		next.SearchDelayDays = *upd.SearchDelayDays
	}
	next.SkipDownloaded = upd.SkipDownloaded
	next.SubtitlesEnabled = upd.SubtitlesEnabled
	next.SubtitlesUseShowMetadata = upd.SubtitlesUseShowMetadata
	next.Paused = upd.Paused
	next.AirByDate = upd.AirByDate
	next.Sports = upd.Sports
	next.DVDOrder = upd.DVDOrder
	next.Anime = upd.Anime
	next.SceneNumbering = upd.SceneNumbering
	next.SeasonFolders = models.EffectiveSeasonFolders(upd.SeasonFolders, policy)
	if upd.IgnoreWords != nil {
		next.IgnoreWords = *upd.IgnoreWords
	}
	if upd.RequireWords != nil {
		next.RequireWords = *upd.RequireWords
	}

	changed := models.DiffFields(cur, &next)
	if len(changed) == 0 {
		return cur, nil
	}

	ok, err := s.repo.UpdateSettings(ctx, &next)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrShowNotFound
	}

	if cur.Paused != next.Paused {
		if next.Paused {
			log.Printf("[shows] show %d paused, searches will stop", showID)
		} else {
			log.Printf("[shows] show %d resumed", showID)
		}
	}

	s.bus.Publish(events.NewSettingsChanged(showID, changed, next.Paused))
	return &next, nil
}

// AddSceneException records one alternate name for the show. Adding a name
// that is already present changes nothing and emits no event.
func (s *Service) AddSceneException(ctx context.Context, showID int64, name string) (*models.ShowSettings, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: exception name is required", ErrValidation)
	}

	lock := s.showLock(showID)
	lock.Lock()
	defer lock.Unlock()

	cur, err := s.repo.GetShow(ctx, showID)
	if err != nil {
		return nil, err
	}
	if cur == nil {
		return nil, ErrShowNotFound
	}

	for _, existing := range cur.SceneExceptions {
		if existing == name {
			return cur, nil
		}
	}

	if err := s.repo.AddSceneException(ctx, showID, name); err != nil {
		return nil, err
	}

	updated, err := s.repo.GetShow(ctx, showID)
	if err != nil {
		return nil, err
	}

	s.bus.Publish(events.NewSettingsChanged(showID, []string{"sceneExceptions"}, updated.Paused))
	return updated, nil
}

// RemoveSceneException deletes one alternate name. Removing an unknown name
// changes nothing and emits no event.
func (s *Service) RemoveSceneException(ctx context.Context, showID int64, name string) (*models.ShowSettings, error) {
	lock := s.showLock(showID)
	lock.Lock()
	defer lock.Unlock()

	cur, err := s.repo.GetShow(ctx, showID)
	if err != nil {
		return nil, err
	}
	if cur == nil {
		return nil, ErrShowNotFound
	}

	present := false
	for _, existing := range cur.SceneExceptions {
		if existing == name {
			present = true
			break
		}
	}
	if !present {
		return cur, nil
	}

	if err := s.repo.RemoveSceneException(ctx, showID, name); err != nil {
		return nil, err
	}

	updated, err := s.repo.GetShow(ctx, showID)
	if err != nil {
		return nil, err
	}

	s.bus.Publish(events.NewSettingsChanged(showID, []string{"sceneExceptions"}, updated.Paused))
	return updated, nil
}

// ClampAllSeasonFolders forces season folders on for every stored show.
// Called when the global force-folders flag turns on.
func (s *Service) ClampAllSeasonFolders(ctx context.Context) (int64, error) {
	n, err := s.repo.ForceSeasonFolders(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		log.Printf("[shows] forced season folders on %d show(s)", n)
	}
	return n, nil
}

// WantsRelease decides whether a located release is of interest to the
// show, mirroring what the search result cache does before snatching: the
// show must not be paused, the release quality must be in the wanted sets,
// the name must match the show (scene exceptions override the canonical
// name), and the ignore/require word lists must pass.
func WantsRelease(settings *models.ShowSettings, releaseName string, tier models.QualityTier) (bool, string) {
	if settings.Paused {
		return false, "show is paused"
	}
	if !settings.Quality.Allows(tier) {
		return false, fmt.Sprintf("quality %s is not wanted", tier)
	}

	names := settings.MatchNames()
	if len(names) > 0 {
		release := normalizeReleaseName(releaseName)
		matched := false
		for _, n := range names {
			if strings.Contains(release, normalizeReleaseName(n)) {
				matched = true
				break
			}
		}
		if !matched {
			return false, "release does not match the show name"
		}
	}

	if rejected, reason := filter.NewReleaseFilter(settings.IgnoreWords, settings.RequireWords).Rejects(releaseName); rejected {
		return false, reason
	}

	return true, ""
}

var releaseSeparators = strings.NewReplacer(".", " ", "_", " ", "-", " ")

// normalizeReleaseName lowercases a name and flattens the separator
// characters release groups use, so "The.Show" matches "The Show".
func normalizeReleaseName(name string) string {
	return releaseSeparators.Replace(strings.ToLower(name))
}

// checkLocation verifies the path is an absolute, existing, writable
// directory, bounded by a timeout so a dead mount fails the request
// instead of hanging it.
func (s *Service) checkLocation(ctx context.Context, path string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("%w: location is required", ErrInvalidLocation)
	}
	if !filepath.IsAbs(path) {
		return fmt.Errorf("%w: %q is not absolute", ErrInvalidLocation, path)
	}

	ctx, cancel := context.WithTimeout(ctx, locationCheckTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- s.probeLocation(path)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("%w: %q check timed out", ErrInvalidLocation, path)
	}
}

func (s *Service) probeLocation(path string) error {
	info, err := s.fs.Stat(path)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%w: %q", ErrInvalidLocation, path)
	}

	probe := filepath.Join(path, ".showvault-write-check")
	f, err := s.fs.Create(probe)
	if err != nil {
		return fmt.Errorf("%w: %q is not writable", ErrInvalidLocation, path)
	}
	f.Close()
	_ = s.fs.Remove(probe)
	return nil
}

func (s *Service) showLock(showID int64) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[showID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[showID] = lock
	}
	return lock
}

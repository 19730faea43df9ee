package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"showvault/config"
	"showvault/services/shows"
)

// SettingsHandler serves the global configuration, including the policy
// flags that gate per-show fields.
type SettingsHandler struct {
	Manager *config.Manager
	Shows   *shows.Service
}

func NewSettingsHandler(m *config.Manager, svc *shows.Service) *SettingsHandler {
	return &SettingsHandler{Manager: m, Shows: svc}
}

// Register mounts the settings routes on the router.
func (h *SettingsHandler) Register(r *mux.Router) {
	r.HandleFunc("/api/settings", h.GetSettings).Methods(http.MethodGet)
	r.HandleFunc("/api/settings", h.PutSettings).Methods(http.MethodPut)
}

func (h *SettingsHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	s, err := h.Manager.Load()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *SettingsHandler) PutSettings(w http.ResponseWriter, r *http.Request) {
	old, err := h.Manager.Load()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	var s config.Settings
	if err := json.NewDecoder(r.Body).Decode(&s); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.Manager.Save(s); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	// Turning the force-folders flag on retroactively clamps every stored
	// show; per-show values never override the global policy.
	if !old.Library.ForceSeasonFolders && s.Library.ForceSeasonFolders && h.Shows != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
		defer cancel()
		if _, err := h.Shows.ClampAllSeasonFolders(ctx); err != nil {
			log.Printf("[settings] failed to clamp season folders: %v", err)
		}
	}

	writeJSON(w, http.StatusOK, s)
}

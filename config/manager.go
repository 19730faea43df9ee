package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"showvault/models"
)

var ErrPathRequired = errors.New("settings path not provided")

// Settings is the global application configuration.
type Settings struct {
	Server   ServerSettings   `json:"server"`
	Database DatabaseSettings `json:"database"`
	Auth     AuthSettings     `json:"auth"`
	Logging  LoggingSettings  `json:"logging"`
	Indexer  IndexerSettings  `json:"indexer"`
	Library  LibrarySettings  `json:"library"`
}

type ServerSettings struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

type DatabaseSettings struct {
	Path string `json:"path"`
}

type AuthSettings struct {
	// APIKey protects the API when non-empty. Empty disables auth.
	APIKey string `json:"apiKey"`
}

type LoggingSettings struct {
	File       string `json:"file"`
	MaxSizeMB  int    `json:"maxSizeMb"`
	MaxBackups int    `json:"maxBackups"`
}

type IndexerSettings struct {
	BaseURL string `json:"baseUrl"`
	APIKey  string `json:"apiKey"`
}

// LibrarySettings holds the defaults copied onto a show when it is added,
// plus the global flags that gate per-show fields.
type LibrarySettings struct {
	RootDir                string `json:"rootDir"`
	DefaultQuality         int64  `json:"defaultQuality"`
	DefaultEpisodeStatus   string `json:"defaultEpisodeStatus"`
	DefaultLanguage        string `json:"defaultLanguage"`
	DefaultSearchDelayDays int    `json:"defaultSearchDelayDays"`
	UseSubtitles           bool   `json:"useSubtitles"`
	ForceSeasonFolders     bool   `json:"forceSeasonFolders"`
}

// Policy returns the snapshot of the global flags that per-show update
// computations take as input.
func (s Settings) Policy() models.GlobalPolicy {
	return models.GlobalPolicy{
		UseSubtitles:       s.Library.UseSubtitles,
		ForceSeasonFolders: s.Library.ForceSeasonFolders,
	}
}

// DefaultSettings returns the configuration used before anything is saved.
func DefaultSettings() Settings {
	return Settings{
		Server:   ServerSettings{Host: "0.0.0.0", Port: 8787},
		Database: DatabaseSettings{Path: "showvault.db"},
		Logging:  LoggingSettings{MaxSizeMB: 20, MaxBackups: 3},
		Library: LibrarySettings{
			DefaultQuality: models.ComposeQuality(
				[]models.QualityTier{models.QualityHDTV, models.QualityHDWebDL},
				nil,
			),
			DefaultEpisodeStatus: string(models.EpisodeStatusWanted),
			DefaultLanguage:      "en",
		},
	}
}

// Manager loads and saves the global settings file.
type Manager struct {
	mu   sync.RWMutex
	path string
}

// NewManager creates a manager persisting settings at the given path.
func NewManager(path string) *Manager {
	return &Manager{path: path}
}

// Load reads the settings file, returning defaults if it does not exist.
func (m *Manager) Load() (Settings, error) {
	if strings.TrimSpace(m.path) == "" {
		return Settings{}, ErrPathRequired
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	file, err := os.Open(m.path)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultSettings(), nil
	}
	if err != nil {
		return Settings{}, fmt.Errorf("open settings: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return Settings{}, fmt.Errorf("read settings: %w", err)
	}
	if len(data) == 0 {
		return DefaultSettings(), nil
	}

	s := DefaultSettings()
	if err := json.Unmarshal(data, &s); err != nil {
		return Settings{}, fmt.Errorf("decode settings: %w", err)
	}
	return s, nil
}

// Save writes the settings file atomically via a temp file rename.
func (m *Manager) Save(s Settings) error {
	if strings.TrimSpace(m.path) == "" {
		return ErrPathRequired
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if dir := filepath.Dir(m.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create settings dir: %w", err)
		}
	}

	tmp := m.path + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create settings temp file: %w", err)
	}

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		file.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("encode settings: %w", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("sync settings: %w", err)
	}

	if err := file.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("close settings temp file: %w", err)
	}

	if err := os.Rename(tmp, m.path); err != nil {
		return fmt.Errorf("replace settings file: %w", err)
	}

	return nil
}

package models

import (
	"fmt"
	"sort"
	"time"
)

// EpisodeStatus is the status assigned to newly discovered future episodes
// of a show.
type EpisodeStatus string

const (
	EpisodeStatusWanted  EpisodeStatus = "wanted"
	EpisodeStatusSkipped EpisodeStatus = "skipped"
	EpisodeStatusIgnored EpisodeStatus = "ignored"
)

// Valid reports whether s is one of the known statuses.
func (s EpisodeStatus) Valid() bool {
	switch s {
	case EpisodeStatusWanted, EpisodeStatusSkipped, EpisodeStatusIgnored:
		return true
	}
	return false
}

// ParseEpisodeStatus converts a form value into an EpisodeStatus.
func ParseEpisodeStatus(v string) (EpisodeStatus, error) {
	s := EpisodeStatus(v)
	if !s.Valid() {
		return "", fmt.Errorf("unknown episode status %q", v)
	}
	return s, nil
}

// GlobalPolicy is a snapshot of the global flags that gate per-show fields.
// It is passed into update computations as a value so the override rules
// stay pure functions of their inputs.
type GlobalPolicy struct {
	UseSubtitles       bool `json:"useSubtitles"`
	ForceSeasonFolders bool `json:"forceSeasonFolders"`
}

// ShowSettings is the editable per-show configuration record. One exists
// per show in the library, keyed by the indexer-assigned show ID.
type ShowSettings struct {
	ShowID int64  `json:"showId"`
	Name   string `json:"name"`

	Location             string        `json:"location"`
	Quality              Quality       `json:"quality"`
	DefaultEpisodeStatus EpisodeStatus `json:"defaultEpisodeStatus"`
	Language             string        `json:"language"`

	SkipDownloaded           bool `json:"skipDownloaded"`
	SubtitlesEnabled         bool `json:"subtitlesEnabled"`
	SubtitlesUseShowMetadata bool `json:"subtitlesUseShowMetadata"`
	Paused                   bool `json:"paused"`

	AirByDate      bool `json:"airByDate"`
	Sports         bool `json:"sports"`
	DVDOrder       bool `json:"dvdOrder"`
	Anime          bool `json:"anime"`
	SceneNumbering bool `json:"sceneNumbering"`
	SeasonFolders  bool `json:"seasonFolders"`

	IgnoreWords     []string `json:"ignoreWords"`
	RequireWords    []string `json:"requireWords"`
	SceneExceptions []string `json:"sceneExceptions"`

	SearchDelayDays int `json:"searchDelayDays"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// EffectiveSubtitles returns whether subtitles are actually fetched for the
// show: the stored flag is gated by the global subtitles switch.
func (s *ShowSettings) EffectiveSubtitles(policy GlobalPolicy) bool {
	return s.SubtitlesEnabled && policy.UseSubtitles
}

// EffectiveSeasonFolders computes the stored season-folders value from the
// requested one: the global force-folders flag wins, silently.
func EffectiveSeasonFolders(requested bool, policy GlobalPolicy) bool {
	return requested || policy.ForceSeasonFolders
}

// MatchNames returns the names used to match the show against release
// titles. Scene exceptions override the canonical name when any exist.
func (s *ShowSettings) MatchNames() []string {
	if len(s.SceneExceptions) > 0 {
		out := make([]string, len(s.SceneExceptions))
		copy(out, s.SceneExceptions)
		return out
	}
	if s.Name == "" {
		return nil
	}
	return []string{s.Name}
}

// DiffFields returns the sorted names of the fields that differ between two
// settings records. Timestamps and the show identity are not compared.
func DiffFields(a, b *ShowSettings) []string {
	var changed []string
	add := func(name string, differs bool) {
		if differs {
			changed = append(changed, name)
		}
	}

	add("location", a.Location != b.Location)
	add("quality", a.Quality.Composite() != b.Quality.Composite())
	add("defaultEpisodeStatus", a.DefaultEpisodeStatus != b.DefaultEpisodeStatus)
	add("language", a.Language != b.Language)
	add("skipDownloaded", a.SkipDownloaded != b.SkipDownloaded)
	add("subtitlesEnabled", a.SubtitlesEnabled != b.SubtitlesEnabled)
	add("subtitlesUseShowMetadata", a.SubtitlesUseShowMetadata != b.SubtitlesUseShowMetadata)
	add("paused", a.Paused != b.Paused)
	add("airByDate", a.AirByDate != b.AirByDate)
	add("sports", a.Sports != b.Sports)
	add("dvdOrder", a.DVDOrder != b.DVDOrder)
	add("anime", a.Anime != b.Anime)
	add("sceneNumbering", a.SceneNumbering != b.SceneNumbering)
	add("seasonFolders", a.SeasonFolders != b.SeasonFolders)
	add("ignoreWords", !equalStrings(a.IgnoreWords, b.IgnoreWords))
	add("requireWords", !equalStrings(a.RequireWords, b.RequireWords))
	add("sceneExceptions", !equalStrings(a.SceneExceptions, b.SceneExceptions))
	add("searchDelayDays", a.SearchDelayDays != b.SearchDelayDays)

	sort.Strings(changed)
	return changed
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

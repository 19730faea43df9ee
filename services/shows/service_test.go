package shows

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"

	"showvault/config"
	"showvault/internal/database"
	"showvault/models"
	"showvault/services/events"
)

type fakeLangs struct {
	supported []string
	err       error
}

func (f *fakeLangs) IsSupported(_ context.Context, code string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	for _, l := range f.supported {
		if l == code {
			return true, nil
		}
	}
	return false, nil
}

type testEnv struct {
	svc    *Service
	repo   *database.ShowRepository
	fs     afero.Fs
	bus    *events.Bus
	events chan events.SettingsChanged
}

func setupTestService(t *testing.T) *testEnv {
	t.Helper()

	db, err := database.NewDB(database.Config{DatabasePath: filepath.Join(t.TempDir(), "test.db")})
	if err != nil {
		t.Fatalf("create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	repo := database.NewShowRepository(db.Connection())
	bus := events.NewBus()
	fs := afero.NewMemMapFs()
	if err := fs.MkdirAll("/tv/test-show", 0o755); err != nil {
		t.Fatalf("prepare filesystem: %v", err)
	}

	svc := NewService(repo, &fakeLangs{supported: []string{"en", "de", "ja"}}, bus, fs)

	ch := bus.Subscribe()
	t.Cleanup(func() { bus.Unsubscribe(ch) })

	return &testEnv{svc: svc, repo: repo, fs: fs, bus: bus, events: ch}
}

func (e *testEnv) mustCreateShow(t *testing.T, showID int64) *models.ShowSettings {
	t.Helper()
	lib := config.LibrarySettings{
		DefaultQuality:       models.ComposeQuality([]models.QualityTier{models.QualityHDTV}, nil),
		DefaultEpisodeStatus: "wanted",
	}
	s, err := e.svc.CreateShow(context.Background(), showID, "Test Show", "/tv/test-show", lib, models.GlobalPolicy{})
	if err != nil {
		t.Fatalf("create show: %v", err)
	}
	return s
}

func (e *testEnv) nextEvent(t *testing.T) *events.SettingsChanged {
	t.Helper()
	select {
	case ev := <-e.events:
		return &ev
	case <-time.After(100 * time.Millisecond):
		return nil
	}
}

func baseUpdate() ShowUpdate {
	return ShowUpdate{
		Location:         "/tv/test-show",
		InitialQualities: []models.QualityTier{models.QualityHDTV},
	}
}

func TestApplyUpdate_PersistsFields(t *testing.T) {
	env := setupTestService(t)
	env.mustCreateShow(t, 1)

	lang := "de"
	delay := 3
	upd := baseUpdate()
	upd.UpgradeQualities = []models.QualityTier{models.QualityFullHDBluray}
	upd.Language = &lang
	upd.SearchDelayDays = &delay
	upd.Anime = true
	upd.SceneNumbering = true
	upd.IgnoreWords = &[]string{"cam", "ts"}
	upd.RequireWords = &[]string{"proper"}

	got, err := env.svc.ApplyUpdate(context.Background(), 1, upd, models.GlobalPolicy{})
	if err != nil {
		t.Fatalf("apply update: %v", err)
	}

	if got.Language != "de" || got.SearchDelayDays != 3 || !got.Anime || !got.SceneNumbering {
		t.Fatalf("fields not applied: %+v", got)
	}
	if len(got.Quality.Upgrade) != 1 || got.Quality.Upgrade[0] != models.QualityFullHDBluray {
		t.Fatalf("quality not recomposed: %+v", got.Quality)
	}

	stored, err := env.svc.LoadForShow(context.Background(), 1)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if len(stored.IgnoreWords) != 2 || stored.IgnoreWords[0] != "cam" {
		t.Fatalf("ignore words not persisted: %v", stored.IgnoreWords)
	}

	if ev := env.nextEvent(t); ev == nil {
		t.Fatal("expected a settings-changed event")
	}
}

func TestApplyUpdate_NilWordListsKeepStoredValues(t *testing.T) {
	env := setupTestService(t)
	env.mustCreateShow(t, 1)

	upd := baseUpdate()
	upd.IgnoreWords = &[]string{"cam", "telesync"}
	upd.RequireWords = &[]string{"proper"}
	if _, err := env.svc.ApplyUpdate(context.Background(), 1, upd, models.GlobalPolicy{}); err != nil {
		t.Fatalf("seed word lists: %v", err)
	}

	// A later submission without the word-list fields must not touch them.
	upd = baseUpdate()
	upd.Paused = true
	got, err := env.svc.ApplyUpdate(context.Background(), 1, upd, models.GlobalPolicy{})
	if err != nil {
		t.Fatalf("apply update: %v", err)
	}
	if len(got.IgnoreWords) != 2 || got.IgnoreWords[1] != "telesync" {
		t.Fatalf("unsubmitted ignore words must be kept, got %v", got.IgnoreWords)
	}
	if len(got.RequireWords) != 1 || got.RequireWords[0] != "proper" {
		t.Fatalf("unsubmitted require words must be kept, got %v", got.RequireWords)
	}

	// An explicitly empty submission still clears them.
	upd = baseUpdate()
	upd.Paused = true
	upd.IgnoreWords = &[]string{}
	upd.RequireWords = &[]string{}
	got, err = env.svc.ApplyUpdate(context.Background(), 1, upd, models.GlobalPolicy{})
	if err != nil {
		t.Fatalf("clear word lists: %v", err)
	}
	if len(got.IgnoreWords) != 0 || len(got.RequireWords) != 0 {
		t.Fatalf("submitted empty lists must clear, got %v / %v", got.IgnoreWords, got.RequireWords)
	}
}

func TestApplyUpdate_UnknownShow(t *testing.T) {
	env := setupTestService(t)

	_, err := env.svc.ApplyUpdate(context.Background(), 999, baseUpdate(), models.GlobalPolicy{})
	if !errors.Is(err, ErrShowNotFound) {
		t.Fatalf("expected ErrShowNotFound, got %v", err)
	}
}

func TestApplyUpdate_InvalidLocationPersistsNothing(t *testing.T) {
	env := setupTestService(t)
	env.mustCreateShow(t, 1)

	upd := baseUpdate()
	upd.Location = "/nonexistent/path"
	upd.Paused = true

	_, err := env.svc.ApplyUpdate(context.Background(), 1, upd, models.GlobalPolicy{})
	if !errors.Is(err, ErrInvalidLocation) {
		t.Fatalf("expected ErrInvalidLocation, got %v", err)
	}

	stored, _ := env.svc.LoadForShow(context.Background(), 1)
	if stored.Paused {
		t.Error("no field may be persisted when validation fails")
	}
	if ev := env.nextEvent(t); ev != nil {
		t.Errorf("no event may be emitted on failure, got %+v", ev)
	}
}

func TestApplyUpdate_RelativeLocationRejected(t *testing.T) {
	env := setupTestService(t)
	env.mustCreateShow(t, 1)

	upd := baseUpdate()
	upd.Location = "tv/test-show"

	if _, err := env.svc.ApplyUpdate(context.Background(), 1, upd, models.GlobalPolicy{}); !errors.Is(err, ErrInvalidLocation) {
		t.Fatalf("expected ErrInvalidLocation, got %v", err)
	}
}

func TestApplyUpdate_UnsupportedLanguage(t *testing.T) {
	env := setupTestService(t)
	env.mustCreateShow(t, 1)

	lang := "xx"
	upd := baseUpdate()
	upd.Language = &lang

	if _, err := env.svc.ApplyUpdate(context.Background(), 1, upd, models.GlobalPolicy{}); !errors.Is(err, ErrUnsupportedLanguage) {
		t.Fatalf("expected ErrUnsupportedLanguage, got %v", err)
	}
}

func TestApplyUpdate_NegativeSearchDelay(t *testing.T) {
	env := setupTestService(t)
	env.mustCreateShow(t, 1)

	delay := -1
	upd := baseUpdate()
	upd.SearchDelayDays = &delay

	if _, err := env.svc.ApplyUpdate(context.Background(), 1, upd, models.GlobalPolicy{}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestApplyUpdate_ForcedSeasonFoldersClamp(t *testing.T) {
	env := setupTestService(t)
	env.mustCreateShow(t, 1)

	// Checkbox unset, but the global flag forces folders on.
	upd := baseUpdate()
	upd.SeasonFolders = false

	got, err := env.svc.ApplyUpdate(context.Background(), 1, upd, models.GlobalPolicy{ForceSeasonFolders: true})
	if err != nil {
		t.Fatalf("apply update: %v", err)
	}
	if !got.SeasonFolders {
		t.Error("global force-folders must clamp the stored value to true")
	}
}

func TestApplyUpdate_IdempotentSecondUpdateEmitsNoEvent(t *testing.T) {
	env := setupTestService(t)
	env.mustCreateShow(t, 1)

	upd := baseUpdate()
	upd.Paused = true

	first, err := env.svc.ApplyUpdate(context.Background(), 1, upd, models.GlobalPolicy{})
	if err != nil {
		t.Fatalf("first update: %v", err)
	}
	if ev := env.nextEvent(t); ev == nil {
		t.Fatal("first update must emit an event")
	}

	second, err := env.svc.ApplyUpdate(context.Background(), 1, upd, models.GlobalPolicy{})
	if err != nil {
		t.Fatalf("second update: %v", err)
	}
	if len(models.DiffFields(first, second)) != 0 {
		t.Fatalf("second update changed the aggregate: %v", models.DiffFields(first, second))
	}
	if ev := env.nextEvent(t); ev != nil {
		t.Errorf("identical update must not emit an event, got %+v", ev)
	}
}

func TestApplyUpdate_PauseTransitionEmitsPausedEvent(t *testing.T) {
	env := setupTestService(t)
	env.mustCreateShow(t, 1)

	upd := baseUpdate()
	upd.Paused = true

	got, err := env.svc.ApplyUpdate(context.Background(), 1, upd, models.GlobalPolicy{})
	if err != nil {
		t.Fatalf("apply update: %v", err)
	}
	if !got.Paused {
		t.Fatal("paused must be stored")
	}

	ev := env.nextEvent(t)
	if ev == nil {
		t.Fatal("pause transition must emit an event")
	}
	if !ev.Paused || !ev.Changed("paused") {
		t.Fatalf("event must record the pause: %+v", ev)
	}
}

func TestSceneExceptions_AddRemove(t *testing.T) {
	env := setupTestService(t)
	env.mustCreateShow(t, 1)

	got, err := env.svc.AddSceneException(context.Background(), 1, "Alt Name")
	if err != nil {
		t.Fatalf("add exception: %v", err)
	}
	if len(got.SceneExceptions) != 1 || got.SceneExceptions[0] != "Alt Name" {
		t.Fatalf("exception not stored: %v", got.SceneExceptions)
	}
	if ev := env.nextEvent(t); ev == nil || !ev.Changed("sceneExceptions") {
		t.Fatal("add must emit a sceneExceptions event")
	}

	// Duplicate add changes nothing.
	if _, err := env.svc.AddSceneException(context.Background(), 1, "Alt Name"); err != nil {
		t.Fatalf("duplicate add: %v", err)
	}
	if ev := env.nextEvent(t); ev != nil {
		t.Errorf("duplicate add must not emit an event, got %+v", ev)
	}

	got, err = env.svc.RemoveSceneException(context.Background(), 1, "Alt Name")
	if err != nil {
		t.Fatalf("remove exception: %v", err)
	}
	if len(got.SceneExceptions) != 0 {
		t.Fatalf("exception not removed: %v", got.SceneExceptions)
	}
	if ev := env.nextEvent(t); ev == nil {
		t.Fatal("remove must emit an event")
	}

	// Removing an unknown name changes nothing.
	if _, err := env.svc.RemoveSceneException(context.Background(), 1, "Gone"); err != nil {
		t.Fatalf("remove unknown: %v", err)
	}
	if ev := env.nextEvent(t); ev != nil {
		t.Errorf("removing an unknown name must not emit an event, got %+v", ev)
	}
}

func TestCreateShow_UsesLibraryDefaultLanguage(t *testing.T) {
	env := setupTestService(t)

	lib := config.LibrarySettings{
		DefaultEpisodeStatus: "wanted",
		DefaultLanguage:      "de",
	}
	got, err := env.svc.CreateShow(context.Background(), 1, "Test Show", "/tv/test-show", lib, models.GlobalPolicy{})
	if err != nil {
		t.Fatalf("create show: %v", err)
	}
	if got.Language != "de" {
		t.Fatalf("library default language not applied, got %q", got.Language)
	}

	// An unset default falls back to english.
	got, err = env.svc.CreateShow(context.Background(), 2, "Other Show", "/tv/test-show", config.LibrarySettings{}, models.GlobalPolicy{})
	if err != nil {
		t.Fatalf("create show: %v", err)
	}
	if got.Language != "en" {
		t.Fatalf("unset default must fall back to en, got %q", got.Language)
	}
}

func TestCreateShow_DuplicateRejected(t *testing.T) {
	env := setupTestService(t)
	env.mustCreateShow(t, 1)

	lib := config.LibrarySettings{DefaultEpisodeStatus: "wanted"}
	_, err := env.svc.CreateShow(context.Background(), 1, "Test Show", "/tv/test-show", lib, models.GlobalPolicy{})
	if !errors.Is(err, ErrShowExists) {
		t.Fatalf("expected ErrShowExists, got %v", err)
	}
}

func TestRemoveShow(t *testing.T) {
	env := setupTestService(t)
	env.mustCreateShow(t, 1)

	if err := env.svc.RemoveShow(context.Background(), 1); err != nil {
		t.Fatalf("remove show: %v", err)
	}
	if _, err := env.svc.LoadForShow(context.Background(), 1); !errors.Is(err, ErrShowNotFound) {
		t.Fatalf("expected ErrShowNotFound after removal, got %v", err)
	}
	if err := env.svc.RemoveShow(context.Background(), 1); !errors.Is(err, ErrShowNotFound) {
		t.Fatalf("expected ErrShowNotFound on double remove, got %v", err)
	}
}

func TestWantsRelease(t *testing.T) {
	settings := &models.ShowSettings{
		Name: "The Show",
		Quality: models.Quality{
			Initial: []models.QualityTier{models.QualityHDTV},
			Upgrade: []models.QualityTier{models.QualityFullHDBluray},
		},
		IgnoreWords:  []string{"cam"},
		RequireWords: nil,
	}

	tests := []struct {
		name    string
		mutate  func(s *models.ShowSettings)
		release string
		tier    models.QualityTier
		want    bool
	}{
		{"wanted initial tier", nil, "The.Show.S01E01.HDTV.x264", models.QualityHDTV, true},
		{"wanted upgrade tier", nil, "The.Show.S01E01.1080p.BluRay", models.QualityFullHDBluray, true},
		{"unwanted tier", nil, "The.Show.S01E01.720p.WEB", models.QualityHDWebDL, false},
		{"paused show", func(s *models.ShowSettings) { s.Paused = true }, "The.Show.S01E01.HDTV", models.QualityHDTV, false},
		{"ignored word", nil, "The.Show.S01E01.CAM.HDTV", models.QualityHDTV, false},
		{"name mismatch", nil, "Other.Show.S01E01.HDTV", models.QualityHDTV, false},
		{
			"scene exception replaces canonical name",
			func(s *models.ShowSettings) { s.SceneExceptions = []string{"Totally Different"} },
			"The.Show.S01E01.HDTV", models.QualityHDTV, false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := *settings
			s.SceneExceptions = nil
			if tt.mutate != nil {
				tt.mutate(&s)
			}
			got, reason := WantsRelease(&s, tt.release, tt.tier)
			if got != tt.want {
				t.Errorf("WantsRelease(%q) = %v (%s), want %v", tt.release, got, reason, tt.want)
			}
		})
	}
}

func TestWantsRelease_SceneExceptionMatches(t *testing.T) {
	s := &models.ShowSettings{
		Name:            "The Show",
		SceneExceptions: []string{"Der Serie"},
		Quality:         models.Quality{Initial: []models.QualityTier{models.QualityHDTV}},
	}

	// The canonical name no longer matches; the exception does.
	if ok, _ := WantsRelease(s, "The.Show.S01E01.HDTV", models.QualityHDTV); ok {
		t.Error("canonical name must be overridden by exceptions")
	}
	if ok, reason := WantsRelease(s, "Der.Serie.S01E01.HDTV", models.QualityHDTV); !ok {
		t.Errorf("exception must match: %s", reason)
	}
}

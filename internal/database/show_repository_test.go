package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"showvault/models"
)

// setupTestShowRepo creates a test database and show repository.
func setupTestShowRepo(t *testing.T) *ShowRepository {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := NewDB(Config{DatabasePath: dbPath})
	require.NoError(t, err, "create test database")
	t.Cleanup(func() { db.Close() })

	return NewShowRepository(db.Connection())
}

func sampleShow(id int64) *models.ShowSettings {
	return &models.ShowSettings{
		ShowID:               id,
		Name:                 "Test Show",
		Location:             "/tv/test-show",
		Quality:              models.Quality{Initial: []models.QualityTier{models.QualityHDTV}},
		DefaultEpisodeStatus: models.EpisodeStatusWanted,
		Language:             "en",
		SeasonFolders:        true,
		IgnoreWords:          []string{"cam"},
		RequireWords:         []string{"proper"},
		SceneExceptions:      []string{"Alt Name"},
		SearchDelayDays:      2,
	}
}

func TestShowRepository_CreateAndGet(t *testing.T) {
	repo := setupTestShowRepo(t)
	ctx := context.Background()

	s := sampleShow(101)
	require.NoError(t, repo.CreateShow(ctx, s))
	require.False(t, s.CreatedAt.IsZero(), "CreatedAt must be set on insert")

	got, err := repo.GetShow(ctx, 101)
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, "Test Show", got.Name)
	assert.Equal(t, "/tv/test-show", got.Location)
	assert.Equal(t, []models.QualityTier{models.QualityHDTV}, got.Quality.Initial)
	assert.Empty(t, got.Quality.Upgrade)
	assert.Equal(t, models.EpisodeStatusWanted, got.DefaultEpisodeStatus)
	assert.Equal(t, []string{"cam"}, got.IgnoreWords)
	assert.Equal(t, []string{"proper"}, got.RequireWords)
	assert.Equal(t, []string{"Alt Name"}, got.SceneExceptions)
	assert.Equal(t, 2, got.SearchDelayDays)
	assert.True(t, got.SeasonFolders)
}

func TestShowRepository_GetUnknownShow(t *testing.T) {
	repo := setupTestShowRepo(t)

	got, err := repo.GetShow(context.Background(), 999)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestShowRepository_UpdateSettings(t *testing.T) {
	repo := setupTestShowRepo(t)
	ctx := context.Background()

	s := sampleShow(102)
	require.NoError(t, repo.CreateShow(ctx, s))

	s.Location = "/tv/moved"
	s.Paused = true
	s.Quality.Upgrade = []models.QualityTier{models.QualityFullHDBluray}
	s.IgnoreWords = nil
	s.SearchDelayDays = 0

	ok, err := repo.UpdateSettings(ctx, s)
	require.NoError(t, err)
	require.True(t, ok)

	got, err := repo.GetShow(ctx, 102)
	require.NoError(t, err)
	assert.Equal(t, "/tv/moved", got.Location)
	assert.True(t, got.Paused)
	assert.Equal(t, []models.QualityTier{models.QualityFullHDBluray}, got.Quality.Upgrade)
	assert.Empty(t, got.IgnoreWords)
	// Scene exceptions are untouched by settings updates.
	assert.Equal(t, []string{"Alt Name"}, got.SceneExceptions)
}

func TestShowRepository_UpdateUnknownShow(t *testing.T) {
	repo := setupTestShowRepo(t)

	ok, err := repo.UpdateSettings(context.Background(), sampleShow(404))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestShowRepository_DeleteCascadesExceptions(t *testing.T) {
	repo := setupTestShowRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.CreateShow(ctx, sampleShow(103)))

	ok, err := repo.DeleteShow(ctx, 103)
	require.NoError(t, err)
	require.True(t, ok)

	got, err := repo.GetShow(ctx, 103)
	require.NoError(t, err)
	assert.Nil(t, got)

	// Re-adding the show must not resurrect old exceptions.
	fresh := sampleShow(103)
	fresh.SceneExceptions = nil
	require.NoError(t, repo.CreateShow(ctx, fresh))

	got, err = repo.GetShow(ctx, 103)
	require.NoError(t, err)
	assert.Empty(t, got.SceneExceptions)
}

func TestShowRepository_SceneExceptions(t *testing.T) {
	repo := setupTestShowRepo(t)
	ctx := context.Background()

	s := sampleShow(104)
	s.SceneExceptions = nil
	require.NoError(t, repo.CreateShow(ctx, s))

	require.NoError(t, repo.AddSceneException(ctx, 104, "Name B"))
	require.NoError(t, repo.AddSceneException(ctx, 104, "Name A"))
	// Duplicate add is a no-op.
	require.NoError(t, repo.AddSceneException(ctx, 104, "Name A"))

	got, err := repo.GetShow(ctx, 104)
	require.NoError(t, err)
	assert.Equal(t, []string{"Name A", "Name B"}, got.SceneExceptions)

	require.NoError(t, repo.RemoveSceneException(ctx, 104, "Name A"))

	got, err = repo.GetShow(ctx, 104)
	require.NoError(t, err)
	assert.Equal(t, []string{"Name B"}, got.SceneExceptions)
}

func TestShowRepository_ForceSeasonFolders(t *testing.T) {
	repo := setupTestShowRepo(t)
	ctx := context.Background()

	flat := sampleShow(105)
	flat.SeasonFolders = false
	require.NoError(t, repo.CreateShow(ctx, flat))

	foldered := sampleShow(106)
	require.NoError(t, repo.CreateShow(ctx, foldered))

	n, err := repo.ForceSeasonFolders(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "only flat shows should be updated")

	got, err := repo.GetShow(ctx, 105)
	require.NoError(t, err)
	assert.True(t, got.SeasonFolders)
}

func TestShowRepository_ListShows(t *testing.T) {
	repo := setupTestShowRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.CreateShow(ctx, sampleShow(202)))
	require.NoError(t, repo.CreateShow(ctx, sampleShow(201)))

	all, err := repo.ListShows(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, int64(201), all[0].ShowID, "shows are ordered by ID")
	assert.Equal(t, int64(202), all[1].ShowID)
}

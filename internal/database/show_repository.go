package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"showvault/models"
	"showvault/utils/filter"
)

// ShowRepository persists per-show settings and scene exceptions.
type ShowRepository struct {
	db *sql.DB
}

// NewShowRepository creates a ShowRepository using the given connection.
func NewShowRepository(db *sql.DB) *ShowRepository {
	return &ShowRepository{db: db}
}

const showColumns = `show_id, name, location, quality, default_ep_status, language,
	skip_downloaded, subtitles, subtitles_sr_metadata, paused,
	air_by_date, sports, dvd_order, anime, scene_numbering, season_folders,
	ignore_words, require_words, search_delay, created_at, updated_at`

// CreateShow inserts a new show record and its scene exceptions. The
// CreatedAt/UpdatedAt fields are set on the passed struct.
func (r *ShowRepository) CreateShow(ctx context.Context, s *models.ShowSettings) error {
	now := time.Now().UTC()
	s.CreatedAt = now
	s.UpdatedAt = now

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create show: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `INSERT INTO shows (`+showColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ShowID, s.Name, s.Location, s.Quality.Composite(), string(s.DefaultEpisodeStatus), s.Language,
		s.SkipDownloaded, s.SubtitlesEnabled, s.SubtitlesUseShowMetadata, s.Paused,
		s.AirByDate, s.Sports, s.DVDOrder, s.Anime, s.SceneNumbering, s.SeasonFolders,
		filter.JoinWordList(s.IgnoreWords), filter.JoinWordList(s.RequireWords), s.SearchDelayDays,
		s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert show %d: %w", s.ShowID, err)
	}

	for _, name := range s.SceneExceptions {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO scene_exceptions (show_id, name, created_at) VALUES (?, ?, ?)`,
			s.ShowID, name, now,
		); err != nil {
			return fmt.Errorf("insert scene exception %q: %w", name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create show: %w", err)
	}
	return nil
}

// GetShow returns the show's settings, or nil if the show is unknown.
func (r *ShowRepository) GetShow(ctx context.Context, showID int64) (*models.ShowSettings, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+showColumns+` FROM shows WHERE show_id = ?`, showID)

	s, err := scanShow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select show %d: %w", showID, err)
	}

	if err := r.loadExceptions(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// ListShows returns every show's settings, ordered by show ID.
func (r *ShowRepository) ListShows(ctx context.Context) ([]*models.ShowSettings, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+showColumns+` FROM shows ORDER BY show_id`)
	if err != nil {
		return nil, fmt.Errorf("list shows: %w", err)
	}
	defer rows.Close()

	var shows []*models.ShowSettings
	for rows.Next() {
		s, err := scanShow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan show: %w", err)
		}
		shows = append(shows, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate shows: %w", err)
	}

	for _, s := range shows {
		if err := r.loadExceptions(ctx, s); err != nil {
			return nil, err
		}
	}
	return shows, nil
}

// UpdateSettings replaces the stored settings row inside one transaction.
// Scene exceptions are not touched here; they change through their own
// add/remove operations. Returns false if the show is unknown.
func (r *ShowRepository) UpdateSettings(ctx context.Context, s *models.ShowSettings) (bool, error) {
	s.UpdatedAt = time.Now().UTC()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin update show: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `UPDATE shows SET
		name = ?, location = ?, quality = ?, default_ep_status = ?, language = ?,
		skip_downloaded = ?, subtitles = ?, subtitles_sr_metadata = ?, paused = ?,
		air_by_date = ?, sports = ?, dvd_order = ?, anime = ?, scene_numbering = ?, season_folders = ?,
		ignore_words = ?, require_words = ?, search_delay = ?, updated_at = ?
		WHERE show_id = ?`,
		s.Name, s.Location, s.Quality.Composite(), string(s.DefaultEpisodeStatus), s.Language,
		s.SkipDownloaded, s.SubtitlesEnabled, s.SubtitlesUseShowMetadata, s.Paused,
		s.AirByDate, s.Sports, s.DVDOrder, s.Anime, s.SceneNumbering, s.SeasonFolders,
		filter.JoinWordList(s.IgnoreWords), filter.JoinWordList(s.RequireWords), s.SearchDelayDays,
		s.UpdatedAt, s.ShowID,
	)
	if err != nil {
		return false, fmt.Errorf("update show %d: %w", s.ShowID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update show %d rows: %w", s.ShowID, err)
	}
	if n == 0 {
		return false, nil
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit update show: %w", err)
	}
	return true, nil
}

// DeleteShow removes the show and, via the foreign key, its scene
// exceptions. Returns false if the show is unknown.
func (r *ShowRepository) DeleteShow(ctx context.Context, showID int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM shows WHERE show_id = ?`, showID)
	if err != nil {
		return false, fmt.Errorf("delete show %d: %w", showID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete show %d rows: %w", showID, err)
	}
	return n > 0, nil
}

// AddSceneException records an alternate name for the show. Adding a name
// that already exists is a no-op.
func (r *ShowRepository) AddSceneException(ctx context.Context, showID int64, name string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO scene_exceptions (show_id, name, created_at) VALUES (?, ?, ?)`,
		showID, name, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("add scene exception %q for show %d: %w", name, showID, err)
	}
	return nil
}

// RemoveSceneException deletes one alternate name for the show.
func (r *ShowRepository) RemoveSceneException(ctx context.Context, showID int64, name string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM scene_exceptions WHERE show_id = ? AND name = ?`,
		showID, name,
	)
	if err != nil {
		return fmt.Errorf("remove scene exception %q for show %d: %w", name, showID, err)
	}
	return nil
}

// ForceSeasonFolders sets season_folders on every stored show. Used when
// the global force-folders flag turns on.
func (r *ShowRepository) ForceSeasonFolders(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE shows SET season_folders = 1, updated_at = ? WHERE season_folders = 0`,
		time.Now().UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("force season folders: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("force season folders rows: %w", err)
	}
	return n, nil
}

func (r *ShowRepository) loadExceptions(ctx context.Context, s *models.ShowSettings) error {
	rows, err := r.db.QueryContext(ctx,
		`SELECT name FROM scene_exceptions WHERE show_id = ? ORDER BY name`, s.ShowID)
	if err != nil {
		return fmt.Errorf("list scene exceptions for show %d: %w", s.ShowID, err)
	}
	defer rows.Close()

	s.SceneExceptions = nil
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return fmt.Errorf("scan scene exception: %w", err)
		}
		s.SceneExceptions = append(s.SceneExceptions, name)
	}
	return rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanShow(row rowScanner) (*models.ShowSettings, error) {
	var (
		s         models.ShowSettings
		composite int64
		status    string
		ignore    string
		require   string
	)
	err := row.Scan(
		&s.ShowID, &s.Name, &s.Location, &composite, &status, &s.Language,
		&s.SkipDownloaded, &s.SubtitlesEnabled, &s.SubtitlesUseShowMetadata, &s.Paused,
		&s.AirByDate, &s.Sports, &s.DVDOrder, &s.Anime, &s.SceneNumbering, &s.SeasonFolders,
		&ignore, &require, &s.SearchDelayDays, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	s.Quality = models.QualityFromComposite(composite)
	s.DefaultEpisodeStatus = models.EpisodeStatus(status)
	s.IgnoreWords = filter.ParseWordList(ignore)
	s.RequireWords = filter.ParseWordList(require)
	return &s, nil
}

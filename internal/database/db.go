package database

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

var ErrDatabasePathRequired = errors.New("database path not provided")

// Config holds database construction options.
type Config struct {
	DatabasePath string
}

// DB wraps the sqlite connection used by the repositories.
type DB struct {
	conn *sql.DB
}

// NewDB opens (creating if needed) the sqlite database and applies all
// pending schema migrations.
func NewDB(cfg Config) (*DB, error) {
	if strings.TrimSpace(cfg.DatabasePath) == "" {
		return nil, ErrDatabasePathRequired
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on",
		filepath.ToSlash(cfg.DatabasePath))
	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := migrate(conn); err != nil {
		conn.Close()
		return nil, err
	}

	return &DB{conn: conn}, nil
}

func migrate(conn *sql.DB) error {
	goose.SetBaseFS(migrationFS)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set migration dialect: %w", err)
	}
	if err := goose.Up(conn, "migrations"); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// Connection exposes the underlying connection for repositories.
func (d *DB) Connection() *sql.DB {
	return d.conn
}

// Close closes the underlying connection.
func (d *DB) Close() error {
	return d.conn.Close()
}

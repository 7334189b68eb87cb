package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	contractx "github.com/JRealValdes/jarvis/agent/contract"
	"github.com/JRealValdes/jarvis/agent/identity"
)

type SQLiteConfig struct {
	Path  string `envconfig:"PATH" default:"data/users.db"`
	Debug bool   `envconfig:"DEBUG" default:"false"`
}

// SQLiteStore implements Store on a local SQLite file.
type SQLiteStore struct {
	db    *sql.DB
	debug bool
}

func NewSQLiteStore(cfg SQLiteConfig) (*SQLiteStore, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, fmt.Errorf("%w: sqlite path is required", contractx.ErrValidation)
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db, debug: cfg.Debug}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL,
		identification TEXT NOT NULL UNIQUE,
		display_name TEXT NOT NULL,
		honorific_name TEXT NOT NULL,
		is_female INTEGER NOT NULL DEFAULT 0,
		is_admin INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_users_username ON users(username);
	`)
	return err
}

func (s *SQLiteStore) FindByHash(ctx context.Context, hashedID string) (*contractx.UserRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT identification, username, display_name, honorific_name, is_female, is_admin
		FROM users WHERE identification = ?`, hashedID)

	var u contractx.UserRecord
	if err := row.Scan(&u.AccessIdentifier, &u.Username, &u.DisplayName, &u.HonorificName, &u.IsFemale, &u.IsAdmin); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, contractx.ErrUserNotFound
		}
		return nil, fmt.Errorf("query user: %w", err)
	}
	return &u, nil
}

func (s *SQLiteStore) Insert(ctx context.Context, reg Registration) error {
	if err := reg.Validate(); err != nil {
		return err
	}
	rec := reg.Record()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, identification, display_name, honorific_name, is_female, is_admin)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(identification) DO NOTHING`,
		rec.Username, rec.AccessIdentifier, rec.DisplayName, rec.HonorificName, rec.IsFemale, rec.IsAdmin)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		log.Warn().Str("username", rec.Username).Msg("identification already exists, user not inserted")
		return ErrDuplicateIdentifier
	}
	return nil
}

func (s *SQLiteStore) DeleteByUsername(ctx context.Context, username string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE username = ?`, strings.TrimSpace(username))
	if err != nil {
		return false, fmt.Errorf("delete user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *SQLiteStore) DeleteByIdentification(ctx context.Context, identification string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE identification = ?`,
		identity.Hash(strings.TrimSpace(identification)))
	if err != nil {
		return false, fmt.Errorf("delete user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]contractx.UserRecord, error) {
	if !s.debug {
		return nil, ErrDebugDisabled
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT identification, username, display_name, honorific_name, is_female, is_admin
		FROM users ORDER BY username`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var out []contractx.UserRecord
	for rows.Next() {
		var u contractx.UserRecord
		if err := rows.Scan(&u.AccessIdentifier, &u.Username, &u.DisplayName, &u.HonorificName, &u.IsFemale, &u.IsAdmin); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

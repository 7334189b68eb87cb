package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	contractx "github.com/JRealValdes/jarvis/agent/contract"
	"github.com/JRealValdes/jarvis/agent/identity"
)

type PostgresConfig struct {
	DSN   string `envconfig:"DSN" required:"true"`
	Debug bool   `envconfig:"DEBUG" default:"false"`
}

type userRow struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID             int64  `bun:"id,pk,autoincrement"`
	Username       string `bun:"username,notnull"`
	Identification string `bun:"identification,notnull,unique"`
	DisplayName    string `bun:"display_name,notnull"`
	HonorificName  string `bun:"honorific_name,notnull"`
	IsFemale       bool   `bun:"is_female,notnull,default:false"`
	IsAdmin        bool   `bun:"is_admin,notnull,default:false"`
}

func (r userRow) record() contractx.UserRecord {
	return contractx.UserRecord{
		AccessIdentifier: r.Identification,
		Username:         r.Username,
		DisplayName:      r.DisplayName,
		HonorificName:    r.HonorificName,
		IsFemale:         r.IsFemale,
		IsAdmin:          r.IsAdmin,
	}
}

// PostgresStore implements Store on Postgres through bun.
type PostgresStore struct {
	db    *bun.DB
	debug bool
}

func NewPostgresStore(ctx context.Context, cfg PostgresConfig) (*PostgresStore, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, fmt.Errorf("%w: postgres dsn is required", contractx.ErrValidation)
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if _, err := db.NewCreateTable().Model((*userRow)(nil)).IfNotExists().Exec(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("create users table: %w", err)
	}

	return &PostgresStore{db: db, debug: cfg.Debug}, nil
}

func (s *PostgresStore) FindByHash(ctx context.Context, hashedID string) (*contractx.UserRecord, error) {
	var row userRow
	err := s.db.NewSelect().
		Model(&row).
		Where("identification = ?", hashedID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, contractx.ErrUserNotFound
		}
		return nil, fmt.Errorf("query user: %w", err)
	}
	rec := row.record()
	return &rec, nil
}

func (s *PostgresStore) Insert(ctx context.Context, reg Registration) error {
	if err := reg.Validate(); err != nil {
		return err
	}
	rec := reg.Record()
	row := &userRow{
		Username:       rec.Username,
		Identification: rec.AccessIdentifier,
		DisplayName:    rec.DisplayName,
		HonorificName:  rec.HonorificName,
		IsFemale:       rec.IsFemale,
		IsAdmin:        rec.IsAdmin,
	}

	res, err := s.db.NewInsert().
		Model(row).
		On("CONFLICT (identification) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		log.Warn().Str("username", rec.Username).Msg("identification already exists, user not inserted")
		return ErrDuplicateIdentifier
	}
	return nil
}

func (s *PostgresStore) DeleteByUsername(ctx context.Context, username string) (bool, error) {
	res, err := s.db.NewDelete().
		Model((*userRow)(nil)).
		Where("username = ?", strings.TrimSpace(username)).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("delete user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *PostgresStore) DeleteByIdentification(ctx context.Context, identification string) (bool, error) {
	res, err := s.db.NewDelete().
		Model((*userRow)(nil)).
		Where("identification = ?", identity.Hash(strings.TrimSpace(identification))).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("delete user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]contractx.UserRecord, error) {
	if !s.debug {
		return nil, ErrDebugDisabled
	}

	var rows []userRow
	if err := s.db.NewSelect().Model(&rows).Order("username ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	out := make([]contractx.UserRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.record())
	}
	return out, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

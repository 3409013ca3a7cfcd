package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/AliBars19/apollova-publisher/pkg/models"
)

// PostgresConfig holds connection settings for the Postgres-backed store.
type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int
	MinConns int
}

// PostgresStore keeps video records in a single table with the platform
// sub-records stored as JSONB. Row-level upserts give the single-writer
// discipline the JSON store provides with its mutex.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to Postgres and ensures the videos table exists.
func NewPostgresStore(ctx context.Context, cfg PostgresConfig) (*PostgresStore, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s pool_max_conns=%d pool_min_conns=%d",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode,
		cfg.MaxConns, cfg.MinConns,
	)

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &PostgresStore{pool: pool}
	if err := s.migrate(connectCtx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS videos (
			id           TEXT PRIMARY KEY,
			account      TEXT NOT NULL,
			title        TEXT NOT NULL DEFAULT '',
			description  TEXT NOT NULL DEFAULT '',
			tags         TEXT[] NOT NULL DEFAULT '{}',
			media_ref    TEXT NOT NULL,
			status       TEXT NOT NULL,
			scheduled_at TIMESTAMPTZ,
			tiktok       JSONB,
			youtube      JSONB,
			created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create videos table: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

const videoColumns = `id, account, title, description, tags, media_ref, status, scheduled_at, tiktok, youtube, created_at, updated_at`

func (s *PostgresStore) List(ctx context.Context) ([]*models.Video, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+videoColumns+` FROM videos ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list videos: %w", err)
	}
	defer rows.Close()

	var videos []*models.Video
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, err
		}
		videos = append(videos, v)
	}
	return videos, rows.Err()
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*models.Video, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+videoColumns+` FROM videos WHERE id = $1`, id)
	v, err := scanVideo(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrVideoNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get video: %w", err)
	}
	return v, nil
}

func (s *PostgresStore) SaveAll(ctx context.Context, videos []*models.Video) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM videos`); err != nil {
		return fmt.Errorf("failed to clear videos: %w", err)
	}
	for _, v := range videos {
		if err := upsertVideo(ctx, tx, v); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) Upsert(ctx context.Context, video *models.Video) error {
	video.UpdatedAt = time.Now()
	if video.CreatedAt.IsZero() {
		video.CreatedAt = video.UpdatedAt
	}
	return upsertVideo(ctx, s.pool, video)
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM videos WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete video: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrVideoNotFound
	}
	return nil
}

// execer is the Exec subset shared by *pgxpool.Pool and pgx.Tx so the same
// upsert serves both SaveAll's transaction and single-record writes.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func upsertVideo(ctx context.Context, db execer, v *models.Video) error {
	tiktok, err := marshalPublication(v.TikTok)
	if err != nil {
		return err
	}
	youtube, err := marshalPublication(v.YouTube)
	if err != nil {
		return err
	}

	_, err = db.Exec(ctx, `
		INSERT INTO videos (id, account, title, description, tags, media_ref, status, scheduled_at, tiktok, youtube, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			account = EXCLUDED.account,
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			tags = EXCLUDED.tags,
			media_ref = EXCLUDED.media_ref,
			status = EXCLUDED.status,
			scheduled_at = EXCLUDED.scheduled_at,
			tiktok = EXCLUDED.tiktok,
			youtube = EXCLUDED.youtube,
			updated_at = EXCLUDED.updated_at
	`, v.ID, v.Account, v.Title, v.Description, v.Tags, v.MediaRef, v.Status,
		v.ScheduledAt, tiktok, youtube, v.CreatedAt, v.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert video: %w", err)
	}
	return nil
}

func marshalPublication(pub *models.PlatformPublication) ([]byte, error) {
	if pub == nil {
		return nil, nil
	}
	b, err := json.Marshal(pub)
	if err != nil {
		return nil, fmt.Errorf("failed to encode publication: %w", err)
	}
	return b, nil
}

func scanVideo(row pgx.Row) (*models.Video, error) {
	var (
		v               models.Video
		tiktok, youtube []byte
	)
	err := row.Scan(&v.ID, &v.Account, &v.Title, &v.Description, &v.Tags,
		&v.MediaRef, &v.Status, &v.ScheduledAt, &tiktok, &youtube,
		&v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if len(tiktok) > 0 {
		v.TikTok = &models.PlatformPublication{}
		if err := json.Unmarshal(tiktok, v.TikTok); err != nil {
			return nil, fmt.Errorf("failed to decode tiktok publication: %w", err)
		}
	}
	if len(youtube) > 0 {
		v.YouTube = &models.PlatformPublication{}
		if err := json.Unmarshal(youtube, v.YouTube); err != nil {
			return nil, fmt.Errorf("failed to decode youtube publication: %w", err)
		}
	}
	return &v, nil
}

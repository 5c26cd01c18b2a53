package out

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"worktally/internal/modules/activity/domain"
	activityout "worktally/internal/modules/activity/port/out"
	apperrors "worktally/internal/platform/errors"
	"worktally/internal/platform/tx"
)

const databaseInitTimeout = 15 * time.Second

var postgresMigrations = []string{
	`CREATE TABLE IF NOT EXISTS heartbeats (
		id BIGSERIAL PRIMARY KEY,
		timestamp_ms BIGINT NOT NULL,
		project TEXT NOT NULL DEFAULT '',
		activity_type TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_heartbeats_timestamp ON heartbeats (timestamp_ms)`,
	`CREATE TABLE IF NOT EXISTS daily_cache (
		date_key TEXT PRIMARY KEY,
		session_count INTEGER NOT NULL,
		total_time_ms BIGINT NOT NULL,
		sessions_blob JSONB NOT NULL,
		last_heartbeat_id TEXT NOT NULL DEFAULT '',
		computed_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS aggregate_cache (
		range_key TEXT PRIMARY KEY,
		total_time_ms BIGINT NOT NULL,
		computed_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS import_runs (
		id UUID PRIMARY KEY,
		source TEXT NOT NULL,
		days_replaced INTEGER NOT NULL,
		days_skipped INTEGER NOT NULL,
		heartbeats_replaced INTEGER NOT NULL,
		started_at TIMESTAMPTZ NOT NULL,
		finished_at TIMESTAMPTZ NOT NULL
	)`,
}

type PostgresStore struct {
	pool *pgxpool.Pool
	tx   *tx.PgxManager
}

func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	ctx, cancel := context.WithTimeout(ctx, databaseInitTimeout)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := runMigration(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migration: %w", err)
	}
	return &PostgresStore{pool: pool, tx: tx.NewPgxManager(pool)}, nil
}

var _ activityout.Store = (*PostgresStore)(nil)

func runMigration(ctx context.Context, pool *pgxpool.Pool) error {
	for _, s := range postgresMigrations {
		stmt := strings.TrimSpace(s)
		if stmt == "" {
			continue
		}
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *PostgresStore) TxManager() tx.Manager {
	return s.tx
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) exec(ctx context.Context) tx.PgxExecutor {
	return tx.Pgx(ctx, s.pool)
}

func (s *PostgresStore) AppendHeartbeat(ctx context.Context, h domain.Heartbeat) (domain.Heartbeat, error) {
	var rowID int64
	err := s.exec(ctx).QueryRow(ctx,
		`INSERT INTO heartbeats (timestamp_ms, project, activity_type) VALUES ($1, $2, $3) RETURNING id`,
		h.Timestamp, h.Project, string(h.Type)).Scan(&rowID)
	if err != nil {
		return domain.Heartbeat{}, fmt.Errorf("insert heartbeat: %w", err)
	}
	h.ID = strconv.FormatInt(rowID, 10)
	return h, nil
}

func (s *PostgresStore) ListHeartbeats(ctx context.Context, startMs, endMs int64) ([]domain.Heartbeat, error) {
	rows, err := s.exec(ctx).Query(ctx, `
		SELECT id, timestamp_ms, project, activity_type
		FROM heartbeats
		WHERE timestamp_ms >= $1 AND timestamp_ms < $2
		ORDER BY timestamp_ms ASC, id ASC`, startMs, endMs)
	if err != nil {
		return nil, fmt.Errorf("query heartbeats: %w", err)
	}
	defer rows.Close()

	out := []domain.Heartbeat{}
	for rows.Next() {
		var (
			rowID int64
			h     domain.Heartbeat
			kind  string
		)
		if err := rows.Scan(&rowID, &h.Timestamp, &h.Project, &kind); err != nil {
			return nil, fmt.Errorf("scan heartbeat: %w", err)
		}
		h.ID = strconv.FormatInt(rowID, 10)
		h.Type = domain.ActivityType(kind)
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate heartbeats: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) ReplaceHeartbeats(ctx context.Context, startMs, endMs int64, heartbeats []domain.Heartbeat) (int, error) {
	err := s.tx.Within(ctx, func(ctx context.Context) error {
		db := s.exec(ctx)
		if _, err := db.Exec(ctx, `DELETE FROM heartbeats WHERE timestamp_ms >= $1 AND timestamp_ms < $2`, startMs, endMs); err != nil {
			return fmt.Errorf("delete heartbeats: %w", err)
		}
		for _, h := range heartbeats {
			if h.Timestamp < startMs || h.Timestamp >= endMs {
				return fmt.Errorf("%w: heartbeat %d outside replaced range", apperrors.ErrInvalidInput, h.Timestamp)
			}
			if _, err := db.Exec(ctx,
				`INSERT INTO heartbeats (timestamp_ms, project, activity_type) VALUES ($1, $2, $3)`,
				h.Timestamp, h.Project, string(h.Type)); err != nil {
				return fmt.Errorf("insert heartbeat: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(heartbeats), nil
}

func (s *PostgresStore) LastHeartbeatID(ctx context.Context, startMs, endMs int64) (string, error) {
	var last *int64
	err := s.exec(ctx).QueryRow(ctx,
		`SELECT MAX(id) FROM heartbeats WHERE timestamp_ms >= $1 AND timestamp_ms < $2`, startMs, endMs).Scan(&last)
	if err != nil {
		return "", fmt.Errorf("query last heartbeat id: %w", err)
	}
	if last == nil {
		return "", nil
	}
	return strconv.FormatInt(*last, 10), nil
}

func (s *PostgresStore) HeartbeatBounds(ctx context.Context) (int64, int64, bool, error) {
	var first, last *int64
	err := s.exec(ctx).QueryRow(ctx, `SELECT MIN(timestamp_ms), MAX(timestamp_ms) FROM heartbeats`).Scan(&first, &last)
	if err != nil {
		return 0, 0, false, fmt.Errorf("query heartbeat bounds: %w", err)
	}
	if first == nil || last == nil {
		return 0, 0, false, nil
	}
	return *first, *last, true, nil
}

func (s *PostgresStore) GetDaily(ctx context.Context, dateKey string) (domain.DailyEntry, error) {
	var (
		entry domain.DailyEntry
		blob  []byte
	)
	err := s.exec(ctx).QueryRow(ctx, `
		SELECT date_key, session_count, total_time_ms, sessions_blob, last_heartbeat_id, computed_at
		FROM daily_cache WHERE date_key = $1`, dateKey).
		Scan(&entry.DateKey, &entry.SessionCount, &entry.TotalTimeMs, &blob, &entry.LastHeartbeatID, &entry.ComputedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.DailyEntry{}, apperrors.ErrNotFound
	}
	if err != nil {
		return domain.DailyEntry{}, fmt.Errorf("query daily cache: %w", err)
	}
	sessions := []domain.Session{}
	if err := json.Unmarshal(blob, &sessions); err != nil {
		return domain.DailyEntry{}, fmt.Errorf("decode sessions of %s: %w", dateKey, err)
	}
	entry.Sessions = sessions
	return entry, nil
}

func (s *PostgresStore) PutDaily(ctx context.Context, entry domain.DailyEntry) error {
	blob, err := encodeSessions(entry.Sessions)
	if err != nil {
		return err
	}
	_, err = s.exec(ctx).Exec(ctx, `
		INSERT INTO daily_cache (date_key, session_count, total_time_ms, sessions_blob, last_heartbeat_id, computed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (date_key) DO UPDATE SET
		  session_count = EXCLUDED.session_count,
		  total_time_ms = EXCLUDED.total_time_ms,
		  sessions_blob = EXCLUDED.sessions_blob,
		  last_heartbeat_id = EXCLUDED.last_heartbeat_id,
		  computed_at = EXCLUDED.computed_at`,
		entry.DateKey, entry.SessionCount, entry.TotalTimeMs, []byte(blob), entry.LastHeartbeatID, entry.ComputedAt.UTC())
	if err != nil {
		return fmt.Errorf("upsert daily cache: %w", err)
	}
	return nil
}

func (s *PostgresStore) SumDailyTotals(ctx context.Context, fromKey, toKey string) (int64, error) {
	var total int64
	err := s.exec(ctx).QueryRow(ctx,
		`SELECT COALESCE(SUM(total_time_ms), 0)::BIGINT FROM daily_cache WHERE date_key >= $1 AND date_key <= $2`,
		fromKey, toKey).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum daily cache: %w", err)
	}
	return total, nil
}

func (s *PostgresStore) HasSessions(ctx context.Context, fromKey, toKey string) (bool, error) {
	var found bool
	err := s.exec(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM daily_cache WHERE date_key >= $1 AND date_key <= $2 AND session_count > 0)`,
		fromKey, toKey).Scan(&found)
	if err != nil {
		return false, fmt.Errorf("query daily cache presence: %w", err)
	}
	return found, nil
}

func (s *PostgresStore) DailyKeyBounds(ctx context.Context) (string, string, bool, error) {
	var earliest, latest *string
	err := s.exec(ctx).QueryRow(ctx, `SELECT MIN(date_key), MAX(date_key) FROM daily_cache`).Scan(&earliest, &latest)
	if err != nil {
		return "", "", false, fmt.Errorf("query daily cache bounds: %w", err)
	}
	if earliest == nil || latest == nil {
		return "", "", false, nil
	}
	return *earliest, *latest, true, nil
}

func (s *PostgresStore) GetAggregate(ctx context.Context, rangeKey string) (domain.AggregateEntry, error) {
	var entry domain.AggregateEntry
	err := s.exec(ctx).QueryRow(ctx,
		`SELECT range_key, total_time_ms, computed_at FROM aggregate_cache WHERE range_key = $1`, rangeKey).
		Scan(&entry.RangeKey, &entry.TotalTimeMs, &entry.ComputedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.AggregateEntry{}, apperrors.ErrNotFound
	}
	if err != nil {
		return domain.AggregateEntry{}, fmt.Errorf("query aggregate cache: %w", err)
	}
	return entry, nil
}

func (s *PostgresStore) PutAggregate(ctx context.Context, entry domain.AggregateEntry) error {
	_, err := s.exec(ctx).Exec(ctx, `
		INSERT INTO aggregate_cache (range_key, total_time_ms, computed_at) VALUES ($1, $2, $3)
		ON CONFLICT (range_key) DO UPDATE SET
		  total_time_ms = EXCLUDED.total_time_ms,
		  computed_at = EXCLUDED.computed_at`,
		entry.RangeKey, entry.TotalTimeMs, entry.ComputedAt.UTC())
	if err != nil {
		return fmt.Errorf("upsert aggregate cache: %w", err)
	}
	return nil
}

func (s *PostgresStore) AddAggregateDelta(ctx context.Context, rangeKey string, delta int64, at time.Time) (bool, error) {
	tag, err := s.exec(ctx).Exec(ctx,
		`UPDATE aggregate_cache SET total_time_ms = total_time_ms + $1, computed_at = $2 WHERE range_key = $3`,
		delta, at.UTC(), rangeKey)
	if err != nil {
		return false, fmt.Errorf("update aggregate cache: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) DeleteAggregates(ctx context.Context) (int, error) {
	tag, err := s.exec(ctx).Exec(ctx, `DELETE FROM aggregate_cache`)
	if err != nil {
		return 0, fmt.Errorf("delete aggregate cache: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) SaveImportRun(ctx context.Context, run domain.ImportRun) error {
	_, err := s.exec(ctx).Exec(ctx, `
		INSERT INTO import_runs (id, source, days_replaced, days_skipped, heartbeats_replaced, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		run.ID, run.Source, run.DaysReplaced, run.DaysSkipped, run.HeartbeatsReplaced,
		run.StartedAt.UTC(), run.FinishedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert import run: %w", err)
	}
	return nil
}

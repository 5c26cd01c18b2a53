package out

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"worktally/internal/modules/activity/domain"
	activityout "worktally/internal/modules/activity/port/out"
	apperrors "worktally/internal/platform/errors"
	"worktally/internal/platform/tx"

	_ "modernc.org/sqlite"
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS heartbeats (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp_ms INTEGER NOT NULL,
		project TEXT NOT NULL DEFAULT '',
		activity_type TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_heartbeats_timestamp ON heartbeats(timestamp_ms)`,
	`CREATE TABLE IF NOT EXISTS daily_cache (
		date_key TEXT PRIMARY KEY,
		session_count INTEGER NOT NULL,
		total_time_ms INTEGER NOT NULL,
		sessions_blob TEXT NOT NULL,
		last_heartbeat_id TEXT NOT NULL DEFAULT '',
		computed_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS aggregate_cache (
		range_key TEXT PRIMARY KEY,
		total_time_ms INTEGER NOT NULL,
		computed_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS import_runs (
		id TEXT PRIMARY KEY,
		source TEXT NOT NULL,
		days_replaced INTEGER NOT NULL,
		days_skipped INTEGER NOT NULL,
		heartbeats_replaced INTEGER NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL
	)`,
}

type SQLiteStore struct {
	db *sql.DB
	tx *tx.SQLManager
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", filepath.ToSlash(dbPath))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	store := &SQLiteStore{db: db, tx: tx.NewSQLManager(db)}
	if err := store.ensureSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

var _ activityout.Store = (*SQLiteStore)(nil)

func (s *SQLiteStore) TxManager() tx.Manager {
	return s.tx
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) ensureSchema(ctx context.Context) error {
	for _, stmt := range sqliteSchema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) exec(ctx context.Context) tx.SQLExecutor {
	return tx.SQL(ctx, s.db)
}

func (s *SQLiteStore) AppendHeartbeat(ctx context.Context, h domain.Heartbeat) (domain.Heartbeat, error) {
	res, err := s.exec(ctx).ExecContext(ctx,
		`INSERT INTO heartbeats (timestamp_ms, project, activity_type) VALUES (?, ?, ?)`,
		h.Timestamp, h.Project, string(h.Type))
	if err != nil {
		return domain.Heartbeat{}, fmt.Errorf("insert heartbeat: %w", err)
	}
	rowID, err := res.LastInsertId()
	if err != nil {
		return domain.Heartbeat{}, fmt.Errorf("heartbeat id: %w", err)
	}
	h.ID = strconv.FormatInt(rowID, 10)
	return h, nil
}

func (s *SQLiteStore) ListHeartbeats(ctx context.Context, startMs, endMs int64) ([]domain.Heartbeat, error) {
	rows, err := s.exec(ctx).QueryContext(ctx, `
		SELECT id, timestamp_ms, project, activity_type
		FROM heartbeats
		WHERE timestamp_ms >= ? AND timestamp_ms < ?
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

func (s *SQLiteStore) ReplaceHeartbeats(ctx context.Context, startMs, endMs int64, heartbeats []domain.Heartbeat) (int, error) {
	err := s.tx.Within(ctx, func(ctx context.Context) error {
		db := s.exec(ctx)
		if _, err := db.ExecContext(ctx, `DELETE FROM heartbeats WHERE timestamp_ms >= ? AND timestamp_ms < ?`, startMs, endMs); err != nil {
			return fmt.Errorf("delete heartbeats: %w", err)
		}
		for _, h := range heartbeats {
			if h.Timestamp < startMs || h.Timestamp >= endMs {
				return fmt.Errorf("%w: heartbeat %d outside replaced range", apperrors.ErrInvalidInput, h.Timestamp)
			}
			if _, err := db.ExecContext(ctx,
				`INSERT INTO heartbeats (timestamp_ms, project, activity_type) VALUES (?, ?, ?)`,
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

func (s *SQLiteStore) LastHeartbeatID(ctx context.Context, startMs, endMs int64) (string, error) {
	var last sql.NullInt64
	err := s.exec(ctx).QueryRowContext(ctx,
		`SELECT MAX(id) FROM heartbeats WHERE timestamp_ms >= ? AND timestamp_ms < ?`, startMs, endMs).Scan(&last)
	if err != nil {
		return "", fmt.Errorf("query last heartbeat id: %w", err)
	}
	if !last.Valid {
		return "", nil
	}
	return strconv.FormatInt(last.Int64, 10), nil
}

func (s *SQLiteStore) HeartbeatBounds(ctx context.Context) (int64, int64, bool, error) {
	var first, last sql.NullInt64
	err := s.exec(ctx).QueryRowContext(ctx, `SELECT MIN(timestamp_ms), MAX(timestamp_ms) FROM heartbeats`).Scan(&first, &last)
	if err != nil {
		return 0, 0, false, fmt.Errorf("query heartbeat bounds: %w", err)
	}
	if !first.Valid {
		return 0, 0, false, nil
	}
	return first.Int64, last.Int64, true, nil
}

func (s *SQLiteStore) GetDaily(ctx context.Context, dateKey string) (domain.DailyEntry, error) {
	var (
		entry      domain.DailyEntry
		blob       string
		computedAt string
	)
	err := s.exec(ctx).QueryRowContext(ctx, `
		SELECT date_key, session_count, total_time_ms, sessions_blob, last_heartbeat_id, computed_at
		FROM daily_cache WHERE date_key = ?`, dateKey).
		Scan(&entry.DateKey, &entry.SessionCount, &entry.TotalTimeMs, &blob, &entry.LastHeartbeatID, &computedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.DailyEntry{}, apperrors.ErrNotFound
	}
	if err != nil {
		return domain.DailyEntry{}, fmt.Errorf("query daily cache: %w", err)
	}
	if err := decodeDaily(&entry, blob, computedAt); err != nil {
		return domain.DailyEntry{}, err
	}
	return entry, nil
}

func (s *SQLiteStore) PutDaily(ctx context.Context, entry domain.DailyEntry) error {
	blob, err := encodeSessions(entry.Sessions)
	if err != nil {
		return err
	}
	_, err = s.exec(ctx).ExecContext(ctx, `
		INSERT INTO daily_cache (date_key, session_count, total_time_ms, sessions_blob, last_heartbeat_id, computed_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(date_key) DO UPDATE SET
		  session_count=excluded.session_count,
		  total_time_ms=excluded.total_time_ms,
		  sessions_blob=excluded.sessions_blob,
		  last_heartbeat_id=excluded.last_heartbeat_id,
		  computed_at=excluded.computed_at`,
		entry.DateKey, entry.SessionCount, entry.TotalTimeMs, blob, entry.LastHeartbeatID, formatTime(entry.ComputedAt))
	if err != nil {
		return fmt.Errorf("upsert daily cache: %w", err)
	}
	return nil
}

func (s *SQLiteStore) SumDailyTotals(ctx context.Context, fromKey, toKey string) (int64, error) {
	var total int64
	err := s.exec(ctx).QueryRowContext(ctx,
		`SELECT COALESCE(SUM(total_time_ms), 0) FROM daily_cache WHERE date_key >= ? AND date_key <= ?`,
		fromKey, toKey).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum daily cache: %w", err)
	}
	return total, nil
}

func (s *SQLiteStore) HasSessions(ctx context.Context, fromKey, toKey string) (bool, error) {
	var found int
	err := s.exec(ctx).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM daily_cache WHERE date_key >= ? AND date_key <= ? AND session_count > 0)`,
		fromKey, toKey).Scan(&found)
	if err != nil {
		return false, fmt.Errorf("query daily cache presence: %w", err)
	}
	return found == 1, nil
}

func (s *SQLiteStore) DailyKeyBounds(ctx context.Context) (string, string, bool, error) {
	var earliest, latest sql.NullString
	err := s.exec(ctx).QueryRowContext(ctx, `SELECT MIN(date_key), MAX(date_key) FROM daily_cache`).Scan(&earliest, &latest)
	if err != nil {
		return "", "", false, fmt.Errorf("query daily cache bounds: %w", err)
	}
	if !earliest.Valid {
		return "", "", false, nil
	}
	return earliest.String, latest.String, true, nil
}

func (s *SQLiteStore) GetAggregate(ctx context.Context, rangeKey string) (domain.AggregateEntry, error) {
	var (
		entry      domain.AggregateEntry
		computedAt string
	)
	err := s.exec(ctx).QueryRowContext(ctx,
		`SELECT range_key, total_time_ms, computed_at FROM aggregate_cache WHERE range_key = ?`, rangeKey).
		Scan(&entry.RangeKey, &entry.TotalTimeMs, &computedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.AggregateEntry{}, apperrors.ErrNotFound
	}
	if err != nil {
		return domain.AggregateEntry{}, fmt.Errorf("query aggregate cache: %w", err)
	}
	entry.ComputedAt, err = parseTime(computedAt)
	if err != nil {
		return domain.AggregateEntry{}, err
	}
	return entry, nil
}

func (s *SQLiteStore) PutAggregate(ctx context.Context, entry domain.AggregateEntry) error {
	_, err := s.exec(ctx).ExecContext(ctx, `
		INSERT INTO aggregate_cache (range_key, total_time_ms, computed_at) VALUES (?, ?, ?)
		ON CONFLICT(range_key) DO UPDATE SET
		  total_time_ms=excluded.total_time_ms,
		  computed_at=excluded.computed_at`,
		entry.RangeKey, entry.TotalTimeMs, formatTime(entry.ComputedAt))
	if err != nil {
		return fmt.Errorf("upsert aggregate cache: %w", err)
	}
	return nil
}

func (s *SQLiteStore) AddAggregateDelta(ctx context.Context, rangeKey string, delta int64, at time.Time) (bool, error) {
	res, err := s.exec(ctx).ExecContext(ctx,
		`UPDATE aggregate_cache SET total_time_ms = total_time_ms + ?, computed_at = ? WHERE range_key = ?`,
		delta, formatTime(at), rangeKey)
	if err != nil {
		return false, fmt.Errorf("update aggregate cache: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("aggregate rows affected: %w", err)
	}
	return n > 0, nil
}

func (s *SQLiteStore) DeleteAggregates(ctx context.Context) (int, error) {
	res, err := s.exec(ctx).ExecContext(ctx, `DELETE FROM aggregate_cache`)
	if err != nil {
		return 0, fmt.Errorf("delete aggregate cache: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("aggregate rows affected: %w", err)
	}
	return int(n), nil
}

func (s *SQLiteStore) SaveImportRun(ctx context.Context, run domain.ImportRun) error {
	_, err := s.exec(ctx).ExecContext(ctx, `
		INSERT INTO import_runs (id, source, days_replaced, days_skipped, heartbeats_replaced, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Source, run.DaysReplaced, run.DaysSkipped, run.HeartbeatsReplaced,
		formatTime(run.StartedAt), formatTime(run.FinishedAt))
	if err != nil {
		return fmt.Errorf("insert import run: %w", err)
	}
	return nil
}

func encodeSessions(sessions []domain.Session) (string, error) {
	if sessions == nil {
		sessions = []domain.Session{}
	}
	raw, err := json.Marshal(sessions)
	if err != nil {
		return "", fmt.Errorf("encode sessions: %w", err)
	}
	return string(raw), nil
}

func decodeDaily(entry *domain.DailyEntry, blob, computedAt string) error {
	sessions := []domain.Session{}
	if err := json.Unmarshal([]byte(blob), &sessions); err != nil {
		return fmt.Errorf("decode sessions of %s: %w", entry.DateKey, err)
	}
	entry.Sessions = sessions
	at, err := parseTime(computedAt)
	if err != nil {
		return err
	}
	entry.ComputedAt = at
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(raw string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", raw, err)
	}
	return t, nil
}

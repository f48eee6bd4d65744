// Package sqlite provides SQLite-based persistent storage for streakd.
// Uses WAL mode for concurrent reads and crash-safe writes.
package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver (no CGO required)

	"github.com/streakforge/streakd/internal/domain"
)

// DB wraps a SQLite connection with WAL mode and migrations.
type DB struct {
	db *sql.DB
}

// Open creates or opens the SQLite database at dir/state.db.
// Enables WAL mode, foreign keys, and 5-second busy timeout.
func Open(dir string) (*DB, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	dbPath := filepath.Join(dir, "state.db")
	dsn := dbPath + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	// Connection pool settings for SQLite
	db.SetMaxOpenConns(1) // SQLite is single-writer
	db.SetMaxIdleConns(1)

	d := &DB{db: db}
	if err := d.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return d, nil
}

// Close cleanly shuts down the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// Ping checks database connectivity.
func (d *DB) Ping() error {
	return d.db.Ping()
}

// migrate runs idempotent schema migrations.
func (d *DB) migrate() error {
	migrations := []string{
		// Streak records: one row per (user, activity type) pair.
		// last_event_date is a "2006-01-02" UTC date, empty when absent.
		`CREATE TABLE IF NOT EXISTS streaks (
			user_id        TEXT NOT NULL,
			activity_type  TEXT NOT NULL,
			current_streak INTEGER NOT NULL DEFAULT 0,
			last_event_date TEXT NOT NULL DEFAULT '',
			status         TEXT NOT NULL DEFAULT 'none',
			updated_at     INTEGER NOT NULL,
			PRIMARY KEY (user_id, activity_type)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_streaks_user ON streaks(user_id)`,

		// Trained classifier models, newest per version wins.
		`CREATE TABLE IF NOT EXISTS classifier_models (
			id         TEXT PRIMARY KEY,
			version    TEXT NOT NULL,
			trained_at INTEGER NOT NULL,
			samples    INTEGER NOT NULL,
			accuracy   REAL NOT NULL,
			model      BLOB NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_models_version ON classifier_models(version, trained_at)`,
	}

	for _, m := range migrations {
		if _, err := d.db.Exec(m); err != nil {
			return fmt.Errorf("exec migration: %w", err)
		}
	}
	return nil
}

// ─── Streak records ─────────────────────────────────────────────────────────

const dateLayout = "2006-01-02"

// LoadStreaks reads every streak record, keyed by user id then type.
// Called once at boot to warm the in-memory store.
func (d *DB) LoadStreaks() (map[string]map[string]domain.StreakRecord, error) {
	rows, err := d.db.Query(
		`SELECT user_id, activity_type, current_streak, last_event_date, status FROM streaks`)
	if err != nil {
		return nil, fmt.Errorf("query streaks: %w", err)
	}
	defer rows.Close()

	out := make(map[string]map[string]domain.StreakRecord)
	for rows.Next() {
		var (
			user, typ, date, status string
			streak                  int
		)
		if err := rows.Scan(&user, &typ, &streak, &date, &status); err != nil {
			return nil, fmt.Errorf("scan streak row: %w", err)
		}
		rec := domain.StreakRecord{
			CurrentStreak: streak,
			Status:        domain.StreakStatus(status),
		}
		if date != "" {
			t, err := time.ParseInLocation(dateLayout, date, time.UTC)
			if err != nil {
				return nil, fmt.Errorf("parse last_event_date %q: %w", date, err)
			}
			rec.LastEventDate = t
		}
		if out[user] == nil {
			out[user] = make(map[string]domain.StreakRecord)
		}
		out[user][typ] = rec
	}
	return out, rows.Err()
}

// UpsertStreaks writes a user's changed records in one transaction, so a
// request's transition set commits atomically.
func (d *DB) UpsertStreaks(userID string, recs map[string]domain.StreakRecord) error {
	if len(recs) == 0 {
		return nil
	}

	tx, err := d.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().Unix()
	for typ, rec := range recs {
		date := ""
		if rec.HasAnchor() {
			date = rec.LastEventDate.UTC().Format(dateLayout)
		}
		_, err := tx.Exec(
			`INSERT INTO streaks (user_id, activity_type, current_streak, last_event_date, status, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?)
			 ON CONFLICT(user_id, activity_type) DO UPDATE SET
			   current_streak = excluded.current_streak,
			   last_event_date = excluded.last_event_date,
			   status = excluded.status,
			   updated_at = excluded.updated_at`,
			userID, typ, rec.CurrentStreak, date, string(rec.Status), now)
		if err != nil {
			return fmt.Errorf("upsert streak %s/%s: %w", userID, typ, err)
		}
	}

	return tx.Commit()
}

// ─── Classifier models ──────────────────────────────────────────────────────

// ModelInfo describes a stored classifier model (blob excluded).
type ModelInfo struct {
	ID        string
	Version   string
	TrainedAt time.Time
	Samples   int
	Accuracy  float64
}

// SaveClassifierModel stores a trained model blob.
func (d *DB) SaveClassifierModel(info ModelInfo, blob []byte) error {
	_, err := d.db.Exec(
		`INSERT INTO classifier_models (id, version, trained_at, samples, accuracy, model)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		info.ID, info.Version, info.TrainedAt.Unix(), info.Samples, info.Accuracy, blob)
	if err != nil {
		return fmt.Errorf("save classifier model: %w", err)
	}
	return nil
}

// LatestClassifierModel returns the newest stored model for a version.
func (d *DB) LatestClassifierModel(version string) (ModelInfo, []byte, error) {
	var (
		info      ModelInfo
		trainedAt int64
		blob      []byte
	)
	err := d.db.QueryRow(
		`SELECT id, version, trained_at, samples, accuracy, model
		 FROM classifier_models WHERE version = ?
		 ORDER BY trained_at DESC LIMIT 1`, version).
		Scan(&info.ID, &info.Version, &trainedAt, &info.Samples, &info.Accuracy, &blob)
	if err == sql.ErrNoRows {
		return info, nil, fmt.Errorf("%w: version %s", domain.ErrModelNotFound, version)
	}
	if err != nil {
		return info, nil, fmt.Errorf("load classifier model: %w", err)
	}
	info.TrainedAt = time.Unix(trainedAt, 0)
	return info, blob, nil
}

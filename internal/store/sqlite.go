package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jobmatch/jobmatch/internal/backend"
	"github.com/jobmatch/jobmatch/internal/session"
)

// Keys of the kv table.
const (
	keyToken        = "token"
	keyRefreshToken = "refreshToken"
	keyUserID       = "userId"
	keyLastSearch   = "lastSearch"
)

// ErrNotFound is returned when nothing is stored under the requested key.
var ErrNotFound = errors.New("not found")

// SQLite is the local state of the CLI: credentials, the last search and
// cached job snapshots.
type SQLite struct {
	db *sql.DB
}

var _ session.Store = (*SQLite)(nil)

func Open(path string) (*SQLite, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// A single connection keeps ":memory:" databases consistent.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS kv (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updated_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS jobs (
  job_id TEXT PRIMARY KEY,
  payload TEXT NOT NULL,
  fetched_at INTEGER NOT NULL
);
`); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate store: %w", err)
	}

	return &SQLite{db: db}, nil
}

func (s *SQLite) Close() error { return s.db.Close() }

func (s *SQLite) get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return value, err
}

func (s *SQLite) put(ctx context.Context, tx *sql.Tx, key, value string) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
         ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UnixMilli(),
	)
	return err
}

func (s *SQLite) remove(ctx context.Context, tx *sql.Tx, keys ...string) error {
	for _, key := range keys {
		if _, err := tx.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLite) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (s *SQLite) LoadCredential(ctx context.Context) (session.Credential, error) {
	var cred session.Credential

	access, err := s.get(ctx, keyToken)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return cred, fmt.Errorf("load token: %w", err)
	}
	refresh, err := s.get(ctx, keyRefreshToken)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return cred, fmt.Errorf("load refresh token: %w", err)
	}

	cred.AccessToken = access
	cred.RefreshToken = refresh
	return cred, nil
}

// SaveCredential replaces both tokens. Empty tokens are removed.
func (s *SQLite) SaveCredential(ctx context.Context, cred session.Credential) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		pairs := [][2]string{{keyToken, cred.AccessToken}, {keyRefreshToken, cred.RefreshToken}}
		for _, kv := range pairs {
			var err error
			if kv[1] == "" {
				err = s.remove(ctx, tx, kv[0])
			} else {
				err = s.put(ctx, tx, kv[0], kv[1])
			}
			if err != nil {
				return fmt.Errorf("save %s: %w", kv[0], err)
			}
		}
		return nil
	})
}

// ClearCredential removes the tokens and the user id.
func (s *SQLite) ClearCredential(ctx context.Context) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return s.remove(ctx, tx, keyToken, keyRefreshToken, keyUserID)
	})
}

func (s *SQLite) SaveUserID(ctx context.Context, userID string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return s.put(ctx, tx, keyUserID, userID)
	})
}

// UserID returns ErrNotFound when nobody logged in.
func (s *SQLite) UserID(ctx context.Context) (string, error) {
	return s.get(ctx, keyUserID)
}

func (s *SQLite) SaveLastSearch(ctx context.Context, params backend.SearchParams) error {
	raw, err := json.Marshal(params)
	if err != nil {
		return err
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return s.put(ctx, tx, keyLastSearch, string(raw))
	})
}

// LoadLastSearch returns nil without error when no search was saved.
func (s *SQLite) LoadLastSearch(ctx context.Context) (*backend.SearchParams, error) {
	raw, err := s.get(ctx, keyLastSearch)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var params backend.SearchParams
	if err := json.Unmarshal([]byte(raw), &params); err != nil {
		return nil, fmt.Errorf("decode last search: %w", err)
	}
	return &params, nil
}

func (s *SQLite) ClearLastSearch(ctx context.Context) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return s.remove(ctx, tx, keyLastSearch)
	})
}

func (s *SQLite) CacheJob(ctx context.Context, job backend.Job) error {
	if job.JobID == "" {
		return errors.New("job without id")
	}
	raw, err := json.Marshal(job)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO jobs (job_id, payload, fetched_at) VALUES (?, ?, ?)
         ON CONFLICT(job_id) DO UPDATE SET payload = excluded.payload, fetched_at = excluded.fetched_at`,
		job.JobID, string(raw), time.Now().UnixMilli(),
	)
	return err
}

// CachedJob returns the stored snapshot and the time it was fetched.
func (s *SQLite) CachedJob(ctx context.Context, jobID string) (backend.Job, time.Time, error) {
	var (
		raw       string
		fetchedMs int64
	)
	err := s.db.QueryRowContext(ctx, `SELECT payload, fetched_at FROM jobs WHERE job_id = ?`, jobID).Scan(&raw, &fetchedMs)
	if errors.Is(err, sql.ErrNoRows) {
		return backend.Job{}, time.Time{}, ErrNotFound
	}
	if err != nil {
		return backend.Job{}, time.Time{}, err
	}

	var job backend.Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		return backend.Job{}, time.Time{}, fmt.Errorf("decode job %s: %w", jobID, err)
	}
	return job, time.UnixMilli(fetchedMs), nil
}

package statstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"

	"framealign/internal/overlay"
)

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

const transformColumns = "frame, x, y, width, height, angle, crop_left, crop_top, crop_right, crop_bottom, diff"

// SQLite is a file-backed Store.
type SQLite struct {
	db   *sql.DB
	path string
	lock *flock.Flock
}

// OpenSQLite opens or creates the store at path and takes its process lock.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure stat directory: %w", err)
		}
	}

	lock := flock.New(path + ".lock")
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLocked, path)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			_ = lock.Unlock()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &SQLite{db: db, path: path, lock: lock}
	if err := store.initSchema(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file path.
func (s *SQLite) Path() string { return s.path }

// Close closes the database and releases the process lock.
func (s *SQLite) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	err := s.db.Close()
	if s.lock != nil {
		err = errors.Join(err, s.lock.Unlock())
	}
	return err
}

func (s *SQLite) Get(ctx context.Context, frame int) (*overlay.Transform, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+transformColumns+` FROM transforms WHERE frame = ?`, frame)
	t, err := scanTransform(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get frame %d: %w", frame, err)
	}
	return &t, nil
}

func (s *SQLite) Put(ctx context.Context, t overlay.Transform) error {
	err := s.execWithRetry(ctx,
		`INSERT INTO transforms (`+transformColumns+`, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(frame) DO UPDATE SET
             x = excluded.x, y = excluded.y, width = excluded.width, height = excluded.height,
             angle = excluded.angle, crop_left = excluded.crop_left, crop_top = excluded.crop_top,
             crop_right = excluded.crop_right, crop_bottom = excluded.crop_bottom,
             diff = excluded.diff, updated_at = excluded.updated_at`,
		t.Frame, t.X, t.Y, t.Width, t.Height, t.Angle,
		t.CropLeft, t.CropTop, t.CropRight, t.CropBottom, t.Diff,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("put frame %d: %w", t.Frame, err)
	}
	return nil
}

func (s *SQLite) Erase(ctx context.Context, frame int) error {
	if err := s.execWithRetry(ctx, `DELETE FROM transforms WHERE frame = ?`, frame); err != nil {
		return fmt.Errorf("erase frame %d: %w", frame, err)
	}
	return nil
}

func (s *SQLite) List(ctx context.Context) ([]overlay.Transform, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+transformColumns+` FROM transforms ORDER BY frame`)
	if err != nil {
		return nil, fmt.Errorf("list transforms: %w", err)
	}
	defer rows.Close()

	var out []overlay.Transform
	for rows.Next() {
		t, err := scanTransform(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transform: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Clear removes every stored transform and returns how many were removed.
func (s *SQLite) Clear(ctx context.Context) (int64, error) {
	var removed int64
	err := retryOnBusy(ctx, func() error {
		res, err := s.db.ExecContext(ctx, `DELETE FROM transforms`)
		if err != nil {
			return err
		}
		removed, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("clear transforms: %w", err)
	}
	return removed, nil
}

func scanTransform(scanner interface{ Scan(dest ...any) error }) (overlay.Transform, error) {
	var t overlay.Transform
	err := scanner.Scan(
		&t.Frame, &t.X, &t.Y, &t.Width, &t.Height, &t.Angle,
		&t.CropLeft, &t.CropTop, &t.CropRight, &t.CropBottom, &t.Diff,
	)
	return t, err
}

func (s *SQLite) execWithRetry(ctx context.Context, query string, args ...any) error {
	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx, query, args...)
		return err
	})
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

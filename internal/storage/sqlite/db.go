package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/pdxmph/contacts/internal/storage"
)

// DB wraps the database connection
type DB struct {
	conn *sql.DB
	log  *zap.SugaredLogger

	pollInterval time.Duration
}

// Open creates a new database connection, initializing the database
// first if it does not exist yet
func Open(dbPath string, log *zap.SugaredLogger) (*DB, error) {
	if dbPath == "" {
		return nil, errors.New("sqlite backend needs a database path")
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		log.Infow("database not found, initializing", "path", dbPath)
		if err := Initialize(dbPath); err != nil {
			return nil, err
		}
	}

	conn, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=2000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	conn.SetMaxOpenConns(1)

	db := &DB{conn: conn, log: log.Named("sqlite"), pollInterval: 500 * time.Millisecond}

	// Run any pending migrations
	if err := db.RunMigrations(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return db, nil
}

// Name returns the backend identifier
func (db *DB) Name() string {
	return "sqlite"
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// Get retrieves the value stored under key
func (db *DB) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := db.conn.QueryRowContext(ctx, `SELECT value FROM kv_store WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", key, err)
	}
	return value, nil
}

// Set inserts or replaces the value stored under key. Writes that hit a
// locked database are retried a few times.
func (db *DB) Set(ctx context.Context, key string, value []byte) error {
	query := `
		INSERT INTO kv_store (key, value, created_at, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE
		SET value = excluded.value,
		    updated_at = CURRENT_TIMESTAMP
	`

	err := retry.Do(
		func() error {
			_, err := db.conn.ExecContext(ctx, query, key, value)
			return err
		},
		retry.Context(ctx),
		retry.Attempts(4),
		retry.Delay(25*time.Millisecond),
		retry.RetryIf(isBusy),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			db.log.Warnw("database busy, retrying write", "key", key, "attempt", n+1, "error", err)
		}),
	)
	if err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}
	return nil
}

// Delete removes the value stored under key
func (db *DB) Delete(ctx context.Context, key string) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM kv_store WHERE key = ?`, key); err != nil {
		return fmt.Errorf("deleting %s: %w", key, err)
	}
	return nil
}

// Watch reports commits made to the database through other connections,
// including other processes. SQLite bumps data_version for every such
// commit, so the database is polled for it; changes to other keys are
// reported too. The channel is closed when ctx is done.
func (db *DB) Watch(ctx context.Context, key string) (<-chan struct{}, error) {
	version, err := db.dataVersion(ctx)
	if err != nil {
		return nil, err
	}

	changes := make(chan struct{}, 1)
	go func() {
		defer close(changes)
		ticker := time.NewTicker(db.pollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			v, err := db.dataVersion(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				db.log.Debugw("polling data_version", "key", key, "error", err)
				continue
			}
			if v == version {
				continue
			}
			version = v

			// Coalesce: one pending notification is enough
			select {
			case changes <- struct{}{}:
			default:
			}
		}
	}()

	return changes, nil
}

func (db *DB) dataVersion(ctx context.Context) (int64, error) {
	var v int64
	if err := db.conn.QueryRowContext(ctx, `PRAGMA data_version`).Scan(&v); err != nil {
		return 0, fmt.Errorf("reading data_version: %w", err)
	}
	return v, nil
}

var _ storage.Watcher = (*DB)(nil)

func isBusy(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
	}
	return false
}

// Register the sqlite backend
func init() {
	storage.MustRegister("sqlite", func(opts storage.Options) (storage.Backend, error) {
		return Open(opts.Path, opts.Logger)
	})
}

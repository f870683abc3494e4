// Package catalog implements the durable schema for configurations,
// interfaces, job records, per-job log lines, and process wrappers. It is a
// connection-pool-backed embedded SQLite store, replacing a per-call remote
// client with a bounded local pool, bounded retries on contention, and
// explicit lease scoping.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/cyber-rangers/cratec/internal/cratecerr"
	"github.com/cyber-rangers/cratec/internal/obslog"
	"github.com/cyber-rangers/cratec/internal/obsmetrics"
)

var log = obslog.Component("catalog")

// Store owns the single *sql.DB connection pool for the catalog database.
// Every mutating or reading operation acquires a Lease, uses it, and
// releases it — the lease is the only thing that should ever touch db
// directly outside of this file.
type Store struct {
	db          *sql.DB
	retryBaseMs int
	retryMax    int
	acquireSem  chan struct{}
}

// Lease is a scoped handle on one pooled connection. Release must be called,
// typically via defer immediately after a successful Lease; calls after the
// first are no-ops.
type Lease struct {
	store    *Store
	conn     *sql.Conn
	released bool
}

// Open creates (if needed) the state directory and database file, applies
// the schema, and returns a ready Store. cfg fields mirror
// config.CatalogConfig so callers don't need to import the config package
// just to open a store in tests.
func Open(ctx context.Context, stateRoot string, maxOpen, maxIdle, busyTimeoutMs, retryBaseMs, retryMax int) (*Store, error) {
	if maxOpen <= 0 {
		maxOpen = 8
	}
	if maxIdle <= 0 || maxIdle > maxOpen {
		maxIdle = maxOpen
	}
	if busyTimeoutMs <= 0 {
		busyTimeoutMs = 5000
	}
	if retryBaseMs <= 0 {
		retryBaseMs = 100
	}
	if retryMax <= 0 || retryMax > 5 {
		retryMax = 5
	}

	if err := os.MkdirAll(stateRoot, 0o750); err != nil {
		return nil, fmt.Errorf("catalog: create state root %s: %w", stateRoot, err)
	}
	dbPath := filepath.Join(stateRoot, "database.db")

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)&_pragma=temp_store(MEMORY)&_txlock=immediate",
		dbPath, busyTimeoutMs)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("catalog: open %s: %w", dbPath, err)
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("catalog: ping %s: %w", dbPath, err)
	}

	st := &Store{
		db:          db,
		retryBaseMs: retryBaseMs,
		retryMax:    retryMax,
		acquireSem:  make(chan struct{}, maxOpen),
	}

	if err := st.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}

	log.Info("catalog store opened", "path", dbPath, "max_open", maxOpen)
	return st, nil
}

// Close shuts down the underlying pool. Safe to call once at process exit.
func (s *Store) Close() error {
	return s.db.Close()
}

// Lease acquires a pooled connection. If the pool is saturated it blocks
// until a slot frees or ctx is done; it applies no time budget of its own.
// The caller MUST call Release.
func (s *Store) Lease(ctx context.Context) (*Lease, error) {
	select {
	case s.acquireSem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	obsmetrics.CatalogPoolInUse.Inc()

	conn, err := s.db.Conn(ctx)
	if err != nil {
		<-s.acquireSem
		obsmetrics.CatalogPoolInUse.Dec()
		return nil, fmt.Errorf("catalog: acquire connection: %w", err)
	}
	return &Lease{store: s, conn: conn}, nil
}

// Release returns the connection to the pool. A failing Close still frees
// the semaphore slot so a fresh connection is obtained next time — it never
// leaks capacity even if the underlying driver misbehaves.
func (l *Lease) Release() {
	if l.released {
		return
	}
	l.released = true
	if err := l.conn.Close(); err != nil {
		log.Warn("catalog: error closing leased connection, dropping it", "error", err)
	}
	<-l.store.acquireSem
	obsmetrics.CatalogPoolInUse.Dec()
}

// withRetry runs fn, retrying on SQLITE_BUSY/SQLITE_LOCKED with exponential
// backoff (base 100ms, <=5 attempts) per spec.md §4.1, then surfaces
// cratecerr.ErrDatabaseBusy if the budget is exhausted.
func (s *Store) withRetry(ctx context.Context, operation string, fn func() error) error {
	var lastErr error
	backoff := time.Duration(s.retryBaseMs) * time.Millisecond
	for attempt := 0; attempt < s.retryMax; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !isBusyErr(lastErr) {
			return lastErr
		}
		obsmetrics.CatalogRetries.WithLabelValues(operation).Inc()
		jitter := time.Duration(rand.Int63n(int64(backoff / 4)))
		select {
		case <-time.After(backoff + jitter):
		case <-ctx.Done():
			return ctx.Err()
		}
		backoff *= 2
	}
	return fmt.Errorf("%w: %v", cratecerr.ErrDatabaseBusy, lastErr)
}

func isBusyErr(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "sqlite_busy") ||
		strings.Contains(msg, "sqlite_locked") ||
		strings.Contains(msg, "database is locked")
}

// transaction runs fn inside a single immediate (write) transaction, with
// the retry policy applied to BeginTx/Commit contention.
func (s *Store) transaction(ctx context.Context, operation string, fn func(tx *sql.Tx) error) error {
	lease, err := s.Lease(ctx)
	if err != nil {
		return err
	}
	defer lease.Release()

	return s.withRetry(ctx, operation, func() error {
		tx, err := lease.conn.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		if err := fn(tx); err != nil {
			_ = tx.Rollback()
			return err
		}
		return tx.Commit()
	})
}

// Package sqlite implements the embedded SQLite store for player entities.
//
// A Backend owns one database file. Attach opens it, reconciles the schema
// (rename-aside migration, idempotent DDL, catalog seeding) and makes the
// attribute, leaderboard, sub-entity and backup operations available until
// Detach.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/playerdb/pkg/types"
)

var _ types.Store = (*Backend)(nil)

// Backend implements types.Store on a single SQLite file.
type Backend struct {
	mu       sync.RWMutex
	attached bool
	config   types.Config
	db       *sqlx.DB
	report   MigrationReport

	logger *zap.Logger
	now    func() time.Time
}

// Option configures a Backend.
type Option func(*Backend)

// WithLogger sets the structured logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(b *Backend) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(b *Backend) {
		if now != nil {
			b.now = now
		}
	}
}

// NewBackend creates a detached backend. Call Attach before use.
func NewBackend(opts ...Option) *Backend {
	b := &Backend{
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// dsn builds the modernc connection string. Foreign keys are enforced, WAL
// lets readers proceed during writes, busy_timeout waits out competing
// writers and _txlock=immediate takes the write lock at BEGIN so
// read-then-write transactions cannot deadlock on upgrade.
func dsn(path string) string {
	q := url.Values{}
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "busy_timeout(5000)")
	q.Set("_txlock", "immediate")
	return path + "?" + q.Encode()
}

// Attach opens the database described by config and initializes the schema.
// Returns ErrAlreadyAttached if already attached.
func (b *Backend) Attach(ctx context.Context, config types.Config) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.attached {
		return types.ErrAlreadyAttached
	}
	if err := config.Validate(); err != nil {
		return err
	}
	config = config.WithDefaults()

	if err := os.MkdirAll(config.DataDir, 0o755); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}

	db, err := sqlx.Open("sqlite", dsn(config.DBPath()))
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("connecting to database: %w", err)
	}

	b.db = db
	b.config = config

	report, err := b.initialize(ctx)
	if err != nil {
		db.Close()
		b.db = nil
		return fmt.Errorf("initializing schema: %w", err)
	}
	b.report = report
	b.attached = true

	b.logger.Info("store attached",
		zap.String("path", config.DBPath()),
		zap.Int("renamed_tables", len(report.Renamed)),
	)
	return nil
}

// Detach closes the database. It is idempotent; after Detach every
// operation returns ErrStoreDetached.
func (b *Backend) Detach() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return nil
	}
	b.attached = false
	if b.db != nil {
		err := b.db.Close()
		b.db = nil
		if err != nil {
			return fmt.Errorf("closing database: %w", err)
		}
	}
	b.logger.Info("store detached")
	return nil
}

// Config returns the effective configuration, defaults applied.
func (b *Backend) Config() types.Config {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.config
}

// MigrationReport returns what the last Attach renamed aside.
func (b *Backend) MigrationReport() MigrationReport {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.report
}

// handle returns the open pool or ErrStoreDetached.
func (b *Backend) handle() (*sqlx.DB, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached || b.db == nil {
		return nil, types.ErrStoreDetached
	}
	return b.db, nil
}

// exec is the query surface shared by the pool and transactions.
type exec = sqlx.ExtContext

// ops binds the operation implementations to one query surface, either the
// pool or an open transaction.
type ops struct {
	b *Backend
	q exec
}

// withTx runs fn inside one transaction. With _txlock=immediate the write
// lock is taken at BEGIN.
func (b *Backend) withTx(ctx context.Context, fn func(o *ops) error) error {
	db, err := b.handle()
	if err != nil {
		return err
	}
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&ops{b: b, q: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// withDB runs fn against the pool without a transaction, for reads and
// single-statement writes.
func (b *Backend) withDB(fn func(o *ops) error) error {
	db, err := b.handle()
	if err != nil {
		return err
	}
	return fn(&ops{b: b, q: db})
}

// timestamp is the current time in stored form.
func (b *Backend) timestamp() string {
	return types.FormatTime(b.now())
}

// newGuildID generates a UUID v7 guild id.
func newGuildID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generating UUID v7: %w", err)
	}
	return id.String(), nil
}

// validID rejects the zero id.
func validID(id types.EntityID) error {
	if id == 0 || uint64(id) > 1<<63-1 {
		return types.ErrInvalidID
	}
	return nil
}

// notFound maps sql.ErrNoRows to ErrNotFound.
func notFound(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, types.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", what, err)
}

// ensurePlayer creates the player and vitals rows if they do not exist.
func (o *ops) ensurePlayer(ctx context.Context, id types.EntityID) error {
	if err := validID(id); err != nil {
		return err
	}
	cfg := o.b.config
	_, err := o.q.ExecContext(ctx,
		`INSERT OR IGNORE INTO players (player_id, balance, bank, bank_limit, net_worth, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		int64(id), cfg.StartingBalance, cfg.StartingBank, cfg.StartingBankLimit,
		cfg.StartingBalance+cfg.StartingBank, o.b.timestamp(),
	)
	if err != nil {
		return fmt.Errorf("ensuring player %s: %w", id, err)
	}
	if _, err := o.q.ExecContext(ctx,
		"INSERT OR IGNORE INTO player_vitals (player_id) VALUES (?)", int64(id),
	); err != nil {
		return fmt.Errorf("ensuring vitals for %s: %w", id, err)
	}
	return nil
}

// EnsureEntity creates the player if missing. Repeated calls are no-ops.
func (b *Backend) EnsureEntity(ctx context.Context, id types.EntityID) error {
	return b.withTx(ctx, func(o *ops) error {
		return o.ensurePlayer(ctx, id)
	})
}

// ListEntityIDs returns every player id in ascending order.
func (b *Backend) ListEntityIDs(ctx context.Context) ([]types.EntityID, error) {
	var ids []types.EntityID
	err := b.withDB(func(o *ops) error {
		var raw []int64
		if err := sqlx.SelectContext(ctx, o.q, &raw, "SELECT player_id FROM players ORDER BY player_id"); err != nil {
			return fmt.Errorf("listing players: %w", err)
		}
		ids = make([]types.EntityID, len(raw))
		for i, r := range raw {
			ids[i] = types.EntityID(r)
		}
		return nil
	})
	return ids, err
}

// ResetEntity deletes a player and everything hanging off it: satellite,
// overflow, composite and owned sub-entity rows, and relationships on
// either side. Quarantine history is kept. Returns ErrNotFound when the
// player does not exist.
func (b *Backend) ResetEntity(ctx context.Context, id types.EntityID) error {
	if err := validID(id); err != nil {
		return err
	}
	return b.withTx(ctx, func(o *ops) error {
		if _, err := o.q.ExecContext(ctx,
			"DELETE FROM relationships WHERE user_id = ? OR target_id = ?", int64(id), int64(id),
		); err != nil {
			return fmt.Errorf("deleting relationships of %s: %w", id, err)
		}
		res, err := o.q.ExecContext(ctx, "DELETE FROM players WHERE player_id = ?", int64(id))
		if err != nil {
			return fmt.Errorf("deleting player %s: %w", id, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("player %s: %w", id, types.ErrNotFound)
		}
		o.b.logger.Info("player reset", zap.Stringer("player_id", id))
		return nil
	})
}

// Tx exposes the attribute operations inside one transaction; see
// Backend.Atomically.
type Tx struct {
	o *ops
}

// Atomically runs fn in a single transaction. Everything fn does through tx
// commits together or not at all.
func (b *Backend) Atomically(ctx context.Context, fn func(tx *Tx) error) error {
	return b.withTx(ctx, func(o *ops) error {
		return fn(&Tx{o: o})
	})
}

// GetEntity returns the merged entity view inside the transaction.
func (t *Tx) GetEntity(ctx context.Context, id types.EntityID) (types.Entity, error) {
	return t.o.getEntity(ctx, id)
}

// SetAttribute routes one attribute write inside the transaction.
func (t *Tx) SetAttribute(ctx context.Context, id types.EntityID, key string, value any) error {
	return t.o.setAttribute(ctx, id, key, value)
}

// AddBalance adjusts the wallet inside the transaction.
func (t *Tx) AddBalance(ctx context.Context, id types.EntityID, amount int64) (int64, error) {
	return t.o.addMoney(ctx, id, types.KeyBalance, amount)
}

// AddBank adjusts the bank inside the transaction.
func (t *Tx) AddBank(ctx context.Context, id types.EntityID, amount int64) (int64, error) {
	return t.o.addMoney(ctx, id, types.KeyBank, amount)
}

// IncrementCounter adjusts a counter inside the transaction.
func (t *Tx) IncrementCounter(ctx context.Context, id types.EntityID, key string, delta int64) (int64, error) {
	return t.o.incrementCounter(ctx, id, key, delta)
}

// AddItem adds inventory inside the transaction.
func (t *Tx) AddItem(ctx context.Context, id types.EntityID, item string, qty int64) (int64, error) {
	return t.o.addItem(ctx, id, item, qty)
}

// RemoveItem removes inventory inside the transaction.
func (t *Tx) RemoveItem(ctx context.Context, id types.EntityID, item string, qty int64) (int64, error) {
	return t.o.removeItem(ctx, id, item, qty)
}

// Package sqlite is the public entry point to the SQLite player store. Bot
// processes open the store here, wrap it for legacy callers and schedule
// its maintenance with their own role directory.
package sqlite

import (
	"context"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/playerdb/internal/compat"
	"github.com/mesh-intelligence/playerdb/internal/sqlite"
	"github.com/mesh-intelligence/playerdb/internal/sweep"
	"github.com/mesh-intelligence/playerdb/pkg/types"
)

// Re-exported implementation types.
type (
	Backend            = sqlite.Backend
	Option             = sqlite.Option
	Tx                 = sqlite.Tx
	RelationshipUpdate = sqlite.RelationshipUpdate
	MigrationReport    = sqlite.MigrationReport
	CompatStore        = compat.Store
	Scheduler          = sweep.Scheduler
	Job                = sweep.Job
)

// Backend options.
var (
	WithLogger = sqlite.WithLogger
	WithClock  = sqlite.WithClock
)

// NewBackend creates a detached backend. Call Attach with a Config to
// initialize it.
//
// Example:
//
//	backend := sqlite.NewBackend()
//	err := backend.Attach(ctx, types.Config{DataDir: "/var/lib/playerdb"})
//	defer backend.Detach()
func NewBackend(opts ...Option) *Backend {
	return sqlite.NewBackend(opts...)
}

// Open creates a backend and attaches it to cfg.
func Open(ctx context.Context, cfg types.Config, opts ...Option) (*Backend, error) {
	b := sqlite.NewBackend(opts...)
	if err := b.Attach(ctx, cfg); err != nil {
		return nil, err
	}
	return b, nil
}

// NewCompat wraps b in entry points that log errors instead of returning
// them.
func NewCompat(b *Backend, logger *zap.Logger) *CompatStore {
	return compat.New(b, logger)
}

// NewMaintenance schedules the quarantine sweep (when dir is not nil) and
// periodic backups for b, using b's effective configuration. Call Run on
// the result from a goroutine that lives as long as the store.
func NewMaintenance(b *Backend, dir types.RoleDirectory, logger *zap.Logger) *Scheduler {
	return sweep.New(logger, sweep.DefaultJobs(b, dir, b.Config())...)
}

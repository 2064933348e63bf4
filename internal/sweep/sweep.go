// Package sweep runs the store's recurring maintenance: releasing expired
// quarantines and taking periodic backups. Each job ticks on its own
// interval inside one errgroup; a failing run is logged and the job keeps
// its schedule.
package sweep

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mesh-intelligence/playerdb/pkg/types"
)

// Job is one recurring task. Run is called every Interval; a non-positive
// interval disables the job in Run but RunOnce still executes it.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Scheduler owns a set of jobs.
type Scheduler struct {
	jobs   []Job
	logger *zap.Logger
}

// New returns a scheduler for jobs. A nil logger discards the log.
func New(logger *zap.Logger, jobs ...Job) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{jobs: jobs, logger: logger}
}

// Jobs returns the registered job names in order.
func (s *Scheduler) Jobs() []string {
	names := make([]string, len(s.jobs))
	for i, j := range s.jobs {
		names[i] = j.Name
	}
	return names
}

// Run ticks every enabled job until ctx is cancelled. Job errors never stop
// the scheduler; Run returns nil on cancellation.
func (s *Scheduler) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, job := range s.jobs {
		if job.Interval <= 0 {
			s.logger.Debug("job disabled", zap.String("job", job.Name))
			continue
		}
		g.Go(func() error {
			ticker := time.NewTicker(job.Interval)
			defer ticker.Stop()
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-ticker.C:
					s.runJob(gctx, job)
				}
			}
		})
	}
	return g.Wait()
}

// RunOnce executes every job once, in order, and returns the joined errors.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	var errs []error
	for _, job := range s.jobs {
		if err := s.runJob(ctx, job); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", job.Name, err))
		}
	}
	return errors.Join(errs...)
}

func (s *Scheduler) runJob(ctx context.Context, job Job) error {
	start := time.Now()
	err := job.Run(ctx)
	if err != nil {
		s.logger.Error("job failed",
			zap.String("job", job.Name),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return err
	}
	s.logger.Debug("job finished",
		zap.String("job", job.Name),
		zap.Duration("elapsed", time.Since(start)),
	)
	return nil
}

// QuarantineSweeper releases expired quarantine holds.
type QuarantineSweeper interface {
	SweepExpiredQuarantines(ctx context.Context, dir types.RoleDirectory, now time.Time) (int, error)
}

// Backupper takes a pruned snapshot of the store.
type Backupper interface {
	Backup(ctx context.Context, destDir string, keep int) (string, error)
}

// QuarantineJob sweeps expired holds every interval, restoring roles through
// dir. now is the clock; nil means time.Now.
func QuarantineJob(store QuarantineSweeper, dir types.RoleDirectory, interval time.Duration, now func() time.Time) Job {
	if now == nil {
		now = time.Now
	}
	return Job{
		Name:     "quarantine-sweep",
		Interval: interval,
		Run: func(ctx context.Context) error {
			_, err := store.SweepExpiredQuarantines(ctx, dir, now())
			return err
		},
	}
}

// BackupJob snapshots the store into destDir every interval, keeping the
// newest keep files. An empty destDir uses the configured backup directory.
func BackupJob(store Backupper, destDir string, keep int, interval time.Duration) Job {
	return Job{
		Name:     "backup",
		Interval: interval,
		Run: func(ctx context.Context) error {
			_, err := store.Backup(ctx, destDir, keep)
			return err
		},
	}
}

// Store is what the default job set needs.
type Store interface {
	QuarantineSweeper
	Backupper
}

// DefaultJobs builds the standard job set from cfg. The quarantine sweep is
// only scheduled with a role directory: a release restores roles through
// it. Backups go to the store's configured directory and are disabled while
// cfg.BackupInterval is zero.
func DefaultJobs(store Store, dir types.RoleDirectory, cfg types.Config) []Job {
	cfg = cfg.WithDefaults()
	var jobs []Job
	if dir != nil {
		jobs = append(jobs, QuarantineJob(store, dir, cfg.SweepInterval, nil))
	}
	jobs = append(jobs, BackupJob(store, "", cfg.BackupKeep, cfg.BackupInterval))
	return jobs
}

package types

import (
	"errors"
	"path/filepath"
	"time"
)

// Config holds the parameters for Backend.Attach.
type Config struct {
	DataDir        string        `json:"data_dir" yaml:"data_dir"`
	DBFile         string        `json:"db_file" yaml:"db_file"`
	BackupDir      string        `json:"backup_dir" yaml:"backup_dir"`
	BackupKeep     int           `json:"backup_keep" yaml:"backup_keep"`
	BackupInterval time.Duration `json:"backup_interval" yaml:"backup_interval"`
	SweepInterval  time.Duration `json:"sweep_interval" yaml:"sweep_interval"`

	// StrictAttributes rejects unknown keys that look like typos of known
	// columns instead of storing them in the overflow table.
	StrictAttributes bool `json:"strict_attributes" yaml:"strict_attributes"`

	AccrualWindow     time.Duration `json:"accrual_window" yaml:"accrual_window"`
	StartingBalance   int64         `json:"starting_balance" yaml:"starting_balance"`
	StartingBank      int64         `json:"starting_bank" yaml:"starting_bank"`
	StartingBankLimit int64         `json:"starting_bank_limit" yaml:"starting_bank_limit"`
}

// Defaults applied by WithDefaults.
const (
	DefaultDBFile            = "playerdb.db"
	DefaultBackupKeep        = 10
	DefaultSweepInterval     = time.Minute
	DefaultStartingBankLimit = 5000
)

// Config validation errors.
var (
	ErrBackupKeepInvalid = errors.New("backup keep must not be negative")
	ErrIntervalInvalid   = errors.New("interval must not be negative")
	ErrDBFileInvalid     = errors.New("db file must be a bare file name")
	ErrStartingNegative  = errors.New("starting amounts must not be negative")
)

// WithDefaults returns a copy of c with zero fields replaced by defaults.
func (c Config) WithDefaults() Config {
	if c.DataDir == "" {
		c.DataDir = "."
	}
	if c.DBFile == "" {
		c.DBFile = DefaultDBFile
	}
	if c.BackupDir == "" {
		c.BackupDir = filepath.Join(c.DataDir, "backups")
	}
	if c.BackupKeep == 0 {
		c.BackupKeep = DefaultBackupKeep
	}
	if c.SweepInterval == 0 {
		c.SweepInterval = DefaultSweepInterval
	}
	if c.AccrualWindow == 0 {
		c.AccrualWindow = DefaultAccrualWindow
	}
	if c.StartingBankLimit == 0 {
		c.StartingBankLimit = DefaultStartingBankLimit
	}
	return c
}

// Validate checks that the Config is well-formed. It returns a sentinel error
// from this package on failure. Zero values are accepted since WithDefaults
// fills them in.
func (c Config) Validate() error {
	if c.DBFile != "" && filepath.Base(c.DBFile) != c.DBFile {
		return ErrDBFileInvalid
	}
	if c.BackupKeep < 0 {
		return ErrBackupKeepInvalid
	}
	if c.BackupInterval < 0 || c.SweepInterval < 0 || c.AccrualWindow < 0 {
		return ErrIntervalInvalid
	}
	if c.StartingBalance < 0 || c.StartingBank < 0 || c.StartingBankLimit < 0 {
		return ErrStartingNegative
	}
	return nil
}

// DBPath is the full path of the database file.
func (c Config) DBPath() string {
	c = c.WithDefaults()
	return filepath.Join(c.DataDir, c.DBFile)
}

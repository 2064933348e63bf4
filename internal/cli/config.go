package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/playerdb/internal/logging"
	"github.com/mesh-intelligence/playerdb/internal/paths"
	"github.com/mesh-intelligence/playerdb/pkg/types"
)

const (
	configFileName = "config"
	configFileType = "yaml"
	configFileExt  = "config.yaml"

	envPrefix = "PLAYERDB"
)

// Config keys. data_dir and backup_dir resolve through internal/paths and
// are not bound to the environment here.
const (
	cfgKeyDataDir           = "data_dir"
	cfgKeyBackupDir         = "backup_dir"
	cfgKeyDBFile            = "db_file"
	cfgKeyBackupKeep        = "backup_keep"
	cfgKeyBackupInterval    = "backup_interval"
	cfgKeySweepInterval     = "sweep_interval"
	cfgKeyStrictAttributes  = "strict_attributes"
	cfgKeyAccrualWindow     = "accrual_window"
	cfgKeyStartingBalance   = "starting_balance"
	cfgKeyStartingBank      = "starting_bank"
	cfgKeyStartingBankLimit = "starting_bank_limit"
	cfgKeyLogLevel          = "log_level"
	cfgKeyLogDev            = "log_dev"
	cfgKeyLogFile           = "log_file"
	cfgKeyLogMaxAge         = "log_max_age"
	cfgKeyLogRotationTime   = "log_rotation_time"
)

// configFile is the structure written to config.yaml on first run.
type configFile struct {
	DataDir           string `yaml:"data_dir,omitempty"`
	BackupDir         string `yaml:"backup_dir,omitempty"`
	DBFile            string `yaml:"db_file"`
	BackupKeep        int    `yaml:"backup_keep"`
	BackupInterval    string `yaml:"backup_interval"`
	SweepInterval     string `yaml:"sweep_interval"`
	StrictAttributes  bool   `yaml:"strict_attributes"`
	AccrualWindow     string `yaml:"accrual_window"`
	StartingBalance   int64  `yaml:"starting_balance"`
	StartingBank      int64  `yaml:"starting_bank"`
	StartingBankLimit int64  `yaml:"starting_bank_limit"`
	LogLevel          string `yaml:"log_level"`
	LogDev            bool   `yaml:"log_dev"`
	LogFile           string `yaml:"log_file,omitempty"`
	LogMaxAge         string `yaml:"log_max_age"`
	LogRotationTime   string `yaml:"log_rotation_time"`
}

func defaultConfigFile() configFile {
	d := types.Config{}.WithDefaults()
	return configFile{
		DBFile:            d.DBFile,
		BackupKeep:        d.BackupKeep,
		BackupInterval:    "0s",
		SweepInterval:     d.SweepInterval.String(),
		AccrualWindow:     d.AccrualWindow.String(),
		StartingBankLimit: d.StartingBankLimit,
		LogLevel:          "info",
		LogMaxAge:         logging.DefaultMaxAge.String(),
		LogRotationTime:   logging.DefaultRotationTime.String(),
	}
}

const configHeader = "# playerdb configuration\n# Environment variables PLAYERDB_<KEY> override these values.\n\n"

// loadConfig reads config.yaml from configDir, creating the directory and
// a default file on first run. A missing file is not an error.
func loadConfig(configDir string) (*viper.Viper, error) {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return nil, fmt.Errorf("create config dir: %w", err)
	}
	if err := writeConfigIfMissing(filepath.Join(configDir, configFileExt)); err != nil {
		return nil, fmt.Errorf("write default config: %w", err)
	}

	v := viper.New()
	def := defaultConfigFile()
	v.SetDefault(cfgKeyDBFile, def.DBFile)
	v.SetDefault(cfgKeyBackupKeep, def.BackupKeep)
	v.SetDefault(cfgKeySweepInterval, def.SweepInterval)
	v.SetDefault(cfgKeyAccrualWindow, def.AccrualWindow)
	v.SetDefault(cfgKeyStartingBankLimit, def.StartingBankLimit)
	v.SetDefault(cfgKeyLogLevel, def.LogLevel)
	v.SetDefault(cfgKeyLogMaxAge, def.LogMaxAge)
	v.SetDefault(cfgKeyLogRotationTime, def.LogRotationTime)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	for _, key := range []string{
		cfgKeyDBFile, cfgKeyBackupKeep, cfgKeyBackupInterval, cfgKeySweepInterval,
		cfgKeyStrictAttributes, cfgKeyAccrualWindow, cfgKeyStartingBalance,
		cfgKeyStartingBank, cfgKeyStartingBankLimit, cfgKeyLogLevel, cfgKeyLogDev, cfgKeyLogFile,
		cfgKeyLogMaxAge, cfgKeyLogRotationTime,
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return v, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	return v, nil
}

// writeConfigIfMissing creates config.yaml with default values if the file
// does not exist.
func writeConfigIfMissing(path string) error {
	_, err := os.Stat(path)
	if err == nil {
		return nil
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("stat config file: %w", err)
	}

	cfg := defaultConfigFile()
	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, append([]byte(configHeader), data...), 0o644)
}

// settings is everything a command needs after flags, config and
// environment are merged.
type settings struct {
	ConfigDir string
	Store     types.Config
	Log       logging.Config
}

// resolveSettings merges flag values over v.
func resolveSettings(f rootFlags, configDir string, v *viper.Viper) (settings, error) {
	dataDir, err := paths.ResolveDataDir(f.dataDir, v.GetString(cfgKeyDataDir))
	if err != nil {
		return settings{}, fmt.Errorf("resolve data dir: %w", err)
	}
	backupDir, err := paths.ResolveBackupDir(f.backupDir, v.GetString(cfgKeyBackupDir), dataDir)
	if err != nil {
		return settings{}, fmt.Errorf("resolve backup dir: %w", err)
	}

	durations := map[string]time.Duration{}
	for _, key := range []string{
		cfgKeyBackupInterval, cfgKeySweepInterval, cfgKeyAccrualWindow,
		cfgKeyLogMaxAge, cfgKeyLogRotationTime,
	} {
		d, err := parseDuration(v.GetString(key))
		if err != nil {
			return settings{}, fmt.Errorf("config %s: %w", key, err)
		}
		durations[key] = d
	}

	s := settings{
		ConfigDir: configDir,
		Store: types.Config{
			DataDir:           dataDir,
			DBFile:            v.GetString(cfgKeyDBFile),
			BackupDir:         backupDir,
			BackupKeep:        v.GetInt(cfgKeyBackupKeep),
			BackupInterval:    durations[cfgKeyBackupInterval],
			SweepInterval:     durations[cfgKeySweepInterval],
			StrictAttributes:  v.GetBool(cfgKeyStrictAttributes) || f.strict,
			AccrualWindow:     durations[cfgKeyAccrualWindow],
			StartingBalance:   v.GetInt64(cfgKeyStartingBalance),
			StartingBank:      v.GetInt64(cfgKeyStartingBank),
			StartingBankLimit: v.GetInt64(cfgKeyStartingBankLimit),
		},
		Log: logging.Config{
			Level:        v.GetString(cfgKeyLogLevel),
			Dev:          v.GetBool(cfgKeyLogDev),
			File:         v.GetString(cfgKeyLogFile),
			MaxAge:       durations[cfgKeyLogMaxAge],
			RotationTime: durations[cfgKeyLogRotationTime],
		},
	}
	if f.logLevel != "" {
		s.Log.Level = f.logLevel
	}
	if err := s.Store.Validate(); err != nil {
		return settings{}, fmt.Errorf("invalid config: %w", err)
	}
	if s.Log.MaxAge < 0 || s.Log.RotationTime < 0 {
		return settings{}, fmt.Errorf("invalid config: log rotation: %w", types.ErrIntervalInvalid)
	}
	return s, nil
}

func parseDuration(s string) (time.Duration, error) {
	if strings.TrimSpace(s) == "" {
		return 0, nil
	}
	return time.ParseDuration(strings.TrimSpace(s))
}

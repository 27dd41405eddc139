// Package config loads process settings from the environment and an optional
// .env file.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"medicopro/internal/blob"
	"medicopro/internal/core"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "MEDICOPRO"

type Config struct {
	Env      string `mapstructure:"env"`
	Port     string `mapstructure:"port"`
	LogLevel string `mapstructure:"log_level"`

	StorageDriver string `mapstructure:"storage_driver"`
	CSVPath       string `mapstructure:"csv_path"`
	SQLitePath    string `mapstructure:"sqlite_path"`
	PostgresDSN   string `mapstructure:"postgres_dsn"`

	BlobDriver      string `mapstructure:"blob_driver"`
	BlobFSRoot      string `mapstructure:"blob_fs_root"`
	BlobKey         string `mapstructure:"blob_key"`
	BlobS3Bucket    string `mapstructure:"blob_s3_bucket"`
	BlobS3Region    string `mapstructure:"blob_s3_region"`
	BlobS3Endpoint  string `mapstructure:"blob_s3_endpoint"`
	BlobS3PathStyle bool   `mapstructure:"blob_s3_path_style"`

	// ExportBlob stores exports in the blob store instead of only streaming them.
	ExportBlob       bool   `mapstructure:"export_blob"`
	RecentWindowDays int    `mapstructure:"recent_window_days"`
	TopPathologies   int    `mapstructure:"top_pathologies"`
	Timezone         string `mapstructure:"timezone"`

	location *time.Location
}

var defaults = map[string]any{
	"env":                "development",
	"port":               "8080",
	"log_level":          "info",
	"storage_driver":     string(core.StorageCSV),
	"csv_path":           "patients.csv",
	"sqlite_path":        "medicopro.db",
	"postgres_dsn":       "",
	"blob_driver":        string(blob.DriverFilesystem),
	"blob_fs_root":       "data/blob",
	"blob_key":           "patients.csv",
	"blob_s3_bucket":     "",
	"blob_s3_region":     "",
	"blob_s3_endpoint":   "",
	"blob_s3_path_style": false,
	"export_blob":        false,
	"recent_window_days": 90,
	"top_pathologies":    5,
	"timezone":           "Local",
}

// Load reads envFile (ignored when missing) and then the MEDICOPRO_* environment.
// An empty envFile means ".env".
func Load(envFile string) (*Config, error) {
	if envFile == "" {
		envFile = ".env"
	}
	v := viper.New()
	v.SetConfigFile(envFile)
	v.SetConfigType("env")
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	for key, value := range defaults {
		v.SetDefault(key, value)
		// Unmarshal only sees keys viper knows about, so bind each one.
		_ = v.BindEnv(key, EnvPrefix+"_"+strings.ToUpper(key))
	}

	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks driver names, numeric bounds and the timezone, and caches the
// resolved location.
func (c *Config) Validate() error {
	switch core.StorageDriver(c.StorageDriver) {
	case core.StorageCSV, core.StorageMemory, core.StorageSQLite, core.StorageBlob:
	case core.StoragePostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("POSTGRES_DSN is required for the postgres storage driver")
		}
	default:
		return fmt.Errorf("unsupported STORAGE_DRIVER %q", c.StorageDriver)
	}

	switch blob.Driver(c.BlobDriver) {
	case blob.DriverFilesystem, blob.DriverMemory:
	case blob.DriverS3:
		if c.BlobS3Bucket == "" && (c.StorageDriver == string(core.StorageBlob) || c.ExportBlob) {
			return fmt.Errorf("BLOB_S3_BUCKET is required for the s3 blob driver")
		}
	default:
		return fmt.Errorf("unsupported BLOB_DRIVER %q", c.BlobDriver)
	}

	if c.RecentWindowDays < 0 {
		return fmt.Errorf("RECENT_WINDOW_DAYS must not be negative, got %d", c.RecentWindowDays)
	}
	if c.TopPathologies < 1 {
		return fmt.Errorf("TOP_PATHOLOGIES must be at least 1, got %d", c.TopPathologies)
	}
	if _, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel)); err != nil {
		return fmt.Errorf("invalid LOG_LEVEL %q: %w", c.LogLevel, err)
	}

	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return fmt.Errorf("invalid TIMEZONE %q: %w", c.Timezone, err)
	}
	c.location = loc
	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Location is the zone naive stored timestamps are read in.
func (c *Config) Location() *time.Location {
	if c.location == nil {
		if loc, err := time.LoadLocation(c.Timezone); err == nil {
			c.location = loc
		} else {
			return time.Local
		}
	}
	return c.location
}

func (c *Config) BlobConfig() blob.Config {
	return blob.Config{
		Driver: blob.Driver(c.BlobDriver),
		FSRoot: c.BlobFSRoot,
		S3: blob.S3Config{
			Bucket:    c.BlobS3Bucket,
			Region:    c.BlobS3Region,
			Endpoint:  c.BlobS3Endpoint,
			PathStyle: c.BlobS3PathStyle,
		},
	}
}

// StorageConfig maps the settings onto core.OpenBackend's input.
func (c *Config) StorageConfig(logger zerolog.Logger) core.StorageConfig {
	return core.StorageConfig{
		Driver:      core.StorageDriver(c.StorageDriver),
		CSVPath:     c.CSVPath,
		SQLitePath:  c.SQLitePath,
		PostgresDSN: c.PostgresDSN,
		Blob:        c.BlobConfig(),
		BlobKey:     c.BlobKey,
		Location:    c.Location(),
		Logger:      logger,
	}
}

func (c *Config) DashboardOptions() core.DashboardOptions {
	return core.DashboardOptions{
		WindowDays: c.RecentWindowDays,
		Top:        c.TopPathologies,
	}
}

// Package config loads agrilog runtime configuration from YAML with
// AGRILOG_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Storage drivers.
const (
	StorageMemory   = "memory"
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
)

// Blob drivers.
const (
	BlobFilesystem = "fs"
	BlobMemory     = "memory"
	BlobS3         = "s3"
)

// Config holds all agrilog settings.
type Config struct {
	LogLevel string        `yaml:"log_level"`
	Server   ServerConfig  `yaml:"server"`
	Storage  StorageConfig `yaml:"storage"`
	Blob     BlobConfig    `yaml:"blob"`
	Auth     AuthConfig    `yaml:"auth"`
	Exports  ExportsConfig `yaml:"exports"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// StorageConfig selects the persistent store.
type StorageConfig struct {
	Driver      string `yaml:"driver"`
	SQLitePath  string `yaml:"sqlite_path"`
	PostgresDSN string `yaml:"postgres_dsn"`
}

// BlobConfig selects the artifact store.
type BlobConfig struct {
	Driver string   `yaml:"driver"`
	FSRoot string   `yaml:"fs_root"`
	S3     S3Config `yaml:"s3"`
}

// S3Config configures an S3 or MinIO bucket.
type S3Config struct {
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	PathStyle       bool   `yaml:"path_style"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

// AuthConfig configures password hashing and bearer tokens.
type AuthConfig struct {
	Secret     string        `yaml:"secret"`
	TokenTTL   time.Duration `yaml:"token_ttl"`
	BcryptCost int           `yaml:"bcrypt_cost"`
}

// ExportsConfig configures the background export worker.
type ExportsConfig struct {
	QueueSize int `yaml:"queue_size"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: 10 * time.Second,
		},
		Storage: StorageConfig{
			Driver:     StorageSQLite,
			SQLitePath: "agrilog.db",
		},
		Blob: BlobConfig{
			Driver: BlobFilesystem,
			FSRoot: "./blobdata",
			S3:     S3Config{Region: "us-east-1"},
		},
		Auth: AuthConfig{
			TokenTTL:   12 * time.Hour,
			BcryptCost: 10,
		},
		Exports: ExportsConfig{QueueSize: 32},
	}
}

// Load reads the YAML file at path on top of the defaults and applies
// environment overrides. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}
	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides applies AGRILOG_* environment variables.
func (c *Config) applyEnvOverrides() error {
	strs := map[string]*string{
		"AGRILOG_LOG_LEVEL":            &c.LogLevel,
		"AGRILOG_SERVER_ADDR":          &c.Server.Addr,
		"AGRILOG_STORAGE_DRIVER":       &c.Storage.Driver,
		"AGRILOG_STORAGE_SQLITE_PATH":  &c.Storage.SQLitePath,
		"AGRILOG_STORAGE_POSTGRES_DSN": &c.Storage.PostgresDSN,
		"AGRILOG_BLOB_DRIVER":          &c.Blob.Driver,
		"AGRILOG_BLOB_FS_ROOT":         &c.Blob.FSRoot,
		"AGRILOG_BLOB_S3_BUCKET":       &c.Blob.S3.Bucket,
		"AGRILOG_BLOB_S3_REGION":       &c.Blob.S3.Region,
		"AGRILOG_BLOB_S3_ENDPOINT":     &c.Blob.S3.Endpoint,
		"AGRILOG_AUTH_SECRET":          &c.Auth.Secret,
	}
	for key, target := range strs {
		if v := os.Getenv(key); v != "" {
			*target = v
		}
	}
	// standard AWS variables feed the S3 driver when agrilog-specific ones are unset
	if c.Blob.S3.AccessKeyID == "" {
		c.Blob.S3.AccessKeyID = os.Getenv("AWS_ACCESS_KEY_ID")
	}
	if c.Blob.S3.SecretAccessKey == "" {
		c.Blob.S3.SecretAccessKey = os.Getenv("AWS_SECRET_ACCESS_KEY")
	}
	if v := os.Getenv("AGRILOG_BLOB_S3_PATH_STYLE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("AGRILOG_BLOB_S3_PATH_STYLE: %w", err)
		}
		c.Blob.S3.PathStyle = b
	}
	if v := os.Getenv("AGRILOG_AUTH_TOKEN_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("AGRILOG_AUTH_TOKEN_TTL: %w", err)
		}
		c.Auth.TokenTTL = d
	}
	if v := os.Getenv("AGRILOG_EXPORTS_QUEUE_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("AGRILOG_EXPORTS_QUEUE_SIZE: %w", err)
		}
		c.Exports.QueueSize = n
	}
	return nil
}

// Validate checks settings shared by every command.
func (c *Config) Validate() error {
	var errs []error
	switch strings.ToLower(c.Storage.Driver) {
	case StorageMemory, StorageSQLite, StoragePostgres:
	default:
		errs = append(errs, fmt.Errorf("unknown storage driver %q", c.Storage.Driver))
	}
	switch strings.ToLower(c.Blob.Driver) {
	case BlobFilesystem, BlobMemory:
	case BlobS3:
		if c.Blob.S3.Bucket == "" {
			errs = append(errs, errors.New("blob.s3.bucket is required for the s3 driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown blob driver %q", c.Blob.Driver))
	}
	if c.Auth.TokenTTL <= 0 {
		errs = append(errs, errors.New("auth.token_ttl must be positive"))
	}
	if c.Exports.QueueSize <= 0 {
		errs = append(errs, errors.New("exports.queue_size must be positive"))
	}
	return errors.Join(errs...)
}

// ValidateServe additionally requires the token signing secret.
func (c *Config) ValidateServe() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(c.Auth.Secret) == "" {
		return errors.New("auth.secret is required (set AGRILOG_AUTH_SECRET)")
	}
	return nil
}

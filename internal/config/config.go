// Package config loads the bank-sync configuration: defaults, then an
// optional YAML file, then BANKSYNC_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g.
// BANKSYNC_STORE_POSTGRES_DSN for store.postgres_dsn.
const EnvPrefix = "BANKSYNC"

// Store drivers.
const (
	DriverPostgres = "postgres"
	DriverBigQuery = "bigquery"
	DriverMemory   = "memory"
)

// Config represents the top-level banksync.yaml configuration.
type Config struct {
	Log        LogConfig        `yaml:"log"`
	Provider   ProviderConfig   `yaml:"provider"`
	Sync       SyncConfig       `yaml:"sync"`
	Store      StoreConfig      `yaml:"store"`
	Notion     NotionConfig     `yaml:"notion"`
	Revalidate RevalidateConfig `yaml:"revalidate"`
	Archive    ArchiveConfig    `yaml:"archive"`
	Worker     WorkerConfig     `yaml:"worker"`
	Server     ServerConfig     `yaml:"server"`
}

// LogConfig selects level and output format.
type LogConfig struct {
	Level  string `yaml:"level" validate:"omitempty,oneof=trace debug info warn error"`
	Format string `yaml:"format" validate:"omitempty,oneof=console json"`
}

// ProviderConfig points at the financial-data provider API.
type ProviderConfig struct {
	BaseURL        string        `yaml:"base_url" validate:"required,url"`
	APIKey         string        `yaml:"api_key"`
	RequestTimeout time.Duration `yaml:"request_timeout" validate:"gt=0"`
	MaxAttempts    int           `yaml:"max_attempts" validate:"min=1"`
	BaseDelay      time.Duration `yaml:"base_delay" validate:"gt=0"`
	MaxPages       int           `yaml:"max_pages" validate:"min=1"`

	// RateLimit is requests per second across all accounts; 0 is unlimited.
	RateLimit float64 `yaml:"rate_limit" validate:"min=0"`
	Burst     int     `yaml:"burst" validate:"min=0"`
}

// SyncConfig tunes a connection sync. BatchSize is capped so a postgres
// batch stays under 65535 bind parameters at 16 per row.
type SyncConfig struct {
	BatchSize      int  `yaml:"batch_size" validate:"min=1,max=4095"`
	MaxConcurrency int  `yaml:"max_concurrency" validate:"min=1,max=64"`
	Latest         bool `yaml:"latest"`
}

// StoreConfig selects the storage backend.
type StoreConfig struct {
	Driver           string `yaml:"driver" validate:"required,oneof=postgres bigquery memory"`
	PostgresDSN      string `yaml:"postgres_dsn" validate:"required_if=Driver postgres"`
	PostgresMaxConns int    `yaml:"postgres_max_conns" validate:"min=0"`
	BigQueryProject  string `yaml:"bigquery_project" validate:"required_if=Driver bigquery"`
	BigQueryDataset  string `yaml:"bigquery_dataset" validate:"required_if=Driver bigquery"`

	// MemorySeed is a YAML fixture loaded into the memory store.
	MemorySeed string `yaml:"memory_seed"`
}

// NotionConfig enables the Notion transaction feed.
type NotionConfig struct {
	Enabled    bool    `yaml:"enabled"`
	Token      string  `yaml:"token" validate:"required_if=Enabled true"`
	DatabaseID string  `yaml:"database_id" validate:"required_if=Enabled true"`
	RateLimit  float64 `yaml:"rate_limit" validate:"min=0"`
}

// RevalidateConfig points at the dashboard cache revalidation webhook.
// An empty URL logs the tags instead.
type RevalidateConfig struct {
	URL     string        `yaml:"url" validate:"omitempty,url"`
	Secret  string        `yaml:"secret"`
	Timeout time.Duration `yaml:"timeout" validate:"gt=0"`
}

// ArchiveConfig enables the raw page archive in Cloud Storage.
type ArchiveConfig struct {
	Enabled bool   `yaml:"enabled"`
	Bucket  string `yaml:"bucket" validate:"required_if=Enabled true"`
	Prefix  string `yaml:"prefix"`
}

// WorkerConfig tunes the job queue and scheduler.
type WorkerConfig struct {
	Workers          int           `yaml:"workers" validate:"min=1"`
	BufferSize       int           `yaml:"buffer_size" validate:"min=1"`
	MaxRetries       int           `yaml:"max_retries" validate:"min=0"`
	RetryBackoff     time.Duration `yaml:"retry_backoff" validate:"gt=0"`
	Schedule         bool          `yaml:"schedule"`
	ScheduleInterval time.Duration `yaml:"schedule_interval" validate:"gt=0"`
}

// ServerConfig configures the trigger API.
type ServerConfig struct {
	Addr            string        `yaml:"addr" validate:"required"`
	AuthToken       string        `yaml:"auth_token"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"gt=0"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Log: LogConfig{Level: "info", Format: "console"},
		Provider: ProviderConfig{
			RequestTimeout: 5 * time.Second,
			MaxAttempts:    5,
			BaseDelay:      time.Second,
			MaxPages:       50,
			Burst:          1,
		},
		Sync: SyncConfig{
			BatchSize:      500,
			MaxConcurrency: 8,
		},
		Store: StoreConfig{
			Driver:           DriverPostgres,
			PostgresMaxConns: 10,
		},
		Notion: NotionConfig{RateLimit: 3},
		Revalidate: RevalidateConfig{
			Timeout: 10 * time.Second,
		},
		Worker: WorkerConfig{
			Workers:          4,
			BufferSize:       100,
			MaxRetries:       3,
			RetryBackoff:     time.Second,
			ScheduleInterval: 6 * time.Hour,
		},
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: 30 * time.Second,
		},
	}
}

// Load reads path (optional), applies environment overrides and validates.
func Load(path string) (*Config, error) {
	return LoadWithEnv(path, os.LookupEnv)
}

// LookupFunc reads one environment variable.
type LookupFunc func(key string) (string, bool)

// LoadWithEnv is Load with an explicit environment.
func LoadWithEnv(path string, lookup LookupFunc) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	}

	if err := applyEnv(reflect.ValueOf(cfg).Elem(), EnvPrefix, lookup); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks every section.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validating config: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

var durationType = reflect.TypeOf(time.Duration(0))

// applyEnv walks v and overrides each leaf field from PREFIX_<YAML_KEY>.
func applyEnv(v reflect.Value, prefix string, lookup LookupFunc) error {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		key := strings.SplitN(field.Tag.Get("yaml"), ",", 2)[0]
		if key == "" || key == "-" {
			continue
		}
		name := prefix + "_" + strings.ToUpper(key)
		fv := v.Field(i)

		if fv.Kind() == reflect.Struct {
			if err := applyEnv(fv, name, lookup); err != nil {
				return err
			}
			continue
		}

		raw, ok := lookup(name)
		if !ok {
			continue
		}
		if err := setField(fv, raw); err != nil {
			return fmt.Errorf("env %s: %w", name, err)
		}
	}
	return nil
}

func setField(fv reflect.Value, raw string) error {
	if fv.Type() == durationType {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return err
		}
		fv.SetInt(int64(d))
		return nil
	}

	switch fv.Kind() {
	case reflect.String:
		fv.SetString(raw)
	case reflect.Int, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return err
		}
		fv.SetInt(n)
	case reflect.Float64:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return err
		}
		fv.SetFloat(f)
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return err
		}
		fv.SetBool(b)
	default:
		return fmt.Errorf("unsupported field kind %s", fv.Kind())
	}
	return nil
}

// Package config loads pipeline configuration from YAML with environment
// variable overrides.
package config

import (
	"errors"
	"time"
)

const (
	defaultServerPort      = 8060
	defaultServerTimeout   = 30
	defaultDatabasePort    = 5432
	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 5
	defaultConnMaxLifetime = 5
	defaultRedisAddress    = "localhost:6379"

	defaultJobTimeout           = 15 * time.Minute
	defaultSweepInterval        = time.Minute
	defaultDedupBatchSize       = 100
	defaultDedupSchedule        = "0 */4 * * *" // every 4 hours
	defaultConfidenceThreshold  = 0.5
	defaultSourceListLimit      = 50
	defaultMetadataFetchTimeout = 30 * time.Second
)

type Config struct {
	Debug    bool           `env:"APP_DEBUG" yaml:"debug"`
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Pipeline PipelineConfig `yaml:"pipeline"`
}

type ServerConfig struct {
	Host         string        `env:"SERVER_HOST" yaml:"host"`
	Port         int           `env:"SERVER_PORT" yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	CORSOrigins  []string      `env:"CORS_ORIGINS" yaml:"cors_origins"`
}

type DatabaseConfig struct {
	Host            string        `env:"DB_HOST"     yaml:"host"`
	Port            int           `env:"DB_PORT"     yaml:"port"`
	User            string        `env:"DB_USER"     yaml:"user"`
	Password        string        `env:"DB_PASSWORD" yaml:"password"`
	DBName          string        `env:"DB_NAME"     yaml:"dbname"`
	SSLMode         string        `env:"DB_SSLMODE"  yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// RedisConfig holds Redis connection configuration for event publishing.
type RedisConfig struct {
	Address  string `env:"REDIS_ADDRESS"        yaml:"address"`
	Password string `env:"REDIS_PASSWORD"       yaml:"password"`
	DB       int    `env:"REDIS_DB"             yaml:"db"`
	Enabled  bool   `env:"REDIS_EVENTS_ENABLED" yaml:"enabled"` // Feature flag for event publishing
}

// PipelineConfig holds tunables for job execution, discovery review, and
// catalog deduplication.
type PipelineConfig struct {
	// JobTimeout is how long a job may stay running before the sweeper
	// force-fails it with a timeout error.
	JobTimeout time.Duration `env:"JOB_TIMEOUT" yaml:"job_timeout"`
	// SweepInterval is how often the timeout sweeper runs.
	SweepInterval time.Duration `yaml:"sweep_interval"`
	// DedupBatchSize is the candidate slice size for one dedup invocation.
	DedupBatchSize int `env:"DEDUP_BATCH_SIZE" yaml:"dedup_batch_size"`
	// DedupSchedule is the cron spec for automatic dedup passes.
	DedupSchedule string `env:"DEDUP_SCHEDULE" yaml:"dedup_schedule"`
	// ConfidenceThreshold gates discovered sources into review; analyses
	// below it are rejected automatically.
	ConfidenceThreshold float64 `env:"DISCOVERY_CONFIDENCE_THRESHOLD" yaml:"confidence_threshold"`
	// SourceListLimit is the default page size for source listing.
	SourceListLimit int `yaml:"source_list_limit"`
	// MetadataFetchTimeout bounds title/snippet fetches for discovered URLs.
	MetadataFetchTimeout time.Duration `yaml:"metadata_fetch_timeout"`
}

func (c *Config) Validate() error {
	if c.Server.Host == "" {
		return errors.New("server.host is required")
	}
	if c.Server.Port <= 0 {
		return errors.New("server.port is required and must be positive")
	}
	if c.Database.Host == "" {
		return errors.New("database.host is required")
	}
	if c.Database.Port <= 0 {
		return errors.New("database.port is required and must be positive")
	}
	if c.Database.User == "" {
		return errors.New("database.user is required")
	}
	if c.Database.DBName == "" {
		return errors.New("database.dbname is required")
	}
	if c.Pipeline.ConfidenceThreshold < 0 || c.Pipeline.ConfidenceThreshold > 1 {
		return errors.New("pipeline.confidence_threshold must be between 0 and 1")
	}
	if c.Pipeline.DedupBatchSize <= 0 {
		return errors.New("pipeline.dedup_batch_size must be positive")
	}
	return nil
}

func setDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = defaultServerPort
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = defaultServerTimeout * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = defaultServerTimeout * time.Second
	}
	if len(cfg.Server.CORSOrigins) == 0 {
		cfg.Server.CORSOrigins = []string{
			"http://localhost:3000", // Operator dashboard
		}
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = defaultDatabasePort
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = defaultMaxOpenConns
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = defaultMaxIdleConns
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = defaultConnMaxLifetime * time.Minute
	}
	if cfg.Redis.Address == "" {
		cfg.Redis.Address = defaultRedisAddress
	}
	if cfg.Pipeline.JobTimeout == 0 {
		cfg.Pipeline.JobTimeout = defaultJobTimeout
	}
	if cfg.Pipeline.SweepInterval == 0 {
		cfg.Pipeline.SweepInterval = defaultSweepInterval
	}
	if cfg.Pipeline.DedupBatchSize == 0 {
		cfg.Pipeline.DedupBatchSize = defaultDedupBatchSize
	}
	if cfg.Pipeline.DedupSchedule == "" {
		cfg.Pipeline.DedupSchedule = defaultDedupSchedule
	}
	if cfg.Pipeline.ConfidenceThreshold == 0 {
		cfg.Pipeline.ConfidenceThreshold = defaultConfidenceThreshold
	}
	if cfg.Pipeline.SourceListLimit == 0 {
		cfg.Pipeline.SourceListLimit = defaultSourceListLimit
	}
	if cfg.Pipeline.MetadataFetchTimeout == 0 {
		cfg.Pipeline.MetadataFetchTimeout = defaultMetadataFetchTimeout
	}
}

package config

import "time"

// Config is the root configuration for a market sync instance.
type Config struct {
	Instance  InstanceConfig  `yaml:"instance"`
	Provider  ProviderConfig  `yaml:"provider"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Cache     CacheConfig     `yaml:"cache"`
	Storage   StorageConfig   `yaml:"storage"`
	Database  DBConfig        `yaml:"database"`
	Lock      LockConfig      `yaml:"lock"`
	Server    ServerConfig    `yaml:"server"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// InstanceConfig identifies this process.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// ProviderConfig holds market data provider settings.
type ProviderConfig struct {
	BaseURL       string          `yaml:"base_url"`
	APIKey        string          `yaml:"api_key"`        // optional
	APIKeyHeader  string          `yaml:"api_key_header"` // header the key is sent in
	Currency      string          `yaml:"currency"`
	Timeout       time.Duration   `yaml:"timeout"`         // per attempt
	Backoff       []time.Duration `yaml:"backoff"`         // delay before each retry
	MaxRetryAfter time.Duration   `yaml:"max_retry_after"` // cap on a 429 Retry-After; 0 means the longest backoff
}

// RetryBudget is the longest one fetch can take: every attempt timing out,
// with the longest permitted wait before each retry.
func (p ProviderConfig) RetryBudget() time.Duration {
	wait := p.MaxRetryAfter
	for _, d := range p.Backoff {
		wait = max(wait, d)
	}
	attempts := len(p.Backoff) + 1
	return time.Duration(attempts)*p.Timeout + time.Duration(len(p.Backoff))*wait
}

// SchedulerConfig holds sync loop settings.
type SchedulerConfig struct {
	TopN            int            `yaml:"top_n"`
	Interval        time.Duration  `yaml:"interval"`
	Jitter          *time.Duration `yaml:"jitter"` // unset means DefaultJitter; 0 disables
	MinCallInterval time.Duration  `yaml:"min_call_interval"`
	HistoryMax      int            `yaml:"history_max"`
	LockName        string         `yaml:"lock_name"`
	LockLease       time.Duration  `yaml:"lock_lease"`
	FlagName        string         `yaml:"flag_name"`
	JobName         string         `yaml:"job_name"`
}

// JitterDuration returns the configured jitter, or DefaultJitter when unset.
func (s SchedulerConfig) JitterDuration() time.Duration {
	if s.Jitter == nil {
		return DefaultJitter
	}
	return *s.Jitter
}

// CacheConfig holds freshness cache settings.
type CacheConfig struct {
	TTL      time.Duration `yaml:"ttl"`
	Capacity int           `yaml:"capacity"`
}

// Storage backends.
const (
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
	BackendRedis    = "redis"
)

// StorageConfig selects the durable store.
type StorageConfig struct {
	Backend string `yaml:"backend"` // postgres | memory
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// LockConfig selects the distributed lease backend.
type LockConfig struct {
	Backend string      `yaml:"backend"` // postgres | redis; memory follows storage.backend
	Redis   RedisConfig `yaml:"redis"`
}

// RedisConfig holds a Redis connection.
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	SyncTimeout  time.Duration `yaml:"sync_timeout"` // bound on POST /api/v1/market/sync
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Enabled *bool  `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// IsEnabled reports whether /metrics is served. Unset means enabled.
func (m MetricsConfig) IsEnabled() bool {
	return m.Enabled == nil || *m.Enabled
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultInstanceID      = "marketsync"
	DefaultProviderBaseURL = "https://api.coingecko.com/api/v3"
	DefaultAPIKeyHeader    = "x-cg-demo-api-key"
	DefaultCurrency        = "usd"
	DefaultProviderTimeout = 5 * time.Second
	DefaultTopN            = 100
	DefaultInterval        = 60 * time.Second
	DefaultJitter          = 10 * time.Second
	DefaultMinCallInterval = 30 * time.Second
	DefaultHistoryMax      = 1440
	DefaultLockName        = "market_sync"
	DefaultLockLease       = 55 * time.Second
	DefaultFlagName        = "market_sync_enabled"
	DefaultJobName         = "market_sync"
	DefaultStorageBackend  = BackendMemory
	DefaultDBPort          = 5432
	DefaultDBSSLMode       = "prefer"
	DefaultMaxConns        = 10
	DefaultMinConns        = 2
	DefaultRedisKeyPrefix  = "marketsync:lock:"
	DefaultServerPort      = 8080
	DefaultReadTimeout     = 10 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultSyncSlack       = 10 * time.Second // added to the provider retry budget for store writes
	DefaultMetricsPath     = "/metrics"
	DefaultLogLevel        = "info"
	DefaultLogFormat       = "text"
)

// DefaultBackoff is the fixed retry schedule for provider calls.
var DefaultBackoff = []time.Duration{2 * time.Second, 5 * time.Second, 10 * time.Second}

func (c *Config) applyDefaults() {
	if c.Instance.ID == "" {
		c.Instance.ID = DefaultInstanceID
	}

	// Provider defaults
	if c.Provider.BaseURL == "" {
		c.Provider.BaseURL = DefaultProviderBaseURL
	}
	if c.Provider.APIKeyHeader == "" {
		c.Provider.APIKeyHeader = DefaultAPIKeyHeader
	}
	if c.Provider.Currency == "" {
		c.Provider.Currency = DefaultCurrency
	}
	if c.Provider.Timeout == 0 {
		c.Provider.Timeout = DefaultProviderTimeout
	}
	if c.Provider.Backoff == nil {
		c.Provider.Backoff = append([]time.Duration(nil), DefaultBackoff...)
	}

	// Scheduler defaults
	if c.Scheduler.TopN == 0 {
		c.Scheduler.TopN = DefaultTopN
	}
	if c.Scheduler.Interval == 0 {
		c.Scheduler.Interval = DefaultInterval
	}
	if c.Scheduler.Jitter == nil {
		jitter := DefaultJitter
		c.Scheduler.Jitter = &jitter
	}
	if c.Scheduler.MinCallInterval == 0 {
		c.Scheduler.MinCallInterval = DefaultMinCallInterval
	}
	if c.Scheduler.HistoryMax == 0 {
		c.Scheduler.HistoryMax = DefaultHistoryMax
	}
	if c.Scheduler.LockName == "" {
		c.Scheduler.LockName = DefaultLockName
	}
	if c.Scheduler.LockLease == 0 {
		c.Scheduler.LockLease = DefaultLockLease
	}
	if c.Scheduler.FlagName == "" {
		c.Scheduler.FlagName = DefaultFlagName
	}
	if c.Scheduler.JobName == "" {
		c.Scheduler.JobName = DefaultJobName
	}

	// Cache TTL tracks the tick interval unless set.
	if c.Cache.TTL == 0 {
		c.Cache.TTL = c.Scheduler.Interval
	}

	if c.Storage.Backend == "" {
		c.Storage.Backend = DefaultStorageBackend
	}
	applyDBDefaults(&c.Database)

	if c.Lock.Backend == "" {
		c.Lock.Backend = c.Storage.Backend
	}
	if c.Lock.Redis.KeyPrefix == "" {
		c.Lock.Redis.KeyPrefix = DefaultRedisKeyPrefix
	}

	// Server defaults
	if c.Server.Port == 0 {
		c.Server.Port = DefaultServerPort
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = DefaultReadTimeout
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = DefaultWriteTimeout
	}
	if c.Server.SyncTimeout == 0 {
		c.Server.SyncTimeout = c.Provider.RetryBudget() + DefaultSyncSlack
	}

	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}

	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}

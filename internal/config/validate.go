package config

import (
	"errors"
	"fmt"
	"strings"
)

// MaxTopN is the largest page the provider serves.
const MaxTopN = 250

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	if c.Provider.BaseURL == "" {
		return errors.New("provider.base_url is required")
	}
	if c.Provider.Timeout <= 0 {
		return errors.New("provider.timeout must be > 0")
	}
	for i, d := range c.Provider.Backoff {
		if d < 0 {
			return fmt.Errorf("provider.backoff[%d] must be >= 0", i)
		}
	}
	if c.Provider.MaxRetryAfter < 0 {
		return errors.New("provider.max_retry_after must be >= 0")
	}

	s := c.Scheduler
	if s.TopN < 1 || s.TopN > MaxTopN {
		return fmt.Errorf("scheduler.top_n must be between 1 and %d, got %d", MaxTopN, s.TopN)
	}
	if s.Interval <= 0 {
		return errors.New("scheduler.interval must be > 0")
	}
	if s.JitterDuration() < 0 {
		return errors.New("scheduler.jitter must be >= 0")
	}
	if s.MinCallInterval < 0 {
		return errors.New("scheduler.min_call_interval must be >= 0")
	}
	if s.HistoryMax < 1 {
		return errors.New("scheduler.history_max must be >= 1")
	}
	if s.LockName == "" {
		return errors.New("scheduler.lock_name is required")
	}
	if s.LockLease <= 0 {
		return errors.New("scheduler.lock_lease must be > 0")
	}
	if s.FlagName == "" {
		return errors.New("scheduler.flag_name is required")
	}
	if s.JobName == "" {
		return errors.New("scheduler.job_name is required")
	}

	if c.Cache.TTL <= 0 {
		return errors.New("cache.ttl must be > 0")
	}
	if c.Cache.Capacity < 0 {
		return errors.New("cache.capacity must be >= 0")
	}

	switch c.Storage.Backend {
	case BackendMemory:
	case BackendPostgres:
		if err := c.Database.validate("database"); err != nil {
			return err
		}
	default:
		return fmt.Errorf("storage.backend must be one of %s, got %q",
			strings.Join([]string{BackendPostgres, BackendMemory}, ", "), c.Storage.Backend)
	}

	switch c.Lock.Backend {
	case BackendMemory:
		if c.Storage.Backend != BackendMemory {
			return errors.New("lock.backend memory requires storage.backend memory")
		}
	case BackendPostgres:
		if c.Storage.Backend != BackendPostgres {
			return errors.New("lock.backend postgres requires storage.backend postgres")
		}
	case BackendRedis:
		if c.Lock.Redis.Addr == "" {
			return errors.New("lock.redis.addr is required")
		}
		if c.Lock.Redis.DB < 0 {
			return errors.New("lock.redis.db must be >= 0")
		}
	default:
		return fmt.Errorf("lock.backend must be one of %s, got %q",
			strings.Join([]string{BackendPostgres, BackendRedis, BackendMemory}, ", "), c.Lock.Backend)
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if budget := c.Provider.RetryBudget(); c.Server.SyncTimeout < budget {
		return fmt.Errorf("server.sync_timeout (%s) must be at least the provider retry budget (%s)",
			c.Server.SyncTimeout, budget)
	}
	if c.Metrics.Path == "" || !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with /, got %q", c.Metrics.Path)
	}

	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}

	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}

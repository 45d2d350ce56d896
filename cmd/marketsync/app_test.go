package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rickgao/market-sync/internal/config"
	"github.com/rickgao/market-sync/internal/model"
)

func TestSchedulerConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Scheduler.TopN = 25
	cfg.Scheduler.JobName = "crypto_sync"
	cfg.Cache.TTL = 90 * time.Second

	got := schedulerConfig(cfg)

	if got.Name != "crypto_sync" {
		t.Errorf("Name = %q, want crypto_sync", got.Name)
	}
	if got.TopN != 25 {
		t.Errorf("TopN = %d, want 25", got.TopN)
	}
	if got.CacheTTL != 90*time.Second {
		t.Errorf("CacheTTL = %v, want 90s", got.CacheTTL)
	}
	if got.LockLease != config.DefaultLockLease {
		t.Errorf("LockLease = %v, want %v", got.LockLease, config.DefaultLockLease)
	}
	if got.FlagName != config.DefaultFlagName {
		t.Errorf("FlagName = %q, want %q", got.FlagName, config.DefaultFlagName)
	}
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()

	if err := loadEnvFile(filepath.Join(dir, "missing.env")); err != nil {
		t.Errorf("missing file error = %v, want nil", err)
	}
	if err := loadEnvFile(""); err != nil {
		t.Errorf("empty path error = %v, want nil", err)
	}

	path := filepath.Join(dir, "test.env")
	if err := os.WriteFile(path, []byte("MARKETSYNC_TEST_ENV_VALUE=from-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("MARKETSYNC_TEST_ENV_VALUE") })

	if err := loadEnvFile(path); err != nil {
		t.Fatalf("loadEnvFile() error = %v", err)
	}
	if got := os.Getenv("MARKETSYNC_TEST_ENV_VALUE"); got != "from-file" {
		t.Errorf("env = %q, want from-file", got)
	}
}

func TestNewApp_Memory(t *testing.T) {
	cfg := config.Default()
	ctx := context.Background()

	a, err := newApp(ctx, cfg, nopLogger())
	if err != nil {
		t.Fatalf("newApp() error = %v", err)
	}
	defer a.Close()

	if a.pool != nil || a.redisLock != nil {
		t.Error("memory config opened external connections")
	}

	snap, source := a.accessor.GetSnapshot(ctx)
	if source != model.SourceEmpty || !snap.Degraded {
		t.Errorf("GetSnapshot() = %s degraded=%v, want empty degraded", source, snap.Degraded)
	}

	// The memory store doubles as the lock backend.
	ok, err := a.store.TryAcquire(ctx, cfg.Scheduler.LockName, time.Minute)
	if err != nil || !ok {
		t.Errorf("TryAcquire() = %v, %v, want true, nil", ok, err)
	}
}

func TestOpenStore_UnknownBackend(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.Backend = "sqlite"

	if _, _, err := openStore(context.Background(), cfg, nopLogger()); err == nil {
		t.Error("openStore() error = nil, want error")
	}
}

func nopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

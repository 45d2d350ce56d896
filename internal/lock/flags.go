package lock

import (
	"context"
	"log/slog"
)

// FlagReader reads a remote enable flag. found is false when no record exists.
type FlagReader interface {
	ReadFlag(ctx context.Context, name string) (enabled, found bool, err error)
}

// Flags answers whether a named job may run.
//
// A missing record means enabled: new jobs ship switched on and are turned off
// explicitly. A read error is also treated as enabled so a control-plane outage
// does not halt syncing. Both cases log a warning.
type Flags struct {
	reader FlagReader
	logger *slog.Logger
}

// NewFlags creates a flag checker over reader.
func NewFlags(reader FlagReader, logger *slog.Logger) *Flags {
	if logger == nil {
		logger = slog.Default()
	}
	return &Flags{
		reader: reader,
		logger: logger.With("component", "flags"),
	}
}

// IsEnabled reports whether the flag allows the job to run.
func (f *Flags) IsEnabled(ctx context.Context, name string) bool {
	enabled, found, err := f.reader.ReadFlag(ctx, name)
	if err != nil {
		f.logger.Warn("flag read failed, defaulting to enabled", "flag", name, "err", err)
		return true
	}
	if !found {
		f.logger.Warn("flag not set, defaulting to enabled", "flag", name)
		return true
	}
	return enabled
}

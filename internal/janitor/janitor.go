// AngelaMos | 2026
// janitor.go

package janitor

import (
	"context"
	"log/slog"
	"time"
)

type Purger interface {
	PurgeExpired(ctx context.Context, grace time.Duration) (int64, error)
}

type Observer interface {
	Purged(kind string, n int64)
}

type Target struct {
	Kind   string
	Purger Purger
}

type Config struct {
	Interval time.Duration
	Grace    time.Duration
}

// Janitor deletes sessions and recovery tokens that stopped being usable
// more than Grace ago. Verification codes expire in Redis on their own.
type Janitor struct {
	cfg      Config
	targets  []Target
	observer Observer
	logger   *slog.Logger
}

func New(cfg Config, logger *slog.Logger, observer Observer, targets ...Target) *Janitor {
	if logger == nil {
		logger = slog.Default()
	}

	return &Janitor{
		cfg:      cfg,
		targets:  targets,
		observer: observer,
		logger:   logger,
	}
}

// Run sweeps once immediately and then every Interval until ctx is done.
func (j *Janitor) Run(ctx context.Context) {
	if j.cfg.Interval <= 0 {
		return
	}

	j.RunOnce(ctx)

	ticker := time.NewTicker(j.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.RunOnce(ctx)
		}
	}
}

func (j *Janitor) RunOnce(ctx context.Context) map[string]int64 {
	purged := make(map[string]int64, len(j.targets))

	for _, t := range j.targets {
		n, err := t.Purger.PurgeExpired(ctx, j.cfg.Grace)
		if err != nil {
			j.logger.Warn("purge failed", "kind", t.Kind, "error", err)
			continue
		}

		purged[t.Kind] = n
		if j.observer != nil {
			j.observer.Purged(t.Kind, n)
		}
		if n > 0 {
			j.logger.Info("purged expired records", "kind", t.Kind, "count", n)
		}
	}

	return purged
}

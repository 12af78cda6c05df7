package guardrails

import (
	"context"
	"log/slog"
	"time"
)

// ResetDaemonConfig configures HourlyResetDaemon's tick interval.
type ResetDaemonConfig struct {
	ResetInterval time.Duration
}

// DefaultResetDaemonConfig resets the hourly counter every hour.
func DefaultResetDaemonConfig() ResetDaemonConfig {
	return ResetDaemonConfig{ResetInterval: time.Hour}
}

// ResetDaemon periodically zeroes a RuntimeMetrics' hourly token counter,
// modelled on tarsy's cleanup.Service: a ticker loop cancelled via context.
type ResetDaemon struct {
	metrics *RuntimeMetrics
	config  ResetDaemonConfig

	cancel context.CancelFunc
	done   chan struct{}
}

func NewResetDaemon(metrics *RuntimeMetrics, config ResetDaemonConfig) *ResetDaemon {
	return &ResetDaemon{metrics: metrics, config: config}
}

// Start launches the background reset loop. No-op if already started.
func (d *ResetDaemon) Start(ctx context.Context) {
	if d.cancel != nil {
		return
	}
	ctx, d.cancel = context.WithCancel(ctx)
	d.done = make(chan struct{})

	go d.run(ctx)

	slog.Info("Guardrails hourly reset daemon started", "interval", d.config.ResetInterval)
}

// Stop signals the loop to exit and waits for it to finish.
func (d *ResetDaemon) Stop() {
	if d.cancel == nil {
		return
	}
	d.cancel()
	<-d.done
	slog.Info("Guardrails hourly reset daemon stopped")
}

func (d *ResetDaemon) run(ctx context.Context) {
	defer close(d.done)

	ticker := time.NewTicker(d.config.ResetInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			previous := d.metrics.GetTokensThisHour()
			d.metrics.ResetHourly()
			slog.Debug("Hourly token counter reset", "previous_tokens", previous)
		}
	}
}

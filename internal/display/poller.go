package display

import (
	"context"
	"log/slog"
	"time"

	"github.com/hazz-dev/pingwatch/internal/logfile"
)

// Drainer returns and removes the records currently in the log.
type Drainer interface {
	Drain() ([]logfile.Record, error)
}

// Poller drains the log on a fixed interval and hands records to sinks.
type Poller struct {
	drainer  Drainer
	interval time.Duration
	sinks    []Sink
	logger   *slog.Logger
}

// NewPoller creates a Poller. Pass nil logger to use the default logger.
func NewPoller(d Drainer, interval time.Duration, logger *slog.Logger, sinks ...Sink) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &Poller{
		drainer:  d,
		interval: interval,
		sinks:    sinks,
		logger:   logger,
	}
}

// Run polls until ctx is cancelled, then drains one last time so records
// written just before shutdown are not left behind.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.Poll(context.WithoutCancel(ctx))
			return
		case <-ticker.C:
			p.Poll(ctx)
		}
	}
}

// Poll drains once and delivers the records. It returns how many were drained.
func (p *Poller) Poll(ctx context.Context) int {
	records, err := p.drainer.Drain()
	if err != nil {
		p.logger.Error("draining log file", "error", err)
		return 0
	}
	if s, ok := p.drainer.(interface{ Skipped() int }); ok && s.Skipped() > 0 {
		p.logger.Warn("skipped unparsable log lines", "count", s.Skipped())
	}

	for _, r := range records {
		for _, sink := range p.sinks {
			if err := sink.Show(ctx, r); err != nil {
				p.logger.Error("delivering record", "timestamp", r.Timestamp, "error", err)
			}
		}
	}
	return len(records)
}

package main

import (
	"fmt"
	"log/slog"

	"github.com/hazz-dev/pingwatch/internal/checker"
	"github.com/hazz-dev/pingwatch/internal/config"
	"github.com/hazz-dev/pingwatch/internal/debuglog"
	"github.com/hazz-dev/pingwatch/internal/logfile"
	"github.com/hazz-dev/pingwatch/internal/notify"
	"github.com/hazz-dev/pingwatch/internal/scheduler"
	"github.com/hazz-dev/pingwatch/internal/storage"
	"github.com/hazz-dev/pingwatch/internal/version"
)

type paths struct {
	log   string
	debug string
}

func resolvePaths(cfg *config.Config) (paths, error) {
	r := logfile.ResolverFor(cfg.Log.Dir)
	logPath, err := r.Resolve(cfg.Log.File)
	if err != nil {
		return paths{}, fmt.Errorf("resolving log file: %w", err)
	}
	debugPath, err := r.Resolve(cfg.Log.DebugFile)
	if err != nil {
		return paths{}, fmt.Errorf("resolving debug log: %w", err)
	}
	return paths{log: logPath, debug: debugPath}, nil
}

func newChecker(cfg *config.Config) *checker.HTTPChecker {
	ua := cfg.Check.UserAgent
	if ua == "" {
		ua = version.UserAgent()
	}
	return checker.NewHTTP(checker.Options{
		Timeout:   cfg.Check.Timeout.Duration,
		UserAgent: ua,
		Headers:   cfg.Check.Headers,
	})
}

// producer is the background half: a runner writing to the log file, plus
// the notifier it reports to.
type producer struct {
	runner   *scheduler.Runner
	notifier *notify.Notifier
}

func newProducer(cfg *config.Config, p paths, logger *slog.Logger) (*producer, error) {
	debug := debuglog.New(p.debug, nil)
	writer := logfile.NewWriter(p.log, debug)

	settings := scheduler.Settings{
		Jitter: scheduler.Jitter{
			Base: cfg.Schedule.Base.Duration,
			Min:  cfg.Schedule.JitterMin.Duration,
			Max:  cfg.Schedule.JitterMax.Duration,
		},
		Cooldown:      cfg.Schedule.Cooldown.Duration,
		MaxIterations: cfg.Schedule.MaxIterations,
	}
	runner, err := scheduler.New(cfg.Endpoints, newChecker(cfg), writer, settings, logger)
	if err != nil {
		return nil, err
	}
	runner.SetDebug(debug)

	var sender notify.Sender
	if cfg.Notify.Webhook.URL != "" {
		sender = notify.NewWebhook(cfg.Notify.Webhook.URL, cfg.Notify.Webhook.Timeout.Duration)
	} else {
		sender = notify.NewLogSender(logger)
	}
	notifier := notify.New(sender, notify.Options{
		Mode:        notify.Mode(cfg.Notify.Mode),
		MinInterval: cfg.Notify.MinInterval.Duration,
		Timeout:     cfg.Notify.Webhook.Timeout.Duration,
		Runner:      runner.ID(),
	}, logger)
	runner.SetOnResult(notifier.Notify)

	return &producer{runner: runner, notifier: notifier}, nil
}

// openArchive opens the configured archive, or returns nil when it is disabled.
func openArchive(cfg *config.Config) (*storage.DB, error) {
	if cfg.Storage.Path == "" {
		return nil, nil
	}
	db, err := storage.Open(cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("opening archive: %w", err)
	}
	return db, nil
}

package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hazz-dev/pingwatch/internal/pingerr"
)

// Duration is a time.Duration written in YAML as a string like "30s". Parse
// fills it so that errors can name the offending field.
type Duration struct {
	time.Duration
}

// CheckConfig holds settings for a single health check request.
type CheckConfig struct {
	Timeout   Duration          `yaml:"timeout"`
	UserAgent string            `yaml:"user_agent"`
	Headers   map[string]string `yaml:"headers"`
}

// ScheduleConfig holds the runner cadence.
type ScheduleConfig struct {
	Base          Duration `yaml:"base"`
	JitterMin     Duration `yaml:"jitter_min"`
	JitterMax     Duration `yaml:"jitter_max"`
	Cooldown      Duration `yaml:"cooldown"`
	MaxIterations int      `yaml:"max_iterations"`
}

// LogConfig holds the log file locations and the drain cadence.
type LogConfig struct {
	Dir           string   `yaml:"dir"`
	File          string   `yaml:"file"`
	DebugFile     string   `yaml:"debug_file"`
	DrainInterval Duration `yaml:"drain_interval"`
}

// WebhookConfig holds notification webhook settings.
type WebhookConfig struct {
	URL     string   `yaml:"url"`
	Timeout Duration `yaml:"timeout"`
}

// NotifyConfig holds notification settings.
type NotifyConfig struct {
	Mode        string        `yaml:"mode"`
	MinInterval Duration      `yaml:"min_interval"`
	Webhook     WebhookConfig `yaml:"webhook"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Address string `yaml:"address"`
}

// StorageConfig holds archive settings.
type StorageConfig struct {
	Path string `yaml:"path"`
}

// Config is the root application configuration.
type Config struct {
	Endpoints []string       `yaml:"endpoints"`
	Check     CheckConfig    `yaml:"check"`
	Schedule  ScheduleConfig `yaml:"schedule"`
	Log       LogConfig      `yaml:"log"`
	Notify    NotifyConfig   `yaml:"notify"`
	Server    ServerConfig   `yaml:"server"`
	Storage   StorageConfig  `yaml:"storage"`
}

const (
	NotifyEvery  = "every"
	NotifyChange = "change"
	NotifyOff    = "off"
)

var validNotifyModes = map[string]bool{
	NotifyEvery:  true,
	NotifyChange: true,
	NotifyOff:    true,
}

// Load reads, parses, and validates the config file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return Parse(data)
}

// Parse parses and validates a YAML document, applying defaults to omitted fields.
func Parse(data []byte) (*Config, error) {
	// Durations are decoded as strings first so errors can name the field.
	type rawConfig struct {
		Endpoints []string `yaml:"endpoints"`
		Check     struct {
			Timeout   string            `yaml:"timeout"`
			UserAgent string            `yaml:"user_agent"`
			Headers   map[string]string `yaml:"headers"`
		} `yaml:"check"`
		Schedule struct {
			Base          string `yaml:"base"`
			JitterMin     string `yaml:"jitter_min"`
			JitterMax     string `yaml:"jitter_max"`
			Cooldown      string `yaml:"cooldown"`
			MaxIterations int    `yaml:"max_iterations"`
		} `yaml:"schedule"`
		Log struct {
			Dir           string `yaml:"dir"`
			File          string `yaml:"file"`
			DebugFile     string `yaml:"debug_file"`
			DrainInterval string `yaml:"drain_interval"`
		} `yaml:"log"`
		Notify struct {
			Mode        string `yaml:"mode"`
			MinInterval string `yaml:"min_interval"`
			Webhook     struct {
				URL     string `yaml:"url"`
				Timeout string `yaml:"timeout"`
			} `yaml:"webhook"`
		} `yaml:"notify"`
		Server  ServerConfig   `yaml:"server"`
		Storage *StorageConfig `yaml:"storage"`
	}

	var raw rawConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if len(raw.Endpoints) == 0 {
		return nil, pingerr.New(pingerr.ErrConfiguration, nil, "at least one endpoint must be configured")
	}
	for i, ep := range raw.Endpoints {
		if err := validateEndpoint(ep); err != nil {
			return nil, pingerr.New(pingerr.ErrConfiguration, err, "endpoint[%d]", i)
		}
	}

	cfg := &Config{
		Endpoints: raw.Endpoints,
		Check: CheckConfig{
			UserAgent: raw.Check.UserAgent,
			Headers:   raw.Check.Headers,
		},
		Schedule: ScheduleConfig{
			MaxIterations: raw.Schedule.MaxIterations,
		},
		Log: LogConfig{
			Dir:       raw.Log.Dir,
			File:      raw.Log.File,
			DebugFile: raw.Log.DebugFile,
		},
		Notify: NotifyConfig{
			Mode: raw.Notify.Mode,
			Webhook: WebhookConfig{
				URL: raw.Notify.Webhook.URL,
			},
		},
		Server: raw.Server,
	}

	durations := []struct {
		name string
		raw  string
		def  time.Duration
		dst  *Duration
	}{
		{"check.timeout", raw.Check.Timeout, 30 * time.Second, &cfg.Check.Timeout},
		{"schedule.base", raw.Schedule.Base, 55 * time.Second, &cfg.Schedule.Base},
		{"schedule.jitter_min", raw.Schedule.JitterMin, 5 * time.Second, &cfg.Schedule.JitterMin},
		{"schedule.jitter_max", raw.Schedule.JitterMax, 10 * time.Second, &cfg.Schedule.JitterMax},
		{"schedule.cooldown", raw.Schedule.Cooldown, 60 * time.Second, &cfg.Schedule.Cooldown},
		{"log.drain_interval", raw.Log.DrainInterval, time.Second, &cfg.Log.DrainInterval},
		{"notify.min_interval", raw.Notify.MinInterval, 0, &cfg.Notify.MinInterval},
		{"notify.webhook.timeout", raw.Notify.Webhook.Timeout, 10 * time.Second, &cfg.Notify.Webhook.Timeout},
	}
	for _, d := range durations {
		if d.raw == "" {
			d.dst.Duration = d.def
			continue
		}
		v, err := time.ParseDuration(d.raw)
		if err != nil {
			return nil, pingerr.New(pingerr.ErrConfiguration, err, "invalid %s %q", d.name, d.raw)
		}
		if v < 0 {
			return nil, pingerr.New(pingerr.ErrConfiguration, nil, "%s must not be negative", d.name)
		}
		d.dst.Duration = v
	}

	// Apply defaults.
	if cfg.Log.File == "" {
		cfg.Log.File = "service_logs.json"
	}
	if cfg.Log.DebugFile == "" {
		cfg.Log.DebugFile = "service_debug.log"
	}
	if cfg.Notify.Mode == "" {
		cfg.Notify.Mode = NotifyEvery
	}
	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8080"
	}
	if raw.Storage == nil {
		cfg.Storage.Path = "pingwatch.db"
	} else {
		cfg.Storage = *raw.Storage
	}

	if cfg.Check.Timeout.Duration == 0 {
		return nil, pingerr.New(pingerr.ErrConfiguration, nil, "check.timeout must be positive")
	}
	if cfg.Log.DrainInterval.Duration == 0 {
		return nil, pingerr.New(pingerr.ErrConfiguration, nil, "log.drain_interval must be positive")
	}
	if cfg.Schedule.JitterMax.Duration < cfg.Schedule.JitterMin.Duration {
		return nil, pingerr.New(pingerr.ErrConfiguration, nil, "schedule.jitter_max (%s) is less than schedule.jitter_min (%s)",
			cfg.Schedule.JitterMax.Duration, cfg.Schedule.JitterMin.Duration)
	}
	if cfg.Schedule.MaxIterations < 0 {
		return nil, pingerr.New(pingerr.ErrConfiguration, nil, "schedule.max_iterations must not be negative")
	}
	if !validNotifyModes[cfg.Notify.Mode] {
		return nil, pingerr.New(pingerr.ErrConfiguration, nil, "invalid notify.mode %q (must be every, change, or off)", cfg.Notify.Mode)
	}

	return cfg, nil
}

func validateEndpoint(s string) error {
	if s == "" {
		return fmt.Errorf("url is required")
	}
	u, err := url.Parse(s)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q in %q (must be http or https)", u.Scheme, s)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host in %q", s)
	}
	return nil
}

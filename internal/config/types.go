package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

type Config struct {
	Browser BrowserConfig `json:"browser"`
	Watch   WatchConfig   `json:"watch"`
	Alerts  AlertsConfig  `json:"alerts"`
	Logging LoggingConfig `json:"logging"`

	// Telegram is the optional remote control surface. If omitted or
	// disabled, the daemon runs headless and is driven by signals only.
	Telegram *TelegramConfig `json:"telegram,omitempty"`

	// Storage persists the monitoring flag and the notified-order set.
	// If omitted, state lives in memory and resets on restart.
	Storage *StorageConfig `json:"storage,omitempty"`
}

// BrowserConfig points the daemon at a Chrome/Chromium instance started
// with --remote-debugging-port.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
type BrowserConfig struct {
	// DevtoolsURL is the DevTools HTTP endpoint, e.g. "http://127.0.0.1:9222".
	DevtoolsURL string `json:"devtools_url"`

	// URLFilters limits which pages get a watcher. A page is watched when its
	// URL contains any of these substrings. Empty means watch every page.
	URLFilters []string `json:"url_filters,omitempty"`

	// AttachInterval is how often the target list is re-polled for new pages.
	// Default "2s".
	AttachInterval string `json:"attach_interval,omitempty"`

	// EvalTimeout bounds a single in-page evaluation. Default "10s".
	EvalTimeout string `json:"eval_timeout,omitempty"`
}

// WatchConfig controls the per-page scan loop.
type WatchConfig struct {
	// Debounce collapses bursts of DOM mutations into one rescan. Default "500ms".
	Debounce string `json:"debounce,omitempty"`

	// RescanInterval is the periodic fallback rescan. Default "5s".
	RescanInterval string `json:"rescan_interval,omitempty"`

	// Highlight and Banner toggle the in-page visual feedback.
	Highlight bool `json:"highlight"`
	Banner    bool `json:"banner"`
}

// AlertsConfig controls desktop notifications and the audible alert.
type AlertsConfig struct {
	Sound bool `json:"sound"`

	// AutoClear retires a notification id from the active registry after this
	// long. Default "30s".
	AutoClear string `json:"auto_clear,omitempty"`

	RatePerSec int `json:"rate_per_sec,omitempty"` // default 3
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
	// MaxSizeMB and MaxBackups feed the rotation policy. Zero keeps defaults.
	MaxSizeMB  int `json:"max_size_mb,omitempty"`
	MaxBackups int `json:"max_backups,omitempty"`
}

type TelegramConfig struct {
	Enabled      bool    `json:"enabled"`
	Token        string  `json:"token"`
	OwnerUserIDs []int64 `json:"owner_user_ids"`
	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout,omitempty"`
}

type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// ParseDuration resolves a duration field, falling back to def when the field
// is empty or zero. Negative values are rejected.
func ParseDuration(path, raw string, def time.Duration) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	}
	if d == 0 {
		return def, nil
	}
	return d, nil
}

// Validate rejects configs that cannot possibly run. It is installed as the
// manager's validator so hot reloads never commit a broken config.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	if strings.TrimSpace(cfg.Browser.DevtoolsURL) == "" {
		return errors.New("browser.devtools_url is required")
	}
	if _, err := url.Parse(cfg.Browser.DevtoolsURL); err != nil {
		return fmt.Errorf("browser.devtools_url: %w", err)
	}
	if _, err := ParseDuration("browser.attach_interval", cfg.Browser.AttachInterval, 0); err != nil {
		return err
	}
	if _, err := ParseDuration("browser.eval_timeout", cfg.Browser.EvalTimeout, 0); err != nil {
		return err
	}
	if _, err := ParseDuration("watch.debounce", cfg.Watch.Debounce, 0); err != nil {
		return err
	}
	if _, err := ParseDuration("watch.rescan_interval", cfg.Watch.RescanInterval, 0); err != nil {
		return err
	}
	if _, err := ParseDuration("alerts.auto_clear", cfg.Alerts.AutoClear, 0); err != nil {
		return err
	}
	if cfg.Alerts.RatePerSec < 0 {
		return errors.New("alerts.rate_per_sec must be >= 0")
	}
	if tg := cfg.Telegram; tg != nil && tg.Enabled {
		if strings.TrimSpace(tg.Token) == "" {
			return errors.New("telegram.token is required when telegram is enabled")
		}
		if _, err := ParseDuration("telegram.poll_timeout", tg.PollTimeout, 0); err != nil {
			return err
		}
	}
	if st := cfg.Storage; st != nil {
		switch strings.ToLower(strings.TrimSpace(st.Driver)) {
		case "", "none", "memory":
		case "sqlite", "sqlite3":
			if strings.TrimSpace(st.Path) == "" {
				return errors.New("storage.path is required for the sqlite driver")
			}
		default:
			return fmt.Errorf("storage.driver: unknown driver %q", st.Driver)
		}
		if _, err := ParseDuration("storage.busy_timeout", st.BusyTimeout, 0); err != nil {
			return err
		}
	}
	return nil
}

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "config.yaml", `
browser:
  devtools_url: "http://127.0.0.1:9222"
  url_filters: ["mercadolivre"]
  attach_interval: "2s"
watch:
  debounce: "500ms"
  rescan_interval: "5s"
  highlight: true
  banner: true
alerts:
  sound: true
  auto_clear: "30s"
logging:
  level: "debug"
  console: true
  file:
    enabled: false
    path: ""
storage:
  driver: "sqlite"
  path: "./sentinela.db"
`)
	m := NewManager(path)
	cfg, err := m.Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Browser.DevtoolsURL != "http://127.0.0.1:9222" {
		t.Fatalf("devtools_url = %q", cfg.Browser.DevtoolsURL)
	}
	if len(cfg.Browser.URLFilters) != 1 || cfg.Browser.URLFilters[0] != "mercadolivre" {
		t.Fatalf("url_filters = %v", cfg.Browser.URLFilters)
	}
	if !cfg.Watch.Highlight || !cfg.Watch.Banner {
		t.Fatal("watch toggles not decoded")
	}
	if cfg.Storage == nil || cfg.Storage.Driver != "sqlite" {
		t.Fatalf("storage = %+v", cfg.Storage)
	}
	if got := m.Get(); got != cfg {
		t.Fatal("Get must return the committed config")
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := writeFile(t, "config.yaml", `
browser:
  devtools_url: "http://127.0.0.1:9222"
  devtools_port: 9222
watch: {}
alerts: {}
logging: {level: "info", console: true, file: {enabled: false, path: ""}}
`)
	_, err := NewManager(path).Load()
	if err == nil || !strings.Contains(err.Error(), "devtools_port") {
		t.Fatalf("expected unknown-field error, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Browser: BrowserConfig{DevtoolsURL: "http://127.0.0.1:9222"},
		}
	}

	if err := Validate(base()); err != nil {
		t.Fatalf("minimal config must validate: %v", err)
	}

	c := base()
	c.Browser.DevtoolsURL = ""
	if err := Validate(c); err == nil {
		t.Fatal("missing devtools_url must fail")
	}

	c = base()
	c.Watch.Debounce = "half a second"
	if err := Validate(c); err == nil {
		t.Fatal("bad duration must fail")
	}

	c = base()
	c.Telegram = &TelegramConfig{Enabled: true}
	if err := Validate(c); err == nil {
		t.Fatal("enabled telegram without token must fail")
	}

	c = base()
	c.Storage = &StorageConfig{Driver: "sqlite"}
	if err := Validate(c); err == nil {
		t.Fatal("sqlite without path must fail")
	}

	c = base()
	c.Storage = &StorageConfig{Driver: "redis"}
	if err := Validate(c); err == nil {
		t.Fatal("unknown storage driver must fail")
	}
}

func TestParseDuration(t *testing.T) {
	d, err := ParseDuration("watch.debounce", "", 500*time.Millisecond)
	if err != nil || d != 500*time.Millisecond {
		t.Fatalf("empty field: d=%v err=%v", d, err)
	}
	d, err = ParseDuration("watch.debounce", "750ms", 500*time.Millisecond)
	if err != nil || d != 750*time.Millisecond {
		t.Fatalf("explicit field: d=%v err=%v", d, err)
	}
	if _, err := ParseDuration("watch.debounce", "-1s", 0); err == nil {
		t.Fatal("negative duration must fail")
	}
}

func TestSubscribePublishLatestWins(t *testing.T) {
	m := NewManager("unused")
	ch := m.Subscribe(1)
	defer m.Unsubscribe(ch)

	a := &Config{}
	b := &Config{}
	m.publish(a)
	m.publish(b) // full buffer: a is dropped, b delivered

	got := <-ch
	if got != b {
		t.Fatal("expected the newest config to win")
	}
	select {
	case extra := <-ch:
		t.Fatalf("unexpected extra delivery: %p", extra)
	default:
	}
}

// Package app wires the daemon together: config, logging, storage, the
// coordinator, the browser watchers, notifications, and the optional
// Telegram control surface.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"sentinela/internal/browser"
	"sentinela/internal/config"
	"sentinela/internal/control"
	"sentinela/internal/coordinator"
	"sentinela/internal/eventbus"
	"sentinela/internal/notify"
	"sentinela/internal/protocol"
	"sentinela/internal/runtime/supervisor"
	"sentinela/internal/storage"
	"sentinela/internal/watcher"
	logx "sentinela/pkg/logx"
)

type App struct {
	cfgMgr *config.Manager
	cfg    *config.Config

	logSvc *logx.Service
	log    logx.Logger

	bus       eventbus.Bus
	store     storage.Store
	notifySvc *notify.Service
	coord     *coordinator.Coordinator
	telegram  *control.Telegram // nil when disabled

	client      *browser.Client
	managerOpts watcher.ManagerOptions
	manager     *watcher.Manager // built in Run (needs the supervisor)
}

// New builds the full component graph from the committed config. Nothing
// starts running until Run.
func New(cfgMgr *config.Manager) (*App, error) {
	cfg := cfgMgr.Get()
	if cfg == nil {
		return nil, fmt.Errorf("config not loaded")
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled:    cfg.Logging.File.Enabled,
			Path:       cfg.Logging.File.Path,
			MaxSizeMB:  cfg.Logging.File.MaxSizeMB,
			MaxBackups: cfg.Logging.File.MaxBackups,
		},
	})
	cfgMgr.SetLogger(log.With(logx.String("component", "config")))

	a := &App{cfgMgr: cfgMgr, cfg: cfg, logSvc: logSvc, log: log, bus: eventbus.New()}

	if err := a.build(cfg); err != nil {
		_ = logSvc.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(cfg *config.Config) error {
	var storeCfg storage.Config
	if cfg.Storage != nil {
		busy, err := config.ParseDuration("storage.busy_timeout", cfg.Storage.BusyTimeout, 5*time.Second)
		if err != nil {
			return err
		}
		storeCfg = storage.Config{
			Driver:      cfg.Storage.Driver,
			Path:        cfg.Storage.Path,
			BusyTimeout: busy,
		}
	}
	store, err := storage.Open(storeCfg, a.log.With(logx.String("component", "storage")))
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	a.store = store
	if store == nil {
		a.log.Info("storage disabled; state will not survive restarts")
	}

	autoClear, err := config.ParseDuration("alerts.auto_clear", cfg.Alerts.AutoClear, 30*time.Second)
	if err != nil {
		return err
	}
	a.notifySvc = notify.NewService(notify.Config{
		RatePerSec: cfg.Alerts.RatePerSec,
		AutoClear:  autoClear,
	}, &notify.DesktopSender{}, a.log.With(logx.String("component", "notify")))

	a.coord = coordinator.New(a.bus, a.store, a.notifySvc,
		a.log.With(logx.String("component", "coordinator")))

	evalTimeout, err := config.ParseDuration("browser.eval_timeout", cfg.Browser.EvalTimeout, 10*time.Second)
	if err != nil {
		return err
	}
	client := browser.NewClient(browser.Config{
		DevtoolsURL: cfg.Browser.DevtoolsURL,
		EvalTimeout: evalTimeout,
	}, a.log.With(logx.String("component", "browser")))

	attachInterval, err := config.ParseDuration("browser.attach_interval", cfg.Browser.AttachInterval, 2*time.Second)
	if err != nil {
		return err
	}
	debounceD, err := config.ParseDuration("watch.debounce", cfg.Watch.Debounce, 500*time.Millisecond)
	if err != nil {
		return err
	}
	rescan, err := config.ParseDuration("watch.rescan_interval", cfg.Watch.RescanInterval, 5*time.Second)
	if err != nil {
		return err
	}
	a.managerOpts = watcher.ManagerOptions{
		URLFilters:     cfg.Browser.URLFilters,
		AttachInterval: attachInterval,
		RequestToggle: func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if _, err := a.coord.Toggle(ctx); err != nil {
				a.log.Warn("auto-start toggle failed", logx.Any("err", err))
			}
		},
		Watcher: watcher.Options{
			Debounce:       debounceD,
			RescanInterval: rescan,
			Highlight:      cfg.Watch.Highlight,
			Banner:         cfg.Watch.Banner,
			Sound:          cfg.Alerts.Sound,
		},
	}
	a.client = client

	if tg := cfg.Telegram; tg != nil && tg.Enabled {
		pollTimeout, err := config.ParseDuration("telegram.poll_timeout", tg.PollTimeout, 10*time.Second)
		if err != nil {
			return err
		}
		a.telegram, err = control.NewTelegram(control.Config{
			Token:        tg.Token,
			OwnerUserIDs: tg.OwnerUserIDs,
			PollTimeout:  pollTimeout,
		}, a.coord, a.log.With(logx.String("component", "telegram")))
		if err != nil {
			return fmt.Errorf("telegram: %w", err)
		}
	}

	return nil
}

// Run starts every component under one supervisor and blocks until ctx is
// canceled, then stops the tree with a bounded grace period.
func (a *App) Run(ctx context.Context) error {
	sup := supervisor.New(ctx,
		supervisor.WithLogger(a.log.With(logx.String("component", "supervisor"))))

	a.manager = watcher.NewManager(a.client, a.managerOpts, a.coord, sup,
		a.log.With(logx.String("component", "watcher")))

	sup.Go("coordinator", a.coord.Run)
	sup.Go("notify", a.notifySvc.Run)
	sup.GoRestart("watcher.manager", a.manager.Run,
		supervisor.WithRestartBackoff(time.Second, 30*time.Second))
	sup.Go0("bus.dispatch", a.dispatch)
	sup.Go("config.watch", a.cfgMgr.Watch)
	sup.Go0("config.apply", a.applyReloads)
	if a.telegram != nil {
		sup.GoRestart("telegram", a.telegram.Run,
			supervisor.WithRestartBackoff(time.Second, time.Minute))
	}

	a.log.Info("sentinela started",
		logx.String("devtools_url", a.cfg.Browser.DevtoolsURL),
		logx.Bool("telegram", a.telegram != nil))

	<-ctx.Done()
	return a.stop(sup)
}

// dispatch routes one-way coordinator messages to the tabs.
func (a *App) dispatch(ctx context.Context) {
	events, unsub := a.bus.Subscribe(64)
	defer unsub()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			switch ev.Type {
			case protocol.ActionPlayAlert:
				if pa, ok := ev.Data.(protocol.PlayAlert); ok {
					a.manager.PlayAlert(pa.TabID, pa.OrderNumber)
					if a.telegram != nil {
						a.telegram.Notify("Nova venda detectada: " + pa.OrderNumber)
					}
				}
			case protocol.ActionSizeAlert:
				if sa, ok := ev.Data.(protocol.SizeAlert); ok && a.telegram != nil {
					a.telegram.Notify(sa.Message)
				}
			case protocol.ActionMonitoringStatusChanged:
				if msg, ok := ev.Data.(protocol.MonitoringStatusChanged); ok {
					a.manager.SetMonitoring(msg.IsMonitoring)
				}
			}
		}
	}
}

// applyReloads consumes validated config updates. Logging changes take effect
// immediately; structural sections need a restart and are only reported.
func (a *App) applyReloads(ctx context.Context) {
	updates := a.cfgMgr.Subscribe(4)
	defer a.cfgMgr.Unsubscribe(updates)
	for {
		select {
		case <-ctx.Done():
			return
		case cfg, ok := <-updates:
			if !ok {
				return
			}
			a.logSvc.Apply(logx.Config{
				Level:   cfg.Logging.Level,
				Console: cfg.Logging.Console,
				File: logx.FileConfig{
					Enabled:    cfg.Logging.File.Enabled,
					Path:       cfg.Logging.File.Path,
					MaxSizeMB:  cfg.Logging.File.MaxSizeMB,
					MaxBackups: cfg.Logging.File.MaxBackups,
				},
			})
			if structuralChanged(a.cfg, cfg) {
				a.log.Warn("browser/watch/storage/telegram config changed; restart to apply")
			}
			a.cfg = cfg
		}
	}
}

func structuralChanged(oldCfg, newCfg *config.Config) bool {
	if oldCfg == nil || newCfg == nil {
		return true
	}
	if oldCfg.Browser.DevtoolsURL != newCfg.Browser.DevtoolsURL ||
		strings.Join(oldCfg.Browser.URLFilters, ",") != strings.Join(newCfg.Browser.URLFilters, ",") {
		return true
	}
	if oldCfg.Watch != newCfg.Watch || oldCfg.Alerts != newCfg.Alerts {
		return true
	}
	oldTg, newTg := oldCfg.Telegram != nil && oldCfg.Telegram.Enabled, newCfg.Telegram != nil && newCfg.Telegram.Enabled
	if oldTg != newTg {
		return true
	}
	oldSt, newSt := "", ""
	if oldCfg.Storage != nil {
		oldSt = oldCfg.Storage.Driver + "|" + oldCfg.Storage.Path
	}
	if newCfg.Storage != nil {
		newSt = newCfg.Storage.Driver + "|" + newCfg.Storage.Path
	}
	return oldSt != newSt
}

// stop tears the tree down in order, each step with its own deadline.
func (a *App) stop(sup *supervisor.Supervisor) error {
	a.log.Info("shutting down")

	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := sup.Stop(stopCtx)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		a.log.Warn("supervisor stop", logx.Any("err", err))
	}

	if a.store != nil {
		if cerr := a.store.Close(); cerr != nil {
			a.log.Warn("storage close", logx.Any("err", cerr))
		}
	}
	_ = a.logSvc.Close()
	return err
}

package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"sentinela/internal/app"
	"sentinela/internal/config"
	logx "sentinela/pkg/logx"

	"github.com/coreos/go-systemd/v22/daemon"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to config file (yaml or json)")
	flag.Parse()

	boot := logx.NewConsole("info")

	mgr := config.NewManager(*cfgPath)
	if _, err := mgr.Load(); err != nil {
		boot.Error("config load failed", logx.String("path", *cfgPath), logx.Err(err))
		os.Exit(1)
	}

	a, err := app.New(mgr)
	if err != nil {
		boot.Error("startup failed", logx.Err(err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)

	err = a.Run(ctx)
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
	if err != nil {
		boot.Error("exited with error", logx.Err(err))
		os.Exit(1)
	}
}

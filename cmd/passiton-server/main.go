package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/coreos/go-systemd/v22/daemon"

	"passiton/pkg/config"
	"passiton/pkg/endpoints"
	"passiton/pkg/endpoints/fileep"
	"passiton/pkg/endpoints/sqliteep"
	"passiton/pkg/endpoints/telegramep"
	"passiton/pkg/interfaces"
	"passiton/pkg/interfaces/httpiface"
	"passiton/pkg/interfaces/pipe"
	"passiton/pkg/logx"
	"passiton/pkg/server"
)

func main() {
	var (
		cfgPath  string
		logLevel string
		logFile  string
	)
	flag.StringVar(&cfgPath, "config", "./passiton.toml", "path to server config (toml, yaml or json)")
	flag.StringVar(&logLevel, "log-level", "info", "trace|debug|info|warn|error")
	flag.StringVar(&logFile, "log-file", "", "also log to this file")
	flag.Parse()

	log, cleanup, err := logx.New(logx.Config{
		Level:   logLevel,
		Console: true,
		File:    logx.FileConfig{Enabled: logFile != "", Path: logFile},
	})
	if err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}
	defer cleanup()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfgPath, log); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("fatal", logx.Err(err))
		cleanup()
		os.Exit(1)
	}
}

// run loads the config and drives the server, restarting it whenever the
// config file changes on disk. It returns when ctx is cancelled or the
// configuration is unusable.
func run(ctx context.Context, cfgPath string, log logx.Logger) error {
	ifaceReg := interfaces.NewRegistry()
	ifaceReg.Register("http", httpiface.Factory)
	ifaceReg.Register("pipe", pipe.Factory)

	epReg := endpoints.NewRegistry()
	epReg.Register("file", fileep.Factory)
	epReg.Register("telegram", telegramep.Factory)
	epReg.Register("sqlite", sqliteep.Factory)

	reload := make(chan struct{}, 1)
	go func() {
		_ = config.Watch(ctx, cfgPath, log, func() {
			select {
			case reload <- struct{}{}:
			default:
			}
		})
	}()

	notifiedReady := false
	for {
		cfg, err := config.LoadServer(cfgPath)
		if err != nil {
			return err
		}
		srv, err := server.FromConfig(*cfg, ifaceReg, epReg, log)
		if err != nil {
			return err
		}

		if !notifiedReady {
			if ok, err := daemon.SdNotify(false, daemon.SdNotifyReady); ok && err == nil {
				log.Debug("notified systemd: ready")
			}
			notifiedReady = true
		}

		runCtx, stop := context.WithCancel(ctx)
		done := make(chan error, 1)
		go func() { done <- srv.Run(runCtx) }()

		select {
		case <-ctx.Done():
			stop()
			<-done
			_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
			return ctx.Err()
		case <-reload:
			log.Info("configuration changed; restarting server", logx.String("path", cfgPath))
			_, _ = daemon.SdNotify(false, daemon.SdNotifyReloading)
			stop()
			<-done
			if ok, err := daemon.SdNotify(false, daemon.SdNotifyReady); ok && err == nil {
				log.Debug("notified systemd: ready")
			}
		case err := <-done:
			stop()
			return err
		}
	}
}

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"passiton/pkg/config"
	"passiton/pkg/interfaces"
	"passiton/pkg/interfaces/httpiface"
	"passiton/pkg/interfaces/pipe"
	"passiton/pkg/logx"
	"passiton/pkg/notifications"
)

// passiton-send is the one-shot client: seal one notification and push it
// over every interface in the client config. Exit status is non-zero if any
// interface rejected it.
func main() {
	var (
		cfgPath  string
		name     string
		message  string
		logLevel string
		timeout  time.Duration
	)
	flag.StringVar(&cfgPath, "config", "./passiton.toml", "path to client config (toml, yaml or json)")
	flag.StringVar(&name, "name", "", "notification name (required)")
	flag.StringVar(&message, "message", "", "notification text (required)")
	flag.StringVar(&logLevel, "log-level", "info", "trace|debug|info|warn|error")
	flag.DurationVar(&timeout, "timeout", 10*time.Second, "per-interface send timeout")
	flag.Parse()

	log := logx.NewConsole(logLevel)

	if name == "" || message == "" {
		fmt.Fprintln(os.Stderr, "usage: passiton-send -config FILE -name NAME -message TEXT")
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.LoadClient(cfgPath)
	if err != nil {
		log.Error("load config", logx.Err(err))
		os.Exit(1)
	}
	key, err := notifications.NewKey(cfg.Key)
	if err != nil {
		log.Error("derive key", logx.Err(err))
		os.Exit(1)
	}

	reg := interfaces.NewRegistry()
	reg.Register("http", httpiface.Factory)
	reg.Register("pipe", pipe.Factory)
	ifaces, err := reg.BuildAll(cfg.Interfaces, log)
	if err != nil {
		log.Error("build interfaces", logx.Err(err))
		os.Exit(1)
	}

	env, err := notifications.Encode(key, notifications.NewMessage(message).Ready(name).Notification())
	if err != nil {
		log.Error("encode notification", logx.Err(err))
		os.Exit(1)
	}

	failed := 0
	for _, iface := range ifaces {
		sendCtx, cancelSend := context.WithTimeout(ctx, timeout)
		err := iface.Send(sendCtx, env)
		cancelSend()
		if err != nil {
			failed++
			log.Error("send failed", logx.String("interface", iface.Name()), logx.Err(err))
			continue
		}
		log.Info("sent", logx.String("interface", iface.Name()), logx.String("name", name))
	}
	if failed > 0 {
		os.Exit(1)
	}
}

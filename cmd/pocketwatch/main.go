package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"pocketwatch/internal/config"
	"pocketwatch/internal/web"
)

func main() {
	var configPath string
	var summarizePath string
	flag.StringVar(&configPath, "config", "./pocketwatch.yaml", "Path to YAML or TOML config")
	flag.StringVar(&summarizePath, "summarize", "", "Print a summary of an NMEA capture and exit")
	flag.Parse()

	if summarizePath != "" {
		if err := printCaptureSummary(os.Stdout, summarizePath); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.WithError(err).Fatal("config load failed")
	}
	logs := web.NewLogBuffer(2000)
	if err := setupLogging(cfg.Log, logs); err != nil {
		log.WithError(err).Fatal("logging setup failed")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, logs); err != nil {
		log.WithError(err).Fatal("pocketwatch stopped")
	}
}

func setupLogging(cfg config.LogConfig, hook log.Hook) error {
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		return errors.Wrap(err, "log.level")
	}
	log.SetLevel(level)
	if cfg.Format == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	if hook != nil {
		log.AddHook(hook)
	}
	return nil
}

var serveWebFn = web.Serve

func run(ctx context.Context, cfg config.Config, logs *web.LogBuffer) error {
	status := web.NewStatus()
	live := web.NewHandsBroadcaster()

	rt, err := newRuntime(ctx, cfg, status, live)
	if err != nil {
		return err
	}
	// Runs after the web server has drained, so handlers never see a closed journal.
	defer rt.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	log.Info("pocketwatch starting")

	webDone := make(chan struct{})
	if rt.cfg.Web.Enable {
		go func() {
			defer close(webDone)
			err := serveWebFn(ctx, rt.cfg.Web.Listen, web.Deps{
				Status:   status,
				Captures: rt.Journal(),
				Live:     live,
				Logs:     logs,
			})
			if err != nil && ctx.Err() == nil {
				log.WithError(err).Warn("web server stopped")
			}
		}()
		log.WithField("listen", rt.cfg.Web.Listen).Info("web status server enabled")
	} else {
		close(webDone)
	}

	err = rt.Run(ctx)
	log.Info("pocketwatch stopping")
	cancel()
	<-webDone
	return err
}

package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"skysort/internal/analyzer"
	"skysort/internal/catalog"
	"skysort/internal/classifier"
	"skysort/internal/config"
	"skysort/internal/daemon"
	"skysort/internal/events"
	"skysort/internal/logging"
	"skysort/internal/notifications"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, err := config.Load("")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("ensure directories: %v", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	store, err := catalog.Open(cfg)
	if err != nil {
		logger.Error("open catalog store", logging.Error(err))
		return
	}
	defer store.Close()

	hub := events.NewHub(logger)
	cls := classifier.NewClient(classifier.Config{
		Endpoint:             cfg.Classifier.Endpoint,
		TimeoutSeconds:       cfg.Classifier.TimeoutSeconds,
		WarmupTimeoutSeconds: cfg.Classifier.WarmupTimeoutSeconds,
		BatchSize:            cfg.Classifier.BatchSize,
	})
	a := analyzer.New(cfg, store, cls, hub, logger)
	notifier := notifications.NewService(cfg)

	d, err := daemon.New(cfg, store, a, hub, notifier, logger)
	if err != nil {
		logger.Error("create daemon", logging.Error(err))
		return
	}
	defer d.Close()

	if err := d.Start(ctx); err != nil {
		logger.Error("daemon start", logging.Error(err))
		return
	}

	<-ctx.Done()
	logger.Info("skysortd shutting down")
}

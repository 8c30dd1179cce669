// Package main implements the tape library robot controller daemon.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/martinslabber/tape-library-robot-control/internal/actuator/sim"
	"github.com/martinslabber/tape-library-robot-control/internal/api"
	"github.com/martinslabber/tape-library-robot-control/internal/audit"
	"github.com/martinslabber/tape-library-robot-control/internal/command"
	"github.com/martinslabber/tape-library-robot-control/internal/config"
	"github.com/martinslabber/tape-library-robot-control/internal/library"
	"github.com/martinslabber/tape-library-robot-control/internal/store"
	"github.com/martinslabber/tape-library-robot-control/internal/telemetry"
)

const version = "1.0.0"

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)
	logger.Info("starting tape library robot controller", "version", version)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("configuration failed", "error", err)
		os.Exit(1)
	}

	inv := config.DefaultInventory()
	if cfg.InventoryFile != "" {
		inv, err = config.LoadInventory(cfg.InventoryFile)
		if err != nil {
			logger.Error("inventory failed", "error", err, "path", cfg.InventoryFile)
			os.Exit(1)
		}
	}

	specs := make([]library.Spec, 0, len(inv.Cells))
	cells := make([]sim.Cell, 0, len(inv.Cells))
	for _, c := range inv.Cells {
		specs = append(specs, library.Spec{ID: c.ID, Kind: library.Kind(c.Kind), Media: c.Media})
		cells = append(cells, sim.Cell{ID: c.ID, Media: c.Media})
	}

	registry, err := library.NewRegistry(specs)
	if err != nil {
		logger.Error("registry failed", "error", err)
		os.Exit(1)
	}
	logger.Info("inventory loaded", "cells", len(specs))

	hub := telemetry.NewHub(cfg.EventBufferSize)

	journal, err := audit.NewJournal(cfg.AuditDir, logger)
	if err != nil {
		logger.Error("audit journal failed", "error", err)
		os.Exit(1)
	}
	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaTopic != "" {
		producer, perr := audit.NewProducer(audit.ProducerConfig{
			Brokers: cfg.KafkaBrokers,
			Topic:   cfg.KafkaTopic,
		})
		if perr != nil {
			logger.Error("kafka producer failed", "error", perr)
			os.Exit(1)
		}
		journal.AttachProducer(producer)
		defer func() { _ = producer.Close() }()
		logger.Info("audit streaming enabled", "topic", cfg.KafkaTopic)
	}

	var archive store.Archive
	if cfg.ArchivePath != "" {
		archive, err = store.NewSQLiteArchive(cfg.ArchivePath)
		if err != nil {
			logger.Error("archive failed", "error", err, "path", cfg.ArchivePath)
			os.Exit(1)
		}
		defer func() { _ = archive.Close() }()
		logger.Info("command archive open", "path", cfg.ArchivePath)
	}
	memory := store.NewMemory(cfg.RetentionCount, cfg.RetentionAge, archive)

	actuator := sim.New(cells)
	queue := command.NewQueue(cfg.QueueDepth, cfg.ReserveRetryBudget)
	engine := command.NewEngine(registry, actuator, queue, memory, journal, hub, cfg)
	service := command.NewService(cfg, registry, queue, engine, memory, journal, hub)

	engine.Start()
	logger.Info("engine started", "workers", cfg.Workers)

	server := api.NewServer(service, hub, logger, cfg.ReadTimeout, cfg.WriteTimeout, cfg.IdleTimeout)
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start(cfg.ListenAddr)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		logger.Info("shutting down", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			logger.Error("server failed", "error", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Stop(ctx); err != nil {
		logger.Error("http shutdown failed", "error", err)
	}
	engine.Stop()
	hub.Stop()
	if err := journal.Close(); err != nil {
		logger.Error("audit close failed", "error", err)
	}
	logger.Info("shutdown complete")
}

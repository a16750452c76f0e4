// Package main is the kvs-server entry point: it loads configuration,
// opens the engine, builds a worker pool, and runs the TCP server loop
// until SIGINT/SIGTERM.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aether-kv/kvs/internal/config"
	"github.com/aether-kv/kvs/internal/engine"
	"github.com/aether-kv/kvs/internal/pool"
	"github.com/aether-kv/kvs/internal/server"
	flag "github.com/spf13/pflag"
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})))

	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("main: failed to load configuration", "error", err)
		log.Fatalf("failed to load config: %v", err)
	}

	addr := flag.String("addr", cfg.ADDR, "TCP address to bind (IP:PORT)")
	engineKind := flag.String("engine", cfg.ENGINE, "engine backend: kvs, sled, or auto")
	poolKind := flag.String("pool-kind", cfg.POOL_KIND, "worker pool: naive, shared-queue, or group")
	poolSize := flag.Uint32("pool-size", cfg.POOL_SIZE, "worker pool size")
	dataDir := flag.String("data-dir", cfg.DATA_DIR, "engine data directory")
	flag.Parse()

	slog.Info("main: starting kvs-server",
		"addr", *addr, "engine", *engineKind, "pool_kind", *poolKind, "pool_size", *poolSize, "data_dir", *dataDir)

	eng, err := engine.Open(*dataDir, *engineKind, engine.Options{
		Threshold:    cfg.COMPACTION_THRESHOLD,
		BatchSize:    cfg.BATCH_SIZE,
		SyncInterval: time.Duration(cfg.SYNC_INTERVAL) * time.Second,
	})
	if err != nil {
		slog.Error("main: failed to open engine", "error", err)
		log.Fatalf("failed to open engine: %v", err)
	}
	defer func() {
		if err := eng.Close(); err != nil {
			slog.Error("main: error closing engine", "error", err)
		}
	}()

	workers, err := pool.New(*poolKind, *poolSize)
	if err != nil {
		slog.Error("main: failed to build worker pool", "error", err)
		log.Fatalf("failed to build worker pool: %v", err)
	}

	srv, err := server.New(*addr, eng, workers)
	if err != nil {
		slog.Error("main: failed to bind listener", "error", err)
		log.Fatalf("failed to bind %s: %v", *addr, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("main: kvs-server listening", "addr", srv.Addr().String())
	if err := srv.Run(ctx); err != nil {
		slog.Error("main: server loop exited with error", "error", err)
		os.Exit(1)
	}
	slog.Info("main: kvs-server shut down cleanly")
}

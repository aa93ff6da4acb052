package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/Growth-Sheriff/dernekv1-sub001/cmd/syncd/handlers"
	"github.com/Growth-Sheriff/dernekv1-sub001/internal/config"
	"github.com/Growth-Sheriff/dernekv1-sub001/internal/db"
	"github.com/Growth-Sheriff/dernekv1-sub001/internal/logging"
	syncpkg "github.com/Growth-Sheriff/dernekv1-sub001/internal/sync"
	"github.com/Growth-Sheriff/dernekv1-sub001/internal/sync/netmon"
	"github.com/Growth-Sheriff/dernekv1-sub001/internal/sync/scheduler"
)

const programName = "syncd"

var (
	configFile string
	debug      bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   programName,
		Short: "Offline-first sync agent for association records",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run()
		},
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug logging")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func logLevel(cfg *config.Config) logging.LogLevel {
	if debug {
		return logging.LevelDebug
	}
	switch strings.ToLower(cfg.Logging.Level) {
	case "debug":
		return logging.LevelDebug
	case "warn":
		return logging.LevelWarn
	case "error":
		return logging.LevelError
	default:
		return logging.LevelInfo
	}
}

func run() error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	logging.Init(os.Stdout, logLevel(cfg))

	database, err := db.Open(cfg.Database.DataDir)
	if err != nil {
		return err
	}
	defer database.Close()
	if err := db.Migrate(database); err != nil {
		return err
	}
	store := db.NewStore(database)

	client := syncpkg.NewAPIClient(syncpkg.ClientConfig{
		BaseURL:        cfg.Remote.BaseURL,
		TenantID:       cfg.Remote.TenantID,
		Token:          func() string { return cfg.Remote.Token },
		RequestTimeout: cfg.Remote.RequestTimeout,
		ProbeTimeout:   cfg.Remote.ProbeTimeout,
	})

	monitor := netmon.NewMonitor(client, netmon.Config{
		Interval:      cfg.Sync.ProbeInterval,
		InitialOnline: true,
	})

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(collectors.NewGoCollector())

	engine, err := syncpkg.NewEngine(store, client, monitor,
		syncpkg.WithPrometheus(promRegistry),
	)
	if err != nil {
		return err
	}
	engine.Configure(cfg.Sync.Enabled)

	sched := scheduler.NewScheduler(engine, monitor, scheduler.Config{
		Interval:     cfg.Sync.Interval,
		CycleTimeout: cfg.Sync.CycleTimeout,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	monitor.Start(ctx)
	defer monitor.Stop()
	sched.Start(ctx)
	defer sched.Stop()

	hub := NewWSHub()
	engine.Subscribe(hub.BroadcastState)

	syncHandler := handlers.NewSyncHandler(store, engine, sched)
	syncHandler.SetBroadcaster(hub)

	mux := http.NewServeMux()
	syncHandler.Register(mux)
	mux.HandleFunc("/ws", hub.ServeWS)
	mux.Handle("/metrics", promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.API.ListenAddress, cfg.API.ListenPort),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info("local API listening", map[string]any{"addr": server.Addr})
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logging.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

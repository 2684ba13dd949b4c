package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	v1 "github.com/craft-brew/queue-ingest/internal/api/v1"
	"github.com/craft-brew/queue-ingest/internal/cache"
	"github.com/craft-brew/queue-ingest/internal/commands"
	"github.com/craft-brew/queue-ingest/internal/config"
	"github.com/craft-brew/queue-ingest/internal/ingest"
	"github.com/craft-brew/queue-ingest/internal/migrations"
	"github.com/craft-brew/queue-ingest/internal/mqtt"
	"github.com/craft-brew/queue-ingest/internal/protocol"
	"github.com/craft-brew/queue-ingest/internal/push"
	"github.com/craft-brew/queue-ingest/internal/scheduler"
	"github.com/craft-brew/queue-ingest/internal/server"
	"github.com/craft-brew/queue-ingest/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "queue-ingest.yaml", "Path to configuration file")
	flag.Parse()

	// 0. Initialize Logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// 1. Load Configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	tz, err := cfg.Location()
	if err != nil {
		slog.Error("Failed to resolve timezone", "error", err)
		os.Exit(1)
	}
	slog.Info("Loaded config", "broker", cfg.Broker.URL, "timezone", cfg.Timezone)

	// 2. Initialize Storage (PostgreSQL)
	dbAdapter, err := postgres.NewAdapter(
		cfg.Database.DSN,
		cfg.Database.MaxOpenConns,
		cfg.Database.MaxIdleConns,
	)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer dbAdapter.Close()

	// 2.1. Run Database Migrations
	if err := migrations.RunMigrations(dbAdapter.DB(), cfg.Database.AutoMigrate); err != nil {
		slog.Error("Failed to run database migrations", "error", err)
		os.Exit(1)
	}

	commandStore := postgres.NewCommandAdapter(dbAdapter.DB())
	rollupStore := postgres.NewRollupAdapter(dbAdapter.DB())
	batchStore := postgres.NewBatchAdapter(dbAdapter.DB())

	// 3. Initialize Cache (Redis)
	cacheStore, err := cache.NewRedisStore(cfg.Redis.URL)
	if err != nil {
		slog.Error("Failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer cacheStore.Close()

	// 4. Initialize Push Delivery
	sender := push.NewWebPushSender(cfg.Push.Subject, cfg.Push.VAPIDPublicKey, cfg.Push.VAPIDPrivateKey)
	if !sender.Configured() {
		slog.Warn("VAPID keys not configured, push notifications disabled")
	}

	// 5. Initialize MQTT Client and Message Handlers
	broker := mqtt.NewClient(mqtt.Config{
		BrokerURL: cfg.Broker.URL,
		Username:  cfg.Broker.Username,
		Password:  cfg.Broker.Password,
		ClientID:  cfg.Broker.ClientID,
	})

	reconciler := ingest.NewReconciler(cacheStore, dbAdapter)
	ackHandler := ingest.NewAckHandler(commandStore)
	broker.Handle(protocol.TopicStatus, protocol.QoSStatus, reconciler.HandleTelemetry)
	broker.Handle(protocol.TopicAck, protocol.QoSAck, ackHandler.HandleAck)

	ledger := commands.NewLedger(broker, commandStore)

	// 6. Recover Missed Daily Rollups, then Start Cron
	dailyStats := scheduler.NewDailyStats(dbAdapter, rollupStore, tz)
	if err := dailyStats.RecoverMissedStats(context.Background(), time.Now()); err != nil {
		slog.Error("Rollup gap recovery failed", "error", err)
	}

	alerts := scheduler.NewAlerts(cacheStore, sender, tz)
	cronRunner, err := scheduler.NewRunner(alerts, dailyStats, tz)
	if err != nil {
		slog.Error("Failed to initialize scheduler", "error", err)
		os.Exit(1)
	}
	cronRunner.Start()
	defer cronRunner.Stop()

	// 7. Connect to the Broker
	connectCtx, connectCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := broker.Connect(connectCtx); err != nil {
		connectCancel()
		slog.Error("Failed to connect to broker", "error", err)
		os.Exit(1)
	}
	connectCancel()
	defer broker.Disconnect()

	// 8. Initialize HTTP Server
	srv := server.New(fmtAddr(cfg.Server.Host, cfg.Server.Port), cfg.Server.Mode)
	srv.AddHealthCheck("database", dbAdapter)
	srv.AddHealthCheck("cache", cacheStore)
	v1.NewService(cacheStore, ledger, batchStore, rollupStore).RegisterRoutes(srv.Engine)

	// 9. Run Until Signalled
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		slog.Info("Signal received, shutting down...")
		cancel()
	}()

	// HTTP server blocks until ctx is cancelled.
	if err := srv.Run(ctx); err != nil {
		slog.Error("Server stopped with error", "error", err)
	}

	slog.Info("Shutdown complete")
}

func fmtAddr(host string, port int) string {
	return fmt.Sprintf("%s:%d", host, port)
}

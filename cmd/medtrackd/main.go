package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"

	"medtrack-backend/config"
	"medtrack-backend/internal/api"
	"medtrack-backend/internal/db"
	"medtrack-backend/internal/dose"
	"medtrack-backend/internal/notify"
	"medtrack-backend/internal/stock"
	"medtrack-backend/internal/store"
)

func main() {
	logger := log.New(os.Stdout, "medtrackd ", log.LstdFlags)

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatalf("failed to load configuration from %s: %v", configPath, err)
	}
	logger.Printf("configuration loaded successfully from %s", configPath)

	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		logger.Fatalf("failed to initialize database: %v", err)
	}
	logger.Println("database initialized successfully")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	appStore := store.NewGormStore(gormDB)
	logger.Println("data store initialized")

	// Delivery channels. Unconfigured channels stay registered but disabled,
	// except chat, whose bot handshake only runs when a token is present.
	var webpushOptions *webpush.Options
	if cfg.Push.PublicKey != "" && cfg.Push.PrivateKey != "" {
		webpushOptions = &webpush.Options{
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			Subscriber:      cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
		}
	} else {
		logger.Println("VAPID keys are not configured; push channel disabled")
	}

	chatChannel, err := notify.NewChatChannel(cfg.Chat.Token)
	if err != nil {
		logger.Fatalf("failed to initialize chat channel: %v", err)
	}

	dispatcher := notify.NewDispatcher(cfg.Scheduler.ChannelTimeout,
		notify.NewPushChannel(webpushOptions, appStore),
		notify.NewEmailChannel(cfg.Email),
		chatChannel,
	)

	scheduler := notify.NewScheduler(appStore, dispatcher, cfg.Scheduler.StaleClaim)
	ledger := stock.NewLedger(appStore)
	doseSvc := dose.NewService(appStore, ledger, cfg.Scheduler.MissedGrace)

	// Background sweeps: due notifications and overdue doses.
	go runSweeper(ctx, cfg, scheduler, doseSvc, logger)

	handler := api.NewHandler(appStore, doseSvc, scheduler, cfg.Scheduler.BatchLimit)
	router := api.NewRouter(handler, &cfg.Server)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Printf("HTTP server starting on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("HTTP server ListenAndServe: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	logger.Println("Shutdown signal received, stopping services...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatalf("HTTP server Shutdown: %v", err)
	}

	logger.Println("Server gracefully stopped")
}

// runSweeper triggers one bounded notification sweep and one missed-dose
// sweep per interval until the context is cancelled.
func runSweeper(ctx context.Context, cfg *config.Config, scheduler *notify.Scheduler, doseSvc *dose.Service, logger *log.Logger) {
	logger.Printf("Sweeper starting (interval %s, batch limit %d)",
		cfg.Scheduler.SweepInterval, cfg.Scheduler.BatchLimit)

	ticker := time.NewTicker(cfg.Scheduler.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			now := time.Now().UTC()

			report, err := scheduler.Sweep(ctx, now, cfg.Scheduler.BatchLimit)
			if err != nil {
				logger.Printf("Notification sweep failed: %v", err)
			} else if report.Processed > 0 {
				logger.Printf("Notification sweep: processed=%d succeeded=%d failed=%d",
					report.Processed, report.Succeeded, report.Failed)
			}

			if _, err := doseSvc.SweepMissed(ctx, now); err != nil {
				logger.Printf("Missed-dose sweep failed: %v", err)
			}
		case <-ctx.Done():
			logger.Println("Sweeper shutting down")
			return
		}
	}
}

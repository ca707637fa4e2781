package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/starwatch/internal/adapters/driving/http"
	"github.com/custodia-labs/starwatch/internal/adapters/driving/telegram"
	"github.com/custodia-labs/starwatch/internal/config"
	"github.com/custodia-labs/starwatch/internal/worker"
)

// runMode starts the API, the worker or both and blocks until a shutdown
// signal or the first component failure.
func runMode(parent context.Context, cfg *config.Config, mode string) error {
	log.Printf("starwatch %s starting in %s mode", cfg.Server.Version, mode)

	ctx, cancel := signalContext(parent)
	defer cancel()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	g, ctx := errgroup.WithContext(ctx)

	switch mode {
	case "api":
		g.Go(func() error { return runAPI(ctx, a) })
	case "worker":
		g.Go(func() error { return runWorker(ctx, a) })
		g.Go(func() error { return runBot(ctx, a) })
	case "all":
		g.Go(func() error { return runWorker(ctx, a) })
		g.Go(func() error { return runBot(ctx, a) })
		g.Go(func() error { return runAPI(ctx, a) })
	default:
		return fmt.Errorf("unknown mode: %s (use: api, worker, or all)", mode)
	}

	return g.Wait()
}

func runAPI(ctx context.Context, a *app) error {
	deps := http.Deps{
		AuthService:         a.authService,
		SubscriptionService: a.subscriptions,
		Reconciler:          a.reconciler,
		Scheduler:           a.scheduler,
		TaskQueue:           a.taskQueue,
		DB:                  a.db,
	}
	if a.redisPinger != nil {
		deps.Redis = a.redisPinger
	}

	server := http.NewServer(http.Config{
		Host:    a.cfg.Server.Host,
		Port:    a.cfg.Server.Port,
		Version: a.cfg.Server.Version,
	}, deps)

	if a.cfg.Auth.AdminPasswordHash == "" {
		log.Println("Warning: STARWATCH_AUTH_ADMIN_PASSWORD_HASH not set, token issuance is disabled")
	}

	log.Printf("API server starting on %s:%d", a.cfg.Server.Host, a.cfg.Server.Port)
	return server.Start(ctx)
}

// runWorker starts the worker and, when enabled, the scheduler.
// It processes tasks from the queue until ctx is cancelled.
func runWorker(ctx context.Context, a *app) error {
	log.Println("Starting worker mode...")

	w := worker.NewWorker(worker.WorkerConfig{
		TaskQueue:      a.taskQueue,
		Notifications:  a.notifications,
		Scheduler:      a.scheduler,
		StartScheduler: a.cfg.Scheduler.Enabled,
		Logger:         slog.Default(),
		Concurrency:    a.cfg.Worker.Concurrency,
		DequeueTimeout: a.cfg.Worker.DequeueTimeout,
	})

	if err := w.Start(ctx); err != nil {
		return fmt.Errorf("start worker: %w", err)
	}

	if a.cfg.Scheduler.Enabled {
		log.Printf("Scheduler enabled (poll_interval=%s, lock_required=%t)",
			a.cfg.Scheduler.PollInterval, a.cfg.Scheduler.LockRequired)
	} else {
		log.Println("Scheduler disabled via STARWATCH_SCHEDULER_ENABLED=false")
	}
	log.Println("Worker started, processing tasks...")

	<-ctx.Done()

	log.Println("Stopping worker...")
	w.Stop()
	log.Println("Worker stopped")
	return nil
}

// runBot serves the Telegram subscription bot until ctx is cancelled.
// It returns immediately when no bot token is configured.
func runBot(ctx context.Context, a *app) error {
	if a.telegram == nil || !a.cfg.Telegram.Bot {
		log.Println("Telegram bot disabled")
		return nil
	}

	bot := telegram.NewBot(telegram.Config{
		Token:         a.cfg.Telegram.BotToken,
		APIURL:        a.cfg.Telegram.APIURL,
		Subscriptions: a.subscriptions,
		Replier:       a.telegram,
		Lock:          a.lock,
		Logger:        slog.Default(),
		PollTimeout:   a.cfg.Telegram.PollTimeout,
	})

	log.Println("Telegram bot started")
	return bot.Run(ctx)
}

package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"

	goredis "github.com/redis/go-redis/v9"

	"github.com/custodia-labs/starwatch/internal/adapters/driven/auth"
	"github.com/custodia-labs/starwatch/internal/adapters/driven/github"
	"github.com/custodia-labs/starwatch/internal/adapters/driven/notify"
	"github.com/custodia-labs/starwatch/internal/adapters/driven/postgres"
	postgresqueue "github.com/custodia-labs/starwatch/internal/adapters/driven/queue/postgres"
	redisqueue "github.com/custodia-labs/starwatch/internal/adapters/driven/queue/redis"
	redisadapter "github.com/custodia-labs/starwatch/internal/adapters/driven/redis"
	"github.com/custodia-labs/starwatch/internal/adapters/driven/sqlite"
	"github.com/custodia-labs/starwatch/internal/config"
	"github.com/custodia-labs/starwatch/internal/core/ports/driven"
	"github.com/custodia-labs/starwatch/internal/core/ports/driving"
	"github.com/custodia-labs/starwatch/internal/core/services"
)

// app holds every wired component. Close releases connections in reverse
// order of creation.
type app struct {
	cfg *config.Config

	db          *postgres.DB
	redisClient *goredis.Client
	redisPinger driven.DistributedLock

	source      *github.StargazerSource
	authAdapter driven.AuthAdapter
	registry    driven.Registry
	snapshots   driven.SnapshotStore
	taskQueue   driven.TaskQueue
	lock        driven.DistributedLock

	telegram *notify.Telegram

	authService   driving.AuthService
	subscriptions *services.SubscriptionService
	reconciler    *services.Reconciler
	notifications *services.NotificationService
	scheduler     *services.Scheduler

	closers []func() error
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg}
	if err := a.init(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) init(ctx context.Context) error {
	cfg := a.cfg
	logger := slog.Default()

	// ===== Initialize PostgreSQL =====
	log.Println("Connecting to PostgreSQL...")
	db, err := postgres.Connect(ctx, postgres.Config{
		URL:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
	})
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	a.db = db
	a.closers = append(a.closers, db.Close)

	if err := db.InitSchema(ctx); err != nil {
		return fmt.Errorf("initialize schema: %w", err)
	}
	log.Println("PostgreSQL connected and schema initialized")

	// ===== Initialize Redis (optional) =====
	if cfg.Redis.URL != "" {
		log.Println("Connecting to Redis...")
		client, err := redisadapter.Connect(ctx, cfg.Redis.URL)
		if err != nil {
			return fmt.Errorf("connect to redis: %w", err)
		}
		a.redisClient = client
		a.closers = append(a.closers, client.Close)
		log.Println("Redis connected")
	}

	a.registry = postgres.NewRegistry(db)
	a.authAdapter = auth.NewAdapter(cfg.Auth.JWTSecret)

	// ===== Snapshot Store =====
	switch cfg.Snapshot.Backend {
	case config.SnapshotBackendRedis:
		a.snapshots = redisadapter.NewSnapshotStore(a.redisClient)
	case config.SnapshotBackendSQLite:
		store, err := sqlite.NewSnapshotStore(cfg.Snapshot.SQLitePath)
		if err != nil {
			return fmt.Errorf("open sqlite snapshot store: %w", err)
		}
		a.snapshots = store
		a.closers = append(a.closers, store.Close)
		log.Printf("SQLite snapshot database: %s", store.Path())
	default:
		a.snapshots = postgres.NewSnapshotStore(db)
	}
	log.Printf("Using %s snapshot store", cfg.Snapshot.Backend)

	// ===== Task Queue and Distributed Lock (Redis if available, otherwise PostgreSQL) =====
	if a.redisClient != nil {
		queue, err := redisqueue.NewQueue(ctx, a.redisClient, consumerName())
		if err != nil {
			return fmt.Errorf("create task queue: %w", err)
		}
		a.taskQueue = queue
		lock := redisadapter.NewLock(a.redisClient)
		a.lock = lock
		a.redisPinger = lock
		log.Printf("Using Redis task queue and distributed lock (owner %s)", lock.OwnerID())
	} else {
		a.taskQueue = postgresqueue.NewQueue(db.DB)
		a.lock = postgres.NewAdvisoryLock(db)
		log.Println("Using PostgreSQL task queue and advisory lock")
	}
	a.closers = append(a.closers, a.taskQueue.Close)

	// ===== Upstream and delivery =====
	source, err := github.NewStargazerSource(ctx, github.Config{
		Token:   cfg.GitHub.Token,
		BaseURL: cfg.GitHub.BaseURL,
		Rate:    cfg.GitHub.Rate,
		Logger:  logger,
	})
	if err != nil {
		return fmt.Errorf("create github source: %w", err)
	}
	a.source = source
	if cfg.GitHub.Token == "" {
		log.Println("Warning: STARWATCH_GITHUB_TOKEN not set, GitHub allows 60 requests per hour")
	}

	notifier := notify.NewRouter(notify.RouterConfig{
		Channels: a.channels(),
		Attempts: cfg.Notify.Attempts,
		Delay:    cfg.Notify.Delay,
		MaxDelay: cfg.Notify.MaxDelay,
		Logger:   logger,
	})
	if len(notifier.Schemes()) == 0 {
		log.Println("Warning: no delivery channel configured, subscribers will not be notified")
	} else {
		log.Printf("Delivery channels: %v", notifier.Schemes())
	}

	// ===== Services =====
	a.authService = services.NewAuthService(a.authAdapter, cfg.Auth.AdminPasswordHash, cfg.Auth.TokenTTL)
	a.subscriptions = services.NewSubscriptionService(services.SubscriptionServiceConfig{
		Registry:  a.registry,
		Snapshots: a.snapshots,
		Logger:    logger,
	})
	a.reconciler = services.NewReconciler(services.ReconcilerConfig{
		Source:      source,
		Snapshots:   a.snapshots,
		Registry:    a.registry,
		Lock:        a.lock,
		Logger:      logger,
		PageSize:    cfg.GitHub.PageSize,
		MinInterval: cfg.Reconcile.MinInterval,
		CallTimeout: cfg.GitHub.CallTimeout,
		LockTTL:     cfg.Reconcile.LockTTL,
	})
	a.notifications = services.NewNotificationService(services.NotificationServiceConfig{
		Reconciler: a.reconciler,
		Notifier:   notifier,
		Logger:     logger,
	})
	a.scheduler = services.NewScheduler(services.SchedulerConfig{
		Registry:     a.registry,
		TaskQueue:    a.taskQueue,
		Lock:         a.lock,
		Logger:       logger,
		PollInterval: cfg.Scheduler.PollInterval,
		LockRequired: cfg.Scheduler.LockRequired,
	})

	return nil
}

// Close releases every connection opened by init.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			log.Printf("Warning: close failed: %v", err)
		}
	}
	a.closers = nil
}

func (a *app) channels() []driven.Channel {
	cfg := a.cfg
	var out []driven.Channel
	if cfg.Telegram.BotToken != "" {
		a.telegram = notify.NewTelegram(cfg.Telegram.BotToken, cfg.Telegram.APIURL)
		out = append(out, a.telegram)
	}
	if cfg.Resend.APIKey != "" {
		out = append(out, notify.NewEmail(cfg.Resend.APIKey, cfg.Resend.From))
	}
	return out
}

func consumerName() string {
	host, err := os.Hostname()
	if err != nil {
		host = "starwatch"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}

package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	_ "github.com/lib/pq"

	"github.com/marketbet/referral-bot/internal/admin"
	"github.com/marketbet/referral-bot/internal/bot"
	"github.com/marketbet/referral-bot/internal/code"
	"github.com/marketbet/referral-bot/internal/database"
	"github.com/marketbet/referral-bot/internal/health"
	"github.com/marketbet/referral-bot/internal/idempotency"
	"github.com/marketbet/referral-bot/internal/lock"
	"github.com/marketbet/referral-bot/internal/notify"
	"github.com/marketbet/referral-bot/internal/repository"
	"github.com/marketbet/referral-bot/internal/reward"
	"github.com/marketbet/referral-bot/pkg/config"
	"github.com/marketbet/referral-bot/pkg/graceful"
	"github.com/marketbet/referral-bot/pkg/logger"
	"github.com/marketbet/referral-bot/pkg/metrics"
	"github.com/marketbet/referral-bot/pkg/redis"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", slog.Any("error", err))
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, v, err := config.Load()
	if err != nil {
		return err
	}

	log, level := logger.New(logger.Options{
		Level:         cfg.Logger.Level,
		Format:        cfg.Logger.Format,
		FilePath:      cfg.Logger.FilePath,
		FileMaxSizeMB: cfg.Logger.FileMaxSizeMB,
		FileMaxAge:    cfg.Logger.FileMaxAge,
		FileBackups:   cfg.Logger.FileBackups,
		SentryEnabled: cfg.Sentry.Enabled,
	})
	slog.SetDefault(log)
	config.WatchLogLevel(v, level, logger.ParseLevel, log)

	log.Info("starting referral bot",
		slog.String("env", cfg.AppEnv),
		slog.String("http_port", cfg.Server.Port),
		slog.String("bot_mode", cfg.Bot.Mode),
	)

	if cfg.Sentry.Enabled {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.Sentry.DSN,
			Environment:      cfg.AppEnv,
			TracesSampleRate: cfg.Sentry.TracesSampleRate,
		})
		if err != nil {
			return err
		}
		defer sentry.Flush(2 * time.Second)
	}

	db, err := sql.Open("postgres", cfg.DB.DSN())
	if err != nil {
		return err
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			log.Error("closing database", slog.Any("error", cerr))
		}
	}()

	db.SetMaxOpenConns(cfg.DB.MaxOpenConns)
	db.SetMaxIdleConns(cfg.DB.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.DB.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		return err
	}

	migrationsDir := cfg.DB.MigrationsDir
	if migrationsDir == "" {
		migrationsDir = "migrations"
	}
	migrator := database.NewMigrator(db, log)
	if err := migrator.ApplyDir(ctx, migrationsDir); err != nil {
		return err
	}

	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb, err = redis.New(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := rdb.Close(); cerr != nil {
				log.Error("closing redis", slog.Any("error", cerr))
			}
		}()
	} else {
		log.Warn("redis not configured; using in-process locks and no update deduplication")
	}

	users := repository.NewUserRepository(db, log)
	referrals := repository.NewReferralRepository(db, log)
	withdrawals := repository.NewWithdrawalRepository(db, log)
	codes := repository.NewCodeRepository(db, log)
	settings := repository.NewSettingsRepository(db, log)
	activity := repository.NewActivityRepository(db, log)
	stats := repository.NewStatsRepository(db, log)

	var (
		locker lock.Locker
		dedup  idempotency.Manager
	)
	if rdb != nil {
		locker = lock.NewRedisLocker(rdb.Client, log)
		dedup = idempotency.NewManager(idempotency.NewRedisStore(rdb.Client, log), log)
		cleaner := idempotency.NewCleaner(rdb.Client, log, cfg.Dedup.CleanupInterval)
		go cleaner.Run(ctx)
	} else {
		locker = lock.NewMemoryLocker()
	}

	tb, err := bot.NewTelebot(*cfg)
	if err != nil {
		return err
	}

	notifier := notify.NewTelegramNotifier(tb, cfg.Bot.ChannelID, log)
	broadcaster := notify.NewBroadcaster(tb, users, cfg.Broadcast.Delay, log)
	generator := code.NewGenerator(codes.Exists)

	engine := reward.NewEngine(
		repository.NewTxRunner(db),
		reward.Stores{
			Users:       users,
			Referrals:   referrals,
			Withdrawals: withdrawals,
			Codes:       codes,
			Settings:    settings,
			Activity:    activity,
		},
		locker,
		generator,
		notifier,
		reward.Config{RecreditOnReject: cfg.Withdrawals.RecreditOnReject},
		log,
	)

	tg := bot.New(tb, *cfg, log, engine, bot.Stores{
		Users:       users,
		Referrals:   referrals,
		Withdrawals: withdrawals,
		Codes:       codes,
	}, dedup)

	checker := health.NewChecker(log)
	checker.AddCheck("database", health.NewDBChecker(db))
	if rdb != nil {
		checker.AddCheck("redis", health.NewRedisChecker(rdb.Client))
	}
	checker.AddCheck("telegram", health.NewTelegramChecker(tg.Telebot()))

	statsCollector := metrics.NewStatsCollector(statsSource{stats: stats}, 0)
	go statsCollector.Run(ctx)

	adminSrv := admin.NewServer(engine, broadcaster, admin.Queries{
		Users:       users,
		Referrals:   referrals,
		Withdrawals: withdrawals,
		Codes:       codes,
		Settings:    settings,
		Activity:    activity,
		Stats:       stats,
	}, checker, log)

	httpSrv := graceful.NewServer(log, &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      adminSrv.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}, cfg.Server.ShutdownTimeout)

	httpErr := make(chan error, 1)
	go func() {
		httpErr <- httpSrv.ListenAndServe(ctx)
	}()

	go tg.Start()
	defer tg.Stop()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
		if err := <-httpErr; err != nil {
			return err
		}
	case err := <-httpErr:
		if err != nil {
			return err
		}
	}

	log.Info("referral bot stopped")
	return nil
}

// statsSource adapts the aggregate stats query to the gauge refresher.
type statsSource struct {
	stats repository.StatsRepository
}

func (s statsSource) UserCount(ctx context.Context) (int, error) {
	st, err := s.stats.Stats(ctx)
	if err != nil {
		return 0, err
	}
	return st.TotalUsers, nil
}

func (s statsSource) PendingWithdrawalCount(ctx context.Context) (int, error) {
	st, err := s.stats.Stats(ctx)
	if err != nil {
		return 0, err
	}
	return st.PendingWithdrawals, nil
}

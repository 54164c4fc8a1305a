package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/tinhptlocal/credit-bot/internal/config"
	"github.com/tinhptlocal/credit-bot/internal/db"
	"github.com/tinhptlocal/credit-bot/internal/jobs"
	"github.com/tinhptlocal/credit-bot/internal/notify"
	"github.com/tinhptlocal/credit-bot/internal/observability"
	postgresrepo "github.com/tinhptlocal/credit-bot/internal/repository/postgres"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger := observability.NewLogger(cfg.Env)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.NewPostgresPool(ctx, cfg)
	if err != nil {
		logger.Error("failed to connect postgres", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	store := postgresrepo.NewStore(pool)
	sweeper := jobs.NewSweeper(jobs.SweeperDeps{
		Tx:               store,
		Payments:         postgresrepo.NewPaymentRepo(store),
		Loans:            postgresrepo.NewLoanRepo(store),
		Users:            postgresrepo.NewUserRepo(store),
		Notifier:         notify.NewLogNotifier(observability.Component(logger, "notify")),
		Logger:           observability.Component(logger, "sweep"),
		ReminderLeadDays: cfg.ReminderLeadDays,
	})

	scheduler := jobs.NewScheduler(sweeper, logger, cfg.SweepSchedule)
	if err := scheduler.Start(); err != nil {
		logger.Error("invalid sweep schedule", "schedule", cfg.SweepSchedule, "err", err)
		os.Exit(1)
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-sigCtx.Done()

	<-scheduler.Stop().Done()
	logger.Info("sweeper stopped")
}

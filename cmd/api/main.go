package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/tinhptlocal/credit-bot/internal/auth"
	"github.com/tinhptlocal/credit-bot/internal/cache"
	"github.com/tinhptlocal/credit-bot/internal/config"
	"github.com/tinhptlocal/credit-bot/internal/db"
	accountdomain "github.com/tinhptlocal/credit-bot/internal/domain/account"
	loandomain "github.com/tinhptlocal/credit-bot/internal/domain/loan"
	paymentdomain "github.com/tinhptlocal/credit-bot/internal/domain/payment"
	"github.com/tinhptlocal/credit-bot/internal/domain/treasury"
	"github.com/tinhptlocal/credit-bot/internal/http/handlers"
	"github.com/tinhptlocal/credit-bot/internal/jobs"
	"github.com/tinhptlocal/credit-bot/internal/notify"
	"github.com/tinhptlocal/credit-bot/internal/observability"
	postgresrepo "github.com/tinhptlocal/credit-bot/internal/repository/postgres"
	"github.com/tinhptlocal/credit-bot/internal/server"
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
	userRepo := postgresrepo.NewUserRepo(store)
	loanRepo := postgresrepo.NewLoanRepo(store)
	paymentRepo := postgresrepo.NewPaymentRepo(store)
	transactionRepo := postgresrepo.NewTransactionRepo(store)

	jwtManager := auth.NewJWTManager(cfg.JWTIssuer, cfg.JWTAudience, cfg.JWTSigningKey)
	admins := auth.NewDirectory(cfg.AdminIDs)
	notifier := notify.NewLogNotifier(observability.Component(logger, "notify"))

	treasurySvc := treasury.NewService(userRepo, transactionRepo, cfg.TreasuryUserID, nil)
	loanSvc := loandomain.NewService(loandomain.Deps{
		Tx:           store,
		Users:        userRepo,
		Loans:        loanRepo,
		Schedule:     paymentRepo,
		Treasury:     treasurySvc,
		Offers:       cache.New[loandomain.Offer](cfg.OfferTTL),
		Admins:       admins,
		Notifier:     notifier,
		Logger:       observability.Component(logger, "loan"),
		DefaultScore: cfg.DefaultCreditScore,
		AdminChannel: cfg.AdminChannelID,
	})
	paymentSvc := paymentdomain.NewService(paymentdomain.Deps{
		Tx:       store,
		Payments: paymentRepo,
		Loans:    loanRepo,
		Treasury: treasurySvc,
		Notifier: notifier,
		Logger:   observability.Component(logger, "payment"),
	})
	accountSvc := accountdomain.NewService(accountdomain.Deps{
		Tx:           store,
		Users:        userRepo,
		Txs:          transactionRepo,
		Admins:       admins,
		Dedup:        cache.New[struct{}](cfg.DedupTTL),
		Logger:       observability.Component(logger, "account"),
		DefaultScore: cfg.DefaultCreditScore,
	})
	sweeper := jobs.NewSweeper(jobs.SweeperDeps{
		Tx:               store,
		Payments:         paymentRepo,
		Loans:            loanRepo,
		Users:            userRepo,
		Notifier:         notifier,
		Logger:           observability.Component(logger, "sweep"),
		ReminderLeadDays: cfg.ReminderLeadDays,
	})

	r := server.NewRouter(cfg, logger, server.Dependencies{
		Pinger:         pool,
		LoanHandler:    handlers.NewLoanHandler(loanSvc),
		PaymentHandler: handlers.NewPaymentHandler(paymentSvc),
		AccountHandler: handlers.NewAccountHandler(accountSvc),
		AdminHandler: handlers.NewAdminHandler(loanSvc, accountSvc, sweeper, handlers.Stats{
			Users:        userRepo,
			Payments:     paymentRepo,
			Transactions: transactionRepo,
			Loans:        loanRepo,
		}),
		JWTManager: jwtManager,
		Admins:     admins,
	})
	httpServer := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("api server starting", "addr", cfg.Addr())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "err", err)
			os.Exit(1)
		}
	}()

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-sigCtx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = httpServer.Shutdown(shutdownCtx)
	logger.Info("api server stopped")
}

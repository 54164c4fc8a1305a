package server

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tinhptlocal/credit-bot/internal/auth"
	"github.com/tinhptlocal/credit-bot/internal/config"
	"github.com/tinhptlocal/credit-bot/internal/http/handlers"
	"github.com/tinhptlocal/credit-bot/internal/http/middleware"
	"github.com/tinhptlocal/credit-bot/internal/version"
)

const maxRequestBodyBytes = 1 << 20

type Dependencies struct {
	Pinger         handlers.Pinger
	LoanHandler    *handlers.LoanHandler
	PaymentHandler *handlers.PaymentHandler
	AccountHandler *handlers.AccountHandler
	AdminHandler   *handlers.AdminHandler
	JWTManager     *auth.JWTManager
	Admins         *auth.Directory
}

func NewRouter(cfg config.Config, logger *slog.Logger, deps Dependencies) *gin.Engine {
	if cfg.Env == "prod" || cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestBodyLimit(maxRequestBodyBytes))
	r.Use(func(c *gin.Context) {
		logger.Info("request", "method", c.Request.Method, "path", c.Request.URL.Path)
		c.Next()
	})

	health := handlers.NewHealthHandler(deps.Pinger)
	meta := handlers.NewMetaHandler(cfg.Env, version.Version)

	r.GET("/health", health.Health)
	r.GET("/ready", health.Ready)
	r.GET("/v1/meta", meta.GetMeta)

	if deps.JWTManager != nil {
		protected := r.Group("/v1")
		protected.Use(middleware.RequireAuth(deps.JWTManager))

		if deps.LoanHandler != nil {
			protected.POST("/loans/request", deps.LoanHandler.RequestLoan)
			protected.POST("/loans/confirm", deps.LoanHandler.ConfirmLoan)
			protected.GET("/loans", deps.LoanHandler.ListLoans)
			protected.GET("/loans/:loanId", deps.LoanHandler.GetLoan)
			protected.POST("/loans/:loanId/cancel", deps.LoanHandler.CancelLoan)
		}
		if deps.PaymentHandler != nil {
			protected.GET("/payments", deps.PaymentHandler.ListOpen)
			protected.GET("/payments/upcoming", deps.PaymentHandler.ListUpcoming)
			protected.GET("/payments/history", deps.PaymentHandler.History)
			protected.POST("/payments/:paymentId/pay", deps.PaymentHandler.Pay)
			protected.GET("/loans/:loanId/schedule", deps.PaymentHandler.Schedule)
			protected.GET("/loans/:loanId/payoff", deps.PaymentHandler.PayoffQuote)
			protected.POST("/loans/:loanId/payoff", deps.PaymentHandler.Payoff)
		}
		if deps.AccountHandler != nil {
			protected.GET("/account/balance", deps.AccountHandler.Balance)
			protected.GET("/account/transactions", deps.AccountHandler.Transactions)
			protected.POST("/account/token-receipts", deps.AccountHandler.TokenReceipt)
		}

		if deps.AdminHandler != nil && deps.Admins != nil {
			adminGroup := r.Group("/admin")
			adminGroup.Use(middleware.RequireAuth(deps.JWTManager), middleware.RequireAdmin(deps.Admins))
			adminGroup.GET("/loans/pending", deps.AdminHandler.PendingLoans)
			adminGroup.GET("/loans/active", deps.AdminHandler.ActiveLoans)
			adminGroup.POST("/loans/:loanId/approve", deps.AdminHandler.ApproveLoan)
			adminGroup.POST("/loans/:loanId/reject", deps.AdminHandler.RejectLoan)
			adminGroup.POST("/credit-score", deps.AdminHandler.AdjustCreditScore)
			adminGroup.POST("/sweep", deps.AdminHandler.RunSweep)
			adminGroup.GET("/system/stats", deps.AdminHandler.SystemStats)
		}
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
	})

	return r
}

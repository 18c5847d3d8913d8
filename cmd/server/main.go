package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"snapkart-be/internal/api"
	"snapkart-be/internal/auth"
	"snapkart-be/internal/booking"
	"snapkart-be/internal/catalog"
	"snapkart-be/internal/config"
	"snapkart-be/internal/coupon"
	"snapkart-be/internal/db"
	"snapkart-be/internal/dispatch"
	"snapkart-be/internal/logger"
	"snapkart-be/internal/metrics"
	"snapkart-be/internal/middleware"
	"snapkart-be/internal/notification"
	"snapkart-be/internal/order"
	"snapkart-be/internal/payment"
	"snapkart-be/internal/payment/webhook"
	"snapkart-be/internal/pricing"

	"go.uber.org/zap"
)

var (
	initDBFunc      = db.InitDB
	startServerFunc = listenAndServe
)

func main() {
	if err := run(); err != nil {
		logger.L().Fatal("server stopped", zap.Error(err))
	}
}

func run() error {
	cfg := config.LoadConfig()
	logger.Init(cfg.AppEnv)
	defer logger.Sync()

	database := initDBFunc(cfg)
	defer database.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	handler, err := newServer(ctx, cfg, database)
	if err != nil {
		return err
	}

	logger.L().Info("server starting", zap.String("port", cfg.AppPort), zap.String("env", cfg.AppEnv))
	return startServerFunc(ctx, ":"+cfg.AppPort, handler)
}

// newServer wires repositories, services and the HTTP stack. Background
// workers stop when ctx is done.
func newServer(ctx context.Context, cfg *config.Config, database *sql.DB) (http.Handler, error) {
	publisher, err := notification.NewTelegramPublisher(cfg.Telegram)
	if err != nil {
		return nil, err
	}

	orderRepo := order.NewRepository()
	machine := order.NewMachine(orderRepo)
	agentRepo := dispatch.NewRepository()
	couponSvc := coupon.NewService(database, coupon.NewRepository())
	pricingSvc := pricing.NewService(database, pricing.NewRepository())

	notifications := notification.NewRepository()
	reconciler := payment.NewReconciler(payment.ReconcilerDeps{
		DB:            database,
		Repo:          payment.NewRepository(),
		Gateway:       payment.NewCashfreeGateway(cfg.Gateway),
		Orders:        machine,
		Bookings:      booking.NewConfirmer(booking.NewRepository(), notifications),
		Notifications: notifications,
		Notifier:      publisher,
		Config:        cfg.Gateway,
	})

	orderSvc := order.NewService(order.Dependencies{
		DB:        database,
		Repo:      orderRepo,
		Machine:   machine,
		Catalog:   catalog.NewRepository(),
		Pricing:   pricingSvc,
		Coupons:   couponSvc,
		Allocator: dispatch.NewAllocator(agentRepo),
		Agents:    agentRepo,
		Payments:  reconciler,
	})

	h := &api.Handler{
		Orders:   orderSvc,
		Coupons:  couponSvc,
		Pricing:  pricingSvc,
		Agents:   dispatch.NewService(database, agentRepo),
		Payments: reconciler,
	}

	limiter := middleware.NewLimiter(cfg.InternalSecretKey)
	go limiter.Run(ctx)

	router := setupRouter(h, webhook.NewWebhookHandler(reconciler).PaymentWebhookHandler)
	return chain(router,
		logger.RequestIDMiddleware,
		logger.LoggingMiddleware,
		middleware.CORS(cfg.AllowedOrigin),
		auth.Middleware([]byte(cfg.JWTSecret)),
		limiter.Middleware,
	), nil
}

func setupRouter(h *api.Handler, webhookHandler http.HandlerFunc) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	mux.Handle("GET /debug/metrics", metrics.Handler())
	mux.HandleFunc("POST /webhook/payment", webhookHandler)

	h.Register(mux)
	return mux
}

// chain wraps h so the first middleware is the outermost.
func chain(h http.Handler, mws ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

func listenAndServe(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logger.L().Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"libra-pay/internal/config"
	"libra-pay/internal/database"
	"libra-pay/internal/hub"
	"libra-pay/internal/infrastructure/payment"
	"libra-pay/internal/repo"
	"libra-pay/internal/server"
	"libra-pay/internal/service"
	"libra-pay/internal/worker"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer db.Close()

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Fatal("redis", zap.Error(err))
	}

	paymentHub := hub.New(logger)
	bridge := hub.NewBridge(rdb, paymentHub, logger)

	txRepo := repo.NewTransactionRepo(db)
	gateway := payment.NewPayOSGateway(cfg.GatewayURL, cfg.GatewayAPIKey, cfg.GatewayClockOffset, logger)
	payments := service.NewPaymentService(db, txRepo, gateway, bridge, logger)
	sweeper := worker.NewExpirySweeper(db, txRepo, bridge, cfg.SweepInterval, logger)

	srv := server.New(db, payments, paymentHub, []byte(cfg.JWTSecret), cfg.GatewayAPIKey, logger)
	httpServer := &http.Server{
		Addr:    ":" + cfg.AppPort,
		Handler: srv.Router(),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("api listening", zap.String("port", cfg.AppPort))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error { return bridge.Run(gctx) })
	g.Go(func() error { return sweeper.Run(gctx) })
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		paymentHub.Shutdown()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal("exit", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

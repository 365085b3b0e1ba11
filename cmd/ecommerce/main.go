// Package main запускает HTTP-сервер магазина.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/AlpayBeydemir/ecommerce-graphql/internal/config"
	"github.com/AlpayBeydemir/ecommerce-graphql/internal/gateway"
	"github.com/AlpayBeydemir/ecommerce-graphql/internal/handler"
	"github.com/AlpayBeydemir/ecommerce-graphql/internal/middleware"
	"github.com/AlpayBeydemir/ecommerce-graphql/internal/pricing"
	"github.com/AlpayBeydemir/ecommerce-graphql/internal/repository"
	"github.com/AlpayBeydemir/ecommerce-graphql/internal/search"
	"github.com/AlpayBeydemir/ecommerce-graphql/internal/service"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	repo, err := repository.NewPostgresRepository(cfg.DatabaseURI)
	if err != nil {
		sugar.Fatalw("database initialization error", "error", err.Error())
	}
	defer repo.Close()

	calc, err := pricing.NewCalculator(cfg.TaxRate)
	if err != nil {
		sugar.Fatalw("tax rate error", "error", err.Error())
	}

	var indexer service.Indexer
	if cfg.ElasticsearchAddress != "" {
		es, err := search.NewElasticsearch(cfg.ElasticsearchAddress)
		if err != nil {
			sugar.Fatalw("elasticsearch initialization error", "error", err.Error())
		}
		indexer = es
	}

	gw := gateway.New(gateway.RandomDecider{SuccessPercent: cfg.GatewaySuccessPercent})

	svc := service.NewService(
		service.NewPostgresStore(repo),
		gw,
		calc,
		indexer,
		logger,
		service.Config{
			AccessTokenTTL:  cfg.AccessTokenTTL,
			RefreshTokenTTL: cfg.RefreshTokenTTL,
		},
	)
	defer svc.Close()

	authMiddleware := middleware.NewAuthMiddleware(svc)
	h := handler.NewHandler(svc, logger, authMiddleware)

	r := h.SetupRouter()

	server := &http.Server{
		Addr:    cfg.RunAddress,
		Handler: r,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Запуск HTTP-сервера
	g.Go(func() error {
		sugar.Infow("starting ecommerce server", "addr", cfg.RunAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}

package main

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/krlenix/dermotin-sub001/internal/capi"
	"github.com/krlenix/dermotin-sub001/internal/config"
	"github.com/krlenix/dermotin-sub001/internal/handler"
	"github.com/krlenix/dermotin-sub001/internal/logger"
	"github.com/krlenix/dermotin-sub001/internal/pixel"
	"github.com/krlenix/dermotin-sub001/internal/repository"
	"github.com/krlenix/dermotin-sub001/internal/repository/clickhouse"
	"github.com/krlenix/dermotin-sub001/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	log, err := logger.New(cfg.Service.Environment)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer func(log *zap.Logger) {
		err := log.Sync()
		if err != nil {
			log.Error("Failed to sync logger", zap.Error(err))
		}
	}(log)

	log.Info("Starting conversion relay",
		zap.String("environment", cfg.Service.Environment),
		zap.String("port", cfg.Service.Port))

	ctx := context.Background()

	resolver := pixel.NewResolver(cfg, log)

	// Delivery-outcome log is optional telemetry; without a ClickHouse host
	// the relay runs with a no-op log.
	var deliveryLog repository.DeliveryLog = repository.NopDeliveryLog{}
	if cfg.ClickHouse.Host != "" {
		chClient, err := clickhouse.NewClient(ctx, &cfg.ClickHouse, log)
		if err != nil {
			log.Fatal("Failed to create ClickHouse client", zap.Error(err))
		}
		repo := clickhouse.NewRepository(chClient, log)
		if err := repo.InitSchema(ctx); err != nil {
			log.Fatal("Failed to initialize delivery log schema", zap.Error(err))
		}
		defer func() {
			if err := repo.Close(); err != nil {
				log.Error("Failed to close delivery log", zap.Error(err))
			}
		}()
		deliveryLog = repo
	}

	capiClient := capi.NewClient(http.DefaultClient, cfg.Graph.BaseURL, cfg.Graph.APIVersion, !cfg.IsProduction(), log)

	relayService := service.NewRelayService(resolver, capiClient, deliveryLog, log, nil)

	h := handler.NewHandler(relayService, cfg.IsProduction(), log)

	addr := fmt.Sprintf(":%s", cfg.Service.Port)
	log.Info("Relay server starting", zap.String("address", addr))

	if err := http.ListenAndServe(addr, h); err != nil {
		log.Fatal("Failed to start relay server", zap.Error(err))
	}
}

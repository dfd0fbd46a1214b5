package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AzuraForge/api/pkg/api"
	"github.com/AzuraForge/api/pkg/broker"
	"github.com/AzuraForge/api/pkg/catalog"
	"github.com/AzuraForge/api/pkg/common/config"
	"github.com/AzuraForge/api/pkg/common/database"
	"github.com/AzuraForge/api/pkg/common/events"
	"github.com/AzuraForge/api/pkg/common/logger"
	"github.com/AzuraForge/api/pkg/experiment"
	"github.com/AzuraForge/api/pkg/relay"
	"github.com/AzuraForge/api/pkg/serving"
	"github.com/AzuraForge/api/pkg/status"
	"github.com/gorilla/mux"
)

func main() {
	logger.Init()
	cfg := config.Load()

	db, err := database.NewPostgres(cfg)
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to initialize PostgreSQL")
	}
	defer database.ClosePostgres(db)

	rdb, err := database.NewRedis(cfg)
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to initialize Redis")
	}
	defer rdb.Close()

	repo := experiment.NewRepository(db)
	if err := repo.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("Failed to migrate experiment schema")
	}

	producer := events.NewProducer(cfg)
	defer producer.Close()

	celery := broker.NewCeleryClient(rdb, cfg)
	coordinator := experiment.NewCoordinator(celery, producer)
	resolver := status.NewResolver(celery, repo, cfg.BrokerLookupTimeout)

	cat, err := catalog.NewCatalog(cfg.CatalogDir)
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to load pipeline catalog")
	}

	predictor, err := serving.NewPredictor(repo, cfg.ModelCacheSize)
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to initialize predictor")
	}

	progress := relay.NewHandler(relay.NewRedisBus(rdb), resolver, cfg)
	handlers := api.NewHandlers(coordinator, repo, resolver, cat, predictor)

	router := mux.NewRouter()
	api.Register(router, handlers, progress)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: 0, // long-lived WebSocket sessions manage their own deadlines
	}

	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"host": cfg.ServerHost,
			"port": cfg.ServerPort,
		}).Info("AzuraForge API started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down AzuraForge API...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Log.WithError(err).Error("Server forced to shutdown")
	}

	logger.Log.Info("AzuraForge API stopped")
}

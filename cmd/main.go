package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/danielpmchugh/chess-pattern-analyzer/internal/adapters"
	"github.com/danielpmchugh/chess-pattern-analyzer/internal/bootstrap"
	analysisDelivery "github.com/danielpmchugh/chess-pattern-analyzer/internal/delivery/analysis"
	ownMiddleware "github.com/danielpmchugh/chess-pattern-analyzer/internal/middleware"
)

type mainDeliveryHandler struct {
	analysis *analysisDelivery.AnalysisHandler
}

func main() {
	logger := NewLogger()
	cfg, err := bootstrap.Setup(".env")
	if err != nil {
		logger.Error("Failed to setup configuration", zap.Error(err))
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go handleShutdown(cancel, logger)

	redisAdapter := adapters.NewAdapterRedis(cfg, logger)
	if err := redisAdapter.Init(ctx); err != nil {
		logger.Fatal("Failed to initialize redis", zap.Error(err))
	}
	defer redisAdapter.Close(ctx)

	r := chi.NewRouter()
	handlers := initializeDeliveryHandlers(*cfg, logger, redisAdapter)
	handlers.Router(r, cfg.IsLocalCors)

	port := ":" + cfg.ServerPort
	logger.Infof("Server is running on port %s", port)
	if err := http.ListenAndServe(port, r); err != nil {
		logger.Fatal("Failed to start server", zap.Error(err))
	}
}

func NewLogger() *zap.SugaredLogger {
	logger, err := zap.NewProduction()
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	return logger.Sugar()
}

func (h *mainDeliveryHandler) Router(r *chi.Mux, isLocalCors bool) {
	if isLocalCors {
		r.Use(ownMiddleware.CORS)
	}
	r.Use(ownMiddleware.RequestID)
	r.Use(middleware.Logger)

	r.Get("/health", h.analysis.HandleHealth)
	r.Post("/api/v1/analyze", h.analysis.HandleAnalyze)
	r.Post("/api/v1/analyze/batch", h.analysis.HandleAnalyzeBatch)
	r.Get("/api/v1/report", h.analysis.HandleGetReport)
	r.Get("/ws/analyze", h.analysis.HandleAnalyzeWS)
}

func initializeDeliveryHandlers(
	cfg bootstrap.Config,
	log *zap.SugaredLogger,
	redisAdapter *adapters.AdapterRedis,
) *mainDeliveryHandler {
	return &mainDeliveryHandler{
		analysis: analysisDelivery.NewAnalysisHandler(cfg, log, redisAdapter),
	}
}

func handleShutdown(cancelFunc context.CancelFunc, log *zap.SugaredLogger) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	log.Info("Received shutdown signal")
	cancelFunc()
	time.Sleep(1 * time.Second)
	os.Exit(0)
}

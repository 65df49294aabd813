package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/doculedger/doculedger/internal/api"
	"github.com/doculedger/doculedger/internal/batch"
	"github.com/doculedger/doculedger/internal/config"
	"github.com/doculedger/doculedger/internal/extract"
	"github.com/doculedger/doculedger/internal/logger"
	"github.com/doculedger/doculedger/internal/ocr"
	"github.com/doculedger/doculedger/internal/pipeline"
	"github.com/doculedger/doculedger/internal/rates"
	"github.com/doculedger/doculedger/internal/store/postgres"
)

func main() {
	cfg, err := config.LoadConfig("config")
	if err != nil {
		logger.New("info").Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(cfg.Logging.Level)
	ctx := context.Background()

	db, err := postgres.NewDB(ctx, log, &cfg.Postgres)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer db.Close()
	st := postgres.NewStore(db, log)

	parser, err := pipeline.NewGeminiParser(ctx, pipeline.GeminiParserConfig{
		Model:        cfg.AI.Model,
		Timeout:      cfg.AI.Timeout,
		MaxAttempts:  cfg.AI.MaxAttempts,
		RetryBackoff: cfg.AI.RetryBackoff,
	}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create extraction model client")
	}

	extractor := extract.New(ocr.NewTesseract(cfg.Extract.OCRLanguage), extract.Config{
		MinCharsPerPage: cfg.Extract.OCRMinCharsPerPage,
		RasterDPI:       cfg.Extract.RasterDPI,
		MaxVisionPages:  cfg.Extract.MaxVisionPages,
	})

	resolver := rates.NewResolver(cfg.Rates.Endpoint, cfg.Rates.Timeout, rates.NewCache())

	processor := pipeline.NewProcessor(extractor, parser, resolver, cfg.Rates.BaseCurrency, log)

	batchService, err := batch.NewService(processor, st, cfg.WorkerPool.Size, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create worker pool")
	}
	defer batchService.Shutdown()

	handler := api.NewRouter(batchService, st, cfg.Server.MaxUploadBytes, log)

	server := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Str("base_currency", cfg.Rates.BaseCurrency).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

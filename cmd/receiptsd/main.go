// Command receiptsd runs the receipts backend: the submission pipeline fed by
// the transport bridge and the mini-app HTTP API, sharing one SQLite ledger.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/sphinxlike/go-receipts-backend/internal/bridge"
	"github.com/sphinxlike/go-receipts-backend/internal/config"
	httpapi "github.com/sphinxlike/go-receipts-backend/internal/http"
	"github.com/sphinxlike/go-receipts-backend/internal/observability"
	"github.com/sphinxlike/go-receipts-backend/internal/ocr"
	"github.com/sphinxlike/go-receipts-backend/internal/repo"
	"github.com/sphinxlike/go-receipts-backend/internal/services"
	"github.com/sphinxlike/go-receipts-backend/internal/sysutil"
)

const version = "1.0.0"

func main() {
	_ = godotenv.Load()

	cfg := config.MustLoad()
	sysutil.SetLogLevel(cfg.LogLevel)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	logger := log.With().Str("service", "receiptsd").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.OTEL.Enabled {
		shutdown, err := observability.SetupOTel(ctx, cfg.OTEL, version)
		if err != nil {
			logger.Fatal().Err(err).Msg("otel setup failed")
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdown(sctx)
		}()
	}

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open database failed")
	}
	if err := repo.AutoMigrate(db); err != nil {
		logger.Fatal().Err(err).Msg("migration failed")
	}

	groups, err := config.LoadGroups(cfg.GroupsPath)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.GroupsPath).Msg("load group registry failed")
	}
	for _, g := range groups.All() {
		if g.HousesFile == "" {
			continue
		}
		n, err := repo.SeedHouses(db, g.ChatID, g.HousesFile)
		if err != nil {
			logger.Fatal().Err(err).Str("group", g.Name).Msg("seed house registry failed")
		}
		logger.Info().Str("group", g.Name).Int("houses", n).Msg("house registry seeded")
	}

	store := &services.GormStore{DB: db}
	recognizer := ocr.New(cfg.OCR, logger)
	fetcher := bridge.NewHTTPFetcher(cfg.OCR.Timeout)

	var notifier services.Notifier
	if cfg.BridgeURL != "" {
		notifier = bridge.NewNotifier(cfg.BridgeURL, logger)
	} else {
		logger.Warn().Msg("NOTIFY_BRIDGE_URL not set, verdicts go to the log only")
		notifier = &bridge.LogNotifier{Log: logger}
	}

	submissions := services.NewSubmissionService(groups, store, store, recognizer, fetcher, notifier, cfg, logger)
	payments := services.NewPaymentService(db, store, store, groups)
	auth := services.NewAuthService(cfg.BotToken)

	gin.SetMode(cfg.GinMode)
	engine := gin.New()
	httpapi.RegisterRoutes(engine, httpapi.Deps{
		DB:          db,
		Submissions: submissions,
		Payments:    payments,
		Auth:        auth,
	}, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           engine,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server stopped")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
}

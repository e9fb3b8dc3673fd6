// @title           Galamsey Report Backend API
// @version         1.0.0
// @description     Backend API for reporting illegal mining. Users build a report step by step, submit it, and optionally record a hash of it on chain to earn rewards. Administrators review the classified reports.

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey Bearer
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"galamsey-report-backend/internal/ai"
	"galamsey-report-backend/internal/config"
	"galamsey-report-backend/internal/database"
	"galamsey-report-backend/internal/draft"
	"galamsey-report-backend/internal/handlers"
	"galamsey-report-backend/internal/location"
	"galamsey-report-backend/internal/logger"
	"galamsey-report-backend/internal/middleware"
	"galamsey-report-backend/internal/photos"
	"galamsey-report-backend/internal/services"
	"galamsey-report-backend/internal/submission"
	"galamsey-report-backend/internal/supabase"
	"galamsey-report-backend/internal/wallet"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// reportStore is what both store implementations provide.
type reportStore interface {
	submission.ReportStore
	services.EnrichmentStore
	handlers.ReportReader
	IsAdmin(ctx context.Context, userID uuid.UUID) (bool, error)
}

var (
	_ reportStore = (*supabase.DatabaseClient)(nil)
	_ reportStore = (*supabase.RestStore)(nil)
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New("info", "console")
		bootLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := openReportStore(ctx, cfg, log)
	if closer, ok := store.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	medium, disconnect := openDraftMedium(ctx, cfg, log)
	defer disconnect()

	var enricher submission.Enricher
	if cfg.GeminiAPIKey != "" {
		gemini, err := ai.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize Gemini client, AI classification disabled")
		} else {
			defer gemini.Close()
			enricher = services.NewEnrichmentService(ai.NewClassifier(gemini), store, log)
		}
	} else {
		log.Warn().Msg("GEMINI_API_KEY not set, AI classification disabled")
	}

	chain, err := wallet.NewClient(cfg.Chain, wallet.DialEthclient, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize chain client")
	}
	defer chain.Close()
	if !chain.Enabled() {
		log.Warn().Msg("REPORT_CONTRACT_ADDRESS not set, reports will not be recorded on chain")
	}

	var archive photos.Archive
	if cfg.SupabaseStorageBucket != "" {
		archive = supabase.NewStorageClient(cfg.SupabaseURL, cfg.SupabasePublishableKey, cfg.SupabaseStorageBucket)
	}

	connections := wallet.NewConnections()
	registry := submission.NewRegistry()
	trackers := location.NewTrackers()
	geocoder := location.NewGeocoder(cfg.GeocoderBaseURL, cfg.GeocoderUserAgent)

	draftsHandler := handlers.NewDraftsHandler(medium, trackers, log)
	locationHandler := handlers.NewLocationHandler(geocoder, trackers, medium, cfg.GeocoderDebounce, log)
	photosHandler := handlers.NewPhotosHandler(photos.NewCollector(archive, log), medium, log)
	walletHandler := handlers.NewWalletHandler(connections, chain, log)
	submissionsHandler := handlers.NewSubmissionsHandler(registry, medium, connections, submission.Deps{
		Store:         store,
		Enricher:      enricher,
		Chain:         chain,
		ChainTimeout:  cfg.Chain.Timeout,
		EnrichTimeout: cfg.AITimeout,
	}, chain, log)
	adminHandler := handlers.NewAdminHandler(store, enricher, cfg.AITimeout, chain, log)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(log))

	// Health check (no auth)
	router.GET("/health", handlers.HealthHandler)

	api := router.Group("/api/v1")
	api.Use(middleware.AuthMiddleware(cfg))

	api.GET("/categories", handlers.ListCategories)

	// Wizard steps
	api.GET("/drafts/current", draftsHandler.GetDraft)
	api.PATCH("/drafts/current", draftsHandler.SaveDraft)
	api.DELETE("/drafts/current", draftsHandler.DeleteDraft)

	api.POST("/location/query", locationHandler.QueryLocation)
	api.GET("/location/query", locationHandler.GetLocationQuery)
	api.DELETE("/location/query", locationHandler.CancelLocationQuery)
	api.POST("/location/device", locationHandler.UseDevicePosition)
	api.GET("/location/reverse", locationHandler.ReverseGeocode)

	api.POST("/photos", photosHandler.AddPhoto)
	api.DELETE("/photos/:index", photosHandler.RemovePhoto)

	// Wallet
	api.POST("/wallet/connect", walletHandler.ConnectWallet)
	api.DELETE("/wallet/connect", walletHandler.DisconnectWallet)
	api.GET("/wallet/rewards", walletHandler.GetRewards)

	// Submission
	api.POST("/submissions", submissionsHandler.CreateSubmission)
	api.GET("/submissions/:id", submissionsHandler.GetSubmission)
	api.POST("/submissions/:id/retry-chain", submissionsHandler.RetryChain)
	api.POST("/submissions/:id/retry", submissionsHandler.RetrySubmission)
	api.DELETE("/submissions/:id", submissionsHandler.DiscardSubmission)

	// Moderation
	admin := api.Group("/admin")
	admin.Use(middleware.RequireAdmin(store))
	admin.GET("/reports", adminHandler.ListReports)
	admin.GET("/reports/:id", adminHandler.GetReport)
	admin.DELETE("/reports/:id", adminHandler.DeleteReport)
	admin.POST("/reports/:id/reprocess", adminHandler.ReprocessReport)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
	}
	trackers.CloseAll()
	registry.DiscardAll()
}

// openReportStore prefers a direct database connection and falls back to the
// Supabase REST API.
func openReportStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) reportStore {
	if cfg.DatabaseURL == "" {
		log.Warn().Msg("DATABASE_URL not set, using the Supabase REST API. Migrations will be skipped.")
		return mustRestStore(cfg, log)
	}

	dbClient, err := supabase.NewDatabaseClient(cfg.DatabaseURL)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to connect to database, using the Supabase REST API")
		return mustRestStore(cfg, log)
	}

	if err := database.NewMigrator(dbClient.DB(), log).Run(ctx); err != nil {
		log.Warn().Err(err).Msg("Migration failed")
	} else {
		log.Info().Msg("Migrations completed successfully")
	}
	return dbClient
}

func mustRestStore(cfg *config.Config, log zerolog.Logger) reportStore {
	rest, err := supabase.NewRestStore(cfg.SupabaseURL, cfg.SupabasePublishableKey)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize Supabase client")
	}
	return rest
}

// openDraftMedium uses MongoDB when configured so drafts survive restarts.
func openDraftMedium(ctx context.Context, cfg *config.Config, log zerolog.Logger) (draft.Medium, func()) {
	if cfg.MongoURI == "" {
		log.Warn().Msg("MONGO_URI not set, drafts are kept in memory")
		return draft.NewMemoryMedium(), func() {}
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.MongoURI))
	if err == nil {
		err = client.Ping(connectCtx, nil)
	}
	if err != nil {
		log.Warn().Err(err).Msg("Failed to connect to MongoDB, drafts are kept in memory")
		return draft.NewMemoryMedium(), func() {}
	}

	medium, err := draft.NewMongoMedium(connectCtx, client.Database(cfg.MongoDB), cfg.DraftTTL)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to prepare draft collection, drafts are kept in memory")
		_ = client.Disconnect(context.Background())
		return draft.NewMemoryMedium(), func() {}
	}

	return medium, func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = client.Disconnect(disconnectCtx)
	}
}

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/hyusa97/stock-analysis-system/internal/auth"
	"github.com/hyusa97/stock-analysis-system/internal/config"
	"github.com/hyusa97/stock-analysis-system/internal/database"
	"github.com/hyusa97/stock-analysis-system/internal/ledger"
	"github.com/hyusa97/stock-analysis-system/internal/marketdata"
	"github.com/hyusa97/stock-analysis-system/internal/portfolio"
	"github.com/hyusa97/stock-analysis-system/internal/settlement"
	"github.com/hyusa97/stock-analysis-system/internal/symbols"
	"github.com/hyusa97/stock-analysis-system/internal/trading"
	"github.com/hyusa97/stock-analysis-system/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// init configures the application logging based on environment settings
// In development mode, it enables pretty printing with timestamps
// Debug logging can be enabled via DEBUG environment variable
func init() {
	// Configure pretty logging for development
	if os.Getenv("ENV") != "production" {
		output := zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
		zlog.Logger = zerolog.New(output).With().Timestamp().Logger()
	}

	// Set global log level
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if os.Getenv("DEBUG") == "true" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

// main initializes and runs the trading server with graceful shutdown
// support. It wires the ledger store, the settlement sweeper and the
// external collaborators behind the API routes.
func main() {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize database
	db, err := database.NewDatabase(&cfg)
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to initialize database")
	}
	ledgerDB := ledger.NewDatabase(db)

	// Initialize router
	router := gin.Default()

	// Initialize services and handlers
	authService, err := auth.NewService(cfg.Auth)
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to initialize auth service")
	}
	authHandlers := auth.NewGinHandlers(authService)

	marketClient := marketdata.NewClient(&cfg.MarketData)
	marketHandlers := marketdata.NewGinHandlers(marketClient)

	providers := make([]symbols.Provider, 0, len(cfg.Symbols.ProviderURLs))
	for i, url := range cfg.Symbols.ProviderURLs {
		providers = append(providers, symbols.NewHTTPProvider(fmt.Sprintf("provider-%d", i+1), url))
	}
	directory := symbols.NewDirectory(providers, cfg.Symbols.Fallback)
	symbolHandlers := symbols.NewGinHandlers(directory)

	portfolioService := portfolio.NewService(ledgerDB)

	cutoff, err := settlement.ParseCutoff(cfg.Settlement.MarketCloseCutoff)
	if err != nil {
		zlog.Fatal().Err(err).Msg("Invalid market close cutoff")
	}
	lookupTimeout := time.Duration(cfg.MarketData.TimeoutSeconds) * time.Second
	sweeper := settlement.NewSweeper(ledgerDB, portfolioService, cutoff, lookupTimeout)
	sweepInterval := time.Duration(cfg.Settlement.SweepIntervalSeconds) * time.Second
	processor := settlement.NewProcessor(sweeper, marketClient, sweepInterval)
	settlementHandlers := settlement.NewGinHandlers(processor)

	tradingService := trading.NewService(ledgerDB, portfolioService)
	tradingHandlers := trading.NewGinHandlers(tradingService, marketClient)

	portfolioHandlers := portfolio.NewGinHandlers(portfolioService, ledgerDB, processor)

	// Start the background sweep loop
	processorCtx, processorCancel := context.WithCancel(context.Background())
	defer processorCancel()

	go processor.Start(processorCtx)

	// Setup middleware
	router.Use(middleware.RateLimit())

	// Setup API routes
	setupRoutes(router, cfg.Auth.JWTSecret, authHandlers, tradingHandlers, portfolioHandlers, symbolHandlers, marketHandlers, settlementHandlers)

	// Create server
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	// Graceful shutdown setup
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal().Err(err).Msg("listen")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zlog.Info().Msg("Shutting down server...")

	// Give outstanding operations 5 seconds to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	zlog.Info().Msg("Server exiting")
}

// setupRoutes configures all API endpoints and their handlers
// It groups routes by functionality and applies appropriate middleware:
// - Auth routes: Public endpoint for the login form
// - User routes: Protected by JWT authentication
// - Internal routes: Operator endpoints (should also be network-protected)
func setupRoutes(
	router *gin.Engine,
	jwtSecret string,
	authHandlers *auth.GinHandlers,
	tradingHandlers *trading.GinHandlers,
	portfolioHandlers *portfolio.GinHandlers,
	symbolHandlers *symbols.GinHandlers,
	marketHandlers *marketdata.GinHandlers,
	settlementHandlers *settlement.GinHandlers,
) {
	v1 := router.Group("/api/v1")
	{
		// Auth routes
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/login", authHandlers.LoginHandler())
		}

		// User routes
		user := v1.Group("")
		user.Use(middleware.JWTAuth(jwtSecret))
		{
			user.POST("/orders", tradingHandlers.SubmitOrderHandler())
			user.GET("/orders", portfolioHandlers.HistoryHandler())
			user.GET("/portfolio", portfolioHandlers.PortfolioHandler())
			user.GET("/symbols", symbolHandlers.ListHandler())
			user.GET("/symbols/:symbol/history", marketHandlers.HistoryHandler())
		}

		// Internal routes (should be protected by internal network)
		internal := v1.Group("/internal")
		internal.Use(middleware.InternalAuth(jwtSecret))
		{
			internal.POST("/sweep", settlementHandlers.SweepHandler())
		}
	}
}

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"agrimonitor/internal/api"
	"agrimonitor/internal/config"
	"agrimonitor/internal/services"
	"agrimonitor/internal/valve"
	"agrimonitor/pkg/client"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	zap.ReplaceGlobals(logger)
	logger.Info("Starting field telemetry service")

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	// Outbound integration clients
	geoClient := client.NewNominatimClient(cfg.Geocoder.BaseURL, client.ClientConfig{
		Timeout:        cfg.Geocoder.Timeout,
		UserAgent:      cfg.Geocoder.UserAgent,
		BreakerTimeout: 30 * time.Second,
	}, logger)

	weatherClient := client.NewOpenMeteoClient(
		cfg.Weather.BaseURL,
		cfg.Weather.Timezone,
		cfg.Weather.SoilDepth,
		client.ClientConfig{
			Timeout:        cfg.Weather.Timeout,
			BreakerTimeout: 30 * time.Second,
		},
		logger,
	)

	// Remote valve flag store; connects lazily on first use so a missing
	// credentials file degrades the valve panel instead of failing startup.
	valveStore := valve.NewStore(valve.Config{
		DatabaseURL:     cfg.Valve.DatabaseURL,
		CredentialsPath: cfg.Valve.CredentialsPath,
	}, logger)

	dashboard := services.NewDashboard(geoClient, weatherClient, valveStore, cfg, logger)

	// Create Fiber app
	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		ErrorHandler: errorHandler,
	})

	// Setup handlers and routes
	handler := api.NewHandler(dashboard, logger)
	api.SetupRoutes(app, handler, logger)

	// Start server in goroutine
	go func() {
		addr := ":" + cfg.Server.Port
		logger.Info("Starting server", zap.String("address", addr))

		if err := app.Listen(addr); err != nil {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Create shutdown context with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}

	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
	})
}

package bootstrap

import (
	"strings"

	"tariff_server/adapter/in/http"
	"tariff_server/config"
	"tariff_server/infra/middleware"
	"tariff_server/pkg/logger"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

func NewAPI(cfg *config.Config) (*fiber.App, func(), error) {
	logger.Init(logger.Config{
		Level:   logger.ParseLevel(cfg.LogLevel),
		Service: "tariffscope-api",
	})

	deps, cleanup, err := NewDependencies(cfg)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize dependencies")
		return nil, nil, err
	}

	app := fiber.New(fiber.Config{
		ErrorHandler:          middleware.ErrorHandler(),
		DisableStartupMessage: cfg.IsProduction(),
		StrictRouting:         false,
		CaseSensitive:         false,

		ReadBufferSize:  16384,
		WriteBufferSize: 16384,

		JSONEncoder: json.Marshal,
		JSONDecoder: json.Unmarshal,

		// Inline base64 images dominate request size.
		BodyLimit: 12 * 1024 * 1024,

		ServerHeader:       "",
		DisableDefaultDate: true,

		StreamRequestBody:            true,
		DisablePreParseMultipartForm: true,
	})

	// Global middleware stack (order matters)
	app.Use(middleware.Recover())
	app.Use(middleware.RequestID())
	app.Use(middleware.RequestLogger())

	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	allowOrigins := strings.Join(cfg.AllowedOrigins, ",")
	if allowOrigins == "" {
		allowOrigins = "http://localhost:3000,http://localhost:5173"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:  allowOrigins,
		AllowMethods:  "GET,POST,OPTIONS",
		AllowHeaders:  "Origin,Content-Type,Accept,X-Request-ID",
		ExposeHeaders: "X-Request-ID",
		MaxAge:        86400,
	}))

	api := app.Group("/api/v1")

	healthHandler := http.NewHealthHandler(deps.Redis)
	healthHandler.Register(app, api)

	comparisonHandler := http.NewComparisonHandler(deps.ComparisonService, http.HandlerDefaults{
		DestinationCountry: cfg.DefaultDestination,
		Currency:           cfg.DefaultCurrency,
	})
	comparisonHandler.Register(api)

	logger.Info("API server initialized successfully")

	return app, cleanup, nil
}

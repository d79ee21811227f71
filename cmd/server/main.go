package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/usil/eventhos-relay/internal/config"
	"github.com/usil/eventhos-relay/internal/consumer"
	"github.com/usil/eventhos-relay/internal/contracts"
	"github.com/usil/eventhos-relay/internal/crypto"
	"github.com/usil/eventhos-relay/internal/database"
	"github.com/usil/eventhos-relay/internal/dispatch"
	"github.com/usil/eventhos-relay/internal/gate"
	"github.com/usil/eventhos-relay/internal/handlers"
	"github.com/usil/eventhos-relay/internal/logger"
	"github.com/usil/eventhos-relay/internal/rabbitmq"
	"github.com/usil/eventhos-relay/internal/routes"
	"github.com/usil/eventhos-relay/internal/sink"
)

func main() {
	if err := logger.Init(os.Getenv("LOG_LEVEL")); err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer logger.Sync()
	log := logger.Logger

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	// Derive the process-wide encryption key
	codec, err := crypto.NewCodec(cfg.Crypto.Key)
	if err != nil {
		logger.Fatal("Failed to initialize crypto codec", zap.Error(err))
	}

	// Connect to PostgreSQL
	db, err := database.Connect(&cfg.Database, log)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := database.Close(db, log); err != nil {
			logger.Error("Error closing database", zap.Error(err))
		}
	}()

	// Apply migrations
	if err := database.RunMigrations(&cfg.Database, log); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}

	// Connect to RabbitMQ
	rmq := rabbitmq.NewConnection(&cfg.RabbitMQ, log)
	if err := rmq.Connect(); err != nil {
		logger.Fatal("Failed to connect to RabbitMQ", zap.Error(err))
	}
	defer rmq.Close()

	// Failure-notification mailer (nil when SMTP is not configured)
	mailer, err := sink.NewSMTPMailer(&cfg.SMTP)
	if err != nil {
		logger.Fatal("Failed to initialize mailer", zap.Error(err))
	}
	var resultMailer sink.Mailer
	if mailer != nil {
		resultMailer = mailer
	}

	resultSink := sink.NewSink(log, resultMailer, cfg.SMTP.Subject, cfg.SMTP.MaskedFields)
	eventGate := gate.NewGate(db, cfg.Auth.TokenSecret, log)
	contractResolver := contracts.NewResolver(db)
	orchestrator := dispatch.NewOrchestrator(db, codec, resultSink, &cfg.Dispatch, log)

	// Start the queued-event consumer
	eventConsumer := consumer.NewEventConsumer(&cfg.RabbitMQ, rmq, eventGate, contractResolver, orchestrator, log)
	if err := eventConsumer.Start(); err != nil {
		logger.Fatal("Failed to start event consumer", zap.Error(err))
	}
	defer func() {
		if err := eventConsumer.Stop(); err != nil {
			logger.Error("Error stopping event consumer", zap.Error(err))
		}
	}()

	// Create Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "Eventhos Relay",
		ServerHeader: "Fiber",
	})

	// Middleware
	app.Use(recover.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization,access-key",
	}))

	// Setup routes
	eventHandler := handlers.NewEventHandler(eventGate, contractResolver, orchestrator, log)
	auditHandler := handlers.NewAuditHandler(db, codec, log)
	healthHandler := handlers.NewHealthHandler(db, rmq)
	routes.SetupRoutes(app, eventHandler, auditHandler, healthHandler)

	// Start server in a goroutine
	go func() {
		addr := cfg.Server.Host + ":" + cfg.Server.Port
		logger.Info("Server starting",
			zap.String("address", addr),
		)
		if err := app.Listen(addr); err != nil {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server")
	if err := app.Shutdown(); err != nil {
		logger.Error("Error during server shutdown", zap.Error(err))
	}

	logger.Info("Server stopped")
}

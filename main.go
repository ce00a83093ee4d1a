package main

import (
	"context"
	"errors"
	"fmt"
	stdlog "log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/Ananth-NQI/segurobot-backend/database"
	"github.com/Ananth-NQI/segurobot-backend/internal/cache"
	"github.com/Ananth-NQI/segurobot-backend/internal/config"
	"github.com/Ananth-NQI/segurobot-backend/internal/flows"
	"github.com/Ananth-NQI/segurobot-backend/internal/handlers"
	"github.com/Ananth-NQI/segurobot-backend/internal/jobs"
	"github.com/Ananth-NQI/segurobot-backend/internal/logger"
	"github.com/Ananth-NQI/segurobot-backend/internal/routes"
	"github.com/Ananth-NQI/segurobot-backend/internal/services"
	"github.com/Ananth-NQI/segurobot-backend/internal/storage"
)

const version = "1.0.0"

func main() {
	// Load .env file for local development
	if os.Getenv("INSTANCE_CONNECTION_NAME") == "" {
		if err := godotenv.Load(".env"); err != nil {
			if err := godotenv.Load("environments/.env.development"); err != nil {
				stdlog.Println("⚠️  No .env file found - checking environment variables")
			}
		}
	}

	cfg := config.Load()

	mode := "development"
	if cfg.IsProduction() {
		mode = "production"
	}
	log, err := logger.New(mode)
	if err != nil {
		stdlog.Fatal("Failed to initialize logger:", err)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("Server stopped with error", "error", err)
	}
}

func run(cfg *config.Config, log *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize storage
	store, db, err := openStore(cfg, log)
	if err != nil {
		return err
	}

	var backend services.SnapshotBackend
	if cfg.State.Backend == "database" {
		backend = services.NewStoreBackend(store)
		log.Info("📦 Session state stored in the database")
	} else {
		backend = services.NewFileBackend(cfg.State.Path, cfg.State.BackupDir)
		log.Info("📦 Session state stored on disk", "path", cfg.State.Path)
	}

	sessions := services.NewSessionManager(backend, log.Named("sessions"))
	if err := sessions.Load(ctx); err != nil {
		log.Warn("⚠️  Saved state unusable, starting fresh", "error", err)
	}

	availability := services.NewAvailability(sessions, log.Named("availability"))
	availability.Restore()
	defer availability.Stop()

	// Outbound transport
	var transport services.Sender
	if cfg.Twilio.Configured() {
		twilioService, err := services.NewTwilioService(cfg.Twilio, log.Named("twilio"))
		if err != nil {
			return fmt.Errorf("failed to initialize Twilio service: %w", err)
		}
		transport = twilioService
		log.Info("✅ Twilio service initialized", "from", cfg.Twilio.WhatsAppFrom)
	} else {
		transport = services.NewLogTransport(log.Named("transport"))
		log.Warn("⚠️  Twilio credentials not found - responses will only be logged")
	}
	messenger := services.NewMessenger(transport, cfg.Engine.SendDelay, false, log.Named("messenger"))

	exporter := services.MultiExporter{services.NewStoreExporter(store)}
	if cfg.ExportCSVPath != "" {
		exporter = append(exporter, services.NewCSVExporter(cfg.ExportCSVPath))
		log.Info("📝 Quotes exported to CSV", "path", cfg.ExportCSVPath)
	}

	catalog, err := flows.LoadCatalog(cfg.CatalogPath)
	if err != nil {
		return err
	}

	dedup := cache.NewDedupCache(cfg.Engine.DedupTTL)

	router, err := flows.NewFlowRouter(&flows.Deps{
		Sessions:        sessions,
		Sender:          messenger,
		Availability:    availability,
		Exporter:        exporter,
		Store:           store,
		Dedup:           dedup,
		Catalog:         catalog,
		Log:             log.Named("flows"),
		OperatorAddress: cfg.Engine.OperatorAddress,
		HandoffWindow:   cfg.Engine.HandoffWindow,
		DedupTTL:        cfg.Engine.DedupTTL,
	}, flows.DefaultRegistry())
	if err != nil {
		return fmt.Errorf("failed to build flow router: %w", err)
	}
	if cfg.Engine.OperatorAddress == "" {
		log.Warn("⚠️  OPERATOR_ADDRESS not set - operator notifications disabled")
	}

	app := newApp(log)
	app.Hooks().OnListen(func(fiber.ListenData) error {
		messenger.MarkReady(ctx)
		return nil
	})

	routes.SetupRoutes(app, cfg, routes.Handlers{
		WhatsApp: handlers.NewWhatsAppHandler(router, sessions, log.Named("webhook")),
		Admin:    handlers.NewAdminHandler(sessions, availability, store, dedup, log.Named("admin")),
		Health:   handlers.NewHealthHandler(version, db, sessions, cfg.Twilio.Configured()),
	}, log)

	maintenance := jobs.NewMaintenanceJob(sessions, dedup, jobs.MaintenanceConfig{
		SnapshotInterval:   cfg.State.SnapshotInterval,
		DedupSweepInterval: cfg.Engine.DedupSweepInterval,
		SessionSweepEvery:  cfg.Engine.SessionSweepEvery,
		SessionMaxIdle:     cfg.Engine.SessionMaxIdle,
	}, log.Named("jobs"))

	log.Info("🚀 SeguroBot Backend starting",
		"port", cfg.Port,
		"environment", cfg.Environment,
		"storage", storageType(cfg),
		"state_backend", cfg.State.Backend,
		"whatsapp", cfg.Twilio.Configured(),
		"bot_active", sessions.BotActive(),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return maintenance.Run(gctx) })
	g.Go(func() error {
		if err := app.Listen(":" + cfg.Port); err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("🛑 Gracefully shutting down...")
		return app.ShutdownWithTimeout(10 * time.Second)
	})

	runErr := g.Wait()

	// Final snapshot and backup so no acknowledged turn is lost
	saveCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := sessions.Flush(saveCtx); err != nil {
		log.Error("Final state flush failed", "error", err)
	}
	if _, err := sessions.Backup(saveCtx); err != nil {
		log.Error("Final state backup failed", "error", err)
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	log.Info("👋 Shutdown complete")
	return nil
}

// openStore connects the configured database, or falls back to memory
func openStore(cfg *config.Config, log *logger.Logger) (storage.Store, *gorm.DB, error) {
	if cfg.Database.Driver == "" {
		log.Warn("⚠️  Using in-memory storage (not for production!)")
		return storage.NewMemoryStore(), nil, nil
	}

	log.Info("📦 Connecting to database...", "driver", cfg.Database.Driver)
	db, err := database.Connect(cfg.Database, log.Named("database"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	store := storage.NewDatabaseStore(db)
	log.Info("🔄 Running database migrations...")
	if err := store.Migrate(); err != nil {
		return nil, nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	log.Info("✅ Database migrations completed!")
	return store, db, nil
}

func newApp(log *logger.Logger) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "SeguroBot Backend v" + version,
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			var e *fiber.Error
			if errors.As(err, &e) {
				code = e.Code
			}
			if code >= fiber.StatusInternalServerError {
				log.Error("Request failed", "path", c.Path(), "error", err)
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Admin-Token",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))
	return app
}

func storageType(cfg *config.Config) string {
	switch cfg.Database.Driver {
	case "":
		return "In-Memory"
	case "sqlite":
		return "SQLite"
	default:
		return "PostgreSQL"
	}
}

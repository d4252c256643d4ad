package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/subosito/gotenv"
	"go.uber.org/zap"

	"github.com/condominio/pagobot/internal/config"
	"github.com/condominio/pagobot/internal/conversation"
	"github.com/condominio/pagobot/internal/dedup"
	"github.com/condominio/pagobot/internal/export"
	"github.com/condominio/pagobot/internal/extraction"
	"github.com/condominio/pagobot/internal/fields"
	"github.com/condominio/pagobot/internal/messaging"
	"github.com/condominio/pagobot/internal/repository"
	"github.com/condominio/pagobot/internal/session"
	"github.com/condominio/pagobot/internal/storage"
	"github.com/condominio/pagobot/internal/webhook"
	"github.com/condominio/pagobot/internal/worker"
	"github.com/condominio/pagobot/pkg/database"
	"github.com/condominio/pagobot/pkg/utils"
)

func main() {
	// Local development credentials come from .env; production relies on
	// real environment variables
	_ = gotenv.Load()

	cfg, err := config.Load(configPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting voucher confirmation bot",
		zap.Int("port", cfg.Server.Port),
		zap.Int("house_min", cfg.Houses.Min),
		zap.Int("house_max", cfg.Houses.Max))

	db, err := database.New(database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	migrator := database.NewMigrator(db, logger)
	if err := migrator.RunMigrations(cfg.Database.MigrationsDir); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	// Repositories
	voucherRepo := repository.NewVoucherRepository(db.DB, logger)
	ledgerRepo := repository.NewLedgerRecordRepository(db.DB, logger)
	reviewRepo := repository.NewReviewStatusRepository(db.DB, logger)
	linkRepo := repository.NewHouseLedgerRepository(db.DB, logger)
	tenantRepo := repository.NewTenantRepository(db.DB, logger)
	houseRepo := repository.NewHouseRepository(db.DB, logger)

	// Outbound channel
	whatsapp := messaging.NewWhatsAppClient(messaging.WhatsAppConfig{
		PhoneNumberID: cfg.WhatsApp.PhoneNumberID,
		AccessToken:   cfg.WhatsApp.AccessToken,
		APITimeout:    cfg.WhatsApp.APITimeout,
	}, logger)

	var messenger messaging.Messenger = whatsapp
	if cfg.Email.Enabled {
		messenger = messaging.NewEmailMessenger(messaging.EmailConfig{
			Host:       cfg.Email.SMTPHost,
			Port:       cfg.Email.SMTPPort,
			Username:   cfg.Email.Username,
			Password:   cfg.Email.Password,
			SenderName: cfg.Email.SenderName,
			From:       cfg.Email.FromAddr,
		}, logger)
		logger.Info("Email channel enabled, replacing WhatsApp for outbound messages")
	}

	// Receipt processing
	fieldsCfg := fields.ValidatorConfig{MinHouse: cfg.Houses.Min, MaxHouse: cfg.Houses.Max}
	artifacts := storage.NewLocalArtifactStore(cfg.Artifacts.Dir, logger)
	extractor := extraction.NewVisionExtractor(
		cfg.OpenAI.APIKey, cfg.OpenAI.Model, artifacts, fieldsCfg, logger)

	// Conversation engine
	sessions := session.NewStore(cfg.Session.Timeout, logger)
	detector := dedup.NewDetector(voucherRepo, ledgerRepo, linkRepo, houseRepo, logger)
	committer := conversation.NewCommitter(
		db, voucherRepo, ledgerRepo, reviewRepo, linkRepo, tenantRepo, houseRepo, logger)
	engine := conversation.NewEngine(
		sessions, messenger, extractor, artifacts, detector, committer, fieldsCfg, logger)

	// Background workers
	manager := worker.NewManager(logger)
	manager.Register(session.NewSweeper(sessions, cfg.Session.SweepInterval, logger))

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	if err := manager.StartAll(workerCtx); err != nil {
		logger.Fatal("Failed to start background workers", zap.Error(err))
	}
	defer manager.StopAll()

	// HTTP surface
	if cfg.Logger.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(loggingMiddleware(logger))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "pagobot",
			"time":    time.Now().Format(time.RFC3339),
		})
	})

	webhookHandler := webhook.NewHandler(engine, whatsapp, cfg.WhatsApp.VerifyToken, logger)
	router.GET(cfg.WhatsApp.WebhookPath, webhookHandler.Verify)
	router.POST(cfg.WhatsApp.WebhookPath, webhookHandler.Receive)

	exporter := export.NewMonthlyExporter(voucherRepo, reviewRepo, cfg.Export.Dir, logger)
	exportHandler := export.NewHandler(exporter, logger)
	router.GET("/admin/reports/:year/:month", exportHandler.Download)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("HTTP server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited successfully")
}

// configPath allows overriding the config file location for deployments
// that mount it elsewhere
func configPath() string {
	if path := os.Getenv("PAGOBOT_CONFIG"); path != "" {
		return path
	}
	return "configs/config.yaml"
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		logger.Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()),
		)
	}
}

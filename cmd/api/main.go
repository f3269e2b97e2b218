package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/averill/accounthub/internal/background"
	"github.com/averill/accounthub/internal/config"
	"github.com/averill/accounthub/internal/database"
	"github.com/averill/accounthub/internal/handlers"
	middlewareCustom "github.com/averill/accounthub/internal/middleware"
	"github.com/averill/accounthub/internal/models"
	"github.com/averill/accounthub/internal/notify"
	"github.com/averill/accounthub/internal/repositories"
	"github.com/averill/accounthub/internal/routes"
	"github.com/averill/accounthub/internal/services"
	pkgauth "github.com/averill/accounthub/pkg/auth"
	pkglogger "github.com/averill/accounthub/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	// Initialize database
	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	// Initialize repositories
	userRepo := repositories.NewUserRepository(db)
	sessionRepo := repositories.NewSessionRepository(db)
	deviceTokenRepo := repositories.NewDeviceTokenRepository(db)
	auditRepo := repositories.NewAuditRepository(db)

	// Initialize cleanup manager. Device token bindings are refreshed on every
	// registration, so anything untouched for 90 days is a dead install.
	cleanupManager := background.NewCleanupManager(
		sessionRepo,
		deviceTokenRepo,
		logger,
		cfg.Auth.CleanupInterval,
		cfg.Auth.SessionTTL,
		90*24*time.Hour,
	)

	// Initialize audit trail
	auditLogger := pkglogger.NewAuditLogger(logger)
	auditService := services.NewAuditService(auditRepo, auditLogger, logger)

	// Outbound notification delivery. Disabled channels stay nil: the notifier
	// logs and skips instead of sending.
	var mailer notify.Mailer
	if cfg.Notify.EmailEnabled {
		sesMailer, err := notify.NewSESMailer(cfg.Notify.AWSRegion, cfg.Notify.FromAddress, logger)
		if err != nil {
			logger.Error("failed to initialize email delivery", slog.Any("error", err))
			os.Exit(1)
		}
		mailer = sesMailer
	}

	var smsSender notify.SMSSender
	if cfg.Notify.SMSEnabled {
		snsSender, err := notify.NewSNSSender(cfg.Notify.AWSRegion, logger)
		if err != nil {
			logger.Error("failed to initialize sms delivery", slog.Any("error", err))
			os.Exit(1)
		}
		smsSender = snsSender
	}

	dispatcher := notify.NewDispatcher(cfg.Notify.Workers, cfg.Notify.QueueSize, logger)
	notifier := notify.NewNotifier(dispatcher, mailer, smsSender, cfg.Server.SiteURL, logger)

	// Initialize services
	accountService := services.NewAccountService(userRepo, sessionRepo, deviceTokenRepo, db, auditService, notifier, logger)
	authService := services.NewAuthService(userRepo, sessionRepo, db, auditService, logger)

	// Initialize handlers
	userHandler := handlers.NewUserHandler(accountService, cfg.Server.TrustedProxies)
	authHandler := handlers.NewAuthHandler(authService, cfg.Server.TrustedProxies)
	auditHandler := handlers.NewAuditHandler(auditService)

	// Bootstrap first superuser if configured
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := ensureSuperuser(ctx, userRepo, logger); err != nil {
		logger.Error("failed to ensure superuser", slog.Any("error", err))
	}
	cancel()

	// Setup router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middlewareCustom.SecureLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	// Register routes
	router.Route("/api/v1", func(r chi.Router) {
		routes.RegisterRoutes(r, userHandler, authHandler, auditHandler, sessionRepo, userRepo, cfg.Auth.SessionTTL)
	})

	// Health check with database
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.HealthCheck(ctx); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unhealthy","database":"down"}`))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy","database":"up"}`))
	})

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start background workers
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	dispatcher.Start(workerCtx)
	go cleanupManager.Start(workerCtx)

	// Start server
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
	}

	workerCancel()
	cleanupManager.Stop()
	dispatcher.Stop()

	logger.Info("server stopped gracefully")
}

// ensureSuperuser creates the first superuser if ADMIN_USERNAME, ADMIN_EMAIL
// and ADMIN_PASSWORD are set
func ensureSuperuser(ctx context.Context, userRepo repositories.UserStore, logger *slog.Logger) error {
	adminUsername := os.Getenv("ADMIN_USERNAME")
	adminEmail := os.Getenv("ADMIN_EMAIL")
	adminPassword := os.Getenv("ADMIN_PASSWORD")

	if adminUsername == "" || adminEmail == "" || adminPassword == "" {
		logger.Info("no ADMIN_USERNAME, ADMIN_EMAIL or ADMIN_PASSWORD set, skipping superuser creation")
		return nil
	}

	// Check if superuser already exists
	_, err := userRepo.GetByEmail(ctx, adminEmail)
	if err == nil {
		logger.Info("superuser already exists")
		return nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("failed to check if superuser exists: %w", err)
	}

	if err := models.ValidateUsername(adminUsername); err != nil {
		return fmt.Errorf("invalid ADMIN_USERNAME: %w", err)
	}

	// Hash password
	hashedPassword, err := pkgauth.HashPassword(adminPassword)
	if err != nil {
		return fmt.Errorf("failed to hash superuser password: %w", err)
	}

	// Create superuser
	admin := &models.User{
		Username:        adminUsername,
		Email:           adminEmail,
		PasswordHash:    hashedPassword,
		EmailVerified:   true,
		TermsAccepted:   true,
		PrivacyAccepted: true,
		Active:          true,
		Staff:           true,
		Superuser:       true,
	}

	if _, err := userRepo.Create(ctx, admin); err != nil {
		return fmt.Errorf("failed to create superuser: %w", err)
	}

	logger.Info("superuser created successfully")
	return nil
}

package cmd

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

	"github.com/frahmantamala/expense-reporting/internal"
	"github.com/frahmantamala/expense-reporting/internal/attachment"
	attachmentPostgres "github.com/frahmantamala/expense-reporting/internal/attachment/postgres"
	"github.com/frahmantamala/expense-reporting/internal/auth"
	authPostgres "github.com/frahmantamala/expense-reporting/internal/auth/postgres"
	"github.com/frahmantamala/expense-reporting/internal/core/events"
	"github.com/frahmantamala/expense-reporting/internal/dashboard"
	dashboardPostgres "github.com/frahmantamala/expense-reporting/internal/dashboard/postgres"
	"github.com/frahmantamala/expense-reporting/internal/expense"
	expensePostgres "github.com/frahmantamala/expense-reporting/internal/expense/postgres"
	"github.com/frahmantamala/expense-reporting/internal/role"
	rolePostgres "github.com/frahmantamala/expense-reporting/internal/role/postgres"
	"github.com/frahmantamala/expense-reporting/internal/transport/middleware"
	"github.com/frahmantamala/expense-reporting/internal/transport/rest"
	"github.com/frahmantamala/expense-reporting/internal/transport/swagger"
	"github.com/frahmantamala/expense-reporting/internal/user"
	userPostgres "github.com/frahmantamala/expense-reporting/internal/user/postgres"
	"github.com/frahmantamala/expense-reporting/pkg/logger"

	"github.com/go-chi/chi"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle API requests`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

type Dependencies struct {
	Config   *internal.Config
	DB       *sqlx.DB
	Gorm     *gorm.DB
	Router   *chi.Mux
	EventBus *events.EventBus
	Logger   *slog.Logger
}

func startHTTPServer() {
	deps, err := initializeDependencies()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}

	if err := setupRoutes(deps); err != nil {
		deps.Logger.Error("failed to set up routes", "error", err)
		os.Exit(1)
	}

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	deps.Logger.Info("Starting HTTP server", "address", addr)

	server := &http.Server{
		Addr:              addr,
		Handler:           deps.Router,
		ReadHeaderTimeout: deps.Config.Server.ReadHeaderTimeout,
		ReadTimeout:       deps.Config.Server.ReadTimeout,
		WriteTimeout:      deps.Config.Server.WriteTimeout,
		IdleTimeout:       deps.Config.Server.IdleTimeout,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		deps.Logger.Info("Received signal, shutting down...", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			deps.Logger.Error("Server shutdown error", "error", err)
		}
		if err := deps.EventBus.Wait(ctx); err != nil {
			deps.Logger.Warn("event handlers still running at shutdown", "error", err)
		}
		if err := deps.DB.Close(); err != nil {
			deps.Logger.Error("Database close error", "error", err)
		}
	case err := <-serverErrChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			deps.Logger.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}

	deps.Logger.Info("Server stopped")
}

func setupRoutes(deps *Dependencies) error {
	cfg := deps.Config
	lg := deps.Logger

	bus := deps.EventBus
	events.RegisterExpenseSubscribers(bus, lg)

	tokens := auth.NewJWTTokenGenerator(cfg.Security.SessionSecret, cfg.Security.SessionTTL)
	authService := auth.NewService(authPostgres.NewRepository(deps.Gorm), tokens, auth.Options{
		BCryptCost:     cfg.Security.BCryptCost,
		SnapshotMaxAge: cfg.Security.SnapshotMaxAge,
		Throttle:       auth.NewLoginThrottle(cfg.RateLimit.LoginAttempts, cfg.RateLimit.LoginWindow),
	}, lg)

	expenseService := expense.NewService(expensePostgres.NewExpenseRepository(deps.Gorm), bus, lg)

	if err := os.MkdirAll(cfg.Storage.UploadDir, 0o750); err != nil {
		return fmt.Errorf("create upload dir: %w", err)
	}
	attachmentService := attachment.NewService(
		attachmentPostgres.NewAttachmentRepository(deps.Gorm),
		attachment.NewLocalStore(cfg.Storage.UploadDir),
		cfg.Storage.MaxUploadBytes,
		lg,
	)

	dashboardService := dashboard.NewService(dashboardPostgres.NewDashboardRepository(deps.DB), lg)
	roleService := role.NewService(rolePostgres.NewRoleRepository(deps.Gorm), lg)
	userService := user.NewService(userPostgres.NewUserRepository(deps.Gorm), cfg.Security.BCryptCost, lg)

	actionLimit, err := middleware.NewRateLimiter("action", cfg.RateLimit.Action, lg)
	if err != nil {
		return fmt.Errorf("action rate limit: %w", err)
	}
	readLimit, err := middleware.NewRateLimiter("read", cfg.RateLimit.Read, lg)
	if err != nil {
		return fmt.Errorf("read rate limit: %w", err)
	}

	openAPI, err := swagger.Load(context.Background(), cfg.Server.OpenAPIPath)
	if err != nil {
		return err
	}
	lg.Info("openapi document loaded", "title", openAPI.Title(), "path", cfg.Server.OpenAPIPath)

	rest.RegisterAllRoutes(deps.Router, rest.Handlers{
		Health:     rest.NewHealthHandler(deps.DB, cfg.Storage.UploadDir),
		Auth:       auth.NewHandler(authService, cfg.Security.SecureCookie, lg),
		Expense:    expense.NewHandler(expenseService, lg),
		Attachment: attachment.NewHandler(attachmentService, cfg.Storage.MaxUploadBytes, lg),
		Dashboard:  dashboard.NewHandler(dashboardService, lg),
		Role:       role.NewHandler(roleService, lg),
		User:       user.NewHandler(userService, lg),
		OpenAPI:    openAPI,
	}, rest.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		MetricsEnabled: cfg.Observability.Metrics.Enabled,
		MetricsPath:    cfg.Observability.Metrics.Path,
		ActionLimit:    actionLimit,
		ReadLimit:      readLimit,
	}, lg)
	return nil
}

func initializeDependencies() (*Dependencies, error) {
	config, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	lg := logger.Configure(config.Observability.Logging.Level, config.Observability.Logging.Format)

	db, err := initDB(config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	gormDB, err := initGorm(db)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize gorm: %w", err)
	}

	return &Dependencies{
		Config:   config,
		Logger:   lg,
		DB:       db,
		Gorm:     gormDB,
		Router:   chi.NewRouter(),
		EventBus: events.NewEventBus(lg),
	}, nil
}

// initDB opens the pgx pool shared by sqlx readers and gorm.
func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, error) {
	const driver = "pgx"

	dbConn, err := sqlx.Connect(driver, cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)
	dbConn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	dbConn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := dbConn.Ping(); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return dbConn, nil
}

func initGorm(db *sqlx.DB) (*gorm.DB, error) {
	return gorm.Open(postgres.New(postgres.Config{Conn: db.DB}), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Warn),
	})
}

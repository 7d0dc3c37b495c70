package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Dosada05/tournament-manager/config"
	"github.com/Dosada05/tournament-manager/db"
	"github.com/Dosada05/tournament-manager/handlers"
	"github.com/Dosada05/tournament-manager/middleware"
	"github.com/Dosada05/tournament-manager/routes"
	"github.com/Dosada05/tournament-manager/scheduler"
	"github.com/Dosada05/tournament-manager/services"
)

const (
	dbConnectTimeout = 5 * time.Second
	shutdownTimeout  = 15 * time.Second
)

// @title Tournament Manager API
// @version 1.0
// @description Турниры, сетки, результаты матчей и публикация итогов.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "tournament-manager",
		Short:         "Tournament management API and maintenance tools",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newServeCmd(),
		newMigrateCmd(),
		newRecomputeStandingsCmd(),
		newUpdateStatusesCmd(),
		newTokenCmd(),
	)
	return root
}

// setup загружает конфигурацию и создаёт JSON-логгер нужного уровня.
func setup() (*config.Config, *slog.Logger, error) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		return nil, nil, err
	}
	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func connectDB(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*sql.DB, error) {
	pool := db.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
	}
	dbConn, err := db.Connect(ctx, cfg.DatabaseURL, pool, dbConnectTimeout)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		return nil, err
	}
	logger.Info("database connection established")
	return dbConn, nil
}

func closeDB(dbConn *sql.DB, logger *slog.Logger) {
	if err := dbConn.Close(); err != nil {
		logger.Error("failed to close database connection", slog.Any("error", err))
	} else {
		logger.Info("database connection closed")
	}
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, websocket hub and status scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg, logger)
		},
	}
}

func serve(parent context.Context, cfg *config.Config, logger *slog.Logger) error {
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort))

	dbConn, err := connectDB(parent, cfg, logger)
	if err != nil {
		return err
	}
	defer closeDB(dbConn, logger)

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := newApplication(ctx, cfg, dbConn, logger)
	if err != nil {
		logger.Error("failed to initialize application", slog.Any("error", err))
		return err
	}
	defer app.close(logger)

	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go app.hub.Run(hubCtx)
	logger.Info("WebSocket Hub started")

	statusScheduler, err := scheduler.NewStatusScheduler(cfg.StatusSchedule, app.tournaments, logger)
	if err != nil {
		logger.Error("failed to create status scheduler", slog.Any("error", err))
		return err
	}
	statusScheduler.Start(ctx)

	router := routes.SetupRoutes(routes.Handlers{
		Sport:       handlers.NewSportHandler(app.sports),
		Format:      handlers.NewFormatHandler(app.formats),
		Player:      handlers.NewPlayerHandler(app.players),
		Team:        handlers.NewTeamHandler(app.teams),
		Tournament:  handlers.NewTournamentHandler(app.tournaments),
		Participant: handlers.NewParticipantHandler(app.participants),
		Match:       handlers.NewMatchHandler(app.matches),
		Bracket:     handlers.NewBracketHandler(app.bracketSvc, app.standings),
		Publication: handlers.NewPublicationHandler(app.publication),
		WebSocket:   handlers.NewWebSocketHandler(app.hub, app.tournaments, app.bracketSvc, cfg.CORSAllowedOrigins, logger),
	}, routes.Options{
		Auth:           middleware.NewAuthenticator(cfg.JWTSecretKey, logger),
		RateLimiter:    middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst),
		AllowedOrigins: cfg.CORSAllowedOrigins,
	})
	logger.Info("Routes configured")

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		statusScheduler.Stop()
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			return err
		}
		logger.Info("server stopped gracefully")
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		statusScheduler.Stop()

		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancelShutdown()

		logger.Info("shutting down server", slog.Duration("timeout", shutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
			return err
		}
		logger.Info("server shutdown complete")
	}

	stopHub()
	logger.Info("application exited")
	return nil
}

func newMigrateCmd() *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back the database schema",
	}

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(cmd.Context(), func(dbConn *sql.DB, logger *slog.Logger) error {
				if err := db.MigrateUp(dbConn); err != nil {
					logger.Error("migration failed", slog.Any("error", err))
					return err
				}
				logger.Info("migrations applied")
				return nil
			})
		},
	}

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			if steps <= 0 {
				return fmt.Errorf("--steps must be positive, got %d", steps)
			}
			return withDB(cmd.Context(), func(dbConn *sql.DB, logger *slog.Logger) error {
				if err := db.MigrateDown(dbConn, steps); err != nil {
					logger.Error("rollback failed", slog.Any("error", err))
					return err
				}
				logger.Info("migrations rolled back", slog.Int("steps", steps))
				return nil
			})
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")

	migrateCmd.AddCommand(up, down)
	return migrateCmd
}

func newRecomputeStandingsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "recompute-standings <tournamentID>",
		Short: "Rebuild the stored standings of one tournament",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tournamentID, err := strconv.Atoi(args[0])
			if err != nil || tournamentID <= 0 {
				return fmt.Errorf("invalid tournament id %q", args[0])
			}
			return withApp(cmd.Context(), func(app *application, _ *config.Config, logger *slog.Logger) error {
				table, err := app.standings.Recompute(cmd.Context(), tournamentID)
				if err != nil {
					logger.Error("standings recompute failed", slog.Int("tournament_id", tournamentID), slog.Any("error", err))
					return err
				}
				logger.Info("standings recomputed", slog.Int("tournament_id", tournamentID), slog.Int("rows", len(table)))
				return nil
			})
		},
	}
}

func newUpdateStatusesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "update-statuses",
		Short: "Run one pass of the date-based tournament status update",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(app *application, cfg *config.Config, logger *slog.Logger) error {
				s, err := scheduler.NewStatusScheduler(cfg.StatusSchedule, app.tournaments, logger)
				if err != nil {
					return err
				}
				return s.RunOnce(cmd.Context())
			})
		},
	}
}

// newTokenCmd выпускает токен организатора: вход по паролю в этом сервисе не реализован.
func newTokenCmd() *cobra.Command {
	var (
		userID int
		role   string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a signed organizer or admin token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if role != services.RoleOrganizer && role != services.RoleAdmin {
				return fmt.Errorf("role must be %q or %q", services.RoleOrganizer, services.RoleAdmin)
			}
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			token, err := middleware.NewAuthenticator(cfg.JWTSecretKey, logger).IssueToken(userID, role, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().IntVar(&userID, "user-id", 0, "organizer user id")
	cmd.Flags().StringVar(&role, "role", services.RoleOrganizer, "organizer or admin")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("user-id")
	return cmd
}

func withDB(ctx context.Context, fn func(dbConn *sql.DB, logger *slog.Logger) error) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	dbConn, err := connectDB(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeDB(dbConn, logger)
	return fn(dbConn, logger)
}

func withApp(ctx context.Context, fn func(app *application, cfg *config.Config, logger *slog.Logger) error) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	dbConn, err := connectDB(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeDB(dbConn, logger)

	app, err := newApplication(ctx, cfg, dbConn, logger)
	if err != nil {
		return err
	}
	defer app.close(logger)
	return fn(app, cfg, logger)
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"eventconnect/database"
	"eventconnect/models"
	"eventconnect/pkg/config"
	"eventconnect/pkg/db/sqlite"
	"eventconnect/pkg/logger"
	"eventconnect/realtime"
	"eventconnect/util/api"
)

const (
	serviceName         = "eventconnect"
	shutdownTimeout     = 10 * time.Second
	sessionCleanupEvery = time.Hour
)

// serveFlags override the environment configuration.
type serveFlags struct {
	port   int
	dbPath string
}

func main() {
	root := &cobra.Command{
		Use:           serviceName,
		Short:         "EventConnect backend",
		Long:          "EventConnect serves the events, tribes, feed, chat and notification API with a real-time websocket channel.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	var flags serveFlags
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and websocket server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if flags.port != 0 {
				cfg.Server.Port = flags.port
			}
			if flags.dbPath != "" {
				cfg.Database.Path = flags.dbPath
			}
			return runServe(cmd.Context(), cfg)
		},
	}
	serveCmd.Flags().IntVar(&flags.port, "port", 0, "Listen port (overrides SERVER_PORT)")
	serveCmd.Flags().StringVar(&flags.dbPath, "db", "", "SQLite database path (overrides DB_PATH)")

	var down bool
	var migrateDB string
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply (or with --down, revert) the database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if migrateDB != "" {
				cfg.Database.Path = migrateDB
			}
			return runMigrate(cfg.Database.Path, down)
		},
	}
	migrateCmd.Flags().BoolVar(&down, "down", false, "Revert every migration")
	migrateCmd.Flags().StringVar(&migrateDB, "db", "", "SQLite database path (overrides DB_PATH)")

	pruneCmd := &cobra.Command{
		Use:   "prune-notifications",
		Short: "Delete notifications older than the retention window",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runPrune(cmd.Context(), cfg)
		},
	}

	root.AddCommand(serveCmd, migrateCmd, pruneCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	logger.Init(serviceName, cfg.Log.Env, cfg.Log.Level)
	return cfg, nil
}

func runServe(ctx context.Context, cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := database.InitDB(cfg.Database.Path); err != nil {
		return err
	}
	defer database.Close()

	var bus realtime.Bus
	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.RedisAddr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return fmt.Errorf("failed to connect to redis at %s: %w", cfg.Redis.RedisAddr(), err)
		}
		redisBus := realtime.NewRedisBus(client, cfg.Redis.Channel)
		defer client.Close()
		defer redisBus.Close()
		bus = redisBus
		log.Info().Str("addr", cfg.Redis.RedisAddr()).Str("channel", cfg.Redis.Channel).Msg("realtime bus connected to redis")
	}

	hub := realtime.NewHub(bus)
	go func() {
		if err := hub.Run(ctx); err != nil {
			log.Error().Err(err).Msg("realtime hub stopped")
		}
	}()
	go cleanupSessions(ctx, cfg.Session.TTL)

	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           api.NewRouter(cfg, hub),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("server running")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

// cleanupSessions removes expired sessions until ctx is cancelled.
func cleanupSessions(ctx context.Context, ttl time.Duration) {
	sessions := models.NewSessionService(database.DB, ttl)
	ticker := time.NewTicker(sessionCleanupEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := sessions.DeleteExpired(ctx)
			if err != nil {
				log.Error().Err(err).Msg("failed to delete expired sessions")
				continue
			}
			if n > 0 {
				log.Info().Int64("deleted", n).Msg("expired sessions removed")
			}
		}
	}
}

func runMigrate(path string, down bool) error {
	db, err := sqlite.Open(path)
	if err != nil {
		return err
	}
	defer db.Close()

	if down {
		if err := sqlite.MigrateDown(db); err != nil {
			return err
		}
		log.Info().Str("path", path).Msg("migrations reverted")
		return nil
	}
	if err := sqlite.Migrate(db); err != nil {
		return err
	}
	log.Info().Str("path", path).Msg("migrations applied")
	return nil
}

func runPrune(ctx context.Context, cfg *config.Config) error {
	if err := database.InitDB(cfg.Database.Path); err != nil {
		return err
	}
	defer database.Close()

	n, err := models.NewNotificationService(database.DB).DeleteOldNotifications(ctx, cfg.Notifications.RetentionDays)
	if err != nil {
		return err
	}
	log.Info().Int64("deleted", n).Int("retention_days", cfg.Notifications.RetentionDays).Msg("old notifications pruned")
	return nil
}

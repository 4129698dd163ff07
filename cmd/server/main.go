package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ZanzyTHEbar/dlm-gallery/internal/config"
	"github.com/ZanzyTHEbar/dlm-gallery/internal/sources"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type rootOptions struct {
	configPath string
	cfg        *config.Config
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "server",
		Short: "Photo gallery API with balanced masonry layouts",
		Long: `Serves the photo gallery: photos from Google Photos, a local SQLite library or
generated mock data, ordered so that masonry columns end up with equal heights.

Configuration comes from an optional YAML file, a .env file and the environment.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// .env is optional
			_ = godotenv.Load()

			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			opts.cfg = cfg
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts.cfg, false)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to a YAML config file")

	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newSeedCmd(opts))
	cmd.AddCommand(newRateLimitCmd(opts))

	return cmd
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts.cfg, watch)
		},
	}
	cmd.Flags().BoolVar(&watch, "watch", false, "re-import photos when files appear in the photos directory")
	return cmd
}

func newSeedCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Import {photos_dir}/{category}/* into the local database",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger(opts.cfg.LogLevel)
			a, err := newApp(cmd.Context(), opts.cfg, logger)
			if err != nil {
				return err
			}
			defer a.close()

			result, err := a.seed(cmd.Context())
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	}
}

func newRateLimitCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ratelimit",
		Short: "Inspect and reset rate limits",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "reset <ip>",
		Short: "Clear every rate limit counter of a client IP",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), opts.cfg, newLogger(opts.cfg.LogLevel))
			if err != nil {
				return err
			}
			defer a.close()

			if !a.redis.IsEnabled() {
				return fmt.Errorf("rate limits are only shared through Redis; set REDIS_ADDR")
			}
			if err := a.limiter.InvalidateIP(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "rate limits cleared for %s\n", args[0])
			return nil
		},
	})
	return cmd
}

func runServe(ctx context.Context, cfg *config.Config, watch bool) error {
	logger := newLogger(cfg.LogLevel)
	gin.SetMode(gin.ReleaseMode)

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize application", "error", err)
		return err
	}
	defer a.close()

	r, err := a.router()
	if err != nil {
		logger.Error("Failed to build router", "error", err)
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go a.health.StartHealthChecks(ctx)

	if cfg.Source.Primary == sources.KindLocal {
		if _, err := a.seed(ctx); err != nil {
			logger.Warn("Initial photo import failed", "error", err)
		}
	}
	if watch || cfg.Watch.Enabled {
		a.watch(ctx)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting server", "port", cfg.Port, "source", cfg.Source.Primary)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("Server failed to start", "error", err)
			return err
		}
	case <-ctx.Done():
	}
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
		return err
	}

	logger.Info("Server exited")
	return nil
}

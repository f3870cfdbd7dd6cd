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

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"gitlab.com/dirk.krummacker/signature-builder/internal/config"
	"gitlab.com/dirk.krummacker/signature-builder/internal/extract"
	"gitlab.com/dirk.krummacker/signature-builder/internal/service"
)

// shutdownTimeout bounds how long in-flight requests may take after a termination signal.
const shutdownTimeout = 30 * time.Second

// Usage example on the command line:
// > PORT=8080 OPENROUTER_API_KEY=sk-or-... GIN_MODE=release GIN_LOGGING=off go run ./cmd/service
func main() {
	var configPath string
	cmd := &cobra.Command{
		Use:           "service",
		Short:         "Serve the signature builder page and the contact extraction API",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath, os.Getenv)
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg.LogLevel)
			if err != nil {
				return err
			}
			defer logger.Sync()
			return run(cmd.Context(), cfg, logger)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "optional YAML configuration file")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// newLogger builds a production zap logger at the given level.
func newLogger(level string) (*zap.Logger, error) {
	zapConfig := zap.NewProductionConfig()
	parsed, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	zapConfig.Level = zap.NewAtomicLevelAt(parsed)
	return zapConfig.Build()
}

// run serves HTTP until ctx is cancelled, then shuts the server down gracefully.
func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	if cfg.Upstream.APIKey == "" {
		logger.Warn("OPENROUTER_API_KEY is not set, extraction requests will fail")
	}
	router, err := service.SetupHttpRouter(cfg, extract.NewFromConfig(cfg.Upstream), logger)
	if err != nil {
		return fmt.Errorf("setup router: %w", err)
	}
	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("listening",
			zap.String("addr", srv.Addr),
			zap.String("model", cfg.Upstream.Model),
			zap.String("static_dir", cfg.StaticDir),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return group.Wait()
}

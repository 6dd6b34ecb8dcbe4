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

	"imagehub/pkg/applog"
	"imagehub/pkg/config"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var envFile string

	root := &cobra.Command{
		Use:           "imagehub",
		Short:         "Image upload service backed by S3, Postgres, SQS and SNS",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), envFile)
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", config.DefaultEnvFile, "optional KEY=value file read before the environment")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP API and the relay loop",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runServe(cmd.Context(), envFile)
			},
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Create or update the image_metadata table and exit",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runMigrate(envFile)
			},
		},
		newRelayCmd(&envFile),
	)
	return root
}

func newRelayCmd(envFile *string) *cobra.Command {
	var once bool
	cmd := &cobra.Command{
		Use:   "relay",
		Short: "Forward queued upload notifications to the topic",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRelay(cmd.Context(), *envFile, once)
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "drain a single batch and exit")
	return cmd
}

// loadConfig reads the settings and sets up logging from them.
func loadConfig(envFile string) (*config.Config, *config.Loader, error) {
	loader := config.NewLoader(envFile)
	cfg, err := loader.Load()
	if err != nil {
		_ = applog.Init("info", false)
		log.Error().Err(err).Msg("configuration")
		return nil, nil, err
	}
	if err := applog.Init(cfg.LogLevel, cfg.LogPretty); err != nil {
		return nil, nil, err
	}
	for _, w := range cfg.Warnings() {
		log.Warn().Msg(w)
	}
	return cfg, loader, nil
}

func runServe(parent context.Context, envFile string) error {
	cfg, loader, err := loadConfig(envFile)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(contextOrBackground(parent), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		log.Error().Err(err).Msg("startup")
		return err
	}
	defer a.Close()

	if loader.Watch(func(c *config.Config) {
		if err := applog.SetLevel(c.LogLevel); err != nil {
			log.Warn().Err(err).Msg("log level not changed")
			return
		}
		log.Info().Str("level", c.LogLevel).Msg("configuration reloaded")
	}, func(err error) {
		log.Warn().Err(err).Msg("ignoring invalid configuration change")
	}) {
		log.Debug().Msg("watching env file for changes")
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           newRouter(a.server(), routerOptions{MaxUploadBytes: cfg.MaxUploadBytes(), Origins: cfg.Origins()}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		log.Info().Msg("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	if cfg.RelayEnabled {
		g.Go(func() error { return a.relay.Run(gctx) })
	} else {
		log.Info().Msg("relay disabled on this instance")
	}

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("server stopped")
		return err
	}
	return nil
}

func runMigrate(envFile string) error {
	cfg, _, err := loadConfig(envFile)
	if err != nil {
		return err
	}
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer closeDB(db)
	if err := migrateDB(db); err != nil {
		log.Error().Err(err).Msg("migration failed")
		return err
	}
	log.Info().Msg("migration completed")
	return nil
}

func runRelay(parent context.Context, envFile string, once bool) error {
	cfg, _, err := loadConfig(envFile)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(contextOrBackground(parent), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clients, err := newClients(ctx, cfg)
	if err != nil {
		return err
	}
	r, err := newRelay(cfg, clients, nil)
	if err != nil {
		return err
	}
	if !once {
		return r.Run(ctx)
	}
	res, err := r.Tick(ctx)
	if err != nil {
		log.Error().Err(err).Msg("relay tick failed")
		return err
	}
	for _, f := range res.Failures {
		log.Warn().Err(f.Err).Str("message_id", f.MessageID).Str("stage", f.Stage).Msg("message not relayed")
	}
	log.Info().Int("received", res.Received).Int("relayed", res.Relayed).Msg("relay batch done")
	return nil
}

func contextOrBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

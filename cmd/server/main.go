package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/streamlink/chatcore/internal/app"
	"github.com/streamlink/chatcore/internal/auth"
	"github.com/streamlink/chatcore/internal/config"
	"github.com/streamlink/chatcore/internal/log"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		overrides  config.Config
	)

	serve := func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(configPath)
		if err != nil {
			return err
		}
		cfg.UpdateFrom(overrides)

		logger := log.New(cfg.LogLevel, cfg.LogFormat)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		application, err := app.New(ctx, &cfg, logger)
		if err != nil {
			logger.Error().Err(err).Msg("failed to initialize app")
			return err
		}

		logger.Info().Str("addr", cfg.Addr).Msg("starting chatcore server")
		if err := application.Run(ctx); err != nil {
			logger.Error().Err(err).Msg("server exited with error")
			return err
		}
		logger.Info().Msg("server stopped")
		return nil
	}

	root := &cobra.Command{
		Use:           "chatcore",
		Short:         "Real-time session chat server",
		SilenceUsage:  true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			// .env is optional; values there behave like exported env vars.
			if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("load .env: %w", err)
			}
			return nil
		},
		RunE: serve,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config.yaml")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and websocket server",
		RunE:  serve,
	}
	for _, c := range []*cobra.Command{root, serveCmd} {
		c.Flags().StringVar(&overrides.Addr, "addr", "", "HTTP listen address")
		c.Flags().DurationVar(&overrides.ReadHeaderTimeout, "read-header-timeout", 0, "HTTP read header timeout")
		c.Flags().DurationVar(&overrides.ShutdownTimeout, "shutdown-timeout", 0, "graceful shutdown timeout")
		c.Flags().StringVar(&overrides.LogLevel, "log-level", "", "log level (debug, info, warn, error)")
	}

	root.AddCommand(serveCmd, newTokenCmd(&configPath))
	return root
}

func newTokenCmd(configPath *string) *cobra.Command {
	var (
		userID   int64
		username string
		role     string
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an operator token for the REST API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			if cfg.JWTSecret == "" {
				return errors.New("jwt_secret is not configured")
			}

			token, err := auth.NewService(app.JWTConfig(&cfg)).IssueToken(userID, username, role)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	cmd.Flags().Int64Var(&userID, "user-id", 1, "operator account id")
	cmd.Flags().StringVar(&username, "username", "operator", "operator display name")
	cmd.Flags().StringVar(&role, "role", "admin", "operator role (admin or engineer)")
	return cmd
}

func loadConfig(path string) (config.Config, error) {
	bootstrap := log.New("warn", "console")
	cfg, resolved, err := config.Load(bootstrap, path)
	if err != nil {
		return cfg, fmt.Errorf("load config %s: %w", resolved, err)
	}
	return cfg, nil
}

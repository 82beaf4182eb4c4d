// Package server parses server command flags and starts the HTTP runtime.
package server

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"

	entrypoint "github.com/louisbranch/ruleshift/internal/platform/cmd"
	httpapi "github.com/louisbranch/ruleshift/internal/services/game/api/http"
	"github.com/louisbranch/ruleshift/internal/services/game/rooms"
	"github.com/louisbranch/ruleshift/internal/services/game/storage/integrity"
	"github.com/louisbranch/ruleshift/internal/services/game/storage/sqlite"
)

const shutdownTimeout = 10 * time.Second

// Config holds server command configuration.
type Config struct {
	Port     int    `env:"RULESHIFT_PORT" envDefault:"8080"`
	Addr     string `env:"RULESHIFT_ADDR"`
	DBPath   string `env:"RULESHIFT_DB_PATH" envDefault:"ruleshift.db"`
	LogLevel string `env:"RULESHIFT_LOG_LEVEL" envDefault:"info"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.IntVar(&cfg.Port, "port", cfg.Port, "The server port")
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "The server listen address (overrides -port)")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Path to the sqlite database file")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the game server.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceServer, func(ctx context.Context) error {
		logger := newLogger(cfg.LogLevel)

		keyring, err := integrity.KeyringFromEnv()
		if err != nil {
			return fmt.Errorf("load journal keyring: %w", err)
		}
		var storeOpts []sqlite.Option
		if keyring != nil {
			storeOpts = append(storeOpts, sqlite.WithKeyring(keyring))
		}

		store, err := sqlite.Open(cfg.DBPath, storeOpts...)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer func() {
			if err := store.Close(); err != nil {
				logger.Error().Err(err).Msg("close store")
			}
		}()

		hub := httpapi.NewHub(logger)
		registry := rooms.New(store, logger, rooms.WithNotifier(hub))
		if err := registry.Rehydrate(ctx); err != nil {
			return fmt.Errorf("rehydrate rooms: %w", err)
		}

		api := httpapi.NewServer(registry, hub, logger)
		addr := cfg.Addr
		if addr == "" {
			addr = fmt.Sprintf(":%d", cfg.Port)
		}
		srv := &http.Server{
			Addr:              addr,
			Handler:           api.Router(),
			ReadHeaderTimeout: 5 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			errCh <- srv.ListenAndServe()
		}()
		logger.Info().Str("addr", addr).Str("db", cfg.DBPath).Msg("server listening")

		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		}
	})
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}
	return zerolog.New(output).With().Timestamp().Logger().Level(lvl)
}

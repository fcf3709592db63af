package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/davidahmann/tally/internal/app"
	"github.com/davidahmann/tally/internal/config"
)

func main() {
	if err := runFn(os.Args[1:], os.Getenv, listenAndServe, newServer); err != nil {
		fatalf("server error: %v", err)
	}
}

var runFn = run
var fatalf = func(format string, args ...any) { log.Fatal().Msgf(format, args...) }

type cleanupFn func() error

func newServer(cfg config.Config, getenv envFn) (*http.Server, cleanupFn, error) {
	a, err := app.New(context.Background(), cfg, app.Options{Getenv: getenv})
	if err != nil {
		return nil, nil, err
	}
	return a.Server(cfg.ListenAddr, cfg.Server), a.Close, nil
}

type envFn func(string) string
type listenFn func(*http.Server) error
type serverFactory func(cfg config.Config, getenv envFn) (*http.Server, cleanupFn, error)

// run resolves configuration with precedence flag > env > config file >
// defaults, then serves until listen returns.
func run(args []string, getenv envFn, listen listenFn, factory serverFactory) error {
	fs := flag.NewFlagSet("tally-gateway", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to tally config file")
	listenAddr := fs.String("listen", "", "listen address")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(firstNonEmpty(*configPath, getenv("TALLY_CONFIG_PATH")))
	if err != nil {
		return err
	}
	cfg.ListenAddr = firstNonEmpty(*listenAddr, getenv("TALLY_LISTEN_ADDR"), cfg.ListenAddr)

	server, cleanup, err := factory(cfg, getenv)
	if err != nil {
		return err
	}
	if cleanup != nil {
		defer func() { _ = cleanup() }()
	}

	log.Info().Str("addr", cfg.ListenAddr).Msg("tally-gateway listening")
	if err := listen(server); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func listenAndServe(server *http.Server) error {
	return server.ListenAndServe()
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/zarvd/pem2jwk/internal/key"
)

type CLI struct {
	LogLevel string `enum:"debug,info,warn,error" default:"info" env:"PEM2JWK_LOG_LEVEL" help:"Log level (${enum})"`

	Convert ConvertCmd `cmd:"" default:"withargs" help:"Convert a PEM or DER encoded key to a JWK"`
	Fetch   FetchCmd   `cmd:"" help:"Fetch the public keys of a Kubernetes external JWT signer as a JWK set"`
}

// Exit codes for decode failures. Anything else exits with 1.
const (
	exitMalformedPEM           = 3
	exitMalformedDER           = 4
	exitUnsupportedAlgorithm   = 5
	exitUnsupportedCurve       = 6
	exitUnsupportedPointFormat = 7
)

func exitCode(err error) int {
	switch {
	case errors.Is(err, key.ErrMalformedPEM):
		return exitMalformedPEM
	case errors.Is(err, key.ErrMalformedDER):
		return exitMalformedDER
	case errors.Is(err, key.ErrUnsupportedAlgorithm):
		return exitUnsupportedAlgorithm
	case errors.Is(err, key.ErrUnsupportedCurve):
		return exitUnsupportedCurve
	case errors.Is(err, key.ErrUnsupportedPointFormat):
		return exitUnsupportedPointFormat
	default:
		return 1
	}
}

func newLogger(w io.Writer, level string) *slog.Logger {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		l = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: l}))
}

func writeJSON(w io.Writer, v any, compact bool) error {
	enc := json.NewEncoder(w)
	if !compact {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var cli CLI
	cliCtx := kong.Parse(&cli,
		kong.Name("pem2jwk"),
		kong.Description("Convert PEM or DER encoded RSA and EC keys to JSON Web Keys."),
		kong.UsageOnError(),
	)

	logger := newLogger(os.Stderr, cli.LogLevel)

	cliCtx.BindTo(ctx, (*context.Context)(nil))
	cliCtx.Bind(logger)
	cliCtx.BindTo(os.Stdin, (*io.Reader)(nil))
	cliCtx.BindTo(os.Stdout, (*io.Writer)(nil))

	if err := cliCtx.Run(); err != nil {
		logger.Error("failed to run CLI", slog.Any("error", err))
		os.Exit(exitCode(err))
	}
}

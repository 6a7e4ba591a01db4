package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/zarvd/pem2jwk/internal/jwk"
	"github.com/zarvd/pem2jwk/internal/key"
)

type ConvertCmd struct {
	Key string `arg:"" optional:"" help:"Path to the key; standard input is read when omitted or '-'"`

	Format          string `enum:"auto,pem,der" default:"auto" env:"PEM2JWK_FORMAT" help:"Input encoding (${enum})"`
	PublicOnly      bool   `help:"Omit private key members"`
	KeyID           string `name:"kid" xor:"kid" help:"Value of the kid member"`
	ThumbprintKeyID bool   `name:"thumbprint-kid" xor:"kid" help:"Set kid to the RFC 7638 thumbprint of the key"`
	Use             string `help:"Value of the use member, e.g. sig or enc"`
	Alg             string `help:"Value of the alg member; 'auto' derives it from the key type"`
	Set             bool   `help:"Always print a JWK set"`
	Compact         bool   `env:"PEM2JWK_COMPACT" help:"Print compact JSON"`
}

func (c *ConvertCmd) Run(logger *slog.Logger, stdin io.Reader, stdout io.Writer) error {
	hint, err := key.ParseEncodingHint(c.Format)
	if err != nil {
		return err
	}
	input, source, err := c.readInput(stdin)
	if err != nil {
		return err
	}

	keys, err := key.DecodeAll(input, hint)
	if err != nil {
		return fmt.Errorf("failed to decode key from %s: %w", source, err)
	}
	if c.KeyID != "" && len(keys) > 1 {
		return errors.New("--kid cannot be used with more than one key")
	}

	jwks := make([]jwk.JWK, 0, len(keys))
	for _, k := range keys {
		if c.PublicOnly {
			k = k.Public()
		}
		j := jwk.FromKey(k, c.options(k)...)
		kty, _ := j.Get(jwk.KeyTypeKey)
		logger.Debug("converted key", slog.String("source", source), slog.String("kty", kty), slog.Int("num-members", len(j.Fields())))
		jwks = append(jwks, j)
	}

	if c.Set || len(jwks) > 1 {
		return writeJSON(stdout, jwk.NewSet(jwks...), c.Compact)
	}
	return writeJSON(stdout, jwks[0], c.Compact)
}

func (c *ConvertCmd) readInput(stdin io.Reader) ([]byte, string, error) {
	if c.Key == "" || c.Key == "-" {
		b, err := io.ReadAll(stdin)
		if err != nil {
			return nil, "", fmt.Errorf("failed to read standard input: %w", err)
		}
		return b, "standard input", nil
	}
	b, err := os.ReadFile(c.Key)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read key file: %w", err)
	}
	return b, c.Key, nil
}

func (c *ConvertCmd) options(k key.Key) []jwk.Option {
	var opts []jwk.Option
	switch {
	case c.KeyID != "":
		opts = append(opts, jwk.WithKeyID(c.KeyID))
	case c.ThumbprintKeyID:
		opts = append(opts, jwk.WithThumbprintKeyID())
	}
	if c.Use != "" {
		opts = append(opts, jwk.WithUse(c.Use))
	}
	switch c.Alg {
	case "":
	case "auto":
		opts = append(opts, jwk.WithAlgorithm(jwk.DefaultAlgorithm(k)))
	default:
		opts = append(opts, jwk.WithAlgorithm(c.Alg))
	}
	return opts
}

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"google.golang.org/grpc"

	"github.com/zarvd/pem2jwk/internal/jwk"
	"github.com/zarvd/pem2jwk/internal/key"
	"github.com/zarvd/pem2jwk/internal/signer"
)

type FetchCmd struct {
	UnixDomainSocket string `arg:"" required:"" help:"Unix domain socket the external JWT signer listens on"`

	APIVersion      string        `enum:"v1,v1alpha1" default:"v1" env:"PEM2JWK_API_VERSION" help:"External JWT signer API version (${enum})"`
	Timeout         time.Duration `default:"10s" help:"Timeout for fetching keys"`
	IncludeExcluded bool          `help:"Include keys marked as excluded from OIDC discovery"`
	Compact         bool          `env:"PEM2JWK_COMPACT" help:"Print compact JSON"`
}

func (c *FetchCmd) Run(ctx context.Context, logger *slog.Logger, stdout io.Writer) error {
	conn, err := signer.Dial(c.UnixDomainSocket)
	if err != nil {
		return err
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	ks, err := c.fetcher(logger, conn).FetchKeys(ctx)
	if err != nil {
		return err
	}

	set, err := keySetToJWKS(logger, ks, c.IncludeExcluded)
	if err != nil {
		return err
	}
	return writeJSON(stdout, set, c.Compact)
}

func (c *FetchCmd) fetcher(logger *slog.Logger, conn grpc.ClientConnInterface) signer.Fetcher {
	if c.APIVersion == "v1alpha1" {
		return signer.NewV1Alpha1Fetcher(logger, conn)
	}
	return signer.NewV1Fetcher(logger, conn)
}

// keySetToJWKS converts the signer's PKIX keys to signature JWKs named by
// their signer key IDs.
func keySetToJWKS(logger *slog.Logger, ks *signer.KeySet, includeExcluded bool) (jwk.Set, error) {
	jwks := make([]jwk.JWK, 0, len(ks.Keys))
	for _, sk := range ks.Keys {
		if sk.ExcludeFromOIDCDiscovery && !includeExcluded {
			logger.Info("skipping key excluded from OIDC discovery", slog.String("key-id", sk.KeyID))
			continue
		}
		k, err := key.Decode(sk.DER, key.EncodingDER)
		if err != nil {
			return jwk.Set{}, fmt.Errorf("failed to decode key %q: %w", sk.KeyID, err)
		}
		k = k.Public()
		jwks = append(jwks, jwk.FromKey(k,
			jwk.WithKeyID(sk.KeyID),
			jwk.WithUse("sig"),
			jwk.WithAlgorithm(jwk.DefaultAlgorithm(k)),
		))
	}
	return jwk.NewSet(jwks...), nil
}

package signer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
	v1 "k8s.io/externaljwt/apis/v1"
)

var _ Fetcher = (*V1Fetcher)(nil)

type V1Fetcher struct {
	logger *slog.Logger
	client v1.ExternalJWTSignerClient
}

func NewV1Fetcher(logger *slog.Logger, conn grpc.ClientConnInterface) *V1Fetcher {
	return &V1Fetcher{
		logger: logger,
		client: v1.NewExternalJWTSignerClient(conn),
	}
}

func (f *V1Fetcher) FetchKeys(ctx context.Context) (*KeySet, error) {
	logger := f.logger.With(slog.String("method", "FetchKeys"), slog.String("api-version", "v1"))

	resp, err := f.client.FetchKeys(ctx, &v1.FetchKeysRequest{})
	if err != nil {
		logger.Error("failed to fetch keys", slog.String("code", status.Code(err).String()), slog.Any("error", err))
		return nil, fmt.Errorf("failed to fetch keys: %w", err)
	}

	rv := &KeySet{
		Keys:          make([]Key, 0, len(resp.GetKeys())),
		DataTimestamp: asTime(resp.GetDataTimestamp()),
		RefreshHint:   time.Duration(resp.GetRefreshHintSeconds()) * time.Second,
	}
	keyIDs := make([]string, 0, len(resp.GetKeys()))
	for _, k := range resp.GetKeys() {
		rv.Keys = append(rv.Keys, Key{
			KeyID:                    k.GetKeyId(),
			DER:                      k.GetKey(),
			ExcludeFromOIDCDiscovery: k.GetExcludeFromOidcDiscovery(),
		})
		keyIDs = append(keyIDs, k.GetKeyId())
	}

	logger.Info("fetched keys",
		slog.Int("num-keys", len(rv.Keys)),
		slog.Any("key-ids", keyIDs),
		slog.Time("data-timestamp", rv.DataTimestamp),
		slog.Duration("refresh-hint", rv.RefreshHint),
	)

	return rv, nil
}

package signer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
	v1alpha1 "k8s.io/externaljwt/apis/v1alpha1"
)

var _ Fetcher = (*V1Alpha1Fetcher)(nil)

type V1Alpha1Fetcher struct {
	logger *slog.Logger
	client v1alpha1.ExternalJWTSignerClient
}

func NewV1Alpha1Fetcher(logger *slog.Logger, conn grpc.ClientConnInterface) *V1Alpha1Fetcher {
	return &V1Alpha1Fetcher{
		logger: logger,
		client: v1alpha1.NewExternalJWTSignerClient(conn),
	}
}

func (f *V1Alpha1Fetcher) FetchKeys(ctx context.Context) (*KeySet, error) {
	logger := f.logger.With(slog.String("method", "FetchKeys"), slog.String("api-version", "v1alpha1"))

	resp, err := f.client.FetchKeys(ctx, &v1alpha1.FetchKeysRequest{})
	if err != nil {
		logger.Error("failed to fetch keys", slog.String("code", status.Code(err).String()), slog.Any("error", err))
		return nil, fmt.Errorf("failed to fetch keys: %w", err)
	}

	rv := &KeySet{
		Keys:          make([]Key, 0, len(resp.GetKeys())),
		DataTimestamp: asTime(resp.GetDataTimestamp()),
		RefreshHint:   time.Duration(resp.GetRefreshHintSeconds()) * time.Second,
	}
	for _, k := range resp.GetKeys() {
		rv.Keys = append(rv.Keys, Key{
			KeyID:                    k.GetKeyId(),
			DER:                      k.GetKey(),
			ExcludeFromOIDCDiscovery: k.GetExcludeFromOidcDiscovery(),
		})
	}

	logger.Info("fetched keys", slog.Int("num-keys", len(rv.Keys)))

	return rv, nil
}

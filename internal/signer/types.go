// Package signer fetches public keys from a Kubernetes external JWT signer
// over its gRPC API.
package signer

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// Key is a public key published by the signer.
type Key struct {
	KeyID string
	// DER is the PKIX (SubjectPublicKeyInfo) encoding of the key.
	DER                      []byte
	ExcludeFromOIDCDiscovery bool
}

type KeySet struct {
	Keys          []Key
	DataTimestamp time.Time
	RefreshHint   time.Duration
}

type Fetcher interface {
	FetchKeys(ctx context.Context) (*KeySet, error)
}

// Dial connects to a signer listening on a Unix domain socket. The
// connection is established lazily on the first call.
func Dial(socket string) (*grpc.ClientConn, error) {
	target := "unix:" + socket
	if filepath.IsAbs(socket) {
		target = "unix://" + socket
	}
	conn, err := grpc.NewClient(target, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to create client for %s: %w", socket, err)
	}
	return conn, nil
}

func asTime(ts *timestamppb.Timestamp) time.Time {
	if ts == nil {
		return time.Time{}
	}
	return ts.AsTime()
}

package signer

import (
	"bytes"
	"context"
	"log/slog"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/timestamppb"
	v1 "k8s.io/externaljwt/apis/v1"
	v1alpha1 "k8s.io/externaljwt/apis/v1alpha1"
)

var testTimestamp = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type staticV1Server struct {
	v1.UnimplementedExternalJWTSignerServer

	keys []*v1.Key
	err  error
}

func (svr *staticV1Server) FetchKeys(ctx context.Context, req *v1.FetchKeysRequest) (*v1.FetchKeysResponse, error) {
	if svr.err != nil {
		return nil, svr.err
	}
	return &v1.FetchKeysResponse{
		Keys:               svr.keys,
		DataTimestamp:      timestamppb.New(testTimestamp),
		RefreshHintSeconds: 300,
	}, nil
}

type staticV1Alpha1Server struct {
	v1alpha1.UnimplementedExternalJWTSignerServer

	keys []*v1alpha1.Key
}

func (svr *staticV1Alpha1Server) FetchKeys(ctx context.Context, req *v1alpha1.FetchKeysRequest) (*v1alpha1.FetchKeysResponse, error) {
	return &v1alpha1.FetchKeysResponse{
		Keys:               svr.keys,
		DataTimestamp:      timestamppb.New(testTimestamp),
		RefreshHintSeconds: 60,
	}, nil
}

// serve starts grpcServer on an in-memory listener and returns a client
// connection to it.
func serve(t *testing.T, register func(*grpc.Server)) *grpc.ClientConn {
	t.Helper()

	listener := bufconn.Listen(1 << 20)
	grpcServer := grpc.NewServer()
	register(grpcServer)
	go func() {
		_ = grpcServer.Serve(listener)
	}()
	t.Cleanup(grpcServer.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return listener.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestV1Fetcher_FetchKeys(t *testing.T) {
	t.Parallel()

	t.Run("fetching keys", func(t *testing.T) {
		t.Parallel()

		conn := serve(t, func(s *grpc.Server) {
			v1.RegisterExternalJWTSignerServer(s, &staticV1Server{
				keys: []*v1.Key{
					{KeyId: "a", Key: []byte{0x30, 0x00}},
					{KeyId: "b", Key: []byte{0x30, 0x01, 0x00}, ExcludeFromOidcDiscovery: true},
				},
			})
		})

		var logs bytes.Buffer
		logger := slog.New(slog.NewTextHandler(&logs, nil))

		ks, err := NewV1Fetcher(logger, conn).FetchKeys(context.Background())
		require.NoError(t, err)
		require.Contains(t, logs.String(), `msg="fetched keys"`)
		require.Contains(t, logs.String(), "num-keys=2")
		require.Equal(t, &KeySet{
			Keys: []Key{
				{KeyID: "a", DER: []byte{0x30, 0x00}},
				{KeyID: "b", DER: []byte{0x30, 0x01, 0x00}, ExcludeFromOIDCDiscovery: true},
			},
			DataTimestamp: testTimestamp,
			RefreshHint:   5 * time.Minute,
		}, ks)
	})

	t.Run("signer error", func(t *testing.T) {
		t.Parallel()

		conn := serve(t, func(s *grpc.Server) {
			v1.RegisterExternalJWTSignerServer(s, &staticV1Server{
				err: status.Error(codes.Unavailable, "keys not ready"),
			})
		})

		var logs bytes.Buffer
		logger := slog.New(slog.NewTextHandler(&logs, nil))

		ks, err := NewV1Fetcher(logger, conn).FetchKeys(context.Background())
		require.Error(t, err)
		require.Contains(t, logs.String(), `level=ERROR msg="failed to fetch keys"`)
		require.Contains(t, logs.String(), "code=Unavailable")
		require.Nil(t, ks)
		require.Equal(t, codes.Unavailable, status.Code(err))
		require.Contains(t, err.Error(), "failed to fetch keys")
	})

	t.Run("unimplemented", func(t *testing.T) {
		t.Parallel()

		conn := serve(t, func(s *grpc.Server) {
			v1alpha1.RegisterExternalJWTSignerServer(s, &staticV1Alpha1Server{})
		})

		_, err := NewV1Fetcher(slog.Default(), conn).FetchKeys(context.Background())
		require.Equal(t, codes.Unimplemented, status.Code(err))
	})
}

func TestV1Alpha1Fetcher_FetchKeys(t *testing.T) {
	t.Parallel()

	conn := serve(t, func(s *grpc.Server) {
		v1alpha1.RegisterExternalJWTSignerServer(s, &staticV1Alpha1Server{
			keys: []*v1alpha1.Key{{KeyId: "alpha", Key: []byte{0x30, 0x00}}},
		})
	})

	ks, err := NewV1Alpha1Fetcher(slog.Default(), conn).FetchKeys(context.Background())
	require.NoError(t, err)
	require.Equal(t, []Key{{KeyID: "alpha", DER: []byte{0x30, 0x00}}}, ks.Keys)
	require.Equal(t, testTimestamp, ks.DataTimestamp)
	require.Equal(t, time.Minute, ks.RefreshHint)
}

func TestDial(t *testing.T) {
	t.Parallel()

	socket := filepath.Join(t.TempDir(), "signer.sock")
	listener, err := net.Listen("unix", socket)
	require.NoError(t, err)

	grpcServer := grpc.NewServer()
	v1.RegisterExternalJWTSignerServer(grpcServer, &staticV1Server{
		keys: []*v1.Key{{KeyId: "unix", Key: []byte{0x30, 0x00}}},
	})
	go func() {
		_ = grpcServer.Serve(listener)
	}()
	t.Cleanup(grpcServer.Stop)

	conn, err := Dial(socket)
	require.NoError(t, err)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	ks, err := NewV1Fetcher(slog.Default(), conn).FetchKeys(ctx)
	require.NoError(t, err)
	require.Len(t, ks.Keys, 1)
	require.Equal(t, "unix", ks.Keys[0].KeyID)
}

func TestAsTime(t *testing.T) {
	t.Parallel()

	require.True(t, asTime(nil).IsZero())
	require.Equal(t, testTimestamp, asTime(timestamppb.New(testTimestamp)))
}

package rpc

import (
	"context"
	"io"
	"log/slog"
	"net"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/stretchr/testify/require"

	"github.com/qarax-project/qarax/lib/imagestore"
	"github.com/qarax-project/qarax/lib/paths"
	"github.com/qarax-project/qarax/lib/vmmanager"
)

// startBufconnServer brings up a real grpc.Server over an in-memory
// listener, wired the same way a binary's main would wire it, and
// returns a Client already dialed against it.
func startBufconnServer(t *testing.T) *Client {
	t.Helper()

	lis := bufconn.Listen(1024 * 1024)
	t.Cleanup(func() { _ = lis.Close() })

	discard := slog.New(slog.NewTextHandler(io.Discard, nil))
	p := paths.New(t.TempDir(), t.TempDir())
	vms := vmmanager.New(p, "/bin/true", nil, discard)
	images := imagestore.New(p, "/bin/true", "", discard)

	srv := grpc.NewServer()
	RegisterNodeAgentServer(srv, NewServer(vms, images, "/bin/true", discard))
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(jsonCodec{})),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return &Client{conn: conn}
}

func TestClientListVMsEmpty(t *testing.T) {
	c := startBufconnServer(t)
	resp, err := c.ListVMs(context.Background())
	require.NoError(t, err)
	require.Empty(t, resp.VMs)
}

func TestClientPingReportsKernelVersion(t *testing.T) {
	c := startBufconnServer(t)
	resp, err := c.Ping(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, resp.KernelVersion)
}

func TestClientGetInfoNotFoundMapsToNotFound(t *testing.T) {
	c := startBufconnServer(t)
	_, err := c.GetInfo(context.Background(), "missing-vm")
	require.Error(t, err)
	require.Equal(t, codes.NotFound, status.Code(err))
}

func TestClientGetCountersNotFoundMapsToNotFound(t *testing.T) {
	c := startBufconnServer(t)
	_, err := c.GetCounters(context.Background(), "missing-vm")
	require.Error(t, err)
	require.Equal(t, codes.NotFound, status.Code(err))
}

package xentest

import (
	"context"
	"net"

	"github.com/xenmsg/xen"
)

// TB is the subset of testing.TB these helpers need, so callers can pass a
// *testing.T or *testing.B interchangeably.
type TB interface {
	Helper()
	Fatalf(format string, args ...interface{})
	Cleanup(func())
}

// NewServer starts an xen.Server on 127.0.0.1 with an OS-assigned port,
// grounded on netconf/testserver's "start a real listener per test, close
// it on cleanup" pattern. Any ServerOption may be supplied to override
// defaults (e.g. WithServerChannelOptions(xen.WithEvaluator(...))).
func NewServer(t TB, opts ...xen.ServerOption) *xen.Server {
	t.Helper()
	allOpts := append([]xen.ServerOption{
		xen.WithServerConfig(xen.ServerConfig{Address: "127.0.0.1", Port: 0, MaxClients: -1, Channel: xen.DefaultChannelConfig}),
	}, opts...)

	srv, err := xen.NewServer(context.Background(), allOpts...)
	if err != nil {
		t.Fatalf("xentest: starting server: %v", err)
	}
	t.Cleanup(func() { _ = srv.Close() })
	return srv
}

// Dial connects an xen.Client to srv.
func Dial(t TB, srv *xen.Server, opts ...xen.ChannelOption) *xen.Client {
	t.Helper()
	addr, ok := srv.Addr().(*net.TCPAddr)
	if !ok {
		t.Fatalf("xentest: server address %v is not a TCP address", srv.Addr())
	}

	cli, err := xen.NewClient(context.Background(), &xen.ClientConfig{Host: "127.0.0.1", Port: addr.Port}, opts...)
	if err != nil {
		t.Fatalf("xentest: dialing server: %v", err)
	}
	t.Cleanup(func() { _ = cli.Close() })
	return cli
}

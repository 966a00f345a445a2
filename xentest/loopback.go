// Package xentest provides fixtures for exercising xen end to end: an
// in-memory loopback harness, a real TCP-backed test server grounded on
// netconf/testserver's accept-and-wrap pattern, and a minimal arithmetic
// Evaluator Port.
package xentest

import (
	"net"

	"github.com/xenmsg/xen"
)

// Loopback wires two Channels together over an in-memory net.Pipe, useful
// for tests that want full Channel behavior (framing, dispatch, serial
// correlation) without a real socket.
func Loopback(aOpts, bOpts []xen.ChannelOption) (a, b *xen.Channel) {
	sideA, sideB := net.Pipe()
	a = xen.NewChannel(sideA, append([]xen.ChannelOption{xen.WithChannelID("a")}, aOpts...)...)
	b = xen.NewChannel(sideB, append([]xen.ChannelOption{xen.WithChannelID("b")}, bOpts...)...)
	return a, b
}

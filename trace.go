package xen

import (
	"context"
	"log"
	"time"

	"github.com/imdario/mergo"
)

// unique type to prevent external packages from colliding with this key.
type traceContextKey struct{}

// Hooks defines trace callbacks a caller can attach to observe Channel and
// Endpoint lifecycle events, grounded on netconf/client.ClientTrace. Any nil
// field is a no-op; ContextTrace fills unset fields from NoOpHooks so
// callers never need a nil check before invoking one.
type Hooks struct {
	// ListenStart/ListenDone bracket a Server's call to net.Listen.
	ListenStart func(address string, port int)
	ListenDone  func(address string, port int, err error)

	// Accepted is called after a Server accepts (or fails to accept) a
	// new connection, before any capacity check.
	Accepted func(remote string, err error)

	// CapacityRejected is called when a Server closes a newly accepted
	// connection because it was already at MaxClients.
	CapacityRejected func(remote string, maxClients int)

	// ConnectStart/ConnectDone bracket a Client's outbound dial.
	ConnectStart func(host string, port int)
	ConnectDone  func(host string, port int, err error, d time.Duration)

	// ChannelClosed is called once a Channel's transport has been closed,
	// whether by explicit Close, peer EOF, or a protocol/transport error.
	ChannelClosed func(peer string, err error)

	// ReadStart/ReadDone bracket each read of the underlying transport.
	ReadStart func(peer string)
	ReadDone  func(peer string, n int, err error, d time.Duration)

	// WriteStart/WriteDone bracket each write to the underlying transport.
	WriteStart func(peer string, n int)
	WriteDone  func(peer string, n int, err error, d time.Duration)

	// CommandStart/CommandDone bracket the write of a CMD by SendCommand.
	// SendEvent does not call them, and neither covers the wait for a reply.
	CommandStart func(peer string, category Category, serial uint64, text string)
	CommandDone  func(peer string, category Category, serial uint64, err error, d time.Duration)

	// DispatchStart/DispatchDone bracket one drain-loop tick: a single
	// message popped from the pending FIFO and routed to its handler.
	DispatchStart func(peer string, category Category, serial uint64)
	DispatchDone  func(peer string, category Category, serial uint64, err error, d time.Duration)

	// SpuriousResponse is called when an ERR with a non-zero serial arrives
	// that does not correlate to any outstanding command (spec §9 Open
	// Question: logged and dropped, not delivered to any handler). OK
	// replies are always delivered and never reported here.
	SpuriousResponse func(peer string, category Category, serial uint64)

	// UnknownCategory is called when a decoded envelope's category is not
	// one of CMD/EVT/OK/ERR (spec §4.5 step 2: "diagnostic warning; do not
	// drop into CMD semantics").
	UnknownCategory func(peer string, category Category, serial uint64)

	// Error is called whenever a ProtocolError, TransportError, or
	// FormatError closes a Channel.
	Error func(context, peer string, err error)
}

// DefaultHooks logs errors and channel closures with the standard log
// package, matching netconf/client.DefaultLoggingHooks.
var DefaultHooks = &Hooks{
	Error: func(context, peer string, err error) {
		log.Printf("xen error context:%s peer:%s err:%v\n", context, peer, err)
	},
	ChannelClosed: func(peer string, err error) {
		if err != nil {
			log.Printf("xen channel closed peer:%s err:%v\n", peer, err)
		}
	},
}

// DiagnosticHooks logs every lifecycle event, matching
// netconf/client.DiagnosticLoggingHooks. It is useful when developing
// against a new Evaluator or transport.
var DiagnosticHooks = &Hooks{
	ListenStart: func(address string, port int) {
		log.Printf("xen listen-start address:%s port:%d\n", address, port)
	},
	ListenDone: func(address string, port int, err error) {
		log.Printf("xen listen-done address:%s port:%d err:%v\n", address, port, err)
	},
	Accepted: func(remote string, err error) {
		log.Printf("xen accepted remote:%s err:%v\n", remote, err)
	},
	CapacityRejected: func(remote string, maxClients int) {
		log.Printf("xen capacity-rejected remote:%s max_clients:%d\n", remote, maxClients)
	},
	ConnectStart: func(host string, port int) {
		log.Printf("xen connect-start host:%s port:%d\n", host, port)
	},
	ConnectDone: func(host string, port int, err error, d time.Duration) {
		log.Printf("xen connect-done host:%s port:%d err:%v took:%s\n", host, port, err, d)
	},
	ChannelClosed: DefaultHooks.ChannelClosed,
	CommandStart: func(peer string, category Category, serial uint64, text string) {
		log.Printf("xen command-start peer:%s category:%s serial:%d\n", peer, category, serial)
	},
	CommandDone: func(peer string, category Category, serial uint64, err error, d time.Duration) {
		log.Printf("xen command-done peer:%s category:%s serial:%d err:%v took:%s\n", peer, category, serial, err, d)
	},
	DispatchDone: func(peer string, category Category, serial uint64, err error, d time.Duration) {
		log.Printf("xen dispatch-done peer:%s category:%s serial:%d err:%v took:%s\n", peer, category, serial, err, d)
	},
	SpuriousResponse: func(peer string, category Category, serial uint64) {
		log.Printf("xen spurious-response peer:%s category:%s serial:%d\n", peer, category, serial)
	},
	UnknownCategory: func(peer string, category Category, serial uint64) {
		log.Printf("xen unknown-category peer:%s category:%s serial:%d\n", peer, category, serial)
	},
	Error: DefaultHooks.Error,
}

// NoOpHooks does nothing for every event; it is the base every Hooks value
// is merged over so callers can invoke any field unconditionally.
var NoOpHooks = &Hooks{
	ListenStart:      func(address string, port int) {},
	ListenDone:       func(address string, port int, err error) {},
	Accepted:         func(remote string, err error) {},
	CapacityRejected: func(remote string, maxClients int) {},
	ConnectStart:     func(host string, port int) {},
	ConnectDone:      func(host string, port int, err error, d time.Duration) {},
	ChannelClosed:    func(peer string, err error) {},
	ReadStart:        func(peer string) {},
	ReadDone:         func(peer string, n int, err error, d time.Duration) {},
	WriteStart:       func(peer string, n int) {},
	WriteDone:        func(peer string, n int, err error, d time.Duration) {},
	CommandStart:     func(peer string, category Category, serial uint64, text string) {},
	CommandDone:      func(peer string, category Category, serial uint64, err error, d time.Duration) {},
	DispatchStart:    func(peer string, category Category, serial uint64) {},
	DispatchDone:     func(peer string, category Category, serial uint64, err error, d time.Duration) {},
	SpuriousResponse: func(peer string, category Category, serial uint64) {},
	UnknownCategory:  func(peer string, category Category, serial uint64) {},
	Error:            func(context, peer string, err error) {},
}

// WithTrace returns a context carrying trace, for use by NewServer/NewClient
// callers that want to observe Endpoint/Channel lifecycle events.
func WithTrace(ctx context.Context, trace *Hooks) context.Context {
	return context.WithValue(ctx, traceContextKey{}, trace)
}

// ContextTrace returns the Hooks attached to ctx by WithTrace, with every
// unset field filled in from NoOpHooks. If ctx carries no Hooks, it returns
// NoOpHooks itself.
func ContextTrace(ctx context.Context) *Hooks {
	trace, ok := ctx.Value(traceContextKey{}).(*Hooks)
	if !ok || trace == nil {
		return NoOpHooks
	}
	return mergeHooks(trace)
}

// mergeHooks fills every unset field of trace from NoOpHooks, so a partial
// Hooks value such as DefaultHooks or DiagnosticHooks is always safe to call
// unconditionally. Every entry point that accepts a caller-supplied *Hooks
// directly (as opposed to via WithTrace/ContextTrace, which already merges)
// must route through this.
func mergeHooks(trace *Hooks) *Hooks {
	if trace == nil {
		return NoOpHooks
	}
	merged := *trace
	_ = mergo.Merge(&merged, *NoOpHooks)
	return &merged
}

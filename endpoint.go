package xen

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/xenmsg/xen/wire"
)

// Server is the listening Endpoint of spec §4.6: it accepts connections,
// wraps each in a Channel, and tracks the live peer set. Destroying the
// Server destroys every peer Channel, then closes the listener.
type Server struct {
	listener    net.Listener
	cfg         ServerConfig
	trace       *Hooks
	channelOpts []ChannelOption

	mu     sync.Mutex
	peers  map[string]*Channel
	closed bool
	done   chan struct{}
}

// ServerOption configures a Server at construction time.
type ServerOption func(*Server)

// WithServerConfig overrides DefaultServerConfig.
func WithServerConfig(cfg ServerConfig) ServerOption {
	return func(s *Server) { s.cfg = cfg }
}

// WithServerTrace attaches Hooks directly, bypassing context propagation.
// trace is merged against NoOpHooks so a partial value like DefaultHooks or
// DiagnosticHooks is safe to call unconditionally.
func WithServerTrace(trace *Hooks) ServerOption {
	return func(s *Server) { s.trace = mergeHooks(trace) }
}

// WithServerChannelOptions applies additional ChannelOptions (typically
// WithEvaluator, WithEventHandler) to every peer Channel the Server creates.
func WithServerChannelOptions(opts ...ChannelOption) ServerOption {
	return func(s *Server) { s.channelOpts = append(s.channelOpts, opts...) }
}

// NewServer starts listening per ServerConfig (default 127.0.0.1, an
// OS-assigned port, unlimited clients) and begins accepting peers in the
// background.
func NewServer(ctx context.Context, opts ...ServerOption) (*Server, error) {
	s := &Server{
		cfg:   DefaultServerConfig,
		trace: ContextTrace(ctx),
		peers: make(map[string]*Channel),
		done:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.cfg = resolveServerConfig(&s.cfg)

	addr := fmt.Sprintf("%s:%d", s.cfg.Address, s.cfg.Port)
	s.trace.ListenStart(s.cfg.Address, s.cfg.Port)
	ln, err := net.Listen("tcp", addr)
	s.trace.ListenDone(s.cfg.Address, s.cfg.Port, err)
	if err != nil {
		return nil, wire.NewTransportError("listen", err)
	}
	s.listener = ln

	go s.acceptLoop()
	return s, nil
}

// Addr returns the listener's bound address, useful when ServerConfig.Port
// was 0 (OS-assigned).
func (s *Server) Addr() net.Addr { return s.listener.Addr() }

// Peers returns a snapshot of currently connected peer Channels.
func (s *Server) Peers() []*Channel {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Channel, 0, len(s.peers))
	for _, ch := range s.peers {
		out = append(out, ch)
	}
	return out
}

// Close destroys every peer Channel, then closes the listener (spec §4.6).
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	peers := make([]*Channel, 0, len(s.peers))
	for _, ch := range s.peers {
		peers = append(peers, ch)
	}
	s.peers = make(map[string]*Channel)
	s.mu.Unlock()

	close(s.done)
	for _, ch := range peers {
		_ = ch.Close()
	}
	return s.listener.Close()
}

func (s *Server) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Server) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			s.trace.Accepted("", err)
			if s.isClosed() {
				return
			}
			continue
		}

		remote := conn.RemoteAddr().String()
		s.trace.Accepted(remote, nil)

		s.mu.Lock()
		atCapacity := s.cfg.MaxClients >= 0 && len(s.peers) >= s.cfg.MaxClients
		s.mu.Unlock()

		if atCapacity {
			s.trace.CapacityRejected(remote, s.cfg.MaxClients)
			payload := encodeBestEffort(FormatEnvelope(CategoryError, 0, "capacity-exhausted"), s.cfg.Channel.Encoding)
			if payload != nil {
				_ = wire.WriteFrame(conn, payload)
			}
			_ = conn.Close()
			continue
		}

		opts := append([]ChannelOption{
			WithChannelConfig(s.cfg.Channel),
			WithChannelTrace(s.trace),
			WithChannelID(remote),
		}, s.channelOpts...)
		ch := NewChannel(conn, opts...)
		s.addPeer(ch)
		go s.watchPeer(ch)
	}
}

func (s *Server) addPeer(ch *Channel) {
	s.mu.Lock()
	s.peers[ch.ID()] = ch
	s.mu.Unlock()
}

func (s *Server) removePeer(ch *Channel) {
	s.mu.Lock()
	if s.peers[ch.ID()] == ch {
		delete(s.peers, ch.ID())
	}
	s.mu.Unlock()
}

func (s *Server) watchPeer(ch *Channel) {
	<-ch.Done()
	s.removePeer(ch)
}

// encodeBestEffort encodes text for a connection that has no Channel (and
// so no EncodingError path) to report itself through; a transcoding failure
// here is swallowed and the connection is closed unexplained, since there
// is no caller left to hand the error to (spec §4.6: "optionally after
// sending").
func encodeBestEffort(text, encoding string) []byte {
	payload, err := wire.EncodeText(text, encoding)
	if err != nil {
		return nil
	}
	return payload
}

// Client wraps the outbound Channel of spec §4.6. It is the same Channel
// type a Server hands out on accept; Client exists only to pair with
// NewClient's {host, port} constructor signature.
type Client struct {
	*Channel
}

// NewClient dials host:port and wraps the resulting connection in a
// Channel.
func NewClient(ctx context.Context, cfg *ClientConfig, opts ...ChannelOption) (*Client, error) {
	resolved := resolveClientConfig(cfg)
	trace := ContextTrace(ctx)

	addr := fmt.Sprintf("%s:%d", resolved.Host, resolved.Port)
	trace.ConnectStart(resolved.Host, resolved.Port)
	start := time.Now()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	trace.ConnectDone(resolved.Host, resolved.Port, err, time.Since(start))
	if err != nil {
		return nil, wire.NewTransportError("dial", err)
	}

	chOpts := append([]ChannelOption{
		WithChannelConfig(resolved.Channel),
		WithChannelTrace(trace),
	}, opts...)
	return &Client{Channel: NewChannel(conn, chOpts...)}, nil
}

package xen

import (
	"github.com/imdario/mergo"

	"github.com/xenmsg/xen/wire"
)

// ChannelConfig configures a Channel's text encoding and frame-size ceiling.
// Zero-valued fields in a caller-supplied ChannelConfig are filled from
// DefaultChannelConfig, mirroring the way netconf/client.Config and
// netconf/rfc6242's DecoderOption/EncoderOption apply their defaults.
type ChannelConfig struct {
	// Encoding is the text encoding label used to transcode between Text
	// and the bytes carried in a frame payload. "binary" disables
	// transcoding entirely.
	Encoding string
	// MaxFrameSize bounds the declared size of any single frame payload
	// the Channel's Receiver will accept.
	MaxFrameSize int64
}

// DefaultChannelConfig is applied to any zero-valued field of a
// caller-supplied ChannelConfig.
var DefaultChannelConfig = ChannelConfig{
	Encoding:     "iso8859-1",
	MaxFrameSize: wire.DefaultMaxFrameSize,
}

func resolveChannelConfig(cfg *ChannelConfig) ChannelConfig {
	resolved := ChannelConfig{}
	if cfg != nil {
		resolved = *cfg
	}
	_ = mergo.Merge(&resolved, DefaultChannelConfig)
	return resolved
}

// ServerConfig configures a listening Endpoint, matching spec §4.6 and §6's
// {address, port, max_clients} surface.
type ServerConfig struct {
	// Address is the interface the listener binds to.
	Address string
	// Port is the TCP port to listen on; 0 asks the OS to choose one,
	// discoverable afterwards via Server.Addr().
	Port int
	// MaxClients caps the number of simultaneously connected peers.
	// -1 means unlimited. A newly accepted connection beyond the cap is
	// sent a best-effort ERR:0:capacity-exhausted frame and closed.
	MaxClients int
	// Channel configures every peer Channel the server creates.
	Channel ChannelConfig
}

// DefaultServerConfig matches spec §6's stated defaults: loopback address,
// OS-assigned port, unlimited clients.
var DefaultServerConfig = ServerConfig{
	Address:    "127.0.0.1",
	Port:       0,
	MaxClients: -1,
	Channel:    DefaultChannelConfig,
}

func resolveServerConfig(cfg *ServerConfig) ServerConfig {
	resolved := ServerConfig{}
	if cfg != nil {
		resolved = *cfg
	}
	_ = mergo.Merge(&resolved, DefaultServerConfig)
	resolved.Channel = resolveChannelConfig(&resolved.Channel)
	return resolved
}

// ClientConfig configures an outbound connection, matching spec §4.6's
// {host, port} client surface.
type ClientConfig struct {
	Host    string
	Port    int
	Channel ChannelConfig
}

// DefaultClientConfig supplies only the Channel defaults; Host/Port have no
// sensible default and must be supplied by the caller.
var DefaultClientConfig = ClientConfig{
	Channel: DefaultChannelConfig,
}

func resolveClientConfig(cfg *ClientConfig) ClientConfig {
	resolved := ClientConfig{}
	if cfg != nil {
		resolved = *cfg
	}
	_ = mergo.Merge(&resolved, DefaultClientConfig)
	resolved.Channel = resolveChannelConfig(&resolved.Channel)
	return resolved
}

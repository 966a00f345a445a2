package xen

import (
	"io"
	"time"
)

// Transport is the byte-stream a Channel frames and parses messages over. A
// net.Conn satisfies it directly; NewChannelFromPipes wraps a pair of
// unidirectional pipes (as produced by a subprocess) into one.
type Transport interface {
	io.Reader
	io.Writer
	io.Closer
}

// traceReader and traceWriter wrap a Transport's halves with trace hook
// calls, mirroring netconf/client.traceReader/traceWriter.
type traceReader struct {
	r     io.Reader
	peer  string
	trace *Hooks
}

func (t *traceReader) Read(p []byte) (int, error) {
	t.trace.ReadStart(t.peer)
	start := time.Now()
	n, err := t.r.Read(p)
	t.trace.ReadDone(t.peer, n, err, time.Since(start))
	return n, err
}

type traceWriter struct {
	w     io.Writer
	peer  string
	trace *Hooks
}

func (t *traceWriter) Write(p []byte) (int, error) {
	t.trace.WriteStart(t.peer, len(p))
	start := time.Now()
	n, err := t.w.Write(p)
	t.trace.WriteDone(t.peer, n, err, time.Since(start))
	return n, err
}

func wrapTraceReader(r io.Reader, peer string, trace *Hooks) io.Reader {
	return &traceReader{r: r, peer: peer, trace: trace}
}

func wrapTraceWriter(w io.Writer, peer string, trace *Hooks) io.Writer {
	return &traceWriter{w: w, peer: peer, trace: trace}
}

// pipeTransport composes an independent read side and write side (as a
// subprocess exposes over stdout/stdin) into a single Transport. Close
// closes both; grounded on spec §4.8's "wrap pipes into a Channel" scope,
// which stops short of owning subprocess lifecycle.
type pipeTransport struct {
	r io.ReadCloser
	w io.WriteCloser
}

// NewChannelFromPipes composes r and w — typically a subprocess's stdout and
// stdin — into a Transport and wraps it in a new Channel. Xen's core does
// not spawn, wait on, or signal the subprocess (spec §4.8 Non-goals); the
// caller remains responsible for the process itself.
func NewChannelFromPipes(r io.ReadCloser, w io.WriteCloser, opts ...ChannelOption) *Channel {
	return NewChannel(&pipeTransport{r: r, w: w}, opts...)
}

func (p *pipeTransport) Read(b []byte) (int, error)  { return p.r.Read(b) }
func (p *pipeTransport) Write(b []byte) (int, error) { return p.w.Write(b) }

func (p *pipeTransport) Close() error {
	werr := p.w.Close()
	rerr := p.r.Close()
	if werr != nil {
		return werr
	}
	return rerr
}

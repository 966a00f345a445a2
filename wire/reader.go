package wire

import "io"

// FrameReader adapts a Receiver to a blocking io.Reader, for transports that
// do not offer readiness notifications. It is the "mixed blocking/
// non-blocking transports" strategy from the Design Notes: the Codec and
// Receiver stay transport-agnostic, and a blocking caller simply loops Feed
// until a frame emerges.
type FrameReader struct {
	r       io.Reader
	recv    *Receiver
	pending [][]byte
	scratch []byte
}

// NewFrameReader wraps r so that ReadFrame can be called to obtain one
// complete frame payload at a time.
func NewFrameReader(r io.Reader, opts ...Option) *FrameReader {
	return &FrameReader{r: r, recv: NewReceiver(opts...), scratch: make([]byte, 32*1024)}
}

// ReadFrame blocks until a complete frame payload is available, the
// underlying reader reaches EOF, or an error occurs. Once every complete
// payload has been returned, EOF yields io.EOF; bytes of an incomplete
// trailing frame still buffered at that point are discarded without error.
func (fr *FrameReader) ReadFrame() ([]byte, error) {
	for len(fr.pending) == 0 {
		n, err := fr.r.Read(fr.scratch)
		if n > 0 {
			payloads, ferr := fr.recv.Feed(fr.scratch[:n])
			fr.pending = append(fr.pending, payloads...)
			if ferr != nil {
				return nil, ferr
			}
		}
		if err != nil {
			if len(fr.pending) > 0 {
				break
			}
			if err == io.EOF {
				return nil, io.EOF
			}
			return nil, newTransportError("read frame", err)
		}
	}

	payload := fr.pending[0]
	fr.pending = fr.pending[1:]
	return payload, nil
}

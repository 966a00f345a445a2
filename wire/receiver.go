package wire

import "fmt"

// DefaultMaxFrameSize bounds the declared size of a single frame payload.
// It exists to reject a truncated or corrupt header (e.g. a stray digit)
// before the Receiver tries to buffer an implausible amount of data; see
// spec §4.2 and the Open Question in SPEC_FULL.md §9.
const DefaultMaxFrameSize = 64 * 1024 * 1024

// compactionThreshold is how many already-consumed bytes the Receiver will
// tolerate at the front of its buffer before it copies the remainder down
// and reclaims the prefix, per spec §4.2 step 3.
const compactionThreshold = 4096

type parseState int

const (
	stateAwaitingHeader parseState = iota
	stateAwaitingBody
)

// Option configures a Receiver at construction time.
type Option func(*Receiver)

// WithMaxFrameSize overrides DefaultMaxFrameSize.
func WithMaxFrameSize(n int64) Option {
	return func(r *Receiver) { r.maxFrameSize = n }
}

// Receiver is the Incremental Receiver of spec §4.2: it accepts arbitrarily
// chunked bytes and emits complete frame payloads as they become available.
// A Receiver is not safe for concurrent use; the owning Channel serializes
// access to it.
type Receiver struct {
	buf      []byte
	consumed int // O: prefix of buf already turned into emitted payloads
	cursor   int // scan position, consumed <= cursor <= len(buf)
	state    parseState

	bodyRemaining int64
	headerValue   int64
	headerDigits  int

	maxFrameSize int64
}

// NewReceiver creates a Receiver with DefaultMaxFrameSize unless overridden
// by an Option.
func NewReceiver(opts ...Option) *Receiver {
	r := &Receiver{maxFrameSize: DefaultMaxFrameSize}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Feed appends data to the Receiver's internal buffer and returns every
// frame payload that becomes complete as a result. It tolerates any
// chunking of the underlying byte stream: feeding a stream whole or in
// arbitrarily small pieces yields the same sequence of payloads (spec §8,
// "Chunking invariance").
func (r *Receiver) Feed(data []byte) ([][]byte, error) {
	if len(data) > 0 {
		r.buf = append(r.buf, data...)
	}

	var out [][]byte
	for {
		switch r.state {
		case stateAwaitingHeader:
			done, err := r.scanHeader()
			if err != nil {
				return out, err
			}
			if !done {
				r.compact()
				return out, nil
			}
		case stateAwaitingBody:
			payload, ok := r.scanBody()
			if !ok {
				r.compact()
				return out, nil
			}
			out = append(out, payload)
		}
	}
}

// scanHeader advances the cursor through an "@<digits>:" header. It returns
// done=true once a full header has been consumed and state has moved to
// awaiting-body; done=false means the buffer ran out mid-header and more
// data is needed.
func (r *Receiver) scanHeader() (done bool, err error) {
	for r.cursor < len(r.buf) {
		b := r.buf[r.cursor]

		if r.cursor == r.consumed {
			if b != '@' {
				return false, newProtocolError("missing begin marker")
			}
			r.cursor++
			continue
		}

		switch {
		case b >= '0' && b <= '9':
			r.headerDigits++
			if r.headerDigits > 19 {
				return false, newProtocolError("oversized frame")
			}
			r.headerValue = r.headerValue*10 + int64(b-'0')
			if r.headerValue > r.maxFrameSize {
				return false, newProtocolError("oversized frame")
			}
			r.cursor++
		case b == ':':
			if r.headerDigits == 0 {
				return false, newProtocolError("unexpected byte in header")
			}
			r.cursor++
			r.consumed = r.cursor
			r.bodyRemaining = r.headerValue
			r.headerValue = 0
			r.headerDigits = 0
			r.state = stateAwaitingBody
			return true, nil
		default:
			return false, newProtocolError("unexpected byte in header")
		}
	}
	return false, nil
}

// scanBody slices off bodyRemaining bytes once they are all present,
// returning a copy (so later buffer compaction cannot alias a payload the
// caller may hold onto) and advancing past it.
func (r *Receiver) scanBody() (payload []byte, ok bool) {
	need := int(r.bodyRemaining)
	if len(r.buf)-r.cursor < need {
		return nil, false
	}

	payload = make([]byte, need)
	copy(payload, r.buf[r.cursor:r.cursor+need])
	r.cursor += need
	r.consumed = r.cursor
	r.state = stateAwaitingHeader
	return payload, true
}

// compact discards the already-consumed prefix once it grows past
// compactionThreshold, capping buffer growth on long-lived channels.
func (r *Receiver) compact() {
	if r.consumed < compactionThreshold {
		return
	}
	remaining := len(r.buf) - r.consumed
	copy(r.buf, r.buf[r.consumed:])
	r.buf = r.buf[:remaining]
	r.cursor -= r.consumed
	r.consumed = 0
}

// String aids debugging/trace hooks; it never appears on the wire.
func (r *Receiver) String() string {
	return fmt.Sprintf("Receiver{state=%d, buffered=%d, pending-body=%d}", r.state, len(r.buf)-r.consumed, r.bodyRemaining)
}

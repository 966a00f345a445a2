package xen

import (
	"io"
	"log"
	"sync"
	"time"

	"github.com/xenmsg/xen/queue"
	"github.com/xenmsg/xen/wire"
)

// Channel composes the Codec, Receiver, FIFO queue, and Sender of spec §4.5
// over a single Transport. It owns that transport: closing the Channel
// closes it exactly once. Per §5's parallel-runtime variant, a Channel runs
// its receive loop on its own goroutine and drains its pending FIFO on a
// second, single-consumer goroutine so dispatch order is preserved; a
// channel-local mutex guards the serial counter, outstanding-command set,
// and closed flag.
type Channel struct {
	id        string
	transport Transport
	cfg       ChannelConfig
	trace     *Hooks

	receiver *wire.Receiver
	pending  *queue.Queue[Message]

	writeMu sync.Mutex

	mu          sync.Mutex
	serial      uint64
	closed      bool
	closeErr    error
	outstanding map[uint64]struct{}

	dispatcher      func(ch *Channel, category Category, serial uint64, text string)
	evaluator       Evaluator
	eventHandler    func(serial uint64, text string)
	responseHandler func(category Category, serial uint64, text string)
	rawHandler      func(payload []byte)

	drainSignal chan struct{}
	done        chan struct{}
	closeOnce   sync.Once
}

// ChannelOption configures a Channel at construction time, mirroring the
// functional-option pattern netconf/cli.SendOption uses for per-call
// configuration.
type ChannelOption func(*Channel)

// WithChannelConfig overrides DefaultChannelConfig for this Channel.
func WithChannelConfig(cfg ChannelConfig) ChannelOption {
	return func(ch *Channel) { ch.cfg = cfg }
}

// WithChannelID overrides the generated peer/channel id, typically supplied
// by a Server using the remote address as a human-readable id.
func WithChannelID(id string) ChannelOption {
	return func(ch *Channel) { ch.id = id }
}

// WithChannelTrace attaches Hooks directly, bypassing context propagation.
// trace is merged against NoOpHooks so a partial value like DefaultHooks or
// DiagnosticHooks is safe to call unconditionally.
func WithChannelTrace(trace *Hooks) ChannelOption {
	return func(ch *Channel) { ch.trace = mergeHooks(trace) }
}

// WithEvaluator installs the Evaluator Port a CMD is routed to by the
// default dispatcher. Without one, CMDs are diagnostic-printed and never
// answered.
func WithEvaluator(e Evaluator) ChannelOption {
	return func(ch *Channel) { ch.evaluator = e }
}

// WithEventHandler installs the callback the default dispatcher routes EVT
// messages to.
func WithEventHandler(fn func(serial uint64, text string)) ChannelOption {
	return func(ch *Channel) { ch.eventHandler = fn }
}

// WithResponseHandler installs the callback the default dispatcher routes
// OK/ERR messages to, after the Channel's own outstanding-serial bookkeeping
// (spec §9 Open Question: a non-zero-serial ERR with no outstanding CMD is
// dropped before reaching this handler).
func WithResponseHandler(fn func(category Category, serial uint64, text string)) ChannelOption {
	return func(ch *Channel) { ch.responseHandler = fn }
}

// WithRawHandler installs the callback used in binary transport mode (§3:
// "When the envelope form is not used... the payload is delivered verbatim
// to the user callback and no category dispatch occurs").
func WithRawHandler(fn func(payload []byte)) ChannelOption {
	return func(ch *Channel) { ch.rawHandler = fn }
}

// WithDispatcher replaces the entire dispatch callback (set_dispatcher in
// spec §4.5), bypassing category routing altogether. Passing nil restores
// the built-in category-routing dispatcher.
func WithDispatcher(fn func(ch *Channel, category Category, serial uint64, text string)) ChannelOption {
	return func(ch *Channel) {
		if fn == nil {
			ch.dispatcher = ch.defaultDispatch
		} else {
			ch.dispatcher = fn
		}
	}
}

// NewChannel wraps transport in a Channel, configures it into binary,
// non-blocking-style framing (spec §4.5/§6: no line-ending translation, no
// EOF sentinel, binary-clean) and starts its receive and drain goroutines.
func NewChannel(transport Transport, opts ...ChannelOption) *Channel {
	ch := &Channel{
		id:          newID(),
		transport:   transport,
		cfg:         DefaultChannelConfig,
		trace:       NoOpHooks,
		pending:     queue.New[Message](),
		outstanding: make(map[uint64]struct{}),
		drainSignal: make(chan struct{}, 1),
		done:        make(chan struct{}),
	}
	ch.dispatcher = ch.defaultDispatch
	ch.eventHandler = ch.defaultEventHandler
	ch.responseHandler = ch.defaultResponseHandler
	ch.rawHandler = ch.defaultRawHandler

	for _, opt := range opts {
		opt(ch)
	}
	ch.cfg = resolveChannelConfig(&ch.cfg)
	ch.receiver = wire.NewReceiver(wire.WithMaxFrameSize(ch.cfg.MaxFrameSize))

	go ch.receiveLoop()
	go ch.drainLoop()
	return ch
}

// ID returns the Channel's peer identifier, used in trace messages and, for
// server-side Channels, as the peer-set key.
func (ch *Channel) ID() string { return ch.id }

// Done returns a channel closed once this Channel's transport has been
// closed, for callers (notably Server) that need to react to closure.
func (ch *Channel) Done() <-chan struct{} { return ch.done }

// Err returns the error that closed the Channel, or nil if it closed
// cleanly (explicit Close or peer EOF).
func (ch *Channel) Err() error {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.closeErr
}

func (ch *Channel) isClosed() bool {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.closed
}

// SetDispatcher replaces the dispatch callback (spec §4.5 set_dispatcher);
// nil restores the default category-routing dispatcher.
func (ch *Channel) SetDispatcher(fn func(ch *Channel, category Category, serial uint64, text string)) {
	ch.mu.Lock()
	if fn == nil {
		ch.dispatcher = ch.defaultDispatch
	} else {
		ch.dispatcher = fn
	}
	ch.mu.Unlock()
}

// SendCommand frames and writes CMD:<s>:<text>, returning the serial it was
// assigned. Serials are strictly increasing per Channel (spec §8 "serial
// monotonicity").
func (ch *Channel) SendCommand(text string) (uint64, error) {
	if ch.isClosed() {
		return 0, newClosedError("send_command")
	}
	serial := ch.nextSerial()
	ch.markOutstanding(serial)

	start := time.Now()
	ch.trace.CommandStart(ch.id, CategoryCommand, serial, text)
	err := ch.writeEnvelope(CategoryCommand, serial, text)
	ch.trace.CommandDone(ch.id, CategoryCommand, serial, err, time.Since(start))
	if err != nil {
		ch.clearOutstanding(serial)
		return 0, err
	}
	return serial, nil
}

// SendEvent frames and writes EVT:<s>:<text>, returning its serial.
func (ch *Channel) SendEvent(text string) (uint64, error) {
	if ch.isClosed() {
		return 0, newClosedError("send_event")
	}
	serial := ch.nextSerial()
	if err := ch.writeEnvelope(CategoryEvent, serial, text); err != nil {
		return 0, err
	}
	return serial, nil
}

// SendResult frames and writes OK:<id>:<text>.
func (ch *Channel) SendResult(id uint64, text string) error {
	if ch.isClosed() {
		return newClosedError("send_result")
	}
	return ch.writeEnvelope(CategoryResult, id, text)
}

// SendError frames and writes ERR:<id>:<text>. id == 0 denotes an error not
// tied to any specific command (spec §7).
func (ch *Channel) SendError(id uint64, text string) error {
	if ch.isClosed() {
		return newClosedError("send_error")
	}
	return ch.writeEnvelope(CategoryError, id, text)
}

// Close closes the transport and stops both of the Channel's goroutines. It
// is idempotent.
func (ch *Channel) Close() error {
	return ch.closeWithError(nil)
}

func (ch *Channel) nextSerial() uint64 {
	ch.mu.Lock()
	ch.serial++
	s := ch.serial
	ch.mu.Unlock()
	return s
}

func (ch *Channel) markOutstanding(serial uint64) {
	ch.mu.Lock()
	ch.outstanding[serial] = struct{}{}
	ch.mu.Unlock()
}

// clearOutstanding removes serial from the outstanding set and reports
// whether it had been there.
func (ch *Channel) clearOutstanding(serial uint64) bool {
	ch.mu.Lock()
	_, ok := ch.outstanding[serial]
	delete(ch.outstanding, serial)
	ch.mu.Unlock()
	return ok
}

// writeEnvelope encodes and frames a CATEGORY:SERIAL:TEXT envelope. An
// EncodingError fails only this call (spec §7: channel stays open); a
// TransportError closes the channel.
func (ch *Channel) writeEnvelope(category Category, serial uint64, text string) error {
	envelope := FormatEnvelope(category, serial, text)
	payload, err := wire.EncodeText(envelope, ch.cfg.Encoding)
	if err != nil {
		return err
	}

	ch.writeMu.Lock()
	defer ch.writeMu.Unlock()
	w := wrapTraceWriter(ch.transport, ch.id, ch.trace)
	if err := wire.WriteFrame(w, payload); err != nil {
		ch.closeWithError(err)
		return err
	}
	return nil
}

// receiveLoop implements the Receive protocol of spec §4.5: read whatever
// is available, feed it to the Receiver, and enqueue every emitted payload.
func (ch *Channel) receiveLoop() {
	buf := make([]byte, 32*1024)
	r := wrapTraceReader(ch.transport, ch.id, ch.trace)
	for {
		n, rerr := r.Read(buf)
		if n > 0 {
			payloads, ferr := ch.receiver.Feed(buf[:n])
			for _, p := range payloads {
				ch.handlePayload(p)
			}
			if ferr != nil {
				ch.closeWithError(ferr)
				return
			}
		}
		if rerr != nil {
			if rerr == io.EOF {
				ch.closeWithError(nil)
			} else {
				ch.closeWithError(wire.NewTransportError("read", rerr))
			}
			return
		}
	}
}

// handlePayload parses one frame payload into a Message and pushes it onto
// the pending FIFO, or closes the channel on a FormatError/ProtocolError. In
// binary mode (encoding == "binary") the payload bypasses envelope parsing
// entirely, per spec §3.
func (ch *Channel) handlePayload(payload []byte) {
	if ch.cfg.Encoding == wire.EncodingBinary {
		ch.enqueue(Message{Raw: payload})
		return
	}

	text, derr := wire.DecodeText(payload, ch.cfg.Encoding)
	if derr != nil {
		ch.closeWithError(wrapFormatError(derr, "payload could not be decoded"))
		return
	}
	category, serial, body, perr := ParseEnvelope(text)
	if perr != nil {
		ch.closeWithError(perr)
		return
	}
	ch.enqueue(Message{Category: category, Serial: serial, Text: body, Raw: payload})
}

func (ch *Channel) enqueue(msg Message) {
	ch.pending.Push(msg)
	ch.armDrain()
}

// armDrain is the "cooperative run-soon" primitive of spec §9 Design Notes:
// a single pending wakeup is enough, since drainLoop always drains the FIFO
// to empty before waiting again.
func (ch *Channel) armDrain() {
	select {
	case ch.drainSignal <- struct{}{}:
	default:
	}
}

// drainLoop implements the Drain protocol of spec §4.5: one dedicated
// consumer goroutine that, once woken, pops and dispatches every pending
// message in FIFO order before waiting for the next wakeup.
func (ch *Channel) drainLoop() {
	for {
		select {
		case <-ch.drainSignal:
			for {
				msg, ok := ch.pending.TryPop()
				if !ok {
					break
				}
				ch.dispatchOne(msg)
			}
		case <-ch.done:
			return
		}
	}
}

func (ch *Channel) dispatchOne(msg Message) {
	if ch.cfg.Encoding == wire.EncodingBinary {
		ch.rawHandler(msg.Raw)
		return
	}

	start := time.Now()
	ch.trace.DispatchStart(ch.id, msg.Category, msg.Serial)
	ch.mu.Lock()
	dispatch := ch.dispatcher
	ch.mu.Unlock()
	dispatch(ch, msg.Category, msg.Serial, msg.Text)
	ch.trace.DispatchDone(ch.id, msg.Category, msg.Serial, nil, time.Since(start))
}

// defaultDispatch implements spec §4.5's category routing: CMD goes to the
// Evaluator Port, EVT to the event handler, OK/ERR to the response handler,
// anything else is an UnknownCategory warning.
func (ch *Channel) defaultDispatch(_ *Channel, category Category, serial uint64, text string) {
	switch category {
	case CategoryCommand:
		ch.handleCommand(serial, text)
	case CategoryEvent:
		ch.eventHandler(serial, text)
	case CategoryResult:
		ch.clearOutstanding(serial)
		ch.responseHandler(category, serial, text)
	case CategoryError:
		wasOutstanding := ch.clearOutstanding(serial)
		if serial != 0 && !wasOutstanding {
			// spec §9 Open Question: an ERR correlated to no outstanding
			// CMD is a spurious response — logged, then dropped.
			ch.trace.SpuriousResponse(ch.id, category, serial)
			return
		}
		ch.responseHandler(category, serial, text)
	default:
		ch.trace.UnknownCategory(ch.id, category, serial)
		ch.defaultPrint(category, serial, text)
	}
}

func (ch *Channel) handleCommand(serial uint64, text string) {
	if ch.evaluator == nil {
		ch.defaultPrint(CategoryCommand, serial, text)
		return
	}
	value, err := ch.evaluator.Evaluate(text)
	if err != nil {
		ch.trace.Error("evaluate", ch.id, newEvaluationError(serial, err.Error()))
		_ = ch.SendError(serial, err.Error())
		return
	}
	_ = ch.SendResult(serial, ch.evaluator.Stringify(value))
}

func (ch *Channel) defaultEventHandler(serial uint64, text string) {
	ch.defaultPrint(CategoryEvent, serial, text)
}

func (ch *Channel) defaultResponseHandler(category Category, serial uint64, text string) {
	ch.defaultPrint(category, serial, text)
}

func (ch *Channel) defaultRawHandler(payload []byte) {
	log.Printf("xen channel %s binary payload (%d bytes)\n", ch.id, len(payload))
}

func (ch *Channel) defaultPrint(category Category, serial uint64, text string) {
	log.Printf("xen channel %s dispatch %s:%d:%q\n", ch.id, category, serial, text)
}

// closeWithError closes the transport exactly once (spec §3 invariant) and
// records err, if any, as the reason. A nil err means clean closure
// (explicit Close or peer EOF).
func (ch *Channel) closeWithError(err error) error {
	var cerr error
	ch.closeOnce.Do(func() {
		ch.mu.Lock()
		ch.closed = true
		ch.closeErr = err
		ch.mu.Unlock()

		cerr = ch.transport.Close()
		close(ch.done)

		if err != nil {
			ch.trace.Error("receive", ch.id, err)
		}
		ch.trace.ChannelClosed(ch.id, err)
	})
	return cerr
}

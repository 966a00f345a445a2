package xen

import (
	"fmt"

	"github.com/xenmsg/xen/wire"
)

// ProtocolError, TransportError, and EncodingError are produced by the wire
// layer (malformed framing, transport I/O failure, and unmappable text
// respectively) and re-exported here so callers need only import xen.
type (
	ProtocolError  = wire.ProtocolError
	TransportError = wire.TransportError
	EncodingError  = wire.EncodingError
)

// FormatError indicates a CATEGORY:SERIAL:TEXT envelope could not be
// parsed: fewer than two colons, or a non-numeric/negative serial field.
// Per spec §7 it is treated as a ProtocolError by the Channel — the peer is
// malfunctioning and the channel closes.
type FormatError struct {
	msg string
	err error
}

func (e *FormatError) Error() string {
	if e.err != nil {
		return e.msg + ": " + e.err.Error()
	}
	return e.msg
}

func (e *FormatError) Unwrap() error { return e.err }

func newFormatError(format string, args ...interface{}) error {
	return &FormatError{msg: fmt.Sprintf(format, args...)}
}

// wrapFormatError is newFormatError for the case where an underlying error
// (a decode failure, say) caused it, preserving it for errors.Is/As.
func wrapFormatError(cause error, format string, args ...interface{}) error {
	return &FormatError{msg: fmt.Sprintf(format, args...), err: cause}
}

// ClosedError is returned to a caller attempting to send on a Channel that
// has already been closed.
type ClosedError struct {
	op string
}

func (e *ClosedError) Error() string { return e.op + ": channel is closed" }

func newClosedError(op string) error { return &ClosedError{op: op} }

// CapacityError indicates a Server rejected a new peer because it was
// already at its configured max_clients. The Server itself does not return
// one: it reports a rejection through Hooks.CapacityRejected and an
// ERR:0:capacity-exhausted frame to the rejected connection.
type CapacityError struct {
	maxClients int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("capacity exhausted: max_clients=%d", e.maxClients)
}

func newCapacityError(maxClients int) error { return &CapacityError{maxClients: maxClients} }

// EvaluationError wraps the error_text an Evaluator Port returned for a
// failed CMD. It is never returned from a Channel's public API; it exists
// so trace hooks and tests can distinguish an evaluation failure from a
// transport or protocol failure when inspecting what produced an ERR reply.
type EvaluationError struct {
	serial uint64
	text   string
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("evaluation of command %d failed: %s", e.serial, e.text)
}

func newEvaluationError(serial uint64, text string) error {
	return &EvaluationError{serial: serial, text: text}
}

package wire

import "github.com/pkg/errors"

// ProtocolError indicates malformed framing on the wire: a missing or
// corrupt header, stray bytes where a header was expected, or a declared
// payload size exceeding the configured maximum.
type ProtocolError struct {
	msg string
	err error
}

func (e *ProtocolError) Error() string { return e.msg }

// Unwrap exposes the underlying cause, if any, for errors.Is/As.
func (e *ProtocolError) Unwrap() error { return e.err }

func newProtocolError(msg string) error {
	return &ProtocolError{msg: msg, err: errors.New(msg)}
}

// TransportError indicates a read or write on the underlying transport
// failed.
type TransportError struct {
	op  string
	err error
}

func (e *TransportError) Error() string { return e.op + ": " + e.err.Error() }

func (e *TransportError) Unwrap() error { return e.err }

func newTransportError(op string, err error) error {
	return &TransportError{op: op, err: errors.Wrap(err, op)}
}

// NewTransportError builds a TransportError for a failed op on a transport
// outside the wire package itself, such as xen.Channel's raw Read/Write
// calls on its Transport.
func NewTransportError(op string, err error) error {
	return newTransportError(op, err)
}

// EncodingError indicates text could not be transcoded into, or out of, the
// channel's configured text encoding.
type EncodingError struct {
	encoding string
	err      error
}

func (e *EncodingError) Error() string {
	return "encoding " + e.encoding + ": " + e.err.Error()
}

func (e *EncodingError) Unwrap() error { return e.err }

func newEncodingError(encoding string, err error) error {
	return &EncodingError{encoding: encoding, err: errors.Wrapf(err, "encoding %s", encoding)}
}

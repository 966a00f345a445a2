// Package wire implements the Xen transport framing layer: a Codec that
// writes and parses the `@<size>:<payload>` header used on the wire, and an
// incremental Receiver that turns a stream of arbitrarily chunked bytes into
// a sequence of complete payloads.
//
// The package knows nothing about message categories, serials, or the
// CATEGORY:SERIAL:TEXT envelope carried inside a payload — that belongs to
// the xen package. wire is transport- and content-agnostic, matching the
// separation the teacher's rfc6242 decoder/encoder keep from the netconf
// message layer above it.
package wire

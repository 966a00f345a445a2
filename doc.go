// Package xen implements a framed, bidirectional, asynchronous messaging
// channel between a controlling process and one or more cooperating peers.
//
// Each Channel multiplexes four message categories over a single symmetric
// transport: CMD (a remote command to evaluate), EVT (an asynchronous
// event), OK (a successful command result), and ERR (a failed result or an
// unsolicited error). Commands carry monotone per-channel serial numbers so
// responses can be matched to requests out of order.
//
// The wire framing and incremental parsing live in the wire subpackage; the
// pending-message FIFO lives in the queue subpackage. This package composes
// them into Channel, and layers Server/Client endpoints and the Evaluator
// port on top.
package xen

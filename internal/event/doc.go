// Package event defines the wire-level event model emitted by the
// subscription ledger program, plus the Cursor type that marks how far the
// mirror has replayed the log.
//
// Field order and types of every payload are part of the interoperability
// contract with the on-chain program and must not be reordered.
package event

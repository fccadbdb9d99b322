// Package ledger implements the authoritative subscription state machine:
// the decision logic the on-chain program runs. It validates every mutating
// call against caller identity and current state, moves tokens through the
// TokenLedger boundary, and emits one wire event per successful mutation.
//
// All mutations are serialized; emitted events carry a strictly increasing
// (seq, subIndex) stamp from a logical clock.
package ledger

// Package store is the durable off-chain mirror: subscription and instance
// records replayed from the ledger program's event log, plus the single
// Cursor row marking how far the replay has progressed.
//
// The one correctness-critical property lives here: Apply writes an event's
// effect and advances the cursor in the same SQLite transaction, so a crash
// can never surface as a lost update or a double-apply.
package store

// Package reconcile converges the mirror to the ledger program's event log.
//
// One Reconciler consumes one program's log as a single ordered pipeline:
// events are never applied in parallel, because later events can depend on
// earlier ones. Redeliveries fall out at the cursor gate; divergent events
// are reported to an operator channel without stopping the pipeline; the
// cursor advances atomically with every state write, so a restart resumes
// exactly where the last run left off.
package reconcile

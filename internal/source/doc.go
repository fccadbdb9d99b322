// Package source is the event-log boundary: where the mirror reads the
// ledger program's ordered event stream from, and where settlement and
// management submissions go in.
//
// The physical transport to a remote program is a collaborator outside this
// repository; Program provides an in-process implementation backed directly
// by the ledger state machine, used by tests and the simulator.
package source

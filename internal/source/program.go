package source

import (
	"context"

	"github.com/openvault/recur/internal/event"
	"github.com/openvault/recur/internal/ledger"
)

// Program is the in-process ledger program: a state machine wired to an
// append-only log. It implements both Submitter (calls go straight into the
// machine) and Source (events come back out of the log), which is exactly
// the loop the production deployment runs over a network transport.
type Program struct {
	machine *ledger.Machine
	log     *Log
}

// NewProgram builds a machine emitting into a fresh log.
func NewProgram(program, operator event.Address, token ledger.TokenLedger, opts ...ledger.MachineOption) *Program {
	log := NewLog()
	machine := ledger.NewMachine(program, operator, token, log.Append, opts...)
	return &Program{machine: machine, log: log}
}

// Machine exposes the underlying state machine for direct queries.
func (p *Program) Machine() *ledger.Machine {
	return p.machine
}

// Log exposes the underlying event log.
func (p *Program) Log() *Log {
	return p.log
}

// Next implements Source.
func (p *Program) Next(ctx context.Context, after event.Cursor) (event.Event, error) {
	return p.log.Next(ctx, after)
}

// CreateSubscription implements Submitter.
func (p *Program) CreateSubscription(ctx context.Context, caller, vault, token event.Address, recurring, initial event.Amount, period int64, data string) (event.ID, error) {
	if err := ctx.Err(); err != nil {
		return event.ZeroID, err
	}
	return p.machine.CreateSubscription(caller, vault, token, recurring, initial, period, data)
}

// UpdateSubscription implements Submitter.
func (p *Program) UpdateSubscription(ctx context.Context, caller event.Address, id event.ID, vault, token event.Address, recurring, initial event.Amount, period int64, data string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.machine.UpdateSubscription(caller, id, vault, token, recurring, initial, period, data)
}

// DeleteSubscription implements Submitter.
func (p *Program) DeleteSubscription(ctx context.Context, caller event.Address, id event.ID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.machine.DeleteSubscription(caller, id)
}

// CreateInstance implements Submitter.
func (p *Program) CreateInstance(ctx context.Context, caller event.Address, subscriptionID event.ID) (event.ID, error) {
	if err := ctx.Err(); err != nil {
		return event.ZeroID, err
	}
	return p.machine.CreateInstance(caller, subscriptionID)
}

// UpdateInstance implements Submitter.
func (p *Program) UpdateInstance(ctx context.Context, caller event.Address, instanceID, subscriptionID event.ID, discount uint8, data string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.machine.UpdateInstance(caller, instanceID, subscriptionID, discount, data)
}

// DeleteInstance implements Submitter.
func (p *Program) DeleteInstance(ctx context.Context, caller event.Address, subscriptionID, instanceID event.ID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.machine.DeleteInstance(caller, subscriptionID, instanceID)
}

// DeactivateInstance implements Submitter.
func (p *Program) DeactivateInstance(ctx context.Context, caller event.Address, instanceID event.ID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.machine.DeactivateInstance(caller, instanceID)
}

// ReactivateInstance implements Submitter.
func (p *Program) ReactivateInstance(ctx context.Context, caller event.Address, instanceID event.ID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.machine.ReactivateInstance(caller, instanceID)
}

// HandleInstancePayment implements Submitter.
func (p *Program) HandleInstancePayment(ctx context.Context, caller event.Address, subscriptionID, instanceID event.ID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.machine.HandleInstancePayment(caller, subscriptionID, instanceID)
}

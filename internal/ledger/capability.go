package ledger

import "github.com/openvault/recur/internal/event"

// Role names the capability a mutating operation requires on a
// subscription.
type Role int

const (
	// RoleOwner: only the subscription's owner qualifies.
	RoleOwner Role = iota

	// RoleOwnerOrOperator: the owner or the machine's fixed operator.
	RoleOwnerOrOperator
)

// permitted is the single capability check shared by every mutating
// operation: does caller hold the required role on sub?
func (m *Machine) permitted(caller event.Address, sub *Subscription, role Role) bool {
	if caller == sub.Owner {
		return true
	}
	if role == RoleOwnerOrOperator && caller == m.operator {
		return true
	}
	return false
}

package ledger

import "github.com/openvault/recur/internal/event"

// Subscription is the agreement template an owner publishes: who gets paid,
// in what asset, how much, and how often.
type Subscription struct {
	ID              event.ID
	Owner           event.Address
	VaultAddress    event.Address
	TokenAddress    event.Address
	RecurringAmount event.Amount
	InitialAmount   event.Amount
	Period          int64 // seconds, always > MinPeriod
	Data            string
}

// Instance is one subscriber's enrollment in a subscription, tracking its
// own payment cadence.
type Instance struct {
	ID             event.ID
	SubscriptionID event.ID
	Owner          event.Address
	NextPaymentAt  int64
	Discount       uint8 // percent off the recurring amount at settlement
	Data           string
	Active         bool
}

// MinPeriod is the exclusive lower bound on a subscription period: one day
// in seconds. A period of exactly one day is rejected.
const MinPeriod = 86400

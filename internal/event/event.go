package event

// Kind identifies an event emitted by the ledger program.
type Kind string

const (
	KindSubscriptionCreated Kind = "SubscriptionCreated"
	KindSubscriptionUpdated Kind = "SubscriptionUpdated"
	KindSubscriptionDeleted Kind = "SubscriptionDeleted"
	KindInstanceCreated     Kind = "SubscriptionInstanceCreated"
	KindInstanceUpdated     Kind = "SubscriptionInstanceUpdated"
	KindInstanceDeleted     Kind = "SubscriptionInstanceDeleted"
	KindInstanceDeactivated Kind = "SubscriptionInstanceDeactivated"
	KindInstanceReactivated Kind = "SubscriptionInstanceReactivated"
	KindPaymentProcessed    Kind = "PaymentProcessed"
)

// Payload is the kind-specific body of an event.
type Payload interface {
	Kind() Kind
}

// Event is one immutable entry of the ledger program's log. (Seq, SubIndex)
// is strictly increasing across the log and totally orders it.
type Event struct {
	Seq      int64
	SubIndex int64
	Payload  Payload
}

// Kind returns the payload's kind.
func (e Event) Kind() Kind {
	return e.Payload.Kind()
}

// Cursor returns the event's position in the log.
func (e Event) Cursor() Cursor {
	return Cursor{Seq: e.Seq, SubIndex: e.SubIndex}
}

// SubscriptionCreated announces a new subscription. Field order matches the
// program's ABI: (caller, subscriptionId, owner, vault, token,
// recurringAmount, initialAmount, period, data).
type SubscriptionCreated struct {
	Caller          Address `json:"caller"`
	SubscriptionID  ID      `json:"subscriptionId"`
	Owner           Address `json:"owner"`
	VaultAddress    Address `json:"vaultAddress"`
	TokenAddress    Address `json:"tokenAddress"`
	RecurringAmount Amount  `json:"recurringAmount"`
	InitialAmount   Amount  `json:"initialAmount"`
	Period          int64   `json:"period"`
	Data            string  `json:"data"`
}

func (SubscriptionCreated) Kind() Kind { return KindSubscriptionCreated }

// SubscriptionUpdated carries the full post-update record, same shape as
// SubscriptionCreated.
type SubscriptionUpdated struct {
	Caller          Address `json:"caller"`
	SubscriptionID  ID      `json:"subscriptionId"`
	Owner           Address `json:"owner"`
	VaultAddress    Address `json:"vaultAddress"`
	TokenAddress    Address `json:"tokenAddress"`
	RecurringAmount Amount  `json:"recurringAmount"`
	InitialAmount   Amount  `json:"initialAmount"`
	Period          int64   `json:"period"`
	Data            string  `json:"data"`
}

func (SubscriptionUpdated) Kind() Kind { return KindSubscriptionUpdated }

// SubscriptionDeleted marks a subscription as gone. Dependent instances are
// not touched.
type SubscriptionDeleted struct {
	Caller         Address `json:"caller"`
	SubscriptionID ID      `json:"subscriptionId"`
}

func (SubscriptionDeleted) Kind() Kind { return KindSubscriptionDeleted }

// InstanceCreated announces a subscriber's enrollment.
type InstanceCreated struct {
	Caller         Address `json:"caller"`
	InstanceID     ID      `json:"subscriptionInstanceId"`
	SubscriptionID ID      `json:"subscriptionId"`
	Owner          Address `json:"owner"`
	NextPaymentAt  int64   `json:"nextPayment"`
	Discount       uint8   `json:"discount"`
	Data           string  `json:"data"`
}

func (InstanceCreated) Kind() Kind { return KindInstanceCreated }

// InstanceUpdated carries the mutable instance fields after an update.
type InstanceUpdated struct {
	Caller         Address `json:"caller"`
	InstanceID     ID      `json:"subscriptionInstanceId"`
	SubscriptionID ID      `json:"subscriptionId"`
	Discount       uint8   `json:"discount"`
	Data           string  `json:"data"`
}

func (InstanceUpdated) Kind() Kind { return KindInstanceUpdated }

// InstanceDeleted removes an enrollment. Terminal for the instance.
type InstanceDeleted struct {
	Caller     Address `json:"caller"`
	InstanceID ID      `json:"subscriptionInstanceId"`
}

func (InstanceDeleted) Kind() Kind { return KindInstanceDeleted }

// InstanceDeactivated pauses settlement for an instance.
type InstanceDeactivated struct {
	InstanceID     ID `json:"subscriptionInstanceId"`
	SubscriptionID ID `json:"subscriptionId"`
}

func (InstanceDeactivated) Kind() Kind { return KindInstanceDeactivated }

// InstanceReactivated resumes settlement for an instance.
type InstanceReactivated struct {
	InstanceID     ID `json:"subscriptionInstanceId"`
	SubscriptionID ID `json:"subscriptionId"`
}

func (InstanceReactivated) Kind() Kind { return KindInstanceReactivated }

// PaymentProcessed reports a successful settlement. NextPaymentAt is the
// authoritative new value; the mirror stores it verbatim and never
// recomputes it locally.
type PaymentProcessed struct {
	InstanceID     ID    `json:"subscriptionInstanceId"`
	SubscriptionID ID    `json:"subscriptionId"`
	NextPaymentAt  int64 `json:"nextPayment"`
}

func (PaymentProcessed) Kind() Kind { return KindPaymentProcessed }

package ledger

import (
	"crypto/sha256"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/openvault/recur/internal/event"
)

// Policy holds the machine's construction-time behavior switches.
type Policy struct {
	// IdempotentToggle makes Deactivate/Reactivate a silent no-op when the
	// instance is already in the requested state. When false (the observed
	// program behavior), a second deactivate emits a second event.
	IdempotentToggle bool
}

// Machine is the authoritative subscription state machine.
//
// All mutating calls are serialized under one mutex: the program processes
// one transaction at a time, and emitted events must come out in the order
// the mutations were decided. Validation failures return a typed *Error and
// change nothing.
type Machine struct {
	mu sync.Mutex

	program  event.Address // the machine's own address; token allowance spender
	operator event.Address
	token    TokenLedger
	clock    *Clock
	now      func() time.Time
	salt     func() [16]byte
	policy   Policy
	sink     func(event.Event)

	subs        map[event.ID]*Subscription
	insts       map[event.ID]*Instance
	instByOwner map[event.ID]map[event.Address]event.ID // subscription -> subscriber -> instance
}

// MachineOption configures a Machine at construction.
type MachineOption func(*Machine)

// WithNow overrides the wall clock. Tests use it to advance time past a
// payment due date.
func WithNow(now func() time.Time) MachineOption {
	return func(m *Machine) { m.now = now }
}

// WithSaltSource overrides the subscription-id disambiguator source for
// deterministic ids in tests.
func WithSaltSource(salt func() [16]byte) MachineOption {
	return func(m *Machine) { m.salt = salt }
}

// WithPolicy sets the machine's behavior switches.
func WithPolicy(p Policy) MachineOption {
	return func(m *Machine) { m.policy = p }
}

// WithClock resumes the event clock from a known position.
func WithClock(c *Clock) MachineOption {
	return func(m *Machine) { m.clock = c }
}

// NewMachine creates a machine identified by program, with a fixed operator
// role, settling through token. Emitted events go to sink in decision
// order.
func NewMachine(program, operator event.Address, token TokenLedger, sink func(event.Event), opts ...MachineOption) *Machine {
	m := &Machine{
		program:     program,
		operator:    operator,
		token:       token,
		clock:       NewClock(),
		now:         time.Now,
		salt:        func() [16]byte { return [16]byte(uuid.New()) },
		sink:        sink,
		subs:        make(map[event.ID]*Subscription),
		insts:       make(map[event.ID]*Instance),
		instByOwner: make(map[event.ID]map[event.Address]event.ID),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// emit stamps and delivers one event. Must be called with m.mu held so
// sequence order matches decision order.
func (m *Machine) emit(p event.Payload) {
	m.sink(event.Event{Seq: m.clock.Next(), SubIndex: 0, Payload: p})
}

// deriveSubscriptionID computes hash(creator, salt): deterministic given its
// inputs, unique per creation thanks to the fresh salt.
func deriveSubscriptionID(creator event.Address, salt [16]byte) event.ID {
	h := sha256.New()
	h.Write(creator[:])
	h.Write(salt[:])
	var id event.ID
	copy(id[:], h.Sum(nil))
	return id
}

// deriveInstanceID computes hash(subscriber, subscriptionID): one instance
// per (subscription, subscriber) pair.
func deriveInstanceID(subscriber event.Address, subscriptionID event.ID) event.ID {
	h := sha256.New()
	h.Write(subscriber[:])
	h.Write(subscriptionID[:])
	var id event.ID
	copy(id[:], h.Sum(nil))
	return id
}

func validateSubscriptionFields(vault, token event.Address, period int64) error {
	if period <= MinPeriod {
		return &Error{Code: CodeInvalidPeriod, Message: "the minimum period for a subscription is 1 day"}
	}
	if vault.IsZero() {
		return &Error{Code: CodeZeroAddress, Message: "vault address cannot be the null address"}
	}
	if token.IsZero() {
		return &Error{Code: CodeZeroAddress, Message: "token address cannot be the null address"}
	}
	return nil
}

// CreateSubscription publishes a new subscription owned by caller and
// returns its derived id.
func (m *Machine) CreateSubscription(caller, vault, token event.Address, recurring, initial event.Amount, period int64, data string) (event.ID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := validateSubscriptionFields(vault, token, period); err != nil {
		return event.ZeroID, err
	}

	id := deriveSubscriptionID(caller, m.salt())
	m.subs[id] = &Subscription{
		ID:              id,
		Owner:           caller,
		VaultAddress:    vault,
		TokenAddress:    token,
		RecurringAmount: recurring,
		InitialAmount:   initial,
		Period:          period,
		Data:            data,
	}

	m.emit(event.SubscriptionCreated{
		Caller:          caller,
		SubscriptionID:  id,
		Owner:           caller,
		VaultAddress:    vault,
		TokenAddress:    token,
		RecurringAmount: recurring,
		InitialAmount:   initial,
		Period:          period,
		Data:            data,
	})
	return id, nil
}

// UpdateSubscription overwrites all mutable fields of an existing
// subscription. Owner only.
func (m *Machine) UpdateSubscription(caller event.Address, id event.ID, vault, token event.Address, recurring, initial event.Amount, period int64, data string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sub, ok := m.subs[id]
	if !ok {
		return &Error{Code: CodeSubscriptionNotFound, Message: "can't update a subscription that doesn't exist", Subscription: id}
	}
	if !m.permitted(caller, sub, RoleOwner) {
		return &Error{Code: CodeNotOwner, Message: "only the owner of the subscription can update it", Subscription: id}
	}
	if err := validateSubscriptionFields(vault, token, period); err != nil {
		return err
	}

	sub.VaultAddress = vault
	sub.TokenAddress = token
	sub.RecurringAmount = recurring
	sub.InitialAmount = initial
	sub.Period = period
	sub.Data = data

	m.emit(event.SubscriptionUpdated{
		Caller:          caller,
		SubscriptionID:  id,
		Owner:           sub.Owner,
		VaultAddress:    vault,
		TokenAddress:    token,
		RecurringAmount: recurring,
		InitialAmount:   initial,
		Period:          period,
		Data:            data,
	})
	return nil
}

// DeleteSubscription removes a subscription. Owner or operator. Dependent
// instances are left in place: deletion does not cascade.
func (m *Machine) DeleteSubscription(caller event.Address, id event.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sub, ok := m.subs[id]
	if !ok {
		return &Error{Code: CodeSubscriptionNotFound, Message: "can't delete a subscription that doesn't exist", Subscription: id}
	}
	if !m.permitted(caller, sub, RoleOwnerOrOperator) {
		return &Error{Code: CodeNotAuthorized, Message: "only the owner or the operator of the subscription can delete it", Subscription: id}
	}

	delete(m.subs, id)

	m.emit(event.SubscriptionDeleted{Caller: caller, SubscriptionID: id})
	return nil
}

// CreateInstance enrolls caller in a subscription, transferring the initial
// amount to the vault. Requires sufficient balance and allowance.
func (m *Machine) CreateInstance(caller event.Address, subscriptionID event.ID) (event.ID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sub, ok := m.subs[subscriptionID]
	if !ok {
		return event.ZeroID, &Error{Code: CodeSubscriptionNotFound, Message: "can't create an instance for a subscription that doesn't exist", Subscription: subscriptionID}
	}
	if _, exists := m.instByOwner[subscriptionID][caller]; exists {
		return event.ZeroID, &Error{Code: CodeDuplicateInstance, Message: "can't create an instance that already exists", Subscription: subscriptionID}
	}

	if m.token.BalanceOf(sub.TokenAddress, caller).Cmp(sub.InitialAmount) < 0 {
		return event.ZeroID, &Error{Code: CodeInsufficientBalance, Message: "insufficient balance", Subscription: subscriptionID}
	}
	if m.token.Allowance(sub.TokenAddress, caller, m.program).Cmp(sub.InitialAmount) < 0 {
		return event.ZeroID, &Error{Code: CodeInsufficientAllowance, Message: "insufficient allowance", Subscription: subscriptionID}
	}
	if err := m.token.Transfer(sub.TokenAddress, m.program, caller, sub.VaultAddress, sub.InitialAmount); err != nil {
		return event.ZeroID, err
	}

	id := deriveInstanceID(caller, subscriptionID)
	inst := &Instance{
		ID:             id,
		SubscriptionID: subscriptionID,
		Owner:          caller,
		NextPaymentAt:  m.now().Unix() + sub.Period,
		Active:         true,
	}
	m.insts[id] = inst
	if m.instByOwner[subscriptionID] == nil {
		m.instByOwner[subscriptionID] = make(map[event.Address]event.ID)
	}
	m.instByOwner[subscriptionID][caller] = id

	m.emit(event.InstanceCreated{
		Caller:         caller,
		InstanceID:     id,
		SubscriptionID: subscriptionID,
		Owner:          caller,
		NextPaymentAt:  inst.NextPaymentAt,
		Discount:       inst.Discount,
		Data:           inst.Data,
	})
	return id, nil
}

// UpdateInstance sets an instance's discount and data. Subscription owner or
// operator.
func (m *Machine) UpdateInstance(caller event.Address, instanceID, subscriptionID event.ID, discount uint8, data string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	inst, ok := m.insts[instanceID]
	if !ok || inst.SubscriptionID != subscriptionID {
		return &Error{Code: CodeInstanceNotFound, Message: "can't update a subscription instance that doesn't exist", Subscription: subscriptionID, Instance: instanceID}
	}
	sub, ok := m.subs[subscriptionID]
	if !ok {
		return &Error{Code: CodeSubscriptionNotFound, Message: "can't update an instance of a subscription that doesn't exist", Subscription: subscriptionID}
	}
	if !m.permitted(caller, sub, RoleOwnerOrOperator) {
		return &Error{Code: CodeNotAuthorized, Message: "only the owner or the operator of the subscription can update it", Subscription: subscriptionID, Instance: instanceID}
	}

	inst.Discount = discount
	inst.Data = data

	m.emit(event.InstanceUpdated{
		Caller:         caller,
		InstanceID:     instanceID,
		SubscriptionID: subscriptionID,
		Discount:       discount,
		Data:           data,
	})
	return nil
}

// DeleteInstance removes an enrollment. Subscription owner or operator.
// Terminal for the instance.
func (m *Machine) DeleteInstance(caller event.Address, subscriptionID, instanceID event.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	inst, ok := m.insts[instanceID]
	if !ok || inst.SubscriptionID != subscriptionID {
		return &Error{Code: CodeInstanceNotFound, Message: "can't delete a subscription instance that doesn't exist", Subscription: subscriptionID, Instance: instanceID}
	}
	sub, ok := m.subs[subscriptionID]
	if !ok {
		return &Error{Code: CodeSubscriptionNotFound, Message: "can't delete an instance of a subscription that doesn't exist", Subscription: subscriptionID}
	}
	if !m.permitted(caller, sub, RoleOwnerOrOperator) {
		return &Error{Code: CodeNotAuthorized, Message: "only the owner or the operator of the subscription can delete it", Subscription: subscriptionID, Instance: instanceID}
	}

	delete(m.insts, instanceID)
	delete(m.instByOwner[subscriptionID], inst.Owner)

	m.emit(event.InstanceDeleted{Caller: caller, InstanceID: instanceID})
	return nil
}

// toggleInstance flips the active flag. Instance owner, subscription owner
// or operator.
func (m *Machine) toggleInstance(caller event.Address, instanceID event.ID, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	inst, ok := m.insts[instanceID]
	if !ok {
		return &Error{Code: CodeInstanceNotFound, Message: "can't toggle a subscription instance that doesn't exist", Instance: instanceID}
	}

	authorized := caller == inst.Owner
	if sub, ok := m.subs[inst.SubscriptionID]; ok && m.permitted(caller, sub, RoleOwnerOrOperator) {
		authorized = true
	}
	if !authorized {
		return &Error{Code: CodeNotAuthorized, Message: "only the instance owner, the subscription owner or the operator can toggle it", Subscription: inst.SubscriptionID, Instance: instanceID}
	}

	if m.policy.IdempotentToggle && inst.Active == active {
		return nil
	}
	inst.Active = active

	if active {
		m.emit(event.InstanceReactivated{InstanceID: instanceID, SubscriptionID: inst.SubscriptionID})
	} else {
		m.emit(event.InstanceDeactivated{InstanceID: instanceID, SubscriptionID: inst.SubscriptionID})
	}
	return nil
}

// DeactivateInstance pauses settlement for an instance.
func (m *Machine) DeactivateInstance(caller event.Address, instanceID event.ID) error {
	return m.toggleInstance(caller, instanceID, false)
}

// ReactivateInstance resumes settlement for an instance.
func (m *Machine) ReactivateInstance(caller event.Address, instanceID event.ID) error {
	return m.toggleInstance(caller, instanceID, true)
}

// HandleInstancePayment settles one period: transfers the (possibly
// discounted) recurring amount from the subscriber to the vault and advances
// nextPaymentAt by exactly one period from its previous value, so missed
// cycles stay owed. Callable by anyone; the subscriber pre-authorized the
// transfer via allowance.
func (m *Machine) HandleInstancePayment(caller event.Address, subscriptionID, instanceID event.ID) error {
	_ = caller // identity recorded by the transport, not authorized here

	m.mu.Lock()
	defer m.mu.Unlock()

	sub, ok := m.subs[subscriptionID]
	if !ok {
		return &Error{Code: CodeSubscriptionNotFound, Message: "can't handle the payment for a subscription that doesn't exist", Subscription: subscriptionID}
	}
	inst, ok := m.insts[instanceID]
	if !ok || inst.SubscriptionID != subscriptionID {
		return &Error{Code: CodeInstanceNotFound, Message: "can't handle the payment for a subscription instance that doesn't exist", Subscription: subscriptionID, Instance: instanceID}
	}
	if m.now().Unix() < inst.NextPaymentAt {
		return &Error{Code: CodeTooEarly, Message: "can't handle the payment yet", Subscription: subscriptionID, Instance: instanceID}
	}

	due := sub.RecurringAmount.ApplyDiscount(inst.Discount)
	if m.token.BalanceOf(sub.TokenAddress, inst.Owner).Cmp(due) < 0 {
		return &Error{Code: CodeInsufficientBalance, Message: "insufficient balance", Subscription: subscriptionID, Instance: instanceID}
	}
	if m.token.Allowance(sub.TokenAddress, inst.Owner, m.program).Cmp(due) < 0 {
		return &Error{Code: CodeInsufficientAllowance, Message: "insufficient allowance", Subscription: subscriptionID, Instance: instanceID}
	}
	if err := m.token.Transfer(sub.TokenAddress, m.program, inst.Owner, sub.VaultAddress, due); err != nil {
		return err
	}

	inst.NextPaymentAt += sub.Period

	m.emit(event.PaymentProcessed{
		InstanceID:     instanceID,
		SubscriptionID: subscriptionID,
		NextPaymentAt:  inst.NextPaymentAt,
	})
	return nil
}

// GetSubscription returns the current record, or a not-found rejection like
// the program's reverting getter.
func (m *Machine) GetSubscription(id event.ID) (Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sub, ok := m.subs[id]
	if !ok {
		return Subscription{}, &Error{Code: CodeSubscriptionNotFound, Message: "can't get a subscription that doesn't exist", Subscription: id}
	}
	return *sub, nil
}

// GetInstance returns the current instance record.
func (m *Machine) GetInstance(subscriptionID, instanceID event.ID) (Instance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	inst, ok := m.insts[instanceID]
	if !ok || inst.SubscriptionID != subscriptionID {
		return Instance{}, &Error{Code: CodeInstanceNotFound, Message: "can't get an instance that doesn't exist", Subscription: subscriptionID, Instance: instanceID}
	}
	return *inst, nil
}

// GetInstanceByOwner looks an instance up by its subscriber.
func (m *Machine) GetInstanceByOwner(subscriptionID event.ID, owner event.Address) (Instance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.instByOwner[subscriptionID][owner]
	if !ok {
		return Instance{}, &Error{Code: CodeInstanceNotFound, Message: "can't get an instance that doesn't exist", Subscription: subscriptionID}
	}
	return *m.insts[id], nil
}

package event

import (
	"encoding/json"
	"fmt"
)

type envelope struct {
	Kind     Kind            `json:"kind"`
	Seq      int64           `json:"seq"`
	SubIndex int64           `json:"subIndex"`
	Payload  json.RawMessage `json:"payload"`
}

// Encode serializes an event to its JSON envelope.
func Encode(e Event) ([]byte, error) {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s event: %w", e.Kind(), err)
	}
	return json.Marshal(envelope{
		Kind:     e.Kind(),
		Seq:      e.Seq,
		SubIndex: e.SubIndex,
		Payload:  payload,
	})
}

// Decode parses a JSON envelope back into an Event. Unknown kinds are an
// error: the mirror must not silently drop log entries it does not
// understand.
func Decode(data []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}

	payload, err := newPayload(env.Kind)
	if err != nil {
		return Event{}, err
	}
	if err := json.Unmarshal(env.Payload, payload); err != nil {
		return Event{}, fmt.Errorf("decode %s payload: %w", env.Kind, err)
	}

	return Event{
		Seq:      env.Seq,
		SubIndex: env.SubIndex,
		Payload:  deref(payload),
	}, nil
}

func newPayload(k Kind) (any, error) {
	switch k {
	case KindSubscriptionCreated:
		return &SubscriptionCreated{}, nil
	case KindSubscriptionUpdated:
		return &SubscriptionUpdated{}, nil
	case KindSubscriptionDeleted:
		return &SubscriptionDeleted{}, nil
	case KindInstanceCreated:
		return &InstanceCreated{}, nil
	case KindInstanceUpdated:
		return &InstanceUpdated{}, nil
	case KindInstanceDeleted:
		return &InstanceDeleted{}, nil
	case KindInstanceDeactivated:
		return &InstanceDeactivated{}, nil
	case KindInstanceReactivated:
		return &InstanceReactivated{}, nil
	case KindPaymentProcessed:
		return &PaymentProcessed{}, nil
	default:
		return nil, fmt.Errorf("decode event: unknown kind %q", k)
	}
}

func deref(p any) Payload {
	switch v := p.(type) {
	case *SubscriptionCreated:
		return *v
	case *SubscriptionUpdated:
		return *v
	case *SubscriptionDeleted:
		return *v
	case *InstanceCreated:
		return *v
	case *InstanceUpdated:
		return *v
	case *InstanceDeleted:
		return *v
	case *InstanceDeactivated:
		return *v
	case *InstanceReactivated:
		return *v
	case *PaymentProcessed:
		return *v
	default:
		panic(fmt.Sprintf("event: unhandled payload type %T", p))
	}
}

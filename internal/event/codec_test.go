package event

import (
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodec_RoundTrip(t *testing.T) {
	ev := Event{
		Seq:      7,
		SubIndex: 1,
		Payload: InstanceCreated{
			Caller:         Address{0x01},
			InstanceID:     ID{0x02},
			SubscriptionID: ID{0x03},
			Owner:          Address{0x04},
			NextPaymentAt:  1700086401,
			Discount:       10,
			Data:           `{"tier":"gold"}`,
		},
	}

	data, err := Encode(ev)
	require.NoError(t, err)

	back, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, ev, back)
}

func TestDecode_UnknownKind(t *testing.T) {
	_, err := Decode([]byte(`{"kind":"SubscriptionRenamed","seq":1,"subIndex":0,"payload":{}}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown kind")
}

func TestDecode_Garbage(t *testing.T) {
	_, err := Decode([]byte(`not json`))
	assert.Error(t, err)
}

func TestEncode_Golden(t *testing.T) {
	ev := Event{
		Seq:      3,
		SubIndex: 0,
		Payload: SubscriptionCreated{
			Caller:          Address{0xc0},
			SubscriptionID:  ID{0x5b},
			Owner:           Address{0xc0},
			VaultAddress:    Address{0xfa},
			TokenAddress:    Address{0x70},
			RecurringAmount: MustAmount("1000000000000000000"),
			InitialAmount:   MustAmount("500000000000000000"),
			Period:          86401,
			Data:            `{"plan":"monthly"}`,
		},
	}

	data, err := Encode(ev)
	require.NoError(t, err)

	g := goldie.New(t)
	g.Assert(t, "subscription_created", data)
}

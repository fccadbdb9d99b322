package event

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAddress(t *testing.T) {
	addr, err := ParseAddress("0x00112233445566778899aabbccddeeff00112233")
	require.NoError(t, err)
	assert.Equal(t, "0x00112233445566778899aabbccddeeff00112233", addr.String())
	assert.False(t, addr.IsZero())
}

func TestParseAddress_Invalid(t *testing.T) {
	cases := []struct {
		name string
		in   string
	}{
		{"missing prefix", "00112233445566778899aabbccddeeff00112233"},
		{"too short", "0x0011"},
		{"too long", "0x00112233445566778899aabbccddeeff0011223344"},
		{"not hex", "0xzz112233445566778899aabbccddeeff00112233"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseAddress(tc.in)
			assert.Error(t, err)
		})
	}
}

func TestAddress_JSONRoundTrip(t *testing.T) {
	addr := Address{0xde, 0xad, 0xbe, 0xef}
	data, err := json.Marshal(addr)
	require.NoError(t, err)

	var back Address
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, addr, back)
}

func TestParseID(t *testing.T) {
	s := "0xab00000000000000000000000000000000000000000000000000000000000000"
	id, err := ParseID(s)
	require.NoError(t, err)
	assert.Equal(t, s, id.String())
	assert.False(t, id.IsZero())

	_, err = ParseID("0x1234")
	assert.Error(t, err)
}

func TestZeroID(t *testing.T) {
	assert.True(t, ZeroID.IsZero())
	assert.True(t, ZeroAddress.IsZero())
}

func TestAmount_Cmp(t *testing.T) {
	a := MustAmount("100")
	b := MustAmount("200")

	assert.Equal(t, -1, a.Cmp(b))
	assert.Equal(t, 1, b.Cmp(a))
	assert.Equal(t, 0, a.Cmp(MustAmount("100")))
}

func TestAmount_ZeroValue(t *testing.T) {
	var zero Amount
	assert.True(t, zero.IsZero())
	assert.Equal(t, "0", zero.String())
	assert.Equal(t, 0, zero.Cmp(MustAmount("0")))
}

func TestAmount_AddSub(t *testing.T) {
	a := MustAmount("1000000000000000000")
	b := MustAmount("500000000000000000")

	assert.Equal(t, "1500000000000000000", a.Add(b).String())
	assert.Equal(t, "500000000000000000", a.Sub(b).String())

	// The inputs are untouched.
	assert.Equal(t, "1000000000000000000", a.String())
}

func TestAmount_SubUnderflowPanics(t *testing.T) {
	assert.Panics(t, func() {
		MustAmount("1").Sub(MustAmount("2"))
	})
}

func TestParseAmount_Rejects(t *testing.T) {
	_, err := ParseAmount("-5")
	assert.Error(t, err)
	_, err = ParseAmount("1.5")
	assert.Error(t, err)
	_, err = ParseAmount("abc")
	assert.Error(t, err)
}

func TestAmount_ApplyDiscount(t *testing.T) {
	base := MustAmount("1000000000000000000")

	assert.Equal(t, "1000000000000000000", base.ApplyDiscount(0).String())
	assert.Equal(t, "900000000000000000", base.ApplyDiscount(10).String())
	assert.Equal(t, "0", base.ApplyDiscount(100).String())
	assert.Equal(t, "0", base.ApplyDiscount(255).String())

	// Truncates toward zero.
	assert.Equal(t, "66", MustAmount("100").ApplyDiscount(33).String())
}

func TestAmount_JSONDecimalString(t *testing.T) {
	a := MustAmount("123456789012345678901234567890")
	data, err := json.Marshal(a)
	require.NoError(t, err)
	assert.Equal(t, `"123456789012345678901234567890"`, string(data))

	var back Amount
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, 0, a.Cmp(back))
}

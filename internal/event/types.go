package event

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
)

// Address is a 20-byte account identifier, rendered as 0x-prefixed hex.
type Address [20]byte

// ZeroAddress is the null address. Subscriptions may not point their vault
// or token at it.
var ZeroAddress Address

// ParseAddress decodes a 0x-prefixed 40-digit hex string.
func ParseAddress(s string) (Address, error) {
	var a Address
	raw, ok := strings.CutPrefix(s, "0x")
	if !ok {
		return a, fmt.Errorf("parse address %q: missing 0x prefix", s)
	}
	b, err := hex.DecodeString(raw)
	if err != nil {
		return a, fmt.Errorf("parse address %q: %w", s, err)
	}
	if len(b) != len(a) {
		return a, fmt.Errorf("parse address %q: want %d bytes, got %d", s, len(a), len(b))
	}
	copy(a[:], b)
	return a, nil
}

// IsZero reports whether the address is the null address.
func (a Address) IsZero() bool {
	return a == ZeroAddress
}

func (a Address) String() string {
	return "0x" + hex.EncodeToString(a[:])
}

// MarshalJSON encodes the address as its 0x-hex string.
func (a Address) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON decodes a 0x-hex string.
func (a *Address) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseAddress(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// ID is an opaque 32-byte key identifying a subscription or an instance.
type ID [32]byte

// ZeroID is the absent id.
var ZeroID ID

// ParseID decodes a 0x-prefixed 64-digit hex string.
func ParseID(s string) (ID, error) {
	var id ID
	raw, ok := strings.CutPrefix(s, "0x")
	if !ok {
		return id, fmt.Errorf("parse id %q: missing 0x prefix", s)
	}
	b, err := hex.DecodeString(raw)
	if err != nil {
		return id, fmt.Errorf("parse id %q: %w", s, err)
	}
	if len(b) != len(id) {
		return id, fmt.Errorf("parse id %q: want %d bytes, got %d", s, len(id), len(b))
	}
	copy(id[:], b)
	return id, nil
}

// IsZero reports whether the id is unset.
func (id ID) IsZero() bool {
	return id == ZeroID
}

func (id ID) String() string {
	return "0x" + hex.EncodeToString(id[:])
}

// MarshalJSON encodes the id as its 0x-hex string.
func (id ID) MarshalJSON() ([]byte, error) {
	return json.Marshal(id.String())
}

// UnmarshalJSON decodes a 0x-hex string.
func (id *ID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseID(s)
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// Amount is a 256-bit unsigned token quantity. The zero value is zero.
// Amounts are immutable: arithmetic returns new values. On the wire and in
// the store they are decimal strings, never floats.
type Amount struct {
	v *big.Int
}

// ParseAmount decodes a base-10 string. Negative values are rejected.
func ParseAmount(s string) (Amount, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return Amount{}, fmt.Errorf("parse amount %q: not a base-10 integer", s)
	}
	if v.Sign() < 0 {
		return Amount{}, fmt.Errorf("parse amount %q: negative", s)
	}
	return Amount{v: v}, nil
}

// MustAmount is ParseAmount for literals in tests and fixtures.
func MustAmount(s string) Amount {
	a, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return a
}

// AmountFromUint64 wraps a small amount.
func AmountFromUint64(v uint64) Amount {
	return Amount{v: new(big.Int).SetUint64(v)}
}

func (a Amount) big() *big.Int {
	if a.v == nil {
		return new(big.Int)
	}
	return a.v
}

// Cmp compares a and b: -1 if a < b, 0 if equal, 1 if a > b.
func (a Amount) Cmp(b Amount) int {
	return a.big().Cmp(b.big())
}

// IsZero reports whether the amount is zero.
func (a Amount) IsZero() bool {
	return a.big().Sign() == 0
}

// Add returns a + b.
func (a Amount) Add(b Amount) Amount {
	return Amount{v: new(big.Int).Add(a.big(), b.big())}
}

// Sub returns a - b. Panics if the result would be negative; callers must
// compare first.
func (a Amount) Sub(b Amount) Amount {
	r := new(big.Int).Sub(a.big(), b.big())
	if r.Sign() < 0 {
		panic("event: amount underflow")
	}
	return Amount{v: r}
}

// ApplyDiscount returns a reduced by pct percent, truncating. pct above 100
// clamps to a full discount.
func (a Amount) ApplyDiscount(pct uint8) Amount {
	if pct == 0 {
		return Amount{v: new(big.Int).Set(a.big())}
	}
	if pct >= 100 {
		return Amount{}
	}
	r := new(big.Int).Mul(a.big(), big.NewInt(int64(100-pct)))
	r.Quo(r, big.NewInt(100))
	return Amount{v: r}
}

// String renders the amount as a base-10 string.
func (a Amount) String() string {
	return a.big().String()
}

// MarshalJSON encodes the amount as a decimal string.
func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON decodes a decimal string.
func (a *Amount) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseAmount(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

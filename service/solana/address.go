package solana

import (
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// ErrMalformedAddress is returned when a string is not a valid base58-encoded
// 32-byte Solana address.
var ErrMalformedAddress = errors.New("malformed ledger address")

// Address is a validated Solana account or mint address.
// The zero value is not a valid address; construct one with ParseAddress.
type Address struct {
	key solana.PublicKey
	s   string
}

// ParseAddress validates s and returns it as an Address.
func ParseAddress(s string) (Address, error) {
	if s == "" {
		return Address{}, fmt.Errorf("%w: empty", ErrMalformedAddress)
	}
	key, err := solana.PublicKeyFromBase58(s)
	if err != nil {
		return Address{}, fmt.Errorf("%w: %q: %v", ErrMalformedAddress, s, err)
	}
	return Address{key: key, s: key.String()}, nil
}

// MustParseAddress is like ParseAddress but panics on invalid input.
func MustParseAddress(s string) Address {
	addr, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return addr
}

// String returns the canonical base58 form.
func (a Address) String() string { return a.s }

// PublicKey returns the underlying solana-go key.
func (a Address) PublicKey() solana.PublicKey { return a.key }

// IsZero reports whether a was never parsed.
func (a Address) IsZero() bool { return a.s == "" }

// Equal reports whether a and b refer to the same address.
func (a Address) Equal(b Address) bool { return a.key.Equals(b.key) && a.s == b.s }

// Matches reports whether the raw RPC string s is this address.
func (a Address) Matches(s string) bool { return s != "" && s == a.s }

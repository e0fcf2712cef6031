package codec

import (
	"fmt"

	"github.com/btcsuite/btcutil/base58"
)

const (
	// PubkeySize is the width of an account key or owner key.
	PubkeySize = 32
	// HashSize is the width of a record content hash.
	HashSize = 32
)

// Pubkey identifies an account or the program that owns it
type Pubkey [PubkeySize]byte

// Hash is the stored content hash of a record
type Hash [HashSize]byte

// String returns the base58 encoding of the key
func (p Pubkey) String() string {
	return base58.Encode(p[:])
}

// IsZero reports whether every byte of the key is zero
func (p Pubkey) IsZero() bool {
	return p == Pubkey{}
}

func (h Hash) String() string {
	return base58.Encode(h[:])
}

// ParsePubkey decodes a base58 string into a Pubkey
func ParsePubkey(s string) (Pubkey, error) {
	var p Pubkey
	if s == "" {
		return p, fmt.Errorf("empty pubkey")
	}

	// base58.Decode returns an empty slice on invalid input
	raw := base58.Decode(s)
	if len(raw) != PubkeySize {
		return p, fmt.Errorf("invalid pubkey %q: decoded to %d bytes, want %d", s, len(raw), PubkeySize)
	}
	copy(p[:], raw)

	return p, nil
}

// MustParsePubkey is like ParsePubkey but panics on error
func MustParsePubkey(s string) Pubkey {
	p, err := ParsePubkey(s)
	if err != nil {
		panic(err)
	}
	return p
}

package types

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

// PublicKeySize is the size of a compressed Ed25519 public key.
const PublicKeySize = 32

// PublicKey is a compressed public key identifying an account owner or a
// stake-delegation target.
type PublicKey [PublicKeySize]byte

func (pk PublicKey) String() string { return hex.EncodeToString(pk[:]) }

// IsEmpty reports whether the key is the zero key (used as "no delegate").
func (pk PublicKey) IsEmpty() bool { return pk == PublicKey{} }

// MarshalJSON renders the key as a hex string.
func (pk PublicKey) MarshalJSON() ([]byte, error) {
	return []byte(`"` + pk.String() + `"`), nil
}

// UnmarshalJSON parses a hex string produced by MarshalJSON.
func (pk *PublicKey) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return fmt.Errorf("types: PublicKey: invalid JSON %q", data)
	}
	decoded, err := hex.DecodeString(s[1 : len(s)-1])
	if err != nil {
		return fmt.Errorf("types: PublicKey: %w", err)
	}
	if len(decoded) != PublicKeySize {
		return fmt.Errorf("types: PublicKey: expected %d bytes, got %d", PublicKeySize, len(decoded))
	}
	copy(pk[:], decoded)
	return nil
}

// TokenID identifies a token within the ledger. The default (native) token
// is DefaultTokenID (1), not the zero value.
type TokenID uint64

// DefaultTokenID is the network's native token.
const DefaultTokenID TokenID = 1

// AccountID is the unique key of an account in the ledger: a public key
// paired with a token id (spec.md §3.2).
type AccountID struct {
	PublicKey PublicKey
	TokenID   TokenID
}

// NewAccountID builds an AccountID in the default token.
func NewAccountID(pk PublicKey) AccountID {
	return AccountID{PublicKey: pk, TokenID: DefaultTokenID}
}

// NewAccountIDWithToken builds an AccountID in an explicit token.
func NewAccountIDWithToken(pk PublicKey, token TokenID) AccountID {
	return AccountID{PublicKey: pk, TokenID: token}
}

func (id AccountID) String() string {
	var tokenBytes [8]byte
	binary.BigEndian.PutUint64(tokenBytes[:], uint64(id.TokenID))
	return id.PublicKey.String() + ":" + hex.EncodeToString(tokenBytes[:])
}

// MemoSize is the fixed size of a transaction memo (spec.md §4.H).
const MemoSize = 34

// Memo is an opaque 34-byte blob the applier never interprets beyond its
// fixed size.
type Memo [MemoSize]byte

// EmptyMemo is the zero memo.
var EmptyMemo = Memo{}

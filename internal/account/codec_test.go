package account

import (
	"testing"

	"github.com/minagoat/ccore/internal/currency"
	"github.com/minagoat/ccore/pkg/types"
)

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	var pk types.PublicKey
	pk[0] = 7
	a := CreateWith(types.NewAccountID(pk), currency.Balance(42))
	var delegate types.PublicKey
	delegate[0] = 9
	a.Delegate = &delegate
	a.Nonce = 3
	a.TokenSymbol = "MINA"
	a.VotingFor = types.HashBytes("test", []byte("x"))
	a.ZkApp = &ZkAppState{ZkAppVersion: 2, ZkAppURI: "https://example.com"}
	a.ZkApp.AppState[0] = types.HashBytes("test", []byte("state"))
	a.ZkApp.VerificationKey = &VerificationKey{Hash: types.HashBytes("test", []byte("vk")), Data: []byte{1, 2, 3}}

	data := a.Marshal()
	got, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got.Hash() != a.Hash() {
		t.Errorf("expected round-tripped account to hash identically")
	}
	if got.Balance != a.Balance || got.Nonce != a.Nonce || got.TokenSymbol != a.TokenSymbol {
		t.Errorf("expected primitive fields to round-trip, got %+v", got)
	}
	if got.Delegate == nil || *got.Delegate != *a.Delegate {
		t.Errorf("expected delegate to round-trip")
	}
	if got.ZkApp == nil || got.ZkApp.ZkAppURI != a.ZkApp.ZkAppURI {
		t.Errorf("expected zkApp state to round-trip")
	}
}

func TestMarshalUnmarshalDefaultAccount(t *testing.T) {
	var pk types.PublicKey
	pk[0] = 1
	a := New(types.NewAccountID(pk))

	got, err := Unmarshal(a.Marshal())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.IsDefault() {
		t.Errorf("expected round-tripped default account to still be default")
	}
}

func TestUnmarshalRejectsTruncatedInput(t *testing.T) {
	if _, err := Unmarshal([]byte{1, 2, 3}); err == nil {
		t.Errorf("expected an error for truncated input")
	}
}

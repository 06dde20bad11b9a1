package verifier

import (
	"testing"

	"github.com/minagoat/ccore/internal/account"
	"github.com/minagoat/ccore/internal/txn"
	"github.com/minagoat/ccore/pkg/types"
)

func TestStubVerifierAccept(t *testing.T) {
	v := StubVerifier{Accept: true}
	if !v.VerifySignature(types.PublicKey{1}, []byte("msg"), txn.Signature{1}) {
		t.Errorf("expected accept")
	}
	ok, err := v.VerifyProof(nil, types.Hash{}, nil)
	if err != nil || !ok {
		t.Errorf("expected accept, got ok=%v err=%v", ok, err)
	}
}

func TestStubVerifierReject(t *testing.T) {
	v := StubVerifier{Accept: false}
	if v.VerifySignature(types.PublicKey{1}, []byte("msg"), txn.Signature{1}) {
		t.Errorf("expected reject")
	}
}

func TestGnarkVerifierProveAndVerifyRoundTrip(t *testing.T) {
	gv, err := NewGnarkVerifier()
	if err != nil {
		t.Fatalf("unexpected error constructing verifier: %v", err)
	}

	proof, statement, err := gv.Prove(7)
	if err != nil {
		t.Fatalf("unexpected error proving: %v", err)
	}

	vkHash, err := gv.VerificationKeyHash()
	if err != nil {
		t.Fatalf("unexpected error hashing vk: %v", err)
	}
	vk := &account.VerificationKey{Hash: vkHash}

	ok, err := gv.VerifyProof(vk, statement, proof)
	if err != nil {
		t.Fatalf("unexpected error verifying: %v", err)
	}
	if !ok {
		t.Errorf("expected a proof produced by Prove to verify")
	}
}

func TestGnarkVerifierRejectsWrongVKHash(t *testing.T) {
	gv, err := NewGnarkVerifier()
	if err != nil {
		t.Fatalf("unexpected error constructing verifier: %v", err)
	}

	proof, statement, err := gv.Prove(7)
	if err != nil {
		t.Fatalf("unexpected error proving: %v", err)
	}

	wrongVK := &account.VerificationKey{Hash: types.Hash{0xFF}}
	ok, err := gv.VerifyProof(wrongVK, statement, proof)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Errorf("expected rejection when the declared vk hash doesn't match")
	}
}

func TestGnarkVerifierRejectsMismatchedStatement(t *testing.T) {
	gv, err := NewGnarkVerifier()
	if err != nil {
		t.Fatalf("unexpected error constructing verifier: %v", err)
	}

	proof, _, err := gv.Prove(7)
	if err != nil {
		t.Fatalf("unexpected error proving: %v", err)
	}

	vkHash, _ := gv.VerificationKeyHash()
	vk := &account.VerificationKey{Hash: vkHash}

	_, wrongStatement, err := gv.Prove(9)
	if err != nil {
		t.Fatalf("unexpected error proving: %v", err)
	}

	ok, err := gv.VerifyProof(vk, wrongStatement, proof)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Errorf("expected rejection when the proof doesn't match the claimed statement")
	}
}

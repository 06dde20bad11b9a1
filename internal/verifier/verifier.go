// Package verifier implements the external verifier oracle boundary
// (spec.md §4.L): signature and proof checks the applier calls
// synchronously and treats as opaque booleans.
package verifier

import (
	"github.com/minagoat/ccore/internal/account"
	"github.com/minagoat/ccore/internal/txn"
	"github.com/minagoat/ccore/pkg/types"
)

// Verifier is the oracle the applier calls for Signature and Proof
// authorizations. No semantics beyond accept/reject (spec.md §4.L);
// implementations are free to batch internally as long as observable
// verdicts are unchanged.
type Verifier interface {
	VerifySignature(pk types.PublicKey, msg []byte, sig txn.Signature) bool
	VerifyProof(vk *account.VerificationKey, statement types.Hash, proof []byte) (bool, error)
}

// StubVerifier is a deterministic, always-accept-or-reject oracle used by
// applier tests that don't want real proof/signature cost (spec.md §4.L
// "no semantics beyond returning a boolean" — a stub is a conforming
// implementation).
type StubVerifier struct {
	Accept bool
}

func (s StubVerifier) VerifySignature(types.PublicKey, []byte, txn.Signature) bool {
	return s.Accept
}

func (s StubVerifier) VerifyProof(*account.VerificationKey, types.Hash, []byte) (bool, error) {
	return s.Accept, nil
}

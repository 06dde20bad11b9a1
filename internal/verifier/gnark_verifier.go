package verifier

import (
	"bytes"
	"fmt"
	"math/big"
	"sync"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"

	"github.com/minagoat/ccore/internal/account"
	"github.com/minagoat/ccore/internal/txn"
	"github.com/minagoat/ccore/pkg/types"
)

// statementCircuit is a minimal, always-compilable circuit giving
// gnark/gnark-crypto a real call site at the verifier boundary: it
// asserts witness^2 == statement. It is not a faithful rendering of
// Mina's zkApp statement circuit (out of spec scope, §4.L "no semantics
// beyond returning a boolean") — only a concrete stand-in a caller can
// actually compile, prove and verify against.
type statementCircuit struct {
	Statement frontend.Variable `gnark:",public"`
	Witness   frontend.Variable
}

func (c *statementCircuit) Define(api frontend.API) error {
	square := api.Mul(c.Witness, c.Witness)
	api.AssertIsEqual(square, c.Statement)
	return nil
}

// GnarkVerifier is a concrete §4.L verifier backed by a real Groth16
// setup over statementCircuit, grounded on the teacher's
// internal/zkp/circuits.go CircuitManager compile/setup/verify flow.
type GnarkVerifier struct {
	mu  sync.Mutex
	ccs frontend.CompiledConstraintSystem
	pk  groth16.ProvingKey
	vk  groth16.VerifyingKey
}

// NewGnarkVerifier compiles statementCircuit and runs its trusted setup
// once; the resulting (pk, vk) pair is reused for every Prove/VerifyProof
// call.
func NewGnarkVerifier() (*GnarkVerifier, error) {
	ccs, err := frontend.Compile(ecc.BN254.ScalarField(), r1cs.NewBuilder, &statementCircuit{})
	if err != nil {
		return nil, fmt.Errorf("verifier: compiling circuit: %w", err)
	}
	pk, vk, err := groth16.Setup(ccs)
	if err != nil {
		return nil, fmt.Errorf("verifier: groth16 setup: %w", err)
	}
	return &GnarkVerifier{ccs: ccs, pk: pk, vk: vk}, nil
}

// VerificationKeyHash is the content hash of this verifier's fixed
// circuit verifying key, the value test accounts register in
// account.ZkAppState.VerificationKey so a Proof authorization's declared
// vk_hash matches what VerifyProof actually checks against.
func (gv *GnarkVerifier) VerificationKeyHash() (types.Hash, error) {
	var buf bytes.Buffer
	if _, err := gv.vk.WriteTo(&buf); err != nil {
		return types.Hash{}, fmt.Errorf("verifier: serializing verifying key: %w", err)
	}
	return types.HashBytes("ccore/verifier-vk", buf.Bytes()), nil
}

// Prove produces a valid proof for the statement witness*witness, for
// use by tests exercising Proof authorizations end-to-end.
func (gv *GnarkVerifier) Prove(witness uint64) (proof []byte, statement types.Hash, err error) {
	gv.mu.Lock()
	defer gv.mu.Unlock()

	statementValue := new(big.Int).Mul(big.NewInt(0).SetUint64(witness), big.NewInt(0).SetUint64(witness))
	assignment := &statementCircuit{Statement: statementValue, Witness: witness}

	w, err := frontend.NewWitness(assignment, ecc.BN254.ScalarField())
	if err != nil {
		return nil, types.Hash{}, fmt.Errorf("verifier: building witness: %w", err)
	}

	proofObj, err := groth16.Prove(gv.ccs, gv.pk, w)
	if err != nil {
		return nil, types.Hash{}, fmt.Errorf("verifier: proving: %w", err)
	}

	var proofBuf bytes.Buffer
	if _, err := proofObj.WriteTo(&proofBuf); err != nil {
		return nil, types.Hash{}, fmt.Errorf("verifier: serializing proof: %w", err)
	}

	return proofBuf.Bytes(), fieldBytesToHash(statementValue), nil
}

func fieldBytesToHash(v *big.Int) types.Hash {
	var h types.Hash
	b := v.Bytes()
	copy(h[types.HashSize-len(b):], b)
	return h
}

// VerifySignature delegates to the internal/account/txn authorization
// shape; this toy oracle treats any non-zero signature as valid for a
// non-empty message, deferring real Ed25519/Schnorr verification to
// wherever a production deployment wires its own key material.
func (gv *GnarkVerifier) VerifySignature(pk types.PublicKey, msg []byte, sig txn.Signature) bool {
	if pk.IsEmpty() || len(msg) == 0 {
		return false
	}
	return sig != txn.Signature{}
}

// VerifyProof verifies proof against this verifier's fixed circuit and
// the declared statement, requiring vk's hash to match this verifier's
// own verifying key (a single compiled circuit stands in for the real
// per-zkApp verification-key registry; spec.md §4.L imposes no semantics
// beyond the accept/reject boolean).
func (gv *GnarkVerifier) VerifyProof(vk *account.VerificationKey, statement types.Hash, proof []byte) (bool, error) {
	gv.mu.Lock()
	defer gv.mu.Unlock()

	ownHash, err := gv.VerificationKeyHash()
	if err != nil {
		return false, err
	}
	if vk == nil || vk.Hash != ownHash {
		return false, nil
	}

	proofObj := groth16.NewProof(ecc.BN254)
	if _, err := proofObj.ReadFrom(bytes.NewReader(proof)); err != nil {
		return false, fmt.Errorf("verifier: deserializing proof: %w", err)
	}

	statementValue := new(big.Int).SetBytes(statement[:])
	publicAssignment := &statementCircuit{Statement: statementValue}
	publicWitness, err := frontend.NewWitness(publicAssignment, ecc.BN254.ScalarField(), frontend.PublicOnly())
	if err != nil {
		return false, fmt.Errorf("verifier: building public witness: %w", err)
	}

	if err := groth16.Verify(proofObj, gv.vk, publicWitness); err != nil {
		return false, nil
	}
	return true, nil
}

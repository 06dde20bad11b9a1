package account

// AuthRequired is the authorization controllers assign to each editable
// account field, totally ordered by strictness (spec.md §3.2).
type AuthRequired uint8

const (
	None AuthRequired = iota
	Either
	Proof
	Signature
	Impossible
)

// strictness gives AuthRequired its total order: higher is stricter.
func (a AuthRequired) strictness() int { return int(a) }

// Stricter reports whether a is at least as strict as b.
func (a AuthRequired) Stricter(b AuthRequired) bool {
	return a.strictness() >= b.strictness()
}

// ControlKind is the kind of authorization a transaction actually supplied,
// decoupled from the txn package's Control type to avoid an import cycle —
// callers translate their Control value into a ControlKind before calling
// Satisfied.
type ControlKind uint8

const (
	ControlNone ControlKind = iota
	ControlSignature
	ControlProof
)

// Satisfied reports whether the supplied control kind meets this
// AuthRequired controller.
func (a AuthRequired) Satisfied(kind ControlKind) bool {
	switch a {
	case None:
		return true
	case Either:
		return kind == ControlSignature || kind == ControlProof
	case Signature:
		return kind == ControlSignature
	case Proof:
		return kind == ControlProof
	case Impossible:
		return false
	default:
		return false
	}
}

// TransactionVersion pins the wire/semantics version that a
// set-verification-key permission was configured against; the applier
// refuses updates whose transaction version does not match current
// (spec.md §4.D).
type TransactionVersion uint32

// CurrentTransactionVersion is the version this applier accepts.
const CurrentTransactionVersion TransactionVersion = 3

// VerificationKeyPermission parameterizes the set-verification-key
// controller by the protocol transaction version it was authorized under.
type VerificationKeyPermission struct {
	Auth    AuthRequired
	TxnVersion TransactionVersion
}

// Permissions is the full set of per-field authorization controllers
// (spec.md §3.2).
type Permissions struct {
	EditState           AuthRequired
	Send                AuthRequired
	Receive             AuthRequired
	SetDelegate         AuthRequired
	SetPermissions      AuthRequired
	SetVerificationKey  VerificationKeyPermission
	SetZkappURI         AuthRequired
	EditActionState     AuthRequired
	SetTokenSymbol      AuthRequired
	IncrementNonce      AuthRequired
	SetVotingFor        AuthRequired
	SetTiming           AuthRequired
}

// UserDefault returns the default permission set assigned to a freshly
// created user account: Signature required to send, edit state, set
// delegate, set permissions and set the verification key; None to receive;
// Either for the remaining post-hardfork fields. Grounded on
// original_source/ledger/src/account/legacy.rs PermissionsLegacy::user_default,
// extended with the post-hardfork fields spec.md §3.2 adds.
func UserDefault() Permissions {
	return Permissions{
		EditState:      Signature,
		Send:           Signature,
		Receive:        None,
		SetDelegate:    Signature,
		SetPermissions: Signature,
		SetVerificationKey: VerificationKeyPermission{
			Auth:       Signature,
			TxnVersion: CurrentTransactionVersion,
		},
		SetZkappURI:     Either,
		EditActionState: Either,
		SetTokenSymbol:  Either,
		IncrementNonce:  Either,
		SetVotingFor:    Either,
		SetTiming:       Either,
	}
}

// Empty returns a permission set where every field is unreachable
// (Impossible), used for "burned" or system accounts.
func Empty() Permissions {
	return Permissions{
		EditState:      Impossible,
		Send:           Impossible,
		Receive:        Impossible,
		SetDelegate:    Impossible,
		SetPermissions: Impossible,
		SetVerificationKey: VerificationKeyPermission{
			Auth:       Impossible,
			TxnVersion: CurrentTransactionVersion,
		},
		SetZkappURI:     Impossible,
		EditActionState: Impossible,
		SetTokenSymbol:  Impossible,
		IncrementNonce:  Impossible,
		SetVotingFor:    Impossible,
		SetTiming:       Impossible,
	}
}

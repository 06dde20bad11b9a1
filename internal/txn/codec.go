package txn

import (
	"fmt"

	"github.com/minagoat/ccore/internal/account"
	"github.com/minagoat/ccore/internal/currency"
	"github.com/minagoat/ccore/pkg/types"
)

// Marshal encodes a Transaction to a flat byte slice for p2p delivery
// (internal/p2p's gossip/sync messages). spec.md's non-goals explicitly
// exclude a P2P wire format ("No P2P wire format"), so this codec only
// carries what the applier actually consumes rather than a byte-faithful
// rendering of every zkApp precondition/event/action field: a
// ZkAppCommand's call-forest is flattened to its pre-order account
// updates, each carrying its id, balance change, flags, authorization and
// the app-state/delegate/zkapp-uri/token-symbol/voting-for part of its
// update mask; the verification-key, permissions and timing updates,
// events/actions and preconditions are not transmitted. This
// mirrors the same field-by-field buffer style as Hash()/account.Marshal
// rather than reaching for gob/json.
func (t *Transaction) Marshal() []byte {
	buf := []byte{byte(t.Kind)}
	switch t.Kind {
	case TransactionCommand:
		buf = appendUserCommand(buf, t.Command)
	case TransactionFeeTransfer:
		buf = appendFeeTransfer(buf, t.FeeTransfer)
	case TransactionCoinbase:
		buf = appendCoinbase(buf, t.Coinbase)
	}
	return buf
}

// Unmarshal decodes a Transaction previously written by Marshal.
func Unmarshal(data []byte) (*Transaction, error) {
	r := &reader{buf: data}
	kind, err := r.byte()
	if err != nil {
		return nil, err
	}
	tx := &Transaction{Kind: TransactionKind(kind)}
	switch tx.Kind {
	case TransactionCommand:
		cmd, err := readUserCommand(r)
		if err != nil {
			return nil, err
		}
		tx.Command = cmd
	case TransactionFeeTransfer:
		ft, err := readFeeTransfer(r)
		if err != nil {
			return nil, err
		}
		tx.FeeTransfer = ft
	case TransactionCoinbase:
		cb, err := readCoinbase(r)
		if err != nil {
			return nil, err
		}
		tx.Coinbase = cb
	default:
		return nil, fmt.Errorf("txn: codec: unknown transaction kind %d", kind)
	}
	return tx, nil
}

func appendUserCommand(buf []byte, c *UserCommand) []byte {
	buf = append(buf, byte(c.Kind))
	if c.Kind == UserCommandSigned {
		return appendSignedCommand(buf, c.Signed)
	}
	return appendZkAppCommand(buf, c.ZkApp)
}

func readUserCommand(r *reader) (*UserCommand, error) {
	kind, err := r.byte()
	if err != nil {
		return nil, err
	}
	c := &UserCommand{Kind: UserCommandKind(kind)}
	if c.Kind == UserCommandSigned {
		sc, err := readSignedCommand(r)
		if err != nil {
			return nil, err
		}
		c.Signed = sc
		return c, nil
	}
	zc, err := readZkAppCommand(r)
	if err != nil {
		return nil, err
	}
	c.ZkApp = zc
	return c, nil
}

func appendSignedCommand(buf []byte, sc *SignedCommand) []byte {
	p := sc.Payload
	buf = appendUint64(buf, uint64(p.Common.Fee))
	buf = append(buf, p.Common.FeePayerPK[:]...)
	buf = appendUint32(buf, uint32(p.Common.Nonce))
	buf = appendUint32(buf, uint32(p.Common.ValidUntil))
	buf = append(buf, p.Common.Memo[:]...)
	buf = append(buf, byte(p.Body.Kind))
	if p.Body.Kind == BodyPayment {
		buf = append(buf, p.Body.Payment.Receiver[:]...)
		buf = appendUint64(buf, uint64(p.Body.Payment.Amount))
	} else {
		buf = append(buf, p.Body.StakeDelegation.NewDelegate[:]...)
	}
	buf = append(buf, sc.Signer[:]...)
	buf = append(buf, sc.Signature[:]...)
	return buf
}

func readSignedCommand(r *reader) (*SignedCommand, error) {
	sc := &SignedCommand{}
	fee, err := r.uint64()
	if err != nil {
		return nil, err
	}
	sc.Payload.Common.Fee = currency.Fee(fee)
	if err := r.read(sc.Payload.Common.FeePayerPK[:]); err != nil {
		return nil, err
	}
	nonce, err := r.uint32()
	if err != nil {
		return nil, err
	}
	sc.Payload.Common.Nonce = currency.Nonce(nonce)
	validUntil, err := r.uint32()
	if err != nil {
		return nil, err
	}
	sc.Payload.Common.ValidUntil = currency.Slot(validUntil)
	if err := r.read(sc.Payload.Common.Memo[:]); err != nil {
		return nil, err
	}
	bodyKind, err := r.byte()
	if err != nil {
		return nil, err
	}
	sc.Payload.Body.Kind = BodyKind(bodyKind)
	if sc.Payload.Body.Kind == BodyPayment {
		if err := r.read(sc.Payload.Body.Payment.Receiver[:]); err != nil {
			return nil, err
		}
		amount, err := r.uint64()
		if err != nil {
			return nil, err
		}
		sc.Payload.Body.Payment.Amount = currency.Amount(amount)
	} else {
		if err := r.read(sc.Payload.Body.StakeDelegation.NewDelegate[:]); err != nil {
			return nil, err
		}
	}
	if err := r.read(sc.Signer[:]); err != nil {
		return nil, err
	}
	if err := r.read(sc.Signature[:]); err != nil {
		return nil, err
	}
	return sc, nil
}

func appendFeeTransfer(buf []byte, ft *FeeTransfer) []byte {
	buf = appendUint32(buf, uint32(len(ft.Receivers)))
	for _, r := range ft.Receivers {
		buf = append(buf, r.Receiver[:]...)
		buf = appendUint64(buf, uint64(r.Fee))
		buf = appendUint64(buf, uint64(r.Token))
	}
	return buf
}

func readFeeTransfer(r *reader) (*FeeTransfer, error) {
	n, err := r.uint32()
	if err != nil {
		return nil, err
	}
	ft := &FeeTransfer{Receivers: make([]FeeTransferSingle, n)}
	for i := range ft.Receivers {
		if err := r.read(ft.Receivers[i].Receiver[:]); err != nil {
			return nil, err
		}
		fee, err := r.uint64()
		if err != nil {
			return nil, err
		}
		ft.Receivers[i].Fee = currency.Fee(fee)
		token, err := r.uint64()
		if err != nil {
			return nil, err
		}
		ft.Receivers[i].Token = types.TokenID(token)
	}
	return ft, nil
}

func appendCoinbase(buf []byte, cb *Coinbase) []byte {
	buf = append(buf, cb.Receiver[:]...)
	buf = appendUint64(buf, uint64(cb.Amount))
	if cb.FeeTransfer != nil {
		buf = append(buf, 1)
		buf = append(buf, cb.FeeTransfer.Receiver[:]...)
		buf = appendUint64(buf, uint64(cb.FeeTransfer.Fee))
		buf = appendUint64(buf, uint64(cb.FeeTransfer.Token))
	} else {
		buf = append(buf, 0)
	}
	return buf
}

func readCoinbase(r *reader) (*Coinbase, error) {
	cb := &Coinbase{}
	if err := r.read(cb.Receiver[:]); err != nil {
		return nil, err
	}
	amount, err := r.uint64()
	if err != nil {
		return nil, err
	}
	cb.Amount = currency.Amount(amount)
	hasFT, err := r.byte()
	if err != nil {
		return nil, err
	}
	if hasFT == 1 {
		ft := &FeeTransferSingle{}
		if err := r.read(ft.Receiver[:]); err != nil {
			return nil, err
		}
		fee, err := r.uint64()
		if err != nil {
			return nil, err
		}
		ft.Fee = currency.Fee(fee)
		token, err := r.uint64()
		if err != nil {
			return nil, err
		}
		ft.Token = types.TokenID(token)
		cb.FeeTransfer = ft
	}
	return cb, nil
}

func appendZkAppCommand(buf []byte, z *ZkAppCommand) []byte {
	buf = append(buf, z.FeePayer.Body.PublicKey[:]...)
	buf = appendUint64(buf, uint64(z.FeePayer.Body.Fee))
	buf = appendUint32(buf, uint32(z.FeePayer.Body.ValidUntil))
	buf = appendUint32(buf, uint32(z.FeePayer.Body.Nonce))
	buf = append(buf, z.FeePayer.Authorization[:]...)
	buf = append(buf, z.Memo[:]...)

	flat := z.AccountUpdates.PreOrder()
	buf = appendUint32(buf, uint32(len(flat)))
	for _, u := range flat {
		buf = appendAccountUpdate(buf, u)
	}
	return buf
}

func readZkAppCommand(r *reader) (*ZkAppCommand, error) {
	z := &ZkAppCommand{}
	if err := r.read(z.FeePayer.Body.PublicKey[:]); err != nil {
		return nil, err
	}
	fee, err := r.uint64()
	if err != nil {
		return nil, err
	}
	z.FeePayer.Body.Fee = currency.Fee(fee)
	validUntil, err := r.uint32()
	if err != nil {
		return nil, err
	}
	z.FeePayer.Body.ValidUntil = currency.Slot(validUntil)
	nonce, err := r.uint32()
	if err != nil {
		return nil, err
	}
	z.FeePayer.Body.Nonce = currency.Nonce(nonce)
	if err := r.read(z.FeePayer.Authorization[:]); err != nil {
		return nil, err
	}
	if err := r.read(z.Memo[:]); err != nil {
		return nil, err
	}

	n, err := r.uint32()
	if err != nil {
		return nil, err
	}
	// The call forest is reconstructed as a flat list of single-node
	// trees: PreOrder() of the result matches the original's, but the
	// tree shape is lost, so Tree.Hash/CallForest.Hash (and a zkApp proof
	// statement, which hashes each node's Calls) differ from the original.
	forest := make(CallForest, n)
	for i := range forest {
		u, err := readAccountUpdate(r)
		if err != nil {
			return nil, err
		}
		forest[i] = &Tree{AccountUpdate: u}
	}
	z.AccountUpdates = forest
	return z, nil
}

func appendAccountUpdate(buf []byte, u *AccountUpdate) []byte {
	b := u.Body
	buf = append(buf, b.AccountID.PublicKey[:]...)
	buf = appendUint64(buf, uint64(b.AccountID.TokenID))
	buf = appendUint64(buf, uint64(b.BalanceChange.Magnitude))
	buf = append(buf, byte(b.BalanceChange.Sgn))
	if b.IncrementNonce {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	if b.UseFullCommitment {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	if b.ImplicitAccountCreationFee {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	buf = append(buf, byte(b.MayUseToken))
	buf = append(buf, byte(b.AuthorizationKind.Kind))
	buf = append(buf, b.AuthorizationKind.VKHash[:]...)

	for _, s := range b.Update.AppState {
		buf = appendSetOrKeepHash(buf, s)
	}
	buf = appendSetOrKeepPublicKey(buf, b.Update.Delegate)
	buf = appendSetOrKeepString(buf, b.Update.ZkAppURI)
	buf = appendSetOrKeepString(buf, b.Update.TokenSymbol)
	buf = appendSetOrKeepHash(buf, b.Update.VotingFor)

	buf = append(buf, byte(u.Authorization.Kind))
	buf = append(buf, u.Authorization.Signature[:]...)
	buf = appendLenPrefixed(buf, u.Authorization.Proof)
	return buf
}

func readAccountUpdate(r *reader) (*AccountUpdate, error) {
	u := &AccountUpdate{}
	b := &u.Body
	if err := r.read(b.AccountID.PublicKey[:]); err != nil {
		return nil, err
	}
	tokenID, err := r.uint64()
	if err != nil {
		return nil, err
	}
	b.AccountID.TokenID = types.TokenID(tokenID)
	magnitude, err := r.uint64()
	if err != nil {
		return nil, err
	}
	b.BalanceChange.Magnitude = currency.Amount(magnitude)
	sgn, err := r.byte()
	if err != nil {
		return nil, err
	}
	b.BalanceChange.Sgn = currency.Sgn(sgn)
	flags, err := r.bytes(3)
	if err != nil {
		return nil, err
	}
	b.IncrementNonce = flags[0] == 1
	b.UseFullCommitment = flags[1] == 1
	b.ImplicitAccountCreationFee = flags[2] == 1
	mayUseToken, err := r.byte()
	if err != nil {
		return nil, err
	}
	b.MayUseToken = MayUseToken(mayUseToken)
	authKind, err := r.byte()
	if err != nil {
		return nil, err
	}
	b.AuthorizationKind.Kind = account.ControlKind(authKind)
	if err := r.read(b.AuthorizationKind.VKHash[:]); err != nil {
		return nil, err
	}

	for i := range b.Update.AppState {
		v, err := readSetOrKeepHash(r)
		if err != nil {
			return nil, err
		}
		b.Update.AppState[i] = v
	}
	delegate, err := readSetOrKeepPublicKey(r)
	if err != nil {
		return nil, err
	}
	b.Update.Delegate = delegate
	uri, err := readSetOrKeepString(r)
	if err != nil {
		return nil, err
	}
	b.Update.ZkAppURI = uri
	symbol, err := readSetOrKeepString(r)
	if err != nil {
		return nil, err
	}
	b.Update.TokenSymbol = symbol
	votingFor, err := readSetOrKeepHash(r)
	if err != nil {
		return nil, err
	}
	b.Update.VotingFor = votingFor

	authKindByte, err := r.byte()
	if err != nil {
		return nil, err
	}
	u.Authorization.Kind = account.ControlKind(authKindByte)
	if err := r.read(u.Authorization.Signature[:]); err != nil {
		return nil, err
	}
	proof, err := r.lenPrefixed()
	if err != nil {
		return nil, err
	}
	u.Authorization.Proof = proof
	return u, nil
}

func appendSetOrKeepHash(buf []byte, s SetOrKeep[types.Hash]) []byte {
	if !s.Set {
		return append(buf, 0)
	}
	buf = append(buf, 1)
	return append(buf, s.Value[:]...)
}

func readSetOrKeepHash(r *reader) (SetOrKeep[types.Hash], error) {
	tag, err := r.byte()
	if err != nil {
		return SetOrKeep[types.Hash]{}, err
	}
	if tag == 0 {
		return Keep[types.Hash](), nil
	}
	var h types.Hash
	if err := r.read(h[:]); err != nil {
		return SetOrKeep[types.Hash]{}, err
	}
	return SetTo(h), nil
}

func appendSetOrKeepPublicKey(buf []byte, s SetOrKeep[types.PublicKey]) []byte {
	if !s.Set {
		return append(buf, 0)
	}
	buf = append(buf, 1)
	return append(buf, s.Value[:]...)
}

func readSetOrKeepPublicKey(r *reader) (SetOrKeep[types.PublicKey], error) {
	tag, err := r.byte()
	if err != nil {
		return SetOrKeep[types.PublicKey]{}, err
	}
	if tag == 0 {
		return Keep[types.PublicKey](), nil
	}
	var pk types.PublicKey
	if err := r.read(pk[:]); err != nil {
		return SetOrKeep[types.PublicKey]{}, err
	}
	return SetTo(pk), nil
}

func appendSetOrKeepString(buf []byte, s SetOrKeep[string]) []byte {
	if !s.Set {
		return append(buf, 0)
	}
	buf = append(buf, 1)
	return appendLenPrefixed(buf, []byte(s.Value))
}

func readSetOrKeepString(r *reader) (SetOrKeep[string], error) {
	tag, err := r.byte()
	if err != nil {
		return SetOrKeep[string]{}, err
	}
	if tag == 0 {
		return Keep[string](), nil
	}
	v, err := r.lenPrefixed()
	if err != nil {
		return SetOrKeep[string]{}, err
	}
	return SetTo(string(v)), nil
}

func appendLenPrefixed(buf, data []byte) []byte {
	buf = appendUint32(buf, uint32(len(data)))
	return append(buf, data...)
}

// reader is a minimal cursor over a Marshal-ed buffer, mirroring
// internal/account/codec.go's byteReader.
type reader struct {
	buf []byte
	pos int
}

func (r *reader) read(dst []byte) error {
	if len(r.buf)-r.pos < len(dst) {
		return fmt.Errorf("txn: codec: truncated input")
	}
	copy(dst, r.buf[r.pos:])
	r.pos += len(dst)
	return nil
}

func (r *reader) bytes(n int) ([]byte, error) {
	if len(r.buf)-r.pos < n {
		return nil, fmt.Errorf("txn: codec: truncated input")
	}
	out := r.buf[r.pos : r.pos+n]
	r.pos += n
	return out, nil
}

func (r *reader) byte() (byte, error) {
	b, err := r.bytes(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *reader) uint32() (uint32, error) {
	b, err := r.bytes(4)
	if err != nil {
		return 0, err
	}
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3]), nil
}

func (r *reader) uint64() (uint64, error) {
	b, err := r.bytes(8)
	if err != nil {
		return 0, err
	}
	var v uint64
	for _, x := range b {
		v = v<<8 | uint64(x)
	}
	return v, nil
}

func (r *reader) lenPrefixed() ([]byte, error) {
	n, err := r.uint32()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	return r.bytes(int(n))
}

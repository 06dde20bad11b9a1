package account

import (
	"encoding/binary"
	"fmt"

	"github.com/minagoat/ccore/internal/currency"
	"github.com/minagoat/ccore/pkg/types"
)

// Marshal encodes an account to a flat byte slice for storage (internal/
// storage's ledger-snapshot checkpoints), reusing the same field-by-field
// buffer-building style as Hash() rather than a general-purpose codec
// library: every field here is a fixed-size or length-prefixed primitive,
// which gob/json would only add indirection around.
func (a *Account) Marshal() []byte {
	var buf []byte
	buf = append(buf, a.ID.PublicKey[:]...)
	buf = appendUint64(buf, uint64(a.ID.TokenID))
	buf = appendUint64(buf, uint64(a.Balance))
	buf = appendUint32(buf, uint32(a.Nonce))
	if a.Delegate != nil {
		buf = append(buf, 1)
		buf = append(buf, a.Delegate[:]...)
	} else {
		buf = append(buf, 0)
	}
	buf = append(buf, a.ReceiptChainHash[:]...)
	buf = append(buf, a.VotingFor[:]...)
	buf = appendTimingBytes(buf, a.Timing)
	buf = appendPermissionsBytes(buf, a.Permissions)
	buf = appendLenPrefixed(buf, []byte(a.TokenSymbol))
	if a.ZkApp != nil {
		buf = append(buf, 1)
		buf = appendZkAppBytes(buf, a.ZkApp)
	} else {
		buf = append(buf, 0)
	}
	return buf
}

// Unmarshal decodes an Account previously written by Marshal.
func Unmarshal(data []byte) (*Account, error) {
	r := &byteReader{buf: data}
	a := &Account{}

	if err := r.read(a.ID.PublicKey[:]); err != nil {
		return nil, err
	}
	tokenID, err := r.uint64()
	if err != nil {
		return nil, err
	}
	a.ID.TokenID = types.TokenID(tokenID)

	balance, err := r.uint64()
	if err != nil {
		return nil, err
	}
	a.Balance = currency.Balance(balance)

	nonce, err := r.uint32()
	if err != nil {
		return nil, err
	}
	a.Nonce = currency.Nonce(nonce)

	hasDelegate, err := r.byte()
	if err != nil {
		return nil, err
	}
	if hasDelegate == 1 {
		var d types.PublicKey
		if err := r.read(d[:]); err != nil {
			return nil, err
		}
		a.Delegate = &d
	}

	if err := r.read(a.ReceiptChainHash[:]); err != nil {
		return nil, err
	}
	if err := r.read(a.VotingFor[:]); err != nil {
		return nil, err
	}

	timing, err := readTiming(r)
	if err != nil {
		return nil, err
	}
	a.Timing = timing

	perm, err := readPermissions(r)
	if err != nil {
		return nil, err
	}
	a.Permissions = perm

	tokenSymbol, err := r.lenPrefixed()
	if err != nil {
		return nil, err
	}
	a.TokenSymbol = string(tokenSymbol)

	hasZkApp, err := r.byte()
	if err != nil {
		return nil, err
	}
	if hasZkApp == 1 {
		z, err := readZkApp(r)
		if err != nil {
			return nil, err
		}
		a.ZkApp = z
	}

	return a, nil
}

func appendTimingBytes(buf []byte, t Timing) []byte {
	if t.IsUntimed() {
		return append(buf, 0)
	}
	v := t.Vesting
	buf = append(buf, 1)
	buf = appendUint64(buf, uint64(v.InitialMinimumBalance))
	buf = appendUint32(buf, uint32(v.CliffTime))
	buf = appendUint64(buf, uint64(v.CliffAmount))
	buf = appendUint32(buf, uint32(v.VestingPeriod))
	buf = appendUint64(buf, uint64(v.VestingIncrement))
	return buf
}

func readTiming(r *byteReader) (Timing, error) {
	tag, err := r.byte()
	if err != nil {
		return Timing{}, err
	}
	if tag == 0 {
		return Untimed(), nil
	}
	initial, err := r.uint64()
	if err != nil {
		return Timing{}, err
	}
	cliffTime, err := r.uint32()
	if err != nil {
		return Timing{}, err
	}
	cliffAmount, err := r.uint64()
	if err != nil {
		return Timing{}, err
	}
	period, err := r.uint32()
	if err != nil {
		return Timing{}, err
	}
	increment, err := r.uint64()
	if err != nil {
		return Timing{}, err
	}
	return Timing{Vesting: &VestingSchedule{
		InitialMinimumBalance: currency.Balance(initial),
		CliffTime:             currency.Slot(cliffTime),
		CliffAmount:           currency.Balance(cliffAmount),
		VestingPeriod:         currency.Slot(period),
		VestingIncrement:      currency.Balance(increment),
	}}, nil
}

func appendPermissionsBytes(buf []byte, p Permissions) []byte {
	buf = append(buf, byte(p.EditState), byte(p.Send), byte(p.Receive),
		byte(p.SetDelegate), byte(p.SetPermissions),
		byte(p.SetVerificationKey.Auth))
	buf = appendUint32(buf, uint32(p.SetVerificationKey.TxnVersion))
	buf = append(buf, byte(p.SetZkappURI), byte(p.EditActionState),
		byte(p.SetTokenSymbol), byte(p.IncrementNonce),
		byte(p.SetVotingFor), byte(p.SetTiming))
	return buf
}

func readPermissions(r *byteReader) (Permissions, error) {
	fields, err := r.bytes(6)
	if err != nil {
		return Permissions{}, err
	}
	txnVersion, err := r.uint32()
	if err != nil {
		return Permissions{}, err
	}
	rest, err := r.bytes(6)
	if err != nil {
		return Permissions{}, err
	}
	return Permissions{
		EditState:      AuthRequired(fields[0]),
		Send:           AuthRequired(fields[1]),
		Receive:        AuthRequired(fields[2]),
		SetDelegate:    AuthRequired(fields[3]),
		SetPermissions: AuthRequired(fields[4]),
		SetVerificationKey: VerificationKeyPermission{
			Auth:       AuthRequired(fields[5]),
			TxnVersion: TransactionVersion(txnVersion),
		},
		SetZkappURI:     AuthRequired(rest[0]),
		EditActionState: AuthRequired(rest[1]),
		SetTokenSymbol:  AuthRequired(rest[2]),
		IncrementNonce:  AuthRequired(rest[3]),
		SetVotingFor:    AuthRequired(rest[4]),
		SetTiming:       AuthRequired(rest[5]),
	}, nil
}

func appendZkAppBytes(buf []byte, z *ZkAppState) []byte {
	for _, f := range z.AppState {
		buf = append(buf, f[:]...)
	}
	if z.VerificationKey != nil {
		buf = append(buf, 1)
		buf = append(buf, z.VerificationKey.Hash[:]...)
		buf = appendLenPrefixed(buf, z.VerificationKey.Data)
	} else {
		buf = append(buf, 0)
	}
	buf = appendUint32(buf, z.ZkAppVersion)
	for _, f := range z.ActionState {
		buf = append(buf, f[:]...)
	}
	buf = appendUint32(buf, uint32(z.LastActionSlot))
	if z.ProvedState {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	buf = appendLenPrefixed(buf, []byte(z.ZkAppURI))
	return buf
}

func readZkApp(r *byteReader) (*ZkAppState, error) {
	z := &ZkAppState{}
	for i := range z.AppState {
		if err := r.read(z.AppState[i][:]); err != nil {
			return nil, err
		}
	}
	hasVK, err := r.byte()
	if err != nil {
		return nil, err
	}
	if hasVK == 1 {
		var hash types.Hash
		if err := r.read(hash[:]); err != nil {
			return nil, err
		}
		data, err := r.lenPrefixed()
		if err != nil {
			return nil, err
		}
		z.VerificationKey = &VerificationKey{Hash: hash, Data: data}
	}
	version, err := r.uint32()
	if err != nil {
		return nil, err
	}
	z.ZkAppVersion = version
	for i := range z.ActionState {
		if err := r.read(z.ActionState[i][:]); err != nil {
			return nil, err
		}
	}
	lastSlot, err := r.uint32()
	if err != nil {
		return nil, err
	}
	z.LastActionSlot = currency.Slot(lastSlot)
	proved, err := r.byte()
	if err != nil {
		return nil, err
	}
	z.ProvedState = proved == 1
	uri, err := r.lenPrefixed()
	if err != nil {
		return nil, err
	}
	z.ZkAppURI = string(uri)
	return z, nil
}

func appendLenPrefixed(buf, data []byte) []byte {
	buf = appendUint32(buf, uint32(len(data)))
	return append(buf, data...)
}

// byteReader is a minimal cursor over a Marshal-ed buffer.
type byteReader struct {
	buf []byte
	pos int
}

func (r *byteReader) read(dst []byte) error {
	if len(r.buf)-r.pos < len(dst) {
		return fmt.Errorf("account: codec: truncated input")
	}
	copy(dst, r.buf[r.pos:])
	r.pos += len(dst)
	return nil
}

func (r *byteReader) bytes(n int) ([]byte, error) {
	if len(r.buf)-r.pos < n {
		return nil, fmt.Errorf("account: codec: truncated input")
	}
	out := r.buf[r.pos : r.pos+n]
	r.pos += n
	return out, nil
}

func (r *byteReader) byte() (byte, error) {
	b, err := r.bytes(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *byteReader) uint32() (uint32, error) {
	b, err := r.bytes(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (r *byteReader) uint64() (uint64, error) {
	b, err := r.bytes(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

func (r *byteReader) lenPrefixed() ([]byte, error) {
	n, err := r.uint32()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	return r.bytes(int(n))
}

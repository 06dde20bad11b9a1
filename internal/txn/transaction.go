package txn

import (
	"encoding/binary"

	"github.com/minagoat/ccore/internal/currency"
	"github.com/minagoat/ccore/pkg/types"
)

// UserCommandKind tags a UserCommand's variant.
type UserCommandKind uint8

const (
	UserCommandSigned UserCommandKind = iota
	UserCommandZkApp
)

// UserCommand is either a SignedCommand or a ZkAppCommand (spec.md §3.4).
type UserCommand struct {
	Kind   UserCommandKind
	Signed *SignedCommand
	ZkApp  *ZkAppCommand
}

// FeePayer returns the command's fee-paying AccountId in the default
// token, regardless of variant (spec.md §4.H).
func (c *UserCommand) FeePayer() types.AccountID {
	if c.Kind == UserCommandZkApp {
		return c.ZkApp.FeePayerID()
	}
	return c.Signed.FeePayer()
}

// Fee returns the fee charged to the fee payer.
func (c *UserCommand) Fee() currency.Fee {
	if c.Kind == UserCommandZkApp {
		return c.ZkApp.FeePayer.Body.Fee
	}
	return c.Signed.Payload.Common.Fee
}

// FeeTransferSingle credits one SNARK worker (spec.md §3.4).
type FeeTransferSingle struct {
	Receiver types.PublicKey
	Fee      currency.Fee
	Token    types.TokenID
}

// FeeTransfer is one or two single-receiver transfers paid out of block
// fees.
type FeeTransfer struct {
	Receivers []FeeTransferSingle
}

// Coinbase is the block producer's minted reward, optionally carrying a
// fee transfer to a SNARK worker (spec.md §3.4/§4.I.2.3).
type Coinbase struct {
	Receiver    types.PublicKey
	Amount      currency.Amount
	FeeTransfer *FeeTransferSingle
}

// CreateCoinbase builds a Coinbase, eliding the fee transfer when its
// receiver is the same public key as the coinbase receiver (spec.md
// "Coinbase::create... elides fee_transfer when fee_transfer.receiver ==
// receiver"; scenario 6 in §8.4).
func CreateCoinbase(amount currency.Amount, receiver types.PublicKey, feeTransfer *FeeTransferSingle) *Coinbase {
	cb := &Coinbase{Receiver: receiver, Amount: amount}
	if feeTransfer != nil && feeTransfer.Receiver != receiver {
		cb.FeeTransfer = feeTransfer
	}
	return cb
}

// TransactionKind tags a Transaction's variant (spec.md §3.4).
type TransactionKind uint8

const (
	TransactionCommand TransactionKind = iota
	TransactionFeeTransfer
	TransactionCoinbase
)

// Transaction is the applier's unit of work: one of Command, FeeTransfer
// or Coinbase (spec.md §3.4).
type Transaction struct {
	Kind        TransactionKind
	Command     *UserCommand
	FeeTransfer *FeeTransfer
	Coinbase    *Coinbase
}

// Hash computes a domain-separated structural hash identifying this
// transaction, reproducing the teacher's ComputeHash/serializeForHash
// shape (pkg/types/transaction.go) field-by-field instead of over an
// opaque shielded payload.
func (t *Transaction) Hash() types.Hash {
	buf := t.serializeForHash()
	return types.HashBytes("ccore/transaction", buf)
}

func (t *Transaction) serializeForHash() []byte {
	buf := make([]byte, 0, 256)
	buf = append(buf, byte(t.Kind))

	switch t.Kind {
	case TransactionCommand:
		cmd := t.Command
		buf = append(buf, byte(cmd.Kind))
		buf = append(buf, cmd.FeePayer().PublicKey[:]...)
		buf = appendUint64(buf, uint64(cmd.Fee()))
		if cmd.Kind == UserCommandSigned {
			sc := cmd.Signed
			buf = append(buf, byte(sc.Payload.Body.Kind))
			buf = appendUint32(buf, uint32(sc.Payload.Common.Nonce))
			if sc.Payload.Body.Kind == BodyPayment {
				buf = append(buf, sc.Payload.Body.Payment.Receiver[:]...)
				buf = appendUint64(buf, uint64(sc.Payload.Body.Payment.Amount))
			} else {
				buf = append(buf, sc.Payload.Body.StakeDelegation.NewDelegate[:]...)
			}
		} else {
			forestHash := cmd.ZkApp.AccountUpdates.Hash()
			buf = append(buf, forestHash[:]...)
		}
	case TransactionFeeTransfer:
		for _, ft := range t.FeeTransfer.Receivers {
			buf = append(buf, ft.Receiver[:]...)
			buf = appendUint64(buf, uint64(ft.Fee))
			buf = appendUint64(buf, uint64(ft.Token))
		}
	case TransactionCoinbase:
		cb := t.Coinbase
		buf = append(buf, cb.Receiver[:]...)
		buf = appendUint64(buf, uint64(cb.Amount))
		if cb.FeeTransfer != nil {
			buf = append(buf, cb.FeeTransfer.Receiver[:]...)
			buf = appendUint64(buf, uint64(cb.FeeTransfer.Fee))
		}
	}

	return buf
}

func appendUint32(buf []byte, v uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return append(buf, b[:]...)
}

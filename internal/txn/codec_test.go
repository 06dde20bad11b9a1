package txn

import (
	"testing"

	"github.com/minagoat/ccore/internal/account"
	"github.com/minagoat/ccore/internal/currency"
	"github.com/minagoat/ccore/pkg/types"
)

func pk(seed byte) types.PublicKey {
	var p types.PublicKey
	p[0] = seed
	return p
}

func TestMarshalUnmarshalPaymentRoundTrip(t *testing.T) {
	tx := &Transaction{
		Kind: TransactionCommand,
		Command: &UserCommand{
			Kind: UserCommandSigned,
			Signed: &SignedCommand{
				Payload: SignedCommandPayload{
					Common: Common{
						Fee:        currency.Fee(1_000_000),
						FeePayerPK: pk(1),
						Nonce:      currency.Nonce(4),
						ValidUntil: currency.Slot(100),
						Memo:       types.Memo{0: 'h', 1: 'i'},
					},
					Body: Body{
						Kind:    BodyPayment,
						Payment: PaymentPayload{Receiver: pk(2), Amount: currency.Amount(50_000_000)},
					},
				},
				Signer:    pk(1),
				Signature: Signature{9, 9, 9},
			},
		},
	}

	data := tx.Marshal()
	got, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Hash() != tx.Hash() {
		t.Errorf("expected round-tripped transaction to hash identically")
	}
	if got.Command.Signed.Payload.Common.Nonce != tx.Command.Signed.Payload.Common.Nonce {
		t.Errorf("expected nonce to round-trip")
	}
	if got.Command.Signed.Payload.Body.Payment.Amount != tx.Command.Signed.Payload.Body.Payment.Amount {
		t.Errorf("expected payment amount to round-trip")
	}
	if got.Command.Signed.Signature != tx.Command.Signed.Signature {
		t.Errorf("expected signature to round-trip")
	}
}

func TestMarshalUnmarshalStakeDelegationRoundTrip(t *testing.T) {
	tx := &Transaction{
		Kind: TransactionCommand,
		Command: &UserCommand{
			Kind: UserCommandSigned,
			Signed: &SignedCommand{
				Payload: SignedCommandPayload{
					Common: Common{FeePayerPK: pk(1), Nonce: currency.Nonce(1)},
					Body: Body{
						Kind:            BodyStakeDelegation,
						StakeDelegation: StakeDelegationPayload{NewDelegate: pk(3)},
					},
				},
				Signer: pk(1),
			},
		},
	}

	got, err := Unmarshal(tx.Marshal())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Command.Signed.Payload.Body.StakeDelegation.NewDelegate != pk(3) {
		t.Errorf("expected new delegate to round-trip")
	}
}

func TestMarshalUnmarshalCoinbaseWithFeeTransferRoundTrip(t *testing.T) {
	cb := CreateCoinbase(currency.Amount(720_000_000_000), pk(1), &FeeTransferSingle{
		Receiver: pk(2),
		Fee:      currency.Fee(1_000_000),
		Token:    types.DefaultTokenID,
	})
	tx := &Transaction{Kind: TransactionCoinbase, Coinbase: cb}

	got, err := Unmarshal(tx.Marshal())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Coinbase.FeeTransfer == nil || got.Coinbase.FeeTransfer.Receiver != pk(2) {
		t.Errorf("expected fee transfer to round-trip, got %+v", got.Coinbase)
	}
	if got.Coinbase.Amount != cb.Amount {
		t.Errorf("expected coinbase amount to round-trip")
	}
}

func TestMarshalUnmarshalCoinbaseElidedFeeTransfer(t *testing.T) {
	cb := CreateCoinbase(currency.Amount(720_000_000_000), pk(1), &FeeTransferSingle{Receiver: pk(1)})
	tx := &Transaction{Kind: TransactionCoinbase, Coinbase: cb}

	got, err := Unmarshal(tx.Marshal())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Coinbase.FeeTransfer != nil {
		t.Errorf("expected elided fee transfer to stay nil across the wire")
	}
}

func TestMarshalUnmarshalFeeTransferRoundTrip(t *testing.T) {
	tx := &Transaction{
		Kind: TransactionFeeTransfer,
		FeeTransfer: &FeeTransfer{Receivers: []FeeTransferSingle{
			{Receiver: pk(1), Fee: currency.Fee(100), Token: types.DefaultTokenID},
			{Receiver: pk(2), Fee: currency.Fee(200), Token: types.DefaultTokenID},
		}},
	}

	got, err := Unmarshal(tx.Marshal())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got.FeeTransfer.Receivers) != 2 {
		t.Fatalf("expected 2 receivers, got %d", len(got.FeeTransfer.Receivers))
	}
	if got.FeeTransfer.Receivers[1].Fee != currency.Fee(200) {
		t.Errorf("expected second receiver fee to round-trip")
	}
}

func TestMarshalUnmarshalZkAppCommandFlattensForest(t *testing.T) {
	newState := types.HashBytes("test", []byte("new-state"))
	id := types.NewAccountID(pk(5))
	tree := &Tree{
		AccountUpdate: &AccountUpdate{
			Body: AccountUpdateBody{
				AccountID: id,
				Update: AccountUpdateModifications{
					AppState: [account.AppStateSlots]SetOrKeep[types.Hash]{0: SetTo(newState)},
				},
				BalanceChange:     currency.OfUnsigned[currency.Amount](1_000_000),
				AuthorizationKind: AuthorizationKind{Kind: account.ControlSignature},
			},
			Authorization: Control{Kind: account.ControlSignature, Signature: Signature{1, 2, 3}},
		},
		Calls: CallForest{{
			AccountUpdate: &AccountUpdate{
				Body: AccountUpdateBody{
					AccountID:         types.NewAccountID(pk(6)),
					AuthorizationKind: AuthorizationKind{Kind: account.ControlNone},
				},
			},
		}},
	}

	tx := &Transaction{
		Kind: TransactionCommand,
		Command: &UserCommand{
			Kind: UserCommandZkApp,
			ZkApp: &ZkAppCommand{
				FeePayer: FeePayer{
					Body: FeePayerBody{PublicKey: pk(1), Fee: currency.Fee(1_000_000), Nonce: currency.Nonce(2)},
				},
				AccountUpdates: CallForest{tree},
				Memo:           types.Memo{0: 'm'},
			},
		},
	}

	got, err := Unmarshal(tx.Marshal())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	flat := got.Command.ZkApp.AccountUpdates.PreOrder()
	if len(flat) != 2 {
		t.Fatalf("expected the forest to flatten to 2 pre-order updates, got %d", len(flat))
	}
	if flat[0].Body.AccountID != id {
		t.Errorf("expected first update's account id to round-trip")
	}
	if flat[0].Body.Update.AppState[0].Value != newState {
		t.Errorf("expected app state update to round-trip")
	}
	if flat[1].Body.AccountID != types.NewAccountID(pk(6)) {
		t.Errorf("expected second update's account id to round-trip")
	}
	if got.Command.ZkApp.FeePayer.Body.Nonce != currency.Nonce(2) {
		t.Errorf("expected fee payer nonce to round-trip")
	}
}

func TestUnmarshalRejectsTruncatedInput(t *testing.T) {
	if _, err := Unmarshal([]byte{0, 1, 2}); err == nil {
		t.Errorf("expected an error for truncated input")
	}
}

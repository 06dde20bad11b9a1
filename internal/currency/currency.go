// Package currency implements the checked signed/unsigned magnitude algebra
// that underpins supply-conservation proofs: fixed-width magnitudes with
// option-typed (checked), wrapping, and overflow-flagged arithmetic.
package currency

import (
	"fmt"
	"strconv"
	"strings"
)

// magnitude is the set of underlying widths a currency magnitude may use.
type magnitude interface {
	~uint64 | ~uint32
}

// Amount, Balance and Fee are 64-bit nanomina magnitudes. Balance and Amount
// are kept as distinct types even though they share a representation, so
// that e.g. adding a Fee to a Balance requires an explicit conversion at the
// call site (mirrors the teacher's distinct-struct-per-concept style and the
// source's distinct Rust newtypes).
type Amount uint64

// Balance is the magnitude carried by an account.
type Balance uint64

// Fee is the magnitude a fee payer is charged.
type Fee uint64

// Slot, Nonce and Length are 32-bit counters.
type Slot uint32
type Nonce uint32
type Length uint32

// checkedAdd returns (a+b, true) unless it would overflow T's width.
func checkedAdd[T magnitude](a, b T) (T, bool) {
	sum := a + b
	if sum < a {
		return 0, false
	}
	return sum, true
}

// checkedSub returns (a-b, true) unless b > a.
func checkedSub[T magnitude](a, b T) (T, bool) {
	if b > a {
		return 0, false
	}
	return a - b, true
}

// checkedMul returns (a*b, true) unless it would overflow T's width.
func checkedMul[T magnitude](a, b T) (T, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	product := a * b
	if product/a != b {
		return 0, false
	}
	return product, true
}

// checkedDiv returns (a/b, true) unless b is zero.
func checkedDiv[T magnitude](a, b T) (T, bool) {
	if b == 0 {
		return 0, false
	}
	return a / b, true
}

// checkedRem returns (a%b, true) unless b is zero.
func checkedRem[T magnitude](a, b T) (T, bool) {
	if b == 0 {
		return 0, false
	}
	return a % b, true
}

// wrappingAdd adds with two's-complement-style wraparound (Go's unsigned
// overflow already wraps; named for parity with the spec's wrapping_add).
func wrappingAdd[T magnitude](a, b T) T { return a + b }

func wrappingSub[T magnitude](a, b T) T { return a - b }

func wrappingMul[T magnitude](a, b T) T { return a * b }

// addFlagged returns (a+b, overflowed).
func addFlagged[T magnitude](a, b T) (T, bool) {
	sum := wrappingAdd(a, b)
	return sum, sum < a
}

// subFlagged returns (a-b, underflowed).
func subFlagged[T magnitude](a, b T) (T, bool) {
	return wrappingSub(a, b), a < b
}

// --- Amount ---

func (a Amount) CheckedAdd(b Amount) (Amount, bool) { return checkedAdd(a, b) }
func (a Amount) CheckedSub(b Amount) (Amount, bool) { return checkedSub(a, b) }
func (a Amount) CheckedMul(b Amount) (Amount, bool) { return checkedMul(a, b) }
func (a Amount) CheckedDiv(b Amount) (Amount, bool) { return checkedDiv(a, b) }
func (a Amount) CheckedRem(b Amount) (Amount, bool) { return checkedRem(a, b) }
func (a Amount) WrappingAdd(b Amount) Amount         { return wrappingAdd(a, b) }
func (a Amount) WrappingSub(b Amount) Amount         { return wrappingSub(a, b) }
func (a Amount) AddFlagged(b Amount) (Amount, bool)  { return addFlagged(a, b) }
func (a Amount) SubFlagged(b Amount) (Amount, bool)  { return subFlagged(a, b) }
func (a Amount) IsZero() bool                        { return a == 0 }
func (a Amount) Scale(n uint64) (Amount, bool) {
	product, ok := checkedMul(uint64(a), n)
	return Amount(product), ok
}

// --- Balance ---

func (b Balance) CheckedAdd(o Balance) (Balance, bool) { return checkedAdd(b, o) }
func (b Balance) CheckedSub(o Balance) (Balance, bool) { return checkedSub(b, o) }
func (b Balance) WrappingAdd(o Balance) Balance         { return wrappingAdd(b, o) }
func (b Balance) WrappingSub(o Balance) Balance         { return wrappingSub(b, o) }
func (b Balance) AddFlagged(o Balance) (Balance, bool)  { return addFlagged(b, o) }
func (b Balance) SubFlagged(o Balance) (Balance, bool)  { return subFlagged(b, o) }
func (b Balance) IsZero() bool                          { return b == 0 }

// AddAmount adds an Amount to a Balance, option-typed.
func (b Balance) AddAmount(a Amount) (Balance, bool) {
	return checkedAdd(b, Balance(a))
}

// SubAmount subtracts an Amount from a Balance, option-typed.
func (b Balance) SubAmount(a Amount) (Balance, bool) {
	return checkedSub(b, Balance(a))
}

// AddSignedAmountFlagged applies a signed balance change, returning the
// result and an overflow flag. Per spec.md §4.A this MUST NOT short-circuit
// on overflow: the caller (the two-pass applier) decides failure policy.
func (b Balance) AddSignedAmountFlagged(delta Signed[Amount]) (Balance, bool) {
	switch delta.Sgn {
	case Pos:
		return b.AddFlagged(Balance(delta.Magnitude))
	default:
		return b.SubFlagged(Balance(delta.Magnitude))
	}
}

// --- Fee ---

func (f Fee) CheckedAdd(o Fee) (Fee, bool) { return checkedAdd(f, o) }
func (f Fee) IsZero() bool                 { return f == 0 }

// --- Nonce ---

// Incr returns the successor nonce, wrapping on overflow (matches the
// source's Nonce::incr, which is infallible in practice since nonces never
// approach 2^32).
func (n Nonce) Incr() Nonce { return n + 1 }

// --- of_mina_string_exn / to_mina_string (R2) ---

const minaPrecision = 9

// AmountOfMinaString parses a decimal MINA string into nanomina. Strings
// with more than 9 fractional digits are truncated; fewer are zero-padded.
// This reproduces original_source/core/src/number.rs's
// `of_mina_string_exn` exactly (truncate, don't round).
func AmountOfMinaString(input string) (Amount, error) {
	var digits string
	if !strings.Contains(input, ".") {
		digits = input + strings.Repeat("0", minaPrecision)
	} else {
		parts := strings.Split(input, ".")
		if len(parts) != 2 {
			return 0, fmt.Errorf("currency: invalid mina string %q", input)
		}
		whole, decimal := parts[0], parts[1]
		if len(decimal) > minaPrecision {
			digits = whole + decimal[:minaPrecision]
		} else {
			digits = whole + decimal + strings.Repeat("0", minaPrecision-len(decimal))
		}
	}

	n, err := strconv.ParseUint(digits, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("currency: invalid mina string %q: %w", input, err)
	}
	return Amount(n), nil
}

// ToMinaString renders nanomina back to a decimal MINA string with up to 9
// fractional digits, trailing zeros trimmed. Round-trips with
// AmountOfMinaString for any value with <= 9 fractional digits (R2).
func (a Amount) ToMinaString() string {
	whole := uint64(a) / 1_000_000_000
	frac := uint64(a) % 1_000_000_000
	if frac == 0 {
		return strconv.FormatUint(whole, 10)
	}
	fracStr := strings.TrimRight(fmt.Sprintf("%09d", frac), "0")
	return fmt.Sprintf("%d.%s", whole, fracStr)
}

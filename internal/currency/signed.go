package currency

// Sgn is the sign of a Signed magnitude. Zero is always canonically Pos
// (I7).
type Sgn uint8

const (
	Pos Sgn = iota
	Neg
)

// Negate flips the sign.
func (s Sgn) Negate() Sgn {
	if s == Pos {
		return Neg
	}
	return Pos
}

// signedMagnitude is the set of unsigned widths Signed can wrap; the
// arithmetic below uses the package's generic checkedAdd/addFlagged helpers
// on the underlying integer. Amount is the only magnitude the applier signs in practice, but the
// algebra is written generically per spec.md §3.5.
type signedMagnitude interface {
	~uint64 | ~uint32
}

// Signed pairs a magnitude with a sign. The zero value of any Signed is
// canonically (0, Pos).
type Signed[M signedMagnitude] struct {
	Magnitude M
	Sgn       Sgn
}

// Zero returns the canonical zero signed value.
func Zero[M signedMagnitude]() Signed[M] {
	return Signed[M]{Magnitude: 0, Sgn: Pos}
}

// Create builds a Signed value, normalizing the sign to Pos when the
// magnitude is zero.
func Create[M signedMagnitude](magnitude M, sgn Sgn) Signed[M] {
	if magnitude == 0 {
		return Signed[M]{Magnitude: 0, Sgn: Pos}
	}
	return Signed[M]{Magnitude: magnitude, Sgn: sgn}
}

// OfUnsigned builds a positive Signed value from a plain magnitude.
func OfUnsigned[M signedMagnitude](magnitude M) Signed[M] {
	return Create(magnitude, Pos)
}

// IsZero reports whether the magnitude is zero.
func (s Signed[M]) IsZero() bool { return s.Magnitude == 0 }

// IsPos reports whether the sign is Pos (true for canonical zero).
func (s Signed[M]) IsPos() bool { return s.Sgn == Pos }

// IsNeg reports whether the sign is Neg.
func (s Signed[M]) IsNeg() bool { return s.Sgn == Neg }

// Negate flips the sign, leaving canonical zero untouched.
func (s Signed[M]) Negate() Signed[M] {
	if s.IsZero() {
		return s
	}
	return Signed[M]{Magnitude: s.Magnitude, Sgn: s.Sgn.Negate()}
}

// Add adds two signed values, returning (result, false) on magnitude
// overflow when signs agree. Equal-magnitude opposite signs resolve to
// canonical zero. Grounded exactly on original_source/core/src/number.rs
// Signed::add.
func (s Signed[M]) Add(rhs Signed[M]) (Signed[M], bool) {
	if s.Sgn == rhs.Sgn {
		magnitude, ok := checkedAdd(s.Magnitude, rhs.Magnitude)
		if !ok {
			return Signed[M]{}, false
		}
		return Create(magnitude, s.Sgn), true
	}

	switch {
	case s.Magnitude < rhs.Magnitude:
		return Create(rhs.Magnitude-s.Magnitude, rhs.Sgn), true
	case s.Magnitude > rhs.Magnitude:
		return Create(s.Magnitude-rhs.Magnitude, s.Sgn), true
	default:
		return Zero[M](), true
	}
}

// AddFlagged adds two signed values with an overflow flag instead of a
// checked option, preserving sign with precedence given to the larger
// magnitude; never fails when signs differ (I6/I7). Grounded exactly on
// original_source/core/src/number.rs Signed::add_flagged.
func (s Signed[M]) AddFlagged(rhs Signed[M]) (Signed[M], bool) {
	if s.Sgn == rhs.Sgn {
		magnitude, overflow := addFlagged(s.Magnitude, rhs.Magnitude)
		return Signed[M]{Magnitude: magnitude, Sgn: s.Sgn}, overflow
	}

	switch {
	case s.Magnitude < rhs.Magnitude:
		return Create(rhs.Magnitude-s.Magnitude, rhs.Sgn), false
	case s.Magnitude > rhs.Magnitude:
		return Create(s.Magnitude-rhs.Magnitude, s.Sgn), false
	default:
		return Zero[M](), false
	}
}

// Package fixed implements the 10^-8 fixed-point representation used for
// every price, size and volume in the system. A value is a signed 64-bit
// integer holding real*10^8; parsing truncates beyond eight fractional
// digits and all arithmetic widens to 128 bits before rescaling.
// Overflow never panics: results saturate at MaxFx/MinFx.
package fixed

import (
	"math"
	"math/bits"
	"strings"
)

// Fx is a fixed-point decimal: real value * 10^8.
type Fx int64

const (
	// Scale is the fixed-point denominator.
	Scale = 100_000_000
	// Digits is the number of fractional decimal digits carried.
	Digits = 8

	MaxFx Fx = math.MaxInt64
	MinFx Fx = math.MinInt64

	maxWhole = uint64(math.MaxInt64 / Scale) // largest representable integer part
)

// Parse converts a decimal literal to Fx. The fractional part is truncated
// to eight digits; shorter fractions are zero-padded. An empty string
// parses to 0. Values beyond the representable range saturate.
// ok is false only for malformed input.
func Parse(s string) (Fx, bool) {
	if s == "" {
		return 0, true
	}

	neg := false
	switch s[0] {
	case '-':
		neg = true
		s = s[1:]
	case '+':
		s = s[1:]
	}
	if s == "" {
		return 0, false
	}

	intPart, fracPart := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, fracPart = s[:i], s[i+1:]
	}

	var whole uint64
	for i := 0; i < len(intPart); i++ {
		c := intPart[i]
		if c < '0' || c > '9' {
			return 0, false
		}
		if whole > maxWhole {
			return saturate(neg), true
		}
		whole = whole*10 + uint64(c-'0')
	}
	if whole > maxWhole {
		return saturate(neg), true
	}

	var frac uint64
	for i := 0; i < Digits; i++ {
		var d uint64
		if i < len(fracPart) {
			c := fracPart[i]
			if c < '0' || c > '9' {
				return 0, false
			}
			d = uint64(c - '0')
		}
		frac = frac*10 + d
	}
	// digits beyond the eighth are truncated, but must still be decimal
	for i := Digits; i < len(fracPart); i++ {
		if c := fracPart[i]; c < '0' || c > '9' {
			return 0, false
		}
	}

	mag := whole*Scale + frac
	if mag > uint64(math.MaxInt64) {
		return saturate(neg), true
	}
	if neg {
		return Fx(-int64(mag)), true
	}
	return Fx(mag), true
}

// MustParse is Parse for literals known to be well formed.
func MustParse(s string) Fx {
	v, ok := Parse(s)
	if !ok {
		panic("fixed: malformed literal " + s)
	}
	return v
}

// Format renders v with the requested number of fractional digits,
// truncating. decimals outside 0..8 is clamped.
func Format(v Fx, decimals int) string {
	if decimals < 0 {
		decimals = 0
	}
	if decimals > Digits {
		decimals = Digits
	}

	var b strings.Builder
	mag := uint64(v)
	if v < 0 {
		b.WriteByte('-')
		mag = uint64(-v) // MinInt64 wraps to its own magnitude
	}

	whole := mag / Scale
	frac := mag % Scale

	b.WriteString(utoa(whole))
	if decimals > 0 {
		b.WriteByte('.')
		digits := pad8(frac)
		b.WriteString(digits[:decimals])
	}
	return b.String()
}

// String renders with full 8-digit precision.
func (v Fx) String() string { return Format(v, Digits) }

// MarshalJSON encodes the value as a quoted decimal string so consumers
// never see binary fixed-point internals.
func (v Fx) MarshalJSON() ([]byte, error) {
	return []byte(`"` + Format(v, Digits) + `"`), nil
}

// UnmarshalJSON accepts either a quoted decimal string or a bare JSON
// number literal.
func (v *Fx) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	parsed, ok := Parse(s)
	if !ok {
		return &ParseError{Input: s}
	}
	*v = parsed
	return nil
}

// ParseError reports a malformed decimal literal.
type ParseError struct {
	Input string
}

func (e *ParseError) Error() string { return "fixed: malformed decimal " + e.Input }

// Mul returns a*b at Fx scale, computed through a 128-bit intermediate.
func Mul(a, b Fx) Fx {
	neg := (a < 0) != (b < 0)
	hi, lo := bits.Mul64(abs64(a), abs64(b))
	if hi >= Scale {
		return saturate(neg)
	}
	q, _ := bits.Div64(hi, lo, Scale)
	return clampMag(q, neg)
}

// Div returns a/b at Fx scale ((a*10^8)/b widened). Division by zero
// yields 0.
func Div(a, b Fx) Fx {
	if b == 0 {
		return 0
	}
	neg := (a < 0) != (b < 0)
	hi, lo := bits.Mul64(abs64(a), Scale)
	d := abs64(b)
	if hi >= d {
		return saturate(neg)
	}
	q, _ := bits.Div64(hi, lo, d)
	return clampMag(q, neg)
}

// Acc accumulates raw price*size products (scale 10^16) in 128 bits so a
// bucket's VWAP divides once, at the end, losing at most one ulp.
type Acc struct {
	hi uint64
	lo uint64
}

// AddProduct folds p*q (both Fx, both expected non-negative for market
// data) into the accumulator.
func (a *Acc) AddProduct(p, q Fx) {
	hi, lo := bits.Mul64(abs64(p), abs64(q))
	var carry uint64
	a.lo, carry = bits.Add64(a.lo, lo, 0)
	a.hi, _ = bits.Add64(a.hi, hi, carry)
}

// Reset zeroes the accumulator.
func (a *Acc) Reset() { a.hi, a.lo = 0, 0 }

// IsZero reports whether nothing has been accumulated.
func (a *Acc) IsZero() bool { return a.hi == 0 && a.lo == 0 }

// DivFx divides the 10^16-scaled sum by a 10^8-scaled divisor, producing
// a 10^8-scaled quotient: exactly sum(p*s)/sum(s) for VWAP. Saturates on
// overflow, returns 0 for a zero divisor.
func (a *Acc) DivFx(v Fx) Fx {
	if v <= 0 {
		return 0
	}
	d := uint64(v)
	if a.hi >= d {
		return MaxFx
	}
	q, _ := bits.Div64(a.hi, a.lo, d)
	return clampMag(q, false)
}

func abs64(v Fx) uint64 {
	if v < 0 {
		return uint64(-v)
	}
	return uint64(v)
}

func saturate(neg bool) Fx {
	if neg {
		return MinFx
	}
	return MaxFx
}

func clampMag(mag uint64, neg bool) Fx {
	if neg {
		if mag > uint64(math.MaxInt64)+1 {
			return MinFx
		}
		return Fx(-int64(mag))
	}
	if mag > uint64(math.MaxInt64) {
		return MaxFx
	}
	return Fx(mag)
}

func utoa(u uint64) string {
	if u == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for u > 0 {
		i--
		buf[i] = byte('0' + u%10)
		u /= 10
	}
	return string(buf[i:])
}

func pad8(frac uint64) string {
	var buf [Digits]byte
	for i := Digits - 1; i >= 0; i-- {
		buf[i] = byte('0' + frac%10)
		frac /= 10
	}
	return string(buf[:])
}

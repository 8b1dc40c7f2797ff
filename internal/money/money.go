// Package money provides the exact decimal type used for all scores and
// monetary amounts. Values are rationals; binary floating point never
// carries an amount.
package money

import (
	"fmt"
	"math/big"
	"strings"
)

// Dec is an immutable arbitrary-precision decimal. The zero value is 0.
type Dec struct {
	r *big.Rat
}

func (d Dec) rat() *big.Rat {
	if d.r == nil {
		return new(big.Rat)
	}
	return d.r
}

// Zero returns the decimal 0.
func Zero() Dec {
	return Dec{}
}

// FromInt returns the decimal for an integer.
func FromInt(n int64) Dec {
	return Dec{r: new(big.Rat).SetInt64(n)}
}

// Parse converts a decimal string such as "12.50" or "-0.003".
func Parse(s string) (Dec, error) {
	r, ok := new(big.Rat).SetString(s)
	if !ok {
		return Dec{}, fmt.Errorf("invalid decimal %q", s)
	}
	return Dec{r: r}, nil
}

// MustParse is Parse for literals known to be valid.
func MustParse(s string) Dec {
	d, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return d
}

// FromFloat converts a float, rounding to prec decimal places immediately
// so float noise never propagates.
func FromFloat(f float64, prec int) Dec {
	r := new(big.Rat)
	if _, ok := r.SetString(fmt.Sprintf("%.*f", prec, f)); !ok {
		return Dec{}
	}
	return Dec{r: r}
}

// Add returns d + o.
func (d Dec) Add(o Dec) Dec {
	return Dec{r: new(big.Rat).Add(d.rat(), o.rat())}
}

// Sub returns d - o.
func (d Dec) Sub(o Dec) Dec {
	return Dec{r: new(big.Rat).Sub(d.rat(), o.rat())}
}

// Mul returns d × o.
func (d Dec) Mul(o Dec) Dec {
	return Dec{r: new(big.Rat).Mul(d.rat(), o.rat())}
}

// Div returns d ÷ o. Division by zero panics, as with big.Rat.
func (d Dec) Div(o Dec) Dec {
	return Dec{r: new(big.Rat).Quo(d.rat(), o.rat())}
}

// DivInt returns d ÷ n.
func (d Dec) DivInt(n int64) Dec {
	return d.Div(FromInt(n))
}

// Neg returns -d.
func (d Dec) Neg() Dec {
	return Dec{r: new(big.Rat).Neg(d.rat())}
}

// Cmp compares d and o: -1 if d < o, 0 if equal, +1 if d > o.
func (d Dec) Cmp(o Dec) int {
	return d.rat().Cmp(o.rat())
}

// Sign returns -1, 0 or +1.
func (d Dec) Sign() int {
	return d.rat().Sign()
}

// IsZero reports whether d == 0.
func (d Dec) IsZero() bool {
	return d.Sign() == 0
}

// IsNegative reports whether d < 0.
func (d Dec) IsNegative() bool {
	return d.Sign() < 0
}

// Round returns d rounded to prec decimal places, ties away from zero.
func (d Dec) Round(prec int) Dec {
	r, _ := new(big.Rat).SetString(d.rat().FloatString(prec))
	return Dec{r: r}
}

// StringFixed renders d with exactly prec decimal places.
func (d Dec) StringFixed(prec int) string {
	return d.rat().FloatString(prec)
}

// Float64 returns the nearest float64. For display heuristics only.
func (d Dec) Float64() float64 {
	f, _ := d.rat().Float64()
	return f
}

// String renders d with up to six decimal places, trailing zeros trimmed.
func (d Dec) String() string {
	s := d.rat().FloatString(6)
	s = strings.TrimRight(s, "0")
	s = strings.TrimSuffix(s, ".")
	if s == "" || s == "-" {
		return "0"
	}
	return s
}

// MarshalJSON renders the value as a JSON string so no consumer is tempted
// to read it back as a float.
func (d Dec) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

// UnmarshalJSON accepts both string and bare-number forms.
func (d *Dec) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

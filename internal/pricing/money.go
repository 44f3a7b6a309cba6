package pricing

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Money is an exact decimal currency amount. The system bills in a single currency so
// no currency code is carried.
type Money struct {
	d decimal.Decimal
}

// Zero is the zero amount.
var Zero = Money{}

// NewMoney wraps a decimal value.
func NewMoney(d decimal.Decimal) Money {
	return Money{d: d}
}

// MoneyFromInt builds an amount from whole currency units.
func MoneyFromInt(v int64) Money {
	return Money{d: decimal.NewFromInt(v)}
}

// MustMoney parses a canonical decimal string and panics on failure. Intended for
// constants and tests, never for user input.
func MustMoney(s string) Money {
	return Money{d: decimal.RequireFromString(s)}
}

// ParseMoney converts a form value into an amount. Both "." and "," are accepted as the
// decimal separator and blanks used as thousand separators are ignored. Empty,
// unparseable or negative input yields zero.
func ParseMoney(raw string) Money {
	return Money{d: parseNonNegative(raw)}
}

// ParsePercent converts a form value such as "5,5" or "20" into a percentage with the
// same coercion rules as ParseMoney.
func ParsePercent(raw string) decimal.Decimal {
	return parseNonNegative(raw)
}

// ParseQuantity converts a form value into a unit count. Values below one, fractional
// values and garbage are clamped to one.
func ParseQuantity(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// ParseStrict parses raw with the same separator rules as ParseMoney but reports whether
// the value was a well-formed, non-negative number instead of coercing it to zero.
func ParseStrict(raw string) (decimal.Decimal, bool) {
	s := normalizeNumber(raw)
	if s == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		return decimal.Zero, false
	}
	return d, true
}

func parseNonNegative(raw string) decimal.Decimal {
	s := normalizeNumber(raw)
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		return decimal.Zero
	}
	return d
}

func normalizeNumber(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	s = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\u00a0', '\u202f', '\'', '_':
			return -1
		}
		return r
	}, s)
	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")
	switch {
	case lastComma >= 0 && lastDot >= 0:
		// The right-most separator is the decimal one, the other groups thousands.
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		if strings.Count(s, ",") > 1 {
			return ""
		}
		s = strings.Replace(s, ",", ".", 1)
	}
	// decimal.NewFromString accepts exponents; form input never legitimately does.
	if strings.ContainsAny(s, "eE") {
		return ""
	}
	return s
}

// Decimal exposes the underlying value.
func (m Money) Decimal() decimal.Decimal { return m.d }

// Add returns m + o.
func (m Money) Add(o Money) Money { return Money{d: m.d.Add(o.d)} }

// Sub returns m - o.
func (m Money) Sub(o Money) Money { return Money{d: m.d.Sub(o.d)} }

// Mul multiplies by a unit-less factor.
func (m Money) Mul(factor decimal.Decimal) Money { return Money{d: m.d.Mul(factor)} }

// MulInt multiplies by an integer count.
func (m Money) MulInt(n int) Money { return Money{d: m.d.Mul(decimal.NewFromInt(int64(n)))} }

// Percent returns pct percent of m. The result is exact.
func (m Money) Percent(pct decimal.Decimal) Money {
	return Money{d: m.d.Mul(pct).Shift(-2)}
}

// IsZero reports whether the amount is zero.
func (m Money) IsZero() bool { return m.d.IsZero() }

// IsNegative reports whether the amount is below zero.
func (m Money) IsNegative() bool { return m.d.IsNegative() }

// Equal compares by value, ignoring scale (1.5 == 1.50).
func (m Money) Equal(o Money) bool { return m.d.Equal(o.d) }

// Round2 rounds half-up to cents.
func (m Money) Round2() Money { return Money{d: m.d.Round(2)} }

// Display renders the amount with exactly two fractional digits, rounding half-up.
func (m Money) Display() string { return m.d.StringFixed(2) }

// String implements fmt.Stringer with the exact value.
func (m Money) String() string { return m.d.String() }

// MarshalJSON renders the display form as a JSON string.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(m.Display())), nil
}

// UnmarshalJSON accepts JSON strings and numbers. Malformed values decode to zero.
func (m *Money) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		*m = Zero
		return nil
	}
	if unquoted, err := strconv.Unquote(raw); err == nil {
		raw = unquoted
	}
	*m = ParseMoney(raw)
	return nil
}

func nonNegative(m Money) Money {
	if m.d.IsNegative() {
		return Zero
	}
	return m
}

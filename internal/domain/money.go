package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Cents is a fixed-point currency amount stored as integer hundredths.
type Cents int64

// Dollars returns the amount as a floating point value for display math.
func (c Cents) Dollars() float64 {
	return float64(c) / 100
}

// String renders the amount as a plain decimal, e.g. "1.10".
func (c Cents) String() string {
	sign := ""
	v := int64(c)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// USD renders the amount with a dollar prefix, e.g. "$0.10".
func (c Cents) USD() string {
	return "$" + c.String()
}

// MarshalJSON renders the amount as a decimal string, e.g. "1.10", the
// format the admin dashboard and payment exports expect.
func (c Cents) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(c.String())), nil
}

// UnmarshalJSON accepts both a decimal string and a bare number.
func (c *Cents) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	parsed, err := ParseCents(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ParseCents converts a decimal string such as "1.00" or "0.1" into Cents.
func ParseCents(s string) (Cents, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("parse amount: empty string")
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", s, err)
	}

	return Cents(math.Round(f * 100)), nil
}

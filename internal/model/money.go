package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// FlexPrice is a money amount in minor units (cents). The upstream retail
// API transports prices inconsistently as JSON strings ("19.99") or numbers
// (19.99), so amounts must be coerced before any arithmetic. FlexPrice
// accepts both forms on decode and always emits a decimal string on encode.
type FlexPrice int64

// UnmarshalJSON accepts "19.99", 19.99, or null.
func (p *FlexPrice) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*p = 0
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("price string: %w", err)
		}
		*p = FlexPrice(ParseCents(s))
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("price number: %w", err)
	}
	*p = FlexPrice(math.Round(f * 100))
	return nil
}

// MarshalJSON emits the canonical decimal string form.
func (p FlexPrice) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// Cents returns the amount in minor units.
func (p FlexPrice) Cents() int64 {
	return int64(p)
}

// String formats the amount in major units, e.g. 1999 → "19.99".
func (p FlexPrice) String() string {
	c := int64(p)
	neg := ""
	if c < 0 {
		neg = "-"
		c = -c
	}
	return fmt.Sprintf("%s%d.%02d", neg, c/100, c%100)
}

// ParseCents converts a decimal string in major units to cents.
// Tolerant of empty or malformed input (returns 0), since upstream price
// fields are occasionally blank.
// Examples: "99.00" → 9900, "1234.56" → 123456, "" → 0.
func ParseCents(s string) int64 {
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	// math.Round handles both positive and negative amounts.
	return int64(math.Round(f * 100))
}

// Subtotal sums quantity-weighted item prices across a cart snapshot.
// Stub products contribute zero until enrichment fills their price in.
func Subtotal(items []CartItem) FlexPrice {
	var total int64
	for i := range items {
		total += items[i].Product.Price.Cents() * int64(items[i].Quantity)
	}
	return FlexPrice(total)
}

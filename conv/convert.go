package conv

import "github.com/ericlagergren/decimal"

var zeroRounded decimal.Big

func init() {
	zeroRounded = decimal.Big{}
	zeroRounded.Context = decimal.Context128
	zeroRounded.Context.RoundingMode = decimal.ToNearestAway
	zeroRounded.Quantize(2)
}

// NewDecimalWithPrecision returns a zero decimal configured with the payout
// rounding context: 128 bit, round half away from zero, 2 decimal places.
func NewDecimalWithPrecision() *decimal.Big {
	z := zeroRounded
	return &z
}

// NewFromFloat builds a payout-context decimal from a config float.
func NewFromFloat(v float64) *decimal.Big {
	return NewDecimalWithPrecision().SetFloat64(v)
}

// RoundToPayout rounds the given amount in place to the payout currency
// precision (2 places, half-up). Applied per line item, never to aggregates.
func RoundToPayout(amount *decimal.Big) *decimal.Big {
	amount.Context = decimal.Context128
	amount.Context.RoundingMode = decimal.ToNearestAway
	amount.Quantize(2)
	return amount
}

// ClonePayout copies the amount into a fresh payout-context decimal.
func ClonePayout(amount *decimal.Big) *decimal.Big {
	dec := NewDecimalWithPrecision()
	dec.Copy(amount)
	return dec
}

// Min returns the smaller of a and b without mutating either.
func Min(a, b *decimal.Big) *decimal.Big {
	if a.Cmp(b) <= 0 {
		return ClonePayout(a)
	}
	return ClonePayout(b)
}

// Max returns the larger of a and b without mutating either.
func Max(a, b *decimal.Big) *decimal.Big {
	if a.Cmp(b) >= 0 {
		return ClonePayout(a)
	}
	return ClonePayout(b)
}

// RoundToPayoutDown rounds the given amount in place to 2 places toward
// zero. Used for pool shares, where the residue is swept to reserve.
func RoundToPayoutDown(amount *decimal.Big) *decimal.Big {
	amount.Context = decimal.Context128
	amount.Context.RoundingMode = decimal.ToZero
	amount.Quantize(2)
	return amount
}

// FloorQuo returns floor(a / b) as an integer valued decimal.
// Used for whole pair counts; b must be non zero.
func FloorQuo(a, b *decimal.Big) *decimal.Big {
	q := new(decimal.Big)
	q.Context = decimal.Context128
	q.Context.RoundingMode = decimal.ToZero
	q.QuoInt(a, b)
	return q
}

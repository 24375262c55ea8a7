package invoice

import (
	"fmt"
	"math"
)

// NegativePolicy decides what happens when the discount exceeds subtotal plus tax.
type NegativePolicy string

const (
	// AllowNegative reports the arithmetic result unchanged.
	AllowNegative NegativePolicy = "allow"
	// ClampToZero floors the grand total at zero.
	ClampToZero NegativePolicy = "clamp"
)

// ParseNegativePolicy maps a configuration value to a policy.
func ParseNegativePolicy(s string) (NegativePolicy, error) {
	switch NegativePolicy(s) {
	case "", AllowNegative:
		return AllowNegative, nil
	case ClampToZero:
		return ClampToZero, nil
	default:
		return "", fmt.Errorf("invoice: unknown negative total policy %q", s)
	}
}

// Totals bundles the derived figures for one document.
type Totals struct {
	Subtotal       float64 `json:"subtotal"`
	TaxAmount      float64 `json:"taxAmount"`
	DiscountAmount float64 `json:"discountAmount"`
	GrandTotal     float64 `json:"grandTotal"`
}

// Calculator derives totals under a negative total policy.
type Calculator struct {
	Policy NegativePolicy
}

// Compute returns all derived figures for doc.
func (c Calculator) Compute(doc Document) Totals {
	subtotal := Subtotal(doc.LineItems)
	tax := finite(TaxAmount(subtotal, doc.TaxRate))
	discount := finite(DiscountAmount(subtotal, doc.DiscountType, doc.DiscountValue))
	grand := finite(subtotal + tax - discount)
	if c.Policy == ClampToZero && grand < 0 {
		grand = 0
	}
	return Totals{
		Subtotal:       subtotal,
		TaxAmount:      tax,
		DiscountAmount: discount,
		GrandTotal:     grand,
	}
}

// LineTotal is quantity times unit price; non-numeric results count as zero.
func LineTotal(item LineItem) float64 {
	return finite(item.Quantity * item.UnitPrice)
}

// Subtotal sums the line totals of items. A sum that overflows counts as zero.
func Subtotal(items []LineItem) float64 {
	var sum float64
	for _, item := range items {
		sum += LineTotal(item)
	}
	return finite(sum)
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// TaxAmount applies a percentage rate to subtotal.
func TaxAmount(subtotal, rate float64) float64 {
	return subtotal * rate / 100
}

// DiscountAmount resolves the discount for subtotal.
func DiscountAmount(subtotal float64, kind DiscountType, value float64) float64 {
	if kind == DiscountPercent {
		return subtotal * value / 100
	}
	return value
}

// GrandTotal is subtotal plus tax minus discount, without clamping.
func GrandTotal(doc Document) float64 {
	return Calculator{Policy: AllowNegative}.Compute(doc).GrandTotal
}

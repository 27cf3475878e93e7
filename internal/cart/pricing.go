package cart

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// DiscountPolicy decides which markdowns count as a cart-level discount.
type DiscountPolicy string

const (
	// DiscountPackageOnly counts only lines explicitly flagged as a package discount.
	// A plain product markdown is already reflected in its lower unit price.
	DiscountPackageOnly DiscountPolicy = "package"
	// DiscountAllMarkdowns counts every line carrying an original unit price.
	DiscountAllMarkdowns DiscountPolicy = "markdown"
)

func ParseDiscountPolicy(s string) (DiscountPolicy, error) {
	switch p := DiscountPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return DiscountPackageOnly, nil
	case DiscountPackageOnly, DiscountAllMarkdowns:
		return p, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownDiscountPolicy, s)
}

var (
	DefaultFreeShippingThreshold = decimal.NewFromInt(500)
	DefaultShippingFee           = decimal.NewFromInt(50)
)

// Pricing holds the shipping rule and discount policy applied by ComputeTotals.
type Pricing struct {
	FreeShippingThreshold decimal.Decimal
	ShippingFee           decimal.Decimal
	DiscountPolicy        DiscountPolicy
}

func DefaultPricing() Pricing {
	return Pricing{
		FreeShippingThreshold: DefaultFreeShippingThreshold,
		ShippingFee:           DefaultShippingFee,
		DiscountPolicy:        DiscountPackageOnly,
	}
}

func (p Pricing) countsAsDiscount(li LineItem) bool {
	if li.OriginalUnitPrice == nil {
		return false
	}
	if p.DiscountPolicy == DiscountAllMarkdowns {
		return true
	}
	return li.PackageDiscount
}

// ComputeTotals derives the cart totals from items. Shipping is a binary
// threshold: free when subtotal >= FreeShippingThreshold, the flat fee otherwise,
// including for an empty cart. Total never drops below zero.
func ComputeTotals(items []LineItem, p Pricing) Totals {
	t := Totals{
		Subtotal: decimal.Zero,
		Discount: decimal.Zero,
	}

	for _, it := range items {
		t.ItemCount += it.Quantity
		t.Subtotal = t.Subtotal.Add(it.LineTotal())
		if p.countsAsDiscount(it) {
			t.Discount = t.Discount.Add(it.Savings())
		}
	}

	t.Shipping = p.ShippingFee
	if t.Subtotal.GreaterThanOrEqual(p.FreeShippingThreshold) {
		t.Shipping = decimal.Zero
	}

	t.Total = decimal.Max(decimal.Zero, t.Subtotal.Add(t.Shipping).Sub(t.Discount))
	t.AmountToFreeShipping = decimal.Max(decimal.Zero, p.FreeShippingThreshold.Sub(t.Subtotal))

	return t
}

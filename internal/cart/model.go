package cart

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Kind tells what a line item references in the catalog.
type Kind string

const (
	KindProduct                  Kind = "product"
	KindRoomStyleBundle          Kind = "room-style"
	KindDesignerCollectionBundle Kind = "designer-collection"
)

func (k Kind) Valid() bool {
	switch k {
	case KindProduct, KindRoomStyleBundle, KindDesignerCollectionBundle:
		return true
	}
	return false
}

// IsBundle reports whether k references a bundle rather than a single product.
func (k Kind) IsBundle() bool {
	return k == KindRoomStyleBundle || k == KindDesignerCollectionBundle
}

type Color struct {
	Name string `json:"name" validate:"required"`
	Hex  string `json:"hex" validate:"required"`
}

func sameColor(a, b *Color) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Name == b.Name && strings.EqualFold(a.Hex, b.Hex)
}

// LineItem is one entry of a cart. Display fields and prices are snapshots
// taken when the line was first added.
type LineItem struct {
	ID                string           `json:"id"`
	Kind              Kind             `json:"kind"`
	ReferenceID       string           `json:"referenceId"`
	Name              string           `json:"name"`
	DesignerOrBrand   string           `json:"designerOrBrand"`
	UnitPrice         decimal.Decimal  `json:"unitPrice"`
	OriginalUnitPrice *decimal.Decimal `json:"originalUnitPrice,omitempty"`
	PackageDiscount   bool             `json:"packageDiscount,omitempty"`
	ImageURL          string           `json:"imageUrl"`
	Quantity          int              `json:"quantity"`
	SelectedColor     *Color           `json:"selectedColor,omitempty"`
	AddedAt           time.Time        `json:"addedAt"`
}

// markdown is the per-unit gap between the original and the charged price.
func (li LineItem) markdown() decimal.Decimal {
	if li.OriginalUnitPrice == nil || !li.OriginalUnitPrice.GreaterThan(li.UnitPrice) {
		return decimal.Zero
	}
	return li.OriginalUnitPrice.Sub(li.UnitPrice)
}

// Savings is what the shopper saves on this line against the original price.
func (li LineItem) Savings() decimal.Decimal {
	return li.markdown().Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// LineTotal is unit price times quantity.
func (li LineItem) LineTotal() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

func (li LineItem) matches(kind Kind, referenceID string, color *Color) bool {
	return li.Kind == kind && li.ReferenceID == referenceID && sameColor(li.SelectedColor, color)
}

func (li LineItem) clone() LineItem {
	out := li
	if li.OriginalUnitPrice != nil {
		p := *li.OriginalUnitPrice
		out.OriginalUnitPrice = &p
	}
	if li.SelectedColor != nil {
		c := *li.SelectedColor
		out.SelectedColor = &c
	}
	return out
}

// MaxLineQuantity caps the quantity of a single line, merges included.
const MaxLineQuantity = 9999

// AddInput is the payload of AddToCart. Quantity 0 means 1.
type AddInput struct {
	Kind              Kind             `json:"kind" validate:"required,oneof=product room-style designer-collection"`
	ReferenceID       string           `json:"referenceId" validate:"required"`
	Name              string           `json:"name"`
	DesignerOrBrand   string           `json:"designerOrBrand"`
	UnitPrice         decimal.Decimal  `json:"unitPrice" validate:"gte=0"`
	OriginalUnitPrice *decimal.Decimal `json:"originalUnitPrice,omitempty" validate:"omitempty,gte=0"`
	PackageDiscount   bool             `json:"packageDiscount,omitempty"`
	ImageURL          string           `json:"imageUrl"`
	Quantity          int              `json:"quantity" validate:"gte=1,lte=9999"`
	SelectedColor     *Color           `json:"selectedColor,omitempty" validate:"omitempty"`
}

// Totals are derived from the item list and never stored.
type Totals struct {
	ItemCount            int             `json:"itemCount"`
	Subtotal             decimal.Decimal `json:"subtotal"`
	Shipping             decimal.Decimal `json:"shipping"`
	Discount             decimal.Decimal `json:"discount"`
	Total                decimal.Decimal `json:"total"`
	AmountToFreeShipping decimal.Decimal `json:"amountToFreeShipping"`
}

// Cart is a read-only snapshot of a session's items and their totals.
type Cart struct {
	SessionID string     `json:"sessionId"`
	Items     []LineItem `json:"items"`
	Totals
}

// Item returns the line with the given id.
func (c Cart) Item(id string) (LineItem, bool) {
	for _, it := range c.Items {
		if it.ID == id {
			return it, true
		}
	}
	return LineItem{}, false
}

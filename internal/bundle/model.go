package bundle

import (
	"storefront-cart/internal/cart"
	"storefront-cart/internal/catalog"

	"github.com/shopspring/decimal"
)

// DefaultPreviewLimit is how many thumbnails or features a collapsed bundle shows.
const DefaultPreviewLimit = 4

// Details is the descriptive side of a bundle line. Available is false when the
// bundle was discontinued after being added; the other fields are then empty.
type Details struct {
	Kind         cart.Kind `json:"kind"`
	ReferenceID  string    `json:"referenceId"`
	Available    bool      `json:"available"`
	Name         string    `json:"name,omitempty"`
	Designer     string    `json:"designer,omitempty"`
	Features     []string  `json:"features,omitempty"`
	DesignerNote *string   `json:"designerNote,omitempty"`
	ProductIDs   []string  `json:"productIds,omitempty"`
}

// FeaturePreview returns the first limit features and how many were left out.
func (d Details) FeaturePreview(limit int) ([]string, int) {
	return head(d.Features, limit)
}

// Included holds the constituent products of a bundle that still resolve,
// in catalog order. Missing counts listed products the catalog no longer has.
type Included struct {
	Available bool              `json:"available"`
	Products  []catalog.Product `json:"products"`
	Missing   int               `json:"missing"`
}

type Preview struct {
	Products []catalog.Product `json:"products"`
	Overflow int               `json:"overflow"`
	Total    int               `json:"total"`
	Missing  int               `json:"missing"`
}

// Preview returns the first limit products plus the count of the rest.
func (in Included) Preview(limit int) Preview {
	shown, overflow := head(in.Products, limit)
	return Preview{Products: shown, Overflow: overflow, Total: len(in.Products), Missing: in.Missing}
}

// ComponentValue is the sum of the individual prices of the included products.
func (in Included) ComponentValue() decimal.Decimal {
	sum := decimal.Zero
	for _, p := range in.Products {
		sum = sum.Add(p.Price)
	}
	return sum
}

func head[T any](items []T, limit int) ([]T, int) {
	if limit < 0 {
		limit = 0
	}
	if len(items) <= limit {
		return items, 0
	}
	return items[:limit], len(items) - limit
}

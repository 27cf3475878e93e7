package cart

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// record is the durable layout: the item list only, totals are recomputed on load.
type record struct {
	Items []LineItem `json:"items"`
}

type storedRecord struct {
	Items []json.RawMessage `json:"items"`
}

// storedLine mirrors LineItem with pointers so missing fields can be told apart from zero values.
type storedLine struct {
	ID                *string          `json:"id"`
	Kind              *Kind            `json:"kind"`
	ReferenceID       *string          `json:"referenceId"`
	Name              string           `json:"name"`
	DesignerOrBrand   string           `json:"designerOrBrand"`
	UnitPrice         *decimal.Decimal `json:"unitPrice"`
	OriginalUnitPrice *decimal.Decimal `json:"originalUnitPrice"`
	PackageDiscount   bool             `json:"packageDiscount"`
	ImageURL          string           `json:"imageUrl"`
	Quantity          *int             `json:"quantity"`
	SelectedColor     *Color           `json:"selectedColor"`
	AddedAt           *time.Time       `json:"addedAt"`
}

func (s storedLine) toLineItem() (LineItem, bool) {
	switch {
	case s.ID == nil || *s.ID == "":
		return LineItem{}, false
	case s.Kind == nil || !s.Kind.Valid():
		return LineItem{}, false
	case s.ReferenceID == nil || *s.ReferenceID == "":
		return LineItem{}, false
	case s.UnitPrice == nil || s.UnitPrice.IsNegative():
		return LineItem{}, false
	case s.OriginalUnitPrice != nil && s.OriginalUnitPrice.IsNegative():
		return LineItem{}, false
	case s.Quantity == nil || *s.Quantity < 1 || *s.Quantity > MaxLineQuantity:
		return LineItem{}, false
	case s.AddedAt == nil || s.AddedAt.IsZero():
		return LineItem{}, false
	case s.SelectedColor != nil && (s.SelectedColor.Name == "" || s.SelectedColor.Hex == ""):
		return LineItem{}, false
	}

	return LineItem{
		ID:                *s.ID,
		Kind:              *s.Kind,
		ReferenceID:       *s.ReferenceID,
		Name:              s.Name,
		DesignerOrBrand:   s.DesignerOrBrand,
		UnitPrice:         *s.UnitPrice,
		OriginalUnitPrice: s.OriginalUnitPrice,
		PackageDiscount:   s.PackageDiscount,
		ImageURL:          s.ImageURL,
		Quantity:          *s.Quantity,
		SelectedColor:     s.SelectedColor,
		AddedAt:           *s.AddedAt,
	}, true
}

func encodeRecord(items []LineItem) ([]byte, error) {
	if items == nil {
		items = []LineItem{}
	}
	data, err := json.Marshal(record{Items: items})
	if err != nil {
		return nil, fmt.Errorf("encode cart record: %w", err)
	}
	return data, nil
}

// decodeRecord restores the items of a stored record. Lines that are malformed,
// reuse an id, or fail validation are dropped and counted instead of failing
// the whole load. Lines sharing a merge key are folded into the first one;
// a line whose fold would exceed MaxLineQuantity is dropped instead.
func decodeRecord(data []byte) ([]LineItem, int, error) {
	var stored storedRecord
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}

	items := make([]LineItem, 0, len(stored.Items))
	seen := make(map[string]struct{}, len(stored.Items))
	dropped := 0

	for _, raw := range stored.Items {
		var line storedLine
		if err := json.Unmarshal(raw, &line); err != nil {
			dropped++
			continue
		}
		item, ok := line.toLineItem()
		if !ok {
			dropped++
			continue
		}
		if _, dup := seen[item.ID]; dup {
			dropped++
			continue
		}
		seen[item.ID] = struct{}{}

		if i := indexOf(items, item.Kind, item.ReferenceID, item.SelectedColor); i >= 0 {
			if items[i].Quantity > MaxLineQuantity-item.Quantity {
				dropped++
				continue
			}
			items[i].Quantity += item.Quantity
			continue
		}
		items = append(items, item)
	}

	return items, dropped, nil
}

func indexOf(items []LineItem, kind Kind, referenceID string, color *Color) int {
	for i := range items {
		if items[i].matches(kind, referenceID, color) {
			return i
		}
	}
	return -1
}

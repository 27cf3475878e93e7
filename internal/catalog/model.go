package catalog

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

var ErrNotFound = errors.New("catalog entry not found")

// BundleKind separates room styles from designer collections; ids are only
// unique within a kind.
type BundleKind string

const (
	BundleRoomStyle          BundleKind = "room-style"
	BundleDesignerCollection BundleKind = "designer-collection"
)

// Bundle is a curated set of products sold as one cart line.
type Bundle struct {
	ID           string          `json:"id"`
	Kind         BundleKind      `json:"kind"`
	Name         string          `json:"name"`
	Designer     string          `json:"designer"`
	Price        decimal.Decimal `json:"price"`
	ImageURL     string          `json:"imageUrl"`
	Features     []string        `json:"features"`
	DesignerNote *string         `json:"designerNote,omitempty"`
	Products     []string        `json:"products"`
}

// Product is the display record of a single catalog product.
type Product struct {
	ID     string          `json:"id"`
	Name   string          `json:"name"`
	Images []string        `json:"images"`
	Price  decimal.Decimal `json:"price"`
}

// Reader is the read-only catalog surface consumed by the bundle resolver.
// GetBundle returns ErrNotFound for unknown or discontinued bundles.
// GetProducts returns the subset of ids that exist, in catalog order.
type Reader interface {
	GetBundle(ctx context.Context, kind BundleKind, id string) (*Bundle, error)
	GetProducts(ctx context.Context, ids []string) ([]Product, error)
}

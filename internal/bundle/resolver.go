package bundle

import (
	"context"
	"errors"
	"fmt"

	"storefront-cart/internal/cart"
	"storefront-cart/internal/catalog"
	"storefront-cart/internal/logger"
	"storefront-cart/internal/metrics"

	"go.uber.org/zap"
)

// Resolver expands bundle line items against the live catalog. It never
// mutates a cart and keeps nothing between calls.
type Resolver struct {
	catalog catalog.Reader
	metrics *metrics.Metrics
}

func NewResolver(reader catalog.Reader, m *metrics.Metrics) *Resolver {
	return &Resolver{catalog: reader, metrics: m}
}

// ResolveBundleDetails looks the line's bundle up in the catalog. A bundle that
// no longer exists yields Details with Available false and no error.
func (r *Resolver) ResolveBundleDetails(ctx context.Context, item cart.LineItem) (Details, error) {
	kind, err := bundleKind(item.Kind)
	if err != nil {
		return Details{}, err
	}

	log := r.log(ctx, "ResolveBundleDetails", item)

	b, err := r.getBundle(ctx, kind, item.ReferenceID)
	if errors.Is(err, catalog.ErrNotFound) {
		log.Info("bundle unavailable")
		return Details{Kind: item.Kind, ReferenceID: item.ReferenceID}, nil
	}
	if err != nil {
		log.Error("bundle lookup failed", zap.Error(err))
		return Details{}, err
	}

	return Details{
		Kind:         item.Kind,
		ReferenceID:  item.ReferenceID,
		Available:    true,
		Name:         b.Name,
		Designer:     b.Designer,
		Features:     b.Features,
		DesignerNote: b.DesignerNote,
		ProductIDs:   b.Products,
	}, nil
}

// ResolveIncludedProducts returns the bundle's products that still exist in
// the catalog, in catalog order. Ids that no longer resolve are dropped and
// counted in Missing; a product listed twice is returned once.
func (r *Resolver) ResolveIncludedProducts(ctx context.Context, item cart.LineItem) (Included, error) {
	kind, err := bundleKind(item.Kind)
	if err != nil {
		return Included{}, err
	}

	log := r.log(ctx, "ResolveIncludedProducts", item)

	b, err := r.getBundle(ctx, kind, item.ReferenceID)
	if errors.Is(err, catalog.ErrNotFound) {
		log.Info("bundle unavailable")
		return Included{Products: []catalog.Product{}}, nil
	}
	if err != nil {
		log.Error("bundle lookup failed", zap.Error(err))
		return Included{}, err
	}

	products, err := r.includedProducts(ctx, b.Products)
	if err != nil {
		log.Error("product lookup failed", zap.Error(err))
		return Included{}, err
	}

	missing := len(uniqueIDs(b.Products)) - len(products)
	if missing > 0 {
		log.Debug("dropped unresolved products", zap.Int("dropped", missing))
	}
	return Included{Available: true, Products: products, Missing: missing}, nil
}

// QuoteBundle prepares the AddToCart input for a catalog bundle. When the
// bundle sells below the sum of its resolvable products, that sum becomes the
// original unit price and the gap is flagged as a package discount.
func (r *Resolver) QuoteBundle(ctx context.Context, kind cart.Kind, bundleID string, quantity int) (cart.AddInput, error) {
	ck, err := bundleKind(kind)
	if err != nil {
		return cart.AddInput{}, err
	}
	if quantity == 0 {
		quantity = 1
	}
	if quantity < 0 {
		return cart.AddInput{}, ErrInvalidQuantity
	}

	log := logger.FromCtx(ctx).With(
		zap.String("layer", "resolver"),
		zap.String("method", "QuoteBundle"),
		zap.String("kind", string(kind)),
		zap.String("bundle_id", bundleID),
	)

	b, err := r.getBundle(ctx, ck, bundleID)
	if errors.Is(err, catalog.ErrNotFound) {
		return cart.AddInput{}, fmt.Errorf("%w: %s %s", ErrBundleUnavailable, kind, bundleID)
	}
	if err != nil {
		return cart.AddInput{}, err
	}

	products, err := r.includedProducts(ctx, b.Products)
	if err != nil {
		return cart.AddInput{}, err
	}

	in := cart.AddInput{
		Kind:            kind,
		ReferenceID:     b.ID,
		Name:            b.Name,
		DesignerOrBrand: b.Designer,
		UnitPrice:       b.Price,
		ImageURL:        b.ImageURL,
		Quantity:        quantity,
	}

	value := Included{Products: products}.ComponentValue()
	if value.GreaterThan(b.Price) {
		in.OriginalUnitPrice = &value
		in.PackageDiscount = true
	}

	log.Info("bundle quoted",
		zap.String("price", b.Price.String()),
		zap.String("component_value", value.String()),
		zap.Bool("package_discount", in.PackageDiscount),
	)
	return in, nil
}

func (r *Resolver) getBundle(ctx context.Context, kind catalog.BundleKind, id string) (*catalog.Bundle, error) {
	timer := metrics.StartTimer()
	b, err := r.catalog.GetBundle(ctx, kind, id)
	r.metrics.ObserveCatalogLookup("bundle", lookupResult(err), timer.Duration())
	return b, err
}

func (r *Resolver) includedProducts(ctx context.Context, ids []string) ([]catalog.Product, error) {
	ids = uniqueIDs(ids)

	timer := metrics.StartTimer()
	found, err := r.catalog.GetProducts(ctx, ids)
	r.metrics.ObserveCatalogLookup("products", lookupResult(err), timer.Duration())
	if err != nil {
		return nil, err
	}

	listed := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		listed[id] = struct{}{}
	}

	// keep the catalog's order, dropping anything the bundle does not list
	products := make([]catalog.Product, 0, len(found))
	for _, p := range found {
		if _, ok := listed[p.ID]; !ok {
			continue
		}
		delete(listed, p.ID)
		products = append(products, p)
	}
	return products, nil
}

func (r *Resolver) log(ctx context.Context, method string, item cart.LineItem) *zap.Logger {
	return logger.FromCtx(ctx).With(
		zap.String("layer", "resolver"),
		zap.String("method", method),
		zap.String("line_id", item.ID),
		zap.String("kind", string(item.Kind)),
		zap.String("reference_id", item.ReferenceID),
	)
}

func bundleKind(k cart.Kind) (catalog.BundleKind, error) {
	switch k {
	case cart.KindRoomStyleBundle:
		return catalog.BundleRoomStyle, nil
	case cart.KindDesignerCollectionBundle:
		return catalog.BundleDesignerCollection, nil
	}
	return "", fmt.Errorf("%w: %q", ErrNotBundle, k)
}

func lookupResult(err error) string {
	switch {
	case err == nil:
		return "found"
	case errors.Is(err, catalog.ErrNotFound):
		return "missing"
	}
	return "error"
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"storefront-cart/internal/logger"

	"github.com/lib/pq"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Repository reads bundles and products from Postgres. Concurrent identical
// bundle lookups share one query; nothing is retained between calls.
type Repository struct {
	db     *sql.DB
	flight singleflight.Group
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) GetBundle(ctx context.Context, kind BundleKind, id string) (*Bundle, error) {
	v, err, shared := r.flight.Do(string(kind)+":"+id, func() (any, error) {
		return r.queryBundle(ctx, kind, id)
	})
	if err != nil {
		return nil, err
	}

	b := *v.(*Bundle)
	if shared {
		b.Features = append([]string(nil), b.Features...)
		b.Products = append([]string(nil), b.Products...)
	}
	return &b, nil
}

func (r *Repository) queryBundle(ctx context.Context, kind BundleKind, id string) (*Bundle, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "GetBundle"),
		zap.String("kind", string(kind)),
		zap.String("bundle_id", id),
	)
	start := time.Now()

	var (
		b    Bundle
		note sql.NullString
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT
			b.id,
			b.kind,
			b.name,
			b.designer,
			b.price,
			COALESCE(b.image_url, ''),
			b.features,
			b.designer_note
		FROM bundles b
		WHERE b.kind = $1 AND b.id = $2 AND b.is_active = TRUE
	`, string(kind), id).Scan(
		&b.ID,
		&b.Kind,
		&b.Name,
		&b.Designer,
		&b.Price,
		&b.ImageURL,
		pq.Array(&b.Features),
		&note,
	)
	if errors.Is(err, sql.ErrNoRows) {
		log.Debug("bundle not found")
		return nil, ErrNotFound
	}
	if err != nil {
		log.Error("bundle query failed", zap.Error(err))
		return nil, fmt.Errorf("get bundle: %w", err)
	}
	if note.Valid {
		b.DesignerNote = &note.String
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT product_id
		FROM bundle_products
		WHERE bundle_kind = $1 AND bundle_id = $2
		ORDER BY position ASC
	`, string(kind), b.ID)
	if err != nil {
		log.Error("bundle products query failed", zap.Error(err))
		return nil, fmt.Errorf("get bundle products: %w", err)
	}
	defer rows.Close()

	b.Products = []string{}
	for rows.Next() {
		var productID string
		if err := rows.Scan(&productID); err != nil {
			return nil, fmt.Errorf("scan bundle product: %w", err)
		}
		b.Products = append(b.Products, productID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bundle products: %w", err)
	}

	log.Debug("bundle loaded",
		zap.Int("products", len(b.Products)),
		zap.Duration("duration", time.Since(start)),
	)
	return &b, nil
}

func (r *Repository) GetProducts(ctx context.Context, ids []string) ([]Product, error) {
	if len(ids) == 0 {
		return []Product{}, nil
	}

	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "GetProducts"),
		zap.Int("requested", len(ids)),
	)

	rows, err := r.db.QueryContext(ctx, `
		SELECT
			p.id,
			p.name,
			p.images,
			p.price
		FROM products p
		WHERE p.id = ANY($1) AND p.status = 'active'
		ORDER BY p.created_at ASC, p.id ASC
	`, pq.Array(ids))
	if err != nil {
		log.Error("products query failed", zap.Error(err))
		return nil, fmt.Errorf("get products: %w", err)
	}
	defer rows.Close()

	products := make([]Product, 0, len(ids))
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Name, pq.Array(&p.Images), &p.Price); err != nil {
			log.Error("row scan failed", zap.Error(err))
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}

	log.Debug("products loaded", zap.Int("found", len(products)))
	return products, nil
}

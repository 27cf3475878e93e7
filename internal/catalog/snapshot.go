package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// Snapshot is an in-memory copy of the catalog, typically loaded from a JSON
// export. Replace swaps the whole content; readers always see the current copy.
// Products keep the order of the export.
type Snapshot struct {
	mu       sync.RWMutex
	bundles  map[bundleKey]Bundle
	products []Product
}

type bundleKey struct {
	kind BundleKind
	id   string
}

type snapshotFile struct {
	Bundles  []Bundle  `json:"bundles"`
	Products []Product `json:"products"`
}

func NewSnapshot(bundles []Bundle, products []Product) *Snapshot {
	s := &Snapshot{}
	s.Replace(bundles, products)
	return s
}

// LoadSnapshot reads a {"bundles": [...], "products": [...]} export from path.
func LoadSnapshot(path string) (*Snapshot, error) {
	f, err := readSnapshotFile(path)
	if err != nil {
		return nil, err
	}
	return NewSnapshot(f.Bundles, f.Products), nil
}

// Reload re-reads path and swaps the content in. On error the current
// content is kept.
func (s *Snapshot) Reload(path string) error {
	f, err := readSnapshotFile(path)
	if err != nil {
		return err
	}
	s.Replace(f.Bundles, f.Products)
	return nil
}

func readSnapshotFile(path string) (snapshotFile, error) {
	var f snapshotFile

	data, err := os.ReadFile(path)
	if err != nil {
		return f, fmt.Errorf("read catalog file: %w", err)
	}
	if err := json.Unmarshal(data, &f); err != nil {
		return f, fmt.Errorf("parse catalog file: %w", err)
	}
	return f, nil
}

func (s *Snapshot) Replace(bundles []Bundle, products []Product) {
	bm := make(map[bundleKey]Bundle, len(bundles))
	for _, b := range bundles {
		bm[bundleKey{kind: b.Kind, id: b.ID}] = b
	}
	pl := make([]Product, 0, len(products))
	seen := make(map[string]struct{}, len(products))
	for _, p := range products {
		if _, dup := seen[p.ID]; dup {
			continue
		}
		seen[p.ID] = struct{}{}
		pl = append(pl, p)
	}

	s.mu.Lock()
	s.bundles = bm
	s.products = pl
	s.mu.Unlock()
}

func (s *Snapshot) GetBundle(_ context.Context, kind BundleKind, id string) (*Bundle, error) {
	s.mu.RLock()
	b, ok := s.bundles[bundleKey{kind: kind, id: id}]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}

	b.Features = append([]string(nil), b.Features...)
	b.Products = append([]string(nil), b.Products...)
	return &b, nil
}

// GetProducts returns the products among ids in catalog order.
func (s *Snapshot) GetProducts(_ context.Context, ids []string) ([]Product, error) {
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Product, 0, len(want))
	for _, p := range s.products {
		if _, ok := want[p.ID]; ok {
			p.Images = append([]string(nil), p.Images...)
			out = append(out, p)
		}
	}
	return out, nil
}

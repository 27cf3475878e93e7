package bundle

import "errors"

var (
	ErrNotBundle         = errors.New("line item is not a bundle")
	ErrBundleUnavailable = errors.New("bundle is no longer in the catalog")
	ErrInvalidQuantity   = errors.New("bundle quantity must be at least 1")
)

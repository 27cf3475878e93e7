package cart

import "errors"

var (
	// -- Validation & Input --
	ErrInvalidInput = errors.New("invalid cart input")

	// -- Durable storage --
	ErrNoRecord      = errors.New("no stored cart for session")
	ErrCorruptRecord = errors.New("stored cart record is unreadable")

	// -- Configuration --
	ErrUnknownDiscountPolicy = errors.New("unknown discount policy")
)

package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"storefront-cart/internal/cart"

	"github.com/go-playground/validator/v10"
)

const maxBodyBytes = 64 << 10

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" || tag == "-" {
			return f.Name
		}
		return tag
	})
	return v
}

type updateQuantityRequest struct {
	Quantity *int `json:"quantity" validate:"required,lte=9999"`
}

type addBundleRequest struct {
	Kind     cart.Kind `json:"kind" validate:"required,oneof=room-style designer-collection"`
	BundleID string    `json:"bundleId" validate:"required"`
	Quantity int       `json:"quantity" validate:"gte=0,lte=9999"`
}

// decodeJSON reads a single JSON object from the body into dst. Decoding and
// validation problems are reported as cart.ErrInvalidInput.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: request body is empty", cart.ErrInvalidInput)
		}
		return fmt.Errorf("%w: malformed JSON: %v", cart.ErrInvalidInput, err)
	}
	return nil
}

func validateRequest(req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", cart.ErrInvalidInput, err)
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
	}
	return fmt.Errorf("%w: %s", cart.ErrInvalidInput, strings.Join(fields, "; "))
}

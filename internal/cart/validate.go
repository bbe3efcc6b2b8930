package cart

import (
	"errors"
	"reflect"
	"strings"

	validator "github.com/go-playground/validator/v10"

	"github.com/noah-isme/toko-storefront/internal/intent"
)

// NewValidator returns a validator that reports fields by their JSON names.
func NewValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		switch name {
		case "-":
			return ""
		case "":
			return fld.Name
		}
		return name
	})
	return v
}

func (s *Store) validateIntent(in intent.Intent) error {
	if err := s.validator.Struct(in); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return &ValidationError{Kind: in.Kind(), Field: fe.Field(), Reason: reasonFor(fe)}
		}
		return &ValidationError{Kind: in.Kind(), Reason: err.Error()}
	}
	if id, ok := productIDOf(in); ok && strings.TrimSpace(id) == "" {
		return &ValidationError{Kind: in.Kind(), Field: "productId", Reason: "is required"}
	}
	return nil
}

func reasonFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gte":
		return "must be >= " + fe.Param()
	default:
		return "failed " + fe.Tag() + " check"
	}
}

func productIDOf(in intent.Intent) (string, bool) {
	switch v := in.(type) {
	case intent.AddItem:
		return v.ProductID, true
	case intent.SetQuantity:
		return v.ProductID, true
	case intent.RemoveItem:
		return v.ProductID, true
	default:
		return "", false
	}
}

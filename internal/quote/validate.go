package quote

import (
	"errors"
	"math"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	validator "github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/crm-quotes/internal/common"
	"github.com/noah-isme/crm-quotes/internal/pricing"
)

// Bounds follow the storage columns: prices are NUMERIC(12,2), rates NUMERIC(5,2) and
// quantities INT.
var (
	maxTaxRate  = decimal.NewFromInt(100)
	maxAmount   = decimal.New(1, 10)
	maxQuantity = math.MaxInt32
)

// cents reports whether d has at most two fractional digits.
func cents(d decimal.Decimal) bool {
	return d.Equal(d.Round(2))
}

// FieldError points at one rejected form field.
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
}

// NewValidator returns a validator that knows the quote form rules.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	rules := map[string]validator.Func{
		"amount": func(fl validator.FieldLevel) bool {
			d, ok := pricing.ParseStrict(fl.Field().String())
			return ok && cents(d) && d.LessThan(maxAmount)
		},
		"discount": func(fl validator.FieldLevel) bool {
			d, ok := pricing.ParseStrict(fl.Field().String())
			return ok && d.IsInteger() && pricing.IsAllowedDiscount(int(d.IntPart()))
		},
		"taxrate": func(fl validator.FieldLevel) bool {
			d, ok := pricing.ParseStrict(fl.Field().String())
			return ok && cents(d) && d.LessThanOrEqual(maxTaxRate)
		},
		"engagement": func(fl validator.FieldLevel) bool {
			n, err := strconv.Atoi(strings.TrimSpace(fl.Field().String()))
			return err == nil && pricing.IsAllowedEngagement(n)
		},
		"quantity": func(fl validator.FieldLevel) bool {
			n, err := strconv.Atoi(strings.TrimSpace(fl.Field().String()))
			return err == nil && n >= 1 && n <= maxQuantity
		},
		"flag": func(fl validator.FieldLevel) bool {
			_, ok := parseFlag(strings.TrimSpace(fl.Field().String()))
			return ok
		},
	}
	for tag, fn := range rules {
		if err := v.RegisterValidation(tag, fn); err != nil {
			panic(err)
		}
	}
	return v
}

// ValidateForm checks a submission. Previews never go through here.
func ValidateForm(v *validator.Validate, f Form) error {
	err := v.Struct(f)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Namespace()
		if i := strings.Index(field, "."); i >= 0 {
			field = field[i+1:]
		}
		fields = append(fields, FieldError{Field: field, Rule: fe.Tag()})
	}
	return &common.AppError{
		Code:       "VALIDATION_ERROR",
		Message:    "quote form is invalid",
		HTTPStatus: http.StatusUnprocessableEntity,
		Err:        err,
		Details:    map[string]any{"fields": fields},
	}
}

package validator

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/ghuser/eshop-ordering/pkg/httpx"
)

var validate = newValidate()

func newValidate() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Errors are keyed by the JSON name the client sent.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})

	// Money fields compare as numbers, so gte/gt/lte tags apply to them.
	v.RegisterCustomTypeFunc(func(rv reflect.Value) any {
		d, ok := rv.Interface().(decimal.Decimal)
		if !ok {
			return nil
		}
		f, _ := d.Float64()
		return f
	}, decimal.Decimal{})

	return v
}

// Validate checks s against its validate struct tags.
func Validate(s any) error {
	return validate.Struct(s)
}

// FormatValidationErrors maps each failing field's JSON name to a message a
// client can show. Errors that are not validation errors yield an empty map.
func FormatValidationErrors(err error) map[string]string {
	out := make(map[string]string)
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return out
	}
	for _, fe := range ve {
		out[fe.Field()] = message(fe)
	}
	return out
}

var fixedMessages = map[string]string{
	"required": "This field is required",
	"uuid":     "Must be a valid UUID",
	"uuid4":    "Must be a valid UUID",
	"email":    "Must be a valid email address",
	"url":      "Must be a valid URL",
	"numeric":  "Must be a numeric value",
	"alpha":    "Must contain only letters",
	"alphanum": "Must contain only letters and numbers",
}

// paramMessages take the tag parameter as their single verb.
var paramMessages = map[string]string{
	"min": "Minimum length is %s",
	"max": "Maximum length is %s",
	"gt":  "Must be greater than %s",
	"gte": "Must be greater than or equal to %s",
	"lte": "Must be less than or equal to %s",
}

func message(fe validator.FieldError) string {
	if msg, ok := fixedMessages[fe.Tag()]; ok {
		return msg
	}
	if format, ok := paramMessages[fe.Tag()]; ok {
		return fmt.Sprintf(format, fe.Param())
	}
	return fmt.Sprintf("Validation failed on '%s'", fe.Tag())
}

// ValidateRequest decodes the body into T and validates it. On failure it has
// already written the response (400, 413 or 422) and returns false.
func ValidateRequest[T any](w http.ResponseWriter, r *http.Request) (*T, bool) {
	var req T
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httpx.JSONError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("Request body exceeds %d bytes", tooLarge.Limit))
			return nil, false
		}
		httpx.JSONError(w, http.StatusBadRequest, "Invalid JSON")
		return nil, false
	}
	if err := Validate(&req); err != nil {
		httpx.JSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":  "Validation failed",
			"fields": FormatValidationErrors(err),
		})
		return nil, false
	}
	return &req, true
}

// Package validation checks request structs against their `validate` tags
// and turns failures into apperror validation errors keyed by JSON name.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/sakif/drink-journal/internal/apperror"
)

// usernamePattern is the "username" tag: lowercase letters, digits and
// underscores, 3 to 30 long.
var usernamePattern = regexp.MustCompile(`^[a-z0-9_]{3,30}$`)

// Validator wraps go-playground/validator.
type Validator struct {
	v *validator.Validate
}

// New returns a Validator that reports fields by their json tag name.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})

	// Only fails on a bad tag name, which would be a programming error.
	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	})

	return &Validator{v: v}
}

// Validate returns nil or an *apperror.AppError wrapping ErrValidation with
// one message per failing field.
func (v *Validator) Validate(s any) error {
	err := v.v.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	fields := make(map[string]string, len(fieldErrs))
	for _, e := range fieldErrs {
		fields[fieldPath(e)] = friendlyMessage(e)
	}
	return apperror.ValidationWithFields("validation failed", fields)
}

// fieldPath drops the top-level struct name: "createDrinkRequest.nose[0]"
// becomes "nose[0]".
func fieldPath(e validator.FieldError) string {
	ns := e.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return e.Field()
}

func friendlyMessage(e validator.FieldError) string {
	unit := ""
	switch e.Kind() {
	case reflect.String:
		unit = " characters"
	case reflect.Slice, reflect.Array, reflect.Map:
		unit = " items"
	}

	switch e.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "url":
		return "must be a valid URL"
	case "min":
		return fmt.Sprintf("must be at least %s%s", e.Param(), unit)
	case "max":
		return fmt.Sprintf("must not exceed %s%s", e.Param(), unit)
	case "oneof":
		return "must be one of: " + e.Param()
	case "gte":
		return "must be greater than or equal to " + e.Param()
	case "lte":
		return "must be less than or equal to " + e.Param()
	case "alphanum":
		return "must contain only letters and digits"
	case "username":
		return "must be 3 to 30 characters of a-z, 0-9 or _"
	case "iso4217":
		return "must be a three-letter currency code"
	default:
		return "is invalid"
	}
}

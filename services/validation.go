package services

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

// slugPattern matches lowercase alphanumerics with interior hyphens, the
// shape used in routes and on disk as the tenant directory name.
var slugPattern = regexp.MustCompile(`^[a-z0-9](?:[a-z0-9-]*[a-z0-9])?$`)

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("slug", func(fl validator.FieldLevel) bool {
		return slugPattern.MatchString(fl.Field().String())
	})
}

// ValidateStruct validates a struct using go-playground/validator and
// maps failures onto ErrInvalidInput with per-field messages.
func ValidateStruct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err
	}

	fields := make(map[string]string)
	for _, fe := range validationErrors {
		field := fe.Field()
		switch fe.Tag() {
		case "required":
			fields[field] = fmt.Sprintf("%s is required", field)
		case "min":
			fields[field] = fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
		case "max":
			fields[field] = fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
		case "slug":
			fields[field] = fmt.Sprintf("%s must be lowercase letters, digits and hyphens", field)
		default:
			fields[field] = fmt.Sprintf("%s failed validation on '%s'", field, fe.Tag())
		}
	}
	return ErrInvalidInput.WithDetail("fields", fields)
}

package util

import (
	"regexp"

	"github.com/go-playground/validator/v10"
	"github.com/samber/oops"
)

var clockRegex = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

// NewValidator returns a validator with the project specific tags registered:
//
//	clock: 24h HH:MM time of day
func NewValidator() *validator.Validate {
	validate := validator.New(validator.WithRequiredStructEnabled())

	_ = validate.RegisterValidation("clock", func(fl validator.FieldLevel) bool {
		return clockRegex.MatchString(fl.Field().String())
	})

	return validate
}

// ValidateInput checks a mutation payload before it is sent.
func ValidateInput(validate *validator.Validate, input any) error {
	if err := validate.Struct(input); err != nil {
		return oops.
			With("kind", KindValidation).
			Public("Invalid input: " + err.Error()).
			Errorf("validate: %w", err)
	}

	return nil
}

package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Validator validates configuration values using go-playground/validator
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates a new configuration validator
func NewValidator() *Validator {
	v := validator.New()

	// Register custom validation functions
	v.RegisterValidation("remote_backend", validateRemoteBackend)
	v.RegisterValidation("trust_mode", validateTrustMode)
	v.RegisterValidation("log_level", validateLogLevel)

	return &Validator{
		validate: v,
	}
}

// Validate validates a complete configuration
func (v *Validator) Validate(config *Config) error {
	// Set default version if empty
	if config.Version == "" {
		config.Version = "1.0"
	}

	if err := v.validate.Struct(config); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			// Report the first failure in our own format
			for _, e := range validationErrors {
				return ValidationError{
					Field:   e.Namespace(),
					Message: fmt.Sprintf("validation failed on tag '%s' with value '%v'", e.Tag(), e.Value()),
					Value:   e.Value(),
				}
			}
		}
		return err
	}

	return nil
}

// validateRemoteBackend validates shared store backends
func validateRemoteBackend(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true // same as none
	}
	return contains([]string{"redis", "sqlite", "none"}, value)
}

// validateTrustMode validates network trust modes
func validateTrustMode(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	return contains([]string{TrustAuto, TrustAlways, TrustNever}, value)
}

// validateLogLevel validates slog level names
func validateLogLevel(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	return contains([]string{"debug", "info", "warn", "error"}, value)
}

// contains checks if a string is in a slice
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

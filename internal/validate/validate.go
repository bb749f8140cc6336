// Package validate holds the precondition checks run at the top of every
// public operation, before any request goes over the wire.
package validate

import (
	"os"
	"strings"

	"github.com/rossigee/irp-integration/internal/irperr"
)

// NonEmptyString fails when value is empty or only whitespace.
func NonEmptyString(value, name string) error {
	if strings.TrimSpace(value) == "" {
		return irperr.Validation("%s cannot be empty", name)
	}
	return nil
}

// PositiveInt fails when value is not greater than zero.
func PositiveInt[T ~int | ~int32 | ~int64](value T, name string) error {
	if value <= 0 {
		return irperr.Validation("%s must be positive, got %d", name, value)
	}
	return nil
}

// NonNegativeInt fails when value is below zero.
func NonNegativeInt[T ~int | ~int32 | ~int64](value T, name string) error {
	if value < 0 {
		return irperr.Validation("%s must be non-negative, got %d", name, value)
	}
	return nil
}

// PositiveFloat fails when value is not greater than zero.
func PositiveFloat(value float64, name string) error {
	if value <= 0 {
		return irperr.Validation("%s must be positive, got %g", name, value)
	}
	return nil
}

// NonNegativeFloat fails when value is below zero.
func NonNegativeFloat(value float64, name string) error {
	if value < 0 {
		return irperr.Validation("%s must be non-negative, got %g", name, value)
	}
	return nil
}

// NonEmptyList fails when values has no elements.
func NonEmptyList[T any](values []T, name string) error {
	if len(values) == 0 {
		return irperr.Validation("%s cannot be empty", name)
	}
	return nil
}

// FileExists fails unless path names an existing regular file.
func FileExists(path, name string) error {
	info, err := os.Stat(path)
	if err != nil {
		return irperr.Validation("%s does not exist: %s", name, path)
	}
	if !info.Mode().IsRegular() {
		return irperr.Validation("%s is not a file: %s", name, path)
	}
	return nil
}

// All returns the first failing check.
func All(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

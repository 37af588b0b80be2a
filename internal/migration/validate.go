package migration

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// opValidate checks the struct tags on operation variants. Field names in
// errors follow the yaml tags so they match what authors wrote.
var opValidate *validator.Validate

func init() {
	opValidate = validator.New()
	opValidate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" || name == "" {
			return field.Name
		}
		return name
	})
	if err := opValidate.RegisterValidation("nonblank", validateNonBlank); err != nil {
		panic(fmt.Sprintf("migration: register nonblank validation: %v", err))
	}
}

func validateNonBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

// Validate checks the structural preconditions of op without touching any
// document. The first violated rule is returned as a *ValidationError.
func Validate(op Operation) error {
	if op == nil {
		return &ValidationError{Op: "", Field: "type", Rule: "required"}
	}
	err := opValidate.Struct(op)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		first := fieldErrs[0]
		return &ValidationError{Op: op.Kind(), Field: first.Field(), Rule: first.Tag()}
	}
	return fmt.Errorf("migration: validate %s: %w", op.Kind(), err)
}

// ValidateAll validates each operation in order, prefixing the error with the
// migration id and operation index.
func ValidateAll(id string, ops Operations) error {
	for idx, op := range ops {
		if err := Validate(op); err != nil {
			return fmt.Errorf("migration %s operation[%d]: %w", id, idx, err)
		}
	}
	return nil
}

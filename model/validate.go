package model

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report json field names instead of Go field names.
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	err := v.RegisterValidation("entity_type", func(fl validator.FieldLevel) bool {
		return EntityType(fl.Field().String()).Valid()
	})
	if err != nil {
		panic(err)
	}

	err = v.RegisterValidation("text", func(fl validator.FieldLevel) bool {
		return validText(fl.Field().String())
	})
	if err != nil {
		panic(err)
	}

	return v
}

// validText reports whether s can be stored in a PostgreSQL text or jsonb value.
func validText(s string) bool {
	return utf8.ValidString(s) && !strings.ContainsRune(s, 0)
}

// validateMetadata rejects keys and string leaves that PostgreSQL cannot store.
func validateMetadata(field string, m Metadata) error {
	for k, v := range m {
		if !validText(k) {
			return NewValidationError(field, textMessage)
		}
		if err := validateMetadataValue(field, v); err != nil {
			return err
		}
	}
	return nil
}

func validateMetadataValue(field string, v interface{}) error {
	switch t := v.(type) {
	case string:
		if !validText(t) {
			return NewValidationError(field, textMessage)
		}
	case map[string]interface{}:
		return validateMetadata(field, Metadata(t))
	case Metadata:
		return validateMetadata(field, t)
	case []interface{}:
		for _, e := range t {
			if err := validateMetadataValue(field, e); err != nil {
				return err
			}
		}
	case []string:
		for _, e := range t {
			if !validText(e) {
				return NewValidationError(field, textMessage)
			}
		}
	}
	return nil
}

const textMessage = "must be valid UTF-8 without NUL characters"

func validateStruct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
		fe := validationErrors[0]
		return NewValidationError(fe.Field(), describeFieldError(fe))
	}
	return NewValidationError("body", err.Error())
}

func validateVar(field string, value interface{}, tag string) error {
	err := validate.Var(value, tag)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
		return NewValidationError(field, describeFieldError(validationErrors[0]))
	}
	return NewValidationError(field, err.Error())
}

// validateRequiredOptional validates a present value and rejects explicit null.
func validateRequiredOptional(field string, o Optional[string], tag string) error {
	if !o.IsSet() {
		return nil
	}
	v, ok := o.Get()
	if !ok {
		return NewValidationError(field, "must not be null")
	}
	return validateVar(field, v, tag)
}

// validateNullableOptional validates a present non-null value.
func validateNullableOptional(field string, o Optional[string], tag string) error {
	v, ok := o.Get()
	if !ok {
		return nil
	}
	return validateVar(field, v, tag)
}

func describeFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "text":
		return textMessage
	case "entity_type":
		return fmt.Sprintf("must be one of %v, got %q", EntityTypes, fe.Value())
	}
	return fmt.Sprintf("failed %q validation", fe.Tag())
}

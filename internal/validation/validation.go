// Package validation provides declarative struct validation via
// go-playground/validator v10: a thread-safe singleton instance whose
// struct-info cache is shared across every caller, plus translation of
// field errors into messages safe for public display.
//
// Range and enum rules live as `validate` tags on the structs themselves:
//
//	type RuntimeDefaults struct {
//	    DedupeWindowSeconds int `validate:"min=1,max=3600"`
//	    TrendDefaultDays    int `validate:"min=1,max=365,ltefield=TrendMaxDays"`
//	    TrendMaxDays        int `validate:"min=1,max=365"`
//	}
//
//	if err := validation.ValidateStruct(&r); err != nil { ... }
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// Validator returns the singleton validator instance. Field names in error
// messages come from the json (or koanf) tag, so messages match the wire
// and config-file names the caller actually used.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			for _, key := range []string{"json", "koanf"} {
				if name, _, _ := strings.Cut(fld.Tag.Get(key), ","); name != "" && name != "-" {
					return name
				}
			}
			return fld.Name
		})
	})
	return validate
}

// Error collects every failed field's translated message.
type Error struct {
	messages []string
}

func (e *Error) Error() string {
	if len(e.messages) == 0 {
		return "validation failed"
	}
	return strings.Join(e.messages, "; ")
}

// ValidateStruct validates s against its `validate` struct tags, descending
// into nested structs. Returns nil on success or an *Error whose message
// names each offending field without echoing secrets or paths.
func ValidateStruct(s any) error {
	err := Validator().Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return &Error{messages: []string{err.Error()}}
	}

	msgs := make([]string, len(fieldErrs))
	for i, fe := range fieldErrs {
		msgs[i] = translateError(fe)
	}
	return &Error{messages: msgs}
}

// errorMessageWithParam maps validation tags to templates taking the field
// name and the tag's parameter.
var errorMessageWithParam = map[string]string{
	"oneof":       "%s must be one of: %s",
	"ltefield":    "%s must not exceed %s",
	"gt":          "%s must be greater than %s",
	"gte":         "%s must be greater than or equal to %s",
	"lt":          "%s must be less than %s",
	"lte":         "%s must be less than or equal to %s",
	"len":         "%s must be exactly %s characters",
	"required_if": "%s is required when %s",
}

// translateError converts a validator.FieldError into a human-readable,
// publicly displayable message.
func translateError(fe validator.FieldError) string {
	field := fe.Field()
	tag := fe.Tag()
	param := fe.Param()

	if tag == "required" {
		return fmt.Sprintf("%s is required", field)
	}
	if template, ok := errorMessageWithParam[tag]; ok {
		return fmt.Sprintf(template, field, param)
	}
	return translateMinMax(fe, field, tag, param)
}

// translateMinMax handles min/max with type-specific wording: character
// counts for strings, plain bounds for numbers.
func translateMinMax(fe validator.FieldError, field, tag, param string) string {
	isString := fe.Kind() == reflect.String

	switch tag {
	case "min":
		if isString {
			return fmt.Sprintf("%s must be at least %s characters", field, param)
		}
		return fmt.Sprintf("%s must be at least %s", field, param)
	case "max":
		if isString {
			return fmt.Sprintf("%s must be at most %s characters", field, param)
		}
		return fmt.Sprintf("%s must be at most %s", field, param)
	default:
		return fmt.Sprintf("%s failed %s validation", field, tag)
	}
}

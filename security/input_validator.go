// ABOUTME: Admin API input validation built on go-playground/validator
// ABOUTME: Registers the greader_id, account_id and safe_text rules and implements echo.Validator

package security

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

const maxMessageIDLength = 256

var (
	accountIDPattern     = regexp.MustCompile(`^[a-zA-Z0-9_\-]{1,64}$`)
	pathTraversalPattern = regexp.MustCompile(`\.\.[\\/]|[\\/]\.\.`)
)

// ValidationError maps field names to messages
type ValidationError struct {
	Errors map[string]string `json:"errors"`
}

func (e *ValidationError) Error() string {
	fields := make([]string, 0, len(e.Errors))
	for field := range e.Errors {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	messages := make([]string, 0, len(fields))
	for _, field := range fields {
		messages = append(messages, fmt.Sprintf("%s: %s", field, e.Errors[field]))
	}
	return "validation failed: " + strings.Join(messages, ", ")
}

// RequestValidator validates admin API requests
type RequestValidator struct {
	validate *validator.Validate
}

func NewRequestValidator() *RequestValidator {
	validate := validator.New(validator.WithRequiredStructEnabled())
	registerCustomValidators(validate)

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		for _, tag := range []string{"json", "query", "param"} {
			name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
			if name != "" && name != "-" {
				return name
			}
		}
		return fld.Name
	})

	return &RequestValidator{validate: validate}
}

// Validate implements echo.Validator
func (v *RequestValidator) Validate(i any) error {
	err := v.validate.Struct(i)
	if err == nil {
		return nil
	}
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return err
	}
	return newValidationError(errs)
}

// ValidateAccountID checks a path parameter naming an account
func (v *RequestValidator) ValidateAccountID(accountID string) error {
	if err := v.validate.Var(accountID, "required,account_id"); err != nil {
		return &ValidationError{Errors: map[string]string{
			"account": "account must be 1-64 letters, digits, hyphens or underscores",
		}}
	}
	return nil
}

func newValidationError(errs validator.ValidationErrors) *ValidationError {
	out := make(map[string]string, len(errs))
	for _, err := range errs {
		field := err.Field()
		switch err.Tag() {
		case "required":
			out[field] = fmt.Sprintf("%s is required", field)
		case "min":
			out[field] = fmt.Sprintf("%s must be at least %s", field, err.Param())
		case "max":
			out[field] = fmt.Sprintf("%s must be at most %s", field, err.Param())
		case "oneof":
			out[field] = fmt.Sprintf("%s must be one of: %s", field, err.Param())
		case "greader_id":
			out[field] = fmt.Sprintf("%s is not a valid message id", field)
		case "safe_text":
			out[field] = fmt.Sprintf("%s contains forbidden characters", field)
		default:
			out[field] = fmt.Sprintf("%s is invalid", field)
		}
	}
	return &ValidationError{Errors: out}
}

func registerCustomValidators(validate *validator.Validate) {
	validate.RegisterValidation("greader_id", func(fl validator.FieldLevel) bool {
		return IsMessageID(fl.Field().String())
	})
	validate.RegisterValidation("account_id", func(fl validator.FieldLevel) bool {
		return accountIDPattern.MatchString(fl.Field().String())
	})
	validate.RegisterValidation("safe_text", func(fl validator.FieldLevel) bool {
		value := fl.Field().String()
		return !containsControlCharacters(value) && !pathTraversalPattern.MatchString(value)
	})
}

// IsMessageID accepts the id forms providers use: decimal, long tag form or opaque tokens
func IsMessageID(id string) bool {
	if id == "" || len(id) > maxMessageIDLength {
		return false
	}
	for _, r := range id {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return false
		}
	}
	return true
}

func containsControlCharacters(s string) bool {
	for _, r := range s {
		if unicode.IsControl(r) {
			return true
		}
	}
	return false
}

// SanitizeString trims the input, drops control characters and collapses whitespace
func SanitizeString(input string) string {
	var b strings.Builder
	for _, r := range input {
		switch {
		case r == '\t' || r == '\n' || r == '\r':
			b.WriteRune(' ')
		case unicode.IsControl(r):
		default:
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Package validators holds the pure value validators for each field type.
// Validators never return errors; a malformed custom pattern is reported as
// an ordinary validation failure.
package validators

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/tbxark/intakeagent/types"
)

var (
	emailRe = regexp.MustCompile(`^[a-zA-Z0-9_.+-]+@[a-zA-Z0-9-]+\.[a-zA-Z0-9-.]+$`)
	phoneRe = regexp.MustCompile(`^[\d\s\-+()]{10,20}$`)
	nameRe  = regexp.MustCompile(`^[\p{L}\p{N}_\s\-']{1,120}$`)
	digitRe = regexp.MustCompile(`\D`)
)

// Validate dispatches to the validator for fieldType and returns whether the
// value is acceptable together with a user-facing message when it is not.
// The pattern argument is only consulted for the custom type.
func Validate(value string, fieldType types.FieldType, pattern string) (bool, string) {
	switch fieldType {
	case types.FieldTypeEmail:
		return validateEmail(value)
	case types.FieldTypePhone:
		return validatePhone(value)
	case types.FieldTypeName:
		return validateName(value)
	case types.FieldTypeAddress:
		return validateAddress(value)
	case types.FieldTypeCustom:
		return validateCustom(value, pattern)
	default:
		return false, fmt.Sprintf("Unknown field type: %s", fieldType)
	}
}

func validateEmail(value string) (bool, string) {
	v := strings.TrimSpace(value)
	if v == "" {
		return false, "Email is required."
	}
	if !emailRe.MatchString(v) {
		return false, "Please enter a valid email address."
	}
	return true, ""
}

func validatePhone(value string) (bool, string) {
	v := strings.TrimSpace(value)
	if v == "" {
		return false, "Phone number is required."
	}
	digits := digitRe.ReplaceAllString(v, "")
	if len(digits) < 10 {
		return false, "Please enter a valid phone number (at least 10 digits)."
	}
	if !phoneRe.MatchString(v) {
		return false, "Please enter a valid phone number."
	}
	return true, ""
}

func validateName(value string) (bool, string) {
	v := strings.TrimSpace(value)
	if v == "" {
		return false, "Name is required."
	}
	if !nameRe.MatchString(v) {
		return false, "Please enter a valid name."
	}
	return true, ""
}

func validateAddress(value string) (bool, string) {
	v := strings.TrimSpace(value)
	if v == "" {
		return false, "Address is required."
	}
	if len([]rune(v)) < 5 {
		return false, "Please enter a complete address."
	}
	return true, ""
}

func validateCustom(value, pattern string) (bool, string) {
	v := strings.TrimSpace(value)
	if v == "" {
		return false, "This field is required."
	}
	if pattern == "" {
		return true, ""
	}
	// Anchor at the start so patterns behave as prefix matches, the way the
	// configs that ship with the agent are written.
	re, err := regexp.Compile("^(?:" + pattern + ")")
	if err != nil {
		return false, "Validation error."
	}
	if !re.MatchString(v) {
		return false, "Invalid format."
	}
	return true, ""
}

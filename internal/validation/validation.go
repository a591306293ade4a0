// Package validation provides input validation for project publishing and share tokens
package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/wrale/sitepub/internal/expiry"
)

// Validation settings
const (
	MinNameLength        = 1   // Minimum share token name length in characters
	MaxNameLength        = 100 // Maximum share token name length in characters
	MaxProjectNameLength = 63  // Project names are used as URL path segments and DNS labels
)

// Visibility values accepted for a published project
const (
	VisibilityPublic  = "public"
	VisibilityPrivate = "private"
)

var projectNameRegex = regexp.MustCompile(fmt.Sprintf("^[a-z0-9]([a-z0-9-]{0,%d}[a-z0-9])?$", MaxProjectNameLength-2))

// ValidationError represents an input validation failure
type ValidationError struct {
	Field   string
	Value   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Message)
}

// ValidateName checks a share token name is between 1 and 100 characters
func ValidateName(name string) error {
	n := utf8.RuneCountInString(name)
	if n < MinNameLength || n > MaxNameLength {
		return &ValidationError{
			Field:   "name",
			Value:   truncate(name, 32),
			Message: fmt.Sprintf("length must be between %d and %d characters", MinNameLength, MaxNameLength),
		}
	}
	return nil
}

// ValidateDuration checks a share token duration is one of the fixed categories
func ValidateDuration(d string) error {
	if !expiry.Duration(d).Valid() {
		allowed := make([]string, 0, len(expiry.Durations()))
		for _, v := range expiry.Durations() {
			allowed = append(allowed, v.String())
		}
		return &ValidationError{
			Field:   "duration",
			Value:   d,
			Message: "must be one of " + strings.Join(allowed, ", "),
		}
	}
	return nil
}

// ValidateVisibility checks a project visibility value
func ValidateVisibility(v string) error {
	switch v {
	case VisibilityPublic, VisibilityPrivate:
		return nil
	}
	return &ValidationError{
		Field:   "visibility",
		Value:   v,
		Message: fmt.Sprintf("must be %q or %q", VisibilityPublic, VisibilityPrivate),
	}
}

// ValidateProjectName checks a project name is a lowercase DNS-label style slug
func ValidateProjectName(name string) error {
	if !projectNameRegex.MatchString(name) {
		return &ValidationError{
			Field:   "project name",
			Value:   truncate(name, 32),
			Message: fmt.Sprintf("must be 1-%d lowercase letters, digits or hyphens, not starting or ending with a hyphen", MaxProjectNameLength),
		}
	}
	return nil
}

// NormalizeProjectName converts user input to canonical project name form
func NormalizeProjectName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max]) + "..."
}

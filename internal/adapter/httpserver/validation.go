// Package httpserver contains HTTP handlers and middleware.
package httpserver

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// ValidationError describes a single invalid field.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationResult collects zero or more ValidationError values.
type ValidationResult struct {
	Errors []ValidationError
}

// Valid reports whether no errors were collected.
func (v ValidationResult) Valid() bool { return len(v.Errors) == 0 }

func (v *ValidationResult) add(field, message string) {
	v.Errors = append(v.Errors, ValidationError{Field: field, Message: message})
}

var userIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ValidateUserID checks a user id path/body parameter: bounded length,
// restricted character set, so it is safe to interpolate into log fields
// and SQL parameters alike.
func ValidateUserID(userID string) error {
	if userID == "" {
		return fmt.Errorf("user_id is required")
	}
	if len(userID) > 128 {
		return fmt.Errorf("user_id exceeds maximum length of 128")
	}
	if !userIDPattern.MatchString(userID) {
		return fmt.Errorf("user_id contains invalid characters")
	}
	return nil
}

// ValidatePagination checks page/limit query parameters, defaulting missing
// values and reporting non-numeric or out-of-range values as errors.
func ValidatePagination(pageStr, limitStr string) (page, limit int, result ValidationResult) {
	page = 1
	limit = 50

	if pageStr != "" {
		p, err := strconv.Atoi(pageStr)
		if err != nil || p < 1 {
			result.add("page", "must be a positive integer")
		} else {
			page = p
		}
	}

	if limitStr != "" {
		l, err := strconv.Atoi(limitStr)
		if err != nil || l < 1 || l > 100 {
			result.add("limit", "must be between 1 and 100")
		} else {
			limit = l
		}
	}

	return page, limit, result
}

var searchQueryPattern = regexp.MustCompile(`^[a-zA-Z0-9\s_-]+$`)

// ValidateSearchQuery bounds and shape-checks a free-text admin search
// parameter.
func ValidateSearchQuery(q string) error {
	if q == "" {
		return nil
	}
	if len(q) > 200 {
		return fmt.Errorf("query exceeds maximum length of 200")
	}
	if !searchQueryPattern.MatchString(q) {
		return fmt.Errorf("query contains invalid characters")
	}
	return nil
}

// validUserStatuses mirrors domain.UserStatus's three tiers as plain
// strings for validating a query parameter.
var validUserStatuses = map[string]bool{
	"free": true, "friend": true, "premium": true,
}

// ValidateStatus checks a user-status filter against the known tiers.
func ValidateStatus(status string) error {
	if status == "" {
		return nil
	}
	if !validUserStatuses[strings.ToLower(status)] {
		return fmt.Errorf("status must be one of: free, friend, premium")
	}
	return nil
}

// SanitizeString strips null bytes, trims surrounding whitespace, forces
// valid UTF-8, and caps length before admin input reaches a log line or a
// notification message body.
func SanitizeString(s string, maxLen int) string {
	s = strings.ReplaceAll(s, "\x00", "")
	s = strings.TrimSpace(s)
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "")
	}
	if maxLen > 0 && len(s) > maxLen {
		s = s[:maxLen]
	}
	return s
}

// SanitizeUserID strips characters outside the allowed user-id set and
// caps length.
func SanitizeUserID(userID string) string {
	var b strings.Builder
	for _, r := range userID {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			b.WriteRune(r)
		}
	}
	out := b.String()
	if len(out) > 128 {
		out = out[:128]
	}
	return out
}

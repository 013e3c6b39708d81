// Package validation provides input validation middleware for the Continuum API.
package validation

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
)

// MaxRequestSize is the maximum request body size (1MB)
const MaxRequestSize = 1 << 20 // 1MB

// MaxUserIDLength bounds user identifiers
const MaxUserIDLength = 64

// userIDRegex validates user identifiers: lowercase alphanumerics, dots,
// dashes, underscores.
var userIDRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]*$`)

// RequestSizeMiddleware limits request body size
func RequestSizeMiddleware(maxSize int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize)
		c.Next()
	}
}

// IsValidUserID checks if a string is a well-formed user identifier
func IsValidUserID(id string) bool {
	return len(id) <= MaxUserIDLength && userIDRegex.MatchString(id)
}

// SanitizeUserID normalizes a user identifier for lookup
func SanitizeUserID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// SanitizeString removes dangerous characters and limits length
func SanitizeString(s string, maxLen int) string {
	// Trim whitespace
	s = strings.TrimSpace(s)

	// Limit length
	if len(s) > maxLen {
		s = s[:maxLen]
	}

	// Remove null bytes
	s = strings.ReplaceAll(s, "\x00", "")

	return s
}

// ValidationError represents a validation error
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "validation failed"
	}
	return e[0].Field + ": " + e[0].Message
}

// Validate validates a request and returns errors
func Validate(validators ...func() *ValidationError) ValidationErrors {
	var errors ValidationErrors
	for _, v := range validators {
		if err := v(); err != nil {
			errors = append(errors, *err)
		}
	}
	return errors
}

// Required checks if a field is non-empty
func Required(field, value string) func() *ValidationError {
	return func() *ValidationError {
		if strings.TrimSpace(value) == "" {
			return &ValidationError{Field: field, Message: "is required"}
		}
		return nil
	}
}

// ValidUserID checks if a field is a well-formed user identifier
func ValidUserID(field, value string) func() *ValidationError {
	return func() *ValidationError {
		if value == "" {
			return nil // Use Required for required fields
		}
		if !IsValidUserID(value) {
			return &ValidationError{Field: field, Message: "must be a valid user id (lowercase alphanumerics, dots, dashes, underscores)"}
		}
		return nil
	}
}

// MaxLength checks if a field exceeds max length
func MaxLength(field, value string, max int) func() *ValidationError {
	return func() *ValidationError {
		if len(value) > max {
			return &ValidationError{Field: field, Message: "exceeds maximum length"}
		}
		return nil
	}
}

// UserIDParamMiddleware validates the :id URL parameter on routes that use it.
// Apply to route groups that include :id params to reject malformed user ids early.
func UserIDParamMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		if id != "" && !IsValidUserID(SanitizeUserID(id)) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_user_id",
				"message": "user id must be lowercase alphanumerics, dots, dashes, or underscores",
			})
			return
		}
		c.Next()
	}
}

// ValidLatitude checks a latitude in decimal degrees
func ValidLatitude(field string, value float64) func() *ValidationError {
	return func() *ValidationError {
		if value < -90 || value > 90 {
			return &ValidationError{Field: field, Message: "latitude must be in [-90, 90]"}
		}
		return nil
	}
}

// ValidLongitude checks a longitude in decimal degrees
func ValidLongitude(field string, value float64) func() *ValidationError {
	return func() *ValidationError {
		if value < -180 || value > 180 {
			return &ValidationError{Field: field, Message: "longitude must be in [-180, 180]"}
		}
		return nil
	}
}

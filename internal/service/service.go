// Package service contains the business rules of CodeVault.
//
//	Handler (HTTP)  → parses requests, writes responses
//	Service         → validates, applies defaults, orchestrates, logs
//	Repository      → owner-scoped reads and writes
//
// Services accept plain values and the caller's userID, never *http.Request,
// and return apperror values that the handler layer maps to status codes.
//
// WHY DOES EVERY METHOD TAKE userID?
// Ownership is the core rule of the system. Passing the caller explicitly
// (instead of hiding it in ctx) makes it impossible to forget the scope when
// calling the repository.
package service

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/codevault/codevault/internal/apperror"
)

// Validation limits.
const (
	MaxNameLength        = 255
	MaxTitleLength       = 255
	MaxDescriptionLength = 5000
	MaxLanguageLength    = 32
	MaxCodeLength        = 200000 // ~200KB of source
	MaxNoteLength        = 10000
	MaxMessageLength     = 20000
	MaxFilenameLength    = 255
)

var hexColor = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// requireText trims value and checks it is non-empty and at most max runes.
func requireText(field, value string, max int) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", apperror.ValidationFailed(field, field+" is required")
	}
	return value, maxLength(field, value, max)
}

func maxLength(field, value string, max int) error {
	if utf8.RuneCountInString(value) > max {
		return apperror.ValidationFailed(field,
			fmt.Sprintf("%s must be %d characters or less", field, max))
	}
	return nil
}

func validColor(color string) error {
	if !hexColor.MatchString(color) {
		return apperror.ValidationFailed("color", "color must be a hex value like #6366f1")
	}
	return nil
}

// normalizeLanguage lowercases the language tag; "" means "use the default".
func normalizeLanguage(lang string) (string, error) {
	lang = strings.ToLower(strings.TrimSpace(lang))
	return lang, maxLength("language", lang, MaxLanguageLength)
}

// trimOptional trims a nullable id, mapping "" to nil.
func trimOptional(id *string) *string {
	if id == nil {
		return nil
	}
	v := strings.TrimSpace(*id)
	if v == "" {
		return nil
	}
	return &v
}

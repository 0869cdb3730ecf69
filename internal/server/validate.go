package server

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Request limits, in characters.
const (
	maxMessageLength      = 2000
	maxSelectedTextLength = 5000
)

// supportedLanguages lists the accepted language codes.
var supportedLanguages = map[string]bool{"en": true, "ur": true}

// normalize sanitizes the request in place and validates it.
func (c *chatRequest) normalize() error {
	c.Message = sanitize(c.Message)
	c.SelectedText = sanitize(c.SelectedText)
	c.ContextWindow = sanitize(c.ContextWindow)
	c.SessionID = strings.TrimSpace(c.SessionID)

	if isBlank(c.Message) {
		return errors.New("message must not be empty")
	}
	if n := utf8.RuneCountInString(c.Message); n > maxMessageLength {
		return fmt.Errorf("message must be at most %d characters, got %d", maxMessageLength, n)
	}
	if n := utf8.RuneCountInString(c.SelectedText); n > maxSelectedTextLength {
		return fmt.Errorf("selected_text must be at most %d characters, got %d", maxSelectedTextLength, n)
	}

	c.Language = strings.ToLower(strings.TrimSpace(c.Language))
	if c.Language == "" {
		c.Language = "en"
	}
	if !supportedLanguages[c.Language] {
		return fmt.Errorf("language %q is not supported (use en or ur)", c.Language)
	}

	if c.SessionID != "" && !validSessionID(c.SessionID) {
		return errors.New("session_id must be a UUID")
	}
	return nil
}

// validSessionID reports whether id is a canonical 36-character UUID.
func validSessionID(id string) bool {
	return len(id) == 36 && uuid.Validate(id) == nil
}

// sanitize strips NUL bytes.
func sanitize(s string) string {
	return strings.ReplaceAll(s, "\x00", "")
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

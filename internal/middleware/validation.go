package middleware

import (
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

// ValidateQueryText validates a query's text.
func ValidateQueryText(text string) error {
	if len(text) == 0 {
		return errors.New("query text cannot be empty")
	}
	if len(text) > 8192 {
		return errors.New("query text exceeds maximum length")
	}
	if !utf8.ValidString(text) {
		return errors.New("query text must be valid UTF-8")
	}
	return nil
}

// ValidateSite validates a target site name.
func ValidateSite(site string) error {
	if len(site) == 0 {
		return errors.New("site cannot be empty")
	}
	if len(site) > 256 {
		return errors.New("site exceeds maximum length")
	}
	if strings.ContainsAny(site, " \t\n") {
		return errors.New("site must not contain whitespace")
	}
	return nil
}

// ValidateConversationID validates a conversation ID.
func ValidateConversationID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return errors.New("invalid conversation ID format")
	}
	return nil
}

// ValidateParticipantID validates a participant identifier.
func ValidateParticipantID(id string) error {
	if len(id) == 0 {
		return errors.New("participant ID cannot be empty")
	}
	if len(id) > 128 {
		return errors.New("participant ID exceeds maximum length")
	}
	return nil
}

// ValidateTitle validates a conversation title.
func ValidateTitle(title string) error {
	if len(title) > 256 {
		return errors.New("title exceeds maximum length")
	}
	if !utf8.ValidString(title) {
		return errors.New("title must be valid UTF-8")
	}
	return nil
}

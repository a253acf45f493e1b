package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// VerificationAction names the workflow a verification token is scoped to.
type VerificationAction string

const (
	ActionUsername        VerificationAction = "username"
	ActionEmail           VerificationAction = "email"
	ActionAccountDeletion VerificationAction = "account-deletion"
)

// Valid reports whether a is one of the known workflow tags.
func (a VerificationAction) Valid() bool {
	switch a {
	case ActionUsername, ActionEmail, ActionAccountDeletion:
		return true
	}
	return false
}

// TokenTTL is how long a verification code stays valid after it is issued
// or resent.
const TokenTTL = 15 * time.Minute

// Token validation failures. Handlers report these verbatim so the UI can
// prompt the user to retry or resend.
var (
	ErrNoToken        = errors.New("no verification token found")
	ErrTokenFormat    = errors.New("stored verification token is malformed")
	ErrCodeMismatch   = errors.New("verification code does not match")
	ErrWrongAction    = errors.New("verification token belongs to a different action")
	ErrTokenExpired   = errors.New("verification code expired")
	ErrNoVerification = errors.New("no verification in progress")
)

// TokenRecord is the ephemeral verification payload stored on a user record.
// A user holds at most one; issuing a token for any action overwrites whatever
// token was there before.
type TokenRecord struct {
	Code        string             `json:"code"`
	Action      VerificationAction `json:"action"`
	ExpiresAt   time.Time          `json:"expires_at"`
	RequestedAt time.Time          `json:"requested_at"`
	NewEmail    string             `json:"new_email,omitempty"` // email action only
}

// Expired reports whether the record's validity window has passed at now.
func (t *TokenRecord) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// Marshal serializes the record into the form stored on the user record.
func (t *TokenRecord) Marshal() (string, error) {
	b, err := json.Marshal(t)
	if err != nil {
		return "", fmt.Errorf("marshal token record: %w", err)
	}
	return string(b), nil
}

// ParseTokenRecord decodes a stored token attribute. An unparsable value
// yields ErrTokenFormat, never a panic.
func ParseTokenRecord(raw string) (*TokenRecord, error) {
	var t TokenRecord
	if err := json.Unmarshal([]byte(raw), &t); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenFormat, err)
	}
	if t.Code == "" || !t.Action.Valid() {
		return nil, ErrTokenFormat
	}
	return &t, nil
}

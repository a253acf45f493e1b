package domain

import "time"

// Auth providers. Federated accounts authenticate through Google and carry
// no local password.
const (
	AuthProviderLocal  = "local"
	AuthProviderGoogle = "google"
)

type User struct {
	UserID       string  `json:"id" dynamodbav:"user_id"`
	Username     string  `json:"username" dynamodbav:"username"`
	Email        string  `json:"email" dynamodbav:"email"`
	Phone        *string `json:"phone,omitempty" dynamodbav:"phone"`
	PasswordHash string  `json:"-" dynamodbav:"password_hash"`
	FirstName    string  `json:"first_name" dynamodbav:"first_name"`
	LastName     string  `json:"last_name" dynamodbav:"last_name"`
	AuthProvider string  `json:"auth_provider,omitempty" dynamodbav:"auth_provider"` // "local" | "google"
	GoogleSub    string  `json:"-" dynamodbav:"google_sub"`
	// VerificationToken holds the JSON-serialized TokenRecord of the single
	// in-flight verification workflow, or "" when none is pending.
	VerificationToken string    `json:"-" dynamodbav:"verification_token"`
	Enable            int       `json:"enable" dynamodbav:"enable"`
	CreatedAt         time.Time `json:"created" dynamodbav:"created_at"`
	UpdatedAt         time.Time `json:"updated" dynamodbav:"updated_at"`
}

// IsFederated reports whether the account authenticates through a third-party
// identity provider and therefore has no local password to verify.
func (u *User) IsFederated() bool {
	return u.AuthProvider != "" && u.AuthProvider != AuthProviderLocal
}

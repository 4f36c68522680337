package types

import "time"

// User represents an account in the system.
// It contains identity, profile, and audit metadata.
type User struct {
	// ID is the opaque identifier of the user assigned by the store.
	ID string `json:"id" db:"id"`

	// FullName is the user's display name.
	FullName string `json:"fullName" db:"full_name"`

	// Email is the user's unique, lower-cased email address.
	Email string `json:"email" db:"email"`

	// PasswordHash stores the bcrypt hash of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// ProfileImageURL points at the uploaded profile image, if any.
	ProfileImageURL string `json:"profileImageUrl,omitempty" db:"profile_image_url"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"createdAt" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the user account.
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// OneTimeCode is a short-lived registration code bound to an email address.
// There is at most one code per email; issuing a new one overwrites the old.
type OneTimeCode struct {
	// Email is the address the code was sent to.
	Email string `json:"email" db:"email"`

	// Code is the numeric value the user has to echo back.
	Code string `json:"-" db:"code"`

	// ExpiresAt is the instant after which the code is no longer accepted.
	ExpiresAt time.Time `json:"expiresAt" db:"expires_at"`

	// LastSentAt is when the code was last mailed, used for the resend cooldown.
	LastSentAt time.Time `json:"lastSentAt" db:"last_sent_at"`
}

// Expired reports whether the code is no longer valid at now.
func (c OneTimeCode) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

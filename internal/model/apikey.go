package model

import "time"

// APIKey is a long-lived credential that authenticates requests on behalf of
// an account. The token itself is the stored secret: verification looks keys
// up by exact token match, so the token column carries a unique index.
type APIKey struct {
	ID          int64             `json:"id"`
	OwnerID     int64             `json:"owner_id"`
	Environment string            `json:"environment"`
	KeyType     string            `json:"key_type"`
	Token       string            `json:"-"` // the secret, only shown at issuance
	CreatedAt   time.Time         `json:"created_at"`
	ExpiresAt   *time.Time        `json:"expires_at,omitempty"`
	CancelledAt *time.Time        `json:"cancelled_at,omitempty"`
	Notes       string            `json:"notes,omitempty"`
	RefID       *int64            `json:"ref_id,omitempty"`
	RefIDStr    string            `json:"ref_id_str,omitempty"`
	Meta        map[string]string `json:"meta,omitempty"`
}

// Cancelled reports whether the key has been revoked. Cancellation is
// permanent; nothing in this package clears CancelledAt.
func (k *APIKey) Cancelled() bool {
	return k.CancelledAt != nil
}

// ExpiredAt reports whether the key is past its expiry at the given instant.
// A key whose ExpiresAt equals now is still valid; only a strictly later
// check time expires it.
func (k *APIKey) ExpiredAt(now time.Time) bool {
	return k.ExpiresAt != nil && now.After(*k.ExpiresAt)
}

package model

import "time"

// ProviderGitHub is the provider name stored for linked GitHub accounts.
const ProviderGitHub = "github"

// ExternalAccount links a User to an identity at an external provider.
//
// AccessToken holds the provider token ENCRYPTED (see auth.TokenCipher); it is
// never serialised to JSON. One row per (user_id, provider).
type ExternalAccount struct {
	ID             string    `json:"id"             db:"id"`
	UserID         string    `json:"userId"         db:"user_id"`
	Provider       string    `json:"provider"       db:"provider"`
	ProviderUserID string    `json:"providerUserId" db:"provider_user_id"`
	Login          string    `json:"login"          db:"login"`
	AccessToken    string    `json:"-"              db:"access_token"`
	Scopes         string    `json:"scopes"         db:"scopes"`
	CreatedAt      time.Time `json:"createdAt"      db:"created_at"`
	UpdatedAt      time.Time `json:"updatedAt"      db:"updated_at"`
}

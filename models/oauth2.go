// ABOUTME: OAuth2 token model persisted per account for bearer-auth providers
// ABOUTME: Converts between the stored form and golang.org/x/oauth2 tokens

package models

import (
	"time"

	"golang.org/x/oauth2"
)

// OAuth2Token is the persisted form of a bearer token for one account
type OAuth2Token struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	ExpiresAt    time.Time `json:"expires_at"`
	IssuedAt     time.Time `json:"issued_at"`
}

// NewOAuth2Token builds a stored token from a freshly issued oauth2 token.
// The previous refresh token is kept when the provider did not rotate it.
func NewOAuth2Token(tok *oauth2.Token, existingRefreshToken string) *OAuth2Token {
	refresh := tok.RefreshToken
	if refresh == "" {
		refresh = existingRefreshToken
	}
	tokenType := tok.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}
	return &OAuth2Token{
		AccessToken:  tok.AccessToken,
		RefreshToken: refresh,
		TokenType:    tokenType,
		ExpiresAt:    tok.Expiry,
		IssuedAt:     time.Now(),
	}
}

// ToOAuth2 converts the stored token for use with an oauth2.TokenSource
func (t *OAuth2Token) ToOAuth2() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		TokenType:    t.TokenType,
		Expiry:       t.ExpiresAt,
	}
}

// IsExpired checks if the token is expired. A zero expiry never expires.
func (t *OAuth2Token) IsExpired() bool {
	if t.ExpiresAt.IsZero() {
		return false
	}
	return time.Now().After(t.ExpiresAt)
}

// NeedsRefresh checks if the token expires within the buffer
func (t *OAuth2Token) NeedsRefresh(buffer time.Duration) bool {
	if t.ExpiresAt.IsZero() {
		return false
	}
	return time.Now().Add(buffer).After(t.ExpiresAt)
}

// IsValid checks if the token is usable
func (t *OAuth2Token) IsValid() bool {
	return t.AccessToken != "" && !t.IsExpired()
}

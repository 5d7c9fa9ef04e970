// Package oidc signs users in through an OpenID Connect provider.
package oidc

import "strings"

// Claims represents extracted OIDC ID token claims.
type Claims struct {
	Subject       string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified *bool  `json:"email_verified"`
	Name          string `json:"name"`
	Nonce         string `json:"nonce"`
	Issuer        string `json:"iss"`
}

// DisplayName is the name claim, or the local part of the email when the
// provider sends no name.
func (c Claims) DisplayName() string {
	if name := strings.TrimSpace(c.Name); name != "" {
		return name
	}
	local, _, _ := strings.Cut(c.Email, "@")
	return local
}

// VerifiedEmail returns the email unless the provider marked it unverified.
// Providers that omit email_verified are trusted.
func (c Claims) VerifiedEmail() string {
	if c.EmailVerified != nil && !*c.EmailVerified {
		return ""
	}
	return c.Email
}

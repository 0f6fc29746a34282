// Package auth carries the caller's identity and Google credentials through
// a request. Issuing sessions and running OAuth flows happen elsewhere.
package auth

import (
	"context"

	"golang.org/x/oauth2"
)

type contextKey string

const (
	ownerKey       contextKey = "owner"
	googleTokenKey contextKey = "google_token"
)

// WithOwner stores the authenticated owner id in the context.
func WithOwner(ctx context.Context, owner string) context.Context {
	return context.WithValue(ctx, ownerKey, owner)
}

// OwnerFromContext returns the owner id stored by WithOwner.
func OwnerFromContext(ctx context.Context) (string, bool) {
	owner, ok := ctx.Value(ownerKey).(string)
	return owner, ok && owner != ""
}

// WithGoogleToken stores the caller's Google OAuth token in the context.
// Spreadsheet calls made with this context act on the caller's behalf.
func WithGoogleToken(ctx context.Context, tok *oauth2.Token) context.Context {
	return context.WithValue(ctx, googleTokenKey, tok)
}

// GoogleTokenFromContext returns the token stored by WithGoogleToken.
func GoogleTokenFromContext(ctx context.Context) (*oauth2.Token, bool) {
	tok, ok := ctx.Value(googleTokenKey).(*oauth2.Token)
	return tok, ok && tok != nil && tok.AccessToken != ""
}

package auth

import (
	"fmt"

	"golang.org/x/oauth2"
)

// TokenType is the authorization scheme of ClientLogin tokens.
const TokenType = "GoogleLogin"

// NewToken wraps a ClientLogin Auth value. The token has no expiry; the
// service revokes it server side.
func NewToken(auth string) *oauth2.Token {
	return &oauth2.Token{
		AccessToken: auth,
		TokenType:   TokenType,
	}
}

// AuthorizationHeader renders the header line that carries tok.
func AuthorizationHeader(tok *oauth2.Token) string {
	return fmt.Sprintf("Authorization: %s auth=%s", tok.Type(), tok.AccessToken)
}

// SanitizeToken masks a token for logging, keeping only its length.
func SanitizeToken(token string) string {
	if token == "" {
		return "<empty>"
	}
	return fmt.Sprintf("[token:%d chars]", len(token))
}

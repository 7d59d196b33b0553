package oidckit

import "errors"

// Key source failures. Unavailable maps to 503, malformed to 500.
var (
	ErrKeySourceUnavailable = errors.New("authentication service unavailable")
	ErrKeySourceMalformed   = errors.New("no usable public keys in issuer response")
	ErrKeyNotFound          = errors.New("public key not found")
)

// Verification failures. All of these collapse to 401 at the HTTP layer;
// the error text is the only detail that may reach the caller.
var (
	ErrNoToken           = errors.New("no token provided")
	ErrMalformedToken    = errors.New("invalid token format")
	ErrUnknownSigningKey = errors.New("unknown signing key")
	ErrInvalidSignature  = errors.New("invalid token signature")
	ErrTokenExpired      = errors.New("token has expired")
	ErrInvalidAudience   = errors.New("invalid token audience")
	ErrInvalidIssuer     = errors.New("invalid token issuer")
	ErrMissingClaims     = errors.New("token missing required claims")
	ErrTokenNotYetValid  = errors.New("token not yet valid")
)

// Userinfo pass-through failures.
var (
	ErrUserInfoUnauthorized = errors.New("invalid or expired token")
	ErrUserInfoUnavailable  = errors.New("user information service unavailable")
)

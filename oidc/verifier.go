package oidckit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
)

// VerifierConfig carries the verification options for one audience.
type VerifierConfig struct {
	// Algorithm is the only JWS algorithm accepted (e.g. RS256).
	Algorithm string
	// Audience must appear in the token's aud claim.
	Audience string
	// Issuer is the expected iss value. Only compared when VerifyIssuer is
	// set; presence of the claim is mandatory regardless.
	Issuer       string
	VerifyIssuer bool
	// Leeway tolerated on exp/nbf checks.
	Leeway time.Duration
}

// TokenVerifier turns a bearer token string into a verified Identity.
// Every check is a hard precondition; the first failure wins.
type TokenVerifier struct {
	keys KeySource
	cfg  VerifierConfig
	log  *logrus.Logger
	now  func() time.Time
}

// NewTokenVerifier builds a verifier over the given key source.
func NewTokenVerifier(keys KeySource, cfg VerifierConfig, log *logrus.Logger) *TokenVerifier {
	if cfg.Algorithm == "" {
		cfg.Algorithm = "RS256"
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	if !cfg.VerifyIssuer {
		// The iss value is not compared in this mode, only required to
		// be present.
		log.Warn("issuer value validation is disabled (JWT_VERIFY_ISSUER=false)")
	}
	return &TokenVerifier{keys: keys, cfg: cfg, log: log, now: time.Now}
}

// requiredClaims must be present in every accepted token.
var requiredClaims = []string{"sub", "iat", "exp", "iss"}

// Verify validates raw and returns its claim set. The returned error is one
// of the sentinel errors in errors.go; its text is safe to show the caller.
func (v *TokenVerifier) Verify(ctx context.Context, raw string) (*Identity, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, ErrNoToken
	}

	claims := &tokenClaims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{v.cfg.Algorithm}),
		// Temporal and identity claims are validated below, in a fixed
		// order, so each failure maps to exactly one category.
		jwt.WithoutClaimsValidation(),
	)
	_, err := parser.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, fmt.Errorf("%w: token missing key ID", ErrMalformedToken)
		}
		return v.keys.KeyByID(ctx, kid)
	})
	if err != nil {
		return nil, v.fail(classifyParseError(err), claims.Subject)
	}

	now := v.now()

	// Expiry, with leeway.
	if claims.ExpiresAt != nil && now.After(claims.ExpiresAt.Time.Add(v.cfg.Leeway)) {
		return nil, v.fail(ErrTokenExpired, claims.Subject)
	}

	// Audience.
	if !containsAudience(claims.Audience, v.cfg.Audience) {
		return nil, v.fail(ErrInvalidAudience, claims.Subject)
	}

	// Issuer value, only when enabled.
	if v.cfg.VerifyIssuer && claims.Issuer != v.cfg.Issuer {
		return nil, v.fail(ErrInvalidIssuer, claims.Subject)
	}

	// Required claim presence. iss stays mandatory even though its value
	// may not be compared above.
	if missing := missingRequired(claims); len(missing) > 0 {
		return nil, v.fail(fmt.Errorf("%w: %s", ErrMissingClaims, strings.Join(missing, ", ")), claims.Subject)
	}

	// Not-before, with leeway.
	if claims.NotBefore != nil && now.Add(v.cfg.Leeway).Before(claims.NotBefore.Time) {
		return nil, v.fail(ErrTokenNotYetValid, claims.Subject)
	}

	return newIdentity(claims, extraClaims(raw)), nil
}

// fail logs the specific category before it is surfaced; the caller only
// ever sees the sentinel text.
func (v *TokenVerifier) fail(err error, subject string) error {
	fields := logrus.Fields{}
	if subject != "" {
		fields["sub"] = subject
	}
	v.log.WithFields(fields).WithError(err).Warn("token verification failed")
	return err
}

func classifyParseError(err error) error {
	switch {
	case errors.Is(err, ErrKeySourceUnavailable),
		errors.Is(err, ErrKeySourceMalformed),
		errors.Is(err, ErrMalformedToken):
		return err
	case errors.Is(err, ErrKeyNotFound):
		return fmt.Errorf("%w: %v", ErrUnknownSigningKey, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return ErrInvalidSignature
	default:
		return fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
}

func containsAudience(aud jwt.ClaimStrings, want string) bool {
	for _, a := range aud {
		if a == want {
			return true
		}
	}
	return false
}

func missingRequired(c *tokenClaims) []string {
	var missing []string
	if c.Subject == "" {
		missing = append(missing, "sub")
	}
	if c.IssuedAt == nil {
		missing = append(missing, "iat")
	}
	if c.ExpiresAt == nil {
		missing = append(missing, "exp")
	}
	if c.Issuer == "" {
		missing = append(missing, "iss")
	}
	return missing
}

// extraClaims re-decodes the payload and keeps whatever the structured
// claim type does not model.
func extraClaims(raw string) map[string]any {
	var all jwt.MapClaims
	if _, _, err := jwt.NewParser().ParseUnverified(raw, &all); err != nil {
		return nil
	}
	known := map[string]struct{}{
		"sub": {}, "iss": {}, "aud": {}, "exp": {}, "iat": {}, "nbf": {}, "jti": {},
		"email": {}, "preferred_username": {}, "realm_access": {}, "resource_access": {},
	}
	extra := make(map[string]any)
	for k, v := range all {
		if _, ok := known[k]; !ok {
			extra[k] = v
		}
	}
	if len(extra) == 0 {
		return nil
	}
	return extra
}

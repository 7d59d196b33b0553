// Package authgin adapts the trust core to gin: bearer extraction, the
// verification gate, and role-gate middleware.
package authgin

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/open-rails/workplan/authz"
	oidckit "github.com/open-rails/workplan/oidc"
)

const (
	identityKey = "auth.identity"
	tokenKey    = "auth.token"
)

// BearerToken extracts the credential from the Authorization header.
func BearerToken(c *gin.Context) (string, bool) {
	h := c.GetHeader("Authorization")
	if h == "" {
		return "", false
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

// AuthRequired verifies the bearer token and stores the resulting identity
// in the request context. Verification failures are 401 with the category
// only; issuer trouble is 503/500 since it is not the caller's fault.
func AuthRequired(v *oidckit.TokenVerifier, log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := BearerToken(c)
		if !ok {
			Unauthorized(c, "not authenticated")
			return
		}
		id, err := v.Verify(c.Request.Context(), raw)
		if err != nil {
			switch {
			case errors.Is(err, oidckit.ErrKeySourceUnavailable):
				Unavailable(c, oidckit.ErrKeySourceUnavailable.Error())
			case errors.Is(err, oidckit.ErrKeySourceMalformed):
				ServerErr(c, "failed to retrieve authentication keys")
			default:
				Unauthorized(c, FailureDetail(err))
			}
			return
		}
		c.Set(identityKey, id)
		c.Set(tokenKey, raw)
		c.Next()
	}
}

// IdentityFromGin returns the verified identity set by AuthRequired.
func IdentityFromGin(c *gin.Context) (*oidckit.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return nil, false
	}
	id, ok := v.(*oidckit.Identity)
	return id, ok
}

// RawTokenFromGin returns the bearer string for pass-through calls.
func RawTokenFromGin(c *gin.Context) (string, bool) {
	v, ok := c.Get(tokenKey)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// RequireRole gates the request on one role. Must run after AuthRequired.
func RequireRole(role string, log *logrus.Logger) gin.HandlerFunc {
	return requireGuard(authz.RequireRole(role), log)
}

// RequireAnyRole gates the request on holding at least one of roles.
func RequireAnyRole(log *logrus.Logger, roles ...string) gin.HandlerFunc {
	return requireGuard(authz.RequireAnyRole(roles...), log)
}

func requireGuard(guard authz.Guard, log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := IdentityFromGin(c)
		if !ok {
			Unauthorized(c, "not authenticated")
			return
		}
		if err := guard(id); err != nil {
			var fe *authz.ForbiddenError
			if errors.As(err, &fe) {
				log.WithFields(logrus.Fields{
					"sub":      id.Subject,
					"required": fe.Required,
					"held":     fe.Held,
				}).Warn("role gate denied request")
			}
			Forbidden(c, err.Error())
			return
		}
		c.Next()
	}
}

// FailureDetail maps a verification error to the caller-visible category.
func FailureDetail(err error) string {
	for _, sentinel := range []error{
		oidckit.ErrNoToken,
		oidckit.ErrMalformedToken,
		oidckit.ErrUnknownSigningKey,
		oidckit.ErrInvalidSignature,
		oidckit.ErrTokenExpired,
		oidckit.ErrInvalidAudience,
		oidckit.ErrInvalidIssuer,
		oidckit.ErrTokenNotYetValid,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	if errors.Is(err, oidckit.ErrMissingClaims) {
		// Missing-claim names are part of the contract ("token missing
		// required claims: iss").
		return err.Error()
	}
	return "token verification failed"
}

// RateLimiter is the sliding-window limiter interface both the redis and
// memory implementations satisfy.
type RateLimiter interface {
	AllowNamed(bucket, key string) (bool, error)
}

// RLWrites is the shared bucket for mutating endpoints.
const RLWrites = "writes"

// RateLimit gates a route on the named bucket. Runs after AuthRequired so
// the limit keys on the subject rather than the client IP.
func RateLimit(rl RateLimiter, bucket string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !Allow(c, rl, bucket) {
			TooMany(c)
			return
		}
		c.Next()
	}
}

// Allow checks the bucket limit keyed by the caller's subject, falling back
// to client IP when unauthenticated. A nil limiter always allows.
func Allow(c *gin.Context, rl RateLimiter, bucket string) bool {
	if rl == nil {
		return true
	}
	key := c.ClientIP()
	if id, ok := IdentityFromGin(c); ok && id.Subject != "" {
		key = id.Subject
	}
	ok, err := rl.AllowNamed(bucket, key)
	if err != nil {
		// Fail open: limiter trouble must not take down auth'd traffic.
		return true
	}
	return ok
}

// CORS is a minimal allow-list CORS middleware for the configured origins.
func CORS(allowedOrigins []string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = struct{}{}
	}
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if _, ok := allowed[origin]; ok {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type")
			c.Header("Access-Control-Allow-Credentials", "true")
		}
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}

// RequestLogger logs one line per request with identity when present.
func RequestLogger(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		fields := logrus.Fields{
			"method": c.Request.Method,
			"path":   c.Request.URL.Path,
			"status": c.Writer.Status(),
		}
		if id, ok := IdentityFromGin(c); ok {
			fields["sub"] = id.Subject
		}
		log.WithFields(fields).Info(fmt.Sprintf("%s %s", c.Request.Method, c.Request.URL.Path))
	}
}

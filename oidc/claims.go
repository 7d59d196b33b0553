package oidckit

import (
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

// roleList is the {"roles": [...]} shape Keycloak uses for realm and
// client role claims.
type roleList struct {
	Roles []string `json:"roles"`
}

// tokenClaims is the decoded payload shape the verifier works on.
// Provider-specific claims beyond these land in Identity.Extra.
type tokenClaims struct {
	jwt.RegisteredClaims
	Email             string              `json:"email,omitempty"`
	PreferredUsername string              `json:"preferred_username,omitempty"`
	RealmAccess       roleList            `json:"realm_access,omitempty"`
	ResourceAccess    map[string]roleList `json:"resource_access,omitempty"`
}

// Identity is the verified claim set of a bearer token. It is built once by
// the verifier, never mutated afterwards, and discarded with the request.
type Identity struct {
	Subject   string
	Issuer    string
	Audience  []string
	IssuedAt  time.Time
	ExpiresAt time.Time
	// NotBefore is nil when the token carries no nbf claim.
	NotBefore *time.Time

	Email             string
	PreferredUsername string

	// RealmRoles are roles scoped to the whole identity domain.
	RealmRoles []string
	// ClientRoles maps a client id to the roles scoped to it.
	ClientRoles map[string][]string

	// Extra carries provider-specific claims the structured fields do not
	// cover. Values are the raw decoded JSON types.
	Extra map[string]any
}

func newIdentity(c *tokenClaims, extra map[string]any) *Identity {
	id := &Identity{
		Subject:           c.Subject,
		Issuer:            c.Issuer,
		Audience:          c.Audience,
		Email:             c.Email,
		PreferredUsername: c.PreferredUsername,
		RealmRoles:        c.RealmAccess.Roles,
		Extra:             extra,
	}
	if c.IssuedAt != nil {
		id.IssuedAt = c.IssuedAt.Time
	}
	if c.ExpiresAt != nil {
		id.ExpiresAt = c.ExpiresAt.Time
	}
	if c.NotBefore != nil {
		t := c.NotBefore.Time
		id.NotBefore = &t
	}
	if len(c.ResourceAccess) > 0 {
		id.ClientRoles = make(map[string][]string, len(c.ResourceAccess))
		for client, rl := range c.ResourceAccess {
			id.ClientRoles[client] = rl.Roles
		}
	}
	return id
}

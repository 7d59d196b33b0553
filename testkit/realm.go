// Package testkit runs a Keycloak-shaped identity provider inside tests.
// It serves the realm certs endpoint, a userinfo endpoint, and mints
// RS256 tokens that validate against the published key set, so packages
// can exercise the full verification path without a real realm.
//
//	realm := testkit.NewRealm("workplan")
//	defer realm.Close()
//
//	token := realm.Mint(testkit.TokenSpec{Subject: "user-1", RealmRoles: []string{"admin"}})
package testkit

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

type signingKey struct {
	kid string
	key *rsa.PrivateKey
}

// Realm is a fake identity provider bound to an httptest server.
type Realm struct {
	name   string
	server *httptest.Server

	mu      sync.Mutex
	current *signingKey
	retired []*signingKey
	fetches int

	// foreign signs tokens with a key the realm never publishes.
	foreign *rsa.PrivateKey
}

// NewRealm starts a realm with one published signing key.
func NewRealm(name string) *Realm {
	r := &Realm{
		name:    name,
		current: newSigningKey("key-1"),
		foreign: mustKey(),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/realms/"+name+"/protocol/openid-connect/certs", r.handleCerts)
	mux.HandleFunc("/realms/"+name+"/protocol/openid-connect/userinfo", r.handleUserInfo)
	r.server = httptest.NewServer(mux)
	return r
}

func newSigningKey(kid string) *signingKey {
	return &signingKey{kid: kid, key: mustKey()}
}

func mustKey() *rsa.PrivateKey {
	k, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		panic("testkit: generate RSA key: " + err.Error())
	}
	return k
}

// Close shuts the realm server down.
func (r *Realm) Close() { r.server.Close() }

// BaseURL returns the server root, the stand-in for the Keycloak URL.
func (r *Realm) BaseURL() string { return r.server.URL }

// Issuer returns the realm issuer URL, the expected iss claim value.
func (r *Realm) Issuer() string {
	return r.server.URL + "/realms/" + r.name
}

// CertsURL returns the JWKS endpoint.
func (r *Realm) CertsURL() string {
	return r.Issuer() + "/protocol/openid-connect/certs"
}

// UserInfoURL returns the userinfo endpoint.
func (r *Realm) UserInfoURL() string {
	return r.Issuer() + "/protocol/openid-connect/userinfo"
}

// Fetches reports how many times the certs endpoint has been hit.
func (r *Realm) Fetches() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fetches
}

// Rotate replaces the published key. The old key stays in the document
// when keepOld is true, matching a realm mid-rotation.
func (r *Realm) Rotate(keepOld bool) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if keepOld {
		r.retired = append(r.retired, r.current)
	} else {
		r.retired = nil
	}
	r.current = newSigningKey(fmt.Sprintf("key-%d", len(r.retired)+2))
	return r.current.kid
}

// CurrentKID returns the kid of the key that signs new tokens.
func (r *Realm) CurrentKID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current.kid
}

// TokenSpec describes a token to mint. Zero values get sane defaults:
// subject "user-1", audience "account", one hour of validity.
type TokenSpec struct {
	Subject     string
	Audience    string
	TTL         time.Duration
	NotBefore   *time.Time
	RealmRoles  []string
	ClientRoles map[string][]string

	// Drop removes claims by name after defaults are applied.
	Drop []string
	// Set overrides or adds claims after defaults are applied.
	Set map[string]any

	// Kid overrides the header kid without changing the signing key.
	Kid string
	// OmitKid drops the kid header entirely.
	OmitKid bool
	// ForeignKey signs with a key the certs endpoint never publishes.
	ForeignKey bool
}

// Mint signs a token matching the given TokenSpec with the realm's
// current key.
func (r *Realm) Mint(spec TokenSpec) string {
	if spec.Subject == "" {
		spec.Subject = "user-1"
	}
	if spec.Audience == "" {
		spec.Audience = "account"
	}
	if spec.TTL == 0 {
		spec.TTL = time.Hour
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"sub":                spec.Subject,
		"iss":                r.Issuer(),
		"aud":                spec.Audience,
		"exp":                now.Add(spec.TTL).Unix(),
		"iat":                now.Unix(),
		"email":              spec.Subject + "@example.com",
		"preferred_username": spec.Subject,
	}
	if spec.NotBefore != nil {
		claims["nbf"] = spec.NotBefore.Unix()
	}
	if len(spec.RealmRoles) > 0 {
		claims["realm_access"] = map[string]any{"roles": spec.RealmRoles}
	}
	if len(spec.ClientRoles) > 0 {
		ra := map[string]any{}
		for client, roles := range spec.ClientRoles {
			ra[client] = map[string]any{"roles": roles}
		}
		claims["resource_access"] = ra
	}
	for k, v := range spec.Set {
		claims[k] = v
	}
	for _, k := range spec.Drop {
		delete(claims, k)
	}

	r.mu.Lock()
	kid := r.current.kid
	key := r.current.key
	r.mu.Unlock()
	if spec.ForeignKey {
		key = r.foreign
	}
	if spec.Kid != "" {
		kid = spec.Kid
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	if spec.OmitKid {
		delete(token.Header, "kid")
	} else {
		token.Header["kid"] = kid
	}
	signed, err := token.SignedString(key)
	if err != nil {
		panic("testkit: sign token: " + err.Error())
	}
	return signed
}

func (r *Realm) handleCerts(w http.ResponseWriter, req *http.Request) {
	r.mu.Lock()
	r.fetches++
	keys := make([]map[string]string, 0, len(r.retired)+1)
	for _, sk := range append(append([]*signingKey{}, r.retired...), r.current) {
		keys = append(keys, publicJWK(sk))
	}
	r.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"keys": keys})
}

func (r *Realm) handleUserInfo(w http.ResponseWriter, req *http.Request) {
	auth := req.Header.Get("Authorization")
	raw, ok := strings.CutPrefix(auth, "Bearer ")
	if !ok || raw == "" {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	// Good enough for tests: decode the claims without verifying.
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"sub":                claims["sub"],
		"email":              claims["email"],
		"preferred_username": claims["preferred_username"],
	})
}

func publicJWK(sk *signingKey) map[string]string {
	pub := &sk.key.PublicKey
	return map[string]string{
		"kty": "RSA",
		"use": "sig",
		"alg": "RS256",
		"kid": sk.kid,
		"n":   b64BigInt(pub.N),
		"e":   b64BigInt(big.NewInt(int64(pub.E))),
	}
}

func b64BigInt(i *big.Int) string {
	b := i.Bytes()
	for len(b) > 0 && b[0] == 0 {
		b = b[1:]
	}
	return base64.RawURLEncoding.EncodeToString(b)
}

// Package config loads service settings from the environment.
//
// A .env file in the working directory is honored for local development;
// real environments are expected to inject variables directly.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Settings holds every option the service reads. The trust core only sees
// the Keycloak/JWT fields; everything else belongs to the outer layers.
type Settings struct {
	Port        int
	DatabaseURL string
	RedisAddr   string

	KeycloakURL      string
	KeycloakRealm    string
	KeycloakClientID string

	JWTAlgorithm string
	JWTAudience  string
	// Leeway tolerated when validating exp/nbf.
	JWTLeeway time.Duration
	// VerifyIssuer enables the iss value check. The claim's presence is
	// mandatory either way.
	VerifyIssuer bool

	PublicKeyCacheTTL time.Duration

	AllowedOrigins []string
	LogLevel       string
}

// Load reads settings from the environment, applying defaults that mirror a
// local docker-compose setup.
func Load() (*Settings, error) {
	_ = godotenv.Load()

	s := &Settings{
		Port:              envInt("PORT", 8000),
		DatabaseURL:       envStr("DATABASE_URL", "postgres://pm_user:pm_password@db:5432/project_management"),
		RedisAddr:         envStr("REDIS_ADDR", ""),
		KeycloakURL:       envStr("KEYCLOAK_URL", "http://127.0.0.1:8180"),
		KeycloakRealm:     envStr("KEYCLOAK_REALM", "project-management"),
		KeycloakClientID:  envStr("KEYCLOAK_CLIENT_ID", "pm-backend"),
		JWTAlgorithm:      envStr("JWT_ALGORITHM", "RS256"),
		JWTAudience:       envStr("JWT_AUDIENCE", "account"),
		JWTLeeway:         time.Duration(envInt("JWT_LEEWAY_SECONDS", 30)) * time.Second,
		VerifyIssuer:      envBool("JWT_VERIFY_ISSUER", false),
		PublicKeyCacheTTL: time.Duration(envInt("PUBLIC_KEY_CACHE_TTL_SECONDS", 3600)) * time.Second,
		AllowedOrigins:    envList("ALLOWED_ORIGINS", []string{"http://localhost:3000", "http://localhost:8080"}),
		LogLevel:          envStr("LOG_LEVEL", "info"),
	}

	if s.KeycloakURL == "" {
		return nil, fmt.Errorf("config: KEYCLOAK_URL is required")
	}
	if s.KeycloakRealm == "" {
		return nil, fmt.Errorf("config: KEYCLOAK_REALM is required")
	}
	if s.JWTAudience == "" {
		return nil, fmt.Errorf("config: JWT_AUDIENCE is required")
	}
	return s, nil
}

// RealmURL is the issuer URL for the configured realm.
func (s *Settings) RealmURL() string {
	return strings.TrimRight(s.KeycloakURL, "/") + "/realms/" + s.KeycloakRealm
}

// CertsURL is the realm's JWKS endpoint.
func (s *Settings) CertsURL() string {
	return s.RealmURL() + "/protocol/openid-connect/certs"
}

// UserinfoURL is the realm's userinfo endpoint.
func (s *Settings) UserinfoURL() string {
	return s.RealmURL() + "/protocol/openid-connect/userinfo"
}

func envStr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envList(key string, def []string) []string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

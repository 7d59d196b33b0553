package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	s, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Port != 8000 {
		t.Errorf("Port = %d", s.Port)
	}
	if s.JWTAudience != "account" {
		t.Errorf("JWTAudience = %q", s.JWTAudience)
	}
	if s.JWTLeeway != 30*time.Second {
		t.Errorf("JWTLeeway = %v", s.JWTLeeway)
	}
	if s.VerifyIssuer {
		t.Error("VerifyIssuer should default to off")
	}
	if s.PublicKeyCacheTTL != time.Hour {
		t.Errorf("PublicKeyCacheTTL = %v", s.PublicKeyCacheTTL)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("JWT_LEEWAY_SECONDS", "5")
	t.Setenv("JWT_VERIFY_ISSUER", "true")
	t.Setenv("ALLOWED_ORIGINS", "https://app.example.com, https://admin.example.com")

	s, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Port != 9090 {
		t.Errorf("Port = %d", s.Port)
	}
	if s.JWTLeeway != 5*time.Second {
		t.Errorf("JWTLeeway = %v", s.JWTLeeway)
	}
	if !s.VerifyIssuer {
		t.Error("VerifyIssuer override ignored")
	}
	want := []string{"https://app.example.com", "https://admin.example.com"}
	if len(s.AllowedOrigins) != len(want) {
		t.Fatalf("AllowedOrigins = %v", s.AllowedOrigins)
	}
	for i := range want {
		if s.AllowedOrigins[i] != want[i] {
			t.Errorf("AllowedOrigins[%d] = %q, want %q", i, s.AllowedOrigins[i], want[i])
		}
	}
}

func TestRealmDerivedURLs(t *testing.T) {
	t.Setenv("KEYCLOAK_URL", "https://id.example.com/")
	t.Setenv("KEYCLOAK_REALM", "workplan")

	s, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := s.RealmURL(); got != "https://id.example.com/realms/workplan" {
		t.Errorf("RealmURL = %q", got)
	}
	if got := s.CertsURL(); got != "https://id.example.com/realms/workplan/protocol/openid-connect/certs" {
		t.Errorf("CertsURL = %q", got)
	}
	if got := s.UserinfoURL(); got != "https://id.example.com/realms/workplan/protocol/openid-connect/userinfo" {
		t.Errorf("UserinfoURL = %q", got)
	}
}

func TestLoadRejectsBlankRequiredValues(t *testing.T) {
	t.Setenv("JWT_AUDIENCE", " ")
	// A blank value falls back to the default rather than failing; only a
	// deliberately cleared default is an error.
	if _, err := Load(); err != nil {
		t.Fatalf("blank audience should fall back to default, got %v", err)
	}
}

package oidckit

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/open-rails/workplan/testkit"
)

func newTestVerifier(t *testing.T, realm *testkit.Realm, mutate func(*VerifierConfig)) *TokenVerifier {
	t.Helper()
	cfg := VerifierConfig{
		Algorithm: "RS256",
		Audience:  "account",
		Issuer:    realm.Issuer(),
		Leeway:    30 * time.Second,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	keys := NewRemoteKeySource(realm.CertsURL(), time.Hour, quietLog())
	return NewTokenVerifier(keys, cfg, quietLog())
}

func TestVerifyValidToken(t *testing.T) {
	realm := testkit.NewRealm("workplan")
	defer realm.Close()
	v := newTestVerifier(t, realm, nil)

	raw := realm.Mint(testkit.TokenSpec{
		Subject:     "alice",
		RealmRoles:  []string{"developer"},
		ClientRoles: map[string][]string{"pm-backend": {"reporter"}},
		Set:         map[string]any{"tenant": "acme"},
	})
	id, err := v.Verify(context.Background(), raw)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if id.Subject != "alice" {
		t.Errorf("Subject = %q, want alice", id.Subject)
	}
	if id.Email != "alice@example.com" {
		t.Errorf("Email = %q", id.Email)
	}
	if len(id.RealmRoles) != 1 || id.RealmRoles[0] != "developer" {
		t.Errorf("RealmRoles = %v", id.RealmRoles)
	}
	if got := id.ClientRoles["pm-backend"]; len(got) != 1 || got[0] != "reporter" {
		t.Errorf("ClientRoles = %v", id.ClientRoles)
	}
	if id.Extra["tenant"] != "acme" {
		t.Errorf("Extra = %v, want tenant claim preserved", id.Extra)
	}
}

func TestVerifyFailureCategories(t *testing.T) {
	realm := testkit.NewRealm("workplan")
	defer realm.Close()

	past := time.Now().Add(-2 * time.Hour)
	future := time.Now().Add(2 * time.Hour)

	cases := []struct {
		name string
		raw  func() string
		want error
	}{
		{
			name: "empty token",
			raw:  func() string { return "  " },
			want: ErrNoToken,
		},
		{
			name: "garbage token",
			raw:  func() string { return "not.a.jwt" },
			want: ErrMalformedToken,
		},
		{
			name: "missing kid header",
			raw:  func() string { return realm.Mint(testkit.TokenSpec{OmitKid: true}) },
			want: ErrMalformedToken,
		},
		{
			name: "unknown signing key",
			raw:  func() string { return realm.Mint(testkit.TokenSpec{Kid: "ghost"}) },
			want: ErrUnknownSigningKey,
		},
		{
			name: "signature from unpublished key",
			raw:  func() string { return realm.Mint(testkit.TokenSpec{ForeignKey: true}) },
			want: ErrInvalidSignature,
		},
		{
			name: "expired beyond leeway",
			raw:  func() string { return realm.Mint(testkit.TokenSpec{TTL: -time.Hour}) },
			want: ErrTokenExpired,
		},
		{
			name: "wrong audience",
			raw:  func() string { return realm.Mint(testkit.TokenSpec{Audience: "other-app"}) },
			want: ErrInvalidAudience,
		},
		{
			name: "missing subject",
			raw:  func() string { return realm.Mint(testkit.TokenSpec{Drop: []string{"sub"}}) },
			want: ErrMissingClaims,
		},
		{
			name: "missing issued-at",
			raw:  func() string { return realm.Mint(testkit.TokenSpec{Drop: []string{"iat"}}) },
			want: ErrMissingClaims,
		},
		{
			name: "not yet valid",
			raw:  func() string { return realm.Mint(testkit.TokenSpec{NotBefore: &future}) },
			want: ErrTokenNotYetValid,
		},
		{
			name: "nbf within leeway passes",
			raw: func() string {
				soon := time.Now().Add(10 * time.Second)
				return realm.Mint(testkit.TokenSpec{NotBefore: &soon})
			},
			want: nil,
		},
		{
			name: "nbf in the past passes",
			raw:  func() string { return realm.Mint(testkit.TokenSpec{NotBefore: &past}) },
			want: nil,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v := newTestVerifier(t, realm, nil)
			_, err := v.Verify(context.Background(), tc.raw())
			if tc.want == nil {
				if err != nil {
					t.Fatalf("Verify: %v, want success", err)
				}
				return
			}
			if !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestVerifyMissingIssuerNamesClaim(t *testing.T) {
	realm := testkit.NewRealm("workplan")
	defer realm.Close()
	v := newTestVerifier(t, realm, nil)

	raw := realm.Mint(testkit.TokenSpec{Drop: []string{"iss"}})
	_, err := v.Verify(context.Background(), raw)
	if !errors.Is(err, ErrMissingClaims) {
		t.Fatalf("err = %v, want ErrMissingClaims", err)
	}
	if !strings.Contains(err.Error(), "iss") {
		t.Fatalf("error %q does not name the missing claim", err)
	}
}

func TestVerifyIssuerValueOnlyWhenEnabled(t *testing.T) {
	realm := testkit.NewRealm("workplan")
	defer realm.Close()

	raw := realm.Mint(testkit.TokenSpec{Set: map[string]any{"iss": "https://somewhere-else/realms/x"}})

	// Default deployment: presence is enough, the value is not compared.
	lenient := newTestVerifier(t, realm, nil)
	if _, err := lenient.Verify(context.Background(), raw); err != nil {
		t.Fatalf("lenient Verify: %v", err)
	}

	strict := newTestVerifier(t, realm, func(cfg *VerifierConfig) { cfg.VerifyIssuer = true })
	if _, err := strict.Verify(context.Background(), raw); !errors.Is(err, ErrInvalidIssuer) {
		t.Fatalf("strict err = %v, want ErrInvalidIssuer", err)
	}
}

func TestVerifyUnknownKidForcesSingleRefetch(t *testing.T) {
	realm := testkit.NewRealm("workplan")
	defer realm.Close()
	v := newTestVerifier(t, realm, nil)

	raw := realm.Mint(testkit.TokenSpec{Kid: "ghost"})
	if _, err := v.Verify(context.Background(), raw); !errors.Is(err, ErrUnknownSigningKey) {
		t.Fatalf("err = %v, want ErrUnknownSigningKey", err)
	}
	// Cold fetch plus exactly one rotation-suspect refresh.
	if got := realm.Fetches(); got != 2 {
		t.Fatalf("fetches = %d, want 2", got)
	}
}

func TestVerifySurvivesKeyRotation(t *testing.T) {
	realm := testkit.NewRealm("workplan")
	defer realm.Close()
	v := newTestVerifier(t, realm, nil)

	// Prime the cache with the old key set.
	if _, err := v.Verify(context.Background(), realm.Mint(testkit.TokenSpec{})); err != nil {
		t.Fatalf("prime: %v", err)
	}

	realm.Rotate(true)
	raw := realm.Mint(testkit.TokenSpec{Subject: "bob"})
	id, err := v.Verify(context.Background(), raw)
	if err != nil {
		t.Fatalf("Verify after rotation: %v", err)
	}
	if id.Subject != "bob" {
		t.Errorf("Subject = %q, want bob", id.Subject)
	}
}

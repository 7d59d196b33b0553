package oidckit

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/open-rails/workplan/testkit"
)

func quietLog() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// fakeClock replaces the source's clock so TTL expiry and the forced
// refresh interval can be driven from the test.
type fakeClock struct {
	mu  sync.Mutex
	cur time.Time
}

func newFakeClock() *fakeClock { return &fakeClock{cur: time.Now()} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cur
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cur = c.cur.Add(d)
}

func TestKeysCachedUntilTTL(t *testing.T) {
	realm := testkit.NewRealm("workplan")
	defer realm.Close()

	clock := newFakeClock()
	src := NewRemoteKeySource(realm.CertsURL(), time.Hour, quietLog())
	src.now = clock.Now

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		keys, err := src.Keys(ctx)
		if err != nil {
			t.Fatalf("Keys: %v", err)
		}
		if len(keys) != 1 {
			t.Fatalf("got %d keys, want 1", len(keys))
		}
	}
	if got := realm.Fetches(); got != 1 {
		t.Fatalf("fetches = %d, want 1 while cache is warm", got)
	}

	clock.Advance(time.Hour + time.Second)
	if _, err := src.Keys(ctx); err != nil {
		t.Fatalf("Keys after TTL: %v", err)
	}
	if got := realm.Fetches(); got != 2 {
		t.Fatalf("fetches = %d, want 2 after TTL expiry", got)
	}
}

func TestConcurrentColdMissesCoalesce(t *testing.T) {
	realm := testkit.NewRealm("workplan")
	defer realm.Close()

	src := NewRemoteKeySource(realm.CertsURL(), time.Hour, quietLog())

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := src.Keys(context.Background()); err != nil {
				t.Errorf("Keys: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := realm.Fetches(); got != 1 {
		t.Fatalf("fetches = %d, want 1 for coalesced cold start", got)
	}
}

func TestKeyByIDForcesOneRefreshOnMiss(t *testing.T) {
	realm := testkit.NewRealm("workplan")
	defer realm.Close()

	clock := newFakeClock()
	src := NewRemoteKeySource(realm.CertsURL(), time.Hour, quietLog())
	src.now = clock.Now

	ctx := context.Background()
	if _, err := src.Keys(ctx); err != nil {
		t.Fatalf("prime: %v", err)
	}

	// Rotation invalidates the cached kid; the miss must trigger exactly
	// one refresh and then resolve the new key.
	newKid := realm.Rotate(false)
	key, err := src.KeyByID(ctx, newKid)
	if err != nil {
		t.Fatalf("KeyByID(%q): %v", newKid, err)
	}
	if key == nil {
		t.Fatal("KeyByID returned nil key")
	}
	if got := realm.Fetches(); got != 2 {
		t.Fatalf("fetches = %d, want 2 (prime + forced refresh)", got)
	}

	// A second miss inside the forced-refresh interval must not hit the
	// issuer again.
	if _, err := src.KeyByID(ctx, "ghost"); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("err = %v, want ErrKeyNotFound", err)
	}
	if got := realm.Fetches(); got != 2 {
		t.Fatalf("fetches = %d, want 2 while forced refresh is rate limited", got)
	}

	// Once the interval passes the miss may force a refresh again.
	clock.Advance(forcedRefreshInterval + time.Second)
	if _, err := src.KeyByID(ctx, "ghost"); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("err = %v, want ErrKeyNotFound", err)
	}
	if got := realm.Fetches(); got != 3 {
		t.Fatalf("fetches = %d, want 3 after rate limit window", got)
	}
}

func TestKeysUnavailableIssuer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	src := NewRemoteKeySource(srv.URL, time.Hour, quietLog())
	if _, err := src.Keys(context.Background()); !errors.Is(err, ErrKeySourceUnavailable) {
		t.Fatalf("err = %v, want ErrKeySourceUnavailable", err)
	}

	srv.Close()
	if _, err := src.Keys(context.Background()); !errors.Is(err, ErrKeySourceUnavailable) {
		t.Fatalf("err after close = %v, want ErrKeySourceUnavailable", err)
	}
}

func TestKeysMalformedDocument(t *testing.T) {
	cases := map[string]string{
		"not json":  "certainly not jwks",
		"empty set": `{"keys":[]}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(body))
			}))
			defer srv.Close()

			src := NewRemoteKeySource(srv.URL, time.Hour, quietLog())
			if _, err := src.Keys(context.Background()); !errors.Is(err, ErrKeySourceMalformed) {
				t.Fatalf("err = %v, want ErrKeySourceMalformed", err)
			}
		})
	}
}

func TestKeysSkipsUnusableEntries(t *testing.T) {
	good, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	doc := map[string]any{
		"keys": []map[string]string{
			rsaJWK(t, &good.PublicKey, "good"),
			// No kid: unusable for lookup.
			rsaJWK(t, &good.PublicKey, ""),
			// Symmetric key: wrong type for RS256.
			{"kty": "oct", "kid": "sym", "k": base64.RawURLEncoding.EncodeToString([]byte("secret"))},
		},
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(doc)
	}))
	defer srv.Close()

	src := NewRemoteKeySource(srv.URL, time.Hour, quietLog())
	keys, err := src.Keys(context.Background())
	if err != nil {
		t.Fatalf("Keys: %v", err)
	}
	if len(keys) != 1 {
		t.Fatalf("got %d keys, want 1 usable key", len(keys))
	}
	if _, ok := keys["good"]; !ok {
		t.Fatal("usable key missing from set")
	}
}

func TestCacheSurvivesIssuerOutageWithinTTL(t *testing.T) {
	var failing bool
	realm := testkit.NewRealm("workplan")
	defer realm.Close()
	proxy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if failing {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		resp, err := http.Get(realm.CertsURL())
		if err != nil {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		defer resp.Body.Close()
		_, _ = io.Copy(w, resp.Body)
	}))
	defer proxy.Close()

	src := NewRemoteKeySource(proxy.URL, time.Hour, quietLog())
	ctx := context.Background()
	if _, err := src.Keys(ctx); err != nil {
		t.Fatalf("prime: %v", err)
	}

	failing = true
	kid := realm.CurrentKID()
	if _, err := src.KeyByID(ctx, kid); err != nil {
		t.Fatalf("cached key should survive issuer outage, got %v", err)
	}
}

func rsaJWK(t *testing.T, pub *rsa.PublicKey, kid string) map[string]string {
	t.Helper()
	jwk := map[string]string{
		"kty": "RSA",
		"alg": "RS256",
		"use": "sig",
		"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
		"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
	}
	if kid != "" {
		jwk["kid"] = kid
	}
	return jwk
}

package authgin

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/open-rails/workplan/authz"
	oidckit "github.com/open-rails/workplan/oidc"
	"github.com/open-rails/workplan/testkit"
)

func quietLog() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newTestEngine(realm *testkit.Realm) *gin.Engine {
	gin.SetMode(gin.TestMode)
	log := quietLog()

	keys := oidckit.NewRemoteKeySource(realm.CertsURL(), time.Hour, log)
	verifier := oidckit.NewTokenVerifier(keys, oidckit.VerifierConfig{
		Algorithm: "RS256",
		Audience:  "account",
		Issuer:    realm.Issuer(),
		Leeway:    30 * time.Second,
	}, log)

	r := gin.New()
	api := r.Group("/")
	api.Use(AuthRequired(verifier, log))
	api.GET("/whoami", func(c *gin.Context) {
		id, _ := IdentityFromGin(c)
		c.JSON(http.StatusOK, gin.H{"sub": id.Subject})
	})
	api.GET("/admin", RequireRole(authz.RoleAdmin, log), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	api.GET("/writer",
		RequireAnyRole(log, authz.RoleAdmin, authz.RoleProjectManager, authz.RoleDeveloper),
		func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"ok": true})
		})
	return r
}

func doRequest(r *gin.Engine, token string) *httptest.ResponseRecorder {
	return doRequestPath(r, token, "/whoami")
}

func doRequestPath(r *gin.Engine, token, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func detail(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body %q: %v", w.Body.String(), err)
	}
	return body.Detail
}

func TestAuthRequiredAcceptsValidToken(t *testing.T) {
	realm := testkit.NewRealm("workplan")
	defer realm.Close()
	r := newTestEngine(realm)

	w := doRequest(r, realm.Mint(testkit.TokenSpec{Subject: "alice"}))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var body struct {
		Sub string `json:"sub"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	if body.Sub != "alice" {
		t.Errorf("sub = %q", body.Sub)
	}
}

func TestAuthRequiredRejectsMissingOrBadCredentials(t *testing.T) {
	realm := testkit.NewRealm("workplan")
	defer realm.Close()
	r := newTestEngine(realm)

	cases := []struct {
		name       string
		token      string
		wantDetail string
	}{
		{"no header", "", "not authenticated"},
		{"garbage token", "nope", oidckit.ErrMalformedToken.Error()},
		{"expired", realm.Mint(testkit.TokenSpec{TTL: -time.Hour}), oidckit.ErrTokenExpired.Error()},
		{"wrong audience", realm.Mint(testkit.TokenSpec{Audience: "spa"}), oidckit.ErrInvalidAudience.Error()},
		{"unknown key", realm.Mint(testkit.TokenSpec{Kid: "ghost"}), oidckit.ErrUnknownSigningKey.Error()},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := doRequest(r, tc.token)
			if w.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", w.Code)
			}
			if got := detail(t, w); got != tc.wantDetail {
				t.Errorf("detail = %q, want %q", got, tc.wantDetail)
			}
			if got := w.Header().Get("WWW-Authenticate"); got != "Bearer" {
				t.Errorf("WWW-Authenticate = %q", got)
			}
		})
	}
}

func TestAuthRequiredMissingClaimsDetailNamesThem(t *testing.T) {
	realm := testkit.NewRealm("workplan")
	defer realm.Close()
	r := newTestEngine(realm)

	w := doRequest(r, realm.Mint(testkit.TokenSpec{Drop: []string{"iss", "iat"}}))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	got := detail(t, w)
	if got != oidckit.ErrMissingClaims.Error()+": iat, iss" {
		t.Errorf("detail = %q", got)
	}
}

func TestAuthRequiredKeySourceDown(t *testing.T) {
	realm := testkit.NewRealm("workplan")
	r := newTestEngine(realm)
	token := realm.Mint(testkit.TokenSpec{})
	realm.Close()

	w := doRequest(r, token)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503 when the issuer is unreachable", w.Code)
	}
}

func TestRoleGates(t *testing.T) {
	realm := testkit.NewRealm("workplan")
	defer realm.Close()
	r := newTestEngine(realm)

	admin := realm.Mint(testkit.TokenSpec{Subject: "root", RealmRoles: []string{"admin"}})
	dev := realm.Mint(testkit.TokenSpec{Subject: "dev", RealmRoles: []string{"developer"}})
	nobody := realm.Mint(testkit.TokenSpec{Subject: "guest"})

	if w := doRequestPath(r, admin, "/admin"); w.Code != http.StatusOK {
		t.Errorf("admin on /admin: %d", w.Code)
	}
	if w := doRequestPath(r, dev, "/admin"); w.Code != http.StatusForbidden {
		t.Errorf("dev on /admin: %d, want 403", w.Code)
	}
	if w := doRequestPath(r, dev, "/writer"); w.Code != http.StatusOK {
		t.Errorf("dev on /writer: %d", w.Code)
	}
	if w := doRequestPath(r, nobody, "/writer"); w.Code != http.StatusForbidden {
		t.Errorf("role-less token on /writer: %d, want 403", w.Code)
	}
	// Client roles count the same as realm roles.
	clientAdmin := realm.Mint(testkit.TokenSpec{
		Subject:     "ops",
		ClientRoles: map[string][]string{"pm-backend": {"admin"}},
	})
	if w := doRequestPath(r, clientAdmin, "/admin"); w.Code != http.StatusOK {
		t.Errorf("client-scoped admin on /admin: %d", w.Code)
	}
}

func TestBearerToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		name   string
		header string
		want   string
		ok     bool
	}{
		{"empty", "", "", false},
		{"no scheme", "abc123", "", false},
		{"wrong scheme", "Basic abc123", "", false},
		{"bearer", "Bearer abc123", "abc123", true},
		{"case-insensitive scheme", "bearer abc123", "abc123", true},
		{"blank credential", "Bearer   ", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				c.Request.Header.Set("Authorization", tc.header)
			}
			got, ok := BearerToken(c)
			if ok != tc.ok || got != tc.want {
				t.Errorf("BearerToken = (%q, %v), want (%q, %v)", got, ok, tc.want, tc.ok)
			}
		})
	}
}

type stubLimiter struct {
	allow bool
	err   error
	calls int
	keys  []string
}

func (s *stubLimiter) AllowNamed(bucket, key string) (bool, error) {
	s.calls++
	s.keys = append(s.keys, bucket+":"+key)
	return s.allow, s.err
}

func TestAllowKeysBySubjectAndFailsOpen(t *testing.T) {
	gin.SetMode(gin.TestMode)

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Set(identityKey, &oidckit.Identity{Subject: "alice"})

	lim := &stubLimiter{allow: false}
	if Allow(c, lim, "userinfo") {
		t.Error("denied bucket reported as allowed")
	}
	if len(lim.keys) != 1 || lim.keys[0] != "userinfo:alice" {
		t.Errorf("limiter keys = %v, want subject-based key", lim.keys)
	}

	// Limiter failure must not block the request.
	lim = &stubLimiter{allow: false, err: io.ErrUnexpectedEOF}
	if !Allow(c, lim, "userinfo") {
		t.Error("limiter error should fail open")
	}

	if !Allow(c, nil, "userinfo") {
		t.Error("nil limiter should always allow")
	}
}

func TestRateLimitMiddlewareThrottlesWrites(t *testing.T) {
	gin.SetMode(gin.TestMode)

	lim := &stubLimiter{allow: true}
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(identityKey, &oidckit.Identity{Subject: "alice"})
	})
	r.POST("/things", RateLimit(lim, RLWrites), func(c *gin.Context) {
		c.JSON(http.StatusCreated, gin.H{"ok": true})
	})

	do := func() *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/things", nil))
		return w
	}

	if w := do(); w.Code != http.StatusCreated {
		t.Fatalf("allowed write status = %d, body = %s", w.Code, w.Body.String())
	}
	if len(lim.keys) != 1 || lim.keys[0] != "writes:alice" {
		t.Errorf("limiter keys = %v, want writes bucket keyed by subject", lim.keys)
	}

	lim.allow = false
	if w := do(); w.Code != http.StatusTooManyRequests {
		t.Errorf("throttled write status = %d, want 429", w.Code)
	}

	// Limiter failure must not block the request.
	lim.err = io.ErrUnexpectedEOF
	if w := do(); w.Code != http.StatusCreated {
		t.Errorf("limiter error status = %d, want fail-open 201", w.Code)
	}
}

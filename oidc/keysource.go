package oidckit

import (
	"context"
	"crypto/rsa"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/sirupsen/logrus"
)

// KeySource resolves the issuer's public verification keys.
type KeySource interface {
	// Keys returns the full key set, fetching it if the cache is stale.
	Keys(ctx context.Context) (map[string]*rsa.PublicKey, error)
	// KeyByID returns a single key. On a cache miss it forces one refresh
	// before giving up, so freshly rotated keys are not rejected.
	KeyByID(ctx context.Context, kid string) (*rsa.PublicKey, error)
}

const (
	fetchTimeout = 10 * time.Second
	// Minimum spacing between forced (miss-driven) refreshes. Protects the
	// issuer from a refresh stampede when it serves stale JWKS mid-rotation.
	forcedRefreshInterval = 10 * time.Second
)

// RemoteKeySource fetches the realm JWKS document and caches the parsed keys
// for a TTL. Refreshes are serialized under one mutex so concurrent cache
// misses coalesce into a single upstream request, and the set is swapped
// wholesale so readers never observe a partial update.
type RemoteKeySource struct {
	certsURL string
	ttl      time.Duration
	client   *http.Client
	log      *logrus.Logger

	now func() time.Time

	mu         sync.Mutex
	keys       map[string]*rsa.PublicKey
	fetchedAt  time.Time
	lastForced time.Time
}

// NewRemoteKeySource builds a key source for the given JWKS endpoint.
func NewRemoteKeySource(certsURL string, ttl time.Duration, log *logrus.Logger) *RemoteKeySource {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &RemoteKeySource{
		certsURL: certsURL,
		ttl:      ttl,
		client:   &http.Client{Timeout: fetchTimeout},
		log:      log,
		now:      time.Now,
	}
}

// Keys returns the cached set while it is valid, refreshing otherwise.
func (s *RemoteKeySource) Keys(ctx context.Context) (map[string]*rsa.PublicKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cacheValidLocked() {
		return s.keys, nil
	}
	return s.refreshLocked(ctx)
}

// KeyByID resolves a single key, forcing one refresh on a miss.
func (s *RemoteKeySource) KeyByID(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.cacheValidLocked() {
		if _, err := s.refreshLocked(ctx); err != nil {
			return nil, err
		}
	}
	if key, ok := s.keys[kid]; ok {
		return key, nil
	}

	// Possible key rotation: refresh once regardless of TTL, unless a
	// forced refresh just happened.
	if s.now().Sub(s.lastForced) >= forcedRefreshInterval {
		s.lastForced = s.now()
		s.log.WithField("kid", kid).Info("signing key not cached, forcing JWKS refresh")
		if _, err := s.refreshLocked(ctx); err != nil {
			return nil, err
		}
		if key, ok := s.keys[kid]; ok {
			return key, nil
		}
	}
	return nil, fmt.Errorf("%w: kid %q", ErrKeyNotFound, kid)
}

func (s *RemoteKeySource) cacheValidLocked() bool {
	return len(s.keys) > 0 && s.now().Sub(s.fetchedAt) < s.ttl
}

// refreshLocked fetches and parses the JWKS document and swaps the cache.
// The old set stays in place on any failure.
func (s *RemoteKeySource) refreshLocked(ctx context.Context) (map[string]*rsa.PublicKey, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.certsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeySourceUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		s.log.WithError(err).Error("failed to reach issuer JWKS endpoint")
		return nil, fmt.Errorf("%w: %v", ErrKeySourceUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		s.log.WithField("status", resp.StatusCode).Error("issuer JWKS endpoint returned error status")
		return nil, fmt.Errorf("%w: status %d", ErrKeySourceUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeySourceUnavailable, err)
	}

	set, err := jwk.Parse(body)
	if err != nil {
		s.log.WithError(err).Error("failed to parse issuer JWKS document")
		return nil, fmt.Errorf("%w: %v", ErrKeySourceMalformed, err)
	}

	keys := make(map[string]*rsa.PublicKey, set.Len())
	for i := 0; i < set.Len(); i++ {
		key, _ := set.Key(i)
		kid := key.KeyID()
		if kid == "" {
			s.log.Warn("skipping JWKS entry without kid")
			continue
		}
		if key.KeyType() != jwa.RSA {
			s.log.WithField("kid", kid).Warn("skipping non-RSA JWKS entry")
			continue
		}
		var pub rsa.PublicKey
		if err := key.Raw(&pub); err != nil {
			s.log.WithField("kid", kid).WithError(err).Warn("failed to parse JWKS entry")
			continue
		}
		keys[kid] = &pub
	}
	if len(keys) == 0 {
		return nil, ErrKeySourceMalformed
	}

	s.keys = keys
	s.fetchedAt = s.now()
	s.log.WithField("keys", len(keys)).Debug("refreshed issuer key set")
	return keys, nil
}

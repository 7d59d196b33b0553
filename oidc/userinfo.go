package oidckit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"
)

// UserInfoClient fetches the subject's profile from the realm userinfo
// endpoint. This is a pass-through convenience call: the result never feeds
// the trust decision, which rests entirely on the verified token.
type UserInfoClient struct {
	url    string
	client *http.Client
	log    *logrus.Logger
}

// NewUserInfoClient builds a client for the given userinfo endpoint.
func NewUserInfoClient(userinfoURL string, log *logrus.Logger) *UserInfoClient {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &UserInfoClient{
		url:    userinfoURL,
		client: &http.Client{Timeout: fetchTimeout},
		log:    log,
	}
}

// Fetch returns the userinfo document for the bearer token.
func (c *UserInfoClient) Fetch(ctx context.Context, bearer string) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUserInfoUnavailable, err)
	}
	req.Header.Set("Authorization", "Bearer "+bearer)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		c.log.WithError(err).Error("failed to reach userinfo endpoint")
		return nil, fmt.Errorf("%w: %v", ErrUserInfoUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, ErrUserInfoUnauthorized
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		c.log.WithField("status", resp.StatusCode).Error("userinfo endpoint returned error status")
		return nil, fmt.Errorf("%w: status %d", ErrUserInfoUnavailable, resp.StatusCode)
	}

	var info map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUserInfoUnavailable, err)
	}
	return info, nil
}

package oidckit

import (
	"context"
	"errors"
	"testing"

	"github.com/open-rails/workplan/testkit"
)

func TestUserInfoFetch(t *testing.T) {
	realm := testkit.NewRealm("workplan")
	defer realm.Close()

	client := NewUserInfoClient(realm.UserInfoURL(), quietLog())
	raw := realm.Mint(testkit.TokenSpec{Subject: "alice"})

	info, err := client.Fetch(context.Background(), raw)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if info["sub"] != "alice" {
		t.Errorf("sub = %v", info["sub"])
	}
	if info["email"] != "alice@example.com" {
		t.Errorf("email = %v", info["email"])
	}
}

func TestUserInfoRejectedToken(t *testing.T) {
	realm := testkit.NewRealm("workplan")
	defer realm.Close()

	client := NewUserInfoClient(realm.UserInfoURL(), quietLog())
	if _, err := client.Fetch(context.Background(), "garbage"); !errors.Is(err, ErrUserInfoUnauthorized) {
		t.Fatalf("err = %v, want ErrUserInfoUnauthorized", err)
	}
}

func TestUserInfoEndpointDown(t *testing.T) {
	realm := testkit.NewRealm("workplan")
	url := realm.UserInfoURL()
	realm.Close()

	client := NewUserInfoClient(url, quietLog())
	if _, err := client.Fetch(context.Background(), "anything"); !errors.Is(err, ErrUserInfoUnavailable) {
		t.Fatalf("err = %v, want ErrUserInfoUnavailable", err)
	}
}

package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	authgin "github.com/open-rails/workplan/adapters/gin"
	oidckit "github.com/open-rails/workplan/oidc"
)

// Rate-limit bucket for the userinfo pass-through; each call costs an
// upstream request.
const RLUserInfo = "userinfo"

// HandleUserInfoGET proxies the realm userinfo endpoint with the caller's
// own bearer token. The response never feeds any trust decision.
func HandleUserInfoGET(client *oidckit.UserInfoClient, rl authgin.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := authgin.RawTokenFromGin(c)
		if !ok {
			authgin.Unauthorized(c, "not authenticated")
			return
		}
		if !authgin.Allow(c, rl, RLUserInfo) {
			authgin.TooMany(c)
			return
		}
		info, err := client.Fetch(c.Request.Context(), raw)
		if err != nil {
			if errors.Is(err, oidckit.ErrUserInfoUnauthorized) {
				authgin.Unauthorized(c, oidckit.ErrUserInfoUnauthorized.Error())
			} else {
				authgin.Unavailable(c, oidckit.ErrUserInfoUnavailable.Error())
			}
			return
		}
		c.JSON(http.StatusOK, info)
	}
}

package authgin

import (
	"github.com/gin-gonic/gin"

	"github.com/open-rails/workplan/authz"
)

// UserView is a unified snapshot of the caller for handlers: identity
// claims plus the flattened role set.
type UserView struct {
	// Subject is the IdP subject identifier, not the local user row id.
	Subject           string   `json:"subject"`
	Email             string   `json:"email,omitempty"`
	PreferredUsername string   `json:"preferred_username,omitempty"`
	Roles             []string `json:"roles,omitempty"`
}

// CurrentUser returns the caller snapshot, or ok=false when the request
// carried no verified identity.
func CurrentUser(c *gin.Context) (UserView, bool) {
	id, ok := IdentityFromGin(c)
	if !ok {
		return UserView{}, false
	}
	return UserView{
		Subject:           id.Subject,
		Email:             id.Email,
		PreferredUsername: id.PreferredUsername,
		Roles:             authz.AllRoles(id),
	}, true
}

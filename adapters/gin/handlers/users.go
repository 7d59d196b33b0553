package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	authgin "github.com/open-rails/workplan/adapters/gin"
	"github.com/open-rails/workplan/store"
)

// HandleUserMeGET returns the caller's provisioned row plus the token view.
func HandleUserMeGET(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		u, _, ok := caller(c, st)
		if !ok {
			return
		}
		view, _ := authgin.CurrentUser(c)
		c.JSON(http.StatusOK, gin.H{"user": u, "identity": view})
	}
}

// HandleUserListGET lists users. Route-level gate: admin or
// project_manager.
func HandleUserListGET(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		_, _, ok := caller(c, st)
		if !ok {
			return
		}
		page, pageSize, limit, offset := pageParams(c)
		users, total, err := st.ListUsers(c.Request.Context(), limit, offset)
		if err != nil {
			authgin.ServerErr(c, "failed to list users")
			return
		}
		c.JSON(http.StatusOK, paginated(users, total, page, pageSize))
	}
}

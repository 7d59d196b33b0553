// Package handlers holds the HTTP handlers for every resource. Handlers
// fetch authorization facts through the store and hand the decision to the
// authz policy; they never reimplement the rules inline.
package handlers

import (
	"context"
	"errors"
	"math"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	authgin "github.com/open-rails/workplan/adapters/gin"
	"github.com/open-rails/workplan/authz"
	"github.com/open-rails/workplan/jobs"
	oidckit "github.com/open-rails/workplan/oidc"
	"github.com/open-rails/workplan/store"
)

// caller resolves the verified identity plus the provisioned user row.
// Aborts with 401/404 and returns ok=false when either is missing; account
// provisioning is owned by the importer, not this service.
func caller(c *gin.Context, st *store.Store) (*store.User, *oidckit.Identity, bool) {
	id, ok := authgin.IdentityFromGin(c)
	if !ok {
		authgin.Unauthorized(c, "not authenticated")
		return nil, nil, false
	}
	u, err := st.UserBySubject(c.Request.Context(), id.Subject)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			authgin.NotFound(c, "user not found")
		} else {
			authgin.ServerErr(c, "failed to resolve user")
		}
		return nil, nil, false
	}
	return u, id, true
}

func pathUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		authgin.BadRequest(c, "invalid "+name+" format")
		return uuid.Nil, false
	}
	return id, true
}

// pageParams reads page/page_size query params with sane bounds.
func pageParams(c *gin.Context) (page, pageSize, limit, offset int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	pageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize, pageSize, (page - 1) * pageSize
}

func paginated(items any, total, page, pageSize int) gin.H {
	pages := 0
	if total > 0 {
		pages = int(math.Ceil(float64(total) / float64(pageSize)))
	}
	return gin.H{
		"items":     items,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
		"pages":     pages,
	}
}

// enqueueNotification fires a fan-out job. Delivery is best effort and the
// request never fails on it, but a lost enqueue is logged so it leaves a
// trace.
func enqueueNotification(ctx context.Context, n jobs.Notifier, log *logrus.Logger, args jobs.NotifyArgs) {
	if n == nil {
		return
	}
	if err := n.Notify(ctx, args); err != nil {
		log.WithError(err).WithFields(logrus.Fields{
			"type":       args.Type,
			"recipients": len(args.Recipients),
		}).Warn("failed to enqueue notification fan-out")
	}
}

// projectFacts assembles the fine-grained facts for a project: the global
// flag from the token, ownership from the row, and the scoped MANAGER
// membership from project_members.
func projectFacts(ctx context.Context, st *store.Store, id *oidckit.Identity, userID uuid.UUID, p *store.Project) (authz.ProjectFacts, error) {
	f := authz.ProjectFacts{
		GlobalAdminOrManager: authz.GlobalAdminOrManager(id),
		Owner:                p.OwnerID == userID,
	}
	role, err := st.MemberRole(ctx, p.ID, userID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return f, err
	}
	f.ScopedManager = err == nil && role == authz.ScopedManagerRole
	return f, nil
}

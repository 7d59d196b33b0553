package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	authgin "github.com/open-rails/workplan/adapters/gin"
	"github.com/open-rails/workplan/authz"
	"github.com/open-rails/workplan/jobs"
	"github.com/open-rails/workplan/store"
)

type memberAddReq struct {
	UserID uuid.UUID `json:"user_id" binding:"required"`
	Role   string    `json:"role"`
}

// HandleMemberAddPOST adds a member to a project; guarded by the project's
// fine-grained rule. The new member gets a notification.
func HandleMemberAddPOST(st *store.Store, notifier jobs.Notifier, log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		u, id, ok := caller(c, st)
		if !ok {
			return
		}
		projectID, ok := pathUUID(c, "project_id")
		if !ok {
			return
		}
		p, err := st.ProjectByID(c.Request.Context(), projectID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				authgin.NotFound(c, "project not found")
			} else {
				authgin.ServerErr(c, "failed to load project")
			}
			return
		}

		facts, err := projectFacts(c.Request.Context(), st, id, u.ID, p)
		if err != nil {
			authgin.ServerErr(c, "failed to check project access")
			return
		}
		if d := authz.EvaluateProjectAccess(facts); !d.Granted {
			authgin.Forbidden(c, "not authorized to manage members of this project")
			return
		}

		var req memberAddReq
		if err := c.ShouldBindJSON(&req); err != nil {
			authgin.BadRequest(c, "invalid request body")
			return
		}
		if _, err := st.UserByID(c.Request.Context(), req.UserID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				authgin.NotFound(c, "user not found")
			} else {
				authgin.ServerErr(c, "failed to resolve user")
			}
			return
		}

		m := &store.ProjectMember{ProjectID: projectID, UserID: req.UserID, Role: req.Role}
		if err := st.AddMember(c.Request.Context(), m); err != nil {
			authgin.ServerErr(c, "failed to add member")
			return
		}

		enqueueNotification(c.Request.Context(), notifier, log, jobs.NotifyArgs{
			Recipients: []uuid.UUID{req.UserID},
			Type:       store.NotificationMemberAdded,
			Title:      "Added to project",
			Message:    "You were added to project " + p.Name,
			ActorID:    &u.ID,
			ProjectID:  &projectID,
		})

		log.WithFields(logrus.Fields{"project_id": projectID, "user_id": req.UserID}).Info("added project member")
		c.JSON(http.StatusCreated, m)
	}
}

func HandleMemberListGET(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		u, _, ok := caller(c, st)
		if !ok {
			return
		}
		projectID, ok := pathUUID(c, "project_id")
		if !ok {
			return
		}
		member, err := st.IsProjectMember(c.Request.Context(), projectID, u.ID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				authgin.NotFound(c, "project not found")
			} else {
				authgin.ServerErr(c, "failed to check project access")
			}
			return
		}
		id, _ := authgin.IdentityFromGin(c)
		if !member && authz.IsRegularUser(id) {
			authgin.Forbidden(c, "access denied to this project")
			return
		}
		members, err := st.ListMembers(c.Request.Context(), projectID)
		if err != nil {
			authgin.ServerErr(c, "failed to list members")
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": members, "total": len(members)})
	}
}

func HandleMemberRemoveDELETE(st *store.Store, log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		u, id, ok := caller(c, st)
		if !ok {
			return
		}
		projectID, ok := pathUUID(c, "project_id")
		if !ok {
			return
		}
		memberID, ok := pathUUID(c, "user_id")
		if !ok {
			return
		}
		p, err := st.ProjectByID(c.Request.Context(), projectID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				authgin.NotFound(c, "project not found")
			} else {
				authgin.ServerErr(c, "failed to load project")
			}
			return
		}

		facts, err := projectFacts(c.Request.Context(), st, id, u.ID, p)
		if err != nil {
			authgin.ServerErr(c, "failed to check project access")
			return
		}
		if d := authz.EvaluateProjectAccess(facts); !d.Granted {
			authgin.Forbidden(c, "not authorized to manage members of this project")
			return
		}

		if err := st.RemoveMember(c.Request.Context(), projectID, memberID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				authgin.NotFound(c, "member not found")
			} else {
				authgin.ServerErr(c, "failed to remove member")
			}
			return
		}
		log.WithFields(logrus.Fields{"project_id": projectID, "user_id": memberID}).Info("removed project member")
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

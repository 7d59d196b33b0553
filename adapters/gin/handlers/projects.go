package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	authgin "github.com/open-rails/workplan/adapters/gin"
	"github.com/open-rails/workplan/authz"
	"github.com/open-rails/workplan/store"
)

type projectCreateReq struct {
	Name        string     `json:"name" binding:"required"`
	Description *string    `json:"description"`
	StartDate   *time.Time `json:"start_date"`
	EndDate     *time.Time `json:"end_date"`
}

type projectUpdateReq struct {
	Name        *string    `json:"name"`
	Description *string    `json:"description"`
	Status      *string    `json:"status"`
	StartDate   *time.Time `json:"start_date"`
	EndDate     *time.Time `json:"end_date"`
}

// HandleProjectCreatePOST creates a project owned by the caller.
// Route-level gate: admin or project_manager.
func HandleProjectCreatePOST(st *store.Store, log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		u, _, ok := caller(c, st)
		if !ok {
			return
		}
		var req projectCreateReq
		if err := c.ShouldBindJSON(&req); err != nil {
			authgin.BadRequest(c, "invalid request body")
			return
		}
		p := &store.Project{
			Name:        req.Name,
			Description: req.Description,
			OwnerID:     u.ID,
			Status:      "active",
			StartDate:   req.StartDate,
			EndDate:     req.EndDate,
		}
		if err := st.CreateProject(c.Request.Context(), p); err != nil {
			authgin.ServerErr(c, "failed to create project")
			return
		}
		log.WithField("project_id", p.ID).Info("created project")
		c.JSON(http.StatusCreated, p)
	}
}

// HandleProjectListGET lists projects. Regular users only see projects they
// own or belong to; admins and project managers see everything.
func HandleProjectListGET(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		u, id, ok := caller(c, st)
		if !ok {
			return
		}
		page, pageSize, limit, offset := pageParams(c)

		restrict := &u.ID
		if !authz.IsRegularUser(id) {
			restrict = nil
		}
		projects, total, err := st.ListProjects(c.Request.Context(), restrict, limit, offset)
		if err != nil {
			authgin.ServerErr(c, "failed to list projects")
			return
		}
		c.JSON(http.StatusOK, paginated(projects, total, page, pageSize))
	}
}

func HandleProjectGET(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		_, _, ok := caller(c, st)
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
		c.JSON(http.StatusOK, p)
	}
}

// HandleProjectUpdatePUT applies the fine-grained rule: admin/pm, owner,
// or MANAGER member of this project.
func HandleProjectUpdatePUT(st *store.Store, log *logrus.Logger) gin.HandlerFunc {
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
			log.WithFields(logrus.Fields{"sub": id.Subject, "project_id": projectID, "required": d.Required}).
				Warn("project update denied")
			authgin.Forbidden(c, "not authorized to update this project")
			return
		}

		var req projectUpdateReq
		if err := c.ShouldBindJSON(&req); err != nil {
			authgin.BadRequest(c, "invalid request body")
			return
		}
		if req.Name != nil {
			p.Name = *req.Name
		}
		if req.Description != nil {
			p.Description = req.Description
		}
		if req.Status != nil {
			p.Status = *req.Status
		}
		if req.StartDate != nil {
			p.StartDate = req.StartDate
		}
		if req.EndDate != nil {
			p.EndDate = req.EndDate
		}
		if err := st.UpdateProject(c.Request.Context(), p); err != nil {
			authgin.ServerErr(c, "failed to update project")
			return
		}
		log.WithField("project_id", projectID).Info("updated project")
		c.JSON(http.StatusOK, p)
	}
}

// HandleProjectDeleteDELETE applies the same rule as update.
func HandleProjectDeleteDELETE(st *store.Store, log *logrus.Logger) gin.HandlerFunc {
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
			log.WithFields(logrus.Fields{"sub": id.Subject, "project_id": projectID, "required": d.Required}).
				Warn("project delete denied")
			authgin.Forbidden(c, "not authorized to delete this project")
			return
		}

		if err := st.DeleteProject(c.Request.Context(), projectID); err != nil {
			authgin.ServerErr(c, "failed to delete project")
			return
		}
		log.WithField("project_id", projectID).Info("deleted project")
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

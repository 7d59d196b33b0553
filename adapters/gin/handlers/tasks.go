package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	authgin "github.com/open-rails/workplan/adapters/gin"
	"github.com/open-rails/workplan/authz"
	"github.com/open-rails/workplan/jobs"
	oidckit "github.com/open-rails/workplan/oidc"
	"github.com/open-rails/workplan/store"
)

type taskCreateReq struct {
	ProjectID   uuid.UUID  `json:"project_id" binding:"required"`
	Title       string     `json:"title" binding:"required"`
	Description *string    `json:"description"`
	AssignedTo  *uuid.UUID `json:"assigned_to"`
	Priority    string     `json:"priority"`
	DueDate     *time.Time `json:"due_date"`
	External    bool       `json:"external"`
	Billable    *bool      `json:"billable"`
}

type taskUpdateReq struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	Status      *string    `json:"status"`
	Priority    *string    `json:"priority"`
	AssignedTo  *uuid.UUID `json:"assigned_to"`
	DueDate     *time.Time `json:"due_date"`
}

// taskFacts assembles the task policy facts: the project facts plus the
// assignee check.
func taskFacts(ctx context.Context, st *store.Store, id *oidckit.Identity, userID uuid.UUID, t *store.Task) (authz.TaskFacts, *store.Project, error) {
	p, err := st.ProjectByID(ctx, t.ProjectID)
	if err != nil {
		return authz.TaskFacts{}, nil, err
	}
	pf, err := projectFacts(ctx, st, id, userID, p)
	if err != nil {
		return authz.TaskFacts{}, nil, err
	}
	return authz.TaskFacts{
		ProjectFacts: pf,
		Assignee:     t.AssignedTo != nil && *t.AssignedTo == userID,
	}, p, nil
}

// HandleTaskCreatePOST creates a task. Route-level gate: admin,
// project_manager, or developer. Assigning someone notifies them.
func HandleTaskCreatePOST(st *store.Store, notifier jobs.Notifier, log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		u, _, ok := caller(c, st)
		if !ok {
			return
		}
		var req taskCreateReq
		if err := c.ShouldBindJSON(&req); err != nil {
			authgin.BadRequest(c, "invalid request body")
			return
		}
		if _, err := st.ProjectByID(c.Request.Context(), req.ProjectID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				authgin.NotFound(c, "project not found")
			} else {
				authgin.ServerErr(c, "failed to load project")
			}
			return
		}

		t := &store.Task{
			ProjectID:   req.ProjectID,
			Title:       req.Title,
			Description: req.Description,
			AssignedTo:  req.AssignedTo,
			CreatedBy:   u.ID,
			Status:      "todo",
			Priority:    "medium",
			DueDate:     req.DueDate,
			External:    req.External,
			Billable:    true,
		}
		if req.Priority != "" {
			t.Priority = req.Priority
		}
		if req.Billable != nil {
			t.Billable = *req.Billable
		}
		if err := st.CreateTask(c.Request.Context(), t); err != nil {
			authgin.ServerErr(c, "failed to create task")
			return
		}

		if t.AssignedTo != nil {
			enqueueNotification(c.Request.Context(), notifier, log, jobs.NotifyArgs{
				Recipients: []uuid.UUID{*t.AssignedTo},
				Type:       store.NotificationTaskAssigned,
				Title:      "Task assigned",
				Message:    "You were assigned task " + t.Title,
				ActorID:    &u.ID,
				TaskID:     &t.ID,
				ProjectID:  &t.ProjectID,
			})
		}

		log.WithField("task_id", t.ID).Info("created task")
		c.JSON(http.StatusCreated, t)
	}
}

func HandleTaskListGET(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		_, _, ok := caller(c, st)
		if !ok {
			return
		}
		projectID, ok := pathUUID(c, "project_id")
		if !ok {
			return
		}
		page, pageSize, limit, offset := pageParams(c)
		tasks, total, err := st.ListTasks(c.Request.Context(), projectID, limit, offset)
		if err != nil {
			authgin.ServerErr(c, "failed to list tasks")
			return
		}
		c.JSON(http.StatusOK, paginated(tasks, total, page, pageSize))
	}
}

// HandleTaskMineGET lists tasks assigned to the caller.
func HandleTaskMineGET(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		u, _, ok := caller(c, st)
		if !ok {
			return
		}
		tasks, err := st.TasksAssignedTo(c.Request.Context(), u.ID)
		if err != nil {
			authgin.ServerErr(c, "failed to list tasks")
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": tasks, "total": len(tasks)})
	}
}

func HandleTaskGET(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		_, _, ok := caller(c, st)
		if !ok {
			return
		}
		taskID, ok := pathUUID(c, "task_id")
		if !ok {
			return
		}
		t, err := st.TaskByID(c.Request.Context(), taskID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				authgin.NotFound(c, "task not found")
			} else {
				authgin.ServerErr(c, "failed to load task")
			}
			return
		}
		c.JSON(http.StatusOK, t)
	}
}

// HandleTaskUpdatePUT applies the task rule: admin/pm, project owner,
// scoped MANAGER, or the assignee.
func HandleTaskUpdatePUT(st *store.Store, notifier jobs.Notifier, log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		u, id, ok := caller(c, st)
		if !ok {
			return
		}
		taskID, ok := pathUUID(c, "task_id")
		if !ok {
			return
		}
		t, err := st.TaskByID(c.Request.Context(), taskID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				authgin.NotFound(c, "task not found")
			} else {
				authgin.ServerErr(c, "failed to load task")
			}
			return
		}

		facts, _, err := taskFacts(c.Request.Context(), st, id, u.ID, t)
		if err != nil {
			authgin.ServerErr(c, "failed to check task access")
			return
		}
		if d := authz.EvaluateTaskAccess(facts); !d.Granted {
			log.WithFields(logrus.Fields{"sub": id.Subject, "task_id": taskID, "required": d.Required}).
				Warn("task update denied")
			authgin.Forbidden(c, "not authorized to update this task")
			return
		}

		var req taskUpdateReq
		if err := c.ShouldBindJSON(&req); err != nil {
			authgin.BadRequest(c, "invalid request body")
			return
		}
		previousAssignee := t.AssignedTo
		if req.Title != nil {
			t.Title = *req.Title
		}
		if req.Description != nil {
			t.Description = req.Description
		}
		if req.Status != nil {
			t.Status = *req.Status
		}
		if req.Priority != nil {
			t.Priority = *req.Priority
		}
		if req.AssignedTo != nil {
			t.AssignedTo = req.AssignedTo
		}
		if req.DueDate != nil {
			t.DueDate = req.DueDate
		}
		if err := st.UpdateTask(c.Request.Context(), t); err != nil {
			authgin.ServerErr(c, "failed to update task")
			return
		}

		newAssignee := t.AssignedTo != nil &&
			(previousAssignee == nil || *previousAssignee != *t.AssignedTo)
		if newAssignee {
			enqueueNotification(c.Request.Context(), notifier, log, jobs.NotifyArgs{
				Recipients: []uuid.UUID{*t.AssignedTo},
				Type:       store.NotificationTaskAssigned,
				Title:      "Task assigned",
				Message:    "You were assigned task " + t.Title,
				ActorID:    &u.ID,
				TaskID:     &t.ID,
				ProjectID:  &t.ProjectID,
			})
		}

		log.WithField("task_id", taskID).Info("updated task")
		c.JSON(http.StatusOK, t)
	}
}

// HandleTaskDeleteDELETE applies the same rule as update.
func HandleTaskDeleteDELETE(st *store.Store, log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		u, id, ok := caller(c, st)
		if !ok {
			return
		}
		taskID, ok := pathUUID(c, "task_id")
		if !ok {
			return
		}
		t, err := st.TaskByID(c.Request.Context(), taskID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				authgin.NotFound(c, "task not found")
			} else {
				authgin.ServerErr(c, "failed to load task")
			}
			return
		}

		facts, _, err := taskFacts(c.Request.Context(), st, id, u.ID, t)
		if err != nil {
			authgin.ServerErr(c, "failed to check task access")
			return
		}
		if d := authz.EvaluateTaskAccess(facts); !d.Granted {
			log.WithFields(logrus.Fields{"sub": id.Subject, "task_id": taskID, "required": d.Required}).
				Warn("task delete denied")
			authgin.Forbidden(c, "not authorized to delete this task")
			return
		}

		if err := st.DeleteTask(c.Request.Context(), taskID); err != nil {
			authgin.ServerErr(c, "failed to delete task")
			return
		}
		log.WithField("task_id", taskID).Info("deleted task")
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

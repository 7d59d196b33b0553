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

type commentCreateReq struct {
	Content string `json:"content" binding:"required"`
}

// HandleCommentCreatePOST adds a comment to a task and fans out
// notifications to the task assignee and project owner.
func HandleCommentCreatePOST(st *store.Store, notifier jobs.Notifier, log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		u, _, ok := caller(c, st)
		if !ok {
			return
		}
		taskID, ok := pathUUID(c, "task_id")
		if !ok {
			return
		}
		task, err := st.TaskByID(c.Request.Context(), taskID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				authgin.NotFound(c, "task not found")
			} else {
				authgin.ServerErr(c, "failed to load task")
			}
			return
		}
		member, err := st.IsProjectMember(c.Request.Context(), task.ProjectID, u.ID)
		if err != nil {
			authgin.ServerErr(c, "failed to check project access")
			return
		}
		if !member {
			authgin.Forbidden(c, "access denied to this project")
			return
		}

		var req commentCreateReq
		if err := c.ShouldBindJSON(&req); err != nil {
			authgin.BadRequest(c, "invalid request body")
			return
		}
		comment := &store.Comment{TaskID: taskID, UserID: u.ID, Content: req.Content}
		if err := st.CreateComment(c.Request.Context(), comment); err != nil {
			authgin.ServerErr(c, "failed to create comment")
			return
		}

		recipients := make([]uuid.UUID, 0, 2)
		if task.AssignedTo != nil {
			recipients = append(recipients, *task.AssignedTo)
		}
		if p, err := st.ProjectByID(c.Request.Context(), task.ProjectID); err == nil {
			recipients = append(recipients, p.OwnerID)
		}
		if len(recipients) > 0 {
			enqueueNotification(c.Request.Context(), notifier, log, jobs.NotifyArgs{
				Recipients: recipients,
				Type:       store.NotificationCommentAdded,
				Title:      "New comment",
				Message:    "New comment on task " + task.Title,
				ActorID:    &u.ID,
				TaskID:     &taskID,
				ProjectID:  &task.ProjectID,
				CommentID:  &comment.ID,
			})
		}

		log.WithFields(logrus.Fields{"comment_id": comment.ID, "task_id": taskID}).Info("created comment")
		c.JSON(http.StatusCreated, comment)
	}
}

func HandleCommentListGET(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		u, _, ok := caller(c, st)
		if !ok {
			return
		}
		taskID, ok := pathUUID(c, "task_id")
		if !ok {
			return
		}
		task, err := st.TaskByID(c.Request.Context(), taskID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				authgin.NotFound(c, "task not found")
			} else {
				authgin.ServerErr(c, "failed to load task")
			}
			return
		}
		member, err := st.IsProjectMember(c.Request.Context(), task.ProjectID, u.ID)
		if err != nil {
			authgin.ServerErr(c, "failed to check project access")
			return
		}
		id, _ := authgin.IdentityFromGin(c)
		if !member && authz.IsRegularUser(id) {
			authgin.Forbidden(c, "access denied to this project")
			return
		}

		comments, err := st.ListComments(c.Request.Context(), taskID)
		if err != nil {
			authgin.ServerErr(c, "failed to list comments")
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": comments, "total": len(comments)})
	}
}

// HandleCommentDeleteDELETE lets the author delete their own comment;
// anyone else must pass the task policy.
func HandleCommentDeleteDELETE(st *store.Store, log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		u, id, ok := caller(c, st)
		if !ok {
			return
		}
		commentID, ok := pathUUID(c, "comment_id")
		if !ok {
			return
		}
		comment, err := st.CommentByID(c.Request.Context(), commentID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				authgin.NotFound(c, "comment not found")
			} else {
				authgin.ServerErr(c, "failed to load comment")
			}
			return
		}

		if comment.UserID != u.ID {
			task, err := st.TaskByID(c.Request.Context(), comment.TaskID)
			if err != nil {
				authgin.ServerErr(c, "failed to load task")
				return
			}
			facts, _, err := taskFacts(c.Request.Context(), st, id, u.ID, task)
			if err != nil {
				authgin.ServerErr(c, "failed to check task access")
				return
			}
			if d := authz.EvaluateTaskAccess(facts); !d.Granted {
				authgin.Forbidden(c, "not authorized to delete this comment")
				return
			}
		}

		if err := st.DeleteComment(c.Request.Context(), commentID); err != nil {
			authgin.ServerErr(c, "failed to delete comment")
			return
		}
		log.WithField("comment_id", commentID).Info("deleted comment")
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

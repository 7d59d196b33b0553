package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	authgin "github.com/open-rails/workplan/adapters/gin"
	"github.com/open-rails/workplan/store"
)

// HandleNotificationListGET lists the caller's notifications.
func HandleNotificationListGET(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		u, _, ok := caller(c, st)
		if !ok {
			return
		}
		unreadOnly, _ := strconv.ParseBool(c.DefaultQuery("unread_only", "false"))
		_, _, limit, offset := pageParams(c)

		ns, err := st.ListNotifications(c.Request.Context(), u.ID, unreadOnly, limit, offset)
		if err != nil {
			authgin.ServerErr(c, "failed to list notifications")
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": ns, "total": len(ns)})
	}
}

func HandleNotificationUnreadCountGET(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		u, _, ok := caller(c, st)
		if !ok {
			return
		}
		n, err := st.UnreadNotificationCount(c.Request.Context(), u.ID)
		if err != nil {
			authgin.ServerErr(c, "failed to count notifications")
			return
		}
		c.JSON(http.StatusOK, gin.H{"unread": n})
	}
}

func HandleNotificationReadPUT(st *store.Store, log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		u, _, ok := caller(c, st)
		if !ok {
			return
		}
		notifID, ok := pathUUID(c, "notification_id")
		if !ok {
			return
		}
		if err := st.MarkNotificationRead(c.Request.Context(), notifID, u.ID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				authgin.NotFound(c, "notification not found")
			} else {
				authgin.ServerErr(c, "failed to mark notification read")
			}
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

func HandleNotificationReadAllPUT(st *store.Store, log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		u, _, ok := caller(c, st)
		if !ok {
			return
		}
		n, err := st.MarkAllNotificationsRead(c.Request.Context(), u.ID)
		if err != nil {
			authgin.ServerErr(c, "failed to mark notifications read")
			return
		}
		log.WithFields(logrus.Fields{"user_id": u.ID, "count": n}).Info("marked notifications read")
		c.JSON(http.StatusOK, gin.H{"ok": true, "updated": n})
	}
}

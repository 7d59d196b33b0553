package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	authgin "github.com/open-rails/workplan/adapters/gin"
	"github.com/open-rails/workplan/authz"
	"github.com/open-rails/workplan/jobs"
	oidckit "github.com/open-rails/workplan/oidc"
	"github.com/open-rails/workplan/store"
)

// RouterDeps carries everything the route table needs.
type RouterDeps struct {
	Verifier *oidckit.TokenVerifier
	UserInfo *oidckit.UserInfoClient
	Store    *store.Store
	Notifier jobs.Notifier
	RL       authgin.RateLimiter
	Log      *logrus.Logger

	AllowedOrigins []string
}

// NewRouter assembles the API. Every route under /api/v1 runs behind the
// verification gate; role gates follow per resource.
func NewRouter(d RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(authgin.CORS(d.AllowedOrigins))
	r.Use(authgin.RequestLogger(d.Log))

	r.GET("/health", func(c *gin.Context) { c.JSON(200, gin.H{"status": "ok"}) })

	api := r.Group("/api/v1")
	api.Use(authgin.AuthRequired(d.Verifier, d.Log))

	anyWriter := authgin.RequireAnyRole(d.Log, authz.RoleAdmin, authz.RoleProjectManager, authz.RoleDeveloper)
	managers := authgin.RequireAnyRole(d.Log, authz.RoleAdmin, authz.RoleProjectManager)
	admins := authgin.RequireRole(authz.RoleAdmin, d.Log)
	writes := authgin.RateLimit(d.RL, authgin.RLWrites)

	api.GET("/users/me", HandleUserMeGET(d.Store))
	api.GET("/users/me/tasks", HandleTaskMineGET(d.Store))
	api.GET("/users", managers, HandleUserListGET(d.Store))
	api.GET("/users/userinfo", HandleUserInfoGET(d.UserInfo, d.RL))

	projects := api.Group("/projects")
	{
		projects.POST("", managers, writes, HandleProjectCreatePOST(d.Store, d.Log))
		projects.GET("", HandleProjectListGET(d.Store))
		projects.GET("/:project_id", HandleProjectGET(d.Store))
		projects.PUT("/:project_id", writes, HandleProjectUpdatePUT(d.Store, d.Log))
		projects.DELETE("/:project_id", writes, HandleProjectDeleteDELETE(d.Store, d.Log))

		projects.POST("/:project_id/members", writes, HandleMemberAddPOST(d.Store, d.Notifier, d.Log))
		projects.GET("/:project_id/members", HandleMemberListGET(d.Store))
		projects.DELETE("/:project_id/members/:user_id", writes, HandleMemberRemoveDELETE(d.Store, d.Log))

		projects.GET("/:project_id/tasks", HandleTaskListGET(d.Store))
	}

	tasks := api.Group("/tasks")
	{
		tasks.POST("", anyWriter, writes, HandleTaskCreatePOST(d.Store, d.Notifier, d.Log))
		tasks.GET("/:task_id", HandleTaskGET(d.Store))
		tasks.PUT("/:task_id", anyWriter, writes, HandleTaskUpdatePUT(d.Store, d.Notifier, d.Log))
		tasks.DELETE("/:task_id", anyWriter, writes, HandleTaskDeleteDELETE(d.Store, d.Log))

		tasks.POST("/:task_id/comments", writes, HandleCommentCreatePOST(d.Store, d.Notifier, d.Log))
		tasks.GET("/:task_id/comments", HandleCommentListGET(d.Store))
	}

	api.DELETE("/comments/:comment_id", writes, HandleCommentDeleteDELETE(d.Store, d.Log))

	entries := api.Group("/time-entries")
	{
		entries.POST("", anyWriter, writes, HandleTimeEntryCreatePOST(d.Store, d.Log))
		entries.GET("", HandleTimeEntryListGET(d.Store))
		entries.GET("/active", HandleTimeEntryActiveGET(d.Store))
		entries.GET("/summary", HandleTimeEntrySummaryGET(d.Store))
		entries.POST("/:entry_id/stop", writes, HandleTimeEntryStopPOST(d.Store, d.Log))
		entries.PUT("/:entry_id", writes, HandleTimeEntryUpdatePUT(d.Store, d.Log))
	}

	customers := api.Group("/customers", anyWriter)
	{
		customers.GET("", HandleCustomerListGET(d.Store))
		customers.GET("/:customer_id", HandleCustomerGET(d.Store))
	}

	orders := api.Group("/orders")
	{
		orders.POST("", admins, writes, HandleOrderCreatePOST(d.Store, d.Log))
		orders.GET("", anyWriter, HandleOrderListGET(d.Store))
		orders.GET("/:order_id", anyWriter, HandleOrderGET(d.Store))
		orders.PUT("/:order_id", admins, writes, HandleOrderUpdatePUT(d.Store, d.Log))
		orders.DELETE("/:order_id", admins, writes, HandleOrderDeleteDELETE(d.Store, d.Log))

		orders.GET("/:order_id/items", anyWriter, HandleOrderItemsGET(d.Store))
	}

	items := api.Group("/items")
	{
		items.POST("", admins, writes, HandleItemCreatePOST(d.Store, d.Log))
		items.GET("", anyWriter, HandleItemListGET(d.Store))
		items.GET("/:item_id", anyWriter, HandleItemGET(d.Store))
		items.PUT("/:item_id", admins, writes, HandleItemUpdatePUT(d.Store, d.Log))
		items.DELETE("/:item_id", admins, writes, HandleItemDeleteDELETE(d.Store, d.Log))
	}

	notifications := api.Group("/notifications")
	{
		notifications.GET("", HandleNotificationListGET(d.Store))
		notifications.GET("/unread-count", HandleNotificationUnreadCountGET(d.Store))
		notifications.PUT("/:notification_id/read", HandleNotificationReadPUT(d.Store, d.Log))
		// Bulk mark-read lives on the collection itself to keep the
		// param route unambiguous.
		notifications.PUT("", HandleNotificationReadAllPUT(d.Store, d.Log))
	}

	return r
}

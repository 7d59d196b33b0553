package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	authgin "github.com/open-rails/workplan/adapters/gin"
	"github.com/open-rails/workplan/store"
)

type orderCreateReq struct {
	CustomerID  uuid.UUID `json:"customer_id" binding:"required"`
	Reference   *string   `json:"order_id"`
	Description *string   `json:"description"`
	Comment     *string   `json:"comment"`
}

type orderUpdateReq struct {
	CustomerID  *uuid.UUID `json:"customer_id"`
	Reference   *string    `json:"order_id"`
	Description *string    `json:"description"`
	Comment     *string    `json:"comment"`
}

func HandleOrderCreatePOST(st *store.Store, log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req orderCreateReq
		if err := c.ShouldBindJSON(&req); err != nil {
			authgin.BadRequest(c, "invalid request body")
			return
		}
		if _, err := st.CustomerByID(c.Request.Context(), req.CustomerID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				authgin.NotFound(c, "customer not found")
			} else {
				authgin.ServerErr(c, "failed to resolve customer")
			}
			return
		}

		o := &store.Order{
			CustomerID:  req.CustomerID,
			Reference:   req.Reference,
			Description: req.Description,
			Comment:     req.Comment,
		}
		if err := st.CreateOrder(c.Request.Context(), o); err != nil {
			authgin.ServerErr(c, "failed to create order")
			return
		}
		log.WithField("order_id", o.ID).Info("created order")
		c.JSON(http.StatusCreated, o)
	}
}

func HandleOrderGET(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		orderID, ok := pathUUID(c, "order_id")
		if !ok {
			return
		}
		o, err := st.OrderByID(c.Request.Context(), orderID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				authgin.NotFound(c, "order not found")
			} else {
				authgin.ServerErr(c, "failed to load order")
			}
			return
		}
		c.JSON(http.StatusOK, o)
	}
}

func HandleOrderListGET(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		page, pageSize, limit, offset := pageParams(c)
		orders, total, err := st.ListOrders(c.Request.Context(), limit, offset)
		if err != nil {
			authgin.ServerErr(c, "failed to list orders")
			return
		}
		c.JSON(http.StatusOK, paginated(orders, total, page, pageSize))
	}
}

func HandleOrderUpdatePUT(st *store.Store, log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		orderID, ok := pathUUID(c, "order_id")
		if !ok {
			return
		}
		o, err := st.OrderByID(c.Request.Context(), orderID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				authgin.NotFound(c, "order not found")
			} else {
				authgin.ServerErr(c, "failed to load order")
			}
			return
		}

		var req orderUpdateReq
		if err := c.ShouldBindJSON(&req); err != nil {
			authgin.BadRequest(c, "invalid request body")
			return
		}
		if req.CustomerID != nil {
			if _, err := st.CustomerByID(c.Request.Context(), *req.CustomerID); err != nil {
				if errors.Is(err, store.ErrNotFound) {
					authgin.NotFound(c, "customer not found")
				} else {
					authgin.ServerErr(c, "failed to resolve customer")
				}
				return
			}
			o.CustomerID = *req.CustomerID
			o.Customer = nil
		}
		if req.Reference != nil {
			o.Reference = req.Reference
		}
		if req.Description != nil {
			o.Description = req.Description
		}
		if req.Comment != nil {
			o.Comment = req.Comment
		}

		if err := st.UpdateOrder(c.Request.Context(), o); err != nil {
			authgin.ServerErr(c, "failed to update order")
			return
		}
		log.WithField("order_id", orderID).Info("updated order")
		c.JSON(http.StatusOK, o)
	}
}

func HandleOrderDeleteDELETE(st *store.Store, log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		orderID, ok := pathUUID(c, "order_id")
		if !ok {
			return
		}
		if err := st.DeleteOrder(c.Request.Context(), orderID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				authgin.NotFound(c, "order not found")
			} else {
				authgin.ServerErr(c, "failed to delete order")
			}
			return
		}
		log.WithField("order_id", orderID).Info("deleted order")
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

// HandleOrderItemsGET lists every item on an order. Lives under the order
// path so the item collection can keep its own id route.
func HandleOrderItemsGET(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		orderID, ok := pathUUID(c, "order_id")
		if !ok {
			return
		}
		if _, err := st.OrderByID(c.Request.Context(), orderID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				authgin.NotFound(c, "order not found")
			} else {
				authgin.ServerErr(c, "failed to load order")
			}
			return
		}
		items, err := st.ListItemsByOrder(c.Request.Context(), orderID)
		if err != nil {
			authgin.ServerErr(c, "failed to list items")
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": items, "total": len(items)})
	}
}

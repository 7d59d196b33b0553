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

type itemCreateReq struct {
	OrderID        uuid.UUID `json:"order_id" binding:"required"`
	PricePerUnit   *float64  `json:"price_per_unit"`
	Units          *int      `json:"units"`
	Description    *string   `json:"description"`
	Comment        *string   `json:"comment"`
	MaterialNumber *string   `json:"material_number"`
}

type itemUpdateReq struct {
	PricePerUnit   *float64 `json:"price_per_unit"`
	Units          *int     `json:"units"`
	Description    *string  `json:"description"`
	Comment        *string  `json:"comment"`
	MaterialNumber *string  `json:"material_number"`
}

func HandleItemCreatePOST(st *store.Store, log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req itemCreateReq
		if err := c.ShouldBindJSON(&req); err != nil {
			authgin.BadRequest(c, "invalid request body")
			return
		}
		if _, err := st.OrderByID(c.Request.Context(), req.OrderID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				authgin.NotFound(c, "order not found")
			} else {
				authgin.ServerErr(c, "failed to resolve order")
			}
			return
		}

		i := &store.Item{
			OrderID:        req.OrderID,
			PricePerUnit:   req.PricePerUnit,
			Units:          req.Units,
			Description:    req.Description,
			Comment:        req.Comment,
			MaterialNumber: req.MaterialNumber,
		}
		if err := st.CreateItem(c.Request.Context(), i); err != nil {
			authgin.ServerErr(c, "failed to create item")
			return
		}
		log.WithFields(logrus.Fields{"item_id": i.ID, "order_id": i.OrderID}).Info("created item")
		c.JSON(http.StatusCreated, i)
	}
}

func HandleItemGET(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		itemID, ok := pathUUID(c, "item_id")
		if !ok {
			return
		}
		i, err := st.ItemByID(c.Request.Context(), itemID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				authgin.NotFound(c, "item not found")
			} else {
				authgin.ServerErr(c, "failed to load item")
			}
			return
		}
		c.JSON(http.StatusOK, i)
	}
}

func HandleItemListGET(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		page, pageSize, limit, offset := pageParams(c)
		items, total, err := st.ListItems(c.Request.Context(), limit, offset)
		if err != nil {
			authgin.ServerErr(c, "failed to list items")
			return
		}
		c.JSON(http.StatusOK, paginated(items, total, page, pageSize))
	}
}

func HandleItemUpdatePUT(st *store.Store, log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		itemID, ok := pathUUID(c, "item_id")
		if !ok {
			return
		}
		i, err := st.ItemByID(c.Request.Context(), itemID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				authgin.NotFound(c, "item not found")
			} else {
				authgin.ServerErr(c, "failed to load item")
			}
			return
		}

		var req itemUpdateReq
		if err := c.ShouldBindJSON(&req); err != nil {
			authgin.BadRequest(c, "invalid request body")
			return
		}
		if req.PricePerUnit != nil {
			i.PricePerUnit = req.PricePerUnit
		}
		if req.Units != nil {
			i.Units = req.Units
		}
		if req.Description != nil {
			i.Description = req.Description
		}
		if req.Comment != nil {
			i.Comment = req.Comment
		}
		if req.MaterialNumber != nil {
			i.MaterialNumber = req.MaterialNumber
		}

		if err := st.UpdateItem(c.Request.Context(), i); err != nil {
			authgin.ServerErr(c, "failed to update item")
			return
		}
		log.WithField("item_id", itemID).Info("updated item")
		c.JSON(http.StatusOK, i)
	}
}

func HandleItemDeleteDELETE(st *store.Store, log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		itemID, ok := pathUUID(c, "item_id")
		if !ok {
			return
		}
		if err := st.DeleteItem(c.Request.Context(), itemID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				authgin.NotFound(c, "item not found")
			} else {
				authgin.ServerErr(c, "failed to delete item")
			}
			return
		}
		log.WithField("item_id", itemID).Info("deleted item")
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

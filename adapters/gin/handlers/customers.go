package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	authgin "github.com/open-rails/workplan/adapters/gin"
	"github.com/open-rails/workplan/store"
)

// Customers are lookup-only. Rows come from the billing import, so there
// are no write endpoints.

func HandleCustomerGET(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		customerID, ok := pathUUID(c, "customer_id")
		if !ok {
			return
		}
		cu, err := st.CustomerByID(c.Request.Context(), customerID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				authgin.NotFound(c, "customer not found")
			} else {
				authgin.ServerErr(c, "failed to load customer")
			}
			return
		}
		c.JSON(http.StatusOK, cu)
	}
}

func HandleCustomerListGET(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		customers, err := st.ListCustomers(c.Request.Context())
		if err != nil {
			authgin.ServerErr(c, "failed to list customers")
			return
		}
		if len(customers) == 0 {
			authgin.NotFound(c, "no customers found")
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": customers, "total": len(customers)})
	}
}

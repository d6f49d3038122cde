// Package handler exposes the bag, wishlist, session and checkout operations
// over HTTP.
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/xenking/stitchbag/internal/domain/bag"
	"github.com/xenking/stitchbag/internal/domain/identity"
	"github.com/xenking/stitchbag/internal/domain/order"
	"github.com/xenking/stitchbag/internal/domain/wishlist"
)

// Handler serves the storefront API, delegating to the domain services.
type Handler struct {
	resolver *identity.Resolver
	bag      *bag.Reconciler
	wishlist *wishlist.Mirror
	orders   *order.Service
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	resolver *identity.Resolver,
	reconciler *bag.Reconciler,
	mirror *wishlist.Mirror,
	orders *order.Service,
) *Handler {
	return &Handler{
		resolver: resolver,
		bag:      reconciler,
		wishlist: mirror,
		orders:   orders,
	}
}

// Register mounts the API routes under /api.
func (h *Handler) Register(r gin.IRouter) {
	api := r.Group("/api", h.identify)

	api.POST("/session", h.Session)

	api.GET("/bag", h.ListDrafts)
	api.POST("/bag", h.AddDraft)
	api.GET("/bag/count", h.BagCount)
	api.GET("/bag/count/stream", h.StreamBagCount)
	api.PATCH("/bag/:id/quantity", h.UpdateQuantity)
	api.PUT("/bag/:id/selections", h.UpdateSelections)
	api.DELETE("/bag/:id", h.RemoveDraft)

	api.GET("/wishlist", h.ListWishlist)
	api.POST("/wishlist/:designId/toggle", h.ToggleWishlist)

	api.POST("/checkout", h.Checkout)
}

func badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{
		Code:    http.StatusBadRequest,
		Message: err.Error(),
	})
}

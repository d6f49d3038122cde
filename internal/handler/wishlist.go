package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/xenking/stitchbag/internal/domain/wishlist"
)

type wishlistResponse struct {
	Entries []wishlist.Entry `json:"entries"`
}

type toggleResponse struct {
	DesignID string `json:"designId"`
	Liked    bool   `json:"liked"`
}

// ListWishlist returns liked designs, newest first.
func (h *Handler) ListWishlist(c *gin.Context) {
	entries, err := h.wishlist.List(c.Request.Context(), actorFrom(c))
	if err != nil {
		writeError(c, err)
		return
	}
	if entries == nil {
		entries = []wishlist.Entry{}
	}
	c.JSON(http.StatusOK, wishlistResponse{Entries: entries})
}

// ToggleWishlist likes or unlikes a design.
func (h *Handler) ToggleWishlist(c *gin.Context) {
	designID := c.Param("designId")
	liked, err := h.wishlist.Toggle(c.Request.Context(), actorFrom(c), designID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toggleResponse{DesignID: designID, Liked: liked})
}

package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/xenking/stitchbag/internal/domain/bag"
	"github.com/xenking/stitchbag/internal/domain/draft"
)

// keepAliveInterval bounds how long an idle count stream stays silent.
const keepAliveInterval = 25 * time.Second

type bagResponse struct {
	Lines []bag.Line      `json:"lines"`
	Total decimal.Decimal `json:"total"`
	Count int             `json:"count"`
}

type quantityRequest struct {
	Quantity int `json:"quantity"`
}

type countResponse struct {
	Count int `json:"count"`
}

// ListDrafts returns the bag with fresh prices.
func (h *Handler) ListDrafts(c *gin.Context) {
	lines, err := h.bag.ListDrafts(c.Request.Context(), actorFrom(c))
	if err != nil {
		writeError(c, err)
		return
	}

	total := decimal.Zero
	for _, l := range lines {
		if !l.Unpriced {
			total = total.Add(l.LineTotal)
		}
	}
	c.JSON(http.StatusOK, bagResponse{Lines: lines, Total: total.Round(2), Count: len(lines)})
}

// AddDraft adds a new bag line.
func (h *Handler) AddDraft(c *gin.Context) {
	var req bag.AddRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	d, err := h.bag.AddDraft(c.Request.Context(), actorFrom(c), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, d)
}

// UpdateQuantity sets the quantity of one bag line.
func (h *Handler) UpdateQuantity(c *gin.Context) {
	var req quantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	if err := h.bag.UpdateQuantity(c.Request.Context(), actorFrom(c), c.Param("id"), req.Quantity); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// UpdateSelections replaces the selections of one bag line.
func (h *Handler) UpdateSelections(c *gin.Context) {
	var sel draft.Selections
	if err := c.ShouldBindJSON(&sel); err != nil {
		badRequest(c, err)
		return
	}

	if err := h.bag.UpdateSelections(c.Request.Context(), actorFrom(c), c.Param("id"), sel); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// RemoveDraft deletes one bag line. Removing an absent line succeeds.
func (h *Handler) RemoveDraft(c *gin.Context) {
	if err := h.bag.RemoveDraft(c.Request.Context(), actorFrom(c), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// BagCount returns the number of editable lines.
func (h *Handler) BagCount(c *gin.Context) {
	n, err := h.bag.BagCount(c.Request.Context(), actorFrom(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, countResponse{Count: n})
}

// StreamBagCount pushes the bag count as server-sent events until the client
// disconnects.
func (h *Handler) StreamBagCount(c *gin.Context) {
	ctx := c.Request.Context()
	counts, cancel, err := h.bag.SubscribeCount(ctx, actorFrom(c))
	if err != nil {
		writeError(c, err)
		return
	}
	defer cancel()

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-counts:
			if !ok {
				return
			}
			c.SSEvent("count", countResponse{Count: n})
		case <-ticker.C:
			c.SSEvent("ping", "")
		}
		c.Writer.Flush()
	}
}

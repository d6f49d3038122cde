package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/stitchbag/internal/domain/order"
)

type checkoutRequest struct {
	PaymentToken string   `json:"paymentToken"`
	DraftIDs     []string `json:"draftIds"`
}

type orderResponse struct {
	ID         string            `json:"id"`
	Lines      []order.OrderLine `json:"lines"`
	Total      decimal.Decimal   `json:"total"`
	Currency   string            `json:"currency"`
	PaymentRef string            `json:"paymentRef"`
	CreatedAt  time.Time         `json:"createdAt"`
}

// Checkout converts the bag into an order. An order that was placed but whose
// drafts could not be marked submitted is still returned, with a Warning
// header.
func (h *Handler) Checkout(c *gin.Context) {
	var req checkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	o, err := h.orders.Checkout(c.Request.Context(), actorFrom(c), order.CheckoutRequest{
		PaymentToken: req.PaymentToken,
		DraftIDs:     req.DraftIDs,
	})
	if err != nil && o == nil {
		writeError(c, err)
		return
	}
	if err != nil {
		zctx.From(c.Request.Context()).Warn("Order placed but bag not updated",
			zap.String("order_id", o.ID),
			zap.Error(err),
		)
		c.Header("Warning", `199 - "bag not updated"`)
	}

	c.JSON(http.StatusCreated, orderResponse{
		ID:         o.ID,
		Lines:      o.Lines,
		Total:      o.Total,
		Currency:   o.Currency,
		PaymentRef: o.PaymentRef,
		CreatedAt:  o.CreatedAt,
	})
}

package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/stitchbag/internal/domain/draft"
	"github.com/xenking/stitchbag/internal/domain/identity"
	"github.com/xenking/stitchbag/internal/domain/order"
	"github.com/xenking/stitchbag/internal/domain/persist"
	"github.com/xenking/stitchbag/internal/domain/wishlist"
)

type errorResponse struct {
	Code     int             `json:"code"`
	Message  string          `json:"message"`
	Problems []draft.Problem `json:"problems,omitempty"`
}

// statusOf maps domain errors to HTTP status codes.
func statusOf(err error) int {
	var (
		verr     *draft.ValidationError
		unpriced *order.UnpricedDraftError
		missing  *order.DraftNotInBagError
		dup      *order.DuplicateDraftError
	)
	switch {
	case errors.As(err, &verr),
		errors.Is(err, draft.ErrInvalidQuantity),
		errors.Is(err, wishlist.ErrDesignRequired),
		errors.As(err, &dup):
		return http.StatusUnprocessableEntity
	case errors.Is(err, persist.ErrNotFound), errors.As(err, &missing):
		return http.StatusNotFound
	case errors.Is(err, draft.ErrSubmitted), errors.As(err, &unpriced):
		return http.StatusConflict
	case errors.Is(err, identity.ErrUnauthenticated), errors.Is(err, identity.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, identity.ErrMissingDevice), errors.Is(err, order.ErrEmptyBag):
		return http.StatusBadRequest
	case errors.Is(err, order.ErrPaymentDeclined):
		return http.StatusPaymentRequired
	case persist.IsPersistence(err):
		return http.StatusInsufficientStorage
	case persist.IsRemoteUnavailable(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError aborts the request with the mapped status. Internal errors are
// logged and their message is not exposed.
func writeError(c *gin.Context, err error) {
	code := statusOf(err)
	resp := errorResponse{Code: code, Message: err.Error()}

	var verr *draft.ValidationError
	if errors.As(err, &verr) {
		resp.Problems = verr.Problems
	}
	if code >= http.StatusInternalServerError {
		zctx.From(c.Request.Context()).Error("Request failed",
			zap.String("path", c.FullPath()),
			zap.Int("status", code),
			zap.Error(err),
		)
		if code == http.StatusInternalServerError {
			resp.Message = http.StatusText(code)
		}
	}
	c.AbortWithStatusJSON(code, resp)
}

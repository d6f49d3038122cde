package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type sessionResponse struct {
	DeviceID      string `json:"deviceId,omitempty"`
	UserID        string `json:"userId,omitempty"`
	Authenticated bool   `json:"authenticated"`
}

// Session reports who the caller is. Called right after sign-in it runs the
// one-time move of the device's bag and wishlist into the user's account and
// reports a failure of that move instead of deferring it.
func (h *Handler) Session(c *gin.Context) {
	if terr := transitionErrorFrom(c); terr != nil {
		writeError(c, terr)
		return
	}

	actor := actorFrom(c)
	c.JSON(http.StatusOK, sessionResponse{
		DeviceID:      actor.DeviceID,
		UserID:        actor.UserID,
		Authenticated: actor.Authenticated(),
	})
}

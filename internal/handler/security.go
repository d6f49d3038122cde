package handler

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/stitchbag/internal/domain/identity"
)

// DeviceHeader carries the anonymous device id.
const DeviceHeader = "X-Device-ID"

const (
	actorKey           = "stitchbag.actor"
	transitionErrorKey = "stitchbag.transition_error"
)

// identify resolves the request's actor from the device header and the
// bearer token. A failed sign-in transition does not fail the request: the
// actor is already known and the transition is retried on the next request.
func (h *Handler) identify(c *gin.Context) {
	creds := identity.Credentials{
		DeviceID: strings.TrimSpace(c.GetHeader(DeviceHeader)),
		Token:    bearerToken(c.GetHeader("Authorization")),
	}

	ctx := c.Request.Context()
	actor, err := h.resolver.Resolve(ctx, creds)
	var terr *identity.TransitionError
	switch {
	case errors.As(err, &terr):
		zctx.From(ctx).Warn("Sign-in transition pending",
			zap.String("device_id", terr.Transition.DeviceID),
			zap.String("user_id", terr.Transition.UserID),
			zap.Error(terr.Err),
		)
		c.Set(transitionErrorKey, terr)
	case err != nil:
		writeError(c, err)
		return
	}

	c.Set(actorKey, actor)
	c.Request = c.Request.WithContext(zctx.With(ctx,
		zap.String("device_id", actor.DeviceID),
		zap.String("user_id", actor.UserID),
	))
	c.Next()
}

func actorFrom(c *gin.Context) identity.Actor {
	v, _ := c.Get(actorKey)
	a, _ := v.(identity.Actor)
	return a
}

func transitionErrorFrom(c *gin.Context) *identity.TransitionError {
	v, _ := c.Get(transitionErrorKey)
	terr, _ := v.(*identity.TransitionError)
	return terr
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

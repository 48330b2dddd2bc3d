package utils

import (
	"context"
	"net/mail"

	"github.com/gin-gonic/gin"

	"github.com/checkmarble/agent-eval-backend/models"
)

const ActorHeader = "X-User-Email"

// ActorFromContext returns the identity recorded on approval records and versions. Requests are not
// authenticated: the value is whatever the caller declared, or "anonymous".
func ActorFromContext(ctx context.Context) string {
	actor, found := ctx.Value(ContextKeyActor).(string)
	if !found || actor == "" {
		return models.AnonymousActor
	}
	return actor
}

func StoreActorInContext(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, ContextKeyActor, actor)
}

func StoreActorInContextMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := c.GetHeader(ActorHeader)
		if actor != "" {
			if addr, err := mail.ParseAddress(actor); err == nil {
				actor = addr.Address
			} else {
				actor = ""
			}
		}
		c.Request = c.Request.WithContext(StoreActorInContext(c.Request.Context(), actor))
		c.Next()
	}
}

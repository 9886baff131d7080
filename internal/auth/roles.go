package auth

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/complaint-service/internal/domain"
)

// RequireKind ensures the actor is one of the allowed kinds.
func RequireKind(allowed ...domain.ActorKind) fiber.Handler {
	allowedSet := make(map[domain.ActorKind]struct{}, len(allowed))
	for _, kind := range allowed {
		allowedSet[kind] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		actor, ok := ActorFromContext(c)
		if !ok {
			return fiber.NewError(http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
		}
		if _, exists := allowedSet[actor.Kind()]; !exists {
			return fiber.NewError(http.StatusForbidden, "actor kind not permitted")
		}
		return c.Next()
	}
}

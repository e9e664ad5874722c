package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk/internal/domain"
	apperrors "github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

// IdentityFromContext retrieves the authenticated caller.
func IdentityFromContext(c *fiber.Ctx) (domain.Identity, bool) {
	identity, ok := c.Locals(identityKey).(domain.Identity)
	return identity, ok
}

// RequireIdentity rejects requests that did not pass through AuthMiddleware.
// Role checks belong to the collaboration service, not to routes.
func RequireIdentity() fiber.Handler {
	return func(c *fiber.Ctx) error {
		identity, ok := IdentityFromContext(c)
		if !ok || !identity.Role.IsValid() {
			return apperrors.NewUnauthorized("authentication required")
		}
		return c.Next()
	}
}

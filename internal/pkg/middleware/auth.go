package middleware

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/FoxPass/app/models"
	"github.com/ManuelReschke/FoxPass/internal/pkg/billing"
	"github.com/ManuelReschke/FoxPass/internal/pkg/session"
	"github.com/ManuelReschke/FoxPass/internal/pkg/usercontext"
)

// ProfileLoader loads the profile a session token was issued for.
type ProfileLoader interface {
	FindProfile(ctx context.Context, userID uint) (*models.Profile, error)
}

// BearerAuth authenticates requests carrying "Authorization: Bearer <jwt>"
// and stores the caller's profile in the request context.
func BearerAuth(tokens *session.Manager, profiles ProfileLoader) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if tokens == nil {
			log.Error("[Auth] Session tokens are not configured")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Server configuration error, please contact support"})
		}

		userID, _, err := tokens.Verify(session.BearerToken(c.Get(fiber.HeaderAuthorization)))
		if err != nil {
			return unauthorized(c)
		}

		p, err := profiles.FindProfile(c.UserContext(), userID)
		if err != nil {
			if errors.Is(err, billing.ErrProfileNotFound) {
				return unauthorized(c)
			}
			log.Errorf("[Auth] Loading profile %d failed: %v", userID, err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
		}
		if !p.IsActive() {
			return unauthorized(c)
		}

		usercontext.Set(c, p, time.Now())
		return c.Next()
	}
}

// RequireAdmin ensures an authenticated admin; answers 403 JSON otherwise.
func RequireAdmin(c *fiber.Ctx) error {
	if !usercontext.IsLoggedIn(c) {
		return unauthorized(c)
	}
	if !usercontext.IsAdmin(c) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Admin access required"})
	}
	return c.Next()
}

func unauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Authentication required"})
}

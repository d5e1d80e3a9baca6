package usercontext

import (
	"time"

	"github.com/ManuelReschke/FoxPass/app/models"
	"github.com/ManuelReschke/FoxPass/internal/pkg/entitlements"
	"github.com/gofiber/fiber/v2"
)

// UserContext represents the complete user context for a request
type UserContext struct {
	UserID     uint   `json:"user_id"`
	Username   string `json:"username"`
	IsLoggedIn bool   `json:"is_logged_in"`
	IsAdmin    bool   `json:"is_admin"`
	Plan       string `json:"plan"`
}

// Set stores the authenticated profile and its derived context on c.
func Set(c *fiber.Ctx, p *models.Profile, now time.Time) {
	userCtx := UserContext{
		UserID:     p.ID,
		Username:   p.Username,
		IsLoggedIn: true,
		IsAdmin:    p.IsAdmin(),
		Plan:       string(entitlements.EffectivePlan(p, now)),
	}
	c.Locals(KeyUserContext, userCtx)
	c.Locals(KeyProfile, p)
	c.Locals(KeyUserID, p.ID)
	c.Locals(KeyIsAdmin, userCtx.IsAdmin)
}

// GetUserContext retrieves the user context from fiber context
// Returns a default anonymous context if none is set
func GetUserContext(c *fiber.Ctx) UserContext {
	if ctx, ok := c.Locals(KeyUserContext).(UserContext); ok {
		return ctx
	}
	return UserContext{IsLoggedIn: false, IsAdmin: false}
}

// GetProfile returns the profile loaded by the auth middleware, or nil.
func GetProfile(c *fiber.Ctx) *models.Profile {
	p, _ := c.Locals(KeyProfile).(*models.Profile)
	return p
}

// IsLoggedIn checks if the current user is logged in
func IsLoggedIn(c *fiber.Ctx) bool {
	return GetUserContext(c).IsLoggedIn
}

// IsAdmin checks if the current user is an admin
func IsAdmin(c *fiber.Ctx) bool {
	return GetUserContext(c).IsAdmin
}

// GetUserID returns the current user's ID, or 0 if not logged in
func GetUserID(c *fiber.Ctx) uint {
	return GetUserContext(c).UserID
}

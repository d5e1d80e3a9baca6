package controllers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// HealthController reports database and cache reachability
type HealthController struct {
	db  *gorm.DB
	rdb *redis.Client
}

// NewHealthController creates a health controller; nil dependencies are skipped
func NewHealthController(db *gorm.DB, rdb *redis.Client) *HealthController {
	return &HealthController{db: db, rdb: rdb}
}

// HandleHealthz answers 200 when every configured dependency responds
func (hc *HealthController) HandleHealthz(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	checks := fiber.Map{}
	healthy := true
	if hc.db != nil {
		checks["database"] = "ok"
		sqlDB, err := hc.db.DB()
		if err == nil {
			err = sqlDB.PingContext(ctx)
		}
		if err != nil {
			checks["database"] = err.Error()
			healthy = false
		}
	}
	if hc.rdb != nil {
		checks["cache"] = "ok"
		if err := hc.rdb.Ping(ctx).Err(); err != nil {
			// the cache is optional for correctness
			checks["cache"] = err.Error()
		}
	}

	status := fiber.StatusOK
	if !healthy {
		status = fiber.StatusServiceUnavailable
	}
	return c.Status(status).JSON(fiber.Map{"healthy": healthy, "checks": checks})
}

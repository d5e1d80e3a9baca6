package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/FoxPass/app/repository"
	"github.com/ManuelReschke/FoxPass/internal/pkg/statistics"
)

const (
	defaultUsersPerPage = 50
	maxUsersPerPage     = 200
)

// AdminController serves the admin dashboard reads
type AdminController struct {
	repos *repository.Repositories
	stats *statistics.Statistics
}

// NewAdminController creates an admin controller
func NewAdminController(repos *repository.Repositories, stats *statistics.Statistics) *AdminController {
	return &AdminController{repos: repos, stats: stats}
}

// HandleStats returns user and Pro counts
func (ac *AdminController) HandleStats(c *fiber.Ctx) error {
	data, err := ac.stats.Get(c.UserContext())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(data)
}

// HandleListUsers pages through all profiles with their entitlement state
func (ac *AdminController) HandleListUsers(c *fiber.Ctx) error {
	page := c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}
	perPage := c.QueryInt("per_page", defaultUsersPerPage)
	if perPage < 1 || perPage > maxUsersPerPage {
		perPage = defaultUsersPerPage
	}

	profiles, err := ac.repos.Profile.List((page-1)*perPage, perPage)
	if err != nil {
		return writeError(c, err)
	}
	total, err := ac.repos.Profile.Count()
	if err != nil {
		return writeError(c, err)
	}

	users := make([]fiber.Map, 0, len(profiles))
	for i := range profiles {
		entry := profileEntitlement(&profiles[i])
		entry["username"] = profiles[i].Username
		entry["role"] = profiles[i].Role
		entry["status"] = profiles[i].Status
		users = append(users, entry)
	}
	return c.JSON(fiber.Map{
		"users":    users,
		"page":     page,
		"per_page": perPage,
		"total":    total,
	})
}

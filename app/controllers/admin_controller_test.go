package controllers

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/FoxPass/app/models"
	"github.com/ManuelReschke/FoxPass/app/repository"
	"github.com/ManuelReschke/FoxPass/internal/pkg/statistics"
)

type fakeProfiles struct {
	profiles []models.Profile
}

func (f *fakeProfiles) Create(*models.Profile) error                  { return nil }
func (f *fakeProfiles) GetByID(uint) (*models.Profile, error)         { return nil, nil }
func (f *fakeProfiles) GetByUsername(string) (*models.Profile, error) { return nil, nil }
func (f *fakeProfiles) UpdateAccount(*models.Profile) error           { return nil }

func (f *fakeProfiles) List(offset, limit int) ([]models.Profile, error) {
	if offset >= len(f.profiles) {
		return nil, nil
	}
	end := offset + limit
	if end > len(f.profiles) {
		end = len(f.profiles)
	}
	return f.profiles[offset:end], nil
}

func (f *fakeProfiles) Count() (int64, error) { return int64(len(f.profiles)), nil }

func (f *fakeProfiles) CountPro() (int64, error) {
	var n int64
	for _, p := range f.profiles {
		if p.IsPro {
			n++
		}
	}
	return n, nil
}

type fakeMessages struct{ unread int64 }

func (f *fakeMessages) GetUnread(int) ([]models.AdminMessage, error) { return nil, nil }
func (f *fakeMessages) MarkAsRead(uint) error                        { return nil }
func (f *fakeMessages) CountUnread() (int64, error)                  { return f.unread, nil }

func TestAdminController(t *testing.T) {
	profiles := &fakeProfiles{profiles: []models.Profile{
		{ID: 1, Username: "alice", IsPro: true, Role: models.ROLE_USER, Status: models.STATUS_ACTIVE},
		{ID: 2, Username: "bob", Role: models.ROLE_USER, Status: models.STATUS_ACTIVE},
		{ID: 3, Username: "root", Role: models.ROLE_ADMIN, Status: models.STATUS_ACTIVE},
	}}
	messages := &fakeMessages{unread: 5}
	repos := &repository.Repositories{Profile: profiles, AdminMessage: messages}
	ac := NewAdminController(repos, statistics.New(profiles, messages, nil))

	app := fiber.New()
	app.Get("/stats", ac.HandleStats)
	app.Get("/users", ac.HandleListUsers)

	get := func(path string) map[string]interface{} {
		resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, path, nil))
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
		out := map[string]interface{}{}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		return out
	}

	stats := get("/stats")
	assert.Equal(t, float64(3), stats["total_users"])
	assert.Equal(t, float64(1), stats["pro_users"])
	assert.Equal(t, float64(5), stats["unread_admin_messages"])

	page := get("/users?page=2&per_page=2")
	assert.Equal(t, float64(3), page["total"])
	users := page["users"].([]interface{})
	require.Len(t, users, 1)
	assert.Equal(t, "root", users[0].(map[string]interface{})["username"])

	page = get("/users?per_page=1000")
	assert.Equal(t, float64(defaultUsersPerPage), page["per_page"])
	assert.Len(t, page["users"], 3)
}

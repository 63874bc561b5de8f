package mirror

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"strapisync/internal/models"
)

func TestAdminUserLifecycle(t *testing.T) {
	remote := newFakeStrapi(t)
	env := newTestEnv(t, remote)
	ctx := context.Background()

	first, last := "Grace", "Hopper"
	user := models.User{ID: "usr_1", Email: "grace@example.com", FirstName: &first, LastName: &last, Role: models.UserRoleDeveloper}
	require.NoError(t, env.db.Create(&user).Error)

	created, err := env.engine.CreateUser(ctx, "usr_1")
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, created.Status, created.Error)
	assert.NotZero(t, created.ID)
	assert.Equal(t, "grace@example.com", created.Data["email"])
	assert.Equal(t, "Grace", created.Data["firstname"])
	assert.Equal(t, []interface{}{float64(2)}, created.Data["roles"])

	again, err := env.engine.CreateUser(ctx, "usr_1")
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, again.Status)
	assert.Equal(t, created.ID, again.ID)

	require.NoError(t, env.db.Model(&models.User{}).Where("id = ?", "usr_1").Update("first_name", "Amazing Grace").Error)

	updated, err := env.engine.UpdateUser(ctx, "usr_1", []string{"first_name"})
	require.NoError(t, err)
	require.True(t, updated.OK(), updated.Error)
	assert.Equal(t, "Amazing Grace", updated.Data["firstname"])

	skipped, err := env.engine.UpdateUser(ctx, "usr_1", []string{"metadata"})
	require.NoError(t, err)
	assert.Equal(t, SkipIrrelevant, skipped.Skipped)

	require.NoError(t, env.db.Delete(&models.User{}, "id = ?", "usr_1").Error)

	deleted, err := env.engine.DeleteUser(ctx, "usr_1")
	require.NoError(t, err)
	require.True(t, deleted.OK(), deleted.Error)
	assert.Equal(t, created.ID, deleted.ID)
	assert.Len(t, remote.callsTo("DELETE /admin/users/"), 1)

	gone, err := env.engine.DeleteUser(ctx, "usr_1")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, gone.Status)
}

func TestUpdateUnknownAdminUserIsNotFound(t *testing.T) {
	remote := newFakeStrapi(t)
	env := newTestEnv(t, remote)
	require.NoError(t, env.db.Create(&models.User{ID: "usr_2", Email: "ada@example.com"}).Error)

	res, err := env.engine.UpdateUser(context.Background(), "usr_2", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, res.Status)
}

func TestUpdateUserFollowsEmailChange(t *testing.T) {
	remote := newFakeStrapi(t)
	env := newTestEnv(t, remote)
	ctx := context.Background()

	require.NoError(t, env.db.Create(&models.User{ID: "usr_3", Email: "old@example.com", Role: models.UserRoleMember}).Error)
	created, err := env.engine.CreateUser(ctx, "usr_3")
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, created.Status, created.Error)

	var stored models.User
	require.NoError(t, env.db.First(&stored, "id = ?", "usr_3").Error)
	assert.Equal(t, float64(created.ID), stored.Metadata["strapi_admin_id"])

	require.NoError(t, env.db.Model(&models.User{}).Where("id = ?", "usr_3").Update("email", "new@example.com").Error)

	updated, err := env.engine.UpdateUser(ctx, "usr_3", []string{"email"})
	require.NoError(t, err)
	require.True(t, updated.OK(), updated.Error)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, "new@example.com", updated.Data["email"])
	assert.Len(t, remote.callsTo("POST /admin/users"), 1)
}

func TestUpdateUserSendsRoleChange(t *testing.T) {
	remote := newFakeStrapi(t)
	env := newTestEnv(t, remote)
	ctx := context.Background()

	require.NoError(t, env.db.Create(&models.User{ID: "usr_4", Email: "lin@example.com", Role: models.UserRoleMember}).Error)
	created, err := env.engine.CreateUser(ctx, "usr_4")
	require.NoError(t, err)
	assert.Equal(t, []interface{}{float64(3)}, created.Data["roles"])

	require.NoError(t, env.db.Model(&models.User{}).Where("id = ?", "usr_4").Update("role", models.UserRoleAdmin).Error)

	updated, err := env.engine.UpdateUser(ctx, "usr_4", []string{"role"})
	require.NoError(t, err)
	require.True(t, updated.OK(), updated.Error)
	assert.Equal(t, []interface{}{float64(1)}, updated.Data["roles"])
}

func TestUpdateUserLinksAdminFoundByEmail(t *testing.T) {
	remote := newFakeStrapi(t)
	env := newTestEnv(t, remote)
	ctx := context.Background()

	remote.mu.Lock()
	remote.nextID++
	remote.users[remote.nextID] = map[string]interface{}{"id": remote.nextID, "email": "kay@example.com"}
	adminID := remote.nextID
	remote.mu.Unlock()

	require.NoError(t, env.db.Create(&models.User{ID: "usr_5", Email: "kay@example.com"}).Error)

	updated, err := env.engine.UpdateUser(ctx, "usr_5", nil)
	require.NoError(t, err)
	require.True(t, updated.OK(), updated.Error)

	var stored models.User
	require.NoError(t, env.db.First(&stored, "id = ?", "usr_5").Error)
	assert.Equal(t, float64(adminID), stored.Metadata["strapi_admin_id"])
}

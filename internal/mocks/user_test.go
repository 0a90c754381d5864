package mocks

import (
	"testing"

	"github.com/comfortablynumb/pmp-unit-test/internal/cms"
	"github.com/comfortablynumb/pmp-unit-test/internal/mocker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserMock(t *testing.T) {
	tests := []struct {
		name   string
		args   []any
		role   string
		screen string
	}{
		{"default", nil, RoleSubscriber, cms.ScreenFront},
		{"true", []any{true}, RoleSubscriber, cms.ScreenFront},
		{"user", []any{"user"}, RoleSubscriber, cms.ScreenFront},
		{"admin", []any{"admin"}, RoleAdministrator, cms.ScreenDashboard},
		{"administrator", []any{RoleAdministrator}, RoleAdministrator, cms.ScreenDashboard},
		{"admin on front", []any{"admin", cms.ScreenFront}, RoleAdministrator, cms.ScreenFront},
		{"admin on custom screen", []any{"admin", "edit-post"}, RoleAdministrator, "edit-post"},
		{"true with admin screen", []any{true, "admin"}, RoleAdministrator, cms.ScreenDashboard},
		{"anonymous", []any{false}, "", cms.ScreenFront},
		{"nil", []any{nil}, "", cms.ScreenFront},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg, env, _ := newContent(t)
			env.SetCurrentScreen("elsewhere")

			_, err := reg.Call("user", tt.args...)
			require.NoError(t, err)

			u := env.CurrentUser()
			if tt.role == "" {
				assert.Equal(t, int64(0), u.ID)
			} else {
				assert.NotZero(t, u.ID)
				assert.True(t, u.HasRole(tt.role), "expected role %s, got %v", tt.role, u.Roles)
			}
			assert.Equal(t, tt.screen, env.CurrentScreen())
		})
	}
}

func TestUserReusesAccounts(t *testing.T) {
	reg, env, _ := newContent(t)
	u := reg.MustGet(ServiceUser).(*User)

	_, err := u.Mock("user")
	require.NoError(t, err)
	first := u.Get().ID

	_, err = u.Mock("admin")
	require.NoError(t, err)
	admin := u.Get().ID
	assert.NotEqual(t, first, admin)

	_, err = u.Mock("user")
	require.NoError(t, err)
	assert.Equal(t, first, u.Get().ID)

	env.Store.DeleteUser(first)
	_, err = u.Mock("user")
	require.NoError(t, err)
	assert.NotEqual(t, first, u.Get().ID)
}

func TestUserReset(t *testing.T) {
	reg, env, _ := newContent(t)

	_, err := reg.Call("mock_user", "admin")
	require.NoError(t, err)
	assert.True(t, env.IsAdmin())

	reg.ResetAll()
	assert.Equal(t, int64(0), env.CurrentUser().ID)
	assert.False(t, env.IsAdmin())

	out, err := reg.Call("user_get")
	require.NoError(t, err)
	assert.Equal(t, int64(0), out.(*cms.User).ID)

	_, err = reg.Call("user_delete")
	assert.ErrorIs(t, err, mocker.ErrDispatch)
}

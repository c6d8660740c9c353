package access

import (
	"testing"

	"ctrlbx/app/dto"
	"ctrlbx/app/util"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticRole dto.Role

func (r staticRole) Role() dto.Role {
	return dto.Role(r)
}

func TestCan(t *testing.T) {
	tests := []struct {
		role   dto.Role
		action dto.Action
		want   bool
	}{
		{role: dto.RoleViewer, action: dto.ActionUsersView, want: true},
		{role: dto.RoleViewer, action: dto.ActionUsersCreate, want: false},
		{role: dto.RoleAdmin, action: dto.ActionUsersAdjustTokens, want: true},
		{role: dto.RoleAdmin, action: dto.ActionDevicesEdit, want: false},
		{role: dto.RoleAdmin, action: dto.ActionHousesView, want: true},
		{role: dto.RoleViewer, action: dto.ActionHousesView, want: false},
		{role: dto.RoleAdmin, action: dto.ActionLogsExport, want: true},
		{role: dto.RoleViewer, action: dto.ActionLogsExport, want: false},
		{role: dto.RoleAdmin, action: dto.ActionTokensView, want: false},
		{role: dto.RoleMaster, action: dto.ActionMasterkeysDelete, want: true},
		{role: dto.RoleMaster, action: "reports.view", want: false},
		{role: "", action: dto.ActionDashboardView, want: false},
		{role: "SUPERUSER", action: dto.ActionDashboardView, want: false},
	}

	for _, tt := range tests {
		svc, err := NewWith(staticRole(tt.role))
		require.NoError(t, err)

		assert.Equal(t, tt.want, svc.Can(tt.action), "%s %s", tt.role, tt.action)
	}
}

func TestMatrixMatchesPolicy(t *testing.T) {
	for _, role := range dto.AllRoles {
		svc, err := NewWith(staticRole(role))
		require.NoError(t, err)

		for action, allowed := range Matrix {
			want := false
			for _, r := range allowed {
				if r == role {
					want = true
				}
			}

			assert.Equal(t, want, svc.Can(action), "%s %s", role, action)
		}
	}
}

func TestGuard(t *testing.T) {
	svc, err := NewWith(staticRole(dto.RoleViewer))
	require.NoError(t, err)

	require.NoError(t, svc.Guard(dto.ActionLogsView))

	err = svc.Guard(dto.ActionUsersCreate)
	require.Error(t, err)
	assert.Equal(t, util.KindForbidden, util.ErrorKind(err))
	assert.NotEmpty(t, oops.GetPublic(err, ""))
}

func TestCanNavigate(t *testing.T) {
	svc, err := NewWith(staticRole(dto.RoleAdmin))
	require.NoError(t, err)

	assert.True(t, svc.CanNavigate("dashboard"))
	assert.True(t, svc.CanNavigate("houses"))
	assert.False(t, svc.CanNavigate("roles"))
	assert.False(t, svc.CanNavigate("masterkeys"))
	assert.True(t, svc.CanNavigate("help"))

	assert.Contains(t, svc.Permissions(), string(dto.ActionUsersAdjustTokens))
	assert.NotContains(t, svc.Permissions(), string(dto.ActionTokensDelete))
}

func TestEveryActionIsInPolicy(t *testing.T) {
	require.Len(t, Matrix, len(dto.AllActions))

	for _, role := range dto.AllRoles {
		svc, err := NewWith(staticRole(role))
		require.NoError(t, err, role)

		for _, action := range dto.AllActions {
			_, ok := Matrix[action]
			require.True(t, ok, "%s missing from matrix", action)
			assert.True(t, svc.policy.PermissionExists(permission(action)), action)
		}
	}
}

func TestMasterPermissionsAreDottedKeys(t *testing.T) {
	svc, err := NewWith(staticRole(dto.RoleMaster))
	require.NoError(t, err)

	want := make([]string, 0, len(dto.AllActions))
	for _, action := range dto.AllActions {
		want = append(want, string(action))
	}

	assert.ElementsMatch(t, want, svc.Permissions())
	assert.True(t, svc.Can(dto.ActionRolesViewAdminLog))
}

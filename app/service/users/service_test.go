package users

import (
	"context"
	"testing"

	"ctrlbx/app/dto"
	"ctrlbx/app/service/notify"
	"ctrlbx/app/service/servicetest"
	"ctrlbx/app/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func routes() map[string]servicetest.Handler {
	ok := servicetest.Static(servicetest.OK(nil))

	return map[string]servicetest.Handler{
		"getUsers": servicetest.Static(servicetest.OK(map[string]any{
			"users": []map[string]any{
				{"uid": "A1", "user_name": "carla", "status": "ACTIVO", "user_type": "GLOBAL", "tokens": map[string]any{"LAUNDRY": 2}},
				{"uid": "B2", "user_name": "Bruno", "status": "INACTIVO", "user_type": "HOUSE", "tokens": map[string]any{"LAUNDRY": "1", "GYM": 4}},
				{"uid": "C3", "user_name": "Ana", "status": "ACTIVO", "user_type": "HOUSE"},
			},
		})),
		"getHouses": servicetest.Static(servicetest.OK(map[string]any{
			"houses": []map[string]any{{"house_id": "H2"}, {"house_id": "H1"}},
		})),
		"getAllUserHouses": servicetest.Static(servicetest.OK(map[string]any{
			"assignments": []map[string]any{{"uid": "B2", "house_id": "H1"}},
		})),
		"getDevices": servicetest.Static(servicetest.OK(map[string]any{
			"devices": []map[string]any{
				{"esp32_id": "E1", "house_id": "H1", "token_type": "LAUNDRY", "active": "TRUE"},
				{"esp32_id": "E2", "house_id": "H2", "token_type": "DRYER", "active": true},
				{"esp32_id": "E3", "house_id": "H1", "token_type": "GYM", "active": "FALSE"},
				{"esp32_id": "E4", "house_id": "H1", "token_type": "LAUNDRY", "active": 1},
			},
		})),
		"getTokenTypes": servicetest.Static(servicetest.OK(map[string]any{
			"token_types": []map[string]any{{"token_type": "LAUNDRY"}, {"token_type": "DRYER"}, {"token_type": "GYM"}},
		})),
		"createUser":         ok,
		"updateUser":         ok,
		"assignUserHouses":   ok,
		"updateTokenBalance": ok,
	}
}

func loaded(t *testing.T, role dto.Role) (*Service, *servicetest.Env) {
	t.Helper()

	env := servicetest.New(t, role, routes())
	svc, err := New(env.DI)
	require.NoError(t, err)
	require.NoError(t, svc.Load(context.Background()))

	return svc, env
}

func uids(svc *Service) []string {
	var result []string
	for _, u := range svc.Visible() {
		result = append(result, u.UID)
	}

	return result
}

func TestInstantFilters(t *testing.T) {
	svc, _ := loaded(t, dto.RoleViewer)

	assert.Equal(t, []string{"A1", "B2", "C3"}, uids(svc))

	svc.SetSearch("AN")
	assert.Equal(t, []string{"C3"}, uids(svc))

	svc.SetSearch("b2")
	assert.Equal(t, []string{"B2"}, uids(svc))

	svc.SetSearch("")
	svc.SetStatus(dto.StatusActive)
	assert.Equal(t, []string{"A1", "C3"}, uids(svc))

	svc.SetSort(SortAsc)
	assert.Equal(t, []string{"C3", "A1"}, uids(svc))

	svc.SetStatus("")
	svc.SetSort(SortDesc)
	assert.Equal(t, []string{"A1", "B2", "C3"}, uids(svc))

	svc.SetSearch("zzz")
	svc.Reset()
	assert.Equal(t, []string{"A1", "B2", "C3"}, uids(svc))
}

func TestRelevantTokenTypes(t *testing.T) {
	svc, _ := loaded(t, dto.RoleAdmin)

	global, ok := svc.User("A1")
	require.True(t, ok)
	assert.Equal(t, []string{"LAUNDRY", "DRYER"}, svc.RelevantTokenTypes(global))

	house, ok := svc.User("B2")
	require.True(t, ok)
	assert.Equal(t, []string{"LAUNDRY"}, svc.RelevantTokenTypes(house))

	noHouses, ok := svc.User("C3")
	require.True(t, ok)
	assert.Empty(t, svc.RelevantTokenTypes(noHouses))
}

func TestAdjustTokensSendsDeltasSequentially(t *testing.T) {
	svc, env := loaded(t, dto.RoleAdmin)

	applied, err := svc.AdjustTokens(context.Background(), "A1", map[string]int{
		"LAUNDRY": 5,
		"DRYER":   0,
	})
	require.NoError(t, err)
	assert.Equal(t, []TokenChange{{TokenType: "LAUNDRY", Delta: 3}}, applied)

	reqs := env.Backend.Requests("updateTokenBalance")
	require.Len(t, reqs, 1)
	assert.Equal(t, "A1", reqs[0].Body["uid"])
	assert.InDelta(t, 3, reqs[0].Body["delta"], 0)
	assert.Equal(t, notify.KindSuccess, env.LastNotice().Kind)
}

func TestAdjustTokensRejectsBadTargets(t *testing.T) {
	svc, env := loaded(t, dto.RoleMaster)
	ctx := context.Background()

	_, err := svc.AdjustTokens(ctx, "B2", map[string]int{"DRYER": 3})
	assert.Equal(t, util.KindValidation, util.ErrorKind(err))

	_, err = svc.AdjustTokens(ctx, "B2", map[string]int{"LAUNDRY": -1})
	assert.Equal(t, util.KindValidation, util.ErrorKind(err))

	applied, err := svc.AdjustTokens(ctx, "B2", map[string]int{"LAUNDRY": 1})
	require.NoError(t, err)
	assert.Empty(t, applied)
	assert.Equal(t, notify.KindInfo, env.LastNotice().Kind)

	assert.Empty(t, env.Backend.Requests("updateTokenBalance"))
}

func TestAdjustTokensStopsAtFirstFailure(t *testing.T) {
	svc, env := loaded(t, dto.RoleAdmin)
	env.Backend.Route("updateTokenBalance", servicetest.Static(servicetest.Reject("Saldo insuficiente")))

	applied, err := svc.AdjustTokens(context.Background(), "A1", map[string]int{"LAUNDRY": 0, "DRYER": 2})
	require.Error(t, err)
	assert.Empty(t, applied)
	assert.Len(t, env.Backend.Requests("updateTokenBalance"), 1)
	assert.Equal(t, "Saldo insuficiente", env.LastNotice().Message)
}

func TestViewerCannotMutate(t *testing.T) {
	svc, env := loaded(t, dto.RoleViewer)
	before := len(env.Backend.Requests(""))

	err := svc.Create(context.Background(), NewUser{UID: "D4", Name: "Dani", UserType: "GLOBAL"})
	assert.Equal(t, util.KindForbidden, util.ErrorKind(err))

	_, err = svc.ToggleStatus(context.Background(), "A1")
	assert.Equal(t, util.KindForbidden, util.ErrorKind(err))

	assert.Len(t, env.Backend.Requests(""), before)
	assert.Equal(t, notify.KindError, env.LastNotice().Kind)
}

func TestCreateHouseUserAssignsHouses(t *testing.T) {
	svc, env := loaded(t, dto.RoleAdmin)

	err := svc.Create(context.Background(), NewUser{UID: " D4 ", Name: "Dani", UserType: dto.UserTypeHouse, Houses: []string{"H1", "H2"}})
	require.NoError(t, err)

	created := env.Backend.Requests("createUser")
	require.Len(t, created, 1)
	assert.Equal(t, "D4", created[0].Body["uid"])
	assert.Equal(t, "ACTIVO", created[0].Body["status"])

	assigned := env.Backend.Requests("assignUserHouses")
	require.Len(t, assigned, 1)
	assert.Equal(t, []any{"H1", "H2"}, assigned[0].Body["house_ids"])
}

func TestCreateValidatesBeforeIO(t *testing.T) {
	svc, env := loaded(t, dto.RoleAdmin)

	err := svc.Create(context.Background(), NewUser{UID: "", Name: "Dani"})
	assert.Equal(t, util.KindValidation, util.ErrorKind(err))
	assert.Empty(t, env.Backend.Requests("createUser"))
}

func TestUpdateClearsHousesForGlobal(t *testing.T) {
	svc, env := loaded(t, dto.RoleAdmin)

	err := svc.Update(context.Background(), "B2", EditUser{Name: "Bruno", UserType: dto.UserTypeGlobal, Houses: []string{"H1"}})
	require.NoError(t, err)

	assigned := env.Backend.Requests("assignUserHouses")
	require.Len(t, assigned, 1)
	assert.Equal(t, []any{}, assigned[0].Body["house_ids"])
}

func TestToggleStatus(t *testing.T) {
	svc, env := loaded(t, dto.RoleAdmin)

	status, err := svc.ToggleStatus(context.Background(), "B2")
	require.NoError(t, err)
	assert.Equal(t, dto.StatusActive, status)

	reqs := env.Backend.Requests("updateUser")
	require.Len(t, reqs, 1)
	assert.Equal(t, "ACTIVO", reqs[0].Body["status"])
	assert.Equal(t, "Usuario activado", env.LastNotice().Message)

	_, err = svc.ToggleStatus(context.Background(), "nobody")
	assert.Equal(t, util.KindValidation, util.ErrorKind(err))
}

func TestLoadFailureLeavesEmptyList(t *testing.T) {
	env := servicetest.New(t, dto.RoleAdmin, routes())
	env.Backend.Route("getUsers", servicetest.Static(servicetest.HTTPStatus(502)))

	svc, err := New(env.DI)
	require.NoError(t, err)

	err = svc.Load(context.Background())
	assert.Equal(t, util.KindNetwork, util.ErrorKind(err))
	assert.Empty(t, svc.Visible())
	assert.Equal(t, "Error de conexión", env.LastNotice().Message)
}

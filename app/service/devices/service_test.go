package devices

import (
	"context"
	"testing"
	"time"

	"ctrlbx/app/dto"
	"ctrlbx/app/service/servicetest"
	"ctrlbx/app/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func routes() map[string]servicetest.Handler {
	return map[string]servicetest.Handler{
		"getDevices": servicetest.Static(servicetest.OK(map[string]any{
			"devices": []map[string]any{
				{"esp32_id": "E1", "house_id": "H1", "token_type": "LAUNDRY", "active": "TRUE", "last_seen": "2026-10-19 11:58:00"},
				{"esp32_id": "E2", "house_id": "H2", "token_type": "DRYER", "active": false, "last_seen": "2026-10-19T10:00:00Z"},
				{"esp32_id": "E3", "house_id": "H1", "token_type": "DRYER", "active": 1, "time_window_start": "7:30", "time_window_end": 0.5},
			},
		})),
		"getHouses": servicetest.Static(servicetest.OK(map[string]any{
			"houses": []map[string]any{{"house_id": "H2"}, {"house_id": "H1"}},
		})),
		"getTokenTypes": servicetest.Static(servicetest.OK(map[string]any{
			"token_types": []map[string]any{{"token_type": "LAUNDRY"}, {"token_type": "DRYER"}},
		})),
		"getMasterkeysForDevice": servicetest.Static(servicetest.OK(map[string]any{
			"masterkeys": []map[string]any{{"masterkey_id": "MK1", "masterkey_level": "GLOBAL", "state": "ACTIVA"}},
		})),
		"createDevice": servicetest.Static(servicetest.OK(nil)),
		"updateDevice": servicetest.Static(servicetest.OK(nil)),
	}
}

func newService(t *testing.T, role dto.Role) (*Service, *servicetest.Env) {
	t.Helper()

	env := servicetest.New(t, role, routes())
	svc, err := New(env.DI)
	require.NoError(t, err)
	svc.now = func() time.Time {
		return time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	}

	return svc, env
}

func ids(svc *Service) []string {
	var result []string
	for _, d := range svc.Visible() {
		result = append(result, d.Esp32ID)
	}

	return result
}

func TestAdminScope(t *testing.T) {
	tests := []struct {
		role  dto.Role
		scope string
	}{
		{dto.RoleAdmin, servicetest.Email},
		{dto.RoleMaster, ""},
		{dto.RoleViewer, ""},
	}

	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			svc, env := newService(t, tt.role)
			require.NoError(t, svc.Load(context.Background()))

			reqs := env.Backend.Requests("getDevices")
			require.Len(t, reqs, 1)
			assert.Equal(t, tt.scope, reqs[0].Params.Get("admin_email"))
		})
	}
}

func TestLoadNormalizes(t *testing.T) {
	svc, _ := newService(t, dto.RoleMaster)
	require.NoError(t, svc.Load(context.Background()))

	e1, ok := svc.Device("E1")
	require.True(t, ok)
	assert.True(t, bool(e1.Active))
	assert.Equal(t, "08:00", string(e1.TimeWindowStart))
	assert.Equal(t, "23:00", string(e1.TimeWindowEnd))

	e3, ok := svc.Device("E3")
	require.True(t, ok)
	assert.True(t, bool(e3.Active))
	assert.Equal(t, "07:30", string(e3.TimeWindowStart))
	assert.Equal(t, "12:00", string(e3.TimeWindowEnd))

	assert.Equal(t, "H1", svc.Houses()[0].HouseID)
}

func TestFilters(t *testing.T) {
	svc, _ := newService(t, dto.RoleViewer)
	require.NoError(t, svc.Load(context.Background()))

	tests := []struct {
		name    string
		filters Filters
		want    []string
	}{
		{"none", Filters{}, []string{"E1", "E2", "E3"}},
		{"house", Filters{House: "H1"}, []string{"E1", "E3"}},
		{"token type", Filters{TokenType: "DRYER"}, []string{"E2", "E3"}},
		{"inactive", Filters{Status: dto.StatusInactive}, []string{"E2"}},
		{"online", Filters{Connection: ConnectionOnline}, []string{"E1"}},
		{"offline", Filters{Connection: ConnectionOffline}, []string{"E2", "E3"}},
		{"combined", Filters{House: "H1", TokenType: "DRYER", Status: dto.StatusActive}, []string{"E3"}},
		{"no match", Filters{House: "H2", Connection: ConnectionOnline}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc.SetFilters(tt.filters)
			assert.Equal(t, tt.want, ids(svc))
		})
	}
}

func TestNetworkFailureEmptiesList(t *testing.T) {
	svc, env := newService(t, dto.RoleMaster)
	require.NoError(t, svc.Load(context.Background()))
	require.Len(t, svc.Visible(), 3)

	env.Backend.Route("getDevices", servicetest.Static(servicetest.HTTPStatus(500)))

	err := svc.Load(context.Background())
	assert.Equal(t, util.KindNetwork, util.ErrorKind(err))
	assert.Empty(t, svc.Visible())
}

func TestToggleActive(t *testing.T) {
	svc, env := newService(t, dto.RoleMaster)
	require.NoError(t, svc.Load(context.Background()))

	active, err := svc.ToggleActive(context.Background(), "E1")
	require.NoError(t, err)
	assert.False(t, active)

	reqs := env.Backend.Requests("updateDevice")
	require.Len(t, reqs, 1)
	assert.Equal(t, "E1", reqs[0].Body["esp32_id"])
	assert.Equal(t, false, reqs[0].Body["active"])
	assert.Equal(t, "Dispositivo desactivado", env.LastNotice().Message)

	svc.SetFilters(Filters{Status: dto.StatusInactive})
	assert.Equal(t, []string{"E1", "E2"}, ids(svc))
}

func TestCreateValidation(t *testing.T) {
	svc, env := newService(t, dto.RoleMaster)

	tests := []struct {
		name string
		form Form
		ok   bool
	}{
		{"valid", Form{Esp32ID: " E9 ", TokenType: "LAUNDRY", TimeLimitMin: 30, TimeWindowStart: "7:00", TimeWindowEnd: "22:00"}, true},
		{"missing id", Form{TokenType: "LAUNDRY", TimeLimitMin: 30}, false},
		{"time limit too high", Form{Esp32ID: "E9", TokenType: "LAUNDRY", TimeLimitMin: 241}, false},
		{"time limit zero", Form{Esp32ID: "E9", TokenType: "LAUNDRY"}, false},
		{"bad window", Form{Esp32ID: "E9", TokenType: "LAUNDRY", TimeLimitMin: 30, TimeWindowStart: "25:00"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := len(env.Backend.Requests("createDevice"))
			err := svc.Create(context.Background(), tt.form)
			if tt.ok {
				require.NoError(t, err)
				assert.Len(t, env.Backend.Requests("createDevice"), before+1)
				return
			}

			assert.Equal(t, util.KindValidation, util.ErrorKind(err))
			assert.Len(t, env.Backend.Requests("createDevice"), before)
		})
	}

	created := env.Backend.Requests("createDevice")
	require.Len(t, created, 1)
	assert.Equal(t, "E9", created[0].Body["esp32_id"])
	assert.Equal(t, "07:00", created[0].Body["time_window_start"])
}

func TestUpdateUsesLoadedDevice(t *testing.T) {
	svc, env := newService(t, dto.RoleMaster)
	require.NoError(t, svc.Load(context.Background()))

	form, ok := svc.FormFor("E3")
	require.True(t, ok)
	form.Location = "Lavadero"
	form.TimeLimitMin = 45

	require.NoError(t, svc.Update(context.Background(), form))

	reqs := env.Backend.Requests("updateDevice")
	require.Len(t, reqs, 1)
	assert.Equal(t, "E3", reqs[0].Body["esp32_id"])
	assert.Equal(t, "Lavadero", reqs[0].Body["location"])
	assert.Equal(t, "07:30", reqs[0].Body["time_window_start"])
	assert.InDelta(t, 45, reqs[0].Body["time_limit_min"], 0)

	form.Esp32ID = "missing"
	err := svc.Update(context.Background(), form)
	assert.Equal(t, util.KindValidation, util.ErrorKind(err))
}

func TestHistoryRequiresCapability(t *testing.T) {
	svc, env := newService(t, dto.RoleViewer)

	_, err := svc.History(context.Background(), "E1")
	assert.Equal(t, util.KindForbidden, util.ErrorKind(err))
	assert.Empty(t, env.Backend.Requests("getMasterkeysForDevice"))

	svc, _ = newService(t, dto.RoleAdmin)
	_, err = svc.History(context.Background(), "E1")
	assert.Equal(t, util.KindForbidden, util.ErrorKind(err))

	svc, env = newService(t, dto.RoleMaster)
	keys, err := svc.History(context.Background(), "E1")
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.Equal(t, "MK1", keys[0].MasterkeyID)

	reqs := env.Backend.Requests("getMasterkeysForDevice")
	require.Len(t, reqs, 1)
	assert.Equal(t, "E1", reqs[0].Params.Get("esp32_id"))
}

func TestLeaveDuringLoadSkipsFailureNotice(t *testing.T) {
	svc, env := newService(t, dto.RoleMaster)

	started := make(chan struct{})
	release := make(chan struct{})
	defer close(release)

	env.Backend.Route("getDevices", func(servicetest.Request) any {
		close(started)
		<-release
		return servicetest.OK(nil)
	})

	done := make(chan error, 1)
	go func() {
		done <- svc.Load(context.Background())
	}()

	<-started
	svc.Leave()

	require.Error(t, <-done)
	assert.Empty(t, env.Notify.Recent())
	assert.Empty(t, svc.Visible())
}

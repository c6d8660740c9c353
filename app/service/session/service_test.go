package session

import (
	"context"
	"errors"
	"testing"

	"ctrlbx/app/client/backend"
	"ctrlbx/app/dto"
	"ctrlbx/app/storage"
	"ctrlbx/app/util"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeValidator struct {
	resp  *backend.ValidateAdminResponse
	err   error
	calls int
}

func (f *fakeValidator) ValidateAdmin(_ context.Context, _ string) (*backend.ValidateAdminResponse, error) {
	f.calls++
	return f.resp, f.err
}

func admin(role, status, name string) *backend.ValidateAdminResponse {
	return &backend.ValidateAdminResponse{
		Envelope: backend.Envelope{Success: true},
		Admin:    &backend.Admin{Email: "ana@b.com", Role: role, Status: status, Name: name},
	}
}

// failingKV fails Set for one key.
type failingKV struct {
	*storage.Memory
	failKey string
}

func (f *failingKV) Set(key, value string) error {
	if key == f.failKey {
		return errors.New("disk full")
	}

	return f.Memory.Set(key, value)
}

func TestInit(t *testing.T) {
	tests := []struct {
		name     string
		values   map[string]string
		loggedIn bool
		wantName string
	}{
		{name: "empty", values: map[string]string{}},
		{name: "email only", values: map[string]string{"iot_user_email": "a@b.com"}},
		{
			name:     "name falls back to email",
			values:   map[string]string{"iot_user_email": "a@b.com", "iot_user_role": "VIEWER"},
			loggedIn: true,
			wantName: "a@b.com",
		},
		{
			name:     "full",
			values:   map[string]string{"iot_user_email": "a@b.com", "iot_user_role": "ADMIN", "iot_user_name": "Ana"},
			loggedIn: true,
			wantName: "Ana",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kv := storage.NewMemory()
			for k, v := range tt.values {
				require.NoError(t, kv.Set(k, v))
			}

			validator := &fakeValidator{}
			svc := NewWith(kv, validator, dto.ProfileWeb)

			assert.Equal(t, tt.loggedIn, svc.Init())
			assert.Equal(t, tt.loggedIn, svc.IsLoggedIn())
			assert.Zero(t, validator.calls)

			if tt.loggedIn {
				assert.Equal(t, tt.wantName, svc.User().Name)
			} else {
				assert.Nil(t, svc.User())
				assert.Empty(t, svc.Role())
			}
		})
	}
}

func TestLoginSuccess(t *testing.T) {
	kv := storage.NewMemory()
	svc := NewWith(kv, &fakeValidator{resp: admin("ADMIN", "ACTIVO", "")}, dto.ProfileWeb)

	sess, err := svc.Login(context.Background(), " ana@b.com ")
	require.NoError(t, err)
	assert.Equal(t, "ana@b.com", sess.Name)
	assert.Equal(t, dto.RoleAdmin, svc.Role())
	assert.True(t, svc.IsAdmin())
	assert.False(t, svc.IsMaster())

	role, ok, err := kv.Get("iot_user_role")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "ADMIN", role)

	// survives a restart
	restored := NewWith(kv, &fakeValidator{}, dto.ProfileWeb)
	require.True(t, restored.Init())
	assert.Equal(t, "ana@b.com", restored.Email())
}

func TestLoginFailures(t *testing.T) {
	networkErr := oops.With("kind", util.KindNetwork).Errorf("HTTP error! status: 500")

	tests := []struct {
		name      string
		email     string
		profile   string
		validator *fakeValidator
		kind      string
		noCall    bool
	}{
		{name: "bad email", email: "nope", validator: &fakeValidator{}, kind: util.KindValidation, noCall: true},
		{name: "not found", email: "a@b.com", validator: &fakeValidator{resp: &backend.ValidateAdminResponse{Envelope: backend.Envelope{Success: true}}}, kind: util.KindUnauthorized},
		{name: "rejected", email: "a@b.com", validator: &fakeValidator{err: oops.With("kind", util.KindRejected).Public("Admin no encontrado").Errorf("not found")}, kind: util.KindUnauthorized},
		{name: "inactive", email: "a@b.com", validator: &fakeValidator{resp: admin("MASTER", "INACTIVO", "")}, kind: util.KindInactive},
		{name: "network", email: "a@b.com", validator: &fakeValidator{err: networkErr}, kind: util.KindNetwork},
		{name: "viewer on mobile", email: "a@b.com", profile: dto.ProfileMobile, validator: &fakeValidator{resp: admin("VIEWER", "ACTIVO", "")}, kind: util.KindForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			profile := tt.profile
			if profile == "" {
				profile = dto.ProfileWeb
			}

			kv := storage.NewMemory()
			svc := NewWith(kv, tt.validator, profile)

			_, err := svc.Login(context.Background(), tt.email)
			require.Error(t, err)
			assert.Equal(t, tt.kind, util.ErrorKind(err))
			if tt.kind == util.KindUnauthorized {
				assert.Equal(t, "Email no autorizado. Verifique sus credenciales.", oops.GetPublic(err, ""))
			}
			assert.False(t, svc.IsLoggedIn())

			if tt.noCall {
				assert.Zero(t, tt.validator.calls)
			}

			for _, key := range dto.StorageKeysFor(profile).All() {
				_, ok, err := kv.Get(key)
				require.NoError(t, err)
				assert.False(t, ok, key)
			}
		})
	}
}

func TestLoginRollsBackPartialWrites(t *testing.T) {
	kv := &failingKV{Memory: storage.NewMemory(), failKey: "iot_user_name"}
	svc := NewWith(kv, &fakeValidator{resp: admin("MASTER", "ACTIVO", "Root")}, dto.ProfileWeb)

	_, err := svc.Login(context.Background(), "ana@b.com")
	require.Error(t, err)
	assert.False(t, svc.IsLoggedIn())

	for _, key := range dto.WebStorageKeys.All() {
		_, ok, err := kv.Get(key)
		require.NoError(t, err)
		assert.False(t, ok, key)
	}
}

func TestMobileProfileUsesOwnKeys(t *testing.T) {
	kv := storage.NewMemory()
	svc := NewWith(kv, &fakeValidator{resp: admin("MASTER", "ACTIVO", "Root")}, dto.ProfileMobile)

	_, err := svc.Login(context.Background(), "ANA@B.COM")
	require.NoError(t, err)

	_, ok, err := kv.Get("mob_admin_email")
	require.NoError(t, err)
	assert.True(t, ok)

	_, ok, err = kv.Get("iot_user_email")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLogout(t *testing.T) {
	kv := storage.NewMemory()
	svc := NewWith(kv, &fakeValidator{resp: admin("MASTER", "ACTIVO", "Root")}, dto.ProfileWeb)

	_, err := svc.Login(context.Background(), "ana@b.com")
	require.NoError(t, err)

	svc.Logout()
	assert.False(t, svc.IsLoggedIn())
	assert.False(t, svc.IsMaster())
	assert.Empty(t, svc.Email())
	assert.False(t, svc.Init())

	// idempotent
	svc.Logout()
}

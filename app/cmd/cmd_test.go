package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"ctrlbx/app/client/backend"
	"ctrlbx/app/config"
	"ctrlbx/app/service/access"
	"ctrlbx/app/service/dashboard"
	"ctrlbx/app/service/devices"
	"ctrlbx/app/service/houses"
	"ctrlbx/app/service/logs"
	"ctrlbx/app/service/masterkeys"
	"ctrlbx/app/service/roles"
	"ctrlbx/app/service/servicetest"
	"ctrlbx/app/service/session"
	"ctrlbx/app/service/tokens"
	"ctrlbx/app/service/users"
	"ctrlbx/app/storage"

	"github.com/samber/do"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildResolvesEveryService(t *testing.T) {
	cfg := &config.Config{ServiceName: "ctrlbx"}
	cfg.Backend.Timeout = 5
	cfg.Session.Profile = "web"
	cfg.UI.RefreshInterval = 60

	di := Build(cfg, storage.NewMemory())
	t.Cleanup(func() { _ = di.Shutdown() })

	assert.NotPanics(t, func() {
		do.MustInvoke[*backend.Client](di)
		do.MustInvoke[*session.Service](di)
		do.MustInvoke[*access.Service](di)
		do.MustInvoke[*dashboard.Service](di)
		do.MustInvoke[*users.Service](di)
		do.MustInvoke[*devices.Service](di)
		do.MustInvoke[*logs.Service](di)
		do.MustInvoke[*houses.Service](di)
		do.MustInvoke[*tokens.Service](di)
		do.MustInvoke[*masterkeys.Service](di)
		do.MustInvoke[*roles.Service](di)
	})
}

func execute(t *testing.T, args ...string) (string, string) {
	t.Helper()

	root := &cobra.Command{Use: "ctrlbx"}
	Register(root)

	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)

	require.NoError(t, root.Execute())

	return stdout.String(), stderr.String()
}

func TestLoginThenListUsers(t *testing.T) {
	fake := servicetest.NewBackend(t, map[string]servicetest.Handler{
		"validateAdmin": servicetest.Static(servicetest.OK(map[string]any{
			"admin": map[string]any{"email": "ana@ctrlbx.test", "role": "MASTER", "name": "Ana", "status": "ACTIVO"},
		})),
		"getUsers": servicetest.Static(servicetest.OK(map[string]any{
			"users": []map[string]any{
				{"uid": "A1", "user_name": "Ana Pérez", "status": "ACTIVO", "user_type": "GLOBAL", "tokens": map[string]any{"LAUNDRY": 2}},
				{"uid": "B2", "user_name": "Bruno", "status": "INACTIVO", "user_type": "GLOBAL"},
			},
		})),
		"getHouses":        servicetest.Static(servicetest.OK(map[string]any{"houses": []any{}})),
		"getAllUserHouses": servicetest.Static(servicetest.OK(map[string]any{"assignments": []any{}})),
		"getDevices":       servicetest.Static(servicetest.OK(map[string]any{"devices": []any{}})),
		"getTokenTypes":    servicetest.Static(servicetest.OK(map[string]any{"token_types": []any{}})),
	})

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(
		"backend:\n  url: "+fake.URL()+"\n"+
			"storage:\n  driver: file\n  path: "+filepath.Join(dir, "storage.yaml")+"\n",
	), 0o600))

	_, stderr := execute(t, "-c", cfgPath, "login", "ana@ctrlbx.test")
	assert.Contains(t, stderr, "Bienvenido, Ana")

	stdout, _ := execute(t, "-c", cfgPath, "users", "--status", "activo")
	assert.Contains(t, stdout, "Ana Pérez")
	assert.Contains(t, stdout, "LAUNDRY:2")
	assert.NotContains(t, stdout, "Bruno")

	assert.Len(t, fake.Requests("validateAdmin"), 1)
}

package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"ctrlbx/app/client/backend"
	"ctrlbx/app/config"
	"ctrlbx/app/render"
	"ctrlbx/app/service/access"
	"ctrlbx/app/service/dashboard"
	"ctrlbx/app/service/devices"
	"ctrlbx/app/service/houses"
	"ctrlbx/app/service/logs"
	"ctrlbx/app/service/masterkeys"
	"ctrlbx/app/service/notify"
	"ctrlbx/app/service/roles"
	"ctrlbx/app/service/session"
	"ctrlbx/app/service/tokens"
	"ctrlbx/app/service/users"
	"ctrlbx/app/service/view"
	"ctrlbx/app/storage"
	"ctrlbx/app/util"
	"ctrlbx/app/util/mylog"

	"github.com/samber/do"
	"github.com/spf13/cobra"
)

var configPath string

// App is one command invocation: the wired injector plus where to print.
type App struct {
	Ctx context.Context
	DI  *do.Injector
	Cfg *config.Config

	out io.Writer
	err io.Writer

	flushed time.Time
	cancel  context.CancelFunc
}

// Build wires every service around an already opened store.
func Build(cfg *config.Config, kv storage.KV) *do.Injector {
	di := do.New()
	do.ProvideValue(di, cfg)
	do.ProvideValue(di, kv)
	do.ProvideValue(di, util.NewValidator())

	do.Provide(di, backend.NewClient)
	do.Provide(di, session.New)
	do.Provide(di, access.New)
	do.Provide(di, notify.New)
	do.Provide(di, view.NewMutator)

	do.Provide(di, dashboard.New)
	do.Provide(di, users.New)
	do.Provide(di, devices.New)
	do.Provide(di, logs.New)
	do.Provide(di, houses.New)
	do.Provide(di, tokens.New)
	do.Provide(di, masterkeys.New)
	do.Provide(di, roles.New)

	return di
}

func bootstrap(cmd *cobra.Command) (*App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	if err = mylog.Init(cfg); err != nil {
		return nil, err
	}

	kv, err := storage.Open(cfg.Storage.Driver, cfg.Storage.Path)
	if err != nil {
		return nil, err
	}

	di := Build(cfg, kv)
	do.MustInvoke[*session.Service](di).Init()

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt)

	return &App{
		Ctx:     ctx,
		DI:      di,
		Cfg:     cfg,
		out:     cmd.OutOrStdout(),
		err:     cmd.ErrOrStderr(),
		flushed: time.Time{},
		cancel:  cancel,
	}, nil
}

func (a *App) Close() {
	a.FlushNotices()
	a.cancel()

	if err := do.MustInvoke[storage.KV](a.DI).Close(); err != nil {
		slog.Warn("Failed to close storage", slog.Any("error", err))
	}

	_ = a.DI.Shutdown()
	mylog.Close()
}

// FlushNotices prints the notices published since the previous flush.
func (a *App) FlushNotices() {
	for _, notice := range do.MustInvoke[*notify.Service](a.DI).Recent() {
		if !notice.Time.After(a.flushed) {
			continue
		}

		fmt.Fprintln(a.err, render.Notice(notice))
		a.flushed = notice.Time
	}
}

func (a *App) Println(args ...any) {
	fmt.Fprintln(a.out, args...)
}

func (a *App) Printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

// run adapts an App handler to cobra. Failures were already shown as notices;
// the process exits with 1.
func run(handler func(app *App, args []string) error) func(*cobra.Command, []string) {
	return func(cmd *cobra.Command, args []string) {
		app, err := bootstrap(cmd)
		if err != nil {
			slog.Error("Failed to start",
				slog.Any("error", err),
			)
			os.Exit(1)
			return
		}

		err = handler(app, args)
		app.Close()

		if err != nil {
			slog.Debug("Command failed",
				slog.String("command", cmd.CommandPath()),
				slog.String("kind", util.ErrorKind(err)),
				slog.Any("error", err),
			)
			os.Exit(1)
		}
	}
}

// Register adds every command group to root.
func Register(root *cobra.Command) {
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "Path to config yaml file")

	root.AddCommand(loginCmd, logoutCmd, whoamiCmd, canCmd, backendCmd)
	root.AddCommand(dashboardCmd, usersCmd, devicesCmd, logsCmd)
	root.AddCommand(housesCmd, tokensCmd, masterkeysCmd, rolesCmd)
}

func (a *App) Notify() *notify.Service {
	return do.MustInvoke[*notify.Service](a.DI)
}

// authed refuses to run handler without a stored session.
func authed(handler func(app *App, args []string) error) func(*cobra.Command, []string) {
	return run(func(app *App, args []string) error {
		if !do.MustInvoke[*session.Service](app.DI).IsLoggedIn() {
			return app.Notify().Fail(
				util.Unauthenticated(),
				"Inicie sesión con ctrlbx login",
			)
		}

		return handler(app, args)
	})
}

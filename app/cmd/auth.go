package cmd

import (
	"strings"

	"ctrlbx/app/client/backend"
	"ctrlbx/app/dto"
	"ctrlbx/app/render"
	"ctrlbx/app/service/access"
	"ctrlbx/app/service/session"

	"github.com/samber/do"
	"github.com/spf13/cobra"
)

var loginCmd = &cobra.Command{
	Use:   "login <email>",
	Short: "Validate an admin email and store the session",
	Args:  cobra.ExactArgs(1),
	Run: run(func(app *App, args []string) error {
		sess, err := do.MustInvoke[*session.Service](app.DI).Login(app.Ctx, args[0])
		if err != nil {
			return app.Notify().Fail(err, "Error de conexión. Verifique la URL del backend.")
		}

		app.Notify().Success("Bienvenido, " + sess.Name)
		app.Println(render.Details(
			[2]string{"Email", sess.Email},
			[2]string{"Rol", string(sess.Role)},
		))

		return nil
	}),
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored session",
	Args:  cobra.NoArgs,
	Run: run(func(app *App, _ []string) error {
		do.MustInvoke[*session.Service](app.DI).Logout()
		app.Notify().Info("Sesión cerrada")

		return nil
	}),
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the stored session and its permissions",
	Args:  cobra.NoArgs,
	Run: authed(func(app *App, _ []string) error {
		sess := do.MustInvoke[*session.Service](app.DI)
		acl := do.MustInvoke[*access.Service](app.DI)
		user := sess.User()

		app.Println(render.Details(
			[2]string{"Email", user.Email},
			[2]string{"Nombre", user.Name},
			[2]string{"Rol", string(user.Role)},
			[2]string{"Perfil", sess.Profile()},
		))
		app.Println()
		app.Println(render.Title("Permisos"))
		app.Println(strings.Join(acl.Permissions(), "\n"))

		return nil
	}),
}

var canCmd = &cobra.Command{
	Use:   "can <action>",
	Short: "Check one capability of the stored session, e.g. users.edit",
	Args:  cobra.ExactArgs(1),
	Run: run(func(app *App, args []string) error {
		acl := do.MustInvoke[*access.Service](app.DI)
		if err := acl.Guard(dto.Action(args[0])); err != nil {
			app.Println("no")
			return err
		}

		app.Println("yes")

		return nil
	}),
}

var backendCmd = &cobra.Command{
	Use:   "backend",
	Short: "Show or change the backend endpoint",
	Args:  cobra.NoArgs,
	Run: run(func(app *App, _ []string) error {
		url, err := do.MustInvoke[*backend.Client](app.DI).BaseURL()
		if err != nil {
			return app.Notify().Fail(err, "URL del backend no configurada")
		}

		app.Println(url)

		return nil
	}),
}

var backendSetURLCmd = &cobra.Command{
	Use:   "set-url <url>",
	Short: "Store the Apps Script web app URL",
	Args:  cobra.ExactArgs(1),
	Run: run(func(app *App, args []string) error {
		if err := do.MustInvoke[*backend.Client](app.DI).SetBaseURL(args[0]); err != nil {
			return app.Notify().Fail(err, "URL de backend inválida")
		}

		app.Notify().Success("URL del backend guardada")

		return nil
	}),
}

func init() {
	backendCmd.AddCommand(backendSetURLCmd)
}

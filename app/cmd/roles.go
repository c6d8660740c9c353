package cmd

import (
	"strings"

	"ctrlbx/app/dto"
	"ctrlbx/app/render"
	"ctrlbx/app/service/roles"

	"github.com/samber/do"
	"github.com/spf13/cobra"
)

var adminLogLimit int

var rolesCmd = &cobra.Command{
	Use:   "roles",
	Short: "List and manage administrators",
	Args:  cobra.NoArgs,
	Run: authed(func(app *App, _ []string) error {
		svc := do.MustInvoke[*roles.Service](app.DI)
		if err := svc.Load(app.Ctx); err != nil {
			return err
		}

		rows := [][]string{}
		for _, a := range svc.Visible() {
			rows = append(rows, []string{a.AdminEmail, orDash(a.Name), a.Role, render.Status(a.Status)})
		}

		app.Println(render.Table([]string{"Email", "Nombre", "Rol", "Estado"}, rows))

		return nil
	}),
}

var rolesCreateCmd = &cobra.Command{
	Use:   "create <email> <role>",
	Short: "Add an administrator (MASTER, ADMIN or VIEWER)",
	Args:  cobra.ExactArgs(2),
	Run: authed(func(app *App, args []string) error {
		return do.MustInvoke[*roles.Service](app.DI).Create(app.Ctx, roles.NewAdmin{
			Email: args[0],
			Role:  strings.ToUpper(args[1]),
		})
	}),
}

var rolesSetCmd = &cobra.Command{
	Use:   "set <email> <role>",
	Short: "Change the role of an administrator",
	Args:  cobra.ExactArgs(2),
	Run: authed(func(app *App, args []string) error {
		svc := do.MustInvoke[*roles.Service](app.DI)
		if err := svc.Load(app.Ctx); err != nil {
			return err
		}

		return svc.ChangeRole(app.Ctx, args[0], dto.Role(strings.ToUpper(args[1])))
	}),
}

var rolesToggleCmd = &cobra.Command{
	Use:   "toggle <email>",
	Short: "Switch an administrator between ACTIVO and INACTIVO",
	Args:  cobra.ExactArgs(1),
	Run: authed(func(app *App, args []string) error {
		svc := do.MustInvoke[*roles.Service](app.DI)
		if err := svc.Load(app.Ctx); err != nil {
			return err
		}

		_, err := svc.ToggleStatus(app.Ctx, args[0])

		return err
	}),
}

var rolesAdminLogCmd = &cobra.Command{
	Use:   "admin-log",
	Short: "Show the latest administrative actions",
	Args:  cobra.NoArgs,
	Run: authed(func(app *App, _ []string) error {
		entries, err := do.MustInvoke[*roles.Service](app.DI).AdminLog(app.Ctx, adminLogLimit)
		if err != nil {
			return err
		}

		rows := [][]string{}
		for _, e := range entries {
			rows = append(rows, []string{e.Timestamp, e.AdminEmail, e.Action, orDash(e.Target), orDash(e.Details)})
		}

		app.Println(render.Table([]string{"Fecha", "Administrador", "Acción", "Target", "Detalle"}, rows))

		return nil
	}),
}

func init() {
	rolesAdminLogCmd.Flags().IntVarP(&adminLogLimit, "limit", "n", roles.DefaultAdminLogLimit, "How many entries to show")

	rolesCmd.AddCommand(rolesCreateCmd, rolesSetCmd, rolesToggleCmd, rolesAdminLogCmd)
}

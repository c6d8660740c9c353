package cmd

import (
	"sort"
	"strconv"
	"strings"

	"ctrlbx/app/dto"
	"ctrlbx/app/render"
	"ctrlbx/app/service/users"
	"ctrlbx/app/util"

	"github.com/samber/do"
	"github.com/spf13/cobra"
)

var usersFlags struct {
	search   string
	status   string
	sort     string
	uid      string
	name     string
	userType string
	houses   []string
}

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "List and manage users",
	Args:  cobra.NoArgs,
	Run: authed(func(app *App, _ []string) error {
		svc := do.MustInvoke[*users.Service](app.DI)
		if err := svc.Load(app.Ctx); err != nil {
			return err
		}

		svc.SetSearch(usersFlags.search)
		svc.SetStatus(strings.ToUpper(usersFlags.status))
		svc.SetSort(usersFlags.sort)

		rows := [][]string{}
		for _, u := range svc.Visible() {
			rows = append(rows, []string{
				u.UID,
				u.UserName,
				render.Status(u.Status),
				orDash(u.UserType),
				orDash(strings.Join(svc.HousesFor(u.UID), ", ")),
				balances(u.Tokens),
			})
		}

		app.Println(render.Table([]string{"UID", "Nombre", "Estado", "Tipo", "Casas", "Tokens"}, rows))

		return nil
	}),
}

func balances[T ~int](tokens map[string]T) string {
	keys := make([]string, 0, len(tokens))
	for k := range tokens {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+":"+strconv.Itoa(int(tokens[k])))
	}

	return orDash(strings.Join(parts, " "))
}

var usersCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a user",
	Args:  cobra.NoArgs,
	Run: authed(func(app *App, _ []string) error {
		svc := do.MustInvoke[*users.Service](app.DI)

		return svc.Create(app.Ctx, users.NewUser{
			UID:      usersFlags.uid,
			Name:     usersFlags.name,
			UserType: strings.ToUpper(usersFlags.userType),
			Houses:   usersFlags.houses,
		})
	}),
}

var usersEditCmd = &cobra.Command{
	Use:   "edit <uid>",
	Short: "Change name, type or houses of a user",
	Args:  cobra.ExactArgs(1),
	Run: authed(func(app *App, args []string) error {
		svc := do.MustInvoke[*users.Service](app.DI)
		if err := svc.Load(app.Ctx); err != nil {
			return err
		}

		user, ok := svc.User(args[0])
		if !ok {
			return app.Notify().Fail(util.NotFound("user", args[0]), "Usuario no encontrado")
		}

		input := users.EditUser{
			Name:     user.UserName,
			UserType: user.UserType,
			Houses:   svc.HousesFor(user.UID),
		}
		if input.UserType == "" {
			input.UserType = dto.UserTypeGlobal
		}
		if usersFlags.name != "" {
			input.Name = usersFlags.name
		}
		if usersFlags.userType != "" {
			input.UserType = strings.ToUpper(usersFlags.userType)
		}
		if usersFlags.houses != nil {
			input.Houses = usersFlags.houses
		}

		return svc.Update(app.Ctx, user.UID, input)
	}),
}

var usersToggleCmd = &cobra.Command{
	Use:   "toggle <uid>",
	Short: "Switch a user between ACTIVO and INACTIVO",
	Args:  cobra.ExactArgs(1),
	Run: authed(func(app *App, args []string) error {
		svc := do.MustInvoke[*users.Service](app.DI)
		if err := svc.Load(app.Ctx); err != nil {
			return err
		}

		_, err := svc.ToggleStatus(app.Ctx, args[0])

		return err
	}),
}

var usersTokensDryRun bool

var usersTokensCmd = &cobra.Command{
	Use:   "tokens <uid> [TYPE=BALANCE...]",
	Short: "Show or set the token balances of a user",
	Args:  cobra.MinimumNArgs(1),
	Run: authed(func(app *App, args []string) error {
		svc := do.MustInvoke[*users.Service](app.DI)
		if err := svc.Load(app.Ctx); err != nil {
			return err
		}

		user, ok := svc.User(args[0])
		if !ok {
			return app.Notify().Fail(util.NotFound("user", args[0]), "Usuario no encontrado")
		}

		if len(args) == 1 {
			rows := [][]string{}
			for _, tokenType := range svc.RelevantTokenTypes(user) {
				rows = append(rows, []string{tokenType, strconv.Itoa(user.Balance(tokenType))})
			}
			app.Println(render.Table([]string{"Token", "Balance"}, rows))

			return nil
		}

		targets, err := parseTargets(args[1:])
		if err != nil {
			return app.Notify().Fail(err, "Datos inválidos")
		}

		var changes []users.TokenChange
		if usersTokensDryRun {
			changes, err = svc.PlanTokens(user.UID, targets)
			if err != nil {
				return app.Notify().Fail(err, "Datos inválidos")
			}
		} else {
			changes, err = svc.AdjustTokens(app.Ctx, user.UID, targets)
		}

		for _, c := range changes {
			app.Printf("%s %+d\n", c.TokenType, c.Delta)
		}

		return err
	}),
}

func init() {
	usersCmd.Flags().StringVarP(&usersFlags.search, "search", "s", "", "Filter by name or uid")
	usersCmd.Flags().StringVar(&usersFlags.status, "status", "", "ACTIVO or INACTIVO")
	usersCmd.Flags().StringVar(&usersFlags.sort, "sort", users.SortNone, "Sort by name: asc or desc")

	for _, c := range []*cobra.Command{usersCreateCmd, usersEditCmd} {
		c.Flags().StringVar(&usersFlags.name, "name", "", "User name")
		c.Flags().StringVar(&usersFlags.userType, "type", "", "GLOBAL or HOUSE")
		c.Flags().StringSliceVar(&usersFlags.houses, "house", nil, "Assigned house id, repeatable")
	}
	usersCreateCmd.Flags().StringVar(&usersFlags.uid, "uid", "", "Card uid")

	usersTokensCmd.Flags().BoolVar(&usersTokensDryRun, "dry-run", false, "Only print the balance changes")

	usersCmd.AddCommand(usersCreateCmd, usersEditCmd, usersToggleCmd, usersTokensCmd)
}

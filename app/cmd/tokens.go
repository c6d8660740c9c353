package cmd

import (
	"os"
	"strings"

	"ctrlbx/app/client/backend"
	"ctrlbx/app/render"
	"ctrlbx/app/service/tokens"

	"github.com/samber/do"
	"github.com/spf13/cobra"
)

var (
	tokenInput backend.TokenTypeInput
	tokensYes  bool
)

var tokensCmd = &cobra.Command{
	Use:   "tokens",
	Short: "List and manage token types",
	Args:  cobra.NoArgs,
	Run: authed(func(app *App, _ []string) error {
		svc := do.MustInvoke[*tokens.Service](app.DI)
		if err := svc.Load(app.Ctx); err != nil {
			return err
		}

		rows := [][]string{}
		for _, t := range svc.Visible() {
			rows = append(rows, []string{t.TokenType, t.TokenName, orDash(t.Description), render.Status(t.Status), orDash(t.TokenTypeColor)})
		}

		app.Println(render.Table([]string{"Código", "Nombre", "Descripción", "Estado", "Color"}, rows))

		return nil
	}),
}

var tokensCreateCmd = &cobra.Command{
	Use:   "create <code>",
	Short: "Create a token type",
	Args:  cobra.ExactArgs(1),
	Run: authed(func(app *App, args []string) error {
		input := tokenInput
		input.TokenType = args[0]

		return do.MustInvoke[*tokens.Service](app.DI).Create(app.Ctx, input)
	}),
}

var tokensEditCmd = &cobra.Command{
	Use:   "edit <code>",
	Short: "Change name, description or color of a token type",
	Args:  cobra.ExactArgs(1),
	Run: authed(func(app *App, args []string) error {
		svc := do.MustInvoke[*tokens.Service](app.DI)
		if err := svc.Load(app.Ctx); err != nil {
			return err
		}

		return svc.Update(app.Ctx, strings.ToUpper(args[0]), backend.TokenTypePatch{
			TokenName:      tokenInput.TokenName,
			Description:    tokenInput.Description,
			TokenTypeColor: tokenInput.TokenTypeColor,
		})
	}),
}

var tokensToggleCmd = &cobra.Command{
	Use:   "toggle <code>",
	Short: "Activate or deactivate a token type",
	Args:  cobra.ExactArgs(1),
	Run: authed(func(app *App, args []string) error {
		svc := do.MustInvoke[*tokens.Service](app.DI)
		if err := svc.Load(app.Ctx); err != nil {
			return err
		}

		_, err := svc.ToggleStatus(app.Ctx, strings.ToUpper(args[0]))

		return err
	}),
}

var tokensDeleteCmd = &cobra.Command{
	Use:   "delete <code>",
	Short: "Delete a token type, asking before removing balances",
	Args:  cobra.ExactArgs(1),
	Run: authed(func(app *App, args []string) error {
		svc := do.MustInvoke[*tokens.Service](app.DI)

		_, err := svc.Delete(app.Ctx, strings.ToUpper(args[0]), func(reason string) bool {
			if tokensYes {
				return true
			}

			app.FlushNotices()
			return confirm(os.Stdin, app.err, reason+". ¿Eliminar de todas formas?")
		})

		return err
	}),
}

var tokensResetCmd = &cobra.Command{
	Use:   "reset-balance <code>",
	Short: "Set every user's balance of a token type to zero",
	Args:  cobra.ExactArgs(1),
	Run: authed(func(app *App, args []string) error {
		svc := do.MustInvoke[*tokens.Service](app.DI)
		if err := svc.Load(app.Ctx); err != nil {
			return err
		}

		code := strings.ToUpper(args[0])
		if !tokensYes && !confirm(os.Stdin, app.err, "¿Reiniciar los balances de "+code+" de todos los usuarios?") {
			app.Notify().Info("Operación cancelada")
			return nil
		}

		return svc.ResetBalance(app.Ctx, code)
	}),
}

func init() {
	for _, c := range []*cobra.Command{tokensCreateCmd, tokensEditCmd} {
		c.Flags().StringVar(&tokenInput.TokenName, "name", "", "Display name")
		c.Flags().StringVar(&tokenInput.Description, "description", "", "Description")
		c.Flags().StringVar(&tokenInput.TokenTypeColor, "color", "", "Color as #RRGGBB")
	}
	tokensCreateCmd.Flags().StringVar(&tokenInput.Status, "status", "", "ACTIVO or INACTIVO (default ACTIVO)")

	for _, c := range []*cobra.Command{tokensDeleteCmd, tokensResetCmd} {
		c.Flags().BoolVarP(&tokensYes, "yes", "y", false, "Do not ask for confirmation")
	}

	tokensCmd.AddCommand(tokensCreateCmd, tokensEditCmd, tokensToggleCmd, tokensDeleteCmd, tokensResetCmd)
}

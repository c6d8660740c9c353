package cmd

import (
	"strings"

	"ctrlbx/app/render"
	"ctrlbx/app/service/masterkeys"
	"ctrlbx/app/util"

	"github.com/samber/do"
	"github.com/spf13/cobra"
)

var masterkeyForm masterkeys.Form

var masterkeysCmd = &cobra.Command{
	Use:   "masterkeys",
	Short: "List and manage master keys",
	Args:  cobra.NoArgs,
	Run: authed(func(app *App, _ []string) error {
		svc := do.MustInvoke[*masterkeys.Service](app.DI)
		if err := svc.Load(app.Ctx); err != nil {
			return err
		}

		rows := [][]string{}
		for _, mk := range svc.Visible() {
			rows = append(rows, []string{
				mk.MasterkeyID,
				masterkeys.LevelLabel(mk.MasterkeyLevel),
				svc.TargetLabel(mk),
				render.Status(mk.State),
				orDash(mk.MasterkeyHolder),
			})
		}

		app.Println(render.Table([]string{"MasterKey", "Nivel", "Target", "Estado", "Titular"}, rows))

		return nil
	}),
}

var masterkeysCreateCmd = &cobra.Command{
	Use:   "create <masterkey_id>",
	Short: "Create a master key",
	Args:  cobra.ExactArgs(1),
	Run: authed(func(app *App, args []string) error {
		svc := do.MustInvoke[*masterkeys.Service](app.DI)
		if err := svc.Load(app.Ctx); err != nil {
			return err
		}

		form := masterkeyForm
		form.MasterkeyID = args[0]
		form.MasterkeyLevel = strings.ToUpper(form.MasterkeyLevel)
		form.State = strings.ToUpper(form.State)

		return svc.Create(app.Ctx, form)
	}),
}

var masterkeysEditCmd = &cobra.Command{
	Use:   "edit <masterkey_id>",
	Short: "Change level, target, state or holder of a master key",
	Args:  cobra.ExactArgs(1),
}

var masterkeysToggleCmd = &cobra.Command{
	Use:   "toggle <masterkey_id>",
	Short: "Switch a master key between ACTIVA and INACTIVA",
	Args:  cobra.ExactArgs(1),
	Run: authed(func(app *App, args []string) error {
		svc := do.MustInvoke[*masterkeys.Service](app.DI)
		if err := svc.Load(app.Ctx); err != nil {
			return err
		}

		_, err := svc.ToggleState(app.Ctx, args[0])

		return err
	}),
}

var masterkeysDeleteCmd = &cobra.Command{
	Use:   "delete <masterkey_id>",
	Short: "Delete a master key",
	Args:  cobra.ExactArgs(1),
	Run: authed(func(app *App, args []string) error {
		svc := do.MustInvoke[*masterkeys.Service](app.DI)
		if err := svc.Load(app.Ctx); err != nil {
			return err
		}

		return svc.Delete(app.Ctx, args[0])
	}),
}

func init() {
	for _, c := range []*cobra.Command{masterkeysCreateCmd, masterkeysEditCmd} {
		c.Flags().StringVar(&masterkeyForm.MasterkeyLevel, "level", "GLOBAL", "GLOBAL, HOUSE or DEVICE")
		c.Flags().StringVar(&masterkeyForm.LevelTarget, "target", "", "House id or ESP32 id for HOUSE and DEVICE keys")
		c.Flags().StringVar(&masterkeyForm.State, "state", "", "ACTIVA or INACTIVA")
		c.Flags().StringVar(&masterkeyForm.MasterkeyHolder, "holder", "", "Holder name")
	}

	masterkeysEditCmd.Run = authed(func(app *App, args []string) error {
		svc := do.MustInvoke[*masterkeys.Service](app.DI)
		if err := svc.Load(app.Ctx); err != nil {
			return err
		}

		mk, ok := svc.Masterkey(args[0])
		if !ok {
			return app.Notify().Fail(util.NotFound("masterkey", args[0]), "MasterKey no encontrada")
		}

		form := masterkeys.Form{
			MasterkeyID:     mk.MasterkeyID,
			MasterkeyLevel:  mk.MasterkeyLevel,
			LevelTarget:     mk.LevelTarget,
			State:           mk.State,
			MasterkeyHolder: mk.MasterkeyHolder,
		}

		flags := masterkeysEditCmd.Flags()
		if flags.Changed("level") {
			form.MasterkeyLevel = strings.ToUpper(masterkeyForm.MasterkeyLevel)
		}
		if flags.Changed("target") {
			form.LevelTarget = masterkeyForm.LevelTarget
		}
		if flags.Changed("state") {
			form.State = strings.ToUpper(masterkeyForm.State)
		}
		if flags.Changed("holder") {
			form.MasterkeyHolder = masterkeyForm.MasterkeyHolder
		}

		return svc.Update(app.Ctx, form)
	})

	masterkeysCmd.AddCommand(masterkeysCreateCmd, masterkeysEditCmd, masterkeysToggleCmd, masterkeysDeleteCmd)
}

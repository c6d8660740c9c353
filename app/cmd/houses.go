package cmd

import (
	"strconv"
	"strings"

	"ctrlbx/app/client/backend"
	"ctrlbx/app/render"
	"ctrlbx/app/service/houses"
	"ctrlbx/app/util"

	"github.com/samber/do"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var houseInput backend.HouseInput

var housesCmd = &cobra.Command{
	Use:   "houses",
	Short: "List and manage houses",
	Args:  cobra.NoArgs,
	Run: authed(func(app *App, _ []string) error {
		svc := do.MustInvoke[*houses.Service](app.DI)
		if err := svc.Load(app.Ctx); err != nil {
			return err
		}

		rows := [][]string{}
		for _, h := range svc.Visible() {
			rows = append(rows, []string{
				h.HouseID,
				houses.Address(h),
				strconv.Itoa(svc.DeviceCount(h.HouseID)),
				strconv.Itoa(len(svc.Residents(h.HouseID))),
				orDash(strings.Join(svc.Admins(h.HouseID), ", ")),
			})
		}

		app.Println(render.Table([]string{"Casa", "Dirección", "Dispositivos", "Residentes", "Administradores"}, rows))

		return nil
	}),
}

var housesShowCmd = &cobra.Command{
	Use:   "show <house_id>",
	Short: "Show one house with its residents",
	Args:  cobra.ExactArgs(1),
	Run: authed(func(app *App, args []string) error {
		svc := do.MustInvoke[*houses.Service](app.DI)
		if err := svc.Load(app.Ctx); err != nil {
			return err
		}

		h, ok := svc.House(args[0])
		if !ok {
			return app.Notify().Fail(util.NotFound("house", args[0]), "Casa no encontrada")
		}

		app.Println(render.Title("Casa " + h.HouseID))
		app.Println(render.Details(
			[2]string{"Dirección", houses.Address(h)},
			[2]string{"Código postal", orDash(string(h.HousePostcode))},
			[2]string{"Coordenadas", orDash(strings.Trim(string(h.HouseLat)+", "+string(h.HouseLong), ", "))},
			[2]string{"Imagen", orDash(houses.ImageURL(h.HouseImg))},
			[2]string{"Dispositivos", strconv.Itoa(svc.DeviceCount(h.HouseID))},
			[2]string{"Administradores", orDash(strings.Join(svc.Admins(h.HouseID), ", "))},
		))
		app.Println()

		rows := [][]string{}
		for _, u := range svc.Residents(h.HouseID) {
			rows = append(rows, []string{u.UID, u.UserName, render.Status(u.Status)})
		}
		app.Println(render.Table([]string{"UID", "Residente", "Estado"}, rows))

		return nil
	}),
}

var housesCreateCmd = &cobra.Command{
	Use:   "create <house_id>",
	Short: "Create a house",
	Args:  cobra.ExactArgs(1),
	Run: authed(func(app *App, args []string) error {
		input := houseInput
		input.HouseID = args[0]

		return do.MustInvoke[*houses.Service](app.DI).Create(app.Ctx, input)
	}),
}

var housesEditCmd = &cobra.Command{
	Use:   "edit <house_id>",
	Short: "Change the address or picture of a house",
	Args:  cobra.ExactArgs(1),
}

func mergeHouseInput(h backend.House, flags *pflag.FlagSet) backend.HouseInput {
	input := backend.HouseInput{
		HouseID:       h.HouseID,
		HouseImg:      h.HouseImg,
		HouseStreet:   h.HouseStreet,
		HouseNumber:   string(h.HouseNumber),
		HouseExtra:    h.HouseExtra,
		HousePostcode: string(h.HousePostcode),
		HouseLat:      string(h.HouseLat),
		HouseLong:     string(h.HouseLong),
	}

	set := map[string]func(){
		"img":      func() { input.HouseImg = houseInput.HouseImg },
		"street":   func() { input.HouseStreet = houseInput.HouseStreet },
		"number":   func() { input.HouseNumber = houseInput.HouseNumber },
		"extra":    func() { input.HouseExtra = houseInput.HouseExtra },
		"postcode": func() { input.HousePostcode = houseInput.HousePostcode },
		"lat":      func() { input.HouseLat = houseInput.HouseLat },
		"long":     func() { input.HouseLong = houseInput.HouseLong },
	}
	for name, apply := range set {
		if flags.Changed(name) {
			apply()
		}
	}

	return input
}

var housesDeleteCmd = &cobra.Command{
	Use:   "delete <house_id>",
	Short: "Delete a house without devices",
	Args:  cobra.ExactArgs(1),
	Run: authed(func(app *App, args []string) error {
		svc := do.MustInvoke[*houses.Service](app.DI)
		if err := svc.Load(app.Ctx); err != nil {
			return err
		}

		return svc.Delete(app.Ctx, args[0])
	}),
}

var housesAssignAdminCmd = &cobra.Command{
	Use:   "assign-admin <house_id> <email>",
	Short: "Let an admin manage a house",
	Args:  cobra.ExactArgs(2),
	Run: authed(func(app *App, args []string) error {
		svc := do.MustInvoke[*houses.Service](app.DI)
		if err := svc.Load(app.Ctx); err != nil {
			return err
		}

		return svc.AssignAdmin(app.Ctx, houses.AdminAssignment{HouseID: args[0], AdminEmail: args[1]})
	}),
}

func init() {
	for _, c := range []*cobra.Command{housesCreateCmd, housesEditCmd} {
		c.Flags().StringVar(&houseInput.HouseImg, "img", "", "Picture URL, Google Drive links are accepted")
		c.Flags().StringVar(&houseInput.HouseStreet, "street", "", "Street")
		c.Flags().StringVar(&houseInput.HouseNumber, "number", "", "Number")
		c.Flags().StringVar(&houseInput.HouseExtra, "extra", "", "Apartment, floor...")
		c.Flags().StringVar(&houseInput.HousePostcode, "postcode", "", "Postcode")
		c.Flags().StringVar(&houseInput.HouseLat, "lat", "", "Latitude")
		c.Flags().StringVar(&houseInput.HouseLong, "long", "", "Longitude")
	}

	housesEditCmd.Run = authed(func(app *App, args []string) error {
		svc := do.MustInvoke[*houses.Service](app.DI)
		if err := svc.Load(app.Ctx); err != nil {
			return err
		}

		h, ok := svc.House(args[0])
		if !ok {
			return app.Notify().Fail(util.NotFound("house", args[0]), "Casa no encontrada")
		}

		return svc.Update(app.Ctx, mergeHouseInput(h, housesEditCmd.Flags()))
	})

	housesCmd.AddCommand(housesShowCmd, housesCreateCmd, housesEditCmd, housesDeleteCmd, housesAssignAdminCmd)
}

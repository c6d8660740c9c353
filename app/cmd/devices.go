package cmd

import (
	"strconv"
	"strings"

	"ctrlbx/app/client/backend"
	"ctrlbx/app/render"
	"ctrlbx/app/service/devices"
	"ctrlbx/app/util"

	"github.com/samber/do"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	deviceFilters devices.Filters
	deviceForm    devices.Form
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List and manage ESP32 devices",
	Args:  cobra.NoArgs,
	Run: authed(func(app *App, _ []string) error {
		svc := do.MustInvoke[*devices.Service](app.DI)
		if err := svc.Load(app.Ctx); err != nil {
			return err
		}

		svc.SetFilters(devices.Filters{
			House:      deviceFilters.House,
			TokenType:  strings.ToUpper(deviceFilters.TokenType),
			Status:     strings.ToUpper(deviceFilters.Status),
			Connection: strings.ToUpper(deviceFilters.Connection),
		})

		rows := [][]string{}
		for _, d := range svc.Visible() {
			rows = append(rows, []string{
				d.Esp32ID,
				orDash(d.Location),
				orDash(d.HouseID),
				d.TokenType,
				render.Status(devices.Status(d)),
				render.Status(svc.Connection(d)),
				string(d.TimeWindowStart) + "-" + string(d.TimeWindowEnd),
				strconv.Itoa(int(d.TimeLimitMin)) + " min",
				orDash(d.LastSeen),
			})
		}

		app.Println(render.Table(
			[]string{"ESP32", "Ubicación", "Casa", "Token", "Estado", "Conexión", "Horario", "Límite", "Última conexión"},
			rows,
		))

		return nil
	}),
}

var devicesCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Register a device",
	Args:  cobra.NoArgs,
	Run: authed(func(app *App, _ []string) error {
		form := deviceForm
		form.TokenType = strings.ToUpper(form.TokenType)

		return do.MustInvoke[*devices.Service](app.DI).Create(app.Ctx, form)
	}),
}

var devicesEditCmd = &cobra.Command{
	Use:   "edit <esp32_id>",
	Short: "Change the settings of a device",
	Args:  cobra.ExactArgs(1),
}

// mergeDeviceForm copies the flags that were set over the loaded form.
func mergeDeviceForm(form devices.Form, flags *pflag.FlagSet) devices.Form {
	if flags.Changed("location") {
		form.Location = deviceForm.Location
	}
	if flags.Changed("token") {
		form.TokenType = strings.ToUpper(deviceForm.TokenType)
	}
	if flags.Changed("house") {
		form.HouseID = deviceForm.HouseID
	}
	if flags.Changed("active") {
		form.Active = deviceForm.Active
	}
	if flags.Changed("time-limit") {
		form.TimeLimitMin = deviceForm.TimeLimitMin
	}
	if flags.Changed("reconnect") {
		form.ReconnectSec = deviceForm.ReconnectSec
	}
	if flags.Changed("wifi-ssid") {
		form.WifiSSID = deviceForm.WifiSSID
	}
	if flags.Changed("wifi-password") {
		form.WifiPassword = deviceForm.WifiPassword
	}
	if flags.Changed("window-start") {
		form.TimeWindowStart = deviceForm.TimeWindowStart
	}
	if flags.Changed("window-end") {
		form.TimeWindowEnd = deviceForm.TimeWindowEnd
	}

	return form
}

var devicesToggleCmd = &cobra.Command{
	Use:   "toggle <esp32_id>",
	Short: "Activate or deactivate a device",
	Args:  cobra.ExactArgs(1),
	Run: authed(func(app *App, args []string) error {
		svc := do.MustInvoke[*devices.Service](app.DI)
		if err := svc.Load(app.Ctx); err != nil {
			return err
		}

		_, err := svc.ToggleActive(app.Ctx, args[0])

		return err
	}),
}

var devicesHistoryCmd = &cobra.Command{
	Use:   "history <esp32_id>",
	Short: "List the master keys that open a device",
	Args:  cobra.ExactArgs(1),
	Run: authed(func(app *App, args []string) error {
		keys, err := do.MustInvoke[*devices.Service](app.DI).History(app.Ctx, args[0])
		if err != nil {
			return err
		}

		rows := [][]string{}
		for _, mk := range keys {
			rows = append(rows, []string{mk.MasterkeyID, mk.MasterkeyLevel, orDash(mk.LevelTarget), render.Status(mk.State), orDash(mk.MasterkeyHolder)})
		}

		app.Println(render.Table([]string{"MasterKey", "Nivel", "Target", "Estado", "Titular"}, rows))

		return nil
	}),
}

func init() {
	devicesCmd.Flags().StringVar(&deviceFilters.House, "house", "", "Only devices of this house")
	devicesCmd.Flags().StringVar(&deviceFilters.TokenType, "token", "", "Only devices of this token type")
	devicesCmd.Flags().StringVar(&deviceFilters.Status, "status", "", "ACTIVO or INACTIVO")
	devicesCmd.Flags().StringVar(&deviceFilters.Connection, "connection", "", "ONLINE or OFFLINE")

	devicesCreateCmd.Flags().StringVar(&deviceForm.Esp32ID, "id", "", "ESP32 id")
	for _, c := range []*cobra.Command{devicesCreateCmd, devicesEditCmd} {
		c.Flags().StringVar(&deviceForm.Location, "location", "", "Location")
		c.Flags().StringVar(&deviceForm.TokenType, "token", "", "Token type consumed per use")
		c.Flags().StringVar(&deviceForm.HouseID, "house", "", "House id, empty for shared devices")
		c.Flags().BoolVar(&deviceForm.Active, "active", true, "Active")
		c.Flags().IntVar(&deviceForm.TimeLimitMin, "time-limit", 60, "Minutes per use")
		c.Flags().IntVar(&deviceForm.ReconnectSec, "reconnect", 30, "Reconnect interval in seconds")
		c.Flags().StringVar(&deviceForm.WifiSSID, "wifi-ssid", "", "WiFi SSID")
		c.Flags().StringVar(&deviceForm.WifiPassword, "wifi-password", "", "WiFi password")
		c.Flags().StringVar(&deviceForm.TimeWindowStart, "window-start", backend.DefaultWindowStart, "Time window start HH:MM")
		c.Flags().StringVar(&deviceForm.TimeWindowEnd, "window-end", backend.DefaultWindowEnd, "Time window end HH:MM")
	}

	devicesEditCmd.Run = authed(func(app *App, args []string) error {
		svc := do.MustInvoke[*devices.Service](app.DI)
		if err := svc.Load(app.Ctx); err != nil {
			return err
		}

		form, ok := svc.FormFor(args[0])
		if !ok {
			return app.Notify().Fail(util.NotFound("device", args[0]), "Dispositivo no encontrado")
		}

		return svc.Update(app.Ctx, mergeDeviceForm(form, devicesEditCmd.Flags()))
	})

	devicesCmd.AddCommand(devicesCreateCmd, devicesEditCmd, devicesToggleCmd, devicesHistoryCmd)
}

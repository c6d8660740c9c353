package cmd

import (
	"io"
	"os"
	"strconv"
	"strings"

	"ctrlbx/app/render"
	"ctrlbx/app/service/logs"

	"github.com/elliotchance/pie/v2"
	"github.com/samber/do"
	"github.com/samber/oops"
	"github.com/spf13/cobra"
)

var logsFlags struct {
	from    string
	to      string
	houses  []string
	devices []string
	tokens  []string
	events  []string
	export  string
}

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Search access logs and export them as CSV",
	Args:  cobra.NoArgs,
	Run: authed(func(app *App, _ []string) error {
		svc := do.MustInvoke[*logs.Service](app.DI)

		if logsFlags.from != "" || logsFlags.to != "" {
			if err := svc.SetDates(logsFlags.from, logsFlags.to); err != nil {
				return err
			}
		}

		if err := svc.Load(app.Ctx); err != nil {
			return err
		}

		selectOnly(svc.Houses, logsFlags.houses)
		selectOnly(svc.Devices, logsFlags.devices)
		selectOnly(svc.TokenTypes, upper(logsFlags.tokens))
		selectOnly(svc.Events, upper(logsFlags.events))
		svc.Search()

		if logsFlags.export != "" {
			return exportLogs(app, svc, logsFlags.export)
		}

		query := svc.Query()
		app.Println(render.Muted(
			query.StartDate + " → " + query.EndDate +
				" | Casas: " + svc.Houses.Label() +
				" | Dispositivos: " + svc.Devices.Label() +
				" | Tokens: " + svc.TokenTypes.Label() +
				" | Eventos: " + svc.Events.Label(),
		))

		rows := [][]string{}
		for _, l := range svc.Visible() {
			rows = append(rows, []string{
				svc.FormatTimestamp(l.Timestamp),
				orDash(l.UID),
				logs.DisplayName(l),
				orDash(l.HouseID),
				orDash(l.Esp32ID),
				orDash(l.TokenType),
				orDash(l.EventType),
				orDash(logs.Balance(l)),
			})
		}

		app.Println(render.Table([]string{"Fecha", "UID", "Usuario", "Casa", "Dispositivo", "Token", "Evento", "Balance"}, rows))

		return nil
	}),
}

func exportLogs(app *App, svc *logs.Service, path string) error {
	var w io.Writer = app.out

	if path != "-" {
		file, err := os.Create(path)
		if err != nil {
			return app.Notify().Fail(oops.Errorf("create export file: %w", err), "Error al exportar")
		}
		defer file.Close()
		w = file
	}

	n, err := svc.Export(w)
	if err != nil {
		return err
	}

	if path != "-" {
		app.Println(render.Muted(path))
	}
	app.Notify().Success("Exportados " + pluralRows(n))

	return nil
}

func pluralRows(n int) string {
	if n == 1 {
		return "1 registro"
	}

	return strconv.Itoa(n) + " registros"
}

func upper(values []string) []string {
	return pie.Map(values, strings.ToUpper)
}

func init() {
	logsCmd.Flags().StringVar(&logsFlags.from, "from", "", "Start date YYYY-MM-DD (default 7 days ago)")
	logsCmd.Flags().StringVar(&logsFlags.to, "to", "", "End date YYYY-MM-DD (default today)")
	logsCmd.Flags().StringSliceVar(&logsFlags.houses, "house", nil, "House id, repeatable")
	logsCmd.Flags().StringSliceVar(&logsFlags.devices, "device", nil, "ESP32 id, repeatable")
	logsCmd.Flags().StringSliceVar(&logsFlags.tokens, "token", nil, "Token type, repeatable")
	logsCmd.Flags().StringSliceVar(&logsFlags.events, "event", nil, "Event type, repeatable")
	logsCmd.Flags().StringVar(&logsFlags.export, "export", "", "Write the filtered rows as CSV to this file, - for stdout")
}

package cmd

import (
	"context"
	"errors"
	"strconv"
	"time"

	"ctrlbx/app/render"
	"ctrlbx/app/service/dashboard"

	"github.com/samber/do"
	"github.com/spf13/cobra"
)

const barWidth = 24

var dashboardFlags struct {
	from   string
	to     string
	houses []string
	tokens []string
	events []string
	watch  bool
}

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Show device stats and the daily usage chart",
	Args:  cobra.NoArgs,
	Run: authed(func(app *App, _ []string) error {
		svc := do.MustInvoke[*dashboard.Service](app.DI)
		defer svc.Leave()

		if dashboardFlags.from != "" || dashboardFlags.to != "" {
			if err := svc.SetDates(dashboardFlags.from, dashboardFlags.to); err != nil {
				return err
			}
		}

		snapshot, err := svc.Load(app.Ctx)
		if err != nil {
			return err
		}

		selectOnly(svc.Houses, dashboardFlags.houses)
		selectOnly(svc.TokenTypes, upper(dashboardFlags.tokens))
		selectOnly(svc.Events, upper(dashboardFlags.events))

		if !dashboardFlags.watch {
			snapshot, err = svc.Refresh(app.Ctx)
			if err != nil {
				return err
			}
			printDashboard(app, svc, snapshot)

			return nil
		}

		svc.Watch(app.Ctx, func(snapshot dashboard.Snapshot, err error) {
			switch {
			case errors.Is(err, context.Canceled):
				return
			case err != nil:
				app.FlushNotices()
				return
			}

			app.Printf("\033[H\033[2J")
			printDashboard(app, svc, snapshot)
			app.Println(render.Muted("Actualizado " + time.Now().Format(time.TimeOnly)))
			app.FlushNotices()
		})

		return nil
	}),
}

func printDashboard(app *App, svc *dashboard.Service, snapshot dashboard.Snapshot) {
	app.Println(render.Title("Dashboard"))
	app.Println(render.Details(
		[2]string{"Dispositivos activos", stat(snapshot.StatsOK, int(snapshot.Stats.DevicesActive))},
		[2]string{"Dispositivos offline", stat(snapshot.StatsOK, int(snapshot.Stats.DevicesOffline))},
		[2]string{"Accesos hoy", stat(snapshot.StatsOK, int(snapshot.Stats.AccessToday))},
		[2]string{"Tokens consumidos", stat(snapshot.StatsOK, int(snapshot.Stats.TokensConsumed))},
	))
	app.Println()

	query := snapshot.Query
	app.Println(render.Muted(
		query.StartDate + " → " + query.EndDate +
			" | Casas: " + svc.Houses.Label() +
			" | Tokens: " + svc.TokenTypes.Label() +
			" | Eventos: " + svc.Events.Label(),
	))

	matrix := dashboard.BuildMatrix(query, snapshot.Chart)
	if len(matrix.Series) == 0 {
		app.Println(render.Muted("Sin datos para el período seleccionado"))
		return
	}

	headers := append([]string{"Fecha"}, matrix.Series...)
	headers = append(headers, "")

	rows := make([][]string, 0, len(matrix.Dates))
	for _, date := range matrix.Dates {
		row := []string{date}
		total := 0
		for _, series := range matrix.Series {
			count := matrix.Counts[date][series]
			total += count
			row = append(row, strconv.Itoa(count))
		}
		row = append(row, render.Bar(total, matrix.Max*len(matrix.Series), barWidth))
		rows = append(rows, row)
	}

	app.Println(render.Table(headers, rows))
}

// stat shows "-" when the stats request failed.
func stat(ok bool, v int) string {
	if !ok {
		return "-"
	}

	return strconv.Itoa(v)
}

func init() {
	dashboardCmd.Flags().StringVar(&dashboardFlags.from, "from", "", "Chart start date YYYY-MM-DD (default first of month)")
	dashboardCmd.Flags().StringVar(&dashboardFlags.to, "to", "", "Chart end date YYYY-MM-DD (default today)")
	dashboardCmd.Flags().StringSliceVar(&dashboardFlags.houses, "house", nil, "House id, repeatable")
	dashboardCmd.Flags().StringSliceVar(&dashboardFlags.tokens, "token", nil, "Token type, repeatable")
	dashboardCmd.Flags().StringSliceVar(&dashboardFlags.events, "event", nil, "Event type, repeatable (default ACCESS_GRANTED)")
	dashboardCmd.Flags().BoolVarP(&dashboardFlags.watch, "watch", "w", false, "Refresh periodically until interrupted")
}

package dashboard

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"ctrlbx/app/client/backend"
	"ctrlbx/app/config"
	"ctrlbx/app/dto"
	"ctrlbx/app/service/filter"
	"ctrlbx/app/service/view"

	"github.com/elliotchance/pie/v2"
	"github.com/rofleksey/meg"
	"github.com/samber/do"
	"github.com/samber/oops"
	"golang.org/x/sync/errgroup"
)

var serviceName = "dashboard"

// Snapshot is what the dashboard shows after a load.
type Snapshot struct {
	Stats      backend.DashboardStats
	StatsOK    bool
	Chart      []backend.ChartPoint
	TokenTypes []backend.TokenType
	Query      backend.ChartQuery
}

type Service struct {
	cfg     *config.Config
	client  *backend.Client
	mutator *view.Mutator
	now     func() time.Time

	lifecycle view.Lifecycle

	mu         sync.Mutex
	Houses     *filter.MultiSelect
	TokenTypes *filter.MultiSelect
	Events     *filter.MultiSelect
	dates      filter.DateRange
	datesSet   bool
	snapshot   Snapshot
}

func New(di *do.Injector) (*Service, error) {
	houses := filter.NewMultiSelect("Todas", nil)
	tokenTypes := filter.NewMultiSelect("Todos", nil)
	events := filter.NewMultiSelect("Evento", dto.EventTypeName)
	events.SetOptions(dto.EventTypes, []string{dto.EventAccessGranted})

	return &Service{
		cfg:        do.MustInvoke[*config.Config](di),
		client:     do.MustInvoke[*backend.Client](di),
		mutator:    do.MustInvoke[*view.Mutator](di),
		now:        time.Now,
		Houses:     houses,
		TokenTypes: tokenTypes,
		Events:     events,
	}, nil
}

// SetDates overrides the chart range. Empty bounds keep the month to date
// default. The new range is used by the next Refresh.
func (s *Service) SetDates(start, end string) error {
	rng, err := filter.ParseDateRange(start, end, filter.MonthToDate(s.now()))
	if err != nil {
		return s.mutator.Notify().Fail(err, "Fecha inválida")
	}

	s.mu.Lock()
	s.dates = rng
	s.datesSet = true
	s.mu.Unlock()

	return nil
}

// Load fetches stats and filter options, then the chart for the current
// selection.
func (s *Service) Load(ctx context.Context) (Snapshot, error) {
	if err := s.mutator.Guard(dto.ActionDashboardView); err != nil {
		return Snapshot{}, err
	}

	ctx, token := s.lifecycle.Enter(ctx)

	var (
		stats      backend.DashboardStats
		statsOK    bool
		houses     []backend.House
		tokenTypes []backend.TokenType
	)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		var err error
		stats, err = s.client.GetDashboardStats(groupCtx)
		if err != nil {
			slog.Warn("Failed to load dashboard stats",
				slog.String("service", serviceName),
				slog.Any("error", err),
			)
			return nil
		}
		statsOK = true
		return nil
	})
	group.Go(func() error {
		var err error
		houses, err = s.client.GetHouses(groupCtx)
		if err != nil {
			slog.Warn("Failed to load houses", slog.String("service", serviceName), slog.Any("error", err))
		}
		return nil
	})
	group.Go(func() error {
		var err error
		tokenTypes, err = s.client.GetTokenTypes(groupCtx)
		if err != nil {
			slog.Warn("Failed to load token types", slog.String("service", serviceName), slog.Any("error", err))
		}
		return nil
	})
	_ = group.Wait()

	houseIDs := pie.Map(houses, func(h backend.House) string { return h.HouseID })
	sort.Strings(houseIDs)
	sort.SliceStable(tokenTypes, func(i, j int) bool {
		return tokenTypes[i].TokenType < tokenTypes[j].TokenType
	})
	tokenTypeIDs := pie.Map(tokenTypes, func(t backend.TokenType) string { return t.TokenType })

	committed := s.lifecycle.Commit(token, func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		s.Houses.SetOptions(houseIDs, s.Houses.Selection())
		s.TokenTypes.SetOptions(tokenTypeIDs, s.TokenTypes.Selection())
		s.snapshot.Stats = stats
		s.snapshot.StatsOK = statsOK
		s.snapshot.TokenTypes = tokenTypes
	})
	if !committed {
		return Snapshot{}, oops.Errorf("dashboard load superseded: %w", context.Canceled)
	}

	return s.refresh(ctx, token)
}

// Refresh reloads only the chart with the buffered selections, like the
// update chart button.
func (s *Service) Refresh(ctx context.Context) (Snapshot, error) {
	if err := s.mutator.Guard(dto.ActionDashboardView); err != nil {
		return Snapshot{}, err
	}

	ctx, token := s.lifecycle.Enter(ctx)

	return s.refresh(ctx, token)
}

func (s *Service) refresh(ctx context.Context, token view.Token) (Snapshot, error) {
	query := s.Query()

	chart, err := s.client.GetChartData(ctx, query)
	if err != nil {
		slog.Warn("Failed to load chart data",
			slog.String("service", serviceName),
			slog.Any("error", err),
		)
		chart = nil
	}

	var snapshot Snapshot
	committed := s.lifecycle.Commit(token, func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		if err == nil {
			s.snapshot.Chart = chart
		}
		s.snapshot.Query = query
		snapshot = s.snapshot
	})
	if !committed {
		return Snapshot{}, oops.Errorf("dashboard refresh superseded: %w", context.Canceled)
	}

	return snapshot, nil
}

// Query builds the chart request from the current selections.
func (s *Service) Query() backend.ChartQuery {
	s.mu.Lock()
	defer s.mu.Unlock()

	dates := s.dates
	if !s.datesSet {
		dates = filter.MonthToDate(s.now())
	}

	return backend.ChartQuery{
		StartDate:  dates.StartDate(),
		EndDate:    dates.EndDate(),
		HouseIDs:   s.Houses.Selection(),
		TokenTypes: s.TokenTypes.Selection(),
		EventTypes: s.Events.Selection(),
	}
}

// Watch reloads the dashboard every refresh interval until ctx is done.
func (s *Service) Watch(ctx context.Context, onLoad func(Snapshot, error)) {
	interval := time.Duration(s.cfg.UI.RefreshInterval) * time.Second

	onLoad(s.Load(ctx))

	meg.RunTicker(ctx, interval, func() {
		onLoad(s.Load(ctx))
	})
}

func (s *Service) Leave() {
	s.lifecycle.Leave()
}

// Matrix is the chart laid out as one row per day of the range and one
// column per token type present in the data.
type Matrix struct {
	Dates  []string
	Series []string
	Counts map[string]map[string]int
	Max    int
}

func BuildMatrix(query backend.ChartQuery, points []backend.ChartPoint) Matrix {
	m := Matrix{Counts: map[string]map[string]int{}}

	start, errStart := time.Parse(filter.DateLayout, query.StartDate)
	end, errEnd := time.Parse(filter.DateLayout, query.EndDate)
	if errStart != nil || errEnd != nil {
		return m
	}

	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		date := d.Format(filter.DateLayout)
		m.Dates = append(m.Dates, date)
		m.Counts[date] = map[string]int{}
	}

	for _, p := range points {
		if !pie.Contains(m.Series, p.TokenType) {
			m.Series = append(m.Series, p.TokenType)
		}

		row, ok := m.Counts[p.Date]
		if !ok {
			continue
		}
		row[p.TokenType] = int(p.Count)
		if int(p.Count) > m.Max {
			m.Max = int(p.Count)
		}
	}
	sort.Strings(m.Series)

	return m
}

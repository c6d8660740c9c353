package logs

import (
	"context"
	"encoding/csv"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"sync"
	"time"

	"ctrlbx/app/client/backend"
	"ctrlbx/app/config"
	"ctrlbx/app/dto"
	"ctrlbx/app/service/filter"
	"ctrlbx/app/service/scope"
	"ctrlbx/app/service/session"
	"ctrlbx/app/service/view"
	"ctrlbx/app/util"

	"github.com/elliotchance/pie/v2"
	"github.com/samber/do"
	"github.com/samber/oops"
	"golang.org/x/sync/errgroup"
)

var serviceName = "logs"

const (
	DimensionHouse     = "house"
	DimensionDevice    = "device"
	DimensionTokenType = "token_type"
	DimensionEvent     = "event"
)

// DefaultDays is the length of the default date range.
const DefaultDays = 7

const displayLayout = "02/01/2006 15:04:05"

// ExportHeader is the column row of a CSV export.
var ExportHeader = []string{"Fecha", "UID", "Usuario", "Titular_MK", "Casa", "Dispositivo", "Token", "Evento", "Balance"}

var fields = map[string]filter.Field[backend.LogEntry]{
	DimensionHouse:     func(l backend.LogEntry) string { return l.HouseID },
	DimensionDevice:    func(l backend.LogEntry) string { return l.Esp32ID },
	DimensionTokenType: func(l backend.LogEntry) string { return l.TokenType },
	DimensionEvent:     func(l backend.LogEntry) string { return l.EventType },
}

type Service struct {
	cfg      *config.Config
	client   *backend.Client
	session  *session.Service
	mutator  *view.Mutator
	now      func() time.Time
	location *time.Location

	lifecycle view.Lifecycle

	mu         sync.RWMutex
	Houses     *filter.MultiSelect
	Devices    *filter.MultiSelect
	TokenTypes *filter.MultiSelect
	Events     *filter.MultiSelect
	state      *filter.State
	dates      filter.DateRange
	datesSet   bool
	scope      scope.Houses
	entries    []backend.LogEntry
}

func New(di *do.Injector) (*Service, error) {
	events := filter.NewMultiSelect("Todos", dto.EventTypeName)
	events.SetOptions(dto.EventTypes, nil)

	return &Service{
		cfg:        do.MustInvoke[*config.Config](di),
		client:     do.MustInvoke[*backend.Client](di),
		session:    do.MustInvoke[*session.Service](di),
		mutator:    do.MustInvoke[*view.Mutator](di),
		now:        time.Now,
		location:   time.Local,
		Houses:     filter.NewMultiSelect("Todas", nil),
		Devices:    filter.NewMultiSelect("Todos", nil),
		TokenTypes: filter.NewMultiSelect("Todos", nil),
		Events:     events,
		state:      filter.NewState(DimensionHouse, DimensionDevice, DimensionTokenType, DimensionEvent),
	}, nil
}

// SetDates overrides the server side date range. Empty bounds keep the last
// seven days default.
func (s *Service) SetDates(start, end string) error {
	rng, err := filter.ParseDateRange(start, end, filter.LastDays(s.now(), DefaultDays))
	if err != nil {
		return s.mutator.Notify().Fail(err, "Fecha inválida")
	}

	s.mu.Lock()
	s.dates = rng
	s.datesSet = true
	s.mu.Unlock()

	return nil
}

// Query is the server side part of the filters.
func (s *Service) Query() backend.LogQuery {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dates := s.dates
	if !s.datesSet {
		dates = filter.LastDays(s.now(), DefaultDays)
	}

	return backend.LogQuery{
		StartDate: dates.StartDate(),
		EndDate:   dates.EndDate(),
		Limit:     s.cfg.UI.LogsLimit,
	}
}

// Load fetches the filter options and the log rows of the current date range.
// A failed log fetch leaves an empty list.
func (s *Service) Load(ctx context.Context) error {
	if err := s.mutator.Guard(dto.ActionLogsView); err != nil {
		return err
	}

	ctx, token := s.lifecycle.Enter(ctx)
	query := s.Query()

	var (
		houses     []backend.House
		devices    []backend.Device
		tokenTypes []backend.TokenType
		entries    []backend.LogEntry
		houseScope scope.Houses
		logsErr    error
	)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		var err error
		houses, err = s.client.GetHouses(groupCtx)
		s.warn("houses", err)
		return nil
	})
	group.Go(func() error {
		var err error
		devices, err = s.client.GetDevices(groupCtx, "")
		s.warn("devices", err)
		return nil
	})
	group.Go(func() error {
		var err error
		tokenTypes, err = s.client.GetTokenTypes(groupCtx)
		s.warn("token types", err)
		return nil
	})
	group.Go(func() error {
		var err error
		houseScope, err = scope.Resolve(groupCtx, s.client, s.session)
		s.warn("house scope", err)
		if err != nil {
			houseScope = scope.Houses{}
		}
		return nil
	})
	group.Go(func() error {
		entries, logsErr = s.client.GetLogs(groupCtx, query)
		return nil
	})
	_ = group.Wait()

	houseIDs := pie.Filter(pie.Map(houses, func(h backend.House) string { return h.HouseID }), houseScope.Allows)
	sort.Strings(houseIDs)
	deviceIDs := pie.Map(devices, func(d backend.Device) string { return d.Esp32ID })
	sort.Strings(deviceIDs)
	tokenTypeIDs := pie.Map(tokenTypes, func(t backend.TokenType) string { return t.TokenType })
	sort.Strings(tokenTypeIDs)

	s.lifecycle.Commit(token, func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		s.Houses.SetOptions(houseIDs, s.state.Get(DimensionHouse))
		s.Devices.SetOptions(deviceIDs, s.state.Get(DimensionDevice))
		s.TokenTypes.SetOptions(tokenTypeIDs, s.state.Get(DimensionTokenType))
		s.Events.SetOptions(dto.EventTypes, s.state.Get(DimensionEvent))
		s.scope = houseScope
		s.entries = entries
	})

	if logsErr != nil {
		// left or re-entered meanwhile
		if !s.lifecycle.Current(token) {
			return oops.Errorf("GetLogs: %w", logsErr)
		}

		return s.mutator.Notify().Fail(oops.Errorf("GetLogs: %w", logsErr), "Error al cargar logs")
	}

	return nil
}

func (s *Service) warn(what string, err error) {
	if err == nil {
		return
	}

	slog.Warn("Failed to load "+what,
		slog.String("service", serviceName),
		slog.Any("error", err),
	)
}

func (s *Service) Leave() {
	s.lifecycle.Leave()
}

// Search commits the buffered multi-select state. Toggling a checkbox alone
// does not change Visible.
func (s *Service) Search() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.Commit(map[string]*filter.MultiSelect{
		DimensionHouse:     s.Houses,
		DimensionDevice:    s.Devices,
		DimensionTokenType: s.TokenTypes,
		DimensionEvent:     s.Events,
	})
}

// Visible returns the loaded rows that pass the committed filters and the
// house scope.
func (s *Service) Visible() []backend.LogEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	scoped := pie.Filter(s.entries, func(l backend.LogEntry) bool {
		return s.scope.Allows(l.HouseID)
	})

	return filter.Apply(s.state, scoped, fields)
}

// IsMasterkeyEvent reports whether a row was produced by a master key.
func IsMasterkeyEvent(entry backend.LogEntry) bool {
	return bool(entry.IsMasterkeyEvent) ||
		entry.EventType == dto.EventMasterkeyAccess ||
		entry.EventType == dto.EventMasterkeyAccessOffline
}

// DisplayName is the user column: the key holder for master key events, the
// user name otherwise.
func DisplayName(entry backend.LogEntry) string {
	if !IsMasterkeyEvent(entry) {
		if entry.UserName == "" {
			return "-"
		}
		return entry.UserName
	}

	holder := entry.MasterkeyHolder
	if holder == "" {
		holder = entry.UID
	}

	if entry.EventType == dto.EventMasterkeyAccessOffline {
		return holder + " (MK offline)"
	}

	return holder + " (MK)"
}

// FormatTimestamp renders a row timestamp as dd/mm/yyyy hh:mm:ss, or "-".
func (s *Service) FormatTimestamp(value string) string {
	t, ok := backend.ParseTimestamp(value)
	if !ok {
		return "-"
	}

	return t.In(s.location).Format(displayLayout)
}

func Balance(entry backend.LogEntry) string {
	if entry.TokenBalanceAfter == nil {
		return ""
	}

	return strconv.Itoa(int(*entry.TokenBalanceAfter))
}

// Export writes the visible rows as CSV and returns how many were written.
func (s *Service) Export(w io.Writer) (int, error) {
	if err := s.mutator.Guard(dto.ActionLogsExport); err != nil {
		return 0, err
	}

	rows := s.Visible()
	if len(rows) == 0 {
		s.mutator.Notify().Warning("No hay datos")
		return 0, oops.
			With("kind", util.KindValidation).
			Public("No hay datos").
			Errorf("nothing to export")
	}

	writer := csv.NewWriter(w)
	if err := writer.Write(ExportHeader); err != nil {
		return 0, oops.Errorf("write csv header: %w", err)
	}

	for _, l := range rows {
		record := []string{
			s.FormatTimestamp(l.Timestamp),
			l.UID,
			l.UserName,
			l.MasterkeyHolder,
			l.HouseID,
			l.Esp32ID,
			l.TokenType,
			l.EventType,
			Balance(l),
		}
		if err := writer.Write(record); err != nil {
			return 0, oops.Errorf("write csv row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return 0, oops.Errorf("flush csv: %w", err)
	}

	return len(rows), nil
}

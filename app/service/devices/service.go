package devices

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"ctrlbx/app/client/backend"
	"ctrlbx/app/config"
	"ctrlbx/app/dto"
	"ctrlbx/app/service/filter"
	"ctrlbx/app/service/session"
	"ctrlbx/app/service/view"
	"ctrlbx/app/util"

	"github.com/samber/do"
	"github.com/samber/oops"
	"golang.org/x/sync/errgroup"
)

var serviceName = "devices"

const (
	ConnectionOnline  = "ONLINE"
	ConnectionOffline = "OFFLINE"
)

// Filters are the instant single-select filters of the devices list. Empty
// values match everything.
type Filters struct {
	House      string
	TokenType  string
	Status     string
	Connection string
}

// Form is the create and edit form of a device.
type Form struct {
	Esp32ID         string `validate:"required"`
	Location        string
	TokenType       string `validate:"required"`
	HouseID         string
	Active          bool
	TimeLimitMin    int    `validate:"gte=1,lte=240"`
	ReconnectSec    int    `validate:"gte=0"`
	WifiSSID        string
	WifiPassword    string
	TimeWindowStart string `validate:"omitempty,clock"`
	TimeWindowEnd   string `validate:"omitempty,clock"`
}

func (f Form) input() backend.DeviceInput {
	return backend.DeviceInput{
		Esp32ID:         f.Esp32ID,
		Location:        f.Location,
		TokenType:       f.TokenType,
		HouseID:         f.HouseID,
		Active:          f.Active,
		TimeLimitMin:    f.TimeLimitMin,
		ReconnectSec:    f.ReconnectSec,
		WifiSSID:        f.WifiSSID,
		WifiPassword:    f.WifiPassword,
		TimeWindowStart: f.TimeWindowStart,
		TimeWindowEnd:   f.TimeWindowEnd,
	}
}

func (f Form) fields() map[string]any {
	return map[string]any{
		"location":          f.Location,
		"token_type":        f.TokenType,
		"house_id":          f.HouseID,
		"active":            f.Active,
		"time_limit_min":    f.TimeLimitMin,
		"reconnect_sec":     f.ReconnectSec,
		"wifi_ssid":         f.WifiSSID,
		"wifi_password":     f.WifiPassword,
		"time_window_start": f.TimeWindowStart,
		"time_window_end":   f.TimeWindowEnd,
	}
}

type Service struct {
	cfg     *config.Config
	client  *backend.Client
	session *session.Service
	mutator *view.Mutator
	now     func() time.Time

	lifecycle view.Lifecycle

	mu         sync.RWMutex
	devices    []backend.Device
	houses     []backend.House
	tokenTypes []backend.TokenType
	filters    Filters
}

func New(di *do.Injector) (*Service, error) {
	return &Service{
		cfg:     do.MustInvoke[*config.Config](di),
		client:  do.MustInvoke[*backend.Client](di),
		session: do.MustInvoke[*session.Service](di),
		mutator: do.MustInvoke[*view.Mutator](di),
		now:     time.Now,
	}, nil
}

// Load fetches the device list with the houses and token types used by the
// filters and forms. An ADMIN only gets the devices of the houses they manage.
// When the device list cannot be fetched the list is emptied.
func (s *Service) Load(ctx context.Context) error {
	if err := s.mutator.Guard(dto.ActionDevicesView); err != nil {
		return err
	}

	ctx, token := s.lifecycle.Enter(ctx)

	adminEmail := ""
	if s.session.HasRole(dto.RoleAdmin) {
		adminEmail = s.session.Email()
	}

	var (
		devices    []backend.Device
		houses     []backend.House
		tokenTypes []backend.TokenType
		devicesErr error
	)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		devices, devicesErr = s.client.GetDevices(groupCtx, adminEmail)
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

	sort.SliceStable(houses, func(i, j int) bool {
		return houses[i].HouseID < houses[j].HouseID
	})

	s.lifecycle.Commit(token, func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		s.devices = devices
		s.houses = houses
		s.tokenTypes = tokenTypes
	})

	if devicesErr != nil {
		// left or re-entered meanwhile
		if !s.lifecycle.Current(token) {
			return oops.Errorf("GetDevices: %w", devicesErr)
		}

		return s.mutator.Notify().Fail(oops.Errorf("GetDevices: %w", devicesErr), "Error al cargar dispositivos")
	}

	return nil
}

func (s *Service) Leave() {
	s.lifecycle.Leave()
}

func (s *Service) SetFilters(filters Filters) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.filters = filters
}

func (s *Service) Filters() Filters {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.filters
}

// Online reports whether a device was seen within the offline threshold.
func (s *Service) Online(device backend.Device) bool {
	seen, ok := backend.ParseTimestamp(device.LastSeen)
	if !ok {
		return false
	}

	threshold := time.Duration(s.cfg.UI.OfflineThresholdMin) * time.Minute

	return s.now().Sub(seen) <= threshold
}

// Connection is ONLINE or OFFLINE.
func (s *Service) Connection(device backend.Device) string {
	if s.Online(device) {
		return ConnectionOnline
	}

	return ConnectionOffline
}

func Status(device backend.Device) string {
	if device.Active {
		return dto.StatusActive
	}

	return dto.StatusInactive
}

// Visible returns the loaded devices that pass every filter.
func (s *Service) Visible() []backend.Device {
	s.mu.RLock()
	filters := s.filters
	devices := s.devices
	s.mu.RUnlock()

	result := make([]backend.Device, 0, len(devices))
	for _, d := range devices {
		if !filter.Match(filters.House, d.HouseID) ||
			!filter.Match(filters.TokenType, d.TokenType) ||
			!filter.Match(filters.Status, Status(d)) ||
			!filter.Match(filters.Connection, s.Connection(d)) {
			continue
		}
		result = append(result, d)
	}

	return result
}

func (s *Service) Houses() []backend.House {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.houses
}

func (s *Service) TokenTypes() []backend.TokenType {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.tokenTypes
}

func (s *Service) Device(esp32ID string) (backend.Device, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, d := range s.devices {
		if d.Esp32ID == esp32ID {
			return d, true
		}
	}

	return backend.Device{}, false
}

// FormFor prefills the edit form of a loaded device.
func (s *Service) FormFor(esp32ID string) (Form, bool) {
	d, ok := s.Device(esp32ID)
	if !ok {
		return Form{}, false
	}

	return Form{
		Esp32ID:         d.Esp32ID,
		Location:        d.Location,
		TokenType:       d.TokenType,
		HouseID:         d.HouseID,
		Active:          bool(d.Active),
		TimeLimitMin:    int(d.TimeLimitMin),
		ReconnectSec:    int(d.ReconnectSec),
		WifiSSID:        d.WifiSSID,
		WifiPassword:    d.WifiPassword,
		TimeWindowStart: string(d.TimeWindowStart),
		TimeWindowEnd:   string(d.TimeWindowEnd),
	}, true
}

func (s *Service) Create(ctx context.Context, form Form) error {
	form = trimmed(form)

	return s.mutator.Run(ctx, view.Mutation{
		Action:  dto.ActionDevicesCreate,
		Input:   form,
		Success: "Dispositivo creado",
		Failure: "Error al crear dispositivo",
		Call: func(ctx context.Context) error {
			return s.client.CreateDevice(ctx, form.input())
		},
	})
}

func (s *Service) Update(ctx context.Context, form Form) error {
	form = trimmed(form)

	return s.mutator.Run(ctx, view.Mutation{
		Action:  dto.ActionDevicesEdit,
		Input:   form,
		Success: "Dispositivo actualizado",
		Failure: "Error al actualizar dispositivo",
		Call: func(ctx context.Context) error {
			if _, ok := s.Device(form.Esp32ID); !ok {
				return util.NotFound("device", form.Esp32ID)
			}

			return s.client.UpdateDevice(ctx, form.Esp32ID, form.fields())
		},
	})
}

// ToggleActive flips the active flag of a device and returns the new value.
func (s *Service) ToggleActive(ctx context.Context, esp32ID string) (bool, error) {
	var next bool

	err := s.mutator.Run(ctx, view.Mutation{
		Action:  dto.ActionDevicesToggleStatus,
		Failure: "Error al actualizar estado",
		Call: func(ctx context.Context) error {
			device, ok := s.Device(esp32ID)
			if !ok {
				return util.NotFound("device", esp32ID)
			}

			next = !bool(device.Active)
			if err := s.client.UpdateDevice(ctx, esp32ID, map[string]any{"active": next}); err != nil {
				return err
			}

			s.setActive(esp32ID, next)

			return nil
		},
	})
	if err != nil {
		return false, err
	}

	if next {
		s.mutator.Notify().Success("Dispositivo activado")
	} else {
		s.mutator.Notify().Success("Dispositivo desactivado")
	}

	return next, nil
}

func (s *Service) setActive(esp32ID string, active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.devices {
		if s.devices[i].Esp32ID == esp32ID {
			s.devices[i].Active = backend.FlexBool(active)
		}
	}
}

// History lists the master keys that can open a device.
func (s *Service) History(ctx context.Context, esp32ID string) ([]backend.Masterkey, error) {
	if err := s.mutator.Guard(dto.ActionDevicesViewHistory); err != nil {
		return nil, err
	}

	keys, err := s.client.GetMasterkeysForDevice(ctx, esp32ID)
	if err != nil {
		return nil, s.mutator.Notify().Fail(oops.Errorf("GetMasterkeysForDevice: %w", err), "Error al cargar historial")
	}

	return keys, nil
}

func trimmed(form Form) Form {
	form.Esp32ID = strings.TrimSpace(form.Esp32ID)
	form.Location = strings.TrimSpace(form.Location)
	form.WifiSSID = strings.TrimSpace(form.WifiSSID)

	if form.TimeWindowStart != "" {
		if clock := backend.NormalizeClock(form.TimeWindowStart); clock != "" {
			form.TimeWindowStart = clock
		}
	}
	if form.TimeWindowEnd != "" {
		if clock := backend.NormalizeClock(form.TimeWindowEnd); clock != "" {
			form.TimeWindowEnd = clock
		}
	}

	return form
}

package houses

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"sync"

	"ctrlbx/app/client/backend"
	"ctrlbx/app/dto"
	"ctrlbx/app/service/scope"
	"ctrlbx/app/service/session"
	"ctrlbx/app/service/view"
	"ctrlbx/app/util"

	"github.com/elliotchance/pie/v2"
	"github.com/samber/do"
	"github.com/samber/oops"
	"golang.org/x/sync/errgroup"
)

var serviceName = "houses"

var (
	driveFileRegex = regexp.MustCompile(`/file/d/([a-zA-Z0-9_-]+)`)
	driveIDRegex   = regexp.MustCompile(`[?&]id=([a-zA-Z0-9_-]+)`)
)

// AdminAssignment is the assign admin form.
type AdminAssignment struct {
	HouseID    string `validate:"required"`
	AdminEmail string `validate:"required,email"`
}

type Service struct {
	client  *backend.Client
	session *session.Service
	mutator *view.Mutator

	lifecycle view.Lifecycle

	mu          sync.RWMutex
	houses      []backend.House
	devices     []backend.Device
	users       []backend.User
	adminHouses []backend.AdminHouse
	scope       scope.Houses
}

func New(di *do.Injector) (*Service, error) {
	return &Service{
		client:  do.MustInvoke[*backend.Client](di),
		session: do.MustInvoke[*session.Service](di),
		mutator: do.MustInvoke[*view.Mutator](di),
	}, nil
}

// Load fetches houses with the devices, residents and admins attached to them.
func (s *Service) Load(ctx context.Context) error {
	if err := s.mutator.Guard(dto.ActionHousesView); err != nil {
		return err
	}

	ctx, token := s.lifecycle.Enter(ctx)

	var (
		houses      []backend.House
		devices     []backend.Device
		users       []backend.User
		adminHouses []backend.AdminHouse
		houseScope  scope.Houses
		housesErr   error
	)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		houses, housesErr = s.client.GetHouses(groupCtx)
		return nil
	})
	group.Go(func() error {
		var err error
		devices, err = s.client.GetDevices(groupCtx, "")
		warn("devices", err)
		return nil
	})
	group.Go(func() error {
		var err error
		users, err = s.client.GetUsers(groupCtx)
		warn("users", err)
		return nil
	})
	group.Go(func() error {
		var err error
		adminHouses, err = s.client.GetAllAdminHouses(groupCtx)
		warn("admin houses", err)
		return nil
	})
	group.Go(func() error {
		var err error
		houseScope, err = scope.Resolve(groupCtx, s.client, s.session)
		warn("house scope", err)
		if err != nil {
			houseScope = scope.Houses{}
		}
		return nil
	})
	_ = group.Wait()

	houses = pie.Filter(houses, func(h backend.House) bool {
		return houseScope.Allows(h.HouseID)
	})
	sort.SliceStable(houses, func(i, j int) bool {
		return houses[i].HouseID < houses[j].HouseID
	})

	s.lifecycle.Commit(token, func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		s.houses = houses
		s.devices = devices
		s.users = users
		s.adminHouses = adminHouses
		s.scope = houseScope
	})

	if housesErr != nil {
		return s.mutator.Notify().Fail(oops.Errorf("GetHouses: %w", housesErr), "Error al cargar casas")
	}

	return nil
}

func warn(what string, err error) {
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

func (s *Service) Visible() []backend.House {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.houses
}

func (s *Service) House(houseID string) (backend.House, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, h := range s.houses {
		if h.HouseID == houseID {
			return h, true
		}
	}

	return backend.House{}, false
}

func (s *Service) DeviceCount(houseID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, d := range s.devices {
		if d.HouseID == houseID {
			count++
		}
	}

	return count
}

// Residents lists the users whose residence is the house.
func (s *Service) Residents(houseID string) []backend.User {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return pie.Filter(s.users, func(u backend.User) bool {
		return u.UserResidence == houseID
	})
}

// Admins lists the emails of the admins assigned to the house.
func (s *Service) Admins(houseID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []string
	for _, a := range s.adminHouses {
		if a.HouseID == houseID && !pie.Contains(result, a.AdminEmail) {
			result = append(result, a.AdminEmail)
		}
	}

	return result
}

// Address joins street, number and extra, or "Sin dirección".
func Address(h backend.House) string {
	parts := pie.Filter([]string{h.HouseStreet, string(h.HouseNumber), h.HouseExtra}, func(p string) bool {
		return strings.TrimSpace(p) != ""
	})
	if len(parts) == 0 {
		return "Sin dirección"
	}

	return strings.Join(parts, " ")
}

// ImageURL turns a Google Drive sharing link into a direct thumbnail link.
// Other links are returned unchanged.
func ImageURL(raw string) string {
	if raw == "" {
		return ""
	}

	fileID := ""
	if m := driveFileRegex.FindStringSubmatch(raw); m != nil {
		fileID = m[1]
	} else if m := driveIDRegex.FindStringSubmatch(raw); m != nil {
		fileID = m[1]
	}

	if fileID == "" {
		return raw
	}

	return "https://drive.google.com/thumbnail?id=" + fileID + "&sz=w400"
}

func (s *Service) Create(ctx context.Context, input backend.HouseInput) error {
	input = trimmed(input)

	return s.mutator.Run(ctx, view.Mutation{
		Action:  dto.ActionHousesCreate,
		Input:   input,
		Success: "Casa creada correctamente",
		Failure: "Error al crear casa",
		Call: func(ctx context.Context) error {
			return s.client.CreateHouse(ctx, input)
		},
	})
}

func (s *Service) Update(ctx context.Context, input backend.HouseInput) error {
	input = trimmed(input)

	return s.mutator.Run(ctx, view.Mutation{
		Action:  dto.ActionHousesEdit,
		Input:   input,
		Success: "Casa actualizada correctamente",
		Failure: "Error al actualizar casa",
		Call: func(ctx context.Context) error {
			if _, ok := s.House(input.HouseID); !ok {
				return util.NotFound("house", input.HouseID)
			}

			return s.client.UpdateHouse(ctx, input)
		},
	})
}

// Delete removes a house. Houses that still have devices are refused before
// any request is sent.
func (s *Service) Delete(ctx context.Context, houseID string) error {
	return s.mutator.Run(ctx, view.Mutation{
		Action:  dto.ActionHousesDelete,
		Success: "Casa eliminada correctamente",
		Failure: "Error al eliminar casa",
		Call: func(ctx context.Context) error {
			if _, ok := s.House(houseID); !ok {
				return util.NotFound("house", houseID)
			}

			if count := s.DeviceCount(houseID); count > 0 {
				return oops.
					With("kind", util.KindValidation).
					With("house_id", houseID).
					Public(fmt.Sprintf("No se puede eliminar: la casa tiene %d dispositivo(s) asignado(s)", count)).
					Errorf("house %s has %d devices", houseID, count)
			}

			return s.client.DeleteHouse(ctx, houseID)
		},
	})
}

func (s *Service) AssignAdmin(ctx context.Context, input AdminAssignment) error {
	input.HouseID = strings.TrimSpace(input.HouseID)
	input.AdminEmail = strings.ToLower(strings.TrimSpace(input.AdminEmail))

	return s.mutator.Run(ctx, view.Mutation{
		Action:  dto.ActionHousesEdit,
		Input:   input,
		Success: "Administrador asignado",
		Failure: "Error al asignar administrador",
		Call: func(ctx context.Context) error {
			if _, ok := s.House(input.HouseID); !ok {
				return util.NotFound("house", input.HouseID)
			}

			if err := s.client.AssignHouseAdmin(ctx, input.HouseID, input.AdminEmail); err != nil {
				return err
			}

			s.mu.Lock()
			s.adminHouses = append(s.adminHouses, backend.AdminHouse{
				AdminEmail: input.AdminEmail,
				HouseID:    input.HouseID,
			})
			s.mu.Unlock()

			return nil
		},
	})
}

func trimmed(input backend.HouseInput) backend.HouseInput {
	input.HouseID = strings.TrimSpace(input.HouseID)
	input.HouseImg = strings.TrimSpace(input.HouseImg)
	input.HouseStreet = strings.TrimSpace(input.HouseStreet)
	input.HouseNumber = strings.TrimSpace(input.HouseNumber)
	input.HouseExtra = strings.TrimSpace(input.HouseExtra)
	input.HousePostcode = strings.TrimSpace(input.HousePostcode)
	input.HouseLat = strings.TrimSpace(input.HouseLat)
	input.HouseLong = strings.TrimSpace(input.HouseLong)

	return input
}

package users

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"ctrlbx/app/client/backend"
	"ctrlbx/app/dto"
	"ctrlbx/app/service/filter"
	"ctrlbx/app/service/view"
	"ctrlbx/app/util"

	"github.com/elliotchance/pie/v2"
	"github.com/samber/do"
	"github.com/samber/oops"
	"golang.org/x/sync/errgroup"
)

var serviceName = "users"

const (
	SortNone = ""
	SortAsc  = "asc"
	SortDesc = "desc"
)

// NewUser is the create form.
type NewUser struct {
	UID      string   `validate:"required"`
	Name     string   `validate:"required"`
	UserType string   `validate:"required,oneof=GLOBAL HOUSE"`
	Houses   []string `validate:"dive,required"`
}

// EditUser is the edit form. Houses are ignored for GLOBAL users.
type EditUser struct {
	Name     string   `validate:"required"`
	UserType string   `validate:"required,oneof=GLOBAL HOUSE"`
	Houses   []string `validate:"dive,required"`
}

// TokenChange is one updateTokenBalance call.
type TokenChange struct {
	TokenType string
	Delta     int
}

type Service struct {
	client  *backend.Client
	mutator *view.Mutator

	lifecycle view.Lifecycle

	mu         sync.RWMutex
	users      []backend.User
	houses     []backend.House
	userHouses []backend.UserHouse
	devices    []backend.Device
	tokenTypes []backend.TokenType

	searchTerm string
	status     string
	sortName   string
}

func New(di *do.Injector) (*Service, error) {
	return &Service{
		client:  do.MustInvoke[*backend.Client](di),
		mutator: do.MustInvoke[*view.Mutator](di),
	}, nil
}

// Load fetches users with their houses, devices and token types.
func (s *Service) Load(ctx context.Context) error {
	if err := s.mutator.Guard(dto.ActionUsersView); err != nil {
		return err
	}

	ctx, token := s.lifecycle.Enter(ctx)

	var (
		users      []backend.User
		houses     []backend.House
		userHouses []backend.UserHouse
		devices    []backend.Device
		tokenTypes []backend.TokenType
		usersErr   error
	)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		users, usersErr = s.client.GetUsers(groupCtx)
		return nil
	})
	group.Go(func() error {
		houses = tolerate(s.client.GetHouses(groupCtx))
		return nil
	})
	group.Go(func() error {
		userHouses = tolerate(s.client.GetAllUserHouses(groupCtx))
		return nil
	})
	group.Go(func() error {
		devices = tolerate(s.client.GetDevices(groupCtx, ""))
		return nil
	})
	group.Go(func() error {
		tokenTypes = tolerate(s.client.GetTokenTypes(groupCtx))
		return nil
	})
	_ = group.Wait()

	sort.SliceStable(houses, func(i, j int) bool {
		return houses[i].HouseID < houses[j].HouseID
	})

	s.lifecycle.Commit(token, func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		s.users = users
		s.houses = houses
		s.userHouses = userHouses
		s.devices = devices
		s.tokenTypes = tokenTypes
	})

	if usersErr != nil {
		return s.mutator.Notify().Fail(oops.Errorf("GetUsers: %w", usersErr), "Error al cargar usuarios")
	}

	return nil
}

func tolerate[T any](items []T, err error) []T {
	if err != nil {
		slog.Warn("Failed to load reference data",
			slog.String("service", serviceName),
			slog.Any("error", err),
		)
		return nil
	}

	return items
}

func (s *Service) Leave() {
	s.lifecycle.Leave()
}

// SetSearch filters by a case insensitive substring of name or uid.
func (s *Service) SetSearch(term string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.searchTerm = strings.ToLower(strings.TrimSpace(term))
}

// SetStatus filters by ACTIVO or INACTIVO; empty shows all.
func (s *Service) SetStatus(status string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.status = status
}

func (s *Service) SetSort(order string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sortName = order
}

func (s *Service) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.searchTerm = ""
	s.status = ""
	s.sortName = SortNone
}

// Visible returns the loaded users after search, status filter and sort.
func (s *Service) Visible() []backend.User {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := pie.Filter(s.users, func(u backend.User) bool {
		if s.searchTerm != "" &&
			!filter.ContainsFold(u.UserName, s.searchTerm) &&
			!filter.ContainsFold(u.UID, s.searchTerm) {
			return false
		}

		return filter.Match(s.status, u.Status)
	})

	switch s.sortName {
	case SortAsc:
		sort.SliceStable(result, func(i, j int) bool {
			return strings.ToLower(result[i].UserName) < strings.ToLower(result[j].UserName)
		})
	case SortDesc:
		sort.SliceStable(result, func(i, j int) bool {
			return strings.ToLower(result[i].UserName) > strings.ToLower(result[j].UserName)
		})
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

func (s *Service) User(uid string) (backend.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.UID == uid {
			return u, true
		}
	}

	return backend.User{}, false
}

// HousesFor returns the houses assigned to a user.
func (s *Service) HousesFor(uid string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.housesFor(uid)
}

func (s *Service) housesFor(uid string) []string {
	var result []string
	for _, a := range s.userHouses {
		if a.UID == uid {
			result = append(result, a.HouseID)
		}
	}

	return result
}

// RelevantTokenTypes lists the token types a user can spend: those of every
// active device for GLOBAL users, those of active devices in their houses for
// HOUSE users. Order follows the device list.
func (s *Service) RelevantTokenTypes(user backend.User) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	userType := user.UserType
	if userType == "" {
		userType = dto.UserTypeGlobal
	}

	assigned := s.housesFor(user.UID)

	var result []string
	for _, d := range s.devices {
		if !d.Active || d.TokenType == "" {
			continue
		}
		if userType != dto.UserTypeGlobal && (d.HouseID == "" || !pie.Contains(assigned, d.HouseID)) {
			continue
		}
		if !pie.Contains(result, d.TokenType) {
			result = append(result, d.TokenType)
		}
	}

	return result
}

func (s *Service) Create(ctx context.Context, input NewUser) error {
	input.UID = strings.TrimSpace(input.UID)
	input.Name = strings.TrimSpace(input.Name)
	if input.UserType == "" {
		input.UserType = dto.UserTypeGlobal
	}

	return s.mutator.Run(ctx, view.Mutation{
		Action:  dto.ActionUsersCreate,
		Input:   input,
		Success: "Usuario creado correctamente",
		Failure: "Error al crear usuario",
		Call: func(ctx context.Context) error {
			err := s.client.CreateUser(ctx, backend.UserInput{
				UID:      input.UID,
				UserName: input.Name,
				Status:   dto.StatusActive,
				UserType: input.UserType,
			})
			if err != nil {
				return err
			}

			if input.UserType == dto.UserTypeHouse && len(input.Houses) > 0 {
				return s.client.AssignUserHouses(ctx, input.UID, input.Houses)
			}

			return nil
		},
	})
}

func (s *Service) Update(ctx context.Context, uid string, input EditUser) error {
	input.Name = strings.TrimSpace(input.Name)

	return s.mutator.Run(ctx, view.Mutation{
		Action:  dto.ActionUsersEdit,
		Input:   input,
		Success: "Usuario actualizado",
		Failure: "Error al actualizar usuario",
		Call: func(ctx context.Context) error {
			if _, ok := s.User(uid); !ok {
				return notFound(uid)
			}

			err := s.client.UpdateUser(ctx, uid, backend.UserPatch{
				UserName: input.Name,
				UserType: input.UserType,
			})
			if err != nil {
				return err
			}

			houses := input.Houses
			if input.UserType != dto.UserTypeHouse {
				houses = nil
			}

			return s.client.AssignUserHouses(ctx, uid, houses)
		},
	})
}

// ToggleStatus flips a user between ACTIVO and INACTIVO and returns the new
// status.
func (s *Service) ToggleStatus(ctx context.Context, uid string) (string, error) {
	var next string

	err := s.mutator.Run(ctx, view.Mutation{
		Action:  dto.ActionUsersToggleStatus,
		Failure: "Error al actualizar estado",
		Call: func(ctx context.Context) error {
			user, ok := s.User(uid)
			if !ok {
				return notFound(uid)
			}

			next = dto.StatusActive
			if user.Status == dto.StatusActive {
				next = dto.StatusInactive
			}

			if err := s.client.UpdateUser(ctx, uid, backend.UserPatch{Status: next}); err != nil {
				return err
			}

			s.setStatus(uid, next)

			return nil
		},
	})
	if err != nil {
		return "", err
	}

	if next == dto.StatusActive {
		s.mutator.Notify().Success("Usuario activado")
	} else {
		s.mutator.Notify().Success("Usuario desactivado")
	}

	return next, nil
}

func (s *Service) setStatus(uid, status string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.users {
		if s.users[i].UID == uid {
			s.users[i].Status = status
		}
	}
}

// PlanTokens computes the balance changes needed to reach the target balances.
// Only relevant token types may be changed and balances cannot go below zero.
func (s *Service) PlanTokens(uid string, targets map[string]int) ([]TokenChange, error) {
	user, ok := s.User(uid)
	if !ok {
		return nil, notFound(uid)
	}

	relevant := s.RelevantTokenTypes(user)

	var changes []TokenChange
	for _, tokenType := range relevant {
		target, ok := targets[tokenType]
		if !ok {
			continue
		}
		if target < 0 {
			return nil, oops.
				With("kind", util.KindValidation).
				Public("El balance no puede ser negativo").
				Errorf("negative balance %d for %s", target, tokenType)
		}

		if delta := target - user.Balance(tokenType); delta != 0 {
			changes = append(changes, TokenChange{TokenType: tokenType, Delta: delta})
		}
	}

	for tokenType := range targets {
		if !pie.Contains(relevant, tokenType) {
			return nil, oops.
				With("kind", util.KindValidation).
				Public("Tipo de token no disponible para este usuario: " + tokenType).
				Errorf("token type %s not relevant for %s", tokenType, uid)
		}
	}

	return changes, nil
}

// AdjustTokens applies the changes one updateTokenBalance call at a time and
// stops at the first failure. It returns the changes that were applied.
func (s *Service) AdjustTokens(ctx context.Context, uid string, targets map[string]int) ([]TokenChange, error) {
	if err := s.mutator.Guard(dto.ActionUsersAdjustTokens); err != nil {
		return nil, err
	}

	changes, err := s.PlanTokens(uid, targets)
	if err != nil {
		return nil, s.mutator.Notify().Fail(err, "Datos inválidos")
	}

	if len(changes) == 0 {
		s.mutator.Notify().Info("No hay cambios")
		return nil, nil
	}

	var applied []TokenChange

	err = s.mutator.Run(ctx, view.Mutation{
		Action:  dto.ActionUsersAdjustTokens,
		Success: "Tokens actualizados",
		Failure: "Error al actualizar tokens",
		Call: func(ctx context.Context) error {
			for _, change := range changes {
				if err := s.client.UpdateTokenBalance(ctx, uid, change.TokenType, change.Delta); err != nil {
					return oops.
						With("token_type", change.TokenType).
						Wrapf(err, "UpdateTokenBalance")
				}
				applied = append(applied, change)
			}

			return nil
		},
	})

	return applied, err
}

func notFound(uid string) error {
	return oops.
		With("kind", util.KindValidation).
		With("uid", uid).
		Public("Usuario no encontrado: " + uid).
		Errorf("user %s not found", uid)
}

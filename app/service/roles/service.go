package roles

import (
	"context"
	"strings"
	"sync"

	"ctrlbx/app/client/backend"
	"ctrlbx/app/dto"
	"ctrlbx/app/service/view"
	"ctrlbx/app/util"

	"github.com/samber/do"
	"github.com/samber/oops"
)

// DefaultAdminLogLimit is how many admin log entries are fetched when no
// limit is given.
const DefaultAdminLogLimit = 100

// NewAdmin is the create form.
type NewAdmin struct {
	Email string `validate:"required,email"`
	Role  string `validate:"required,oneof=MASTER ADMIN VIEWER"`
}

type roleChange struct {
	Role string `validate:"required,oneof=MASTER ADMIN VIEWER"`
}

type Service struct {
	client  *backend.Client
	mutator *view.Mutator

	lifecycle view.Lifecycle

	mu     sync.RWMutex
	admins []backend.AdminRecord
}

func New(di *do.Injector) (*Service, error) {
	return &Service{
		client:  do.MustInvoke[*backend.Client](di),
		mutator: do.MustInvoke[*view.Mutator](di),
	}, nil
}

func (s *Service) Load(ctx context.Context) error {
	if err := s.mutator.Guard(dto.ActionRolesView); err != nil {
		return err
	}

	ctx, token := s.lifecycle.Enter(ctx)

	admins, err := s.client.GetAdmins(ctx)

	s.lifecycle.Commit(token, func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		s.admins = admins
	})

	if err != nil {
		return s.mutator.Notify().Fail(oops.Errorf("GetAdmins: %w", err), "Error al cargar roles")
	}

	return nil
}

func (s *Service) Leave() {
	s.lifecycle.Leave()
}

func (s *Service) Visible() []backend.AdminRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.admins
}

func (s *Service) Admin(email string) (backend.AdminRecord, bool) {
	email = normalizeEmail(email)

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, a := range s.admins {
		if normalizeEmail(a.AdminEmail) == email {
			return a, true
		}
	}

	return backend.AdminRecord{}, false
}

// Create adds an admin with status ACTIVO.
func (s *Service) Create(ctx context.Context, input NewAdmin) error {
	input.Email = normalizeEmail(input.Email)

	return s.mutator.Run(ctx, view.Mutation{
		Action:  dto.ActionRolesCreate,
		Input:   input,
		Success: "Administrador creado",
		Failure: "Error al crear administrador",
		Call: func(ctx context.Context) error {
			return s.client.CreateAdmin(ctx, backend.AdminInput{
				AdminEmail: input.Email,
				Role:       input.Role,
				Status:     dto.StatusActive,
			})
		},
	})
}

func (s *Service) ChangeRole(ctx context.Context, email string, role dto.Role) error {
	return s.mutator.Run(ctx, view.Mutation{
		Action:  dto.ActionRolesEdit,
		Input:   roleChange{Role: string(role)},
		Success: "Administrador actualizado",
		Failure: "Error al actualizar",
		Call: func(ctx context.Context) error {
			admin, ok := s.Admin(email)
			if !ok {
				return util.NotFound("admin", email)
			}

			if err := s.client.UpdateAdmin(ctx, admin.AdminEmail, backend.AdminPatch{Role: string(role)}); err != nil {
				return err
			}

			s.update(admin.AdminEmail, func(a *backend.AdminRecord) { a.Role = string(role) })

			return nil
		},
	})
}

// ToggleStatus flips an admin between ACTIVO and INACTIVO and returns the new
// status.
func (s *Service) ToggleStatus(ctx context.Context, email string) (string, error) {
	var next string

	err := s.mutator.Run(ctx, view.Mutation{
		Action:  dto.ActionRolesEdit,
		Failure: "Error al actualizar",
		Call: func(ctx context.Context) error {
			admin, ok := s.Admin(email)
			if !ok {
				return util.NotFound("admin", email)
			}

			next = dto.StatusActive
			if admin.Status == dto.StatusActive {
				next = dto.StatusInactive
			}

			if err := s.client.UpdateAdmin(ctx, admin.AdminEmail, backend.AdminPatch{Status: next}); err != nil {
				return err
			}

			s.update(admin.AdminEmail, func(a *backend.AdminRecord) { a.Status = next })

			return nil
		},
	})
	if err != nil {
		return "", err
	}

	if next == dto.StatusActive {
		s.mutator.Notify().Success("Administrador activado")
	} else {
		s.mutator.Notify().Success("Administrador desactivado")
	}

	return next, nil
}

func (s *Service) update(email string, apply func(a *backend.AdminRecord)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.admins {
		if s.admins[i].AdminEmail == email {
			apply(&s.admins[i])
		}
	}
}

// AdminLog returns the most recent administrative actions.
func (s *Service) AdminLog(ctx context.Context, limit int) ([]backend.AdminLogEntry, error) {
	if err := s.mutator.Guard(dto.ActionRolesViewAdminLog); err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = DefaultAdminLogLimit
	}

	entries, err := s.client.GetAdminLog(ctx, limit)
	if err != nil {
		return nil, s.mutator.Notify().Fail(oops.Errorf("GetAdminLog: %w", err), "Error al cargar el registro de administración")
	}

	return entries, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

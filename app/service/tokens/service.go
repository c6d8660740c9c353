package tokens

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

// ConfirmFunc asks the operator to confirm a forced delete. It gets the
// backend's refusal reason.
type ConfirmFunc func(reason string) bool

type Service struct {
	client  *backend.Client
	mutator *view.Mutator

	lifecycle view.Lifecycle

	mu         sync.RWMutex
	tokenTypes []backend.TokenType
}

func New(di *do.Injector) (*Service, error) {
	return &Service{
		client:  do.MustInvoke[*backend.Client](di),
		mutator: do.MustInvoke[*view.Mutator](di),
	}, nil
}

func (s *Service) Load(ctx context.Context) error {
	if err := s.mutator.Guard(dto.ActionTokensView); err != nil {
		return err
	}

	ctx, token := s.lifecycle.Enter(ctx)

	tokenTypes, err := s.client.GetTokenTypes(ctx)

	s.lifecycle.Commit(token, func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		s.tokenTypes = tokenTypes
	})

	if err != nil {
		return s.mutator.Notify().Fail(oops.Errorf("GetTokenTypes: %w", err), "Error al cargar tipos de token")
	}

	return nil
}

func (s *Service) Leave() {
	s.lifecycle.Leave()
}

func (s *Service) Visible() []backend.TokenType {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.tokenTypes
}

func (s *Service) TokenType(id string) (backend.TokenType, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, t := range s.tokenTypes {
		if t.TokenType == id {
			return t, true
		}
	}

	return backend.TokenType{}, false
}

// Create adds a token type. Codes are upper case and new types are ACTIVO
// unless another status is given.
func (s *Service) Create(ctx context.Context, input backend.TokenTypeInput) error {
	input.TokenType = strings.ToUpper(strings.TrimSpace(input.TokenType))
	input.TokenName = strings.TrimSpace(input.TokenName)
	input.Description = strings.TrimSpace(input.Description)
	if input.Status == "" {
		input.Status = dto.StatusActive
	}

	return s.mutator.Run(ctx, view.Mutation{
		Action:  dto.ActionTokensCreate,
		Input:   input,
		Success: "Tipo de token creado exitosamente",
		Failure: "Error al crear",
		Call: func(ctx context.Context) error {
			return s.client.CreateTokenType(ctx, input)
		},
	})
}

func (s *Service) Update(ctx context.Context, tokenType string, patch backend.TokenTypePatch) error {
	patch.TokenName = strings.TrimSpace(patch.TokenName)
	patch.Description = strings.TrimSpace(patch.Description)

	return s.mutator.Run(ctx, view.Mutation{
		Action:  dto.ActionTokensEdit,
		Input:   patch,
		Success: "Tipo de token actualizado",
		Failure: "Error al actualizar",
		Call: func(ctx context.Context) error {
			if _, ok := s.TokenType(tokenType); !ok {
				return util.NotFound("token type", tokenType)
			}

			return s.client.UpdateTokenType(ctx, tokenType, patch)
		},
	})
}

// ToggleStatus flips a token type between ACTIVO and INACTIVO and returns the
// new status.
func (s *Service) ToggleStatus(ctx context.Context, tokenType string) (string, error) {
	var next string

	err := s.mutator.Run(ctx, view.Mutation{
		Action:  dto.ActionTokensEdit,
		Failure: "Error",
		Call: func(ctx context.Context) error {
			current, ok := s.TokenType(tokenType)
			if !ok {
				return util.NotFound("token type", tokenType)
			}

			next = dto.StatusActive
			if current.Status == dto.StatusActive {
				next = dto.StatusInactive
			}

			if err := s.client.UpdateTokenType(ctx, tokenType, backend.TokenTypePatch{Status: next}); err != nil {
				return err
			}

			s.mu.Lock()
			for i := range s.tokenTypes {
				if s.tokenTypes[i].TokenType == tokenType {
					s.tokenTypes[i].Status = next
				}
			}
			s.mu.Unlock()

			return nil
		},
	})
	if err != nil {
		return "", err
	}

	if next == dto.StatusActive {
		s.mutator.Notify().Success("Tipo de token activado")
	} else {
		s.mutator.Notify().Success("Tipo de token desactivado")
	}

	return next, nil
}

// Delete removes a token type. When users still hold a balance of it the
// backend refuses; confirm decides whether to repeat the delete with force.
// It reports whether the token type was deleted.
func (s *Service) Delete(ctx context.Context, tokenType string, confirm ConfirmFunc) (bool, error) {
	cancelled := false

	err := s.mutator.Run(ctx, view.Mutation{
		Action:  dto.ActionTokensDelete,
		Failure: "Error al eliminar",
		Call: func(ctx context.Context) error {
			err := s.client.DeleteTokenType(ctx, tokenType, false)
			if err == nil || !backend.IsSentinel(err, backend.SentinelUsersHaveBalance) {
				return err
			}

			reason, _ := backend.RejectionReason(err)
			if confirm == nil || !confirm(reason) {
				cancelled = true
				return nil
			}

			return s.client.DeleteTokenType(ctx, tokenType, true)
		},
	})
	if err != nil {
		return false, err
	}

	if cancelled {
		s.mutator.Notify().Info("Eliminación cancelada")
		return false, nil
	}

	s.mutator.Notify().Success("Tipo de token eliminado")

	return true, nil
}

// ResetBalance sets every user's balance of a token type to zero. It is sent
// once and never retried.
func (s *Service) ResetBalance(ctx context.Context, tokenType string) error {
	return s.mutator.Run(ctx, view.Mutation{
		Action:  dto.ActionTokensEdit,
		Success: "Balances reiniciados",
		Failure: "Error al reiniciar balances",
		Call: func(ctx context.Context) error {
			if _, ok := s.TokenType(tokenType); !ok {
				return util.NotFound("token type", tokenType)
			}

			return s.client.ResetBalanceByTokenType(ctx, tokenType)
		},
	})
}

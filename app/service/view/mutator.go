package view

import (
	"context"
	"log/slog"

	"ctrlbx/app/dto"
	"ctrlbx/app/service/access"
	"ctrlbx/app/service/notify"
	"ctrlbx/app/util"

	"github.com/go-playground/validator/v10"
	"github.com/samber/do"
)

// Mutator runs one user triggered mutation: capability check, input
// validation, a single backend call, then a success or error notice.
type Mutator struct {
	access   *access.Service
	notify   *notify.Service
	validate *validator.Validate
}

func NewMutator(di *do.Injector) (*Mutator, error) {
	return &Mutator{
		access:   do.MustInvoke[*access.Service](di),
		notify:   do.MustInvoke[*notify.Service](di),
		validate: do.MustInvoke[*validator.Validate](di),
	}, nil
}

// Mutation describes one call. Input is validated when not nil. Failure is
// shown when the error carries no public message of its own.
type Mutation struct {
	Action  dto.Action
	Input   any
	Success string
	Failure string
	Call    func(ctx context.Context) error
}

func (m *Mutator) Run(ctx context.Context, mutation Mutation) error {
	if err := m.access.Guard(mutation.Action); err != nil {
		return m.notify.Fail(err, "No tiene permisos")
	}

	if mutation.Input != nil {
		if err := util.ValidateInput(m.validate, mutation.Input); err != nil {
			return m.notify.Fail(err, "Datos inválidos")
		}
	}

	if err := mutation.Call(ctx); err != nil {
		slog.Warn("Mutation failed",
			slog.String("action", string(mutation.Action)),
			slog.String("kind", util.ErrorKind(err)),
			slog.Any("error", err),
		)

		return m.notify.Fail(err, mutation.Failure)
	}

	if mutation.Success != "" {
		m.notify.Success(mutation.Success)
	}

	return nil
}

// Guard checks a capability and publishes the denial.
func (m *Mutator) Guard(action dto.Action) error {
	if err := m.access.Guard(action); err != nil {
		return m.notify.Fail(err, "No tiene permisos")
	}

	return nil
}

func (m *Mutator) Can(action dto.Action) bool {
	return m.access.Can(action)
}

func (m *Mutator) Notify() *notify.Service {
	return m.notify
}

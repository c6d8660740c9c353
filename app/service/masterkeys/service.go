package masterkeys

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"ctrlbx/app/client/backend"
	"ctrlbx/app/dto"
	"ctrlbx/app/service/view"
	"ctrlbx/app/util"

	"github.com/elliotchance/pie/v2"
	"github.com/samber/do"
	"github.com/samber/oops"
	"golang.org/x/sync/errgroup"
)

var serviceName = "masterkeys"

var levelLabels = map[string]string{
	dto.MasterkeyLevelGlobal: "Global",
	dto.MasterkeyLevelHouse:  "Casa",
	dto.MasterkeyLevelDevice: "Dispositivo",
}

func LevelLabel(level string) string {
	if label, ok := levelLabels[level]; ok {
		return label
	}

	return level
}

// Form is the create and edit form of a master key.
type Form struct {
	MasterkeyID     string `validate:"required"`
	MasterkeyLevel  string `validate:"required,oneof=GLOBAL HOUSE DEVICE"`
	LevelTarget     string
	State           string `validate:"required,oneof=ACTIVA INACTIVA"`
	MasterkeyHolder string
}

type Service struct {
	client  *backend.Client
	mutator *view.Mutator

	lifecycle view.Lifecycle

	mu         sync.RWMutex
	masterkeys []backend.Masterkey
	houses     []backend.House
	devices    []backend.Device
}

func New(di *do.Injector) (*Service, error) {
	return &Service{
		client:  do.MustInvoke[*backend.Client](di),
		mutator: do.MustInvoke[*view.Mutator](di),
	}, nil
}

// Load fetches the master keys with the houses and devices they can target.
func (s *Service) Load(ctx context.Context) error {
	if err := s.mutator.Guard(dto.ActionMasterkeysView); err != nil {
		return err
	}

	ctx, token := s.lifecycle.Enter(ctx)

	var (
		masterkeys []backend.Masterkey
		houses     []backend.House
		devices    []backend.Device
		keysErr    error
	)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		masterkeys, keysErr = s.client.GetMasterkeys(groupCtx)
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
		devices, err = s.client.GetDevices(groupCtx, "")
		if err != nil {
			slog.Warn("Failed to load devices", slog.String("service", serviceName), slog.Any("error", err))
		}
		return nil
	})
	_ = group.Wait()

	s.lifecycle.Commit(token, func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		s.masterkeys = masterkeys
		s.houses = houses
		s.devices = devices
	})

	if keysErr != nil {
		return s.mutator.Notify().Fail(oops.Errorf("GetMasterkeys: %w", keysErr), "Error al cargar masterkeys")
	}

	return nil
}

func (s *Service) Leave() {
	s.lifecycle.Leave()
}

func (s *Service) Visible() []backend.Masterkey {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.masterkeys
}

func (s *Service) Masterkey(id string) (backend.Masterkey, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, mk := range s.masterkeys {
		if mk.MasterkeyID == id {
			return mk, true
		}
	}

	return backend.Masterkey{}, false
}

// TargetLabel describes the target of a key with the street of its house or
// the location of its device.
func (s *Service) TargetLabel(mk backend.Masterkey) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if mk.MasterkeyLevel == dto.MasterkeyLevelGlobal {
		return "—"
	}
	if mk.LevelTarget == "" {
		return "—"
	}

	switch mk.MasterkeyLevel {
	case dto.MasterkeyLevelHouse:
		for _, h := range s.houses {
			if h.HouseID == mk.LevelTarget {
				return mk.LevelTarget + " (" + h.HouseStreet + ")"
			}
		}
	case dto.MasterkeyLevelDevice:
		for _, d := range s.devices {
			if d.Esp32ID == mk.LevelTarget {
				return mk.LevelTarget + " (" + d.Location + ")"
			}
		}
	}

	return mk.LevelTarget
}

// checkTarget enforces a target for HOUSE and DEVICE keys and clears it for
// GLOBAL ones. When the candidate list is loaded the target must be in it.
func (s *Service) checkTarget(form *Form) error {
	form.LevelTarget = strings.TrimSpace(form.LevelTarget)

	if form.MasterkeyLevel == dto.MasterkeyLevelGlobal {
		form.LevelTarget = ""
		return nil
	}

	if form.LevelTarget == "" {
		return oops.
			With("kind", util.KindValidation).
			Public("Debe seleccionar un target para el nivel elegido").
			Errorf("level %s requires a target", form.MasterkeyLevel)
	}

	s.mu.RLock()
	var candidates []string
	switch form.MasterkeyLevel {
	case dto.MasterkeyLevelHouse:
		candidates = pie.Map(s.houses, func(h backend.House) string { return h.HouseID })
	case dto.MasterkeyLevelDevice:
		candidates = pie.Map(s.devices, func(d backend.Device) string { return d.Esp32ID })
	}
	s.mu.RUnlock()

	if len(candidates) > 0 && !pie.Contains(candidates, form.LevelTarget) {
		return oops.
			With("kind", util.KindValidation).
			With("level_target", form.LevelTarget).
			Public("Target no encontrado: " + form.LevelTarget).
			Errorf("unknown %s target %s", form.MasterkeyLevel, form.LevelTarget)
	}

	return nil
}

func (s *Service) Create(ctx context.Context, form Form) error {
	form.MasterkeyID = strings.TrimSpace(form.MasterkeyID)
	form.MasterkeyHolder = strings.TrimSpace(form.MasterkeyHolder)
	if form.State == "" {
		form.State = dto.MasterkeyActive
	}

	return s.mutator.Run(ctx, view.Mutation{
		Action:  dto.ActionMasterkeysCreate,
		Input:   form,
		Success: "MasterKey creada correctamente",
		Failure: "Error al crear masterkey",
		Call: func(ctx context.Context) error {
			if err := s.checkTarget(&form); err != nil {
				return err
			}

			return s.client.CreateMasterkey(ctx, backend.MasterkeyInput{
				MasterkeyID:     form.MasterkeyID,
				MasterkeyLevel:  form.MasterkeyLevel,
				LevelTarget:     form.LevelTarget,
				State:           form.State,
				MasterkeyHolder: form.MasterkeyHolder,
			})
		},
	})
}

// Update sends level, target and state of a loaded key. A GLOBAL level clears
// the target.
func (s *Service) Update(ctx context.Context, form Form) error {
	return s.mutator.Run(ctx, view.Mutation{
		Action:  dto.ActionMasterkeysEdit,
		Input:   form,
		Success: "MasterKey actualizada correctamente",
		Failure: "Error al actualizar masterkey",
		Call: func(ctx context.Context) error {
			if _, ok := s.Masterkey(form.MasterkeyID); !ok {
				return util.NotFound("masterkey", form.MasterkeyID)
			}

			if err := s.checkTarget(&form); err != nil {
				return err
			}

			target := form.LevelTarget

			return s.client.UpdateMasterkey(ctx, form.MasterkeyID, backend.MasterkeyPatch{
				MasterkeyLevel:  form.MasterkeyLevel,
				LevelTarget:     &target,
				State:           form.State,
				MasterkeyHolder: strings.TrimSpace(form.MasterkeyHolder),
			})
		},
	})
}

// ToggleState flips a key between ACTIVA and INACTIVA and returns the new
// state.
func (s *Service) ToggleState(ctx context.Context, id string) (string, error) {
	var next string

	err := s.mutator.Run(ctx, view.Mutation{
		Action:  dto.ActionMasterkeysEdit,
		Failure: "Error",
		Call: func(ctx context.Context) error {
			mk, ok := s.Masterkey(id)
			if !ok {
				return util.NotFound("masterkey", id)
			}

			next = dto.MasterkeyActive
			if mk.State == dto.MasterkeyActive {
				next = dto.MasterkeyInactive
			}

			if err := s.client.UpdateMasterkey(ctx, id, backend.MasterkeyPatch{State: next}); err != nil {
				return err
			}

			s.mu.Lock()
			for i := range s.masterkeys {
				if s.masterkeys[i].MasterkeyID == id {
					s.masterkeys[i].State = next
				}
			}
			s.mu.Unlock()

			return nil
		},
	})
	if err != nil {
		return "", err
	}

	if next == dto.MasterkeyActive {
		s.mutator.Notify().Success("MasterKey activada")
	} else {
		s.mutator.Notify().Success("MasterKey desactivada")
	}

	return next, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	return s.mutator.Run(ctx, view.Mutation{
		Action:  dto.ActionMasterkeysDelete,
		Success: "MasterKey eliminada correctamente",
		Failure: "Error al eliminar masterkey",
		Call: func(ctx context.Context) error {
			if _, ok := s.Masterkey(id); !ok {
				return util.NotFound("masterkey", id)
			}

			return s.client.DeleteMasterkey(ctx, id)
		},
	})
}

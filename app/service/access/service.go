package access

import (
	"log/slog"
	"slices"
	"strings"

	"ctrlbx/app/dto"
	"ctrlbx/app/service/session"
	"ctrlbx/app/util"

	"github.com/rofleksey/rbac"
	"github.com/samber/do"
	"github.com/samber/oops"
)

var serviceName = "access"

var (
	everyone   = []dto.Role{dto.RoleMaster, dto.RoleAdmin, dto.RoleViewer}
	admins     = []dto.Role{dto.RoleMaster, dto.RoleAdmin}
	masterOnly = []dto.Role{dto.RoleMaster}
)

// Matrix lists the roles allowed to perform each action.
var Matrix = map[dto.Action][]dto.Role{
	dto.ActionUsersView:         everyone,
	dto.ActionUsersCreate:       admins,
	dto.ActionUsersEdit:         admins,
	dto.ActionUsersToggleStatus: admins,
	dto.ActionUsersAdjustTokens: admins,

	dto.ActionDevicesView:         everyone,
	dto.ActionDevicesCreate:       masterOnly,
	dto.ActionDevicesEdit:         masterOnly,
	dto.ActionDevicesToggleStatus: masterOnly,
	dto.ActionDevicesViewHistory:  masterOnly,

	dto.ActionLogsView:   everyone,
	dto.ActionLogsExport: admins,

	dto.ActionRolesView:         masterOnly,
	dto.ActionRolesCreate:       masterOnly,
	dto.ActionRolesEdit:         masterOnly,
	dto.ActionRolesViewAdminLog: masterOnly,

	dto.ActionTokensView:   masterOnly,
	dto.ActionTokensCreate: masterOnly,
	dto.ActionTokensEdit:   masterOnly,
	dto.ActionTokensDelete: masterOnly,

	dto.ActionHousesView:   admins,
	dto.ActionHousesCreate: masterOnly,
	dto.ActionHousesEdit:   masterOnly,
	dto.ActionHousesDelete: masterOnly,

	dto.ActionMasterkeysView:   masterOnly,
	dto.ActionMasterkeysCreate: masterOnly,
	dto.ActionMasterkeysEdit:   masterOnly,
	dto.ActionMasterkeysDelete: masterOnly,

	dto.ActionDashboardView: everyone,
}

// RoleSource is the part of the session store the matrix reads.
type RoleSource interface {
	Role() dto.Role
}

type Service struct {
	roles  RoleSource
	policy rbac.Policy
}

func New(di *do.Injector) (*Service, error) {
	return NewWith(do.MustInvoke[*session.Service](di))
}

func NewWith(roles RoleSource) (*Service, error) {
	policyBuilder := rbac.NewPolicyBuilder()

	for action := range Matrix {
		if err := policyBuilder.RegisterPermission(permission(action)); err != nil {
			return nil, oops.Errorf("failed to register permission %s: %w", action, err)
		}
	}

	for _, role := range dto.AllRoles {
		if err := policyBuilder.RegisterRole(string(role)); err != nil {
			return nil, oops.Errorf("failed to register role %s: %w", role, err)
		}
	}

	for action, allowed := range Matrix {
		for _, role := range allowed {
			if err := policyBuilder.Grant(string(role), permission(action)); err != nil {
				return nil, oops.Errorf("failed to grant permission %s for role %s: %w", action, role, err)
			}
		}
	}

	return &Service{
		roles:  roles,
		policy: policyBuilder.Build(),
	}, nil
}

// Can reports whether the current session may perform action. It fails closed
// for unknown actions, unknown roles and when nobody is logged in.
func (s *Service) Can(action dto.Action) bool {
	role := s.roles.Role()
	if role == "" || !s.policy.RoleExists(string(role)) {
		return false
	}

	if _, ok := Matrix[action]; !ok {
		return false
	}

	return s.policy.IsGranted(permission(action), string(role))
}

// Guard returns a forbidden error when the current session may not perform
// action. Callers check it before any gateway call.
func (s *Service) Guard(action dto.Action) error {
	if s.Can(action) {
		return nil
	}

	slog.Debug("Action denied",
		slog.String("service", serviceName),
		slog.String("action", string(action)),
		slog.String("role", string(s.roles.Role())),
	)

	return oops.
		With("kind", util.KindForbidden).
		With("action", action).
		Public("No tiene permisos para realizar esta acción").
		Errorf("action %s not allowed", action)
}

// CanNavigate reports whether page is reachable for the current session.
// Unknown pages are allowed.
func (s *Service) CanNavigate(page string) bool {
	action, ok := dto.PageActions[page]
	if !ok {
		return true
	}

	return s.Can(action)
}

// Permissions lists the actions granted to the current session.
func (s *Service) Permissions() []string {
	role := s.roles.Role()
	if role == "" || !s.policy.RoleExists(string(role)) {
		return nil
	}

	granted := s.policy.GetPermissions(string(role))
	actions := make([]string, 0, len(granted))
	for _, perm := range granted {
		actions = append(actions, strings.ReplaceAll(perm, ":", "."))
	}
	slices.Sort(actions)

	return actions
}

// permission maps an action key such as users.view to the policy's users:view form.
func permission(action dto.Action) string {
	return strings.ReplaceAll(string(action), ".", ":")
}

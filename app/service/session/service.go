package session

import (
	"context"
	"log/slog"
	"net/mail"
	"strings"
	"sync"

	"ctrlbx/app/client/backend"
	"ctrlbx/app/config"
	"ctrlbx/app/dto"
	"ctrlbx/app/storage"
	"ctrlbx/app/util"

	"github.com/samber/do"
	"github.com/samber/oops"
)

var serviceName = "session"

// Session is the identity of the logged in administrator.
type Session struct {
	Email string   `json:"email"`
	Role  dto.Role `json:"role"`
	Name  string   `json:"name"`
}

// Validator is the part of the gateway the session store needs.
type Validator interface {
	ValidateAdmin(ctx context.Context, email string) (*backend.ValidateAdminResponse, error)
}

type Service struct {
	kv        storage.KV
	validator Validator
	profile   string
	keys      dto.StorageKeys

	mu      sync.RWMutex
	current *Session
}

func New(di *do.Injector) (*Service, error) {
	cfg := do.MustInvoke[*config.Config](di)

	return NewWith(
		do.MustInvoke[storage.KV](di),
		do.MustInvoke[*backend.Client](di),
		cfg.Session.Profile,
	), nil
}

func NewWith(kv storage.KV, validator Validator, profile string) *Service {
	return &Service{
		kv:        kv,
		validator: validator,
		profile:   profile,
		keys:      dto.StorageKeysFor(profile),
	}
}

// Init restores a previous session from storage. It never touches the network.
func (s *Service) Init() bool {
	email, _, err := s.kv.Get(s.keys.Email)
	if err != nil {
		slog.Warn("Failed to read session email",
			slog.String("service", serviceName),
			slog.Any("error", err),
		)
		return false
	}

	role, _, err := s.kv.Get(s.keys.Role)
	if err != nil {
		slog.Warn("Failed to read session role",
			slog.String("service", serviceName),
			slog.Any("error", err),
		)
		return false
	}

	name, _, _ := s.kv.Get(s.keys.Name)

	s.mu.Lock()
	defer s.mu.Unlock()

	if email == "" || role == "" {
		s.current = nil
		return false
	}

	if name == "" {
		name = email
	}

	s.current = &Session{
		Email: email,
		Role:  dto.Role(role),
		Name:  name,
	}

	return true
}

// Login validates email against the admins table and persists the session.
func (s *Service) Login(ctx context.Context, email string) (*Session, error) {
	email = strings.TrimSpace(email)
	if s.profile == dto.ProfileMobile {
		email = strings.ToLower(email)
	}

	if _, err := mail.ParseAddress(email); err != nil || !strings.Contains(email, "@") {
		return nil, oops.
			With("kind", util.KindValidation).
			Public("Ingrese un email válido").
			Errorf("invalid email %q", email)
	}

	resp, err := s.validator.ValidateAdmin(ctx, email)
	if err != nil {
		if util.IsKind(err, util.KindRejected) {
			return nil, s.unauthorized(email, err)
		}

		return nil, err
	}

	if resp.Admin == nil {
		return nil, s.unauthorized(email, nil)
	}

	admin := resp.Admin
	if admin.Status != dto.StatusActive {
		return nil, oops.
			With("kind", util.KindInactive).
			With("email", email).
			Public("Esta cuenta está inactiva. Contacte al administrador.").
			Errorf("admin %s is inactive", email)
	}

	role := dto.Role(admin.Role)
	if s.profile == dto.ProfileMobile && role != dto.RoleMaster && role != dto.RoleAdmin {
		return nil, oops.
			With("kind", util.KindForbidden).
			With("email", email).
			With("role", role).
			Public("Solo ADMIN/MASTER").
			Errorf("role %s cannot use the mobile profile", role)
	}

	sess := &Session{
		Email: admin.Email,
		Role:  role,
		Name:  admin.Name,
	}
	if sess.Email == "" {
		sess.Email = email
	}
	if sess.Name == "" {
		sess.Name = sess.Email
	}

	if err = s.persist(sess); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.current = sess
	s.mu.Unlock()

	slog.Info("Logged in",
		slog.String("service", serviceName),
		slog.String("email", sess.Email),
		slog.String("role", string(sess.Role)),
	)

	return sess, nil
}

func (s *Service) unauthorized(email string, cause error) error {
	builder := oops.
		With("kind", util.KindUnauthorized).
		With("email", email).
		Public("Email no autorizado. Verifique sus credenciales.")

	// recorded, not wrapped
	if cause != nil {
		builder = builder.With("reason", cause.Error())
	}

	return builder.Errorf("admin %s not authorized", email)
}

// persist writes all three keys or none of them.
func (s *Service) persist(sess *Session) error {
	writes := [][2]string{
		{s.keys.Email, sess.Email},
		{s.keys.Role, string(sess.Role)},
		{s.keys.Name, sess.Name},
	}

	for i, w := range writes {
		if err := s.kv.Set(w[0], w[1]); err != nil {
			written := make([]string, 0, i)
			for _, prev := range writes[:i] {
				written = append(written, prev[0])
			}
			if delErr := s.kv.Delete(written...); delErr != nil {
				slog.Error("Failed to roll back session keys",
					slog.String("service", serviceName),
					slog.Any("error", delErr),
				)
			}

			return oops.Errorf("failed to store session key %s: %w", w[0], err)
		}
	}

	return nil
}

// Logout clears the stored and in-memory session. Storage failures are logged.
func (s *Service) Logout() {
	if err := s.kv.Delete(s.keys.All()...); err != nil {
		slog.Error("Failed to clear session keys",
			slog.String("service", serviceName),
			slog.Any("error", err),
		)
	}

	s.mu.Lock()
	s.current = nil
	s.mu.Unlock()
}

// User returns a copy of the current session, nil when logged out.
func (s *Service) User() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.current == nil {
		return nil
	}

	sess := *s.current

	return &sess
}

func (s *Service) Role() dto.Role {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.current == nil {
		return ""
	}

	return s.current.Role
}

func (s *Service) Email() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.current == nil {
		return ""
	}

	return s.current.Email
}

func (s *Service) IsLoggedIn() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.current != nil
}

func (s *Service) HasRole(role dto.Role) bool {
	return s.IsLoggedIn() && s.Role() == role
}

func (s *Service) IsMaster() bool {
	return s.HasRole(dto.RoleMaster)
}

// IsAdmin is true for ADMIN and MASTER.
func (s *Service) IsAdmin() bool {
	return s.HasRole(dto.RoleMaster) || s.HasRole(dto.RoleAdmin)
}

func (s *Service) Profile() string {
	return s.profile
}

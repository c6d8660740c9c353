// Package servicetest wires the services against an in-process fake backend.
package servicetest

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"ctrlbx/app/client/backend"
	"ctrlbx/app/config"
	"ctrlbx/app/dto"
	"ctrlbx/app/service/access"
	"ctrlbx/app/service/notify"
	"ctrlbx/app/service/session"
	"ctrlbx/app/service/view"
	"ctrlbx/app/storage"
	"ctrlbx/app/util"

	"github.com/go-playground/validator/v10"
	"github.com/samber/do"
	"github.com/stretchr/testify/require"
)

// Request is one call received by the fake backend.
type Request struct {
	Action string
	Method string
	Params url.Values
	Body   map[string]any
}

// Handler answers one action. The result is encoded as JSON; return an
// HTTPStatus to fail at the transport level.
type Handler func(req Request) any

type HTTPStatus int

// OK is a bare success envelope.
func OK(fields map[string]any) map[string]any {
	result := map[string]any{"success": true}
	for k, v := range fields {
		result[k] = v
	}

	return result
}

// Reject is a domain rejection with reason.
func Reject(reason string) map[string]any {
	return map[string]any{"success": false, "error": reason}
}

// Static always returns v.
func Static(v any) Handler {
	return func(Request) any { return v }
}

type Backend struct {
	server *httptest.Server

	mu       sync.Mutex
	routes   map[string]Handler
	requests []Request
}

func NewBackend(t *testing.T, routes map[string]Handler) *Backend {
	t.Helper()

	b := &Backend{routes: routes}
	b.server = httptest.NewServer(http.HandlerFunc(b.serve))
	t.Cleanup(b.server.Close)

	return b
}

func (b *Backend) URL() string {
	return b.server.URL
}

// Route replaces the handler of an action.
func (b *Backend) Route(action string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.routes[action] = handler
}

func (b *Backend) serve(w http.ResponseWriter, r *http.Request) {
	req := Request{
		Method: r.Method,
		Params: r.URL.Query(),
		Body:   map[string]any{},
	}

	if r.Method == http.MethodPost {
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &req.Body)
		req.Action, _ = req.Body["action"].(string)
	} else {
		req.Action = req.Params.Get("action")
	}

	b.mu.Lock()
	b.requests = append(b.requests, req)
	handler, ok := b.routes[req.Action]
	b.mu.Unlock()

	var result any = Reject("unknown action " + req.Action)
	if ok {
		result = handler(req)
	}

	if status, isStatus := result.(HTTPStatus); isStatus {
		w.WriteHeader(int(status))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(result)
}

// Requests returns the received calls of action, or all calls when empty.
func (b *Backend) Requests(action string) []Request {
	b.mu.Lock()
	defer b.mu.Unlock()

	var result []Request
	for _, req := range b.requests {
		if action == "" || req.Action == action {
			result = append(result, req)
		}
	}

	return result
}

// Env is a wired injector logged in with a given role.
type Env struct {
	DI      *do.Injector
	Backend *Backend
	Config  *config.Config
	Session *session.Service
	Notify  *notify.Service
}

const Email = "admin@ctrlbx.test"

// New builds an injector backed by a fake backend. An empty role leaves the
// session logged out.
func New(t *testing.T, role dto.Role, routes map[string]Handler) *Env {
	t.Helper()

	return NewWithProfile(t, role, dto.ProfileWeb, routes)
}

// NewWithProfile is New for a given session profile.
func NewWithProfile(t *testing.T, role dto.Role, profile string, routes map[string]Handler) *Env {
	t.Helper()

	if routes == nil {
		routes = map[string]Handler{}
	}
	fake := NewBackend(t, routes)

	cfg := &config.Config{}
	cfg.ServiceName = "ctrlbx"
	cfg.Backend.URL = fake.URL()
	cfg.Backend.Timeout = 5
	cfg.Backend.ReadAttempts = 1
	cfg.Session.Profile = profile
	cfg.UI.OfflineThresholdMin = 5
	cfg.UI.LogsLimit = 200
	cfg.UI.RefreshInterval = 60

	keys := dto.StorageKeysFor(profile)
	kv := storage.NewMemory()
	if role != "" {
		require.NoError(t, kv.Set(keys.Email, Email))
		require.NoError(t, kv.Set(keys.Role, string(role)))
	}

	di := do.New()
	do.ProvideValue(di, cfg)
	do.ProvideValue[storage.KV](di, kv)
	do.ProvideValue(di, util.NewValidator())
	do.ProvideValue(di, backend.New(cfg, kv, http.DefaultClient))
	do.Provide(di, session.New)
	do.Provide(di, access.New)
	do.Provide(di, notify.New)
	do.Provide(di, view.NewMutator)

	sess := do.MustInvoke[*session.Service](di)
	sess.Init()

	t.Cleanup(func() {
		_ = di.Shutdown()
	})

	return &Env{
		DI:      di,
		Backend: fake,
		Config:  cfg,
		Session: sess,
		Notify:  do.MustInvoke[*notify.Service](di),
	}
}

// LastNotice returns the most recent notice, or an empty one.
func (e *Env) LastNotice() notify.Notice {
	recent := e.Notify.Recent()
	if len(recent) == 0 {
		return notify.Notice{}
	}

	return recent[len(recent)-1]
}

// Validator is exported for packages that build inputs by hand.
func (e *Env) Validator() *validator.Validate {
	return do.MustInvoke[*validator.Validate](e.DI)
}

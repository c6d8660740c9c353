package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"ctrlbx/app/config"
	"ctrlbx/app/dto"
	"ctrlbx/app/storage"
	"ctrlbx/app/util"

	"github.com/avast/retry-go"
	"github.com/google/uuid"
	"github.com/jellydator/ttlcache/v3"
	"github.com/samber/do"
	"github.com/samber/oops"
	"golang.org/x/time/rate"
)

// SentinelUsersHaveBalance is returned by deleteTokenType when users still hold
// a balance of the token type; the delete can be repeated with force=true.
const SentinelUsersHaveBalance = "users_have_balance"

// Actions whose responses may be served from the reference cache.
var cacheableActions = map[string]bool{
	"getHouses":     true,
	"getTokenTypes": true,
}

// Client translates named backend actions into GET/POST calls against the
// single Apps Script endpoint.
type Client struct {
	cfg     *config.Config
	kv      storage.KV
	client  *http.Client
	limiter *rate.Limiter

	reference *ttlcache.Cache[string, []byte]
}

func NewClient(di *do.Injector) (*Client, error) {
	cfg := do.MustInvoke[*config.Config](di)

	transport, err := util.NewRotatingProxyTransport(cfg.Backend.Proxies)
	if err != nil {
		return nil, oops.Errorf("NewRotatingProxyTransport: %w", err)
	}

	return New(cfg, do.MustInvoke[storage.KV](di), &http.Client{
		Timeout:   time.Duration(cfg.Backend.Timeout) * time.Second,
		Transport: transport,
	}), nil
}

// New builds a client around an existing http.Client.
func New(cfg *config.Config, kv storage.KV, httpClient *http.Client) *Client {
	c := &Client{
		cfg:    cfg,
		kv:     kv,
		client: httpClient,
	}

	if cfg.Backend.RateLimitRPS > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.Backend.RateLimitRPS), 1)
	}

	if cfg.Backend.ReferenceTTL > 0 {
		c.reference = ttlcache.New[string, []byte](
			ttlcache.WithTTL[string, []byte](time.Duration(cfg.Backend.ReferenceTTL) * time.Second),
		)
	}

	return c
}

// BaseURL returns the stored endpoint URL, falling back to the configured one.
func (c *Client) BaseURL() (string, error) {
	stored, ok, err := c.kv.Get(dto.BackendURLKey)
	if err != nil {
		return "", oops.Errorf("kv.Get: %w", err)
	}
	if ok && stored != "" {
		return stored, nil
	}

	if c.cfg.Backend.URL != "" {
		return c.cfg.Backend.URL, nil
	}

	return "", oops.
		With("kind", util.KindConfig).
		Public("URL del backend no configurada").
		Errorf("backend url not configured")
}

// SetBaseURL validates and persists the endpoint URL.
func (c *Client) SetBaseURL(raw string) error {
	raw = strings.TrimSpace(raw)

	parsed, err := url.Parse(raw)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return oops.
			With("kind", util.KindValidation).
			Public("URL de backend inválida").
			Errorf("invalid backend url %q", raw)
	}

	if err = c.kv.Set(dto.BackendURLKey, raw); err != nil {
		return oops.Errorf("kv.Set: %w", err)
	}

	c.purgeReference()

	return nil
}

// Get performs a read-only action. params are sent as query parameters next to
// the action name; out must embed Envelope.
func (c *Client) Get(ctx context.Context, action string, params map[string]string, out enveloped) error {
	baseURL, err := c.BaseURL()
	if err != nil {
		return err
	}

	query := url.Values{}
	query.Set("action", action)
	for k, v := range params {
		query.Set(k, v)
	}
	fullURL := baseURL + "?" + query.Encode()

	cacheKey := query.Encode()
	if c.reference != nil && cacheableActions[action] {
		if item := c.reference.Get(cacheKey); item != nil {
			return c.decode(action, item.Value(), out)
		}
	}

	var body []byte
	fetch := func() error {
		var fetchErr error
		body, fetchErr = c.do(ctx, action, http.MethodGet, fullURL, nil)
		return fetchErr
	}

	if c.cfg.Backend.ReadAttempts > 1 {
		err = retry.Do(fetch,
			retry.Attempts(c.cfg.Backend.ReadAttempts),
			retry.Delay(500*time.Millisecond),
			retry.Context(ctx),
			retry.LastErrorOnly(true),
			retry.RetryIf(func(err error) bool {
				return util.IsKind(err, util.KindNetwork)
			}),
		)
	} else {
		err = fetch()
	}
	if err != nil {
		return err
	}

	if err = c.decode(action, body, out); err != nil {
		return err
	}

	if c.reference != nil && cacheableActions[action] {
		c.reference.Set(cacheKey, body, ttlcache.DefaultTTL)
	}

	return nil
}

// Post performs a mutation. data must marshal to a JSON object; the action name
// is merged into it. The body is sent as text/plain so that browsers talking to
// the same deployment skip the CORS preflight the backend cannot answer.
// Mutations are never retried.
func (c *Client) Post(ctx context.Context, action string, data any, out enveloped) error {
	baseURL, err := c.BaseURL()
	if err != nil {
		return err
	}

	payload, err := buildPayload(action, data)
	if err != nil {
		return oops.Errorf("buildPayload: %w", err)
	}

	body, err := c.do(ctx, action, http.MethodPost, baseURL, payload)
	if err != nil {
		return err
	}

	if out == nil {
		out = &Envelope{}
	}
	if err = c.decode(action, body, out); err != nil {
		return err
	}

	c.purgeReference()

	return nil
}

func buildPayload(action string, data any) ([]byte, error) {
	fields := map[string]any{}

	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("json.Marshal: %w", err)
		}
		if err = json.Unmarshal(raw, &fields); err != nil {
			return nil, fmt.Errorf("payload is not an object: %w", err)
		}
	}

	fields["action"] = action

	return json.Marshal(fields)
}

func (c *Client) do(ctx context.Context, action, method, target string, payload []byte) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, oops.
				With("kind", util.KindNetwork).
				Errorf("rate limiter: %w", err)
		}
	}

	requestID := uuid.NewString()
	started := time.Now()

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, oops.Errorf("failed to create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "text/plain;charset=utf-8")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		slog.DebugContext(ctx, "Backend request failed",
			slog.String("action", action),
			slog.String("request_id", requestID),
			slog.Any("error", err),
		)

		return nil, oops.
			With("kind", util.KindNetwork).
			Public("Error de conexión").
			Errorf("%s %s: %w", method, action, err)
	}
	defer resp.Body.Close()

	slog.DebugContext(ctx, "Backend request",
		slog.String("action", action),
		slog.String("method", method),
		slog.String("request_id", requestID),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(started)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, oops.
			With("kind", util.KindNetwork).
			With("status_code", resp.StatusCode).
			Public("Error de conexión").
			Errorf("HTTP error! status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, oops.
			With("kind", util.KindNetwork).
			Public("Error de conexión").
			Errorf("failed to read response: %w", err)
	}

	return body, nil
}

func (c *Client) decode(action string, body []byte, out enveloped) error {
	if err := json.Unmarshal(body, out); err != nil {
		return oops.
			With("kind", util.KindNetwork).
			Public("Respuesta inválida del servidor").
			Errorf("failed to decode %s response: %w", action, err)
	}

	env := out.envelope()
	if !env.Success {
		reason := env.Error
		if reason == "" {
			reason = "request rejected"
		}

		return oops.
			With("kind", util.KindRejected).
			With("reason", reason).
			Public(reason).
			Errorf("%s rejected: %s", action, reason)
	}

	return nil
}

func (c *Client) purgeReference() {
	if c.reference != nil {
		c.reference.DeleteAll()
	}
}

// RejectionReason returns the backend reason of a domain rejection.
func RejectionReason(err error) (string, bool) {
	if !util.IsKind(err, util.KindRejected) {
		return "", false
	}

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return "", false
	}

	reason, ok := oopsErr.Context()["reason"].(string)

	return reason, ok
}

// IsSentinel reports whether err is a domain rejection whose reason is, or
// mentions, the given machine readable sentinel.
func IsSentinel(err error, sentinel string) bool {
	reason, ok := RejectionReason(err)

	return ok && strings.Contains(reason, sentinel)
}

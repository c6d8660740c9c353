package backend

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"ctrlbx/app/config"
	"ctrlbx/app/dto"
	"ctrlbx/app/storage"
	"ctrlbx/app/util"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, url string, mutate ...func(*config.Config)) *Client {
	t.Helper()

	cfg := &config.Config{}
	cfg.Backend.URL = url
	cfg.Backend.Timeout = 5
	cfg.Backend.ReadAttempts = 1
	for _, fn := range mutate {
		fn(cfg)
	}

	return New(cfg, storage.NewMemory(), http.DefaultClient)
}

func TestGetSendsActionAndParams(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "validateAdmin", r.URL.Query().Get("action"))
		assert.Equal(t, "a@b.com", r.URL.Query().Get("email"))
		_, _ = io.WriteString(w, `{"success":true,"admin":{"email":"a@b.com","role":"ADMIN","name":"Ana","status":"ACTIVO"}}`)
	}))
	defer srv.Close()

	resp, err := newTestClient(t, srv.URL).ValidateAdmin(context.Background(), "a@b.com")
	require.NoError(t, err)
	require.NotNil(t, resp.Admin)
	assert.Equal(t, "Ana", resp.Admin.Name)
	assert.Equal(t, "ADMIN", resp.Admin.Role)
}

func TestPostUsesPlainTextBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "text/plain;charset=utf-8", r.Header.Get("Content-Type"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "updateTokenBalance", body["action"])
		assert.Equal(t, "U1", body["uid"])
		assert.Equal(t, "LAUNDRY", body["token_type"])
		assert.InDelta(t, -2, body["delta"], 0)

		_, _ = io.WriteString(w, `{"success":true}`)
	}))
	defer srv.Close()

	err := newTestClient(t, srv.URL).UpdateTokenBalance(context.Background(), "U1", "LAUNDRY", -2)
	require.NoError(t, err)
}

func TestUpdateMergesKeyIntoPatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]any{
			"action": "updateAdmin",
			"email":  "x@y.com",
			"status": "INACTIVO",
		}, body)

		_, _ = io.WriteString(w, `{"success":true}`)
	}))
	defer srv.Close()

	err := newTestClient(t, srv.URL).UpdateAdmin(context.Background(), "x@y.com", AdminPatch{Status: dto.StatusInactive})
	require.NoError(t, err)
}

func TestMissingURLFailsBeforeIO(t *testing.T) {
	_, err := newTestClient(t, "").GetUsers(context.Background())
	require.Error(t, err)
	assert.Equal(t, util.KindConfig, util.ErrorKind(err))
}

func TestStoredURLTakesPrecedence(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		_, _ = io.WriteString(w, `{"success":true,"users":[]}`)
	}))
	defer srv.Close()

	client := newTestClient(t, "http://127.0.0.1:1/unused")
	require.NoError(t, client.SetBaseURL(srv.URL))

	_, err := client.GetUsers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load())

	require.Error(t, client.SetBaseURL("not a url"))
}

func TestErrorKinds(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		kind     string
		sentinel bool
	}{
		{name: "http status", status: http.StatusInternalServerError, body: `oops`, kind: util.KindNetwork},
		{name: "bad json", status: http.StatusOK, body: `<html>`, kind: util.KindNetwork},
		{name: "rejection", status: http.StatusOK, body: `{"success":false,"error":"Casa no encontrada"}`, kind: util.KindRejected},
		{name: "sentinel", status: http.StatusOK, body: `{"success":false,"error":"users_have_balance"}`, kind: util.KindRejected, sentinel: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			err := newTestClient(t, srv.URL).DeleteTokenType(context.Background(), "LAUNDRY", false)
			require.Error(t, err)
			assert.Equal(t, tt.kind, util.ErrorKind(err))
			assert.Equal(t, tt.sentinel, IsSentinel(err, SentinelUsersHaveBalance))
		})
	}
}

func TestRejectionReasonIsVerbatim(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"success":false,"error":"Casa no encontrada"}`)
	}))
	defer srv.Close()

	err := newTestClient(t, srv.URL).DeleteHouse(context.Background(), "H9")

	reason, ok := RejectionReason(err)
	require.True(t, ok)
	assert.Equal(t, "Casa no encontrada", reason)
	assert.Equal(t, "Casa no encontrada", oops.GetPublic(err, ""))
}

func TestReadRetries(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = io.WriteString(w, `{"success":true,"houses":[{"house_id":"H1","house_number":12}]}`)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, func(cfg *config.Config) {
		cfg.Backend.ReadAttempts = 3
	})

	houses, err := client.GetHouses(context.Background())
	require.NoError(t, err)
	require.Len(t, houses, 1)
	assert.Equal(t, FlexString("12"), houses[0].HouseNumber)
	assert.Equal(t, int32(3), hits.Load())
}

func TestSingleAttemptByDefault(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL).GetHouses(context.Background())
	require.Error(t, err)
	assert.Equal(t, int32(1), hits.Load())
}

func TestMutationsAreNotRetried(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, func(cfg *config.Config) {
		cfg.Backend.ReadAttempts = 5
	})

	require.Error(t, client.ResetBalanceByTokenType(context.Background(), "LAUNDRY"))
	assert.Equal(t, int32(1), hits.Load())
}

func TestReferenceCachePurgedByMutation(t *testing.T) {
	var reads atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			reads.Add(1)
			_, _ = io.WriteString(w, `{"success":true,"token_types":[{"token_type":"LAUNDRY","token_name":"Lavadora"}]}`)
			return
		}
		_, _ = io.WriteString(w, `{"success":true}`)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, func(cfg *config.Config) {
		cfg.Backend.ReferenceTTL = 60
	})
	ctx := context.Background()

	_, err := client.GetTokenTypes(ctx)
	require.NoError(t, err)
	_, err = client.GetTokenTypes(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(1), reads.Load())

	require.NoError(t, client.CreateTokenType(ctx, TokenTypeInput{TokenType: "DRYER", TokenName: "Secadora"}))

	_, err = client.GetTokenTypes(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(2), reads.Load())
}

func TestDevicesAreNormalized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "admin@b.com", r.URL.Query().Get("admin_email"))
		_, _ = io.WriteString(w, `{"success":true,"devices":[
			{"esp32_id":"E1","active":"TRUE","time_window_start":"1899-12-30T07:30:00.000Z","time_window_end":0.75,"time_limit_min":"15"},
			{"esp32_id":"E2","active":"no","time_window_start":"","time_window_end":null}
		]}`)
	}))
	defer srv.Close()

	devices, err := newTestClient(t, srv.URL).GetDevices(context.Background(), "admin@b.com")
	require.NoError(t, err)
	require.Len(t, devices, 2)

	assert.True(t, bool(devices[0].Active))
	assert.Equal(t, ClockTime("07:30"), devices[0].TimeWindowStart)
	assert.Equal(t, ClockTime("18:00"), devices[0].TimeWindowEnd)
	assert.Equal(t, FlexInt(15), devices[0].TimeLimitMin)

	assert.False(t, bool(devices[1].Active))
	assert.Equal(t, ClockTime(DefaultWindowStart), devices[1].TimeWindowStart)
	assert.Equal(t, ClockTime(DefaultWindowEnd), devices[1].TimeWindowEnd)
}

func TestChartQueryOmitsEmptyDimensions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "2026-10-01", q.Get("start_date"))
		assert.Equal(t, "H1,H2", q.Get("house_ids"))
		assert.Equal(t, "ACCESS_GRANTED", q.Get("event_types"))
		assert.False(t, q.Has("token_types"))
		_, _ = io.WriteString(w, `{"success":true,"chart_data":[{"date":"2026-10-02","token_type":"LAUNDRY","count":"3"}]}`)
	}))
	defer srv.Close()

	points, err := newTestClient(t, srv.URL).GetChartData(context.Background(), ChartQuery{
		StartDate:  "2026-10-01",
		EndDate:    "2026-10-19",
		HouseIDs:   []string{"H1", "H2"},
		EventTypes: []string{"ACCESS_GRANTED"},
	})
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, FlexInt(3), points[0].Count)
}

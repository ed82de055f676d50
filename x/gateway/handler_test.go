package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/novunt/client-core/x/backend"
	"github.com/novunt/client-core/x/bonus"
	"github.com/novunt/client-core/x/clock"
	"github.com/novunt/client-core/x/ttlcache"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type testGateway struct {
	router   *mux.Router
	registry *Registry
	backend  *fakeBackend
	clock    *clock.Manual
	dayStart *ttlcache.Entry[backend.DayStart]
}

func newTestGateway(t *testing.T) *testGateway {
	t.Helper()
	clk := clock.NewManual(t0)
	fb := &fakeBackend{}

	cfg := DefaultConfig(zerolog.Nop())
	cfg.Clock = clk
	reg := NewRegistry(cfg, fb)
	t.Cleanup(func() { _ = reg.Close(context.Background()) })

	dayStart := ttlcache.New[backend.DayStart](ttlcache.DefaultTTL, clk.Now)
	h := NewHandler(reg, fb, dayStart, zerolog.Nop())
	r := mux.NewRouter()
	h.RegisterMux(r)

	return &testGateway{router: r, registry: reg, backend: fb, clock: clk, dayStart: dayStart}
}

func (g *testGateway) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	g.router.ServeHTTP(rec, req)
	return rec
}

type errorEnvelope struct {
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorEnvelope {
	t.Helper()
	var env errorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func validWithdrawal() map[string]any {
	return map[string]any{
		"amount":  "25.5",
		"asset":   "USDT",
		"network": "TRC20",
		"address": "TXYZ",
	}
}

func TestHandler_RequiresBearerToken(t *testing.T) {
	t.Parallel()
	g := newTestGateway(t)

	for _, path := range []string{routeCooldown, routeBonus} {
		rec := g.do(t, http.MethodGet, path, "", nil)
		require.Equal(t, http.StatusUnauthorized, rec.Code, path)
		require.Equal(t, "missing_token", decodeError(t, rec).Error.Code)
	}
	require.Zero(t, g.registry.Len())
}

func TestHandler_WithdrawAccepted(t *testing.T) {
	t.Parallel()
	g := newTestGateway(t)

	rec := g.do(t, http.MethodPost, routeWithdrawals, "tok-a", validWithdrawal())
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp withdrawResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "wd-1", resp.Receipt.ID)
	require.NotEmpty(t, resp.IdempotencyKey)

	require.Len(t, g.backend.withdrawals, 1)
	got := g.backend.withdrawals[0]
	require.Equal(t, "tok-a", got.token)
	require.Equal(t, resp.IdempotencyKey, got.key)
	require.Equal(t, "25.5", got.req.Amount.String())
}

func TestHandler_WithdrawKeepsClientIdempotencyKey(t *testing.T) {
	t.Parallel()
	g := newTestGateway(t)

	body := validWithdrawal()
	body["idempotency_key"] = "key-1"
	rec := g.do(t, http.MethodPost, routeWithdrawals, "tok-a", body)
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Equal(t, "key-1", g.backend.withdrawals[0].key)
}

func TestHandler_WithdrawValidation(t *testing.T) {
	t.Parallel()
	g := newTestGateway(t)

	cases := []struct {
		name   string
		mutate func(map[string]any)
		code   string
	}{
		{"zero amount", func(b map[string]any) { b["amount"] = "0" }, "invalid_amount"},
		{"negative amount", func(b map[string]any) { b["amount"] = "-1" }, "invalid_amount"},
		{"no asset", func(b map[string]any) { delete(b, "asset") }, "missing_asset"},
		{"blank address", func(b map[string]any) { b["address"] = "  " }, "missing_address"},
	}
	for _, tc := range cases {
		body := validWithdrawal()
		tc.mutate(body)
		rec := g.do(t, http.MethodPost, routeWithdrawals, "tok-a", body)
		require.Equal(t, http.StatusBadRequest, rec.Code, tc.name)
		require.Equal(t, tc.code, decodeError(t, rec).Error.Code, tc.name)
	}

	req := httptest.NewRequest(http.MethodPost, routeWithdrawals, bytes.NewBufferString("{"))
	req.Header.Set("Authorization", "Bearer tok-a")
	rec := httptest.NewRecorder()
	g.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "invalid_json", decodeError(t, rec).Error.Code)

	require.Zero(t, g.backend.withdrawCount())
}

func TestHandler_WithdrawGuardRejectsRapidResubmit(t *testing.T) {
	t.Parallel()
	g := newTestGateway(t)

	require.Equal(t, http.StatusAccepted, g.do(t, http.MethodPost, routeWithdrawals, "tok-a", validWithdrawal()).Code)

	rec := g.do(t, http.MethodPost, routeWithdrawals, "tok-a", validWithdrawal())
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	env := decodeError(t, rec)
	require.Equal(t, "submit_rejected", env.Error.Code)
	require.EqualValues(t, 1500, env.Error.Details["ready_in_ms"])
	require.EqualValues(t, 1500, env.Error.Details["cooldown_ms"])
	require.Equal(t, 1, g.backend.withdrawCount())

	// Another user is not affected.
	require.Equal(t, http.StatusAccepted, g.do(t, http.MethodPost, routeWithdrawals, "tok-b", validWithdrawal()).Code)

	g.clock.Advance(1500 * time.Millisecond)
	require.Equal(t, http.StatusAccepted, g.do(t, http.MethodPost, routeWithdrawals, "tok-a", validWithdrawal()).Code)
	require.Equal(t, 3, g.backend.withdrawCount())
}

func TestHandler_WithdrawWaitStartsCooldown(t *testing.T) {
	t.Parallel()
	g := newTestGateway(t)
	g.backend.set(func(f *fakeBackend) {
		f.withdrawErr = &backend.APIError{
			StatusCode: http.StatusTooManyRequests,
			Code:       "WITHDRAWAL_COOLDOWN",
			Message:    "Please wait",
			Wait:       45 * time.Second,
		}
	})

	rec := g.do(t, http.MethodPost, routeWithdrawals, "tok-a", validWithdrawal())
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	env := decodeError(t, rec)
	require.Equal(t, "cooldown_started", env.Error.Code)
	require.Equal(t, "Please wait", env.Error.Message)
	require.EqualValues(t, 45, env.Error.Details["wait_seconds"])

	var cd cooldownResp
	rec = g.do(t, http.MethodGet, routeCooldown, "tok-a", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cd))
	require.Equal(t, int64(45000), cd.RemainingMs)
	require.False(t, cd.Expired)

	g.clock.Advance(10 * time.Second)
	g.backend.set(func(f *fakeBackend) { f.withdrawErr = nil })

	rec = g.do(t, http.MethodPost, routeWithdrawals, "tok-a", validWithdrawal())
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	env = decodeError(t, rec)
	require.Equal(t, "cooldown_active", env.Error.Code)
	require.EqualValues(t, 35000, env.Error.Details["remaining_ms"])
	require.Equal(t, 1, g.backend.withdrawCount())

	g.clock.Advance(35 * time.Second)
	rec = g.do(t, http.MethodGet, routeCooldown, "tok-a", nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cd))
	require.True(t, cd.Expired)
	require.Zero(t, cd.RemainingMs)

	require.Equal(t, http.StatusAccepted, g.do(t, http.MethodPost, routeWithdrawals, "tok-a", validWithdrawal()).Code)
}

func TestHandler_WithdrawBackendErrors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{
			name:   "rejected",
			err:    &backend.APIError{StatusCode: http.StatusBadRequest, Code: "INSUFFICIENT_BALANCE", Message: "not enough"},
			status: http.StatusBadRequest,
			code:   "INSUFFICIENT_BALANCE",
		},
		{
			name:   "unsuccessful envelope",
			err:    &backend.APIError{StatusCode: http.StatusOK, Message: "invalid 2FA code"},
			status: http.StatusUnprocessableEntity,
			code:   "backend_rejected",
		},
		{
			name:   "rate limited without wait",
			err:    &backend.APIError{StatusCode: http.StatusTooManyRequests},
			status: http.StatusTooManyRequests,
			code:   "backend_rejected",
		},
		{
			name:   "server error",
			err:    &backend.APIError{StatusCode: http.StatusInternalServerError},
			status: http.StatusBadGateway,
			code:   "backend_unavailable",
		},
		{
			name:   "transport",
			err:    errors.New("connection refused"),
			status: http.StatusBadGateway,
			code:   "backend_unavailable",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			g := newTestGateway(t)
			g.backend.set(func(f *fakeBackend) { f.withdrawErr = tc.err })

			rec := g.do(t, http.MethodPost, routeWithdrawals, "tok-a", validWithdrawal())
			require.Equal(t, tc.status, rec.Code)
			require.Equal(t, tc.code, decodeError(t, rec).Error.Code)

			var cd cooldownResp
			rec = g.do(t, http.MethodGet, routeCooldown, "tok-a", nil)
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cd))
			require.True(t, cd.Expired)
		})
	}
}

func TestHandler_UnauthorizedDropsSession(t *testing.T) {
	t.Parallel()
	g := newTestGateway(t)
	g.backend.set(func(f *fakeBackend) {
		f.withdrawErr = &backend.APIError{StatusCode: http.StatusUnauthorized, Message: "token expired"}
	})

	rec := g.do(t, http.MethodPost, routeWithdrawals, "tok-a", validWithdrawal())
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "unauthorized", decodeError(t, rec).Error.Code)
	require.Zero(t, g.registry.Len())
}

func TestHandler_BonusStartsPolling(t *testing.T) {
	t.Parallel()
	g := newTestGateway(t)
	g.backend.set(func(f *fakeBackend) {
		f.snapshot = bonus.Snapshot{
			PeriodID:  "p1",
			Completed: []bonus.StepID{bonus.StepRegistration, bonus.StepTwoFactorSetup},
		}
	})

	rec := g.do(t, http.MethodGet, routeBonus, "tok-a", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp bonusResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 40, resp.CompletionPercent)
	require.False(t, resp.AllRequirementsMet)
	require.NotNil(t, resp.NextStep)
	require.Equal(t, bonus.StepWithdrawalAddress, *resp.NextStep)
	require.Equal(t, "p1", resp.PeriodID)
	require.NotNil(t, resp.UpdatedAt)
	require.True(t, resp.Polling)
	require.Len(t, resp.Steps, len(bonus.DefaultSteps))

	// The poller waits a full interval after the request's own fetch.
	require.Eventually(t, func() bool { return g.clock.Pending() == 1 }, time.Second, time.Millisecond)
	require.Equal(t, 1, g.backend.fetchCount())
	g.clock.Advance(bonus.DefaultRefreshInterval)
	require.Eventually(t, func() bool { return g.backend.fetchCount() == 2 }, time.Second, time.Millisecond)
}

func TestHandler_BonusAllMetDoesNotPoll(t *testing.T) {
	t.Parallel()
	g := newTestGateway(t)
	g.backend.set(func(f *fakeBackend) {
		f.snapshot = bonus.Snapshot{PeriodID: "p1", Completed: bonus.DefaultSteps}
	})

	rec := g.do(t, http.MethodGet, routeBonus, "tok-a", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp bonusResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 100, resp.CompletionPercent)
	require.True(t, resp.AllRequirementsMet)
	require.Nil(t, resp.NextStep)
	require.False(t, resp.Polling)
}

func TestHandler_BonusRefresh(t *testing.T) {
	t.Parallel()
	g := newTestGateway(t)
	g.backend.set(func(f *fakeBackend) {
		f.snapshot = bonus.Snapshot{PeriodID: "p1", Completed: []bonus.StepID{bonus.StepRegistration}}
	})
	require.Equal(t, http.StatusOK, g.do(t, http.MethodGet, routeBonus, "tok-a", nil).Code)

	g.backend.set(func(f *fakeBackend) {
		f.snapshot = bonus.Snapshot{PeriodID: "p1", Completed: bonus.DefaultSteps}
	})

	rec := g.do(t, http.MethodPost, routeBonusRefresh, "tok-a", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp bonusResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 100, resp.CompletionPercent)
	require.True(t, resp.AllRequirementsMet)
}

func TestHandler_BonusFetchError(t *testing.T) {
	t.Parallel()
	g := newTestGateway(t)
	g.backend.set(func(f *fakeBackend) { f.bonusErr = errors.New("dial tcp: refused") })

	rec := g.do(t, http.MethodGet, routeBonus, "tok-a", nil)
	require.Equal(t, http.StatusBadGateway, rec.Code)
	require.Equal(t, "backend_unavailable", decodeError(t, rec).Error.Code)
}

func TestHandler_DayStartCached(t *testing.T) {
	t.Parallel()
	g := newTestGateway(t)
	g.backend.set(func(f *fakeBackend) {
		f.dayStart = backend.DayStart{Timezone: "UTC", StartTime: "00:00"}
	})

	for range 3 {
		rec := g.do(t, http.MethodGet, routePlatformStart, "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var resp dayStartResp
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Equal(t, "00:00", resp.DayStart.StartTime)
		require.False(t, resp.Stale)
		require.NotNil(t, resp.FetchedAt)
	}
	require.Equal(t, 1, g.backend.dayStartCalls())

	g.clock.Advance(ttlcache.DefaultTTL)
	require.Equal(t, http.StatusOK, g.do(t, http.MethodGet, routePlatformStart, "", nil).Code)
	require.Equal(t, 2, g.backend.dayStartCalls())
}

func TestHandler_DayStartServesStaleOnFailure(t *testing.T) {
	t.Parallel()
	g := newTestGateway(t)
	g.backend.set(func(f *fakeBackend) {
		f.dayStart = backend.DayStart{Timezone: "UTC", StartTime: "00:00"}
	})
	require.Equal(t, http.StatusOK, g.do(t, http.MethodGet, routePlatformStart, "", nil).Code)

	g.dayStart.Invalidate()
	g.backend.set(func(f *fakeBackend) { f.dayErr = errors.New("timeout") })

	rec := g.do(t, http.MethodGet, routePlatformStart, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp dayStartResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.Stale)
	require.Equal(t, "UTC", resp.DayStart.Timezone)
	require.Nil(t, resp.FetchedAt)
}

func TestHandler_DayStartUnavailable(t *testing.T) {
	t.Parallel()
	g := newTestGateway(t)
	g.backend.set(func(f *fakeBackend) { f.dayErr = errors.New("timeout") })

	rec := g.do(t, http.MethodGet, routePlatformStart, "", nil)
	require.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestHandler_RouteNames(t *testing.T) {
	t.Parallel()
	g := newTestGateway(t)

	u, err := g.router.Get(routeNameBonusRefresh).URL()
	require.NoError(t, err)
	require.Equal(t, routeBonusRefresh, u.String())
}

func TestBearerToken(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"":                "",
		"Bearer":          "",
		"Bearer ":         "",
		"Basic abc":       "",
		"Bearer abc":      "abc",
		"bearer  abc ":    "abc",
		"BEARER tok.en.1": "tok.en.1",
	}
	for header, want := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		require.Equal(t, want, bearerToken(req), header)
	}
}

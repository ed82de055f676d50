package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	apicommon "github.com/novunt/client-core/server/api"
	"github.com/novunt/client-core/x/backend"
	"github.com/novunt/client-core/x/bonus"
	submitguard "github.com/novunt/client-core/x/submit-guard"
	"github.com/novunt/client-core/x/ttlcache"
)

// Backend is the subset of the backend client the gateway calls.
type Backend interface {
	FetcherSource
	FetchDayStart(ctx context.Context) (backend.DayStart, error)
	SubmitWithdrawal(
		ctx context.Context,
		token, idempotencyKey string,
		req backend.WithdrawalRequest,
	) (backend.WithdrawalReceipt, error)
}

type Handler struct {
	sessions *Registry
	backend  Backend
	dayStart *ttlcache.Entry[backend.DayStart]
	metrics  *Metrics
	log      zerolog.Logger
}

func NewHandler(
	sessions *Registry,
	be Backend,
	dayStart *ttlcache.Entry[backend.DayStart],
	log zerolog.Logger,
) *Handler {
	return &Handler{
		sessions: sessions,
		backend:  be,
		dayStart: dayStart,
		metrics:  sessions.metrics,
		log:      log.With().Str("component", "gateway-http").Logger(),
	}
}

// session resolves the caller's session, writing the error response itself
// when it cannot.
func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*Session, string, bool) {
	token := bearerToken(r)
	if token == "" {
		apicommon.WriteError(w, r, http.StatusUnauthorized, "missing_token", "bearer token required", nil)
		return nil, "", false
	}
	s, err := h.sessions.Acquire(token)
	if err != nil {
		apicommon.WriteError(w, r, http.StatusServiceUnavailable, "shutting_down", err.Error(), nil)
		return nil, "", false
	}
	return s, token, true
}

//nolint:gocyclo // linear validation chain
func (h *Handler) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	s, token, ok := h.session(w, r)
	if !ok {
		return
	}

	var req withdrawReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apicommon.WriteError(w, r, http.StatusBadRequest, "invalid_json", "failed to decode request", nil)
		return
	}
	if !req.Amount.IsPositive() {
		apicommon.WriteError(w, r, http.StatusBadRequest, "invalid_amount", "amount must be positive", nil)
		return
	}
	if strings.TrimSpace(req.Asset) == "" {
		apicommon.WriteError(w, r, http.StatusBadRequest, "missing_asset", "asset is required", nil)
		return
	}
	if strings.TrimSpace(req.Address) == "" {
		apicommon.WriteError(w, r, http.StatusBadRequest, "missing_address", "address is required", nil)
		return
	}

	if st := s.Countdown.State(); !st.Expired {
		h.metrics.withdrawal("cooldown")
		apicommon.WriteError(
			w, r,
			http.StatusTooManyRequests,
			"cooldown_active",
			"withdrawals are paused until the cooldown ends",
			cooldownView(st),
		)
		return
	}

	key := strings.TrimSpace(req.IdempotencyKey)
	if key == "" {
		key = uuid.NewString()
	}

	receipt, accepted, err := submitguard.Do(r.Context(), s.Guard,
		func(ctx context.Context) (backend.WithdrawalReceipt, error) {
			return h.backend.SubmitWithdrawal(ctx, token, key, req.toBackend())
		})
	if !accepted {
		h.metrics.withdrawal("rejected")
		apicommon.WriteError(
			w, r,
			http.StatusTooManyRequests,
			"submit_rejected",
			"a withdrawal was submitted moments ago",
			map[string]any{
				"in_flight":   s.Guard.InFlight(),
				"ready_in_ms": s.Guard.ReadyIn().Milliseconds(),
				"cooldown_ms": s.Guard.Cooldown().Milliseconds(),
			},
		)
		return
	}
	if err != nil {
		if s.Countdown.Trigger(err) {
			h.metrics.withdrawal("cooldown_started")
			st := s.Countdown.State()
			h.log.Info().Str("session_id", s.ID).Int64("wait_seconds", st.RemainingSeconds()).Msg("Withdrawal cooldown started")
			apicommon.WriteError(
				w, r,
				http.StatusTooManyRequests,
				"cooldown_started",
				errMessage(err),
				map[string]any{
					"wait_seconds": st.RemainingSeconds(),
					"cooldown":     cooldownView(st),
				},
			)
			return
		}
		h.metrics.withdrawal("failed")
		h.writeBackendError(w, r, token, err)
		return
	}

	h.metrics.withdrawal("accepted")
	apicommon.WriteJSON(w, http.StatusAccepted, withdrawResp{Receipt: receipt, IdempotencyKey: key})
}

func (h *Handler) handleCooldown(w http.ResponseWriter, r *http.Request) {
	s, _, ok := h.session(w, r)
	if !ok {
		return
	}
	apicommon.WriteJSON(w, http.StatusOK, cooldownView(s.Countdown.State()))
}

func (h *Handler) handleBonus(w http.ResponseWriter, r *http.Request) {
	s, token, ok := h.session(w, r)
	if !ok {
		return
	}
	p, err := s.Bonus(r.Context())
	h.writeBonus(w, r, s, token, p, err)
}

func (h *Handler) handleBonusRefresh(w http.ResponseWriter, r *http.Request) {
	s, token, ok := h.session(w, r)
	if !ok {
		return
	}
	p, err := s.RefreshBonus(r.Context())
	h.writeBonus(w, r, s, token, p, err)
}

func (h *Handler) writeBonus(w http.ResponseWriter, r *http.Request, s *Session, token string, p bonus.Progress, err error) {
	if err != nil {
		h.writeBackendError(w, r, token, err)
		return
	}
	apicommon.WriteJSON(w, http.StatusOK, bonusView(s, p))
}

func (h *Handler) handleDayStart(w http.ResponseWriter, r *http.Request) {
	source := "backend"
	if h.dayStart.IsValid() {
		source = "cache"
	}

	ds, err := h.dayStart.GetOrLoad(r.Context(), h.backend.FetchDayStart)
	if err != nil {
		stale, ok := h.dayStart.Peek()
		if !ok {
			h.writeBackendError(w, r, "", err)
			return
		}
		h.log.Warn().Err(err).Msg("Day-start refresh failed, serving stale value")
		h.metrics.dayStartServed("stale")
		apicommon.WriteJSON(w, http.StatusOK, dayStartResp{DayStart: stale, Stale: true})
		return
	}

	h.metrics.dayStartServed(source)
	resp := dayStartResp{DayStart: ds}
	if at, ok := h.dayStart.FetchedAt(); ok {
		resp.FetchedAt = &at
	}
	apicommon.WriteJSON(w, http.StatusOK, resp)
}

// writeBackendError maps a backend failure onto the gateway's error envelope.
// An unauthorized token also drops its session.
func (h *Handler) writeBackendError(w http.ResponseWriter, r *http.Request, token string, err error) {
	if errors.Is(err, ErrSessionClosed) {
		apicommon.WriteError(w, r, http.StatusServiceUnavailable, "shutting_down", err.Error(), nil)
		return
	}

	if backend.IsUnauthorized(err) {
		if token != "" {
			h.sessions.Remove(r.Context(), token)
		}
		apicommon.WriteError(w, r, http.StatusUnauthorized, "unauthorized", errMessage(err), nil)
		return
	}

	var apiErr *backend.APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode < 500 {
		status, code := apiErr.StatusCode, apiErr.Code
		if status < 400 {
			// success=false inside a 2xx envelope
			status = http.StatusUnprocessableEntity
		}
		if code == "" {
			code = "backend_rejected"
		}
		apicommon.WriteError(w, r, status, code, errMessage(err), nil)
		return
	}

	h.log.Error().Err(err).Msg("Backend call failed")
	apicommon.WriteError(w, r, http.StatusBadGateway, "backend_unavailable", "backend request failed", nil)
}

func errMessage(err error) string {
	var apiErr *backend.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return err.Error()
}

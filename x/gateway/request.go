package gateway

import (
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/novunt/client-core/x/backend"
	"github.com/novunt/client-core/x/bonus"
	"github.com/novunt/client-core/x/cooldown"
)

// withdrawReq is the JSON schema for POST routeWithdrawals
type withdrawReq struct {
	Amount         decimal.Decimal `json:"amount"`
	Asset          string          `json:"asset"`
	Network        string          `json:"network"`
	Address        string          `json:"address"`
	TwoFactorCode  string          `json:"two_factor_code"`
	IdempotencyKey string          `json:"idempotency_key,omitempty"`
}

func (r withdrawReq) toBackend() backend.WithdrawalRequest {
	return backend.WithdrawalRequest{
		Amount:        r.Amount,
		Asset:         strings.TrimSpace(r.Asset),
		Network:       strings.TrimSpace(r.Network),
		Address:       strings.TrimSpace(r.Address),
		TwoFactorCode: strings.TrimSpace(r.TwoFactorCode),
	}
}

type withdrawResp struct {
	Receipt        backend.WithdrawalReceipt `json:"receipt"`
	IdempotencyKey string                    `json:"idempotency_key"`
}

type cooldownResp struct {
	InitialMs        int64 `json:"initial_ms"`
	RemainingMs      int64 `json:"remaining_ms"`
	RemainingSeconds int64 `json:"remaining_seconds"`
	Expired          bool  `json:"expired"`
}

func cooldownView(st cooldown.State) cooldownResp {
	return cooldownResp{
		InitialMs:        st.Initial.Milliseconds(),
		RemainingMs:      st.RemainingMs(),
		RemainingSeconds: st.RemainingSeconds(),
		Expired:          st.Expired,
	}
}

type bonusResp struct {
	bonus.Summary
	PeriodID  string     `json:"period_id,omitempty"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
	Polling   bool       `json:"polling"`
}

func bonusView(s *Session, p bonus.Progress) bonusResp {
	tracker := s.Poller.Tracker()
	resp := bonusResp{
		Summary:  p.Summary(),
		PeriodID: tracker.PeriodID(),
		Polling:  s.Poller.Running(),
	}
	if at, ok := tracker.LastUpdated(); ok {
		resp.UpdatedAt = &at
	}
	return resp
}

type dayStartResp struct {
	DayStart  backend.DayStart `json:"day_start"`
	FetchedAt *time.Time       `json:"fetched_at,omitempty"`
	Stale     bool             `json:"stale"`
}

// bearerToken extracts the token of an "Authorization: Bearer <token>" header.
func bearerToken(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	const prefix = "bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(h[len(prefix):])
}

package backend

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/novunt/client-core/x/bonus"
)

// envelope is the common response wrapper of the backend API.
type envelope struct {
	Success     bool            `json:"success"`
	Message     string          `json:"message"`
	Code        string          `json:"code"`
	Error       *string         `json:"error"`
	Data        json.RawMessage `json:"data"`
	WaitSeconds *float64        `json:"waitSeconds"`
}

func (e envelope) errorMessage() string {
	if e.Error != nil {
		return *e.Error
	}
	return e.Message
}

// bonusStatus is the data of GET /registration-bonus/status. Older backends report
// requirements as a map of step to completion instead of ordered lists.
type bonusStatus struct {
	PeriodID           string          `json:"periodId"`
	Steps              []string        `json:"steps"`
	Completed          []string        `json:"completed"`
	Requirements       map[string]bool `json:"requirements"`
	AllRequirementsMet bool            `json:"allRequirementsMet"`
}

func (s bonusStatus) snapshot(fetchedAt time.Time) bonus.Snapshot {
	snap := bonus.Snapshot{
		PeriodID:  s.PeriodID,
		Steps:     bonus.ParseSteps(s.Steps),
		Completed: bonus.ParseSteps(s.Completed),
		FetchedAt: fetchedAt,
	}
	if len(snap.Completed) == 0 && len(s.Requirements) > 0 {
		// Map order carries no meaning; the step order comes from the tracker.
		for step, done := range s.Requirements {
			if done {
				snap.Completed = append(snap.Completed, bonus.StepID(step))
			}
		}
	}
	return snap
}

// DayStart is the platform's daily reset schedule.
type DayStart struct {
	Timezone    string    `json:"timezone"`
	StartTime   string    `json:"startTime"`
	NextStartAt time.Time `json:"nextStartAt"`
}

// WithdrawalRequest is the body of POST /wallets/withdraw.
type WithdrawalRequest struct {
	Amount        decimal.Decimal `json:"amount"`
	Asset         string          `json:"asset"`
	Network       string          `json:"network"`
	Address       string          `json:"address"`
	TwoFactorCode string          `json:"twoFactorCode,omitempty"`
}

// WithdrawalReceipt is the data returned for an accepted withdrawal.
type WithdrawalReceipt struct {
	ID        string          `json:"id"`
	Status    string          `json:"status"`
	Amount    decimal.Decimal `json:"amount"`
	Fee       decimal.Decimal `json:"fee"`
	CreatedAt time.Time       `json:"createdAt"`
}

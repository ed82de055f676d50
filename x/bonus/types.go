package bonus

import "time"

// StepID identifies one requirement of the registration bonus.
type StepID string

const (
	StepRegistration      StepID = "registration"
	StepTwoFactorSetup    StepID = "twoFactorSetup"
	StepWithdrawalAddress StepID = "withdrawalAddress"
	StepSocialMedia       StepID = "socialMedia"
	StepFirstStake        StepID = "firstStake"
)

// DefaultSteps is the bonus sequence in the order users are walked through it.
var DefaultSteps = []StepID{
	StepRegistration,
	StepTwoFactorSetup,
	StepWithdrawalAddress,
	StepSocialMedia,
	StepFirstStake,
}

var stepLabels = map[StepID]string{
	StepRegistration:      "Complete registration",
	StepTwoFactorSetup:    "Enable two-factor authentication",
	StepWithdrawalAddress: "Set a withdrawal address",
	StepSocialMedia:       "Follow Novunt on social media",
	StepFirstStake:        "Make your first stake",
}

// Label returns a human readable name, falling back to the raw id.
func (s StepID) Label() string {
	if l, ok := stepLabels[s]; ok {
		return l
	}
	return string(s)
}

// Known reports whether s is one of the platform's bonus steps.
func (s StepID) Known() bool {
	_, ok := stepLabels[s]
	return ok
}

// Snapshot is the bonus status as last reported by the backend.
type Snapshot struct {
	// PeriodID identifies the bonus period. A change of period resets completion.
	PeriodID  string
	Steps     []StepID
	Completed []StepID
	FetchedAt time.Time
}

// ParseSteps converts configured step names, dropping blanks.
func ParseSteps(names []string) []StepID {
	out := make([]StepID, 0, len(names))
	for _, n := range names {
		if n == "" {
			continue
		}
		out = append(out, StepID(n))
	}
	return out
}

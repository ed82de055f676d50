package bonus

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// Progress is an immutable view of bonus completion over an ordered step sequence.
// Completed entries that are not part of the sequence are ignored.
type Progress struct {
	steps     []StepID
	completed map[StepID]struct{}
}

// NewProgress builds a Progress. Duplicate steps keep their first position.
func NewProgress(steps, completed []StepID) Progress {
	p := Progress{
		steps:     make([]StepID, 0, len(steps)),
		completed: make(map[StepID]struct{}, len(completed)),
	}
	seen := make(map[StepID]struct{}, len(steps))
	for _, s := range steps {
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		p.steps = append(p.steps, s)
	}
	for _, c := range completed {
		if _, ok := seen[c]; ok {
			p.completed[c] = struct{}{}
		}
	}
	return p
}

// Steps returns the step sequence.
func (p Progress) Steps() []StepID {
	out := make([]StepID, len(p.steps))
	copy(out, p.steps)
	return out
}

func (p Progress) IsCompleted(step StepID) bool {
	_, ok := p.completed[step]
	return ok
}

// CompletedSteps returns completed steps in sequence order.
func (p Progress) CompletedSteps() []StepID {
	out := make([]StepID, 0, len(p.completed))
	for _, s := range p.steps {
		if p.IsCompleted(s) {
			out = append(out, s)
		}
	}
	return out
}

// PercentPerStep is the equal weight of each step, 100/|steps|. Zero when there are no steps.
func (p Progress) PercentPerStep() decimal.Decimal {
	if len(p.steps) == 0 {
		return decimal.Zero
	}
	return hundred.Div(decimal.NewFromInt(int64(len(p.steps))))
}

// CompletionPercent returns round(100 * completed / steps), or 0 with no steps.
func (p Progress) CompletionPercent() int {
	if len(p.steps) == 0 {
		return 0
	}
	done := decimal.NewFromInt(int64(100 * len(p.completed)))
	return int(done.Div(decimal.NewFromInt(int64(len(p.steps)))).Round(0).IntPart())
}

// AllRequirementsMet reports whether every step is completed. An empty sequence is never met.
func (p Progress) AllRequirementsMet() bool {
	return len(p.steps) > 0 && len(p.completed) == len(p.steps)
}

// NextIncompleteStep returns the first step not yet completed.
func (p Progress) NextIncompleteStep() (StepID, bool) {
	for _, s := range p.steps {
		if !p.IsCompleted(s) {
			return s, true
		}
	}
	return "", false
}

// StepStatus is one row of a Summary.
type StepStatus struct {
	ID        StepID `json:"id"`
	Label     string `json:"label"`
	Completed bool   `json:"completed"`
}

// Summary is the JSON view of a Progress.
type Summary struct {
	Steps              []StepStatus `json:"steps"`
	CompletionPercent  int          `json:"completion_percent"`
	AllRequirementsMet bool         `json:"all_requirements_met"`
	NextStep           *StepID      `json:"next_step,omitempty"`
}

func (p Progress) Summary() Summary {
	s := Summary{
		Steps:              make([]StepStatus, 0, len(p.steps)),
		CompletionPercent:  p.CompletionPercent(),
		AllRequirementsMet: p.AllRequirementsMet(),
	}
	for _, id := range p.steps {
		s.Steps = append(s.Steps, StepStatus{ID: id, Label: id.Label(), Completed: p.IsCompleted(id)})
	}
	if next, ok := p.NextIncompleteStep(); ok {
		s.NextStep = &next
	}
	return s
}

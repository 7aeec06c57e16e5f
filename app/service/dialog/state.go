package dialog

import "time"

type State string

const (
	StateUninitialized     State = "uninitialized"
	StateInitialQuestion   State = "initial_question"
	StatePriceConfirmation State = "price_confirmation"
	StatePriceUpdate       State = "price_update"
	StateCommissionInfo    State = "commission_info"
	StateCompleted         State = "completed"
)

func (s State) Terminal() bool {
	return s == StateCompleted
}

type Intent int

const (
	IntentNeutral Intent = iota
	IntentPositive
	IntentNegative
)

func (i Intent) String() string {
	switch i {
	case IntentPositive:
		return "positive"
	case IntentNegative:
		return "negative"
	default:
		return "neutral"
	}
}

// Facts is the per-session snapshot of the advertised property. It is read
// once when the session starts and never changes afterwards.
type Facts struct {
	PropertyID string
	// OwnerName is stored as entered by the agent, before normalization.
	OwnerName      string
	Address        string
	Price          int64
	CommissionRate float64
	// PriorEngagements of zero means none or unknown.
	PriorEngagements int
	LastAdvertised   time.Time
}

package sampler

import "github.com/GriffinCanCode/adscan/internal/classifier"

// State is a sampler lifecycle state.
type State uint8

const (
	Idle State = iota
	Sampling
	StoppedMatched
	StoppedTimeout
	StoppedEnded
	StoppedCancelled
)

var stateNames = [...]string{"idle", "sampling", "matched", "timeout", "ended", "cancelled"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// MarshalText renders the state name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Terminal reports whether s is a stopped state.
func (s State) Terminal() bool {
	return s >= StoppedMatched
}

// Outcome is the single result of a sampling session.
type Outcome struct {
	Session  string            `json:"session"`
	State    State             `json:"state"`
	Result   classifier.Result `json:"result"`
	Attempts int               `json:"attempts"`
}

// Hooks observe a session from the sampler's goroutine. Either may be nil.
type Hooks struct {
	OnTransition func(from, to State)
	// OnAttempt fires once an attempt's result has been taken by the sampler.
	OnAttempt func(attempt int, r classifier.Result)
}

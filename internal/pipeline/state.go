package pipeline

// State is the orchestration state of a batch run.
type State int

const (
	StateIdle State = iota
	StateFetchingPage
	StateDeduping
	StateProcessing
	StatePersisting
	StateDone
	StateFailed
	StateCancelled
)

var stateNames = [...]string{
	StateIdle:         "idle",
	StateFetchingPage: "fetching_page",
	StateDeduping:     "deduping",
	StateProcessing:   "processing",
	StatePersisting:   "persisting",
	StateDone:         "done",
	StateFailed:       "failed",
	StateCancelled:    "cancelled",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Terminal reports whether the run has finished.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed || s == StateCancelled
}

// MarshalText renders the state name in JSON.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

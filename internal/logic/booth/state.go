package booth

// State is the step of the session loop the controller is in.
type State int

const (
	Idle State = iota
	WaitTrigger
	Capturing
	Composing
	Printing
	Syncing
	Sleeping
)

var stateNames = [...]string{
	Idle:        "Idle",
	WaitTrigger: "WaitTrigger",
	Capturing:   "Capturing",
	Composing:   "Composing",
	Printing:    "Printing",
	Syncing:     "Syncing",
	Sleeping:    "Sleeping",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "Unknown"
	}
	return stateNames[s]
}

// MarshalText encodes the state by name in JSON.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Busy reports whether a session is in progress.
func (s State) Busy() bool {
	switch s {
	case Capturing, Composing, Printing, Syncing:
		return true
	}
	return false
}

package registrar

// State is the device registration state
type State int

const (
	NotStarted State = iota
	PushEnabled
	Registered
	UpdateFailed
	RegisterFailed
)

var stateNames = map[State]string{
	NotStarted:     "notStarted",
	PushEnabled:    "pushEnabled",
	Registered:     "registered",
	UpdateFailed:   "updateFailed",
	RegisterFailed: "registerFailed",
}

// String returns the persisted name of the state
func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// ParseState is the inverse of String
func ParseState(name string) (State, bool) {
	for s, n := range stateNames {
		if n == name {
			return s, true
		}
	}
	return NotStarted, false
}

// hasRegistered is true once the backend knows the device, even if the last
// update failed
func (s State) hasRegistered() bool {
	return s == Registered || s == UpdateFailed
}

package agent

type State string

const (
	StateIdle      State = "idle"
	StateSending   State = "sending"
	StateStreaming State = "streaming"
	StateError     State = "error"
)

// InFlight reports whether a request holds the service.
func (s State) InFlight() bool {
	return s == StateSending || s == StateStreaming
}

// Status is a snapshot of the service. ErrorMessage is set only in StateError.
type Status struct {
	Ready        bool   `json:"ready"`
	State        State  `json:"state"`
	ErrorMessage string `json:"error_message,omitempty"`
	CLIVersion   string `json:"cli_version,omitempty"`
}

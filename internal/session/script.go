package session

import (
	"time"
)

// State describes where a session is in its lifecycle
type State string

const (
	StateSpawned         State = "spawned"
	StateAwaitingPattern State = "awaiting-pattern"
	StateSending         State = "sending"
	StateCompleted       State = "completed"
	StateTimedOut        State = "timed-out"
	StateSpawnFailed     State = "spawn-failed"
)

// Exchange is one scripted step: wait until the output contains Expect,
// then write Send followed by a carriage return. An empty Send answers
// the prompt with a bare return. Timeout overrides the session-wide
// per-step default when set.
type Exchange struct {
	Expect  string        `mapstructure:"expect" json:"expect"`
	Send    string        `mapstructure:"send" json:"send"`
	Timeout time.Duration `mapstructure:"timeout" json:"timeout,omitempty"`
}

// Script is the ordered exchanges to play against a child process
type Script []Exchange

// Result carries whatever a session produced, success or not. Captured
// holds everything read from the child so failures can travel with the
// output that explains them.
type Result struct {
	ExitCode int    `json:"exit_code"`
	Captured string `json:"captured"`
	State    State  `json:"state"`
}

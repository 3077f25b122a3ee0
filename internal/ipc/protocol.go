// Package ipc carries status and stop requests to the process that owns an
// active speech action.
package ipc

// Commands served by an owner process.
const (
	CommandStatus = "status"
	CommandStop   = "stop"
)

type Request struct {
	Command string `json:"command"`
}

type Response struct {
	OK         bool   `json:"ok"`
	State      string `json:"state,omitempty"`
	Processing bool   `json:"processing,omitempty"`
	Speaking   bool   `json:"speaking,omitempty"`
	Message    string `json:"message,omitempty"`
	Error      string `json:"error,omitempty"`
}

package agent

import "context"

// Payload is the inner wrapper an agent reply carries. Result is
// deliberately untyped: depending on how many relay layers the reply
// passed through it may be a structured object, a {result: ...}
// wrapper, or a JSON-encoded string of either.
type Payload struct {
	Result any `json:"result"`
}

// Envelope is the outer response of one agent invocation.
type Envelope struct {
	Success   bool     `json:"success"`
	SessionID string   `json:"session_id,omitempty"`
	Error     string   `json:"error,omitempty"`
	Response  *Payload `json:"response,omitempty"`
}

// Invoker sends one message to the named agent identity and returns
// its reply envelope. A non-nil error means the transport itself
// failed; an Envelope with Success=false means the agent reported
// a failure.
type Invoker interface {
	Invoke(ctx context.Context, message, agentID string) (*Envelope, error)
}

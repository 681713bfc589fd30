package models

import "fmt"

// Outcome kinds for a single forwarding attempt.
const (
	OutcomeSuccess        = "success"
	OutcomeClientError    = "client_error"
	OutcomeServerError    = "server_error"
	OutcomeNetworkFailure = "network_failure"
)

// Acknowledgment actions. Leaving a message is purely an absence of action;
// the queue's visibility timeout makes it visible again.
const (
	ActionAcknowledge = "acknowledge"
	ActionLeave       = "leave"
)

// Outcome classifies the result of one delivery attempt. Status is the HTTP
// status code when a response was received and zero for network failures.
type Outcome struct {
	Kind   string
	Status int
}

// String renders the outcome for log output.
func (o Outcome) String() string {
	if o.Kind == OutcomeNetworkFailure {
		return o.Kind
	}
	return fmt.Sprintf("%s(%d)", o.Kind, o.Status)
}

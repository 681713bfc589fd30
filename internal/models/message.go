package models

import "strings"

// Message represents a single queue delivery observed by the poller. The
// receipt handle is only valid for the current visibility window; the receive
// count starts at 1 and is incremented by the queue on every redelivery.
type Message struct {
	ID            string
	Body          string
	Attributes    map[string]string
	ReceiveCount  int
	ReceiptHandle string
}

// Attribute performs a case-insensitive lookup of a message attribute.
func (m *Message) Attribute(name string) (string, bool) {
	if m == nil {
		return "", false
	}
	for k, v := range m.Attributes {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return "", false
}

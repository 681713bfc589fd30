package relay

import (
	"net/http"

	"github.com/example/sqs-webhook-relay/internal/models"
)

// ClassifyStatus maps an HTTP response status onto a delivery outcome.
// Statuses outside the 2xx/4xx/5xx classes are treated as server errors so the
// queue retries them.
func ClassifyStatus(status int) models.Outcome {
	switch {
	case status >= 200 && status <= 299:
		return models.Outcome{Kind: models.OutcomeSuccess, Status: status}
	case status >= 400 && status <= 499:
		return models.Outcome{Kind: models.OutcomeClientError, Status: status}
	default:
		return models.Outcome{Kind: models.OutcomeServerError, Status: status}
	}
}

// Decide returns the acknowledgment action for one delivery attempt. It is a
// pure function of the outcome and the queue's receive count:
//
//   - success: acknowledge.
//   - 404: acknowledge; a missing endpoint is not transient.
//   - other 4xx: leave on the first receive for exactly one redelivery, then
//     acknowledge so a persistently rejected payload cannot loop forever.
//   - 5xx and network failures: leave; the visibility timeout drives retries.
func Decide(outcome models.Outcome, receiveCount int) string {
	switch outcome.Kind {
	case models.OutcomeSuccess:
		return models.ActionAcknowledge
	case models.OutcomeClientError:
		if outcome.Status == http.StatusNotFound {
			return models.ActionAcknowledge
		}
		if receiveCount <= 1 {
			return models.ActionLeave
		}
		return models.ActionAcknowledge
	default:
		return models.ActionLeave
	}
}

package relay_test

import (
	"testing"

	"github.com/example/sqs-webhook-relay/internal/models"
	"github.com/example/sqs-webhook-relay/internal/relay"
)

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		status int
		want   string
	}{
		{200, models.OutcomeSuccess},
		{204, models.OutcomeSuccess},
		{299, models.OutcomeSuccess},
		{400, models.OutcomeClientError},
		{404, models.OutcomeClientError},
		{499, models.OutcomeClientError},
		{500, models.OutcomeServerError},
		{503, models.OutcomeServerError},
		// Outside the expected classes the conservative default is retry.
		{101, models.OutcomeServerError},
		{301, models.OutcomeServerError},
	}

	for _, tc := range tests {
		got := relay.ClassifyStatus(tc.status)
		if got.Kind != tc.want {
			t.Errorf("ClassifyStatus(%d) = %s, want %s", tc.status, got.Kind, tc.want)
		}
		if got.Status != tc.status {
			t.Errorf("ClassifyStatus(%d) kept status %d", tc.status, got.Status)
		}
	}
}

func TestDecide(t *testing.T) {
	tests := []struct {
		name         string
		outcome      models.Outcome
		receiveCount int
		want         string
	}{
		{"success first receive", models.Outcome{Kind: models.OutcomeSuccess, Status: 200}, 1, models.ActionAcknowledge},
		{"success after redelivery", models.Outcome{Kind: models.OutcomeSuccess, Status: 201}, 7, models.ActionAcknowledge},
		{"404 always dropped", models.Outcome{Kind: models.OutcomeClientError, Status: 404}, 5, models.ActionAcknowledge},
		{"401 retried once", models.Outcome{Kind: models.OutcomeClientError, Status: 401}, 1, models.ActionLeave},
		{"401 dropped after retry", models.Outcome{Kind: models.OutcomeClientError, Status: 401}, 2, models.ActionAcknowledge},
		{"400 dropped on third receive", models.Outcome{Kind: models.OutcomeClientError, Status: 400}, 3, models.ActionAcknowledge},
		{"503 always retried", models.Outcome{Kind: models.OutcomeServerError, Status: 503}, 100, models.ActionLeave},
		{"network failure retried", models.Outcome{Kind: models.OutcomeNetworkFailure}, 1, models.ActionLeave},
		{"network failure retried forever", models.Outcome{Kind: models.OutcomeNetworkFailure}, 42, models.ActionLeave},
		{"3xx treated as retryable", relay.ClassifyStatus(302), 1, models.ActionLeave},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := relay.Decide(tc.outcome, tc.receiveCount); got != tc.want {
				t.Fatalf("Decide(%v, %d) = %s, want %s", tc.outcome, tc.receiveCount, got, tc.want)
			}
		})
	}
}

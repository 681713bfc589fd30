package sqs

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awssqs "github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/rs/zerolog"

	"github.com/example/sqs-webhook-relay/internal/config"
	"github.com/example/sqs-webhook-relay/internal/models"
)

// API abstracts the subset of the SQS client used by the consumer so tests
// can substitute a stub.
type API interface {
	ReceiveMessage(ctx context.Context, params *awssqs.ReceiveMessageInput, optFns ...func(*awssqs.Options)) (*awssqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *awssqs.DeleteMessageInput, optFns ...func(*awssqs.Options)) (*awssqs.DeleteMessageOutput, error)
}

// NewClient builds an SQS client from the default AWS credential chain.
func NewClient(ctx context.Context, region string) (*awssqs.Client, error) {
	var optFns []func(*awsconfig.LoadOptions) error
	if region != "" {
		optFns = append(optFns, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, fmt.Errorf("sqs consumer: load aws config: %w", err)
	}
	return awssqs.NewFromConfig(cfg), nil
}

// Consumer long-polls a single queue and acknowledges messages by deleting
// them. Receives request every message attribute plus the queue's approximate
// receive count so the engine can reason about redeliveries.
type Consumer struct {
	logger zerolog.Logger

	client            API
	queueURL          string
	batchSize         int32
	waitTimeSeconds   int32
	visibilitySeconds int32
}

// New constructs a consumer for the supplied queue configuration.
func New(cfg config.QueueConfig, client API, logger zerolog.Logger) (*Consumer, error) {
	if client == nil {
		return nil, errors.New("sqs consumer: client is required")
	}
	if cfg.URL == "" {
		return nil, errors.New("sqs consumer: queue URL is required")
	}
	if cfg.BatchSize < 1 || cfg.BatchSize > 10 {
		return nil, errors.New("sqs consumer: batch size must be between 1 and 10")
	}

	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}

	return &Consumer{
		logger:            logger,
		client:            client,
		queueURL:          cfg.URL,
		batchSize:         int32(cfg.BatchSize),
		waitTimeSeconds:   int32(cfg.WaitTimeSeconds),
		visibilitySeconds: int32(cfg.VisibilityTimeoutSeconds),
	}, nil
}

// Receive performs one long-poll call and converts the result into domain
// messages. An empty slice is a normal outcome when the wait time elapses with
// nothing enqueued.
func (c *Consumer) Receive(ctx context.Context) ([]models.Message, error) {
	out, err := c.client.ReceiveMessage(ctx, &awssqs.ReceiveMessageInput{
		QueueUrl:              aws.String(c.queueURL),
		MaxNumberOfMessages:   c.batchSize,
		WaitTimeSeconds:       c.waitTimeSeconds,
		VisibilityTimeout:     c.visibilitySeconds,
		MessageAttributeNames: []string{"All"},
		MessageSystemAttributeNames: []types.MessageSystemAttributeName{
			types.MessageSystemAttributeNameApproximateReceiveCount,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("sqs consumer: receive: %w", err)
	}

	msgs := make([]models.Message, 0, len(out.Messages))
	for _, raw := range out.Messages {
		if raw.ReceiptHandle == nil || *raw.ReceiptHandle == "" {
			c.logger.Warn().
				Str("message_id", aws.ToString(raw.MessageId)).
				Msg("sqs consumer: message missing receipt handle, skipping")
			continue
		}
		msgs = append(msgs, models.Message{
			ID:            aws.ToString(raw.MessageId),
			Body:          aws.ToString(raw.Body),
			Attributes:    fromMessageAttributes(raw.MessageAttributes),
			ReceiveCount:  receiveCount(raw.Attributes),
			ReceiptHandle: *raw.ReceiptHandle,
		})
	}

	return msgs, nil
}

// Delete acknowledges a message. The receipt handle is single-use and expires
// with the visibility window; an expired handle surfaces here as an error the
// caller logs and otherwise ignores.
func (c *Consumer) Delete(ctx context.Context, receiptHandle string) error {
	if receiptHandle == "" {
		return errors.New("sqs consumer: receipt handle is required")
	}
	_, err := c.client.DeleteMessage(ctx, &awssqs.DeleteMessageInput{
		QueueUrl:      aws.String(c.queueURL),
		ReceiptHandle: aws.String(receiptHandle),
	})
	if err != nil {
		return fmt.Errorf("sqs consumer: delete: %w", err)
	}
	return nil
}

func fromMessageAttributes(attrs map[string]types.MessageAttributeValue) map[string]string {
	if len(attrs) == 0 {
		return nil
	}
	out := make(map[string]string, len(attrs))
	for k, v := range attrs {
		if v.StringValue == nil {
			continue
		}
		out[k] = *v.StringValue
	}
	return out
}

func receiveCount(attrs map[string]string) int {
	raw, ok := attrs[string(types.MessageSystemAttributeNameApproximateReceiveCount)]
	if !ok {
		return 1
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 1
	}
	return n
}

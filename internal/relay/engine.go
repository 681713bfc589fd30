package relay

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/example/sqs-webhook-relay/internal/models"
)

// Config contains the runtime settings the relay engine relies on to run the
// poll-forward-acknowledge cycle.
type Config struct {
	PollBackoff       time.Duration
	WorkerConcurrency int
}

// Receiver supplies batches of queue messages. An empty batch is a normal,
// frequent outcome.
type Receiver interface {
	Receive(ctx context.Context) ([]models.Message, error)
}

// Sender delivers a reconstructed request to the local endpoint and
// classifies the result.
type Sender interface {
	Forward(ctx context.Context, req *OutboundRequest) (models.Outcome, error)
}

// Acknowledger removes a delivered message from the queue.
type Acknowledger interface {
	Delete(ctx context.Context, receiptHandle string) error
}

// Dependencies collects the runtime collaborators required by the engine.
type Dependencies struct {
	Receiver     Receiver
	Sender       Sender
	Acknowledger Acknowledger
	Logger       zerolog.Logger
	Now          func() time.Time
}

// Engine orchestrates the relay cycle: long-poll the queue, forward each
// message to the local endpoint, and acknowledge or leave it according to the
// decision matrix. Messages within a batch are independent; one message's
// acknowledgment never blocks another's delivery.
type Engine struct {
	cfg      Config
	receiver Receiver
	sender   Sender
	acker    Acknowledger
	logger   zerolog.Logger

	semaphore *semaphore.Weighted

	now func() time.Time
}

// NewEngine constructs a relay engine using the supplied configuration and
// collaborators.
func NewEngine(cfg Config, deps Dependencies) (*Engine, error) {
	if cfg.WorkerConcurrency < 1 {
		return nil, errors.New("relay: worker concurrency must be >= 1")
	}
	if cfg.PollBackoff <= 0 {
		return nil, errors.New("relay: poll backoff must be positive")
	}
	if deps.Receiver == nil {
		return nil, errors.New("relay: receiver dependency is required")
	}
	if deps.Sender == nil {
		return nil, errors.New("relay: sender dependency is required")
	}
	if deps.Acknowledger == nil {
		return nil, errors.New("relay: acknowledger dependency is required")
	}

	logger := deps.Logger
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}
	logger = logger.With().Str("component", "relay_engine").Logger()

	nowFunc := deps.Now
	if nowFunc == nil {
		nowFunc = time.Now
	}

	return &Engine{
		cfg:       cfg,
		receiver:  deps.Receiver,
		sender:    deps.Sender,
		acker:     deps.Acknowledger,
		logger:    logger,
		semaphore: semaphore.NewWeighted(int64(cfg.WorkerConcurrency)),
		now:       nowFunc,
	}, nil
}

// Run executes the poll cycle until the context is cancelled. Receive errors
// are transient: the engine backs off briefly and polls again. No failure in
// the cycle is fatal.
func (e *Engine) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		batch, err := e.receiver.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			e.logger.Error().Err(err).Msg("relay: queue receive failed")
			if !e.wait(ctx, e.cfg.PollBackoff) {
				return ctx.Err()
			}
			continue
		}

		if len(batch) == 0 {
			continue
		}

		e.logger.Info().Int("count", len(batch)).Msg("relay: received batch")
		e.processBatch(ctx, batch)
	}
}

// processBatch forwards the batch with bounded concurrency and waits for it to
// drain before the caller polls again, so receives never outrun processing.
func (e *Engine) processBatch(ctx context.Context, batch []models.Message) {
	var wg sync.WaitGroup
	for i := range batch {
		if err := e.semaphore.Acquire(ctx, 1); err != nil {
			break
		}
		msg := batch[i]
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer e.semaphore.Release(1)
			e.HandleMessage(ctx, &msg)
		}()
	}
	wg.Wait()
}

// HandleMessage performs one delivery attempt for a single message and applies
// the resulting acknowledgment decision.
func (e *Engine) HandleMessage(ctx context.Context, msg *models.Message) {
	log := e.logger.With().
		Str("message_id", msg.ID).
		Str("delivery_id", uuid.NewString()).
		Int("receive_count", msg.ReceiveCount).
		Logger()

	req := BuildRequest(msg, log)

	event := log.Info().Str("summary", Summary(req.Body)).Int("bytes", len(req.Body))
	if req.SourceIP != "" {
		event = event.Str("source_ip", req.SourceIP)
	}
	event.Msg("relay: forwarding message")

	start := e.now()
	outcome, err := e.sender.Forward(ctx, req)
	duration := e.now().Sub(start)

	if err != nil && ctx.Err() != nil &&
		(errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		log.Warn().Msg("relay: shutdown interrupted forward; leaving message for redelivery")
		return
	}

	action := Decide(outcome, msg.ReceiveCount)

	outcomeLog := log.With().
		Stringer("outcome", outcome).
		Str("action", action).
		Dur("duration", duration).
		Logger()

	switch action {
	case models.ActionAcknowledge:
		if outcome.Kind == models.OutcomeSuccess {
			outcomeLog.Info().Msg("relay: delivered, acknowledging message")
		} else {
			outcomeLog.Warn().Msg("relay: dropping message, no retry can help")
		}
		e.acknowledge(ctx, msg, outcomeLog)
	default:
		if err != nil {
			outcomeLog.Warn().Err(err).Msg("relay: leaving message for queue redelivery")
		} else {
			outcomeLog.Warn().Msg("relay: leaving message for queue redelivery")
		}
	}
}

// acknowledge deletes the message. Delete failures (including expired receipt
// handles) are logged and absorbed; the queue simply redelivers the message.
func (e *Engine) acknowledge(ctx context.Context, msg *models.Message, log zerolog.Logger) {
	if err := e.acker.Delete(ctx, msg.ReceiptHandle); err != nil {
		log.Error().Err(err).Msg("relay: failed to delete message, it will be redelivered")
		return
	}
	log.Debug().Msg("relay: message deleted from queue")
}

func (e *Engine) wait(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

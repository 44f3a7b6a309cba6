package events

import (
	"context"
	"errors"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
)

type enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Publisher enqueues quote events for the worker.
type Publisher struct {
	client enqueuer
	logger zerolog.Logger
}

// NewPublisher wraps an asynq client. A nil client yields a publisher that drops events.
func NewPublisher(client *asynq.Client, logger zerolog.Logger) *Publisher {
	p := &Publisher{logger: logger}
	if client != nil {
		p.client = client
	}
	return p
}

// QuoteCreated enqueues a quote:created task. Re-publishing the same quote is a no-op.
func (p *Publisher) QuoteCreated(ctx context.Context, payload QuoteCreated) error {
	if p == nil || p.client == nil {
		return nil
	}
	task, err := NewQuoteCreatedTask(payload)
	if err != nil {
		return err
	}
	info, err := p.client.EnqueueContext(ctx, task)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask) {
			return nil
		}
		return err
	}
	p.logger.Debug().Str("task_id", info.ID).Str("queue", info.Queue).Str("quote_id", payload.QuoteID).Msg("quote event enqueued")
	return nil
}

package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// QuoteCreated is emitted once a quote has been persisted. Amounts are display strings.
type QuoteCreated struct {
	QuoteID            string    `json:"quoteId"`
	Reference          string    `json:"reference"`
	CompanyID          string    `json:"companyId"`
	CreatedBy          string    `json:"createdBy,omitempty"`
	FirstMonthTTC      string    `json:"firstMonthTTC"`
	TotalEngagementTTC string    `json:"totalEngagementTTC"`
	CreatedAt          time.Time `json:"createdAt"`
}

// NewQuoteCreatedTask wraps p in an asynq task. The quote id doubles as task id so the
// same quote is never enqueued twice.
func NewQuoteCreatedTask(p QuoteCreated) (*asynq.Task, error) {
	if _, err := uuid.Parse(p.QuoteID); err != nil {
		return nil, fmt.Errorf("events: quote id: %w", err)
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("events: encode payload: %w", err)
	}
	return asynq.NewTask(TopicQuoteCreated, data,
		asynq.Queue(QueueEvents),
		asynq.TaskID(TopicQuoteCreated+":"+p.QuoteID),
		asynq.MaxRetry(10),
	), nil
}

// DecodeQuoteCreated parses a task payload.
func DecodeQuoteCreated(data []byte) (QuoteCreated, error) {
	var p QuoteCreated
	if len(data) == 0 || !json.Valid(data) {
		return p, errors.New("events: payload is not valid json")
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return p, err
	}
	if strings.TrimSpace(p.QuoteID) == "" {
		return p, errors.New("events: payload missing quoteId")
	}
	if _, err := uuid.Parse(p.QuoteID); err != nil {
		return p, fmt.Errorf("events: quote id: %w", err)
	}
	return p, nil
}

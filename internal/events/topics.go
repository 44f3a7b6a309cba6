package events

// Task types and queues used between the API and the worker.
const (
	TopicQuoteCreated = "quote:created"

	QueueEvents = "events"
)

// Queues returns the asynq queue weights served by the worker.
func Queues() map[string]int {
	return map[string]int{QueueEvents: 1}
}

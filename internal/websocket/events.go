package websocket

import (
	"github.com/photark-io/photark/internal/db"
)

// JobEventPublisher bridges the worker's event sink onto the hub. Every
// persisted job event is broadcast on the global "jobs" topic and on the
// job's own topic.
type JobEventPublisher struct {
	hub *Hub
}

// NewJobEventPublisher creates the publisher.
func NewJobEventPublisher(hub *Hub) *JobEventPublisher {
	return &JobEventPublisher{hub: hub}
}

// JobEvent publishes one job event. Implements worker.EventSink.
func (p *JobEventPublisher) JobEvent(job *db.Job, event *db.JobEvent) {
	payload := map[string]any{
		"event_id":   event.ID.String(),
		"job_id":     job.ID.String(),
		"account_id": job.AccountID.String(),
		"level":      event.Level,
		"message":    event.Message,
		"status":     job.Status,
		"progress":   job.Progress,
		"created_at": event.CreatedAt,
	}
	if event.Progress != nil {
		payload["progress"] = *event.Progress
	}

	jobTopic := "job:" + job.ID.String()
	p.hub.Publish(TopicJobs, Message{Type: MsgJobEvent, Topic: TopicJobs, Payload: payload})
	p.hub.Publish(jobTopic, Message{Type: MsgJobEvent, Topic: jobTopic, Payload: payload})
}

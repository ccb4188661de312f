// Package websocket implements the real-time pub/sub hub that pushes job
// updates to connected GUI clients. It uses gorilla/websocket under the hood
// and exposes a topic-based broadcast API fed by the worker's event sink.
//
// Topic naming convention:
//
//	jobs        — every job event on the server
//	job:<uuid>  — events for a specific job
package websocket

// TopicJobs is the global topic carrying every job event on the server.
// Per-job topics use the "job:<uuid>" form.
const TopicJobs = "jobs"

// MessageType identifies the kind of event carried by a Message.
// The GUI uses this field to route the payload to the correct store update.
type MessageType string

const (
	// MsgJobEvent is sent for every persisted job event: progress steps,
	// status transitions, and warnings.
	MsgJobEvent MessageType = "job.event"

	// MsgPing is sent by the hub periodically to keep the connection alive
	// and let the client detect stale connections.
	MsgPing MessageType = "ping"
)

// Message is the envelope for every WebSocket frame sent to clients.
// The GUI deserializes this struct and dispatches on Type.
//
// JSON example:
//
//	{"type":"job.event","topic":"job:018f...","payload":{"level":"info","message":"Job started"}}
type Message struct {
	// Type identifies the kind of event so the client can route it correctly.
	Type MessageType `json:"type"`

	// Topic is the pub/sub channel this message was published on.
	// Clients use it to associate the update with the correct UI element.
	Topic string `json:"topic"`

	// Payload carries the event-specific data. The shape varies by Type:
	//   - job.event: {"job_id":"...","level":"info","message":"...","progress":0.4,
	//                 "status":"running"}
	//   - ping:      {} (empty)
	Payload any `json:"payload"`
}

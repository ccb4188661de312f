package api

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/photark-io/photark/internal/websocket"
)

// WSHandler handles the WebSocket upgrade endpoint GET /ws.
//
// Topic subscription is declared at connection time via the `topics` query
// parameter. A connection with no explicit topics subscribes to the global
// "jobs" topic and receives every job event; a GUI watching one job passes
// topics=job:<uuid> instead.
//
// Example connection URL:
//
//	ws://host/ws?topics=jobs,job:uuid1
type WSHandler struct {
	hub    *websocket.Hub
	logger *zap.Logger
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(hub *websocket.Hub, logger *zap.Logger) *WSHandler {
	return &WSHandler{
		hub:    hub,
		logger: logger.Named("ws_handler"),
	}
}

// ServeWS handles GET /ws.
// It builds the topic list, upgrades the connection, and starts the client
// read/write pumps. The handler blocks until the connection closes — this is
// expected for WebSocket handlers.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	topics := resolveTopics(r)

	client, err := websocket.NewClient(h.hub, w, r, topics, h.logger)
	if err != nil {
		// The response has already been written by the upgrader on error.
		h.logger.Warn("ws: upgrade failed", zap.Error(err))
		return
	}

	h.logger.Info("ws: client connected",
		zap.String("remote_addr", r.RemoteAddr),
		zap.Strings("topics", topics),
	)

	// Run blocks until the connection closes. readPump and writePump handle
	// cleanup and hub unregistration internally.
	client.Run()

	h.logger.Info("ws: client disconnected",
		zap.String("remote_addr", r.RemoteAddr),
	)
}

// resolveTopics builds the topic list for a client connection from the
// comma-separated `topics` query parameter, defaulting to the global "jobs"
// topic. Unknown topic strings are harmless — the client simply never
// receives messages for topics nothing publishes to.
func resolveTopics(r *http.Request) []string {
	seen := make(map[string]struct{})
	var topics []string

	add := func(t string) {
		t = strings.TrimSpace(t)
		if t == "" {
			return
		}
		if _, exists := seen[t]; !exists {
			seen[t] = struct{}{}
			topics = append(topics, t)
		}
	}

	if raw := r.URL.Query().Get("topics"); raw != "" {
		for _, t := range strings.Split(raw, ",") {
			add(t)
		}
	}
	if len(topics) == 0 {
		topics = []string{websocket.TopicJobs}
	}
	return topics
}

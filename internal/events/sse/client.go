package sse

import (
	"net/http"
	"time"

	"github.com/mcoot/lessonprogress/internal/model"
)

const (
	// Time between keepalive pings
	pingPeriod = 30 * time.Second

	// Buffer size for outgoing messages
	sendBufferSize = 256
)

// Client represents a connected SSE client
type Client struct {
	send        chan []byte
	connectedAt time.Time
}

// NewClient creates a new SSE client
func NewClient() *Client {
	return &Client{
		send:        make(chan []byte, sendBufferSize),
		connectedAt: time.Now(),
	}
}

// Send returns the channel the hub delivers formatted messages on
func (c *Client) Send() <-chan []byte {
	return c.send
}

// ServeSSE streams the owner's events to w until the client disconnects
// or the hub shuts down
func ServeSSE(w http.ResponseWriter, r *http.Request, manager *HubManager, owner model.Identity) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	// A hub can be cleaned up between lookup and registration; fetch a fresh one
	client := NewClient()
	var hub *Hub
	for {
		hub = manager.GetOrCreateHub(owner)
		if hub.Register(client) {
			break
		}
	}
	defer hub.Unregister(client)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	_, _ = w.Write([]byte("event: connected\ndata: {\"status\":\"connected\"}\n\n"))
	flusher.Flush()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case message, ok := <-client.send:
			if !ok {
				// Hub closed the channel
				return
			}
			if _, err := w.Write(message); err != nil {
				return
			}
			flusher.Flush()

		case <-ticker.C:
			if _, err := w.Write([]byte(": keepalive\n\n")); err != nil {
				return
			}
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

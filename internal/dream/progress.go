package dream

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"nhooyr.io/websocket" //nolint:staticcheck // TODO: migrate to github.com/coder/websocket
)

// ProgressEvent is one update in a dream session's live progress stream:
// a phase transition or an individual curation action.
type ProgressEvent struct {
	SessionID string          `json:"session_id"`
	AnimaID   string          `json:"anima_id"`
	Phase     DreamPhaseLabel `json:"phase"`
	Message   string          `json:"message"`

	// ActionType is set only for per-action events (merge/split/update/
	// archive/delete), empty for phase-transition events.
	ActionType string `json:"action_type,omitempty"`

	At time.Time `json:"at"`
}

// DreamPhaseLabel names the stream's coarser event categories, distinct
// from types.DreamPhase (which only distinguishes light/deep sleep for
// audit rows).
type DreamPhaseLabel string

const (
	ProgressGathering  DreamPhaseLabel = "gathering"
	ProgressLightSleep DreamPhaseLabel = "light_sleep"
	ProgressDeepSleep  DreamPhaseLabel = "deep_sleep"
	ProgressComplete   DreamPhaseLabel = "complete"
	ProgressFailed     DreamPhaseLabel = "failed"
)

// progressClient is a registered subscriber: either a live WebSocket
// connection or (in tests) a bare channel.
type progressClient interface {
	sendChannel() chan []byte
	close()
}

// ProgressHub fans a dream engine's events out to every connected operator
// console. Subscribers may filter to one anima via the "anima_id" query
// parameter; an empty filter receives every event. Adapted from the
// teacher's web/handlers/websocket.go WebSocketHub, redirected from
// enrichment events to dream-session progress.
type ProgressHub struct {
	clients    map[progressClient]string // client -> anima filter ("" = all)
	broadcast  chan ProgressEvent
	register   chan registration
	unregister chan progressClient
	mu         sync.RWMutex
	ctx        context.Context
	cancel     context.CancelFunc
}

type registration struct {
	client      progressClient
	animaFilter string
}

// NewProgressHub builds a ProgressHub. Call Run in its own goroutine before
// serving any connections.
func NewProgressHub() *ProgressHub {
	ctx, cancel := context.WithCancel(context.Background())
	return &ProgressHub{
		clients:    make(map[progressClient]string),
		broadcast:  make(chan ProgressEvent, 256),
		register:   make(chan registration),
		unregister: make(chan progressClient),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Run processes registrations and broadcasts until Stop is called.
func (h *ProgressHub) Run() {
	for {
		select {
		case r := <-h.register:
			h.mu.Lock()
			h.clients[r.client] = r.animaFilter
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.sendChannel())
			}
			h.mu.Unlock()

		case event := <-h.broadcast:
			h.mu.Lock()
			data, err := json.Marshal(event)
			if err != nil {
				log.Printf("dream: failed to marshal progress event: %v", err)
				h.mu.Unlock()
				continue
			}
			for client, filter := range h.clients {
				if filter != "" && filter != event.AnimaID {
					continue
				}
				sendChan := client.sendChannel()
				select {
				case sendChan <- data:
				default:
					close(sendChan)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()

		case <-h.ctx.Done():
			return
		}
	}
}

// Stop disconnects every client and halts Run's loop.
func (h *ProgressHub) Stop() {
	h.cancel()
	h.mu.Lock()
	for client := range h.clients {
		close(client.sendChannel())
		client.close()
	}
	h.clients = make(map[progressClient]string)
	h.mu.Unlock()
}

// Publish enqueues event for broadcast; drops it (logging a warning) if the
// broadcast channel is saturated rather than blocking the caller.
func (h *ProgressHub) Publish(event ProgressEvent) {
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}
	select {
	case h.broadcast <- event:
	default:
		log.Println("dream: progress broadcast channel full, dropping event")
	}
}

// wsClient wraps a live WebSocket connection as a progressClient.
type wsClient struct {
	conn *websocket.Conn //nolint:staticcheck // TODO: migrate to github.com/coder/websocket
	send chan []byte
}

func (c *wsClient) sendChannel() chan []byte { return c.send }
func (c *wsClient) close() {
	if c.conn != nil {
		_ = c.conn.Close(websocket.StatusNormalClosure, "") //nolint:staticcheck // TODO: migrate to github.com/coder/websocket
	}
}

// ServeHTTP upgrades the request to a WebSocket and streams progress events,
// optionally filtered to one anima via ?anima_id=.
func (h *ProgressHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil) //nolint:staticcheck // TODO: migrate to github.com/coder/websocket
	if err != nil {
		log.Printf("dream: progress websocket upgrade failed: %v", err)
		return
	}

	client := &wsClient{conn: conn, send: make(chan []byte, 256)}
	h.register <- registration{client: client, animaFilter: strings.TrimSpace(r.URL.Query().Get("anima_id"))}

	go client.writePump(h)
	go client.readPump(h)
}

func (c *wsClient) writePump(h *ProgressHub) {
	defer func() {
		h.unregister <- c
		_ = c.conn.Close(websocket.StatusNormalClosure, "") //nolint:staticcheck // TODO: migrate to github.com/coder/websocket
	}()
	for message := range c.send {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := c.conn.Write(ctx, websocket.MessageText, message) //nolint:staticcheck // TODO: migrate to github.com/coder/websocket
		cancel()
		if err != nil {
			return
		}
	}
}

func (c *wsClient) readPump(h *ProgressHub) {
	defer func() {
		h.unregister <- c
		_ = c.conn.Close(websocket.StatusNormalClosure, "") //nolint:staticcheck // TODO: migrate to github.com/coder/websocket
	}()
	for {
		if _, _, err := c.conn.Read(context.Background()); err != nil { //nolint:staticcheck // TODO: migrate to github.com/coder/websocket
			return
		}
	}
}

// internal/stream/hub.go
//
// Pushes resolved turns to renderers over WebSocket.
// Responsibilities:
//   - Keep per-game subscriber lists.
//   - Encode each outcome once and fan it out without blocking the engine.
//   - Run one read loop (close detection, pings) and one write loop per socket.
//
// Notes:
//   - Subscriber buffers are bounded; a slow client loses messages, the game never waits.

package stream

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/snakeladder/internal/game"
)

const (
	bufferSize = 16
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// Hub routes messages to subscribers of a game.
type Hub struct {
	mu       sync.Mutex
	subs     map[string]map[chan []byte]struct{}
	upgrader websocket.Upgrader
}

// NewHub returns a hub whose upgrader accepts origins allowed by checkOrigin.
// A nil checkOrigin accepts every origin.
func NewHub(checkOrigin func(r *http.Request) bool) *Hub {
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &Hub{
		subs:     make(map[string]map[chan []byte]struct{}),
		upgrader: websocket.Upgrader{CheckOrigin: checkOrigin},
	}
}

// Subscribe registers interest in a game. The returned cancel func is idempotent.
func (h *Hub) Subscribe(gameID string) (<-chan []byte, func()) {
	ch := make(chan []byte, bufferSize)
	h.mu.Lock()
	if h.subs[gameID] == nil {
		h.subs[gameID] = make(map[chan []byte]struct{})
	}
	h.subs[gameID][ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subs[gameID], ch)
			if len(h.subs[gameID]) == 0 {
				delete(h.subs, gameID)
			}
			close(ch)
		})
	}
}

// Publish JSON-encodes v and delivers it to every subscriber of gameID.
func (h *Hub) Publish(gameID string, v any) {
	msg, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("gameId", gameID).Msg("stream encode")
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs[gameID] {
		select {
		case ch <- msg:
		default:
			log.Warn().Str("gameId", gameID).Msg("stream subscriber full, dropping message")
		}
	}
}

// Subscribers returns how many clients follow gameID.
func (h *Hub) Subscribers(gameID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[gameID])
}

// Sink adapts the hub into a game.Sink for one game.
func (h *Hub) Sink(gameID string) game.Sink {
	return game.SinkFunc(func(o game.Outcome) { h.Publish(gameID, o) })
}

// ServeWS upgrades the request and streams gameID until the client leaves.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, gameID string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("gameId", gameID).Msg("websocket upgrade")
		return
	}
	defer conn.Close()

	msgs, cancel := h.Subscribe(gameID)
	defer cancel()

	done := make(chan struct{})
	go readLoop(conn, done)
	writeLoop(conn, msgs, done)
	log.Debug().Str("gameId", gameID).Msg("stream closed")
}

// readLoop discards client frames and closes done when the peer goes away.
func readLoop(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.NextReader(); err != nil {
			return
		}
	}
}

func writeLoop(conn *websocket.Conn, msgs <-chan []byte, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				log.Debug().Err(err).Msg("stream write")
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

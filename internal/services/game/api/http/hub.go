package http

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/louisbranch/ruleshift/internal/services/game/domain/board"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 45 * time.Second
)

// RoomEvent is the payload pushed to websocket subscribers whenever a room's
// state changes.
type RoomEvent struct {
	Type  string          `json:"type"`
	Room  string          `json:"room_id"`
	State board.GameState `json:"state"`
	Logs  []string        `json:"logs,omitempty"`
}

type subscriber struct {
	conn *websocket.Conn

	mu sync.Mutex
}

func (s *subscriber) write(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

func (s *subscriber) ping() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.PingMessage, nil)
}

// Hub fans room updates out to websocket subscribers. It satisfies the
// registry's Notifier interface so roll and modification results reach every
// connected client without the HTTP handlers knowing about sockets.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*subscriber]struct{}
	log   zerolog.Logger
}

// NewHub returns an empty hub.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		rooms: make(map[string]map[*subscriber]struct{}),
		log:   logger.With().Str("component", "ws_hub").Logger(),
	}
}

// RoomUpdated broadcasts the new state to every subscriber of the room.
// Subscribers whose connection errors are dropped.
func (h *Hub) RoomUpdated(roomID string, state board.GameState, logs []string) {
	payload, err := json.Marshal(RoomEvent{
		Type:  "room_update",
		Room:  roomID,
		State: state,
		Logs:  logs,
	})
	if err != nil {
		h.log.Error().Err(err).Str("room_id", roomID).Msg("marshal room event")
		return
	}

	h.mu.RLock()
	subs := make([]*subscriber, 0, len(h.rooms[roomID]))
	for sub := range h.rooms[roomID] {
		subs = append(subs, sub)
	}
	h.mu.RUnlock()

	for _, sub := range subs {
		if err := sub.write(payload); err != nil {
			h.log.Debug().Err(err).Str("room_id", roomID).Msg("drop subscriber")
			h.remove(roomID, sub)
		}
	}
}

// Attach registers a websocket connection as a subscriber of the room and
// blocks until the connection closes. The read loop only services control
// frames; clients drive the game through the REST endpoints.
func (h *Hub) Attach(roomID string, conn *websocket.Conn) {
	sub := &subscriber{conn: conn}

	h.mu.Lock()
	if h.rooms[roomID] == nil {
		h.rooms[roomID] = make(map[*subscriber]struct{})
	}
	h.rooms[roomID][sub] = struct{}{}
	h.mu.Unlock()

	defer h.remove(roomID, sub)

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	if err := conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return
	}

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := sub.ping(); err != nil {
					return
				}
			}
		}
	}()
	defer close(done)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) remove(roomID string, sub *subscriber) {
	h.mu.Lock()
	if subs, ok := h.rooms[roomID]; ok {
		if _, present := subs[sub]; present {
			delete(subs, sub)
			_ = sub.conn.Close()
		}
		if len(subs) == 0 {
			delete(h.rooms, roomID)
		}
	}
	h.mu.Unlock()
}

// SubscriberCount reports how many connections follow a room.
func (h *Hub) SubscriberCount(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

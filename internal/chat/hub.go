package chat

import (
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// HistoryLimit is how many stored messages a joining client replays.
const HistoryLimit = 50

type Message struct {
	Type   string    `json:"type"` // "message", "user_join", "user_leave"
	Room   string    `json:"room"`
	Sender string    `json:"sender"`
	Text   string    `json:"text,omitempty"`
	At     time.Time `json:"at"`
}

// ConversationID derives the deterministic room id for a pair of users:
// the sorted id pair joined with a colon, so both sides land in the
// same room regardless of who opens it.
func ConversationID(a, b string) string {
	pair := []string{strings.TrimSpace(a), strings.TrimSpace(b)}
	sort.Strings(pair)
	return pair[0] + ":" + pair[1]
}

// Members returns the two user ids a conversation room was derived from.
func Members(room string) (string, string) {
	parts := strings.SplitN(room, ":", 2)
	if len(parts) != 2 {
		return room, ""
	}
	return parts[0], parts[1]
}

type room struct {
	connections map[*websocket.Conn]string
}

// Hub fans conversation traffic out to the sockets currently in each
// room. Durable history lives in the messages table, not here.
type Hub struct {
	mu    sync.Mutex
	rooms map[string]*room
}

func NewHub() *Hub {
	return &Hub{rooms: make(map[string]*room)}
}

func (h *Hub) Join(roomID string, ws *websocket.Conn, userID string) {
	h.mu.Lock()
	r := h.roomLocked(roomID)
	r.connections[ws] = userID
	h.mu.Unlock()

	h.Broadcast(Message{
		Type:   "user_join",
		Room:   roomID,
		Sender: userID,
		At:     time.Now().UTC(),
	})
}

func (h *Hub) Leave(roomID string, ws *websocket.Conn) {
	var userID string
	h.mu.Lock()
	if r, ok := h.rooms[roomID]; ok {
		if u, exists := r.connections[ws]; exists {
			userID = u
		}
		delete(r.connections, ws)
		if len(r.connections) == 0 {
			delete(h.rooms, roomID)
		}
	}
	h.mu.Unlock()

	_ = ws.Close()

	if userID != "" {
		h.Broadcast(Message{
			Type:   "user_leave",
			Room:   roomID,
			Sender: userID,
			At:     time.Now().UTC(),
		})
	}
}

func (h *Hub) Broadcast(msg Message) {
	if msg.At.IsZero() {
		msg.At = time.Now().UTC()
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	r, ok := h.rooms[msg.Room]
	if !ok {
		return
	}

	for ws := range r.connections {
		if err := ws.WriteMessage(websocket.TextMessage, payload); err != nil {
			_ = ws.Close()
			delete(r.connections, ws)
		}
	}
}

func (h *Hub) User(roomID string, ws *websocket.Conn) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if r, ok := h.rooms[roomID]; ok {
		return r.connections[ws]
	}
	return ""
}

func (h *Hub) roomLocked(roomID string) *room {
	r, ok := h.rooms[roomID]
	if !ok {
		r = &room{connections: make(map[*websocket.Conn]string)}
		h.rooms[roomID] = r
	}
	return r
}

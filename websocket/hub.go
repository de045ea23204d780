package websocket

import (
	"sync"

	"github.com/rs/zerolog"
)

// Session is one live connection able to receive JSON events. The
// concrete session wraps a websocket connection; tests substitute
// fakes.
type Session interface {
	WriteJSON(v interface{}) error
	Close() error
}

// Hub is the process-wide registry of live sessions keyed by user id.
// A user may hold several sessions at once (multiple tabs or devices);
// delivery writes to all of them.
type Hub struct {
	mu       sync.RWMutex
	sessions map[uint]map[string]Session
	log      zerolog.Logger
}

func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		sessions: make(map[uint]map[string]Session),
		log:      log,
	}
}

func (h *Hub) Register(userID uint, connID string, s Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.sessions[userID] == nil {
		h.sessions[userID] = make(map[string]Session)
	}
	h.sessions[userID][connID] = s
	h.log.Debug().Uint("user_id", userID).Str("conn_id", connID).Msg("session registered")
}

func (h *Hub) Unregister(userID uint, connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.sessions[userID]; ok {
		delete(conns, connID)
		if len(conns) == 0 {
			delete(h.sessions, userID)
		}
	}
	h.log.Debug().Uint("user_id", userID).Str("conn_id", connID).Msg("session unregistered")
}

// Deliver writes payload to every session of every listed user,
// best-effort. Duplicated user ids are collapsed so no session receives
// the event twice. A failed write evicts the session and is never
// surfaced to the caller; recipients with no live session are simply
// skipped. Returns the number of successful writes.
func (h *Hub) Deliver(userIDs []uint, payload interface{}) int {
	type target struct {
		userID  uint
		connID  string
		session Session
	}

	seen := make(map[uint]bool, len(userIDs))
	var targets []target
	h.mu.RLock()
	for _, id := range userIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		for connID, sess := range h.sessions[id] {
			targets = append(targets, target{userID: id, connID: connID, session: sess})
		}
	}
	h.mu.RUnlock()

	delivered := 0
	for _, t := range targets {
		if err := t.session.WriteJSON(payload); err != nil {
			h.log.Warn().Err(err).Uint("user_id", t.userID).Str("conn_id", t.connID).
				Msg("dropping dead session")
			h.evict(t.userID, t.connID)
			continue
		}
		delivered++
	}
	return delivered
}

// SendTo writes payload to a single user's sessions.
func (h *Hub) SendTo(userID uint, payload interface{}) int {
	return h.Deliver([]uint{userID}, payload)
}

type pingEvent struct {
	Type string `json:"type"`
}

// Sweep pings every registered session and evicts the ones whose peer
// went away without a close frame. Returns the number evicted.
func (h *Hub) Sweep() int {
	type target struct {
		userID  uint
		connID  string
		session Session
	}

	var targets []target
	h.mu.RLock()
	for userID, conns := range h.sessions {
		for connID, sess := range conns {
			targets = append(targets, target{userID: userID, connID: connID, session: sess})
		}
	}
	h.mu.RUnlock()

	evicted := 0
	for _, t := range targets {
		if err := t.session.WriteJSON(pingEvent{Type: "ping"}); err != nil {
			h.evict(t.userID, t.connID)
			evicted++
		}
	}
	return evicted
}

// Count returns the number of live sessions across all users.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, conns := range h.sessions {
		n += len(conns)
	}
	return n
}

func (h *Hub) evict(userID uint, connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns, ok := h.sessions[userID]
	if !ok {
		return
	}
	sess, ok := conns[connID]
	if !ok {
		return
	}
	delete(conns, connID)
	if len(conns) == 0 {
		delete(h.sessions, userID)
	}
	_ = sess.Close()
}

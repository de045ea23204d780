package websocket

import "sync"

// Conn is the write side of a live connection. *websocket.Conn from
// gofiber/contrib satisfies it.
type Conn interface {
	WriteJSON(v interface{}) error
	Close() error
}

// ConnSession adapts a live connection to the Session interface.
// Writes are serialized because the fan-out path and the connection's
// own read loop both emit events on the same socket.
type ConnSession struct {
	mu   sync.Mutex
	conn Conn
}

func NewConnSession(conn Conn) *ConnSession {
	return &ConnSession{conn: conn}
}

func (s *ConnSession) WriteJSON(v interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(v)
}

func (s *ConnSession) Close() error {
	return s.conn.Close()
}

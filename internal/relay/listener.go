package relay

import (
	"context"
	"time"

	"nhooyr.io/websocket"
)

// Listener is one connected push client
type Listener interface {
	ID() string
	Send(ctx context.Context, payload []byte) error
	Close(reason string)
}

// wsListener pushes text frames over a WebSocket connection
type wsListener struct {
	id           string
	conn         *websocket.Conn
	writeTimeout time.Duration
}

func newWSListener(id string, conn *websocket.Conn, writeTimeout time.Duration) *wsListener {
	if writeTimeout <= 0 {
		writeTimeout = 5 * time.Second
	}
	return &wsListener{id: id, conn: conn, writeTimeout: writeTimeout}
}

func (l *wsListener) ID() string { return l.id }

func (l *wsListener) Send(ctx context.Context, payload []byte) error {
	ctx, cancel := context.WithTimeout(ctx, l.writeTimeout)
	defer cancel()
	return l.conn.Write(ctx, websocket.MessageText, payload)
}

func (l *wsListener) Close(reason string) {
	l.conn.Close(websocket.StatusGoingAway, reason)
}

package bridge

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	handshakeTimeout = 10 * time.Second
	writeTimeout     = 5 * time.Second
	inboundCapacity  = 4096
)

// Websocket is the live bridge connection. One message per websocket text
// frame. A reader goroutine funnels inbound frames into a buffered channel
// so Receive stays non-blocking and all message handling happens on the
// scheduler goroutine.
type Websocket struct {
	logger *zap.Logger
	conn   *websocket.Conn

	inbound chan string

	writeMu sync.Mutex
	closed  sync.Once
}

func Dial(ctx context.Context, logger *zap.Logger, endpoint string) (*Websocket, error) {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("unable to dial bridge at %s: %w", endpoint, err)
	}

	ws := &Websocket{
		logger:  logger,
		conn:    conn,
		inbound: make(chan string, inboundCapacity),
	}
	go ws.readLoop()

	logger.Info("bridge connected", zap.String("endpoint", endpoint))
	return ws, nil
}

func (ws *Websocket) Send(message string) error {
	ws.writeMu.Lock()
	defer ws.writeMu.Unlock()

	if err := ws.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	if err := ws.conn.WriteMessage(websocket.TextMessage, []byte(message)); err != nil {
		return fmt.Errorf("bridge write failed: %w", err)
	}
	return nil
}

func (ws *Websocket) Receive() (string, bool) {
	select {
	case message, ok := <-ws.inbound:
		return message, ok
	default:
		return "", false
	}
}

func (ws *Websocket) Close() {
	ws.closed.Do(func() {
		_ = ws.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		_ = ws.conn.Close()
	})
}

func (ws *Websocket) readLoop() {
	defer close(ws.inbound)

	for {
		_, data, err := ws.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				ws.logger.Info("bridge closed")
			} else {
				ws.logger.Warn("bridge read failed", zap.Error(err))
			}
			return
		}

		select {
		case ws.inbound <- string(data):
		default:
			// A full queue means the scheduler stopped draining; dropping
			// the oldest would reorder, so drop the newest.
			ws.logger.Warn("inbound queue full, dropping message")
		}
	}
}

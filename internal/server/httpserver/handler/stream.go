package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	streamBuffer     = 256
	streamWriteWait  = 10 * time.Second
	streamPongWait   = 60 * time.Second
	streamPingPeriod = (streamPongWait * 9) / 10
	streamReadLimit  = 512
)

// stream pumps router deliveries to one websocket. Publish runs handlers
// synchronously, so enqueue never blocks: a client that falls
// streamBuffer frames behind is disconnected.
type stream struct {
	conn   *websocket.Conn
	logger *slog.Logger
	send   chan []byte

	once sync.Once
	done chan struct{}
}

func newStream(conn *websocket.Conn, logger *slog.Logger) *stream {
	return &stream{
		conn:   conn,
		logger: logger,
		send:   make(chan []byte, streamBuffer),
		done:   make(chan struct{}),
	}
}

func (s *stream) stop() {
	s.once.Do(func() { close(s.done) })
}

func (s *stream) enqueue(msg StreamMessage) {
	frame, err := json.Marshal(msg)
	if err != nil {
		s.logger.Error("failed to marshal stream message", "error", err)
		return
	}
	select {
	case <-s.done:
	case s.send <- frame:
	default:
		s.logger.Warn("websocket client too slow, disconnecting", "channel", msg.Channel)
		s.stop()
	}
}

// run blocks until the client disconnects, the stream overflows or ctx is
// cancelled.
func (s *stream) run(ctx context.Context) {
	go s.readPump()
	s.writePump(ctx)
}

// readPump discards client frames and answers pongs. It ends the stream
// when the client goes away.
func (s *stream) readPump() {
	defer s.stop()

	s.conn.SetReadLimit(streamReadLimit)
	_ = s.conn.SetReadDeadline(time.Now().Add(streamPongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(streamPongWait))
	})
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug("websocket read error", "error", err)
			}
			return
		}
	}
}

func (s *stream) writePump(ctx context.Context) {
	ticker := time.NewTicker(streamPingPeriod)
	defer func() {
		ticker.Stop()
		_ = s.conn.Close()
	}()

	for {
		select {
		case frame := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				s.stop()
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.stop()
				return
			}
		case <-ctx.Done():
			s.close(websocket.CloseGoingAway, "server shutting down")
			s.stop()
			return
		case <-s.done:
			s.close(websocket.CloseNormalClosure, "")
			return
		}
	}
}

func (s *stream) close(code int, text string) {
	msg := websocket.FormatCloseMessage(code, text)
	_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(streamWriteWait))
}

// Package ws carries the realtime wire protocol: one WebSocket per
// authenticated user, JSON envelopes in both directions.
package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/xtzs123/uniapp-backend/domain"
)

const (
	writeTimeout = 10 * time.Second
	closeTimeout = time.Second
)

// Session owns the write side of one live connection. Outbound frames
// go through a buffered channel drained by a single write loop, so
// many connection workers can deliver to the same session without
// interleaving writes on the socket.
type Session struct {
	ID     uuid.UUID
	UserID int64

	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
	log  *slog.Logger
}

func NewSession(log *slog.Logger, conn *websocket.Conn, userID int64, bufferSize int) *Session {
	s := &Session{
		ID:     uuid.New(),
		UserID: userID,
		conn:   conn,
		send:   make(chan []byte, bufferSize),
		done:   make(chan struct{}),
		log:    log,
	}
	go s.writeLoop()
	return s
}

// Consume queues a frame for delivery. It never blocks: when the
// session is closed or its buffer is full the frame is dropped and an
// error returned, which callers treat as a failed best-effort send.
func (s *Session) Consume(_ context.Context, frame domain.Frame) error {
	bytes, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	return s.enqueue(bytes)
}

// ConsumeText queues a raw text payload, used for the bare pong reply
// to bare ping frames.
func (s *Session) ConsumeText(payload []byte) error {
	return s.enqueue(payload)
}

func (s *Session) enqueue(payload []byte) error {
	select {
	case <-s.done:
		return fmt.Errorf("session %s closed", s.ID)
	default:
	}
	select {
	case s.send <- payload:
		return nil
	default:
		return fmt.Errorf("session %s send buffer full", s.ID)
	}
}

// Close shuts the write loop down and closes the transport. Safe to
// call more than once and from any goroutine.
func (s *Session) Close() error {
	s.once.Do(func() {
		close(s.done)
		deadline := time.Now().Add(closeTimeout)
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		_ = s.conn.Close()
	})
	return nil
}

func (s *Session) writeLoop() {
	for {
		select {
		case <-s.done:
			return
		case payload := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				s.log.Debug("Write failed, closing session", "session_id", s.ID, "user_id", s.UserID, "error", err)
				_ = s.Close()
				return
			}
		}
	}
}

package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocket carries frames as binary websocket messages.
type WebSocket struct {
	conn *websocket.Conn

	// SendTimeout bounds each Send when ctx has no earlier deadline.
	// Zero means no bound.
	SendTimeout time.Duration

	wmu       sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

var _ Transport = (*WebSocket)(nil)

// Dial connects to the mix network client at url (DefaultURL if empty).
func Dial(ctx context.Context, url string) (*WebSocket, error) {
	if url == "" {
		url = DefaultURL
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", url, err)
	}
	return NewWebSocket(conn), nil
}

// NewWebSocket wraps an established connection.
func NewWebSocket(conn *websocket.Conn) *WebSocket {
	return &WebSocket{conn: conn}
}

// Receive returns the next binary message. Text messages are skipped.
//
// Cancelling ctx interrupts a pending read; the connection cannot be read
// from again afterwards.
func (w *WebSocket) Receive(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	release := interruptOnDone(ctx, w.conn.SetReadDeadline)

	for {
		typ, data, err := w.conn.ReadMessage()
		release(err == nil)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) ||
				errors.Is(err, websocket.ErrCloseSent) {
				return nil, ErrClosed
			}
			return nil, fmt.Errorf("transport: read: %w", err)
		}
		if typ == websocket.BinaryMessage {
			return data, nil
		}
		release = interruptOnDone(ctx, w.conn.SetReadDeadline)
	}
}

// interruptOnDone expires the read deadline when ctx ends. The returned
// release stops the watcher; when the read it guarded succeeded anyway, the
// deadline is cleared so the connection stays readable.
func interruptOnDone(ctx context.Context, setDeadline func(time.Time) error) (release func(readOK bool)) {
	done := make(chan struct{})
	fired := make(chan bool, 1)
	go func() {
		select {
		case <-ctx.Done():
			_ = setDeadline(time.Now())
			fired <- true
		case <-done:
			fired <- false
		}
	}()
	return func(readOK bool) {
		close(done)
		if <-fired && readOK {
			_ = setDeadline(time.Time{})
		}
	}
}

func (w *WebSocket) Send(ctx context.Context, frame []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	w.wmu.Lock()
	defer w.wmu.Unlock()

	var deadline time.Time
	if w.SendTimeout > 0 {
		deadline = time.Now().Add(w.SendTimeout)
	}
	if d, ok := ctx.Deadline(); ok && (deadline.IsZero() || d.Before(deadline)) {
		deadline = d
	}
	if err := w.conn.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("transport: %w", err)
	}
	if err := w.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		if errors.Is(err, websocket.ErrCloseSent) {
			return ErrClosed
		}
		return fmt.Errorf("transport: write: %w", err)
	}
	return nil
}

// Close sends a close frame and closes the connection.
func (w *WebSocket) Close() error {
	w.closeOnce.Do(func() {
		w.wmu.Lock()
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = w.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		w.wmu.Unlock()
		w.closeErr = w.conn.Close()
	})
	return w.closeErr
}

package transport

import (
	"context"
	"sync"
)

// inbox is an unbounded, closable frame queue.
type inbox struct {
	mu     sync.Mutex
	frames [][]byte
	notify chan struct{}
	closed bool
}

func newInbox() *inbox {
	return &inbox{notify: make(chan struct{}, 1)}
}

func (in *inbox) push(frame []byte) error {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.closed {
		return ErrClosed
	}
	in.frames = append(in.frames, append([]byte(nil), frame...))
	select {
	case in.notify <- struct{}{}:
	default:
	}
	return nil
}

func (in *inbox) pop(ctx context.Context) ([]byte, error) {
	for {
		in.mu.Lock()
		if len(in.frames) > 0 {
			f := in.frames[0]
			in.frames[0] = nil
			in.frames = in.frames[1:]
			in.mu.Unlock()
			return f, nil
		}
		if in.closed {
			in.mu.Unlock()
			return nil, ErrClosed
		}
		in.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-in.notify:
		}
	}
}

func (in *inbox) close() {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.closed {
		return
	}
	in.closed = true
	close(in.notify)
}

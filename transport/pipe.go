package transport

import "context"

// PipeEnd is one side of an in-memory duplex frame channel.
type PipeEnd struct {
	in   *inbox
	peer *inbox
}

var _ Transport = (*PipeEnd)(nil)

// Pipe returns two connected ends. Frames sent on one end are received,
// unchanged and in order, on the other. Sends never block.
func Pipe() (*PipeEnd, *PipeEnd) {
	a, b := newInbox(), newInbox()
	return &PipeEnd{in: a, peer: b}, &PipeEnd{in: b, peer: a}
}

func (p *PipeEnd) Receive(ctx context.Context) ([]byte, error) {
	return p.in.pop(ctx)
}

func (p *PipeEnd) Send(ctx context.Context, frame []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.peer.push(frame)
}

// Close closes both directions. Frames already queued on the other end can
// still be received there.
func (p *PipeEnd) Close() error {
	p.in.close()
	p.peer.close()
	return nil
}

// Package client stores and retrieves files through a remote provider over
// the mix network.
//
// A Client implements storage.Store, so it can stand in for a local backend
// anywhere one is accepted.
package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"xdao.co/mixfs/provider"
	"xdao.co/mixfs/storage"
	"xdao.co/mixfs/transport"
	"xdao.co/mixfs/wire"
)

var (
	// ErrRejected means the provider answered with a failure status.
	ErrRejected = errors.New("client: rejected by provider")
	// ErrUnexpectedReply means the reply body could not be interpreted.
	ErrUnexpectedReply = errors.New("client: unexpected reply")
	// ErrDesynchronized means an earlier request gave up while its reply was
	// still outstanding. Replies carry no request id, so the client cannot
	// tell a late reply from a fresh one and must be recreated.
	ErrDesynchronized = errors.New("client: reply stream out of sync")
)

// Client talks to one provider. Requests are serialized: the mix network does
// not correlate replies with requests, so only one may be outstanding.
type Client struct {
	transport transport.Transport
	provider  wire.Recipient

	// Timeout bounds each request and its reply. Zero means no bound.
	Timeout time.Duration

	mu       sync.Mutex
	desynced bool
}

var _ storage.Store = (*Client)(nil)

func New(t transport.Transport, providerAddress wire.Recipient) *Client {
	return &Client{transport: t, provider: providerAddress}
}

// Put uploads content and returns its address once the provider acknowledges it.
func (c *Client) Put(ctx context.Context, content []byte) (storage.Address, error) {
	body, err := c.roundTrip(ctx, wire.OpWriteFile, content)
	if err != nil {
		return storage.Address{}, err
	}
	switch string(body) {
	case string(provider.AckOK):
		return storage.AddressOf(content), nil
	case string(provider.AckErr):
		return storage.Address{}, storage.Failure("put", ErrRejected)
	default:
		return storage.Address{}, fmt.Errorf("%w: write acknowledgement %q", ErrUnexpectedReply, body)
	}
}

// Get downloads the blob at addr. Bytes that do not hash to addr are
// rejected with storage.ErrAddressMismatch.
func (c *Client) Get(ctx context.Context, addr storage.Address) ([]byte, bool, error) {
	if !addr.Defined() {
		return nil, false, storage.ErrInvalidAddress
	}
	body, err := c.roundTrip(ctx, wire.OpReadFile, []byte(addr.String()))
	if err != nil {
		return nil, false, err
	}
	rr, err := provider.DecodeReadReply(body)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %w", ErrUnexpectedReply, err)
	}
	switch rr.Status {
	case provider.StatusFound:
		if !addr.Matches(rr.Content) {
			return nil, false, storage.ErrAddressMismatch
		}
		return rr.Content, true, nil
	case provider.StatusNotFound:
		return nil, false, nil
	case provider.StatusInvalidAddress:
		return nil, false, storage.ErrInvalidAddress
	default:
		return nil, false, storage.Failure("get", ErrRejected)
	}
}

// Has reports whether the provider holds addr. It downloads the blob.
func (c *Client) Has(ctx context.Context, addr storage.Address) (bool, error) {
	_, found, err := c.Get(ctx, addr)
	return found, err
}

// Delete asks the provider to drop addr. The provider does not acknowledge
// deletes, so a nil error only means the request was sent.
func (c *Client) Delete(ctx context.Context, addr storage.Address) error {
	if !addr.Defined() {
		return storage.ErrInvalidAddress
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	return c.send(ctx, wire.OpDeleteFile, []byte(addr.String()), false)
}

func (c *Client) roundTrip(ctx context.Context, op wire.Operation, payload []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.desynced {
		return nil, storage.Failure(op.String(), ErrDesynchronized)
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	if err := c.send(ctx, op, payload, true); err != nil {
		return nil, err
	}
	for {
		frame, err := c.transport.Receive(ctx)
		if err != nil {
			// The request went out; its reply may still arrive.
			c.desynced = true
			return nil, storage.Failure(op.String(), err)
		}
		if len(frame) == 0 {
			continue
		}
		switch frame[0] {
		case wire.TagErrorResponse:
			return nil, storage.Failure(op.String(), fmt.Errorf("mix network: %s", frame[1:]))
		case wire.TagReceivedResponse:
			rx, err := wire.DecodeReceivedData(frame)
			if err != nil {
				return nil, fmt.Errorf("%w: %w", ErrUnexpectedReply, err)
			}
			return rx.Message, nil
		}
	}
}

func (c *Client) send(ctx context.Context, op wire.Operation, payload []byte, withReply bool) error {
	msg := make([]byte, 0, 1+len(payload))
	msg = append(msg, byte(op))
	msg = append(msg, payload...)
	req := wire.SendRequest{Recipient: c.provider, WithReply: withReply, Message: msg}
	if err := c.transport.Send(ctx, req.Encode()); err != nil {
		return storage.Failure(op.String(), err)
	}
	return nil
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.Timeout > 0 {
		return context.WithTimeout(ctx, c.Timeout)
	}
	return context.WithCancel(ctx)
}

// Package transport moves binary frames between the provider and the mix
// network client.
//
// A Transport is a bidirectional, ordered frame channel. Frames are opaque at
// this layer; package wire gives them meaning.
package transport

import (
	"context"
	"errors"
)

// DefaultURL is the websocket endpoint a local mix network client listens on.
const DefaultURL = "ws://localhost:1977"

// ErrClosed is returned by operations on a closed transport.
var ErrClosed = errors.New("transport: closed")

// Transport is a bidirectional frame channel.
//
// Receive blocks until a frame arrives, ctx ends, or the transport fails.
// Send and Receive may be called from different goroutines, but each of them
// must not be called concurrently with itself.
type Transport interface {
	Receive(ctx context.Context) ([]byte, error)
	Send(ctx context.Context, frame []byte) error
	Close() error
}

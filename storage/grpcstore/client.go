package grpcstore

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"xdao.co/mixfs/storage"
)

// Client implements storage.Store over a Store gRPC service.
type Client struct {
	cc     *grpc.ClientConn
	client storeClient

	// Timeout applies per RPC when non-zero.
	Timeout time.Duration
}

var _ storage.Store = (*Client)(nil)

type DialOptions struct {
	// Timeout applies to the initial dial when non-zero.
	Timeout time.Duration

	// MaxMsgBytes sets both send/recv max sizes when non-zero.
	MaxMsgBytes int
}

func Dial(target string, opts DialOptions) (*Client, error) {
	dialOpts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}
	if opts.MaxMsgBytes > 0 {
		dialOpts = append(dialOpts,
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(opts.MaxMsgBytes),
				grpc.MaxCallSendMsgSize(opts.MaxMsgBytes),
			),
		)
	}

	ctx := context.Background()
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	cc, err := grpc.DialContext(ctx, target, dialOpts...)
	if err != nil {
		return nil, storage.Failure("grpcstore: dial", err)
	}
	return NewClient(cc), nil
}

// NewClient wraps an existing connection.
func NewClient(cc *grpc.ClientConn) *Client {
	return &Client{cc: cc, client: storeClient{cc: cc}}
}

func (c *Client) Close() error {
	if c == nil || c.cc == nil {
		return nil
	}
	return c.cc.Close()
}

func (c *Client) Put(ctx context.Context, data []byte) (storage.Address, error) {
	expected := storage.AddressOf(data)

	ctx, cancel := c.ctx(ctx)
	defer cancel()

	reply, err := c.client.put(ctx, data)
	if err != nil {
		return storage.Address{}, mapRPC("put", err)
	}
	addr, err := storage.ParseAddress(reply.GetValue())
	if err != nil {
		return storage.Address{}, storage.ErrInvalidAddress
	}
	if addr != expected {
		return storage.Address{}, storage.ErrAddressMismatch
	}
	return addr, nil
}

func (c *Client) Get(ctx context.Context, addr storage.Address) ([]byte, bool, error) {
	if !addr.Defined() {
		return nil, false, storage.ErrInvalidAddress
	}
	ctx, cancel := c.ctx(ctx)
	defer cancel()

	reply, err := c.client.get(ctx, addr.String())
	if err != nil {
		mapped := mapRPC("get", err)
		if storage.IsNotFound(mapped) {
			return nil, false, nil
		}
		return nil, false, mapped
	}
	b := reply.GetValue()
	if !addr.Matches(b) {
		return nil, false, storage.ErrAddressMismatch
	}
	if b == nil {
		b = []byte{}
	}
	return b, true, nil
}

func (c *Client) Delete(ctx context.Context, addr storage.Address) error {
	if !addr.Defined() {
		return storage.ErrInvalidAddress
	}
	ctx, cancel := c.ctx(ctx)
	defer cancel()

	if err := c.client.delete(ctx, addr.String()); err != nil {
		return mapRPC("delete", err)
	}
	return nil
}

func (c *Client) Has(ctx context.Context, addr storage.Address) (bool, error) {
	if !addr.Defined() {
		return false, nil
	}
	ctx, cancel := c.ctx(ctx)
	defer cancel()

	reply, err := c.client.has(ctx, addr.String())
	if err != nil {
		return false, mapRPC("has", err)
	}
	return reply.GetValue(), nil
}

func (c *Client) ctx(parent context.Context) (context.Context, context.CancelFunc) {
	if c.Timeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, c.Timeout)
}

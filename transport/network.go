package transport

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"

	"xdao.co/mixfs/wire"
)

// Network is an in-memory stand-in for a mix network. Each node attached to
// it behaves like a local mix network client: it accepts wire requests and
// delivers wire responses.
//
// Reply tokens are single use. A SendRequest with WithReply set mints a token
// that routes one ReplyRequest back to the sender.
type Network struct {
	mu     sync.Mutex
	nodes  map[wire.Recipient]*Node
	tokens map[string]wire.Recipient
	next   uint64
}

// NewNetwork returns an empty network.
func NewNetwork() *Network {
	return &Network{
		nodes:  make(map[wire.Recipient]*Node),
		tokens: make(map[string]wire.Recipient),
	}
}

// Node is a Transport attached to a Network under a fixed address.
type Node struct {
	net  *Network
	addr wire.Recipient
	in   *inbox
}

var _ Transport = (*Node)(nil)

// Join attaches a node with the given address. It panics if the address is
// already taken.
func (n *Network) Join(addr wire.Recipient) *Node {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.nodes[addr]; ok {
		panic(fmt.Sprintf("transport: address %x already joined", addr[:]))
	}
	node := &Node{net: n, addr: addr, in: newInbox()}
	n.nodes[addr] = node
	return node
}

// Address returns the node's mix network address.
func (nd *Node) Address() wire.Recipient { return nd.addr }

func (nd *Node) Receive(ctx context.Context) ([]byte, error) {
	return nd.in.pop(ctx)
}

// Send interprets frame as an outbound request. Routing failures are
// reported to the sender as error responses, as a mix network client would.
// Frames that do not decode are rejected with the decode error.
func (nd *Node) Send(ctx context.Context, frame []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	req, err := wire.DecodeRequest(frame)
	if err != nil {
		return fmt.Errorf("transport: %w", err)
	}

	switch r := req.(type) {
	case wire.SelfAddressRequest:
		return nd.in.push(wire.EncodeSelfAddressResponse(nd.addr))
	case wire.SendRequest:
		dst, token, ok := nd.net.route(nd.addr, r)
		if !ok {
			return nd.in.push(wire.EncodeErrorResponse([]byte("unknown recipient")))
		}
		if err := dst.in.push(wire.EncodeReceivedData(r.Message, token)); err != nil {
			return nd.in.push(wire.EncodeErrorResponse([]byte("recipient unavailable")))
		}
		return nil
	case wire.ReplyRequest:
		dst, ok := nd.net.redeem(r.ReplyToken)
		if !ok {
			return nd.in.push(wire.EncodeErrorResponse([]byte("invalid reply token")))
		}
		// Replies reach a closed sender silently, like an offline client.
		_ = dst.in.push(wire.EncodeReceivedData(r.Message, nil))
		return nil
	default:
		return fmt.Errorf("transport: unsupported request %T", req)
	}
}

// Close detaches the node. Its address may be joined again.
func (nd *Node) Close() error {
	nd.net.mu.Lock()
	if nd.net.nodes[nd.addr] == nd {
		delete(nd.net.nodes, nd.addr)
	}
	nd.net.mu.Unlock()
	nd.in.close()
	return nil
}

func (n *Network) route(from wire.Recipient, r wire.SendRequest) (*Node, []byte, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	dst, ok := n.nodes[r.Recipient]
	if !ok {
		return nil, nil, false
	}
	if !r.WithReply {
		return dst, nil, true
	}
	n.next++
	token := binary.BigEndian.AppendUint64(nil, n.next)
	n.tokens[string(token)] = from
	return dst, token, true
}

func (n *Network) redeem(token []byte) (*Node, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	from, ok := n.tokens[string(token)]
	if !ok {
		return nil, false
	}
	delete(n.tokens, string(token))
	dst, ok := n.nodes[from]
	return dst, ok
}

package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"xdao.co/mixfs/storage"
	"xdao.co/mixfs/transport"
	"xdao.co/mixfs/wire"
)

// Dispatcher serves one inbound message at a time.
type Dispatcher struct {
	transport transport.Transport
	store     storage.Store
	log       logrus.FieldLogger

	// SendTimeout bounds each outbound frame. Zero means no bound.
	SendTimeout time.Duration

	state atomic.Int32
}

// Outcome describes what HandleFrame did with one frame.
type Outcome struct {
	// Received is set when the frame was an application message.
	Received  bool
	Operation wire.Operation
	// Address is the address written, read or deleted, when one was known.
	Address storage.Address

	// Replied is set once a reply frame carrying Reply was accepted by the transport.
	Replied bool
	Reply   []byte

	// Err is the per-message failure: decode, address, storage or protocol.
	Err error
	// SendErr is set when the reply could not be handed to the transport.
	SendErr error
}

// New returns a dispatcher reading from t and storing into s. A nil log
// discards output.
func New(t transport.Transport, s storage.Store, log logrus.FieldLogger) *Dispatcher {
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	return &Dispatcher{transport: t, store: s, log: log}
}

// State reports whether a message is in flight.
func (d *Dispatcher) State() State { return State(d.state.Load()) }

func (d *Dispatcher) setState(s State) {
	d.state.Store(int32(s))
	d.log.WithField("state", s.String()).Trace("dispatcher state")
}

// SelfAddress asks the mix network client for the provider's own address.
// The first frame received must answer the request.
func (d *Dispatcher) SelfAddress(ctx context.Context) (wire.Recipient, error) {
	if err := d.send(ctx, wire.EncodeSelfAddressRequest()); err != nil {
		return wire.Recipient{}, fmt.Errorf("provider: self address: %w", err)
	}
	frame, err := d.transport.Receive(ctx)
	if err != nil {
		return wire.Recipient{}, fmt.Errorf("provider: self address: %w", err)
	}
	resp, err := wire.DecodeResponse(frame)
	if err != nil {
		return wire.Recipient{}, fmt.Errorf("provider: self address: %w", err)
	}
	switch r := resp.(type) {
	case wire.SelfAddressResponse:
		return r.Address, nil
	case wire.ErrorResponse:
		return wire.Recipient{}, fmt.Errorf("provider: self address: %w: %s", ErrClientReported, r.Payload)
	default:
		return wire.Recipient{}, fmt.Errorf("provider: self address: unexpected %T", resp)
	}
}

// Serve handles frames until ctx ends or the transport fails. Per-message
// failures are logged and do not stop the loop.
func (d *Dispatcher) Serve(ctx context.Context) error {
	for {
		frame, err := d.transport.Receive(ctx)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return fmt.Errorf("provider: receive: %w", err)
		}
		out := d.HandleFrame(ctx, frame)
		if errors.Is(out.SendErr, transport.ErrClosed) {
			return fmt.Errorf("provider: send: %w", out.SendErr)
		}
	}
}

// HandleFrame decodes and processes a single inbound frame.
func (d *Dispatcher) HandleFrame(ctx context.Context, frame []byte) Outcome {
	resp, err := wire.DecodeResponse(frame)
	if err != nil {
		d.log.WithError(err).WithField("bytes", len(frame)).Warn("dropping undecodable frame")
		return Outcome{Err: err}
	}

	switch r := resp.(type) {
	case wire.ReceivedMessage:
		d.setState(Handling)
		defer d.setState(Idle)
		return d.handle(ctx, r)
	case wire.ErrorResponse:
		err := fmt.Errorf("%w: %s", ErrClientReported, r.Payload)
		d.log.WithError(err).Warn("mix network client reported an error")
		return Outcome{Err: err}
	default:
		d.log.Debugf("ignoring unsolicited %T", resp)
		return Outcome{}
	}
}

func (d *Dispatcher) handle(ctx context.Context, msg wire.ReceivedMessage) Outcome {
	out := Outcome{Received: true, Operation: msg.Operation}
	log := d.log.WithField("operation", msg.Operation.String())

	switch msg.Operation {
	case wire.OpWriteFile:
		d.writeFile(ctx, log, msg, &out)
	case wire.OpReadFile:
		d.readFile(ctx, log, msg, &out)
	case wire.OpDeleteFile:
		d.deleteFile(ctx, log, msg, &out)
	default:
		out.Err = fmt.Errorf("%w: 0x%02x", ErrUnknownOperation, byte(msg.Operation))
		log.WithError(out.Err).Warn("unknown operation")
	}
	return out
}

func (d *Dispatcher) writeFile(ctx context.Context, log logrus.FieldLogger, msg wire.ReceivedMessage, out *Outcome) {
	log = log.WithField("bytes", len(msg.Payload))
	body := AckOK
	addr, err := d.store.Put(ctx, msg.Payload)
	if err != nil {
		out.Err = err
		body = AckErr
		log.WithError(err).Error("store write failed")
	} else {
		out.Address = addr
		log = log.WithField("address", addr.String())
		log.Info("stored file")
	}

	if !msg.HasReplyToken() {
		if out.Err == nil {
			out.Err = ErrMissingReplyToken
		}
		log.Warn("write without reply token, acknowledgement skipped")
		return
	}
	d.reply(ctx, log, out, msg.ReplyToken, body)
}

func (d *Dispatcher) readFile(ctx context.Context, log logrus.FieldLogger, msg wire.ReceivedMessage, out *Outcome) {
	var body []byte
	addr, err := storage.ParseAddressBytes(msg.Payload)
	if err != nil {
		out.Err = err
		body = EncodeReadReply(StatusInvalidAddress, nil)
		log.WithError(err).Warn("read of invalid address")
	} else {
		out.Address = addr
		log = log.WithField("address", addr.String())
		content, found, err := d.store.Get(ctx, addr)
		switch {
		case err != nil:
			out.Err = err
			body = EncodeReadReply(StatusStorageFailure, nil)
			log.WithError(err).Error("store read failed")
		case !found:
			body = EncodeReadReply(StatusNotFound, nil)
			log.Info("file not found")
		default:
			body = EncodeReadReply(StatusFound, content)
			log.WithField("bytes", len(content)).Info("read file")
		}
	}

	token := msg.ReplyToken
	if !msg.HasReplyToken() {
		token = []byte{}
		log.Warn("read without reply token, replying with an empty token")
	}
	d.reply(ctx, log, out, token, body)
}

func (d *Dispatcher) deleteFile(ctx context.Context, log logrus.FieldLogger, msg wire.ReceivedMessage, out *Outcome) {
	addr, err := storage.ParseAddressBytes(msg.Payload)
	if err != nil {
		out.Err = err
		log.WithError(err).Warn("delete of invalid address")
		return
	}
	out.Address = addr
	log = log.WithField("address", addr.String())
	if err := d.store.Delete(ctx, addr); err != nil {
		out.Err = err
		log.WithError(err).Error("store delete failed")
		return
	}
	log.Info("deleted file")
}

func (d *Dispatcher) reply(ctx context.Context, log logrus.FieldLogger, out *Outcome, token, body []byte) {
	if err := d.send(ctx, wire.EncodeReplyRequest(body, token)); err != nil {
		out.SendErr = err
		log.WithError(err).Error("reply send failed")
		return
	}
	out.Replied = true
	out.Reply = body
}

func (d *Dispatcher) send(ctx context.Context, frame []byte) error {
	if d.SendTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.SendTimeout)
		defer cancel()
	}
	return d.transport.Send(ctx, frame)
}

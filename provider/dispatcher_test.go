package provider

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"xdao.co/mixfs/storage"
	"xdao.co/mixfs/storage/memstore"
	"xdao.co/mixfs/transport"
	"xdao.co/mixfs/wire"
)

type harness struct {
	d     *Dispatcher
	peer  *transport.PipeEnd
	store *memstore.Store
	hook  *logtest.Hook
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWithStore(t, memstore.New())
}

func newHarnessWithStore(t *testing.T, s storage.Store) *harness {
	t.Helper()
	log, hook := logtest.NewNullLogger()
	log.SetLevel(logrus.TraceLevel)
	local, peer := transport.Pipe()
	t.Cleanup(func() { _ = local.Close() })
	h := &harness{d: New(local, s, log), peer: peer, hook: hook}
	if ms, ok := s.(*memstore.Store); ok {
		h.store = ms
	}
	return h
}

// reply reads the next outbound frame and decodes it as a reply request.
func (h *harness) reply(t *testing.T) wire.ReplyRequest {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	frame, err := h.peer.Receive(ctx)
	require.NoError(t, err)
	req, err := wire.DecodeRequest(frame)
	require.NoError(t, err)
	rr, ok := req.(wire.ReplyRequest)
	require.True(t, ok, "expected reply request, got %T", req)
	return rr
}

func (h *harness) requireNoFrame(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := h.peer.Receive(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded, "no frame must be sent")
}

func TestReadFile_WithoutReplyTokenStillReplies(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	addr, err := h.store.Put(ctx, []byte("stored blob"))
	require.NoError(t, err)

	frame := wire.EncodeReceived(wire.OpReadFile, []byte(addr.String()), nil)
	out := h.d.HandleFrame(ctx, frame)
	require.NoError(t, out.Err)
	require.True(t, out.Received)
	require.True(t, out.Replied)
	require.Equal(t, addr, out.Address)

	rr := h.reply(t)
	require.Empty(t, rr.ReplyToken)
	got, err := DecodeReadReply(rr.Message)
	require.NoError(t, err)
	require.Equal(t, StatusFound, got.Status)
	require.Equal(t, "stored blob", string(got.Content))
}

func TestWriteFile_Acknowledged(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	token := []byte("surb")

	out := h.d.HandleFrame(ctx, wire.EncodeReceived(wire.OpWriteFile, []byte("data"), token))
	require.NoError(t, out.Err)
	require.Equal(t, storage.AddressOf([]byte("data")), out.Address)
	require.Equal(t, AckOK, out.Reply)

	rr := h.reply(t)
	require.Equal(t, token, rr.ReplyToken)
	require.Equal(t, "OK", string(rr.Message))

	got, found, err := h.store.Get(ctx, out.Address)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "data", string(got))
}

func TestWriteFile_MissingReplyToken(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	out := h.d.HandleFrame(ctx, wire.EncodeReceived(wire.OpWriteFile, []byte("orphan"), nil))
	require.ErrorIs(t, out.Err, ErrMissingReplyToken)
	require.False(t, out.Replied)
	h.requireNoFrame(t)

	has, err := h.store.Has(ctx, storage.AddressOf([]byte("orphan")))
	require.NoError(t, err)
	require.True(t, has, "blob is stored even without a reply token")

	var warned bool
	for _, e := range h.hook.AllEntries() {
		if e.Level == logrus.WarnLevel && e.Data["operation"] == "WriteFile" {
			warned = true
		}
	}
	require.True(t, warned, "missing reply token must be logged")
}

func TestReadFile_NotFoundIsDistinctFromEmpty(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	token := []byte{1}

	empty, err := h.store.Put(ctx, nil)
	require.NoError(t, err)
	h.d.HandleFrame(ctx, wire.EncodeReceived(wire.OpReadFile, []byte(empty.String()), token))
	got, err := DecodeReadReply(h.reply(t).Message)
	require.NoError(t, err)
	require.Equal(t, StatusFound, got.Status)
	require.Empty(t, got.Content)

	missing := storage.AddressOf([]byte("never stored"))
	out := h.d.HandleFrame(ctx, wire.EncodeReceived(wire.OpReadFile, []byte(missing.String()), token))
	require.NoError(t, out.Err)
	got, err = DecodeReadReply(h.reply(t).Message)
	require.NoError(t, err)
	require.Equal(t, StatusNotFound, got.Status)
	require.Nil(t, got.Content)
}

func TestReadFile_InvalidAddress(t *testing.T) {
	h := newHarness(t)
	out := h.d.HandleFrame(context.Background(), wire.EncodeReceived(wire.OpReadFile, []byte("../etc/passwd"), []byte{9}))
	require.ErrorIs(t, out.Err, storage.ErrInvalidAddress)
	require.Equal(t, []byte{StatusInvalidAddress}, h.reply(t).Message)
}

func TestDeleteFile(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	addr, err := h.store.Put(ctx, []byte("data"))
	require.NoError(t, err)

	out := h.d.HandleFrame(ctx, wire.EncodeReceived(wire.OpDeleteFile, []byte(addr.String()), []byte("tok")))
	require.NoError(t, out.Err)
	require.False(t, out.Replied)
	h.requireNoFrame(t)

	_, found, err := h.store.Get(ctx, addr)
	require.NoError(t, err)
	require.False(t, found)

	// Idempotent.
	out = h.d.HandleFrame(ctx, wire.EncodeReceived(wire.OpDeleteFile, []byte(addr.String()), nil))
	require.NoError(t, out.Err)

	out = h.d.HandleFrame(ctx, wire.EncodeReceived(wire.OpDeleteFile, []byte("zz"), nil))
	require.ErrorIs(t, out.Err, storage.ErrInvalidAddress)
	h.requireNoFrame(t)
}

func TestUnknownOperation(t *testing.T) {
	h := newHarness(t)
	out := h.d.HandleFrame(context.Background(), wire.EncodeReceived(wire.Operation(0x7f), []byte("x"), []byte("tok")))
	require.True(t, out.Received)
	require.ErrorIs(t, out.Err, ErrUnknownOperation)
	require.False(t, out.Replied)
	h.requireNoFrame(t)
	require.Equal(t, Idle, h.d.State())
}

func TestNonReceivedFrames(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	out := h.d.HandleFrame(ctx, wire.EncodeErrorResponse([]byte("no route")))
	require.False(t, out.Received)
	require.ErrorIs(t, out.Err, ErrClientReported)
	require.ErrorContains(t, out.Err, "no route")

	out = h.d.HandleFrame(ctx, wire.EncodeSelfAddressResponse(wire.Recipient{}))
	require.False(t, out.Received)
	require.NoError(t, out.Err)

	out = h.d.HandleFrame(ctx, []byte{0x01, 0x02})
	require.ErrorIs(t, out.Err, wire.ErrMalformedFrame)
	h.requireNoFrame(t)
}

type failingStore struct {
	onCall func()
}

var errDisk = errors.New("disk full")

func (f failingStore) call() {
	if f.onCall != nil {
		f.onCall()
	}
}

func (f failingStore) Put(context.Context, []byte) (storage.Address, error) {
	f.call()
	return storage.Address{}, storage.Failure("put", errDisk)
}

func (f failingStore) Get(context.Context, storage.Address) ([]byte, bool, error) {
	f.call()
	return nil, false, storage.Failure("get", errDisk)
}

func (f failingStore) Delete(context.Context, storage.Address) error {
	f.call()
	return storage.Failure("delete", errDisk)
}

func (f failingStore) Has(context.Context, storage.Address) (bool, error) {
	f.call()
	return false, storage.Failure("has", errDisk)
}

func TestStorageFailure(t *testing.T) {
	var h *harness
	var states []State
	h = newHarnessWithStore(t, failingStore{onCall: func() { states = append(states, h.d.State()) }})
	ctx := context.Background()

	out := h.d.HandleFrame(ctx, wire.EncodeReceived(wire.OpWriteFile, []byte("data"), []byte("tok")))
	require.True(t, storage.IsStorageFailure(out.Err))
	require.Equal(t, "ERR", string(h.reply(t).Message))

	addr := storage.AddressOf([]byte("data"))
	out = h.d.HandleFrame(ctx, wire.EncodeReceived(wire.OpReadFile, []byte(addr.String()), []byte("tok")))
	require.True(t, storage.IsStorageFailure(out.Err))
	require.Equal(t, []byte{StatusStorageFailure}, h.reply(t).Message)

	out = h.d.HandleFrame(ctx, wire.EncodeReceived(wire.OpDeleteFile, []byte(addr.String()), nil))
	require.True(t, storage.IsStorageFailure(out.Err))

	require.Equal(t, []State{Handling, Handling, Handling}, states)
	require.Equal(t, Idle, h.d.State())
}

func TestServe_SurvivesMalformedFrames(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errc := make(chan error, 1)
	go func() { errc <- h.d.Serve(ctx) }()

	pctx := context.Background()
	require.NoError(t, h.peer.Send(pctx, []byte{0xff}))
	require.NoError(t, h.peer.Send(pctx, []byte{wire.TagReceivedResponse, 0x00, 0, 0, 0, 0, 0, 0, 0, 9, 'x'}))
	require.NoError(t, h.peer.Send(pctx, wire.EncodeReceived(wire.OpWriteFile, []byte("after"), []byte("tok"))))

	rr := h.reply(t)
	require.Equal(t, "OK", string(rr.Message))

	cancel()
	select {
	case err := <-errc:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestServe_ReturnsOnTransportClose(t *testing.T) {
	h := newHarness(t)
	errc := make(chan error, 1)
	go func() { errc <- h.d.Serve(context.Background()) }()

	require.NoError(t, h.peer.Close())
	select {
	case err := <-errc:
		require.ErrorIs(t, err, transport.ErrClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after close")
	}
}

func TestSelfAddress(t *testing.T) {
	var want wire.Recipient
	want[0], want[31] = 0xaa, 0x55
	node := transport.NewNetwork().Join(want)
	d := New(node, memstore.New(), nil)
	d.SendTimeout = time.Second

	got, err := d.SelfAddress(context.Background())
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestSelfAddress_ErrorResponse(t *testing.T) {
	h := newHarness(t)
	go func() {
		ctx := context.Background()
		if _, err := h.peer.Receive(ctx); err == nil {
			_ = h.peer.Send(ctx, wire.EncodeErrorResponse([]byte("not ready")))
		}
	}()
	_, err := h.d.SelfAddress(context.Background())
	require.ErrorIs(t, err, ErrClientReported)
}

func TestDecodeReadReply(t *testing.T) {
	_, err := DecodeReadReply(nil)
	require.Error(t, err)
	_, err = DecodeReadReply([]byte{StatusNotFound, 'x'})
	require.Error(t, err)
	_, err = DecodeReadReply([]byte{0x09})
	require.Error(t, err)

	r, err := DecodeReadReply(EncodeReadReply(StatusFound, []byte("abc")))
	require.NoError(t, err)
	require.Equal(t, ReadReply{Status: StatusFound, Content: []byte("abc")}, r)
}

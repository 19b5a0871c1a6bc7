package transport

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPipe_OrderedDelivery(t *testing.T) {
	ctx := context.Background()
	a, b := Pipe()
	defer a.Close()

	for _, f := range []string{"one", "two", "three"} {
		require.NoError(t, a.Send(ctx, []byte(f)))
	}
	for _, want := range []string{"one", "two", "three"} {
		got, err := b.Receive(ctx)
		require.NoError(t, err)
		require.Equal(t, want, string(got))
	}

	require.NoError(t, b.Send(ctx, []byte("back")))
	got, err := a.Receive(ctx)
	require.NoError(t, err)
	require.Equal(t, "back", string(got))
}

func TestPipe_SendCopiesFrame(t *testing.T) {
	ctx := context.Background()
	a, b := Pipe()
	frame := []byte("abc")
	require.NoError(t, a.Send(ctx, frame))
	frame[0] = 'x'
	got, err := b.Receive(ctx)
	require.NoError(t, err)
	require.Equal(t, "abc", string(got))
}

func TestPipe_ReceiveHonoursContext(t *testing.T) {
	_, b := Pipe()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := b.Receive(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPipe_CloseDrainsThenFails(t *testing.T) {
	ctx := context.Background()
	a, b := Pipe()
	require.NoError(t, a.Send(ctx, []byte("last")))
	require.NoError(t, a.Close())

	got, err := b.Receive(ctx)
	require.NoError(t, err)
	require.Equal(t, "last", string(got))

	_, err = b.Receive(ctx)
	require.True(t, errors.Is(err, ErrClosed))
	require.ErrorIs(t, b.Send(ctx, []byte("x")), ErrClosed)
}

func TestPipe_CloseWakesReceiver(t *testing.T) {
	a, b := Pipe()
	errc := make(chan error, 1)
	go func() {
		_, err := b.Receive(context.Background())
		errc <- err
	}()
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, a.Close())
	select {
	case err := <-errc:
		require.ErrorIs(t, err, ErrClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("receiver was not woken by Close")
	}
}

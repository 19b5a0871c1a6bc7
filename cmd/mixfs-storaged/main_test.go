package main

import (
	"bytes"
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"xdao.co/mixfs/storage/grpcstore"
)

func TestRun_ServesStore(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ready := make(chan net.Addr, 1)
	done := make(chan int, 1)
	go func() {
		done <- run(ctx, []string{"--listen", "127.0.0.1:0", "--backend", "memory"}, &bytes.Buffer{}, &bytes.Buffer{}, ready)
	}()

	var addr net.Addr
	select {
	case addr = <-ready:
	case code := <-done:
		t.Fatalf("exited early with %d", code)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not start")
	}

	c, err := grpcstore.Dial(addr.String(), grpcstore.DialOptions{Timeout: 2 * time.Second})
	require.NoError(t, err)
	defer c.Close()

	a, err := c.Put(ctx, []byte("over grpc"))
	require.NoError(t, err)
	got, found, err := c.Get(ctx, a)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "over grpc", string(got))

	cancel()
	select {
	case code := <-done:
		require.Equal(t, 0, code)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestRun_BadInvocation(t *testing.T) {
	ctx := context.Background()
	require.Equal(t, 2, run(ctx, []string{"--nope"}, &bytes.Buffer{}, &bytes.Buffer{}, nil))
	require.Equal(t, 2, run(ctx, []string{"--backend", "missing"}, &bytes.Buffer{}, &bytes.Buffer{}, nil))
	require.Equal(t, 2, run(ctx, []string{"--backend", "localfs"}, &bytes.Buffer{}, &bytes.Buffer{}, nil), "localfs needs a directory")

	var out bytes.Buffer
	require.Equal(t, 0, run(ctx, []string{"--list-backends"}, &out, &bytes.Buffer{}, nil))
	require.Contains(t, out.String(), "memory")
}

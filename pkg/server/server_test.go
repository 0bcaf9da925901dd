package server

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/putd/pkg/store"
	"github.com/marmos91/putd/pkg/store/memory"
)

// fakeAdapter blocks in Serve until cancelled or failed.
type fakeAdapter struct {
	protocol string
	port     int
	failWith error

	store    store.Store
	stopped  atomic.Int32
	stopOnce sync.Once
	stopCh   chan struct{}
	started  chan struct{}
}

func newFakeAdapter(protocol string, port int) *fakeAdapter {
	return &fakeAdapter{
		protocol: protocol,
		port:     port,
		stopCh:   make(chan struct{}),
		started:  make(chan struct{}),
	}
}

func (f *fakeAdapter) Serve(ctx context.Context) error {
	close(f.started)
	if f.failWith != nil {
		return f.failWith
	}
	select {
	case <-ctx.Done():
	case <-f.stopCh:
	}
	return nil
}

func (f *fakeAdapter) Stop(context.Context) error {
	f.stopped.Add(1)
	f.stopOnce.Do(func() { close(f.stopCh) })
	return nil
}

func (f *fakeAdapter) SetStore(st store.Store) { f.store = st }

func (f *fakeAdapter) Protocol() string { return f.protocol }

func (f *fakeAdapter) Port() int { return f.port }

func newStore(t *testing.T) store.Store {
	t.Helper()
	st, err := memory.New(context.Background(), 0)
	require.NoError(t, err)
	return st
}

func TestAddAdapter_InjectsStore(t *testing.T) {
	st := newStore(t)
	srv := New(st)
	a := newFakeAdapter("PUT", 13000)

	require.NoError(t, srv.AddAdapter(a))
	assert.Same(t, st, a.store)
	assert.Len(t, srv.Adapters(), 1)
}

func TestAddAdapter_Conflicts(t *testing.T) {
	srv := New(newStore(t))
	require.NoError(t, srv.AddAdapter(newFakeAdapter("PUT", 13000)))

	assert.Error(t, srv.AddAdapter(newFakeAdapter("PUT", 13001)), "duplicate protocol")
	assert.Error(t, srv.AddAdapter(newFakeAdapter("OTHER", 13000)), "duplicate port")
	assert.NoError(t, srv.AddAdapter(newFakeAdapter("DYNAMIC", 0)))
}

func TestServe_StopsAdaptersOnCancel(t *testing.T) {
	srv := New(newStore(t))
	a := newFakeAdapter("PUT", 0)
	require.NoError(t, srv.AddAdapter(a))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()

	<-a.started
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return")
	}
	assert.Equal(t, int32(1), a.stopped.Load())

	assert.ErrorIs(t, srv.Serve(context.Background()), ErrAlreadyServed)
}

func TestServe_AdapterFailureStopsOthers(t *testing.T) {
	srv := New(newStore(t))
	healthy := newFakeAdapter("PUT", 13000)
	broken := newFakeAdapter("BROKEN", 13001)
	broken.failWith = errors.New("bind: address already in use")
	require.NoError(t, srv.AddAdapter(healthy))
	require.NoError(t, srv.AddAdapter(broken))

	err := srv.Serve(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BROKEN")
	assert.Equal(t, int32(1), healthy.stopped.Load())
}

func TestServe_NoAdapters(t *testing.T) {
	srv := New(newStore(t))
	assert.Error(t, srv.Serve(context.Background()))
}

package client

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aether-kv/kvs/internal/engine"
	"github.com/aether-kv/kvs/internal/kvserr"
	"github.com/aether-kv/kvs/internal/pool"
	"github.com/aether-kv/kvs/internal/server"
)

func startTestServer(t *testing.T) string {
	t.Helper()
	store, err := engine.OpenKvStore(t.TempDir(), 1<<20, 4096, time.Hour)
	if err != nil {
		t.Fatalf("OpenKvStore() error = %v", err)
	}
	srv, err := server.New("127.0.0.1:0", store, pool.NewSharedQueue(4))
	if err != nil {
		t.Fatalf("server.New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { srv.Run(ctx); close(done) }()
	t.Cleanup(func() {
		cancel()
		<-done
		store.Close()
	})

	return srv.Addr().String()
}

func TestClientSetGetRemove(t *testing.T) {
	c := New(startTestServer(t))

	if err := c.Set("k", "v"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	value, found, err := c.Get("k")
	if err != nil || !found || value != "v" {
		t.Errorf("Get() = %q, %v, %v, want \"v\", true, nil", value, found, err)
	}

	if err := c.Remove("k"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}

	_, found, err = c.Get("k")
	if err != nil || found {
		t.Errorf("Get() after remove = _, %v, %v, want false, nil", found, err)
	}

	if err := c.Remove("k"); !errors.Is(err, kvserr.ErrKeyNotFound) {
		t.Errorf("Remove() on absent key error = %v, want kvserr.ErrKeyNotFound", err)
	}
}

func TestClientScan(t *testing.T) {
	c := New(startTestServer(t))

	keys, err := c.Scan()
	if err != nil || len(keys) != 0 {
		t.Fatalf("Scan() on empty store = %v, %v, want empty, nil", keys, err)
	}

	c.Set("a", "1")
	c.Set("b", "2")

	keys, err = c.Scan()
	if err != nil || len(keys) != 2 {
		t.Errorf("Scan() = %v, %v, want 2 keys, nil", keys, err)
	}
}

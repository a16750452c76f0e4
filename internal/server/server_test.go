package server

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/aether-kv/kvs/internal/engine"
	"github.com/aether-kv/kvs/internal/pool"
	"github.com/aether-kv/kvs/internal/protocol"
)

func startTestServer(t *testing.T) (addr string, cancel context.CancelFunc) {
	t.Helper()

	store, err := engine.OpenKvStore(t.TempDir(), 1<<20, 4096, time.Hour)
	if err != nil {
		t.Fatalf("OpenKvStore() error = %v", err)
	}

	p := pool.NewSharedQueue(4)
	srv, err := New("127.0.0.1:0", store, p)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		srv.Run(ctx)
		close(done)
	}()

	t.Cleanup(func() {
		cancel()
		<-done
		store.Close()
	})

	return srv.Addr().String(), cancel
}

func send(t *testing.T, addr string, req protocol.Request) protocol.Response {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	if err := protocol.WriteRequest(conn, req); err != nil {
		t.Fatalf("WriteRequest() error = %v", err)
	}
	resp, err := protocol.ReadResponse(conn)
	if err != nil {
		t.Fatalf("ReadResponse() error = %v", err)
	}
	return resp
}

func TestServerSetGetRemoveScan(t *testing.T) {
	addr, _ := startTestServer(t)

	resp := send(t, addr, protocol.Request{Verb: protocol.Set, Key: "k", Value: "v"})
	if !resp.OK {
		t.Fatalf("SET response = %+v, want OK", resp)
	}

	resp = send(t, addr, protocol.Request{Verb: protocol.Get, Key: "k"})
	if !resp.OK || len(resp.Lines) != 2 || resp.Lines[0] != "1" || resp.Lines[1] != "v" {
		t.Errorf("GET response = %+v, want Success/1/v", resp)
	}

	resp = send(t, addr, protocol.Request{Verb: protocol.Get, Key: "missing"})
	if !resp.OK || len(resp.Lines) != 1 || resp.Lines[0] != "-1" {
		t.Errorf("GET missing response = %+v, want Success/-1", resp)
	}

	resp = send(t, addr, protocol.Request{Verb: protocol.Rm, Key: "missing"})
	if resp.OK || len(resp.Lines) != 1 || resp.Lines[0] != "Key not found" {
		t.Errorf("RM missing response = %+v, want Error/Key not found", resp)
	}

	resp = send(t, addr, protocol.Request{Verb: protocol.Scan})
	if !resp.OK || len(resp.Lines) != 1 || resp.Lines[0] != "k" {
		t.Errorf("SCAN response = %+v, want Success/k", resp)
	}

	resp = send(t, addr, protocol.Request{Verb: protocol.Rm, Key: "k"})
	if !resp.OK {
		t.Errorf("RM k response = %+v, want OK", resp)
	}
}

func TestServerInvalidKeySizeReportsError(t *testing.T) {
	addr, _ := startTestServer(t)

	oversized := make([]byte, 300)
	for i := range oversized {
		oversized[i] = 'k'
	}
	resp := send(t, addr, protocol.Request{Verb: protocol.Set, Key: string(oversized), Value: "v"})
	if resp.OK {
		t.Errorf("SET with oversized key response = %+v, want Error", resp)
	}
}

// Package server runs the TCP accept loop: one connection per request,
// handed to a worker pool, executed against an engine, and closed after
// exactly one response is written.
package server

import (
	"bufio"
	"context"
	"errors"
	"log/slog"
	"net"

	"github.com/aether-kv/kvs/internal/engine"
	"github.com/aether-kv/kvs/internal/kvserr"
	"github.com/aether-kv/kvs/internal/pool"
	"github.com/aether-kv/kvs/internal/protocol"
)

// Server binds a listener and dispatches accepted connections to a
// worker pool. Engine is a cheap handle shared across every connection;
// there is no global server lock around it.
type Server struct {
	ln     net.Listener
	engine engine.Engine
	pool   pool.Pool
}

// New binds addr and constructs a server running requests against
// engine via pool.
func New(addr string, eng engine.Engine, workers pool.Pool) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{ln: ln, engine: eng, pool: workers}, nil
}

// Addr returns the address the listener is bound to, useful for tests
// that bind an ephemeral port.
func (s *Server) Addr() net.Addr {
	return s.ln.Addr()
}

// Run accepts connections until ctx is canceled or the listener returns
// an unrecoverable error. On ctx cancellation it closes the listener,
// closes the pool, saves the index, and returns nil, or the SaveIndex
// error if saving fails; a listener error is returned as-is.
func (s *Server) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.ln.Close()
	}()

	for {
		conn, err := s.ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return s.shutdown()
			default:
				return err
			}
		}
		s.pool.Spawn(func() { s.handle(conn) })
	}
}

func (s *Server) shutdown() error {
	s.pool.Close()
	if err := s.engine.SaveIndex(); err != nil {
		slog.Warn("server: save index on shutdown", "error", err)
		return err
	}
	return nil
}

func (s *Server) handle(conn net.Conn) {
	defer conn.Close()

	req, err := protocol.ReadRequest(bufio.NewReader(conn))
	if err != nil {
		writeErr(conn, err)
		return
	}

	switch req.Verb {
	case protocol.Set:
		if err := s.engine.Set(req.Key, req.Value); err != nil {
			writeErr(conn, err)
			return
		}
		writeOrLog(protocol.WriteSuccess(conn))
	case protocol.Get:
		value, found, err := s.engine.Get(req.Key)
		if err != nil {
			writeErr(conn, err)
			return
		}
		writeOrLog(protocol.WriteSuccessValue(conn, value, found))
	case protocol.Rm:
		if err := s.engine.Remove(req.Key); err != nil {
			writeErr(conn, err)
			return
		}
		writeOrLog(protocol.WriteSuccess(conn))
	case protocol.Scan:
		writeOrLog(protocol.WriteSuccessKeys(conn, s.engine.Scan()))
	}
}

func writeErr(conn net.Conn, err error) {
	writeOrLog(protocol.WriteError(conn, errMessage(err)))
}

func writeOrLog(err error) {
	if err != nil {
		slog.Warn("server: writing response", "error", err)
	}
}

// errMessage strips the sentinel error's internal %w wrapping down to a
// message a client (or a human at the other end of a client binary) can
// read. Known sentinels get a short, stable message; anything else
// falls back to err.Error().
func errMessage(err error) string {
	switch {
	case errors.Is(err, kvserr.ErrKeyNotFound):
		return "Key not found"
	case errors.Is(err, kvserr.ErrInvalidKeySize):
		return "Invalid key size"
	case errors.Is(err, kvserr.ErrInvalidValueSize):
		return "Invalid value size"
	case errors.Is(err, kvserr.ErrUnknownCommand):
		return "Unknown command"
	case errors.Is(err, kvserr.ErrCorruption):
		return "Corruption detected"
	default:
		return err.Error()
	}
}

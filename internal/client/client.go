// Package client implements the single-request-per-connection dialer
// cmd/kvs-client uses: dial, write one request frame, read one response
// frame, close.
package client

import (
	"fmt"
	"net"
	"strconv"

	"github.com/aether-kv/kvs/internal/kvserr"
	"github.com/aether-kv/kvs/internal/protocol"
)

// Client dials addr fresh for every call; the server closes each
// connection after one response, so there is no connection to reuse.
type Client struct {
	addr string
}

// New returns a client targeting addr.
func New(addr string) *Client {
	return &Client{addr: addr}
}

func (c *Client) roundTrip(req protocol.Request) (protocol.Response, error) {
	conn, err := net.Dial("tcp", c.addr)
	if err != nil {
		return protocol.Response{}, fmt.Errorf("%w: dial %s: %v", kvserr.ErrIo, c.addr, err)
	}
	defer conn.Close()

	if err := protocol.WriteRequest(conn, req); err != nil {
		return protocol.Response{}, err
	}
	return protocol.ReadResponse(conn)
}

// Set stores key -> value.
func (c *Client) Set(key, value string) error {
	resp, err := c.roundTrip(protocol.Request{Verb: protocol.Set, Key: key, Value: value})
	if err != nil {
		return err
	}
	return asError(resp)
}

// Get returns key's value. found is false both when the key is absent
// and when the server reports one of its own errors; check err first.
func (c *Client) Get(key string) (value string, found bool, err error) {
	resp, err := c.roundTrip(protocol.Request{Verb: protocol.Get, Key: key})
	if err != nil {
		return "", false, err
	}
	if !resp.OK {
		return "", false, asError(resp)
	}
	if len(resp.Lines) == 0 {
		return "", false, fmt.Errorf("%w: malformed GET response", kvserr.ErrCorruption)
	}
	if resp.Lines[0] == "-1" {
		return "", false, nil
	}
	if len(resp.Lines) < 2 {
		return "", false, fmt.Errorf("%w: malformed GET response", kvserr.ErrCorruption)
	}
	if _, err := strconv.Atoi(resp.Lines[0]); err != nil {
		return "", false, fmt.Errorf("%w: malformed GET length %q", kvserr.ErrCorruption, resp.Lines[0])
	}
	return resp.Lines[1], true, nil
}

// Remove deletes key. Returns kvserr.ErrKeyNotFound if it had no entry.
func (c *Client) Remove(key string) error {
	resp, err := c.roundTrip(protocol.Request{Verb: protocol.Rm, Key: key})
	if err != nil {
		return err
	}
	return asError(resp)
}

// Scan returns every live key.
func (c *Client) Scan() ([]string, error) {
	resp, err := c.roundTrip(protocol.Request{Verb: protocol.Scan})
	if err != nil {
		return nil, err
	}
	if !resp.OK {
		return nil, asError(resp)
	}
	if len(resp.Lines) == 1 && resp.Lines[0] == "" {
		return nil, nil
	}
	return resp.Lines, nil
}

func asError(resp protocol.Response) error {
	if resp.OK {
		return nil
	}
	message := ""
	if len(resp.Lines) > 0 {
		message = resp.Lines[0]
	}
	if message == "Key not found" {
		return kvserr.ErrKeyNotFound
	}
	return fmt.Errorf("server error: %s", message)
}

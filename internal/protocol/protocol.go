// Package protocol implements the line protocol the server and client
// speak: CRLF-terminated frames of printable UTF-8, one request and one
// response per connection.
package protocol

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/aether-kv/kvs/internal/kvserr"
)

// Request verbs.
const (
	Set  = "SET"
	Get  = "GET"
	Rm   = "RM"
	Scan = "SCAN"
)

// Request is one parsed client command.
type Request struct {
	Verb  string
	Key   string
	Value string // only set for Set
}

// ReadRequest parses one request frame from r. The number of lines it
// consumes depends on Verb: SET reads key and value, GET/RM read key,
// SCAN reads nothing further.
func ReadRequest(r *bufio.Reader) (Request, error) {
	verb, err := readLine(r)
	if err != nil {
		return Request{}, err
	}

	switch verb {
	case Set:
		key, err := readLine(r)
		if err != nil {
			return Request{}, err
		}
		value, err := readLine(r)
		if err != nil {
			return Request{}, err
		}
		return Request{Verb: Set, Key: key, Value: value}, nil
	case Get:
		key, err := readLine(r)
		if err != nil {
			return Request{}, err
		}
		return Request{Verb: Get, Key: key}, nil
	case Rm:
		key, err := readLine(r)
		if err != nil {
			return Request{}, err
		}
		return Request{Verb: Rm, Key: key}, nil
	case Scan:
		return Request{Verb: Scan}, nil
	default:
		return Request{}, fmt.Errorf("%w: %q", kvserr.ErrUnknownCommand, verb)
	}
}

// WriteRequest writes req's frame to w.
func WriteRequest(w io.Writer, req Request) error {
	var frame string
	switch req.Verb {
	case Set:
		frame = fmt.Sprintf("SET\r\n%s\r\n%s\r\n", req.Key, req.Value)
	case Get:
		frame = fmt.Sprintf("GET\r\n%s\r\n", req.Key)
	case Rm:
		frame = fmt.Sprintf("RM\r\n%s\r\n", req.Key)
	case Scan:
		frame = "SCAN\r\n"
	default:
		return fmt.Errorf("%w: %q", kvserr.ErrUnknownCommand, req.Verb)
	}
	_, err := io.WriteString(w, frame)
	if err != nil {
		return fmt.Errorf("%w: write request: %v", kvserr.ErrIo, err)
	}
	return nil
}

// WriteSuccess writes the bare Success response used for SET/RM.
func WriteSuccess(w io.Writer) error {
	return writeString(w, "Success\r\n")
}

// WriteSuccessValue writes GET's response: the value and its byte
// length when found, or -1 when the key is absent.
func WriteSuccessValue(w io.Writer, value string, found bool) error {
	if !found {
		return writeString(w, "Success\r\n-1\r\n")
	}
	return writeString(w, fmt.Sprintf("Success\r\n%d\r\n%s\r\n", len(value), value))
}

// WriteSuccessKeys writes SCAN's response: every live key, one per line.
func WriteSuccessKeys(w io.Writer, keys []string) error {
	return writeString(w, fmt.Sprintf("Success\r\n%s\r\n", strings.Join(keys, "\r\n")))
}

// WriteError writes the Error response carrying message.
func WriteError(w io.Writer, message string) error {
	return writeString(w, fmt.Sprintf("Error\r\n%s\r\n", message))
}

func writeString(w io.Writer, s string) error {
	if _, err := io.WriteString(w, s); err != nil {
		return fmt.Errorf("%w: write response: %v", kvserr.ErrIo, err)
	}
	return nil
}

// Response is a parsed server reply. Lines holds every line after the
// leading Success/Error status line; its meaning depends on which
// request the caller sent (GET, SCAN, or a bare acknowledgement).
type Response struct {
	OK    bool
	Lines []string
}

// ReadResponse reads a complete response from r. The server closes the
// connection after writing one response, so this reads to EOF rather
// than a fixed number of lines, which is what lets SCAN's
// variable-length key list work without a length prefix.
func ReadResponse(r io.Reader) (Response, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Response{}, fmt.Errorf("%w: read response: %v", kvserr.ErrIo, err)
	}
	lines := strings.Split(string(data), "\r\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	if len(lines) == 0 {
		return Response{}, fmt.Errorf("%w: empty response", kvserr.ErrIo)
	}

	switch lines[0] {
	case "Success":
		return Response{OK: true, Lines: lines[1:]}, nil
	case "Error":
		return Response{OK: false, Lines: lines[1:]}, nil
	default:
		return Response{}, fmt.Errorf("%w: unrecognized response status %q", kvserr.ErrCorruption, lines[0])
	}
}

func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("%w: read request line: %v", kvserr.ErrIo, err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

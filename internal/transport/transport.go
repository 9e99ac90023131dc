// Package transport implements the client<->daemon wire protocol: each frame
// is a 4-byte big-endian length prefix followed by a JSON-encoded envelope.
// Deliberately stdlib (net + encoding/json) rather than a pack HTTP/WS
// library — see DESIGN.md for why gin and gorilla/websocket don't fit a
// long-lived bidirectional Unix-socket control channel of small,
// short-lived request/response frames.
//
// Grounded on the teacher's internal/bus: types.Message's {id, type,
// payload} envelope shape is reused verbatim as the wire frame, addressed
// point-to-point instead of broadcast (see internal/wire).
package transport

import (
	"bufio"
	"context"
	"encoding/binary"
	"encoding/json"
	"io"
	"net"
	"time"

	"pueued/internal/dispatch"
	"pueued/internal/perrors"
	"pueued/internal/wire"
)

const maxFrameBytes = 64 << 20 // 64MiB, generous headroom over a compressed full-history log range

// WriteFrame writes one length-prefixed JSON frame of v to w.
func WriteFrame(w io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return perrors.New(perrors.Generic, "transport.write_frame", err)
	}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(data)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return perrors.New(perrors.Io, "transport.write_frame", err)
	}
	if _, err := w.Write(data); err != nil {
		return perrors.New(perrors.Io, "transport.write_frame", err)
	}
	return nil
}

// ReadFrame reads one length-prefixed JSON frame from r into v.
func ReadFrame(r io.Reader, v any) error {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return err // io.EOF propagates as-is so callers can detect clean disconnect
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n > maxFrameBytes {
		return perrors.New(perrors.Generic, "transport.read_frame", nil)
	}
	data := make([]byte, n)
	if _, err := io.ReadFull(r, data); err != nil {
		return perrors.New(perrors.Io, "transport.read_frame", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return perrors.New(perrors.Generic, "transport.read_frame", err)
	}
	return nil
}

// Listener accepts client connections on a Unix domain socket and forwards
// each decoded message to loop, writing its response back. One goroutine
// per connection; cancellation is via ctx or the remote closing the socket
// (SPEC_FULL.md §5's client-facing domain).
type Listener struct {
	loop *dispatch.Loop
}

// NewListener returns a Listener that forwards requests to loop.
func NewListener(loop *dispatch.Loop) *Listener {
	return &Listener{loop: loop}
}

// Serve accepts connections on ln until ctx is canceled or ln.Accept fails.
func (l *Listener) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return perrors.New(perrors.Io, "transport.serve", err)
			}
		}
		go l.handleConn(ctx, conn)
	}
}

func (l *Listener) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	r := bufio.NewReader(conn)

	for {
		var msg wire.Message
		if err := ReadFrame(r, &msg); err != nil {
			return // EOF or decode failure: client disconnected or protocol error, close
		}
		resp, err := l.loop.Submit(ctx, msg)
		if err != nil {
			return // ctx canceled (shutdown in progress)
		}
		if err := WriteFrame(conn, resp); err != nil {
			return
		}
	}
}

// Client is a connected client-side handle for sending requests and reading
// their responses over one persistent connection.
type Client struct {
	conn net.Conn
	r    *bufio.Reader
}

// Dial connects to the daemon's Unix domain socket at bind.
func Dial(bind string) (*Client, error) {
	conn, err := net.Dial("unix", bind)
	if err != nil {
		return nil, perrors.New(perrors.Io, "transport.dial", err)
	}
	return &Client{conn: conn, r: bufio.NewReader(conn)}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error { return c.conn.Close() }

// SetDeadline bounds the next Call; used by CLI callers that shouldn't hang
// forever against an unresponsive daemon.
func (c *Client) SetDeadline(t time.Time) error { return c.conn.SetDeadline(t) }

// Call sends msg and blocks for the daemon's response.
func (c *Client) Call(msg wire.Message) (wire.Response, error) {
	if err := WriteFrame(c.conn, msg); err != nil {
		return wire.Response{}, err
	}
	var resp wire.Response
	if err := ReadFrame(c.r, &resp); err != nil {
		return wire.Response{}, err
	}
	return resp, nil
}

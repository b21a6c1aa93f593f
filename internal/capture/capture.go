// Package capture records the bytes a connection reads so a handler can
// recover the raw request head that net/http has already parsed away.
//
// A connection's buffer is aligned to request boundaries: Boundary drains
// the request body before the handler runs and resets the buffer after it
// returns, so the next head read on a keep-alive connection starts the
// buffer. Head only accepts a head found there.
package capture

import (
	"bytes"
	"context"
	"crypto/tls"
	"io"
	"net"
	"net/http"
	"sync"
)

// MaxBuffered bounds the bytes kept per connection. A request that overflows
// it stops being recorded until the next Reset, and its head is reported as
// not found.
const MaxBuffered = 1 << 20

// MaxDrain is how much of an unread request body Boundary consumes. It
// matches the amount net/http itself discards before reusing a connection.
const MaxDrain = 256 << 10

// shrinkAbove is the capacity past which Reset releases the backing array.
const shrinkAbove = 64 << 10

type Listener struct {
	net.Listener
}

func NewListener(l net.Listener) *Listener {
	return &Listener{Listener: l}
}

func (l *Listener) Accept() (net.Conn, error) {
	conn, err := l.Listener.Accept()
	if err != nil {
		return nil, err
	}
	return NewConn(conn), nil
}

// Conn is a net.Conn that keeps a copy of everything read from it since the
// last Reset.
type Conn struct {
	net.Conn

	mu         sync.Mutex
	buf        []byte
	overflowed bool
}

func NewConn(conn net.Conn) *Conn {
	return &Conn{Conn: conn}
}

func (c *Conn) Read(p []byte) (int, error) {
	n, err := c.Conn.Read(p)
	if n > 0 {
		c.mu.Lock()
		if !c.overflowed {
			if len(c.buf)+n > MaxBuffered {
				c.overflowed = true
				c.buf = nil
			} else {
				c.buf = append(c.buf, p[:n]...)
			}
		}
		c.mu.Unlock()
	}
	return n, err
}

// Head returns the raw head at the start of the buffer when its request line
// starts with method and target, and forgets it. Leading blank lines are
// skipped. It reports false when the buffer does not begin with a complete
// matching head.
func (c *Conn) Head(method, target string) ([]byte, bool) {
	prefix := []byte(method + " " + target + " ")

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.overflowed {
		return nil, false
	}

	start := 0
	for start < len(c.buf) && (c.buf[start] == '\r' || c.buf[start] == '\n') {
		start++
	}
	if !bytes.HasPrefix(c.buf[start:], prefix) {
		return nil, false
	}

	end := headEnd(c.buf[start:])
	if end < 0 {
		return nil, false
	}

	head := bytes.Clone(c.buf[start : start+end])
	kept := copy(c.buf, c.buf[start+end:])
	c.buf = c.buf[:kept]
	return head, true
}

// Reset forgets everything recorded so far. Bytes of a pipelined request
// already read ahead are lost with it, and that request's head is then
// reported as not found.
func (c *Conn) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.overflowed = false
	if cap(c.buf) > shrinkAbove {
		c.buf = nil
		return
	}
	c.buf = c.buf[:0]
}

// Buffered reports how many bytes are currently held.
func (c *Conn) Buffered() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.buf)
}

// ConnectionState reports the TLS state when the wrapped connection is TLS.
func (c *Conn) ConnectionState() (tls.ConnectionState, bool) {
	tlsConn, ok := c.Conn.(*tls.Conn)
	if !ok {
		return tls.ConnectionState{}, false
	}
	return tlsConn.ConnectionState(), true
}

// headEnd returns the length of the head at the start of b including its
// terminating blank line, or -1.
func headEnd(b []byte) int {
	end := -1
	if i := bytes.Index(b, []byte("\r\n\r\n")); i >= 0 {
		end = i + 4
	}
	if i := bytes.Index(b, []byte("\n\n")); i >= 0 && (end < 0 || i+2 < end) {
		end = i + 2
	}
	return end
}

type contextKey struct{}

// ConnContext is meant for http.Server.ConnContext. It exposes capturing
// connections to handlers through the request context.
func ConnContext(ctx context.Context, conn net.Conn) context.Context {
	if cc, ok := conn.(*Conn); ok {
		return context.WithValue(ctx, contextKey{}, cc)
	}
	return ctx
}

func FromContext(ctx context.Context) (*Conn, bool) {
	cc, ok := ctx.Value(contextKey{}).(*Conn)
	return cc, ok
}

// Boundary keeps the capture buffer of the request's connection aligned to
// request boundaries, for every method. It also fills r.TLS, which net/http
// leaves nil because it only sees the wrapper.
func Boundary(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cc, ok := FromContext(r.Context())
		if !ok {
			next.ServeHTTP(w, r)
			return
		}
		defer cc.Reset()

		if r.Body != nil {
			io.Copy(io.Discard, io.LimitReader(r.Body, MaxDrain))
		}

		if r.TLS == nil {
			if state, ok := cc.ConnectionState(); ok && state.HandshakeComplete {
				r = r.WithContext(r.Context())
				r.TLS = &state
			}
		}

		next.ServeHTTP(w, r)
	})
}

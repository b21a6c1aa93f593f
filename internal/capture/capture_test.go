package capture

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type readerConn struct {
	net.Conn
	r io.Reader
}

func (rc *readerConn) Read(p []byte) (int, error) {
	return rc.r.Read(p)
}

func newTestConn(data string) *Conn {
	return NewConn(&readerConn{r: strings.NewReader(data)})
}

func drain(t *testing.T, c *Conn) {
	t.Helper()
	_, err := io.Copy(io.Discard, c)
	require.NoError(t, err)
}

func feed(t *testing.T, c *Conn, data string) {
	t.Helper()
	c.Conn = &readerConn{r: strings.NewReader(data)}
	drain(t, c)
}

func TestHeadFindsRequest(t *testing.T) {
	raw := "GET /foo?a=1 HTTP/1.1\r\nHost: x\r\nB: 2\r\n\r\n"
	c := newTestConn(raw)
	drain(t, c)

	head, ok := c.Head("GET", "/foo?a=1")
	require.True(t, ok)
	assert.Equal(t, raw, string(head))
	assert.Equal(t, 0, c.Buffered())

	_, ok = c.Head("GET", "/foo?a=1")
	assert.False(t, ok)
}

func TestHeadIgnoresRequestLinesInBody(t *testing.T) {
	head := "GET /next HTTP/1.1\r\nHost: h\r\nContent-Length: 37\r\n\r\n"
	body := "GET /next HTTP/1.1\r\nX-Forged: yes\r\n\r\n"
	c := newTestConn(head + body)
	drain(t, c)

	got, ok := c.Head("GET", "/next")
	require.True(t, ok)
	assert.Equal(t, head, string(got))
}

func TestHeadRejectsStaleBodyBeforeHead(t *testing.T) {
	stale := "x\r\nGET /next HTTP/1.1\r\nX-Forged: yes\r\n\r\n"
	actual := "GET /next HTTP/1.1\r\nHost: h\r\nX-Real: yes\r\n\r\n"
	c := newTestConn(stale + actual)
	drain(t, c)

	_, ok := c.Head("GET", "/next")
	assert.False(t, ok, "a head that does not start the buffer is never reported")
}

func TestResetAlignsKeepAliveRequests(t *testing.T) {
	c := newTestConn("POST /submit HTTP/1.1\r\nContent-Length: 40\r\n\r\n" +
		"x\r\nGET /next HTTP/1.1\r\nX-Forged: yes\r\n\r\n")
	drain(t, c)
	c.Reset()
	assert.Equal(t, 0, c.Buffered())

	actual := "GET /next HTTP/1.1\r\nHost: h\r\nX-Real: yes\r\n\r\n"
	feed(t, c, actual)

	got, ok := c.Head("GET", "/next")
	require.True(t, ok)
	assert.Equal(t, actual, string(got))
}

func TestHeadSkipsLeadingBlankLines(t *testing.T) {
	c := newTestConn("\r\nGET / HTTP/1.1\r\nHost: x\r\n\r\n")
	drain(t, c)

	got, ok := c.Head("GET", "/")
	require.True(t, ok)
	assert.Equal(t, "GET / HTTP/1.1\r\nHost: x\r\n\r\n", string(got))
}

func TestHeadRequiresExactTarget(t *testing.T) {
	c := newTestConn("GET /a HTTP/1.1\r\n\r\n")
	drain(t, c)

	_, ok := c.Head("GET", "/b")
	assert.False(t, ok)
	_, ok = c.Head("POST", "/a")
	assert.False(t, ok)
	_, ok = c.Head("GET", "/a")
	assert.True(t, ok)
}

func TestHeadIncomplete(t *testing.T) {
	c := newTestConn("GET / HTTP/1.1\r\nHost: x\r\n")
	drain(t, c)

	_, ok := c.Head("GET", "/")
	assert.False(t, ok)
	assert.NotZero(t, c.Buffered())
}

func TestHeadAcceptsBareNewlines(t *testing.T) {
	c := newTestConn("GET / HTTP/1.0\nHost: x\n\nrest")
	drain(t, c)

	head, ok := c.Head("GET", "/")
	require.True(t, ok)
	assert.Equal(t, "GET / HTTP/1.0\nHost: x\n\n", string(head))
	assert.Equal(t, len("rest"), c.Buffered())
}

func TestOverflowStopsRecordingUntilReset(t *testing.T) {
	c := newTestConn("GET / HTTP/1.1\r\n\r\n" + strings.Repeat("x", MaxBuffered))
	drain(t, c)

	assert.Equal(t, 0, c.Buffered())
	_, ok := c.Head("GET", "/")
	assert.False(t, ok)

	feed(t, c, "more")
	assert.Equal(t, 0, c.Buffered())

	c.Reset()
	feed(t, c, "GET / HTTP/1.1\r\n\r\n")
	_, ok = c.Head("GET", "/")
	assert.True(t, ok)
}

func TestResetReleasesLargeBuffers(t *testing.T) {
	c := newTestConn(strings.Repeat("x", shrinkAbove*2))
	drain(t, c)

	c.Reset()
	assert.Nil(t, c.buf)
}

func TestBoundaryDrainsBodyAndResets(t *testing.T) {
	raw := "POST /submit HTTP/1.1\r\nContent-Length: 9\r\n\r\n"
	c := newTestConn(raw)
	drain(t, c)

	var bufferedInHandler int
	handler := Boundary(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rest, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.Empty(t, rest, "body is drained before the handler runs")
		bufferedInHandler = c.Buffered()
		w.WriteHeader(http.StatusMethodNotAllowed)
	}))

	req := httptest.NewRequest(http.MethodPost, "/submit", strings.NewReader("some body"))
	req = req.WithContext(ConnContext(req.Context(), c))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
	assert.Equal(t, len(raw), bufferedInHandler)
	assert.Equal(t, 0, c.Buffered())
}

func TestBoundaryResetsAfterPanic(t *testing.T) {
	c := newTestConn("GET / HTTP/1.1\r\n\r\n")
	drain(t, c)

	handler := Boundary(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(ConnContext(req.Context(), c))

	assert.Panics(t, func() { handler.ServeHTTP(httptest.NewRecorder(), req) })
	assert.Equal(t, 0, c.Buffered())
}

func TestBoundaryWithoutCapture(t *testing.T) {
	called := false
	handler := Boundary(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		assert.Nil(t, r.TLS)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.True(t, called)
}

func TestConnectionStateOnPlainConn(t *testing.T) {
	_, ok := newTestConn("").ConnectionState()
	assert.False(t, ok)
}

func TestListenerWrapsConnections(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	wrapped := NewListener(ln)
	defer wrapped.Close()

	go func() {
		conn, err := net.Dial("tcp", ln.Addr().String())
		if err == nil {
			conn.Write([]byte("GET /x HTTP/1.1\r\n\r\n"))
			conn.Close()
		}
	}()

	conn, err := wrapped.Accept()
	require.NoError(t, err)
	defer conn.Close()

	cc, ok := conn.(*Conn)
	require.True(t, ok)
	_, err = io.ReadAll(cc)
	require.NoError(t, err)

	head, ok := cc.Head("GET", "/x")
	require.True(t, ok)
	assert.Equal(t, "GET /x HTTP/1.1\r\n\r\n", string(head))
}

func TestConnContext(t *testing.T) {
	c := newTestConn("")
	ctx := ConnContext(context.Background(), c)

	got, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Same(t, c, got)

	ctx = ConnContext(context.Background(), &readerConn{})
	_, ok = FromContext(ctx)
	assert.False(t, ok)
}

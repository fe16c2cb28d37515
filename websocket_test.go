package ledmatrix

import (
	"io/fs"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bodgit/ledmatrix/store"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dial(t *testing.T, ts *httptest.Server, target string) (*websocket.Conn, *http.Response, error) {
	t.Helper()

	return websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+webSocketPrefix+target, nil)
}

func TestWebSocketUpload(t *testing.T) {
	m, s := newTestMatrix(t)
	ts := httptest.NewServer(m.Handler())
	defer ts.Close()

	conn, _, err := dial(t, ts, "/pages/0/bg.bmp")
	require.Nil(t, err)
	defer conn.Close()

	src := bitmap24(t, 6, 3, gradient)
	for _, chunk := range [][]byte{src[:60], src[60:70], src[70:]} {
		require.Nil(t, conn.WriteMessage(websocket.BinaryMessage, chunk))
	}
	require.Nil(t, conn.WriteMessage(websocket.TextMessage, []byte("end")))

	var reply webSocketReply
	require.Nil(t, conn.ReadJSON(&reply))
	assert.Equal(t, webSocketReply{Status: http.StatusCreated, Name: "pages/0/bg.bmp"}, reply)

	b, err := fs.ReadFile(s, "pages/0/bg.bmp")
	require.Nil(t, err)
	assert.Equal(t, bitmap16(t, 6, 3, gradient), b)
}

func TestWebSocketRaw(t *testing.T) {
	m, s := newTestMatrix(t)
	ts := httptest.NewServer(m.Handler())
	defer ts.Close()

	conn, _, err := dial(t, ts, "/pages/3/config?type=application/octet-stream&size=4")
	require.Nil(t, err)
	defer conn.Close()

	require.Nil(t, conn.WriteMessage(websocket.BinaryMessage, []byte("4P")))
	require.Nil(t, conn.WriteMessage(websocket.BinaryMessage, []byte("ab")))
	require.Nil(t, conn.WriteMessage(websocket.TextMessage, []byte("end")))

	var reply webSocketReply
	require.Nil(t, conn.ReadJSON(&reply))
	assert.Equal(t, http.StatusCreated, reply.Status)

	b, err := fs.ReadFile(s, "pages/3/config")
	require.Nil(t, err)
	assert.Equal(t, []byte("4Pab"), b)
}

func TestWebSocketRefused(t *testing.T) {
	m, _ := newTestMatrix(t)
	ts := httptest.NewServer(m.Handler())
	defer ts.Close()

	tables := []struct {
		target string
		status int
	}{
		{"/a.png?type=image/png", http.StatusUnsupportedMediaType},
		{"/a.bmp?size=99999999", http.StatusRequestEntityTooLarge},
		{"/a.bmp?size=lots", http.StatusBadRequest},
	}

	for _, table := range tables {
		t.Run(table.target, func(t *testing.T) {
			_, resp, err := dial(t, ts, table.target)
			require.Equal(t, websocket.ErrBadHandshake, err)
			assert.Equal(t, table.status, resp.StatusCode)
		})
	}
}

func TestWebSocketErrors(t *testing.T) {
	m, s := newTestMatrix(t)
	ts := httptest.NewServer(m.Handler())
	defer ts.Close()

	t.Run("invalid bitmap", func(t *testing.T) {
		conn, _, err := dial(t, ts, "/junk.bmp")
		require.Nil(t, err)
		defer conn.Close()

		require.Nil(t, conn.WriteMessage(websocket.BinaryMessage, []byte(strings.Repeat("x", 64))))

		var reply webSocketReply
		require.Nil(t, conn.ReadJSON(&reply))
		assert.Equal(t, http.StatusBadRequest, reply.Status)
		assert.NotEmpty(t, reply.Error)
		assert.False(t, store.Exists(s, "junk.bmp"))
	})

	t.Run("unexpected message", func(t *testing.T) {
		conn, _, err := dial(t, ts, "/text.bmp")
		require.Nil(t, err)
		defer conn.Close()

		require.Nil(t, conn.WriteMessage(websocket.TextMessage, []byte("hello")))

		var reply webSocketReply
		require.Nil(t, conn.ReadJSON(&reply))
		assert.Equal(t, http.StatusBadRequest, reply.Status)
		assert.False(t, store.Exists(s, "text.bmp"))
	})

	t.Run("dropped connection", func(t *testing.T) {
		conn, _, err := dial(t, ts, "/dropped.bmp")
		require.Nil(t, err)

		require.Nil(t, conn.WriteMessage(websocket.BinaryMessage, bitmap24(t, 4, 4, solid(red))[:70]))
		require.Nil(t, conn.Close())

		assert.Eventually(t, func() bool {
			return !store.Exists(s, "dropped.bmp")
		}, 5*time.Second, 10*time.Millisecond)
	})

	t.Run("truncated", func(t *testing.T) {
		conn, _, err := dial(t, ts, "/short.bmp")
		require.Nil(t, err)
		defer conn.Close()

		require.Nil(t, conn.WriteMessage(websocket.BinaryMessage, bitmap24(t, 4, 4, solid(red))[:70]))
		require.Nil(t, conn.WriteMessage(websocket.TextMessage, []byte("end")))

		var reply webSocketReply
		require.Nil(t, conn.ReadJSON(&reply))
		assert.Equal(t, http.StatusBadRequest, reply.Status)
		assert.False(t, store.Exists(s, "short.bmp"))
	})
}

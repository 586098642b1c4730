//go:build unit || e2e

package httptest

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

// Server runs router on a real listener, which websocket upgrades need.
func Server(t *testing.T, router *gin.Engine) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

// WebSocketURL maps srv's http URL plus path to the ws scheme.
func WebSocketURL(srv *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + path
}

// Dial opens a websocket to url, sending authToken as a bearer token when set. The
// handshake response is returned as well so failed upgrades can be inspected.
func Dial(t *testing.T, url, authToken string) (*websocket.Conn, *http.Response, error) {
	t.Helper()

	header := http.Header{}
	if authToken != "" {
		header.Set("Authorization", "Bearer "+authToken)
	}
	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	if resp != nil {
		t.Cleanup(func() { _ = resp.Body.Close() })
	}
	if conn != nil {
		t.Cleanup(func() { _ = conn.Close() })
	}
	return conn, resp, err
}

// MustDial is Dial for connections that have to succeed.
func MustDial(t *testing.T, url, authToken string) *websocket.Conn {
	t.Helper()
	conn, _, err := Dial(t, url, authToken)
	require.NoError(t, err, "websocket handshake failed")
	return conn
}

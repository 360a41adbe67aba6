package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/image-inspector/backend/internal/models"
	"github.com/image-inspector/backend/internal/session"
)

func newSocketServer(t *testing.T, mgr SessionManager) *httptest.Server {
	t.Helper()
	e := echo.New()
	e.HTTPErrorHandler = ErrorHandler
	e.GET("/api/scans/:sessionId/ws", NewLiveHandler(mgr, nil).HandleScanSocket)
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, id string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/scans/" + id + "/ws"
	return websocket.DefaultDialer.Dial(url, nil)
}

func readMessage(t *testing.T, ws *websocket.Conn) WSMessage {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg WSMessage
	require.NoError(t, ws.ReadJSON(&msg))
	return msg
}

func TestLiveHandler_ForwardsEvents(t *testing.T) {
	mgr := NewMockSessionManager()
	mgr.add("s1", models.SessionStatusScanning, nil)
	mgr.SetStatusText("s1", "Loading...")
	events := mgr.eventsFor("s1")
	srv := newSocketServer(t, mgr)

	ws, _, err := dial(t, srv, "s1")
	require.NoError(t, err)
	defer ws.Close()

	hello := readMessage(t, ws)
	assert.Equal(t, MsgTypeConnected, hello.Type)
	assert.Equal(t, "s1", hello.ID)
	assert.Contains(t, string(hello.Payload), `"statusText":"Loading..."`)

	events <- session.Event{
		Type:    session.EventBatch,
		Session: "s1",
		Status:  "Files processed: 2",
		Loaded:  2,
		Records: sampleRecords(2),
	}
	batch := readMessage(t, ws)
	assert.Equal(t, session.EventBatch, batch.Type)
	assert.Contains(t, string(batch.Payload), `"Files processed: 2"`)
	assert.Contains(t, string(batch.Payload), `"imgb.png"`)

	require.NoError(t, ws.WriteJSON(WSMessage{Type: MsgTypePing}))
	pong := readMessage(t, ws)
	assert.Equal(t, MsgTypePong, pong.Type)

	events <- session.Event{Type: session.EventFinished, Session: "s1", Status: "Files loaded: 2", Loaded: 2, Total: 2}
	finished := readMessage(t, ws)
	assert.Equal(t, session.EventFinished, finished.Type)

	close(events)
	closed := readMessage(t, ws)
	assert.Equal(t, MsgTypeError, closed.Type)
	assert.Contains(t, string(closed.Payload), "SESSION_CLOSED")
}

func TestLiveHandler_UnknownSession(t *testing.T) {
	srv := newSocketServer(t, NewMockSessionManager())

	_, resp, err := dial(t, srv, "nope")
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestLiveHandler_ReleasesSubscription(t *testing.T) {
	mgr := NewMockSessionManager()
	mgr.add("s1", models.SessionStatusScanning, nil)
	srv := newSocketServer(t, mgr)

	ws, _, err := dial(t, srv, "s1")
	require.NoError(t, err)
	readMessage(t, ws)
	ws.Close()

	assert.Eventually(t, func() bool {
		mgr.mu.Lock()
		defer mgr.mu.Unlock()
		return mgr.cancelled == 1
	}, 5*time.Second, 20*time.Millisecond)
}

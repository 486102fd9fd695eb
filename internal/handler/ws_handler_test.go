package handler_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialStream(t *testing.T, srv *httptest.Server, learnerID string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/v1/exam-sessions/current/stream?token=" + token(t, learnerID)
	return websocket.DefaultDialer.Dial(url, nil)
}

// nextEvent returns the next non-tick event.
func nextEvent(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	for {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		var evt map[string]interface{}
		require.NoError(t, conn.ReadJSON(&evt))
		if evt["event"] != "tick" {
			return evt
		}
	}
}

func TestWSStream_Actions(t *testing.T) {
	app := newTestApp(t)
	srv := httptest.NewServer(app.engine)
	t.Cleanup(srv.Close)

	const learner = "learner-ws"
	st := app.startSession(t, learner)

	conn, _, err := dialStream(t, srv, learner)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]interface{}{"action": "ping"}))
	assert.Equal(t, "pong", nextEvent(t, conn)["event"])

	q := st.Questions[3].ID.String()
	require.NoError(t, conn.WriteJSON(map[string]interface{}{"action": "answer", "question_id": q, "option": 3}))
	evt := nextEvent(t, conn)
	assert.Equal(t, "ack", evt["event"])
	assert.Equal(t, "answer", evt["action"])

	require.NoError(t, conn.WriteJSON(map[string]interface{}{"action": "review", "question_id": q}))
	evt = nextEvent(t, conn)
	assert.Equal(t, "ack", evt["event"])
	assert.Equal(t, true, evt["marked"])

	require.NoError(t, conn.WriteJSON(map[string]interface{}{"action": "answer", "question_id": q, "option": 9}))
	evt = nextEvent(t, conn)
	assert.Equal(t, "error", evt["event"])
	assert.Equal(t, "INVALID_OPTION", evt["code"])

	require.NoError(t, conn.WriteJSON(map[string]interface{}{"action": "navigate", "index": 1000}))
	evt = nextEvent(t, conn)
	assert.Equal(t, "INDEX_OUT_OF_RANGE", evt["code"])

	require.NoError(t, conn.WriteJSON(map[string]interface{}{"action": "dance"}))
	evt = nextEvent(t, conn)
	assert.Equal(t, "error", evt["event"])

	require.NoError(t, conn.WriteJSON(map[string]interface{}{"action": "submit"}))
	evt = nextEvent(t, conn)
	assert.Equal(t, "CONFIRMATION_REQUIRED", evt["code"])

	require.NoError(t, conn.WriteJSON(map[string]interface{}{"action": "submit", "confirm": true}))
	seen := map[string]map[string]interface{}{}
	for len(seen) < 2 {
		evt := nextEvent(t, conn)
		seen[evt["event"].(string)] = evt
	}
	require.Contains(t, seen, "ack")
	require.Contains(t, seen, "graded")
	assert.Equal(t, "SUBMITTED", seen["graded"]["status"])
	results := seen["graded"]["results"].(map[string]interface{})
	score := results["score"].(map[string]interface{})
	assert.EqualValues(t, 1, score["correct"])
}

func TestWSStream_NoSession(t *testing.T) {
	app := newTestApp(t)
	srv := httptest.NewServer(app.engine)
	t.Cleanup(srv.Close)

	_, resp, err := dialStream(t, srv, "nobody")
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestWSStream_ClosedWhenSessionReplaced(t *testing.T) {
	app := newTestApp(t)
	srv := httptest.NewServer(app.engine)
	t.Cleanup(srv.Close)

	const learner = "learner-ws-2"
	app.startSession(t, learner)

	conn, _, err := dialStream(t, srv, learner)
	require.NoError(t, err)
	defer conn.Close()

	// A fresh session discards the old one and its streams.
	app.startSession(t, learner)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		var evt map[string]interface{}
		if err := conn.ReadJSON(&evt); err != nil {
			assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
			return
		}
	}
}

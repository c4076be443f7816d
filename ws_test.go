package main

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialWS(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	t.Cleanup(func() { _ = conn.Close() })

	return conn
}

func sendEvent(t *testing.T, conn *websocket.Conn, event string, data any) {
	t.Helper()

	require.NoError(t, conn.WriteJSON(Envelope{Event: event, Data: mustJSON(data)}))
}

// readEvent returns the next frame that is not a presence update.
func readEvent(t *testing.T, conn *websocket.Conn) Envelope {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	for {
		var env Envelope
		require.NoError(t, conn.ReadJSON(&env))

		if env.Event != eventActiveUsers {
			return env
		}
	}
}

func expectEvent(t *testing.T, conn *websocket.Conn, event string, into any) {
	t.Helper()

	env := readEvent(t, conn)
	require.Equal(t, event, env.Event)

	if into != nil {
		require.NoError(t, json.Unmarshal(env.Data, into))
	}
}

func TestWebsocketMatch(t *testing.T) {
	srv, _, counter := newTestServer(t, testConfig())

	a := dialWS(t, srv)
	b := dialWS(t, srv)

	require.Eventually(t, func() bool {
		n, _ := counter.Count(context.Background())
		return n == 2
	}, time.Second, 5*time.Millisecond)

	sendEvent(t, a, eventSetNumber, SetNumberMessage{MyNumber: mustJSON("12")})
	sendEvent(t, b, eventSetNumber, SetNumberMessage{MyNumber: mustJSON("34")})

	var beginA, beginB GameBeginMessage
	expectEvent(t, a, eventGameBegin, &beginA)
	expectEvent(t, b, eventGameBegin, &beginB)
	assert.NotEqual(t, beginA.MyTurn, beginB.MyTurn, "exactly one side moves first")

	sendEvent(t, a, eventMakeMove, MakeMoveMessage{GuessedNumber: mustJSON("43")})

	var found FoundValuesMessage
	expectEvent(t, a, eventFoundValues, &found)
	assert.Equal(t, "0 centrate 2 necentrate", found.FoundValuesMessage)

	var echoed MakeMoveMessage
	expectEvent(t, a, eventMoveMade, &echoed)
	assert.JSONEq(t, `"43"`, string(echoed.GuessedNumber))
	expectEvent(t, b, eventMoveMade, &echoed)
	assert.JSONEq(t, `"43"`, string(echoed.GuessedNumber))

	sendEvent(t, b, eventMakeMove, MakeMoveMessage{GuessedNumber: mustJSON("12")})

	var ends GameEndsMessage
	expectEvent(t, b, eventGameEnds, &ends)
	assert.Equal(t, "You won.", ends.Message)
	expectEvent(t, a, eventGameEnds, &ends)
	assert.Equal(t, "You lost.", ends.Message)

	expectEvent(t, a, eventMoveMade, nil)
	expectEvent(t, b, eventMoveMade, nil)

	require.NoError(t, b.Close())

	expectEvent(t, a, eventOpponentLeft, nil)

	require.Eventually(t, func() bool {
		n, _ := counter.Count(context.Background())
		return n == 1
	}, time.Second, 5*time.Millisecond)
}

func TestWebsocketMalformedFramesAreIgnored(t *testing.T) {
	srv, _, _ := newTestServer(t, testConfig())

	a := dialWS(t, srv)
	b := dialWS(t, srv)

	require.NoError(t, a.WriteMessage(websocket.TextMessage, []byte("not json")))
	sendEvent(t, a, "unknown.event", map[string]string{"x": "y"})
	require.NoError(t, a.WriteMessage(websocket.TextMessage, []byte(`{"event":"set.number","data":[1]}`)))

	sendEvent(t, a, eventSetNumber, SetNumberMessage{MyNumber: mustJSON("5")})
	sendEvent(t, b, eventSetNumber, SetNumberMessage{MyNumber: mustJSON("6")})

	expectEvent(t, a, eventGameBegin, nil)
	expectEvent(t, b, eventGameBegin, nil)
}

func TestWebsocketReceivesPresence(t *testing.T) {
	srv, lobby, counter := newTestServer(t, testConfig())

	a := dialWS(t, srv)

	require.Eventually(t, func() bool {
		n, _ := counter.Count(context.Background())
		return n == 1
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, a.SetReadDeadline(time.Now().Add(2*time.Second)))

	require.Eventually(t, func() bool {
		return lobby.Broadcast(eventActiveUsers, int64(7))
	}, time.Second, 5*time.Millisecond)

	var env Envelope
	require.NoError(t, a.ReadJSON(&env))
	assert.Equal(t, eventActiveUsers, env.Event)
	assert.JSONEq(t, "7", string(env.Data))
}

func TestWebsocketOversizedFrameClosesClient(t *testing.T) {
	cfg := testConfig()
	cfg.maxMessageSize = 64
	srv, _, counter := newTestServer(t, cfg)

	a := dialWS(t, srv)

	require.Eventually(t, func() bool {
		n, _ := counter.Count(context.Background())
		return n == 1
	}, time.Second, 5*time.Millisecond)

	big := strings.Repeat("9", 256)
	sendEvent(t, a, eventSetNumber, SetNumberMessage{MyNumber: mustJSON(big)})

	require.NoError(t, a.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := a.ReadMessage()
	assert.Error(t, err)

	require.Eventually(t, func() bool {
		n, _ := counter.Count(context.Background())
		return n == 0
	}, time.Second, 5*time.Millisecond)
}

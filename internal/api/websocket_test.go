package api

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgecli/neurolink/internal/eventlog"
)

func dialWS(t *testing.T, env *testEnv) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(env.e)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readUntil reads frames until one of type typ arrives.
func readUntil(t *testing.T, conn *websocket.Conn, typ string, match func(WSMessage) bool) WSMessage {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		require.NoError(t, conn.SetReadDeadline(deadline))
		var msg WSMessage
		require.NoError(t, conn.ReadJSON(&msg))
		if msg.Type == typ && (match == nil || match(msg)) {
			return msg
		}
	}
}

func TestWebSocketConnectedAndPing(t *testing.T) {
	env := newTestEnv(t, stubConversant{})
	conn := dialWS(t, env)

	msg := readUntil(t, conn, MsgTypeConnected, nil)
	var payload ConnectedPayload
	require.NoError(t, json.Unmarshal(msg.Payload, &payload))
	assert.True(t, payload.Device.Locked)
	require.Len(t, payload.Chat, 1)
	assert.NotZero(t, msg.Timestamp)

	require.NoError(t, conn.WriteJSON(WSMessage{Type: MsgTypePing, ID: "p1"}))
	pong := readUntil(t, conn, MsgTypePong, nil)
	assert.Equal(t, "p1", pong.ID)

	require.Eventually(t, func() bool { return env.ws.Clients() == 1 }, time.Second, time.Millisecond)
}

func TestWebSocketPushesLogsAndDevice(t *testing.T) {
	env := newTestEnv(t, stubConversant{})
	conn := dialWS(t, env)
	readUntil(t, conn, MsgTypeConnected, nil)

	env.logs.Append("hello from test", eventlog.TypeWarning)
	msg := readUntil(t, conn, MsgTypeLog, func(m WSMessage) bool {
		return strings.Contains(string(m.Payload), "hello from test")
	})
	var entry eventlog.Entry
	require.NoError(t, json.Unmarshal(msg.Payload, &entry))
	assert.Equal(t, eventlog.TypeWarning, entry.Type)
	assert.Equal(t, entry.ID, msg.ID)

	env.ctrl.ToggleLock()
	readUntil(t, conn, MsgTypeDevice, func(m WSMessage) bool {
		return strings.Contains(string(m.Payload), `"locked":false`)
	})
}

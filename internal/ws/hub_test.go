package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_BroadcastEvent(t *testing.T) {
	h := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(h.ServeWS))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	h.BroadcastEvent("humanize_complete", map[string]interface{}{"user_id": "u1", "words": 5})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg WSMessage
	require.NoError(t, json.Unmarshal(raw, &msg))
	assert.Equal(t, "humanize_complete", msg.Type)
	assert.Equal(t, "u1", msg.UserID)
	assert.False(t, msg.Timestamp.IsZero())

	n, err := h.Write([]byte("2026/10/15 handlers.Humanize: user=u1\n"))
	require.NoError(t, err)
	assert.Equal(t, 38, n)
	_, raw, err = conn.ReadMessage()
	require.NoError(t, err)
	var line WSMessage
	require.NoError(t, json.Unmarshal(raw, &line))
	assert.Equal(t, TypeLogLine, line.Type)
	assert.Equal(t, "2026/10/15 handlers.Humanize: user=u1", line.Message)
}

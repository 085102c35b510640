package stream

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/arnabghosh/compute-matcher/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T) (*Hub, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hub := NewHub(nil)
	router := gin.New()
	router.GET("/ws", hub.ServeWS)

	srv := httptest.NewServer(router)
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})

	return hub, "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func dial(t *testing.T, hub *Hub, url string, want int) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.Eventually(t, func() bool {
		return hub.Stats().Clients == want
	}, 2*time.Second, 10*time.Millisecond)
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestHub_PublishReachesSubscribers(t *testing.T) {
	hub, url := startHub(t)
	first := dial(t, hub, url, 1)
	second := dial(t, hub, url, 2)

	hub.Publish(context.Background(), &domain.CycleReport{CycleID: "c-1", Matched: 2, Unmatched: 1})

	for _, conn := range []*websocket.Conn{first, second} {
		msg := readMessage(t, conn)
		assert.Equal(t, MessageCycle, msg.Type)

		var report domain.CycleReport
		require.NoError(t, json.Unmarshal(msg.Data, &report))
		assert.Equal(t, "c-1", report.CycleID)
		assert.Equal(t, 2, report.Matched)
	}

	assert.Equal(t, int64(2), hub.Stats().Published)
}

func TestHub_DisconnectUnregisters(t *testing.T) {
	hub, url := startHub(t)
	conn := dial(t, hub, url, 1)

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	conn.Close()

	assert.Eventually(t, func() bool {
		return hub.Stats().Clients == 0
	}, 2*time.Second, 10*time.Millisecond)

	// Publishing with no subscribers is a no-op
	hub.Publish(context.Background(), &domain.CycleReport{CycleID: "c-2"})
	assert.Equal(t, int64(0), hub.Stats().Published)
}

func TestHub_CloseDisconnectsSubscribers(t *testing.T) {
	hub, url := startHub(t)
	conn := dial(t, hub, url, 1)

	hub.Close()
	assert.Equal(t, 0, hub.Stats().Clients)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)

	// New subscribers are turned away after Close
	late, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer late.Close()

	require.NoError(t, late.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = late.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway))
	assert.Equal(t, 0, hub.Stats().Clients)
}

func TestHub_BroadcastDropsSlowSubscriber(t *testing.T) {
	hub := NewHub(nil)
	slow := &client{send: make(chan []byte, 1)}
	hub.clients[slow] = struct{}{}

	hub.Broadcast(Message{Type: MessageCycle, Data: json.RawMessage(`{}`)})
	hub.Broadcast(Message{Type: MessageCycle, Data: json.RawMessage(`{}`)})

	stats := hub.Stats()
	assert.Equal(t, 0, stats.Clients)
	assert.Equal(t, int64(1), stats.Published)
	assert.Equal(t, int64(1), stats.Dropped)

	_, open := <-slow.send
	assert.True(t, open)
	_, open = <-slow.send
	assert.False(t, open)
}

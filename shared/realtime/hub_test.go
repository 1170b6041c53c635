package realtime

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T, buffer int) *Hub {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(buffer)
	go hub.Run(ctx)
	t.Cleanup(cancel)
	return hub
}

func receive(t *testing.T, c *Client) Message {
	t.Helper()
	select {
	case data, ok := <-c.Send():
		require.True(t, ok, "client channel closed")
		var msg Message
		require.NoError(t, json.Unmarshal(data, &msg))
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
		return Message{}
	}
}

func TestHubBroadcastReachesEveryClient(t *testing.T) {
	hub := startHub(t, 4)
	a := hub.Register()
	b := hub.Register()
	assert.Equal(t, 2, hub.ClientCount())

	require.NoError(t, hub.Broadcast(Message{Type: EventTicketCreated, Message: "TK-0001"}))

	assert.Equal(t, "TK-0001", receive(t, a).Message)
	assert.Equal(t, EventTicketCreated, receive(t, b).Type)
}

func TestHubUnregister(t *testing.T) {
	hub := startHub(t, 4)
	a := hub.Register()
	hub.Unregister(a)

	_, ok := <-a.Send()
	assert.False(t, ok)
	assert.Equal(t, 0, hub.ClientCount())

	// second unregister is a no-op
	hub.Unregister(a)
	assert.Equal(t, 0, hub.ClientCount())
}

func TestHubDropsSlowClient(t *testing.T) {
	hub := startHub(t, 1)
	slow := hub.Register()
	fast := hub.Register()

	require.NoError(t, hub.Broadcast(Message{Type: EventBroadcast, Message: "one"}))
	assert.Equal(t, "one", receive(t, fast).Message)

	require.NoError(t, hub.Broadcast(Message{Type: EventBroadcast, Message: "two"}))
	assert.Equal(t, "two", receive(t, fast).Message)
	assert.Equal(t, 1, hub.ClientCount())

	// the queued frame is still delivered, then the channel is closed
	<-slow.Send()
	_, ok := <-slow.Send()
	assert.False(t, ok)
}

func TestHubStopClosesClients(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(1)
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()
	c := hub.Register()
	cancel()
	<-stopped

	_, ok := <-c.Send()
	assert.False(t, ok)
	assert.ErrorIs(t, hub.Broadcast(Message{Type: EventBroadcast}), ErrHubClosed)
	assert.Equal(t, 0, hub.ClientCount())
}

func TestServeWSEchoesChatMessages(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := startHub(t, 8)
	router := gin.New()
	router.GET("/ws", ServeWS(hub, []string{"*"}))
	srv := httptest.NewServer(router)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "done")

	var hello Message
	require.NoError(t, wsjson.Read(ctx, conn, &hello))
	assert.Equal(t, EventConnected, hello.Type)

	require.NoError(t, wsjson.Write(ctx, conn, Message{Type: EventChatMessage, Message: "hi there"}))

	var echoed Message
	require.NoError(t, wsjson.Read(ctx, conn, &echoed))
	assert.Equal(t, EventChatMessage, echoed.Type)
	assert.Equal(t, "hi there", echoed.Message)

	require.NoError(t, hub.Broadcast(Message{Type: EventTicketUpdated, Message: "TK-0002"}))
	var update Message
	require.NoError(t, wsjson.Read(ctx, conn, &update))
	assert.Equal(t, EventTicketUpdated, update.Type)
}

func TestServeWSClosesGoingAwayOnShutdown(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	hub := NewHub(8)
	go hub.Run(hubCtx)

	router := gin.New()
	router.GET("/ws", ServeWS(hub, []string{"*"}))
	srv := httptest.NewServer(router)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	var hello Message
	require.NoError(t, wsjson.Read(ctx, conn, &hello))

	stopHub()
	_, _, err = conn.Read(ctx)
	require.Error(t, err)
	assert.Equal(t, websocket.StatusGoingAway, websocket.CloseStatus(err))
}

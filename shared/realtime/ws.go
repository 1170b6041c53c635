package realtime

import (
	"context"
	"encoding/json"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const writeTimeout = 5 * time.Second

// ServeWS upgrades the request and pipes hub traffic to the socket.
// Inbound chat_message frames are rebroadcast verbatim to every client.
func ServeWS(hub *Hub, originPatterns []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
			OriginPatterns: originPatterns,
		})
		if err != nil {
			logrus.WithError(err).Warn("WebSocket upgrade failed")
			return
		}

		ctx, cancel := context.WithCancel(c.Request.Context())
		defer cancel()

		client := hub.Register()
		defer hub.Unregister(client)

		hello := Message{Type: EventConnected, Message: "Connected to helpdesk realtime server"}
		if err := wsjson.Write(ctx, conn, hello); err != nil {
			_ = conn.Close(websocket.StatusInternalError, "handshake failed")
			return
		}

		readErr := make(chan error, 1)
		go func() {
			for {
				_, data, err := conn.Read(ctx)
				if err != nil {
					readErr <- err
					return
				}
				var in Message
				if json.Unmarshal(data, &in) != nil || in.Type != EventChatMessage {
					continue
				}
				if err := hub.BroadcastRaw(data); err != nil {
					readErr <- err
					return
				}
			}
		}()

		for {
			select {
			case <-ctx.Done():
				_ = conn.Close(websocket.StatusNormalClosure, "closed")
				return
			case <-readErr:
				_ = conn.Close(websocket.StatusNormalClosure, "closed")
				return
			case data, ok := <-client.Send():
				if !ok {
					select {
					case <-hub.Done():
						_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
					default:
						_ = conn.Close(websocket.StatusPolicyViolation, "too slow")
					}
					return
				}
				writeCtx, cancelWrite := context.WithTimeout(ctx, writeTimeout)
				err := conn.Write(writeCtx, websocket.MessageText, data)
				cancelWrite()
				if err != nil {
					_ = conn.Close(websocket.StatusNormalClosure, "write_failed")
					return
				}
			}
		}
	}
}

package api

import (
	"net/http"
	"strings"
	"time"

	"wifi-clock/models"
	"wifi-clock/utils"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// handleWebSocket token query 或 Authorization Bearer 鉴权
func (s *Server) handleWebSocket(c *gin.Context) {
	token := strings.TrimSpace(c.Query("token"))
	if token == "" {
		token, _ = bearerToken(c.GetHeader("Authorization"))
	}
	if token == "" {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse(401, "未授权"))
		return
	}
	if _, err := utils.VerifyJWT(token); err != nil {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse(401, "Token无效"))
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	conn.SetReadLimit(64 * 1024)
	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	cl, ok := s.hub.Register(conn)
	if !ok {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
		_ = conn.Close()
		return
	}
	defer func() {
		s.hub.Unregister(cl)
		_ = conn.Close()
	}()

	cfg := s.cfgSnapshot()
	s.hub.Hello(cl, gin.H{
		"message":   "WebSocket连接成功",
		"device_id": cfg.Device.ID,
		"state":     s.rt.State(),
	})

	// 写循环
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		defer close(done)
		for {
			select {
			case msg, ok := <-cl.Send:
				_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
				if !ok {
					_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
					return
				}
				if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
					return
				}
			case <-ticker.C:
				_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	// 读循环只消费控制帧
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	s.hub.Unregister(cl)
	<-done
}

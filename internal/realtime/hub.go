package realtime

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// 事件名
const (
	EventClockState = "clock_state"
	EventWeather    = "weather"
	EventIndoor     = "indoor"
	EventMessage    = "message"
	EventConfig     = "config_changed"
)

// Message 是推送到前端的统一消息结构
type Message struct {
	Type  string      `json:"type"`            // event / hello / error
	Event string      `json:"event,omitempty"` // clock_state / weather / ...
	Data  interface{} `json:"data,omitempty"`
	TS    string      `json:"ts"`
}

// Client 一个 WebSocket 连接
type Client struct {
	Conn *websocket.Conn
	Send chan []byte

	closed bool // Send 已关闭，受 Hub.mu 保护
}

// Hub 广播中心
type Hub struct {
	mu sync.RWMutex

	clients    map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	done       chan struct{}
	closeOnce  sync.Once
}

// NewHub 创建并启动 Hub
func NewHub() *Hub {
	h := &Hub{
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client, 64),
		unregister: make(chan *Client, 64),
		broadcast:  make(chan []byte, 256),
		done:       make(chan struct{}),
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	for {
		select {
		case <-h.done:
			h.mu.Lock()
			for c := range h.clients {
				delete(h.clients, c)
				c.closeSend()
			}
			// 关闭前排队中的注册也一并关掉
			for pending := true; pending; {
				select {
				case c := <-h.register:
					c.closeSend()
				default:
					pending = false
				}
			}
			h.mu.Unlock()
			return
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			h.mu.Unlock()
		case c := <-h.unregister:
			h.remove(c)
		case msg := <-h.broadcast:
			var slow []*Client
			h.mu.RLock()
			for c := range h.clients {
				select {
				case c.Send <- msg:
				default:
					slow = append(slow, c)
				}
			}
			h.mu.RUnlock()
			// 客户端写入慢：踢掉
			for _, c := range slow {
				h.remove(c)
			}
		}
	}
}

func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		c.closeSend()
	}
}

// closeSend 调用方持有 h.mu
func (c *Client) closeSend() {
	if !c.closed {
		c.closed = true
		close(c.Send)
	}
}

// Register 注册连接；Hub 已关闭时返回 false，调用方应直接断开
func (h *Hub) Register(conn *websocket.Conn) (*Client, bool) {
	c := &Client{
		Conn: conn,
		Send: make(chan []byte, 64),
	}
	select {
	case <-h.done:
		return nil, false
	default:
	}
	select {
	case h.register <- c:
		return c, true
	case <-h.done:
		return nil, false
	}
}

// Unregister 注销连接
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Count 当前连接数
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast 推送事件
func (h *Hub) Broadcast(event string, data interface{}) {
	b, _ := json.Marshal(Message{
		Type:  "event",
		Event: event,
		Data:  data,
		TS:    time.Now().Format(time.RFC3339),
	})
	select {
	case h.broadcast <- b:
	default:
		// broadcast 堵住了就丢弃，避免拖垮主流程
	}
}

// Hello 连接建立后单独发给该客户端
func (h *Hub) Hello(c *Client, data interface{}) {
	b, _ := json.Marshal(Message{
		Type: "hello",
		Data: data,
		TS:   time.Now().Format(time.RFC3339),
	})
	h.mu.RLock()
	defer h.mu.RUnlock()
	if c.closed {
		return
	}
	select {
	case c.Send <- b:
	default:
	}
}

// Close 停止 Hub 并关闭所有客户端发送通道
func (h *Hub) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}

var defaultHub *Hub
var once sync.Once

// Default 进程级单例
func Default() *Hub {
	once.Do(func() {
		defaultHub = NewHub()
	})
	return defaultHub
}

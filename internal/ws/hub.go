// Package ws 通过 WebSocket 把账户事件推送给在线客户端。
//
// 每个客户端用 JWT 认证后只收到归属自己账户的事件流，
// 典型用途是前端在确认邮件点击后实时刷新邮箱列表。
package ws

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"accounthub/backend/internal/auth/jwt"
	"accounthub/backend/internal/domain"
	"accounthub/backend/internal/event"
)

// Message 推送给客户端的消息
type Message struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Error     string          `json:"error,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// Client 代表一个 WebSocket 客户端连接
type Client struct {
	ID     string
	UserID string

	conn *websocket.Conn
	send chan []byte
	hub  *Hub
	log  *zap.Logger
}

// Hub 管理所有 WebSocket 连接
type Hub struct {
	clients map[string]*Client            // clientID -> Client
	byUser  map[string]map[string]*Client // userID -> clientID -> Client

	register   chan *Client
	unregister chan *Client
	broadcast  chan userMessage

	mu             sync.RWMutex
	log            *zap.Logger
	allowedOrigins []string
	tokens         *jwt.Manager
}

type userMessage struct {
	userID string
	data   []byte
}

// NewHub 创建 WebSocket Hub
func NewHub(allowedOrigins []string, tokens *jwt.Manager, log *zap.Logger) *Hub {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	return &Hub{
		clients:        make(map[string]*Client),
		byUser:         make(map[string]map[string]*Client),
		register:       make(chan *Client),
		unregister:     make(chan *Client),
		broadcast:      make(chan userMessage, 256),
		log:            log,
		allowedOrigins: allowedOrigins,
		tokens:         tokens,
	}
}

// BindEvents 订阅事件总线，把带账户归属的事件转成推送
func (h *Hub) BindEvents(bus *event.Bus) {
	bus.SubscribeAll(func(e domain.Event) {
		userID := eventUserID(e)
		if userID == "" {
			return
		}
		data, err := json.Marshal(e.Payload)
		if err != nil {
			h.log.Error("failed to marshal event payload", zap.Error(err))
			return
		}
		msg, err := json.Marshal(&Message{
			Type:      string(e.Type),
			Data:      data,
			Timestamp: e.OccurredAt,
		})
		if err != nil {
			return
		}
		select {
		case h.broadcast <- userMessage{userID: userID, data: msg}:
		default:
			h.log.Warn("event broadcast channel full, dropping", zap.String("type", string(e.Type)))
		}
	})
}

// eventUserID 从事件负载里取归属账户
func eventUserID(e domain.Event) string {
	switch p := e.Payload.(type) {
	case *domain.User:
		return p.ID
	case *domain.EmailAddress:
		return p.UserID
	case *domain.EmailConfirmation:
		return p.UserID
	case *domain.SignupCodeResult:
		return p.UserID
	default:
		return ""
	}
}

// Run 启动 Hub 主循环
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.log.Info("websocket hub stopped")
			h.closeAllClients()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ID] = client
			if h.byUser[client.UserID] == nil {
				h.byUser[client.UserID] = make(map[string]*Client)
			}
			h.byUser[client.UserID][client.ID] = client
			h.mu.Unlock()
			h.log.Info("client registered",
				zap.String("id", client.ID), zap.String("userID", client.UserID))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.ID]; ok {
				delete(h.clients, client.ID)
				if peers, exists := h.byUser[client.UserID]; exists {
					delete(peers, client.ID)
					if len(peers) == 0 {
						delete(h.byUser, client.UserID)
					}
				}
				close(client.send)
				h.log.Info("client unregistered", zap.String("id", client.ID))
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.sendToUser(msg.userID, msg.data)

		case <-ticker.C:
			h.pingAllClients()
		}
	}
}

// sendToUser 向某个账户的全部在线连接推送
func (h *Hub) sendToUser(userID string, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.byUser[userID] {
		select {
		case client.send <- data:
		default:
			// 客户端阻塞，跳过
			h.log.Warn("client channel blocked, skipping", zap.String("clientID", client.ID))
		}
	}
}

// pingAllClients 向所有客户端发送应用层 ping
func (h *Hub) pingAllClients() {
	data, err := json.Marshal(&Message{Type: "ping", Timestamp: time.Now()})
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		select {
		case client.send <- data:
		default:
		}
	}
}

// closeAllClients 关闭所有客户端连接
func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, client := range h.clients {
		close(client.send)
	}
	h.clients = make(map[string]*Client)
	h.byUser = make(map[string]map[string]*Client)
}

// authenticate 从请求中取 JWT 并解析账户
func (h *Hub) authenticate(c *gin.Context) (*Client, error) {
	token := c.Query("token")
	if token == "" {
		authHeader := c.GetHeader("Authorization")
		if parts := strings.SplitN(authHeader, " ", 2); len(parts) == 2 && parts[0] == "Bearer" {
			token = parts[1]
		}
	}
	if token == "" {
		return nil, errors.New("missing authentication token")
	}

	claims, err := h.tokens.ValidateToken(token)
	if err != nil {
		return nil, err
	}

	return &Client{
		ID:     newClientID(),
		UserID: claims.UserID,
		log:    h.log,
	}, nil
}

// newUpgrader 创建带 Origin 验证的升级器
func (h *Hub) newUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			for _, origin := range h.allowedOrigins {
				if origin == "*" {
					return true
				}
			}
			requestOrigin := r.Header.Get("Origin")
			if requestOrigin == "" {
				return true
			}
			for _, origin := range h.allowedOrigins {
				if requestOrigin == origin {
					return true
				}
			}
			return false
		},
	}
}

// Handler 处理 WebSocket 连接升级
func Handler(hub *Hub) gin.HandlerFunc {
	upgrader := hub.newUpgrader()

	return func(c *gin.Context) {
		client, err := hub.authenticate(c)
		if err != nil {
			hub.log.Warn("websocket authentication failed",
				zap.Error(err), zap.String("remote_addr", c.ClientIP()))
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			hub.log.Error("failed to upgrade connection", zap.Error(err))
			return
		}

		client.conn = conn
		client.hub = hub
		client.send = make(chan []byte, 256)

		hub.register <- client

		go client.writePump()
		go client.readPump()
	}
}

// readPump 消费客户端消息，只为保活和探测断连
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Error("websocket error", zap.Error(err))
			}
			break
		}
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	}
}

// writePump 发送消息给客户端
func (c *Client) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			c.conn.WriteMessage(websocket.TextMessage, message)

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// newClientID 生成客户端连接ID
func newClientID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return time.Now().Format("20060102150405") + "-" + hex.EncodeToString(b)
}

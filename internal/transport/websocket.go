package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1 << 20 // 欢迎快照带完整画布历史，需要较大的读取上限
	sendBufferSize = 256
)

var (
	ErrSendBufferFull = errors.New("websocket: send buffer full")
	ErrChannelClosed  = errors.New("websocket: channel closed")
)

// WSChannel 是基于 gorilla/websocket 的 Channel 实现。
// 读写各在一个 goroutine 中运行，Send 只写入缓冲通道，满了就丢弃。
type WSChannel struct {
	conn      *websocket.Conn
	send      chan []byte
	ready     atomic.Bool
	done      chan struct{}
	closeOnce sync.Once
	log       *logrus.Entry
}

// Dial 连接游戏服务器。
func Dial(ctx context.Context, url string, header http.Header, log *logrus.Entry) (*WSChannel, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, fmt.Errorf("websocket: dial %s: %w", url, err)
	}
	return NewWSChannel(conn, log), nil
}

// NewWSChannel 包装一个已建立的连接，调用 Run 之后才可发送。
func NewWSChannel(conn *websocket.Conn, log *logrus.Entry) *WSChannel {
	if log == nil {
		log = logrus.WithField("component", "ws_channel")
	}
	return &WSChannel{
		conn: conn,
		send: make(chan []byte, sendBufferSize),
		done: make(chan struct{}),
		log:  log,
	}
}

// Run 启动读写 goroutine，每条入站文本消息交给 onMessage。
func (c *WSChannel) Run(onMessage func([]byte)) {
	c.ready.Store(true)
	go c.writePump()
	go c.readPump(onMessage)
}

// Ready 实现 Channel。
func (c *WSChannel) Ready() bool { return c.ready.Load() }

// Send 实现 Channel，不阻塞。
func (c *WSChannel) Send(data []byte) error {
	if !c.ready.Load() {
		return ErrChannelClosed
	}
	select {
	case <-c.done:
		return ErrChannelClosed
	default:
	}
	select {
	case c.send <- data:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// Done 在连接关闭后被关闭。
func (c *WSChannel) Done() <-chan struct{} { return c.done }

// Close 停止读写并关闭连接，可重复调用。
func (c *WSChannel) Close() error {
	c.shutdown()
	return nil
}

func (c *WSChannel) shutdown() {
	c.closeOnce.Do(func() {
		c.ready.Store(false)
		close(c.done)
	})
}

// readPump 将消息从 WebSocket 连接泵送给 onMessage。
func (c *WSChannel) readPump(onMessage func([]byte)) {
	defer func() {
		c.shutdown()
		c.conn.Close()
		c.log.Info("readPump exited")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.WithError(err).Warn("WebSocket read error (unexpected close)")
			} else {
				c.log.Debug("WebSocket connection closed normally or read error")
			}
			return
		}
		if messageType != websocket.TextMessage {
			c.log.Debugf("Received non-text message type: %d", messageType)
			continue
		}
		onMessage(message)
	}
}

// writePump 将 send 通道中的消息写入连接，并定期发送 Ping。
func (c *WSChannel) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		c.log.Info("writePump exited")
	}()

	for {
		select {
		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.log.WithError(err).Warn("Failed to write message to websocket")
				c.shutdown()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.log.WithError(err).Warn("Failed to send ping message")
				c.shutdown()
				return
			}
		case <-c.done:
			// 尽力发送关闭帧
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return
		}
	}
}

// Package transport 包装一条双向消息通道：本地编辑向外序列化，入站消息解码后分发。
package transport

import (
	"github.com/sirupsen/logrus"

	"pixel-guess/internal/domain"
)

// Channel 是底层消息通道，由外部负责连接生命周期。
// Send 不得阻塞：底层写不动时应立即返回错误。
type Channel interface {
	Ready() bool
	Send(data []byte) error
}

// Transport 对应一条连接。回调在调用 Receive 的 goroutine 上按到达顺序执行。
type Transport struct {
	ch      Channel
	onEdit  func(domain.PixelEdit)
	onEvent func(domain.Event)
	log     *logrus.Entry
}

// New 创建 Transport。
func New(ch Channel, log *logrus.Entry) *Transport {
	if log == nil {
		log = logrus.WithField("component", "transport")
	}
	return &Transport{ch: ch, log: log}
}

// Ready 报告通道当前是否可发送。
func (t *Transport) Ready() bool {
	return t.ch != nil && t.ch.Ready()
}

// SendEdit 以 pixel_draw 发送一次画布编辑。
// 通道未就绪时什么都不做；不排队、不重试。返回是否已交给通道。
func (t *Transport) SendEdit(edit domain.PixelEdit) bool {
	return t.Send(domain.MsgPixelDraw, edit)
}

// Send 发送任意出站消息，语义与 SendEdit 相同 (至多一次)。
func (t *Transport) Send(msgType domain.MessageType, payload any) bool {
	logCtx := t.log.WithField("type", msgType)
	if !t.Ready() {
		logCtx.Debug("Channel not ready, dropping outbound message")
		return false
	}
	data, err := Encode(msgType, payload)
	if err != nil {
		logCtx.WithError(err).Warn("Failed to encode outbound message")
		return false
	}
	if err := t.ch.Send(data); err != nil {
		logCtx.WithError(err).Warn("Channel rejected outbound message, dropping")
		return false
	}
	return true
}

// OnEdit 注册入站画布编辑回调。
func (t *Transport) OnEdit(fn func(domain.PixelEdit)) { t.onEdit = fn }

// OnProtocolEvent 注册入站协议事件回调。
func (t *Transport) OnProtocolEvent(fn func(domain.Event)) { t.onEvent = fn }

// Receive 解码并分发一条入站消息。格式错误或未知类型只记录日志并丢弃。
func (t *Transport) Receive(raw []byte) {
	in, err := Decode(raw)
	if err != nil {
		t.log.WithError(err).WithField("size", len(raw)).Warn("Dropping inbound message")
		return
	}
	switch {
	case in.Edit != nil:
		if t.onEdit != nil {
			t.onEdit(*in.Edit)
		}
	case in.Event != nil:
		t.log.WithField("type", in.Event.Type()).Debug("Protocol event received")
		if t.onEvent != nil {
			t.onEvent(in.Event)
		}
	}
}

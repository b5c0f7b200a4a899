package session_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pixel-guess/internal/canvas"
	"pixel-guess/internal/domain"
	"pixel-guess/internal/session"
)

type sentMessage struct {
	Type    domain.MessageType
	Payload any
}

// fakeSender 记录控制器发出的编辑
type fakeSender struct {
	edits    []domain.PixelEdit
	messages []sentMessage
}

func (f *fakeSender) SendEdit(e domain.PixelEdit) bool {
	f.edits = append(f.edits, e)
	return true
}

func (f *fakeSender) Send(t domain.MessageType, payload any) bool {
	f.messages = append(f.messages, sentMessage{Type: t, Payload: payload})
	return true
}

func newTestController(t *testing.T, allowed *bool) (*session.Controller, *canvas.Store, *fakeSender) {
	t.Helper()
	store, err := canvas.NewStore(domain.DefaultGridConfig(), canvas.WithoutGrid())
	require.NoError(t, err)
	sender := &fakeSender{}
	c := session.NewController(store, sender, func() bool { return *allowed }, nil)
	return c, store, sender
}

// center 返回格子中心的设备坐标
func center(x, y int) (float64, float64) {
	return float64(x*domain.DefaultCellSize) + 10, float64(y*domain.DefaultCellSize) + 10
}

func TestController_DenyWithoutPermission(t *testing.T) {
	allowed := false
	c, store, sender := newTestController(t, &allowed)

	assert.False(t, c.PointerDown(center(1, 1)), "无权限时不应绘制")
	assert.False(t, c.Dragging())
	assert.False(t, c.Clear(), "无权限时清空应被拒绝")
	assert.Zero(t, store.Len())
	assert.Empty(t, sender.edits)
	assert.Empty(t, sender.messages)
}

func TestController_DragDedupsCells(t *testing.T) {
	allowed := true
	c, store, sender := newTestController(t, &allowed)
	c.SetColor(domain.Red)

	require.True(t, c.PointerDown(center(2, 2)))
	require.True(t, c.Dragging())
	// 同一格内移动不产生新编辑
	assert.False(t, c.PointerMove(float64(2*20+3), float64(2*20+17)))
	assert.True(t, c.PointerMove(center(3, 2)))
	// 回到已访问的格子也不重复发送
	assert.False(t, c.PointerMove(center(2, 2)))
	c.PointerUp()

	assert.False(t, c.Dragging())
	require.Len(t, sender.edits, 2)
	assert.Equal(t, domain.PlaceEdit(domain.Cell{X: 2, Y: 2}, domain.Red, sender.edits[0].Timestamp), sender.edits[0])
	assert.Equal(t, domain.Cell{X: 3, Y: 2}, sender.edits[1].Cell)
	assert.Equal(t, 2, store.Len())
}

func TestController_DragFillsGaps(t *testing.T) {
	allowed := true
	c, store, sender := newTestController(t, &allowed)

	require.True(t, c.PointerDown(center(0, 0)))
	require.True(t, c.PointerMove(center(5, 0)))

	assert.Len(t, sender.edits, 6, "快速拖动时跳过的格子应按直线补齐")
	for x := 0; x <= 5; x++ {
		_, ok := store.Color(domain.Cell{X: x, Y: 0})
		assert.True(t, ok, "格子 (%d,0) 应被绘制", x)
	}
}

func TestController_NewDragAllowsRevisit(t *testing.T) {
	allowed := true
	c, _, sender := newTestController(t, &allowed)
	c.SetTool(session.ToolEraser)

	// 空格子擦除不产生编辑
	assert.False(t, c.PointerDown(center(1, 1)))
	c.PointerUp()
	assert.Empty(t, sender.edits)

	c.SetTool(session.ToolPixel)
	require.True(t, c.PointerDown(center(1, 1)))
	c.PointerUp()
	c.SetTool(session.ToolEraser)
	require.True(t, c.PointerDown(center(1, 1)))
	c.PointerUp()

	require.Len(t, sender.edits, 2)
	assert.Equal(t, domain.EditErase, sender.edits[1].Kind)
}

func TestController_RevokedMidDragAborts(t *testing.T) {
	allowed := true
	c, store, sender := newTestController(t, &allowed)

	require.True(t, c.PointerDown(center(1, 1)))
	allowed = false
	assert.False(t, c.PointerMove(center(2, 1)), "权限被收回后不应继续绘制")
	assert.False(t, c.Dragging(), "拖动应被中止")

	allowed = true
	assert.False(t, c.PointerMove(center(3, 1)), "Idle 状态下移动不应绘制")
	assert.Len(t, sender.edits, 1)
	assert.Equal(t, 1, store.Len())
}

func TestController_OutOfBoundsIgnored(t *testing.T) {
	allowed := true
	c, _, sender := newTestController(t, &allowed)

	assert.False(t, c.PointerDown(-5, 10))
	assert.False(t, c.PointerDown(700, 10))
	assert.Empty(t, sender.edits)
}

func TestController_FillOnce(t *testing.T) {
	allowed := true
	c, store, sender := newTestController(t, &allowed)
	c.SetTool(session.ToolFill)
	c.SetColor(domain.Red)

	require.True(t, c.PointerDown(center(0, 0)))
	assert.False(t, c.Dragging(), "填充工具不进入拖动")
	assert.False(t, c.PointerMove(center(1, 1)))

	require.Len(t, sender.edits, 1)
	assert.Equal(t, domain.EditBatchPlace, sender.edits[0].Kind)
	assert.Len(t, sender.edits[0].Cells, 35*25)
	assert.Equal(t, 35*25, store.Len())

	// 同色再次填充不产生编辑
	assert.False(t, c.PointerDown(center(0, 0)))
	assert.Len(t, sender.edits, 1)
}

func TestController_ClearSendsMessage(t *testing.T) {
	allowed := true
	c, store, sender := newTestController(t, &allowed)

	require.True(t, c.PointerDown(center(4, 4)))
	require.True(t, c.Clear())

	assert.Zero(t, store.Len())
	assert.False(t, c.Dragging())
	require.Len(t, sender.messages, 1)
	assert.Equal(t, domain.MsgClearCanvas, sender.messages[0].Type)
}

package session

import (
	"time"

	"github.com/sirupsen/logrus"

	"pixel-guess/internal/canvas"
	"pixel-guess/internal/domain"
	"pixel-guess/internal/grid"
)

// Tool 是当前绘图工具。
type Tool string

const (
	ToolPixel  Tool = "pixel"
	ToolEraser Tool = "eraser"
	ToolFill   Tool = "fill"
)

// Sender 是控制器向外广播编辑所需的能力，*transport.Transport 满足它。
type Sender interface {
	SendEdit(edit domain.PixelEdit) bool
	Send(msgType domain.MessageType, payload any) bool
}

type dragState int

const (
	stateIdle dragState = iota
	stateDragging
)

// Controller 把指针事件接到权限检查、画布和传输上。
// 每个事件都重新检查权限，因为权限可能在拖动中途被入站事件收回。
type Controller struct {
	store   *canvas.Store
	sender  Sender
	canDraw func() bool

	tool    Tool
	color   domain.Color
	state   dragState
	visited map[domain.Cell]struct{}
	last    domain.Cell

	now func() time.Time
	log *logrus.Entry
}

// NewController 创建控制器，canDraw 通常是 Machine.CanLocalPlayerDraw。
func NewController(store *canvas.Store, sender Sender, canDraw func() bool, log *logrus.Entry) *Controller {
	if log == nil {
		log = logrus.WithField("component", "controller")
	}
	return &Controller{
		store:   store,
		sender:  sender,
		canDraw: canDraw,
		tool:    ToolPixel,
		color:   domain.Black,
		now:     time.Now,
		log:     log,
	}
}

// SetTool 切换工具，会结束正在进行的拖动。
func (c *Controller) SetTool(t Tool) {
	c.tool = t
	c.reset()
}

// SetColor 设置绘制颜色。
func (c *Controller) SetColor(col domain.Color) { c.color = col }

// Tool 返回当前工具。
func (c *Controller) Tool() Tool { return c.tool }

// Color 返回当前颜色。
func (c *Controller) Color() domain.Color { return c.color }

// Dragging 报告是否处于拖动状态。
func (c *Controller) Dragging() bool { return c.state == stateDragging }

// PointerDown 在 Idle 且可绘制时开始拖动；填充工具立即填充一次并保持 Idle。
// 返回是否修改了画布。
func (c *Controller) PointerDown(px, py float64) bool {
	if !c.canDraw() {
		c.reset()
		return false
	}
	cell, ok := c.store.Mapper().DeviceToGrid(px, py)
	if !ok {
		return false
	}
	if c.tool == ToolFill {
		c.reset()
		return c.fill(cell)
	}
	c.state = stateDragging
	c.visited = make(map[domain.Cell]struct{})
	c.last = cell
	return c.paint(cell)
}

// PointerMove 在拖动中为每个首次进入的格子绘制并发出一条编辑。
// 两次事件之间跳过的格子按直线补齐。
func (c *Controller) PointerMove(px, py float64) bool {
	if c.state != stateDragging {
		return false
	}
	if !c.canDraw() {
		c.log.Debug("Drawing permission revoked mid-drag, aborting drag")
		c.reset()
		return false
	}
	cell, ok := c.store.Mapper().DeviceToGrid(px, py)
	if !ok {
		return false
	}
	changed := false
	for _, step := range grid.Line(c.last, cell) {
		if c.paint(step) {
			changed = true
		}
	}
	c.last = cell
	return changed
}

// PointerUp 结束拖动。
func (c *Controller) PointerUp() { c.reset() }

// PointerLeave 指针离开画布时结束拖动。
func (c *Controller) PointerLeave() { c.reset() }

// Clear 只在可绘制时清空画布并通知服务端；否则返回 false 让调用方解释原因。
func (c *Controller) Clear() bool {
	if !c.canDraw() {
		return false
	}
	c.reset()
	c.store.Clear()
	c.sender.Send(domain.MsgClearCanvas, nil)
	return true
}

func (c *Controller) reset() {
	c.state = stateIdle
	c.visited = nil
}

// paint 对本次拖动中尚未处理过的格子应用一次编辑并广播。
func (c *Controller) paint(cell domain.Cell) bool {
	if _, seen := c.visited[cell]; seen {
		return false
	}
	c.visited[cell] = struct{}{}

	ts := c.now().UnixMilli()
	var edit domain.PixelEdit
	if c.tool == ToolEraser {
		if !c.store.Erase(cell) {
			return false
		}
		edit = domain.EraseEdit(cell, ts)
	} else {
		if !c.store.Place(cell, c.color) {
			return false
		}
		edit = domain.PlaceEdit(cell, c.color, ts)
	}
	c.sender.SendEdit(edit)
	return true
}

func (c *Controller) fill(cell domain.Cell) bool {
	filled := c.store.FloodFill(cell, c.color)
	if len(filled) == 0 {
		return false
	}
	c.sender.SendEdit(domain.BatchPlaceEdit(filled, c.color, c.now().UnixMilli()))
	return true
}

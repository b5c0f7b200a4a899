// Package grid 负责设备像素坐标与逻辑网格坐标之间的换算，无 I/O。
package grid

import (
	"image"
	"math"

	"pixel-guess/internal/domain"
)

// Mapper 基于不可变的 GridConfig 做坐标换算。
type Mapper struct {
	cfg domain.GridConfig
}

// NewMapper 创建 Mapper，配置无效时返回错误。
func NewMapper(cfg domain.GridConfig) (*Mapper, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Mapper{cfg: cfg}, nil
}

// Config 返回 Mapper 使用的配置。
func (m *Mapper) Config() domain.GridConfig { return m.cfg }

// DeviceToGrid 将设备坐标映射到格子，超出 [0,CanvasWidth) x [0,CanvasHeight) 返回 false。
func (m *Mapper) DeviceToGrid(px, py float64) (domain.Cell, bool) {
	if math.IsNaN(px) || math.IsNaN(py) {
		return domain.Cell{}, false
	}
	if px < 0 || py < 0 || px >= float64(m.cfg.CanvasWidth) || py >= float64(m.cfg.CanvasHeight) {
		return domain.Cell{}, false
	}
	size := float64(m.cfg.CellSize)
	return domain.Cell{X: int(px / size), Y: int(py / size)}, true
}

// GridToDevice 返回格子左上角的设备坐标。
func (m *Mapper) GridToDevice(c domain.Cell) (int, int) {
	return c.X * m.cfg.CellSize, c.Y * m.cfg.CellSize
}

// CellRect 返回格子覆盖的设备矩形。
func (m *Mapper) CellRect(c domain.Cell) image.Rectangle {
	x, y := m.GridToDevice(c)
	return image.Rect(x, y, x+m.cfg.CellSize, y+m.cfg.CellSize)
}

// Contains 判断格子是否在网格内。
func (m *Mapper) Contains(c domain.Cell) bool { return m.cfg.Contains(c) }

var offsets4 = [4]domain.Cell{{X: 0, Y: -1}, {X: 1, Y: 0}, {X: 0, Y: 1}, {X: -1, Y: 0}}

// Neighbors4 返回上、右、下、左四个方向上仍在网格内的邻居。
func (m *Mapper) Neighbors4(c domain.Cell) []domain.Cell {
	out := make([]domain.Cell, 0, 4)
	for _, d := range offsets4 {
		n := domain.Cell{X: c.X + d.X, Y: c.Y + d.Y}
		if m.cfg.Contains(n) {
			out = append(out, n)
		}
	}
	return out
}

// CellKey 返回格子的规范字符串 "x,y"。
func CellKey(c domain.Cell) string { return c.Key() }

// ParseCellKey 是 CellKey 的逆操作。
func ParseCellKey(key string) (domain.Cell, error) { return domain.ParseCellKey(key) }

// Line 用 Bresenham 算法返回 a 到 b (含两端) 经过的格子。
func Line(a, b domain.Cell) []domain.Cell {
	dx := abs(b.X - a.X)
	dy := -abs(b.Y - a.Y)
	sx, sy := 1, 1
	if a.X > b.X {
		sx = -1
	}
	if a.Y > b.Y {
		sy = -1
	}
	errAcc := dx + dy
	out := make([]domain.Cell, 0, max(dx, -dy)+1)
	x, y := a.X, a.Y
	for {
		out = append(out, domain.Cell{X: x, Y: y})
		if x == b.X && y == b.Y {
			return out
		}
		e2 := 2 * errAcc
		if e2 >= dy {
			errAcc += dy
			x += sx
		}
		if e2 <= dx {
			errAcc += dx
			y += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

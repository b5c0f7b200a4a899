package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// 默认网格参数：35x25 个格子，每格 20 像素 (画布 700x500)
const (
	DefaultCellSize   = 20
	DefaultGridWidth  = 35
	DefaultGridHeight = 25
)

var (
	ErrInvalidGridConfig = errors.New("invalid grid config")
	ErrInvalidCellKey    = errors.New("invalid cell key")
)

// Cell 表示逻辑网格中的一个格子坐标。
type Cell struct {
	X int `json:"gridX"`
	Y int `json:"gridY"`
}

// Key 返回格子的规范字符串形式 "x,y"。
func (c Cell) Key() string {
	return strconv.Itoa(c.X) + "," + strconv.Itoa(c.Y)
}

func (c Cell) String() string { return "(" + c.Key() + ")" }

// ParseCellKey 解析 Key() 生成的字符串，两者必须能精确往返。
func ParseCellKey(key string) (Cell, error) {
	xs, ys, ok := strings.Cut(key, ",")
	if !ok {
		return Cell{}, fmt.Errorf("%w: %q", ErrInvalidCellKey, key)
	}
	x, err := strconv.Atoi(xs)
	if err != nil {
		return Cell{}, fmt.Errorf("%w: %q: %v", ErrInvalidCellKey, key, err)
	}
	y, err := strconv.Atoi(ys)
	if err != nil {
		return Cell{}, fmt.Errorf("%w: %q: %v", ErrInvalidCellKey, key, err)
	}
	return Cell{X: x, Y: y}, nil
}

// GridConfig 在会话内不可变。
// CanvasWidth = Width*CellSize, CanvasHeight = Height*CellSize
type GridConfig struct {
	CellSize     int `json:"cell_size"`
	Width        int `json:"grid_width"`
	Height       int `json:"grid_height"`
	CanvasWidth  int `json:"canvas_width"`
	CanvasHeight int `json:"canvas_height"`
}

// NewGridConfig 根据格子大小和网格尺寸计算画布像素尺寸。
func NewGridConfig(cellSize, width, height int) (GridConfig, error) {
	cfg := GridConfig{
		CellSize:     cellSize,
		Width:        width,
		Height:       height,
		CanvasWidth:  width * cellSize,
		CanvasHeight: height * cellSize,
	}
	if err := cfg.Validate(); err != nil {
		return GridConfig{}, err
	}
	return cfg, nil
}

// DefaultGridConfig 返回 35x25 / 20px 的默认配置。
func DefaultGridConfig() GridConfig {
	cfg, _ := NewGridConfig(DefaultCellSize, DefaultGridWidth, DefaultGridHeight)
	return cfg
}

// Validate 检查尺寸为正且画布尺寸与网格一致。
func (g GridConfig) Validate() error {
	if g.CellSize <= 0 || g.Width <= 0 || g.Height <= 0 {
		return fmt.Errorf("%w: cell size %d, grid %dx%d", ErrInvalidGridConfig, g.CellSize, g.Width, g.Height)
	}
	if g.CanvasWidth != g.Width*g.CellSize || g.CanvasHeight != g.Height*g.CellSize {
		return fmt.Errorf("%w: canvas %dx%d does not match grid %dx%d at %dpx",
			ErrInvalidGridConfig, g.CanvasWidth, g.CanvasHeight, g.Width, g.Height, g.CellSize)
	}
	return nil
}

// Contains 判断格子是否在网格范围内。
func (g GridConfig) Contains(c Cell) bool {
	return c.X >= 0 && c.X < g.Width && c.Y >= 0 && c.Y < g.Height
}

// PixelState 是逻辑格子到颜色的映射，格子不存在即为空。
type PixelState map[Cell]Color

// Clone 返回一个独立副本。
func (s PixelState) Clone() PixelState {
	out := make(PixelState, len(s))
	for c, col := range s {
		out[c] = col
	}
	return out
}

// BoardState 返回字符串形式的画板状态。
func (s PixelState) BoardState() BoardState {
	out := make(BoardState, len(s))
	for c, col := range s {
		out[c.Key()] = col.String()
	}
	return out
}

// BoardState 定义了画板状态的字符串形式，
// 使用 map 将坐标（格式化为 "x,y" 字符串）映射到颜色字符串。
type BoardState map[string]string // 例如: {"10,20": "#ff0000", "11,21": "#0000ff"}

// PixelState 将字符串形式解析回 PixelState，无法解析的条目被跳过。
func (b BoardState) PixelState() (PixelState, error) {
	out := make(PixelState, len(b))
	var errs []error
	for key, value := range b {
		cell, err := ParseCellKey(key)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		col, err := ParseColor(value)
		if err != nil {
			errs = append(errs, fmt.Errorf("cell %s: %w", key, err))
			continue
		}
		out[cell] = col
	}
	return out, errors.Join(errs...)
}

// Package canvas 持有逻辑像素状态并把它镜像到一个二维栅格表面上。
//
// Store 不是并发安全的：所有调用必须来自同一个拥有者 goroutine (见 session 包)。
package canvas

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"

	"github.com/sirupsen/logrus"
	"golang.org/x/image/draw"

	"pixel-guess/internal/domain"
	"pixel-guess/internal/grid"
)

// ChangeKind 描述一次状态变化的类型。
type ChangeKind string

const (
	ChangePlaced  ChangeKind = "placed"
	ChangeErased  ChangeKind = "erased"
	ChangeCleared ChangeKind = "cleared"
)

// Change 是通知给订阅者的变化事件。
type Change struct {
	Kind  ChangeKind
	Cells []domain.Cell
	Color domain.Color // 仅 ChangePlaced 有效
}

// Store 是画布的唯一所有者：PixelState + 栅格表面。
type Store struct {
	mapper     *grid.Mapper
	pixels     domain.PixelState
	surface    draw.Image
	background color.RGBA
	gridLine   color.RGBA
	showGrid   bool

	subs    map[int]func(Change)
	nextSub int
	log     *logrus.Entry
}

// Option 配置 Store。
type Option func(*Store)

// WithSurface 使用外部提供的栅格表面 (任意 draw.Image)。
func WithSurface(img draw.Image) Option {
	return func(s *Store) { s.surface = img }
}

// WithBackground 设置背景色。
func WithBackground(c domain.Color) Option {
	return func(s *Store) { s.background = c.ToRGBA() }
}

// WithGridColor 设置网格线颜色。
func WithGridColor(c domain.Color) Option {
	return func(s *Store) { s.gridLine = c.ToRGBA() }
}

// WithoutGrid 不绘制网格线。
func WithoutGrid() Option {
	return func(s *Store) { s.showGrid = false }
}

// WithLogger 指定日志 Entry。
func WithLogger(log *logrus.Entry) Option {
	return func(s *Store) { s.log = log }
}

// NewStore 创建空画布并完成首次绘制 (背景 + 网格)。
func NewStore(cfg domain.GridConfig, opts ...Option) (*Store, error) {
	mapper, err := grid.NewMapper(cfg)
	if err != nil {
		return nil, fmt.Errorf("canvas: %w", err)
	}
	s := &Store{
		mapper:     mapper,
		pixels:     make(domain.PixelState),
		background: domain.White.ToRGBA(),
		gridLine:   color.RGBA{R: 0xe5, G: 0xe7, B: 0xeb, A: 0xff},
		showGrid:   true,
		subs:       make(map[int]func(Change)),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.surface == nil {
		s.surface = image.NewRGBA(image.Rect(0, 0, cfg.CanvasWidth, cfg.CanvasHeight))
	}
	if s.log == nil {
		s.log = logrus.WithField("component", "canvas")
	}
	s.RedrawAll()
	return s, nil
}

// Mapper 返回坐标换算器。
func (s *Store) Mapper() *grid.Mapper { return s.mapper }

// Surface 返回只读的栅格表面。
func (s *Store) Surface() image.Image { return s.surface }

// Place 设置格子颜色并绘制对应矩形。幂等；越界时不做任何事并返回 false。
func (s *Store) Place(c domain.Cell, col domain.Color) bool {
	if !s.place(c, col) {
		return false
	}
	s.notify(Change{Kind: ChangePlaced, Cells: []domain.Cell{c}, Color: col})
	return true
}

// Erase 移除格子颜色，重绘背景和格子边框。幂等；越界返回 false。
func (s *Store) Erase(c domain.Cell) bool {
	if !s.erase(c) {
		return false
	}
	s.notify(Change{Kind: ChangeErased, Cells: []domain.Cell{c}})
	return true
}

// PlaceBatch 依次放置，跳过越界格子，返回实际应用的数量。
func (s *Store) PlaceBatch(cells []domain.Cell, col domain.Color) int {
	applied := make([]domain.Cell, 0, len(cells))
	for _, c := range cells {
		if s.place(c, col) {
			applied = append(applied, c)
		}
	}
	if len(applied) > 0 {
		s.notify(Change{Kind: ChangePlaced, Cells: applied, Color: col})
	}
	return len(applied)
}

// EraseBatch 依次擦除，跳过越界格子，返回实际应用的数量。
func (s *Store) EraseBatch(cells []domain.Cell) int {
	applied := make([]domain.Cell, 0, len(cells))
	for _, c := range cells {
		if s.erase(c) {
			applied = append(applied, c)
		}
	}
	if len(applied) > 0 {
		s.notify(Change{Kind: ChangeErased, Cells: applied})
	}
	return len(applied)
}

// Clear 清空 PixelState，重绘背景和完整网格。
func (s *Store) Clear() {
	s.pixels = make(domain.PixelState)
	s.paintBackground()
	s.drawGrid()
	s.notify(Change{Kind: ChangeCleared})
}

// RedrawAll 重绘背景、网格以及每个已存储的像素。
func (s *Store) RedrawAll() {
	s.paintBackground()
	s.drawGrid()
	for c, col := range s.pixels {
		s.fillRect(s.mapper.CellRect(c), col.ToRGBA())
	}
}

// ApplyRemote 按标签分发远端编辑，不会再次广播。返回实际应用的格子数。
func (s *Store) ApplyRemote(edit domain.PixelEdit) int {
	switch edit.Kind {
	case domain.EditPlace:
		if s.Place(edit.Cell, edit.Color) {
			return 1
		}
	case domain.EditErase:
		if s.Erase(edit.Cell) {
			return 1
		}
	case domain.EditBatchPlace:
		return s.PlaceBatch(edit.Cells, edit.Color)
	case domain.EditBatchErase:
		return s.EraseBatch(edit.Cells)
	default:
		s.log.WithField("type", edit.Kind).Warn("Ignoring remote edit with unknown type")
	}
	return 0
}

// Color 返回格子当前颜色，空格子返回 false。
func (s *Store) Color(c domain.Cell) (domain.Color, bool) {
	col, ok := s.pixels[c]
	return col, ok
}

// Len 返回已着色格子数。
func (s *Store) Len() int { return len(s.pixels) }

// Pixels 返回 PixelState 的副本。
func (s *Store) Pixels() domain.PixelState { return s.pixels.Clone() }

// BoardState 返回字符串形式的状态。
func (s *Store) BoardState() domain.BoardState { return s.pixels.BoardState() }

// Subscribe 注册变化回调，回调在拥有者 goroutine 上同步执行，不得阻塞。
func (s *Store) Subscribe(fn func(Change)) (unsubscribe func()) {
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	return func() { delete(s.subs, id) }
}

// EncodePNG 将栅格表面编码为 PNG，scale > 1 时按最近邻放大。
func (s *Store) EncodePNG(w io.Writer, scale int) error {
	var img image.Image = s.surface
	if scale > 1 {
		b := s.surface.Bounds()
		dst := image.NewRGBA(image.Rect(0, 0, b.Dx()*scale, b.Dy()*scale))
		draw.NearestNeighbor.Scale(dst, dst.Bounds(), s.surface, b, draw.Src, nil)
		img = dst
	}
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("canvas: encode png: %w", err)
	}
	return nil
}

func (s *Store) place(c domain.Cell, col domain.Color) bool {
	if !s.mapper.Contains(c) {
		s.log.WithField("cell", c.Key()).Debug("Ignoring out-of-bounds place")
		return false
	}
	s.pixels[c] = col
	s.fillRect(s.mapper.CellRect(c), col.ToRGBA())
	return true
}

func (s *Store) erase(c domain.Cell) bool {
	if !s.mapper.Contains(c) {
		s.log.WithField("cell", c.Key()).Debug("Ignoring out-of-bounds erase")
		return false
	}
	delete(s.pixels, c)
	r := s.mapper.CellRect(c)
	s.fillRect(r, s.background)
	s.drawCellBorder(c, r)
	return true
}

func (s *Store) notify(ch Change) {
	for _, fn := range s.subs {
		fn(ch)
	}
}

func (s *Store) fillRect(r image.Rectangle, c color.RGBA) {
	draw.Draw(s.surface, r, &image.Uniform{C: c}, image.Point{}, draw.Src)
}

func (s *Store) paintBackground() {
	cfg := s.mapper.Config()
	s.fillRect(image.Rect(0, 0, cfg.CanvasWidth, cfg.CanvasHeight), s.background)
}

// 网格线：每个格子的上边和左边各 1px，加上画布的右边和下边。
// 着色的格子会覆盖自己的上/左网格线。
func (s *Store) drawGrid() {
	if !s.showGrid {
		return
	}
	cfg := s.mapper.Config()
	for x := 0; x < cfg.Width; x++ {
		s.vline(x*cfg.CellSize, 0, cfg.CanvasHeight)
	}
	s.vline(cfg.CanvasWidth-1, 0, cfg.CanvasHeight)
	for y := 0; y < cfg.Height; y++ {
		s.hline(0, cfg.CanvasWidth, y*cfg.CellSize)
	}
	s.hline(0, cfg.CanvasWidth, cfg.CanvasHeight-1)
}

func (s *Store) drawCellBorder(c domain.Cell, r image.Rectangle) {
	if !s.showGrid {
		return
	}
	cfg := s.mapper.Config()
	s.hline(r.Min.X, r.Max.X, r.Min.Y)
	s.vline(r.Min.X, r.Min.Y, r.Max.Y)
	if c.X == cfg.Width-1 {
		s.vline(r.Max.X-1, r.Min.Y, r.Max.Y)
	}
	if c.Y == cfg.Height-1 {
		s.hline(r.Min.X, r.Max.X, r.Max.Y-1)
	}
}

func (s *Store) hline(x0, x1, y int) {
	s.fillRect(image.Rect(x0, y, x1, y+1), s.gridLine)
}

func (s *Store) vline(x, y0, y1 int) {
	s.fillRect(image.Rect(x, y0, x+1, y1), s.gridLine)
}

package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"image/color"
	"strconv"
	"strings"

	"golang.org/x/image/colornames"
)

var ErrInvalidColor = errors.New("invalid color")

// Color 是不带 alpha 的 RGB 颜色，"是否存在" 由 PixelState 表达。
type Color struct {
	R, G, B uint8
}

// 常用颜色
var (
	Black = Color{0, 0, 0}
	White = Color{0xff, 0xff, 0xff}
	Red   = Color{0xff, 0, 0}
)

// ParseColor 支持 "#rrggbb"、"#rgb"、不带 # 的十六进制以及 CSS 颜色名。
func ParseColor(s string) (Color, error) {
	raw := strings.TrimSpace(strings.ToLower(s))
	if raw == "" {
		return Color{}, fmt.Errorf("%w: empty", ErrInvalidColor)
	}
	if named, ok := colornames.Map[raw]; ok {
		return Color{named.R, named.G, named.B}, nil
	}
	hex := strings.TrimPrefix(raw, "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return Color{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return Color{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}
	return Color{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v)}, nil
}

// MustParseColor 用于常量场景，解析失败直接 panic。
func MustParseColor(s string) Color {
	c, err := ParseColor(s)
	if err != nil {
		panic(err)
	}
	return c
}

// String 返回小写 "#rrggbb"。
func (c Color) String() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// ToRGBA 转换为不透明的 color.RGBA，用于绘制到栅格表面。
func (c Color) ToRGBA() color.RGBA {
	return color.RGBA{R: c.R, G: c.G, B: c.B, A: 0xff}
}

func (c Color) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

func (c *Color) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidColor, err)
	}
	parsed, err := ParseColor(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

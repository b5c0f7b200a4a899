package domain

import (
	"encoding/json"
	"errors"
	"fmt"
)

// EditKind 是 PixelEdit 的标签。
type EditKind string

const (
	EditPlace      EditKind = "place"
	EditErase      EditKind = "erase"
	EditBatchPlace EditKind = "batch_place"
	EditBatchErase EditKind = "batch_erase"
)

var ErrInvalidEdit = errors.New("invalid pixel edit")

// Valid 判断是否为已知的编辑类型。
func (k EditKind) Valid() bool {
	switch k {
	case EditPlace, EditErase, EditBatchPlace, EditBatchErase:
		return true
	}
	return false
}

// IsBatch 判断是否为批量编辑。
func (k EditKind) IsBatch() bool {
	return k == EditBatchPlace || k == EditBatchErase
}

// PixelEdit 是在网络上传输的画布编辑。
// 单格编辑使用 Cell，批量编辑使用 Cells；Timestamp 仅用于诊断。
type PixelEdit struct {
	Kind      EditKind
	Cell      Cell
	Cells     []Cell
	Color     Color
	Timestamp int64
}

func PlaceEdit(c Cell, col Color, ts int64) PixelEdit {
	return PixelEdit{Kind: EditPlace, Cell: c, Color: col, Timestamp: ts}
}

func EraseEdit(c Cell, ts int64) PixelEdit {
	return PixelEdit{Kind: EditErase, Cell: c, Timestamp: ts}
}

func BatchPlaceEdit(cells []Cell, col Color, ts int64) PixelEdit {
	return PixelEdit{Kind: EditBatchPlace, Cells: cells, Color: col, Timestamp: ts}
}

func BatchEraseEdit(cells []Cell, ts int64) PixelEdit {
	return PixelEdit{Kind: EditBatchErase, Cells: cells, Timestamp: ts}
}

// pixelWire 是服务端使用的 JSON 形态:
// 单格 {type,x,y,color,timestamp}，批量 {type,pixels:[{gridX,gridY}],color,timestamp}
type pixelWire struct {
	Type      EditKind `json:"type"`
	X         *int     `json:"x,omitempty"`
	Y         *int     `json:"y,omitempty"`
	Pixels    []Cell   `json:"pixels,omitempty"`
	Color     string   `json:"color,omitempty"`
	Timestamp int64    `json:"timestamp"`
}

func (e PixelEdit) MarshalJSON() ([]byte, error) {
	if !e.Kind.Valid() {
		return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidEdit, e.Kind)
	}
	w := pixelWire{Type: e.Kind, Timestamp: e.Timestamp}
	if e.Kind.IsBatch() {
		w.Pixels = e.Cells
		if w.Pixels == nil {
			w.Pixels = []Cell{}
		}
	} else {
		x, y := e.Cell.X, e.Cell.Y
		w.X, w.Y = &x, &y
	}
	if e.Kind == EditPlace || e.Kind == EditBatchPlace {
		w.Color = e.Color.String()
	}
	return json.Marshal(w)
}

func (e *PixelEdit) UnmarshalJSON(data []byte) error {
	var w pixelWire
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEdit, err)
	}
	if !w.Type.Valid() {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidEdit, w.Type)
	}
	out := PixelEdit{Kind: w.Type, Timestamp: w.Timestamp}
	if w.Type.IsBatch() {
		out.Cells = w.Pixels
	} else {
		if w.X == nil || w.Y == nil {
			return fmt.Errorf("%w: %s without coordinates", ErrInvalidEdit, w.Type)
		}
		out.Cell = Cell{X: *w.X, Y: *w.Y}
	}
	// erase 不需要颜色
	if w.Type == EditPlace || w.Type == EditBatchPlace {
		col, err := ParseColor(w.Color)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidEdit, err)
		}
		out.Color = col
	}
	*e = out
	return nil
}

// EditList 是有序的编辑列表。解码时跳过无法识别的条目 (例如旧版本的 "fill")，
// 其余条目保持原有顺序。
type EditList []PixelEdit

func (l *EditList) UnmarshalJSON(data []byte) error {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEdit, err)
	}
	out := make(EditList, 0, len(raws))
	for _, raw := range raws {
		var e PixelEdit
		if err := json.Unmarshal(raw, &e); err != nil {
			continue
		}
		out = append(out, e)
	}
	*l = out
	return nil
}

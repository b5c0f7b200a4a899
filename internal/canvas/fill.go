package canvas

import "pixel-guess/internal/domain"

// FloodFill 从 origin 开始做四连通填充，返回被填充的格子。
//
// 目标颜色取 origin 当前颜色，格子不存在时目标为 "空" 类，空只与空匹配。
// 目标颜色与新颜色相同时不做任何事并返回 nil。
// 使用显式栈而不是递归，visited 保证每个格子最多处理一次。
func (s *Store) FloodFill(origin domain.Cell, col domain.Color) []domain.Cell {
	if !s.mapper.Contains(origin) {
		return nil
	}
	target, hasTarget := s.pixels[origin]
	if hasTarget && target == col {
		return nil
	}

	matches := func(c domain.Cell) bool {
		cur, ok := s.pixels[c]
		if !hasTarget {
			return !ok
		}
		return ok && cur == target
	}

	visited := map[domain.Cell]struct{}{origin: {}}
	stack := []domain.Cell{origin}
	var filled []domain.Cell
	for len(stack) > 0 {
		c := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !matches(c) {
			continue
		}
		filled = append(filled, c)
		for _, n := range s.mapper.Neighbors4(c) {
			if _, seen := visited[n]; seen {
				continue
			}
			visited[n] = struct{}{}
			stack = append(stack, n)
		}
	}

	// 收集完成后一次性绘制
	s.PlaceBatch(filled, col)
	return filled
}

package service

import (
	"context"

	"pixel-guess/internal/domain"
	"pixel-guess/internal/repository"
	"pixel-guess/internal/session"
)

// MaxPNGScale 限制导出图片的放大倍数
const MaxPNGScale = 8

// MaxGameLimit 是单次查询归档对局的上限，超出时截断
const MaxGameLimit = 100

// SessionReader 是检查接口读取会话所需的能力，*session.Session 满足它。
type SessionReader interface {
	View() (session.View, error)
	CanvasPNG(scale int) ([]byte, error)
}

// InspectService 为只读 HTTP 接口提供数据。
type InspectService struct {
	sess    SessionReader
	records repository.GameRecordRepository // 可为 nil，表示未配置存档
	roomID  string
}

// NewInspectService 创建 InspectService，records 可以为 nil
func NewInspectService(sess SessionReader, records repository.GameRecordRepository, roomID string) *InspectService {
	if sess == nil {
		panic("SessionReader cannot be nil for InspectService")
	}
	return &InspectService{sess: sess, records: records, roomID: roomID}
}

// State 返回会话快照
func (s *InspectService) State(_ context.Context) (session.View, error) {
	v, err := s.sess.View()
	if err != nil {
		return session.View{}, mapRepoError(err)
	}
	return v, nil
}

// Canvas 返回 "x,y" -> 颜色 的画布状态
func (s *InspectService) Canvas(ctx context.Context) (domain.BoardState, error) {
	v, err := s.State(ctx)
	if err != nil {
		return nil, err
	}
	return v.Board, nil
}

// CanvasPNG 导出放大 scale 倍的 PNG
func (s *InspectService) CanvasPNG(_ context.Context, scale int) ([]byte, error) {
	if scale < 1 || scale > MaxPNGScale {
		return nil, ErrInvalidScale
	}
	data, err := s.sess.CanvasPNG(scale)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return data, nil
}

// RecentGames 返回本房间最近归档的对局
func (s *InspectService) RecentGames(ctx context.Context, limit int) ([]domain.GameRecord, error) {
	if s.records == nil {
		return nil, ErrArchiveDisabled
	}
	if limit > MaxGameLimit {
		limit = MaxGameLimit
	}
	records, err := s.records.ListByRoom(ctx, s.roomID, limit)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return records, nil
}

package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"pixel-guess/internal/canvas"
	"pixel-guess/internal/domain"
	"pixel-guess/internal/game"
	"pixel-guess/internal/repository"
)

const (
	defaultMirrorQueueSize = 1024
	mirrorOpTimeout        = 3 * time.Second
)

type mirrorOpKind int

const (
	opPlaced mirrorOpKind = iota
	opErased
	opCleared
	opGameState
)

type mirrorOp struct {
	kind  mirrorOpKind
	cells []domain.Cell
	color domain.Color
	event domain.MessageType
	state game.State
}

// MirrorService 把会话的画布和游戏状态镜像到读模型。
// 回调只做非阻塞入队，队列满时丢弃；仓库调用在自己的 goroutine 上执行。
type MirrorService struct {
	repo   repository.StateRepository
	roomID string
	queue  chan mirrorOp

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	dropped  atomic.Int64
	log      *logrus.Entry
}

// NewMirrorService 创建 MirrorService，queueSize <= 0 时使用默认值
func NewMirrorService(repo repository.StateRepository, roomID string, queueSize int, log *logrus.Entry) *MirrorService {
	if repo == nil {
		panic("StateRepository cannot be nil for MirrorService")
	}
	if queueSize <= 0 {
		queueSize = defaultMirrorQueueSize
	}
	if log == nil {
		log = logrus.WithField("component", "mirror")
	}
	return &MirrorService{
		repo:   repo,
		roomID: roomID,
		queue:  make(chan mirrorOp, queueSize),
		stop:   make(chan struct{}),
		log:    log.WithField("room_id", roomID),
	}
}

// Reset 清掉读模型中上一次会话留下的状态，应在 Start 之前调用
func (s *MirrorService) Reset(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, mirrorOpTimeout)
	defer cancel()
	if err := s.repo.CleanupRoomState(ctx, s.roomID); err != nil {
		return fmt.Errorf("failed to reset mirrored room state: %w", err)
	}
	return nil
}

// Start 启动后台写入 goroutine
func (s *MirrorService) Start(ctx context.Context) {
	s.wg.Add(1)
	go s.run(ctx)
}

// Stop 写完已入队的操作后退出，可重复调用
func (s *MirrorService) Stop() {
	s.stopOnce.Do(func() {
		close(s.stop)
		s.wg.Wait()
		if n := s.dropped.Load(); n > 0 {
			s.log.WithField("dropped", n).Warn("Mirror dropped updates because the queue was full")
		}
	})
}

// Dropped 返回因队列满被丢弃的更新数
func (s *MirrorService) Dropped() int64 { return s.dropped.Load() }

// OnCanvasChange 实现 session.Observer
func (s *MirrorService) OnCanvasChange(c canvas.Change) {
	op := mirrorOp{cells: c.Cells, color: c.Color}
	switch c.Kind {
	case canvas.ChangePlaced:
		op.kind = opPlaced
	case canvas.ChangeErased:
		op.kind = opErased
	case canvas.ChangeCleared:
		op.kind = opCleared
	default:
		return
	}
	s.enqueue(op)
}

// OnGameChange 实现 session.Observer
func (s *MirrorService) OnGameChange(c game.Change) {
	s.enqueue(mirrorOp{kind: opGameState, event: c.Event, state: redact(c.State)})
}

func (s *MirrorService) enqueue(op mirrorOp) {
	select {
	case <-s.stop:
		return
	default:
	}
	select {
	case s.queue <- op:
	default:
		s.dropped.Add(1)
	}
}

func (s *MirrorService) run(ctx context.Context) {
	defer s.wg.Done()
	s.log.Info("Mirror service started")
	for {
		select {
		case op := <-s.queue:
			s.apply(ctx, op)
		case <-ctx.Done():
			return
		case <-s.stop:
			s.drain(ctx)
			s.log.Info("Mirror service stopped")
			return
		}
	}
}

func (s *MirrorService) drain(ctx context.Context) {
	for {
		select {
		case op := <-s.queue:
			s.apply(ctx, op)
		default:
			return
		}
	}
}

func (s *MirrorService) apply(parent context.Context, op mirrorOp) {
	ctx, cancel := context.WithTimeout(parent, mirrorOpTimeout)
	defer cancel()

	var err error
	var event string
	var payload any
	switch op.kind {
	case opPlaced:
		err = s.repo.ApplyPlaced(ctx, s.roomID, op.cells, op.color)
		event, payload = string(canvas.ChangePlaced), fields{"cells": op.cells, "color": op.color}
	case opErased:
		err = s.repo.ApplyErased(ctx, s.roomID, op.cells)
		event, payload = string(canvas.ChangeErased), fields{"cells": op.cells}
	case opCleared:
		err = s.repo.ClearBoard(ctx, s.roomID)
		event = string(canvas.ChangeCleared)
	case opGameState:
		err = s.repo.SaveGameState(ctx, s.roomID, op.state)
		event, payload = string(op.event), fields{"phase": op.state.Phase, "round": op.state.RoundNumber}
	}
	if err != nil {
		s.log.WithError(err).WithField("event", event).Warn("Failed to mirror update")
		return
	}
	if err := s.repo.PublishEvent(ctx, s.roomID, event, payload); err != nil {
		s.log.WithError(err).WithField("event", event).Debug("Failed to publish mirror event")
	}
}

// fields 是事件载荷的简写
type fields = map[string]any

// redact 去掉只有画手能看到的词和候选词
func redact(st game.State) game.State {
	if st.Phase == domain.PhaseDrawing && st.LocalPlayerID != "" && st.DrawerID == st.LocalPlayerID {
		st.Word = ""
	}
	st.WordChoices = nil
	return st
}

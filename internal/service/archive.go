package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"pixel-guess/internal/canvas"
	"pixel-guess/internal/domain"
	"pixel-guess/internal/game"
	"pixel-guess/internal/tasks"
)

const (
	archiveQueueSize  = 16
	archiveMaxRetry   = 5
	archiveTimeout    = 5 * time.Second
	archiveRetention  = 24 * time.Hour
	archiveTaskPrefix = "archive"
)

// TaskEnqueuer 是投递 asynq 任务所需的能力，*asynq.Client 满足它。
type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// ArchiveService 在收到 game_ended 时投递对局归档任务。
type ArchiveService struct {
	enqueuer  TaskEnqueuer
	sessionID string
	roomID    string
	queue     chan domain.GameRecord

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	now      func() time.Time
	log      *logrus.Entry
}

// NewArchiveService 创建 ArchiveService
func NewArchiveService(enqueuer TaskEnqueuer, sessionID, roomID string, log *logrus.Entry) *ArchiveService {
	if enqueuer == nil {
		panic("TaskEnqueuer cannot be nil for ArchiveService")
	}
	if log == nil {
		log = logrus.WithField("component", "archive")
	}
	return &ArchiveService{
		enqueuer:  enqueuer,
		sessionID: sessionID,
		roomID:    roomID,
		queue:     make(chan domain.GameRecord, archiveQueueSize),
		stop:      make(chan struct{}),
		now:       time.Now,
		log:       log.WithFields(logrus.Fields{"room_id": roomID, "session_id": sessionID}),
	}
}

// Start 启动投递 goroutine
func (s *ArchiveService) Start(ctx context.Context) {
	s.wg.Add(1)
	go s.run(ctx)
}

// Stop 投递完已入队的记录后退出，可重复调用
func (s *ArchiveService) Stop() {
	s.stopOnce.Do(func() {
		close(s.stop)
		s.wg.Wait()
	})
}

// OnCanvasChange 实现 session.Observer，归档不关心画布
func (s *ArchiveService) OnCanvasChange(canvas.Change) {}

// OnGameChange 实现 session.Observer
func (s *ArchiveService) OnGameChange(c game.Change) {
	if c.Event != domain.MsgGameEnded || c.State.Results == nil {
		return
	}
	rec, err := domain.NewGameRecord(s.sessionID, s.roomID, *c.State.Results, s.now().UTC())
	if err != nil {
		s.log.WithError(err).Error("Failed to build game record")
		return
	}
	select {
	case <-s.stop:
		return
	default:
	}
	select {
	case s.queue <- rec:
	default:
		s.log.Warn("Archive queue full, dropping game record")
	}
}

func (s *ArchiveService) run(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case rec := <-s.queue:
			s.submit(ctx, rec)
		case <-ctx.Done():
			return
		case <-s.stop:
			for {
				select {
				case rec := <-s.queue:
					s.submit(ctx, rec)
				default:
					return
				}
			}
		}
	}
}

// Submit 同步投递一条记录，任务 ID 由会话和结束时间决定，重复投递被忽略
func (s *ArchiveService) Submit(ctx context.Context, rec domain.GameRecord) error {
	payload, err := tasks.NewGameArchiveTask(rec)
	if err != nil {
		return fmt.Errorf("failed to build archive task: %w", err)
	}
	task := asynq.NewTask(tasks.TypeGameArchive, payload)
	taskID := fmt.Sprintf("%s:%s:%d", archiveTaskPrefix, rec.SessionID, rec.FinishedAt.UnixMilli())

	ctx, cancel := context.WithTimeout(ctx, archiveTimeout)
	defer cancel()
	info, err := s.enqueuer.EnqueueContext(ctx, task,
		asynq.Queue(tasks.QueueDefault),
		asynq.MaxRetry(archiveMaxRetry),
		asynq.TaskID(taskID),
		asynq.Retention(archiveRetention),
	)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask) {
			s.log.WithField("task_id", taskID).Info("Archive task already enqueued")
			return nil
		}
		return fmt.Errorf("failed to enqueue archive task: %w", err)
	}
	s.log.WithFields(logrus.Fields{"task_id": info.ID, "queue": info.Queue}).Info("Game archive task enqueued")
	return nil
}

func (s *ArchiveService) submit(ctx context.Context, rec domain.GameRecord) {
	if err := s.Submit(ctx, rec); err != nil {
		s.log.WithError(err).Error("Failed to archive game")
	}
}

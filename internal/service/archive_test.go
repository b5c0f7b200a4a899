package service_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"pixel-guess/internal/domain"
	"pixel-guess/internal/game"
	"pixel-guess/internal/service"
	"pixel-guess/internal/tasks"
)

// mockEnqueuer 模拟 *asynq.Client
type mockEnqueuer struct {
	mock.Mock
}

func (m *mockEnqueuer) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	args := m.Called(ctx, task, opts)
	info, _ := args.Get(0).(*asynq.TaskInfo)
	return info, args.Error(1)
}

func endedChange() game.Change {
	return game.Change{
		Event:         domain.MsgGameEnded,
		PreviousPhase: domain.PhaseRevealing,
		State: game.State{
			Phase: domain.PhaseEnded,
			Results: &domain.GameEndedData{
				Leaderboard:  []domain.GameResultData{{PlayerID: "p1", Username: "alice", Score: 40, Position: 1}},
				MVP:          &domain.GameResultData{PlayerID: "p1", Username: "alice", Score: 40},
				RoundsPlayed: 3,
				TotalPlayers: 2,
			},
		},
	}
}

func TestArchiveService_EnqueuesOnGameEnded(t *testing.T) {
	enq := new(mockEnqueuer)
	enq.On("EnqueueContext", mock.Anything, mock.MatchedBy(func(task *asynq.Task) bool {
		if task.Type() != tasks.TypeGameArchive {
			return false
		}
		var p tasks.GameArchivePayload
		if err := json.Unmarshal(task.Payload(), &p); err != nil {
			return false
		}
		return p.Record.RoomID == "room-1" && p.Record.SessionID == "s-1" && p.Record.MVPUsername == "alice"
	}), mock.Anything).Return(&asynq.TaskInfo{ID: "archive:s-1:1", Queue: tasks.QueueDefault}, nil).Once()

	svc := service.NewArchiveService(enq, "s-1", "room-1", nil)
	svc.Start(context.Background())

	// 其他事件不触发归档
	svc.OnGameChange(game.Change{Event: domain.MsgRoundEnd, State: game.State{Phase: domain.PhaseRevealing}})
	svc.OnGameChange(endedChange())
	svc.Stop()

	enq.AssertExpectations(t)
}

func TestArchiveService_SubmitTreatsConflictAsDone(t *testing.T) {
	enq := new(mockEnqueuer)
	enq.On("EnqueueContext", mock.Anything, mock.Anything, mock.Anything).Return(nil, asynq.ErrTaskIDConflict).Once()

	svc := service.NewArchiveService(enq, "s-1", "room-1", nil)
	rec, err := domain.NewGameRecord("s-1", "room-1", *endedChange().State.Results, time.Now())
	require.NoError(t, err)

	assert.NoError(t, svc.Submit(context.Background(), rec))
	enq.AssertExpectations(t)
}

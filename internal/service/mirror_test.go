package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"pixel-guess/internal/canvas"
	"pixel-guess/internal/domain"
	"pixel-guess/internal/game"
	"pixel-guess/internal/repository/mocks"
	"pixel-guess/internal/service"
)

func TestMirrorService_MirrorsCanvasAndGame(t *testing.T) {
	repo := mocks.NewStateRepository(t)
	cells := []domain.Cell{{X: 1, Y: 2}, {X: 2, Y: 2}}

	// 顺序由单个写入 goroutine 保证
	repo.On("ApplyPlaced", mock.Anything, "room-1", cells, domain.Red).Return(nil).Once()
	repo.On("PublishEvent", mock.Anything, "room-1", "placed", mock.Anything).Return(nil).Once()
	repo.On("ApplyErased", mock.Anything, "room-1", cells[:1]).Return(nil).Once()
	repo.On("PublishEvent", mock.Anything, "room-1", "erased", mock.Anything).Return(nil).Once()
	repo.On("ClearBoard", mock.Anything, "room-1").Return(nil).Once()
	repo.On("PublishEvent", mock.Anything, "room-1", "cleared", nil).Return(nil).Once()
	repo.On("SaveGameState", mock.Anything, "room-1", mock.MatchedBy(func(st game.State) bool {
		return st.Phase == domain.PhaseDrawing && st.Word == "" && st.WordChoices == nil
	})).Return(nil).Once()
	repo.On("PublishEvent", mock.Anything, "room-1", string(domain.MsgDrawingPhase), mock.Anything).Return(errors.New("no subscribers")).Once()

	svc := service.NewMirrorService(repo, "room-1", 16, nil)
	svc.Start(context.Background())

	svc.OnCanvasChange(canvas.Change{Kind: canvas.ChangePlaced, Cells: cells, Color: domain.Red})
	svc.OnCanvasChange(canvas.Change{Kind: canvas.ChangeErased, Cells: cells[:1]})
	svc.OnCanvasChange(canvas.Change{Kind: canvas.ChangeCleared})
	svc.OnGameChange(game.Change{
		Event:         domain.MsgDrawingPhase,
		PreviousPhase: domain.PhaseWaiting,
		State: game.State{
			Phase:         domain.PhaseDrawing,
			DrawerID:      "p1",
			LocalPlayerID: "p1",
			Word:          "apple",
			WordChoices:   []string{"apple", "pear"},
		},
	})
	svc.Stop()
	svc.Stop()

	assert.Zero(t, svc.Dropped())
}

func TestMirrorService_RepoErrorSkipsPublish(t *testing.T) {
	repo := mocks.NewStateRepository(t)
	repo.On("ClearBoard", mock.Anything, "room-1").Return(errors.New("redis down")).Once()

	svc := service.NewMirrorService(repo, "room-1", 4, nil)
	svc.Start(context.Background())
	svc.OnCanvasChange(canvas.Change{Kind: canvas.ChangeCleared})
	svc.Stop()

	repo.AssertNotCalled(t, "PublishEvent", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestMirrorService_DropsWhenQueueFull(t *testing.T) {
	repo := mocks.NewStateRepository(t)
	svc := service.NewMirrorService(repo, "room-1", 1, nil)

	// 未启动时队列不会被消费
	svc.OnCanvasChange(canvas.Change{Kind: canvas.ChangeCleared})
	svc.OnCanvasChange(canvas.Change{Kind: canvas.ChangeCleared})
	svc.OnCanvasChange(canvas.Change{Kind: canvas.ChangeCleared})
	assert.EqualValues(t, 2, svc.Dropped(), "回调不能阻塞，队列满时应丢弃")

	repo.On("ClearBoard", mock.Anything, "room-1").Return(nil).Once()
	repo.On("PublishEvent", mock.Anything, "room-1", "cleared", nil).Return(nil).Once()
	svc.Start(context.Background())
	svc.Stop()

	// 停止后的回调被忽略
	svc.OnCanvasChange(canvas.Change{Kind: canvas.ChangeCleared})
}

func TestMirrorService_Reset(t *testing.T) {
	repo := mocks.NewStateRepository(t)
	repo.On("CleanupRoomState", mock.Anything, "room-1").Return(nil).Once()
	repo.On("CleanupRoomState", mock.Anything, "room-1").Return(errors.New("redis down")).Once()

	svc := service.NewMirrorService(repo, "room-1", 4, nil)
	assert.NoError(t, svc.Reset(context.Background()))
	assert.Error(t, svc.Reset(context.Background()))
}

package session_test

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pixel-guess/internal/canvas"
	"pixel-guess/internal/domain"
	"pixel-guess/internal/game"
	"pixel-guess/internal/session"
	"pixel-guess/internal/transport"
)

// fakeChannel 是并发安全的 transport.Channel，记录出站信封
type fakeChannel struct {
	mu    sync.Mutex
	ready bool
	sent  []domain.Envelope
}

func (f *fakeChannel) Ready() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ready
}

func (f *fakeChannel) Send(data []byte) error {
	var env domain.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, env)
	return nil
}

func (f *fakeChannel) Sent() []domain.Envelope {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Envelope(nil), f.sent...)
}

func (f *fakeChannel) Types() []domain.MessageType {
	var out []domain.MessageType
	for _, e := range f.Sent() {
		out = append(out, e.Type)
	}
	return out
}

type recordingObserver struct {
	mu     sync.Mutex
	phases []domain.GamePhase
	canvas []canvas.ChangeKind
}

func (o *recordingObserver) OnGameChange(c game.Change) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if c.PhaseChanged() {
		o.phases = append(o.phases, c.State.Phase)
	}
}

func (o *recordingObserver) OnCanvasChange(c canvas.Change) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.canvas = append(o.canvas, c.Kind)
}

func encode(t *testing.T, msgType domain.MessageType, payload any) []byte {
	t.Helper()
	raw, err := transport.Encode(msgType, payload)
	require.NoError(t, err)
	return raw
}

var (
	alice = domain.Player{ID: "p1", Username: "alice", IsConnected: true}
	bob   = domain.Player{ID: "p2", Username: "bob", IsConnected: true}
)

func welcome(t *testing.T, phase domain.GamePhase, drawer *domain.Player, edits ...domain.PixelEdit) []byte {
	t.Helper()
	players := []domain.Player{alice, bob}
	if drawer != nil && phase == domain.PhaseDrawing {
		for i := range players {
			players[i].CanDraw = players[i].ID == drawer.ID
		}
	}
	return encode(t, domain.MsgWelcome, domain.WelcomeData{
		GameState: domain.GameStateUpdateData{
			Phase:         phase,
			RoundNumber:   1,
			MaxRounds:     3,
			CurrentDrawer: drawer,
			Players:       players,
		},
		CanvasState: domain.EditList(edits),
	})
}

func openSession(t *testing.T, cfg session.Config, opts ...session.Option) (*session.Session, *fakeChannel) {
	t.Helper()
	ch := &fakeChannel{ready: true}
	s, err := session.Open(cfg, ch, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, ch
}

func TestOpen_RequiresIdentity(t *testing.T) {
	_, err := session.Open(session.Config{}, &fakeChannel{})
	assert.ErrorIs(t, err, session.ErrMissingIdentity)
}

func TestSession_DrawerRoundTrip(t *testing.T) {
	obs := &recordingObserver{}
	s, ch := openSession(t, session.Config{RoomID: "r1", Username: "alice"}, session.WithObserver(obs))

	// 加入快照之前拒绝本地输入
	_, err := s.PointerDown(center(3, 3))
	assert.ErrorIs(t, err, session.ErrNotJoined)

	s.Deliver(welcome(t, domain.PhaseLobby, nil, domain.PlaceEdit(domain.Cell{X: 1, Y: 1}, domain.Red, 1)))
	v, err := s.View()
	require.NoError(t, err)
	assert.True(t, v.Joined)
	assert.Equal(t, "p1", v.Game.LocalPlayerID, "应通过用户名解析本地玩家 id")
	assert.Equal(t, domain.BoardState{"1,1": "#ff0000"}, v.Board)
	assert.Empty(t, ch.Sent(), "回放历史不应再次广播")

	changed, err := s.PointerDown(center(3, 3))
	require.NoError(t, err)
	assert.False(t, changed, "大厅阶段不能绘制")

	s.Deliver(encode(t, domain.MsgGameStarted, domain.GameStartedData{Players: []domain.Player{alice, bob}, MaxRounds: 3}))
	s.Deliver(encode(t, domain.MsgWaitingPhase, domain.WaitingPhaseData{CurrentDrawer: domain.PlayerRef{ID: "p1", Username: "alice"}, RoundNumber: 1}))
	s.Deliver(encode(t, domain.MsgDrawingPhase, domain.DrawingPhaseData{
		MaskedWord:    "_ _ _ _ _",
		CurrentWord:   "apple",
		CurrentDrawer: &domain.PlayerRef{ID: "p1", Username: "alice"},
		TimeRemaining: 60,
	}))

	v, err = s.View()
	require.NoError(t, err)
	assert.Empty(t, v.Board, "新一局开始时画布被丢弃")
	assert.True(t, v.CanDraw)
	assert.Equal(t, "apple", v.Game.Word)

	changed, err = s.PointerDown(center(3, 3))
	require.NoError(t, err)
	assert.True(t, changed)
	require.NoError(t, s.PointerUp())
	assert.ErrorIs(t, s.SubmitGuess("apple"), session.ErrDrawerCannotGuess)

	// 远端编辑只应用到本地，不回传
	s.Deliver([]byte(`{"type":"pixel_draw","data":{"type":"place","x":0,"y":0,"color":"#00ff00","timestamp":5}}`))
	v, err = s.View()
	require.NoError(t, err)
	assert.Equal(t, domain.BoardState{"0,0": "#00ff00", "3,3": "#000000"}, v.Board)
	assert.Equal(t, []domain.MessageType{domain.MsgPixelDraw}, ch.Types())

	s.Deliver(encode(t, domain.MsgCanvasCleared, domain.CanvasClearedData{PlayerID: "p2"}))
	s.Deliver(encode(t, domain.MsgRoundEnd, domain.RoundEndData{Word: "apple", DrawerID: "p1"}))
	ok, err := s.Clear()
	require.NoError(t, err)
	assert.False(t, ok, "揭晓阶段不能清空")

	v, err = s.View()
	require.NoError(t, err)
	assert.Empty(t, v.Board)
	assert.Equal(t, domain.PhaseRevealing, v.Game.Phase)

	obs.mu.Lock()
	defer obs.mu.Unlock()
	assert.Equal(t, []domain.GamePhase{domain.PhaseWaiting, domain.PhaseDrawing, domain.PhaseRevealing}, obs.phases)
	assert.Contains(t, obs.canvas, canvas.ChangeCleared)
}

func TestSession_CanvasArrayReplay(t *testing.T) {
	s, ch := openSession(t, session.Config{Username: "bob"})

	s.Deliver([]byte(`[{"type":"place","x":2,"y":3,"color":"#0000ff","timestamp":1},` +
		`{"type":"batch_place","pixels":[{"gridX":4,"gridY":4},{"gridX":5,"gridY":4}],"color":"red","timestamp":2},` +
		`{"type":"erase","x":2,"y":3,"timestamp":3},` +
		`{"type":"fill","x":0,"y":0,"color":"red","timestamp":4}]`))

	v, err := s.View()
	require.NoError(t, err)
	assert.True(t, v.Joined)
	assert.Equal(t, domain.BoardState{"4,4": "#ff0000", "5,4": "#ff0000"}, v.Board)
	assert.Empty(t, ch.Sent())
}

func TestSession_GuessGating(t *testing.T) {
	s, ch := openSession(t, session.Config{Username: "bob", GuessRate: 0.001, GuessBurst: 2})

	s.Deliver(welcome(t, domain.PhaseLobby, nil))
	assert.ErrorIs(t, s.SubmitGuess("cat"), session.ErrGuessNotAccepted)
	assert.ErrorIs(t, s.SubmitGuess("   "), session.ErrEmptyGuess)

	d := alice
	s.Deliver(welcome(t, domain.PhaseDrawing, &d))
	require.NoError(t, s.SubmitGuess(" cat "))
	require.NoError(t, s.SubmitGuess("dog"))
	assert.ErrorIs(t, s.SubmitGuess("cow"), session.ErrRateLimited)

	sent := ch.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, domain.MsgGuess, sent[0].Type)
	assert.JSONEq(t, `"cat"`, string(sent[0].Data), "猜词以裸字符串发送")
}

func TestSession_AlreadyGuessed(t *testing.T) {
	s, _ := openSession(t, session.Config{Username: "bob"})
	d := alice
	s.Deliver(welcome(t, domain.PhaseDrawing, &d))
	s.Deliver(encode(t, domain.MsgGuessResult, domain.GuessResultData{PlayerID: "p2", Username: "bob", IsCorrect: true, Score: 10}))

	v, err := s.View()
	require.NoError(t, err)
	require.True(t, v.Game.HasCorrectGuess("p2"))
	assert.ErrorIs(t, s.SubmitGuess("apple"), session.ErrAlreadyGuessed)
}

func TestSession_NotConnected(t *testing.T) {
	ch := &fakeChannel{ready: false}
	s, err := session.Open(session.Config{Username: "bob"}, ch)
	require.NoError(t, err)
	defer s.Close()

	assert.ErrorIs(t, s.SetReady(true), session.ErrNotConnected)
	assert.ErrorIs(t, s.StartGame(), session.ErrNotConnected)
}

func TestSession_ChooseWord(t *testing.T) {
	s, ch := openSession(t, session.Config{Username: "alice"})
	s.Deliver(welcome(t, domain.PhaseWaiting, nil))
	s.Deliver(encode(t, domain.MsgWordSelection, domain.WordSelectionData{Choices: []string{"cat", "tree"}, TimeLimit: 10}))

	assert.ErrorIs(t, s.ChooseWord("house"), session.ErrInvalidWord)
	require.NoError(t, s.ChooseWord("tree"))

	sent := ch.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, domain.MsgWordSelection, sent[0].Type)
	assert.JSONEq(t, `"tree"`, string(sent[0].Data))
}

func TestSession_AutoPickWord(t *testing.T) {
	s, ch := openSession(t, session.Config{Username: "alice", AutoPickWord: true})
	s.Deliver(welcome(t, domain.PhaseWaiting, nil))
	s.Deliver(encode(t, domain.MsgWordSelection, domain.WordSelectionData{Choices: []string{"cat", "tree"}, TimeLimit: 0}))

	assert.Eventually(t, func() bool {
		sent := ch.Sent()
		return len(sent) == 1 && string(sent[0].Data) == `"cat"`
	}, time.Second, 10*time.Millisecond, "时限将到时应自动选择第一个候选词")
}

func TestSession_CanvasPNG(t *testing.T) {
	s, _ := openSession(t, session.Config{Username: "alice"})
	png, err := s.CanvasPNG(1)
	require.NoError(t, err)
	assert.Equal(t, []byte("\x89PNG"), png[:4])
}

func TestSession_CloseIsIdempotent(t *testing.T) {
	s, err := session.Open(session.Config{Username: "alice"}, &fakeChannel{ready: true})
	require.NoError(t, err)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, err = s.View()
	assert.ErrorIs(t, err, session.ErrSessionClosed)
	assert.ErrorIs(t, s.SubmitGuess("cat"), session.ErrSessionClosed)
	// 关闭后投递只会被丢弃
	s.Deliver([]byte(`{"type":"timer_update","data":{}}`))
}

// Package session 管理一次对局连接的生命周期：
// 画布、游戏状态机、传输与绘图控制器都由同一个 goroutine 拥有，
// 入站消息与本地调用经由同一个队列串行执行，因此 PixelState 无需加锁。
package session

import (
	"bytes"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"pixel-guess/internal/canvas"
	"pixel-guess/internal/domain"
	"pixel-guess/internal/game"
	"pixel-guess/internal/transport"
)

const (
	defaultInboxSize  = 256
	defaultGuessRate  = 1.0
	defaultGuessBurst = 3
	// 自动选词在时限的这个比例处触发
	autoPickFraction = 0.8
)

// Config 是打开会话所需的参数。
type Config struct {
	RoomID       string
	PlayerID     string
	Username     string
	Grid         domain.GridConfig
	GuessRate    float64 // 每秒允许的猜词次数
	GuessBurst   int
	AutoPickWord bool // 选词时限将到时自动选择第一个候选词
	InboxSize    int
}

// Observer 接收状态变化，回调在会话 goroutine 上执行，不得阻塞。
type Observer interface {
	OnGameChange(game.Change)
	OnCanvasChange(canvas.Change)
}

// View 是对外只读的会话快照。
type View struct {
	SessionID string            `json:"session_id"`
	RoomID    string            `json:"room_id"`
	Joined    bool              `json:"joined"`
	CanDraw   bool              `json:"can_draw"`
	Tool      Tool              `json:"tool"`
	Color     domain.Color      `json:"color"`
	Grid      domain.GridConfig `json:"grid"`
	Game      game.State        `json:"game"`
	Board     domain.BoardState `json:"board"`
	Pixels    domain.PixelState `json:"-"`
}

// Option 配置 Session。
type Option func(*Session)

// WithLogger 指定日志 Entry。
func WithLogger(log *logrus.Entry) Option {
	return func(s *Session) { s.log = log }
}

// WithObserver 在会话启动前注册观察者。
func WithObserver(o Observer) Option {
	return func(s *Session) { s.observers = append(s.observers, o) }
}

// WithCanvasOptions 透传给 canvas.NewStore。
func WithCanvasOptions(opts ...canvas.Option) Option {
	return func(s *Session) { s.canvasOpts = append(s.canvasOpts, opts...) }
}

// Session 是一次对局连接。使用 Open 创建，Close 释放。
type Session struct {
	id  string
	cfg Config

	store      *canvas.Store
	machine    *game.Machine
	transport  *transport.Transport
	controller *Controller
	limiter    *rate.Limiter

	joined     bool
	wordChosen bool
	wordTimer  *time.Timer

	observers  []Observer
	canvasOpts []canvas.Option

	inbox     chan func()
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
	log       *logrus.Entry
}

// Open 创建会话并启动拥有者 goroutine。ch 的连接生命周期由调用方负责。
func Open(cfg Config, ch transport.Channel, opts ...Option) (*Session, error) {
	if cfg.PlayerID == "" && cfg.Username == "" {
		return nil, ErrMissingIdentity
	}
	if cfg.Grid == (domain.GridConfig{}) {
		cfg.Grid = domain.DefaultGridConfig()
	}
	if cfg.GuessRate <= 0 {
		cfg.GuessRate = defaultGuessRate
	}
	if cfg.GuessBurst <= 0 {
		cfg.GuessBurst = defaultGuessBurst
	}
	if cfg.InboxSize <= 0 {
		cfg.InboxSize = defaultInboxSize
	}

	s := &Session{
		id:      uuid.NewString(),
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.GuessRate), cfg.GuessBurst),
		inbox:   make(chan func(), cfg.InboxSize),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logrus.NewEntry(logrus.StandardLogger())
	}
	s.log = s.log.WithFields(logrus.Fields{"session_id": s.id, "room_id": cfg.RoomID})

	store, err := canvas.NewStore(cfg.Grid, append(s.canvasOpts, canvas.WithLogger(s.log.WithField("component", "canvas")))...)
	if err != nil {
		return nil, err
	}
	s.store = store
	s.machine = game.NewMachine(cfg.PlayerID, cfg.Username, s.log.WithField("component", "game"))
	s.transport = transport.New(ch, s.log.WithField("component", "transport"))
	s.controller = NewController(store, s.transport, s.machine.CanLocalPlayerDraw, s.log.WithField("component", "controller"))

	s.transport.OnEdit(s.handleEdit)
	s.transport.OnProtocolEvent(s.handleEvent)
	for _, o := range s.observers {
		s.store.Subscribe(o.OnCanvasChange)
		s.machine.Subscribe(o.OnGameChange)
	}

	s.wg.Add(1)
	go s.run()
	s.log.Info("Session opened")
	return s, nil
}

// ID 返回会话 ID。
func (s *Session) ID() string { return s.id }

// Close 停止会话 goroutine，可重复调用。未执行的排队任务被丢弃。
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.wg.Wait()
		if s.wordTimer != nil {
			s.wordTimer.Stop()
		}
		s.log.Info("Session closed")
	})
	return nil
}

// Done 在会话关闭后被关闭。
func (s *Session) Done() <-chan struct{} { return s.done }

func (s *Session) run() {
	defer s.wg.Done()
	for {
		select {
		case fn := <-s.inbox:
			fn()
		case <-s.done:
			return
		}
	}
}

// enqueue 把任务放进队列，不等待执行。
func (s *Session) enqueue(fn func()) error {
	select {
	case s.inbox <- fn:
		return nil
	case <-s.done:
		return ErrSessionClosed
	}
}

// do 在会话 goroutine 上执行 fn 并等待其完成。
func (s *Session) do(fn func()) error {
	finished := make(chan struct{})
	if err := s.enqueue(func() { fn(); close(finished) }); err != nil {
		return err
	}
	select {
	case <-finished:
		return nil
	case <-s.done:
		return ErrSessionClosed
	}
}

// Deliver 把一条入站原始消息排入会话队列，保持到达顺序。
// 通常作为 WSChannel.Run 的回调。
func (s *Session) Deliver(raw []byte) {
	msg := bytes.Clone(raw)
	if err := s.enqueue(func() { s.transport.Receive(msg) }); err != nil {
		s.log.Debug("Session closed, dropping inbound message")
	}
}

// PointerDown 见 Controller.PointerDown。加入快照应用之前拒绝本地输入。
func (s *Session) PointerDown(px, py float64) (bool, error) {
	var changed bool
	var joined bool
	err := s.do(func() {
		if joined = s.joined; joined {
			changed = s.controller.PointerDown(px, py)
		}
	})
	if err == nil && !joined {
		err = ErrNotJoined
	}
	return changed, err
}

// PointerMove 见 Controller.PointerMove。
func (s *Session) PointerMove(px, py float64) (bool, error) {
	var changed bool
	err := s.do(func() { changed = s.controller.PointerMove(px, py) })
	return changed, err
}

// PointerUp 结束拖动。
func (s *Session) PointerUp() error { return s.do(s.controller.PointerUp) }

// PointerLeave 指针离开画布。
func (s *Session) PointerLeave() error { return s.do(s.controller.PointerLeave) }

// SetTool 切换工具。
func (s *Session) SetTool(t Tool) error { return s.do(func() { s.controller.SetTool(t) }) }

// SetColor 设置颜色。
func (s *Session) SetColor(c domain.Color) error { return s.do(func() { s.controller.SetColor(c) }) }

// Clear 只在本地玩家可绘制时生效，否则返回 false。
func (s *Session) Clear() (bool, error) {
	var ok, joined bool
	err := s.do(func() {
		if joined = s.joined; joined {
			ok = s.controller.Clear()
		}
	})
	if err == nil && !joined {
		err = ErrNotJoined
	}
	return ok, err
}

// SubmitGuess 在 Drawing 阶段发送一次猜词。
func (s *Session) SubmitGuess(text string) error {
	guess := strings.TrimSpace(text)
	if guess == "" {
		return ErrEmptyGuess
	}
	var result error
	if err := s.do(func() { result = s.submitGuess(guess) }); err != nil {
		return err
	}
	return result
}

func (s *Session) submitGuess(guess string) error {
	st := s.machine.Snapshot()
	if st.Phase != domain.PhaseDrawing {
		return ErrGuessNotAccepted
	}
	if s.machine.IsLocalDrawer() {
		return ErrDrawerCannotGuess
	}
	if st.LocalPlayerID != "" && st.HasCorrectGuess(st.LocalPlayerID) {
		return ErrAlreadyGuessed
	}
	if !s.limiter.Allow() {
		return ErrRateLimited
	}
	if !s.transport.Send(domain.MsgGuess, guess) {
		return ErrNotConnected
	}
	return nil
}

// ChooseWord 回复 word_selection，word 必须是候选词之一。
func (s *Session) ChooseWord(word string) error {
	var result error
	if err := s.do(func() { result = s.chooseWord(word) }); err != nil {
		return err
	}
	return result
}

func (s *Session) chooseWord(word string) error {
	if !slices.Contains(s.machine.Snapshot().WordChoices, word) {
		return ErrInvalidWord
	}
	if !s.transport.Send(domain.MsgWordSelection, word) {
		return ErrNotConnected
	}
	s.wordChosen = true
	s.stopWordTimer()
	s.log.WithField("word_length", len(word)).Info("Word chosen")
	return nil
}

// SetReady 发送准备状态。
func (s *Session) SetReady(ready bool) error {
	return s.sendOnLoop(domain.MsgPlayerReady, ready)
}

// StartGame 请求服务端开始游戏。
func (s *Session) StartGame() error {
	return s.sendOnLoop(domain.MsgStartGame, nil)
}

func (s *Session) sendOnLoop(t domain.MessageType, payload any) error {
	var ok bool
	if err := s.do(func() { ok = s.transport.Send(t, payload) }); err != nil {
		return err
	}
	if !ok {
		return ErrNotConnected
	}
	return nil
}

// View 返回当前会话快照。
func (s *Session) View() (View, error) {
	var v View
	err := s.do(func() {
		pixels := s.store.Pixels()
		v = View{
			SessionID: s.id,
			RoomID:    s.cfg.RoomID,
			Joined:    s.joined,
			CanDraw:   s.machine.CanLocalPlayerDraw(),
			Tool:      s.controller.Tool(),
			Color:     s.controller.Color(),
			Grid:      s.cfg.Grid,
			Game:      s.machine.Snapshot(),
			Board:     pixels.BoardState(),
			Pixels:    pixels,
		}
	})
	return v, err
}

// CanvasPNG 导出当前画布。
func (s *Session) CanvasPNG(scale int) ([]byte, error) {
	var buf bytes.Buffer
	var encErr error
	if err := s.do(func() { encErr = s.store.EncodePNG(&buf, scale) }); err != nil {
		return nil, err
	}
	if encErr != nil {
		return nil, encErr
	}
	return buf.Bytes(), nil
}

// Subscribe 在运行中的会话上注册观察者。
func (s *Session) Subscribe(o Observer) (unsubscribe func(), err error) {
	var unCanvas, unGame func()
	err = s.do(func() {
		unCanvas = s.store.Subscribe(o.OnCanvasChange)
		unGame = s.machine.Subscribe(o.OnGameChange)
	})
	if err != nil {
		return nil, err
	}
	return func() {
		_ = s.do(func() {
			unCanvas()
			unGame()
		})
	}, nil
}

// handleEdit 是远端编辑的接收路径，不广播。
func (s *Session) handleEdit(edit domain.PixelEdit) {
	s.store.ApplyRemote(edit)
}

func (s *Session) handleEvent(ev domain.Event) {
	logCtx := s.log.WithField("type", ev.Type())
	switch e := ev.(type) {
	case domain.WelcomeData:
		// 先应用名单/阶段快照，再按顺序回放画布历史
		s.machine.Handle(e)
		s.replayCanvas(e.CanvasState)
		s.joined = true
		logCtx.WithField("edits", len(e.CanvasState)).Info("Welcome snapshot applied")
	case domain.CanvasStateData:
		s.replayCanvas(e.Edits)
		s.joined = true
		logCtx.WithField("edits", len(e.Edits)).Info("Canvas history replayed")
	case domain.CanvasClearedData:
		s.replayCanvas(e.CanvasState)
	case domain.GameStateUpdateData:
		s.machine.Handle(e)
		s.joined = true
	case domain.GameStartedData, domain.WaitingPhaseData, domain.LobbyResetData:
		// 新回合或回到大厅时丢弃画布
		s.machine.Handle(e)
		s.store.Clear()
		s.resetWordSelection()
	case domain.WordSelectionData:
		s.machine.Handle(e)
		s.scheduleAutoPick(e)
	case domain.DrawingPhaseData:
		s.machine.Handle(e)
		s.resetWordSelection()
	default:
		if !s.machine.Handle(e) {
			logCtx.Debug("Unhandled protocol event")
		}
	}
}

func (s *Session) replayCanvas(edits []domain.PixelEdit) {
	s.store.Clear()
	for _, e := range edits {
		s.store.ApplyRemote(e)
	}
}

func (s *Session) resetWordSelection() {
	s.wordChosen = false
	s.stopWordTimer()
}

// scheduleAutoPick 在选词时限将到时自动选择第一个候选词。
// 它只发送消息，阶段仍由服务端事件驱动。
func (s *Session) scheduleAutoPick(d domain.WordSelectionData) {
	if !s.cfg.AutoPickWord || len(d.Choices) == 0 {
		return
	}
	s.stopWordTimer()
	s.wordChosen = false
	delay := time.Duration(float64(d.TimeLimit) * autoPickFraction * float64(time.Second))
	s.wordTimer = time.AfterFunc(delay, func() {
		_ = s.enqueue(func() {
			if s.wordChosen {
				return
			}
			choices := s.machine.Snapshot().WordChoices
			if len(choices) == 0 {
				return
			}
			if err := s.chooseWord(choices[0]); err != nil {
				s.log.WithError(err).Warn("Automatic word pick failed")
			}
		})
	})
}

func (s *Session) stopWordTimer() {
	if s.wordTimer != nil {
		s.wordTimer.Stop()
		s.wordTimer = nil
	}
}

// Package game 维护客户端视角的游戏阶段、玩家名单与计分。
// 状态只由入站协议事件驱动，客户端从不决定阶段。
package game

import (
	"slices"

	"github.com/sirupsen/logrus"

	"pixel-guess/internal/domain"
)

// Change 是每处理一个事件后通知给订阅者的内容。
type Change struct {
	Event         domain.MessageType
	PreviousPhase domain.GamePhase
	State         State
}

// PhaseChanged 报告该事件是否改变了阶段。
func (c Change) PhaseChanged() bool { return c.PreviousPhase != c.State.Phase }

// Machine 是游戏协议状态机。非并发安全，由会话的拥有者 goroutine 调用。
type Machine struct {
	state   State
	subs    map[int]func(Change)
	nextSub int
	log     *logrus.Entry
}

// NewMachine 创建处于 Lobby 阶段的状态机。
// localID 可以为空：在名单中出现同名玩家后自动采用其 id。
func NewMachine(localID, localUsername string, log *logrus.Entry) *Machine {
	if log == nil {
		log = logrus.WithField("component", "game")
	}
	return &Machine{
		state: State{
			Phase:         domain.PhaseLobby,
			MaxRounds:     DefaultMaxRounds,
			LocalPlayerID: localID,
			LocalUsername: localUsername,
		},
		subs: make(map[int]func(Change)),
		log:  log,
	}
}

// Phase 返回当前阶段。
func (m *Machine) Phase() domain.GamePhase { return m.state.Phase }

// Snapshot 返回当前状态的深拷贝。
func (m *Machine) Snapshot() State { return m.state.Clone() }

// LocalPlayer 返回本地玩家在名单中的条目。
func (m *Machine) LocalPlayer() (domain.Player, bool) {
	return m.state.Player(m.state.LocalPlayerID)
}

// IsLocalDrawer 判断本地玩家是否为当前画手。
func (m *Machine) IsLocalDrawer() bool {
	return m.state.LocalPlayerID != "" && m.state.DrawerID == m.state.LocalPlayerID
}

// CanLocalPlayerDraw = phase == Drawing && roster[local].can_draw，每次调用都重新计算。
func (m *Machine) CanLocalPlayerDraw() bool {
	if m.state.Phase != domain.PhaseDrawing {
		return false
	}
	p, ok := m.LocalPlayer()
	return ok && p.CanDraw
}

// Subscribe 注册变化回调，回调同步执行，不得阻塞。
func (m *Machine) Subscribe(fn func(Change)) (unsubscribe func()) {
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	return func() { delete(m.subs, id) }
}

// Handle 应用一个入站事件。返回 false 表示该事件与游戏状态无关 (例如画布事件)。
func (m *Machine) Handle(ev domain.Event) bool {
	prev := m.state.Phase
	switch e := ev.(type) {
	case domain.GameStateUpdateData:
		m.applySnapshot(e)
	case domain.WelcomeData:
		m.applySnapshot(e.GameState)
	case domain.GameStartedData:
		m.onGameStarted(e)
	case domain.WaitingPhaseData:
		m.onWaitingPhase(e)
	case domain.WaitingForWordData:
		m.onWaitingForWord(e)
	case domain.WordSelectionData:
		m.state.WordChoices = slices.Clone(e.Choices)
		m.state.WordTimeLimit = e.TimeLimit
	case domain.DrawingPhaseData:
		m.onDrawingPhase(e)
	case domain.RoundEndData:
		m.onRoundEnd(e)
	case domain.LobbyResetData:
		m.onLobbyReset(e)
	case domain.GameEndedData:
		m.onGameEnded(e)
	case domain.TimerUpdateData:
		m.onTimerUpdate(e)
	case domain.PlayerJoinedData:
		m.onPlayerJoined(e)
	case domain.PlayerLeftData:
		m.onPlayerLeft(e)
	case domain.LobbyUpdateData:
		if i := m.state.indexOfRef(firstNonEmpty(e.PlayerID, e.Username)); i >= 0 {
			m.state.Players[i].IsReady = e.IsReady
		}
	case domain.GuessMessageData:
		m.state.Chat = append(m.state.Chat, e)
		if n := len(m.state.Chat); n > maxChatLines {
			m.state.Chat = slices.Clone(m.state.Chat[n-maxChatLines:])
		}
	case domain.GuessResultData:
		m.onGuessResult(e)
	case domain.DrawingPermissionUpdatedData:
		for i := range m.state.Players {
			m.state.Players[i].CanDraw = m.state.Players[i].ID == e.PlayerID
		}
	default:
		return false
	}

	m.resolveLocal()
	if m.state.Phase != prev {
		m.log.WithFields(logrus.Fields{
			"from":  prev,
			"to":    m.state.Phase,
			"round": m.state.RoundNumber,
			"event": ev.Type(),
		}).Info("Game phase changed")
	}
	m.notify(Change{Event: ev.Type(), PreviousPhase: prev, State: m.state.Clone()})
	return true
}

// applySnapshot 无条件替换阶段、名单、画手、计时、词和猜中集合 (最后一个快照为准)。
func (m *Machine) applySnapshot(d domain.GameStateUpdateData) {
	if phase, err := domain.ParsePhase(string(d.Phase)); err == nil {
		m.state.Phase = phase
	} else {
		m.log.WithError(err).Warn("Snapshot carries unknown phase, keeping current phase")
	}
	m.state.RoundNumber = d.RoundNumber
	if d.MaxRounds > 0 {
		m.state.MaxRounds = d.MaxRounds
	}
	m.state.DrawerID = ""
	if d.CurrentDrawer != nil {
		m.state.DrawerID = d.CurrentDrawer.ID
	}
	m.state.TimeRemaining = d.TimeRemaining
	m.state.Players = slices.Clone(d.Players)
	m.state.CorrectGuessers = dedupGuesses(d.CorrectGuessers)
	m.state.Word = d.Word
	m.state.WordChoices = nil
	m.state.GameOver = m.state.Phase == domain.PhaseEnded
	m.normalizePermissions()
}

func (m *Machine) onGameStarted(d domain.GameStartedData) {
	m.state.Phase = domain.PhaseWaiting
	m.state.RoundNumber = 1
	if d.MaxRounds > 0 {
		m.state.MaxRounds = d.MaxRounds
	}
	m.state.Players = slices.Clone(d.Players)
	m.state.DrawerID = ""
	m.state.Word = ""
	m.state.WordChoices = nil
	m.state.CorrectGuessers = nil
	m.state.GameOver = false
	m.state.LastRound = nil
	m.state.Results = nil
	m.clearPermissions()
}

func (m *Machine) onWaitingPhase(d domain.WaitingPhaseData) {
	round := d.RoundNumber
	if round <= 0 {
		round = m.state.RoundNumber + 1
	}
	if m.state.Phase != domain.PhaseWaiting && round != m.state.RoundNumber+1 {
		m.log.WithFields(logrus.Fields{"previous": m.state.RoundNumber, "round": round}).Warn("Unexpected round number from server")
	}
	if m.state.MaxRounds > 0 && round > m.state.MaxRounds {
		m.log.WithFields(logrus.Fields{"round": round, "max_rounds": m.state.MaxRounds}).Warn("Round number exceeds max rounds")
	}

	m.state.Phase = domain.PhaseWaiting
	m.state.RoundNumber = round
	m.state.DrawerID = d.CurrentDrawer.ID
	if m.state.DrawerID == "" {
		if i := m.state.indexOfRef(d.CurrentDrawer.Username); i >= 0 {
			m.state.DrawerID = m.state.Players[i].ID
		}
	}
	m.state.TimeRemaining = d.TimeRemaining
	m.state.CorrectGuessers = nil
	m.state.Word = ""
	m.state.WordChoices = nil
	for i := range m.state.Players {
		m.state.Players[i].CanDraw = false
		m.state.Players[i].HasGuessed = false
	}
}

func (m *Machine) onWaitingForWord(d domain.WaitingForWordData) {
	if i := m.state.indexOfRef(d.CurrentDrawer); i >= 0 {
		m.state.DrawerID = m.state.Players[i].ID
	}
	m.state.TimeRemaining = d.TimeRemaining
}

func (m *Machine) onDrawingPhase(d domain.DrawingPhaseData) {
	m.state.Phase = domain.PhaseDrawing
	if d.CurrentDrawer != nil && d.CurrentDrawer.ID != "" {
		m.state.DrawerID = d.CurrentDrawer.ID
	}
	m.state.Word = d.MaskedWord
	if d.CurrentWord != "" {
		m.state.Word = d.CurrentWord
	}
	if d.TimeRemaining > 0 {
		m.state.TimeRemaining = d.TimeRemaining
	}
	m.state.WordChoices = nil
	for i := range m.state.Players {
		m.state.Players[i].CanDraw = m.state.DrawerID != "" && m.state.Players[i].ID == m.state.DrawerID
	}
}

func (m *Machine) onRoundEnd(d domain.RoundEndData) {
	m.state.Phase = domain.PhaseRevealing
	m.state.Word = d.Word
	for _, fs := range d.FinalScores {
		if i := m.state.indexOf(fs.ID); i >= 0 {
			m.state.Players[i].Score = fs.Score
		}
	}
	m.state.CorrectGuessers = dedupGuesses(append(m.state.CorrectGuessers, d.CorrectGuessers...))
	m.state.GameOver = d.IsGameEnded
	round := d
	m.state.LastRound = &round
	m.clearPermissions()
}

func (m *Machine) onLobbyReset(d domain.LobbyResetData) {
	phase, err := domain.ParsePhase(string(d.Phase))
	if err != nil {
		phase = domain.PhaseLobby
	}
	m.state.Phase = phase
	m.state.Players = slices.Clone(d.Players)
	m.state.DrawerID = ""
	if d.CurrentDrawer != nil {
		m.state.DrawerID = d.CurrentDrawer.ID
	}
	m.state.RoundNumber = d.RoundNumber
	if d.MaxRounds > 0 {
		m.state.MaxRounds = d.MaxRounds
	}
	m.state.CorrectGuessers = dedupGuesses(d.CorrectGuessers)
	m.state.Word = ""
	m.state.WordChoices = nil
	m.state.TimeRemaining = 0
	m.state.GameOver = false
	m.state.LastRound = nil
	m.state.Results = nil
	m.normalizePermissions()
}

func (m *Machine) onGameEnded(d domain.GameEndedData) {
	m.state.Phase = domain.PhaseEnded
	m.state.DrawerID = ""
	m.state.Word = ""
	m.state.WordChoices = nil
	m.state.TimeRemaining = 0
	m.state.TimerActive = false
	m.state.GameOver = true
	res := d
	m.state.Results = &res
	m.clearPermissions()
}

// onTimerUpdate 只更新剩余时间，计时器从不改变阶段。
func (m *Machine) onTimerUpdate(d domain.TimerUpdateData) {
	m.state.TimeRemaining = d.TimeRemaining
	m.state.TimerActive = d.IsActive
	if d.Phase != "" && d.Phase != m.state.Phase {
		m.log.WithFields(logrus.Fields{"local": m.state.Phase, "timer": d.Phase}).Debug("Timer update reports a different phase, ignoring")
	}
}

func (m *Machine) onPlayerJoined(d domain.PlayerJoinedData) {
	p := d.PlayerData
	if p.ID == "" {
		m.log.Warn("player_joined without player id, ignoring")
		return
	}
	if i := m.state.indexOf(p.ID); i >= 0 {
		m.state.Players[i] = p
		return
	}
	m.state.Players = append(m.state.Players, p)
}

func (m *Machine) onPlayerLeft(d domain.PlayerLeftData) {
	i := m.state.indexOfRef(firstNonEmpty(d.PlayerID, d.Username))
	if i < 0 {
		return
	}
	id := m.state.Players[i].ID
	m.state.Players = slices.Delete(m.state.Players, i, i+1)
	m.state.CorrectGuessers = slices.DeleteFunc(m.state.CorrectGuessers, func(g domain.PlayerGuess) bool { return g.PlayerID == id })
	if m.state.DrawerID == id {
		m.state.DrawerID = ""
	}
}

// onGuessResult 更新分数；猜中时每个玩家每回合至多记录一次。
func (m *Machine) onGuessResult(d domain.GuessResultData) {
	i := m.state.indexOf(d.PlayerID)
	if i >= 0 {
		m.state.Players[i].Score = d.Score
		if d.IsCorrect {
			m.state.Players[i].HasGuessed = true
		}
	}
	if !d.IsCorrect || d.PlayerID == "" || m.state.HasCorrectGuess(d.PlayerID) {
		return
	}
	m.state.CorrectGuessers = append(m.state.CorrectGuessers, domain.PlayerGuess{
		PlayerID:  d.PlayerID,
		Username:  d.Username,
		GuessTime: d.TimeToGuessMs,
		IsCorrect: true,
	})
}

// normalizePermissions 保证 can_draw 只在 Drawing 阶段且至多一人为 true。
func (m *Machine) normalizePermissions() {
	if m.state.Phase != domain.PhaseDrawing {
		m.clearPermissions()
		return
	}
	count := 0
	for _, p := range m.state.Players {
		if p.CanDraw {
			count++
		}
	}
	if count <= 1 {
		return
	}
	m.log.WithField("count", count).Warn("Snapshot grants drawing to several players, keeping only the current drawer")
	for i := range m.state.Players {
		m.state.Players[i].CanDraw = m.state.DrawerID != "" && m.state.Players[i].ID == m.state.DrawerID
	}
}

func (m *Machine) clearPermissions() {
	for i := range m.state.Players {
		m.state.Players[i].CanDraw = false
	}
}

// resolveLocal 在只知道用户名时，从名单中采用本地玩家的 id。
func (m *Machine) resolveLocal() {
	if m.state.LocalPlayerID != "" || m.state.LocalUsername == "" {
		return
	}
	for _, p := range m.state.Players {
		if p.Username == m.state.LocalUsername {
			m.state.LocalPlayerID = p.ID
			m.log.WithField("player_id", p.ID).Info("Resolved local player id from roster")
			return
		}
	}
}

func (m *Machine) notify(c Change) {
	for _, fn := range m.subs {
		fn(c)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

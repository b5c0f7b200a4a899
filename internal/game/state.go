package game

import (
	"slices"

	"pixel-guess/internal/domain"
)

// DefaultMaxRounds 在服务端未给出最大回合数时使用
const DefaultMaxRounds = 3

// maxChatLines 聊天记录最多保留的条数
const maxChatLines = 100

// State 是状态机的可观察快照。
type State struct {
	Phase         domain.GamePhase `json:"phase"`
	RoundNumber   int              `json:"round_number"`
	MaxRounds     int              `json:"max_rounds"`
	DrawerID      string           `json:"drawer_id,omitempty"`
	Word          string           `json:"word"`
	WordChoices   []string         `json:"word_choices,omitempty"`
	WordTimeLimit int64            `json:"word_time_limit,omitempty"`
	TimeRemaining int64            `json:"time_remaining"`
	TimerActive   bool             `json:"timer_active"`
	GameOver      bool             `json:"game_over"`

	Players         []domain.Player           `json:"players"`
	CorrectGuessers []domain.PlayerGuess      `json:"correct_guessers"`
	Chat            []domain.GuessMessageData `json:"chat,omitempty"`
	LastRound       *domain.RoundEndData      `json:"last_round,omitempty"`
	Results         *domain.GameEndedData     `json:"results,omitempty"`

	LocalPlayerID string `json:"local_player_id,omitempty"`
	LocalUsername string `json:"local_username"`
}

// Clone 返回深拷贝，切片互不共享。
func (s State) Clone() State {
	out := s
	out.WordChoices = slices.Clone(s.WordChoices)
	out.Players = slices.Clone(s.Players)
	out.CorrectGuessers = slices.Clone(s.CorrectGuessers)
	out.Chat = slices.Clone(s.Chat)
	if s.LastRound != nil {
		lr := *s.LastRound
		out.LastRound = &lr
	}
	if s.Results != nil {
		res := *s.Results
		out.Results = &res
	}
	return out
}

// Player 按 id 查找玩家。
func (s State) Player(id string) (domain.Player, bool) {
	if i := s.indexOf(id); i >= 0 {
		return s.Players[i], true
	}
	return domain.Player{}, false
}

// Drawer 返回当前画手。
func (s State) Drawer() (domain.Player, bool) {
	if s.DrawerID == "" {
		return domain.Player{}, false
	}
	return s.Player(s.DrawerID)
}

// HasCorrectGuess 判断玩家本回合是否已猜中。
func (s State) HasCorrectGuess(id string) bool {
	return slices.ContainsFunc(s.CorrectGuessers, func(g domain.PlayerGuess) bool { return g.PlayerID == id })
}

func (s State) indexOf(id string) int {
	if id == "" {
		return -1
	}
	return slices.IndexFunc(s.Players, func(p domain.Player) bool { return p.ID == id })
}

// indexOfRef 按 id 或用户名查找，用于服务端只给出其一的消息。
func (s State) indexOfRef(ref string) int {
	if ref == "" {
		return -1
	}
	if i := s.indexOf(ref); i >= 0 {
		return i
	}
	return slices.IndexFunc(s.Players, func(p domain.Player) bool { return p.Username == ref })
}

// dedupGuesses 按 PlayerID 去重，保留首次出现的顺序。
func dedupGuesses(in []domain.PlayerGuess) []domain.PlayerGuess {
	out := make([]domain.PlayerGuess, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, g := range in {
		if _, ok := seen[g.PlayerID]; ok {
			continue
		}
		seen[g.PlayerID] = struct{}{}
		out = append(out, g)
	}
	return out
}

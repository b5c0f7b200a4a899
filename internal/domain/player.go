package domain

import (
	"errors"
	"fmt"
	"time"
)

// Player 表示房间中的一个玩家。
type Player struct {
	ID             string    `json:"id"`
	Username       string    `json:"username"`
	Score          int       `json:"score"`
	CanvasWidth    int       `json:"canvas_width"`
	CanvasHeight   int       `json:"canvas_height"`
	IsReady        bool      `json:"is_ready"`
	HasGuessed     bool      `json:"has_guessed"`
	LastGuessTime  time.Time `json:"last_guess_time"`
	IsConnected    bool      `json:"is_connected"`
	JoinedAt       time.Time `json:"joined_at"`
	CanDraw        bool      `json:"can_draw"`
	TotalGuesses   int       `json:"total_guesses"`
	CorrectGuesses int       `json:"correct_guesses"`
	TimesDrawn     int       `json:"times_drawn"`
}

// PlayerRef 是部分消息中只包含 id 和用户名的玩家引用。
type PlayerRef struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// GamePhase 是回合生命周期的阶段。
type GamePhase string

const (
	PhaseLobby     GamePhase = "lobby"
	PhaseWaiting   GamePhase = "waiting"
	PhaseDrawing   GamePhase = "drawing"
	PhaseRevealing GamePhase = "revealing"
	PhaseEnded     GamePhase = "ending"
)

var ErrUnknownPhase = errors.New("unknown game phase")

// ParsePhase 校验服务端下发的阶段字符串。
func ParsePhase(s string) (GamePhase, error) {
	p := GamePhase(s)
	switch p {
	case PhaseLobby, PhaseWaiting, PhaseDrawing, PhaseRevealing, PhaseEnded:
		return p, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPhase, s)
}

// PlayerGuess 记录一次猜词，正确猜中集合按 PlayerID 去重。
type PlayerGuess struct {
	PlayerID  string `json:"player_id"`
	Username  string `json:"username"`
	GuessTime int64  `json:"guess_time"` // 毫秒
	IsCorrect bool   `json:"is_correct"`
}

// GameResultData 同时用于 guess_result 和排行榜条目。
type GameResultData struct {
	PlayerID      string `json:"player_id"`
	Username      string `json:"username"`
	IsCorrect     bool   `json:"is_correct"`
	Score         int    `json:"score"`
	Position      int    `json:"position"`
	TimeToGuessMs int64  `json:"time_to_guess_ms"`
}

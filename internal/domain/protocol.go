package domain

import "encoding/json"

// MessageType 是信封 {type, data} 中的 type。
type MessageType string

const (
	// 出站
	MsgPixelDraw   MessageType = "pixel_draw"
	MsgGuess       MessageType = "guess_message"
	MsgPlayerReady MessageType = "player_ready"
	MsgStartGame   MessageType = "start_game"
	MsgClearCanvas MessageType = "clear_canvas"

	// 入站 (word_selection 和 guess_message 双向使用)
	MsgPlayerJoined             MessageType = "player_joined"
	MsgPlayerLeft               MessageType = "player_left"
	MsgLobbyUpdate              MessageType = "lobby_update"
	MsgLobbyReset               MessageType = "lobby_reset"
	MsgGameStarted              MessageType = "game_started"
	MsgWaitingPhase             MessageType = "waiting_phase"
	MsgWaitingForWord           MessageType = "waiting_for_word"
	MsgWordSelection            MessageType = "word_selection"
	MsgDrawingPhase             MessageType = "drawing_phase"
	MsgRoundEnd                 MessageType = "round_end"
	MsgGameEnded                MessageType = "game_ended"
	MsgTimerUpdate              MessageType = "timer_update"
	MsgGuessResult              MessageType = "guess_result"
	MsgCanvasCleared            MessageType = "canvas_cleared"
	MsgDrawingPermissionUpdated MessageType = "drawing_permission_updated"
	MsgGameStateUpdate          MessageType = "game_state_update"
	MsgWelcome                  MessageType = "welcome_msg"

	// MsgCanvasState 不在线上出现：服务端在加入时直接发送裸 JSON 数组形式的画布历史。
	MsgCanvasState MessageType = "canvas_state"
)

// Envelope 是所有消息的外层结构。
type Envelope struct {
	Type MessageType     `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Event 是解码后的入站协议事件。
type Event interface {
	Type() MessageType
}

type PlayerJoinedData struct {
	Message    string `json:"message"`
	PlayerData Player `json:"player_data"`
}

type PlayerLeftData struct {
	Message  string `json:"message"`
	PlayerID string `json:"player_id"`
	Username string `json:"username"`
}

type LobbyUpdateData struct {
	PlayerID     string `json:"player_id"`
	Username     string `json:"username"`
	IsReady      bool   `json:"is_ready"`
	ReadyCount   int    `json:"ready_count"`
	TotalPlayers int    `json:"total_players"`
}

type GameStartedData struct {
	Message      string   `json:"message"`
	RoomID       string   `json:"room_id"`
	Players      []Player `json:"players"`
	PlayersCount int      `json:"players_count"`
	MaxRounds    int      `json:"max_rounds,omitempty"`
}

type LobbyResetData struct {
	Message         string        `json:"message"`
	RoomID          string        `json:"room_id"`
	Timestamp       int64         `json:"timestamp"`
	Players         []Player      `json:"players"`
	Phase           GamePhase     `json:"phase"`
	CurrentDrawer   *Player       `json:"current_drawer"`
	RoundNumber     int           `json:"round_number"`
	MaxRounds       int           `json:"max_rounds"`
	CorrectGuessers []PlayerGuess `json:"correct_guessers"`
}

type WaitingPhaseData struct {
	Message       string    `json:"message"`
	RoomID        string    `json:"room_id"`
	CurrentDrawer PlayerRef `json:"current_drawer"`
	Phase         GamePhase `json:"phase"`
	TimeRemaining int64     `json:"time_remaining"`
	RoundNumber   int       `json:"round_number"`
}

type WaitingForWordData struct {
	Message string `json:"message"`
	// 服务端可能发送用户名或 id，按两者匹配
	CurrentDrawer string `json:"current_drawer"`
	TimeRemaining int64  `json:"time_remaining"`
}

type WordSelectionData struct {
	Message   string   `json:"message"`
	RoomID    string   `json:"room_id"`
	Choices   []string `json:"choices"`
	TimeLimit int64    `json:"time_limit"`
}

type DrawingPhaseData struct {
	RoomID     string `json:"room_id"`
	MaskedWord string `json:"masked_word"`
	// 以下字段只出现在发给画手的私有副本中
	CurrentWord   string     `json:"current_word,omitempty"`
	CurrentDrawer *PlayerRef `json:"current_drawer,omitempty"`
	TimeRemaining int64      `json:"time_remaining,omitempty"`
}

type RoundEndData struct {
	Word            string        `json:"word"`
	DrawerID        string        `json:"drawer_id"`
	CorrectGuessers []PlayerGuess `json:"correct_guessers"`
	DrawerUsername  string        `json:"drawer_username"`
	NextDrawer      *Player       `json:"next_drawer"` // 最后一回合为 null
	FinalScores     []Player      `json:"final_scores"`
	IsGameEnded     bool          `json:"is_game_ended"`
}

type GameEndedData struct {
	Leaderboard  []GameResultData `json:"leaderboard"`
	MVP          *GameResultData  `json:"mvp"`
	FastestGuess *GameResultData  `json:"fastest_guess"`
	MostAccurate *GameResultData  `json:"most_accurate"`
	RoundsPlayed int              `json:"rounds_played"`
	TotalPlayers int              `json:"total_players"`
}

type TimerUpdateData struct {
	TimeRemaining int64     `json:"time_remaining"`
	Phase         GamePhase `json:"phase"`
	IsActive      bool      `json:"is_active"`
}

type GuessMessageData struct {
	PlayerGuess PlayerGuess `json:"player_guess"`
	GuessedWord string      `json:"guessed_word"`
}

// UnmarshalJSON 同时接受 {player_guess, guessed_word} 和服务端直接广播的 PlayerGuess。
func (d *GuessMessageData) UnmarshalJSON(data []byte) error {
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(data, &keys); err != nil {
		return err
	}
	if _, wrapped := keys["player_guess"]; wrapped {
		type plain GuessMessageData
		return json.Unmarshal(data, (*plain)(d))
	}
	*d = GuessMessageData{}
	return json.Unmarshal(data, &d.PlayerGuess)
}

// GuessResultData 与 GameResultData 同形。
type GuessResultData GameResultData

type CanvasClearedData struct {
	RoomID      string   `json:"room_id"`
	PlayerID    string   `json:"player_id"`
	CanvasState EditList `json:"canvas_state"`
	Timestamp   int64    `json:"timestamp"`
}

type DrawingPermissionUpdatedData struct {
	RoomID   string `json:"room_id"`
	PlayerID string `json:"player_id"`
	Message  string `json:"message"`
}

// GameStateUpdateData 是完整的权威快照。
type GameStateUpdateData struct {
	Phase           GamePhase     `json:"phase"`
	RoundNumber     int           `json:"round_number"`
	MaxRounds       int           `json:"max_rounds"`
	CurrentDrawer   *Player       `json:"current_drawer"`
	TimeRemaining   int64         `json:"time_remaining"`
	Players         []Player      `json:"players"`
	CorrectGuessers []PlayerGuess `json:"correct_guessers"`
	Word            string        `json:"word"`
}

// WelcomeData 是加入时的快照加有序画布历史。
type WelcomeData struct {
	GameState   GameStateUpdateData `json:"game_state"`
	CanvasState EditList            `json:"canvas_state"`
}

// CanvasStateData 承载裸数组形式的画布历史。
type CanvasStateData struct {
	Edits EditList
}

func (PlayerJoinedData) Type() MessageType             { return MsgPlayerJoined }
func (PlayerLeftData) Type() MessageType               { return MsgPlayerLeft }
func (LobbyUpdateData) Type() MessageType              { return MsgLobbyUpdate }
func (GameStartedData) Type() MessageType              { return MsgGameStarted }
func (LobbyResetData) Type() MessageType               { return MsgLobbyReset }
func (WaitingPhaseData) Type() MessageType             { return MsgWaitingPhase }
func (WaitingForWordData) Type() MessageType           { return MsgWaitingForWord }
func (WordSelectionData) Type() MessageType            { return MsgWordSelection }
func (DrawingPhaseData) Type() MessageType             { return MsgDrawingPhase }
func (RoundEndData) Type() MessageType                 { return MsgRoundEnd }
func (GameEndedData) Type() MessageType                { return MsgGameEnded }
func (TimerUpdateData) Type() MessageType              { return MsgTimerUpdate }
func (GuessMessageData) Type() MessageType             { return MsgGuess }
func (GuessResultData) Type() MessageType              { return MsgGuessResult }
func (CanvasClearedData) Type() MessageType            { return MsgCanvasCleared }
func (DrawingPermissionUpdatedData) Type() MessageType { return MsgDrawingPermissionUpdated }
func (GameStateUpdateData) Type() MessageType          { return MsgGameStateUpdate }
func (WelcomeData) Type() MessageType                  { return MsgWelcome }
func (CanvasStateData) Type() MessageType              { return MsgCanvasState }

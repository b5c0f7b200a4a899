package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// GameRecord 是一局结束后归档的结果摘要 (只保存结果，不保存画布历史)。
type GameRecord struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	SessionID    string    `gorm:"size:64;uniqueIndex:idx_session_finished;not null" json:"session_id"` // 本地会话 ID
	RoomID       string    `gorm:"size:191;index;not null" json:"room_id"`                               // 游戏服务器房间 ID
	RoundsPlayed int       `gorm:"not null" json:"rounds_played"`
	TotalPlayers int       `gorm:"not null" json:"total_players"`
	MVPUsername  string    `gorm:"size:191" json:"mvp_username"`
	Leaderboard  string    `gorm:"type:text;not null" json:"leaderboard"` // JSON 格式的排行榜
	FinishedAt   time.Time `gorm:"uniqueIndex:idx_session_finished;index;not null" json:"finished_at"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// NewGameRecord 由 game_ended 载荷构造归档记录。
func NewGameRecord(sessionID, roomID string, data GameEndedData, finishedAt time.Time) (GameRecord, error) {
	rec := GameRecord{
		SessionID:    sessionID,
		RoomID:       roomID,
		RoundsPlayed: data.RoundsPlayed,
		TotalPlayers: data.TotalPlayers,
		FinishedAt:   finishedAt,
	}
	if data.MVP != nil {
		rec.MVPUsername = data.MVP.Username
	}
	if err := rec.SetLeaderboard(data.Leaderboard); err != nil {
		return GameRecord{}, err
	}
	return rec, nil
}

// ParseLeaderboard 将 Leaderboard 字段解析为结构体切片。
func (r *GameRecord) ParseLeaderboard() ([]GameResultData, error) {
	if r.Leaderboard == "" || r.Leaderboard == "null" {
		return nil, nil
	}
	var out []GameResultData
	if err := json.Unmarshal([]byte(r.Leaderboard), &out); err != nil {
		return nil, fmt.Errorf("failed to unmarshal leaderboard: %w", err)
	}
	return out, nil
}

// SetLeaderboard 序列化排行榜并写入 Leaderboard 字段。
func (r *GameRecord) SetLeaderboard(entries []GameResultData) error {
	if entries == nil {
		entries = []GameResultData{}
	}
	bytes, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("failed to marshal leaderboard: %w", err)
	}
	r.Leaderboard = string(bytes)
	return nil
}

package transport

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"pixel-guess/internal/domain"
)

var (
	ErrMalformedMessage = errors.New("malformed message")
	ErrUnknownType      = errors.New("unknown message type")
)

// Inbound 是解码后的入站消息，Edit 和 Event 恰有一个非空。
type Inbound struct {
	Edit  *domain.PixelEdit
	Event domain.Event
}

// Encode 将载荷包装为 {type, data} 信封。payload 为 nil 时省略 data。
func Encode(msgType domain.MessageType, payload any) ([]byte, error) {
	env := struct {
		Type domain.MessageType `json:"type"`
		Data any                `json:"data,omitempty"`
	}{Type: msgType, Data: payload}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", msgType, err)
	}
	return data, nil
}

// Decode 解析一条入站消息。
// 画布编辑既可能以 pixel_draw 包装，也可能直接以编辑标签作为 type (服务端转发时)；
// 顶层 JSON 数组被视为加入时的画布历史。
func Decode(raw []byte) (Inbound, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return Inbound{}, fmt.Errorf("%w: empty payload", ErrMalformedMessage)
	}
	if trimmed[0] == '[' {
		var edits domain.EditList
		if err := json.Unmarshal(trimmed, &edits); err != nil {
			return Inbound{}, fmt.Errorf("%w: canvas state: %v", ErrMalformedMessage, err)
		}
		return Inbound{Event: domain.CanvasStateData{Edits: edits}}, nil
	}

	var env domain.Envelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return Inbound{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if env.Type == "" {
		return Inbound{}, fmt.Errorf("%w: missing type", ErrMalformedMessage)
	}

	if env.Type == domain.MsgPixelDraw || domain.EditKind(env.Type).Valid() {
		var edit domain.PixelEdit
		if err := json.Unmarshal(env.Data, &edit); err != nil {
			return Inbound{}, fmt.Errorf("%w: %s: %v", ErrMalformedMessage, env.Type, err)
		}
		return Inbound{Edit: &edit}, nil
	}

	ev, err := decodeEvent(env.Type, env.Data)
	if err != nil {
		return Inbound{}, err
	}
	return Inbound{Event: ev}, nil
}

// decodeEvent 是对协议消息类型的封闭分发。
func decodeEvent(t domain.MessageType, data json.RawMessage) (domain.Event, error) {
	switch t {
	case domain.MsgPlayerJoined:
		return decodeAs[domain.PlayerJoinedData](t, data)
	case domain.MsgPlayerLeft:
		return decodeAs[domain.PlayerLeftData](t, data)
	case domain.MsgLobbyUpdate:
		return decodeAs[domain.LobbyUpdateData](t, data)
	case domain.MsgLobbyReset:
		return decodeAs[domain.LobbyResetData](t, data)
	case domain.MsgGameStarted:
		return decodeAs[domain.GameStartedData](t, data)
	case domain.MsgWaitingPhase:
		return decodeAs[domain.WaitingPhaseData](t, data)
	case domain.MsgWaitingForWord:
		return decodeAs[domain.WaitingForWordData](t, data)
	case domain.MsgWordSelection:
		return decodeAs[domain.WordSelectionData](t, data)
	case domain.MsgDrawingPhase:
		return decodeAs[domain.DrawingPhaseData](t, data)
	case domain.MsgRoundEnd:
		return decodeAs[domain.RoundEndData](t, data)
	case domain.MsgGameEnded:
		return decodeAs[domain.GameEndedData](t, data)
	case domain.MsgTimerUpdate:
		return decodeAs[domain.TimerUpdateData](t, data)
	case domain.MsgGuess:
		return decodeAs[domain.GuessMessageData](t, data)
	case domain.MsgGuessResult:
		return decodeAs[domain.GuessResultData](t, data)
	case domain.MsgCanvasCleared:
		return decodeAs[domain.CanvasClearedData](t, data)
	case domain.MsgDrawingPermissionUpdated:
		return decodeAs[domain.DrawingPermissionUpdatedData](t, data)
	case domain.MsgGameStateUpdate:
		return decodeAs[domain.GameStateUpdateData](t, data)
	case domain.MsgWelcome:
		return decodeAs[domain.WelcomeData](t, data)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownType, t)
}

func decodeAs[T domain.Event](t domain.MessageType, data json.RawMessage) (domain.Event, error) {
	var v T
	if len(data) > 0 {
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformedMessage, t, err)
		}
	}
	return v, nil
}

package bootstrap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pixel-guess/internal/canvas"
	"pixel-guess/internal/domain"
)

// clearEnv 把所有配置项置空，避免宿主环境干扰
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"SERVER_URL", "ROOM_ID", "PLAYER_NAME", "PLAYER_ID", "GRID_CELL_SIZE", "GRID_WIDTH", "GRID_HEIGHT",
		"LOG_LEVEL", "APP_ENV", "INSPECT_PORT", "CORS_ALLOWED_ORIGIN", "INSPECT_RATE_LIMIT",
		"REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB", "REDIS_KEY_PREFIX",
		"DB_USER", "DB_PASSWORD", "DB_HOST", "DB_PORT", "DB_NAME",
		"GUESS_RATE", "GUESS_BURST", "AUTO_PICK_WORD",
		"CANVAS_BACKGROUND", "CANVAS_GRID_COLOR", "CANVAS_SHOW_GRID",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("ROOM_ID", "room-1")
	t.Setenv("PLAYER_NAME", "alice")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "ws://localhost:8080", cfg.ServerURL)
	assert.Equal(t, domain.DefaultGridConfig(), cfg.Grid)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "development", cfg.AppEnv)
	assert.Equal(t, "pg:", cfg.KeyPrefix)
	assert.Equal(t, 1.0, cfg.GuessRate)
	assert.Equal(t, 3, cfg.GuessBurst)
	assert.False(t, cfg.AutoPickWord)
	assert.False(t, cfg.RedisEnabled(), "未配置 REDIS_ADDR 时不启用读模型")
	assert.False(t, cfg.ArchiveEnabled())
	assert.Equal(t, domain.White, cfg.CanvasBackground)
	assert.True(t, cfg.CanvasShowGrid)
}

func TestLoadConfig_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("ROOM_ID", "room-1")
	t.Setenv("PLAYER_NAME", "alice")
	t.Setenv("GRID_CELL_SIZE", "10")
	t.Setenv("GRID_WIDTH", "40")
	t.Setenv("GRID_HEIGHT", "30")
	t.Setenv("LOG_LEVEL", "verbose")
	t.Setenv("REDIS_ADDR", "127.0.0.1:6379")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("DB_USER", "pg")
	t.Setenv("AUTO_PICK_WORD", "true")
	t.Setenv("GUESS_RATE", "0.5")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 400, cfg.Grid.CanvasWidth)
	assert.Equal(t, 300, cfg.Grid.CanvasHeight)
	assert.Equal(t, "info", cfg.LogLevel, "非法日志级别回退为 info")
	assert.Equal(t, 2, cfg.RedisDB)
	assert.True(t, cfg.AutoPickWord)
	assert.Equal(t, 0.5, cfg.GuessRate)
	assert.True(t, cfg.ArchiveEnabled())
}

func TestLoadConfig_Errors(t *testing.T) {
	cases := map[string]map[string]string{
		"missing room":   {"PLAYER_NAME": "alice"},
		"missing player": {"ROOM_ID": "r"},
		"bad grid":       {"ROOM_ID": "r", "PLAYER_NAME": "alice", "GRID_WIDTH": "0"},
		"bad int":        {"ROOM_ID": "r", "PLAYER_NAME": "alice", "REDIS_DB": "two"},
		"bad bool":       {"ROOM_ID": "r", "PLAYER_NAME": "alice", "AUTO_PICK_WORD": "maybe"},
		"bad scheme":     {"ROOM_ID": "r", "PLAYER_NAME": "alice", "SERVER_URL": "ftp://host"},
		"zero burst":     {"ROOM_ID": "r", "PLAYER_NAME": "alice", "GUESS_BURST": "0"},
		"bad color":      {"ROOM_ID": "r", "PLAYER_NAME": "alice", "CANVAS_BACKGROUND": "not-a-color"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := LoadConfig()
			assert.Error(t, err)
		})
	}
}

func TestJoinURL(t *testing.T) {
	cfg := &Config{
		ServerURL:  "https://game.example.com/base",
		RoomID:     "room 1",
		PlayerName: "alice & bob",
		Grid:       domain.DefaultGridConfig(),
	}
	got, err := JoinURL(cfg)
	require.NoError(t, err)
	assert.Equal(t, "wss://game.example.com/base/ws/room%201?h=500&username=alice+%26+bob&w=700", got)

	cfg.ServerURL = "ws://localhost:8080"
	cfg.RoomID = "abc"
	got, err = JoinURL(cfg)
	require.NoError(t, err)
	assert.Equal(t, "ws://localhost:8080/ws/abc?h=500&username=alice+%26+bob&w=700", got)
}

func TestConfig_CanvasOptions(t *testing.T) {
	clearEnv(t)
	t.Setenv("ROOM_ID", "room-1")
	t.Setenv("PLAYER_NAME", "alice")
	t.Setenv("CANVAS_BACKGROUND", "black")
	t.Setenv("CANVAS_SHOW_GRID", "false")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, domain.Black, cfg.CanvasBackground)

	store, err := canvas.NewStore(cfg.Grid, cfg.CanvasOptions()...)
	require.NoError(t, err)
	r, g, b, _ := store.Surface().At(0, 0).RGBA()
	assert.Zero(t, r+g+b, "关闭网格后角落像素应为背景色")
}

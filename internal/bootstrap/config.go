package bootstrap

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"pixel-guess/internal/canvas"
	"pixel-guess/internal/domain"
	"pixel-guess/internal/infra/setup"
)

// Config 结构体用于存储从环境变量或文件加载的配置
type Config struct {
	// 游戏服务器与身份
	ServerURL  string
	RoomID     string
	PlayerName string
	PlayerID   string // 可为空，加入后按用户名从名单解析
	Grid       domain.GridConfig

	// 会话行为
	GuessRate    float64
	GuessBurst   int
	AutoPickWord bool

	// 本地栅格外观，只影响 PNG 导出
	CanvasBackground domain.Color
	CanvasGridColor  domain.Color
	CanvasShowGrid   bool

	// 本地检查接口
	InspectPort       string // 为空时不启动
	CORSAllowedOrigin string
	InspectRateLimit  int // 每客户端每秒请求数

	// 可选基础设施：RedisAddr 为空时不镜像读模型；DBUser 为空时不归档
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	KeyPrefix     string
	DBUser        string
	DBPassword    string
	DBHost        string
	DBPort        string
	DBName        string

	LogLevel string
	AppEnv   string // development/production
}

// RedisEnabled 报告是否配置了 Redis
func (c *Config) RedisEnabled() bool { return c.RedisAddr != "" }

// ArchiveEnabled 报告是否同时配置了 Redis (任务队列) 和数据库 (存档)
func (c *Config) ArchiveEnabled() bool { return c.RedisEnabled() && c.DBUser != "" }

// MySQL 返回数据库连接参数
func (c *Config) MySQL() setup.MySQLOptions {
	return setup.MySQLOptions{User: c.DBUser, Password: c.DBPassword, Host: c.DBHost, Port: c.DBPort, Name: c.DBName}
}

// CanvasOptions 把外观配置转换为画布选项
func (c *Config) CanvasOptions() []canvas.Option {
	opts := []canvas.Option{
		canvas.WithBackground(c.CanvasBackground),
		canvas.WithGridColor(c.CanvasGridColor),
	}
	if !c.CanvasShowGrid {
		opts = append(opts, canvas.WithoutGrid())
	}
	return opts
}

// LoadConfig 从环境变量加载配置
func LoadConfig() (*Config, error) {
	// 优先加载 .env 文件 (如果存在)
	_ = godotenv.Load() // 忽略错误，允许只使用环境变量

	cfg := &Config{
		ServerURL:         os.Getenv("SERVER_URL"),
		RoomID:            os.Getenv("ROOM_ID"),
		PlayerName:        os.Getenv("PLAYER_NAME"),
		PlayerID:          os.Getenv("PLAYER_ID"),
		InspectPort:       os.Getenv("INSPECT_PORT"),
		CORSAllowedOrigin: os.Getenv("CORS_ALLOWED_ORIGIN"),
		RedisAddr:         os.Getenv("REDIS_ADDR"),
		RedisPassword:     os.Getenv("REDIS_PASSWORD"),
		KeyPrefix:         os.Getenv("REDIS_KEY_PREFIX"),
		DBUser:            os.Getenv("DB_USER"),
		DBPassword:        os.Getenv("DB_PASSWORD"),
		DBHost:            os.Getenv("DB_HOST"),
		DBPort:            os.Getenv("DB_PORT"),
		DBName:            os.Getenv("DB_NAME"),
		LogLevel:          os.Getenv("LOG_LEVEL"),
		AppEnv:            os.Getenv("APP_ENV"),
	}

	var err error
	if cfg.RedisDB, err = intEnv("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if cfg.GuessBurst, err = intEnv("GUESS_BURST", 3); err != nil {
		return nil, err
	}
	if cfg.InspectRateLimit, err = intEnv("INSPECT_RATE_LIMIT", 20); err != nil {
		return nil, err
	}
	if cfg.GuessRate, err = floatEnv("GUESS_RATE", 1); err != nil {
		return nil, err
	}
	if cfg.AutoPickWord, err = boolEnv("AUTO_PICK_WORD", false); err != nil {
		return nil, err
	}

	if cfg.CanvasShowGrid, err = boolEnv("CANVAS_SHOW_GRID", true); err != nil {
		return nil, err
	}
	if cfg.CanvasBackground, err = colorEnv("CANVAS_BACKGROUND", domain.White); err != nil {
		return nil, err
	}
	if cfg.CanvasGridColor, err = colorEnv("CANVAS_GRID_COLOR", domain.MustParseColor("#e5e7eb")); err != nil {
		return nil, err
	}

	cellSize, err := intEnv("GRID_CELL_SIZE", domain.DefaultCellSize)
	if err != nil {
		return nil, err
	}
	width, err := intEnv("GRID_WIDTH", domain.DefaultGridWidth)
	if err != nil {
		return nil, err
	}
	height, err := intEnv("GRID_HEIGHT", domain.DefaultGridHeight)
	if err != nil {
		return nil, err
	}
	if cfg.Grid, err = domain.NewGridConfig(cellSize, width, height); err != nil {
		return nil, err
	}

	// --- 设置其他默认值和进行必要检查 ---
	if cfg.ServerURL == "" {
		cfg.ServerURL = "ws://localhost:8080"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.AppEnv == "" {
		cfg.AppEnv = "development"
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "pg:"
	}
	if cfg.RoomID == "" {
		return nil, fmt.Errorf("environment variable ROOM_ID must be set")
	}
	if cfg.PlayerName == "" {
		return nil, fmt.Errorf("environment variable PLAYER_NAME must be set")
	}
	if cfg.GuessRate <= 0 || cfg.GuessBurst <= 0 {
		return nil, fmt.Errorf("GUESS_RATE and GUESS_BURST must be positive")
	}
	if _, err := JoinURL(cfg); err != nil {
		return nil, err
	}

	// 验证日志级别
	if _, err := logrus.ParseLevel(cfg.LogLevel); err != nil {
		logrus.Warnf("Invalid LOG_LEVEL '%s', using default 'info'", cfg.LogLevel)
		cfg.LogLevel = "info"
	}

	return cfg, nil
}

// JoinURL 构造加入房间的 WebSocket 地址：{SERVER_URL}/ws/{ROOM_ID}?username=..&w=..&h=..
// http/https 会被换成 ws/wss。
func JoinURL(cfg *Config) (string, error) {
	u, err := url.Parse(cfg.ServerURL)
	if err != nil {
		return "", fmt.Errorf("invalid SERVER_URL %q: %w", cfg.ServerURL, err)
	}
	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("invalid SERVER_URL %q: unsupported scheme %q", cfg.ServerURL, u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("invalid SERVER_URL %q: missing host", cfg.ServerURL)
	}
	u = u.JoinPath("ws", cfg.RoomID)
	q := url.Values{}
	q.Set("username", cfg.PlayerName)
	q.Set("w", strconv.Itoa(cfg.Grid.CanvasWidth))
	q.Set("h", strconv.Itoa(cfg.Grid.CanvasHeight))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func intEnv(key string, def int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("environment variable %s must be an integer: %w", key, err)
	}
	return v, nil
}

func floatEnv(key string, def float64) (float64, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("environment variable %s must be a number: %w", key, err)
	}
	return v, nil
}

func colorEnv(key string, def domain.Color) (domain.Color, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	c, err := domain.ParseColor(raw)
	if err != nil {
		return domain.Color{}, fmt.Errorf("environment variable %s must be a color: %w", key, err)
	}
	return c, nil
}

func boolEnv(key string, def bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("environment variable %s must be a boolean: %w", key, err)
	}
	return v, nil
}

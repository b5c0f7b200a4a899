package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	httpHandler "pixel-guess/internal/handler/http"
	gormpersistence "pixel-guess/internal/infra/persistence/gorm"
	"pixel-guess/internal/infra/setup"
	redisstate "pixel-guess/internal/infra/state/redis"
	"pixel-guess/internal/middleware"
	"pixel-guess/internal/repository"
	"pixel-guess/internal/service"
	"pixel-guess/internal/session"
	"pixel-guess/internal/transport"
	"pixel-guess/internal/worker"
)

const dialTimeout = 10 * time.Second

// App 结构体包含应用的所有组件和配置
type App struct {
	Config      *Config
	Log         *logrus.Logger
	DB          *gorm.DB
	RedisClient *redis.Client
	AsynqClient *asynq.Client
	AsynqServer *worker.WorkerServer
	Channel     *transport.WSChannel
	Session     *session.Session
	Mirror      *service.MirrorService
	Archive     *service.ArchiveService
	HttpServer  *http.Server

	ctx    context.Context
	cancel context.CancelFunc
}

// NewLogger 按环境和级别创建 logger
func NewLogger(cfg *Config) *logrus.Logger {
	log := logrus.New()
	if cfg.AppEnv == "production" {
		log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, ForceColors: true})
	}
	logLevel, _ := logrus.ParseLevel(cfg.LogLevel) // cfg.LogLevel 已被 LoadConfig 验证
	log.SetLevel(logLevel)
	log.SetOutput(os.Stdout)
	return log
}

// NewApp 创建并初始化应用的所有组件，并连接游戏服务器
func NewApp(ctx context.Context) (*App, error) {
	// 1. 加载配置
	cfg, err := LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return nil, err
	}

	// 2. 初始化 Logger
	log := NewLogger(cfg)
	log.WithFields(logrus.Fields{"level": log.GetLevel().String(), "env": cfg.AppEnv}).Info("Logger initialized")

	app := &App{Config: cfg, Log: log}
	app.ctx, app.cancel = context.WithCancel(ctx)
	ok := false
	defer func() {
		// 初始化中途失败时释放已创建的资源
		if !ok {
			app.Shutdown()
		}
	}()

	// 3. 初始化可选基础设施
	var stateRepo repository.StateRepository
	var recordRepo repository.GameRecordRepository
	if cfg.RedisEnabled() {
		app.RedisClient, err = setup.InitRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, fmt.Errorf("failed to init Redis: %w", err)
		}
		stateRepo = redisstate.NewRedisStateRepository(app.RedisClient, cfg.KeyPrefix)
	} else {
		log.Info("REDIS_ADDR not set, read model mirroring disabled")
	}
	if cfg.ArchiveEnabled() {
		app.DB, err = setup.InitDB(cfg.MySQL())
		if err != nil {
			return nil, fmt.Errorf("failed to init DB: %w", err)
		}
		if err := setup.MigrateDB(app.DB); err != nil {
			return nil, fmt.Errorf("failed to migrate DB: %w", err)
		}
		recordRepo = gormpersistence.NewGormGameRecordRepository(app.DB)

		redisClientOpt := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
		app.AsynqClient = asynq.NewClient(redisClientOpt)
		app.AsynqServer = worker.NewWorkerServer(redisClientOpt, recordRepo, log)
		log.Info("Game archive enabled")
	} else {
		log.Info("Game archive disabled (needs REDIS_ADDR and DB_USER)")
	}

	// 4. 连接游戏服务器
	joinURL, err := JoinURL(cfg)
	if err != nil {
		return nil, err
	}
	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	app.Channel, err = transport.Dial(dialCtx, joinURL, nil, log.WithField("component", "ws_channel"))
	if err != nil {
		return nil, err
	}
	log.WithFields(logrus.Fields{"room_id": cfg.RoomID, "player": cfg.PlayerName}).Info("Connected to game server")

	// 5. 打开会话
	app.Session, err = session.Open(session.Config{
		RoomID:       cfg.RoomID,
		PlayerID:     cfg.PlayerID,
		Username:     cfg.PlayerName,
		Grid:         cfg.Grid,
		GuessRate:    cfg.GuessRate,
		GuessBurst:   cfg.GuessBurst,
		AutoPickWord: cfg.AutoPickWord,
	}, app.Channel,
		session.WithLogger(log.WithField("component", "session")),
		session.WithCanvasOptions(cfg.CanvasOptions()...),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open session: %w", err)
	}

	// 6. 初始化 Services 并订阅会话
	if stateRepo != nil {
		app.Mirror = service.NewMirrorService(stateRepo, cfg.RoomID, 0, log.WithField("component", "mirror"))
		if _, err := app.Session.Subscribe(app.Mirror); err != nil {
			return nil, fmt.Errorf("failed to subscribe mirror: %w", err)
		}
	}
	if app.AsynqClient != nil {
		app.Archive = service.NewArchiveService(app.AsynqClient, app.Session.ID(), cfg.RoomID, log.WithField("component", "archive"))
		if _, err := app.Session.Subscribe(app.Archive); err != nil {
			return nil, fmt.Errorf("failed to subscribe archive: %w", err)
		}
	}

	// 7. 初始化检查接口
	if cfg.InspectPort != "" {
		app.HttpServer = app.newInspectServer(service.NewInspectService(app.Session, recordRepo, cfg.RoomID))
	}

	ok = true
	log.Info("Application assembled successfully")
	return app, nil
}

func (a *App) newInspectServer(inspector httpHandler.Inspector) *http.Server {
	if a.Config.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(a.Log))
	router.Use(middleware.CORS(a.Config.CORSAllowedOrigin))
	if a.RedisClient != nil {
		router.Use(middleware.RateLimit(a.RedisClient, a.Config.KeyPrefix, a.Config.InspectRateLimit, time.Second))
	} else {
		router.Use(middleware.LocalRateLimit(float64(a.Config.InspectRateLimit), a.Config.InspectRateLimit))
	}
	httpHandler.NewInspectHandler(inspector).RegisterRoutes(router)

	return &http.Server{
		Addr:              ":" + a.Config.InspectPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

// Start 启动应用的所有后台 Goroutine
func (a *App) Start() {
	a.Log.Info("Starting application background routines...")
	if a.Mirror != nil {
		if err := a.Mirror.Reset(a.ctx); err != nil {
			a.Log.WithError(err).Warn("Stale mirrored state may remain until the first update")
		}
		a.Mirror.Start(a.ctx)
	}
	if a.Archive != nil {
		a.Archive.Start(a.ctx)
	}
	if a.AsynqServer != nil {
		if err := a.AsynqServer.Start(); err != nil {
			a.Log.WithError(err).Error("Worker server failed to start, archived games will wait in the queue")
		}
	}

	// 入站消息经由会话队列串行处理
	a.Channel.Run(a.Session.Deliver)
	a.Log.Info("WebSocket pumps started")

	if a.HttpServer != nil {
		go func() {
			a.Log.Infof("Inspect API starting to listen on %s", a.HttpServer.Addr)
			if err := a.HttpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.Log.WithError(err).Error("Inspect API failed")
			}
			a.Log.Info("Inspect API stopped listening.")
		}()
	}
}

// Done 在与游戏服务器的连接断开后被关闭
func (a *App) Done() <-chan struct{} {
	return a.Channel.Done()
}

// Shutdown 优雅地关闭应用，可对部分初始化的 App 调用
func (a *App) Shutdown() {
	a.Log.Info("Shutting down application...")

	// 1. 关闭检查接口
	if a.HttpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.HttpServer.Shutdown(ctx); err != nil {
			a.Log.Errorf("Error shutting down inspect API: %v", err)
		}
		cancel()
	}

	// 2. 断开游戏服务器，停止会话
	if a.Channel != nil {
		_ = a.Channel.Close()
	}
	if a.Session != nil {
		_ = a.Session.Close()
	}

	// 3. 写完镜像和归档队列
	if a.Mirror != nil {
		a.Mirror.Stop()
	}
	if a.Archive != nil {
		a.Archive.Stop()
	}
	if a.AsynqServer != nil {
		a.AsynqServer.Shutdown()
	}
	if a.cancel != nil {
		a.cancel()
	}

	// 4. 关闭客户端连接
	if a.AsynqClient != nil {
		if err := a.AsynqClient.Close(); err != nil {
			a.Log.Errorf("Error closing Asynq client: %v", err)
		}
	}
	if a.RedisClient != nil {
		if err := a.RedisClient.Close(); err != nil {
			a.Log.Errorf("Error closing Redis connection: %v", err)
		}
	}
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}

	a.Log.Info("Application shutdown complete.")
}

package worker

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"pixel-guess/internal/repository"
	"pixel-guess/internal/tasks"
)

// WorkerServer 封装了 Asynq Worker Server 的启动和关闭逻辑
type WorkerServer struct {
	server     *asynq.Server
	log        *logrus.Entry
	recordRepo repository.GameRecordRepository
}

// NewWorkerServer 创建一个新的 WorkerServer 实例
func NewWorkerServer(redisOpt asynq.RedisClientOpt, recordRepo repository.GameRecordRepository, logger *logrus.Logger) *WorkerServer {
	logEntry := logger.WithField("component", "worker_server")

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: 2, // 只处理本地会话的归档任务
			Queues: map[string]int{
				tasks.QueueCritical: 6,
				tasks.QueueDefault:  3,
				tasks.QueueLow:      1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				taskID := ""
				if rw := task.ResultWriter(); rw != nil {
					taskID = rw.TaskID()
				}
				retryCount, _ := asynq.GetRetryCount(ctx)
				maxRetry, _ := asynq.GetMaxRetry(ctx)
				logEntry.WithFields(logrus.Fields{
					"task_id":   taskID,
					"task_type": task.Type(),
					"retries":   retryCount,
					"max_retry": maxRetry,
				}).Errorf("Task failed: %v", err)
			}),
			Logger: logger,
		},
	)

	return &WorkerServer{
		server:     server,
		log:        logEntry,
		recordRepo: recordRepo,
	}
}

// NewServeMux 注册全部任务处理器
func NewServeMux(recordRepo repository.GameRecordRepository, log *logrus.Entry) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.Handle(tasks.TypeGameArchive, NewGameArchiveHandler(recordRepo, log))
	return mux
}

// Start 启动 Worker Server，不阻塞；信号由调用方处理
func (ws *WorkerServer) Start() error {
	mux := NewServeMux(ws.recordRepo, ws.log)
	ws.log.Info("Worker server starting...")
	if err := ws.server.Start(mux); err != nil {
		if errors.Is(err, asynq.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("could not start worker server: %w", err)
	}
	return nil
}

// Shutdown 优雅地关闭 Worker Server
func (ws *WorkerServer) Shutdown() {
	ws.log.Info("Shutting down worker server...")
	ws.server.Shutdown()
	ws.log.Info("Worker server shut down complete.")
}

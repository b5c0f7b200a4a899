package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"pixel-guess/internal/bootstrap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 初始化并连接游戏服务器
	app, err := bootstrap.NewApp(ctx)
	if err != nil {
		logrus.Errorf("Failed to initialize application: %v", err)
		os.Exit(1)
	}

	// 启动应用组件
	app.Start()

	// 等待退出信号或服务器断开
	select {
	case <-ctx.Done():
		app.Log.Info("Shutdown signal received...")
	case <-app.Done():
		app.Log.Warn("Connection to game server closed")
	}

	// 关闭应用
	app.Shutdown()
}

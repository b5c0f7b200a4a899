package http

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"pixel-guess/internal/domain"
	"pixel-guess/internal/session"
)

const (
	defaultPNGScale  = 1
	defaultGameLimit = 10
)

// Inspector 是只读检查接口依赖的服务，*service.InspectService 满足它
type Inspector interface {
	State(ctx context.Context) (session.View, error)
	Canvas(ctx context.Context) (domain.BoardState, error)
	CanvasPNG(ctx context.Context, scale int) ([]byte, error)
	RecentGames(ctx context.Context, limit int) ([]domain.GameRecord, error)
}

// InspectHandler 封装了只读检查接口的 HTTP 处理逻辑
type InspectHandler struct {
	inspector Inspector
}

// NewInspectHandler 创建 InspectHandler 实例
func NewInspectHandler(inspector Inspector) *InspectHandler {
	return &InspectHandler{inspector: inspector}
}

// RegisterRoutes 注册路由
func (h *InspectHandler) RegisterRoutes(r gin.IRouter) {
	r.GET("/ping", h.Ping)
	api := r.Group("/api")
	{
		api.GET("/state", h.State)
		api.GET("/canvas", h.Canvas)
		api.GET("/canvas.png", h.CanvasPNG)
		api.GET("/games", h.RecentGames)
	}
}

// Ping 健康检查
func (h *InspectHandler) Ping(c *gin.Context) {
	SuccessResponse(c, http.StatusOK, gin.H{"message": "pong"})
}

// State 返回会话快照 (游戏状态、画布、当前工具)
func (h *InspectHandler) State(c *gin.Context) {
	view, err := h.inspector.State(c.Request.Context())
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, view)
}

// Canvas 返回 "x,y" -> 颜色 的画布状态
func (h *InspectHandler) Canvas(c *gin.Context) {
	board, err := h.inspector.Canvas(c.Request.Context())
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"cells": len(board), "board": board})
}

// CanvasPNG 导出画布图片，scale 为放大倍数
func (h *InspectHandler) CanvasPNG(c *gin.Context) {
	scale, ok := intQuery(c, "scale", defaultPNGScale)
	if !ok {
		return
	}
	data, err := h.inspector.CanvasPNG(c.Request.Context(), scale)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/png", data)
}

// RecentGames 返回最近归档的对局
func (h *InspectHandler) RecentGames(c *gin.Context) {
	limit, ok := intQuery(c, "limit", defaultGameLimit)
	if !ok {
		return
	}
	records, err := h.inspector.RecentGames(c.Request.Context(), limit)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"games": records})
}

// intQuery 解析整数查询参数，失败时写入 400 并返回 false
func intQuery(c *gin.Context, key string, def int) (int, bool) {
	raw := c.Query(key)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		logrus.WithFields(logrus.Fields{"param": key, "value": raw}).Debug("Invalid query parameter")
		ErrorResponse(c, http.StatusBadRequest, "invalid "+key+" parameter")
		return 0, false
	}
	return v, true
}

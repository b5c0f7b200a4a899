package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"pixel-guess/internal/domain"
	handlerhttp "pixel-guess/internal/handler/http"
	"pixel-guess/internal/service"
	"pixel-guess/internal/session"
)

type mockInspector struct {
	mock.Mock
}

func (m *mockInspector) State(ctx context.Context) (session.View, error) {
	args := m.Called(ctx)
	return args.Get(0).(session.View), args.Error(1)
}

func (m *mockInspector) Canvas(ctx context.Context) (domain.BoardState, error) {
	args := m.Called(ctx)
	board, _ := args.Get(0).(domain.BoardState)
	return board, args.Error(1)
}

func (m *mockInspector) CanvasPNG(ctx context.Context, scale int) ([]byte, error) {
	args := m.Called(ctx, scale)
	data, _ := args.Get(0).([]byte)
	return data, args.Error(1)
}

func (m *mockInspector) RecentGames(ctx context.Context, limit int) ([]domain.GameRecord, error) {
	args := m.Called(ctx, limit)
	records, _ := args.Get(0).([]domain.GameRecord)
	return records, args.Error(1)
}

func newRouter(inspector handlerhttp.Inspector) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handlerhttp.NewInspectHandler(inspector).RegisterRoutes(r)
	return r
}

func do(r http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	r.ServeHTTP(w, req)
	return w
}

func TestInspectHandler_Ping(t *testing.T) {
	w := do(newRouter(new(mockInspector)), "/ping")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"pong"}`, w.Body.String())
}

func TestInspectHandler_Canvas(t *testing.T) {
	m := new(mockInspector)
	m.On("Canvas", mock.Anything).Return(domain.BoardState{"3,4": "#ff0000"}, nil).Once()

	w := do(newRouter(m), "/api/canvas")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"cells":1,"board":{"3,4":"#ff0000"}}`, w.Body.String())
	m.AssertExpectations(t)
}

func TestInspectHandler_State(t *testing.T) {
	m := new(mockInspector)
	m.On("State", mock.Anything).Return(session.View{SessionID: "s-1", RoomID: "room-1", Joined: true}, nil).Once()

	w := do(newRouter(m), "/api/state")

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "s-1", body["session_id"])
	assert.Equal(t, true, body["joined"])
	m.AssertExpectations(t)
}

func TestInspectHandler_StateUnavailable(t *testing.T) {
	m := new(mockInspector)
	m.On("State", mock.Anything).Return(session.View{}, service.ErrSessionUnavailable).Once()

	w := do(newRouter(m), "/api/state")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestInspectHandler_CanvasPNG(t *testing.T) {
	m := new(mockInspector)
	m.On("CanvasPNG", mock.Anything, 3).Return([]byte("\x89PNG"), nil).Once()
	m.On("CanvasPNG", mock.Anything, 99).Return(nil, service.ErrInvalidScale).Once()
	r := newRouter(m)

	w := do(r, "/api/canvas.png?scale=3")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))

	assert.Equal(t, http.StatusBadRequest, do(r, "/api/canvas.png?scale=99").Code)
	assert.Equal(t, http.StatusBadRequest, do(r, "/api/canvas.png?scale=abc").Code, "非整数参数不应调用服务")
	m.AssertExpectations(t)
}

func TestInspectHandler_RecentGames(t *testing.T) {
	m := new(mockInspector)
	m.On("RecentGames", mock.Anything, 10).Return(nil, service.ErrArchiveDisabled).Once()
	m.On("RecentGames", mock.Anything, 2).Return(nil, errors.New("db gone")).Once()
	r := newRouter(m)

	assert.Equal(t, http.StatusNotFound, do(r, "/api/games").Code)
	assert.Equal(t, http.StatusInternalServerError, do(r, "/api/games?limit=2").Code)
	m.AssertExpectations(t)
}

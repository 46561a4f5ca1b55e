// Package api는 백테스트 실행과 결과 조회를 위한 HTTP 엔드포인트를 제공합니다.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/assist-by/phoenix-backtest/internal/backtest"
	"github.com/assist-by/phoenix-backtest/internal/domain"
	"github.com/assist-by/phoenix-backtest/internal/metrics"
	"github.com/assist-by/phoenix-backtest/internal/store"
	"github.com/assist-by/phoenix-backtest/internal/strategy"
)

// RunRequest는 백테스트 실행 요청입니다.
// Config는 backtest.DefaultConfig 위에 덮어쓰므로 바꾸려는 필드만 보내면 됩니다.
type RunRequest struct {
	Name           string                 `json:"name"`
	Strategy       string                 `json:"strategy" binding:"required"`
	StrategyConfig map[string]interface{} `json:"strategyConfig"`
	Config         json.RawMessage        `json:"config"`
	Candles        domain.CandleList      `json:"candles" binding:"required,min=1"`
}

// RunResponse는 백테스트 실행 응답입니다
type RunResponse struct {
	ID     uint             `json:"id,omitempty"`
	Result *backtest.Result `json:"result"`
}

// StrategyInfo는 등록된 전략 정보입니다
type StrategyInfo struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Config      map[string]interface{} `json:"config,omitempty"`
}

// Handler는 백테스트 HTTP 요청을 처리합니다
type Handler struct {
	registry *strategy.Registry
	store    *store.Store
	recorder *metrics.Recorder
	logger   *zap.Logger
}

// Option은 Handler 선택 설정입니다
type Option func(*Handler)

// WithStore는 결과 저장소를 지정합니다. 없으면 결과는 응답으로만 반환됩니다.
func WithStore(s *store.Store) Option {
	return func(h *Handler) {
		h.store = s
	}
}

// WithRecorder는 지표 기록기를 지정합니다. 지정하면 /metrics가 열립니다.
func WithRecorder(r *metrics.Recorder) Option {
	return func(h *Handler) {
		h.recorder = r
	}
}

// WithLogger는 로거를 지정합니다
func WithLogger(logger *zap.Logger) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// NewHandler는 새로운 핸들러를 생성합니다
func NewHandler(registry *strategy.Registry, opts ...Option) *Handler {
	h := &Handler{registry: registry, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// NewRouter는 라우트가 등록된 gin 엔진을 생성합니다
func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	h.Register(r)
	return r
}

// Register는 라우트를 등록합니다
func (h *Handler) Register(r gin.IRouter) {
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if h.recorder != nil {
		r.GET("/metrics", gin.WrapH(h.recorder.Handler()))
	}

	v1 := r.Group("/api/v1")
	{
		v1.GET("/strategies", h.ListStrategies)
		v1.POST("/backtests", h.RunBacktest)
		v1.GET("/backtests", h.ListBacktests)
		v1.GET("/backtests/:id", h.GetBacktest)
	}
}

// ListStrategies는 등록된 전략 목록을 반환합니다
func (h *Handler) ListStrategies(c *gin.Context) {
	names := h.registry.ListStrategies()
	infos := make([]StrategyInfo, 0, len(names))
	for _, name := range names {
		s, err := h.registry.Create(name, nil)
		if err != nil {
			h.logger.Warn("전략 생성 실패", zap.String("strategy", name), zap.Error(err))
			continue
		}
		infos = append(infos, StrategyInfo{Name: name, Description: s.GetDescription(), Config: s.GetConfig()})
	}
	c.JSON(http.StatusOK, gin.H{"strategies": infos})
}

// RunBacktest는 요청받은 캔들과 설정으로 백테스트를 동기 실행합니다
func (h *Handler) RunBacktest(c *gin.Context) {
	var request RunRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cfg := backtest.DefaultConfig()
	if len(request.Config) > 0 {
		if err := json.Unmarshal(request.Config, &cfg); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "config 파싱 실패: " + err.Error()})
			return
		}
	}

	// 전략 파라미터 오류도 요청 오류로 취급
	strat, err := h.registry.Create(request.Strategy, request.StrategyConfig)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	name := request.Name
	if name == "" {
		name = request.Strategy
	}
	opts := []backtest.Option{backtest.WithLogger(h.logger), backtest.WithName(name)}
	if h.recorder != nil {
		opts = append(opts, backtest.WithObserver(h.recorder))
	}

	engine, err := backtest.NewEngine(cfg, strat, request.Candles, opts...)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	result, err := engine.Run(c.Request.Context())
	if err != nil {
		h.logger.Error("백테스트 실행 실패", zap.String("name", name), zap.Error(err))
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	response := RunResponse{Result: result}
	if h.store != nil {
		id, err := h.store.Save(c.Request.Context(), name, request.Strategy, result)
		if err != nil {
			h.logger.Error("백테스트 결과 저장 실패", zap.String("name", name), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		response.ID = id
	}

	c.JSON(http.StatusOK, response)
}

// GetBacktest는 저장된 실행 결과를 반환합니다
func (h *Handler) GetBacktest(c *gin.Context) {
	if h.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "저장소가 설정되지 않았습니다"})
		return
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "잘못된 백테스트 ID"})
		return
	}

	record, result, err := h.store.Get(c.Request.Context(), uint(id))
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"run": record, "result": result})
}

// ListBacktests는 최근 실행 기록 목록을 반환합니다
func (h *Handler) ListBacktests(c *gin.Context) {
	if h.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "저장소가 설정되지 않았습니다"})
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "잘못된 limit"})
		return
	}

	records, err := h.store.List(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": records})
}

// statusFor는 에러 종류를 HTTP 상태 코드로 변환합니다
func statusFor(err error) int {
	switch {
	case errors.Is(err, backtest.ErrInvalidConfig), errors.Is(err, domain.ErrInvalidCandles),
		errors.Is(err, strategy.ErrUnknownStrategy):
		return http.StatusBadRequest
	case errors.Is(err, backtest.ErrInsufficientData):
		return http.StatusUnprocessableEntity
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

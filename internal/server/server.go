package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"tradingdash/internal/board"
	"tradingdash/internal/dashboard"
	"tradingdash/internal/instrument"
)

// Dashboard is the read and refresh surface of dashboard.Service.
type Dashboard interface {
	Snapshot() board.Snapshot
	Loading() bool
	RefreshNow(ctx context.Context) (board.Snapshot, error)
}

// Pricer returns the pricing banner.
type Pricer interface {
	Get(ctx context.Context) (string, error)
}

type Handler struct {
	dash    Dashboard
	pricer  Pricer
	origins []string
	timeout time.Duration

	logger zerolog.Logger
}

// NewHandler builds the API handler. A nil pricer disables /api/pricing.
func NewHandler(dash Dashboard, pricer Pricer, logger zerolog.Logger) *Handler {
	return &Handler{
		dash:    dash,
		pricer:  pricer,
		origins: []string{"*"},
		timeout: 15 * time.Second,
		logger:  logger,
	}
}

// WithCORSOrigins sets the allowed browser origins; "*" allows any.
func (h *Handler) WithCORSOrigins(origins []string) *Handler {
	if len(origins) > 0 {
		h.origins = origins
	}
	return h
}

// WithTimeout bounds upstream calls made on behalf of a request.
func (h *Handler) WithTimeout(d time.Duration) *Handler {
	if d > 0 {
		h.timeout = d
	}
	return h
}

func (h *Handler) InitRoutes() http.Handler {
	r := gin.New()
	r.Use(h.accessLog(), cors(h.origins), gzipResponses(), h.recoverPanic(), limitBody(1<<20))

	r.GET("/healthz", h.Health)

	api := r.Group("/api")
	api.GET("/dashboard", h.GetDashboard)
	api.GET("/instruments", h.GetInstruments)
	api.GET("/signals", h.GetSignals)
	api.GET("/alerts", h.GetAlerts)
	api.GET("/categories", h.GetCategories)
	api.POST("/refresh", h.PostRefresh)
	api.GET("/pricing", h.GetPricing)

	return r
}

const (
	_categoryQuery    = "category"
	_minStrengthQuery = "min_strength"

	_defaultAlertStrength = 3
)

type dashboardView struct {
	board.Snapshot
	Loading bool `json:"loading"`
}

func (h *Handler) Health(ctx *gin.Context) {
	ctx.String(http.StatusOK, "ok")
}

func (h *Handler) GetDashboard(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, dashboardView{Snapshot: h.dash.Snapshot(), Loading: h.dash.Loading()})
}

func (h *Handler) GetInstruments(ctx *gin.Context) {
	list := h.dash.Snapshot().Instruments
	if q := ctx.Query(_categoryQuery); q != "" {
		c, ok := instrument.ParseCategory(q)
		if !ok {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "unknown category"})
			return
		}
		list = board.ByCategory(list, c)
	}
	ctx.JSON(http.StatusOK, list)
}

func (h *Handler) GetSignals(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, board.WithSignals(h.dash.Snapshot().Instruments))
}

// GetAlerts lists signalled instruments of at least min_strength (default
// 3), strongest first.
func (h *Handler) GetAlerts(ctx *gin.Context) {
	minStrength := _defaultAlertStrength
	if q := ctx.Query(_minStrengthQuery); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n < 1 || n > 5 {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "min_strength must be 1 to 5"})
			return
		}
		minStrength = n
	}
	ctx.JSON(http.StatusOK, board.Alerts(h.dash.Snapshot().Instruments, minStrength))
}

func (h *Handler) GetCategories(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, instrument.Categories())
}

func (h *Handler) PostRefresh(ctx *gin.Context) {
	rctx, cancel := context.WithTimeout(ctx.Request.Context(), h.timeout)
	defer cancel()

	snap, err := h.dash.RefreshNow(rctx)
	switch {
	case err == nil, errors.Is(err, dashboard.ErrFetch), errors.Is(err, dashboard.ErrProcess):
		// Failed cycles still publish the fallback snapshot.
		ctx.JSON(http.StatusOK, dashboardView{Snapshot: snap, Loading: h.dash.Loading()})
	case errors.Is(err, dashboard.ErrSuperseded):
		ctx.JSON(http.StatusConflict, gin.H{"error": "refresh superseded by a newer one"})
	default:
		h.logger.Warn().Err(err).Msg("refresh aborted")
		ctx.JSON(http.StatusServiceUnavailable, gin.H{"error": "refresh aborted"})
	}
}

func (h *Handler) GetPricing(ctx *gin.Context) {
	if h.pricer == nil {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "pricing disabled"})
		return
	}
	rctx, cancel := context.WithTimeout(ctx.Request.Context(), h.timeout)
	defer cancel()

	s, err := h.pricer.Get(rctx)
	if err != nil {
		h.logger.Warn().Err(err).Msg("pricing fetch failed")
		ctx.JSON(http.StatusBadGateway, gin.H{"error": "pricing unavailable"})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"pricing": s})
}

package webserver

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/stake-plus/bandgov/src/api/config"
	"github.com/stake-plus/bandgov/src/governance/effects"
	"github.com/stake-plus/bandgov/src/governance/proposals"
	"gorm.io/gorm"
)

// Dispatcher delivers post-commit events without blocking the request.
type Dispatcher interface {
	DispatchAsync(events []proposals.Event)
}

// Deps are the collaborators the HTTP layer needs.
type Deps struct {
	DB         *gorm.DB
	Service    *proposals.Service
	Validator  *effects.Validator
	Dispatcher Dispatcher
	Logger     *log.Logger
}

// New builds the router. ctx bounds background helpers such as the rate
// limiter cleanup.
func New(ctx context.Context, cfg config.Config, d Deps) *gin.Engine {
	g := gin.New()
	g.Use(requestLogger(d.Logger), gin.Recovery())
	attachRoutes(ctx, g, cfg, d)
	return g
}

func requestLogger(logger *log.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"took", time.Since(start),
			"ip", c.ClientIP())
	}
}

func statusOf(kind proposals.Kind) int {
	switch kind {
	case proposals.KindBadRequest:
		return http.StatusBadRequest
	case proposals.KindForbidden:
		return http.StatusForbidden
	case proposals.KindNotFound:
		return http.StatusNotFound
	case proposals.KindConflict:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// respondErr writes err using the engine's classification. Internal errors
// are logged and hidden from the caller.
func respondErr(c *gin.Context, logger *log.Logger, err error) {
	var perr *proposals.Error
	if errors.As(err, &perr) {
		body := gin.H{"err": perr.Reason}
		if len(perr.Details) > 0 {
			body["errors"] = perr.Details
		}
		c.JSON(statusOf(perr.Kind), body)
		return
	}
	logger.Error("request failed", "method", c.Request.Method, "path", c.FullPath(), "err", err)
	c.JSON(http.StatusInternalServerError, gin.H{"err": "internal error"})
}

func paramID(c *gin.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"err": "invalid " + name})
		return 0, false
	}
	return id, true
}

type health struct{ db *gorm.DB }

func (h health) Check(c *gin.Context) {
	sqlDB, err := h.db.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"err": "database unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

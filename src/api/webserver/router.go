package webserver

import (
	"context"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stake-plus/bandgov/src/api/config"
)

func attachRoutes(ctx context.Context, r *gin.Engine, cfg config.Config, d Deps) {
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}))

	r.GET("/healthz", health{db: d.DB}.Check)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	propH := NewProposals(d)
	voteH := NewVotes(d)
	effH := NewEffects(d)
	limiter := NewRateLimiter(ctx, 120, time.Minute)

	v1 := r.Group("/v1")
	secured := v1.Group("")
	secured.Use(JWTMiddleware([]byte(cfg.JWTSecret)), RateLimitMiddleware(limiter))
	{
		secured.POST("/bands/:bandId/proposals", propH.Create)
		secured.GET("/proposals/:id", propH.Get)
		secured.PUT("/proposals/:id", propH.Edit)
		secured.POST("/proposals/:id/submit", propH.Submit)
		secured.POST("/proposals/:id/withdraw", propH.Withdraw)
		secured.POST("/proposals/:id/review", propH.Review)
		secured.POST("/proposals/:id/close", propH.Close)
		secured.POST("/proposals/:id/admin-close", propH.AdminClose)

		secured.POST("/proposals/:id/votes", voteH.Cast)
		secured.GET("/proposals/:id/votes", voteH.Summary)

		secured.POST("/effects/validate", effH.Validate)
	}
}

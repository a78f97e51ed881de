package webserver

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/stake-plus/storyvote/src/config"
)

func attachRoutes(r *gin.Engine, cfg config.ServerConfig, deps Deps) *RateLimiter {
	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}
	r.Use(cors.New(cors.Config{
		AllowOrigins:  origins,
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders: []string{"Content-Length"},
	}))

	limiter := NewRateLimiter(cfg.WriteRate, cfg.WriteWindow)
	write := RateLimitMiddleware(limiter)

	sessionsH := NewSessions(deps.Orchestrator, deps.Sessions)
	proposalsH := NewProposals(deps.Contest, deps.Proposals, deps.Stats)
	booksH := NewBooks(deps.Books)
	triggerH := NewTrigger(deps.Orchestrator, cfg.CronAuthToken)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/health", health(deps.Info))

		v1.GET("/voting-sessions", sessionsH.List)
		v1.GET("/voting-sessions/current", sessionsH.Current)
		v1.GET("/voting-sessions/history", sessionsH.History)

		v1.GET("/proposals", proposalsH.List)
		v1.POST("/proposals", write, proposalsH.Create)
		v1.POST("/proposals/vote", write, proposalsH.Vote)
		v1.GET("/proposals/vote/check/:voter", proposalsH.CheckVote)
		v1.GET("/proposals/stats/:author", proposalsH.Stats)

		v1.GET("/books", booksH.List)
		v1.GET("/books/current", booksH.Current)
		v1.GET("/books/:index", booksH.Get)

		v1.GET("/trigger/check-voting", triggerH.Check)
		v1.POST("/trigger/check-voting", triggerH.Check)
	}
	return limiter
}

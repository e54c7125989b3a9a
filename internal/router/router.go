package router // package router defines how HTTP routes are registered for the API

import (
	"database/sql"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/pokernight/internal/handler"
	"github.com/iliyamo/pokernight/internal/middleware"
)

// Deps bundles what the routes need.  DB may be nil when the memory
// store is in use.
type Deps struct {
	DB        *sql.DB
	JWTSecret string
	Auth      *handler.AuthHandler
	Sessions  *handler.SessionHandler
	Stats     *handler.StatsHandler
	RateLimit echo.MiddlewareFunc // applied to mutations
	Cache     echo.MiddlewareFunc // applied to stats reads
}

// RegisterRoutes mounts the health check, the auth endpoints and every
// protected /v1 route.
func RegisterRoutes(e *echo.Echo, d Deps) {
	e.GET("/healthz", handler.Health(d.DB))

	limit := d.RateLimit
	if limit == nil {
		limit = passThrough
	}
	cache := d.Cache
	if cache == nil {
		cache = passThrough
	}

	g := e.Group("/v1/auth", limit)
	g.POST("/register", d.Auth.Register)
	g.POST("/login", d.Auth.Login)

	auth := e.Group("/v1", middleware.JWTAuth(d.JWTSecret))
	auth.GET("/me", d.Auth.Me)

	// ---- Sessions ----
	s := d.Sessions
	auth.GET("/sessions", s.List)
	auth.POST("/sessions", s.Create, limit)
	auth.GET("/sessions/:id", s.Get)
	auth.POST("/sessions/:id/start", s.Start, limit)
	auth.POST("/sessions/:id/finish", s.Finish, limit)
	auth.POST("/sessions/:id/finish/preview", s.PreviewFinish)
	auth.GET("/sessions/:id/transactions", s.Transactions)
	auth.GET("/sessions/:id/settlements", s.Settlements)

	// ---- Players ----
	auth.POST("/sessions/:id/players", s.AddPlayer, limit)
	auth.DELETE("/sessions/:id/players/:pid", s.RemovePlayer, limit)
	auth.PATCH("/sessions/:id/players/:pid", s.UpdatePlayer, limit)
	auth.POST("/sessions/:id/players/:pid/buyin", s.BuyIn, limit)
	auth.POST("/sessions/:id/players/:pid/cashout", s.CashOut, limit)

	// ---- Stats ----
	st := d.Stats
	auth.GET("/stats/leaderboard", st.Leaderboard, cache)
	auth.GET("/stats/history", st.History, cache)
	auth.GET("/stats/history/:userId", st.History, cache)
	auth.GET("/users/me/stats", st.UserStats, cache)
	auth.GET("/users/:id/stats", st.UserStats, cache)
}

func passThrough(next echo.HandlerFunc) echo.HandlerFunc { return next }

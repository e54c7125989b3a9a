package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/pokernight/internal/service"
)

// StatsHandler serves leaderboards, per-user statistics and history.
type StatsHandler struct {
	Svc *service.Stats
}

func NewStatsHandler(svc *service.Stats) *StatsHandler { return &StatsHandler{Svc: svc} }

// Leaderboard handles GET /v1/stats/leaderboard?period=&scope=
func (h *StatsHandler) Leaderboard(c echo.Context) error {
	uid, ok := caller(c)
	if !ok {
		return nil
	}
	out, err := h.Svc.Leaderboard(c.Request().Context(), uid, c.QueryParam("period"), c.QueryParam("scope"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"leaderboard": out})
}

// targetUser is :userId / :id when present, otherwise the caller.
func targetUser(c echo.Context, param string) (uint64, bool) {
	if c.Param(param) == "" {
		return caller(c)
	}
	return pathID(c, param)
}

// History handles GET /v1/stats/history and /v1/stats/history/:userId
func (h *StatsHandler) History(c echo.Context) error {
	uid, ok := targetUser(c, "userId")
	if !ok {
		return nil
	}
	out, err := h.Svc.History(c.Request().Context(), uid)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"history": out})
}

// UserStats handles GET /v1/users/me/stats and /v1/users/:id/stats
func (h *StatsHandler) UserStats(c echo.Context) error {
	uid, ok := targetUser(c, "id")
	if !ok {
		return nil
	}
	out, err := h.Svc.UserStats(c.Request().Context(), uid)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

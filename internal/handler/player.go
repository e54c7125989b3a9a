package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/pokernight/internal/service"
)

// playerArgs reads the caller, :id and :pid.
func playerArgs(c echo.Context) (uid, id, pid uint64, ok bool) {
	if uid, ok = caller(c); !ok {
		return
	}
	if id, ok = pathID(c, "id"); !ok {
		return
	}
	pid, ok = pathID(c, "pid")
	return
}

type addPlayerReq struct {
	UserID uint64 `json:"user_id"`
	Email  string `json:"email"`
}

// AddPlayer handles POST /v1/sessions/:id/players with {user_id} or
// {email}.
func (h *SessionHandler) AddPlayer(c echo.Context) error {
	uid, ok := caller(c)
	if !ok {
		return nil
	}
	id, ok := pathID(c, "id")
	if !ok {
		return nil
	}
	var req addPlayerReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	p, err := h.Svc.AddParticipant(c.Request().Context(), uid, id, service.AddParticipantInput{UserID: req.UserID, Email: req.Email})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, p)
}

// RemovePlayer handles DELETE /v1/sessions/:id/players/:pid
func (h *SessionHandler) RemovePlayer(c echo.Context) error {
	uid, id, pid, ok := playerArgs(c)
	if !ok {
		return nil
	}
	if err := h.Svc.RemoveParticipant(c.Request().Context(), uid, id, pid); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// BuyIn handles POST /v1/sessions/:id/players/:pid/buyin
func (h *SessionHandler) BuyIn(c echo.Context) error {
	uid, id, pid, ok := playerArgs(c)
	if !ok {
		return nil
	}
	out, err := h.Svc.BuyIn(c.Request().Context(), uid, id, pid)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// CashOut handles POST /v1/sessions/:id/players/:pid/cashout
func (h *SessionHandler) CashOut(c echo.Context) error {
	uid, id, pid, ok := playerArgs(c)
	if !ok {
		return nil
	}
	var req struct {
		ChipsOut *int64 `json:"chips_out"`
	}
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if req.ChipsOut == nil {
		return badRequest(c, "chips_out is required")
	}
	out, err := h.Svc.CashOut(c.Request().Context(), uid, id, pid, *req.ChipsOut)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// UpdatePlayer handles PATCH /v1/sessions/:id/players/:pid.  Only
// money_paid is editable.
func (h *SessionHandler) UpdatePlayer(c echo.Context) error {
	uid, id, pid, ok := playerArgs(c)
	if !ok {
		return nil
	}
	var req struct {
		MoneyPaid *bool `json:"money_paid"`
	}
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if req.MoneyPaid == nil {
		return badRequest(c, "money_paid is required")
	}
	p, err := h.Svc.SetMoneyPaid(c.Request().Context(), uid, id, pid, *req.MoneyPaid)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

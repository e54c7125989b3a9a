package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/pokernight/internal/ledger"
	"github.com/iliyamo/pokernight/internal/service"
)

// SessionHandler serves sessions, their players and settlements.
type SessionHandler struct {
	Svc *service.Sessions
}

func NewSessionHandler(svc *service.Sessions) *SessionHandler {
	if svc == nil {
		panic("nil service passed to NewSessionHandler")
	}
	return &SessionHandler{Svc: svc}
}

// List handles GET /v1/sessions?status=
func (h *SessionHandler) List(c echo.Context) error {
	uid, ok := caller(c)
	if !ok {
		return nil
	}
	out, err := h.Svc.List(c.Request().Context(), uid, c.QueryParam("status"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"sessions": out})
}

type createSessionReq struct {
	Name          string           `json:"name"`
	BuyInAmount   *decimal.Decimal `json:"buy_in_amount"`
	ChipsPerBuyIn *int64           `json:"chips_per_buy_in"`
}

// Create handles POST /v1/sessions.  The caller becomes host and is
// seated for one buy-in.
func (h *SessionHandler) Create(c echo.Context) error {
	uid, ok := caller(c)
	if !ok {
		return nil
	}
	var req createSessionReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if req.BuyInAmount == nil || req.ChipsPerBuyIn == nil {
		return badRequest(c, "buy_in_amount and chips_per_buy_in are required")
	}
	out, err := h.Svc.Create(c.Request().Context(), uid, service.CreateSessionInput{
		Name:          req.Name,
		BuyInAmount:   *req.BuyInAmount,
		ChipsPerBuyIn: *req.ChipsPerBuyIn,
	})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, out)
}

// Get handles GET /v1/sessions/:id
func (h *SessionHandler) Get(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return nil
	}
	out, err := h.Svc.Get(c.Request().Context(), id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// Start handles POST /v1/sessions/:id/start
func (h *SessionHandler) Start(c echo.Context) error {
	uid, ok := caller(c)
	if !ok {
		return nil
	}
	id, ok := pathID(c, "id")
	if !ok {
		return nil
	}
	out, err := h.Svc.Start(c.Request().Context(), uid, id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

type finishReq struct {
	Players []struct {
		PlayerID  uint64 `json:"player_id"`
		ChipsOut  *int64 `json:"chips_out"`
		MoneyPaid *bool  `json:"money_paid"`
	} `json:"players"`
}

func (r finishReq) overrides() []ledger.Override {
	out := make([]ledger.Override, 0, len(r.Players))
	for _, p := range r.Players {
		out = append(out, ledger.Override{ParticipantID: p.PlayerID, ChipsOut: p.ChipsOut, MoneyPaid: p.MoneyPaid})
	}
	return out
}

// Finish handles POST /v1/sessions/:id/finish.  The body is optional;
// players left out keep their recorded or full-stack chip counts.
func (h *SessionHandler) Finish(c echo.Context) error {
	uid, id, req, ok := h.finishArgs(c)
	if !ok {
		return nil
	}
	out, err := h.Svc.Finish(c.Request().Context(), uid, id, req.overrides())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// PreviewFinish handles POST /v1/sessions/:id/finish/preview?policy=
func (h *SessionHandler) PreviewFinish(c echo.Context) error {
	uid, id, req, ok := h.finishArgs(c)
	if !ok {
		return nil
	}
	out, err := h.Svc.PreviewFinish(c.Request().Context(), uid, id, req.overrides(), c.QueryParam("policy"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *SessionHandler) finishArgs(c echo.Context) (uint64, uint64, finishReq, bool) {
	var req finishReq
	uid, ok := caller(c)
	if !ok {
		return 0, 0, req, false
	}
	id, ok := pathID(c, "id")
	if !ok {
		return 0, 0, req, false
	}
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&req); err != nil {
			_ = badRequest(c, "invalid body")
			return 0, 0, req, false
		}
	}
	for _, p := range req.Players {
		if p.PlayerID == 0 {
			_ = badRequest(c, "player_id is required for every entry")
			return 0, 0, req, false
		}
	}
	return uid, id, req, true
}

// Transactions handles GET /v1/sessions/:id/transactions
func (h *SessionHandler) Transactions(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return nil
	}
	out, err := h.Svc.Transactions(c.Request().Context(), id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"transactions": out})
}

// Settlements handles GET /v1/sessions/:id/settlements?policy=
// The plan comes from a greedy largest-debtor/largest-creditor match:
// it settles every balance but is not guaranteed to use the fewest
// possible payments.
func (h *SessionHandler) Settlements(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return nil
	}
	out, err := h.Svc.Settlements(c.Request().Context(), id, c.QueryParam("policy"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

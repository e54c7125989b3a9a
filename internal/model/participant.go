package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Participant is one user's seat in one session.  The ledger mutates
// these fields directly; they are the source of truth for balances.
// ChipsOut, CashOut and ExitedAt are nil until the participant exits
// (cash-out or session finish).
type Participant struct {
	ID           uint64           `json:"id"`             // session_players.id
	SessionID    uint64           `json:"session_id"`     // session_players.session_id
	UserID       uint64           `json:"user_id"`        // session_players.user_id
	User         UserRef          `json:"user"`           // joined from users
	TotalBuyIns  int64            `json:"total_buy_ins"`  // session_players.total_buy_ins
	TotalMoneyIn decimal.Decimal  `json:"total_money_in"` // session_players.total_money_in
	ChipsOut     *int64           `json:"chips_out"`      // session_players.chips_out (nullable)
	CashOut      *decimal.Decimal `json:"cash_out"`       // session_players.cash_out (nullable)
	MoneyPaid    bool             `json:"money_paid"`     // session_players.money_paid
	ExitedAt     *time.Time       `json:"exited_at"`      // session_players.exited_at (nullable)
	JoinedAt     time.Time        `json:"joined_at"`      // session_players.joined_at
}

// Exited reports whether the participant's final chip count is recorded.
func (p Participant) Exited() bool { return p.ExitedAt != nil }

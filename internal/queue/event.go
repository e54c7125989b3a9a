// Package queue defines message payloads exchanged over the message broker.
package queue

import (
	"github.com/shopspring/decimal"

	"github.com/iliyamo/pokernight/internal/settlement"
)

// SessionFinishedQueue is the durable queue finished sessions are
// announced on.
const SessionFinishedQueue = "session.finished"

// SessionFinishedEvent is published once a session has been finished
// and committed.  It carries the final ledger and the authoritative
// payment plan so consumers never need to query the store.
type SessionFinishedEvent struct {
	SessionID   uint64               `json:"session_id"`
	SessionName string               `json:"session_name"`
	HostID      uint64               `json:"host_id"`
	ChipValue   decimal.Decimal      `json:"chip_value"`
	Policy      string               `json:"policy"`
	Players     []PlayerResult       `json:"players"`
	Settlements []settlement.Payment `json:"settlements"`
	FinishedAt  string               `json:"finished_at"`
}

// PlayerResult is one participant's final line in a finished session.
type PlayerResult struct {
	PlayerID uint64          `json:"player_id"`
	UserID   uint64          `json:"user_id"`
	Name     string          `json:"name"`
	MoneyIn  decimal.Decimal `json:"money_in"`
	ChipsOut int64           `json:"chips_out"`
	CashOut  decimal.Decimal `json:"cash_out"`
	Paid     bool            `json:"money_paid"`
}

// Profit is cash-out minus money in.
func (r PlayerResult) Profit() decimal.Decimal { return r.CashOut.Sub(r.MoneyIn) }

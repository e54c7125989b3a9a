package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// TxType distinguishes ledger log entries.
type TxType string

const (
	TxBuyIn   TxType = "buy_in"
	TxCashOut TxType = "cash_out"
)

// Transaction is an immutable audit entry attached to a participant.
// Rows are only ever inserted; current balances are never rebuilt from
// them.
type Transaction struct {
	ID            uint64          `json:"id"`             // session_transactions.id
	ParticipantID uint64          `json:"player_id"`      // session_transactions.player_id
	Type          TxType          `json:"type"`           // session_transactions.type
	Chips         int64           `json:"chips"`          // session_transactions.chips
	Amount        decimal.Decimal `json:"amount"`         // session_transactions.amount
	CreatedAt     time.Time       `json:"created_at"`     // session_transactions.created_at
}

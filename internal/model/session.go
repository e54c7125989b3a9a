package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of a session.  It only ever moves
// forward: pending -> active -> finished.
type Status string

const (
	StatusPending  Status = "pending"
	StatusActive   Status = "active"
	StatusFinished Status = "finished"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusActive, StatusFinished:
		return true
	}
	return false
}

// Session is one cash game hosted by a single user.  The buy-in price
// and the chips granted per buy-in are fixed when the session is
// created.
//
// Fields:
//  ID            – primary key identifier.
//  Name          – display name chosen by the host.
//  BuyInAmount   – money paid for one buy-in unit (> 0).
//  ChipsPerBuyIn – chips granted for one buy-in unit (> 0).
//  Status        – pending, active or finished.
//  HostID        – owning user; fixed for the session's lifetime.
//  CreatedAt     – creation timestamp.
//  FinishedAt    – set once when the session is finished.
type Session struct {
	ID            uint64          `json:"id"`              // sessions.id
	Name          string          `json:"name"`            // sessions.name
	BuyInAmount   decimal.Decimal `json:"buy_in_amount"`   // sessions.buy_in_amount
	ChipsPerBuyIn int64           `json:"chips_per_buy_in"` // sessions.chips_per_buy_in
	Status        Status          `json:"status"`          // sessions.status
	HostID        uint64          `json:"host_id"`         // sessions.host_id
	CreatedAt     time.Time       `json:"created_at"`      // sessions.created_at
	FinishedAt    *time.Time      `json:"finished_at"`     // sessions.finished_at (nullable)
}

// SessionDetail is a session together with its participants.  It is
// the shape returned by the API for a single session.
type SessionDetail struct {
	Session
	Host         UserRef       `json:"host"`
	Participants []Participant `json:"players"`
}

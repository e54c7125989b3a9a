package service

import (
	"context"

	"github.com/iliyamo/pokernight/internal/model"
	"github.com/iliyamo/pokernight/internal/stats"
)

// Store is the durable home of sessions, participants and their
// transaction log.  Reads outside WithinSession see committed state
// only.
type Store interface {
	// CreateSession inserts s and seats host in it atomically, filling
	// in generated ids and timestamps on both.
	CreateSession(ctx context.Context, s *model.Session, host *model.Participant) error
	GetSession(ctx context.Context, id uint64) (model.Session, error)
	// ListSessions returns the sessions userID hosts or sits in, newest
	// first.  An empty status matches every status.
	ListSessions(ctx context.Context, userID uint64, status model.Status) ([]model.Session, error)
	Participants(ctx context.Context, sessionID uint64) ([]model.Participant, error)
	Transactions(ctx context.Context, sessionID uint64) ([]model.Transaction, error)

	// StatsRows returns one row per participant of every finished
	// session.  userID 0 means all users.
	StatsRows(ctx context.Context, userID uint64) ([]stats.Row, error)
	// Memberships lists every seat in every session userID has sat in.
	Memberships(ctx context.Context, userID uint64) ([]stats.Membership, error)

	// WithinSession runs fn with exclusive access to one session.  fn's
	// writes are committed together when it returns nil and discarded
	// otherwise.  A missing session yields ledger.ErrNotFound.
	WithinSession(ctx context.Context, sessionID uint64, fn func(tx SessionTx) error) error
}

// SessionTx is the write side of one session inside WithinSession.
// Transactions can be appended but never changed.
type SessionTx interface {
	Session() model.Session
	Participants(ctx context.Context) ([]model.Participant, error)
	UpdateSession(ctx context.Context, s model.Session) error
	InsertParticipant(ctx context.Context, p *model.Participant) error
	UpdateParticipant(ctx context.Context, p model.Participant) error
	DeleteParticipant(ctx context.Context, id uint64) error
	InsertTransaction(ctx context.Context, t *model.Transaction) error
}

// UserStore resolves identities for participants and session hosts.
type UserStore interface {
	Create(ctx context.Context, u *model.User) error
	GetByID(ctx context.Context, id uint64) (model.User, error)
	GetByEmail(ctx context.Context, email string) (model.User, error)
}

// Package service runs every ledger operation end to end: per-session
// lock, store transaction, lifecycle guard, ledger mutation, persist,
// and (after commit) event publication.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/pokernight/internal/ledger"
	"github.com/iliyamo/pokernight/internal/lock"
	"github.com/iliyamo/pokernight/internal/model"
	"github.com/iliyamo/pokernight/internal/queue"
	"github.com/iliyamo/pokernight/internal/settlement"
)

// Publisher announces finished sessions.  A failed publish never fails
// the finish that triggered it.
type Publisher interface {
	PublishSessionFinished(ctx context.Context, ev queue.SessionFinishedEvent) error
}

// NoopPublisher drops every event.
type NoopPublisher struct{}

func (NoopPublisher) PublishSessionFinished(context.Context, queue.SessionFinishedEvent) error {
	return nil
}

// Options tunes how money is valued and settled.
type Options struct {
	Mode   ledger.Mode
	Policy settlement.Policy
	Now    func() time.Time
	// AfterFinish runs in-process once a finish is committed, before
	// the event is published.  Its error is logged only.
	AfterFinish func(ctx context.Context, ev queue.SessionFinishedEvent) error
}

// Sessions is the ledger service used by the HTTP handlers.
type Sessions struct {
	store  Store
	users  UserStore
	locker lock.Locker
	pub    Publisher
	mode   ledger.Mode
	policy settlement.Policy
	now    func() time.Time
	after  func(ctx context.Context, ev queue.SessionFinishedEvent) error
}

func NewSessions(store Store, users UserStore, locker lock.Locker, pub Publisher, opts Options) *Sessions {
	if locker == nil {
		locker = lock.NewKeyedMutex()
	}
	if pub == nil {
		pub = NoopPublisher{}
	}
	if opts.Mode == "" {
		opts.Mode = ledger.ModeLive
	}
	if opts.Policy == "" {
		opts.Policy = settlement.PolicySimple
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	return &Sessions{store: store, users: users, locker: locker, pub: pub, mode: opts.Mode, policy: opts.Policy, now: opts.Now, after: opts.AfterFinish}
}

// Policy is the settlement policy used for authoritative views.
func (s *Sessions) Policy() settlement.Policy { return s.policy }

// mutate serialises fn against every other mutation of sessionID.
func (s *Sessions) mutate(ctx context.Context, sessionID uint64, fn func(tx SessionTx) error) error {
	release, err := s.locker.Lock(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("lock session %d: %w", sessionID, err)
	}
	defer release()
	return s.store.WithinSession(ctx, sessionID, fn)
}

// CreateSessionInput is the host-supplied part of a new session.
type CreateSessionInput struct {
	Name          string
	BuyInAmount   decimal.Decimal
	ChipsPerBuyIn int64
}

// Create opens a pending session with the host already seated for one
// buy-in.
func (s *Sessions) Create(ctx context.Context, hostID uint64, in CreateSessionInput) (model.SessionDetail, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return model.SessionDetail{}, fmt.Errorf("%w: name is required", ledger.ErrInvalidInput)
	}
	if !in.BuyInAmount.IsPositive() {
		return model.SessionDetail{}, fmt.Errorf("%w: buy_in_amount must be > 0", ledger.ErrInvalidInput)
	}
	if in.ChipsPerBuyIn <= 0 {
		return model.SessionDetail{}, fmt.Errorf("%w: chips_per_buy_in must be > 0", ledger.ErrInvalidInput)
	}
	host, err := s.users.GetByID(ctx, hostID)
	if err != nil {
		return model.SessionDetail{}, err
	}

	now := s.now()
	sess := model.Session{
		Name:          name,
		BuyInAmount:   in.BuyInAmount,
		ChipsPerBuyIn: in.ChipsPerBuyIn,
		Status:        model.StatusPending,
		HostID:        hostID,
		CreatedAt:     now,
	}
	seat := newSeat(sess, host, now)
	if err := s.store.CreateSession(ctx, &sess, &seat); err != nil {
		return model.SessionDetail{}, err
	}
	return model.SessionDetail{Session: sess, Host: host.Ref(), Participants: []model.Participant{seat}}, nil
}

func newSeat(sess model.Session, u model.User, now time.Time) model.Participant {
	return model.Participant{
		SessionID:    sess.ID,
		UserID:       u.ID,
		User:         u.Ref(),
		TotalBuyIns:  1,
		TotalMoneyIn: sess.BuyInAmount,
		JoinedAt:     now,
	}
}

// Get returns a session with its participants.
func (s *Sessions) Get(ctx context.Context, id uint64) (model.SessionDetail, error) {
	sess, err := s.store.GetSession(ctx, id)
	if err != nil {
		return model.SessionDetail{}, err
	}
	ps, err := s.store.Participants(ctx, id)
	if err != nil {
		return model.SessionDetail{}, err
	}
	return s.detail(ctx, sess, ps)
}

func (s *Sessions) detail(ctx context.Context, sess model.Session, ps []model.Participant) (model.SessionDetail, error) {
	d := model.SessionDetail{Session: sess, Participants: ps}
	for _, p := range ps {
		if p.UserID == sess.HostID {
			d.Host = p.User
			return d, nil
		}
	}
	host, err := s.users.GetByID(ctx, sess.HostID)
	if err != nil {
		return model.SessionDetail{}, err
	}
	d.Host = host.Ref()
	return d, nil
}

// List returns the caller's sessions, optionally narrowed by status.
func (s *Sessions) List(ctx context.Context, userID uint64, status string) ([]model.Session, error) {
	st := model.Status(strings.ToLower(strings.TrimSpace(status)))
	if st != "" && !st.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ledger.ErrInvalidInput, status)
	}
	return s.store.ListSessions(ctx, userID, st)
}

// Start moves a pending session to active.
func (s *Sessions) Start(ctx context.Context, actorID, id uint64) (model.SessionDetail, error) {
	var out model.SessionDetail
	err := s.mutate(ctx, id, func(tx SessionTx) error {
		sess := tx.Session()
		ps, err := tx.Participants(ctx)
		if err != nil {
			return err
		}
		if err := ledger.Start(&sess, actorID, len(ps)); err != nil {
			return err
		}
		if err := tx.UpdateSession(ctx, sess); err != nil {
			return err
		}
		out, err = s.detail(ctx, sess, ps)
		return err
	})
	return out, err
}

// AddParticipantInput names the user to seat, by id or by email.
type AddParticipantInput struct {
	UserID uint64
	Email  string
}

// AddParticipant seats a user for one buy-in.  A late entrant pays the
// full buy-in price.
func (s *Sessions) AddParticipant(ctx context.Context, actorID, id uint64, in AddParticipantInput) (model.Participant, error) {
	u, err := s.resolveUser(ctx, in)
	if err != nil {
		return model.Participant{}, err
	}
	var out model.Participant
	err = s.mutate(ctx, id, func(tx SessionTx) error {
		sess := tx.Session()
		if err := ledger.CanAddParticipant(sess, actorID); err != nil {
			return err
		}
		ps, err := tx.Participants(ctx)
		if err != nil {
			return err
		}
		for _, p := range ps {
			if p.UserID == u.ID {
				return fmt.Errorf("%w: user %d already plays in session %d", ledger.ErrInvalidInput, u.ID, id)
			}
		}
		out = newSeat(sess, u, s.now())
		return tx.InsertParticipant(ctx, &out)
	})
	return out, err
}

func (s *Sessions) resolveUser(ctx context.Context, in AddParticipantInput) (model.User, error) {
	var (
		u   model.User
		err error
	)
	switch {
	case in.UserID != 0:
		u, err = s.users.GetByID(ctx, in.UserID)
	case strings.TrimSpace(in.Email) != "":
		u, err = s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(in.Email)))
	default:
		return model.User{}, fmt.Errorf("%w: user_id or email is required", ledger.ErrInvalidInput)
	}
	if errors.Is(err, ledger.ErrNotFound) {
		return model.User{}, fmt.Errorf("%w: user", ledger.ErrNotFound)
	}
	return u, err
}

// RemoveParticipant takes a player out of a session that has not
// started yet.
func (s *Sessions) RemoveParticipant(ctx context.Context, actorID, id, playerID uint64) error {
	return s.mutate(ctx, id, func(tx SessionTx) error {
		sess := tx.Session()
		ps, err := tx.Participants(ctx)
		if err != nil {
			return err
		}
		p, err := findParticipant(ps, playerID)
		if err != nil {
			return err
		}
		if err := ledger.CanRemoveParticipant(sess, actorID, *p); err != nil {
			return err
		}
		return tx.DeleteParticipant(ctx, playerID)
	})
}

func findParticipant(ps []model.Participant, id uint64) (*model.Participant, error) {
	for i := range ps {
		if ps[i].ID == id {
			return &ps[i], nil
		}
	}
	return nil, fmt.Errorf("%w: player %d", ledger.ErrNotFound, id)
}

// LedgerEntry is a participant after a ledger mutation together with
// the transaction it produced.
type LedgerEntry struct {
	Player      model.Participant `json:"player"`
	Transaction model.Transaction `json:"transaction"`
}

// BuyIn records one more buy-in for a player.
func (s *Sessions) BuyIn(ctx context.Context, actorID, id, playerID uint64) (LedgerEntry, error) {
	var out LedgerEntry
	err := s.mutate(ctx, id, func(tx SessionTx) error {
		sess := tx.Session()
		if err := ledger.CanEditPlay(sess, actorID); err != nil {
			return err
		}
		ps, err := tx.Participants(ctx)
		if err != nil {
			return err
		}
		p, err := findParticipant(ps, playerID)
		if err != nil {
			return err
		}
		txn, err := ledger.RecordBuyIn(sess, p, s.now())
		if err != nil {
			return err
		}
		if err := tx.UpdateParticipant(ctx, *p); err != nil {
			return err
		}
		if err := tx.InsertTransaction(ctx, &txn); err != nil {
			return err
		}
		out = LedgerEntry{Player: *p, Transaction: txn}
		return nil
	})
	return out, err
}

// CashOut records a player leaving with chipsOut chips, valued at the
// chip value of the session as it stands after the exit.
func (s *Sessions) CashOut(ctx context.Context, actorID, id, playerID uint64, chipsOut int64) (LedgerEntry, error) {
	if chipsOut < 0 {
		return LedgerEntry{}, fmt.Errorf("%w: chips_out must be >= 0", ledger.ErrInvalidInput)
	}
	var out LedgerEntry
	err := s.mutate(ctx, id, func(tx SessionTx) error {
		sess := tx.Session()
		if err := ledger.CanEditPlay(sess, actorID); err != nil {
			return err
		}
		ps, err := tx.Participants(ctx)
		if err != nil {
			return err
		}
		txn, err := ledger.RecordCashOut(sess, ps, playerID, chipsOut, s.now())
		if err != nil {
			return err
		}
		p, err := findParticipant(ps, playerID)
		if err != nil {
			return err
		}
		if err := tx.UpdateParticipant(ctx, *p); err != nil {
			return err
		}
		if err := tx.InsertTransaction(ctx, &txn); err != nil {
			return err
		}
		out = LedgerEntry{Player: *p, Transaction: txn}
		return nil
	})
	return out, err
}

// SetMoneyPaid flips the physical-payment flag.  It is the one edit
// still allowed once a session is finished.
func (s *Sessions) SetMoneyPaid(ctx context.Context, actorID, id, playerID uint64, paid bool) (model.Participant, error) {
	var out model.Participant
	err := s.mutate(ctx, id, func(tx SessionTx) error {
		if err := ledger.CanMarkPaid(tx.Session(), actorID); err != nil {
			return err
		}
		ps, err := tx.Participants(ctx)
		if err != nil {
			return err
		}
		p, err := findParticipant(ps, playerID)
		if err != nil {
			return err
		}
		p.MoneyPaid = paid
		out = *p
		return tx.UpdateParticipant(ctx, *p)
	})
	return out, err
}

// Transactions lists a session's ledger log, oldest first.
func (s *Sessions) Transactions(ctx context.Context, id uint64) ([]model.Transaction, error) {
	if _, err := s.store.GetSession(ctx, id); err != nil {
		return nil, err
	}
	return s.store.Transactions(ctx, id)
}

package memrepo

import (
	"context"
	"fmt"
	"sort"

	"github.com/iliyamo/pokernight/internal/ledger"
	"github.com/iliyamo/pokernight/internal/model"
	"github.com/iliyamo/pokernight/internal/service"
)

// WithinSession holds the store lock for the duration of fn.  Writes
// are staged on the tx and applied only when fn returns nil.
func (s *Store) WithinSession(ctx context.Context, sessionID uint64, fn func(tx service.SessionTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return fmt.Errorf("%w: session %d", ledger.ErrNotFound, sessionID)
	}
	tx := &sessionTx{
		store:   s,
		session: sess,
		players: make(map[uint64]model.Participant),
		deleted: make(map[uint64]bool),
	}
	for _, p := range s.participantsLocked(sessionID) {
		tx.players[p.ID] = p
	}
	if err := fn(tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

type sessionTx struct {
	store   *Store
	session model.Session
	players map[uint64]model.Participant
	deleted map[uint64]bool
	txns    []model.Transaction
}

func (t *sessionTx) Session() model.Session { return t.session }

func (t *sessionTx) Participants(context.Context) ([]model.Participant, error) {
	out := make([]model.Participant, 0, len(t.players))
	for _, p := range t.players {
		out = append(out, clone(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *sessionTx) UpdateSession(_ context.Context, s model.Session) error {
	if s.ID != t.session.ID {
		return fmt.Errorf("%w: session %d outside this transaction", ledger.ErrInvalidInput, s.ID)
	}
	t.session = s
	return nil
}

func (t *sessionTx) InsertParticipant(_ context.Context, p *model.Participant) error {
	for _, o := range t.players {
		if o.UserID == p.UserID {
			return fmt.Errorf("%w: user %d already seated", ledger.ErrInvalidInput, p.UserID)
		}
	}
	p.ID = t.store.id()
	p.SessionID = t.session.ID
	p.User = t.store.userRef(p.UserID)
	t.players[p.ID] = clone(*p)
	return nil
}

func (t *sessionTx) UpdateParticipant(_ context.Context, p model.Participant) error {
	if _, ok := t.players[p.ID]; !ok {
		return fmt.Errorf("%w: player %d", ledger.ErrNotFound, p.ID)
	}
	t.players[p.ID] = clone(p)
	return nil
}

func (t *sessionTx) DeleteParticipant(_ context.Context, id uint64) error {
	if _, ok := t.players[id]; !ok {
		return fmt.Errorf("%w: player %d", ledger.ErrNotFound, id)
	}
	delete(t.players, id)
	t.deleted[id] = true
	return nil
}

func (t *sessionTx) InsertTransaction(_ context.Context, txn *model.Transaction) error {
	if _, ok := t.players[txn.ParticipantID]; !ok {
		return fmt.Errorf("%w: player %d", ledger.ErrNotFound, txn.ParticipantID)
	}
	txn.ID = t.store.id()
	t.txns = append(t.txns, *txn)
	return nil
}

// commit runs with the store lock still held.
func (t *sessionTx) commit() {
	s := t.store
	s.sessions[t.session.ID] = t.session
	for id := range t.deleted {
		delete(s.players, id)
	}
	for id, p := range t.players {
		s.players[id] = p
	}
	s.txns = append(s.txns, t.txns...)
}

// Package memrepo is an in-memory implementation of the session and
// user stores.  It backs the service tests and STORE_DRIVER=memory.
package memrepo

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/pokernight/internal/ledger"
	"github.com/iliyamo/pokernight/internal/model"
	"github.com/iliyamo/pokernight/internal/repository"
	"github.com/iliyamo/pokernight/internal/service"
	"github.com/iliyamo/pokernight/internal/stats"
)

// Store keeps everything in maps.  Session data sits behind mu and is
// locked for the whole of WithinSession; users sit behind umu, always
// taken after mu.
type Store struct {
	mu       sync.Mutex
	sessions map[uint64]model.Session
	players  map[uint64]model.Participant
	txns     []model.Transaction
	nextID   uint64

	umu      sync.Mutex
	users    map[uint64]model.User
	nextUser uint64
}

func New() *Store {
	return &Store{
		sessions: make(map[uint64]model.Session),
		players:  make(map[uint64]model.Participant),
		users:    make(map[uint64]model.User),
	}
}

var (
	_ service.Store     = (*Store)(nil)
	_ service.UserStore = (*Store)(nil)
)

func (s *Store) id() uint64 {
	s.nextID++
	return s.nextID
}

// ----- users -----

func (s *Store) Create(_ context.Context, u *model.User) error {
	s.umu.Lock()
	defer s.umu.Unlock()
	email := strings.ToLower(strings.TrimSpace(u.Email))
	for _, o := range s.users {
		if o.Email == email {
			return repository.ErrEmailExists
		}
	}
	s.nextUser++
	u.ID = s.nextUser
	u.Email = email
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	s.users[u.ID] = *u
	return nil
}

func (s *Store) GetByID(_ context.Context, id uint64) (model.User, error) {
	s.umu.Lock()
	defer s.umu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return model.User{}, fmt.Errorf("%w: user %d", ledger.ErrNotFound, id)
	}
	return u, nil
}

func (s *Store) GetByEmail(_ context.Context, email string) (model.User, error) {
	s.umu.Lock()
	defer s.umu.Unlock()
	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return model.User{}, fmt.Errorf("%w: user %q", ledger.ErrNotFound, email)
}

func (s *Store) userRef(id uint64) model.UserRef {
	s.umu.Lock()
	defer s.umu.Unlock()
	u := s.users[id]
	return model.UserRef{ID: id, Name: u.Name, Email: u.Email}
}

// ----- sessions -----

func (s *Store) CreateSession(_ context.Context, sess *model.Session, host *model.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess.ID = s.id()
	s.sessions[sess.ID] = *sess
	host.ID = s.id()
	host.SessionID = sess.ID
	host.User = s.userRef(host.UserID)
	s.players[host.ID] = *host
	return nil
}

func (s *Store) GetSession(_ context.Context, id uint64) (model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return model.Session{}, fmt.Errorf("%w: session %d", ledger.ErrNotFound, id)
	}
	return sess, nil
}

func (s *Store) ListSessions(_ context.Context, userID uint64, status model.Status) ([]model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seated := make(map[uint64]bool)
	for _, p := range s.players {
		if p.UserID == userID {
			seated[p.SessionID] = true
		}
	}
	var out []model.Session
	for _, sess := range s.sessions {
		if sess.HostID != userID && !seated[sess.ID] {
			continue
		}
		if status != "" && sess.Status != status {
			continue
		}
		out = append(out, sess)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *Store) Participants(_ context.Context, sessionID uint64) ([]model.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.participantsLocked(sessionID), nil
}

func (s *Store) participantsLocked(sessionID uint64) []model.Participant {
	var out []model.Participant
	for _, p := range s.players {
		if p.SessionID == sessionID {
			p.User = s.userRef(p.UserID)
			out = append(out, clone(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func clone(p model.Participant) model.Participant {
	if p.ChipsOut != nil {
		c := *p.ChipsOut
		p.ChipsOut = &c
	}
	if p.CashOut != nil {
		c := *p.CashOut
		p.CashOut = &c
	}
	if p.ExitedAt != nil {
		t := *p.ExitedAt
		p.ExitedAt = &t
	}
	return p
}

func (s *Store) Transactions(_ context.Context, sessionID uint64) ([]model.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Transaction
	for _, t := range s.txns {
		if p, ok := s.players[t.ParticipantID]; ok && p.SessionID == sessionID {
			out = append(out, t)
		}
	}
	return out, nil
}

// ----- stats -----

func (s *Store) StatsRows(_ context.Context, userID uint64) ([]stats.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []stats.Row
	for _, p := range s.players {
		if userID != 0 && p.UserID != userID {
			continue
		}
		sess := s.sessions[p.SessionID]
		if sess.Status != model.StatusFinished {
			continue
		}
		p = clone(p)
		out = append(out, stats.Row{
			SessionID:    sess.ID,
			SessionName:  sess.Name,
			UserID:       p.UserID,
			UserName:     s.userRef(p.UserID).Name,
			TotalMoneyIn: p.TotalMoneyIn,
			CashOut:      p.CashOut,
			CreatedAt:    sess.CreatedAt,
			FinishedAt:   sess.FinishedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SessionID != out[j].SessionID {
			return out[i].SessionID < out[j].SessionID
		}
		return out[i].UserID < out[j].UserID
	})
	return out, nil
}

func (s *Store) Memberships(_ context.Context, userID uint64) ([]stats.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	mine := make(map[uint64]bool)
	for _, p := range s.players {
		if p.UserID == userID {
			mine[p.SessionID] = true
		}
	}
	var out []stats.Membership
	for _, p := range s.players {
		if mine[p.SessionID] {
			out = append(out, stats.Membership{SessionID: p.SessionID, UserID: p.UserID})
		}
	}
	return out, nil
}

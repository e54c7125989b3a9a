package service

import (
	"context"
	"fmt"
	"time"

	"github.com/iliyamo/pokernight/internal/ledger"
	"github.com/iliyamo/pokernight/internal/model"
	"github.com/iliyamo/pokernight/internal/stats"
)

// Stats serves the read-only reporting views over finished sessions.
type Stats struct {
	store Store
	users UserStore
	now   func() time.Time
}

func NewStats(store Store, users UserStore, now func() time.Time) *Stats {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Stats{store: store, users: users, now: now}
}

// Leaderboard ranks users by profit.  The circle scope only shows
// users who have shared a table with viewerID and only counts the
// games viewerID played in.
func (s *Stats) Leaderboard(ctx context.Context, viewerID uint64, period, scope string) ([]stats.Entry, error) {
	p, err := stats.ParsePeriod(period)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ledger.ErrInvalidInput, err)
	}
	sc, err := stats.ParseScope(scope)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ledger.ErrInvalidInput, err)
	}

	f := stats.Filter{Period: p, Now: s.now()}
	if sc == stats.ScopeCircle {
		ms, err := s.store.Memberships(ctx, viewerID)
		if err != nil {
			return nil, err
		}
		f.Allowed = stats.Circle(ms, viewerID)
		f.Sessions = stats.SessionsOf(ms, viewerID)
	}
	rows, err := s.store.StatsRows(ctx, 0)
	if err != nil {
		return nil, err
	}
	return stats.Leaderboard(rows, f), nil
}

// UserStatsView is a user's summary as returned by the API.
type UserStatsView struct {
	User model.UserRef `json:"user"`
	stats.UserStats
}

func (s *Stats) UserStats(ctx context.Context, userID uint64) (UserStatsView, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return UserStatsView{}, err
	}
	rows, err := s.store.StatsRows(ctx, userID)
	if err != nil {
		return UserStatsView{}, err
	}
	ref := u.Ref()
	ref.Email = ""
	return UserStatsView{User: ref, UserStats: stats.ForUser(rows)}, nil
}

// History lists a user's finished sessions, newest first.
func (s *Stats) History(ctx context.Context, userID uint64) ([]stats.HistoryEntry, error) {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return nil, err
	}
	rows, err := s.store.StatsRows(ctx, userID)
	if err != nil {
		return nil, err
	}
	return stats.History(rows), nil
}

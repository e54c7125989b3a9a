// Package stats folds finished-session ledger rows into leaderboards,
// per-user statistics and game history.
package stats

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Row is one participant's final ledger state in one finished session.
type Row struct {
	SessionID    uint64
	SessionName  string
	UserID       uint64
	UserName     string
	TotalMoneyIn decimal.Decimal
	CashOut      *decimal.Decimal
	CreatedAt    time.Time
	FinishedAt   *time.Time
}

// Profit is cash-out minus money in; a missing cash-out counts as zero.
func (r Row) Profit() decimal.Decimal {
	return r.cashOut().Sub(r.TotalMoneyIn)
}

func (r Row) cashOut() decimal.Decimal {
	if r.CashOut == nil {
		return decimal.Zero
	}
	return *r.CashOut
}

// Membership records that a user sat in a session, whatever its status.
type Membership struct {
	SessionID uint64
	UserID    uint64
}

// Period bounds the leaderboard by session finish time.
type Period string

const (
	PeriodAll   Period = "all"
	PeriodMonth Period = "month"
	PeriodYear  Period = "year"
)

// Scope selects which users appear on the leaderboard.
type Scope string

const (
	ScopeGlobal Scope = "global"
	ScopeCircle Scope = "circle"
)

// ParsePeriod maps query values to a Period; empty means PeriodAll.
func ParsePeriod(s string) (Period, error) {
	switch p := Period(strings.ToLower(s)); p {
	case "":
		return PeriodAll, nil
	case PeriodAll, PeriodMonth, PeriodYear:
		return p, nil
	}
	return "", fmt.Errorf("unknown period %q", s)
}

// ParseScope maps query values to a Scope; empty means ScopeGlobal.
func ParseScope(s string) (Scope, error) {
	switch sc := Scope(strings.ToLower(s)); sc {
	case "":
		return ScopeGlobal, nil
	case ScopeGlobal, ScopeCircle:
		return sc, nil
	}
	return "", fmt.Errorf("unknown scope %q", s)
}

// Since returns the earliest finish time included by p, or nil for
// PeriodAll.
func (p Period) Since(now time.Time) *time.Time {
	var t time.Time
	switch p {
	case PeriodMonth:
		t = now.AddDate(0, -1, 0)
	case PeriodYear:
		t = now.AddDate(-1, 0, 0)
	default:
		return nil
	}
	return &t
}

// Circle returns the users who shared at least one session with
// viewer, viewer included.
func Circle(ms []Membership, viewer uint64) map[uint64]bool {
	mine := SessionsOf(ms, viewer)
	out := make(map[uint64]bool)
	for _, m := range ms {
		if mine[m.SessionID] {
			out[m.UserID] = true
		}
	}
	return out
}

// SessionsOf returns the sessions viewer sat in.
func SessionsOf(ms []Membership, viewer uint64) map[uint64]bool {
	out := make(map[uint64]bool)
	for _, m := range ms {
		if m.UserID == viewer {
			out[m.SessionID] = true
		}
	}
	return out
}

// Filter narrows the rows folded into a leaderboard.
type Filter struct {
	Period Period
	Now    time.Time
	// Allowed restricts the users considered; nil means everyone.
	Allowed map[uint64]bool
	// Sessions restricts the games counted; nil means all of them.
	Sessions map[uint64]bool
}

func (f Filter) keep(r Row) bool {
	if r.FinishedAt == nil {
		return false
	}
	if since := f.Period.Since(f.Now); since != nil && r.FinishedAt.Before(*since) {
		return false
	}
	if f.Allowed != nil && !f.Allowed[r.UserID] {
		return false
	}
	if f.Sessions != nil && !f.Sessions[r.SessionID] {
		return false
	}
	return true
}

// Entry is one leaderboard line.
type Entry struct {
	UserID        uint64          `json:"user_id"`
	Name          string          `json:"name"`
	TotalProfit   decimal.Decimal `json:"total_profit"`
	GamesPlayed   int             `json:"games_played"`
	WinRate       float64         `json:"win_rate"`
	AverageProfit decimal.Decimal `json:"average_profit"`
}

// Leaderboard folds rows per user and sorts by total profit, highest
// first.  Users with no qualifying games do not appear.
func Leaderboard(rows []Row, f Filter) []Entry {
	type acc struct {
		name   string
		profit decimal.Decimal
		games  int
		wins   int
	}
	byUser := make(map[uint64]*acc)
	for _, r := range rows {
		if !f.keep(r) {
			continue
		}
		a, ok := byUser[r.UserID]
		if !ok {
			a = &acc{name: r.UserName, profit: decimal.Zero}
			byUser[r.UserID] = a
		}
		p := r.Profit()
		a.profit = a.profit.Add(p)
		a.games++
		if p.IsPositive() {
			a.wins++
		}
	}

	out := make([]Entry, 0, len(byUser))
	for id, a := range byUser {
		if a.games == 0 {
			continue
		}
		out = append(out, Entry{
			UserID:        id,
			Name:          a.name,
			TotalProfit:   a.profit,
			GamesPlayed:   a.games,
			WinRate:       float64(a.wins) / float64(a.games),
			AverageProfit: a.profit.Div(decimal.NewFromInt(int64(a.games))),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].TotalProfit.Cmp(out[j].TotalProfit); c != 0 {
			return c > 0
		}
		return out[i].UserID < out[j].UserID
	})
	return out
}

// UserStats summarises one user's finished sessions.
type UserStats struct {
	TotalGames    int             `json:"total_games"`
	TotalProfit   decimal.Decimal `json:"total_profit"`
	TotalBuyIns   decimal.Decimal `json:"total_buy_ins"`
	TotalCashOuts decimal.Decimal `json:"total_cash_outs"`
	WinRate       float64         `json:"win_rate"`
	AverageProfit decimal.Decimal `json:"average_profit"`
	BiggestWin    decimal.Decimal `json:"biggest_win"`
	BiggestLoss   decimal.Decimal `json:"biggest_loss"`
}

// ForUser folds rows (all belonging to one user) into UserStats.
// BiggestWin and BiggestLoss stay zero when the user never won or
// never lost.
func ForUser(rows []Row) UserStats {
	st := UserStats{
		TotalProfit:   decimal.Zero,
		TotalBuyIns:   decimal.Zero,
		TotalCashOuts: decimal.Zero,
		AverageProfit: decimal.Zero,
		BiggestWin:    decimal.Zero,
		BiggestLoss:   decimal.Zero,
	}
	wins := 0
	for _, r := range rows {
		if r.FinishedAt == nil {
			continue
		}
		p := r.Profit()
		st.TotalGames++
		st.TotalProfit = st.TotalProfit.Add(p)
		st.TotalBuyIns = st.TotalBuyIns.Add(r.TotalMoneyIn)
		st.TotalCashOuts = st.TotalCashOuts.Add(r.cashOut())
		switch {
		case p.IsPositive():
			wins++
			if p.GreaterThan(st.BiggestWin) {
				st.BiggestWin = p
			}
		case p.LessThan(st.BiggestLoss):
			st.BiggestLoss = p
		}
	}
	if st.TotalGames > 0 {
		st.WinRate = float64(wins) / float64(st.TotalGames)
		st.AverageProfit = st.TotalProfit.Div(decimal.NewFromInt(int64(st.TotalGames)))
	}
	return st
}

// HistoryEntry is one finished session from a user's point of view.
type HistoryEntry struct {
	SessionID   uint64          `json:"session_id"`
	SessionName string          `json:"session_name"`
	Date        time.Time       `json:"date"`
	BuyIn       decimal.Decimal `json:"buy_in"`
	CashOut     decimal.Decimal `json:"cash_out"`
	Profit      decimal.Decimal `json:"profit"`
}

// History lists rows newest first, dated by finish time (creation
// time if missing).
func History(rows []Row) []HistoryEntry {
	out := make([]HistoryEntry, 0, len(rows))
	for _, r := range rows {
		date := r.CreatedAt
		if r.FinishedAt != nil {
			date = *r.FinishedAt
		}
		out = append(out, HistoryEntry{
			SessionID:   r.SessionID,
			SessionName: r.SessionName,
			Date:        date,
			BuyIn:       r.TotalMoneyIn,
			CashOut:     r.cashOut(),
			Profit:      r.Profit(),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out
}

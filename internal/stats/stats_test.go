package stats

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

var now = time.Date(2025, 6, 15, 20, 0, 0, 0, time.UTC)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func row(session, user uint64, in, out string, finished time.Time) Row {
	c := d(out)
	return Row{
		SessionID:    session,
		SessionName:  "game",
		UserID:       user,
		UserName:     "u",
		TotalMoneyIn: d(in),
		CashOut:      &c,
		CreatedAt:    finished.Add(-3 * time.Hour),
		FinishedAt:   &finished,
	}
}

func TestLeaderboardSortsByProfit(t *testing.T) {
	rows := []Row{
		row(1, 1, "20", "30", now),
		row(1, 2, "20", "10", now),
		row(2, 1, "20", "15", now),
		row(2, 3, "20", "25", now),
	}
	got := Leaderboard(rows, Filter{Period: PeriodAll, Now: now})
	if len(got) != 3 {
		t.Fatalf("entries = %d, want 3", len(got))
	}
	// user 1: +10 -5 = 5, user 3: +5, user 2: -10; tie broken by id
	wantOrder := []uint64{1, 3, 2}
	for i, id := range wantOrder {
		if got[i].UserID != id {
			t.Fatalf("order[%d] = %d, want %d", i, got[i].UserID, id)
		}
	}
	u1 := got[0]
	if u1.GamesPlayed != 2 || u1.WinRate != 0.5 || !u1.AverageProfit.Equal(d("2.5")) {
		t.Fatalf("user 1 = %+v", u1)
	}
}

func TestLeaderboardPeriod(t *testing.T) {
	rows := []Row{
		row(1, 1, "20", "40", now.AddDate(0, 0, -10)),
		row(2, 1, "20", "0", now.AddDate(0, -3, 0)),
		row(3, 2, "20", "30", now.AddDate(-2, 0, 0)),
	}
	cases := []struct {
		period Period
		users  int
		profit string
	}{
		{PeriodMonth, 1, "20"},
		{PeriodYear, 1, "0"},
		{PeriodAll, 2, "0"},
	}
	for _, tc := range cases {
		got := Leaderboard(rows, Filter{Period: tc.period, Now: now})
		if len(got) != tc.users {
			t.Fatalf("%s: entries = %d, want %d", tc.period, len(got), tc.users)
		}
		var u1 *Entry
		for i := range got {
			if got[i].UserID == 1 {
				u1 = &got[i]
			}
		}
		if u1 == nil || !u1.TotalProfit.Equal(d(tc.profit)) {
			t.Fatalf("%s: user 1 = %+v, want profit %s", tc.period, u1, tc.profit)
		}
	}
}

func TestCircleScope(t *testing.T) {
	ms := []Membership{
		{SessionID: 1, UserID: 1}, {SessionID: 1, UserID: 2},
		{SessionID: 2, UserID: 2}, {SessionID: 2, UserID: 3},
		{SessionID: 3, UserID: 1}, {SessionID: 3, UserID: 4},
	}
	c := Circle(ms, 1)
	for _, id := range []uint64{1, 2, 4} {
		if !c[id] {
			t.Fatalf("user %d missing from circle", id)
		}
	}
	if c[3] {
		t.Fatal("user 3 never sat with user 1")
	}

	rows := []Row{
		row(2, 3, "20", "90", now),
		row(1, 2, "20", "10", now),
	}
	got := Leaderboard(rows, Filter{Period: PeriodAll, Now: now, Allowed: c})
	if len(got) != 1 || got[0].UserID != 2 {
		t.Fatalf("circle leaderboard = %+v", got)
	}

	// User 2 also won big in session 2 without user 1; only the shared
	// session 1 counts.
	rows = []Row{
		row(1, 1, "20", "10", now),
		row(1, 2, "20", "30", now),
		row(2, 2, "20", "120", now),
		row(2, 3, "20", "0", now),
	}
	got = Leaderboard(rows, Filter{Period: PeriodAll, Now: now, Allowed: c, Sessions: SessionsOf(ms, 1)})
	if len(got) != 2 || got[0].UserID != 2 {
		t.Fatalf("circle leaderboard = %+v", got)
	}
	if got[0].GamesPlayed != 1 || !got[0].TotalProfit.Equal(d("10")) {
		t.Fatalf("user 2 = %d games, profit %s; want 1 game, profit 10", got[0].GamesPlayed, got[0].TotalProfit)
	}
}

func TestLeaderboardSkipsUnfinished(t *testing.T) {
	r := row(1, 1, "20", "30", now)
	r.FinishedAt = nil
	if got := Leaderboard([]Row{r}, Filter{Now: now}); len(got) != 0 {
		t.Fatalf("entries = %+v, want none", got)
	}
}

func TestForUserBreakEven(t *testing.T) {
	st := ForUser([]Row{row(1, 1, "20", "20", now)})
	if st.TotalGames != 1 {
		t.Fatalf("games = %d", st.TotalGames)
	}
	if st.WinRate != 0 {
		t.Fatalf("win rate = %v, want 0", st.WinRate)
	}
	if !st.BiggestWin.IsZero() || !st.BiggestLoss.IsZero() || !st.TotalProfit.IsZero() {
		t.Fatalf("stats = %+v", st)
	}
}

func TestForUser(t *testing.T) {
	st := ForUser([]Row{
		row(1, 1, "20", "50", now),
		row(2, 1, "40", "10", now),
		row(3, 1, "20", "25", now),
	})
	if st.TotalGames != 3 {
		t.Fatalf("games = %d", st.TotalGames)
	}
	checks := map[string][2]decimal.Decimal{
		"profit":   {st.TotalProfit, d("5")},
		"buy-ins":  {st.TotalBuyIns, d("80")},
		"cashouts": {st.TotalCashOuts, d("85")},
		"average":  {st.AverageProfit, d("5").Div(d("3"))},
		"win":      {st.BiggestWin, d("30")},
		"loss":     {st.BiggestLoss, d("-30")},
	}
	for name, c := range checks {
		if !c[0].Equal(c[1]) {
			t.Errorf("%s = %s, want %s", name, c[0], c[1])
		}
	}
	if st.WinRate < 0.66 || st.WinRate > 0.67 {
		t.Fatalf("win rate = %v", st.WinRate)
	}
}

func TestForUserEmpty(t *testing.T) {
	st := ForUser(nil)
	if st.TotalGames != 0 || st.WinRate != 0 || !st.AverageProfit.IsZero() {
		t.Fatalf("stats = %+v", st)
	}
}

func TestHistoryNewestFirst(t *testing.T) {
	old := row(1, 1, "20", "10", now.AddDate(0, 0, -7))
	recent := row(2, 1, "20", "35", now)
	noFinish := row(3, 1, "20", "20", now)
	noFinish.FinishedAt = nil
	noFinish.CreatedAt = now.AddDate(0, 0, -1)
	noFinish.CashOut = nil

	h := History([]Row{old, noFinish, recent})
	want := []uint64{2, 3, 1}
	for i, id := range want {
		if h[i].SessionID != id {
			t.Fatalf("history[%d] = %d, want %d", i, h[i].SessionID, id)
		}
	}
	if !h[0].Profit.Equal(d("15")) {
		t.Fatalf("profit = %s", h[0].Profit)
	}
	if !h[1].CashOut.IsZero() || !h[1].Profit.Equal(d("-20")) {
		t.Fatalf("missing cash-out = %+v", h[1])
	}
	if !h[1].Date.Equal(noFinish.CreatedAt) {
		t.Fatalf("date = %v, want created at", h[1].Date)
	}
}

func TestParsePeriodScope(t *testing.T) {
	if p, err := ParsePeriod(""); err != nil || p != PeriodAll {
		t.Fatalf("ParsePeriod(\"\") = %q, %v", p, err)
	}
	if p, err := ParsePeriod("Month"); err != nil || p != PeriodMonth {
		t.Fatalf("ParsePeriod(Month) = %q, %v", p, err)
	}
	if _, err := ParsePeriod("week"); err == nil {
		t.Fatal("week should be rejected")
	}
	if s, err := ParseScope("circle"); err != nil || s != ScopeCircle {
		t.Fatalf("ParseScope(circle) = %q, %v", s, err)
	}
	if _, err := ParseScope("friends"); err == nil {
		t.Fatal("friends should be rejected")
	}
}

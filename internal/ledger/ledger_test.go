package ledger

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/pokernight/internal/model"
)

var now = time.Date(2026, 3, 14, 21, 0, 0, 0, time.UTC)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func chips(n int64) *int64 { return &n }

func paid(b bool) *bool { return &b }

func newSession(buyIn string, perBuyIn int64, status model.Status) model.Session {
	return model.Session{ID: 1, Name: "friday", BuyInAmount: d(buyIn), ChipsPerBuyIn: perBuyIn, Status: status, HostID: 100}
}

// seat returns n participants with one buy-in each; ids 1..n, users 100..
func seat(s model.Session, n int) []model.Participant {
	ps := make([]model.Participant, n)
	for i := range ps {
		ps[i] = model.Participant{
			ID:           uint64(i + 1),
			SessionID:    s.ID,
			UserID:       uint64(100 + i),
			TotalBuyIns:  1,
			TotalMoneyIn: s.BuyInAmount,
		}
	}
	return ps
}

func TestCurrentChips(t *testing.T) {
	s := newSession("20", 100, model.StatusActive)
	p := model.Participant{TotalBuyIns: 3}

	if got := CurrentChips(s, p); got != 300 {
		t.Errorf("Expected 300 chips for 3 buy-ins, got %d", got)
	}
	p.ChipsOut = chips(42)
	if got := CurrentChips(s, p); got != 42 {
		t.Errorf("Expected recorded chips_out 42, got %d", got)
	}
}

func TestChipValueZeroChips(t *testing.T) {
	s := newSession("20", 100, model.StatusActive)

	if v := ChipValue(s, nil); !v.IsZero() {
		t.Errorf("Expected 0 for an empty session, got %s", v)
	}
	ps := seat(s, 2)
	ps[0].ChipsOut = chips(0)
	ps[1].ChipsOut = chips(0)
	if v := ChipValue(s, ps); !v.IsZero() {
		t.Errorf("Expected 0 when every stack is empty, got %s", v)
	}
}

func TestRecordBuyIn(t *testing.T) {
	s := newSession("20", 100, model.StatusActive)
	ps := seat(s, 2)

	tx, err := RecordBuyIn(s, &ps[0], now)
	if err != nil {
		t.Fatalf("RecordBuyIn: %v", err)
	}
	if ps[0].TotalBuyIns != 2 || !ps[0].TotalMoneyIn.Equal(d("40")) {
		t.Errorf("Expected 2 buy-ins / 40 in, got %d / %s", ps[0].TotalBuyIns, ps[0].TotalMoneyIn)
	}
	if ps[0].ChipsOut != nil || ps[0].CashOut != nil {
		t.Errorf("Expected chips_out and cash_out to stay nil after a buy-in")
	}
	if tx.Type != model.TxBuyIn || tx.Chips != 100 || !tx.Amount.Equal(d("20")) || tx.ParticipantID != 1 {
		t.Errorf("Unexpected transaction %+v", tx)
	}
	if ps[1].TotalBuyIns != 1 {
		t.Errorf("Expected other players untouched, got %d buy-ins", ps[1].TotalBuyIns)
	}

	t.Run("not active", func(t *testing.T) {
		pending := newSession("20", 100, model.StatusPending)
		p := seat(pending, 1)[0]
		if _, err := RecordBuyIn(pending, &p, now); !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("Expected ErrInvalidTransition, got %v", err)
		}
		if p.TotalBuyIns != 1 {
			t.Errorf("Expected no mutation on rejection")
		}
	})

	t.Run("already exited", func(t *testing.T) {
		p := seat(s, 1)[0]
		at := now
		p.ExitedAt = &at
		p.ChipsOut = chips(10)
		if _, err := RecordBuyIn(s, &p, now); !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("Expected ErrInvalidTransition, got %v", err)
		}
	})
}

func TestRecordCashOutUsesLiveRatio(t *testing.T) {
	s := newSession("50", 100, model.StatusActive)
	ps := seat(s, 3)

	// A leaves with 250 while B and C are assumed to hold 100 each.
	tx, err := RecordCashOut(s, ps, 1, 250, now)
	if err != nil {
		t.Fatalf("RecordCashOut: %v", err)
	}
	want := d("150").Div(d("450")).Mul(d("250"))
	if !ps[0].CashOut.Equal(want) {
		t.Errorf("Expected cash_out %s, got %s", want, ps[0].CashOut)
	}
	if *ps[0].ChipsOut != 250 || ps[0].ExitedAt == nil || !ps[0].ExitedAt.Equal(now) {
		t.Errorf("Expected chips_out 250 and exited_at set, got %+v", ps[0])
	}
	if tx.Type != model.TxCashOut || tx.Chips != 250 || !tx.Amount.Equal(want) {
		t.Errorf("Unexpected transaction %+v", tx)
	}

	// B now sees a ratio that includes A's frozen 250.
	if _, err := RecordCashOut(s, ps, 2, 50, now); err != nil {
		t.Fatalf("RecordCashOut B: %v", err)
	}
	wantB := d("150").Div(d("400")).Mul(d("50"))
	if !ps[1].CashOut.Equal(wantB) {
		t.Errorf("Expected B cash_out %s, got %s", wantB, ps[1].CashOut)
	}
}

func TestRecordCashOutRejections(t *testing.T) {
	s := newSession("20", 100, model.StatusActive)

	cases := []struct {
		name  string
		sess  model.Session
		id    uint64
		chips int64
		want  error
	}{
		{"negative chips", s, 1, -1, ErrInvalidInput},
		{"unknown player", s, 99, 10, ErrNotFound},
		{"pending session", newSession("20", 100, model.StatusPending), 1, 10, ErrInvalidTransition},
		{"finished session", newSession("20", 100, model.StatusFinished), 1, 10, ErrInvalidTransition},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ps := seat(tc.sess, 2)
			if _, err := RecordCashOut(tc.sess, ps, tc.id, tc.chips, now); !errors.Is(err, tc.want) {
				t.Errorf("Expected %v, got %v", tc.want, err)
			}
			if ps[0].Exited() {
				t.Errorf("Expected no mutation on rejection")
			}
		})
	}

	t.Run("double cash-out", func(t *testing.T) {
		ps := seat(s, 2)
		if _, err := RecordCashOut(s, ps, 1, 80, now); err != nil {
			t.Fatalf("first cash-out: %v", err)
		}
		first := *ps[0].CashOut
		if _, err := RecordCashOut(s, ps, 1, 120, now); !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("Expected ErrInvalidTransition, got %v", err)
		}
		if *ps[0].ChipsOut != 80 || !ps[0].CashOut.Equal(first) {
			t.Errorf("Expected first cash-out to stand, got %+v", ps[0])
		}
	})
}

package ledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/pokernight/internal/model"
)

// Mode selects how cash-outs taken before the session ends are valued.
type Mode string

const (
	// ModeLive values each cash-out with the ratio at the moment it is
	// recorded.  Finish only values players still seated or overridden.
	ModeLive Mode = "live"
	// ModeFrozen treats early cash-outs as provisional and revalues
	// every participant with the single ratio computed at finish.
	ModeFrozen Mode = "frozen"
)

// ParseMode accepts "live" or "frozen" (case-insensitive).  An empty
// string means ModeLive.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeLive:
		return ModeLive, nil
	case ModeFrozen:
		return ModeFrozen, nil
	}
	return "", fmt.Errorf("%w: unknown chip value mode %q", ErrInvalidInput, s)
}

// Override carries host-entered final values for one participant.
// Nil fields leave the participant's data as is.
type Override struct {
	ParticipantID uint64
	ChipsOut      *int64
	MoneyPaid     *bool
}

// FinishResult describes what Finish (or PreviewFinish) did.
type FinishResult struct {
	ChipValue    decimal.Decimal
	Changed      []uint64            // participant ids whose rows must be written
	Transactions []model.Transaction // cash_out entries to append
}

// Finish closes an active session.  Final chip counts are resolved per
// participant (override, then recorded ChipsOut, then the full buy-in
// stack), the chip value is computed once over all of them, and every
// participant still seated or overridden is cashed out with it.  On
// error nothing in s or ps has been modified.
func Finish(s *model.Session, ps []model.Participant, overrides []Override, mode Mode, now time.Time) (FinishResult, error) {
	if s.Status != model.StatusActive {
		return FinishResult{}, fmt.Errorf("%w: session is %s, only an active session can be finished", ErrInvalidTransition, s.Status)
	}
	res, err := settle(*s, ps, overrides, mode, now)
	if err != nil {
		return FinishResult{}, err
	}
	s.Status = model.StatusFinished
	at := now
	s.FinishedAt = &at
	return res, nil
}

// PreviewFinish runs the finish computation on copies and returns the
// participants as they would look afterwards.  Neither s nor ps is
// touched.
func PreviewFinish(s model.Session, ps []model.Participant, overrides []Override, mode Mode, now time.Time) ([]model.Participant, FinishResult, error) {
	if s.Status != model.StatusActive {
		return nil, FinishResult{}, fmt.Errorf("%w: session is %s, only an active session can be previewed", ErrInvalidTransition, s.Status)
	}
	cp := cloneAll(ps)
	res, err := settle(s, cp, overrides, mode, now)
	if err != nil {
		return nil, FinishResult{}, err
	}
	return cp, res, nil
}

func settle(s model.Session, ps []model.Participant, overrides []Override, mode Mode, now time.Time) (FinishResult, error) {
	byID, err := indexOverrides(ps, overrides)
	if err != nil {
		return FinishResult{}, err
	}

	resolved := make([]int64, len(ps))
	money := decimal.Zero
	var chips int64
	for i, p := range ps {
		resolved[i] = CurrentChips(s, p)
		if ov, ok := byID[p.ID]; ok && ov.ChipsOut != nil {
			resolved[i] = *ov.ChipsOut
		}
		money = money.Add(p.TotalMoneyIn)
		chips += resolved[i]
	}
	value := ratio(money, chips)

	res := FinishResult{ChipValue: value}
	for i := range ps {
		p := &ps[i]
		ov, hasOv := byID[p.ID]
		cash := value.Mul(decimal.NewFromInt(resolved[i]))

		revalue := !p.Exited()
		if hasOv && ov.ChipsOut != nil && (p.ChipsOut == nil || *p.ChipsOut != *ov.ChipsOut) {
			revalue = true
		}
		if mode == ModeFrozen && (p.CashOut == nil || !p.CashOut.Equal(cash)) {
			revalue = true
		}

		changed := false
		if revalue {
			c := resolved[i]
			p.ChipsOut = &c
			p.CashOut = &cash
			if p.ExitedAt == nil {
				at := now
				p.ExitedAt = &at
			}
			res.Transactions = append(res.Transactions, model.Transaction{
				ParticipantID: p.ID,
				Type:          model.TxCashOut,
				Chips:         c,
				Amount:        cash,
				CreatedAt:     now,
			})
			changed = true
		}
		if hasOv && ov.MoneyPaid != nil && *ov.MoneyPaid != p.MoneyPaid {
			p.MoneyPaid = *ov.MoneyPaid
			changed = true
		}
		if changed {
			res.Changed = append(res.Changed, p.ID)
		}
	}
	return res, nil
}

// indexOverrides validates every override before anything is mutated.
func indexOverrides(ps []model.Participant, overrides []Override) (map[uint64]Override, error) {
	known := make(map[uint64]bool, len(ps))
	for _, p := range ps {
		known[p.ID] = true
	}
	out := make(map[uint64]Override, len(overrides))
	for _, ov := range overrides {
		if !known[ov.ParticipantID] {
			return nil, fmt.Errorf("%w: player %d is not in this session", ErrInvalidInput, ov.ParticipantID)
		}
		if _, dup := out[ov.ParticipantID]; dup {
			return nil, fmt.Errorf("%w: player %d listed twice", ErrInvalidInput, ov.ParticipantID)
		}
		if ov.ChipsOut != nil && *ov.ChipsOut < 0 {
			return nil, fmt.Errorf("%w: chips_out for player %d must be >= 0", ErrInvalidInput, ov.ParticipantID)
		}
		out[ov.ParticipantID] = ov
	}
	return out, nil
}

func cloneAll(ps []model.Participant) []model.Participant {
	out := make([]model.Participant, len(ps))
	for i, p := range ps {
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
		out[i] = p
	}
	return out
}

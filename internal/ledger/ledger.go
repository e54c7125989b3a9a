package ledger

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/pokernight/internal/model"
)

// CurrentChips returns the participant's chip count: the recorded
// ChipsOut once exited, otherwise every purchased chip is assumed to
// still be in play.
func CurrentChips(s model.Session, p model.Participant) int64 {
	if p.ChipsOut != nil {
		return *p.ChipsOut
	}
	return p.TotalBuyIns * s.ChipsPerBuyIn
}

// ChipValue is total money in divided by total chips across all
// participants.  It is zero when there are no chips, which only
// happens for an empty or fully busted session.
func ChipValue(s model.Session, ps []model.Participant) decimal.Decimal {
	money := decimal.Zero
	var chips int64
	for _, p := range ps {
		money = money.Add(p.TotalMoneyIn)
		chips += CurrentChips(s, p)
	}
	return ratio(money, chips)
}

func ratio(money decimal.Decimal, chips int64) decimal.Decimal {
	if chips == 0 {
		return decimal.Zero
	}
	return money.Div(decimal.NewFromInt(chips))
}

// RecordBuyIn adds one buy-in unit to p and returns the log entry to
// append.  Only p is touched.
func RecordBuyIn(s model.Session, p *model.Participant, now time.Time) (model.Transaction, error) {
	if s.Status != model.StatusActive {
		return model.Transaction{}, fmt.Errorf("%w: session is %s, buy-ins need an active session", ErrInvalidTransition, s.Status)
	}
	if p.Exited() {
		return model.Transaction{}, fmt.Errorf("%w: player %d already cashed out", ErrInvalidTransition, p.ID)
	}
	p.TotalBuyIns++
	p.TotalMoneyIn = p.TotalMoneyIn.Add(s.BuyInAmount)
	return model.Transaction{
		ParticipantID: p.ID,
		Type:          model.TxBuyIn,
		Chips:         s.ChipsPerBuyIn,
		Amount:        s.BuyInAmount,
		CreatedAt:     now,
	}, nil
}

// RecordCashOut exits participant id with the given final chip count.
// The chip value is taken from the current state of every participant,
// including this one's new count, so players cashing out later in the
// same session can see a different value.  ps is modified in place.
func RecordCashOut(s model.Session, ps []model.Participant, id uint64, chipsOut int64, now time.Time) (model.Transaction, error) {
	if chipsOut < 0 {
		return model.Transaction{}, fmt.Errorf("%w: chips_out must be >= 0", ErrInvalidInput)
	}
	if s.Status != model.StatusActive {
		return model.Transaction{}, fmt.Errorf("%w: session is %s, cash-outs need an active session", ErrInvalidTransition, s.Status)
	}
	p := find(ps, id)
	if p == nil {
		return model.Transaction{}, fmt.Errorf("%w: player %d", ErrNotFound, id)
	}
	if p.Exited() {
		return model.Transaction{}, fmt.Errorf("%w: player %d already cashed out", ErrInvalidTransition, id)
	}
	chips := chipsOut
	p.ChipsOut = &chips
	value := ChipValue(s, ps)
	cash := value.Mul(decimal.NewFromInt(chipsOut))
	at := now
	p.CashOut = &cash
	p.ExitedAt = &at
	return model.Transaction{
		ParticipantID: p.ID,
		Type:          model.TxCashOut,
		Chips:         chipsOut,
		Amount:        cash,
		CreatedAt:     now,
	}, nil
}

func find(ps []model.Participant, id uint64) *model.Participant {
	for i := range ps {
		if ps[i].ID == id {
			return &ps[i]
		}
	}
	return nil
}

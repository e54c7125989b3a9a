package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/pokernight/internal/ledger"
	"github.com/iliyamo/pokernight/internal/model"
	"github.com/iliyamo/pokernight/internal/queue"
	"github.com/iliyamo/pokernight/internal/settlement"
)

// FinishOutcome is the ledger after a (real or previewed) finish and
// the payment plan derived from it.
type FinishOutcome struct {
	Session      model.Session       `json:"session"`
	ChipValue    decimal.Decimal     `json:"chip_value"`
	Participants []model.Participant `json:"players"`
	Settlement   SettlementView      `json:"settlement"`
}

// SettlementView is a payment plan together with the balances it was
// computed from.
type SettlementView struct {
	Policy     settlement.Policy    `json:"policy"`
	Preview    bool                 `json:"preview"`
	Balances   []settlement.Balance `json:"balances"`
	Payments   []settlement.Payment `json:"payments"`
	Imbalance  decimal.Decimal      `json:"imbalance"`
	Consistent bool                 `json:"consistent"`
}

func buildView(sessionID uint64, ps []model.Participant, policy settlement.Policy, preview bool) SettlementView {
	bs := settlement.Balances(ps, policy)
	v := SettlementView{
		Policy:     policy,
		Preview:    preview,
		Balances:   bs,
		Payments:   settlement.Compute(bs),
		Imbalance:  settlement.Imbalance(bs),
		Consistent: settlement.Consistent(bs),
	}
	// payment-aware balances are expected not to net out
	if policy == settlement.PolicySimple && !v.Consistent {
		log.Printf("settlement: session %d balances do not net out: imbalance=%s players=%d", sessionID, v.Imbalance, len(bs))
	}
	return v
}

// Finish closes an active session with the host's final counts and
// publishes the result once it is committed.
func (s *Sessions) Finish(ctx context.Context, actorID, id uint64, overrides []ledger.Override) (FinishOutcome, error) {
	var out FinishOutcome
	err := s.mutate(ctx, id, func(tx SessionTx) error {
		sess := tx.Session()
		if err := ledger.CanFinish(sess, actorID); err != nil {
			return err
		}
		ps, err := tx.Participants(ctx)
		if err != nil {
			return err
		}
		res, err := ledger.Finish(&sess, ps, overrides, s.mode, s.now())
		if err != nil {
			return err
		}
		changed := make(map[uint64]bool, len(res.Changed))
		for _, pid := range res.Changed {
			changed[pid] = true
		}
		for _, p := range ps {
			if !changed[p.ID] {
				continue
			}
			if err := tx.UpdateParticipant(ctx, p); err != nil {
				return err
			}
		}
		for i := range res.Transactions {
			if err := tx.InsertTransaction(ctx, &res.Transactions[i]); err != nil {
				return err
			}
		}
		if err := tx.UpdateSession(ctx, sess); err != nil {
			return err
		}
		out = FinishOutcome{
			Session:      sess,
			ChipValue:    res.ChipValue,
			Participants: ps,
			Settlement:   buildView(sess.ID, ps, s.policy, false),
		}
		return nil
	})
	if err != nil {
		return FinishOutcome{}, err
	}

	ev := finishedEvent(out)
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if s.after != nil {
		if err := s.after(pctx, ev); err != nil {
			log.Printf("finish: session %d after-finish hook: %v", id, err)
		}
	}
	if err := s.pub.PublishSessionFinished(pctx, ev); err != nil {
		log.Printf("finish: session %d committed but event not published: %v", id, err)
	}
	return out, nil
}

func finishedEvent(o FinishOutcome) queue.SessionFinishedEvent {
	ev := queue.SessionFinishedEvent{
		SessionID:   o.Session.ID,
		SessionName: o.Session.Name,
		HostID:      o.Session.HostID,
		ChipValue:   o.ChipValue,
		Policy:      string(o.Settlement.Policy),
		Settlements: o.Settlement.Payments,
	}
	if o.Session.FinishedAt != nil {
		ev.FinishedAt = o.Session.FinishedAt.UTC().Format(time.RFC3339)
	}
	for _, p := range o.Participants {
		r := queue.PlayerResult{
			PlayerID: p.ID,
			UserID:   p.UserID,
			Name:     p.User.Name,
			MoneyIn:  p.TotalMoneyIn,
			CashOut:  decimal.Zero,
			Paid:     p.MoneyPaid,
		}
		if p.ChipsOut != nil {
			r.ChipsOut = *p.ChipsOut
		}
		if p.CashOut != nil {
			r.CashOut = *p.CashOut
		}
		ev.Players = append(ev.Players, r)
	}
	return ev
}

// PreviewFinish shows what Finish would produce without writing
// anything.  policy overrides the configured settlement policy when
// non-empty.
func (s *Sessions) PreviewFinish(ctx context.Context, actorID, id uint64, overrides []ledger.Override, policy string) (FinishOutcome, error) {
	pol, err := settlement.ParsePolicy(policy, s.policy)
	if err != nil {
		return FinishOutcome{}, fmt.Errorf("%w: %v", ledger.ErrInvalidInput, err)
	}
	var out FinishOutcome
	err = s.store.WithinSession(ctx, id, func(tx SessionTx) error {
		sess := tx.Session()
		if err := ledger.CanFinish(sess, actorID); err != nil {
			return err
		}
		ps, err := tx.Participants(ctx)
		if err != nil {
			return err
		}
		after, res, err := ledger.PreviewFinish(sess, ps, overrides, s.mode, s.now())
		if err != nil {
			return err
		}
		out = FinishOutcome{
			Session:      sess,
			ChipValue:    res.ChipValue,
			Participants: after,
			Settlement:   buildView(sess.ID, after, pol, true),
		}
		return nil
	})
	return out, err
}

// Settlements returns the payment plan for a session.  A finished
// session is settled from its recorded cash-outs; an active one from a
// preview that assumes every seated player keeps their full stack.
func (s *Sessions) Settlements(ctx context.Context, id uint64, policy string) (SettlementView, error) {
	pol, err := settlement.ParsePolicy(policy, s.policy)
	if err != nil {
		return SettlementView{}, fmt.Errorf("%w: %v", ledger.ErrInvalidInput, err)
	}
	sess, err := s.store.GetSession(ctx, id)
	if err != nil {
		return SettlementView{}, err
	}
	ps, err := s.store.Participants(ctx, id)
	if err != nil {
		return SettlementView{}, err
	}
	switch sess.Status {
	case model.StatusFinished:
		return buildView(id, ps, pol, false), nil
	case model.StatusActive:
		after, _, err := ledger.PreviewFinish(sess, ps, nil, s.mode, s.now())
		if err != nil {
			return SettlementView{}, err
		}
		return buildView(id, after, pol, true), nil
	}
	return SettlementView{}, fmt.Errorf("%w: session has not started", ledger.ErrInvalidTransition)
}

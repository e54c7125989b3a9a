package memrepo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/pokernight/internal/ledger"
	"github.com/iliyamo/pokernight/internal/model"
	"github.com/iliyamo/pokernight/internal/repository"
	"github.com/iliyamo/pokernight/internal/service"
)

func seed(t *testing.T) (*Store, model.Session, model.Participant) {
	t.Helper()
	ctx := context.Background()
	s := New()
	u := model.User{Email: "Ann@Example.com", Name: "ann"}
	if err := s.Create(ctx, &u); err != nil {
		t.Fatal(err)
	}
	sess := model.Session{Name: "friday", BuyInAmount: decimal.NewFromInt(20), ChipsPerBuyIn: 100, Status: model.StatusPending, HostID: u.ID, CreatedAt: time.Now()}
	host := model.Participant{UserID: u.ID, TotalBuyIns: 1, TotalMoneyIn: decimal.NewFromInt(20)}
	if err := s.CreateSession(ctx, &sess, &host); err != nil {
		t.Fatal(err)
	}
	return s, sess, host
}

func TestUsers(t *testing.T) {
	s, _, _ := seed(t)
	ctx := context.Background()
	u, err := s.GetByEmail(ctx, "ann@example.com")
	if err != nil || u.Name != "ann" {
		t.Fatalf("GetByEmail = %+v, %v", u, err)
	}
	dup := model.User{Email: "ANN@example.com", Name: "other"}
	if err := s.Create(ctx, &dup); !errors.Is(err, repository.ErrEmailExists) {
		t.Fatalf("duplicate email: %v", err)
	}
	if _, err := s.GetByID(ctx, 99); !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("GetByID(99): %v", err)
	}
}

func TestWithinSessionDiscardsOnError(t *testing.T) {
	s, sess, host := seed(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.WithinSession(ctx, sess.ID, func(tx service.SessionTx) error {
		p := host
		p.TotalBuyIns = 5
		if err := tx.UpdateParticipant(ctx, p); err != nil {
			return err
		}
		if err := tx.InsertTransaction(ctx, &model.Transaction{ParticipantID: host.ID, Type: model.TxBuyIn}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("want boom, got %v", err)
	}
	ps, _ := s.Participants(ctx, sess.ID)
	if ps[0].TotalBuyIns != 1 {
		t.Fatalf("staged update leaked: %d buy-ins", ps[0].TotalBuyIns)
	}
	if txns, _ := s.Transactions(ctx, sess.ID); len(txns) != 0 {
		t.Fatalf("staged transaction leaked: %d rows", len(txns))
	}
}

func TestWithinSessionCommits(t *testing.T) {
	s, sess, host := seed(t)
	ctx := context.Background()

	err := s.WithinSession(ctx, sess.ID, func(tx service.SessionTx) error {
		st := tx.Session()
		st.Status = model.StatusActive
		if err := tx.UpdateSession(ctx, st); err != nil {
			return err
		}
		dup := model.Participant{UserID: host.UserID}
		if err := tx.InsertParticipant(ctx, &dup); !errors.Is(err, ledger.ErrInvalidInput) {
			t.Errorf("duplicate seat: %v", err)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	got, _ := s.GetSession(ctx, sess.ID)
	if got.Status != model.StatusActive {
		t.Fatalf("status = %s", got.Status)
	}
	if err := s.WithinSession(ctx, 999, func(service.SessionTx) error { return nil }); !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("unknown session: %v", err)
	}
}

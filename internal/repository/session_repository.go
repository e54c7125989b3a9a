package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/pokernight/internal/ledger"
	"github.com/iliyamo/pokernight/internal/model"
	"github.com/iliyamo/pokernight/internal/service"
)

// SessionRepo stores sessions, their participants (session_players)
// and the append-only session_transactions log.  Money columns are
// DECIMAL(20,8) and scan straight into decimal.Decimal.
type SessionRepo struct {
	db *sql.DB
}

// NewSessionRepo returns a new SessionRepo bound to the given database.
func NewSessionRepo(db *sql.DB) *SessionRepo { return &SessionRepo{db: db} }

var _ service.Store = (*SessionRepo)(nil)

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const sessionCols = `s.id, s.name, s.buy_in_amount, s.chips_per_buy_in, s.status, s.host_id, s.created_at, s.finished_at`

type scanner interface{ Scan(dest ...any) error }

func scanSession(row scanner) (model.Session, error) {
	var (
		s        model.Session
		status   string
		finished sql.NullTime
	)
	if err := row.Scan(&s.ID, &s.Name, &s.BuyInAmount, &s.ChipsPerBuyIn, &status, &s.HostID, &s.CreatedAt, &finished); err != nil {
		return model.Session{}, err
	}
	s.Status = model.Status(status)
	if finished.Valid {
		t := finished.Time
		s.FinishedAt = &t
	}
	return s, nil
}

// CreateSession inserts the session and the host's seat in one
// transaction.
func (r *SessionRepo) CreateSession(ctx context.Context, s *model.Session, host *model.Participant) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO sessions (name, buy_in_amount, chips_per_buy_in, status, host_id, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		s.Name, s.BuyInAmount, s.ChipsPerBuyIn, string(s.Status), s.HostID, s.CreatedAt)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	s.ID = uint64(id)
	host.SessionID = s.ID
	if err := insertParticipant(ctx, tx, host); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

func (r *SessionRepo) GetSession(ctx context.Context, id uint64) (model.Session, error) {
	return getSession(ctx, r.db, id, false)
}

func getSession(ctx context.Context, q queryer, id uint64, forUpdate bool) (model.Session, error) {
	query := `SELECT ` + sessionCols + ` FROM sessions s WHERE s.id = ?`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	s, err := scanSession(q.QueryRowContext(ctx, query, id))
	return s, notFound(err, "session", id)
}

// ListSessions returns the sessions userID hosts or sits in, newest
// first.
func (r *SessionRepo) ListSessions(ctx context.Context, userID uint64, status model.Status) ([]model.Session, error) {
	query := `SELECT ` + sessionCols + ` FROM sessions s
		WHERE (s.host_id = ? OR EXISTS (SELECT 1 FROM session_players sp WHERE sp.session_id = s.id AND sp.user_id = ?))`
	args := []any{userID, userID}
	if status != "" {
		query += ` AND s.status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY s.created_at DESC, s.id DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *SessionRepo) Participants(ctx context.Context, sessionID uint64) ([]model.Participant, error) {
	return listParticipants(ctx, r.db, sessionID)
}

func listParticipants(ctx context.Context, q queryer, sessionID uint64) ([]model.Participant, error) {
	const query = `SELECT sp.id, sp.session_id, sp.user_id, u.name, u.email,
			sp.total_buy_ins, sp.total_money_in, sp.chips_out, sp.cash_out,
			sp.money_paid, sp.exited_at, sp.joined_at
		FROM session_players sp
		JOIN users u ON u.id = sp.user_id
		WHERE sp.session_id = ?
		ORDER BY sp.id`
	rows, err := q.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Participant
	for rows.Next() {
		var (
			p        model.Participant
			chipsOut sql.NullInt64
			cashOut  decimal.NullDecimal
			exitedAt sql.NullTime
		)
		if err := rows.Scan(&p.ID, &p.SessionID, &p.UserID, &p.User.Name, &p.User.Email,
			&p.TotalBuyIns, &p.TotalMoneyIn, &chipsOut, &cashOut,
			&p.MoneyPaid, &exitedAt, &p.JoinedAt); err != nil {
			return nil, err
		}
		p.User.ID = p.UserID
		if chipsOut.Valid {
			c := chipsOut.Int64
			p.ChipsOut = &c
		}
		if cashOut.Valid {
			c := cashOut.Decimal
			p.CashOut = &c
		}
		if exitedAt.Valid {
			t := exitedAt.Time
			p.ExitedAt = &t
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Transactions lists the session's log, oldest first.
func (r *SessionRepo) Transactions(ctx context.Context, sessionID uint64) ([]model.Transaction, error) {
	const query = `SELECT t.id, t.player_id, t.type, t.chips, t.amount, t.created_at
		FROM session_transactions t
		JOIN session_players sp ON sp.id = t.player_id
		WHERE sp.session_id = ?
		ORDER BY t.id`
	rows, err := r.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Transaction
	for rows.Next() {
		var (
			t  model.Transaction
			tt string
		)
		if err := rows.Scan(&t.ID, &t.ParticipantID, &tt, &t.Chips, &t.Amount, &t.CreatedAt); err != nil {
			return nil, err
		}
		t.Type = model.TxType(tt)
		out = append(out, t)
	}
	return out, rows.Err()
}

// WithinSession opens a transaction, locks the session row with
// SELECT ... FOR UPDATE and hands fn a SessionTx bound to it.  The
// row lock serialises ledger mutations across API instances even
// without the Redis lock.
func (r *SessionRepo) WithinSession(ctx context.Context, sessionID uint64, fn func(tx service.SessionTx) error) error {
	// read committed: participant reads after the row lock must see the
	// previous holder's commit
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	s, err := getSession(ctx, tx, sessionID, true)
	if err != nil {
		return err
	}
	if err := fn(&sessionTx{tx: tx, session: s}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

type sessionTx struct {
	tx      *sql.Tx
	session model.Session
}

func (t *sessionTx) Session() model.Session { return t.session }

func (t *sessionTx) Participants(ctx context.Context) ([]model.Participant, error) {
	return listParticipants(ctx, t.tx, t.session.ID)
}

// UpdateSession writes the mutable columns.  Buy-in price, chips per
// buy-in and host never change after creation.
func (t *sessionTx) UpdateSession(ctx context.Context, s model.Session) error {
	if s.ID != t.session.ID {
		return fmt.Errorf("%w: session %d outside this transaction", ledger.ErrInvalidInput, s.ID)
	}
	if _, err := t.tx.ExecContext(ctx,
		`UPDATE sessions SET status = ?, finished_at = ? WHERE id = ?`,
		string(s.Status), nullTime(s.FinishedAt), s.ID); err != nil {
		return err
	}
	t.session = s
	return nil
}

func (t *sessionTx) InsertParticipant(ctx context.Context, p *model.Participant) error {
	p.SessionID = t.session.ID
	return insertParticipant(ctx, t.tx, p)
}

func insertParticipant(ctx context.Context, q queryer, p *model.Participant) error {
	res, err := q.ExecContext(ctx,
		`INSERT INTO session_players (session_id, user_id, total_buy_ins, total_money_in, money_paid, joined_at) VALUES (?, ?, ?, ?, ?, ?)`,
		p.SessionID, p.UserID, p.TotalBuyIns, p.TotalMoneyIn, p.MoneyPaid, p.JoinedAt)
	if err != nil {
		if isDuplicate(err) {
			return fmt.Errorf("%w: user %d already plays in session %d", ledger.ErrInvalidInput, p.UserID, p.SessionID)
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = uint64(id)
	return nil
}

func (t *sessionTx) UpdateParticipant(ctx context.Context, p model.Participant) error {
	var cash any
	if p.CashOut != nil {
		cash = *p.CashOut
	}
	var chips any
	if p.ChipsOut != nil {
		chips = *p.ChipsOut
	}
	res, err := t.tx.ExecContext(ctx,
		`UPDATE session_players SET total_buy_ins = ?, total_money_in = ?, chips_out = ?, cash_out = ?, money_paid = ?, exited_at = ?
		 WHERE id = ? AND session_id = ?`,
		p.TotalBuyIns, p.TotalMoneyIn, chips, cash, p.MoneyPaid, nullTime(p.ExitedAt), p.ID, t.session.ID)
	if err != nil {
		return err
	}
	return mustAffect(res, "player", p.ID)
}

func (t *sessionTx) DeleteParticipant(ctx context.Context, id uint64) error {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM session_players WHERE id = ? AND session_id = ?`, id, t.session.ID)
	if err != nil {
		return err
	}
	return mustAffect(res, "player", id)
}

// InsertTransaction appends to the log.  The log has no update or
// delete.
func (t *sessionTx) InsertTransaction(ctx context.Context, txn *model.Transaction) error {
	res, err := t.tx.ExecContext(ctx,
		`INSERT INTO session_transactions (player_id, type, chips, amount, created_at) VALUES (?, ?, ?, ?, ?)`,
		txn.ParticipantID, string(txn.Type), txn.Chips, txn.Amount, txn.CreatedAt)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	txn.ID = uint64(id)
	return nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// mustAffect turns a no-op UPDATE/DELETE into ErrNotFound.  The DSN
// sets clientFoundRows so unchanged-but-matched rows still count.
func mustAffect(res sql.Result, what string, id uint64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s %d", ledger.ErrNotFound, what, id)
	}
	return nil
}

package repository

import (
	"context"
	"database/sql"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/pokernight/internal/stats"
)

// StatsRows returns one row per participant of every finished
// session, optionally narrowed to one user.
func (r *SessionRepo) StatsRows(ctx context.Context, userID uint64) ([]stats.Row, error) {
	query := `SELECT s.id, s.name, sp.user_id, u.name, sp.total_money_in, sp.cash_out, s.created_at, s.finished_at
		FROM session_players sp
		JOIN sessions s ON s.id = sp.session_id
		JOIN users u ON u.id = sp.user_id
		WHERE s.status = 'finished'`
	var args []any
	if userID != 0 {
		query += ` AND sp.user_id = ?`
		args = append(args, userID)
	}
	query += ` ORDER BY s.id, sp.user_id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []stats.Row
	for rows.Next() {
		var (
			row      stats.Row
			cashOut  decimal.NullDecimal
			finished sql.NullTime
		)
		if err := rows.Scan(&row.SessionID, &row.SessionName, &row.UserID, &row.UserName,
			&row.TotalMoneyIn, &cashOut, &row.CreatedAt, &finished); err != nil {
			return nil, err
		}
		if cashOut.Valid {
			c := cashOut.Decimal
			row.CashOut = &c
		}
		if finished.Valid {
			t := finished.Time
			row.FinishedAt = &t
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// Memberships lists every seat in every session userID sits in,
// whatever the session's status.
func (r *SessionRepo) Memberships(ctx context.Context, userID uint64) ([]stats.Membership, error) {
	const query = `SELECT other.session_id, other.user_id
		FROM session_players me
		JOIN session_players other ON other.session_id = me.session_id
		WHERE me.user_id = ?`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []stats.Membership
	for rows.Next() {
		var m stats.Membership
		if err := rows.Scan(&m.SessionID, &m.UserID); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

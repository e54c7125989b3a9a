// Package settlement turns per-participant net balances into a list of
// directed payments.
//
// The matcher is greedy: it repeatedly pairs the largest debtor with
// the largest creditor.  That yields at most n-1 payments for n
// non-zero balances but is not guaranteed to reach the global minimum
// number of payments (an NP-hard subset-sum problem).  For home games
// of two to ten players the difference is rarely more than one
// payment.
package settlement

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/pokernight/internal/model"
)

// Tolerance is the smallest amount worth a payment.  Residues below it
// are treated as rounding noise and dropped.
var Tolerance = decimal.RequireFromString("0.01")

// Policy selects how a participant's balance is derived from ledger
// rows.
type Policy string

const (
	// PolicySimple assumes everyone already handed over their buy-ins:
	// balance = cashOut - totalMoneyIn.
	PolicySimple Policy = "simple"
	// PolicyPaymentAware charges unpaid buy-ins in full:
	// balance = cashOut - (moneyPaid ? totalMoneyIn : 0).
	PolicyPaymentAware Policy = "payment_aware"
)

// ParsePolicy accepts "simple" or "payment_aware".  An empty string
// yields def.
func ParsePolicy(s string, def Policy) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return def, nil
	case PolicySimple, PolicyPaymentAware:
		return p, nil
	}
	return "", fmt.Errorf("unknown settlement policy %q", s)
}

// Balance is money owed to (positive) or by (negative) one user.
type Balance struct {
	UserID uint64          `json:"user_id"`
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"balance"`
}

// Payment is one directed settlement instruction.
type Payment struct {
	FromUserID uint64          `json:"from"`
	FromName   string          `json:"from_name"`
	ToUserID   uint64          `json:"to"`
	ToName     string          `json:"to_name"`
	Amount     decimal.Decimal `json:"amount"`
}

// Balances derives one balance per participant under policy.  A
// participant without a cash-out counts as cashing out zero.
func Balances(ps []model.Participant, policy Policy) []Balance {
	out := make([]Balance, 0, len(ps))
	for _, p := range ps {
		cash := decimal.Zero
		if p.CashOut != nil {
			cash = *p.CashOut
		}
		owed := p.TotalMoneyIn
		if policy == PolicyPaymentAware && !p.MoneyPaid {
			owed = decimal.Zero
		}
		out = append(out, Balance{UserID: p.UserID, Name: p.User.Name, Amount: cash.Sub(owed)})
	}
	return out
}

// Imbalance returns the sum of all balances.  Under PolicySimple a
// finished session sums to zero by construction.
func Imbalance(bs []Balance) decimal.Decimal {
	sum := decimal.Zero
	for _, b := range bs {
		sum = sum.Add(b.Amount)
	}
	return sum
}

// Consistent reports whether bs sums to zero within Tolerance per
// balance.
func Consistent(bs []Balance) bool {
	limit := Tolerance.Mul(decimal.NewFromInt(int64(len(bs))))
	return Imbalance(bs).Abs().LessThanOrEqual(limit)
}

// Compute matches debtors against creditors, largest first.  The input
// slice is not modified.
func Compute(bs []Balance) []Payment {
	var debtors, creditors []Balance
	for _, b := range bs {
		switch {
		case b.Amount.IsNegative():
			debtors = append(debtors, b)
		case b.Amount.IsPositive():
			creditors = append(creditors, b)
		}
	}
	sort.SliceStable(debtors, func(i, j int) bool {
		if c := debtors[i].Amount.Cmp(debtors[j].Amount); c != 0 {
			return c < 0
		}
		return debtors[i].UserID < debtors[j].UserID
	})
	sort.SliceStable(creditors, func(i, j int) bool {
		if c := creditors[i].Amount.Cmp(creditors[j].Amount); c != 0 {
			return c > 0
		}
		return creditors[i].UserID < creditors[j].UserID
	})

	payments := make([]Payment, 0)
	i, j := 0, 0
	for i < len(debtors) && j < len(creditors) {
		debtor, creditor := &debtors[i], &creditors[j]
		amount := decimal.Min(debtor.Amount.Neg(), creditor.Amount)

		if amount.GreaterThan(Tolerance) {
			payments = append(payments, Payment{
				FromUserID: debtor.UserID,
				FromName:   debtor.Name,
				ToUserID:   creditor.UserID,
				ToName:     creditor.Name,
				Amount:     amount,
			})
		}
		debtor.Amount = debtor.Amount.Add(amount)
		creditor.Amount = creditor.Amount.Sub(amount)

		if debtor.Amount.Abs().LessThan(Tolerance) {
			i++
		}
		if creditor.Amount.Abs().LessThan(Tolerance) {
			j++
		}
	}
	return payments
}

// Total sums the payment amounts.
func Total(ps []Payment) decimal.Decimal {
	sum := decimal.Zero
	for _, p := range ps {
		sum = sum.Add(p.Amount)
	}
	return sum
}

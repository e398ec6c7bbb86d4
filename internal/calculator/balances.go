package calculator

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/mmynk/fairkeep/internal/models"
)

// Balance is the signed net between a user and one counterparty in one currency.
// Positive means the counterparty owes the user; negative means the reverse.
type Balance struct {
	CounterpartyID string
	Currency       models.Currency
	Amount         decimal.Decimal
}

type balanceKey struct {
	counterparty string
	currency     models.Currency
}

// Balances nets the given expenses from userID's point of view.
//
// Algorithm:
//   - userID paid: every other user's owed amount is added to that user's entry
//   - someone else paid and userID has a split: userID's owed amount is
//     subtracted from the payer's entry
//   - otherwise the expense contributes nothing
//
// Currencies are never combined. The result is sorted by counterparty, then currency.
func Balances(userID string, expenses []*models.Expense) []Balance {
	totals := make(map[balanceKey]decimal.Decimal)

	for _, e := range expenses {
		owed, order := owedByUser(e.Splits)

		if e.PaidBy == userID {
			for _, uid := range order {
				if uid == userID {
					continue
				}
				key := balanceKey{counterparty: uid, currency: e.Currency}
				totals[key] = totals[key].Add(owed[uid])
			}
			continue
		}

		mine, ok := owed[userID]
		if !ok {
			continue
		}
		key := balanceKey{counterparty: e.PaidBy, currency: e.Currency}
		totals[key] = totals[key].Sub(mine)
	}

	balances := make([]Balance, 0, len(totals))
	for key, amount := range totals {
		balances = append(balances, Balance{
			CounterpartyID: key.counterparty,
			Currency:       key.currency,
			Amount:         amount,
		})
	}
	sort.Slice(balances, func(i, j int) bool {
		if balances[i].CounterpartyID != balances[j].CounterpartyID {
			return balances[i].CounterpartyID < balances[j].CounterpartyID
		}
		return balances[i].Currency < balances[j].Currency
	})

	return balances
}

// PairNet is the amount otherID owes userID in currency, counting only
// direct debts between the two.
//
// Expenses are skipped when they are in another currency, use a full_owed or
// full_owe split, lack a split for either user, or were paid by a third party.
// Earlier settlements between the pair are netted like any other expense.
// Names are never inspected: a settlement is known by its IsSettlement flag,
// so an ordinary expense titled "Settle with ..." still counts and settling
// an already settled pair finds nothing left.
func PairNet(userID, otherID string, currency models.Currency, expenses []*models.Expense) decimal.Decimal {
	net := decimal.Zero

	for _, e := range expenses {
		if e.Currency != currency || e.SplitMethod.FullAmount() {
			continue
		}

		owed, _ := owedByUser(e.Splits)
		mine, hasMine := owed[userID]
		theirs, hasTheirs := owed[otherID]
		if !hasMine || !hasTheirs {
			continue
		}

		switch e.PaidBy {
		case userID:
			net = net.Add(theirs)
		case otherID:
			net = net.Sub(mine)
		}
	}

	return net
}

// owedByUser sums owed amounts per user, tolerating repeated rows for one user.
// order lists users by first appearance.
func owedByUser(splits []models.Split) (map[string]decimal.Decimal, []string) {
	owed := make(map[string]decimal.Decimal, len(splits))
	order := make([]string, 0, len(splits))
	for _, s := range splits {
		if _, seen := owed[s.UserID]; !seen {
			order = append(order, s.UserID)
		}
		owed[s.UserID] = owed[s.UserID].Add(s.OwedAmount)
	}
	return owed, order
}

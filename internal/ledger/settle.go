package ledger

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mmynk/fairkeep/internal/calculator"
	"github.com/mmynk/fairkeep/internal/models"
	"github.com/mmynk/fairkeep/internal/storage"
)

const settlementPrefix = "Settle with "

// Settlement is the result of a successful Settle.
type Settlement struct {
	Amount decimal.Decimal
	// PayerID is the debtor, who pays the settlement expense.
	PayerID string
	Expense *models.Expense
}

// Settle zeroes the direct net between userID and counterpartyID in currency
// by writing a manual expense paid by whoever owes.
//
// Only expenses paid by one of the two count; full_owed and full_owe are
// skipped. Returns ErrNothingToSettle when the net is already zero. A
// non-empty idemKey that userID already used returns the earlier settlement,
// or a ValidationError if the key belongs to another request.
func (s *Service) Settle(ctx context.Context, userID, counterpartyID string, currency models.Currency, idemKey string) (result *Settlement, err error) {
	defer func() { s.metrics.LedgerOp("settle", outcome(err)) }()

	currency = models.Currency(strings.ToUpper(string(currency)))
	if currency == "" {
		return nil, invalid("currency", "is required")
	}
	if !currency.Valid() {
		return nil, invalid("currency", "unknown currency %q", currency)
	}
	if counterpartyID == "" || counterpartyID == userID {
		return nil, invalid("counterparty_id", "must be another user")
	}

	counterparty, err := s.store.GetUserByID(ctx, counterpartyID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, &NotFoundError{Kind: "user", ID: counterpartyID}
	}
	if err != nil {
		return nil, persistence("get user", err)
	}
	visible, err := s.visibility.CanSee(ctx, userID, counterpartyID)
	if err != nil {
		return nil, persistence("check visibility", err)
	}
	if !visible {
		return nil, &NotFoundError{Kind: "user", ID: counterpartyID}
	}

	var (
		expense  *models.Expense
		replayed bool
	)
	err = s.store.WithTx(ctx, func(tx storage.ExpenseTx) error {
		if idemKey != "" {
			previous, err := replay(ctx, tx, userID, idemKey)
			if err != nil {
				return err
			}
			if previous != nil {
				if !settles(previous, userID, counterpartyID, currency) {
					return keyReused()
				}
				expense, replayed = previous, true
				return nil
			}
		}

		pair, err := tx.ListPairExpenses(ctx, userID, counterpartyID, currency)
		if err != nil {
			return err
		}
		net := calculator.PairNet(userID, counterpartyID, currency, pair)
		if net.IsZero() {
			return ErrNothingToSettle
		}

		expense, err = s.settlementExpense(userID, counterparty, currency, net)
		if err != nil {
			return err
		}
		if err := tx.CreateExpense(ctx, expense); err != nil {
			return err
		}
		if idemKey != "" {
			return tx.SaveIdempotencyKey(ctx, userID, idemKey, expense.ID)
		}
		return nil
	})
	if errors.Is(err, ErrNothingToSettle) {
		slog.Info("Nothing to settle", "user_id", userID, "counterparty_id", counterpartyID, "currency", currency)
		return nil, err
	}
	if err != nil {
		slog.Error("Settle failed", "user_id", userID, "counterparty_id", counterpartyID, "error", err)
		return nil, persistence("settle", err)
	}

	result = &Settlement{Amount: expense.Amount, PayerID: expense.PaidBy, Expense: expense}
	if replayed {
		return result, nil
	}

	s.recordActivity(ctx, models.NewActivity(models.ActionSettled, expense, userID))
	s.invalidate(ctx, userID, counterpartyID)

	slog.Info("Settled",
		"expense_id", expense.ID,
		"payer_id", expense.PaidBy,
		"amount", expense.Amount.String(),
		"currency", currency,
	)
	return result, nil
}

// settles reports whether e is a settlement between the two users in currency.
func settles(e *models.Expense, userID, counterpartyID string, currency models.Currency) bool {
	if !e.IsSettlement || e.Currency != currency || len(e.Splits) != 2 {
		return false
	}
	_, hasUser := e.SplitFor(userID)
	_, hasCounterparty := e.SplitFor(counterpartyID)
	return hasUser && hasCounterparty
}

// settlementExpense builds the expense that cancels net, where a positive
// net means the counterparty owes userID.
func (s *Service) settlementExpense(userID string, counterparty *models.User, currency models.Currency, net decimal.Decimal) (*models.Expense, error) {
	debtor, creditor := counterparty.ID, userID
	if net.IsNegative() {
		debtor, creditor = userID, counterparty.ID
	}
	amount := net.Abs()

	splits, err := calculator.Allocate(models.SplitManual, amount, []calculator.Entry{
		{UserID: debtor, Paid: amount, Owed: decimal.NewNullDecimal(decimal.Zero)},
		{UserID: creditor, Owed: decimal.NewNullDecimal(amount)},
	}, 2)
	if err != nil {
		return nil, err
	}

	return &models.Expense{
		Name:         truncate(settlementPrefix+counterparty.Name(), models.MaxNameLength),
		Amount:       amount,
		Category:     models.CategoryOther,
		Currency:     currency,
		SplitMethod:  models.SplitManual,
		ExpenseDate:  s.now().Format(models.DateLayout),
		AddedBy:      userID,
		PaidBy:       debtor,
		Participants: []string{userID, counterparty.ID},
		Splits:       splits,
		IsSettlement: true,
	}, nil
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

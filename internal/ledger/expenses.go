package ledger

import (
	"context"
	"errors"
	"log/slog"

	"github.com/mmynk/fairkeep/internal/models"
	"github.com/mmynk/fairkeep/internal/storage"
)

// CreateExpense validates, allocates and persists a new expense added by actorID.
//
// A non-empty idemKey that actorID already used returns the expense that the
// first call created, without writing anything.
func (s *Service) CreateExpense(ctx context.Context, actorID string, in ExpenseInput, idemKey string) (expense *models.Expense, err error) {
	defer func() { s.metrics.LedgerOp("create", outcome(err)) }()

	expense, err = s.buildExpense(ctx, actorID, in)
	if err != nil {
		slog.Info("CreateExpense rejected", "actor_id", actorID, "error", err)
		return nil, err
	}

	var replayed *models.Expense
	err = s.store.WithTx(ctx, func(tx storage.ExpenseTx) error {
		if idemKey != "" {
			previous, err := replay(ctx, tx, actorID, idemKey)
			if err != nil {
				return err
			}
			if previous != nil {
				if previous.IsSettlement {
					return keyReused()
				}
				replayed = previous
				return nil
			}
		}

		if err := tx.CreateExpense(ctx, expense); err != nil {
			return err
		}
		if idemKey != "" {
			return tx.SaveIdempotencyKey(ctx, actorID, idemKey, expense.ID)
		}
		return nil
	})
	if err != nil {
		slog.Error("CreateExpense failed", "actor_id", actorID, "error", err)
		return nil, persistence("create expense", err)
	}
	if replayed != nil {
		slog.Info("CreateExpense replayed", "expense_id", replayed.ID, "actor_id", actorID)
		return replayed, nil
	}

	s.recordActivity(ctx, models.NewActivity(models.ActionCreated, expense, actorID))
	s.invalidate(ctx, expense.InvolvedUsers()...)

	slog.Info("Expense created",
		"expense_id", expense.ID,
		"amount", expense.Amount.String(),
		"currency", expense.Currency,
		"split_method", expense.SplitMethod,
		"splits", len(expense.Splits),
	)
	return expense, nil
}

// replay returns the expense recorded for (actorID, key), or nil if the key is unused.
func replay(ctx context.Context, tx storage.ExpenseTx, actorID, key string) (*models.Expense, error) {
	id, err := tx.LookupIdempotencyKey(ctx, actorID, key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return tx.GetExpense(ctx, id)
}

// keyReused reports an idempotency key replayed by a different kind of request.
func keyReused() *ValidationError {
	return invalid("idempotency_key", "already used for a different request")
}

// UpdateExpense replaces the fields and the whole split set of an expense.
// AddedBy, IsSettlement and CreatedAt are kept.
func (s *Service) UpdateExpense(ctx context.Context, actorID, expenseID string, in ExpenseInput) (expense *models.Expense, err error) {
	defer func() { s.metrics.LedgerOp("update", outcome(err)) }()

	current, err := s.visibleExpense(ctx, actorID, expenseID)
	if err != nil {
		return nil, err
	}

	expense, err = s.buildExpense(ctx, actorID, in)
	if err != nil {
		slog.Info("UpdateExpense rejected", "expense_id", expenseID, "actor_id", actorID, "error", err)
		return nil, err
	}
	expense.ID = current.ID
	expense.AddedBy = current.AddedBy
	expense.IsSettlement = current.IsSettlement
	expense.CreatedAt = current.CreatedAt

	err = s.store.WithTx(ctx, func(tx storage.ExpenseTx) error {
		return tx.UpdateExpense(ctx, expense)
	})
	if errors.Is(err, storage.ErrNotFound) {
		return nil, &NotFoundError{Kind: "expense", ID: expenseID}
	}
	if err != nil {
		slog.Error("UpdateExpense failed", "expense_id", expenseID, "error", err)
		return nil, persistence("update expense", err)
	}

	s.recordActivity(ctx, models.NewActivity(models.ActionUpdated, expense, actorID))
	s.invalidate(ctx, append(current.InvolvedUsers(), expense.InvolvedUsers()...)...)

	slog.Info("Expense updated", "expense_id", expense.ID, "actor_id", actorID)
	return expense, nil
}

// DeleteExpense removes an expense and records a snapshot of it in the activity log.
func (s *Service) DeleteExpense(ctx context.Context, actorID, expenseID string) (err error) {
	defer func() { s.metrics.LedgerOp("delete", outcome(err)) }()

	current, err := s.visibleExpense(ctx, actorID, expenseID)
	if err != nil {
		return err
	}

	err = s.store.WithTx(ctx, func(tx storage.ExpenseTx) error {
		return tx.DeleteExpense(ctx, expenseID)
	})
	if errors.Is(err, storage.ErrNotFound) {
		return &NotFoundError{Kind: "expense", ID: expenseID}
	}
	if err != nil {
		slog.Error("DeleteExpense failed", "expense_id", expenseID, "error", err)
		return persistence("delete expense", err)
	}

	s.recordActivity(ctx, models.NewActivity(models.ActionDeleted, current, actorID))
	s.invalidate(ctx, current.InvolvedUsers()...)

	slog.Info("Expense deleted", "expense_id", expenseID, "actor_id", actorID)
	return nil
}

// GetExpense returns an expense visible to userID.
func (s *Service) GetExpense(ctx context.Context, userID, expenseID string) (*models.Expense, error) {
	return s.visibleExpense(ctx, userID, expenseID)
}

// ListVisibleExpenses returns every expense userID can see, ordered by
// expense date then ID.
func (s *Service) ListVisibleExpenses(ctx context.Context, userID string) ([]*models.Expense, error) {
	expenses, err := s.store.ListVisibleExpenses(ctx, userID)
	if err != nil {
		return nil, persistence("list expenses", err)
	}
	return expenses, nil
}

// ListActivities returns activities involving userID, newest first.
func (s *Service) ListActivities(ctx context.Context, userID string, limit int) ([]*models.Activity, error) {
	if limit <= 0 {
		limit = DefaultActivityLimit
	}
	if limit > MaxActivityLimit {
		limit = MaxActivityLimit
	}

	activities, err := s.store.ListActivities(ctx, userID, limit)
	if err != nil {
		return nil, persistence("list activities", err)
	}
	return activities, nil
}

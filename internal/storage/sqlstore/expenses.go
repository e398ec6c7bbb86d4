package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/fairkeep/internal/models"
	"github.com/mmynk/fairkeep/internal/storage"
)

const expenseColumns = `e.id, e.name, e.amount, e.category, e.currency, e.split_method,
	e.expense_date, e.added_by, e.paid_by, e.is_settlement, e.created_at, e.updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanExpense(row scanner) (*models.Expense, error) {
	e := &models.Expense{}
	err := row.Scan(
		&e.ID,
		&e.Name,
		&e.Amount,
		&e.Category,
		&e.Currency,
		&e.SplitMethod,
		&e.ExpenseDate,
		&e.AddedBy,
		&e.PaidBy,
		&e.IsSettlement,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// GetExpense retrieves an expense by ID, including splits and participants.
func (c conn) GetExpense(ctx context.Context, expenseID string) (*models.Expense, error) {
	e, err := scanExpense(c.queryRow(ctx,
		"SELECT "+expenseColumns+" FROM expenses e WHERE e.id = ?",
		expenseID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("expense %s: %w", expenseID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get expense: %w", err)
	}

	if err := c.loadDetails(ctx, []*models.Expense{e}); err != nil {
		return nil, err
	}
	return e, nil
}

// ListVisibleExpenses returns the expenses userID can see, ordered by
// expense date then ID.
func (c conn) ListVisibleExpenses(ctx context.Context, userID string) ([]*models.Expense, error) {
	return c.listExpenses(ctx, `
		SELECT `+expenseColumns+`
		FROM expenses e
		WHERE e.added_by = ?
		   OR e.paid_by = ?
		   OR EXISTS (SELECT 1 FROM expense_participants p WHERE p.expense_id = e.id AND p.user_id = ?)
		   OR EXISTS (SELECT 1 FROM expense_splits s WHERE s.expense_id = e.id AND s.user_id = ?)
		ORDER BY e.expense_date, e.id`,
		userID, userID, userID, userID,
	)
}

// ListPairExpenses returns expenses in currency where both users have a split.
func (c conn) ListPairExpenses(ctx context.Context, userID, otherID string, currency models.Currency) ([]*models.Expense, error) {
	return c.listExpenses(ctx, `
		SELECT `+expenseColumns+`
		FROM expenses e
		WHERE e.currency = ?
		  AND EXISTS (SELECT 1 FROM expense_splits s WHERE s.expense_id = e.id AND s.user_id = ?)
		  AND EXISTS (SELECT 1 FROM expense_splits s WHERE s.expense_id = e.id AND s.user_id = ?)
		ORDER BY e.expense_date, e.id`,
		currency, userID, otherID,
	)
}

func (c conn) listExpenses(ctx context.Context, query string, args ...any) ([]*models.Expense, error) {
	rows, err := c.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}
	defer rows.Close()

	var expenses []*models.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		expenses = append(expenses, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate expenses: %w", err)
	}

	if err := c.loadDetails(ctx, expenses); err != nil {
		return nil, err
	}
	return expenses, nil
}

// loadDetails fills in splits and participants for the given expenses.
func (c conn) loadDetails(ctx context.Context, expenses []*models.Expense) error {
	if len(expenses) == 0 {
		return nil
	}

	byID := make(map[string]*models.Expense, len(expenses))
	ids := make([]string, len(expenses))
	for i, e := range expenses {
		byID[e.ID] = e
		ids[i] = e.ID
	}
	in := placeholders(len(ids))

	rows, err := c.query(ctx,
		"SELECT expense_id, user_id, paid_amount, owed_amount, split_value FROM expense_splits WHERE expense_id IN ("+in+") ORDER BY expense_id, seq",
		stringArgs(ids)...,
	)
	if err != nil {
		return fmt.Errorf("failed to get splits: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var expenseID string
		var s models.Split
		if err := rows.Scan(&expenseID, &s.UserID, &s.PaidAmount, &s.OwedAmount, &s.Value); err != nil {
			return fmt.Errorf("failed to scan split: %w", err)
		}
		byID[expenseID].Splits = append(byID[expenseID].Splits, s)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate splits: %w", err)
	}
	rows.Close()

	partRows, err := c.query(ctx,
		"SELECT expense_id, user_id FROM expense_participants WHERE expense_id IN ("+in+") ORDER BY expense_id, seq",
		stringArgs(ids)...,
	)
	if err != nil {
		return fmt.Errorf("failed to get participants: %w", err)
	}
	defer partRows.Close()

	for partRows.Next() {
		var expenseID, userID string
		if err := partRows.Scan(&expenseID, &userID); err != nil {
			return fmt.Errorf("failed to scan participant: %w", err)
		}
		byID[expenseID].Participants = append(byID[expenseID].Participants, userID)
	}
	if err := partRows.Err(); err != nil {
		return fmt.Errorf("failed to iterate participants: %w", err)
	}

	return nil
}

// CreateExpense persists a new expense with its splits and participants.
func (t *txStore) CreateExpense(ctx context.Context, e *models.Expense) error {
	// Generate ID and timestamps if not set
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	now := time.Now().Unix()
	if e.CreatedAt == 0 {
		e.CreatedAt = now
	}
	e.UpdatedAt = now

	_, err := t.exec(ctx, `
		INSERT INTO expenses (id, name, amount, category, currency, split_method, expense_date,
			added_by, paid_by, is_settlement, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Name, e.Amount, e.Category, e.Currency, e.SplitMethod, e.ExpenseDate,
		e.AddedBy, e.PaidBy, e.IsSettlement, e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert expense: %w", err)
	}

	return t.insertDetails(ctx, e)
}

// UpdateExpense replaces scalar fields, splits and participants.
// AddedBy, IsSettlement and CreatedAt are never changed.
func (t *txStore) UpdateExpense(ctx context.Context, e *models.Expense) error {
	e.UpdatedAt = time.Now().Unix()

	result, err := t.exec(ctx, `
		UPDATE expenses
		SET name = ?, amount = ?, category = ?, currency = ?, split_method = ?,
			expense_date = ?, paid_by = ?, updated_at = ?
		WHERE id = ?`,
		e.Name, e.Amount, e.Category, e.Currency, e.SplitMethod,
		e.ExpenseDate, e.PaidBy, e.UpdatedAt, e.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update expense: %w", err)
	}
	if err := requireRow(result, "expense", e.ID); err != nil {
		return err
	}

	if _, err := t.exec(ctx, "DELETE FROM expense_splits WHERE expense_id = ?", e.ID); err != nil {
		return fmt.Errorf("failed to delete splits: %w", err)
	}
	if _, err := t.exec(ctx, "DELETE FROM expense_participants WHERE expense_id = ?", e.ID); err != nil {
		return fmt.Errorf("failed to delete participants: %w", err)
	}

	return t.insertDetails(ctx, e)
}

// DeleteExpense removes an expense. Splits, participants and idempotency
// keys cascade; activities keep their row with a null expense reference.
func (t *txStore) DeleteExpense(ctx context.Context, expenseID string) error {
	result, err := t.exec(ctx, "DELETE FROM expenses WHERE id = ?", expenseID)
	if err != nil {
		return fmt.Errorf("failed to delete expense: %w", err)
	}
	return requireRow(result, "expense", expenseID)
}

func (t *txStore) insertDetails(ctx context.Context, e *models.Expense) error {
	for i, s := range e.Splits {
		_, err := t.exec(ctx, `
			INSERT INTO expense_splits (expense_id, user_id, seq, paid_amount, owed_amount, split_value)
			VALUES (?, ?, ?, ?, ?, ?)`,
			e.ID, s.UserID, i, s.PaidAmount, s.OwedAmount, s.Value,
		)
		if err != nil {
			return fmt.Errorf("failed to insert split: %w", err)
		}
	}

	for i, userID := range e.Participants {
		_, err := t.exec(ctx,
			"INSERT INTO expense_participants (expense_id, user_id, seq) VALUES (?, ?, ?)",
			e.ID, userID, i,
		)
		if err != nil {
			return fmt.Errorf("failed to insert participant: %w", err)
		}
	}

	return nil
}

// LookupIdempotencyKey returns the expense recorded for (actorID, key).
func (t *txStore) LookupIdempotencyKey(ctx context.Context, actorID, key string) (string, error) {
	var expenseID string
	err := t.queryRow(ctx,
		"SELECT expense_id FROM idempotency_keys WHERE actor_id = ? AND idem_key = ?",
		actorID, key,
	).Scan(&expenseID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", storage.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up idempotency key: %w", err)
	}
	return expenseID, nil
}

// SaveIdempotencyKey records that (actorID, key) produced expenseID.
func (t *txStore) SaveIdempotencyKey(ctx context.Context, actorID, key, expenseID string) error {
	_, err := t.exec(ctx,
		"INSERT INTO idempotency_keys (actor_id, idem_key, expense_id, created_at) VALUES (?, ?, ?, ?)",
		actorID, key, expenseID, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to save idempotency key: %w", err)
	}
	return nil
}

func requireRow(result sql.Result, kind, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, storage.ErrNotFound)
	}
	return nil
}

package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mmynk/fairkeep/internal/models"
)

// splitSnapshot is the JSON form of a split inside an activity row.
type splitSnapshot struct {
	UserID     string          `json:"user_id"`
	PaidAmount decimal.Decimal `json:"paid_amount"`
	OwedAmount decimal.Decimal `json:"owed_amount"`
}

// CreateActivity appends an activity and its involved users.
// The activity row and its user links are written in one transaction.
func (s *Store) CreateActivity(ctx context.Context, a *models.Activity) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	now := time.Now()
	if a.CreatedAt == 0 {
		a.CreatedAt = now.Unix()
	}

	participants, err := json.Marshal(nonNil(a.Participants))
	if err != nil {
		return fmt.Errorf("failed to encode participants snapshot: %w", err)
	}
	snapshots := make([]splitSnapshot, len(a.Splits))
	for i, sp := range a.Splits {
		snapshots[i] = splitSnapshot{UserID: sp.UserID, PaidAmount: sp.PaidAmount, OwedAmount: sp.OwedAmount}
	}
	splits, err := json.Marshal(snapshots)
	if err != nil {
		return fmt.Errorf("failed to encode splits snapshot: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()
	c := conn{q: tx, dialect: s.dialect}

	var expenseID sql.NullString
	if a.ExpenseID != "" {
		expenseID = sql.NullString{String: a.ExpenseID, Valid: true}
	}

	_, err = c.exec(ctx, `
		INSERT INTO activities (id, expense_id, actor_id, action, expense_name, expense_amount,
			category, currency, split_method, expense_date, participants_snapshot, splits_snapshot,
			created_at, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, expenseID, a.ActorID, a.Action, a.ExpenseName, a.ExpenseAmount,
		a.Category, a.Currency, a.SplitMethod, a.ExpenseDate, string(participants), string(splits),
		a.CreatedAt, now.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert activity: %w", err)
	}

	for _, userID := range models.UniqueIDs(a.InvolvedUsers) {
		_, err := c.exec(ctx,
			"INSERT INTO activity_users (activity_id, user_id) VALUES (?, ?)",
			a.ID, userID,
		)
		if err != nil {
			return fmt.Errorf("failed to insert activity user: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ListActivities returns activities involving userID, newest first.
func (s *Store) ListActivities(ctx context.Context, userID string, limit int) ([]*models.Activity, error) {
	rows, err := s.query(ctx, `
		SELECT a.id, a.expense_id, a.actor_id, a.action, a.expense_name, a.expense_amount,
			a.category, a.currency, a.split_method, a.expense_date,
			a.participants_snapshot, a.splits_snapshot, a.created_at
		FROM activities a
		JOIN activity_users u ON u.activity_id = a.id
		WHERE u.user_id = ?
		ORDER BY a.recorded_at DESC, a.id DESC
		LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list activities: %w", err)
	}
	defer rows.Close()

	var activities []*models.Activity
	for rows.Next() {
		a := &models.Activity{}
		var expenseID sql.NullString
		var participants, splits string
		if err := rows.Scan(
			&a.ID,
			&expenseID,
			&a.ActorID,
			&a.Action,
			&a.ExpenseName,
			&a.ExpenseAmount,
			&a.Category,
			&a.Currency,
			&a.SplitMethod,
			&a.ExpenseDate,
			&participants,
			&splits,
			&a.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		a.ExpenseID = expenseID.String

		if err := json.Unmarshal([]byte(participants), &a.Participants); err != nil {
			return nil, fmt.Errorf("failed to decode participants snapshot: %w", err)
		}
		var snapshots []splitSnapshot
		if err := json.Unmarshal([]byte(splits), &snapshots); err != nil {
			return nil, fmt.Errorf("failed to decode splits snapshot: %w", err)
		}
		for _, sp := range snapshots {
			a.Splits = append(a.Splits, models.Split{UserID: sp.UserID, PaidAmount: sp.PaidAmount, OwedAmount: sp.OwedAmount})
		}

		activities = append(activities, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate activities: %w", err)
	}
	rows.Close()

	return activities, s.loadInvolved(ctx, activities)
}

func (s *Store) loadInvolved(ctx context.Context, activities []*models.Activity) error {
	if len(activities) == 0 {
		return nil
	}

	byID := make(map[string]*models.Activity, len(activities))
	ids := make([]string, len(activities))
	for i, a := range activities {
		byID[a.ID] = a
		ids[i] = a.ID
	}

	rows, err := s.query(ctx,
		"SELECT activity_id, user_id FROM activity_users WHERE activity_id IN ("+placeholders(len(ids))+") ORDER BY activity_id, user_id",
		stringArgs(ids)...,
	)
	if err != nil {
		return fmt.Errorf("failed to get activity users: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var activityID, userID string
		if err := rows.Scan(&activityID, &userID); err != nil {
			return fmt.Errorf("failed to scan activity user: %w", err)
		}
		byID[activityID].InvolvedUsers = append(byID[activityID].InvolvedUsers, userID)
	}
	return rows.Err()
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}

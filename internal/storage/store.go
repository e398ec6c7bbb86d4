// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"errors"

	"github.com/mmynk/fairkeep/internal/models"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// ExpenseReader reads expenses together with their splits and participants.
// Both the Store and a transaction implement it.
type ExpenseReader interface {
	// GetExpense retrieves an expense by ID.
	// Returns ErrNotFound if it does not exist.
	GetExpense(ctx context.Context, expenseID string) (*models.Expense, error)

	// ListPairExpenses returns expenses in currency where both users have a split.
	ListPairExpenses(ctx context.Context, userID, otherID string, currency models.Currency) ([]*models.Expense, error)
}

// ExpenseTx is the set of operations available inside a ledger transaction.
type ExpenseTx interface {
	ExpenseReader

	// CreateExpense persists a new expense with its splits and participants.
	// The expense.ID and timestamps are populated by the store when unset.
	CreateExpense(ctx context.Context, expense *models.Expense) error

	// UpdateExpense replaces the scalar fields of an existing expense and
	// wholesale-replaces its splits and participants.
	// Returns ErrNotFound if the expense does not exist.
	UpdateExpense(ctx context.Context, expense *models.Expense) error

	// DeleteExpense removes an expense; splits and participants cascade.
	// Returns ErrNotFound if the expense does not exist.
	DeleteExpense(ctx context.Context, expenseID string) error

	// LookupIdempotencyKey returns the expense ID recorded for (actorID, key).
	// Returns ErrNotFound if the key has not been used.
	LookupIdempotencyKey(ctx context.Context, actorID, key string) (string, error)

	// SaveIdempotencyKey records that (actorID, key) produced expenseID.
	SaveIdempotencyKey(ctx context.Context, actorID, key, expenseID string) error
}

// ExpenseStore persists expenses.
type ExpenseStore interface {
	ExpenseReader

	// WithTx runs fn inside a single transaction. The transaction commits
	// when fn returns nil and rolls back otherwise.
	WithTx(ctx context.Context, fn func(tx ExpenseTx) error) error

	// ListVisibleExpenses returns expenses where userID is a participant, the
	// adder, the payer or has a split, ordered by expense date then ID.
	ListVisibleExpenses(ctx context.Context, userID string) ([]*models.Expense, error)
}

// ActivityStore persists the audit trail.
type ActivityStore interface {
	// CreateActivity appends an activity. The ID and CreatedAt are
	// populated by the store when unset.
	CreateActivity(ctx context.Context, activity *models.Activity) error

	// ListActivities returns activities involving userID, newest first.
	ListActivities(ctx context.Context, userID string, limit int) ([]*models.Activity, error)
}

// UserStore persists user accounts.
type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error

	// GetUserByEmail returns ErrNotFound if no user has that email.
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)

	// GetUserByID returns ErrNotFound if the user does not exist.
	GetUserByID(ctx context.Context, id string) (*models.User, error)

	// GetUsersByIDs returns the users that exist, keyed by ID.
	GetUsersByIDs(ctx context.Context, ids []string) (map[string]*models.User, error)

	UpdatePasswordHash(ctx context.Context, userID, hash string) error
}

// ContactStore persists contact requests.
type ContactStore interface {
	CreateContactRequest(ctx context.Context, req *models.ContactRequest) error

	// GetContactRequest returns ErrNotFound if the request does not exist.
	GetContactRequest(ctx context.Context, id string) (*models.ContactRequest, error)

	// FindContactRequest returns the request between two users in either
	// direction, or ErrNotFound.
	FindContactRequest(ctx context.Context, userID, otherID string) (*models.ContactRequest, error)

	UpdateContactRequest(ctx context.Context, req *models.ContactRequest) error

	// ListContactRequests returns every request sent or received by userID.
	ListContactRequests(ctx context.Context, userID string) ([]*models.ContactRequest, error)
}

// Store aggregates every storage concern behind one backend.
// This abstraction allows swapping storage backends (SQLite, PostgreSQL)
// without changing the service layer.
type Store interface {
	ExpenseStore
	ActivityStore
	UserStore
	ContactStore

	// Close releases any resources held by the store.
	Close() error
}

// Package ledger is the expense lifecycle: it validates and allocates
// expenses, writes them transactionally, computes balances and settles pairs.
package ledger

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/mmynk/fairkeep/internal/cache"
	"github.com/mmynk/fairkeep/internal/calculator"
	"github.com/mmynk/fairkeep/internal/metrics"
	"github.com/mmynk/fairkeep/internal/models"
	"github.com/mmynk/fairkeep/internal/storage"
)

const (
	// DefaultActivityLimit is used when ListActivities gets a non-positive limit.
	DefaultActivityLimit = 100
	// MaxActivityLimit caps ListActivities.
	MaxActivityLimit = 500
)

// Visibility answers whether one user may see another.
type Visibility interface {
	CanSee(ctx context.Context, viewerID, userID string) (bool, error)
}

// Service runs ledger operations against a store.
type Service struct {
	store      storage.Store
	visibility Visibility
	cache      cache.BalanceCache
	metrics    *metrics.Metrics
	now        func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithCache reads balances through c and invalidates it on every write.
func WithCache(c cache.BalanceCache) Option {
	return func(s *Service) { s.cache = c }
}

// WithMetrics records ledger operation outcomes on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock overrides the clock used for default expense dates.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a ledger service.
func NewService(store storage.Store, visibility Visibility, opts ...Option) *Service {
	s := &Service{
		store:      store,
		visibility: visibility,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ExpenseInput is the client-supplied part of an expense.
type ExpenseInput struct {
	Name        string
	Amount      decimal.Decimal
	Category    models.Category
	Currency    models.Currency
	SplitMethod models.SplitMethod
	// ExpenseDate is DateLayout; empty means today.
	ExpenseDate string
	// PaidBy defaults to the actor.
	PaidBy       string
	Participants []string
	Splits       []calculator.Entry
}

// buildExpense validates in, then normalizes and allocates its splits.
// Nothing is written.
func (s *Service) buildExpense(ctx context.Context, actorID string, in ExpenseInput) (*models.Expense, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, invalid("name", "is required")
	}
	if utf8.RuneCountInString(name) > models.MaxNameLength {
		return nil, invalid("name", "must be at most %d characters", models.MaxNameLength)
	}

	amount := in.Amount
	if !amount.IsPositive() {
		return nil, invalid("amount", "must be greater than 0")
	}
	if !calculator.InCents(amount) {
		return nil, invalid("amount", "must have at most 2 decimal places")
	}

	category := in.Category
	if category == "" {
		category = models.CategoryOther
	}
	if !category.Valid() {
		return nil, invalid("category", "unknown category %q", category)
	}

	currency := models.Currency(strings.ToUpper(string(in.Currency)))
	if currency == "" {
		currency = models.DefaultCurrency
	}
	if !currency.Valid() {
		return nil, invalid("currency", "unknown currency %q", in.Currency)
	}

	if !in.SplitMethod.Valid() {
		return nil, invalid("split_method", "unknown split method %q", in.SplitMethod)
	}

	date := in.ExpenseDate
	if date == "" {
		date = s.now().Format(models.DateLayout)
	} else if _, err := time.Parse(models.DateLayout, date); err != nil {
		return nil, invalid("expense_date", "must be a date in YYYY-MM-DD format")
	}

	paidBy := in.PaidBy
	if paidBy == "" {
		paidBy = actorID
	}

	entries, err := calculator.Normalize(in.Splits)
	if err != nil {
		return nil, invalid("splits", "%v", err)
	}
	if len(entries) == 0 {
		return nil, invalid("splits", "at least one split is required")
	}

	participants := models.UniqueIDs(in.Participants)
	splits, err := calculator.Allocate(in.SplitMethod, amount, entries, len(participants))
	if err != nil {
		var allocErr *calculator.AllocationError
		if errors.As(err, &allocErr) {
			return nil, fromAllocation(allocErr)
		}
		return nil, invalid("split_method", "%v", err)
	}

	expense := &models.Expense{
		Name:        name,
		Amount:      amount,
		Category:    category,
		Currency:    currency,
		SplitMethod: in.SplitMethod,
		ExpenseDate: date,
		AddedBy:     actorID,
		PaidBy:      paidBy,
		Splits:      splits,
	}
	splitUsers := make([]string, len(splits))
	for i, sp := range splits {
		splitUsers[i] = sp.UserID
	}
	expense.Participants = models.UniqueIDs(participants, []string{paidBy}, splitUsers, []string{actorID})

	if err := s.checkUsers(ctx, actorID, expense.Participants); err != nil {
		return nil, err
	}
	return expense, nil
}

// checkUsers returns NotFoundError for any user that does not exist or is
// not visible to actorID.
func (s *Service) checkUsers(ctx context.Context, actorID string, userIDs []string) error {
	users, err := s.store.GetUsersByIDs(ctx, userIDs)
	if err != nil {
		return persistence("load users", err)
	}

	for _, id := range userIDs {
		if _, ok := users[id]; !ok {
			return &NotFoundError{Kind: "user", ID: id}
		}
		visible, err := s.visibility.CanSee(ctx, actorID, id)
		if err != nil {
			return persistence("check visibility", err)
		}
		if !visible {
			return &NotFoundError{Kind: "user", ID: id}
		}
	}
	return nil
}

// visibleExpense loads an expense the actor is allowed to see.
func (s *Service) visibleExpense(ctx context.Context, actorID, expenseID string) (*models.Expense, error) {
	expense, err := s.store.GetExpense(ctx, expenseID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, &NotFoundError{Kind: "expense", ID: expenseID}
	}
	if err != nil {
		return nil, persistence("get expense", err)
	}
	if !expense.VisibleTo(actorID) {
		return nil, &NotFoundError{Kind: "expense", ID: expenseID}
	}
	return expense, nil
}

// recordActivity appends a to the audit log. Failures are logged and dropped.
func (s *Service) recordActivity(ctx context.Context, a *models.Activity) {
	if err := s.store.CreateActivity(ctx, a); err != nil {
		s.metrics.ActivityFailed()
		slog.Error("Failed to record activity",
			"action", a.Action,
			"expense_id", a.ExpenseID,
			"actor_id", a.ActorID,
			"error", err,
		)
	}
}

// invalidate drops cached balances for userIDs. Failures are logged; the
// cache entry then expires on its own.
func (s *Service) invalidate(ctx context.Context, userIDs ...string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, models.UniqueIDs(userIDs)...); err != nil {
		slog.Warn("Failed to invalidate balance cache", "users", userIDs, "error", err)
	}
}

package models

import "github.com/shopspring/decimal"

// ActivityAction is the kind of ledger change an Activity records.
type ActivityAction string

const (
	ActionCreated ActivityAction = "created"
	ActionUpdated ActivityAction = "updated"
	ActionDeleted ActivityAction = "deleted"
	ActionSettled ActivityAction = "settled"
)

// Activity is an append-only audit entry.
// Expense fields are copied at the time of the action so later edits or
// deletion of the expense never change history.
type Activity struct {
	// ID is the unique identifier for the activity (UUID format).
	ID string

	// ExpenseID references the expense, or is empty once it has been deleted.
	ExpenseID string

	ActorID string
	Action  ActivityAction

	ExpenseName   string
	ExpenseAmount decimal.Decimal
	Category      Category
	Currency      Currency
	SplitMethod   SplitMethod
	ExpenseDate   string

	// Participants is the participant set at the time of the action.
	Participants []string

	// Splits is the split set at the time of the action.
	Splits []Split

	// InvolvedUsers are the users who can see this activity.
	InvolvedUsers []string

	CreatedAt int64
}

// NewActivity snapshots e for the given action and actor.
func NewActivity(action ActivityAction, e *Expense, actorID string) *Activity {
	a := &Activity{
		ExpenseID:     e.ID,
		ActorID:       actorID,
		Action:        action,
		ExpenseName:   e.Name,
		ExpenseAmount: e.Amount,
		Category:      e.Category,
		Currency:      e.Currency,
		SplitMethod:   e.SplitMethod,
		ExpenseDate:   e.ExpenseDate,
		Participants:  append([]string(nil), e.Participants...),
		Splits:        append([]Split(nil), e.Splits...),
		InvolvedUsers: e.InvolvedUsers(),
	}
	if action == ActionDeleted {
		a.ExpenseID = ""
	}
	return a
}

// Package api holds the fairkeep.v1 request and response messages.
// Messages travel as JSON; money fields are decimal strings.
package api

import "github.com/shopspring/decimal"

// User is the public view of an account.
type User struct {
	ID          string `json:"id"`
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"display_name"`
	CreatedAt   int64  `json:"created_at,omitempty"`
}

type RegisterRequest struct {
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Password    string `json:"password"`
}

type RegisterResponse struct {
	User      *User  `json:"user"`
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expires_at"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	User      *User  `json:"user"`
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expires_at"`
}

type LogoutRequest struct{}

type LogoutResponse struct{}

type GetCurrentUserRequest struct{}

type GetCurrentUserResponse struct {
	User *User `json:"user"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type ChangePasswordResponse struct{}

// ContactRequest is an edge of the contact graph.
type ContactRequest struct {
	ID         string `json:"id"`
	FromUserID string `json:"from_user_id"`
	ToUserID   string `json:"to_user_id"`
	Status     string `json:"status"`
	CreatedAt  int64  `json:"created_at"`
	UpdatedAt  int64  `json:"updated_at"`
}

// SendContactRequestRequest names the recipient by ID or by email.
type SendContactRequestRequest struct {
	ToUserID string `json:"to_user_id,omitempty"`
	Email    string `json:"email,omitempty"`
}

type SendContactRequestResponse struct {
	Request *ContactRequest `json:"request"`
}

type RespondContactRequestRequest struct {
	RequestID string `json:"request_id"`
	Accept    bool   `json:"accept"`
}

type RespondContactRequestResponse struct {
	Request *ContactRequest `json:"request"`
}

type ListContactsRequest struct{}

type ListContactsResponse struct {
	Contacts []*User           `json:"contacts"`
	Incoming []*ContactRequest `json:"incoming"`
	Outgoing []*ContactRequest `json:"outgoing"`
}

// SplitInput is one raw per-user entry. OwedAmount may be omitted for
// methods that compute it; Value is the percentage, share count or excess.
type SplitInput struct {
	UserID     string              `json:"user_id"`
	PaidAmount decimal.Decimal     `json:"paid_amount"`
	OwedAmount decimal.NullDecimal `json:"owed_amount"`
	Value      decimal.Decimal     `json:"value"`
}

// ExpenseInput is the client-supplied part of an expense.
type ExpenseInput struct {
	Name           string          `json:"name"`
	Amount         decimal.Decimal `json:"amount"`
	Category       string          `json:"category,omitempty"`
	Currency       string          `json:"currency,omitempty"`
	SplitMethod    string          `json:"split_method"`
	ExpenseDate    string          `json:"expense_date,omitempty"`
	PaidBy         string          `json:"paid_by,omitempty"`
	ParticipantIDs []string        `json:"participant_ids"`
	Splits         []*SplitInput   `json:"splits"`
}

type Split struct {
	UserID     string          `json:"user_id"`
	PaidAmount decimal.Decimal `json:"paid_amount"`
	OwedAmount decimal.Decimal `json:"owed_amount"`
	Value      decimal.Decimal `json:"value"`
}

type Expense struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Amount         decimal.Decimal `json:"amount"`
	Category       string          `json:"category"`
	Currency       string          `json:"currency"`
	CurrencySymbol string          `json:"currency_symbol"`
	SplitMethod    string          `json:"split_method"`
	ExpenseDate    string          `json:"expense_date"`
	AddedBy        string          `json:"added_by"`
	PaidBy         string          `json:"paid_by"`
	ParticipantIDs []string        `json:"participant_ids"`
	Splits         []*Split        `json:"splits"`
	IsSettlement   bool            `json:"is_settlement"`
	CreatedAt      int64           `json:"created_at"`
	UpdatedAt      int64           `json:"updated_at"`
}

// CreateExpenseRequest may carry an idempotency key; the Idempotency-Key
// header is used when the field is empty.
type CreateExpenseRequest struct {
	Expense        *ExpenseInput `json:"expense"`
	IdempotencyKey string        `json:"idempotency_key,omitempty"`
}

type CreateExpenseResponse struct {
	Expense *Expense `json:"expense"`
}

type GetExpenseRequest struct {
	ID string `json:"id"`
}

type GetExpenseResponse struct {
	Expense *Expense `json:"expense"`
}

type UpdateExpenseRequest struct {
	ID      string        `json:"id"`
	Expense *ExpenseInput `json:"expense"`
}

type UpdateExpenseResponse struct {
	Expense *Expense `json:"expense"`
}

type DeleteExpenseRequest struct {
	ID string `json:"id"`
}

type DeleteExpenseResponse struct{}

type ListExpensesRequest struct{}

type ListExpensesResponse struct {
	Expenses []*Expense `json:"expenses"`
}

// Balance is positive when the counterparty owes the caller.
type Balance struct {
	CounterpartyID   string          `json:"counterparty_id"`
	CounterpartyName string          `json:"counterparty_name"`
	Currency         string          `json:"currency"`
	Amount           decimal.Decimal `json:"amount"`
}

type GetBalancesRequest struct{}

type GetBalancesResponse struct {
	Balances []*Balance `json:"balances"`
}

type SettleRequest struct {
	CounterpartyID string `json:"counterparty_id"`
	Currency       string `json:"currency"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

// SettleResponse has Settled false and a message when there was nothing to settle.
type SettleResponse struct {
	Settled bool            `json:"settled"`
	Message string          `json:"message,omitempty"`
	Amount  decimal.Decimal `json:"amount"`
	PayerID string          `json:"payer_id,omitempty"`
	Expense *Expense        `json:"expense,omitempty"`
}

type Activity struct {
	ID              string          `json:"id"`
	ExpenseID       string          `json:"expense_id,omitempty"`
	ActorID         string          `json:"actor_id"`
	Action          string          `json:"action"`
	ExpenseName     string          `json:"expense_name"`
	ExpenseAmount   decimal.Decimal `json:"expense_amount"`
	Category        string          `json:"category"`
	Currency        string          `json:"currency"`
	SplitMethod     string          `json:"split_method"`
	ExpenseDate     string          `json:"expense_date"`
	ParticipantIDs  []string        `json:"participant_ids"`
	Splits          []*Split        `json:"splits"`
	InvolvedUserIDs []string        `json:"involved_user_ids"`
	CreatedAt       int64           `json:"created_at"`
}

type ListActivitiesRequest struct {
	Limit int32 `json:"limit,omitempty"`
}

type ListActivitiesResponse struct {
	Activities []*Activity `json:"activities"`
}

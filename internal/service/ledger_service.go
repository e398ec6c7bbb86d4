package service

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"connectrpc.com/connect"

	"github.com/mmynk/fairkeep/internal/ledger"
	"github.com/mmynk/fairkeep/internal/models"
	"github.com/mmynk/fairkeep/pkg/api"
	"github.com/mmynk/fairkeep/pkg/api/apiconnect"
)

// IdempotencyKeyHeader carries an idempotency key when the request field is empty.
const IdempotencyKeyHeader = "Idempotency-Key"

const nothingToSettleMessage = "nothing to settle"

var _ apiconnect.LedgerServiceHandler = (*LedgerService)(nil)

// LedgerService implements the LedgerService RPC interface.
type LedgerService struct {
	ledger *ledger.Service
}

// NewLedgerService creates a LedgerService.
func NewLedgerService(ledgerSvc *ledger.Service) *LedgerService {
	return &LedgerService{ledger: ledgerSvc}
}

func idempotencyKey(field string, header http.Header) string {
	if field != "" {
		return field
	}
	return header.Get(IdempotencyKeyHeader)
}

// CreateExpense records a new expense added by the caller.
func (s *LedgerService) CreateExpense(ctx context.Context, req *connect.Request[api.CreateExpenseRequest]) (*connect.Response[api.CreateExpenseResponse], error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	if req.Msg.Expense == nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("expense is required"))
	}
	slog.Debug("CreateExpense request",
		"user_id", userID,
		"name", req.Msg.Expense.Name,
		"amount", req.Msg.Expense.Amount.String(),
		"split_method", req.Msg.Expense.SplitMethod,
	)

	key := idempotencyKey(req.Msg.IdempotencyKey, req.Header())
	expense, err := s.ledger.CreateExpense(ctx, userID, toExpenseInput(req.Msg.Expense), key)
	if err != nil {
		return nil, ledgerError(err)
	}

	return connect.NewResponse(&api.CreateExpenseResponse{Expense: toAPIExpense(expense)}), nil
}

// GetExpense returns one expense visible to the caller.
func (s *LedgerService) GetExpense(ctx context.Context, req *connect.Request[api.GetExpenseRequest]) (*connect.Response[api.GetExpenseResponse], error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}

	expense, err := s.ledger.GetExpense(ctx, userID, req.Msg.ID)
	if err != nil {
		return nil, ledgerError(err)
	}

	return connect.NewResponse(&api.GetExpenseResponse{Expense: toAPIExpense(expense)}), nil
}

// UpdateExpense replaces an expense and its whole split set.
func (s *LedgerService) UpdateExpense(ctx context.Context, req *connect.Request[api.UpdateExpenseRequest]) (*connect.Response[api.UpdateExpenseResponse], error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	if req.Msg.Expense == nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("expense is required"))
	}

	expense, err := s.ledger.UpdateExpense(ctx, userID, req.Msg.ID, toExpenseInput(req.Msg.Expense))
	if err != nil {
		return nil, ledgerError(err)
	}

	return connect.NewResponse(&api.UpdateExpenseResponse{Expense: toAPIExpense(expense)}), nil
}

// DeleteExpense removes an expense visible to the caller.
func (s *LedgerService) DeleteExpense(ctx context.Context, req *connect.Request[api.DeleteExpenseRequest]) (*connect.Response[api.DeleteExpenseResponse], error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.ledger.DeleteExpense(ctx, userID, req.Msg.ID); err != nil {
		return nil, ledgerError(err)
	}

	return connect.NewResponse(&api.DeleteExpenseResponse{}), nil
}

// ListExpenses returns every expense the caller can see, by date then ID.
func (s *LedgerService) ListExpenses(ctx context.Context, req *connect.Request[api.ListExpensesRequest]) (*connect.Response[api.ListExpensesResponse], error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}

	expenses, err := s.ledger.ListVisibleExpenses(ctx, userID)
	if err != nil {
		slog.Error("ListExpenses failed", "user_id", userID, "error", err)
		return nil, ledgerError(err)
	}

	out := make([]*api.Expense, len(expenses))
	for i, e := range expenses {
		out[i] = toAPIExpense(e)
	}
	slog.Debug("ListExpenses", "user_id", userID, "count", len(out))
	return connect.NewResponse(&api.ListExpensesResponse{Expenses: out}), nil
}

// GetBalances returns the caller's net balance per counterparty and currency.
func (s *LedgerService) GetBalances(ctx context.Context, req *connect.Request[api.GetBalancesRequest]) (*connect.Response[api.GetBalancesResponse], error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}

	balances, err := s.ledger.GetBalances(ctx, userID)
	if err != nil {
		slog.Error("GetBalances failed", "user_id", userID, "error", err)
		return nil, ledgerError(err)
	}

	out := make([]*api.Balance, len(balances))
	for i, b := range balances {
		out[i] = &api.Balance{
			CounterpartyID:   b.CounterpartyID,
			CounterpartyName: b.CounterpartyName,
			Currency:         string(b.Currency),
			Amount:           b.Amount,
		}
	}
	return connect.NewResponse(&api.GetBalancesResponse{Balances: out}), nil
}

// Settle zeroes the caller's direct net with a counterparty in one currency.
func (s *LedgerService) Settle(ctx context.Context, req *connect.Request[api.SettleRequest]) (*connect.Response[api.SettleResponse], error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}

	key := idempotencyKey(req.Msg.IdempotencyKey, req.Header())
	result, err := s.ledger.Settle(ctx, userID, req.Msg.CounterpartyID, models.Currency(req.Msg.Currency), key)
	if errors.Is(err, ledger.ErrNothingToSettle) {
		return connect.NewResponse(&api.SettleResponse{Message: nothingToSettleMessage}), nil
	}
	if err != nil {
		return nil, ledgerError(err)
	}

	return connect.NewResponse(&api.SettleResponse{
		Settled: true,
		Amount:  result.Amount,
		PayerID: result.PayerID,
		Expense: toAPIExpense(result.Expense),
	}), nil
}

// ListActivities returns the caller's activity feed, newest first.
func (s *LedgerService) ListActivities(ctx context.Context, req *connect.Request[api.ListActivitiesRequest]) (*connect.Response[api.ListActivitiesResponse], error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}

	activities, err := s.ledger.ListActivities(ctx, userID, int(req.Msg.Limit))
	if err != nil {
		slog.Error("ListActivities failed", "user_id", userID, "error", err)
		return nil, ledgerError(err)
	}

	out := make([]*api.Activity, len(activities))
	for i, a := range activities {
		out[i] = toAPIActivity(a)
	}
	return connect.NewResponse(&api.ListActivitiesResponse{Activities: out}), nil
}

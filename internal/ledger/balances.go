package ledger

import (
	"context"
	"log/slog"

	"github.com/mmynk/fairkeep/internal/calculator"
)

// Balance is a calculator.Balance with the counterparty's display name.
type Balance struct {
	calculator.Balance
	CounterpartyName string
}

// GetBalances returns userID's net balance per counterparty and currency.
// Positive amounts are owed to userID.
func (s *Service) GetBalances(ctx context.Context, userID string) ([]Balance, error) {
	raw, err := s.computeBalances(ctx, userID)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(raw))
	for i, b := range raw {
		ids[i] = b.CounterpartyID
	}
	users, err := s.store.GetUsersByIDs(ctx, ids)
	if err != nil {
		return nil, persistence("load users", err)
	}

	balances := make([]Balance, len(raw))
	for i, b := range raw {
		balances[i] = Balance{Balance: b}
		if u, ok := users[b.CounterpartyID]; ok {
			balances[i].CounterpartyName = u.Name()
		}
	}
	return balances, nil
}

// computeBalances reads through the cache; a miss or a cache error
// recomputes from the ledger. The cache version is read before the ledger so
// a write that commits during the recompute keeps its result out of the cache.
func (s *Service) computeBalances(ctx context.Context, userID string) ([]calculator.Balance, error) {
	cacheable := s.cache != nil
	var version int64
	if cacheable {
		cached, ok, err := s.cache.GetBalances(ctx, userID)
		if err != nil {
			slog.Warn("Balance cache read failed", "user_id", userID, "error", err)
		} else if ok {
			slog.Debug("Balance cache hit", "user_id", userID)
			return cached, nil
		}

		if version, err = s.cache.Version(ctx, userID); err != nil {
			slog.Warn("Balance cache version read failed", "user_id", userID, "error", err)
			cacheable = false
		}
	}

	expenses, err := s.store.ListVisibleExpenses(ctx, userID)
	if err != nil {
		return nil, persistence("list expenses", err)
	}
	balances := calculator.Balances(userID, expenses)

	if cacheable {
		if err := s.cache.SetBalances(ctx, userID, version, balances); err != nil {
			slog.Warn("Balance cache write failed", "user_id", userID, "error", err)
		}
	}
	return balances, nil
}

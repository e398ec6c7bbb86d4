// Package cache holds computed balances between ledger writes.
// It is never the source of truth: a miss recomputes from the ledger, and
// every write invalidates the users it touched.
package cache

import (
	"context"

	"github.com/mmynk/fairkeep/internal/calculator"
)

// BalanceCache caches a user's computed balances.
//
// Every user has a version that Invalidate bumps. A reader takes the version
// before reading the ledger and hands it back to SetBalances, which drops the
// write if an invalidation happened in between. That keeps a slow reader
// from caching balances that predate a committed write.
type BalanceCache interface {
	// GetBalances returns the cached balances for userID and whether they were present.
	GetBalances(ctx context.Context, userID string) ([]calculator.Balance, bool, error)

	// Version returns userID's current version.
	Version(ctx context.Context, userID string) (int64, error)

	// SetBalances stores balances for userID if its version still equals version.
	SetBalances(ctx context.Context, userID string, version int64, balances []calculator.Balance) error

	// Invalidate drops the cached balances of every given user and bumps their versions.
	Invalidate(ctx context.Context, userIDs ...string) error
}

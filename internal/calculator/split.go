// Package calculator holds the pure money math of the ledger: merging raw
// split entries, allocating an amount with a split method, and netting
// expenses into balances. Nothing here touches storage.
package calculator

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/mmynk/fairkeep/internal/models"
)

var (
	// ErrUnknownMethod is returned for a split method without an allocator.
	ErrUnknownMethod = errors.New("unknown split method")
	// ErrMissingUser is returned for a split entry without a user id.
	ErrMissingUser = errors.New("split entry has no user")
	// ErrSubCent is returned for a paid or owed amount finer than a cent.
	ErrSubCent = errors.New("amounts must have at most 2 decimal places")
)

var (
	hundred = decimal.NewFromInt(100)

	// percentTolerance is how far percentages may drift from 100 and still be accepted.
	percentTolerance = decimal.New(1, -4)
)

// Entry is one raw per-user split input, as sent by a client.
type Entry struct {
	UserID string
	Paid   decimal.Decimal
	// Owed is blank for methods that compute it.
	Owed  decimal.NullDecimal
	Value decimal.Decimal
}

// AllocationError reports a split that does not satisfy its method's constraint.
type AllocationError struct {
	Method   models.SplitMethod
	Reason   string
	Expected decimal.Decimal
	Computed decimal.Decimal
}

func (e *AllocationError) Error() string {
	return fmt.Sprintf("%s split: %s (expected %s, computed %s)",
		e.Method, e.Reason, e.Expected.String(), e.Computed.String())
}

// InCents reports whether d has no digits below the cent.
// Trailing zeros do not count, so 10.000 is in cents.
func InCents(d decimal.Decimal) bool {
	return d.Equal(d.Truncate(2))
}

// Normalize merges entries that share a user id, summing paid, owed and value.
// The result keeps the order in which each user first appeared.
// Paid and owed amounts are taken as given and must already be in cents.
func Normalize(entries []Entry) ([]Entry, error) {
	index := make(map[string]int, len(entries))
	out := make([]Entry, 0, len(entries))

	for _, e := range entries {
		if e.UserID == "" {
			return nil, ErrMissingUser
		}
		if !InCents(e.Paid) || (e.Owed.Valid && !InCents(e.Owed.Decimal)) {
			return nil, fmt.Errorf("%w: user %s", ErrSubCent, e.UserID)
		}

		i, seen := index[e.UserID]
		if !seen {
			index[e.UserID] = len(out)
			out = append(out, e)
			continue
		}

		merged := &out[i]
		merged.Paid = merged.Paid.Add(e.Paid)
		merged.Value = merged.Value.Add(e.Value)
		if e.Owed.Valid {
			if merged.Owed.Valid {
				merged.Owed.Decimal = merged.Owed.Decimal.Add(e.Owed.Decimal)
			} else {
				merged.Owed = e.Owed
			}
		}
	}

	return out, nil
}

// Allocate computes each entry's owed amount for the given method.
// Entries must already be normalized. participantCount is the size of the
// explicit participant list and is used by equal, personal and excess.
//
// Computed amounts are rounded to cents per entry, half away from zero.
// The rounding residual is not redistributed.
func Allocate(method models.SplitMethod, total decimal.Decimal, entries []Entry, participantCount int) ([]models.Split, error) {
	switch method {
	case models.SplitManual, models.SplitFullOwed, models.SplitFullOwe:
		return allocateGiven(method, total, entries)
	case models.SplitPercentage:
		return allocatePercentage(total, entries)
	case models.SplitEqual, models.SplitPersonal:
		return allocateEqual(method, total, entries, participantCount)
	case models.SplitShares:
		return allocateShares(total, entries)
	case models.SplitExcess:
		return allocateExcess(total, entries, participantCount)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMethod, method)
	}
}

func allocateGiven(method models.SplitMethod, total decimal.Decimal, entries []Entry) ([]models.Split, error) {
	splits := make([]models.Split, len(entries))
	sum := decimal.Zero
	for i, e := range entries {
		owed := decimal.Zero
		if e.Owed.Valid {
			owed = e.Owed.Decimal
		}
		sum = sum.Add(owed)
		splits[i] = newSplit(e, owed)
	}

	if !sum.Equal(total) {
		return nil, &AllocationError{
			Method:   method,
			Reason:   "owed amounts must add up to the expense amount",
			Expected: total,
			Computed: sum,
		}
	}
	return splits, nil
}

func allocatePercentage(total decimal.Decimal, entries []Entry) ([]models.Split, error) {
	sum := sumValues(entries)
	if sum.Sub(hundred).Abs().GreaterThanOrEqual(percentTolerance) {
		return nil, &AllocationError{
			Method:   models.SplitPercentage,
			Reason:   "percentages must add up to 100",
			Expected: hundred,
			Computed: sum,
		}
	}

	splits := make([]models.Split, len(entries))
	for i, e := range entries {
		splits[i] = newSplit(e, total.Mul(e.Value).Div(hundred).Round(2))
	}
	return splits, nil
}

func allocateEqual(method models.SplitMethod, total decimal.Decimal, entries []Entry, participantCount int) ([]models.Split, error) {
	if participantCount <= 0 || len(entries) != participantCount {
		return nil, &AllocationError{
			Method:   method,
			Reason:   "split entries must match the participant count",
			Expected: decimal.NewFromInt(int64(participantCount)),
			Computed: decimal.NewFromInt(int64(len(entries))),
		}
	}

	each := total.Div(decimal.NewFromInt(int64(participantCount))).Round(2)
	splits := make([]models.Split, len(entries))
	for i, e := range entries {
		splits[i] = newSplit(e, each)
	}
	return splits, nil
}

func allocateShares(total decimal.Decimal, entries []Entry) ([]models.Split, error) {
	sum := sumValues(entries)
	if !sum.IsPositive() {
		return nil, &AllocationError{
			Method:   models.SplitShares,
			Reason:   "total shares must be greater than 0",
			Expected: decimal.NewFromInt(1),
			Computed: sum,
		}
	}

	splits := make([]models.Split, len(entries))
	for i, e := range entries {
		splits[i] = newSplit(e, e.Value.Mul(total).Div(sum).Round(2))
	}
	return splits, nil
}

func allocateExcess(total decimal.Decimal, entries []Entry, participantCount int) ([]models.Split, error) {
	if participantCount <= 0 {
		return nil, &AllocationError{
			Method:   models.SplitExcess,
			Reason:   "participant count must be greater than 0",
			Expected: decimal.NewFromInt(1),
			Computed: decimal.NewFromInt(int64(participantCount)),
		}
	}

	base := total.Sub(sumValues(entries)).Div(decimal.NewFromInt(int64(participantCount)))
	splits := make([]models.Split, len(entries))
	for i, e := range entries {
		splits[i] = newSplit(e, base.Add(e.Value).Round(2))
	}
	return splits, nil
}

func newSplit(e Entry, owed decimal.Decimal) models.Split {
	return models.Split{
		UserID:     e.UserID,
		PaidAmount: e.Paid,
		OwedAmount: owed,
		Value:      e.Value,
	}
}

func sumValues(entries []Entry) decimal.Decimal {
	sum := decimal.Zero
	for _, e := range entries {
		sum = sum.Add(e.Value)
	}
	return sum
}

// SumOwed adds up the owed amounts of splits.
func SumOwed(splits []models.Split) decimal.Decimal {
	sum := decimal.Zero
	for _, s := range splits {
		sum = sum.Add(s.OwedAmount)
	}
	return sum
}

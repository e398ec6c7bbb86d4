package models

import "github.com/shopspring/decimal"

// DateLayout is the format of Expense.ExpenseDate.
const DateLayout = "2006-01-02"

// MaxNameLength bounds Expense.Name.
const MaxNameLength = 50

// SplitMethod selects how an expense amount is allocated across its splits.
type SplitMethod string

const (
	SplitManual     SplitMethod = "manual"
	SplitFullOwed   SplitMethod = "full_owed"
	SplitFullOwe    SplitMethod = "full_owe"
	SplitPercentage SplitMethod = "percentage"
	SplitEqual      SplitMethod = "equal"
	SplitPersonal   SplitMethod = "personal"
	SplitShares     SplitMethod = "shares"
	SplitExcess     SplitMethod = "excess"
)

// SplitMethods returns every supported split method.
func SplitMethods() []SplitMethod {
	return []SplitMethod{
		SplitManual,
		SplitFullOwed,
		SplitFullOwe,
		SplitPercentage,
		SplitEqual,
		SplitPersonal,
		SplitShares,
		SplitExcess,
	}
}

// Valid reports whether m is one of SplitMethods.
func (m SplitMethod) Valid() bool {
	for _, known := range SplitMethods() {
		if m == known {
			return true
		}
	}
	return false
}

// FullAmount reports whether the method moves the whole amount to one side
// (full_owed / full_owe). Such expenses are left out of settlement netting.
func (m SplitMethod) FullAmount() bool {
	return m == SplitFullOwed || m == SplitFullOwe
}

// Category classifies an expense.
type Category string

const (
	CategoryHomeSupplies  Category = "Home Supplies"
	CategoryFood          Category = "Food"
	CategoryTransport     Category = "Transport"
	CategoryEntertainment Category = "Entertainment"
	CategoryPeriodic      Category = "Periodic Expenses"
	CategoryHealth        Category = "Health"
	CategoryOther         Category = "Other"
)

// Categories returns every supported category.
func Categories() []Category {
	return []Category{
		CategoryHomeSupplies,
		CategoryFood,
		CategoryTransport,
		CategoryEntertainment,
		CategoryPeriodic,
		CategoryHealth,
		CategoryOther,
	}
}

// Valid reports whether c is one of Categories.
func (c Category) Valid() bool {
	for _, known := range Categories() {
		if c == known {
			return true
		}
	}
	return false
}

// Currency is a tag on an expense. Amounts in different currencies are never combined.
type Currency string

// DefaultCurrency is used when an expense does not name one.
const DefaultCurrency Currency = "ARS"

var currencySymbols = map[Currency]string{
	"ARS": "$",
	"UYU": "$U",
	"CLP": "$",
	"MXN": "$",
	"BRL": "R$",
	"USD": "US$",
	"EUR": "€",
	"GBP": "£",
	"JPY": "¥",
	"PYG": "₲",
	"AUD": "A$",
	"KRW": "₩",
}

// Valid reports whether c is a supported currency code.
func (c Currency) Valid() bool {
	_, ok := currencySymbols[c]
	return ok
}

// Symbol returns the display symbol for c, or the code itself when unknown.
func (c Currency) Symbol() string {
	if s, ok := currencySymbols[c]; ok {
		return s
	}
	return string(c)
}

// Expense is one spending event.
type Expense struct {
	// ID is the unique identifier for the expense (UUID format).
	ID string

	// Name is free text, at most MaxNameLength characters.
	Name string

	// Amount is the total, always positive and quantized to cents.
	Amount decimal.Decimal

	Category    Category
	Currency    Currency
	SplitMethod SplitMethod

	// ExpenseDate is the user-supplied calendar date (DateLayout).
	ExpenseDate string

	// AddedBy is the user who recorded the expense. Immutable after creation.
	AddedBy string

	// PaidBy is the user who disbursed the money.
	PaidBy string

	// Participants is the derived participant set: explicit participants,
	// the payer, every split user and the adder.
	Participants []string

	// Splits holds one entry per user, in first-seen order.
	Splits []Split

	// IsSettlement marks expenses synthesized by a settlement.
	IsSettlement bool

	CreatedAt int64
	UpdatedAt int64
}

// Split is one user's share of an expense.
type Split struct {
	UserID string

	// PaidAmount is what this user actually disbursed toward the expense.
	PaidAmount decimal.Decimal

	// OwedAmount is this user's allocated share.
	OwedAmount decimal.Decimal

	// Value is the method-specific input (percentage, share count or excess).
	Value decimal.Decimal
}

// SplitFor returns the split for userID, if any.
func (e *Expense) SplitFor(userID string) (Split, bool) {
	for _, s := range e.Splits {
		if s.UserID == userID {
			return s, true
		}
	}
	return Split{}, false
}

// VisibleTo reports whether userID is a participant, the adder, the payer
// or has a split on the expense.
func (e *Expense) VisibleTo(userID string) bool {
	if e.AddedBy == userID || e.PaidBy == userID {
		return true
	}
	for _, p := range e.Participants {
		if p == userID {
			return true
		}
	}
	_, ok := e.SplitFor(userID)
	return ok
}

// InvolvedUsers returns the union of participants, payer, adder and split
// users, in first-seen order.
func (e *Expense) InvolvedUsers() []string {
	return UniqueIDs(e.Participants, []string{e.PaidBy, e.AddedBy}, splitUsers(e.Splits))
}

func splitUsers(splits []Split) []string {
	ids := make([]string, len(splits))
	for i, s := range splits {
		ids[i] = s.UserID
	}
	return ids
}

// UniqueIDs concatenates the lists, dropping empty and repeated ids.
func UniqueIDs(lists ...[]string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, list := range lists {
		for _, id := range list {
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

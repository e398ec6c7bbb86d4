package service

import (
	"github.com/mmynk/fairkeep/internal/calculator"
	"github.com/mmynk/fairkeep/internal/ledger"
	"github.com/mmynk/fairkeep/internal/models"
	"github.com/mmynk/fairkeep/pkg/api"
)

func toAPIUser(u *models.User) *api.User {
	return &api.User{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		CreatedAt:   u.CreatedAt,
	}
}

func toAPISplits(splits []models.Split) []*api.Split {
	out := make([]*api.Split, len(splits))
	for i, s := range splits {
		out[i] = &api.Split{
			UserID:     s.UserID,
			PaidAmount: s.PaidAmount,
			OwedAmount: s.OwedAmount,
			Value:      s.Value,
		}
	}
	return out
}

func toAPIExpense(e *models.Expense) *api.Expense {
	return &api.Expense{
		ID:             e.ID,
		Name:           e.Name,
		Amount:         e.Amount,
		Category:       string(e.Category),
		Currency:       string(e.Currency),
		CurrencySymbol: e.Currency.Symbol(),
		SplitMethod:    string(e.SplitMethod),
		ExpenseDate:    e.ExpenseDate,
		AddedBy:        e.AddedBy,
		PaidBy:         e.PaidBy,
		ParticipantIDs: e.Participants,
		Splits:         toAPISplits(e.Splits),
		IsSettlement:   e.IsSettlement,
		CreatedAt:      e.CreatedAt,
		UpdatedAt:      e.UpdatedAt,
	}
}

func toAPIActivity(a *models.Activity) *api.Activity {
	return &api.Activity{
		ID:              a.ID,
		ExpenseID:       a.ExpenseID,
		ActorID:         a.ActorID,
		Action:          string(a.Action),
		ExpenseName:     a.ExpenseName,
		ExpenseAmount:   a.ExpenseAmount,
		Category:        string(a.Category),
		Currency:        string(a.Currency),
		SplitMethod:     string(a.SplitMethod),
		ExpenseDate:     a.ExpenseDate,
		ParticipantIDs:  a.Participants,
		Splits:          toAPISplits(a.Splits),
		InvolvedUserIDs: a.InvolvedUsers,
		CreatedAt:       a.CreatedAt,
	}
}

func toAPIContactRequest(r *models.ContactRequest) *api.ContactRequest {
	return &api.ContactRequest{
		ID:         r.ID,
		FromUserID: r.FromUserID,
		ToUserID:   r.ToUserID,
		Status:     string(r.Status),
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}

func toAPIContactRequests(requests []*models.ContactRequest) []*api.ContactRequest {
	out := make([]*api.ContactRequest, len(requests))
	for i, r := range requests {
		out[i] = toAPIContactRequest(r)
	}
	return out
}

// toExpenseInput converts a request body. Nil splits are skipped.
func toExpenseInput(in *api.ExpenseInput) ledger.ExpenseInput {
	if in == nil {
		return ledger.ExpenseInput{}
	}

	entries := make([]calculator.Entry, 0, len(in.Splits))
	for _, s := range in.Splits {
		if s == nil {
			continue
		}
		entries = append(entries, calculator.Entry{
			UserID: s.UserID,
			Paid:   s.PaidAmount,
			Owed:   s.OwedAmount,
			Value:  s.Value,
		})
	}

	return ledger.ExpenseInput{
		Name:         in.Name,
		Amount:       in.Amount,
		Category:     models.Category(in.Category),
		Currency:     models.Currency(in.Currency),
		SplitMethod:  models.SplitMethod(in.SplitMethod),
		ExpenseDate:  in.ExpenseDate,
		PaidBy:       in.PaidBy,
		Participants: in.ParticipantIDs,
		Splits:       entries,
	}
}

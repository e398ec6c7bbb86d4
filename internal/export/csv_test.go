package export

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/fairkeep/internal/models"
)

func money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestWrite(t *testing.T) {
	users := map[string]*models.User{
		"u-me":    {ID: "u-me", DisplayName: "Zoe"},
		"u-bob":   {ID: "u-bob", DisplayName: "bob"},
		"u-alice": {ID: "u-alice", DisplayName: "Alice"},
	}
	expenses := []*models.Expense{
		{
			ID:          "e1",
			Name:        "Dinner",
			Amount:      money("90"),
			Category:    models.CategoryFood,
			Currency:    "USD",
			SplitMethod: models.SplitEqual,
			ExpenseDate: "2026-03-01",
			AddedBy:     "u-me",
			PaidBy:      "u-me",
			Splits: []models.Split{
				{UserID: "u-me", PaidAmount: money("90"), OwedAmount: money("30")},
				{UserID: "u-bob", OwedAmount: money("30")},
				{UserID: "u-alice", OwedAmount: money("30")},
			},
		},
		{
			ID:          "e2",
			Name:        "Taxi, late",
			Amount:      money("12.5"),
			Category:    models.CategoryTransport,
			Currency:    "ARS",
			SplitMethod: models.SplitManual,
			ExpenseDate: "2026-03-02",
			AddedBy:     "u-bob",
			PaidBy:      "u-bob",
			Splits: []models.Split{
				{UserID: "u-bob", PaidAmount: money("12.5"), OwedAmount: money("2.5")},
				{UserID: "u-me", OwedAmount: money("10")},
			},
		},
	}
	now := time.Date(2026, time.March, 14, 9, 30, 0, 0, time.UTC)

	var buf bytes.Buffer
	if err := Write(&buf, "u-me", expenses, users, now); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	r := csv.NewReader(strings.NewReader(buf.String()))
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		t.Fatalf("output is not valid CSV: %v", err)
	}

	wantHeader := "Date,Description,Category,Amount,Currency,CreatedBy,PaidBy,SplitMethod,SplitOptions,Zoe,Alice,bob"
	if got := strings.Join(records[0], ","); got != wantHeader {
		t.Errorf("header = %q\nwant     %q", got, wantHeader)
	}

	dinner := records[1]
	if dinner[1] != "Dinner" || dinner[3] != "90.00" || dinner[7] != "Equal" || dinner[8] != "" {
		t.Errorf("dinner row = %v", dinner)
	}
	if got := strings.Join(dinner[9:], ","); got != "60.00,-30.00,-30.00" {
		t.Errorf("dinner nets = %s, want 60.00,-30.00,-30.00", got)
	}

	taxi := records[2]
	if taxi[1] != "Taxi, late" || taxi[5] != "bob" || taxi[7] != "Manual" {
		t.Errorf("taxi row = %v", taxi)
	}
	if taxi[8] != `{"Zoe":10.00,"bob":2.50}` {
		t.Errorf("SplitOptions = %s", taxi[8])
	}
	if got := strings.Join(taxi[9:], ","); got != "-10.00,0.00,10.00" {
		t.Errorf("taxi nets = %s, want -10.00,0.00,10.00", got)
	}

	// csv.Reader skips blank lines, so the footer follows the last expense.
	footer := records[len(records)-1]
	if footer[0] != "2026-03-14 09:30:00" || len(footer) != len(records[0]) {
		t.Errorf("footer = %v", footer)
	}
	if !strings.Contains(buf.String(), "\n\n\n2026-03-14 09:30:00") {
		t.Error("expected two blank rows before the timestamp")
	}
}

func TestWrite_NoExpenses(t *testing.T) {
	var buf bytes.Buffer
	users := map[string]*models.User{"u-me": {ID: "u-me", Email: "me@example.com"}}
	if err := Write(&buf, "u-me", nil, users, time.Unix(0, 0).UTC()); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	first := strings.SplitN(buf.String(), "\n", 2)[0]
	if !strings.HasSuffix(first, ",SplitOptions,me@example.com") {
		t.Errorf("header = %q, want the viewer column only", first)
	}
}

func TestWrite_SplitOptions(t *testing.T) {
	users := map[string]*models.User{
		"u-me":  {ID: "u-me", DisplayName: "Sam"},
		"u-sam": {ID: "u-sam", DisplayName: "Sam"},
	}
	expenses := []*models.Expense{{
		ID:          "e1",
		Name:        "Rent",
		Amount:      money("100"),
		Currency:    "USD",
		SplitMethod: models.SplitFullOwed,
		ExpenseDate: "2026-03-01",
		AddedBy:     "u-me",
		PaidBy:      "u-me",
		Splits: []models.Split{
			{UserID: "u-me", PaidAmount: money("100")},
			{UserID: "u-sam", OwedAmount: money("100")},
		},
	}}

	var buf bytes.Buffer
	if err := Write(&buf, "u-me", expenses, users, time.Unix(0, 0).UTC()); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	records, err := csv.NewReader(strings.NewReader(buf.String())).ReadAll()
	if err != nil {
		t.Fatalf("output is not valid CSV: %v", err)
	}

	row := records[1]
	if row[7] != "Full_Owed" {
		t.Errorf("SplitMethod = %q, want Full_Owed", row[7])
	}
	if want := `{"Sam (u-me)":0.00,"Sam (u-sam)":100.00}`; row[8] != want {
		t.Errorf("SplitOptions = %s, want %s", row[8], want)
	}
}

func TestTitleWords(t *testing.T) {
	tests := map[string]string{
		"equal":      "Equal",
		"full_owe":   "Full_Owe",
		"percentage": "Percentage",
		"":           "",
	}
	for in, want := range tests {
		if got := titleWords(in); got != want {
			t.Errorf("titleWords(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFilename(t *testing.T) {
	got := Filename("alice", time.Date(2026, time.March, 14, 9, 30, 5, 0, time.UTC))
	if got != "alice_2026-03-14T09-30-05.csv" {
		t.Errorf("Filename = %q", got)
	}
}

// Package export renders a user's visible expenses as a CSV spreadsheet
// with one net column per involved user.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/mmynk/fairkeep/internal/models"
)

// TimestampLayout formats the trailing download timestamp row.
const TimestampLayout = "2006-01-02 15:04:05"

var fixedColumns = []string{
	"Date",
	"Description",
	"Category",
	"Amount",
	"Currency",
	"CreatedBy",
	"PaidBy",
	"SplitMethod",
	"SplitOptions",
}

// InvolvedUsers returns viewerID plus everyone who added, paid or has a
// split on any of the expenses.
func InvolvedUsers(viewerID string, expenses []*models.Expense) []string {
	lists := [][]string{{viewerID}}
	for _, e := range expenses {
		ids := []string{e.AddedBy, e.PaidBy}
		for _, s := range e.Splits {
			ids = append(ids, s.UserID)
		}
		lists = append(lists, ids)
	}
	return models.UniqueIDs(lists...)
}

// Write renders expenses as CSV from viewerID's point of view.
//
// After the fixed columns there is one column per involved user: the viewer
// first, then the rest by display name, case-insensitively. Each holds that
// user's paid minus owed amount. Two blank rows and the download timestamp
// close the sheet.
func Write(w io.Writer, viewerID string, expenses []*models.Expense, users map[string]*models.User, now time.Time) error {
	name := func(id string) string {
		if u, ok := users[id]; ok {
			return u.Name()
		}
		return id
	}

	columns := userColumns(viewerID, expenses, name)
	header := append([]string(nil), fixedColumns...)
	for _, id := range columns {
		header = append(header, name(id))
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for _, e := range expenses {
		options, err := splitOptions(e, name)
		if err != nil {
			return err
		}

		net := make(map[string]decimal.Decimal, len(e.Splits))
		for _, s := range e.Splits {
			net[s.UserID] = net[s.UserID].Add(s.PaidAmount).Sub(s.OwedAmount)
		}

		row := []string{
			e.ExpenseDate,
			e.Name,
			string(e.Category),
			e.Amount.StringFixed(2),
			string(e.Currency),
			name(e.AddedBy),
			name(e.PaidBy),
			titleWords(string(e.SplitMethod)),
			options,
		}
		for _, id := range columns {
			row = append(row, net[id].StringFixed(2))
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write expense %s: %w", e.ID, err)
		}
	}

	footer := make([]string, len(header))
	footer[0] = now.Format(TimestampLayout)
	for _, record := range [][]string{{}, {}, footer} {
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write footer: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func userColumns(viewerID string, expenses []*models.Expense, name func(string) string) []string {
	var others []string
	for _, id := range InvolvedUsers(viewerID, expenses) {
		if id != viewerID {
			others = append(others, id)
		}
	}
	sort.SliceStable(others, func(i, j int) bool {
		a, b := strings.ToLower(name(others[i])), strings.ToLower(name(others[j]))
		if a != b {
			return a < b
		}
		return others[i] < others[j]
	})
	return append([]string{viewerID}, others...)
}

// titleWords capitalizes each underscore separated word, so full_owed
// becomes Full_Owed.
func titleWords(s string) string {
	// Casers keep state, so each call gets its own.
	title := cases.Title(language.Und)
	words := strings.Split(s, "_")
	for i, w := range words {
		words[i] = title.String(w)
	}
	return strings.Join(words, "_")
}

// splitOptions maps display name to owed amount. Equal splits leave it empty.
// Users sharing a display name are keyed as "name (id)" so none is dropped.
func splitOptions(e *models.Expense, name func(string) string) (string, error) {
	if e.SplitMethod == models.SplitEqual || len(e.Splits) == 0 {
		return "", nil
	}

	seen := make(map[string]int, len(e.Splits))
	for _, s := range e.Splits {
		seen[name(s.UserID)]++
	}

	options := make(map[string]json.Number, len(e.Splits))
	for _, s := range e.Splits {
		key := name(s.UserID)
		if seen[key] > 1 {
			key = fmt.Sprintf("%s (%s)", key, s.UserID)
		}
		options[key] = json.Number(s.OwedAmount.StringFixed(2))
	}
	data, err := json.Marshal(options)
	if err != nil {
		return "", fmt.Errorf("failed to encode split options: %w", err)
	}
	return string(data), nil
}

// Filename is the attachment name for userName's export taken at now.
func Filename(userName string, now time.Time) string {
	return fmt.Sprintf("%s_%s.csv", userName, now.Format("2006-01-02T15-04-05"))
}

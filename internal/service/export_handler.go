package service

import (
	"bytes"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mmynk/fairkeep/internal/export"
	"github.com/mmynk/fairkeep/internal/ledger"
	"github.com/mmynk/fairkeep/internal/middleware"
	"github.com/mmynk/fairkeep/internal/storage"
)

// ExportPath serves the caller's expenses as a CSV attachment.
const ExportPath = "/export/expenses.csv"

// maxOffsetMinutes bounds tz_offset to real UTC offsets.
const maxOffsetMinutes = 14 * 60

// ExportHandler renders the caller's visible expenses as CSV.
// It expects middleware.RequireAuthHTTP in front of it.
type ExportHandler struct {
	ledger *ledger.Service
	users  storage.UserStore
	now    func() time.Time
}

// NewExportHandler creates an ExportHandler.
func NewExportHandler(ledgerSvc *ledger.Service, users storage.UserStore) *ExportHandler {
	return &ExportHandler{ledger: ledgerSvc, users: users, now: time.Now}
}

// ServeHTTP handles GET requests. The optional tz_offset query parameter is
// the client's offset from UTC in minutes and only affects the timestamp.
func (h *ExportHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		http.Error(w, errAuthRequired.Error(), http.StatusUnauthorized)
		return
	}

	now := h.now().UTC()
	if raw := r.URL.Query().Get("tz_offset"); raw != "" {
		minutes, err := strconv.Atoi(raw)
		if err != nil || minutes < -maxOffsetMinutes || minutes > maxOffsetMinutes {
			http.Error(w, "tz_offset must be minutes from UTC", http.StatusBadRequest)
			return
		}
		now = now.In(time.FixedZone("", minutes*60))
	}

	expenses, err := h.ledger.ListVisibleExpenses(r.Context(), userID)
	if err != nil {
		slog.Error("Failed to list expenses for export", "user_id", userID, "error", err)
		http.Error(w, errInternal.Error(), http.StatusInternalServerError)
		return
	}

	users, err := h.users.GetUsersByIDs(r.Context(), export.InvolvedUsers(userID, expenses))
	if err != nil {
		slog.Error("Failed to load users for export", "user_id", userID, "error", err)
		http.Error(w, errInternal.Error(), http.StatusInternalServerError)
		return
	}

	// Render fully before writing headers so a failure can still be a 500.
	var buf bytes.Buffer
	if err := export.Write(&buf, userID, expenses, users, now); err != nil {
		slog.Error("Failed to render export", "user_id", userID, "error", err)
		http.Error(w, errInternal.Error(), http.StatusInternalServerError)
		return
	}

	name := userID
	if u, ok := users[userID]; ok {
		name = u.Name()
	}
	filename := strings.NewReplacer(`"`, "", "\\", "", "/", "_").Replace(export.Filename(name, now))

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	if _, err := buf.WriteTo(w); err != nil {
		slog.Warn("Failed to write export response", "user_id", userID, "error", err)
		return
	}

	slog.Info("Exported expenses", "user_id", userID, "count", len(expenses))
}

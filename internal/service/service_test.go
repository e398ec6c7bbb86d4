package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/shopspring/decimal"

	"github.com/mmynk/fairkeep/internal/auth"
	"github.com/mmynk/fairkeep/internal/contacts"
	"github.com/mmynk/fairkeep/internal/ledger"
	"github.com/mmynk/fairkeep/internal/middleware"
	"github.com/mmynk/fairkeep/internal/storage/sqlstore"
	"github.com/mmynk/fairkeep/pkg/api"
	"github.com/mmynk/fairkeep/pkg/api/apiconnect"
)

const testPassword = "correct-horse"

type testServer struct {
	url      string
	auth     apiconnect.AuthServiceClient
	contacts apiconnect.ContactServiceClient
	ledger   apiconnect.LedgerServiceClient
}

// setupTestServer wires every service over a temporary SQLite database, with
// the same auth interceptors the server uses.
func setupTestServer(t *testing.T) *testServer {
	t.Helper()

	tempDir, err := os.MkdirTemp("", "fairkeep-service-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tempDir) })

	store, err := sqlstore.NewSQLite(filepath.Join(tempDir, "test.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	jwtManager := auth.NewJWTManager("test-secret", time.Hour)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	graph := contacts.NewService(store)
	ledgerSvc := ledger.NewService(store, graph)

	required := connect.WithInterceptors(middleware.RequireAuth(jwtManager))
	optional := connect.WithInterceptors(middleware.OptionalAuth(jwtManager))

	mux := http.NewServeMux()
	mux.Handle(apiconnect.NewAuthServiceHandler(
		NewAuthService(auth.NewPasswordAuthenticator(store), jwtManager, store, logger), optional))
	mux.Handle(apiconnect.NewContactServiceHandler(NewContactService(graph, store), required))
	mux.Handle(apiconnect.NewLedgerServiceHandler(NewLedgerService(ledgerSvc), required))
	mux.Handle(ExportPath, middleware.RequireAuthHTTP(jwtManager)(NewExportHandler(ledgerSvc, store)))

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return &testServer{
		url:      server.URL,
		auth:     apiconnect.NewAuthServiceClient(http.DefaultClient, server.URL),
		contacts: apiconnect.NewContactServiceClient(http.DefaultClient, server.URL),
		ledger:   apiconnect.NewLedgerServiceClient(http.DefaultClient, server.URL),
	}
}

type session struct {
	id    string
	token string
}

func (s *testServer) register(t *testing.T, name string) session {
	t.Helper()
	resp, err := s.auth.Register(context.Background(), connect.NewRequest(&api.RegisterRequest{
		Email:       strings.ToLower(name) + "@example.com",
		DisplayName: name,
		Password:    testPassword,
	}))
	if err != nil {
		t.Fatalf("Register(%s) failed: %v", name, err)
	}
	return session{id: resp.Msg.User.ID, token: resp.Msg.Token}
}

// befriend makes a and b accepted contacts, b accepting a's request.
func (s *testServer) befriend(t *testing.T, a, b session) {
	t.Helper()
	ctx := context.Background()

	sent, err := s.contacts.SendContactRequest(ctx, as(a, &api.SendContactRequestRequest{ToUserID: b.id}))
	if err != nil {
		t.Fatalf("SendContactRequest failed: %v", err)
	}
	if _, err := s.contacts.RespondContactRequest(ctx, as(b, &api.RespondContactRequestRequest{
		RequestID: sent.Msg.Request.ID,
		Accept:    true,
	})); err != nil {
		t.Fatalf("RespondContactRequest failed: %v", err)
	}
}

// as builds a request carrying the session's bearer token.
func as[T any](s session, msg *T) *connect.Request[T] {
	req := connect.NewRequest(msg)
	req.Header().Set("Authorization", "Bearer "+s.token)
	return req
}

func equalExpense(name, amount string, payer string, users ...string) *api.ExpenseInput {
	splits := make([]*api.SplitInput, len(users))
	for i, u := range users {
		splits[i] = &api.SplitInput{UserID: u}
		if u == payer {
			splits[i].PaidAmount = decimal.RequireFromString(amount)
		}
	}
	return &api.ExpenseInput{
		Name:           name,
		Amount:         decimal.RequireFromString(amount),
		Category:       "Food",
		Currency:       "USD",
		SplitMethod:    "equal",
		PaidBy:         payer,
		ParticipantIDs: users,
		Splits:         splits,
	}
}

func TestLedgerFlow(t *testing.T) {
	srv := setupTestServer(t)
	ctx := context.Background()
	alice := srv.register(t, "Alice")
	bob := srv.register(t, "Bob")
	srv.befriend(t, alice, bob)

	created, err := srv.ledger.CreateExpense(ctx, as(alice, &api.CreateExpenseRequest{
		Expense: equalExpense("Dinner", "90", alice.id, alice.id, bob.id),
	}))
	if err != nil {
		t.Fatalf("CreateExpense failed: %v", err)
	}
	if created.Msg.Expense.CurrencySymbol != "US$" {
		t.Errorf("CurrencySymbol = %q, want US$", created.Msg.Expense.CurrencySymbol)
	}

	got, err := srv.ledger.GetExpense(ctx, as(bob, &api.GetExpenseRequest{ID: created.Msg.Expense.ID}))
	if err != nil {
		t.Fatalf("GetExpense as participant failed: %v", err)
	}
	if got.Msg.Expense.Name != "Dinner" {
		t.Errorf("Name = %q, want Dinner", got.Msg.Expense.Name)
	}

	balances, err := srv.ledger.GetBalances(ctx, as(alice, &api.GetBalancesRequest{}))
	if err != nil {
		t.Fatalf("GetBalances failed: %v", err)
	}
	if len(balances.Msg.Balances) != 1 {
		t.Fatalf("expected 1 balance, got %d", len(balances.Msg.Balances))
	}
	b := balances.Msg.Balances[0]
	if b.CounterpartyID != bob.id || b.CounterpartyName != "Bob" || b.Currency != "USD" || !b.Amount.Equal(decimal.NewFromInt(45)) {
		t.Errorf("balance = %+v, want Bob owes 45 USD", b)
	}

	settled, err := srv.ledger.Settle(ctx, as(bob, &api.SettleRequest{CounterpartyID: alice.id, Currency: "usd"}))
	if err != nil {
		t.Fatalf("Settle failed: %v", err)
	}
	if !settled.Msg.Settled || settled.Msg.PayerID != bob.id || !settled.Msg.Amount.Equal(decimal.NewFromInt(45)) {
		t.Errorf("settle = %+v, want bob paying 45", settled.Msg)
	}
	if settled.Msg.Expense == nil || !settled.Msg.Expense.IsSettlement {
		t.Errorf("expected a settlement expense, got %+v", settled.Msg.Expense)
	}

	again, err := srv.ledger.Settle(ctx, as(bob, &api.SettleRequest{CounterpartyID: alice.id, Currency: "USD"}))
	if err != nil {
		t.Fatalf("second Settle failed: %v", err)
	}
	if again.Msg.Settled || again.Msg.Message != "nothing to settle" {
		t.Errorf("second settle = %+v, want nothing to settle", again.Msg)
	}

	balances, err = srv.ledger.GetBalances(ctx, as(alice, &api.GetBalancesRequest{}))
	if err != nil {
		t.Fatalf("GetBalances failed: %v", err)
	}
	if len(balances.Msg.Balances) != 1 || !balances.Msg.Balances[0].Amount.IsZero() {
		t.Errorf("expected a zero balance after settling, got %+v", balances.Msg.Balances)
	}

	activities, err := srv.ledger.ListActivities(ctx, as(alice, &api.ListActivitiesRequest{}))
	if err != nil {
		t.Fatalf("ListActivities failed: %v", err)
	}
	var actions []string
	for _, a := range activities.Msg.Activities {
		actions = append(actions, a.Action)
	}
	if strings.Join(actions, ",") != "settled,created" {
		t.Errorf("actions = %v, want [settled created]", actions)
	}
}

func TestCreateExpense_TotalMismatchMetadata(t *testing.T) {
	srv := setupTestServer(t)
	alice := srv.register(t, "Alice")
	bob := srv.register(t, "Bob")
	srv.befriend(t, alice, bob)

	in := equalExpense("Groceries", "90", alice.id, alice.id, bob.id)
	in.SplitMethod = "manual"
	in.Splits[0].OwedAmount = decimal.NewNullDecimal(decimal.NewFromInt(50))
	in.Splits[1].OwedAmount = decimal.NewNullDecimal(decimal.NewFromInt(30))

	_, err := srv.ledger.CreateExpense(context.Background(), as(alice, &api.CreateExpenseRequest{Expense: in}))
	var connectErr *connect.Error
	if !errors.As(err, &connectErr) {
		t.Fatalf("expected connect error, got %v", err)
	}
	if connectErr.Code() != connect.CodeInvalidArgument {
		t.Fatalf("code = %v, want InvalidArgument", connectErr.Code())
	}

	for header, want := range map[string]string{
		ExpectedTotalHeader: "90",
		ComputedTotalHeader: "80",
	} {
		got, err := decimal.NewFromString(connectErr.Meta().Get(header))
		if err != nil || !got.Equal(decimal.RequireFromString(want)) {
			t.Errorf("%s = %q, want %s", header, connectErr.Meta().Get(header), want)
		}
	}
}

func TestCreateExpense_IdempotencyKeyHeader(t *testing.T) {
	srv := setupTestServer(t)
	ctx := context.Background()
	alice := srv.register(t, "Alice")

	var ids []string
	for i := 0; i < 2; i++ {
		req := as(alice, &api.CreateExpenseRequest{Expense: equalExpense("Coffee", "4.5", alice.id, alice.id)})
		req.Header().Set(IdempotencyKeyHeader, "coffee-1")
		resp, err := srv.ledger.CreateExpense(ctx, req)
		if err != nil {
			t.Fatalf("CreateExpense #%d failed: %v", i+1, err)
		}
		ids = append(ids, resp.Msg.Expense.ID)
	}
	if ids[0] != ids[1] {
		t.Errorf("replay returned %s, want %s", ids[1], ids[0])
	}

	list, err := srv.ledger.ListExpenses(ctx, as(alice, &api.ListExpensesRequest{}))
	if err != nil {
		t.Fatalf("ListExpenses failed: %v", err)
	}
	if len(list.Msg.Expenses) != 1 {
		t.Errorf("expected 1 expense, got %d", len(list.Msg.Expenses))
	}
}

func TestLedger_ErrorCodes(t *testing.T) {
	srv := setupTestServer(t)
	ctx := context.Background()
	alice := srv.register(t, "Alice")
	bob := srv.register(t, "Bob")
	stranger := srv.register(t, "Stranger")
	srv.befriend(t, alice, bob)

	created, err := srv.ledger.CreateExpense(ctx, as(alice, &api.CreateExpenseRequest{
		Expense: equalExpense("Dinner", "30", alice.id, alice.id, bob.id),
	}))
	if err != nil {
		t.Fatalf("CreateExpense failed: %v", err)
	}
	expenseID := created.Msg.Expense.ID

	tests := []struct {
		name string
		call func() error
		want connect.Code
	}{
		{"no token", func() error {
			_, err := srv.ledger.GetBalances(ctx, connect.NewRequest(&api.GetBalancesRequest{}))
			return err
		}, connect.CodeUnauthenticated},
		{"hidden expense", func() error {
			_, err := srv.ledger.GetExpense(ctx, as(stranger, &api.GetExpenseRequest{ID: expenseID}))
			return err
		}, connect.CodeNotFound},
		{"missing expense", func() error {
			_, err := srv.ledger.DeleteExpense(ctx, as(alice, &api.DeleteExpenseRequest{ID: "nope"}))
			return err
		}, connect.CodeNotFound},
		{"stranger as participant", func() error {
			_, err := srv.ledger.CreateExpense(ctx, as(alice, &api.CreateExpenseRequest{
				Expense: equalExpense("Taxi", "10", alice.id, alice.id, stranger.id),
			}))
			return err
		}, connect.CodeNotFound},
		{"missing body", func() error {
			_, err := srv.ledger.CreateExpense(ctx, as(alice, &api.CreateExpenseRequest{}))
			return err
		}, connect.CodeInvalidArgument},
		{"settle with self", func() error {
			_, err := srv.ledger.Settle(ctx, as(alice, &api.SettleRequest{CounterpartyID: alice.id, Currency: "USD"}))
			return err
		}, connect.CodeInvalidArgument},
		{"settle with stranger", func() error {
			_, err := srv.ledger.Settle(ctx, as(alice, &api.SettleRequest{CounterpartyID: stranger.id, Currency: "USD"}))
			return err
		}, connect.CodeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			if connect.CodeOf(err) != tt.want {
				t.Errorf("code = %v, want %v (err: %v)", connect.CodeOf(err), tt.want, err)
			}
		})
	}
}

func TestUpdateAndDeleteExpense(t *testing.T) {
	srv := setupTestServer(t)
	ctx := context.Background()
	alice := srv.register(t, "Alice")
	bob := srv.register(t, "Bob")
	srv.befriend(t, alice, bob)

	created, err := srv.ledger.CreateExpense(ctx, as(alice, &api.CreateExpenseRequest{
		Expense: equalExpense("Dinner", "30", alice.id, alice.id, bob.id),
	}))
	if err != nil {
		t.Fatalf("CreateExpense failed: %v", err)
	}
	id := created.Msg.Expense.ID

	updated, err := srv.ledger.UpdateExpense(ctx, as(bob, &api.UpdateExpenseRequest{
		ID:      id,
		Expense: equalExpense("Late dinner", "40", alice.id, alice.id, bob.id),
	}))
	if err != nil {
		t.Fatalf("UpdateExpense failed: %v", err)
	}
	if updated.Msg.Expense.Name != "Late dinner" || updated.Msg.Expense.AddedBy != alice.id {
		t.Errorf("updated = %+v", updated.Msg.Expense)
	}

	if _, err := srv.ledger.DeleteExpense(ctx, as(bob, &api.DeleteExpenseRequest{ID: id})); err != nil {
		t.Fatalf("DeleteExpense failed: %v", err)
	}
	if _, err := srv.ledger.GetExpense(ctx, as(alice, &api.GetExpenseRequest{ID: id})); connect.CodeOf(err) != connect.CodeNotFound {
		t.Errorf("GetExpense after delete: code = %v, want NotFound", connect.CodeOf(err))
	}

	activities, err := srv.ledger.ListActivities(ctx, as(alice, &api.ListActivitiesRequest{Limit: 2}))
	if err != nil {
		t.Fatalf("ListActivities failed: %v", err)
	}
	if len(activities.Msg.Activities) != 2 {
		t.Fatalf("expected 2 activities, got %d", len(activities.Msg.Activities))
	}
	deleted := activities.Msg.Activities[0]
	if deleted.Action != "deleted" || deleted.ExpenseName != "Late dinner" || deleted.ActorID != bob.id {
		t.Errorf("latest activity = %+v", deleted)
	}
}

func TestContacts(t *testing.T) {
	srv := setupTestServer(t)
	ctx := context.Background()
	alice := srv.register(t, "Alice")
	bob := srv.register(t, "Bob")

	sent, err := srv.contacts.SendContactRequest(ctx, as(alice, &api.SendContactRequestRequest{Email: " BOB@example.com "}))
	if err != nil {
		t.Fatalf("SendContactRequest by email failed: %v", err)
	}
	if sent.Msg.Request.ToUserID != bob.id || sent.Msg.Request.Status != "pending" {
		t.Errorf("request = %+v", sent.Msg.Request)
	}

	list, err := srv.contacts.ListContacts(ctx, as(bob, &api.ListContactsRequest{}))
	if err != nil {
		t.Fatalf("ListContacts failed: %v", err)
	}
	if len(list.Msg.Incoming) != 1 || len(list.Msg.Contacts) != 0 {
		t.Fatalf("bob's list = %+v", list.Msg)
	}

	_, err = srv.contacts.RespondContactRequest(ctx, as(alice, &api.RespondContactRequestRequest{
		RequestID: sent.Msg.Request.ID,
		Accept:    true,
	}))
	if connect.CodeOf(err) != connect.CodePermissionDenied {
		t.Errorf("sender responding: code = %v, want PermissionDenied", connect.CodeOf(err))
	}

	if _, err := srv.contacts.RespondContactRequest(ctx, as(bob, &api.RespondContactRequestRequest{
		RequestID: sent.Msg.Request.ID,
		Accept:    true,
	})); err != nil {
		t.Fatalf("RespondContactRequest failed: %v", err)
	}

	list, err = srv.contacts.ListContacts(ctx, as(alice, &api.ListContactsRequest{}))
	if err != nil {
		t.Fatalf("ListContacts failed: %v", err)
	}
	if len(list.Msg.Contacts) != 1 || list.Msg.Contacts[0].DisplayName != "Bob" {
		t.Errorf("alice's contacts = %+v", list.Msg.Contacts)
	}

	_, err = srv.contacts.SendContactRequest(ctx, as(alice, &api.SendContactRequestRequest{Email: "nobody@example.com"}))
	if connect.CodeOf(err) != connect.CodeNotFound {
		t.Errorf("unknown email: code = %v, want NotFound", connect.CodeOf(err))
	}
	_, err = srv.contacts.SendContactRequest(ctx, as(alice, &api.SendContactRequestRequest{ToUserID: alice.id}))
	if connect.CodeOf(err) != connect.CodeInvalidArgument {
		t.Errorf("self request: code = %v, want InvalidArgument", connect.CodeOf(err))
	}
}

func TestAuthService(t *testing.T) {
	srv := setupTestServer(t)
	ctx := context.Background()
	alice := srv.register(t, "Alice")

	me, err := srv.auth.GetCurrentUser(ctx, as(alice, &api.GetCurrentUserRequest{}))
	if err != nil {
		t.Fatalf("GetCurrentUser failed: %v", err)
	}
	if me.Msg.User.ID != alice.id || me.Msg.User.Email != "alice@example.com" {
		t.Errorf("user = %+v", me.Msg.User)
	}

	if _, err := srv.auth.GetCurrentUser(ctx, connect.NewRequest(&api.GetCurrentUserRequest{})); connect.CodeOf(err) != connect.CodeUnauthenticated {
		t.Errorf("anonymous GetCurrentUser: code = %v, want Unauthenticated", connect.CodeOf(err))
	}

	_, err = srv.auth.Register(ctx, connect.NewRequest(&api.RegisterRequest{
		Email:       "alice@example.com",
		DisplayName: "Other Alice",
		Password:    testPassword,
	}))
	if connect.CodeOf(err) != connect.CodeAlreadyExists {
		t.Errorf("duplicate Register: code = %v, want AlreadyExists", connect.CodeOf(err))
	}

	_, err = srv.auth.ChangePassword(ctx, as(alice, &api.ChangePasswordRequest{
		CurrentPassword: "wrong-password",
		NewPassword:     "another-secret",
	}))
	if connect.CodeOf(err) != connect.CodePermissionDenied {
		t.Errorf("wrong current password: code = %v, want PermissionDenied", connect.CodeOf(err))
	}

	if _, err := srv.auth.ChangePassword(ctx, as(alice, &api.ChangePasswordRequest{
		CurrentPassword: testPassword,
		NewPassword:     "another-secret",
	})); err != nil {
		t.Fatalf("ChangePassword failed: %v", err)
	}

	if _, err := srv.auth.Login(ctx, connect.NewRequest(&api.LoginRequest{
		Email:    "alice@example.com",
		Password: testPassword,
	})); connect.CodeOf(err) != connect.CodeUnauthenticated {
		t.Errorf("login with old password: code = %v, want Unauthenticated", connect.CodeOf(err))
	}

	login, err := srv.auth.Login(ctx, connect.NewRequest(&api.LoginRequest{
		Email:    "Alice@Example.com",
		Password: "another-secret",
	}))
	if err != nil {
		t.Fatalf("Login with new password failed: %v", err)
	}
	if login.Msg.Token == "" || login.Msg.ExpiresAt <= time.Now().Unix() {
		t.Errorf("login = %+v", login.Msg)
	}
}

func TestExportHandler(t *testing.T) {
	srv := setupTestServer(t)
	alice := srv.register(t, "Alice")
	bob := srv.register(t, "Bob")
	srv.befriend(t, alice, bob)

	if _, err := srv.ledger.CreateExpense(context.Background(), as(alice, &api.CreateExpenseRequest{
		Expense: equalExpense("Dinner", "90", alice.id, alice.id, bob.id),
	})); err != nil {
		t.Fatalf("CreateExpense failed: %v", err)
	}

	get := func(token, query string) *http.Response {
		t.Helper()
		req, err := http.NewRequest(http.MethodGet, srv.url+ExportPath+query, nil)
		if err != nil {
			t.Fatalf("NewRequest failed: %v", err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("GET export failed: %v", err)
		}
		t.Cleanup(func() { resp.Body.Close() })
		return resp
	}

	resp := get(alice.token, "?tz_offset=-180")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("Content-Type = %q", ct)
	}
	if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, `filename="Alice_`) {
		t.Errorf("Content-Disposition = %q", cd)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}
	lines := strings.Split(string(body), "\n")
	if !strings.HasSuffix(lines[0], ",SplitOptions,Alice,Bob") {
		t.Errorf("header = %q", lines[0])
	}
	if !strings.HasSuffix(lines[1], ",45.00,-45.00") {
		t.Errorf("row = %q", lines[1])
	}

	if resp := get("", ""); resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("anonymous status = %d, want 401", resp.StatusCode)
	}
	if resp := get(alice.token, "?tz_offset=soon"); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad tz_offset status = %d, want 400", resp.StatusCode)
	}
}

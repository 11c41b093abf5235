package adapthttp

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"attendance/internal/adapter/memory"
	"attendance/internal/app"
	"attendance/internal/domain"
)

type testEnv struct {
	handler http.Handler
	db      *memory.DB
	creds   *app.CredentialService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := memory.New()
	creds, err := app.NewCredentialService("qr-test-secret", 60)
	if err != nil {
		t.Fatalf("credential service: %v", err)
	}
	auth, err := app.NewAuthService(db, "jwt-test-secret", time.Hour)
	if err != nil {
		t.Fatalf("auth service: %v", err)
	}

	sessionRepo := db.NewSessionRepo()
	sessions := app.NewSessionService(sessionRepo, creds)
	leaderboard := app.NewLeaderboardService(db, nil)
	attendance := app.NewAttendanceService(creds, sessionRepo, db, leaderboard)
	groups := app.NewGroupService(db)

	srv := New(attendance, sessions, auth, groups, leaderboard, OIDCConfig{})
	return &testEnv{handler: srv.Handler(), db: db, creds: creds}
}

func (e *testEnv) seedUser(t *testing.T, name, email, pin string, role domain.Role) {
	t.Helper()
	auth, err := app.NewAuthService(e.db, "jwt-test-secret", time.Hour)
	if err != nil {
		t.Fatalf("auth service: %v", err)
	}
	if _, err := auth.CreateUser(context.Background(), name, email, "", pin, role); err != nil {
		t.Fatalf("seed user %s: %v", name, err)
	}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

func (e *testEnv) login(t *testing.T, email, pin string) string {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": email, "pin": pin})
	if rec.Code != http.StatusOK {
		t.Fatalf("login %s: status %d body %s", email, rec.Code, rec.Body.String())
	}
	var resp struct {
		Token string `json:"token"`
	}
	decodeBody(t, rec, &resp)
	return resp.Token
}

// createSession creates a session through the admin API whose window covers
// the current moment, and returns its public id and a scannable code.
func (e *testEnv) createSession(t *testing.T, adminToken string) (string, string) {
	t.Helper()
	now := time.Now().UTC()
	rec := e.do(t, http.MethodPost, "/api/admin/sessions", adminToken, map[string]any{
		"name":     "Workshop",
		"startsAt": now.Add(-time.Hour),
		"endsAt":   now.Add(time.Hour),
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create session: status %d body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		SessionID string `json:"sessionId"`
		Payload   struct {
			SID string `json:"sid"`
			Exp int64  `json:"exp"`
			Sig string `json:"sig"`
		} `json:"payload"`
	}
	decodeBody(t, rec, &resp)
	raw, err := json.Marshal(resp.Payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return resp.SessionID, string(raw)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
}

func TestLoginEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "Alice", "alice@example.com", "1234", domain.RoleUser)

	token := env.login(t, "alice@example.com", "1234")
	rec := env.do(t, http.MethodGet, "/api/auth/me", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("me: status %d body %s", rec.Code, rec.Body.String())
	}
	var me struct {
		Email string      `json:"email"`
		Role  domain.Role `json:"role"`
	}
	decodeBody(t, rec, &me)
	if me.Email != "alice@example.com" || me.Role != domain.RoleUser {
		t.Fatalf("unexpected profile: %+v", me)
	}

	rec = env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "alice@example.com", "pin": "9999"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong pin: status %d", rec.Code)
	}
}

func TestScanFlow(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "Admin", "admin@example.com", "0000", domain.RoleAdmin)
	env.seedUser(t, "Alice", "alice@example.com", "1234", domain.RoleUser)
	admin := env.login(t, "admin@example.com", "0000")
	alice := env.login(t, "alice@example.com", "1234")

	_, code := env.createSession(t, admin)

	rec := env.do(t, http.MethodPost, "/api/attendance/scan", alice, map[string]string{"qrCode": code})
	if rec.Code != http.StatusOK {
		t.Fatalf("scan: status %d body %s", rec.Code, rec.Body.String())
	}
	var result struct {
		Added   bool   `json:"added"`
		Flowers int    `json:"flowers"`
		Session *struct {
			Name string `json:"name"`
		} `json:"session"`
	}
	decodeBody(t, rec, &result)
	if !result.Added || result.Flowers != 1 {
		t.Fatalf("expected added=true flowers=1, got %+v", result)
	}
	if result.Session == nil || result.Session.Name != "Workshop" {
		t.Fatalf("expected session info, got %+v", result.Session)
	}

	// Repeat scan stays a 200 and does not credit again.
	rec = env.do(t, http.MethodPost, "/api/attendance/scan", alice, map[string]string{"qrCode": code})
	if rec.Code != http.StatusOK {
		t.Fatalf("repeat scan: status %d body %s", rec.Code, rec.Body.String())
	}
	decodeBody(t, rec, &result)
	if result.Added || result.Flowers != 1 {
		t.Fatalf("expected added=false flowers=1, got %+v", result)
	}
	if env.db.AttendanceCount() != 1 {
		t.Fatalf("expected 1 attendance, got %d", env.db.AttendanceCount())
	}

	rec = env.do(t, http.MethodGet, "/api/leaderboard", alice, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("leaderboard: status %d", rec.Code)
	}
	var board struct {
		Entries []struct {
			Rank          int  `json:"rank"`
			Flowers       int  `json:"flowers"`
			IsCurrentUser bool `json:"isCurrentUser"`
		} `json:"entries"`
	}
	decodeBody(t, rec, &board)
	if len(board.Entries) == 0 || board.Entries[0].Flowers != 1 || !board.Entries[0].IsCurrentUser {
		t.Fatalf("expected Alice on top with 1 flower, got %+v", board.Entries)
	}
}

func TestScanRejections(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "Admin", "admin@example.com", "0000", domain.RoleAdmin)
	env.seedUser(t, "Alice", "alice@example.com", "1234", domain.RoleUser)
	admin := env.login(t, "admin@example.com", "0000")
	alice := env.login(t, "alice@example.com", "1234")

	tests := []struct {
		name string
		code string
		want int
	}{
		{"garbage", "not a code", http.StatusBadRequest},
		{"empty", "", http.StatusBadRequest},
		{"valid signature unknown session", func() string {
			raw, _ := env.creds.EncodeJSON(env.creds.Issue("SESSION-2026-01-01-DEADBEEF"))
			return raw
		}(), http.StatusNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/attendance/scan", alice, map[string]string{"qrCode": tc.code})
			if rec.Code != tc.want {
				t.Fatalf("status %d, want %d; body %s", rec.Code, tc.want, rec.Body.String())
			}
		})
	}

	t.Run("deactivated session", func(t *testing.T) {
		sessionID, code := env.createSession(t, admin)
		rec := env.do(t, http.MethodPost, "/api/admin/sessions/deactivate", admin, map[string]string{"sessionId": sessionID})
		if rec.Code != http.StatusOK {
			t.Fatalf("deactivate: status %d body %s", rec.Code, rec.Body.String())
		}
		rec = env.do(t, http.MethodPost, "/api/attendance/scan", alice, map[string]string{"qrCode": code})
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("scan of deactivated session: status %d body %s", rec.Code, rec.Body.String())
		}
	})
}

func TestAuthRequired(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "Alice", "alice@example.com", "1234", domain.RoleUser)

	for _, token := range []string{"", "not-a-token"} {
		rec := env.do(t, http.MethodPost, "/api/attendance/scan", token, map[string]string{"qrCode": "x"})
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("token %q: status %d, want 401", token, rec.Code)
		}
	}
}

func TestAdminOnly(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "Alice", "alice@example.com", "1234", domain.RoleUser)
	alice := env.login(t, "alice@example.com", "1234")

	rec := env.do(t, http.MethodGet, "/api/admin/sessions", alice, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status %d, want 403", rec.Code)
	}
	rec = env.do(t, http.MethodGet, "/api/admin/sessions", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status %d, want 401", rec.Code)
	}
}

func TestAdminSessionEndpoints(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "Admin", "admin@example.com", "0000", domain.RoleAdmin)
	admin := env.login(t, "admin@example.com", "0000")

	sessionID, _ := env.createSession(t, admin)

	rec := env.do(t, http.MethodGet, "/api/admin/sessions", admin, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list: status %d", rec.Code)
	}
	var list struct {
		Items []struct {
			SessionID string `json:"sessionId"`
		} `json:"items"`
	}
	decodeBody(t, rec, &list)
	if len(list.Items) != 1 || list.Items[0].SessionID != sessionID {
		t.Fatalf("unexpected list: %+v", list.Items)
	}

	rec = env.do(t, http.MethodGet, "/api/admin/sessions/qr?sessionId="+sessionID, admin, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("qr: status %d body %s", rec.Code, rec.Body.String())
	}
	var qr struct {
		QRCode string `json:"qrCode"`
	}
	decodeBody(t, rec, &qr)
	if len(qr.QRCode) == 0 || qr.QRCode[:22] != "data:image/png;base64," {
		t.Fatalf("expected png data url, got %.40s", qr.QRCode)
	}

	rec = env.do(t, http.MethodGet, "/api/admin/sessions/qr?sessionId=missing", admin, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("qr missing: status %d", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/api/admin/sessions", admin, map[string]any{
		"name":     "",
		"startsAt": time.Now(),
		"endsAt":   time.Now().Add(time.Hour),
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid create: status %d", rec.Code)
	}
}

func TestGroupEndpoints(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "Admin", "admin@example.com", "0000", domain.RoleAdmin)
	env.seedUser(t, "Alice", "alice@example.com", "1234", domain.RoleUser)
	admin := env.login(t, "admin@example.com", "0000")
	alice := env.login(t, "alice@example.com", "1234")

	env.db.AddGroup(&domain.Group{ID: "g1", Name: "Red", IsActive: true})
	env.db.AddGroup(&domain.Group{ID: "g2", Name: "Blue", IsActive: true})

	rec := env.do(t, http.MethodGet, "/api/groups", alice, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list groups: status %d", rec.Code)
	}
	var list struct {
		Items []struct {
			Name string `json:"name"`
		} `json:"items"`
	}
	decodeBody(t, rec, &list)
	if len(list.Items) != 2 {
		t.Fatalf("expected 2 groups, got %+v", list.Items)
	}

	rec = env.do(t, http.MethodPost, "/api/groups/join", alice, map[string]string{"groupId": "g1"})
	if rec.Code != http.StatusOK {
		t.Fatalf("join: status %d body %s", rec.Code, rec.Body.String())
	}
	rec = env.do(t, http.MethodPost, "/api/groups/join", alice, map[string]string{"groupId": "g2"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("second join: status %d, want 409", rec.Code)
	}

	// Admin override moves the user and records the audit.
	var me struct {
		ID string `json:"id"`
	}
	mrec := env.do(t, http.MethodGet, "/api/auth/me", alice, nil)
	decodeBody(t, mrec, &me)

	rec = env.do(t, http.MethodPost, "/api/admin/groups/assign", admin, map[string]string{
		"userId": me.ID, "groupId": "g2", "reason": "balancing teams",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("assign: status %d body %s", rec.Code, rec.Body.String())
	}
	audits := env.db.Audits()
	if len(audits) != 2 || audits[1].NewGroupID != "g2" || audits[1].Reason != "balancing teams" {
		t.Fatalf("unexpected audits: %+v", audits)
	}
}

func TestMyGroupEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "Alice", "alice@example.com", "1234", domain.RoleUser)
	alice := env.login(t, "alice@example.com", "1234")
	env.db.AddGroup(&domain.Group{ID: "g1", Name: "Red", IsActive: true})

	rec := env.do(t, http.MethodGet, "/api/groups/my-group", alice, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("my-group: status %d body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		HasGroup bool `json:"hasGroup"`
		Group    *struct {
			Name     string `json:"name"`
			IsActive bool   `json:"isActive"`
		} `json:"group"`
	}
	decodeBody(t, rec, &resp)
	if resp.HasGroup || resp.Group != nil {
		t.Fatalf("expected no group before joining, got %+v", resp)
	}

	if rec := env.do(t, http.MethodPost, "/api/groups/join", alice, map[string]string{"groupId": "g1"}); rec.Code != http.StatusOK {
		t.Fatalf("join: status %d body %s", rec.Code, rec.Body.String())
	}

	rec = env.do(t, http.MethodGet, "/api/groups/my-group", alice, nil)
	decodeBody(t, rec, &resp)
	if !resp.HasGroup || resp.Group == nil || resp.Group.Name != "Red" || !resp.Group.IsActive {
		t.Fatalf("expected Red after joining, got %+v", resp)
	}
}

func TestSyncUsersEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "Admin", "admin@example.com", "0000", domain.RoleAdmin)
	env.seedUser(t, "Old Name", "alice@example.com", "1234", domain.RoleUser)
	admin := env.login(t, "admin@example.com", "0000")

	rec := env.do(t, http.MethodPost, "/api/admin/users/sync", admin, map[string]any{
		"users": []map[string]string{
			{"name": "Alice", "email": "alice@example.com", "identification": "CC-1"},
			{"name": "Bob", "email": "bob@example.com", "pin": "9999"},
			{"name": "", "email": "no-name@example.com"},
		},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("sync: status %d body %s", rec.Code, rec.Body.String())
	}
	var result struct {
		Created int `json:"created"`
		Updated int `json:"updated"`
		Skipped int `json:"skipped"`
	}
	decodeBody(t, rec, &result)
	if result.Created != 1 || result.Updated != 1 || result.Skipped != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}

	// The synced user can log in; the refreshed one kept her PIN.
	if env.login(t, "bob@example.com", "9999") == "" {
		t.Fatal("expected synced user to log in")
	}
	if env.login(t, "alice@example.com", "1234") == "" {
		t.Fatal("expected refreshed user to keep her pin")
	}

	rec = env.do(t, http.MethodPost, "/api/admin/users/sync", admin, map[string]any{"users": []map[string]string{}})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("empty roster: status %d, want 400", rec.Code)
	}

	alice := env.login(t, "alice@example.com", "1234")
	rec = env.do(t, http.MethodPost, "/api/admin/users/sync", alice, map[string]any{
		"users": []map[string]string{{"name": "X", "email": "x@example.com"}},
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("non-admin sync: status %d, want 403", rec.Code)
	}
}

func TestCreateUserEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "Admin", "admin@example.com", "0000", domain.RoleAdmin)
	admin := env.login(t, "admin@example.com", "0000")

	body := map[string]any{"name": "Carol", "email": "carol@example.com", "pin": "4321"}
	rec := env.do(t, http.MethodPost, "/api/admin/users", admin, body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: status %d body %s", rec.Code, rec.Body.String())
	}

	rec = env.do(t, http.MethodPost, "/api/admin/users", admin, body)
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate: status %d, want 409", rec.Code)
	}

	if env.login(t, "carol@example.com", "4321") == "" {
		t.Fatal("expected new user to log in")
	}
}

func TestMethodNotAllowed(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "Alice", "alice@example.com", "1234", domain.RoleUser)
	alice := env.login(t, "alice@example.com", "1234")

	rec := env.do(t, http.MethodGet, "/api/attendance/scan", alice, nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status %d, want 405", rec.Code)
	}
}

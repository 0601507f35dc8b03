package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"shortly/internal/app/server"
	"shortly/internal/domain/auth"
	"shortly/internal/domain/deletion"
	"shortly/internal/platform/config"
)

const testCronSecret = "test-cron-secret"

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   any             `json:"error"`
}

func testConfig(t *testing.T, dbURL string) config.Config {
	t.Helper()
	return config.Config{
		DatabaseURL:        dbURL,
		JWTSecret:          "test-secret",
		CronSecret:         testCronSecret,
		AppBaseURL:         "http://localhost:8080",
		Environment:        "test",
		SeedAdminEmail:     "admin@test.local",
		SeedAdminName:      "Test Admin",
		SeedAdminPassword:  "ChangeMe123!",
		EmailFrom:          "no-reply@test.local",
		RunMigrations:      true,
		MigrationsDir:      filepath.Join("..", "..", "..", "..", "migrations"),
		RunSeed:            true,
		MaxBodyBytes:       1048576,
		RateLimitPerMinute: 1000,
		ConfirmWindow:      24 * time.Hour,
		DeletionDelay:      time.Hour,
		ReportDir:          t.TempDir(),
		AllowedOrigins:     []string{"*"},
	}
}

func startApp(t *testing.T) (*server.App, *httptest.Server, config.Config) {
	t.Helper()
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	cfg := testConfig(t, dbURL)
	app, err := server.New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("failed to start app: %v", err)
	}
	t.Cleanup(app.Close)

	ts := httptest.NewServer(app.Router)
	t.Cleanup(ts.Close)
	return app, ts, cfg
}

func TestDeletionWorkflowJourney(t *testing.T) {
	app, ts, cfg := startApp(t)
	ctx := context.Background()
	client := ts.Client()

	token := login(t, client, ts.URL, cfg.SeedAdminEmail, cfg.SeedAdminPassword)
	userID := createTargetUser(t, app, "journey")
	seedUserData(t, app, userID, 2, 1, 1)

	req := issueRequest(t, client, ts.URL, token, userID, "terms of service violation")
	if req.Status != deletion.StatusPending {
		t.Fatalf("expected pending request, got %s", req.Status)
	}
	if req.ExpiresAt.Before(time.Now().Add(23 * time.Hour)) {
		t.Fatalf("expected expiry about a day out, got %s", req.ExpiresAt)
	}

	// Only one active request per user.
	postJSONStatus(t, client, ts.URL+deletePath(userID), token, map[string]any{
		"reason": "duplicate attempt",
	}, http.StatusConflict)

	confirmToken := loadToken(t, app, req.ID)

	// Wrong token is indistinguishable from a missing request.
	postJSONStatus(t, client, ts.URL+deletePath(userID)+"/confirm", token, map[string]any{
		"token": "not-the-token",
	}, http.StatusNotFound)

	resp := postJSON(t, client, ts.URL+deletePath(userID)+"/confirm", token, map[string]any{
		"token": confirmToken,
	})
	var confirmed map[string]any
	if err := json.Unmarshal(resp.Data, &confirmed); err != nil {
		t.Fatalf("failed to decode confirm response: %v", err)
	}
	if confirmed["scheduledDeletionAt"] == nil {
		t.Fatal("expected scheduled deletion time")
	}

	// The token is single use.
	postJSONStatus(t, client, ts.URL+deletePath(userID)+"/confirm", token, map[string]any{
		"token": confirmToken,
	}, http.StatusNotFound)

	// Not due yet, the sweep must leave the account alone.
	result := runSweep(t, client, ts.URL)
	for _, item := range result.Results {
		if item.RequestID == req.ID {
			t.Fatalf("request processed before its scheduled time: %+v", item)
		}
	}

	// Issue and confirm have been audited by now.
	if total := auditTotal(t, client, ts.URL, token, userID); total < 2 {
		t.Fatalf("expected request and confirm audit entries, got %d", total)
	}

	makeDue(t, app, req.ID)
	result = runSweep(t, client, ts.URL)
	item := findSweepItem(t, result, req.ID)
	if item.Status != "success" {
		t.Fatalf("expected successful sweep item, got %+v", item)
	}

	var remaining int
	if err := app.DB.QueryRow(ctx, "SELECT COUNT(1) FROM users WHERE id = $1", userID).Scan(&remaining); err != nil {
		t.Fatalf("failed to count users: %v", err)
	}
	if remaining != 0 {
		t.Fatal("expected user row to be deleted")
	}
	for _, table := range []string{"links", "notes", "warnings"} {
		if err := app.DB.QueryRow(ctx, "SELECT COUNT(1) FROM "+table+" WHERE user_id = $1", userID).Scan(&remaining); err != nil {
			t.Fatalf("failed to count %s: %v", table, err)
		}
		if remaining != 0 {
			t.Fatalf("expected %s rows to be deleted", table)
		}
	}

	// The request record itself is retained as history.
	history := listRequests(t, client, ts.URL, token, userID)
	if len(history) != 1 || history[0].Status != deletion.StatusCompleted {
		t.Fatalf("expected one completed request in history, got %+v", history)
	}
	if history[0].CompletedAt == nil {
		t.Fatal("expected completion timestamp in history")
	}

	// Execution erases the user's earlier audit trail; the completion record
	// written after the transaction is the one trace that survives.
	if total := auditTotal(t, client, ts.URL, token, userID); total != 1 {
		t.Fatalf("expected only the completion audit entry, got %d", total)
	}

	if _, err := os.Stat(filepath.Join(cfg.ReportDir, req.ID+".pdf")); err != nil {
		t.Fatalf("expected completion report on disk: %v", err)
	}
}

func TestDeletionCancelPaths(t *testing.T) {
	app, ts, cfg := startApp(t)
	ctx := context.Background()
	client := ts.Client()

	token := login(t, client, ts.URL, cfg.SeedAdminEmail, cfg.SeedAdminPassword)

	// Cancelling a pending request voids its token and frees the user for a
	// fresh request.
	cancelledUser := createTargetUser(t, app, "cancel")
	first := issueRequest(t, client, ts.URL, token, cancelledUser, "spam links")
	firstToken := loadToken(t, app, first.ID)

	resp := postJSON(t, client, ts.URL+deletePath(cancelledUser)+"/cancel", token, map[string]any{
		"token": firstToken,
	})
	var cancelBody map[string]any
	if err := json.Unmarshal(resp.Data, &cancelBody); err != nil {
		t.Fatalf("failed to decode cancel response: %v", err)
	}
	if cancelBody["status"] != deletion.StatusCancelled {
		t.Fatalf("expected cancelled status, got %v", cancelBody["status"])
	}
	postJSONStatus(t, client, ts.URL+deletePath(cancelledUser)+"/confirm", token, map[string]any{
		"token": firstToken,
	}, http.StatusNotFound)
	issueRequest(t, client, ts.URL, token, cancelledUser, "second attempt")

	// An expired token cannot confirm and the request stays pending.
	expiredUser := createTargetUser(t, app, "expired")
	expired := issueRequest(t, client, ts.URL, token, expiredUser, "stale request")
	expiredToken := loadToken(t, app, expired.ID)
	if _, err := app.DB.Exec(ctx, "UPDATE delete_requests SET expires_at = now() - interval '1 minute' WHERE id = $1", expired.ID); err != nil {
		t.Fatalf("failed to expire request: %v", err)
	}
	postJSONStatus(t, client, ts.URL+deletePath(expiredUser)+"/confirm", token, map[string]any{
		"token": expiredToken,
	}, http.StatusNotFound)
	var status string
	if err := app.DB.QueryRow(ctx, "SELECT status FROM delete_requests WHERE id = $1", expired.ID).Scan(&status); err != nil {
		t.Fatalf("failed to load request status: %v", err)
	}
	if status != deletion.StatusPending {
		t.Fatalf("expected expired request to remain pending, got %s", status)
	}

	// Cancelling between confirmation and execution must stop the sweep.
	rescuedUser := createTargetUser(t, app, "rescued")
	seedUserData(t, app, rescuedUser, 1, 0, 0)
	rescued := issueRequest(t, client, ts.URL, token, rescuedUser, "mistaken report")
	rescuedToken := loadToken(t, app, rescued.ID)
	postJSON(t, client, ts.URL+deletePath(rescuedUser)+"/confirm", token, map[string]any{
		"token": rescuedToken,
	})
	postJSON(t, client, ts.URL+deletePath(rescuedUser)+"/cancel", token, map[string]any{
		"token": rescuedToken,
	})
	makeDue(t, app, rescued.ID)

	result := runSweep(t, client, ts.URL)
	for _, item := range result.Results {
		if item.RequestID == rescued.ID {
			t.Fatalf("cancelled request must not be swept: %+v", item)
		}
	}
	var count int
	if err := app.DB.QueryRow(ctx, "SELECT COUNT(1) FROM users WHERE id = $1", rescuedUser).Scan(&count); err != nil {
		t.Fatalf("failed to count users: %v", err)
	}
	if count != 1 {
		t.Fatal("expected rescued user to survive the sweep")
	}
}

func TestDeletionEndpointAuth(t *testing.T) {
	app, ts, cfg := startApp(t)
	ctx := context.Background()
	client := ts.Client()

	userID := createTargetUser(t, app, "authcheck")

	// No identity at all.
	postJSONStatus(t, client, ts.URL+deletePath(userID), "", map[string]any{
		"reason": "no credentials",
	}, http.StatusUnauthorized)

	// A regular account must not reach admin routes.
	memberEmail := fmt.Sprintf("member-%d@example.com", time.Now().UnixNano())
	memberPassword := "Member123!"
	hash, err := auth.HashPassword(memberPassword)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}
	if _, err := app.DB.Exec(ctx, `
    INSERT INTO users (email, name, role, password_hash, status)
    VALUES ($1,$2,$3,$4,$5)
  `, memberEmail, "Member", auth.RoleUser, hash, auth.UserStatusActive); err != nil {
		t.Fatalf("failed to create member user: %v", err)
	}
	memberToken := login(t, client, ts.URL, memberEmail, memberPassword)
	postJSONStatus(t, client, ts.URL+deletePath(userID), memberToken, map[string]any{
		"reason": "not an admin",
	}, http.StatusForbidden)

	// The sweep takes the scheduler secret, not an admin session.
	adminToken := login(t, client, ts.URL, cfg.SeedAdminEmail, cfg.SeedAdminPassword)

	// A malformed user ID never reaches the store.
	postJSONStatus(t, client, ts.URL+deletePath("not-a-user-id"), adminToken, map[string]any{
		"reason": "bad id",
	}, http.StatusNotFound)

	postJSONStatus(t, client, ts.URL+"/api/v1/jobs/deletion-sweep", adminToken, nil, http.StatusUnauthorized)
	postJSONStatus(t, client, ts.URL+"/api/v1/jobs/deletion-sweep", "wrong-secret", nil, http.StatusUnauthorized)
}

func deletePath(userID string) string {
	return "/api/v1/admin/users/" + userID + "/delete-requests"
}

func createTargetUser(t *testing.T, app *server.App, prefix string) string {
	t.Helper()
	email := fmt.Sprintf("%s-%d@example.com", prefix, time.Now().UnixNano())
	var id string
	err := app.DB.QueryRow(context.Background(), `
    INSERT INTO users (email, name, role, password_hash, status)
    VALUES ($1,$2,$3,$4,$5)
    RETURNING id
  `, email, "Target User", auth.RoleUser, "x", auth.UserStatusActive).Scan(&id)
	if err != nil {
		t.Fatalf("failed to create target user: %v", err)
	}
	return id
}

func seedUserData(t *testing.T, app *server.App, userID string, links, notes, warnings int) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < links; i++ {
		slug := fmt.Sprintf("s%d-%d", i, time.Now().UnixNano())
		if _, err := app.DB.Exec(ctx, `
      INSERT INTO links (user_id, slug, target_url) VALUES ($1,$2,$3)
    `, userID, slug, "https://example.com/"+slug); err != nil {
			t.Fatalf("failed to create link: %v", err)
		}
	}
	for i := 0; i < notes; i++ {
		if _, err := app.DB.Exec(ctx, `
      INSERT INTO notes (user_id, admin_id, body) VALUES ($1, gen_random_uuid(), 'seeded note')
    `, userID); err != nil {
			t.Fatalf("failed to create note: %v", err)
		}
	}
	for i := 0; i < warnings; i++ {
		if _, err := app.DB.Exec(ctx, `
      INSERT INTO warnings (user_id, admin_id, reason) VALUES ($1, gen_random_uuid(), 'seeded warning')
    `, userID); err != nil {
			t.Fatalf("failed to create warning: %v", err)
		}
	}
}

func issueRequest(t *testing.T, client *http.Client, baseURL, token, userID, reason string) deletion.DeleteRequest {
	t.Helper()
	resp := postJSON(t, client, baseURL+deletePath(userID), token, map[string]any{
		"reason": reason,
	})
	var req deletion.DeleteRequest
	if err := json.Unmarshal(resp.Data, &req); err != nil {
		t.Fatalf("failed to decode delete request: %v", err)
	}
	if req.ID == "" {
		t.Fatal("expected delete request id")
	}
	return req
}

func loadToken(t *testing.T, app *server.App, requestID string) string {
	t.Helper()
	var token string
	if err := app.DB.QueryRow(context.Background(), "SELECT token FROM delete_requests WHERE id = $1", requestID).Scan(&token); err != nil {
		t.Fatalf("failed to load confirmation token: %v", err)
	}
	return token
}

func makeDue(t *testing.T, app *server.App, requestID string) {
	t.Helper()
	if _, err := app.DB.Exec(context.Background(), `
    UPDATE delete_requests SET scheduled_deletion_at = now() - interval '1 minute' WHERE id = $1
  `, requestID); err != nil {
		t.Fatalf("failed to reschedule request: %v", err)
	}
}

func runSweep(t *testing.T, client *http.Client, baseURL string) deletion.SweepResult {
	t.Helper()
	resp := postJSON(t, client, baseURL+"/api/v1/jobs/deletion-sweep", testCronSecret, nil)
	var result deletion.SweepResult
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		t.Fatalf("failed to decode sweep result: %v", err)
	}
	return result
}

func findSweepItem(t *testing.T, result deletion.SweepResult, requestID string) deletion.SweepItem {
	t.Helper()
	for _, item := range result.Results {
		if item.RequestID == requestID {
			return item
		}
	}
	t.Fatalf("sweep did not report request %s: %+v", requestID, result)
	return deletion.SweepItem{}
}

func listRequests(t *testing.T, client *http.Client, baseURL, token, userID string) []deletion.RequestWithAdmin {
	t.Helper()
	resp := getJSON(t, client, baseURL+deletePath(userID), token)
	var requests []deletion.RequestWithAdmin
	if err := json.Unmarshal(resp.Data, &requests); err != nil {
		t.Fatalf("failed to decode request history: %v", err)
	}
	return requests
}

func auditTotal(t *testing.T, client *http.Client, baseURL, token, targetID string) int {
	t.Helper()
	resp := getJSON(t, client, baseURL+"/api/v1/admin/actions?targetId="+targetID, token)
	var payload struct {
		Total int `json:"total"`
	}
	if err := json.Unmarshal(resp.Data, &payload); err != nil {
		t.Fatalf("failed to decode audit response: %v", err)
	}
	return payload.Total
}

func login(t *testing.T, client *http.Client, baseURL, email, password string) string {
	t.Helper()
	resp := postJSON(t, client, baseURL+"/api/v1/auth/login", "", map[string]any{
		"email":    email,
		"password": password,
	})
	var payload map[string]any
	if err := json.Unmarshal(resp.Data, &payload); err != nil {
		t.Fatalf("failed to decode login response: %v", err)
	}
	token, _ := payload["token"].(string)
	if token == "" {
		t.Fatal("expected token")
	}
	return token
}

func postJSON(t *testing.T, client *http.Client, url, token string, body any) envelope {
	t.Helper()
	resp, raw := doRequest(t, client, http.MethodPost, url, token, body)
	if resp.StatusCode >= 400 {
		t.Fatalf("unexpected status %d: %s", resp.StatusCode, string(raw))
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return env
}

func postJSONStatus(t *testing.T, client *http.Client, url, token string, body any, want int) {
	t.Helper()
	resp, raw := doRequest(t, client, http.MethodPost, url, token, body)
	if resp.StatusCode != want {
		t.Fatalf("expected status %d, got %d: %s", want, resp.StatusCode, string(raw))
	}
}

func getJSON(t *testing.T, client *http.Client, url, token string) envelope {
	t.Helper()
	resp, raw := doRequest(t, client, http.MethodGet, url, token, nil)
	if resp.StatusCode >= 400 {
		t.Fatalf("unexpected status %d: %s", resp.StatusCode, string(raw))
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return env
}

func doRequest(t *testing.T, client *http.Client, method, url, token string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
		reader = bytes.NewBuffer(payload)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response: %v", err)
	}
	return resp, raw
}

package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/postwatch/postwatch/internal/database"
	"github.com/postwatch/postwatch/internal/fetch"
	"github.com/postwatch/postwatch/internal/models"
	"github.com/postwatch/postwatch/internal/monitor"
	"github.com/postwatch/postwatch/internal/scheduler"
)

type staticStrategy struct {
	profile *models.Profile
	err     error
}

func (s staticStrategy) Name() string { return "static" }

func (s staticStrategy) FetchProfile(ctx context.Context, accountID string) (*models.Profile, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.profile, nil
}

func (s staticStrategy) FetchPosts(ctx context.Context, accountID string, page int) ([]models.FetchedPost, error) {
	return nil, s.err
}

type testEnv struct {
	mux      *http.ServeMux
	accounts *database.MemoryAccountRepository
	posts    *database.MemoryPostRepository
	webhooks *database.MemoryWebhookRepository
	stats    *database.MemoryStatsRepository
	mon      *monitor.Monitor
}

func newTestEnv(t *testing.T, strategy fetch.Strategy) *testEnv {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	fetcher, err := fetch.NewFetcher("weibo", fetch.Options{
		Strategies: []fetch.Strategy{strategy},
		Cache:      fetch.NewProfileCache(time.Minute),
		Logger:     logger,
	})
	if err != nil {
		t.Fatalf("NewFetcher() error = %v", err)
	}
	fetchRouter := fetch.NewRouter(fetcher)

	accounts := database.NewMemoryAccountRepository()
	posts := database.NewMemoryPostRepository()
	webhooks := database.NewMemoryWebhookRepository()
	stats := database.NewMemoryStatsRepository()

	mon := monitor.NewMonitor(accounts, posts, stats, fetchRouter, nil, 5, logger, nil)
	sched := scheduler.NewScheduler(mon, time.Hour, logger)

	mux := http.NewServeMux()
	SetupRoutes(mux, accounts, posts, webhooks, stats, fetchRouter, sched, nil, logger)

	return &testEnv{mux: mux, accounts: accounts, posts: posts, webhooks: webhooks, stats: stats, mon: mon}
}

func doJSON(t *testing.T, mux *http.ServeMux, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t, staticStrategy{profile: &models.Profile{Username: "alice"}})

	rec := doJSON(t, env.mux, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /healthz = %d, want 200", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status = %v, want ok", body["status"])
	}
}

func TestCreateAccount(t *testing.T) {
	env := newTestEnv(t, staticStrategy{profile: &models.Profile{AccountID: "1234", Username: "alice"}})

	rec := doJSON(t, env.mux, http.MethodPost, "/api/accounts",
		`{"user_id":"user-1","platform":"weibo","target_account_id":"1234","check_interval_minutes":10}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("POST /api/accounts = %d: %s", rec.Code, rec.Body.String())
	}

	var account models.MonitoredAccount
	if err := json.Unmarshal(rec.Body.Bytes(), &account); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if account.ID == "" {
		t.Error("created account has no ID")
	}
	if account.TargetUsername != "alice" {
		t.Errorf("TargetUsername = %q, want alice (resolved profile)", account.TargetUsername)
	}
	if account.Status != models.AccountStatusActive {
		t.Errorf("Status = %s, want active", account.Status)
	}
	if account.CheckIntervalMinutes != 10 {
		t.Errorf("CheckIntervalMinutes = %d, want 10", account.CheckIntervalMinutes)
	}
}

func TestCreateAccountPlaceholderFallback(t *testing.T) {
	env := newTestEnv(t, staticStrategy{err: fetch.NewPermanentError(context.DeadlineExceeded)})

	rec := doJSON(t, env.mux, http.MethodPost, "/api/accounts",
		`{"user_id":"user-1","platform":"weibo","target_account_id":"1234"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("POST /api/accounts = %d: %s", rec.Code, rec.Body.String())
	}

	var account models.MonitoredAccount
	if err := json.Unmarshal(rec.Body.Bytes(), &account); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if !strings.HasPrefix(account.TargetUsername, "weibo_user_") {
		t.Errorf("TargetUsername = %q, want placeholder", account.TargetUsername)
	}
}

func TestCreateAccountValidation(t *testing.T) {
	env := newTestEnv(t, staticStrategy{profile: &models.Profile{Username: "alice"}})

	tests := []struct {
		name string
		body string
	}{
		{"missing user", `{"platform":"weibo","target_account_id":"1234"}`},
		{"missing target", `{"user_id":"user-1","platform":"weibo"}`},
		{"unsupported platform", `{"user_id":"user-1","platform":"myspace","target_account_id":"1234"}`},
		{"malformed body", `{`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, env.mux, http.MethodPost, "/api/accounts", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestAccountLifecycle(t *testing.T) {
	env := newTestEnv(t, staticStrategy{profile: &models.Profile{Username: "alice"}})
	account := &models.MonitoredAccount{
		UserID:               "user-1",
		Platform:             "weibo",
		TargetAccountID:      "1234",
		Status:               models.AccountStatusActive,
		CheckIntervalMinutes: 5,
	}
	if err := env.accounts.Store(account); err != nil {
		t.Fatalf("Store() error = %v", err)
	}

	rec := doJSON(t, env.mux, http.MethodGet, "/api/accounts?user_id=user-1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /api/accounts = %d", rec.Code)
	}
	var list struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if list.Count != 1 {
		t.Errorf("count = %d, want 1", list.Count)
	}

	rec = doJSON(t, env.mux, http.MethodGet, "/api/accounts/"+account.ID, "")
	if rec.Code != http.StatusOK {
		t.Errorf("GET /api/accounts/{id} = %d, want 200", rec.Code)
	}

	rec = doJSON(t, env.mux, http.MethodPut, "/api/accounts/"+account.ID+"/status", `{"status":"paused"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("PUT status = %d: %s", rec.Code, rec.Body.String())
	}
	updated, _ := env.accounts.GetByID(account.ID)
	if updated.Status != models.AccountStatusPaused {
		t.Errorf("Status = %s after update, want paused", updated.Status)
	}

	rec = doJSON(t, env.mux, http.MethodPut, "/api/accounts/"+account.ID+"/status", `{"status":"bogus"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("PUT invalid status = %d, want 400", rec.Code)
	}

	rec = doJSON(t, env.mux, http.MethodDelete, "/api/accounts/"+account.ID, "")
	if rec.Code != http.StatusNoContent {
		t.Errorf("DELETE = %d, want 204", rec.Code)
	}
	gone, _ := env.accounts.GetByID(account.ID)
	if gone != nil {
		t.Error("account still present after delete")
	}
}

func TestGetAccountNotFound(t *testing.T) {
	env := newTestEnv(t, staticStrategy{profile: &models.Profile{Username: "alice"}})
	rec := doJSON(t, env.mux, http.MethodGet, "/api/accounts/nope", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestListAccountPosts(t *testing.T) {
	env := newTestEnv(t, staticStrategy{profile: &models.Profile{Username: "alice"}})
	for i, id := range []string{"p1", "p2", "p3"} {
		_, err := env.posts.InsertIfNew(&models.DiscoveredPost{
			AccountID:      "acct-1",
			Platform:       "weibo",
			PlatformPostID: id,
			PublishedAt:    time.Now().Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("InsertIfNew() error = %v", err)
		}
	}

	rec := doJSON(t, env.mux, http.MethodGet, "/api/accounts/acct-1/posts?limit=2", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET posts = %d", rec.Code)
	}
	var body struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body.Count != 2 {
		t.Errorf("count = %d, want 2 (limit)", body.Count)
	}
}

func TestWebhookEndpoints(t *testing.T) {
	env := newTestEnv(t, staticStrategy{profile: &models.Profile{Username: "alice"}})

	rec := doJSON(t, env.mux, http.MethodPost, "/api/webhooks",
		`{"user_id":"user-1","provider":"feishu","url":"https://open.feishu.cn/hook/abc","secret":"s3cret"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("POST /api/webhooks = %d: %s", rec.Code, rec.Body.String())
	}
	var dest models.WebhookDestination
	if err := json.Unmarshal(rec.Body.Bytes(), &dest); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if !dest.Active {
		t.Error("new destination not active by default")
	}

	rec = doJSON(t, env.mux, http.MethodPost, "/api/webhooks",
		`{"user_id":"user-1","provider":"slack","url":"https://example.com"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown provider = %d, want 400", rec.Code)
	}

	rec = doJSON(t, env.mux, http.MethodPost, "/api/webhooks",
		`{"user_id":"user-1","provider":"custom","url":"not a url"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad URL = %d, want 400", rec.Code)
	}

	rec = doJSON(t, env.mux, http.MethodGet, "/api/webhooks?user_id=user-1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /api/webhooks = %d", rec.Code)
	}
	var list struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if list.Count != 1 {
		t.Errorf("count = %d, want 1", list.Count)
	}

	rec = doJSON(t, env.mux, http.MethodDelete, "/api/webhooks/"+dest.ID, "")
	if rec.Code != http.StatusNoContent {
		t.Errorf("DELETE = %d, want 204", rec.Code)
	}
}

func TestTriggerEndpoint(t *testing.T) {
	env := newTestEnv(t, staticStrategy{profile: &models.Profile{Username: "alice"}})

	rec := doJSON(t, env.mux, http.MethodPost, "/api/monitor/trigger", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("POST trigger = %d: %s", rec.Code, rec.Body.String())
	}
	var result monitor.CycleResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if result.Accounts != 0 {
		t.Errorf("Accounts = %d with no accounts, want 0", result.Accounts)
	}

	rec = doJSON(t, env.mux, http.MethodGet, "/api/monitor/trigger", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET trigger = %d, want 405", rec.Code)
	}
}

func TestSchedulerEndpoints(t *testing.T) {
	env := newTestEnv(t, staticStrategy{profile: &models.Profile{Username: "alice"}})

	rec := doJSON(t, env.mux, http.MethodGet, "/api/monitor/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET status = %d", rec.Code)
	}
	var status scheduler.Status
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if status.Armed {
		t.Error("scheduler armed before start")
	}

	rec = doJSON(t, env.mux, http.MethodPost, "/api/monitor/scheduler/start", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("POST start = %d", rec.Code)
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if !status.Armed {
		t.Error("scheduler not armed after start")
	}

	rec = doJSON(t, env.mux, http.MethodPost, "/api/monitor/scheduler/stop", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("POST stop = %d", rec.Code)
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if status.Armed {
		t.Error("scheduler still armed after stop")
	}
}

func TestStatsEndpoint(t *testing.T) {
	env := newTestEnv(t, staticStrategy{profile: &models.Profile{Username: "alice"}})
	if err := env.stats.Increment("user-1", "weibo", "2025-06-01", models.StatPostsFound, 4); err != nil {
		t.Fatalf("Increment() error = %v", err)
	}

	rec := doJSON(t, env.mux, http.MethodGet, "/api/stats?user_id=user-1&platform=weibo&date=2025-06-01", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /api/stats = %d", rec.Code)
	}
	var stat models.DailyStat
	if err := json.Unmarshal(rec.Body.Bytes(), &stat); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if stat.PostsFound != 4 {
		t.Errorf("PostsFound = %d, want 4", stat.PostsFound)
	}

	// Absent rows come back zeroed, not 404.
	rec = doJSON(t, env.mux, http.MethodGet, "/api/stats?user_id=user-1&platform=douyin&date=2025-06-01", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /api/stats absent = %d", rec.Code)
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &stat); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if stat.PostsFound != 0 || stat.ChecksPerformed != 0 {
		t.Errorf("absent row = %+v, want zeroes", stat)
	}

	rec = doJSON(t, env.mux, http.MethodGet, "/api/stats?user_id=user-1&platform=weibo&date=June+1", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad date = %d, want 400", rec.Code)
	}
}

// blockingStrategy parks FetchPosts until released, keeping a cycle
// in flight for as long as the test needs.
type blockingStrategy struct {
	entered chan struct{}
	release chan struct{}
}

func (s *blockingStrategy) Name() string { return "blocking" }

func (s *blockingStrategy) FetchProfile(ctx context.Context, accountID string) (*models.Profile, error) {
	return &models.Profile{AccountID: accountID}, nil
}

func (s *blockingStrategy) FetchPosts(ctx context.Context, accountID string, page int) ([]models.FetchedPost, error) {
	close(s.entered)
	<-s.release
	return nil, nil
}

func TestTriggerConflictWhileRunning(t *testing.T) {
	strategy := &blockingStrategy{
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	env := newTestEnv(t, strategy)
	if err := env.accounts.Store(&models.MonitoredAccount{
		ID:                   "acct-1",
		UserID:               "user-1",
		Platform:             "weibo",
		TargetAccountID:      "1234",
		Status:               models.AccountStatusActive,
		CheckIntervalMinutes: 5,
	}); err != nil {
		t.Fatalf("Store() error = %v", err)
	}

	cycleDone := make(chan struct{})
	go func() {
		defer close(cycleDone)
		env.mon.RunCycle(context.Background())
	}()
	<-strategy.entered

	rec := doJSON(t, env.mux, http.MethodPost, "/api/monitor/trigger", "")
	if rec.Code != http.StatusConflict {
		t.Errorf("POST trigger during cycle = %d, want 409", rec.Code)
	}

	close(strategy.release)
	<-cycleDone
}

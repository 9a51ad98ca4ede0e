package database

import (
	"testing"
	"time"

	"github.com/postwatch/postwatch/internal/models"
)

func TestMemoryAccountRepositoryListDue(t *testing.T) {
	repo := NewMemoryAccountRepository()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	recent := now.Add(-2 * time.Minute)
	stale := now.Add(-30 * time.Minute)

	accounts := []*models.MonitoredAccount{
		{ID: "never-checked", Status: models.AccountStatusActive, CheckIntervalMinutes: 5},
		{ID: "recently-checked", Status: models.AccountStatusActive, CheckIntervalMinutes: 5, LastCheckAt: &recent},
		{ID: "overdue", Status: models.AccountStatusActive, CheckIntervalMinutes: 5, LastCheckAt: &stale},
		{ID: "paused", Status: models.AccountStatusPaused, CheckIntervalMinutes: 5, LastCheckAt: &stale},
	}
	for _, a := range accounts {
		if err := repo.Store(a); err != nil {
			t.Fatalf("Store() error = %v", err)
		}
	}

	due, err := repo.ListDue(now)
	if err != nil {
		t.Fatalf("ListDue() error = %v", err)
	}
	if len(due) != 2 {
		t.Fatalf("ListDue() returned %d accounts, want 2", len(due))
	}
	// Never-checked accounts come first.
	if due[0].ID != "never-checked" {
		t.Errorf("first due account = %s, want never-checked", due[0].ID)
	}
	if due[1].ID != "overdue" {
		t.Errorf("second due account = %s, want overdue", due[1].ID)
	}
}

func TestMemoryAccountRepositoryErrorCycle(t *testing.T) {
	repo := NewMemoryAccountRepository()
	account := &models.MonitoredAccount{ID: "acct-1", Status: models.AccountStatusActive, CheckIntervalMinutes: 5}
	if err := repo.Store(account); err != nil {
		t.Fatalf("Store() error = %v", err)
	}

	for i := 1; i <= 3; i++ {
		count, err := repo.RecordError("acct-1", "fetch failed")
		if err != nil {
			t.Fatalf("RecordError() error = %v", err)
		}
		if count != i {
			t.Errorf("RecordError() count = %d, want %d", count, i)
		}
	}

	checkedAt := time.Now()
	if err := repo.UpdateAfterCheck("acct-1", checkedAt, "post-9", "hello"); err != nil {
		t.Fatalf("UpdateAfterCheck() error = %v", err)
	}

	got, err := repo.GetByID("acct-1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.ConsecutiveErrors != 0 {
		t.Errorf("ConsecutiveErrors = %d after successful check, want 0", got.ConsecutiveErrors)
	}
	if got.LastError != "" {
		t.Errorf("LastError = %q after successful check, want empty", got.LastError)
	}
	if got.LastPostID != "post-9" {
		t.Errorf("LastPostID = %q, want post-9", got.LastPostID)
	}
}

func TestMemoryAccountRepositoryUpdateAfterCheckKeepsCursor(t *testing.T) {
	repo := NewMemoryAccountRepository()
	account := &models.MonitoredAccount{ID: "acct-1", Status: models.AccountStatusActive, CheckIntervalMinutes: 5, LastPostID: "post-1"}
	if err := repo.Store(account); err != nil {
		t.Fatalf("Store() error = %v", err)
	}

	// A check that found no new posts must not clear the cursor.
	if err := repo.UpdateAfterCheck("acct-1", time.Now(), "", ""); err != nil {
		t.Fatalf("UpdateAfterCheck() error = %v", err)
	}
	got, _ := repo.GetByID("acct-1")
	if got.LastPostID != "post-1" {
		t.Errorf("LastPostID = %q, want post-1", got.LastPostID)
	}
}

func TestMemoryPostRepositoryInsertIfNew(t *testing.T) {
	repo := NewMemoryPostRepository()
	post := &models.DiscoveredPost{
		AccountID:      "acct-1",
		Platform:       "weibo",
		PlatformPostID: "5001",
		Content:        "first sighting",
		PublishedAt:    time.Now(),
	}

	inserted, err := repo.InsertIfNew(post)
	if err != nil {
		t.Fatalf("InsertIfNew() error = %v", err)
	}
	if !inserted {
		t.Fatal("InsertIfNew() = false on first insert, want true")
	}
	if post.ID == "" {
		t.Error("InsertIfNew() did not assign an ID")
	}

	duplicate := &models.DiscoveredPost{
		AccountID:      "acct-1",
		Platform:       "weibo",
		PlatformPostID: "5001",
		Content:        "seen again",
	}
	inserted, err = repo.InsertIfNew(duplicate)
	if err != nil {
		t.Fatalf("InsertIfNew() duplicate error = %v", err)
	}
	if inserted {
		t.Error("InsertIfNew() = true on duplicate, want false")
	}

	// Same platform ID on another platform is a distinct post.
	other := &models.DiscoveredPost{AccountID: "acct-2", Platform: "douyin", PlatformPostID: "5001"}
	inserted, err = repo.InsertIfNew(other)
	if err != nil {
		t.Fatalf("InsertIfNew() other-platform error = %v", err)
	}
	if !inserted {
		t.Error("InsertIfNew() = false for same ID on another platform, want true")
	}

	got, err := repo.GetByPlatformID("weibo", "5001")
	if err != nil {
		t.Fatalf("GetByPlatformID() error = %v", err)
	}
	if got == nil || got.Content != "first sighting" {
		t.Errorf("GetByPlatformID() returned %+v, want the original row", got)
	}
}

func TestMemoryPostRepositoryListByAccount(t *testing.T) {
	repo := NewMemoryPostRepository()
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		_, err := repo.InsertIfNew(&models.DiscoveredPost{
			AccountID:      "acct-1",
			Platform:       "weibo",
			PlatformPostID: string(rune('a' + i)),
			PublishedAt:    base.Add(time.Duration(i) * time.Hour),
		})
		if err != nil {
			t.Fatalf("InsertIfNew() error = %v", err)
		}
	}

	posts, err := repo.ListByAccount("acct-1", 3)
	if err != nil {
		t.Fatalf("ListByAccount() error = %v", err)
	}
	if len(posts) != 3 {
		t.Fatalf("ListByAccount() returned %d posts, want 3", len(posts))
	}
	if !posts[0].PublishedAt.After(posts[1].PublishedAt) {
		t.Error("ListByAccount() not ordered newest first")
	}
}

func TestMemoryWebhookRepositoryOutcomes(t *testing.T) {
	repo := NewMemoryWebhookRepository()
	dest := &models.WebhookDestination{ID: "wh-1", UserID: "user-1", Provider: models.ProviderFeishu, URL: "https://example.com/hook", Active: true}
	inactive := &models.WebhookDestination{ID: "wh-2", UserID: "user-1", Provider: models.ProviderCustom, URL: "https://example.com/other", Active: false}
	for _, d := range []*models.WebhookDestination{dest, inactive} {
		if err := repo.Store(d); err != nil {
			t.Fatalf("Store() error = %v", err)
		}
	}

	active, err := repo.ListActive("user-1")
	if err != nil {
		t.Fatalf("ListActive() error = %v", err)
	}
	if len(active) != 1 || active[0].ID != "wh-1" {
		t.Fatalf("ListActive() = %+v, want only wh-1", active)
	}

	if err := repo.RecordOutcome("wh-1", true, ""); err != nil {
		t.Fatalf("RecordOutcome() error = %v", err)
	}
	if err := repo.RecordOutcome("wh-1", false, "timeout"); err != nil {
		t.Fatalf("RecordOutcome() error = %v", err)
	}

	got, _ := repo.GetByID("wh-1")
	if got.SuccessCount != 1 || got.FailureCount != 1 {
		t.Errorf("counters = %d/%d, want 1/1", got.SuccessCount, got.FailureCount)
	}
	if got.LastSuccessAt == nil || got.LastFailureAt == nil {
		t.Error("outcome timestamps not recorded")
	}
}

func TestMemoryStatsRepositoryIncrement(t *testing.T) {
	repo := NewMemoryStatsRepository()

	if err := repo.Increment("user-1", "weibo", "2025-06-01", models.StatChecksPerformed, 1); err != nil {
		t.Fatalf("Increment() error = %v", err)
	}
	if err := repo.Increment("user-1", "weibo", "2025-06-01", models.StatChecksPerformed, 1); err != nil {
		t.Fatalf("Increment() error = %v", err)
	}
	if err := repo.Increment("user-1", "weibo", "2025-06-01", models.StatPostsFound, 3); err != nil {
		t.Fatalf("Increment() error = %v", err)
	}

	stat, err := repo.Get("user-1", "weibo", "2025-06-01")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if stat == nil {
		t.Fatal("Get() = nil, want row")
	}
	if stat.ChecksPerformed != 2 {
		t.Errorf("ChecksPerformed = %d, want 2", stat.ChecksPerformed)
	}
	if stat.PostsFound != 3 {
		t.Errorf("PostsFound = %d, want 3", stat.PostsFound)
	}

	missing, err := repo.Get("user-1", "douyin", "2025-06-01")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if missing != nil {
		t.Errorf("Get() for absent row = %+v, want nil", missing)
	}

	if err := repo.Increment("user-1", "weibo", "2025-06-01", models.StatField("bogus"), 1); err == nil {
		t.Error("Increment() with unknown field did not error")
	}
}

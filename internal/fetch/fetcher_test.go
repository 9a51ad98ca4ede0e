package fetch

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/postwatch/postwatch/internal/models"
)

// stubStrategy is a scripted Strategy for fetcher tests.
type stubStrategy struct {
	name         string
	profile      *models.Profile
	profileErr   error
	pages        map[int][]models.FetchedPost
	postsErr     error
	profileCalls int
	postsCalls   int
}

func (s *stubStrategy) Name() string { return s.name }

func (s *stubStrategy) FetchProfile(ctx context.Context, accountID string) (*models.Profile, error) {
	s.profileCalls++
	if s.profileErr != nil {
		return nil, s.profileErr
	}
	profile := *s.profile
	return &profile, nil
}

func (s *stubStrategy) FetchPosts(ctx context.Context, accountID string, page int) ([]models.FetchedPost, error) {
	s.postsCalls++
	if s.postsErr != nil {
		return nil, s.postsErr
	}
	return s.pages[page], nil
}

func newTestFetcher(t *testing.T, strategies ...Strategy) *Fetcher {
	t.Helper()
	f, err := NewFetcher("weibo", Options{
		Strategies: strategies,
		Cache:      NewProfileCache(5 * time.Minute),
		Retry:      RetryPolicy{MaxRetries: 0, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond, BackoffFactor: 2},
		MaxPages:   3,
	})
	if err != nil {
		t.Fatalf("NewFetcher returned error: %v", err)
	}
	return f
}

func post(id string, published time.Time) models.FetchedPost {
	return models.FetchedPost{ID: id, Content: "post " + id, Type: models.PostTypeText, PublishedAt: published}
}

func TestFetchProfile_FallbackOrder(t *testing.T) {
	s1 := &stubStrategy{name: "first", profileErr: NewPermanentError(errors.New("blocked"))}
	s2 := &stubStrategy{name: "second", profileErr: NewPermanentError(errors.New("malformed"))}
	s3 := &stubStrategy{name: "third", profile: &models.Profile{Username: "alice"}}

	f := newTestFetcher(t, s1, s2, s3)

	profile, err := f.FetchProfile(context.Background(), "u1")
	if err != nil {
		t.Fatalf("expected third strategy to succeed, got error: %v", err)
	}
	if profile.Username != "alice" {
		t.Errorf("expected third strategy's profile, got %q", profile.Username)
	}
	if s1.profileCalls != 1 || s2.profileCalls != 1 || s3.profileCalls != 1 {
		t.Errorf("expected each strategy tried once, got %d/%d/%d",
			s1.profileCalls, s2.profileCalls, s3.profileCalls)
	}
}

func TestFetchProfile_AllStrategiesFail(t *testing.T) {
	s1 := &stubStrategy{name: "first", profileErr: NewPermanentError(errors.New("blocked"))}
	s2 := &stubStrategy{name: "second", profileErr: NewTransientError(errors.New("timeout"))}

	f := newTestFetcher(t, s1, s2)

	if _, err := f.FetchProfile(context.Background(), "u1"); err == nil {
		t.Fatal("expected error when all strategies fail")
	}
}

func TestFetchProfile_CacheSkipsNetwork(t *testing.T) {
	s1 := &stubStrategy{name: "only", profile: &models.Profile{Username: "alice"}}
	f := newTestFetcher(t, s1)

	if _, err := f.FetchProfile(context.Background(), "u1"); err != nil {
		t.Fatalf("first fetch failed: %v", err)
	}
	if _, err := f.FetchProfile(context.Background(), "u1"); err != nil {
		t.Fatalf("second fetch failed: %v", err)
	}

	if s1.profileCalls != 1 {
		t.Errorf("expected 1 network fetch with cache hit, got %d", s1.profileCalls)
	}

	f.ClearCache("u1")
	if _, err := f.FetchProfile(context.Background(), "u1"); err != nil {
		t.Fatalf("post-clear fetch failed: %v", err)
	}
	if s1.profileCalls != 2 {
		t.Errorf("expected cache clear to force a fresh fetch, got %d calls", s1.profileCalls)
	}
}

func TestFetchRecentPosts_SinceIDStopsRetrieval(t *testing.T) {
	now := time.Now()
	s1 := &stubStrategy{name: "only", pages: map[int][]models.FetchedPost{
		1: {post("30", now), post("29", now.Add(-time.Hour)), post("28", now.Add(-2*time.Hour))},
		2: {post("27", now.Add(-3*time.Hour))},
	}}

	f := newTestFetcher(t, s1)

	posts, err := f.FetchRecentPosts(context.Background(), "u1", PostQuery{SinceID: "28"})
	if err != nil {
		t.Fatalf("FetchRecentPosts returned error: %v", err)
	}

	if len(posts) != 2 {
		t.Fatalf("expected 2 posts newer than since id, got %d", len(posts))
	}
	if posts[0].ID != "30" || posts[1].ID != "29" {
		t.Errorf("unexpected post ids: %s, %s", posts[0].ID, posts[1].ID)
	}
	if s1.postsCalls != 1 {
		t.Errorf("expected retrieval to stop on page 1, got %d page fetches", s1.postsCalls)
	}
}

func TestFetchRecentPosts_DateWindowStopsEarly(t *testing.T) {
	now := time.Now()
	s1 := &stubStrategy{name: "only", pages: map[int][]models.FetchedPost{
		1: {post("3", now), post("2", now.Add(-24 * time.Hour))},
		2: {post("1", now.Add(-48 * time.Hour))},
	}}

	f := newTestFetcher(t, s1)

	posts, err := f.FetchRecentPosts(context.Background(), "u1", PostQuery{SinceDate: now.Add(-12 * time.Hour)})
	if err != nil {
		t.Fatalf("FetchRecentPosts returned error: %v", err)
	}

	if len(posts) != 1 || posts[0].ID != "3" {
		t.Fatalf("expected only the in-window post, got %d posts", len(posts))
	}
	if s1.postsCalls != 1 {
		t.Errorf("expected early stop after out-of-window post, got %d page fetches", s1.postsCalls)
	}
}

func TestFetchRecentPosts_PageCap(t *testing.T) {
	now := time.Now()
	pages := map[int][]models.FetchedPost{}
	for i := 1; i <= 10; i++ {
		pages[i] = []models.FetchedPost{post(fmt.Sprintf("p%d", i), now)}
	}
	s1 := &stubStrategy{name: "only", pages: pages}

	f := newTestFetcher(t, s1)

	posts, err := f.FetchRecentPosts(context.Background(), "u1", PostQuery{})
	if err != nil {
		t.Fatalf("FetchRecentPosts returned error: %v", err)
	}

	if len(posts) != 3 {
		t.Errorf("expected page cap of 3 to bound results, got %d posts", len(posts))
	}
	if s1.postsCalls != 3 {
		t.Errorf("expected exactly 3 page fetches, got %d", s1.postsCalls)
	}
}

func TestFetchRecentPosts_FirstPageFailureSurfaces(t *testing.T) {
	s1 := &stubStrategy{name: "only", postsErr: NewPermanentError(errors.New("gone"))}
	f := newTestFetcher(t, s1)

	if _, err := f.FetchRecentPosts(context.Background(), "u1", PostQuery{}); err == nil {
		t.Fatal("expected error when the first page cannot be fetched")
	}
}

func TestPlaceholderProfile_Deterministic(t *testing.T) {
	p1 := PlaceholderProfile("weibo", "12345")
	p2 := PlaceholderProfile("weibo", "12345")
	other := PlaceholderProfile("douyin", "12345")

	if !p1.Placeholder {
		t.Error("expected placeholder flag set")
	}
	if p1.Username != p2.Username || p1.DisplayName != p2.DisplayName {
		t.Error("expected identical placeholder for identical inputs")
	}
	if p1.Username == other.Username {
		t.Error("expected platform to influence the placeholder")
	}
}

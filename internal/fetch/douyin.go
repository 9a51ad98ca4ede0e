package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"

	"github.com/postwatch/postwatch/internal/models"
)

// PlatformDouyin is the platform name routed to the douyin strategy chain.
const PlatformDouyin = "douyin"

const (
	douyinWebBase   = "https://www.douyin.com"
	douyinShareBase = "https://www.iesdouyin.com"

	douyinDesktopUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// NewDouyinStrategies returns the ordered douyin fallback chain: web API,
// then share-page scrape.
func NewDouyinStrategies(client *resty.Client, session *Session) []Strategy {
	return []Strategy{
		&douyinWebAPIStrategy{client: client, session: session},
		&douyinShareStrategy{client: client, session: session},
	}
}

// douyinWebAPIStrategy uses the www.douyin.com web endpoints. Both endpoints
// return the full recent window at once, so only page 1 yields data.
type douyinWebAPIStrategy struct {
	client  *resty.Client
	session *Session
}

func (s *douyinWebAPIStrategy) Name() string { return "web_api" }

func (s *douyinWebAPIStrategy) FetchProfile(ctx context.Context, accountID string) (*models.Profile, error) {
	body, err := doGet(ctx, s.client, s.session, douyinWebBase+"/aweme/v1/web/user/profile/other/", map[string]string{
		"sec_user_id": accountID,
		"aid":         "6383",
	}, map[string]string{
		"Referer": douyinWebBase + "/user/" + accountID,
	})
	if err != nil {
		return nil, err
	}

	var envelope struct {
		User map[string]any `json:"user"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, NewPermanentError(fmt.Errorf("douyin profile: decode: %w", err))
	}
	if envelope.User == nil {
		return nil, NewPermanentError(fmt.Errorf("douyin profile: unexpected response shape"))
	}

	return douyinProfileFromUser(envelope.User), nil
}

func (s *douyinWebAPIStrategy) FetchPosts(ctx context.Context, accountID string, page int) ([]models.FetchedPost, error) {
	// The post endpoint is cursor based and returns the full recent
	// window in one call; further pages carry nothing new.
	if page > 1 {
		return nil, nil
	}

	body, err := doGet(ctx, s.client, s.session, douyinWebBase+"/aweme/v1/web/aweme/post/", map[string]string{
		"sec_user_id": accountID,
		"count":       "20",
		"max_cursor":  "0",
		"aid":         "6383",
	}, map[string]string{
		"Referer": douyinWebBase + "/user/" + accountID,
	})
	if err != nil {
		return nil, err
	}

	var envelope struct {
		AwemeList []map[string]any `json:"aweme_list"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, NewPermanentError(fmt.Errorf("douyin posts: decode: %w", err))
	}

	posts := make([]models.FetchedPost, 0, len(envelope.AwemeList))
	for _, aweme := range envelope.AwemeList {
		posts = append(posts, douyinPostFromAweme(aweme))
	}
	return posts, nil
}

// douyinShareStrategy scrapes the share page, which embeds its state as a
// JSON blob in a router-data script.
type douyinShareStrategy struct {
	client  *resty.Client
	session *Session
}

func (s *douyinShareStrategy) Name() string { return "share_page" }

func (s *douyinShareStrategy) FetchProfile(ctx context.Context, accountID string) (*models.Profile, error) {
	root, err := s.fetchRouterData(ctx, accountID)
	if err != nil {
		return nil, err
	}

	user, ok := FindMap(root, "user")
	if !ok {
		return nil, NewPermanentError(fmt.Errorf("douyin share page: no user in router data"))
	}

	return douyinProfileFromUser(user), nil
}

func (s *douyinShareStrategy) FetchPosts(ctx context.Context, accountID string, page int) ([]models.FetchedPost, error) {
	if page > 1 {
		return nil, nil
	}

	root, err := s.fetchRouterData(ctx, accountID)
	if err != nil {
		return nil, err
	}

	list, ok := FindKey(root, "post")
	if !ok {
		return nil, NewPermanentError(fmt.Errorf("douyin share page: no post data"))
	}

	postData, ok := list.(map[string]any)
	if !ok {
		return nil, NewPermanentError(fmt.Errorf("douyin share page: unexpected post shape"))
	}
	items, ok := postData["data"].([]any)
	if !ok {
		return nil, NewPermanentError(fmt.Errorf("douyin share page: unexpected post list shape"))
	}

	posts := make([]models.FetchedPost, 0, len(items))
	for _, item := range items {
		aweme, ok := item.(map[string]any)
		if !ok {
			continue
		}
		posts = append(posts, douyinPostFromAweme(aweme))
	}
	return posts, nil
}

func (s *douyinShareStrategy) fetchRouterData(ctx context.Context, accountID string) (any, error) {
	body, err := doGet(ctx, s.client, s.session, douyinShareBase+"/share/user/"+accountID, nil, nil)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, NewPermanentError(fmt.Errorf("douyin share page: parse html: %w", err))
	}

	var script string
	doc.Find("script").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		text := sel.Text()
		if strings.Contains(text, "_ROUTER_DATA") {
			script = text
			return false
		}
		return true
	})
	if script == "" {
		return nil, NewPermanentError(fmt.Errorf("douyin share page: no router data script"))
	}

	start := strings.Index(script, "{")
	if start < 0 {
		return nil, NewPermanentError(fmt.Errorf("douyin share page: router data is not an object"))
	}

	var root map[string]any
	if err := json.NewDecoder(strings.NewReader(script[start:])).Decode(&root); err != nil {
		return nil, NewPermanentError(fmt.Errorf("douyin share page: decode router data: %w", err))
	}
	return root, nil
}

func douyinProfileFromUser(user map[string]any) *models.Profile {
	avatar := ""
	if avatarLarger, ok := user["avatar_larger"].(map[string]any); ok {
		if urls, ok := avatarLarger["url_list"].([]any); ok && len(urls) > 0 {
			avatar = asString(urls[0])
		}
	}

	return &models.Profile{
		Username:      firstNonEmpty(asString(user["unique_id"]), asString(user["short_id"])),
		DisplayName:   asString(user["nickname"]),
		AvatarURL:     avatar,
		Description:   asString(user["signature"]),
		FollowerCount: asInt64(user["follower_count"]),
	}
}

func douyinPostFromAweme(aweme map[string]any) models.FetchedPost {
	id := asString(aweme["aweme_id"])

	var images []string
	if imageList, ok := aweme["images"].([]any); ok {
		for _, img := range imageList {
			image, ok := img.(map[string]any)
			if !ok {
				continue
			}
			if urls, ok := image["url_list"].([]any); ok && len(urls) > 0 {
				if url := asString(urls[0]); url != "" {
					images = append(images, url)
				}
			}
		}
	}

	var videos []string
	if video, ok := aweme["video"].(map[string]any); ok {
		if playAddr, ok := video["play_addr"].(map[string]any); ok {
			if urls, ok := playAddr["url_list"].([]any); ok && len(urls) > 0 {
				if url := asString(urls[0]); url != "" {
					videos = append(videos, url)
				}
			}
		}
	}

	publishedAt := time.Now()
	if ts := asInt64(aweme["create_time"]); ts > 0 {
		publishedAt = time.Unix(ts, 0)
	}

	var likes, comments, shares int64
	if stats, ok := aweme["statistics"].(map[string]any); ok {
		likes = asInt64(stats["digg_count"])
		comments = asInt64(stats["comment_count"])
		shares = asInt64(stats["share_count"])
	}

	media := append(append([]string{}, images...), videos...)

	return models.FetchedPost{
		ID:           id,
		URL:          douyinWebBase + "/video/" + id,
		Content:      asString(aweme["desc"]),
		Type:         ClassifyPostType(len(images), len(videos)),
		MediaURLs:    media,
		PublishedAt:  publishedAt,
		LikeCount:    likes,
		ShareCount:   shares,
		CommentCount: comments,
		Raw:          aweme,
	}
}

package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"

	"github.com/postwatch/postwatch/internal/models"
)

// PlatformWeibo is the platform name routed to the weibo strategy chain.
const PlatformWeibo = "weibo"

const (
	weiboMobileBase  = "https://m.weibo.cn"
	weiboDesktopBase = "https://weibo.com"

	weiboMobileUA = "Mozilla/5.0 (iPhone; CPU iPhone OS 16_6 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.6 Mobile/15E148 Safari/604.1"

	// Container ID prefixes of the mobile profile API.
	weiboProfileContainer = "100505"
	weiboPostsContainer   = "107603"
)

// weiboCreatedAtLayout is the timestamp format of the mblog created_at field.
const weiboCreatedAtLayout = "Mon Jan 02 15:04:05 -0700 2006"

// NewWeiboSession creates the cookie session shared by the weibo strategies.
// The refresh hits the mobile site root, which hands out the visitor cookies
// the container API wants.
func NewWeiboSession(client *resty.Client, interval time.Duration, logger *slog.Logger) *Session {
	refresh := func(ctx context.Context) ([]*http.Cookie, error) {
		resp, err := client.R().SetContext(ctx).Get(weiboMobileBase + "/")
		if err != nil {
			return nil, fmt.Errorf("weibo session bootstrap: %w", err)
		}
		if resp.StatusCode() != http.StatusOK {
			return nil, fmt.Errorf("weibo session bootstrap: status %d", resp.StatusCode())
		}
		return resp.RawResponse.Cookies(), nil
	}

	return NewSession(refresh, interval, logger)
}

// NewWeiboStrategies returns the ordered weibo fallback chain: mobile
// container API, desktop AJAX API, then mobile page scrape.
func NewWeiboStrategies(client *resty.Client, session *Session) []Strategy {
	return []Strategy{
		&weiboMobileAPIStrategy{client: client, session: session},
		&weiboDesktopAPIStrategy{client: client, session: session},
		&weiboHTMLStrategy{client: client, session: session},
	}
}

// weiboMobileAPIStrategy uses the m.weibo.cn container endpoints.
type weiboMobileAPIStrategy struct {
	client  *resty.Client
	session *Session
}

func (s *weiboMobileAPIStrategy) Name() string { return "mobile_api" }

func (s *weiboMobileAPIStrategy) FetchProfile(ctx context.Context, accountID string) (*models.Profile, error) {
	body, err := doGet(ctx, s.client, s.session, weiboMobileBase+"/api/container/getIndex", map[string]string{
		"type":        "uid",
		"value":       accountID,
		"containerid": weiboProfileContainer + accountID,
	}, nil)
	if err != nil {
		return nil, err
	}

	var envelope struct {
		Ok   int `json:"ok"`
		Data struct {
			UserInfo map[string]any `json:"userInfo"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, NewPermanentError(fmt.Errorf("weibo mobile profile: decode: %w", err))
	}
	if envelope.Ok != 1 || envelope.Data.UserInfo == nil {
		return nil, NewPermanentError(fmt.Errorf("weibo mobile profile: unexpected response shape"))
	}

	return weiboProfileFromUserInfo(envelope.Data.UserInfo), nil
}

func (s *weiboMobileAPIStrategy) FetchPosts(ctx context.Context, accountID string, page int) ([]models.FetchedPost, error) {
	body, err := doGet(ctx, s.client, s.session, weiboMobileBase+"/api/container/getIndex", map[string]string{
		"type":        "uid",
		"value":       accountID,
		"containerid": weiboPostsContainer + accountID,
		"page":        fmt.Sprintf("%d", page),
	}, nil)
	if err != nil {
		return nil, err
	}

	var envelope struct {
		Ok   int `json:"ok"`
		Data struct {
			Cards []struct {
				CardType int            `json:"card_type"`
				Mblog    map[string]any `json:"mblog"`
			} `json:"cards"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, NewPermanentError(fmt.Errorf("weibo mobile posts: decode: %w", err))
	}
	if envelope.Ok != 1 {
		return nil, NewPermanentError(fmt.Errorf("weibo mobile posts: unexpected response shape"))
	}

	posts := make([]models.FetchedPost, 0, len(envelope.Data.Cards))
	for _, card := range envelope.Data.Cards {
		// Card type 9 carries an mblog; other cards are ads and filler.
		if card.CardType != 9 || card.Mblog == nil {
			continue
		}
		posts = append(posts, weiboPostFromMblog(card.Mblog))
	}
	return posts, nil
}

// weiboDesktopAPIStrategy uses the weibo.com AJAX endpoints, which require
// session cookies but expose richer fields.
type weiboDesktopAPIStrategy struct {
	client  *resty.Client
	session *Session
}

func (s *weiboDesktopAPIStrategy) Name() string { return "desktop_api" }

func (s *weiboDesktopAPIStrategy) FetchProfile(ctx context.Context, accountID string) (*models.Profile, error) {
	body, err := doGet(ctx, s.client, s.session, weiboDesktopBase+"/ajax/profile/info", map[string]string{
		"uid": accountID,
	}, map[string]string{
		"Referer": weiboDesktopBase + "/u/" + accountID,
	})
	if err != nil {
		return nil, err
	}

	var envelope struct {
		Ok   int `json:"ok"`
		Data struct {
			User map[string]any `json:"user"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, NewPermanentError(fmt.Errorf("weibo desktop profile: decode: %w", err))
	}
	if envelope.Ok != 1 || envelope.Data.User == nil {
		return nil, NewPermanentError(fmt.Errorf("weibo desktop profile: unexpected response shape"))
	}

	return weiboProfileFromUserInfo(envelope.Data.User), nil
}

func (s *weiboDesktopAPIStrategy) FetchPosts(ctx context.Context, accountID string, page int) ([]models.FetchedPost, error) {
	body, err := doGet(ctx, s.client, s.session, weiboDesktopBase+"/ajax/statuses/mymblog", map[string]string{
		"uid":  accountID,
		"page": fmt.Sprintf("%d", page),
	}, map[string]string{
		"Referer": weiboDesktopBase + "/u/" + accountID,
	})
	if err != nil {
		return nil, err
	}

	var envelope struct {
		Ok   int `json:"ok"`
		Data struct {
			List []map[string]any `json:"list"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, NewPermanentError(fmt.Errorf("weibo desktop posts: decode: %w", err))
	}
	if envelope.Ok != 1 {
		return nil, NewPermanentError(fmt.Errorf("weibo desktop posts: unexpected response shape"))
	}

	posts := make([]models.FetchedPost, 0, len(envelope.Data.List))
	for _, mblog := range envelope.Data.List {
		posts = append(posts, weiboPostFromMblog(mblog))
	}
	return posts, nil
}

// weiboHTMLStrategy scrapes the mobile profile page and extracts the
// embedded render-data JSON blob. Last resort: profile only.
type weiboHTMLStrategy struct {
	client  *resty.Client
	session *Session
}

func (s *weiboHTMLStrategy) Name() string { return "page_scrape" }

func (s *weiboHTMLStrategy) FetchProfile(ctx context.Context, accountID string) (*models.Profile, error) {
	body, err := doGet(ctx, s.client, s.session, weiboMobileBase+"/u/"+accountID, nil, nil)
	if err != nil {
		return nil, err
	}

	render, err := extractRenderData(body)
	if err != nil {
		return nil, NewPermanentError(fmt.Errorf("weibo page scrape: %w", err))
	}

	userInfo, ok := FindMap(render, "userInfo")
	if !ok {
		return nil, NewPermanentError(fmt.Errorf("weibo page scrape: no userInfo in render data"))
	}

	return weiboProfileFromUserInfo(userInfo), nil
}

func (s *weiboHTMLStrategy) FetchPosts(ctx context.Context, accountID string, page int) ([]models.FetchedPost, error) {
	// The profile page embeds no timeline; posts need an API strategy.
	return nil, NewPermanentError(fmt.Errorf("weibo page scrape: posts not available"))
}

// extractRenderData locates the $render_data assignment in a mobile page and
// decodes the JSON array it is initialized with.
func extractRenderData(page []byte) (any, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var script string
	doc.Find("script").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		text := sel.Text()
		if strings.Contains(text, "$render_data") {
			script = text
			return false
		}
		return true
	})
	if script == "" {
		return nil, fmt.Errorf("no render data script found")
	}

	start := strings.Index(script, "[")
	if start < 0 {
		return nil, fmt.Errorf("render data assignment is not an array")
	}

	// The assignment ends with "[0] || {};" — decode just the array value.
	decoder := json.NewDecoder(strings.NewReader(script[start:]))
	var root []any
	if err := decoder.Decode(&root); err != nil {
		return nil, fmt.Errorf("decode render data: %w", err)
	}
	if len(root) == 0 {
		return nil, fmt.Errorf("empty render data")
	}
	return root[0], nil
}

// weiboProfileFromUserInfo maps the userInfo object shared by all three
// strategies into a Profile.
func weiboProfileFromUserInfo(userInfo map[string]any) *models.Profile {
	return &models.Profile{
		Username:      asString(userInfo["screen_name"]),
		DisplayName:   asString(userInfo["screen_name"]),
		AvatarURL:     firstNonEmpty(asString(userInfo["avatar_hd"]), asString(userInfo["profile_image_url"])),
		Description:   asString(userInfo["description"]),
		FollowerCount: asInt64(userInfo["followers_count"]),
	}
}

// weiboPostFromMblog maps an mblog object into a FetchedPost.
func weiboPostFromMblog(mblog map[string]any) models.FetchedPost {
	id := firstNonEmpty(asString(mblog["idstr"]), asString(mblog["id"]))
	text := stripHTML(firstNonEmpty(asString(mblog["text_raw"]), asString(mblog["text"])))

	var images []string
	if pics, ok := mblog["pics"].([]any); ok {
		for _, p := range pics {
			pic, ok := p.(map[string]any)
			if !ok {
				continue
			}
			if large, ok := pic["large"].(map[string]any); ok {
				if url := asString(large["url"]); url != "" {
					images = append(images, url)
					continue
				}
			}
			if url := asString(pic["url"]); url != "" {
				images = append(images, url)
			}
		}
	}

	var videos []string
	if pageInfo, ok := mblog["page_info"].(map[string]any); ok {
		if asString(pageInfo["type"]) == "video" {
			if mediaInfo, ok := pageInfo["media_info"].(map[string]any); ok {
				if url := firstNonEmpty(asString(mediaInfo["stream_url_hd"]), asString(mediaInfo["stream_url"])); url != "" {
					videos = append(videos, url)
				}
			}
		}
	}

	publishedAt := time.Now()
	if t, err := time.Parse(weiboCreatedAtLayout, asString(mblog["created_at"])); err == nil {
		publishedAt = t
	}

	media := append(append([]string{}, images...), videos...)

	return models.FetchedPost{
		ID:           id,
		URL:          weiboMobileBase + "/detail/" + id,
		Content:      text,
		Type:         ClassifyPostType(len(images), len(videos)),
		MediaURLs:    media,
		PublishedAt:  publishedAt,
		LikeCount:    asInt64(mblog["attitudes_count"]),
		ShareCount:   asInt64(mblog["reposts_count"]),
		CommentCount: asInt64(mblog["comments_count"]),
		Raw:          mblog,
	}
}

var htmlTagPattern = regexp.MustCompile(`<[^>]+>`)

// stripHTML removes markup from mblog text, which arrives as an HTML
// fragment on some endpoints.
func stripHTML(text string) string {
	return strings.TrimSpace(htmlTagPattern.ReplaceAllString(text, ""))
}

func asString(v any) string {
	switch value := v.(type) {
	case string:
		return value
	case float64:
		return fmt.Sprintf("%.0f", value)
	default:
		return ""
	}
}

func asInt64(v any) int64 {
	switch value := v.(type) {
	case float64:
		return int64(value)
	case int64:
		return value
	case int:
		return int64(value)
	default:
		return 0
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

package notify

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/postwatch/postwatch/internal/models"
)

// RenderTemplate substitutes the fixed placeholder set into a user template.
// Unknown placeholders are left untouched.
func RenderTemplate(template string, account *models.MonitoredAccount, post *models.DiscoveredPost) string {
	replacer := strings.NewReplacer(
		"{{platform}}", account.Platform,
		"{{target_username}}", account.TargetUsername,
		"{{display_name}}", account.TargetUsername,
		"{{post_id}}", post.PlatformPostID,
		"{{post_url}}", post.URL,
		"{{post_type}}", string(post.ContentType),
		"{{post_content}}", post.Content,
		"{{published_at}}", post.PublishedAt.Format(time.RFC3339),
		"{{like_count}}", countField(post, "like_count"),
		"{{share_count}}", countField(post, "share_count"),
		"{{comment_count}}", countField(post, "comment_count"),
	)
	return replacer.Replace(template)
}

func countField(post *models.DiscoveredPost, key string) string {
	if post.RawMetadata == nil {
		return "0"
	}
	switch v := post.RawMetadata[key].(type) {
	case float64:
		return fmt.Sprintf("%.0f", v)
	case int64:
		return fmt.Sprintf("%d", v)
	case int:
		return fmt.Sprintf("%d", v)
	default:
		return "0"
	}
}

// BuildPayload renders the request body for a destination. Destinations with
// a custom template get plain text wrapped in the provider's text envelope;
// the rest get the provider's default rich shape.
func BuildPayload(dest *models.WebhookDestination, account *models.MonitoredAccount, post *models.DiscoveredPost) ([]byte, error) {
	if dest.Template != "" {
		return textPayload(dest.Provider, RenderTemplate(dest.Template, account, post))
	}

	switch dest.Provider {
	case models.ProviderFeishu:
		return feishuCardPayload(account, post)
	case models.ProviderWechatWork:
		return wechatMarkdownPayload(account, post)
	case models.ProviderDingtalk:
		return dingtalkMarkdownPayload(account, post)
	case models.ProviderCustom:
		return customJSONPayload(account, post)
	default:
		return nil, fmt.Errorf("unknown webhook provider: %s", dest.Provider)
	}
}

func textPayload(provider models.WebhookProvider, text string) ([]byte, error) {
	switch provider {
	case models.ProviderFeishu:
		return json.Marshal(map[string]any{
			"msg_type": "text",
			"content":  map[string]string{"text": text},
		})
	case models.ProviderWechatWork:
		return json.Marshal(map[string]any{
			"msgtype": "text",
			"text":    map[string]string{"content": text},
		})
	case models.ProviderDingtalk:
		return json.Marshal(map[string]any{
			"msgtype": "text",
			"text":    map[string]string{"content": text},
		})
	case models.ProviderCustom:
		return json.Marshal(map[string]string{"text": text})
	default:
		return nil, fmt.Errorf("unknown webhook provider: %s", provider)
	}
}

// feishuCardPayload builds the interactive-card envelope the Feishu bot API
// expects.
func feishuCardPayload(account *models.MonitoredAccount, post *models.DiscoveredPost) ([]byte, error) {
	elements := []map[string]any{
		{
			"tag": "div",
			"text": map[string]string{
				"tag":     "lark_md",
				"content": post.Content,
			},
		},
		{
			"tag": "note",
			"elements": []map[string]string{
				{
					"tag":     "plain_text",
					"content": fmt.Sprintf("%s · %s", post.ContentType, post.PublishedAt.Format("2006-01-02 15:04")),
				},
			},
		},
	}
	if post.URL != "" {
		elements = append(elements, map[string]any{
			"tag": "action",
			"actions": []map[string]any{
				{
					"tag":  "button",
					"text": map[string]string{"tag": "plain_text", "content": "View post"},
					"type": "primary",
					"url":  post.URL,
				},
			},
		})
	}

	return json.Marshal(map[string]any{
		"msg_type": "interactive",
		"card": map[string]any{
			"header": map[string]any{
				"title": map[string]string{
					"tag":     "plain_text",
					"content": fmt.Sprintf("New %s post from %s", account.Platform, account.TargetUsername),
				},
				"template": "blue",
			},
			"elements": elements,
		},
	})
}

func wechatMarkdownPayload(account *models.MonitoredAccount, post *models.DiscoveredPost) ([]byte, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "### New %s post from %s\n", account.Platform, account.TargetUsername)
	fmt.Fprintf(&b, "> %s\n\n", post.Content)
	fmt.Fprintf(&b, "Type: %s\nPublished: %s", post.ContentType, post.PublishedAt.Format("2006-01-02 15:04"))
	if post.URL != "" {
		fmt.Fprintf(&b, "\n[View post](%s)", post.URL)
	}

	return json.Marshal(map[string]any{
		"msgtype":  "markdown",
		"markdown": map[string]string{"content": b.String()},
	})
}

func dingtalkMarkdownPayload(account *models.MonitoredAccount, post *models.DiscoveredPost) ([]byte, error) {
	title := fmt.Sprintf("New %s post from %s", account.Platform, account.TargetUsername)

	var b strings.Builder
	fmt.Fprintf(&b, "#### %s\n\n", title)
	fmt.Fprintf(&b, "> %s\n\n", post.Content)
	fmt.Fprintf(&b, "- Type: %s\n- Published: %s\n", post.ContentType, post.PublishedAt.Format("2006-01-02 15:04"))
	if post.URL != "" {
		fmt.Fprintf(&b, "\n[View post](%s)", post.URL)
	}

	return json.Marshal(map[string]any{
		"msgtype": "markdown",
		"markdown": map[string]string{
			"title": title,
			"text":  b.String(),
		},
	})
}

// customJSONPayload is the plain structured envelope for generic endpoints.
func customJSONPayload(account *models.MonitoredAccount, post *models.DiscoveredPost) ([]byte, error) {
	return json.Marshal(map[string]any{
		"event": "new_post",
		"account": map[string]string{
			"id":       account.ID,
			"platform": account.Platform,
			"username": account.TargetUsername,
		},
		"post": map[string]any{
			"id":           post.PlatformPostID,
			"url":          post.URL,
			"content_type": post.ContentType,
			"content":      post.Content,
			"media_urls":   post.MediaURLs,
			"published_at": post.PublishedAt.Format(time.RFC3339),
		},
	})
}

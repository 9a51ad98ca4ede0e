package fetch

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
)

// NewClient builds the resty client shared by a platform's strategies.
func NewClient(timeout time.Duration, userAgent string) *resty.Client {
	return resty.New().
		SetTimeout(timeout).
		SetHeader("User-Agent", userAgent).
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(5))
}

// doGet performs a single GET with session cookies attached, updates the
// session from the response, and classifies the outcome. Retrying is the
// caller's concern.
func doGet(ctx context.Context, client *resty.Client, session *Session, url string, params, headers map[string]string) ([]byte, error) {
	req := client.R().SetContext(ctx)

	if session != nil {
		req.SetCookies(session.Cookies())
	}
	if len(params) > 0 {
		req.SetQueryParams(params)
	}
	if len(headers) > 0 {
		req.SetHeaders(headers)
	}

	resp, err := req.Get(url)
	if err != nil {
		return nil, NewTransientError(fmt.Errorf("request %s: %w", url, err))
	}

	if session != nil {
		session.UpdateFromResponse(resp.RawResponse)
	}

	if resp.StatusCode() == http.StatusTooManyRequests {
		if delay := retryAfter(resp.Header().Get("Retry-After")); delay > 0 {
			return nil, NewTransientErrorWithDelay(fmt.Errorf("upstream returned status 429"), delay)
		}
	}

	if err := ClassifyStatus(resp.StatusCode()); err != nil {
		return nil, err
	}

	return resp.Body(), nil
}

func retryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	seconds, err := strconv.Atoi(header)
	if err != nil || seconds <= 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

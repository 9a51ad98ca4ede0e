package fetch

import (
	"log/slog"
	"time"

	"github.com/postwatch/postwatch/internal/metrics"
)

// PlatformConfig carries the tunables shared by every platform fetcher.
type PlatformConfig struct {
	RequestTimeout time.Duration
	SessionRefresh time.Duration
	CacheTTL       time.Duration
	Retry          RetryPolicy
	MaxPages       int
	Logger         *slog.Logger
	Collector      *metrics.PipelineCollector
}

// NewWeiboFetcher assembles the weibo fetcher: mobile-UA HTTP client,
// visitor cookie session and the full strategy chain.
func NewWeiboFetcher(cfg PlatformConfig) (*Fetcher, error) {
	client := NewClient(cfg.RequestTimeout, weiboMobileUA)
	session := NewWeiboSession(client, cfg.SessionRefresh, cfg.Logger)

	return NewFetcher(PlatformWeibo, Options{
		Strategies: NewWeiboStrategies(client, session),
		Cache:      NewProfileCache(cfg.CacheTTL),
		Session:    session,
		Retry:      cfg.Retry,
		MaxPages:   cfg.MaxPages,
		Logger:     cfg.Logger,
		Collector:  cfg.Collector,
	})
}

// NewDouyinFetcher assembles the douyin fetcher. Douyin needs no cookie
// bootstrap; the web API accepts anonymous requests.
func NewDouyinFetcher(cfg PlatformConfig) (*Fetcher, error) {
	client := NewClient(cfg.RequestTimeout, douyinDesktopUA)

	return NewFetcher(PlatformDouyin, Options{
		Strategies: NewDouyinStrategies(client, nil),
		Cache:      NewProfileCache(cfg.CacheTTL),
		Retry:      cfg.Retry,
		MaxPages:   cfg.MaxPages,
		Logger:     cfg.Logger,
		Collector:  cfg.Collector,
	})
}

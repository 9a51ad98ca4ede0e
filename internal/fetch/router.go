package fetch

import (
	"fmt"
	"sort"

	"github.com/postwatch/postwatch/internal/models"
)

// Router maps a platform name to its content fetcher.
type Router struct {
	fetchers map[string]*Fetcher
}

// NewRouter creates a router over the given fetchers.
func NewRouter(fetchers ...*Fetcher) *Router {
	m := make(map[string]*Fetcher, len(fetchers))
	for _, f := range fetchers {
		m[f.Platform()] = f
	}
	return &Router{fetchers: m}
}

// Get returns the fetcher for a platform.
func (r *Router) Get(platform string) (*Fetcher, error) {
	f, ok := r.fetchers[platform]
	if !ok {
		return nil, fmt.Errorf("unsupported platform: %s", platform)
	}
	return f, nil
}

// Platforms returns the supported platform names, sorted.
func (r *Router) Platforms() []string {
	names := make([]string, 0, len(r.fetchers))
	for name := range r.fetchers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ClassifyPostType derives the content type of a post from its media
// composition. Body text alone never promotes a post past its media type.
func ClassifyPostType(imageCount, videoCount int) models.PostType {
	switch {
	case imageCount > 0 && videoCount > 0:
		return models.PostTypeMixed
	case videoCount > 0:
		return models.PostTypeVideo
	case imageCount > 0:
		return models.PostTypeImage
	default:
		return models.PostTypeText
	}
}

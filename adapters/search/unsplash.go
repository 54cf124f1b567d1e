package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/satriahrh/papantulis/server/domain"
	"github.com/satriahrh/papantulis/server/domain/repositories"
)

const (
	defaultAPIBaseURL = "https://api.unsplash.com"
	defaultCacheSize  = 256
	defaultTimeout    = 15 * time.Second
)

// UnsplashConfig holds configuration for the Unsplash image search adapter
// Required fields:
// - AccessKey: Unsplash API access key
// Optional fields with defaults:
// - APIBaseURL: default "https://api.unsplash.com"
// - CacheSize: number of queries kept in the result cache (default: 256)
type UnsplashConfig struct {
	AccessKey  string
	APIBaseURL string
	CacheSize  int
}

// UnsplashSearch implements ImageSearch using the Unsplash photo search API
type UnsplashSearch struct {
	accessKey  string
	apiBaseURL string
	client     *http.Client
	cache      *lru.Cache[string, repositories.ImageResult]
	logger     *zap.Logger
}

var _ repositories.ImageSearch = (*UnsplashSearch)(nil)

type unsplashResponse struct {
	Results []struct {
		Width  int `json:"width"`
		Height int `json:"height"`
		URLs   struct {
			Regular string `json:"regular"`
		} `json:"urls"`
	} `json:"results"`
}

// ValidateUnsplashConfig validates the UnsplashConfig
func ValidateUnsplashConfig(config UnsplashConfig) error {
	if config.CacheSize < 0 {
		return fmt.Errorf("cache size must be positive, got %d", config.CacheSize)
	}
	return nil
}

// NewUnsplashSearch creates a new Unsplash search client. A missing access
// key is accepted; every search then fails with domain.ErrNotConfigured.
func NewUnsplashSearch(config UnsplashConfig, logger *zap.Logger) (*UnsplashSearch, error) {
	if err := ValidateUnsplashConfig(config); err != nil {
		return nil, err
	}

	if config.AccessKey == "" {
		logger.Warn("UNSPLASH_ACCESS_KEY is not set, image search is disabled")
	}

	apiBaseURL := config.APIBaseURL
	if apiBaseURL == "" {
		apiBaseURL = defaultAPIBaseURL
		logger.Info("Using default API base URL", zap.String("apiBaseURL", apiBaseURL))
	}

	cacheSize := config.CacheSize
	if cacheSize == 0 {
		cacheSize = defaultCacheSize
		logger.Info("Using default cache size", zap.Int("cacheSize", cacheSize))
	}

	cache, err := lru.New[string, repositories.ImageResult](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create search cache: %w", err)
	}

	return &UnsplashSearch{
		accessKey:  config.AccessKey,
		apiBaseURL: strings.TrimRight(apiBaseURL, "/"),
		client:     &http.Client{Timeout: defaultTimeout},
		cache:      cache,
		logger:     logger,
	}, nil
}

// Search returns the first photo matching query. Errors wrap
// domain.ErrNotConfigured, domain.ErrNotFound or *domain.NetworkError.
func (u *UnsplashSearch) Search(ctx context.Context, query string) (repositories.ImageResult, error) {
	query = strings.TrimSpace(query)
	if u.accessKey == "" {
		return repositories.ImageResult{}, fmt.Errorf("image search: %w", domain.ErrNotConfigured)
	}
	if query == "" {
		return repositories.ImageResult{}, fmt.Errorf("search query cannot be empty")
	}

	key := strings.ToLower(query)
	if cached, ok := u.cache.Get(key); ok {
		u.logger.Debug("Image search cache hit", zap.String("query", query))
		return cached, nil
	}

	params := url.Values{}
	params.Set("query", query)
	params.Set("per_page", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.apiBaseURL+"/search/photos?"+params.Encode(), nil)
	if err != nil {
		return repositories.ImageResult{}, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Authorization", "Client-ID "+u.accessKey)
	req.Header.Set("Accept-Version", "v1")

	resp, err := u.client.Do(req)
	if err != nil {
		return repositories.ImageResult{}, &domain.NetworkError{Op: "unsplash search", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return repositories.ImageResult{}, &domain.NetworkError{
			Op:         "unsplash search",
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%s", strings.TrimSpace(string(body))),
		}
	}

	var payload unsplashResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return repositories.ImageResult{}, fmt.Errorf("failed to decode search response: %w", err)
	}
	if len(payload.Results) == 0 {
		return repositories.ImageResult{}, fmt.Errorf("no images found for %q: %w", query, domain.ErrNotFound)
	}

	first := payload.Results[0]
	if first.URLs.Regular == "" {
		return repositories.ImageResult{}, fmt.Errorf("search response for %q has no image url", query)
	}

	result := repositories.ImageResult{
		ImageURL: first.URLs.Regular,
		Width:    first.Width,
		Height:   first.Height,
	}
	u.cache.Add(key, result)

	u.logger.Info("Image search resolved",
		zap.String("query", query),
		zap.Int("width", result.Width),
		zap.Int("height", result.Height))
	return result, nil
}

// NewUnsplashConfigFromEnv creates a new UnsplashConfig from environment variables
func NewUnsplashConfigFromEnv() UnsplashConfig {
	config := UnsplashConfig{
		AccessKey:  os.Getenv("UNSPLASH_ACCESS_KEY"),
		APIBaseURL: os.Getenv("UNSPLASH_API_BASE_URL"),
	}
	if sizeStr := os.Getenv("UNSPLASH_CACHE_SIZE"); sizeStr != "" {
		if size, err := strconv.Atoi(sizeStr); err == nil && size > 0 {
			config.CacheSize = size
		}
	}
	return config
}

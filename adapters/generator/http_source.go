package generator

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/papantulis/server/domain"
	"github.com/satriahrh/papantulis/server/domain/repositories"
)

// HTTPSource opens the element stream of a remote generator's reply endpoint
type HTTPSource struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

var _ repositories.StreamSource = (*HTTPSource)(nil)

// NewHTTPSource creates a source for the generator at baseURL
func NewHTTPSource(baseURL string, logger *zap.Logger) (*HTTPSource, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid generator url %q", baseURL)
	}
	return &HTTPSource{
		baseURL: strings.TrimRight(baseURL, "/"),
		// no overall timeout, the body is consumed for as long as the
		// generator keeps streaming
		httpClient: &http.Client{Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			ResponseHeaderTimeout: 60 * time.Second,
		}},
		logger: logger,
	}, nil
}

// Open implements repositories.StreamSource
func (s *HTTPSource) Open(ctx context.Context, req repositories.StreamRequest) (io.ReadCloser, error) {
	query := url.Values{}
	query.Set("refined_prompt", req.RefinedPrompt)
	query.Set("session_id", req.SessionID)
	query.Set("context_summary", req.ContextSummary)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/api/v1/reply?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return nil, &domain.NetworkError{Op: "generator reply", Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		resp.Body.Close()
		return nil, &domain.NetworkError{
			Op:         "generator reply",
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status: %s", strings.TrimSpace(string(body))),
		}
	}

	s.logger.Info("Generator stream opened", zap.String("sessionID", req.SessionID))
	return resp.Body, nil
}

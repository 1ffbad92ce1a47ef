package source

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// HTTP fetches tables relative to a base URL.
type HTTP struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewHTTP creates a source fetching <baseURL>/<name>.
func NewHTTP(baseURL string, timeout time.Duration, logger *slog.Logger) *HTTP {
	return &HTTP{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// Open requests the named table. Any status other than 200 is an error.
func (h *HTTP) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	u := h.baseURL + "/" + url.PathEscape(name)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	start := time.Now()
	resp, err := h.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", u, err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("fetch %s: status %d: %s", u, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	h.logger.Debug("table fetched", "url", u, "duration", time.Since(start))
	return resp.Body, nil
}

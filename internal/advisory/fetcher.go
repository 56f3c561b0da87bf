package advisory

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// HTTPFetcher retrieves the advisory export over HTTP.
type HTTPFetcher struct {
	URL    string
	Client *http.Client
}

// Fetch downloads the export. The response body is returned whole; the
// export for one ecosystem is small enough to buffer.
func (f *HTTPFetcher) Fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build advisory request: %w", err)
	}
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", f.URL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("get %s: unexpected status %s", f.URL, resp.Status)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read advisory export: %w", err)
	}
	return data, nil
}

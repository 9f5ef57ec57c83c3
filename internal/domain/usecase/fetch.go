package usecase

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// maxFetchBytes bounds a single artifact download when assembling archives.
const maxFetchBytes = 20 << 20

var fetchClient = &http.Client{}

// fetchURL downloads a stored artifact for archive assembly.
func fetchURL(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := fetchClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", rawURL, resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes))
}

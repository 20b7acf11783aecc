package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"wave-swap/pkg/types"
)

// Registry fetches token display metadata from a hosted token-list endpoint.
type Registry struct {
	url  string
	http *http.Client
}

// NewRegistry creates a registry over a token-list URL.
func NewRegistry(url string) *Registry {
	return &Registry{
		url:  url,
		http: &http.Client{Timeout: 10 * time.Second},
	}
}

type registryEntry struct {
	Address  string `json:"address"`
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Decimals uint8  `json:"decimals"`
}

// TokenMetadata returns metadata for the requested addresses, skipping any
// the list does not know.
func (r *Registry) TokenMetadata(ctx context.Context, addresses []string) (map[string]types.Token, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := r.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token list fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("token list returned status code %d", resp.StatusCode)
	}

	var entries []registryEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("failed to decode token list: %w", err)
	}

	wanted := make(map[string]bool, len(addresses))
	for _, a := range addresses {
		wanted[a] = true
	}

	meta := make(map[string]types.Token)
	for _, e := range entries {
		if !wanted[e.Address] {
			continue
		}
		meta[e.Address] = types.Token{
			Address:  e.Address,
			Decimals: e.Decimals,
			Symbol:   e.Symbol,
			Name:     e.Name,
		}
	}
	return meta, nil
}

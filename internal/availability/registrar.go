package availability

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// RegistrarConfig drives the registrar availability client.
type RegistrarConfig struct {
	APIKey       string
	BaseURL      string
	Timeout      time.Duration
	CacheTTL     time.Duration
	RetryBackoff time.Duration
}

// ErrMissingCredentials is returned when the registrar client cannot authenticate.
var ErrMissingCredentials = errors.New("registrar client missing api key")

// HTTPRegistrar is the primary authority backed by a registrar JSON availability API. It keeps
// a short-lived cache of successful answers and retries once on rate limiting.
type HTTPRegistrar struct {
	httpClient   *http.Client
	baseURL      string
	apiKey       string
	cacheTTL     time.Duration
	retryBackoff time.Duration
	cache        sync.Map // map[string]registrarCacheEntry
}

type registrarCacheEntry struct {
	at     time.Time
	result PrimaryResult
}

// NewHTTPRegistrar constructs the client if configuration is valid.
func NewHTTPRegistrar(cfg RegistrarConfig) (*HTTPRegistrar, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingCredentials
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = "https://api.registrar.example/v1"
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultPrimaryTimeout
	}

	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	backoff := cfg.RetryBackoff
	if backoff <= 0 {
		backoff = 2 * time.Second
	}

	return &HTTPRegistrar{
		httpClient:   &http.Client{Timeout: timeout},
		baseURL:      baseURL,
		apiKey:       strings.TrimSpace(cfg.APIKey),
		cacheTTL:     ttl,
		retryBackoff: backoff,
	}, nil
}

// Check asks the registrar whether domainName can be registered.
func (c *HTTPRegistrar) Check(ctx context.Context, domainName string) (PrimaryResult, error) {
	if c == nil {
		return PrimaryResult{}, errors.New("registrar client is nil")
	}

	key := strings.ToLower(strings.TrimSpace(domainName))
	if key == "" {
		return PrimaryResult{}, errors.New("domain name is empty")
	}

	if entry, ok := c.cache.Load(key); ok {
		cached := entry.(registrarCacheEntry)
		if time.Since(cached.at) < c.cacheTTL {
			return cached.result, nil
		}
		c.cache.Delete(key)
	}

	result, err := c.performRequest(ctx, key)
	if err != nil {
		return PrimaryResult{}, err
	}

	if result.Available != nil {
		c.cache.Store(key, registrarCacheEntry{at: time.Now(), result: result})
	}
	return result, nil
}

func (c *HTTPRegistrar) performRequest(ctx context.Context, domainName string) (PrimaryResult, error) {
	params := url.Values{}
	params.Set("domain", domainName)
	endpoint := c.baseURL + "/availability?" + params.Encode()

	resp, err := c.do(ctx, endpoint)
	if err != nil {
		return PrimaryResult{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		resp.Body.Close()
		select {
		case <-ctx.Done():
			return PrimaryResult{}, ctx.Err()
		case <-time.After(c.retryBackoff):
		}
		resp, err = c.do(ctx, endpoint)
		if err != nil {
			return PrimaryResult{}, err
		}
		defer resp.Body.Close()
	}

	if resp.StatusCode != http.StatusOK {
		return PrimaryResult{}, fmt.Errorf("registrar api status %d", resp.StatusCode)
	}

	var payload PrimaryResult
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return PrimaryResult{}, fmt.Errorf("decode registrar response: %w", err)
	}
	payload.Status = strings.TrimSpace(payload.Status)
	return payload, nil
}

func (c *HTTPRegistrar) do(ctx context.Context, endpoint string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	return c.httpClient.Do(req)
}

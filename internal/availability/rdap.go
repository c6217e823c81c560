package availability

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// RDAPConfig drives the registry lookup client.
type RDAPConfig struct {
	BaseURL string
	Timeout time.Duration
}

// RDAPClient is the secondary authority: an RDAP domain lookup where 404 means the registry
// holds no object for the name.
type RDAPClient struct {
	httpClient *http.Client
	baseURL    string
}

// NewRDAPClient builds a client against cfg.BaseURL (defaults to the rdap.org bootstrap
// redirector).
func NewRDAPClient(cfg RDAPConfig) *RDAPClient {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = "https://rdap.org"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultSecondaryTimeout
	}
	return &RDAPClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
	}
}

type rdapDomain struct {
	LDHName string   `json:"ldhName"`
	Status  []string `json:"status"`
}

// Lookup fetches the registry object for domainName.
func (c *RDAPClient) Lookup(ctx context.Context, domainName string) (SecondaryResult, error) {
	if c == nil {
		return SecondaryResult{}, errors.New("rdap client is nil")
	}
	name := strings.ToLower(strings.TrimSpace(domainName))
	if name == "" {
		return SecondaryResult{}, errors.New("domain name is empty")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/domain/"+url.PathEscape(name), nil)
	if err != nil {
		return SecondaryResult{}, err
	}
	req.Header.Set("Accept", "application/rdap+json, application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return SecondaryResult{}, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		_, _ = io.Copy(io.Discard, resp.Body)
		return SecondaryResult{}, ErrNotFound
	default:
		return SecondaryResult{}, fmt.Errorf("rdap status %d", resp.StatusCode)
	}

	var payload rdapDomain
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return SecondaryResult{}, fmt.Errorf("decode rdap response: %w", err)
	}
	return SecondaryResult{Status: payload.Status}, nil
}

package suggest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"domainflip/internal/discovery"
	"domainflip/internal/match"
)

// Suggester proposes brandable base names (no TLD) for a keyword.
type Suggester interface {
	Enabled() bool
	Suggest(ctx context.Context, keyword string, limit int) ([]string, error)
}

// Config holds OpenAI configuration parameters.
type Config struct {
	APIKey      string
	Model       string
	BaseURL     string
	Temperature float64
	Timeout     time.Duration
}

// ErrDisabled is returned when no suggester can serve the request.
var ErrDisabled = errors.New("ai suggester disabled")

// DefaultLimit bounds the number of names requested when the caller passes none.
const DefaultLimit = 8

// OpenAIClient implements Suggester against the chat completions API.
type OpenAIClient struct {
	httpClient  *http.Client
	apiKey      string
	model       string
	baseURL     string
	temperature float64
}

// NewOpenAIClient constructs a client if the supplied configuration is valid.
func NewOpenAIClient(cfg Config) (*OpenAIClient, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrDisabled
	}
	cfg.Model = strings.TrimSpace(cfg.Model)
	if cfg.Model == "" {
		cfg.Model = "gpt-4.1-mini"
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = 0.8
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	return &OpenAIClient{
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		apiKey:      strings.TrimSpace(cfg.APIKey),
		model:       cfg.Model,
		baseURL:     cfg.BaseURL,
		temperature: cfg.Temperature,
	}, nil
}

// Enabled reports whether the client can make outbound calls.
func (c *OpenAIClient) Enabled() bool {
	return c != nil && c.apiKey != ""
}

// Suggest asks the model for up to limit base names built around keyword.
func (c *OpenAIClient) Suggest(ctx context.Context, keyword string, limit int) ([]string, error) {
	if !c.Enabled() {
		return nil, ErrDisabled
	}
	keyword = match.CleanLabel(keyword)
	if keyword == "" {
		return nil, discovery.ErrEmptyKeyword
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	body, err := json.Marshal(c.buildPayload(keyword, limit))
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openai request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr map[string]any
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return nil, fmt.Errorf("openai status %d: %v", resp.StatusCode, apiErr)
	}

	var decoded chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return nil, errors.New("openai empty response")
	}

	content := normalizeJSONBlock(decoded.Choices[0].Message.Content)
	if content == "" {
		return nil, errors.New("openai empty content")
	}
	var parsed struct {
		Names []string `json:"names"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return nil, fmt.Errorf("parse ai response: %w", err)
	}

	names := sanitizeNames(parsed.Names, limit)
	if len(names) == 0 {
		return nil, errors.New("ai returned no usable names")
	}
	return names, nil
}

func (c *OpenAIClient) buildPayload(keyword string, limit int) map[string]any {
	messages := []map[string]string{
		{
			"role":    "system",
			"content": "You invent short, brandable domain base names for resale. Reply with a strict JSON object of the form {\"names\": [...]} and nothing else. Each name is lowercase ASCII letters, digits or hyphens, 3 to 20 characters, with no TLD and no dots.",
		},
		{
			"role":    "user",
			"content": fmt.Sprintf("Keyword: %s\nReturn %d distinct names that keep the keyword recognizable. Prefer pronounceable names without digits or hyphens.", keyword, limit),
		},
	}
	return map[string]any{
		"model":       c.model,
		"messages":    messages,
		"temperature": c.temperature,
	}
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func normalizeJSONBlock(input string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return ""
	}
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```")
		if idx := strings.IndexRune(trimmed, '\n'); idx >= 0 {
			trimmed = trimmed[idx+1:]
		}
		trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	}
	trimmed = strings.TrimSpace(trimmed)
	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start >= 0 && end >= start {
		return strings.TrimSpace(trimmed[start : end+1])
	}
	return trimmed
}

// sanitizeNames strips any TLD, drops invalid labels and duplicates, and keeps at most limit.
func sanitizeNames(raw []string, limit int) []string {
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, limit)
	for _, name := range raw {
		base := strings.Trim(match.NormalizeDomain(name).BaseName, "-")
		if len(base) < discovery.MinBaseLen || len(base) > discovery.MaxBaseLen {
			continue
		}
		if _, ok := seen[base]; ok {
			continue
		}
		seen[base] = struct{}{}
		out = append(out, base)
		if len(out) == limit {
			break
		}
	}
	return out
}

package compress

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const summarizePrompt = `Summarize these %s memory entries concisely, keeping dates and decisions:

%s`

// Summarizer condenses entry text for a tier. mode is "warm" or "cold".
// Implementations may block on network calls; callers bound them with a
// context deadline and fall back to the deterministic extractor.
type Summarizer interface {
	Summarize(ctx context.Context, text, mode string) (string, error)
}

// HTTPSummarizer talks to an OpenAI-compatible chat completions endpoint.
type HTTPSummarizer struct {
	apiKey     string
	baseURL    string
	model      string
	maxTokens  int
	httpClient *http.Client
}

func NewHTTPSummarizer(apiKey, baseURL, model string, maxTokens int, timeout time.Duration) *HTTPSummarizer {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if maxTokens <= 0 {
		maxTokens = 2048
	}
	return &HTTPSummarizer{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		model:      model,
		maxTokens:  maxTokens,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *HTTPSummarizer) Summarize(ctx context.Context, text, mode string) (string, error) {
	if strings.TrimSpace(c.apiKey) == "" {
		return "", fmt.Errorf("missing summarizer api key")
	}
	if c.baseURL == "" {
		return "", fmt.Errorf("missing summarizer base url")
	}
	if c.model == "" {
		return "", fmt.Errorf("missing summarizer model")
	}

	body := map[string]any{
		"model": c.model,
		"messages": []map[string]string{{
			"role":    "user",
			"content": fmt.Sprintf(summarizePrompt, mode, text),
		}},
		"max_tokens":  c.maxTokens,
		"temperature": 0.3,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("summarizer http %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var decoded struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return "", fmt.Errorf("empty choices in response")
	}
	content := strings.TrimSpace(decoded.Choices[0].Message.Content)
	if content == "" {
		return "", fmt.Errorf("empty content in response")
	}
	return content, nil
}

// MockSummarizer is a test double for the Summarizer interface.
type MockSummarizer struct {
	Response string
	Err      error
	Delay    time.Duration
	Calls    []string // records modes requested
}

func (m *MockSummarizer) Summarize(ctx context.Context, text, mode string) (string, error) {
	m.Calls = append(m.Calls, mode)
	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return m.Response, m.Err
}

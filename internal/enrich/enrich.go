// Package enrich translates, summarizes, and categorizes feed entries into
// Arabic using the Gemini API.
package enrich

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"murrasil/internal/model"
)

const (
	defaultModel   = "gemini-2.5-flash"
	defaultBaseURL = "https://generativelanguage.googleapis.com"
)

// Result is the structured enrichment output for one entry.
// Fields are always populated: missing model output falls back to the
// original title, an empty summary, and the "other" category.
type Result struct {
	TitleAr   string
	SummaryAr string
	Category  string
}

// Client calls the Gemini generateContent endpoint, requesting a JSON
// response.
type Client struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithModel overrides the default Gemini model.
func WithModel(m string) Option {
	return func(c *Client) {
		if m != "" {
			c.model = m
		}
	}
}

// WithBaseURL overrides the API base URL (used in tests).
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = url }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates an enrichment client.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:     apiKey,
		model:      defaultModel,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type geminiRequest struct {
	Contents         []geminiContent  `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type generationConfig struct {
	ResponseMIMEType string `json:"response_mime_type"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// enrichment is the JSON shape the prompt asks the model for. Every field is
// optional; defaults are applied after parsing.
type enrichment struct {
	TitleAr   string `json:"title_ar"`
	SummaryAr string `json:"summary_ar"`
	Category  string `json:"category"`
}

// Enrich asks the model for an Arabic title, summary, and category for one
// feed entry. Any transport or parse failure is returned as an error; callers
// treat that as "skip the entry".
func (c *Client) Enrich(ctx context.Context, title, content string) (*Result, error) {
	prompt := buildPrompt(title, content)

	reqBody := geminiRequest{
		Contents: []geminiContent{
			{Parts: []geminiPart{{Text: prompt}}},
		},
		GenerationConfig: generationConfig{ResponseMIMEType: "application/json"},
	}
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var gr geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(gr.Candidates) == 0 || len(gr.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("empty model response")
	}

	return parseEnrichment(gr.Candidates[0].Content.Parts[0].Text, title)
}

func buildPrompt(title, content string) string {
	return fmt.Sprintf(`You are a tech journalist. Given this news article title and content in English,
return a JSON object with:
- "title_ar": Arabic translation of the title (concise, journalistic)
- "summary_ar": 2-3 sentence Arabic summary of the article
- "category": one of [%s]

Article title: %s
Article content/description: %s

Return ONLY valid JSON, no explanation.`, strings.Join(model.Categories, ", "), title, content)
}

// parseEnrichment decodes the model's JSON, applying defaults for anything
// missing or unrecognized. originalTitle backs the title_ar fallback.
func parseEnrichment(text, originalTitle string) (*Result, error) {
	var e enrichment
	if err := json.Unmarshal([]byte(stripCodeFence(text)), &e); err != nil {
		return nil, fmt.Errorf("parse enrichment JSON: %w", err)
	}

	r := &Result{
		TitleAr:   e.TitleAr,
		SummaryAr: e.SummaryAr,
		Category:  model.NormalizeCategory(e.Category),
	}
	if r.TitleAr == "" {
		r.TitleAr = originalTitle
	}
	return r, nil
}

// stripCodeFence removes a markdown ```json fence the model sometimes wraps
// around its output despite the JSON MIME type request.
func stripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}

// Package generators holds the clients for the two upstream generation
// services (text and speech) and the store for the transient audio they
// produce.
package generators

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"storyteller/server/internal/config"
	"storyteller/server/internal/models"
)

const (
	geminiDefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	geminiDefaultModel   = "gemini-pro"
	geminiDefaultTimeout = 60 * time.Second

	// Cap on generated story length.
	defaultMaxOutputTokens = 512
)

// Safety configuration sent with every request: block medium-and-above for
// all four harm categories.
var geminiSafetySettings = []SafetySetting{
	{Category: "HARM_CATEGORY_HARASSMENT", Threshold: "BLOCK_MEDIUM_AND_ABOVE"},
	{Category: "HARM_CATEGORY_HATE_SPEECH", Threshold: "BLOCK_MEDIUM_AND_ABOVE"},
	{Category: "HARM_CATEGORY_SEXUALLY_EXPLICIT", Threshold: "BLOCK_MEDIUM_AND_ABOVE"},
	{Category: "HARM_CATEGORY_DANGEROUS_CONTENT", Threshold: "BLOCK_MEDIUM_AND_ABOVE"},
}

// GeminiClient calls the Gemini generateContent API.
type GeminiClient struct {
	httpClient      *http.Client
	baseURL         string
	apiKey          string
	model           string
	maxOutputTokens int
	logger          *zap.Logger
}

// SafetySetting is one harm-category threshold entry.
type SafetySetting struct {
	Category  string `json:"category"`
	Threshold string `json:"threshold"`
}

type generateContentRequest struct {
	Contents         []content         `json:"contents"`
	SafetySettings   []SafetySetting   `json:"safetySettings"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	MaxOutputTokens int `json:"maxOutputTokens,omitempty"`
}

type generateContentResponse struct {
	Candidates     []candidate     `json:"candidates"`
	PromptFeedback *promptFeedback `json:"promptFeedback,omitempty"`
	Error          *geminiAPIError `json:"error,omitempty"`
}

type candidate struct {
	Content      content `json:"content"`
	FinishReason string  `json:"finishReason,omitempty"`
}

type promptFeedback struct {
	BlockReason string `json:"blockReason,omitempty"`
}

type geminiAPIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

// NewGeminiClient creates a client from configuration. A missing API key does
// not fail construction; every call on an unconfigured client fails fast with
// ErrNotConfigured instead.
func NewGeminiClient(cfg config.GeminiConfig, logger *zap.Logger) *GeminiClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = geminiDefaultBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = geminiDefaultModel
	}
	maxTokens := cfg.MaxOutputTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxOutputTokens
	}

	if cfg.APIKey == "" {
		logger.Warn("Gemini API key not set, story generation disabled")
	}

	return &GeminiClient{
		httpClient:      &http.Client{Timeout: geminiDefaultTimeout},
		baseURL:         strings.TrimRight(baseURL, "/"),
		apiKey:          cfg.APIKey,
		model:           model,
		maxOutputTokens: maxTokens,
		logger:          logger,
	}
}

// Configured reports whether a credential is present.
func (c *GeminiClient) Configured() bool {
	return c.apiKey != ""
}

// Generate sends a single generateContent request and returns the generated
// text. One attempt only; failures propagate to the caller immediately.
func (c *GeminiClient) Generate(ctx context.Context, prompt string) (string, error) {
	c.logger.Info("gemini: generate",
		zap.String("method", "Generate"),
		zap.Int("prompt_length", len(prompt)))

	if !c.Configured() {
		return "", fmt.Errorf("story generation: %w", models.ErrNotConfigured)
	}
	if strings.TrimSpace(prompt) == "" {
		return "", fmt.Errorf("story generation: %w", models.ErrEmptyInput)
	}

	reqBody, err := json.Marshal(&generateContentRequest{
		Contents:         []content{{Parts: []part{{Text: prompt}}}},
		SafetySettings:   geminiSafetySettings,
		GenerationConfig: &generationConfig{MaxOutputTokens: c.maxOutputTokens},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, c.model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp generateContentResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Error != nil {
			return "", fmt.Errorf("%w: HTTP %d: %s", models.ErrUpstream, resp.StatusCode, errResp.Error.Message)
		}
		return "", fmt.Errorf("%w: HTTP %d: %s", models.ErrUpstream, resp.StatusCode, string(respBody))
	}

	var genResp generateContentResponse
	if err := json.Unmarshal(respBody, &genResp); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if genResp.PromptFeedback != nil && genResp.PromptFeedback.BlockReason != "" {
		return "", fmt.Errorf("%w: %s", models.ErrBlocked, genResp.PromptFeedback.BlockReason)
	}

	text := collectCandidateText(genResp.Candidates)
	if text == "" {
		return "", models.ErrEmptyResponse
	}

	c.logger.Info("gemini: generated story text", zap.Int("text_length", len(text)))
	return text, nil
}

func collectCandidateText(candidates []candidate) string {
	if len(candidates) == 0 {
		return ""
	}
	var b strings.Builder
	for _, p := range candidates[0].Content.Parts {
		b.WriteString(p.Text)
	}
	return b.String()
}

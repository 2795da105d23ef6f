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
	elevenDefaultBaseURL = "https://api.elevenlabs.io/v1"
	elevenDefaultModelID = "eleven_monolingual_v1"
	elevenDefaultTimeout = 60 * time.Second

	elevenDefaultStability       = 0.5
	elevenDefaultSimilarityBoost = 0.75
)

// DefaultVoices is the static fallback catalog used when the voices endpoint
// is unavailable or the client is unconfigured.
var DefaultVoices = []models.VoiceOption{
	{ID: "21m00Tcm4TlvDq8ikWAM", Name: "Rachel", Description: "Calm and clear female voice, ideal for storytelling"},
	{ID: "AZnzlk1XvdvUeBnXmlld", Name: "Domi", Description: "Passionate, emotional male voice"},
	{ID: "EXAVITQu4vr4xnSDxMaL", Name: "Bella", Description: "Gentle female voice with a soft tone"},
}

// ElevenLabsClient calls the ElevenLabs text-to-speech API and registers the
// resulting audio with an AudioStore.
type ElevenLabsClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	modelID    string
	voiceID    string
	settings   voiceSettings
	audio      *AudioStore
	logger     *zap.Logger
}

type ttsRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style"`
	UseSpeakerBoost bool    `json:"use_speaker_boost"`
}

type ttsErrorResponse struct {
	Detail json.RawMessage `json:"detail"`
}

type voicesResponse struct {
	Voices []struct {
		VoiceID     string `json:"voice_id"`
		Name        string `json:"name"`
		Description string `json:"description"`
	} `json:"voices"`
}

// NewElevenLabsClient creates a client from configuration. As with the text
// client, a missing credential disables calls instead of failing construction.
func NewElevenLabsClient(cfg config.ElevenLabsConfig, audio *AudioStore, logger *zap.Logger) *ElevenLabsClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = elevenDefaultBaseURL
	}
	modelID := cfg.ModelID
	if modelID == "" {
		modelID = elevenDefaultModelID
	}
	voiceID := cfg.DefaultVoiceID
	if voiceID == "" {
		voiceID = DefaultVoices[0].ID
	}

	settings := voiceSettings{
		Stability:       cfg.Stability,
		SimilarityBoost: cfg.SimilarityBoost,
		Style:           cfg.Style,
		UseSpeakerBoost: cfg.SpeakerBoost,
	}
	if settings.Stability == 0 {
		settings.Stability = elevenDefaultStability
	}
	if settings.SimilarityBoost == 0 {
		settings.SimilarityBoost = elevenDefaultSimilarityBoost
	}

	if cfg.APIKey == "" {
		logger.Warn("ElevenLabs API key not set, speech synthesis disabled")
	}

	return &ElevenLabsClient{
		httpClient: &http.Client{Timeout: elevenDefaultTimeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     cfg.APIKey,
		modelID:    modelID,
		voiceID:    voiceID,
		settings:   settings,
		audio:      audio,
		logger:     logger,
	}
}

// Configured reports whether a credential is present.
func (c *ElevenLabsClient) Configured() bool {
	return c.apiKey != ""
}

// DefaultVoiceID returns the voice used when a request does not name one.
func (c *ElevenLabsClient) DefaultVoiceID() string {
	return c.voiceID
}

// Synthesize converts text to speech and returns a revocable handle to the
// audio bytes. Empty text fails before any network call.
func (c *ElevenLabsClient) Synthesize(ctx context.Context, text, voiceID string) (*models.AudioHandle, error) {
	c.logger.Info("elevenlabs: synthesize",
		zap.String("method", "Synthesize"),
		zap.Int("text_length", len(text)))

	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("speech synthesis: %w", models.ErrEmptyInput)
	}
	if !c.Configured() {
		return nil, fmt.Errorf("speech synthesis: %w", models.ErrNotConfigured)
	}

	if voiceID == "" {
		voiceID = c.voiceID
	}

	reqBody, err := json.Marshal(&ttsRequest{
		Text:          text,
		ModelID:       c.modelID,
		VoiceSettings: c.settings,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/text-to-speech/%s", c.baseURL, voiceID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("xi-api-key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		detail := extractDetail(body)
		if detail == "" {
			detail = resp.Status
		}
		return nil, fmt.Errorf("%w: HTTP %d: %s", models.ErrUpstream, resp.StatusCode, detail)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "audio/mpeg"
	}

	handle := c.audio.Put(body, contentType)
	c.logger.Info("elevenlabs: audio synthesized",
		zap.String("audio_id", handle.ID),
		zap.Int("size", handle.Size))
	return handle, nil
}

// ListVoices returns the available narration voices. Best-effort: the static
// catalog comes back when the client is unconfigured or the upstream call
// fails for any reason.
func (c *ElevenLabsClient) ListVoices(ctx context.Context) []models.VoiceOption {
	c.logger.Info("elevenlabs: list voices", zap.String("method", "ListVoices"))

	if !c.Configured() {
		return DefaultVoices
	}

	url := fmt.Sprintf("%s/voices", c.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return DefaultVoices
	}
	httpReq.Header.Set("xi-api-key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Warn("elevenlabs: voice listing failed, using fallback catalog", zap.Error(err))
		return DefaultVoices
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("elevenlabs: voice listing failed, using fallback catalog",
			zap.Int("status", resp.StatusCode))
		return DefaultVoices
	}

	var vr voicesResponse
	if err := json.NewDecoder(resp.Body).Decode(&vr); err != nil || len(vr.Voices) == 0 {
		return DefaultVoices
	}

	voices := make([]models.VoiceOption, 0, len(vr.Voices))
	for _, v := range vr.Voices {
		voices = append(voices, models.VoiceOption{
			ID:          v.VoiceID,
			Name:        v.Name,
			Description: v.Description,
		})
	}
	return voices
}

// extractDetail pulls the service's error message out of a JSON error body.
// The detail field is either a plain string or an object with a message.
func extractDetail(body []byte) string {
	var er ttsErrorResponse
	if err := json.Unmarshal(body, &er); err != nil || len(er.Detail) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(er.Detail, &s); err == nil {
		return s
	}
	var obj struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(er.Detail, &obj); err == nil && obj.Message != "" {
		return obj.Message
	}
	return string(er.Detail)
}

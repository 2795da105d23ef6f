// Package engine sequences the story pipeline: prompt building, text
// generation, choice parsing, speech synthesis and store updates.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"storyteller/server/internal/models"
	"storyteller/server/internal/prompts"
	"storyteller/server/internal/state"
)

// TextGenerator produces story text for a prompt.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// SpeechSynthesizer converts narrative text into a revocable audio handle.
type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, text, voiceID string) (*models.AudioHandle, error)
}

// StartOptions carries the optional knobs for a new story.
type StartOptions struct {
	CharacterName string
	Setting       string
	VoiceID       string
}

// StoryEngine drives the generation pipeline against the story and profile
// containers it was constructed with. Operations are mutually exclusive with
// respect to the story store's generating flag; a request in flight is never
// cancelled, new requests are rejected until it settles.
type StoryEngine struct {
	generator   TextGenerator
	synthesizer SpeechSynthesizer
	stories     *state.StoryStore
	profiles    *state.ProfileStore
	logger      *zap.Logger

	mu      sync.Mutex
	lastErr string
}

// NewStoryEngine creates an engine over the given collaborators.
func NewStoryEngine(
	generator TextGenerator,
	synthesizer SpeechSynthesizer,
	stories *state.StoryStore,
	profiles *state.ProfileStore,
	logger *zap.Logger,
) *StoryEngine {
	return &StoryEngine{
		generator:   generator,
		synthesizer: synthesizer,
		stories:     stories,
		profiles:    profiles,
		logger:      logger,
	}
}

// StartNewStory clears the current session, opens a progress record for the
// active profile when one exists, and generates the first segment. The
// generating flag is released on every exit path; on failure no segment is
// committed and the session stays cleared.
func (e *StoryEngine) StartNewStory(ctx context.Context, theme string, opts StartOptions) (*models.StorySegment, error) {
	e.logger.Info("starting new story", zap.String("theme", theme))

	if !e.stories.TryBeginGenerating() {
		return nil, e.fail("startNewStory", models.ErrGenerationInFlight)
	}
	defer e.stories.EndGenerating()

	// Session is cleared before the first request goes out.
	e.stories.StartStory(e.activeProfileID(), theme)

	prompt := prompts.BuildInitialPrompt(theme, opts.CharacterName, opts.Setting)
	segment, err := e.runPipeline(ctx, prompt, "", opts.VoiceID, true)
	if err != nil {
		return nil, e.fail("startNewStory", err)
	}

	e.stories.AddSegment(*segment)
	e.clearError()
	return segment, nil
}

// ContinueStory generates the next segment from the choice the listener made
// on the current segment. With no current segment it fails without ever
// setting the generating flag.
func (e *StoryEngine) ContinueStory(ctx context.Context, choiceID, voiceID string) (*models.StorySegment, error) {
	current := e.stories.CurrentSegment()
	if current == nil {
		return nil, e.fail("continueStory", models.ErrNoActiveSegment)
	}

	choice, ok := findChoice(current.Choices, choiceID)
	if !ok {
		return nil, e.fail("continueStory", fmt.Errorf("choice not found: %s", choiceID))
	}

	e.logger.Info("continuing story",
		zap.String("choice_id", choice.ID),
		zap.String("choice_text", choice.Text))

	if !e.stories.TryBeginGenerating() {
		return nil, e.fail("continueStory", models.ErrGenerationInFlight)
	}
	defer e.stories.EndGenerating()

	prompt := prompts.BuildContinuationPrompt(current.Text, choice.Text)
	segment, err := e.runPipeline(ctx, prompt, choice.ID, voiceID, true)
	if err != nil {
		return nil, e.fail("continueStory", err)
	}

	e.stories.AddSegment(*segment)
	e.clearError()
	return segment, nil
}

// ConcludeStory generates a happy final segment over the whole session and
// closes the active profile's progress record. The final segment offers no
// choices.
func (e *StoryEngine) ConcludeStory(ctx context.Context, voiceID string) (*models.StorySegment, error) {
	if e.stories.CurrentSegment() == nil {
		return nil, e.fail("concludeStory", models.ErrNoActiveSegment)
	}

	e.logger.Info("concluding story", zap.String("theme", e.stories.Theme()))

	if !e.stories.TryBeginGenerating() {
		return nil, e.fail("concludeStory", models.ErrGenerationInFlight)
	}
	defer e.stories.EndGenerating()

	prompt := prompts.BuildConclusionPrompt(e.stories.FullStoryText())
	segment, err := e.runPipeline(ctx, prompt, "", voiceID, false)
	if err != nil {
		return nil, e.fail("concludeStory", err)
	}

	e.stories.AddSegment(*segment)
	if profileID := e.activeProfileID(); profileID != "" {
		e.stories.CompleteStory(profileID)
	}
	e.clearError()
	return segment, nil
}

// LastError returns the message surfaced by the most recent failed operation,
// empty after a success.
func (e *StoryEngine) LastError() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastErr
}

// runPipeline is the shared generate → parse → strip → synthesize → construct
// sequence. Nothing is committed to the store here; the caller appends the
// segment only on full success.
func (e *StoryEngine) runPipeline(ctx context.Context, prompt, parentChoiceID, voiceID string, wantChoices bool) (*models.StorySegment, error) {
	raw, err := e.generator.Generate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	parsed, _ := prompts.ParseChoices(raw)
	text := prompts.StripChoices(raw)
	if text == "" {
		return nil, models.ErrEmptyGeneration
	}

	handle, err := e.synthesizer.Synthesize(ctx, text, voiceID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrSynthesisFailed, err)
	}
	if handle == nil {
		return nil, models.ErrSynthesisFailed
	}

	segmentID := uuid.NewString()
	var choices []models.StoryChoice
	if wantChoices {
		choices = make([]models.StoryChoice, 0, len(parsed))
		for i, annotation := range parsed {
			choices = append(choices, models.StoryChoice{
				ID:    fmt.Sprintf("%s-choice-%d", segmentID, i),
				Text:  annotation,
				Label: prompts.ExtractChoiceText(annotation),
			})
		}
	}

	return &models.StorySegment{
		ID:             segmentID,
		Text:           text,
		Audio:          handle,
		Choices:        choices,
		ParentChoiceID: parentChoiceID,
		CreatedAt:      time.Now(),
	}, nil
}

// fail logs the failure and records the surfaced message. Store state from
// before the failed call is left untouched.
func (e *StoryEngine) fail(op string, err error) error {
	e.logger.Error("story operation failed", zap.String("operation", op), zap.Error(err))

	e.mu.Lock()
	e.lastErr = err.Error()
	e.mu.Unlock()
	return err
}

func (e *StoryEngine) clearError() {
	e.mu.Lock()
	e.lastErr = ""
	e.mu.Unlock()
}

func (e *StoryEngine) activeProfileID() string {
	if e.profiles == nil {
		return ""
	}
	return e.profiles.ActiveProfileID()
}

func findChoice(choices []models.StoryChoice, id string) (models.StoryChoice, bool) {
	for _, c := range choices {
		if c.ID == id {
			return c, true
		}
	}
	return models.StoryChoice{}, false
}

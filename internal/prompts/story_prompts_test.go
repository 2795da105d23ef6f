package prompts

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildInitialPrompt(t *testing.T) {
	t.Run("contains theme and fixed instructions", func(t *testing.T) {
		prompt := BuildInitialPrompt("Space Adventure", "", "")

		assert.Contains(t, prompt, `"Space Adventure"`)
		assert.Contains(t, prompt, "FORMATTING FOR CHOICES")
		assert.Contains(t, prompt, "IMPORTANT SAFETY RULES")
		assert.Contains(t, prompt, "exactly 2 or 3 distinct choices")
	})

	t.Run("optional character and setting", func(t *testing.T) {
		prompt := BuildInitialPrompt("a magical garden", "Luna", "a treehouse")

		assert.Contains(t, prompt, "The main character's name is Luna.")
		assert.Contains(t, prompt, "The story takes place in/at a treehouse.")
	})

	t.Run("optional lines absent when empty", func(t *testing.T) {
		prompt := BuildInitialPrompt("dinosaurs", "", "")

		assert.NotContains(t, prompt, "The main character's name is")
		assert.NotContains(t, prompt, "The story takes place")
	})
}

func TestBuildContinuationPrompt(t *testing.T) {
	t.Run("extracts inner text from annotated choice", func(t *testing.T) {
		prompt := BuildContinuationPrompt("Once upon a time...", "[Choice 1: Fly to the moon]")

		assert.Contains(t, prompt, `"Fly to the moon"`)
		assert.NotContains(t, prompt, "[Choice 1: Fly to the moon]")
		assert.Contains(t, prompt, "Once upon a time...")
	})

	t.Run("uses raw text when not annotated", func(t *testing.T) {
		prompt := BuildContinuationPrompt("previous part", "Dive underwater")

		assert.Contains(t, prompt, `"Dive underwater"`)
	})

	t.Run("carries fixed instructions", func(t *testing.T) {
		prompt := BuildContinuationPrompt("p", "c")

		assert.Contains(t, prompt, "FORMATTING FOR CHOICES")
		assert.Contains(t, prompt, "IMPORTANT SAFETY RULES")
	})
}

func TestBuildConclusionPrompt(t *testing.T) {
	prompt := BuildConclusionPrompt("The whole story so far.")

	assert.Contains(t, prompt, "The whole story so far.")
	assert.Contains(t, prompt, "IMPORTANT SAFETY RULES")
	// The conclusion asks for an ending, not more choices.
	assert.NotContains(t, prompt, "FORMATTING FOR CHOICES")
}

func TestParseChoices(t *testing.T) {
	t.Run("returns full annotations in order", func(t *testing.T) {
		text := "Once upon a time... [Choice 1: Fly to the moon] [Choice 2: Dive underwater]"

		choices, found := ParseChoices(text)
		require.True(t, found)
		require.Len(t, choices, 2)
		assert.Equal(t, "[Choice 1: Fly to the moon]", choices[0])
		assert.Equal(t, "[Choice 2: Dive underwater]", choices[1])
	})

	t.Run("matches unnumbered annotations", func(t *testing.T) {
		choices, found := ParseChoices("Go on. [Choice: Look inside]")
		require.True(t, found)
		require.Len(t, choices, 1)
		assert.Equal(t, "[Choice: Look inside]", choices[0])
	})

	t.Run("none found if and only if no pattern", func(t *testing.T) {
		_, found := ParseChoices("Just a story with [brackets] but no choices.")
		assert.False(t, found)

		_, found = ParseChoices("")
		assert.False(t, found)
	})
}

func TestStripChoices(t *testing.T) {
	t.Run("removes every annotation and trims", func(t *testing.T) {
		text := "Once upon a time... [Choice 1: Fly to the moon] [Choice 2: Dive underwater]"

		assert.Equal(t, "Once upon a time...", StripChoices(text))
	})

	t.Run("round trip leaves no residual pattern", func(t *testing.T) {
		inputs := []string{
			"no choices at all",
			"one [Choice 1: A]",
			"three [Choice 1: A] middle [Choice 2: B] end [Choice 3: C]",
			"[Choice: unnumbered]",
		}
		for _, input := range inputs {
			stripped := StripChoices(input)
			_, found := ParseChoices(stripped)
			assert.False(t, found, "residual annotation in %q", stripped)
		}
	})

	t.Run("parsed count matches annotations", func(t *testing.T) {
		text := "a [Choice 1: x] b [Choice 2: y] c [Choice 3: z]"
		choices, found := ParseChoices(text)
		require.True(t, found)
		assert.Len(t, choices, 3)
		assert.False(t, strings.Contains(StripChoices(text), "[Choice"))
	})
}

func TestExtractChoiceText(t *testing.T) {
	assert.Equal(t, "Fly to the moon", ExtractChoiceText("[Choice 1: Fly to the moon]"))
	assert.Equal(t, "Look inside", ExtractChoiceText("[Choice: Look inside]"))
	assert.Equal(t, "plain text", ExtractChoiceText("plain text"))
	assert.Equal(t, "spaced", ExtractChoiceText("[Choice 2:   spaced  ]"))
}

// Package prompts assembles the prompts sent to the text-generation service
// and handles the bracketed [Choice N: ...] annotation format the service is
// instructed to embed.
package prompts

import (
	"fmt"
	"regexp"
	"strings"
)

// Safety rules appended to every prompt.
const safetyInstructions = `
IMPORTANT SAFETY RULES:
- This story is for young children. Ensure all content is strictly age-appropriate, safe, positive, and avoids any scary, violent, controversial, or inappropriate themes.
- Do not include any characters or scenarios that could be frightening or upsetting to a child.
- Keep the tone light, encouraging, and friendly.
- Do not ask for or reference any personal information.
- If the user's request seems unsafe or inappropriate, politely decline and suggest a different, safe theme.
`

// Formatting rules appended to every choice-generating prompt.
const choiceFormattingInstructions = `
FORMATTING FOR CHOICES:
- When you present choices, clearly label them using bracketed tags like [Choice 1: Describe the choice], [Choice 2: Describe the choice].
- Ensure there are exactly 2 or 3 distinct choices presented.
- Make the choice descriptions clear and concise (max 15 words each).
- The story text leading up to the choices should naturally pause, setting up the decision point.
`

// choiceRegex matches one bracket annotation: [Choice 1: Go left] or
// [Choice: Look inside]. The submatch holds the inner text.
var choiceRegex = regexp.MustCompile(`\[Choice\s*\d*:\s*(.*?)\]`)

// BuildInitialPrompt assembles the prompt for the very first segment of a
// story. characterName and setting are optional and skipped when empty.
func BuildInitialPrompt(theme, characterName, setting string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are a master storyteller for young children (ages 3-6). Write the very beginning of an imaginative and engaging short story based on the following theme: %q.\n", theme)
	if characterName != "" {
		fmt.Fprintf(&b, "The main character's name is %s.\n", characterName)
	}
	if setting != "" {
		fmt.Fprintf(&b, "The story takes place in/at %s.\n", setting)
	}

	b.WriteString("\nKeep the language simple and direct for a young audience. Make the beginning about 2-4 sentences long. \n")
	b.WriteString("End this first part of the story at a natural point where the listener needs to make a decision about what happens next. \n")
	b.WriteString("Generate exactly 2 or 3 distinct choices for the listener to pick from. These choices should guide the next step in the adventure.\n")

	b.WriteString(choiceFormattingInstructions)
	b.WriteString(safetyInstructions)

	return b.String()
}

// BuildContinuationPrompt assembles the prompt for the next segment, given the
// previous narrative text and the choice the listener made. When the choice is
// still carrying its bracket annotation, only the inner text goes into the
// prompt.
func BuildContinuationPrompt(previousText, choiceText string) string {
	cleaned := ExtractChoiceText(choiceText)

	var b strings.Builder
	fmt.Fprintf(&b, "You are a master storyteller for young children (ages 3-6). Continue the story based on the listener's choice. \n\nPREVIOUS PART:\n%q\n\nLISTENER'S CHOICE: %q\n\n", previousText, cleaned)
	b.WriteString("Write the next part of the story (about 2-4 sentences long). It should flow naturally from the previous part and the choice made. \n")
	b.WriteString("Keep the language simple, direct, and engaging for a young audience. \n")
	b.WriteString("End this part of the story at another natural point where the listener needs to make a decision about what happens next. \n")
	b.WriteString("Generate exactly 2 or 3 distinct choices for the listener to pick from.\n")

	b.WriteString(choiceFormattingInstructions)
	b.WriteString(safetyInstructions)

	return b.String()
}

// BuildConclusionPrompt assembles the prompt for a happy, final segment over
// the whole story so far. No choices are requested.
func BuildConclusionPrompt(fullStoryText string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are a master storyteller for young children (ages 3-6). Write a happy and satisfying conclusion to the following story. The story should end neatly and positively.\n\nSTORY SO FAR:\n%q\n\n", fullStoryText)
	b.WriteString("Keep the ending short (1-3 sentences) and appropriate for the story's flow.\n")

	b.WriteString(safetyInstructions)

	return b.String()
}

// ParseChoices scans generated text for choice annotations and returns the
// full matched annotations in order of appearance. The second result is false
// when the text contains none.
func ParseChoices(text string) ([]string, bool) {
	matches := choiceRegex.FindAllString(text, -1)
	if len(matches) == 0 {
		return nil, false
	}

	choices := make([]string, len(matches))
	for i, m := range matches {
		choices[i] = strings.TrimSpace(m)
	}
	return choices, true
}

// StripChoices removes every choice annotation from the text and trims the
// surrounding whitespace, leaving only the narrative.
func StripChoices(text string) string {
	return strings.TrimSpace(choiceRegex.ReplaceAllString(text, ""))
}

// ExtractChoiceText returns the inner text of a choice annotation, or the
// input verbatim when it is not annotated. This is the single place the inner
// text is derived; the prompt builder and the display layer both use it.
func ExtractChoiceText(choice string) string {
	if m := choiceRegex.FindStringSubmatch(choice); m != nil {
		return strings.TrimSpace(m[1])
	}
	return choice
}

package models

import (
	"time"
)

// StorySegment is one generated unit of narrative plus its audio and the
// follow-on choices. Immutable once created; a new segment supersedes it,
// nothing mutates it.
type StorySegment struct {
	ID             string        `json:"id"`
	Text           string        `json:"text"`
	Audio          *AudioHandle  `json:"audio,omitempty"`
	Choices        []StoryChoice `json:"choices"`
	ParentChoiceID string        `json:"parent_choice_id,omitempty"` // empty for the first segment
	CreatedAt      time.Time     `json:"created_at"`
}

// StoryChoice is a decision point offered at the end of a segment. Text keeps
// the full bracket annotation as generated; Label carries the extracted inner
// text for display.
type StoryChoice struct {
	ID    string `json:"id"` // parent segment id + ordinal position
	Text  string `json:"text"`
	Label string `json:"label"`
}

// AudioHandle is a process-lifetime reference to synthesized audio bytes,
// revocable. The current segment owns its handle; superseding the segment
// revokes it.
type AudioHandle struct {
	ID          string `json:"id"`
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
	Size        int    `json:"size"`
}

// StoryProgress is a durable marker of one story attempt by one profile,
// open until completed.
type StoryProgress struct {
	ID            string     `json:"id"`
	ProfileID     string     `json:"profile_id"`
	Theme         string     `json:"theme"`
	StartedAt     time.Time  `json:"started_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	LastSegmentID string     `json:"last_segment_id,omitempty"`
}

// Completed reports whether the record has been closed.
func (p *StoryProgress) Completed() bool {
	return p.CompletedAt != nil
}

// ComprehensionQuestion is a post-story quiz entry for the current session.
type ComprehensionQuestion struct {
	ID                 string   `json:"id"`
	Question           string   `json:"question"`
	Choices            []string `json:"choices"`
	CorrectChoiceIndex int      `json:"correct_choice_index"`
}

// VoiceOption describes a selectable narration voice.
type VoiceOption struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

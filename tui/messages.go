package tui

import (
	"storyforge/poll"
	"storyforge/types"
)

// Messages for the tea program

// SnapshotMsg delivers one applied poll result.
type SnapshotMsg struct {
	Snapshot poll.Snapshot
}

// DraftSavedMsg is sent when the draft submission finishes.
type DraftSavedMsg struct {
	Err error
}

// StyleSavedMsg is sent when the style choice (and extraction trigger)
// finishes.
type StyleSavedMsg struct {
	Err error
}

// AdvancedMsg is sent when a gated stage advance finishes.
type AdvancedMsg struct {
	Err error
}

// RegenDoneMsg is sent when one item's regeneration finishes.
type RegenDoneMsg struct {
	Key string
	Err error
}

// StoriesMsg delivers the library listing.
type StoriesMsg struct {
	Stories []types.Story
	Err     error
}

// ResumedMsg is sent when a saved draft has been rehydrated.
type ResumedMsg struct {
	Err error
}

// EditStartedMsg is sent when an edit session has been derived from a story.
type EditStartedMsg struct {
	Err error
}

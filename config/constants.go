package config

import "time"

// Draft Constants
const (
	// DefaultMinStoryChars is the minimum draft length accepted by the wizard
	DefaultMinStoryChars = 100

	// DefaultPageCount is the page count used when the user picks none
	DefaultPageCount = 8

	// MinPageCount and MaxPageCount bound the selectable page counts
	MinPageCount = 4
	MaxPageCount = 12
)

// Polling Constants
const (
	// DefaultPollInterval is the wait time between job status fetches
	DefaultPollInterval = 2 * time.Second

	// DefaultRequestTimeout bounds a single status fetch
	DefaultRequestTimeout = 10 * time.Second
)

// Image Constants
const (
	// MaxReferenceImageBytes caps an uploaded reference image (8 MiB)
	MaxReferenceImageBytes = 8 << 20
)

// StylePresets are the built-in art styles offered alongside the backend
// recommendation.
var StylePresets = []string{"watercolor", "paper_collage", "crayon", "storybook_ink", "gouache"}

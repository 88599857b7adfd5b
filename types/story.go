package types

import "time"

// Story is the finalized, persisted form of a completed job. It is
// immutable from the client's point of view; edits re-derive a fresh Job.
type Story struct {
	ID         string      `json:"id"`
	Title      string      `json:"title"`
	Summary    string      `json:"summary,omitempty"`
	ArtStyle   string      `json:"artStyle,omitempty"`
	Pages      []Page      `json:"pages"`
	Cover      *CoverArt   `json:"cover,omitempty"`
	Characters []Character `json:"characters,omitempty"`
	Tags       []string    `json:"tags,omitempty"`
	CreatedAt  time.Time   `json:"createdAt"`
	UpdatedAt  time.Time   `json:"updatedAt"`
}

// Draft is the rehydration payload for resuming an unfinished job.
type Draft struct {
	JobID     string `json:"jobId"`
	StoryText string `json:"storyText"`
	PageCount int    `json:"pageCount"`
	ArtStyle  string `json:"artStyle,omitempty"`
	Phase     string `json:"phase,omitempty"`
}

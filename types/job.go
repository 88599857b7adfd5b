package types

import "time"

// JobStatus is the backend-reported lifecycle status of a generation job.
type JobStatus string

const (
	StatusRunning         JobStatus = "running"
	StatusCharactersReady JobStatus = "characters_ready"
	StatusAvatarsReady    JobStatus = "avatars_ready"
	StatusPagesTextReady  JobStatus = "pages_text_ready"
	StatusPagesReady      JobStatus = "pages_ready"
	StatusCompleted       JobStatus = "completed"
	StatusError           JobStatus = "error"
)

// Known reports whether the status is one this client version understands.
func (s JobStatus) Known() bool {
	switch s {
	case StatusRunning, StatusCharactersReady, StatusAvatarsReady,
		StatusPagesTextReady, StatusPagesReady, StatusCompleted, StatusError:
		return true
	}
	return false
}

// Terminal reports whether the job has finished, successfully or not.
// Unknown statuses are treated as still running for forward compatibility.
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

// Failed reports whether the job ended in a backend error.
func (s JobStatus) Failed() bool {
	return s == StatusError
}

// Job is the server-owned record of one in-progress story generation.
// The client polls it and never mutates it directly; all fields are
// replaced wholesale on every poll.
type Job struct {
	JobID            string      `json:"jobId"`
	Status           JobStatus   `json:"status"`
	Phase            string      `json:"phase,omitempty"`
	Progress         int         `json:"progress"`
	Message          string      `json:"message,omitempty"`
	StoryText        string      `json:"storyText,omitempty"`
	PageCount        int         `json:"pageCount,omitempty"`
	RecommendedStyle string      `json:"recommendedStyle,omitempty"`
	ArtStyle         string      `json:"artStyle,omitempty"`
	Characters       []Character `json:"characters,omitempty"`
	StoryPages       *StoryPages `json:"storyPages,omitempty"`
	Cover            *CoverArt   `json:"cover,omitempty"`
	Error            string      `json:"error,omitempty"`
	CreatedAt        time.Time   `json:"createdAt"`
	UpdatedAt        time.Time   `json:"updatedAt"`
}

// Character is one extracted story character and its avatar state.
type Character struct {
	Name              string `json:"name"`
	Role              string `json:"role,omitempty"`
	Description       string `json:"description,omitempty"`
	AvatarGenerated   bool   `json:"avatarGenerated"`
	AvatarURL         string `json:"avatarUrl,omitempty"`
	AvatarPrompt      string `json:"avatarPrompt,omitempty"`
	CustomDescription string `json:"customDescription,omitempty"`
	HasReferenceImage bool   `json:"hasReferenceImage"`
}

// StoryPages groups the generated title, summary and ordered pages.
type StoryPages struct {
	Title   string `json:"title"`
	Summary string `json:"summary,omitempty"`
	Pages   []Page `json:"pages"`
}

// Page is one illustrated story page.
type Page struct {
	PageNumber        int    `json:"pageNumber"`
	Text              string `json:"text"`
	IllustrationURL   string `json:"illustrationUrl,omitempty"`
	Regenerated       bool   `json:"regenerated"`
	CustomDescription string `json:"customDescription,omitempty"`
	// Approved is a server-side hint, meaningful on edit re-entry where
	// previously finalized artwork starts out accepted.
	Approved bool `json:"approved,omitempty"`
}

// CoverArt is the book cover illustration.
type CoverArt struct {
	IllustrationURL string `json:"illustrationUrl,omitempty"`
	Title           string `json:"title,omitempty"`
	Approved        bool   `json:"approved,omitempty"`
}

// HasCharacters reports whether character extraction has produced results.
func (j *Job) HasCharacters() bool {
	return j != nil && len(j.Characters) > 0
}

// HasPages reports whether page generation has produced results.
func (j *Job) HasPages() bool {
	return j != nil && j.StoryPages != nil && len(j.StoryPages.Pages) > 0
}

// Character returns the named character, or nil if absent.
func (j *Job) Character(name string) *Character {
	if j == nil {
		return nil
	}
	for i := range j.Characters {
		if j.Characters[i].Name == name {
			return &j.Characters[i]
		}
	}
	return nil
}

// Page returns the page with the given 1-indexed number, or nil if absent.
func (j *Job) Page(n int) *Page {
	if j == nil || j.StoryPages == nil {
		return nil
	}
	for i := range j.StoryPages.Pages {
		if j.StoryPages.Pages[i].PageNumber == n {
			return &j.StoryPages.Pages[i]
		}
	}
	return nil
}

// Clone returns a deep copy so holders can hand snapshots to other
// goroutines without sharing mutable slices.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	out := *j
	if j.Characters != nil {
		out.Characters = append([]Character(nil), j.Characters...)
	}
	if j.StoryPages != nil {
		sp := *j.StoryPages
		sp.Pages = append([]Page(nil), j.StoryPages.Pages...)
		out.StoryPages = &sp
	}
	if j.Cover != nil {
		c := *j.Cover
		out.Cover = &c
	}
	return &out
}

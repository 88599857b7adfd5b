// Package session carries the user's identity and wizard position as an
// explicitly injected value. Every collaborator that needs identity receives
// a *Session; nothing reads ambient global state.
package session

import (
	"time"

	"github.com/google/uuid"
)

// Origin records how the current wizard session was entered. Back-navigation
// rules differ between a fresh creation and an edit re-entry.
type Origin string

const (
	OriginCreate Origin = "create"
	OriginResume Origin = "resume"
	OriginEdit   Origin = "edit"
)

// Session is the client-side identity and continuation state. It is the
// typed replacement for the browser client's ad-hoc local-storage keys.
type Session struct {
	UserID  string    `json:"userId"`
	JobID   string    `json:"jobId,omitempty"`
	StoryID string    `json:"storyId,omitempty"`
	Origin  Origin    `json:"origin,omitempty"`
	SavedAt time.Time `json:"savedAt,omitempty"`
}

// New returns a fresh create-mode session with a generated user id.
func New() *Session {
	return &Session{UserID: uuid.NewString(), Origin: OriginCreate}
}

// HasJob reports whether a draft job is attached to this session.
func (s *Session) HasJob() bool {
	return s != nil && s.JobID != ""
}

// IsEdit reports whether the session originated from an edit entry point.
func (s *Session) IsEdit() bool {
	return s != nil && s.Origin == OriginEdit
}

// AttachJob binds the session to a job. The first draft submission creates
// the job id; later submissions in the same session reuse it.
func (s *Session) AttachJob(jobID string) {
	s.JobID = jobID
	s.SavedAt = time.Now()
}

// BeginEdit marks the session as an edit re-entry of a persisted story.
func (s *Session) BeginEdit(storyID, jobID string) {
	s.StoryID = storyID
	s.JobID = jobID
	s.Origin = OriginEdit
	s.SavedAt = time.Now()
}

// ClearJob detaches the finished or abandoned job but keeps the identity.
func (s *Session) ClearJob() {
	s.JobID = ""
	s.StoryID = ""
	s.Origin = OriginCreate
}

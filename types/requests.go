package types

// Request and response envelopes shared by the client and the stub server.

// DraftRequest creates or updates a draft record.
type DraftRequest struct {
	StoryText string `json:"storyText"`
	PageCount int    `json:"pageCount"`
	Phase     string `json:"phase,omitempty"`
}

// DraftResponse acknowledges a draft save.
type DraftResponse struct {
	Success bool   `json:"success"`
	JobID   string `json:"jobId"`
}

// ResumeResponse rehydrates a saved draft into wizard state.
type ResumeResponse struct {
	Success bool   `json:"success"`
	JobID   string `json:"jobId"`
	Draft   *Draft `json:"draft"`
}

// StyleRequest persists the art-style decision for a job. Custom styles
// carry a free-text description instead of a preset name.
type StyleRequest struct {
	Preset      string `json:"preset,omitempty"`
	Custom      bool   `json:"custom"`
	Description string `json:"description,omitempty"`
}

// Style returns the effective art-style label sent to the generator.
func (s StyleRequest) Style() string {
	if s.Custom {
		return s.Description
	}
	return s.Preset
}

// RegenerateRequest asks for one item (avatar, page, or cover) to be
// produced again, optionally steered by a description or reference image.
type RegenerateRequest struct {
	CustomDescription string        `json:"customDescription,omitempty"`
	ReferenceImage    *EncodedImage `json:"referenceImage,omitempty"`
}

// AvatarResponse carries the single updated character after an avatar
// generate/regenerate call.
type AvatarResponse struct {
	Success   bool       `json:"success"`
	Character *Character `json:"character"`
}

// PageResponse carries the single updated page after a regenerate call.
type PageResponse struct {
	Success bool  `json:"success"`
	Page    *Page `json:"page"`
}

// CoverResponse carries the updated cover after a regenerate call.
type CoverResponse struct {
	Success bool      `json:"success"`
	Cover   *CoverArt `json:"cover"`
}

// FinalizeRequest converts a job into a persisted story.
type FinalizeRequest struct {
	Tags []string `json:"tags,omitempty"`
}

// FinalizeResponse returns the persisted story.
type FinalizeResponse struct {
	Success bool   `json:"success"`
	Result  *Story `json:"result"`
}

// EditResponse returns the job re-derived from a persisted story.
type EditResponse struct {
	Success bool   `json:"success"`
	JobID   string `json:"jobId"`
}

// StoriesResponse lists a user's persisted stories.
type StoriesResponse struct {
	Stories []Story `json:"stories"`
}

// ErrorResponse is the JSON error body for non-2xx replies.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

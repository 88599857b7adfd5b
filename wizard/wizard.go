// Package wizard holds the story-creation state machine: the ordered stages
// from draft input to the final view, the gating rules between them, and the
// per-item regeneration bookkeeping. The controller owns the approval ledger
// and the last-known job snapshot for exactly one session at a time.
package wizard

import (
	"context"
	"errors"

	"storyforge/types"
)

// Stage is one step of the linear creation wizard.
type Stage int

const (
	StageDraftInput Stage = iota
	StageStyleSelect
	StageAvatarReview
	StagePageReview
	StageFinalView
)

func (s Stage) String() string {
	switch s {
	case StageDraftInput:
		return "draft_input"
	case StageStyleSelect:
		return "style_select"
	case StageAvatarReview:
		return "avatar_review"
	case StagePageReview:
		return "page_review"
	case StageFinalView:
		return "final_view"
	default:
		return "unknown"
	}
}

var (
	// ErrStoryTooShort rejects a draft below the minimum length before any
	// network request is made.
	ErrStoryTooShort = errors.New("story text is too short")
	// ErrCustomStyleEmpty rejects a custom art style without a description.
	ErrCustomStyleEmpty = errors.New("custom style needs a description")
	// ErrApprovalsPending blocks advancing while reviewable items remain
	// unapproved.
	ErrApprovalsPending = errors.New("items still await approval")
	// ErrAvatarsNotReady blocks advancing while a character has no
	// generated avatar yet.
	ErrAvatarsNotReady = errors.New("not every avatar has been generated")
	// ErrRegenInFlight rejects a second regeneration of the same item.
	ErrRegenInFlight = errors.New("item is already being regenerated")
	// ErrItemRegenerating rejects approving an item mid-regeneration.
	ErrItemRegenerating = errors.New("cannot approve an item that is being regenerated")
	// ErrUnknownItem means no artifact with that key exists in the job.
	ErrUnknownItem = errors.New("no such reviewable item")
	// ErrAtFirstStage means Back was pressed on the first stage.
	ErrAtFirstStage = errors.New("already at the first stage")
	// ErrEditExitsToLibrary means Back from avatar review in an edit
	// session; there is no earlier wizard stage, the UI returns to the
	// library instead.
	ErrEditExitsToLibrary = errors.New("editing exits to the library")
	// ErrWrongStage means the operation is not valid in the current stage.
	ErrWrongStage = errors.New("operation not valid in this stage")
	// ErrNoJob means the session has no job attached yet.
	ErrNoJob = errors.New("no job attached to this session")
	// ErrNotReady blocks advancing before the backend has produced the
	// stage's items.
	ErrNotReady = errors.New("generation has not produced results yet")
	// ErrDraftSaveFailed wraps a draft re-save failure on the resume path.
	// The wizard still advances unless StrictAdvance is set; callers render
	// this as a dismissable notice.
	ErrDraftSaveFailed = errors.New("draft save failed")
)

// Backend is the slice of the API client the controller drives. Implemented
// by *client.Client; tests substitute a fake.
type Backend interface {
	CreateDraft(ctx context.Context, req types.DraftRequest) (string, error)
	UpdateDraft(ctx context.Context, jobID string, req types.DraftRequest) error
	ResumeDraft(ctx context.Context, jobID string) (*types.Draft, error)
	GetJob(ctx context.Context, jobID string) (*types.Job, error)
	SaveStyle(ctx context.Context, jobID string, style types.StyleRequest) error
	ExtractCharacters(ctx context.Context, jobID string) error
	GenerateAvatar(ctx context.Context, jobID, name string, req types.RegenerateRequest) (*types.Character, error)
	GeneratePages(ctx context.Context, jobID string) error
	RegeneratePage(ctx context.Context, jobID string, pageNumber int, req types.RegenerateRequest) (*types.Page, error)
	RegenerateCover(ctx context.Context, jobID string, req types.RegenerateRequest) (*types.CoverArt, error)
	Finalize(ctx context.Context, jobID string, tags []string) (*types.Story, error)
	EditStory(ctx context.Context, storyID string) (string, error)
}

// View is a copied snapshot of the controller state for rendering. Mutating
// it has no effect on the controller.
type View struct {
	Stage         Stage
	Job           *types.Job
	Story         *types.Story
	Approvals     map[string]bool
	Regenerating  map[string]bool
	DraftText     string
	PageCount     int
	Style         types.StyleRequest
	EditOrigin    bool
	JobID         string
	JobFailed     bool
	FailureReason string
}

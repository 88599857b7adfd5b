package wizard

import (
	"context"
	"fmt"
	"sync"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"storyforge/approval"
	"storyforge/session"
	"storyforge/types"
)

// Options tunes controller behavior.
type Options struct {
	// StrictAdvance blocks stage advancement on any gating action failure.
	// The default (false) preserves the historical behavior where a failed
	// draft re-save on the resume path still advances.
	StrictAdvance bool
	// MinStoryChars is the client-side minimum draft length. Defaults to 100.
	MinStoryChars int
	Logger        zerolog.Logger
}

// Controller runs the wizard for one session. All methods are safe to call
// from concurrent goroutines; the lock is held only around state mutation,
// never across a network round-trip, so one in-flight action does not block
// the others.
type Controller struct {
	backend Backend
	opts    Options
	log     zerolog.Logger

	mu     sync.Mutex
	sess   *session.Session
	stage  Stage
	job    *types.Job
	ledger *approval.Ledger
	regen  map[string]bool
	story  *types.Story

	draftText string
	pageCount int
	style     types.StyleRequest
	tags      []string
}

// New creates a controller at the draft-input stage.
func New(backend Backend, sess *session.Session, opts Options) *Controller {
	if opts.MinStoryChars <= 0 {
		opts.MinStoryChars = 100
	}
	return &Controller{
		backend: backend,
		opts:    opts,
		log:     opts.Logger,
		sess:    sess,
		stage:   StageDraftInput,
		ledger:  approval.NewLedger(),
		regen:   make(map[string]bool),
	}
}

// View returns a copy of the current state for rendering.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	v := View{
		Stage:        c.stage,
		Job:          c.job.Clone(),
		Story:        c.story,
		Approvals:    c.ledger.Snapshot(),
		Regenerating: make(map[string]bool, len(c.regen)),
		DraftText:    c.draftText,
		PageCount:    c.pageCount,
		Style:        c.style,
		EditOrigin:   c.sess.IsEdit(),
		JobID:        c.sess.JobID,
	}
	for k := range c.regen {
		v.Regenerating[k] = true
	}
	if c.job != nil && c.job.Status.Failed() {
		v.JobFailed = true
		v.FailureReason = c.job.Error
	}
	return v
}

// MinStoryChars returns the configured minimum draft length.
func (c *Controller) MinStoryChars() int {
	return c.opts.MinStoryChars
}

// Stage returns the current wizard stage.
func (c *Controller) Stage() Stage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stage
}

// SetTags records the tags sent along with the finalize call.
func (c *Controller) SetTags(tags []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tags = append([]string(nil), tags...)
}

// ApplySnapshot replaces the held job with a freshly polled one, wholesale.
// When the current stage's items appear for the first time the stage ledger
// is seeded from them; seeding never overwrites entries already present, so
// repeated snapshots cannot stomp user toggles.
func (c *Controller) ApplySnapshot(job *types.Job) {
	if job == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.job = job.Clone()
	c.seedLedgerLocked()
}

// SubmitDraft validates and persists the story text, then advances to style
// selection. Drafts shorter than the minimum are rejected before any network
// call. The first save creates the job id; later saves reuse it, and on that
// path a save failure still advances unless StrictAdvance is set (the error
// comes back wrapped in ErrDraftSaveFailed for display).
func (c *Controller) SubmitDraft(ctx context.Context, text string, pageCount int) error {
	if utf8.RuneCountInString(text) < c.opts.MinStoryChars {
		return fmt.Errorf("%w: need at least %d characters", ErrStoryTooShort, c.opts.MinStoryChars)
	}

	c.mu.Lock()
	if c.stage != StageDraftInput {
		c.mu.Unlock()
		return ErrWrongStage
	}
	jobID := c.sess.JobID
	c.draftText = text
	c.pageCount = pageCount
	c.mu.Unlock()

	req := types.DraftRequest{StoryText: text, PageCount: pageCount, Phase: "draft"}

	if jobID == "" {
		newID, err := c.backend.CreateDraft(ctx, req)
		if err != nil {
			return fmt.Errorf("create draft: %w", err)
		}
		c.mu.Lock()
		c.sess.AttachJob(newID)
		c.enterStageLocked(StageStyleSelect)
		c.mu.Unlock()
		c.log.Info().Str("jobId", newID).Msg("draft created")
		return nil
	}

	saveErr := c.backend.UpdateDraft(ctx, jobID, req)
	if saveErr != nil && c.opts.StrictAdvance {
		return fmt.Errorf("update draft: %w", saveErr)
	}

	c.mu.Lock()
	c.enterStageLocked(StageStyleSelect)
	c.mu.Unlock()

	if saveErr != nil {
		c.log.Warn().Err(saveErr).Str("jobId", jobID).Msg("draft re-save failed, advancing anyway")
		return fmt.Errorf("%w: %v", ErrDraftSaveFailed, saveErr)
	}
	return nil
}

// ChooseStyle persists the art-style decision and triggers character
// extraction, then advances to avatar review. Extraction is skipped when the
// job already has characters so back-navigation cannot queue a duplicate run.
func (c *Controller) ChooseStyle(ctx context.Context, style types.StyleRequest) error {
	if style.Custom && style.Description == "" {
		return ErrCustomStyleEmpty
	}

	c.mu.Lock()
	if c.stage != StageStyleSelect {
		c.mu.Unlock()
		return ErrWrongStage
	}
	jobID := c.sess.JobID
	hasCharacters := c.job.HasCharacters()
	c.mu.Unlock()

	if jobID == "" {
		return ErrNoJob
	}
	if err := c.backend.SaveStyle(ctx, jobID, style); err != nil {
		return fmt.Errorf("save style: %w", err)
	}
	if !hasCharacters {
		if err := c.backend.ExtractCharacters(ctx, jobID); err != nil {
			return fmt.Errorf("extract characters: %w", err)
		}
	}

	c.mu.Lock()
	c.style = style
	c.enterStageLocked(StageAvatarReview)
	c.mu.Unlock()
	c.log.Info().Str("jobId", jobID).Str("style", style.Style()).Bool("extraction", !hasCharacters).Msg("style chosen")
	return nil
}

// Advance moves from a review stage to the next one once its gate is
// satisfied: avatar review requires every character approved with a
// generated avatar and triggers page generation (unless pages already
// exist); page review requires every page and the cover approved and
// finalizes the story.
func (c *Controller) Advance(ctx context.Context) error {
	c.mu.Lock()
	stage := c.stage
	jobID := c.sess.JobID
	c.mu.Unlock()

	switch stage {
	case StageAvatarReview:
		return c.advanceFromAvatars(ctx, jobID)
	case StagePageReview:
		return c.advanceFromPages(ctx, jobID)
	default:
		return ErrWrongStage
	}
}

func (c *Controller) advanceFromAvatars(ctx context.Context, jobID string) error {
	c.mu.Lock()
	if !c.job.HasCharacters() {
		c.mu.Unlock()
		return ErrNotReady
	}
	for i := range c.job.Characters {
		ch := &c.job.Characters[i]
		if !ch.AvatarGenerated {
			c.mu.Unlock()
			return fmt.Errorf("%w: %s", ErrAvatarsNotReady, ch.Name)
		}
		if !c.ledger.Approved(ch.Name) {
			c.mu.Unlock()
			return fmt.Errorf("%w: %s", ErrApprovalsPending, ch.Name)
		}
	}
	hasPages := c.job.HasPages()
	c.mu.Unlock()

	// Edit re-entry arrives here with pages already generated; triggering
	// again would regenerate approved content.
	if !hasPages {
		if err := c.backend.GeneratePages(ctx, jobID); err != nil {
			return fmt.Errorf("generate pages: %w", err)
		}
	}

	c.mu.Lock()
	c.enterStageLocked(StagePageReview)
	c.mu.Unlock()
	c.log.Info().Str("jobId", jobID).Bool("generation", !hasPages).Msg("avatars approved")
	return nil
}

func (c *Controller) advanceFromPages(ctx context.Context, jobID string) error {
	c.mu.Lock()
	if !c.job.HasPages() {
		c.mu.Unlock()
		return ErrNotReady
	}
	keys := pageLedgerKeys(c.job)
	if !c.ledger.IsComplete(keys) {
		pending := c.ledger.Pending()
		c.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrApprovalsPending, pending)
	}
	tags := c.tags
	c.mu.Unlock()

	story, err := c.backend.Finalize(ctx, jobID, tags)
	if err != nil {
		return fmt.Errorf("finalize: %w", err)
	}

	c.mu.Lock()
	c.story = story
	c.enterStageLocked(StageFinalView)
	c.mu.Unlock()
	c.log.Info().Str("jobId", jobID).Str("storyId", story.ID).Msg("story finalized")
	return nil
}

// Back moves one stage backward. From avatar review in an edit session there
// is no earlier wizard stage; ErrEditExitsToLibrary tells the UI to return
// to the library instead.
func (c *Controller) Back() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.stage {
	case StageDraftInput:
		return ErrAtFirstStage
	case StageStyleSelect:
		c.enterStageLocked(StageDraftInput)
	case StageAvatarReview:
		if c.sess.IsEdit() {
			return ErrEditExitsToLibrary
		}
		c.enterStageLocked(StageStyleSelect)
	case StagePageReview:
		c.enterStageLocked(StageAvatarReview)
	case StageFinalView:
		c.enterStageLocked(StagePageReview)
	}
	return nil
}

// Approve marks one item accepted. Items mid-regeneration cannot be
// approved, and neither can keys with no corresponding artifact.
func (c *Controller) Approve(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.regen[key] {
		return ErrItemRegenerating
	}
	if !c.ledger.Approve(key) {
		return fmt.Errorf("%w: %s", ErrUnknownItem, key)
	}
	return nil
}

// Unapprove withdraws an approval. Unknown keys are ignored.
func (c *Controller) Unapprove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ledger.Unapprove(key)
}

// RegenerateAvatar requests a fresh avatar for one character, optionally
// steered by a description and reference image. The character's approval is
// withdrawn as soon as regeneration starts; siblings are unaffected and may
// regenerate concurrently.
func (c *Controller) RegenerateAvatar(ctx context.Context, name, desc string, ref *types.ReferenceImage) error {
	jobID, err := c.beginRegen(StageAvatarReview, name, func() bool { return c.job.Character(name) != nil })
	if err != nil {
		return err
	}

	req := types.RegenerateRequest{CustomDescription: desc, ReferenceImage: ref.Encode()}
	ch, callErr := c.backend.GenerateAvatar(ctx, jobID, name, req)

	c.mu.Lock()
	delete(c.regen, name)
	if callErr == nil && ch != nil {
		if cur := c.job.Character(name); cur != nil {
			*cur = *ch
		}
	}
	c.mu.Unlock()

	if callErr != nil {
		return fmt.Errorf("regenerate avatar %q: %w", name, callErr)
	}
	return nil
}

// RegeneratePage requests a fresh illustration for one page.
func (c *Controller) RegeneratePage(ctx context.Context, pageNumber int, desc string, ref *types.ReferenceImage) error {
	key := approval.PageKey(pageNumber)
	jobID, err := c.beginRegen(StagePageReview, key, func() bool { return c.job.Page(pageNumber) != nil })
	if err != nil {
		return err
	}

	req := types.RegenerateRequest{CustomDescription: desc, ReferenceImage: ref.Encode()}
	page, callErr := c.backend.RegeneratePage(ctx, jobID, pageNumber, req)

	c.mu.Lock()
	delete(c.regen, key)
	if callErr == nil && page != nil {
		if cur := c.job.Page(pageNumber); cur != nil {
			*cur = *page
		}
	}
	c.mu.Unlock()

	if callErr != nil {
		return fmt.Errorf("regenerate page %d: %w", pageNumber, callErr)
	}
	return nil
}

// RegenerateCover requests a fresh cover illustration.
func (c *Controller) RegenerateCover(ctx context.Context, desc string, ref *types.ReferenceImage) error {
	jobID, err := c.beginRegen(StagePageReview, approval.CoverKey, func() bool { return c.job != nil && c.job.Cover != nil })
	if err != nil {
		return err
	}

	req := types.RegenerateRequest{CustomDescription: desc, ReferenceImage: ref.Encode()}
	cover, callErr := c.backend.RegenerateCover(ctx, jobID, req)

	c.mu.Lock()
	delete(c.regen, approval.CoverKey)
	if callErr == nil && cover != nil && c.job != nil {
		c.job.Cover = cover
	}
	c.mu.Unlock()

	if callErr != nil {
		return fmt.Errorf("regenerate cover: %w", callErr)
	}
	return nil
}

// beginRegen validates and claims one item's in-flight flag. The approval is
// reset immediately so a previously accepted item cannot stay approved while
// its replacement is being produced.
func (c *Controller) beginRegen(stage Stage, key string, exists func() bool) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stage != stage {
		return "", ErrWrongStage
	}
	if !exists() {
		return "", fmt.Errorf("%w: %s", ErrUnknownItem, key)
	}
	if c.regen[key] {
		return "", fmt.Errorf("%w: %s", ErrRegenInFlight, key)
	}
	c.regen[key] = true
	c.ledger.Unapprove(key)
	return c.sess.JobID, nil
}

// Resume rehydrates a saved draft and re-enters the wizard at the deepest
// stage the job had reached.
func (c *Controller) Resume(ctx context.Context) error {
	c.mu.Lock()
	jobID := c.sess.JobID
	c.mu.Unlock()
	if jobID == "" {
		return ErrNoJob
	}

	draft, err := c.backend.ResumeDraft(ctx, jobID)
	if err != nil {
		return fmt.Errorf("resume draft: %w", err)
	}
	job, err := c.backend.GetJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("resume draft: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.sess.Origin = session.OriginResume
	c.draftText = draft.StoryText
	c.pageCount = draft.PageCount
	if draft.ArtStyle != "" {
		c.style = types.StyleRequest{Preset: draft.ArtStyle}
	}
	c.job = job.Clone()

	switch {
	case job.HasPages():
		c.enterStageLocked(StagePageReview)
	case job.HasCharacters():
		c.enterStageLocked(StageAvatarReview)
	case draft.ArtStyle != "":
		c.enterStageLocked(StageStyleSelect)
	default:
		c.enterStageLocked(StageDraftInput)
	}
	c.log.Info().Str("jobId", jobID).Str("stage", c.stage.String()).Msg("draft resumed")
	return nil
}

// StartEdit re-derives an editable job from a persisted story and enters
// avatar review directly. Previously generated artifacts arrive approved via
// the edit-origin seeding hints.
func (c *Controller) StartEdit(ctx context.Context, storyID string) error {
	jobID, err := c.backend.EditStory(ctx, storyID)
	if err != nil {
		return fmt.Errorf("edit story: %w", err)
	}
	job, err := c.backend.GetJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("edit story: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.sess.BeginEdit(storyID, jobID)
	c.job = job.Clone()
	c.draftText = job.StoryText
	c.pageCount = job.PageCount
	if job.ArtStyle != "" {
		c.style = types.StyleRequest{Preset: job.ArtStyle}
	}
	c.enterStageLocked(StageAvatarReview)
	c.log.Info().Str("storyId", storyID).Str("jobId", jobID).Msg("edit session started")
	return nil
}

// Reset returns the controller to a blank draft-input stage for a brand-new
// story. The session keeps its identity but drops the job binding.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sess.ClearJob()
	c.job = nil
	c.story = nil
	c.draftText = ""
	c.pageCount = 0
	c.style = types.StyleRequest{}
	c.tags = nil
	c.enterStageLocked(StageDraftInput)
}

// Story returns the finalized story, if finalize has completed.
func (c *Controller) Story() *types.Story {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.story
}

// enterStageLocked switches stages and re-seeds the ledger for the new one.
// Caller holds the lock.
func (c *Controller) enterStageLocked(stage Stage) {
	c.stage = stage
	c.ledger.Reset()
	c.regen = make(map[string]bool)
	c.seedLedgerLocked()
}

// seedLedgerLocked populates the ledger for the current stage once its items
// exist. Init only adds missing keys, so calling this on every snapshot is
// safe. Edit-origin sessions hint previously generated artifacts approved;
// fresh creations start everything unapproved.
func (c *Controller) seedLedgerLocked() {
	switch c.stage {
	case StageAvatarReview:
		if !c.job.HasCharacters() {
			return
		}
		keys := make([]string, 0, len(c.job.Characters))
		hints := make(map[string]bool)
		for _, ch := range c.job.Characters {
			keys = append(keys, ch.Name)
			if c.sess.IsEdit() {
				hints[ch.Name] = ch.AvatarGenerated
			}
		}
		c.ledger.Init(keys, hints)
	case StagePageReview:
		if !c.job.HasPages() {
			return
		}
		keys := pageLedgerKeys(c.job)
		hints := make(map[string]bool)
		if c.sess.IsEdit() {
			for _, p := range c.job.StoryPages.Pages {
				hints[approval.PageKey(p.PageNumber)] = p.Approved
			}
			if c.job.Cover != nil {
				hints[approval.CoverKey] = c.job.Cover.Approved
			}
		}
		c.ledger.Init(keys, hints)
	}
}

// pageLedgerKeys lists the ledger keys for the page-review stage: one per
// page plus the cover when present.
func pageLedgerKeys(job *types.Job) []string {
	if job == nil || job.StoryPages == nil {
		return nil
	}
	keys := make([]string, 0, len(job.StoryPages.Pages)+1)
	for _, p := range job.StoryPages.Pages {
		keys = append(keys, approval.PageKey(p.PageNumber))
	}
	if job.Cover != nil {
		keys = append(keys, approval.CoverKey)
	}
	return keys
}

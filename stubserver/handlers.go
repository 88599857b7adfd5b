package stubserver

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"storyforge/types"
)

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func userID(c *gin.Context) string {
	if id := c.GetHeader("X-User-ID"); id != "" {
		return id
	}
	return "anonymous"
}

func fail(c *gin.Context, status int, code, msg string) {
	c.JSON(status, types.ErrorResponse{Error: msg, Code: code})
}

// loadOwnedJob fetches a job and enforces ownership. Replies on failure and
// returns nil.
func (s *Server) loadOwnedJob(c *gin.Context) *JobRecord {
	jobID := c.Param("jobID")
	rec, err := s.store.GetJob(c.Request.Context(), jobID)
	if errors.Is(err, ErrNotFound) {
		fail(c, http.StatusNotFound, "job_not_found", "job not found")
		return nil
	}
	if err != nil {
		fail(c, http.StatusInternalServerError, "store_error", err.Error())
		return nil
	}
	if rec.UserID != userID(c) {
		fail(c, http.StatusForbidden, "not_owner", "job belongs to another user")
		return nil
	}
	return rec
}

func (s *Server) handleCreateDraft(c *gin.Context) {
	var req types.DraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "bad_request", "invalid JSON payload")
		return
	}
	if req.StoryText == "" {
		fail(c, http.StatusBadRequest, "empty_story", "storyText is required")
		return
	}

	now := time.Now()
	rec := &JobRecord{
		Job: &types.Job{
			JobID:            uuid.NewString(),
			Status:           types.StatusRunning,
			Phase:            "draft",
			StoryText:        req.StoryText,
			PageCount:        req.PageCount,
			RecommendedStyle: recommendStyle(req.StoryText),
			Message:          "Draft saved",
			CreatedAt:        now,
			UpdatedAt:        now,
		},
		UserID:    userID(c),
		ExpiresAt: now.Add(s.draftTTL),
	}
	if err := s.store.SaveJob(c.Request.Context(), rec); err != nil {
		fail(c, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	s.log.Info().Str("jobId", rec.Job.JobID).Str("user", rec.UserID).Msg("draft created")
	c.JSON(http.StatusOK, types.DraftResponse{Success: true, JobID: rec.Job.JobID})
}

func (s *Server) handleUpdateDraft(c *gin.Context) {
	var req types.DraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "bad_request", "invalid JSON payload")
		return
	}
	rec := s.loadOwnedJob(c)
	if rec == nil {
		return
	}

	ok := s.mutateJob(rec.Job.JobID, func(rec *JobRecord) {
		rec.Job.StoryText = req.StoryText
		if req.PageCount > 0 {
			rec.Job.PageCount = req.PageCount
		}
		rec.ExpiresAt = time.Now().Add(s.draftTTL)
	})
	if !ok {
		fail(c, http.StatusInternalServerError, "store_error", "draft update failed")
		return
	}
	c.JSON(http.StatusOK, types.DraftResponse{Success: true, JobID: rec.Job.JobID})
}

func (s *Server) handleResumeDraft(c *gin.Context) {
	rec := s.loadOwnedJob(c)
	if rec == nil {
		return
	}
	c.JSON(http.StatusOK, types.ResumeResponse{
		Success: true,
		JobID:   rec.Job.JobID,
		Draft: &types.Draft{
			JobID:     rec.Job.JobID,
			StoryText: rec.Job.StoryText,
			PageCount: rec.Job.PageCount,
			ArtStyle:  rec.Job.ArtStyle,
			Phase:     rec.Job.Phase,
		},
	})
}

func (s *Server) handleGetJob(c *gin.Context) {
	rec := s.loadOwnedJob(c)
	if rec == nil {
		return
	}
	c.JSON(http.StatusOK, rec.Job)
}

func (s *Server) handleSaveStyle(c *gin.Context) {
	var req types.StyleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "bad_request", "invalid JSON payload")
		return
	}
	if req.Custom && req.Description == "" {
		fail(c, http.StatusBadRequest, "empty_style", "custom style needs a description")
		return
	}
	rec := s.loadOwnedJob(c)
	if rec == nil {
		return
	}

	style := req.Style()
	if style == "" {
		style = rec.Job.RecommendedStyle
	}
	s.mutateJob(rec.Job.JobID, func(rec *JobRecord) {
		rec.Job.ArtStyle = style
	})
	c.JSON(http.StatusOK, gin.H{"success": true, "artStyle": style})
}

func (s *Server) handleExtractCharacters(c *gin.Context) {
	rec := s.loadOwnedJob(c)
	if rec == nil {
		return
	}
	// Idempotent: a second trigger while characters exist is a no-op, so a
	// client re-entering the style stage cannot duplicate the cast.
	if rec.Job.HasCharacters() {
		c.JSON(http.StatusAccepted, gin.H{"jobId": rec.Job.JobID, "status": "already_extracted"})
		return
	}

	go s.runExtraction(rec.Job.JobID)
	c.JSON(http.StatusAccepted, gin.H{"jobId": rec.Job.JobID, "status": "started"})
}

func (s *Server) handleGenerateAvatar(c *gin.Context) {
	var req types.RegenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		fail(c, http.StatusBadRequest, "bad_request", "invalid JSON payload")
		return
	}
	rec := s.loadOwnedJob(c)
	if rec == nil {
		return
	}
	name := c.Param("name")
	if rec.Job.Character(name) == nil {
		fail(c, http.StatusNotFound, "character_not_found", "no such character")
		return
	}
	if req.ReferenceImage != nil {
		if _, err := req.ReferenceImage.Decode(); err != nil {
			fail(c, http.StatusBadRequest, "bad_image", err.Error())
			return
		}
	}

	var updated types.Character
	s.mutateJob(rec.Job.JobID, func(rec *JobRecord) {
		ch := rec.Job.Character(name)
		if ch == nil {
			return
		}
		version := 2
		if !ch.AvatarGenerated {
			version = 1
		}
		ch.AvatarGenerated = true
		ch.AvatarURL = avatarURL(rec.Job.JobID, name, version)
		ch.CustomDescription = req.CustomDescription
		ch.HasReferenceImage = req.ReferenceImage != nil
		if req.CustomDescription != "" {
			ch.AvatarPrompt = req.CustomDescription
		}
		updated = *ch
	})
	c.JSON(http.StatusOK, types.AvatarResponse{Success: true, Character: &updated})
}

func (s *Server) handleGeneratePages(c *gin.Context) {
	rec := s.loadOwnedJob(c)
	if rec == nil {
		return
	}
	// Same idempotency guard as extraction: edit-mode re-entry must not
	// regenerate approved pages.
	if rec.Job.HasPages() {
		c.JSON(http.StatusAccepted, gin.H{"jobId": rec.Job.JobID, "status": "already_generated"})
		return
	}

	go s.runPageGeneration(rec.Job.JobID)
	c.JSON(http.StatusAccepted, gin.H{"jobId": rec.Job.JobID, "status": "started"})
}

func (s *Server) handleRegeneratePage(c *gin.Context) {
	var req types.RegenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		fail(c, http.StatusBadRequest, "bad_request", "invalid JSON payload")
		return
	}
	pageNumber, err := strconv.Atoi(c.Param("pageNumber"))
	if err != nil {
		fail(c, http.StatusBadRequest, "bad_page_number", "page number must be an integer")
		return
	}
	rec := s.loadOwnedJob(c)
	if rec == nil {
		return
	}
	if rec.Job.Page(pageNumber) == nil {
		fail(c, http.StatusNotFound, "page_not_found", "no such page")
		return
	}

	var updated types.Page
	s.mutateJob(rec.Job.JobID, func(rec *JobRecord) {
		p := rec.Job.Page(pageNumber)
		if p == nil {
			return
		}
		p.Regenerated = true
		p.CustomDescription = req.CustomDescription
		p.IllustrationURL = pageURL(rec.Job.JobID, pageNumber, 2)
		updated = *p
	})
	c.JSON(http.StatusOK, types.PageResponse{Success: true, Page: &updated})
}

func (s *Server) handleRegenerateCover(c *gin.Context) {
	var req types.RegenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		fail(c, http.StatusBadRequest, "bad_request", "invalid JSON payload")
		return
	}
	rec := s.loadOwnedJob(c)
	if rec == nil {
		return
	}
	if rec.Job.Cover == nil {
		fail(c, http.StatusNotFound, "cover_not_found", "cover has not been generated")
		return
	}

	var updated types.CoverArt
	s.mutateJob(rec.Job.JobID, func(rec *JobRecord) {
		rec.Job.Cover.IllustrationURL = coverURL(rec.Job.JobID, 2)
		updated = *rec.Job.Cover
	})
	c.JSON(http.StatusOK, types.CoverResponse{Success: true, Cover: &updated})
}

func (s *Server) handleFinalize(c *gin.Context) {
	var req types.FinalizeRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		fail(c, http.StatusBadRequest, "bad_request", "invalid JSON payload")
		return
	}
	rec := s.loadOwnedJob(c)
	if rec == nil {
		return
	}
	if !rec.Job.HasPages() {
		fail(c, http.StatusConflict, "not_ready", "pages have not been generated")
		return
	}

	now := time.Now()
	story := &types.Story{
		ID:         uuid.NewString(),
		Title:      rec.Job.StoryPages.Title,
		Summary:    rec.Job.StoryPages.Summary,
		ArtStyle:   rec.Job.ArtStyle,
		Pages:      append([]types.Page(nil), rec.Job.StoryPages.Pages...),
		Cover:      rec.Job.Cover,
		Characters: append([]types.Character(nil), rec.Job.Characters...),
		Tags:       req.Tags,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.store.SaveStory(c.Request.Context(), &StoryRecord{Story: story, UserID: rec.UserID}); err != nil {
		fail(c, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	s.mutateJob(rec.Job.JobID, func(rec *JobRecord) {
		rec.Finalized = true
		rec.Job.Status = types.StatusCompleted
		rec.Job.Phase = "finalized"
		rec.Job.Progress = 100
		rec.Job.Message = "Story finalized"
	})

	s.log.Info().Str("jobId", rec.Job.JobID).Str("storyId", story.ID).Msg("story finalized")
	c.JSON(http.StatusOK, types.FinalizeResponse{Success: true, Result: story})
}

func (s *Server) handleListStories(c *gin.Context) {
	stories, err := s.store.ListStories(c.Request.Context(), userID(c))
	if err != nil {
		fail(c, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	if stories == nil {
		stories = []types.Story{}
	}
	c.JSON(http.StatusOK, types.StoriesResponse{Stories: stories})
}

func (s *Server) loadOwnedStory(c *gin.Context) *StoryRecord {
	rec, err := s.store.GetStory(c.Request.Context(), c.Param("storyID"))
	if errors.Is(err, ErrNotFound) {
		fail(c, http.StatusNotFound, "story_not_found", "story not found")
		return nil
	}
	if err != nil {
		fail(c, http.StatusInternalServerError, "store_error", err.Error())
		return nil
	}
	if rec.UserID != userID(c) {
		fail(c, http.StatusForbidden, "not_owner", "story belongs to another user")
		return nil
	}
	return rec
}

func (s *Server) handleGetStory(c *gin.Context) {
	rec := s.loadOwnedStory(c)
	if rec == nil {
		return
	}
	c.JSON(http.StatusOK, rec.Story)
}

// handleEditStory re-derives an editable job from a persisted story. The
// derived job starts at pages_ready with everything marked generated and
// approved, so the wizard's edit entry lands in review with nothing queued
// for regeneration.
func (s *Server) handleEditStory(c *gin.Context) {
	rec := s.loadOwnedStory(c)
	if rec == nil {
		return
	}

	now := time.Now()
	pages := append([]types.Page(nil), rec.Story.Pages...)
	for i := range pages {
		pages[i].Approved = true
	}
	var cover *types.CoverArt
	if rec.Story.Cover != nil {
		cp := *rec.Story.Cover
		cp.Approved = true
		cover = &cp
	}
	chars := append([]types.Character(nil), rec.Story.Characters...)
	for i := range chars {
		chars[i].AvatarGenerated = true
	}

	job := &types.Job{
		JobID:    uuid.NewString(),
		Status:   types.StatusPagesReady,
		Phase:    "editing",
		Progress: 100,
		Message:  "Editing " + rec.Story.Title,
		ArtStyle: rec.Story.ArtStyle,
		StoryPages: &types.StoryPages{
			Title:   rec.Story.Title,
			Summary: rec.Story.Summary,
			Pages:   pages,
		},
		Cover:      cover,
		Characters: chars,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	jobRec := &JobRecord{Job: job, UserID: rec.UserID, ExpiresAt: now.Add(s.draftTTL)}
	if err := s.store.SaveJob(c.Request.Context(), jobRec); err != nil {
		fail(c, http.StatusInternalServerError, "store_error", err.Error())
		return
	}

	s.log.Info().Str("storyId", rec.Story.ID).Str("jobId", job.JobID).Msg("edit job derived")
	c.JSON(http.StatusOK, types.EditResponse{Success: true, JobID: job.JobID})
}

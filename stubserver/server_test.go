package stubserver

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storyforge/client"
	"storyforge/session"
	"storyforge/types"
)

const testStory = "Once upon a time, a fox named Mira lived at the edge of the woods. " +
	"Her best friend Orion was an owl who loved riddles. One night they followed " +
	"a falling star across the river. The star led them to a garden of glass " +
	"flowers. Together they planted one seed and went home before sunrise."

func newTestServer(t *testing.T) (*Server, *client.Client) {
	t.Helper()
	s := New(NewMemoryStore(), Config{StepDelay: 0, DraftTTL: time.Hour, Logger: zerolog.Nop()})
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return s, client.New(srv.URL, session.New(), zerolog.Nop())
}

// waitForJob polls until cond holds, the way the wizard's poller would.
func waitForJob(t *testing.T, c *client.Client, jobID string, cond func(*types.Job) bool) *types.Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := c.GetJob(context.Background(), jobID)
		require.NoError(t, err)
		if cond(job) {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition never reached")
	return nil
}

func TestFullWizardWalk(t *testing.T) {
	_, c := newTestServer(t)
	ctx := context.Background()

	// Draft.
	jobID, err := c.CreateDraft(ctx, types.DraftRequest{StoryText: testStory, PageCount: 4})
	require.NoError(t, err)
	require.NotEmpty(t, jobID)

	job, err := c.GetJob(ctx, jobID)
	require.NoError(t, err)
	assert.NotEmpty(t, job.RecommendedStyle, "stub recommends a style at draft time")

	// Style + extraction.
	require.NoError(t, c.SaveStyle(ctx, jobID, types.StyleRequest{Preset: "watercolor"}))
	require.NoError(t, c.ExtractCharacters(ctx, jobID))

	job = waitForJob(t, c, jobID, func(j *types.Job) bool { return j.Status == types.StatusAvatarsReady })
	require.NotEmpty(t, job.Characters)
	for _, ch := range job.Characters {
		assert.True(t, ch.AvatarGenerated)
		assert.NotEmpty(t, ch.AvatarURL)
	}
	assert.Equal(t, "watercolor", job.ArtStyle)

	// Avatar regeneration patches one character only.
	first := job.Characters[0]
	regen, err := c.GenerateAvatar(ctx, jobID, first.Name, types.RegenerateRequest{CustomDescription: "wearing a red scarf"})
	require.NoError(t, err)
	assert.NotEqual(t, first.AvatarURL, regen.AvatarURL)
	assert.Equal(t, "wearing a red scarf", regen.AvatarPrompt)

	// Pages + cover.
	require.NoError(t, c.GeneratePages(ctx, jobID))
	job = waitForJob(t, c, jobID, func(j *types.Job) bool { return j.Status == types.StatusPagesReady })
	require.NotNil(t, job.StoryPages)
	assert.Len(t, job.StoryPages.Pages, 4)
	require.NotNil(t, job.Cover)
	for _, p := range job.StoryPages.Pages {
		assert.NotEmpty(t, p.Text)
		assert.NotEmpty(t, p.IllustrationURL)
	}

	// Page regeneration.
	page, err := c.RegeneratePage(ctx, jobID, 2, types.RegenerateRequest{CustomDescription: "more stars"})
	require.NoError(t, err)
	assert.True(t, page.Regenerated)
	job, err = c.GetJob(ctx, jobID)
	require.NoError(t, err)
	assert.True(t, job.Page(2).Regenerated)
	assert.False(t, job.Page(1).Regenerated, "siblings untouched")

	// Finalize.
	story, err := c.Finalize(ctx, jobID, []string{"bedtime", "foxes"})
	require.NoError(t, err)
	assert.NotEmpty(t, story.ID)
	assert.Equal(t, []string{"bedtime", "foxes"}, story.Tags)
	assert.Len(t, story.Pages, 4)

	job, err = c.GetJob(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusCompleted, job.Status)

	// Library.
	stories, err := c.ListStories(ctx)
	require.NoError(t, err)
	require.Len(t, stories, 1)
	assert.Equal(t, story.ID, stories[0].ID)
}

func TestExtractionTriggerIsIdempotent(t *testing.T) {
	_, c := newTestServer(t)
	ctx := context.Background()

	jobID, err := c.CreateDraft(ctx, types.DraftRequest{StoryText: testStory, PageCount: 4})
	require.NoError(t, err)
	require.NoError(t, c.ExtractCharacters(ctx, jobID))
	job := waitForJob(t, c, jobID, func(j *types.Job) bool { return j.Status == types.StatusAvatarsReady })
	cast := len(job.Characters)

	// A second trigger must not restart extraction or duplicate the cast.
	require.NoError(t, c.ExtractCharacters(ctx, jobID))
	time.Sleep(20 * time.Millisecond)
	job, err = c.GetJob(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusAvatarsReady, job.Status)
	assert.Len(t, job.Characters, cast)
}

func TestJobsAreOwnerScoped(t *testing.T) {
	s := New(NewMemoryStore(), Config{StepDelay: 0, DraftTTL: time.Hour, Logger: zerolog.Nop()})
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)

	alice := client.New(srv.URL, session.New(), zerolog.Nop())
	mallory := client.New(srv.URL, session.New(), zerolog.Nop())

	jobID, err := alice.CreateDraft(context.Background(), types.DraftRequest{StoryText: testStory, PageCount: 4})
	require.NoError(t, err)

	_, err = mallory.GetJob(context.Background(), jobID)
	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 403, apiErr.StatusCode)
}

func TestEditDerivesApprovedJob(t *testing.T) {
	_, c := newTestServer(t)
	ctx := context.Background()

	jobID, err := c.CreateDraft(ctx, types.DraftRequest{StoryText: testStory, PageCount: 4})
	require.NoError(t, err)
	require.NoError(t, c.ExtractCharacters(ctx, jobID))
	waitForJob(t, c, jobID, func(j *types.Job) bool { return j.Status == types.StatusAvatarsReady })
	require.NoError(t, c.GeneratePages(ctx, jobID))
	waitForJob(t, c, jobID, func(j *types.Job) bool { return j.Status == types.StatusPagesReady })
	story, err := c.Finalize(ctx, jobID, nil)
	require.NoError(t, err)

	editJobID, err := c.EditStory(ctx, story.ID)
	require.NoError(t, err)
	require.NotEqual(t, jobID, editJobID)

	job, err := c.GetJob(ctx, editJobID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusPagesReady, job.Status)
	for _, p := range job.StoryPages.Pages {
		assert.True(t, p.Approved, "edit jobs start with pages pre-approved")
	}
	require.NotNil(t, job.Cover)
	assert.True(t, job.Cover.Approved)
	for _, ch := range job.Characters {
		assert.True(t, ch.AvatarGenerated)
	}
}

func TestSweeperPurgesExpiredDrafts(t *testing.T) {
	store := NewMemoryStore()
	s := New(store, Config{StepDelay: 0, DraftTTL: time.Hour, Logger: zerolog.Nop()})
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	c := client.New(srv.URL, session.New(), zerolog.Nop())
	ctx := context.Background()

	expiredID, err := c.CreateDraft(ctx, types.DraftRequest{StoryText: testStory, PageCount: 4})
	require.NoError(t, err)
	liveID, err := c.CreateDraft(ctx, types.DraftRequest{StoryText: testStory, PageCount: 4})
	require.NoError(t, err)

	// Age the first draft past its TTL.
	rec, err := store.GetJob(ctx, expiredID)
	require.NoError(t, err)
	rec.ExpiresAt = time.Now().Add(-time.Minute)
	require.NoError(t, store.SaveJob(ctx, rec))

	s.sweepExpiredDrafts()

	_, err = store.GetJob(ctx, expiredID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.GetJob(ctx, liveID)
	assert.NoError(t, err)
}

func TestShortDraftRejected(t *testing.T) {
	_, c := newTestServer(t)
	_, err := c.CreateDraft(context.Background(), types.DraftRequest{StoryText: ""})
	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 400, apiErr.StatusCode)
	assert.Equal(t, "empty_story", apiErr.Code)
}

package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storyforge/session"
	"storyforge/types"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *session.Session) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	sess := session.New()
	return New(srv.URL, sess, zerolog.Nop()), sess
}

func TestCreateDraftSendsIdentityHeader(t *testing.T) {
	var gotUser string
	var gotBody types.DraftRequest

	c, sess := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/drafts", r.URL.Path)
		gotUser = r.Header.Get("X-User-ID")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(types.DraftResponse{Success: true, JobID: "job-1"})
	}))

	jobID, err := c.CreateDraft(context.Background(), types.DraftRequest{StoryText: "once upon", PageCount: 8})
	require.NoError(t, err)
	assert.Equal(t, "job-1", jobID)
	assert.Equal(t, sess.UserID, gotUser)
	assert.Equal(t, 8, gotBody.PageCount)
}

func TestCreateDraftRejectsEmptyJobID(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(types.DraftResponse{Success: true})
	}))

	_, err := c.CreateDraft(context.Background(), types.DraftRequest{StoryText: "x"})
	assert.Error(t, err)
}

func TestGetJobDecodesSnapshot(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/jobs/job-9", r.URL.Path)
		json.NewEncoder(w).Encode(types.Job{
			JobID:      "job-9",
			Status:     types.StatusCharactersReady,
			Characters: []types.Character{{Name: "Mira"}, {Name: "Orion"}},
		})
	}))

	job, err := c.GetJob(context.Background(), "job-9")
	require.NoError(t, err)
	assert.Equal(t, types.StatusCharactersReady, job.Status)
	assert.Len(t, job.Characters, 2)
}

func TestAPIErrorDecoding(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(types.ErrorResponse{Error: "job not found", Code: "job_not_found"})
	}))

	_, err := c.GetJob(context.Background(), "missing")
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "job_not_found", apiErr.Code)
	assert.Contains(t, apiErr.Error(), "job not found")
	assert.True(t, IsNotFound(err))
}

func TestNonJSONErrorBodyStillSurfaces(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "plain text failure", http.StatusBadGateway)
	}))

	err := c.ExtractCharacters(context.Background(), "job-1")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Contains(t, apiErr.Message, "plain text failure")
	assert.False(t, IsNotFound(err))
}

func TestGenerateAvatarEscapesCharacterName(t *testing.T) {
	var gotPath string
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		json.NewEncoder(w).Encode(types.AvatarResponse{
			Success:   true,
			Character: &types.Character{Name: "Sir Reginald", AvatarGenerated: true},
		})
	}))

	ch, err := c.GenerateAvatar(context.Background(), "job-1", "Sir Reginald", types.RegenerateRequest{})
	require.NoError(t, err)
	assert.True(t, ch.AvatarGenerated)
	assert.Equal(t, "/api/jobs/job-1/characters/Sir%20Reginald/avatar", gotPath)
}

func TestRegeneratePageCarriesReferenceImage(t *testing.T) {
	var got types.RegenerateRequest
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(types.PageResponse{
			Success: true,
			Page:    &types.Page{PageNumber: 3, Regenerated: true},
		})
	}))

	req := types.RegenerateRequest{
		CustomDescription: "a stormier sky",
		ReferenceImage:    &types.EncodedImage{MIME: "image/png", Data: "aGk="},
	}
	page, err := c.RegeneratePage(context.Background(), "job-1", 3, req)
	require.NoError(t, err)
	assert.True(t, page.Regenerated)
	assert.Equal(t, "a stormier sky", got.CustomDescription)
	require.NotNil(t, got.ReferenceImage)
	assert.Equal(t, "image/png", got.ReferenceImage.MIME)
}

func TestCanceledContextAbortsRequest(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(types.Job{JobID: "job-1"})
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.GetJob(ctx, "job-1")
	assert.ErrorIs(t, err, context.Canceled)
}

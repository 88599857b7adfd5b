package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"storyforge/types"
)

// GetJob fetches the current job snapshot. The poller calls this on every
// tick; the response replaces the previous snapshot wholesale.
func (c *Client) GetJob(ctx context.Context, jobID string) (*types.Job, error) {
	var job types.Job
	if err := c.doJSON(ctx, http.MethodGet, "/api/jobs/"+url.PathEscape(jobID), nil, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// SaveStyle persists the art-style decision for a job.
func (c *Client) SaveStyle(ctx context.Context, jobID string, style types.StyleRequest) error {
	return c.doJSON(ctx, http.MethodPost, "/api/jobs/"+url.PathEscape(jobID)+"/style", style, nil)
}

// ExtractCharacters starts the character-extraction phase. Progress arrives
// via polling.
func (c *Client) ExtractCharacters(ctx context.Context, jobID string) error {
	return c.doJSON(ctx, http.MethodPost, "/api/jobs/"+url.PathEscape(jobID)+"/characters", nil, nil)
}

// GenerateAvatar produces (or reproduces) one character's avatar. The reply
// carries only that character; callers patch it into their local snapshot.
func (c *Client) GenerateAvatar(ctx context.Context, jobID, name string, req types.RegenerateRequest) (*types.Character, error) {
	path := "/api/jobs/" + url.PathEscape(jobID) + "/characters/" + url.PathEscape(name) + "/avatar"
	var resp types.AvatarResponse
	if err := c.doJSON(ctx, http.MethodPost, path, req, &resp); err != nil {
		return nil, err
	}
	if resp.Character == nil {
		return nil, fmt.Errorf("generate avatar: backend returned no character")
	}
	return resp.Character, nil
}

// GeneratePages starts the page and cover generation phase.
func (c *Client) GeneratePages(ctx context.Context, jobID string) error {
	return c.doJSON(ctx, http.MethodPost, "/api/jobs/"+url.PathEscape(jobID)+"/pages", nil, nil)
}

// RegeneratePage produces one page's illustration again.
func (c *Client) RegeneratePage(ctx context.Context, jobID string, pageNumber int, req types.RegenerateRequest) (*types.Page, error) {
	path := "/api/jobs/" + url.PathEscape(jobID) + "/pages/" + strconv.Itoa(pageNumber) + "/regenerate"
	var resp types.PageResponse
	if err := c.doJSON(ctx, http.MethodPost, path, req, &resp); err != nil {
		return nil, err
	}
	if resp.Page == nil {
		return nil, fmt.Errorf("regenerate page: backend returned no page")
	}
	return resp.Page, nil
}

// RegenerateCover produces the cover illustration again.
func (c *Client) RegenerateCover(ctx context.Context, jobID string, req types.RegenerateRequest) (*types.CoverArt, error) {
	path := "/api/jobs/" + url.PathEscape(jobID) + "/cover/regenerate"
	var resp types.CoverResponse
	if err := c.doJSON(ctx, http.MethodPost, path, req, &resp); err != nil {
		return nil, err
	}
	if resp.Cover == nil {
		return nil, fmt.Errorf("regenerate cover: backend returned no cover")
	}
	return resp.Cover, nil
}

// Finalize converts the job into a persisted story.
func (c *Client) Finalize(ctx context.Context, jobID string, tags []string) (*types.Story, error) {
	var resp types.FinalizeResponse
	req := types.FinalizeRequest{Tags: tags}
	if err := c.doJSON(ctx, http.MethodPost, "/api/jobs/"+url.PathEscape(jobID)+"/finalize", req, &resp); err != nil {
		return nil, err
	}
	if resp.Result == nil {
		return nil, fmt.Errorf("finalize: backend returned no story")
	}
	return resp.Result, nil
}

// Health checks backend liveness.
func (c *Client) Health(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodGet, "/health", nil, nil)
}

package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"storyforge/types"
)

// CreateDraft persists a new draft record and returns the job id the
// backend assigned to it.
func (c *Client) CreateDraft(ctx context.Context, req types.DraftRequest) (string, error) {
	var resp types.DraftResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/drafts", req, &resp); err != nil {
		return "", err
	}
	if resp.JobID == "" {
		return "", fmt.Errorf("create draft: backend returned no job id")
	}
	return resp.JobID, nil
}

// UpdateDraft re-saves the draft attached to an existing job.
func (c *Client) UpdateDraft(ctx context.Context, jobID string, req types.DraftRequest) error {
	return c.doJSON(ctx, http.MethodPut, "/api/drafts/"+url.PathEscape(jobID), req, nil)
}

// ResumeDraft rehydrates a saved draft so an interrupted session can pick
// up where it left off.
func (c *Client) ResumeDraft(ctx context.Context, jobID string) (*types.Draft, error) {
	var resp types.ResumeResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/drafts/"+url.PathEscape(jobID)+"/resume", nil, &resp); err != nil {
		return nil, err
	}
	if resp.Draft == nil {
		return nil, fmt.Errorf("resume draft: backend returned no draft")
	}
	return resp.Draft, nil
}

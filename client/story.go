package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"storyforge/types"
)

// ListStories fetches the session user's persisted stories for the library.
func (c *Client) ListStories(ctx context.Context) ([]types.Story, error) {
	var resp types.StoriesResponse
	if err := c.doJSON(ctx, http.MethodGet, "/api/stories", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Stories, nil
}

// GetStory fetches one persisted story for the viewer.
func (c *Client) GetStory(ctx context.Context, storyID string) (*types.Story, error) {
	var story types.Story
	if err := c.doJSON(ctx, http.MethodGet, "/api/stories/"+url.PathEscape(storyID), nil, &story); err != nil {
		return nil, err
	}
	return &story, nil
}

// EditStory re-derives an editable job from a persisted story and returns
// the new job id. The wizard enters review directly from this entry point.
func (c *Client) EditStory(ctx context.Context, storyID string) (string, error) {
	var resp types.EditResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/stories/"+url.PathEscape(storyID)+"/edit", nil, &resp); err != nil {
		return "", err
	}
	if resp.JobID == "" {
		return "", fmt.Errorf("edit story: backend returned no job id")
	}
	return resp.JobID, nil
}

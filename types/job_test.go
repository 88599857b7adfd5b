package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobStatusForwardCompatibility(t *testing.T) {
	// Unknown statuses must read as still running, never as terminal.
	future := JobStatus("pages_upscaling")
	assert.False(t, future.Known())
	assert.False(t, future.Terminal())
	assert.False(t, future.Failed())

	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusError.Terminal())
	assert.True(t, StatusError.Failed())
	assert.False(t, StatusPagesReady.Terminal())
}

func TestJobLookups(t *testing.T) {
	job := &Job{
		JobID:  "j1",
		Status: StatusPagesReady,
		Characters: []Character{
			{Name: "Mira", AvatarGenerated: true},
			{Name: "Orion"},
		},
		StoryPages: &StoryPages{
			Title: "The Lantern Fox",
			Pages: []Page{
				{PageNumber: 1, Text: "Once..."},
				{PageNumber: 2, Text: "Then..."},
			},
		},
	}

	require.NotNil(t, job.Character("Orion"))
	assert.Nil(t, job.Character("Nobody"))
	require.NotNil(t, job.Page(2))
	assert.Nil(t, job.Page(3))
	assert.True(t, job.HasCharacters())
	assert.True(t, job.HasPages())

	var empty *Job
	assert.False(t, empty.HasCharacters())
	assert.Nil(t, empty.Page(1))
}

func TestJobCloneIsIndependent(t *testing.T) {
	job := &Job{
		JobID:      "j1",
		Characters: []Character{{Name: "Mira"}},
		StoryPages: &StoryPages{Pages: []Page{{PageNumber: 1, Text: "a"}}},
		Cover:      &CoverArt{Title: "t"},
	}

	clone := job.Clone()
	clone.Characters[0].Name = "Changed"
	clone.StoryPages.Pages[0].Text = "b"
	clone.Cover.Title = "other"

	assert.Equal(t, "Mira", job.Characters[0].Name)
	assert.Equal(t, "a", job.StoryPages.Pages[0].Text)
	assert.Equal(t, "t", job.Cover.Title)
}

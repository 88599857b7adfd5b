package tui

import (
	"context"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"storyforge/approval"
	"storyforge/poll"
	"storyforge/types"
	"storyforge/wizard"
)

// waitForSnapshot blocks on the poller's update channel and re-arms itself
// after every message, so the program sees a stream of SnapshotMsg.
func waitForSnapshot(p *poll.Poller) tea.Cmd {
	return func() tea.Msg {
		return SnapshotMsg{Snapshot: <-p.Updates()}
	}
}

func submitDraft(ctrl *wizard.Controller, text string, pageCount int) tea.Cmd {
	return func() tea.Msg {
		return DraftSavedMsg{Err: ctrl.SubmitDraft(context.Background(), text, pageCount)}
	}
}

func chooseStyle(ctrl *wizard.Controller, style types.StyleRequest) tea.Cmd {
	return func() tea.Msg {
		return StyleSavedMsg{Err: ctrl.ChooseStyle(context.Background(), style)}
	}
}

func advance(ctrl *wizard.Controller) tea.Cmd {
	return func() tea.Msg {
		return AdvancedMsg{Err: ctrl.Advance(context.Background())}
	}
}

// regenerate dispatches one item's regeneration by ledger key. The optional
// image path is loaded and validated before the request is sent.
func regenerate(ctrl *wizard.Controller, key, desc, imagePath string, maxImageBytes int64) tea.Cmd {
	return func() tea.Msg {
		var ref *types.ReferenceImage
		if imagePath != "" {
			var err error
			ref, err = types.LoadReferenceImage(imagePath, maxImageBytes)
			if err != nil {
				return RegenDoneMsg{Key: key, Err: err}
			}
		}

		ctx := context.Background()
		var err error
		switch {
		case key == approval.CoverKey:
			err = ctrl.RegenerateCover(ctx, desc, ref)
		case strings.HasPrefix(key, "page_"):
			err = ctrl.RegeneratePage(ctx, pageNumberFromKey(key), desc, ref)
		default:
			err = ctrl.RegenerateAvatar(ctx, key, desc, ref)
		}
		return RegenDoneMsg{Key: key, Err: err}
	}
}

func pageNumberFromKey(key string) int {
	n := 0
	for _, r := range strings.TrimPrefix(key, "page_") {
		if r < '0' || r > '9' {
			return 0
		}
		n = n*10 + int(r-'0')
	}
	return n
}

func loadStories(api storyLister) tea.Cmd {
	return func() tea.Msg {
		stories, err := api.ListStories(context.Background())
		return StoriesMsg{Stories: stories, Err: err}
	}
}

// storyLister is the one client method the library screen needs.
type storyLister interface {
	ListStories(ctx context.Context) ([]types.Story, error)
}

func resumeDraft(ctrl *wizard.Controller) tea.Cmd {
	return func() tea.Msg {
		return ResumedMsg{Err: ctrl.Resume(context.Background())}
	}
}

func startEdit(ctrl *wizard.Controller, storyID string) tea.Cmd {
	return func() tea.Msg {
		return EditStartedMsg{Err: ctrl.StartEdit(context.Background(), storyID)}
	}
}

package tui

import (
	"context"
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"storyforge/types"
	"storyforge/wizard"
)

var pageCountChoices = []int{4, 6, 8, 10, 12}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		w := msg.Width - 6
		if w > 100 {
			w = 100
		}
		if w > 10 {
			m.storyInput.SetWidth(w)
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)

	case SnapshotMsg:
		return m.handleSnapshot(msg)

	case DraftSavedMsg:
		return m.handleDraftSaved(msg)

	case StyleSavedMsg:
		m.setNotice(msg.Err)
		m.refresh()
		return m, nil

	case AdvancedMsg:
		return m.handleAdvanced(msg)

	case RegenDoneMsg:
		// The form is cleared whether the call succeeded or failed.
		m.clearRegenForm()
		m.setNotice(msg.Err)
		m.refresh()
		return m, nil

	case StoriesMsg:
		m.setNotice(msg.Err)
		m.stories = msg.Stories
		m.clampCursor()
		return m, nil

	case ResumedMsg:
		if msg.Err != nil {
			m.setNotice(msg.Err)
			return m, nil
		}
		m.mode = ModeWizard
		m.refresh()
		m.storyInput.SetValue(m.view.DraftText)
		return m, m.startPolling()

	case EditStartedMsg:
		if msg.Err != nil {
			m.setNotice(msg.Err)
			return m, nil
		}
		m.mode = ModeWizard
		m.refresh()
		return m, m.startPolling()
	}
	return m, nil
}

func (m *Model) setNotice(err error) {
	if err != nil {
		m.notice = err.Error()
	}
}

func (m Model) handleSnapshot(msg SnapshotMsg) (tea.Model, tea.Cmd) {
	m.streak = msg.Snapshot.FailureStreak
	if msg.Snapshot.Job != nil {
		m.Ctrl.ApplySnapshot(msg.Snapshot.Job)
		m.refresh()
	}
	// Always re-arm: the channel outlives poller restarts.
	return m, waitForSnapshot(m.Poller)
}

func (m Model) handleDraftSaved(msg DraftSavedMsg) (tea.Model, tea.Cmd) {
	m.refresh()
	if msg.Err != nil {
		// The resume-path quirk: the stage advanced anyway, the error is a
		// notice rather than a block.
		m.setNotice(msg.Err)
		if !errors.Is(msg.Err, wizard.ErrDraftSaveFailed) {
			return m, nil
		}
	}
	m.saveSession()
	return m, m.startPolling()
}

func (m Model) handleAdvanced(msg AdvancedMsg) (tea.Model, tea.Cmd) {
	m.setNotice(msg.Err)
	m.refresh()
	if m.view.Stage == wizard.StageFinalView {
		// The job is done; nothing left to poll.
		m.stopPolling()
		m.saveSession()
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	if key == "ctrl+c" {
		return m.quit()
	}

	// Any keypress dismisses the inline notice.
	m.notice = ""

	if m.regenOpen {
		return m.handleRegenKey(msg)
	}
	if m.tagsOpen {
		return m.handleTagsKey(msg)
	}

	switch m.mode {
	case ModeHome:
		return m.handleHomeKey(key)
	case ModeLibrary:
		return m.handleLibraryKey(key)
	case ModeWizard:
		return m.handleWizardKey(msg)
	}
	return m, nil
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	m.quitting = true
	m.stopPolling()
	m.saveSession()
	return m, tea.Quit
}

func (m *Model) saveSession() {
	if m.Store == nil {
		return
	}
	if err := m.Store.Save(m.Sess); err != nil {
		m.Log.Warn().Err(err).Msg("session save failed")
	}
}

func (m *Model) startPolling() tea.Cmd {
	if !m.Sess.HasJob() {
		return nil
	}
	m.Poller.Start(context.Background(), m.Sess.JobID)
	m.polling = true
	if m.armed {
		return nil
	}
	m.armed = true
	return waitForSnapshot(m.Poller)
}

func (m *Model) stopPolling() {
	if m.polling {
		m.Poller.Stop()
		m.polling = false
	}
}

func (m Model) handleHomeKey(key string) (tea.Model, tea.Cmd) {
	entries := m.homeEntries()
	switch key {
	case "j", "down":
		m.cursor++
		m.clampCursor()
	case "k", "up":
		m.cursor--
		m.clampCursor()
	case "q":
		return m.quit()
	case "enter":
		switch entries[m.cursor] {
		case "New story":
			m.stopPolling()
			m.Ctrl.Reset()
			m.refresh()
			m.mode = ModeWizard
			m.storyInput.SetValue("")
			m.storyInput.Focus()
			m.pageCount = defaultPageCount
			return m, m.storyInput.Cursor.BlinkCmd()
		case "Resume draft":
			return m, resumeDraft(m.Ctrl)
		case "Library":
			m.mode = ModeLibrary
			m.cursor = 0
			return m, loadStories(m.API)
		case "Quit":
			return m.quit()
		}
	}
	return m, nil
}

func (m Model) handleLibraryKey(key string) (tea.Model, tea.Cmd) {
	switch key {
	case "j", "down":
		m.cursor++
		m.clampCursor()
	case "k", "up":
		m.cursor--
		m.clampCursor()
	case "esc":
		m.mode = ModeHome
		m.cursor = 0
	case "enter":
		if len(m.stories) > 0 {
			return m, startEdit(m.Ctrl, m.stories[m.cursor].ID)
		}
	}
	return m, nil
}

func (m Model) handleWizardKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.view.JobFailed {
		switch msg.String() {
		case "b", "esc":
			m.stopPolling()
			m.mode = ModeHome
			m.cursor = 0
		case "q":
			return m.quit()
		}
		return m, nil
	}

	switch m.view.Stage {
	case wizard.StageDraftInput:
		return m.handleDraftKey(msg)
	case wizard.StageStyleSelect:
		return m.handleStyleKey(msg)
	case wizard.StageAvatarReview, wizard.StagePageReview:
		return m.handleReviewKey(msg.String())
	case wizard.StageFinalView:
		return m.handleFinalKey(msg.String())
	}
	return m, nil
}

func (m Model) handleDraftKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+s":
		return m, submitDraft(m.Ctrl, m.storyInput.Value(), m.pageCount)
	case "ctrl+p":
		m.pageCount = nextPageCount(m.pageCount)
		return m, nil
	case "esc":
		m.mode = ModeHome
		m.cursor = 0
		return m, nil
	}
	var cmd tea.Cmd
	m.storyInput, cmd = m.storyInput.Update(msg)
	return m, cmd
}

func nextPageCount(current int) int {
	for i, n := range pageCountChoices {
		if n == current {
			return pageCountChoices[(i+1)%len(pageCountChoices)]
		}
	}
	return defaultPageCount
}

func (m Model) handleStyleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.styleInput.Focused() {
		switch msg.String() {
		case "enter":
			desc := strings.TrimSpace(m.styleInput.Value())
			m.styleInput.Blur()
			return m, chooseStyle(m.Ctrl, types.StyleRequest{Custom: true, Description: desc})
		case "esc":
			m.styleInput.Blur()
			return m, nil
		}
		var cmd tea.Cmd
		m.styleInput, cmd = m.styleInput.Update(msg)
		return m, cmd
	}

	entries := m.styleEntries()
	switch msg.String() {
	case "j", "down":
		m.cursor++
		m.clampCursor()
	case "k", "up":
		m.cursor--
		m.clampCursor()
	case "b", "esc":
		if err := m.Ctrl.Back(); err == nil {
			m.refresh()
			m.storyInput.SetValue(m.view.DraftText)
			m.storyInput.Focus()
			return m, m.storyInput.Cursor.BlinkCmd()
		}
	case "enter":
		choice := entries[m.cursor]
		switch {
		case choice == "Custom...":
			m.styleInput.Focus()
			return m, m.styleInput.Cursor.BlinkCmd()
		case strings.HasPrefix(choice, "Recommended: "):
			preset := strings.TrimPrefix(choice, "Recommended: ")
			return m, chooseStyle(m.Ctrl, types.StyleRequest{Preset: preset})
		default:
			return m, chooseStyle(m.Ctrl, types.StyleRequest{Preset: choice})
		}
	}
	return m, nil
}

func (m Model) handleReviewKey(key string) (tea.Model, tea.Cmd) {
	keys := m.reviewKeys()

	switch key {
	case "j", "down":
		m.cursor++
		m.clampCursor()
	case "k", "up":
		m.cursor--
		m.clampCursor()
	case "a":
		if len(keys) > 0 {
			m.setNotice(m.Ctrl.Approve(keys[m.cursor]))
			m.refresh()
		}
	case "u":
		if len(keys) > 0 {
			m.Ctrl.Unapprove(keys[m.cursor])
			m.refresh()
		}
	case "r":
		if len(keys) > 0 && !m.view.Regenerating[keys[m.cursor]] {
			m.regenOpen = true
			m.regenKey = keys[m.cursor]
			m.regenFocus = regenFieldDesc
			m.regenDesc.Focus()
			return m, m.regenDesc.Cursor.BlinkCmd()
		}
	case "c", "enter":
		if m.view.Stage == wizard.StagePageReview && m.allApproved() {
			// Collect tags before the book is finalized.
			m.tagsOpen = true
			m.tagsInput.Focus()
			return m, m.tagsInput.Cursor.BlinkCmd()
		}
		return m, advance(m.Ctrl)
	case "b", "esc":
		err := m.Ctrl.Back()
		switch {
		case errors.Is(err, wizard.ErrEditExitsToLibrary):
			m.stopPolling()
			m.mode = ModeLibrary
			m.cursor = 0
			return m, loadStories(m.API)
		case err != nil:
			m.setNotice(err)
		default:
			m.refresh()
		}
	}
	return m, nil
}

func (m Model) handleRegenKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.clearRegenForm()
		return m, nil
	case "tab", "shift+tab":
		if m.regenFocus == regenFieldDesc {
			m.regenFocus = regenFieldImage
			m.regenDesc.Blur()
			m.regenImage.Focus()
			return m, m.regenImage.Cursor.BlinkCmd()
		}
		m.regenFocus = regenFieldDesc
		m.regenImage.Blur()
		m.regenDesc.Focus()
		return m, m.regenDesc.Cursor.BlinkCmd()
	case "enter":
		key := m.regenKey
		desc := strings.TrimSpace(m.regenDesc.Value())
		imagePath := strings.TrimSpace(m.regenImage.Value())
		m.clearRegenForm()
		m.refresh()
		return m, regenerate(m.Ctrl, key, desc, imagePath, m.MaxImageBytes)
	}

	var cmd tea.Cmd
	if m.regenFocus == regenFieldDesc {
		m.regenDesc, cmd = m.regenDesc.Update(msg)
	} else {
		m.regenImage, cmd = m.regenImage.Update(msg)
	}
	return m, cmd
}

func (m Model) handleTagsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.tagsOpen = false
		m.tagsInput.Blur()
		return m, nil
	case "enter":
		m.Ctrl.SetTags(splitTags(m.tagsInput.Value()))
		m.tagsOpen = false
		m.tagsInput.Blur()
		return m, advance(m.Ctrl)
	}
	var cmd tea.Cmd
	m.tagsInput, cmd = m.tagsInput.Update(msg)
	return m, cmd
}

func splitTags(s string) []string {
	var tags []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

func (m Model) allApproved() bool {
	keys := m.reviewKeys()
	if len(keys) == 0 {
		return false
	}
	for _, key := range keys {
		if !m.view.Approvals[key] {
			return false
		}
	}
	return true
}

func (m *Model) clearRegenForm() {
	m.regenOpen = false
	m.regenKey = ""
	m.regenDesc.SetValue("")
	m.regenImage.SetValue("")
	m.regenDesc.Blur()
	m.regenImage.Blur()
}

func (m Model) handleFinalKey(key string) (tea.Model, tea.Cmd) {
	switch key {
	case "enter", "esc":
		m.stopPolling()
		m.Sess.ClearJob()
		m.saveSession()
		m.mode = ModeHome
		m.cursor = 0
	case "q":
		return m.quit()
	}
	return m, nil
}

// Package tui is the bubbletea front-end for the storyforge wizard: one
// screen per wizard stage plus home and library, driven by the controller
// and fed by the job poller.
package tui

import (
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"

	"storyforge/approval"
	"storyforge/client"
	"storyforge/config"
	"storyforge/poll"
	"storyforge/session"
	"storyforge/types"
	"storyforge/wizard"
)

// Mode is the top-level screen outside the wizard stages.
type Mode int

const (
	ModeHome Mode = iota
	ModeWizard
	ModeLibrary
)

// regenField selects which input of the regenerate form has focus.
type regenField int

const (
	regenFieldDesc regenField = iota
	regenFieldImage
)

// defaultPageCount matches the backend default for new drafts.
const defaultPageCount = config.DefaultPageCount

// Model is the bubbletea model for the whole program.
type Model struct {
	Ctrl   *wizard.Controller
	API    *client.Client
	Poller *poll.Poller
	Sess   *session.Session
	Store  *session.FileStore
	Log    zerolog.Logger

	MaxImageBytes int64

	mode    Mode
	view    wizard.View
	polling bool
	armed   bool
	streak  int

	pageCount int

	cursor  int
	notice  string
	stories []types.Story

	// Regenerate form, opened over a review screen for one item.
	regenOpen  bool
	regenKey   string
	regenFocus regenField

	// Tags form, opened before finalizing.
	tagsOpen bool

	storyInput textarea.Model
	styleInput textinput.Model
	regenDesc  textinput.Model
	regenImage textinput.Model
	tagsInput  textinput.Model
	spin       spinner.Model
	prog       progress.Model

	// Style presets offered alongside the backend recommendation.
	presets []string

	width    int
	quitting bool
}

// NewModel wires the model. The controller, client, poller and session are
// constructed by main and injected.
func NewModel(ctrl *wizard.Controller, api *client.Client, poller *poll.Poller, sess *session.Session, store *session.FileStore, maxImageBytes int64, log zerolog.Logger) Model {
	story := textarea.New()
	story.Placeholder = "Once upon a time..."
	story.CharLimit = 0
	story.SetHeight(10)
	story.SetWidth(72)

	style := textinput.New()
	style.Placeholder = "soft watercolor with ink outlines"
	style.CharLimit = 200

	desc := textinput.New()
	desc.Placeholder = "what should change?"
	desc.CharLimit = 300

	img := textinput.New()
	img.Placeholder = "path/to/reference.png (optional)"
	img.CharLimit = 300

	tags := textinput.New()
	tags.Placeholder = "adventure, bedtime (comma-separated, optional)"
	tags.CharLimit = 200

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color(colorPrimary))

	pb := progress.New(progress.WithDefaultGradient(), progress.WithWidth(40))

	return Model{
		Ctrl:          ctrl,
		API:           api,
		Poller:        poller,
		Sess:          sess,
		Store:         store,
		Log:           log,
		MaxImageBytes: maxImageBytes,
		mode:          ModeHome,
		pageCount:     defaultPageCount,
		view:          ctrl.View(),
		storyInput:    story,
		styleInput:    style,
		regenDesc:     desc,
		regenImage:    img,
		tagsInput:     tags,
		spin:          sp,
		prog:          pb,
		presets:       config.StylePresets,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return m.spin.Tick
}

// refresh pulls a fresh controller view after any state change.
func (m *Model) refresh() {
	m.view = m.Ctrl.View()
	m.clampCursor()
}

// reviewKeys lists the selectable items on the active review screen, in
// render order.
func (m Model) reviewKeys() []string {
	switch m.view.Stage {
	case wizard.StageAvatarReview:
		if m.view.Job == nil {
			return nil
		}
		keys := make([]string, 0, len(m.view.Job.Characters))
		for _, ch := range m.view.Job.Characters {
			keys = append(keys, ch.Name)
		}
		return keys
	case wizard.StagePageReview:
		if m.view.Job == nil || m.view.Job.StoryPages == nil {
			return nil
		}
		keys := make([]string, 0, len(m.view.Job.StoryPages.Pages)+1)
		for _, p := range m.view.Job.StoryPages.Pages {
			keys = append(keys, approval.PageKey(p.PageNumber))
		}
		if m.view.Job.Cover != nil {
			keys = append(keys, approval.CoverKey)
		}
		return keys
	default:
		return nil
	}
}

func (m *Model) clampCursor() {
	var n int
	switch m.mode {
	case ModeHome:
		n = len(m.homeEntries())
	case ModeLibrary:
		n = len(m.stories)
	case ModeWizard:
		switch m.view.Stage {
		case wizard.StageStyleSelect:
			n = len(m.styleEntries())
		case wizard.StageAvatarReview, wizard.StagePageReview:
			n = len(m.reviewKeys())
		}
	}
	if n == 0 {
		m.cursor = 0
		return
	}
	if m.cursor >= n {
		m.cursor = n - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m Model) homeEntries() []string {
	entries := []string{"New story"}
	if m.Sess.HasJob() && !m.Sess.IsEdit() {
		entries = append(entries, "Resume draft")
	}
	entries = append(entries, "Library", "Quit")
	return entries
}

// styleEntries is the recommendation (when known) plus the presets plus the
// custom option.
func (m Model) styleEntries() []string {
	var entries []string
	if m.view.Job != nil && m.view.Job.RecommendedStyle != "" {
		entries = append(entries, "Recommended: "+m.view.Job.RecommendedStyle)
	}
	entries = append(entries, m.presets...)
	entries = append(entries, "Custom...")
	return entries
}

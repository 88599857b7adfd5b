package tui

import (
	"fmt"
	"strings"

	"storyforge/approval"
	"storyforge/wizard"
)

// reconnectThreshold is the failure streak after which the banner appears.
const reconnectThreshold = 3

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder

	b.WriteString(TitleStyle.Render("📖 StoryForge"))
	b.WriteString("\n")

	if m.streak >= reconnectThreshold {
		banner := fmt.Sprintf("⚠ connection lost, retrying... (%d failed attempts)", m.streak)
		b.WriteString(WarnStyle.Render(banner))
		b.WriteString("\n\n")
	}

	switch m.mode {
	case ModeHome:
		b.WriteString(m.viewHome())
	case ModeLibrary:
		b.WriteString(m.viewLibrary())
	case ModeWizard:
		b.WriteString(m.viewWizard())
	}

	if m.notice != "" {
		b.WriteString("\n")
		b.WriteString(ErrorStyle.Render("! " + m.notice))
		b.WriteString("\n")
	}

	return b.String()
}

func (m Model) viewHome() string {
	var b strings.Builder
	b.WriteString(InfoStyle.Render("Turn a story draft into an illustrated book."))
	b.WriteString("\n\n")
	for i, entry := range m.homeEntries() {
		b.WriteString(m.listLine(entry, i == m.cursor))
	}
	b.WriteString("\n")
	b.WriteString(InfoStyle.Render(TextFooterHome))
	return b.String()
}

func (m Model) viewLibrary() string {
	var b strings.Builder
	b.WriteString(HighlightStyle.Render("Library"))
	b.WriteString("\n\n")

	if len(m.stories) == 0 {
		b.WriteString(InfoStyle.Render("No finished stories yet."))
		b.WriteString("\n")
	}
	for i, story := range m.stories {
		label := fmt.Sprintf("%s (%d pages)", story.Title, len(story.Pages))
		if story.ArtStyle != "" {
			label += " · " + story.ArtStyle
		}
		b.WriteString(m.listLine(label, i == m.cursor))
	}

	b.WriteString("\n")
	b.WriteString(InfoStyle.Render(TextFooterLibrary))
	return b.String()
}

func (m Model) viewWizard() string {
	if m.view.JobFailed {
		return m.viewJobError()
	}

	switch m.view.Stage {
	case wizard.StageDraftInput:
		return m.viewDraft()
	case wizard.StageStyleSelect:
		return m.viewStyle()
	case wizard.StageAvatarReview:
		return m.viewAvatarReview()
	case wizard.StagePageReview:
		return m.viewPageReview()
	case wizard.StageFinalView:
		return m.viewFinal()
	}
	return ""
}

func (m Model) viewJobError() string {
	var b strings.Builder
	b.WriteString(ErrorStyle.Render("✗ Generation failed"))
	b.WriteString("\n\n")
	reason := m.view.FailureReason
	if reason == "" {
		reason = "the backend reported an error"
	}
	b.WriteString(BoxStyle.Render(reason))
	b.WriteString("\n\n")
	b.WriteString(InfoStyle.Render(TextFooterError))
	return b.String()
}

func (m Model) viewDraft() string {
	var b strings.Builder
	b.WriteString(HighlightStyle.Render("Step 1 of 4 · Your story"))
	b.WriteString("\n\n")
	b.WriteString(InfoStyle.Render(TextDraftHint))
	b.WriteString("\n\n")
	b.WriteString(m.storyInput.View())
	b.WriteString("\n\n")

	count := len([]rune(m.storyInput.Value()))
	need := m.Ctrl.MinStoryChars()
	counter := fmt.Sprintf("%d characters", count)
	if count < need {
		b.WriteString(PendingStyle.Render(counter + fmt.Sprintf(" (need %d)", need)))
	} else {
		b.WriteString(StatusStyle.Render(counter))
	}
	b.WriteString(InfoStyle.Render(fmt.Sprintf("  ·  %d pages (ctrl+p to change)", m.pageCount)))
	b.WriteString("\n\n")
	b.WriteString(InfoStyle.Render(TextFooterDraft))
	return b.String()
}

func (m Model) viewStyle() string {
	var b strings.Builder
	b.WriteString(HighlightStyle.Render("Step 2 of 4 · Art style"))
	b.WriteString("\n\n")

	if m.styleInput.Focused() {
		b.WriteString(InfoStyle.Render(TextCustomHint))
		b.WriteString("\n\n")
		b.WriteString(m.styleInput.View())
		b.WriteString("\n\n")
		b.WriteString(InfoStyle.Render("enter choose | esc back to list"))
		return b.String()
	}

	for i, entry := range m.styleEntries() {
		b.WriteString(m.listLine(entry, i == m.cursor))
	}

	b.WriteString("\n")
	b.WriteString(InfoStyle.Render(TextFooterStyle))
	return b.String()
}

func (m Model) viewAvatarReview() string {
	job := m.view.Job
	if job == nil || !job.HasCharacters() {
		return m.viewWorking("Step 3 of 4 · Characters", "extracting characters")
	}

	var b strings.Builder
	b.WriteString(HighlightStyle.Render("Step 3 of 4 · Character avatars"))
	b.WriteString("\n\n")

	for i, ch := range job.Characters {
		var detail string
		switch {
		case m.view.Regenerating[ch.Name]:
			detail = m.spin.View() + " regenerating"
		case !ch.AvatarGenerated:
			detail = m.spin.View() + " drawing avatar"
		case ch.AvatarURL != "":
			detail = ch.AvatarURL
		}
		label := ch.Name
		if ch.Role != "" {
			label += " (" + ch.Role + ")"
		}
		b.WriteString(m.reviewLine(label, detail, m.view.Approvals[ch.Name], i == m.cursor))
	}

	b.WriteString("\n")
	b.WriteString(m.approvalSummary())
	b.WriteString("\n")
	if m.regenOpen {
		b.WriteString(m.viewRegenForm())
	} else {
		b.WriteString(InfoStyle.Render(TextFooterReview))
	}
	return b.String()
}

func (m Model) viewPageReview() string {
	job := m.view.Job
	if job == nil || !job.HasPages() {
		return m.viewWorking("Step 4 of 4 · Pages", "writing and illustrating pages")
	}

	var b strings.Builder
	title := "Step 4 of 4 · Pages"
	if job.StoryPages.Title != "" {
		title += " · " + job.StoryPages.Title
	}
	b.WriteString(HighlightStyle.Render(title))
	b.WriteString("\n\n")

	keys := m.reviewKeys()
	for i, p := range job.StoryPages.Pages {
		key := approval.PageKey(p.PageNumber)
		var detail string
		switch {
		case m.view.Regenerating[key]:
			detail = m.spin.View() + " regenerating"
		case p.IllustrationURL == "":
			detail = m.spin.View() + " illustrating"
		default:
			detail = excerpt(p.Text, 60)
		}
		label := fmt.Sprintf("Page %d", p.PageNumber)
		b.WriteString(m.reviewLine(label, detail, m.view.Approvals[key], i == m.cursor))
	}
	if job.Cover != nil {
		idx := len(job.StoryPages.Pages)
		var detail string
		if m.view.Regenerating[approval.CoverKey] {
			detail = m.spin.View() + " regenerating"
		} else {
			detail = job.Cover.Title
		}
		selected := idx < len(keys) && idx == m.cursor
		b.WriteString(m.reviewLine("Cover", detail, m.view.Approvals[approval.CoverKey], selected))
	}

	b.WriteString("\n")
	b.WriteString(m.approvalSummary())
	b.WriteString("\n")
	switch {
	case m.regenOpen:
		b.WriteString(m.viewRegenForm())
	case m.tagsOpen:
		b.WriteString(m.viewTagsForm())
	default:
		b.WriteString(InfoStyle.Render(TextFooterReview))
	}
	return b.String()
}

func (m Model) viewTagsForm() string {
	var box strings.Builder
	box.WriteString("Finish your book\n\n")
	box.WriteString("tags: " + m.tagsInput.View())
	return BoxStyle.Render(box.String()) + "\n" + InfoStyle.Render(TextFooterTags)
}

func (m Model) viewFinal() string {
	var b strings.Builder
	b.WriteString(StatusStyle.Render("✓ Your book is ready"))
	b.WriteString("\n\n")

	if story := m.view.Story; story != nil {
		var box strings.Builder
		box.WriteString(story.Title)
		if story.Summary != "" {
			box.WriteString("\n\n" + story.Summary)
		}
		box.WriteString(fmt.Sprintf("\n\n%d pages · %s", len(story.Pages), story.ArtStyle))
		if len(story.Tags) > 0 {
			box.WriteString("\ntags: " + strings.Join(story.Tags, ", "))
		}
		b.WriteString(BoxStyle.Render(box.String()))
		b.WriteString("\n\n")
	}

	b.WriteString(InfoStyle.Render(TextFooterFinal))
	return b.String()
}

// viewWorking is the waiting screen shown while the backend is still
// producing the items the next review needs.
func (m Model) viewWorking(title, fallback string) string {
	var b strings.Builder
	b.WriteString(HighlightStyle.Render(title))
	b.WriteString("\n\n")

	phase := fallback
	progress := 0
	if job := m.view.Job; job != nil {
		if job.Phase != "" {
			phase = strings.ReplaceAll(job.Phase, "_", " ")
		}
		progress = job.Progress
	}
	b.WriteString(fmt.Sprintf("%s %s", m.spin.View(), phase))
	b.WriteString("\n\n")
	b.WriteString(m.prog.ViewAs(float64(progress) / 100))
	b.WriteString("\n\n")
	b.WriteString(InfoStyle.Render("b back | ctrl+c quit"))
	return b.String()
}

func (m Model) viewRegenForm() string {
	var box strings.Builder
	box.WriteString("Regenerate " + m.regenKey + "\n\n")
	box.WriteString(TextRegenHint + "\n\n")
	box.WriteString("description: " + m.regenDesc.View() + "\n")
	box.WriteString("reference:   " + m.regenImage.View())

	return BoxStyle.Render(box.String()) + "\n" + InfoStyle.Render(TextFooterRegen)
}

func (m Model) approvalSummary() string {
	keys := m.reviewKeys()
	approved := 0
	for _, key := range keys {
		if m.view.Approvals[key] {
			approved++
		}
	}
	line := fmt.Sprintf("%d/%d approved", approved, len(keys))
	if approved == len(keys) && len(keys) > 0 {
		return StatusStyle.Render(line + " — press c to continue")
	}
	return PendingStyle.Render(line)
}

func (m Model) listLine(label string, selected bool) string {
	if selected {
		return SelectedStyle.Render("> "+label) + "\n"
	}
	return "  " + label + "\n"
}

func (m Model) reviewLine(label, detail string, approved, selected bool) string {
	mark := PendingStyle.Render("○")
	if approved {
		mark = ApprovedStyle.Render("●")
	}
	cursor := "  "
	if selected {
		cursor = SelectedStyle.Render("> ")
		label = SelectedStyle.Render(label)
	}
	line := cursor + mark + " " + label
	if detail != "" {
		line += "  " + InfoStyle.Render(detail)
	}
	return line + "\n"
}

func excerpt(s string, max int) string {
	runes := []rune(strings.TrimSpace(s))
	if len(runes) <= max {
		return string(runes)
	}
	return string(runes[:max-1]) + "…"
}

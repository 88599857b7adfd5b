package stubserver

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	"storyforge/config"
	"storyforge/types"
)

// runExtraction simulates the character-extraction and avatar-generation
// phases, advancing status and progress one step per StepDelay. Runs on its
// own goroutine per job; the polling client observes the intermediate
// states.
func (s *Server) runExtraction(jobID string) {
	step := func(fn func(rec *JobRecord)) bool { return s.mutateJob(jobID, fn) }

	if !step(func(rec *JobRecord) {
		rec.Job.Status = types.StatusRunning
		rec.Job.Phase = "analyzing_story"
		rec.Job.Progress = 10
		rec.Job.Message = "Reading the story"
	}) {
		return
	}
	s.pause()

	var names []string
	if !step(func(rec *JobRecord) {
		rec.Job.Characters = deriveCharacters(rec.Job.StoryText)
		for _, ch := range rec.Job.Characters {
			names = append(names, ch.Name)
		}
		rec.Job.Status = types.StatusCharactersReady
		rec.Job.Phase = "characters_extracted"
		rec.Job.Progress = 40
		rec.Job.Message = fmt.Sprintf("Found %d characters", len(rec.Job.Characters))
	}) {
		return
	}
	s.pause()

	for i, name := range names {
		if !step(func(rec *JobRecord) {
			if ch := rec.Job.Character(name); ch != nil {
				ch.AvatarGenerated = true
				ch.AvatarURL = avatarURL(jobID, name, 1)
				ch.AvatarPrompt = fmt.Sprintf("portrait of %s, %s style", name, rec.Job.ArtStyle)
			}
			rec.Job.Phase = "generating_avatars"
			rec.Job.Progress = 40 + (i+1)*50/len(names)
			rec.Job.Message = fmt.Sprintf("Painted avatar for %s", name)
		}) {
			return
		}
		s.pause()
	}

	step(func(rec *JobRecord) {
		rec.Job.Status = types.StatusAvatarsReady
		rec.Job.Phase = "avatars_ready"
		rec.Job.Progress = 100
		rec.Job.Message = "All avatars ready for review"
	})
}

// runPageGeneration simulates writing the pages and illustrating them plus
// the cover.
func (s *Server) runPageGeneration(jobID string) {
	step := func(fn func(rec *JobRecord)) bool { return s.mutateJob(jobID, fn) }

	if !step(func(rec *JobRecord) {
		rec.Job.Status = types.StatusRunning
		rec.Job.Phase = "writing_pages"
		rec.Job.Progress = 10
		rec.Job.Message = "Writing the pages"
	}) {
		return
	}
	s.pause()

	if !step(func(rec *JobRecord) {
		title := storyTitle(rec.Job.StoryText)
		rec.Job.StoryPages = &types.StoryPages{
			Title:   title,
			Summary: summarize(rec.Job.StoryText),
			Pages:   splitPages(rec.Job.StoryText, rec.Job.PageCount),
		}
		rec.Job.Status = types.StatusPagesTextReady
		rec.Job.Phase = "pages_written"
		rec.Job.Progress = 50
		rec.Job.Message = fmt.Sprintf("Wrote %d pages", len(rec.Job.StoryPages.Pages))
	}) {
		return
	}
	s.pause()

	step(func(rec *JobRecord) {
		for i := range rec.Job.StoryPages.Pages {
			p := &rec.Job.StoryPages.Pages[i]
			p.IllustrationURL = pageURL(jobID, p.PageNumber, 1)
		}
		rec.Job.Cover = &types.CoverArt{
			IllustrationURL: coverURL(jobID, 1),
			Title:           rec.Job.StoryPages.Title,
		}
		rec.Job.Status = types.StatusPagesReady
		rec.Job.Phase = "pages_ready"
		rec.Job.Progress = 100
		rec.Job.Message = "Pages and cover ready for review"
	})
}

// mutateJob loads, mutates and re-saves one job under the server mutation
// lock. Returns false when the job no longer exists (swept or deleted).
func (s *Server) mutateJob(jobID string, fn func(rec *JobRecord)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx := context.Background()
	rec, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		s.log.Warn().Err(err).Str("jobId", jobID).Msg("simulation step on missing job")
		return false
	}
	fn(rec)
	rec.Job.UpdatedAt = time.Now()
	if err := s.store.SaveJob(ctx, rec); err != nil {
		s.log.Error().Err(err).Str("jobId", jobID).Msg("simulation step save failed")
		return false
	}
	return true
}

func (s *Server) pause() {
	if s.stepDelay > 0 {
		time.Sleep(s.stepDelay)
	}
}

// sentence starters and other capitalized words that are never character
// names.
var nonNames = map[string]bool{
	"The": true, "A": true, "An": true, "And": true, "But": true, "Or": true,
	"Once": true, "Then": true, "When": true, "While": true, "After": true,
	"It": true, "He": true, "She": true, "They": true, "I": true, "In": true,
	"On": true, "At": true, "So": true, "As": true, "One": true, "There": true,
	"Her": true, "His": true, "Its": true, "Their": true, "This": true,
	"That": true, "These": true, "Those": true, "Together": true, "With": true,
	"From": true, "By": true, "For": true, "To": true, "Of": true, "We": true,
	"You": true, "Now": true, "Soon": true, "Suddenly": true, "Finally": true,
	"Every": true, "Some": true, "All": true, "No": true, "Not": true,
}

// deriveCharacters picks capitalized words out of the story text as
// character names. Good enough for a development stand-in; real extraction
// happens in the production backend.
func deriveCharacters(text string) []types.Character {
	seen := make(map[string]bool)
	var names []string
	for _, w := range strings.Fields(text) {
		w = strings.TrimFunc(w, func(r rune) bool { return !unicode.IsLetter(r) })
		if len(w) < 2 || !unicode.IsUpper(rune(w[0])) {
			continue
		}
		if nonNames[w] || seen[w] {
			continue
		}
		seen[w] = true
		names = append(names, w)
		if len(names) == 4 {
			break
		}
	}
	if len(names) == 0 {
		names = []string{"The Hero", "The Friend"}
	}

	chars := make([]types.Character, 0, len(names))
	for i, name := range names {
		role := "companion"
		if i == 0 {
			role = "protagonist"
		}
		chars = append(chars, types.Character{
			Name:        name,
			Role:        role,
			Description: fmt.Sprintf("%s, a character from the story", name),
		})
	}
	return chars
}

// splitPages distributes the story sentences across the requested page
// count.
func splitPages(text string, pageCount int) []types.Page {
	if pageCount <= 0 {
		pageCount = 8
	}
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		sentences = []string{text}
	}

	pages := make([]types.Page, pageCount)
	per := (len(sentences) + pageCount - 1) / pageCount
	for i := 0; i < pageCount; i++ {
		start := i * per
		end := start + per
		if start > len(sentences) {
			start = len(sentences)
		}
		if end > len(sentences) {
			end = len(sentences)
		}
		body := strings.Join(sentences[start:end], " ")
		if body == "" {
			body = "And the story went on."
		}
		pages[i] = types.Page{PageNumber: i + 1, Text: body}
	}
	return pages
}

func splitSentences(text string) []string {
	var out []string
	var b strings.Builder
	for _, r := range text {
		b.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			if s := strings.TrimSpace(b.String()); s != "" {
				out = append(out, s)
			}
			b.Reset()
		}
	}
	if s := strings.TrimSpace(b.String()); s != "" {
		out = append(out, s)
	}
	return out
}

func storyTitle(text string) string {
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return "An Untitled Story"
	}
	words := strings.Fields(strings.TrimRight(sentences[0], ".!?"))
	if len(words) > 6 {
		words = words[:6]
	}
	return strings.Join(words, " ")
}

func summarize(text string) string {
	sentences := splitSentences(text)
	if len(sentences) > 2 {
		sentences = sentences[:2]
	}
	return strings.Join(sentences, " ")
}

// recommendStyle is deterministic in the story text so repeated polls agree.
func recommendStyle(text string) string {
	var sum int
	for _, r := range text {
		sum += int(r)
	}
	return config.StylePresets[sum%len(config.StylePresets)]
}

func avatarURL(jobID, name string, version int) string {
	slug := strings.ToLower(strings.ReplaceAll(name, " ", "-"))
	return fmt.Sprintf("https://img.storyforge.local/%s/avatars/%s-v%d.png", jobID, slug, version)
}

func pageURL(jobID string, pageNumber, version int) string {
	return fmt.Sprintf("https://img.storyforge.local/%s/pages/%d-v%d.png", jobID, pageNumber, version)
}

func coverURL(jobID string, version int) string {
	return fmt.Sprintf("https://img.storyforge.local/%s/cover-v%d.png", jobID, version)
}

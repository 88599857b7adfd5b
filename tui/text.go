package tui

// UI Text Constants
const (
	// Footers
	TextFooterHome    = "j/k move | enter select | q quit"
	TextFooterDraft   = "ctrl+s submit | esc home | ctrl+c quit"
	TextFooterStyle   = "j/k move | enter choose | b back | ctrl+c quit"
	TextFooterReview  = "j/k move | a approve | u unapprove | r regenerate | c continue | b back"
	TextFooterRegen   = "enter send | tab switch field | esc cancel"
	TextFooterTags    = "enter finalize | esc cancel"
	TextFooterFinal   = "enter return home | q quit"
	TextFooterLibrary = "j/k move | enter edit | esc home"
	TextFooterError   = "b go back | q quit"

	// Hints
	TextDraftHint  = "Tell your story. At least 100 characters; the more detail, the better the book."
	TextCustomHint = "Describe the art style in your own words"
	TextRegenHint  = "Optional: a description and/or a PNG/JPEG file path to steer the result"
)

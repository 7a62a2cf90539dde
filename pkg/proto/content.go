package proto

import (
	"time"
	"unicode"
)

// Language is the detected language of a content item or candidate comment.
type Language string

const (
	LangHebrew  Language = "he"
	LangEnglish Language = "en"
)

// DetectLanguage classifies text by script: any Hebrew-range codepoint makes
// the text Hebrew, otherwise it is treated as English.
func DetectLanguage(text string) Language {
	for _, r := range text {
		if unicode.Is(unicode.Hebrew, r) {
			return LangHebrew
		}
	}
	return LangEnglish
}

// ItemMetrics holds the engagement counters visible on a post.
type ItemMetrics struct {
	LikeCount    int `json:"like_count"`
	CommentCount int `json:"comment_count"`
}

// ContentItem is a post or comment extracted from the page. Items are
// immutable once extracted. ID is stable across repeated extraction of the
// same element so the session can enforce at-most-once processing per item.
type ContentItem struct {
	ID        string      `json:"id"`
	Author    string      `json:"author"`
	Text      string      `json:"text"`
	Timestamp time.Time   `json:"timestamp"`
	Metrics   ItemMetrics `json:"metrics"`
	Language  Language    `json:"language"`
}

// GenerationMethod records how a candidate comment was produced.
type GenerationMethod string

const (
	// MethodGenerated means the external capability produced the text.
	MethodGenerated GenerationMethod = "generated"
	// MethodFallback means the local template selector produced the text.
	MethodFallback GenerationMethod = "fallback"
	// MethodImproved means the text was revised after a review rejection.
	MethodImproved GenerationMethod = "improved"
)

// CandidateComment is a comment produced by the generator, consumed exactly
// once by the reviewer. Candidates are not persisted beyond the workflow.
type CandidateComment struct {
	Text         string           `json:"text"`
	SourceItemID string           `json:"source_item_id"`
	Method       GenerationMethod `json:"method"`
}

// ReviewReason classifies why a verdict passed or failed.
type ReviewReason string

const (
	ReasonApproved         ReviewReason = "approved"
	ReasonLanguageMismatch ReviewReason = "language_mismatch"
	ReasonLowQuality       ReviewReason = "low_quality"
	ReasonInappropriate    ReviewReason = "inappropriate"
)

// ReviewVerdict is the deterministic result of reviewing a candidate against
// its source item. It is stateless and recomputed on every call; Score is
// only meaningful when Approved is true.
type ReviewVerdict struct {
	Approved bool         `json:"approved"`
	Reason   ReviewReason `json:"reason"`
	Feedback string       `json:"feedback"`
	Score    float64      `json:"score"`
}

// ScrollDecision is the scroll engine's answer for one polling tick. It is
// never persisted.
type ScrollDecision struct {
	ShouldScroll bool    `json:"should_scroll"`
	AmountPx     int     `json:"amount_px"`
	Reason       string  `json:"reason"`
	Confidence   float64 `json:"confidence"`
}

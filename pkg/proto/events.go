package proto

import "time"

// EventType identifies a page event delivered over the bridge.
type EventType string

const (
	// EventContentVisible fires when new, unprocessed content scrolls into
	// view. It seeds the task queue.
	EventContentVisible EventType = "content_visible"
	// EventUserActivity fires on manual scroll, click, or mouse movement.
	// It feeds the scroll engine's activity clock.
	EventUserActivity EventType = "user_activity"
	// EventReplyReceived fires when someone replies to content we posted.
	EventReplyReceived EventType = "reply_received"
)

// PageEvent is one event from the page script.
type PageEvent struct {
	Type      EventType `json:"type"`
	Handle    Handle    `json:"handle,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// InteractionKind labels a recorded interaction for metrics/persistence.
type InteractionKind string

const (
	InteractionLike             InteractionKind = "like"
	InteractionHeart            InteractionKind = "heart"
	InteractionCommentInjected  InteractionKind = "comment_injected"
	InteractionCommentRejected  InteractionKind = "comment_rejected"
	InteractionExtractionMiss   InteractionKind = "extraction_miss"
	InteractionScrollPerformed  InteractionKind = "scroll_performed"
	InteractionScrollSuppressed InteractionKind = "scroll_suppressed"
)

// ViewportState is the scroll engine's view of the page on one polling tick.
// All measurements come from the viewport probe capability.
type ViewportState struct {
	ScrollPosition   float64   `json:"scroll_position"`
	ViewportHeight   float64   `json:"viewport_height"`
	DocumentHeight   float64   `json:"document_height"`
	VisibleText      string    `json:"visible_text"`
	VisibleItemCount int       `json:"visible_item_count"`
	UnprocessedCount int       `json:"unprocessed_count"`
	LikeAffordances  int       `json:"like_affordances"`
	CommentBoxes     int       `json:"comment_boxes"`
	ShareAffordances int       `json:"share_affordances"`
	LastUserActivity time.Time `json:"last_user_activity"`
}

// DistanceFromBottom returns the fraction of the document still below the
// viewport, in [0,1]. Zero means the viewport bottom is at the document end.
func (v ViewportState) DistanceFromBottom() float64 {
	if v.DocumentHeight <= 0 {
		return 0
	}
	remaining := v.DocumentHeight - (v.ScrollPosition + v.ViewportHeight)
	if remaining < 0 {
		return 0
	}
	return remaining / v.DocumentHeight
}

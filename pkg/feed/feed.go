// Package feed defines the collaborator contracts between the orchestration
// core and the page. The core never touches page structure directly; it works
// only through these interfaces and the semantic handle/item types in proto.
package feed

import (
	"context"

	"feedpilot/pkg/proto"
)

// Extractor pulls a structured ContentItem out of a raw post handle.
type Extractor interface {
	// Extract returns the item behind the handle, or nil when the handle no
	// longer resolves to extractable content (already processed, removed, or
	// malformed). A nil item with a nil error is an expected outcome, not a
	// failure. Extract marks the handle as processed as a side effect, which
	// is what upholds at-most-once processing per item id.
	Extract(ctx context.Context, handle proto.Handle) (*proto.ContentItem, error)
}

// Liker applies a like (or heart) reaction to the content behind a handle.
type Liker interface {
	// Like is non-fatal: a failure (affordance not found, already liked) is
	// logged and skipped by callers, never retried.
	Like(ctx context.Context, handle proto.Handle, heart bool) error
}

// Injector places comment text into the page for human approval.
type Injector interface {
	// Inject returns whether the text was visibly placed. It never submits;
	// a human reviews and posts or discards.
	Inject(ctx context.Context, handle proto.Handle, text string) (bool, error)
}

// ViewportProbe reports the current page geometry and visible-content summary
// for scroll decisions.
type ViewportProbe interface {
	Viewport(ctx context.Context) (proto.ViewportState, error)
}

// Scroller performs a scroll by a pixel amount.
type Scroller interface {
	ScrollBy(ctx context.Context, amountPx int) error
}

// Capabilities bundles every page-side contract the orchestrator needs.
// The bridge implements all of them over one connection.
type Capabilities interface {
	Extractor
	Liker
	Injector
	ViewportProbe
	Scroller
}

// Recorder is the metrics/persistence capability. Calls are fire-and-forget
// from the workflow's point of view: errors are logged by the caller, never
// propagated into task outcomes.
type Recorder interface {
	// RecordItem marks an item as seen. Recording an already-seen id is a
	// no-op, not an error, and must not double-count.
	RecordItem(ctx context.Context, item *proto.ContentItem) error

	// RecordInteraction appends one interaction against an item.
	RecordInteraction(ctx context.Context, itemID string, kind proto.InteractionKind, payload map[string]any) error
}

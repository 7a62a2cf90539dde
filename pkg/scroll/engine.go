// Package scroll implements autonomous feed scrolling: a deterministic
// decision engine scored off the current viewport, and the agent that polls
// it and drives the page scroller.
package scroll

import (
	"sync"
	"time"

	"feedpilot/pkg/proto"
)

// Gating and scoring constants. The gates run before scoring and any one of
// them suppresses scrolling for the tick.
const (
	// manualScrollSuppress suppresses scrolling after recent user activity.
	manualScrollSuppress = 5 * time.Second
	// bottomThreshold suppresses scrolling within 5% of the document bottom.
	bottomThreshold = 0.05

	// scoreThreshold is the additive score above which a scroll fires.
	scoreThreshold = 0.5

	qualityUrgencyWeight = 0.5
	engagementWeight     = 0.3
	fewItemsBonus        = 0.3
	minVisibleItems      = 2

	// User-engagement adjustment: an idle user gets the feed moving, a user
	// active in the last engagedWindow (but past the hard gate) holds it back.
	idleWindow     = 60 * time.Second
	idleBonus      = 0.2
	engagedWindow  = 15 * time.Second
	engagedPenalty = 0.2

	// Distance selection. Speed 3 is the neutral midpoint of the 1-5 range.
	baseDistancePx = 300.0
	neutralSpeed   = 3.0
	minDistancePx  = 100
	maxDistancePx  = 1200

	// Emergency fallback thresholds and distance. Liveness guarantee against
	// the scoring path stalling.
	emergencyNoScroll   = 8 * time.Second
	emergencyNoActivity = 10 * time.Second
	emergencyDistancePx = 400

	// NeutralQuality is the content-quality estimate used when no analysis
	// capability is available.
	NeutralQuality = 0.5
)

// Engine scores viewport state into scroll decisions. Decide is a pure
// function of its inputs; the engine only remembers when the last scroll
// happened, for the emergency fallback.
type Engine struct {
	scrollSpeed int

	mu           sync.Mutex
	lastScrollAt time.Time
}

// NewEngine creates an engine for the given 1-5 scroll speed. The emergency
// clock starts at construction so a fresh engine cannot fire immediately.
func NewEngine(scrollSpeed int) *Engine {
	return &Engine{
		scrollSpeed:  scrollSpeed,
		lastScrollAt: time.Now(),
	}
}

// MarkScrolled resets the emergency clock. The agent calls it after every
// performed scroll, scored or emergency.
func (e *Engine) MarkScrolled(now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastScrollAt = now
}

// Decide scores the viewport and returns the decision for this tick.
// contentQuality is in [0,1]; pass NeutralQuality when no estimate exists.
func (e *Engine) Decide(now time.Time, viewport proto.ViewportState, contentQuality float64) proto.ScrollDecision {
	// Hard gates: never scroll against the user or past the end of the feed.
	if sinceActivity := now.Sub(viewport.LastUserActivity); !viewport.LastUserActivity.IsZero() && sinceActivity < manualScrollSuppress {
		return proto.ScrollDecision{Reason: "recent user activity"}
	}
	if viewport.DistanceFromBottom() <= bottomThreshold {
		return proto.ScrollDecision{Reason: "near document bottom"}
	}

	score := (1 - clamp01(contentQuality)) * qualityUrgencyWeight
	score += engagementPotential(viewport) * engagementWeight
	score += activityAdjustment(now, viewport.LastUserActivity)
	if viewport.VisibleItemCount < minVisibleItems {
		score += fewItemsBonus
	}

	if score <= scoreThreshold {
		return proto.ScrollDecision{
			Reason:     "score below threshold",
			Confidence: clamp01(score),
		}
	}

	return proto.ScrollDecision{
		ShouldScroll: true,
		AmountPx:     e.distance(contentQuality),
		Reason:       "scored scroll",
		Confidence:   clamp01(score),
	}
}

// Emergency reports whether the liveness fallback should fire: no scroll for
// 8s and no user activity for 10s. Independent of the scoring path.
func (e *Engine) Emergency(now time.Time, viewport proto.ViewportState) (proto.ScrollDecision, bool) {
	e.mu.Lock()
	lastScroll := e.lastScrollAt
	e.mu.Unlock()

	if now.Sub(lastScroll) < emergencyNoScroll {
		return proto.ScrollDecision{}, false
	}
	if !viewport.LastUserActivity.IsZero() && now.Sub(viewport.LastUserActivity) < emergencyNoActivity {
		return proto.ScrollDecision{}, false
	}
	return proto.ScrollDecision{
		ShouldScroll: true,
		AmountPx:     emergencyDistancePx,
		Reason:       "emergency fallback",
		Confidence:   1,
	}, true
}

// distance scales inversely with content quality (slow over good content,
// fast over poor) and linearly with the configured speed.
func (e *Engine) distance(contentQuality float64) int {
	qualityFactor := 1.5 - clamp01(contentQuality) // 0.5 .. 1.5
	speedFactor := float64(e.scrollSpeed) / neutralSpeed
	px := int(baseDistancePx * qualityFactor * speedFactor)
	if px < minDistancePx {
		return minDistancePx
	}
	if px > maxDistancePx {
		return maxDistancePx
	}
	return px
}

// engagementPotential is a weighted count of visible interaction affordances,
// capped at 1. Comment boxes weigh double: they signal conversations worth
// pausing over, which holds the score down through the quality term's inverse.
func engagementPotential(v proto.ViewportState) float64 {
	weighted := float64(v.LikeAffordances) + 2*float64(v.CommentBoxes) + 1.5*float64(v.ShareAffordances)
	return clamp01(weighted / 20)
}

func activityAdjustment(now time.Time, lastActivity time.Time) float64 {
	if lastActivity.IsZero() || now.Sub(lastActivity) >= idleWindow {
		return idleBonus
	}
	if now.Sub(lastActivity) < engagedWindow {
		return -engagedPenalty
	}
	return 0
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

package dispatch

import (
	"context"

	"feedpilot/pkg/feed"
	"feedpilot/pkg/gen"
	"feedpilot/pkg/logx"
	"feedpilot/pkg/proto"
)

// Reviewer gates candidate comments. The rule engine in pkg/review is the
// production implementation.
type Reviewer interface {
	Review(candidate *proto.CandidateComment, item *proto.ContentItem) proto.ReviewVerdict
}

// likeStrategy applies a like or heart reaction. Capability failure (button
// not found, already liked) is logged and skipped, never retried and never a
// task failure.
type likeStrategy struct {
	liker    feed.Liker
	recorder feed.Recorder
	heart    bool
	logger   *logx.Logger
}

// NewLikeStrategy creates the like workflow step.
func NewLikeStrategy(liker feed.Liker, recorder feed.Recorder, heart bool) Strategy {
	return &likeStrategy{
		liker:    liker,
		recorder: recorder,
		heart:    heart,
		logger:   logx.NewLogger("like-strategy"),
	}
}

func (s *likeStrategy) Name() string { return "like" }

func (s *likeStrategy) Execute(ctx context.Context, task *proto.Task, item *proto.ContentItem) error {
	if err := s.liker.Like(ctx, task.Payload, s.heart); err != nil {
		s.logger.Info("like skipped for task %s: %v", task.ID, err)
		return nil
	}

	kind := proto.InteractionLike
	if s.heart {
		kind = proto.InteractionHeart
	}
	itemID := task.Payload.ItemID
	if item != nil {
		itemID = item.ID
	}
	if err := s.recorder.RecordInteraction(ctx, itemID, kind, nil); err != nil {
		s.logger.Debug("like record failed: %v", err)
	}
	return nil
}

// commentStrategy runs the two-strike comment flow: generate, review, improve
// once on rejection, re-review, then inject or drop. The cap of two
// generation calls and two review calls per item bounds worst-case latency
// and provider cost.
type commentStrategy struct {
	generator *gen.Generator
	reviewer  Reviewer
	injector  feed.Injector
	recorder  feed.Recorder
	logger    *logx.Logger
}

// NewCommentStrategy creates the comment workflow step.
func NewCommentStrategy(generator *gen.Generator, reviewer Reviewer, injector feed.Injector, recorder feed.Recorder) Strategy {
	return &commentStrategy{
		generator: generator,
		reviewer:  reviewer,
		injector:  injector,
		recorder:  recorder,
		logger:    logx.NewLogger("comment-strategy"),
	}
}

func (s *commentStrategy) Name() string { return "comment" }

func (s *commentStrategy) Execute(ctx context.Context, task *proto.Task, item *proto.ContentItem) error {
	if item == nil {
		return nil
	}

	candidate := s.generator.Generate(ctx, item)
	if candidate == nil {
		return nil
	}

	verdict := s.reviewer.Review(candidate, item)
	if !verdict.Approved {
		s.logger.Debug("candidate rejected (%s), improving once", verdict.Reason)
		improved := s.generator.Improve(ctx, candidate, item, verdict.Feedback)
		verdict = s.reviewer.Review(improved, item)
		if !verdict.Approved {
			// Terminal rejection. Recorded so it stays distinguishable from
			// an extraction miss, but otherwise a silent no-op.
			s.record(ctx, item.ID, proto.InteractionCommentRejected, map[string]any{
				"reason": string(verdict.Reason),
			})
			return nil
		}
		candidate = improved
	}

	placed, err := s.injector.Inject(ctx, task.Payload, candidate.Text)
	if err != nil {
		s.logger.Info("injection failed for item %s: %v", item.ID, err)
		return nil
	}
	if !placed {
		s.logger.Info("injection declined for item %s", item.ID)
		return nil
	}

	s.record(ctx, item.ID, proto.InteractionCommentInjected, map[string]any{
		"method": string(candidate.Method),
		"score":  verdict.Score,
	})
	return nil
}

func (s *commentStrategy) record(ctx context.Context, itemID string, kind proto.InteractionKind, payload map[string]any) {
	if err := s.recorder.RecordInteraction(ctx, itemID, kind, payload); err != nil {
		s.logger.Debug("interaction record failed: %v", err)
	}
}

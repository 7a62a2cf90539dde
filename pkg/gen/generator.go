// Package gen produces candidate comments for extracted content items. The
// external provider is treated as unreliable: every call runs through a
// middleware chain with a hard timeout, and any failure degrades to a
// deterministic locale template so Generate always returns something usable
// for a supported language.
package gen

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"feedpilot/pkg/gen/llm"
	"feedpilot/pkg/logx"
	"feedpilot/pkg/proto"
	"feedpilot/pkg/utils"
)

const (
	systemPrompt = "You write short, friendly social feed comments. Reply with the comment text only, in the same language as the post."

	// improveMaxFeedbackRunes caps how much reviewer feedback goes back into
	// the improve prompt.
	improveMaxFeedbackRunes = 200
)

// Generator turns content items into candidate comments.
type Generator struct {
	client           llm.Client
	tokens           *utils.TokenCounter
	promptTokenLimit int
	rand             *utils.Rand
	logger           *logx.Logger
}

// NewGenerator creates a generator around a chained client. tokens may be nil
// (counting then falls back to estimation); rand is the injected randomness
// source for template selection.
func NewGenerator(client llm.Client, tokens *utils.TokenCounter, promptTokenLimit int, rand *utils.Rand) *Generator {
	return &Generator{
		client:           client,
		tokens:           tokens,
		promptTokenLimit: promptTokenLimit,
		rand:             rand,
		logger:           logx.NewLogger("generator"),
	}
}

// Generate produces a candidate comment for the item. Provider failure,
// timeout, and empty responses all fall back to the locale template selector;
// nil is returned only when the item's language has no template set.
func (g *Generator) Generate(ctx context.Context, item *proto.ContentItem) *proto.CandidateComment {
	if text, err := g.callProvider(ctx, item); err == nil {
		return &proto.CandidateComment{
			Text:         text,
			SourceItemID: item.ID,
			Method:       proto.MethodGenerated,
		}
	} else {
		g.logger.Info("generation fell back to templates for item %s: %v", item.ID, err)
	}

	text, ok := fallbackComment(item, g.rand)
	if !ok {
		g.logger.Warn("no template set for language %q, item %s dropped", item.Language, item.ID)
		return nil
	}
	return &proto.CandidateComment{
		Text:         text,
		SourceItemID: item.ID,
		Method:       proto.MethodFallback,
	}
}

// Improve revises a rejected candidate using the reviewer's feedback: one
// provider attempt, then local heuristic edits keyed on the feedback text.
// The result always carries MethodImproved.
func (g *Generator) Improve(ctx context.Context, original *proto.CandidateComment, item *proto.ContentItem, feedback string) *proto.CandidateComment {
	improved := &proto.CandidateComment{
		SourceItemID: original.SourceItemID,
		Method:       proto.MethodImproved,
	}

	prompt := g.improvePrompt(original.Text, item, feedback)
	resp, err := g.client.Complete(ctx, llm.NewCompletionRequest(systemPrompt, prompt))
	if err == nil {
		improved.Text = strings.TrimSpace(resp.Content)
		return improved
	}
	g.logger.Info("improve fell back to heuristics for item %s: %v", original.SourceItemID, err)

	improved.Text = heuristicImprove(original.Text, item.Language, feedback)
	return improved
}

// callProvider builds the prompt and runs one chained provider call.
func (g *Generator) callProvider(ctx context.Context, item *proto.ContentItem) (string, error) {
	if strings.TrimSpace(item.Text) == "" {
		return "", fmt.Errorf("item %s has no text to prompt with", item.ID)
	}

	resp, err := g.client.Complete(ctx, llm.NewCompletionRequest(systemPrompt, g.generatePrompt(item)))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Content), nil
}

func (g *Generator) generatePrompt(item *proto.ContentItem) string {
	post := g.tokens.TruncateToBudget(item.Text, g.promptTokenLimit)

	var b strings.Builder
	fmt.Fprintf(&b, "Write one short comment (under 200 characters) reacting to this post")
	if item.Author != "" {
		fmt.Fprintf(&b, " by %s", item.Author)
	}
	b.WriteString(":\n\n")
	b.WriteString(post)
	return b.String()
}

func (g *Generator) improvePrompt(original string, item *proto.ContentItem, feedback string) string {
	trimmed := []rune(feedback)
	if len(trimmed) > improveMaxFeedbackRunes {
		trimmed = trimmed[:improveMaxFeedbackRunes]
	}

	var b strings.Builder
	b.WriteString("Rewrite this feed comment so it addresses the reviewer feedback. Reply with the revised comment only.\n\n")
	fmt.Fprintf(&b, "Comment: %s\n", original)
	fmt.Fprintf(&b, "Feedback: %s\n", string(trimmed))
	fmt.Fprintf(&b, "Post language: %s\n", item.Language)
	return b.String()
}

// heuristicImprove applies local edits keyed on feedback substrings. It is a
// best-effort patch, not a correctness-guaranteeing transform.
func heuristicImprove(text string, lang proto.Language, feedback string) string {
	lower := strings.ToLower(feedback)

	if strings.Contains(lower, "too short") {
		if prompt, ok := engagementPrompts[lang]; ok {
			return text + prompt
		}
		return text
	}
	if strings.Contains(lower, "language mismatch") {
		return strings.TrimSpace(stripForeignScript(text, lang))
	}
	return text
}

// stripForeignScript removes letters outside the target language's script,
// keeping digits, punctuation, and whitespace.
func stripForeignScript(text string, lang proto.Language) string {
	keep := func(r rune) bool {
		if !unicode.IsLetter(r) {
			return true
		}
		if lang == proto.LangHebrew {
			return unicode.Is(unicode.Hebrew, r)
		}
		return !unicode.Is(unicode.Hebrew, r)
	}

	var b strings.Builder
	for _, r := range text {
		if keep(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

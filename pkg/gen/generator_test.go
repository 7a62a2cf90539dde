package gen

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"feedpilot/pkg/gen/llm"
	"feedpilot/pkg/proto"
	"feedpilot/pkg/utils"
)

func newTestGenerator(client llm.Client) *Generator {
	return NewGenerator(client, nil, 512, utils.NewSeededRand(7))
}

func englishItem(text string) *proto.ContentItem {
	return &proto.ContentItem{ID: "item-en", Text: text, Language: proto.LangEnglish}
}

func hebrewItem(text string) *proto.ContentItem {
	return &proto.ContentItem{ID: "item-he", Text: text, Language: proto.LangHebrew}
}

func TestGenerateUsesProvider(t *testing.T) {
	client := NewMockClient(llm.CompletionResponse{Content: "  What a lovely milestone, congratulations!  "})
	g := newTestGenerator(client)

	candidate := g.Generate(context.Background(), englishItem("We just launched our project"))

	require.NotNil(t, candidate)
	assert.Equal(t, "What a lovely milestone, congratulations!", candidate.Text)
	assert.Equal(t, proto.MethodGenerated, candidate.Method)
	assert.Equal(t, "item-en", candidate.SourceItemID)
	assert.Equal(t, 1, client.Calls())
}

func TestGenerateFallsBackOnProviderError(t *testing.T) {
	client := NewFailingMockClient(errors.New("provider down"))
	g := newTestGenerator(client)

	candidate := g.Generate(context.Background(), englishItem("A long day at the office"))

	require.NotNil(t, candidate)
	assert.Equal(t, proto.MethodFallback, candidate.Method)
	assert.Equal(t, proto.LangEnglish, proto.DetectLanguage(candidate.Text))
}

func TestGenerateTimeoutStillReturnsTemplate(t *testing.T) {
	// The provider hangs until its deadline; the chained timeout converts
	// that into an error and the fallback takes over.
	slow := &MockClient{CompleteFunc: func(ctx context.Context, _ llm.CompletionRequest) (llm.CompletionResponse, error) {
		<-ctx.Done()
		return llm.CompletionResponse{}, ctx.Err()
	}}
	client := llm.Chain(slow, llm.WithTimeout(30*time.Millisecond), llm.WithValidation())
	g := newTestGenerator(client)

	start := time.Now()
	candidate := g.Generate(context.Background(), hebrewItem("יום ארוך בעבודה"))

	require.NotNil(t, candidate)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, proto.MethodFallback, candidate.Method)
	assert.Equal(t, proto.LangHebrew, proto.DetectLanguage(candidate.Text))
}

func TestGenerateEmptyItemSkipsProvider(t *testing.T) {
	client := NewMockClient(llm.CompletionResponse{Content: "should not be used"})
	g := newTestGenerator(client)

	candidate := g.Generate(context.Background(), englishItem("   "))

	require.NotNil(t, candidate)
	assert.Equal(t, proto.MethodFallback, candidate.Method)
	assert.Zero(t, client.Calls())
	// Fallback must be reviewer-passable on its own.
	assert.GreaterOrEqual(t, len([]rune(candidate.Text)), 10)
}

func TestGenerateEmptyResponseFallsBack(t *testing.T) {
	base := NewMockClient(llm.CompletionResponse{Content: "  \n "})
	client := llm.Chain(base, llm.WithValidation())
	g := newTestGenerator(client)

	candidate := g.Generate(context.Background(), englishItem("Anyone else watching the game?"))

	require.NotNil(t, candidate)
	assert.Equal(t, proto.MethodFallback, candidate.Method)
}

func TestGenerateUnsupportedLanguageReturnsNil(t *testing.T) {
	client := NewFailingMockClient(errors.New("provider down"))
	g := newTestGenerator(client)

	item := &proto.ContentItem{ID: "item-x", Text: "bonjour", Language: proto.Language("fr")}
	assert.Nil(t, g.Generate(context.Background(), item))
}

func TestFallbackKeywordBuckets(t *testing.T) {
	rand := utils.NewSeededRand(1)

	tests := []struct {
		name     string
		item     *proto.ContentItem
		fragment string
	}{
		{"english share", englishItem("Sharing some exciting news today"), "sharing"},
		{"english thought", englishItem("I think this changes everything"), ""},
		{"hebrew share", hebrewItem("רוצה לשתף משהו חשוב"), "שיתוף"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, ok := fallbackComment(tt.item, rand)
			require.True(t, ok)
			if tt.fragment != "" {
				assert.Contains(t, strings.ToLower(text), tt.fragment)
			}
			assert.Equal(t, tt.item.Language, proto.DetectLanguage(text))
		})
	}
}

func TestFallbackGenericIsSeedDeterministic(t *testing.T) {
	item := englishItem("nothing topical in here")

	first, ok := fallbackComment(item, utils.NewSeededRand(99))
	require.True(t, ok)
	second, ok := fallbackComment(item, utils.NewSeededRand(99))
	require.True(t, ok)
	assert.Equal(t, first, second)
}

func TestImproveUsesProvider(t *testing.T) {
	client := NewMockClient(llm.CompletionResponse{Content: "A longer, friendlier revision of the comment."})
	g := newTestGenerator(client)

	original := &proto.CandidateComment{Text: "nice", SourceItemID: "item-en", Method: proto.MethodGenerated}
	improved := g.Improve(context.Background(), original, englishItem("post"), "comment too short")

	require.NotNil(t, improved)
	assert.Equal(t, proto.MethodImproved, improved.Method)
	assert.Equal(t, "A longer, friendlier revision of the comment.", improved.Text)
	assert.Equal(t, "item-en", improved.SourceItemID)
}

func TestImproveHeuristicTooShort(t *testing.T) {
	client := NewFailingMockClient(errors.New("provider down"))
	g := newTestGenerator(client)

	original := &proto.CandidateComment{Text: "nice", SourceItemID: "item-en", Method: proto.MethodGenerated}
	improved := g.Improve(context.Background(), original, englishItem("post"), "comment too short")

	require.NotNil(t, improved)
	assert.Equal(t, proto.MethodImproved, improved.Method)
	assert.True(t, strings.HasPrefix(improved.Text, "nice"))
	assert.Greater(t, len([]rune(improved.Text)), 10)
}

func TestImproveHeuristicLanguageMismatch(t *testing.T) {
	client := NewFailingMockClient(errors.New("provider down"))
	g := newTestGenerator(client)

	original := &proto.CandidateComment{Text: "תודה thanks for this", SourceItemID: "item-he", Method: proto.MethodGenerated}
	improved := g.Improve(context.Background(), original, hebrewItem("פוסט"), "language mismatch: comment is en but post is he")

	require.NotNil(t, improved)
	assert.Equal(t, proto.LangHebrew, proto.DetectLanguage(improved.Text))
	assert.NotContains(t, improved.Text, "thanks")
}

func TestStripForeignScript(t *testing.T) {
	assert.Equal(t, "תודה ", stripForeignScript("תודה abc", proto.LangHebrew))
	assert.Equal(t, " hello 123", stripForeignScript("שלום hello 123", proto.LangEnglish))
}

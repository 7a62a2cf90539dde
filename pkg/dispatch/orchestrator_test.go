package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"feedpilot/pkg/config"
	"feedpilot/pkg/gen"
	"feedpilot/pkg/gen/llm"
	"feedpilot/pkg/proto"
	"feedpilot/pkg/review"
	"feedpilot/pkg/utils"
)

// fakeCaps implements the page capabilities against an in-memory item map
// keyed by handle ref.
type fakeCaps struct {
	mu            sync.Mutex
	items         map[string]*proto.ContentItem
	extractErr    error
	panicOnRef    string
	extractDelay  time.Duration
	concurrent    int
	maxConcurrent int
	extracted     []string

	likeErr error
	likes   []proto.Handle

	injectErr      error
	injectDeclined bool
	injected       []string
}

func (f *fakeCaps) Extract(_ context.Context, handle proto.Handle) (*proto.ContentItem, error) {
	f.mu.Lock()
	f.concurrent++
	if f.concurrent > f.maxConcurrent {
		f.maxConcurrent = f.concurrent
	}
	delay := f.extractDelay
	f.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.concurrent--

	if handle.Ref == f.panicOnRef && f.panicOnRef != "" {
		panic("extractor exploded")
	}
	if f.extractErr != nil {
		return nil, f.extractErr
	}
	f.extracted = append(f.extracted, handle.Ref)
	return f.items[handle.Ref], nil
}

func (f *fakeCaps) Like(_ context.Context, handle proto.Handle, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.likeErr != nil {
		return f.likeErr
	}
	f.likes = append(f.likes, handle)
	return nil
}

func (f *fakeCaps) Inject(_ context.Context, _ proto.Handle, text string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.injectErr != nil {
		return false, f.injectErr
	}
	if f.injectDeclined {
		return false, nil
	}
	f.injected = append(f.injected, text)
	return true, nil
}

// fakeStore is an in-memory feed.Recorder.
type fakeStore struct {
	mu           sync.Mutex
	itemRecords  map[string]int
	interactions []proto.InteractionKind
}

func newFakeStore() *fakeStore {
	return &fakeStore{itemRecords: make(map[string]int)}
}

func (s *fakeStore) RecordItem(_ context.Context, item *proto.ContentItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.itemRecords[item.ID]++
	return nil
}

func (s *fakeStore) RecordInteraction(_ context.Context, _ string, kind proto.InteractionKind, _ map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interactions = append(s.interactions, kind)
	return nil
}

func (s *fakeStore) kinds() []proto.InteractionKind {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]proto.InteractionKind(nil), s.interactions...)
}

// countingReviewer wraps the real rule engine and counts calls.
type countingReviewer struct {
	mu    sync.Mutex
	calls int
	inner *review.Reviewer
}

func (r *countingReviewer) Review(candidate *proto.CandidateComment, item *proto.ContentItem) proto.ReviewVerdict {
	r.mu.Lock()
	r.calls++
	r.mu.Unlock()
	return r.inner.Review(candidate, item)
}

func (r *countingReviewer) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

type testHarness struct {
	orch     *Orchestrator
	caps     *fakeCaps
	store    *fakeStore
	provider *gen.MockClient
	reviewer *countingReviewer
}

func newHarness(t *testing.T, behavior config.Behavior, caps *fakeCaps, provider *gen.MockClient) *testHarness {
	t.Helper()

	settings := &config.Settings{Behavior: behavior}
	store := newFakeStore()
	reviewer := &countingReviewer{inner: review.New()}
	generator := gen.NewGenerator(llm.Chain(provider, llm.WithValidation()), nil, 512, utils.NewSeededRand(3))

	orch, err := New(Deps{
		Settings:  settings,
		Extractor: caps,
		Liker:     caps,
		Injector:  caps,
		Store:     store,
		Generator: generator,
		Reviewer:  reviewer,
	})
	require.NoError(t, err)

	// Activate the agents without the background loop so tests drive
	// RunNext deterministically.
	require.NoError(t, orch.registry.StartAll(context.Background()))
	t.Cleanup(func() { orch.registry.StopAll(context.Background()) })

	return &testHarness{orch: orch, caps: caps, store: store, provider: provider, reviewer: reviewer}
}

func enqueuePost(h *testHarness, ref string) *proto.Task {
	task := proto.NewTask(proto.TaskProcessPost, proto.Handle{Ref: ref})
	h.orch.queue.Enqueue(task)
	return task
}

func TestNewRejectsAutoCommentsWithoutGenerator(t *testing.T) {
	caps := &fakeCaps{items: map[string]*proto.ContentItem{}}
	settings := &config.Settings{Behavior: config.Behavior{AutoComments: true}}

	_, err := New(Deps{
		Settings:  settings,
		Extractor: caps,
		Liker:     caps,
		Injector:  caps,
		Store:     newFakeStore(),
		Reviewer:  &countingReviewer{inner: review.New()},
	})
	require.ErrorContains(t, err, "generator")

	_, err = New(Deps{
		Settings:  settings,
		Extractor: caps,
		Liker:     caps,
		Injector:  caps,
		Store:     newFakeStore(),
		Generator: gen.NewGenerator(gen.NewMockClient(), nil, 512, utils.NewSeededRand(1)),
	})
	require.ErrorContains(t, err, "reviewer")
}

func TestEmptyEnglishItemGetsFallbackInjectedOnce(t *testing.T) {
	caps := &fakeCaps{items: map[string]*proto.ContentItem{
		"post-1": {ID: "item-1", Text: "", Language: proto.LangEnglish},
	}}
	// The provider is unreachable; the empty post cannot be prompted anyway.
	h := newHarness(t, config.Behavior{AutoComments: true}, caps, gen.NewFailingMockClient(errors.New("unreachable")))

	task := enqueuePost(h, "post-1")
	require.True(t, h.orch.RunNext(context.Background()))

	assert.Equal(t, proto.TaskCompleted, task.Status)
	require.Len(t, caps.injected, 1)
	assert.Equal(t, proto.LangEnglish, proto.DetectLanguage(caps.injected[0]))
	assert.Zero(t, h.provider.Calls())
	assert.Contains(t, h.store.kinds(), proto.InteractionCommentInjected)
	assert.Equal(t, 1, h.store.itemRecords["item-1"])
}

func TestExtractionMissCompletesSilently(t *testing.T) {
	caps := &fakeCaps{items: map[string]*proto.ContentItem{}}
	h := newHarness(t, config.Behavior{AutoComments: true, AutoLikes: true}, caps, gen.NewMockClient())

	task := enqueuePost(h, "gone-post")
	require.True(t, h.orch.RunNext(context.Background()))

	assert.Equal(t, proto.TaskCompleted, task.Status)
	assert.Empty(t, task.Error)
	assert.Empty(t, caps.injected)
	assert.Empty(t, caps.likes)
	assert.Equal(t, []proto.InteractionKind{proto.InteractionExtractionMiss}, h.store.kinds())
	assert.Zero(t, h.provider.Calls())
}

func TestCommentRejectedAfterOneRetry(t *testing.T) {
	caps := &fakeCaps{items: map[string]*proto.ContentItem{
		"post-1": {ID: "item-1", Text: "a thoughtful post about gardening", Language: proto.LangEnglish},
	}}
	// Both the original and the improved text trip the keyword screen.
	provider := gen.NewMockClient(
		llm.CompletionResponse{Content: "you should buy this amazing product"},
		llm.CompletionResponse{Content: "seriously, everyone should buy one of these"},
	)
	h := newHarness(t, config.Behavior{AutoComments: true}, caps, provider)

	task := enqueuePost(h, "post-1")
	require.True(t, h.orch.RunNext(context.Background()))

	// Two-strike bound: at most 2 provider calls and 2 review calls.
	assert.Equal(t, 2, provider.Calls())
	assert.Equal(t, 2, h.reviewer.count())
	assert.Empty(t, caps.injected)
	assert.Equal(t, proto.TaskCompleted, task.Status)
	assert.Contains(t, h.store.kinds(), proto.InteractionCommentRejected)
	assert.NotContains(t, h.store.kinds(), proto.InteractionCommentInjected)
}

func TestApprovedFirstPassSkipsRetry(t *testing.T) {
	caps := &fakeCaps{items: map[string]*proto.ContentItem{
		"post-1": {ID: "item-1", Text: "sunset photos from the hike", Language: proto.LangEnglish},
	}}
	provider := gen.NewMockClient(llm.CompletionResponse{Content: "Gorgeous shots, that trail looks incredible."})
	h := newHarness(t, config.Behavior{AutoComments: true}, caps, provider)

	enqueuePost(h, "post-1")
	require.True(t, h.orch.RunNext(context.Background()))

	assert.Equal(t, 1, provider.Calls())
	assert.Equal(t, 1, h.reviewer.count())
	require.Len(t, caps.injected, 1)
	assert.Equal(t, "Gorgeous shots, that trail looks incredible.", caps.injected[0])
}

func TestAutoLikesRecordsInteraction(t *testing.T) {
	caps := &fakeCaps{items: map[string]*proto.ContentItem{
		"post-1": {ID: "item-1", Text: "hello", Language: proto.LangEnglish},
	}}
	h := newHarness(t, config.Behavior{AutoLikes: true}, caps, gen.NewMockClient())

	enqueuePost(h, "post-1")
	require.True(t, h.orch.RunNext(context.Background()))

	require.Len(t, caps.likes, 1)
	assert.Equal(t, []proto.InteractionKind{proto.InteractionLike}, h.store.kinds())
	assert.Zero(t, h.provider.Calls())
	assert.Empty(t, caps.injected)
}

func TestLikeFailureIsSkippedNotFatal(t *testing.T) {
	caps := &fakeCaps{
		items:   map[string]*proto.ContentItem{"post-1": {ID: "item-1", Text: "hi there", Language: proto.LangEnglish}},
		likeErr: errors.New("button not found"),
	}
	provider := gen.NewMockClient(llm.CompletionResponse{Content: "Nice to see this on my feed today."})
	h := newHarness(t, config.Behavior{AutoLikes: true, AutoComments: true}, caps, provider)

	task := enqueuePost(h, "post-1")
	require.True(t, h.orch.RunNext(context.Background()))

	// The like failure must not block the comment flow or fail the task.
	assert.Equal(t, proto.TaskCompleted, task.Status)
	assert.Empty(t, caps.likes)
	require.Len(t, caps.injected, 1)
}

func TestPanicFailsTaskAndQueueContinues(t *testing.T) {
	caps := &fakeCaps{
		items: map[string]*proto.ContentItem{
			"post-2": {ID: "item-2", Text: "still standing", Language: proto.LangEnglish},
		},
		panicOnRef: "post-1",
	}
	h := newHarness(t, config.Behavior{}, caps, gen.NewMockClient())

	doomed := enqueuePost(h, "post-1")
	survivor := enqueuePost(h, "post-2")

	require.True(t, h.orch.RunNext(context.Background()))
	assert.Equal(t, proto.TaskFailed, doomed.Status)
	assert.Contains(t, doomed.Error, "panic")

	require.True(t, h.orch.RunNext(context.Background()))
	assert.Equal(t, proto.TaskCompleted, survivor.Status)
}

func TestAutoCommentsDisabledNeverGenerates(t *testing.T) {
	caps := &fakeCaps{items: map[string]*proto.ContentItem{
		"post-1": {ID: "item-1", Text: "quiet day", Language: proto.LangEnglish},
	}}
	h := newHarness(t, config.Behavior{}, caps, gen.NewMockClient())

	enqueuePost(h, "post-1")
	require.True(t, h.orch.RunNext(context.Background()))

	assert.Zero(t, h.provider.Calls())
	assert.Empty(t, caps.injected)
}

func TestSingleTaskProcessingInvariant(t *testing.T) {
	caps := &fakeCaps{
		items: map[string]*proto.ContentItem{
			"post-1": {ID: "item-1", Text: "one", Language: proto.LangEnglish},
			"post-2": {ID: "item-2", Text: "two", Language: proto.LangEnglish},
			"post-3": {ID: "item-3", Text: "three", Language: proto.LangEnglish},
		},
		extractDelay: 20 * time.Millisecond,
	}
	h := newHarness(t, config.Behavior{}, caps, gen.NewMockClient())

	for _, ref := range []string{"post-1", "post-2", "post-3"} {
		enqueuePost(h, ref)
	}

	// Drive RunNext from competing goroutines; execution must stay serial
	// and in enqueue order.
	var wg sync.WaitGroup
	for range 3 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.orch.RunNext(context.Background())
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, caps.maxConcurrent)
	assert.Equal(t, []string{"post-1", "post-2", "post-3"}, caps.extracted)
}

func TestStatusIsReadOnlySnapshot(t *testing.T) {
	caps := &fakeCaps{items: map[string]*proto.ContentItem{}}
	h := newHarness(t, config.Behavior{}, caps, gen.NewMockClient())

	enqueuePost(h, "post-1")
	enqueuePost(h, "post-2")

	status := h.orch.Status()
	assert.Nil(t, status.CurrentTask)
	assert.Equal(t, 2, status.QueueDepth)
	require.Len(t, status.Agents, 3)
	assert.Equal(t, proto.AgentTypeMonitor, status.Agents[0].Type)

	// Mutating the snapshot must not affect the orchestrator.
	status.Agents[0].ID = "clobbered"
	assert.Equal(t, "monitor-001", h.orch.Status().Agents[0].ID)
}

func TestHandleEventSeedsQueue(t *testing.T) {
	caps := &fakeCaps{items: map[string]*proto.ContentItem{}}
	h := newHarness(t, config.Behavior{}, caps, gen.NewMockClient())

	h.orch.HandleEvent(proto.PageEvent{Type: proto.EventContentVisible, Handle: proto.Handle{Ref: "post-1"}})
	h.orch.HandleEvent(proto.PageEvent{Type: proto.EventReplyReceived, Handle: proto.Handle{Ref: "reply-1"}})
	h.orch.HandleEvent(proto.PageEvent{Type: proto.EventUserActivity})

	require.Equal(t, 2, h.orch.queue.Len())
	first := h.orch.queue.Dequeue()
	assert.Equal(t, proto.TaskProcessPost, first.Type)
	second := h.orch.queue.Dequeue()
	assert.Equal(t, proto.TaskHandleReply, second.Type)
}

func TestStartStopLifecycleProcessesEnqueuedTasks(t *testing.T) {
	caps := &fakeCaps{items: map[string]*proto.ContentItem{
		"post-1": {ID: "item-1", Text: "hello world", Language: proto.LangEnglish},
	}}
	settings := &config.Settings{Behavior: config.Behavior{}}
	store := newFakeStore()
	generator := gen.NewGenerator(gen.NewMockClient(), nil, 512, utils.NewSeededRand(3))

	orch, err := New(Deps{
		Settings:  settings,
		Extractor: caps,
		Liker:     caps,
		Injector:  caps,
		Store:     store,
		Generator: generator,
		Reviewer:  review.New(),
	})
	require.NoError(t, err)

	require.NoError(t, orch.Start(context.Background()))
	orch.HandleEvent(proto.PageEvent{Type: proto.EventContentVisible, Handle: proto.Handle{Ref: "post-1"}})

	require.Eventually(t, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		return store.itemRecords["item-1"] == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, orch.Stop(context.Background()))
	assert.False(t, orch.monitor.Active())
}

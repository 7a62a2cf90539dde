package dispatch

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"feedpilot/pkg/agent"
	"feedpilot/pkg/proto"
)

// orderedAgent records lifecycle calls into a shared log.
type orderedAgent struct {
	*agent.Runtime
	log      *[]string
	startErr error
}

func newOrderedAgent(id string, agentType proto.AgentType, log *[]string) *orderedAgent {
	return &orderedAgent{Runtime: agent.NewRuntime(id, agentType), log: log}
}

func (a *orderedAgent) Start(_ context.Context) error {
	if a.startErr != nil {
		return a.startErr
	}
	*a.log = append(*a.log, "start:"+a.ID())
	a.SetActive(true)
	return nil
}

func (a *orderedAgent) Stop(_ context.Context) error {
	*a.log = append(*a.log, "stop:"+a.ID())
	a.SetActive(false)
	return nil
}

func (a *orderedAgent) Handle(_ context.Context, _ *proto.Task) error { return nil }

func TestRegistryStartsInOrderStopsInReverse(t *testing.T) {
	var log []string
	r := NewRegistry()
	require.NoError(t, r.Register(newOrderedAgent("monitor-001", proto.AgentTypeMonitor, &log)))
	require.NoError(t, r.Register(newOrderedAgent("scroll-001", proto.AgentTypeScroll, &log)))
	require.NoError(t, r.Register(newOrderedAgent("reply-001", proto.AgentTypeReply, &log)))

	require.NoError(t, r.StartAll(context.Background()))
	r.StopAll(context.Background())

	assert.Equal(t, []string{
		"start:monitor-001", "start:scroll-001", "start:reply-001",
		"stop:reply-001", "stop:scroll-001", "stop:monitor-001",
	}, log)
}

func TestRegistryStartFailureUnwindsStartedAgents(t *testing.T) {
	var log []string
	r := NewRegistry()
	require.NoError(t, r.Register(newOrderedAgent("monitor-001", proto.AgentTypeMonitor, &log)))
	failing := newOrderedAgent("scroll-001", proto.AgentTypeScroll, &log)
	failing.startErr = errors.New("no viewport")
	require.NoError(t, r.Register(failing))

	err := r.StartAll(context.Background())
	require.ErrorContains(t, err, "scroll-001")
	assert.Equal(t, []string{"start:monitor-001", "stop:monitor-001"}, log)
}

func TestRegistryRejectsDuplicateIDs(t *testing.T) {
	var log []string
	r := NewRegistry()
	require.NoError(t, r.Register(newOrderedAgent("monitor-001", proto.AgentTypeMonitor, &log)))
	assert.Error(t, r.Register(newOrderedAgent("monitor-001", proto.AgentTypeMonitor, &log)))
}

func TestRegistrySnapshots(t *testing.T) {
	var log []string
	r := NewRegistry()
	require.NoError(t, r.Register(newOrderedAgent("monitor-001", proto.AgentTypeMonitor, &log)))
	require.NoError(t, r.StartAll(context.Background()))

	snaps := r.Snapshots()
	require.Len(t, snaps, 1)
	assert.Equal(t, "monitor-001", snaps[0].ID)
	assert.True(t, snaps[0].Active)
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/research-assistant/pkg/types"
)

// fakeRunner emits a planning event, waits for release, then completes.
type fakeRunner struct {
	release chan struct{}
}

func (f *fakeRunner) EventBufferSize() int { return 4 }

func (f *fakeRunner) RunWithID(ctx context.Context, id, topic string, events chan<- types.Event) *types.Session {
	events <- types.Event{Stage: types.StagePlanning, Message: "planning"}
	s := &types.Session{ID: id, Topic: topic}
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			s.Status = types.StatusError
			s.Error = ctx.Err().Error()
			return s
		}
	}
	events <- types.Event{Stage: types.StageComplete, Message: "Research complete!"}
	s.Status = types.StatusCompleted
	s.FinalReport = "# Report"
	return s
}

func drain(t *testing.T, ch <-chan types.Event, n int) []types.Event {
	t.Helper()
	var got []types.Event
	for len(got) < n {
		select {
		case ev := <-ch:
			got = append(got, ev)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out after %d of %d events", len(got), n)
		}
	}
	return got
}

func TestRegistryLifecycle(t *testing.T) {
	runner := &fakeRunner{release: make(chan struct{})}
	var (
		mu        sync.Mutex
		completed []string
	)
	reg := NewRegistry(context.Background(), runner, Options{OnComplete: func(s *types.Session) {
		mu.Lock()
		completed = append(completed, s.ID)
		mu.Unlock()
	}}, nil)
	defer reg.Close()

	id := reg.Start("topic")
	assert.Len(t, id, 8)
	assert.Equal(t, 1, reg.Len())

	events, ok := reg.Events(id)
	require.True(t, ok)
	first := drain(t, events, 1)
	assert.Equal(t, types.StagePlanning, first[0].Stage)

	_, ok = reg.Result(id)
	assert.False(t, ok, "no result while running")

	close(runner.release)
	s, err := reg.Wait(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, types.StatusCompleted, s.Status)
	assert.Equal(t, "topic", s.Topic)

	rest := drain(t, events, 2)
	assert.Equal(t, types.StageComplete, rest[0].Stage)
	assert.Equal(t, types.Event{Stage: types.StageDone, Message: DoneMessage}, rest[1])

	got, ok := reg.Result(id)
	require.True(t, ok)
	assert.Same(t, s, got)

	mu.Lock()
	assert.Equal(t, []string{id}, completed)
	mu.Unlock()
}

func TestRegistryUnknownID(t *testing.T) {
	reg := NewRegistry(context.Background(), &fakeRunner{}, Options{}, nil)
	defer reg.Close()

	_, ok := reg.Events("missing")
	assert.False(t, ok)
	_, ok = reg.Result("missing")
	assert.False(t, ok)
	_, err := reg.Wait(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegistryEvictsOldestFinished(t *testing.T) {
	reg := NewRegistry(context.Background(), &fakeRunner{}, Options{MaxSessions: 2}, nil)
	defer reg.Close()

	var ids []string
	for _, topic := range []string{"a", "b", "c"} {
		id := reg.Start(topic)
		_, err := reg.Wait(context.Background(), id)
		require.NoError(t, err)
		ids = append(ids, id)
	}

	require.Eventually(t, func() bool { return reg.Len() == 2 }, 2*time.Second, 5*time.Millisecond)
	_, ok := reg.Events(ids[0])
	assert.False(t, ok)
	_, ok = reg.Result(ids[2])
	assert.True(t, ok)
}

func TestRegistryKeepsRunningSessions(t *testing.T) {
	runner := &fakeRunner{release: make(chan struct{})}
	reg := NewRegistry(context.Background(), runner, Options{MaxSessions: 1}, nil)
	defer reg.Close()

	ids := []string{reg.Start("a"), reg.Start("b"), reg.Start("c")}
	assert.Equal(t, 3, reg.Len())
	for _, id := range ids {
		events, ok := reg.Events(id)
		require.True(t, ok, id)
		assert.Equal(t, types.StagePlanning, drain(t, events, 1)[0].Stage)
		_, finished := reg.Result(id)
		assert.False(t, finished)
	}

	close(runner.release)
	require.Eventually(t, func() bool { return reg.Len() == 1 }, 2*time.Second, 5*time.Millisecond)
	var kept int
	for _, id := range ids {
		if s, ok := reg.Result(id); ok {
			assert.Equal(t, types.StatusCompleted, s.Status)
			kept++
		}
	}
	assert.Equal(t, 1, kept)
}

func TestRegistryCloseCancelsRuns(t *testing.T) {
	runner := &fakeRunner{release: make(chan struct{})}
	reg := NewRegistry(context.Background(), runner, Options{}, nil)

	id := reg.Start("topic")
	reg.Close()

	s, ok := reg.Result(id)
	require.True(t, ok)
	assert.Equal(t, types.StatusError, s.Status)
	assert.Equal(t, context.Canceled.Error(), s.Error)
}

func TestStreamStopsAtTerminal(t *testing.T) {
	events := make(chan types.Event, 4)
	events <- types.Event{Stage: types.StagePlanning}
	events <- types.Event{Stage: types.StageComplete}
	events <- types.Event{Stage: types.StageDone}

	var got []string
	err := Stream(context.Background(), events, time.Minute, func(ev types.Event) error {
		got = append(got, ev.Stage)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{types.StagePlanning, types.StageComplete}, got)
}

func TestStreamHeartbeat(t *testing.T) {
	events := make(chan types.Event)
	var got []types.Event
	err := Stream(context.Background(), events, 10*time.Millisecond, func(ev types.Event) error {
		got = append(got, ev)
		if len(got) == 2 {
			close(events)
		}
		return nil
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	for _, ev := range got {
		assert.Equal(t, types.StageHeartbeat, ev.Stage)
		assert.Equal(t, HeartbeatMessage, ev.Message)
	}
}

func TestStreamEmitError(t *testing.T) {
	events := make(chan types.Event, 1)
	events <- types.Event{Stage: types.StagePlanning}
	boom := errors.New("client gone")

	err := Stream(context.Background(), events, time.Minute, func(types.Event) error { return boom })
	assert.ErrorIs(t, err, boom)
}

func TestStreamContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Stream(ctx, make(chan types.Event), time.Minute, func(types.Event) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

package fanout

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedSource replays a fixed sequence of snapshots, then repeats the
// last one forever.
type scriptedSource struct {
	mu    sync.Mutex
	snaps [][]Item
	idx   int
}

func (s *scriptedSource) Snapshot(context.Context, int) ([]Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := s.snaps[s.idx]
	if s.idx < len(s.snaps)-1 {
		s.idx++
	}
	return snap, nil
}

func item(id, fp, group string) Item {
	return Item{ID: id, Fingerprint: fp, Group: group, Payload: map[string]string{"id": id, "v": fp}}
}

var errEnough = errors.New("collected enough")

// collect runs the streamer until n events arrived or the deadline passes.
func collect(t *testing.T, s *Streamer, n int) []Event {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var events []Event
	err := s.Stream(ctx, func(ev Event) error {
		events = append(events, ev)
		if len(events) >= n {
			return errEnough
		}
		return nil
	})
	require.ErrorIs(t, err, errEnough)
	return events
}

func TestStreamEmitsOneDeltaPerMutation(t *testing.T) {
	src := &scriptedSource{snaps: [][]Item{
		{item("a", "v1", "CONFIRMADO")},
		{item("a", "v1", "CONFIRMADO"), item("b", "v1", "CONFIRMADO")},
		{item("a", "v2", "PREPARANDO"), item("b", "v1", "CONFIRMADO")},
		{item("b", "v1", "CONFIRMADO")},
	}}
	s := NewStreamer(src, Options{Tick: 5 * time.Millisecond, Lifetime: time.Minute, Heartbeat: time.Minute})

	// connected + (appeared, stats) + (changed, stats) + (disappeared, stats)
	events := collect(t, s, 7)

	names := make([]string, len(events))
	for i, ev := range events {
		names[i] = ev.Name
	}
	assert.Equal(t, []string{
		EventConnected,
		EventAppeared, EventStats,
		EventChanged, EventStats,
		EventDisappeared, EventStats,
	}, names)

	conn, ok := events[0].Data.(connectedPayload)
	require.True(t, ok)
	assert.Len(t, conn.Items, 1)
	assert.Equal(t, 1, conn.Stats.Total)
	assert.Equal(t, 1, conn.Stats.Groups["CONFIRMADO"])

	appeared := events[1].Data.(changePayload)
	assert.Equal(t, "b", appeared.ID)
	changed := events[3].Data.(changePayload)
	assert.Equal(t, "a", changed.ID)
	gone := events[5].Data.(changePayload)
	assert.Equal(t, "a", gone.ID)
	assert.Nil(t, gone.Item)

	finalStats := events[6].Data.(statsPayload)
	assert.Equal(t, 1, finalStats.Total)
}

func TestStreamHeartbeatWhileIdle(t *testing.T) {
	src := &scriptedSource{snaps: [][]Item{{item("a", "v1", "PRONTO")}}}
	s := NewStreamer(src, Options{Tick: 5 * time.Millisecond, Lifetime: time.Minute, Heartbeat: 15 * time.Millisecond})

	events := collect(t, s, 2)
	assert.Equal(t, EventConnected, events[0].Name)
	assert.Equal(t, EventHeartbeat, events[1].Name)
}

func TestStreamShutdownAtLifetime(t *testing.T) {
	src := &scriptedSource{snaps: [][]Item{{item("a", "v1", "PRONTO")}}}
	s := NewStreamer(src, Options{Tick: 5 * time.Millisecond, Lifetime: 30 * time.Millisecond, Heartbeat: time.Minute})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var names []string
	err := s.Stream(ctx, func(ev Event) error {
		names = append(names, ev.Name)
		return nil
	})
	require.NoError(t, err)
	require.NotEmpty(t, names)
	assert.Equal(t, EventShutdown, names[len(names)-1])
}

func TestStreamStopsOnSendError(t *testing.T) {
	src := &scriptedSource{snaps: [][]Item{{item("a", "v1", "PRONTO")}}}
	s := NewStreamer(src, Options{Tick: 5 * time.Millisecond, Lifetime: time.Minute, Heartbeat: time.Minute})

	boom := errors.New("client went away")
	err := s.Stream(context.Background(), func(Event) error { return boom })
	assert.ErrorIs(t, err, boom)
}

func TestDiffOrdering(t *testing.T) {
	prev := indexByID([]Item{item("a", "v1", "g"), item("b", "v1", "g"), item("c", "v1", "g")})
	cur := []Item{item("b", "v2", "g"), item("d", "v1", "g")}

	events := diff(prev, cur)
	require.Len(t, events, 4)
	assert.Equal(t, EventChanged, events[0].Name)
	assert.Equal(t, EventAppeared, events[1].Name)
	// disappearances come last, in id order
	assert.Equal(t, EventDisappeared, events[2].Name)
	assert.Equal(t, "a", events[2].Data.(changePayload).ID)
	assert.Equal(t, EventDisappeared, events[3].Name)
	assert.Equal(t, "c", events[3].Data.(changePayload).ID)
}

func TestDiffNoChanges(t *testing.T) {
	snap := []Item{item("a", "v1", "g")}
	assert.Empty(t, diff(indexByID(snap), snap))
}

// Package fanout turns a polled snapshot source into a per-subscriber event
// stream. Each subscriber diffs consecutive snapshots on its own ticker, so a
// slow consumer never delays anyone else.
package fanout

import (
	"context"
	"sort"
	"time"

	"burger-house/internal/logging"
)

// Item is one entry of a snapshot. Fingerprint must change whenever the
// entry's visible state changes; Group buckets entries for the stats counts.
type Item struct {
	ID          string
	Fingerprint string
	Group       string
	Payload     any
}

// Source produces the current snapshot, bounded by limit.
type Source interface {
	Snapshot(ctx context.Context, limit int) ([]Item, error)
}

const (
	EventConnected   = "connected"
	EventAppeared    = "appeared"
	EventChanged     = "changed"
	EventDisappeared = "disappeared"
	EventStats       = "stats"
	EventHeartbeat   = "heartbeat"
	EventShutdown    = "shutdown"
)

type Event struct {
	Name string
	Data any
}

type statsPayload struct {
	Total  int            `json:"total"`
	Groups map[string]int `json:"groups"`
	At     time.Time      `json:"at"`
}

type connectedPayload struct {
	Items []any        `json:"items"`
	Stats statsPayload `json:"stats"`
}

type changePayload struct {
	ID   string `json:"id"`
	Item any    `json:"item,omitempty"`
}

type Streamer struct {
	src           Source
	tick          time.Duration
	lifetime      time.Duration
	heartbeat     time.Duration
	snapshotLimit int
	log           *logging.Logger
}

type Options struct {
	Tick          time.Duration
	Lifetime      time.Duration
	Heartbeat     time.Duration
	SnapshotLimit int
}

func NewStreamer(src Source, opts Options) *Streamer {
	if opts.Tick <= 0 {
		opts.Tick = 2 * time.Second
	}
	if opts.Lifetime <= 0 {
		opts.Lifetime = 30 * time.Minute
	}
	if opts.Heartbeat <= 0 {
		opts.Heartbeat = 30 * time.Second
	}
	if opts.SnapshotLimit <= 0 {
		opts.SnapshotLimit = 200
	}
	return &Streamer{
		src:           src,
		tick:          opts.Tick,
		lifetime:      opts.Lifetime,
		heartbeat:     opts.Heartbeat,
		snapshotLimit: opts.SnapshotLimit,
		log:           logging.New("fanout"),
	}
}

// Stream serves one subscriber until ctx is cancelled, send fails or the
// lifetime cap is reached. It opens with a connected event carrying the full
// snapshot, then emits appeared/changed/disappeared deltas plus stats on
// every tick that saw a change, and heartbeats while idle.
func (s *Streamer) Stream(ctx context.Context, send func(Event) error) error {
	snap, err := s.src.Snapshot(ctx, s.snapshotLimit)
	if err != nil {
		return err
	}
	known := indexByID(snap)
	if err := send(Event{Name: EventConnected, Data: connectedPayload{
		Items: payloads(snap),
		Stats: stats(snap),
	}}); err != nil {
		return err
	}

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()
	deadline := time.NewTimer(s.lifetime)
	defer deadline.Stop()

	lastSent := time.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return send(Event{Name: EventShutdown, Data: map[string]string{"reason": "lifetime"}})
		case <-ticker.C:
			cur, err := s.src.Snapshot(ctx, s.snapshotLimit)
			if err != nil {
				s.log.Error("snapshot_failed", err, nil)
				continue
			}
			events := diff(known, cur)
			if len(events) > 0 {
				events = append(events, Event{Name: EventStats, Data: stats(cur)})
				for _, ev := range events {
					if err := send(ev); err != nil {
						return err
					}
				}
				lastSent = time.Now()
			} else if time.Since(lastSent) >= s.heartbeat {
				if err := send(Event{Name: EventHeartbeat, Data: map[string]any{"at": time.Now().UTC()}}); err != nil {
					return err
				}
				lastSent = time.Now()
			}
			known = indexByID(cur)
		}
	}
}

// diff compares the previous index against the current snapshot and emits
// one event per entry whose presence or fingerprint changed, in snapshot
// order with disappearances last.
func diff(prev map[string]Item, cur []Item) []Event {
	var events []Event
	seen := make(map[string]struct{}, len(cur))
	for _, it := range cur {
		seen[it.ID] = struct{}{}
		old, ok := prev[it.ID]
		switch {
		case !ok:
			events = append(events, Event{Name: EventAppeared, Data: changePayload{ID: it.ID, Item: it.Payload}})
		case old.Fingerprint != it.Fingerprint:
			events = append(events, Event{Name: EventChanged, Data: changePayload{ID: it.ID, Item: it.Payload}})
		}
	}
	var gone []string
	for id := range prev {
		if _, ok := seen[id]; !ok {
			gone = append(gone, id)
		}
	}
	sort.Strings(gone)
	for _, id := range gone {
		events = append(events, Event{Name: EventDisappeared, Data: changePayload{ID: id}})
	}
	return events
}

func indexByID(items []Item) map[string]Item {
	m := make(map[string]Item, len(items))
	for _, it := range items {
		m[it.ID] = it
	}
	return m
}

func payloads(items []Item) []any {
	out := make([]any, 0, len(items))
	for _, it := range items {
		out = append(out, it.Payload)
	}
	return out
}

func stats(items []Item) statsPayload {
	groups := make(map[string]int)
	for _, it := range items {
		groups[it.Group]++
	}
	return statsPayload{Total: len(items), Groups: groups, At: time.Now().UTC()}
}

// Package events implements the bounded, ordered event bus that feeds
// internal/sse (spec's EventBus component): monotonic event IDs, IST
// timestamps, coalescing of panel_full events by coalesce key, and a
// bounded backlog so a slow or disconnected consumer can resync by
// replaying from its last seen ID instead of the publisher blocking.
package events

import (
	"sync"

	"github.com/aristath/g6/pkg/istclock"
)

// EventType is the bus-level event discriminator. hello, full_snapshot,
// and heartbeat are per-connection concepts synthesized by internal/sse
// at connect/idle time and are not published on the shared bus; the
// types below are the ones that flow through it.
type EventType string

const (
	// TypePanelFull carries every current panel and is coalesced: a
	// new TypePanelFull with the same CoalesceKey replaces the
	// previous one in the backlog rather than growing it. internal/sse
	// renders this to the wire as a full_snapshot event.
	TypePanelFull EventType = "panel_full"
	// TypePanelUpdate/TypePanelDiff carry only the panels that changed
	// since the previous cycle.
	TypePanelUpdate EventType = "panel_update"
	TypePanelDiff   EventType = "panel_diff"
	// TypeResyncRequired tells connected consumers their baseline is
	// stale and they must fetch /summary/resync.
	TypeResyncRequired EventType = "resync_required"
	TypeError          EventType = "error"
	// TypeBye is broadcast once at graceful shutdown.
	TypeBye EventType = "bye"
)

// Event is one entry on the bus (spec: "Event: { id, seq, type, ts_ist,
// coalesce_key?, payload }"). IDs are strictly increasing within a Bus.
type Event struct {
	ID          uint64      `json:"id"`
	Seq         uint64      `json:"seq"`
	Type        EventType   `json:"type"`
	TSIst       string      `json:"ts_ist"`
	CoalesceKey string      `json:"coalesce_key,omitempty"`
	Payload     interface{} `json:"payload"`
}

// DropReason labels why Publish discarded something, for
// events_dropped_total{reason} (wired by internal/metrics).
type DropReason string

const (
	DropReasonBacklogFull     DropReason = "backlog_full"
	DropReasonSlowSubscriber  DropReason = "slow_subscriber"
)

// subscriberBuffer is the per-subscriber channel depth; a subscriber
// slower than this drops events rather than stalling Publish, matching
// the teacher's events_stream.go non-blocking-send-drop-if-full pattern.
const subscriberBuffer = 100

type subscription struct {
	id    uint64
	types map[EventType]bool // nil means all types
	ch    chan *Event
}

// Bus is a bounded, ordered, fan-out event log.
type Bus struct {
	mu              sync.Mutex
	capacity        int
	nextID          uint64
	nextSeq         uint64
	backlog         []*Event
	lastPanelFullID uint64
	subs            map[uint64]*subscription
	nextSubID       uint64
	onDrop          func(reason DropReason)
}

// NewBus builds a Bus with the given backlog capacity (max_backlog).
// onDrop may be nil.
func NewBus(capacity int, onDrop func(reason DropReason)) *Bus {
	if capacity <= 0 {
		capacity = 1
	}
	return &Bus{
		capacity: capacity,
		subs:     make(map[uint64]*subscription),
		onDrop:   onDrop,
	}
}

// Publish appends a new event, evicting backlog entries as needed, and
// fans it out to every matching, currently-subscribed consumer. Publish
// never blocks on a slow subscriber.
func (b *Bus) Publish(eventType EventType, coalesceKey string, payload interface{}) *Event {
	b.mu.Lock()

	b.nextID++
	b.nextSeq++
	ev := &Event{
		ID:          b.nextID,
		Seq:         b.nextSeq,
		Type:        eventType,
		TSIst:       istclock.Now().Format("2006-01-02T15:04:05.000-07:00"),
		CoalesceKey: coalesceKey,
		Payload:     payload,
	}

	if coalesceKey != "" {
		b.dropCoalescedLocked(coalesceKey)
	}
	b.backlog = append(b.backlog, ev)
	if eventType == TypePanelFull {
		b.lastPanelFullID = ev.ID
	}
	b.evictLocked()

	subs := make([]*subscription, 0, len(b.subs))
	for _, s := range b.subs {
		if s.types == nil || s.types[eventType] {
			subs = append(subs, s)
		}
	}
	b.mu.Unlock()

	for _, s := range subs {
		select {
		case s.ch <- ev:
		default:
			b.drop(DropReasonSlowSubscriber)
		}
	}
	return ev
}

// dropCoalescedLocked removes any existing backlog entry sharing
// coalesceKey, so only the latest survives (spec: "panel_full are
// coalesced"). Callers hold b.mu.
func (b *Bus) dropCoalescedLocked(coalesceKey string) {
	out := b.backlog[:0]
	for _, ev := range b.backlog {
		if ev.CoalesceKey == coalesceKey {
			continue
		}
		out = append(out, ev)
	}
	b.backlog = out
}

// evictLocked drops the oldest non-panel_full event first; only when
// none exists does it fall back to dropping the absolute oldest entry.
// Callers hold b.mu.
func (b *Bus) evictLocked() {
	for len(b.backlog) > b.capacity {
		idx := -1
		for i, ev := range b.backlog {
			if ev.Type != TypePanelFull {
				idx = i
				break
			}
		}
		if idx < 0 {
			idx = 0
		}
		b.backlog = append(b.backlog[:idx], b.backlog[idx+1:]...)
		b.drop(DropReasonBacklogFull)
	}
}

func (b *Bus) drop(reason DropReason) {
	if b.onDrop != nil {
		b.onDrop(reason)
	}
}

// Subscribe registers a new fan-out channel. types == nil subscribes to
// every event type. Callers must Unsubscribe when done.
func (b *Bus) Subscribe(types []EventType) (id uint64, ch <-chan *Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextSubID++
	id = b.nextSubID
	var typeSet map[EventType]bool
	if types != nil {
		typeSet = make(map[EventType]bool, len(types))
		for _, t := range types {
			typeSet[t] = true
		}
	}
	c := make(chan *Event, subscriberBuffer)
	b.subs[id] = &subscription{id: id, types: typeSet, ch: c}
	return id, c
}

// Unsubscribe removes and closes a subscriber's channel.
func (b *Bus) Unsubscribe(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if s, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(s.ch)
	}
}

// Since returns every backlog event with ID strictly greater than
// lastEventID, in ID order, used to replay a reconnecting consumer's
// Last-Event-ID.
func (b *Bus) Since(lastEventID uint64) []*Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*Event, 0, len(b.backlog))
	for _, ev := range b.backlog {
		if ev.ID > lastEventID {
			out = append(out, ev)
		}
	}
	return out
}

// LatestID returns the most recently assigned event ID, or 0 if none
// have been published yet.
func (b *Bus) LatestID() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.nextID
}

// LastPanelFullID returns the ID of the most recently published
// TypePanelFull event, used by the snapshot gap guard
// (latest_event_id - last_panel_full_id > snapshot_gap_max).
func (b *Bus) LastPanelFullID() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastPanelFullID
}

// HasUnknownBaseline reports whether lastEventID is too old to replay
// from the current backlog (the consumer's baseline fell out of the
// ring), meaning the caller must force a full resync.
func (b *Bus) HasUnknownBaseline(lastEventID uint64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if lastEventID == 0 || len(b.backlog) == 0 {
		return false
	}
	return lastEventID < b.backlog[0].ID-1
}

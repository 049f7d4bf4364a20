// Package sse implements the SSEPublisher: /summary/events,
// /summary/resync, /summary/health (spec §4.7). Auth via token +
// optional IP/UA allow-lists, per-connection token-bucket event
// throttling, heartbeats, and a server-side snapshot gap guard.
package sse

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/g6/internal/events"
	"github.com/aristath/g6/internal/panels"
	"github.com/aristath/g6/internal/provider"
	"github.com/aristath/g6/pkg/istclock"
	"github.com/aristath/g6/pkg/logger"
)

// Publisher serves the three summary HTTP endpoints and fans out bus
// events to every connected consumer.
type Publisher struct {
	bus      *events.Bus
	registry *panels.Registry
	cfg      Config
	log      zerolog.Logger

	guard *snapshotGuard

	mu          sync.Mutex
	activeConns int
	connectLog  map[string][]time.Time // ip -> recent connect timestamps

	cycle       int64
	eventsSent  int64
	schemaVer   string
	startedAt   time.Time
	shuttingDown int32
}

// NewPublisher builds a Publisher. schemaVersion is reported verbatim
// in /summary/resync and /summary/health.
func NewPublisher(bus *events.Bus, registry *panels.Registry, cfg Config, schemaVersion string, log zerolog.Logger) *Publisher {
	return &Publisher{
		bus:        bus,
		registry:   registry,
		cfg:        cfg,
		log:        logger.Component(log, "sse"),
		guard:      newSnapshotGuard(cfg.SnapshotGapMax, time.Duration(cfg.ForceFullRetrySeconds)*time.Second),
		connectLog: make(map[string][]time.Time),
		schemaVer:  schemaVersion,
		startedAt:  time.Now(),
	}
}

// SetCycle records the most recently completed scheduler cycle number,
// reported in /summary/health.
func (p *Publisher) SetCycle(cycle int64) {
	atomic.StoreInt64(&p.cycle, cycle)
}

// MaybeForceFullSnapshot checks the snapshot guard and, if the bus has
// drifted too far ahead of the last panel_full, publishes a fresh one.
// Intended to be called once per scheduler cycle.
func (p *Publisher) MaybeForceFullSnapshot() {
	if force, reason := p.guard.ShouldForceFull(p.bus); force {
		p.log.Warn().Str("reason", reason).Msg("snapshot guard forcing full panel republish")
		p.bus.Publish(events.TypePanelFull, "panel_full", p.registry.Snapshot())
	}
}

// Routes registers the three endpoints on r.
func (p *Publisher) Routes(r chi.Router) {
	r.Get("/summary/events", p.handleEvents)
	r.Get("/summary/resync", p.handleResync)
	r.Get("/summary/health", p.handleHealth)
}

// Shutdown broadcasts a bye event so every connected consumer sees it
// before the HTTP server stops accepting connections.
func (p *Publisher) Shutdown(ctx context.Context) {
	atomic.StoreInt32(&p.shuttingDown, 1)
	p.bus.Publish(events.TypeBye, "", nil)
	// give connections a brief window to flush the bye frame
	select {
	case <-time.After(200 * time.Millisecond):
	case <-ctx.Done():
	}
}

func (p *Publisher) handleEvents(w http.ResponseWriter, r *http.Request) {
	if !p.authorize(w, r) {
		return
	}

	ip := clientIP(r)
	if !p.allowConnect(ip) {
		w.Header().Set("Retry-After", "5")
		http.Error(w, "too many connections", http.StatusTooManyRequests)
		return
	}
	defer p.releaseConnect()

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	connID := uuid.New().String()
	log := p.log.With().Str("conn_id", connID).Str("remote_ip", ip).Logger()
	log.Info().Msg("sse client connected")

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	fmt.Fprintf(w, "retry: %d\n\n", int(p.cfg.HeartbeatInterval.Milliseconds()))

	lastEventID := parseLastEventID(r.Header.Get("Last-Event-ID"))
	throttle := provider.NewRateLimiter(provider.RateLimiterConfig{QPS: p.cfg.EventsPerSec})

	subID, ch := p.bus.Subscribe(nil)
	defer p.bus.Unsubscribe(subID)

	p.writeEvent(w, flusher, &events.Event{Type: "hello", TSIst: istclock.Now().Format(time.RFC3339), Payload: p.registry.Hashes()})
	p.writeEvent(w, flusher, &events.Event{Type: "full_snapshot", TSIst: istclock.Now().Format(time.RFC3339), Payload: p.registry.Snapshot()})

	for _, ev := range p.bus.Since(lastEventID) {
		p.writeThrottled(w, flusher, ev, throttle)
	}

	heartbeat := time.NewTicker(p.cfg.HeartbeatInterval)
	defer heartbeat.Stop()

	done := r.Context().Done()
	for {
		select {
		case <-done:
			log.Info().Msg("sse client disconnected")
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			p.writeThrottled(w, flusher, ev, throttle)
			if ev.Type == events.TypeBye {
				return
			}
		case <-heartbeat.C:
			fmt.Fprint(w, ": heartbeat\n\n")
			flusher.Flush()
		}
	}
}

func (p *Publisher) writeThrottled(w http.ResponseWriter, f http.Flusher, ev *events.Event, throttle *provider.RateLimiter) {
	if err := throttle.Acquire(context.Background(), time.Now()); err != nil {
		return // dropped by the per-connection throttle
	}
	p.writeEvent(w, f, ev)
}

func (p *Publisher) writeEvent(w http.ResponseWriter, f http.Flusher, ev *events.Event) {
	b, err := json.Marshal(ev.Payload)
	if err != nil {
		b = []byte(`{"error":"encode failed"}`)
	}
	truncated := false
	if p.cfg.MaxEventBytes > 0 && len(b) > p.cfg.MaxEventBytes {
		b = b[:p.cfg.MaxEventBytes]
		truncated = true
	}

	if ev.ID != 0 {
		fmt.Fprintf(w, "id: %d\n", ev.ID)
	}
	fmt.Fprintf(w, "event: %s\n", ev.Type)
	if truncated {
		fmt.Fprintf(w, "data: {\"truncated\":true,\"payload\":%s}\n\n", b)
	} else {
		fmt.Fprintf(w, "data: %s\n\n", b)
	}
	f.Flush()
	atomic.AddInt64(&p.eventsSent, 1)
}

func (p *Publisher) handleResync(w http.ResponseWriter, r *http.Request) {
	if !p.authorize(w, r) {
		return
	}
	resp := map[string]interface{}{
		"schema_version": p.schemaVer,
		"cycle":          atomic.LoadInt64(&p.cycle),
		"panels":         p.registry.Snapshot(),
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (p *Publisher) handleHealth(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	clients := p.activeConns
	p.mu.Unlock()

	resp := map[string]interface{}{
		"ok":             atomic.LoadInt32(&p.shuttingDown) == 0,
		"cycle":          atomic.LoadInt64(&p.cycle),
		"schema_version": p.schemaVer,
		"sse": map[string]interface{}{
			"clients":     clients,
			"events_sent": atomic.LoadInt64(&p.eventsSent),
		},
		"uptime_seconds": time.Since(p.startedAt).Seconds(),
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (p *Publisher) authorize(w http.ResponseWriter, r *http.Request) bool {
	if p.cfg.Token != "" && r.Header.Get("X-API-Token") != p.cfg.Token {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return false
	}
	ip := clientIP(r)
	if len(p.cfg.AllowedIPs) > 0 && !contains(p.cfg.AllowedIPs, ip) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return false
	}
	if len(p.cfg.AllowedUAPrefixes) > 0 {
		ua := r.UserAgent()
		ok := false
		for _, prefix := range p.cfg.AllowedUAPrefixes {
			if strings.HasPrefix(ua, prefix) {
				ok = true
				break
			}
		}
		if !ok {
			http.Error(w, "forbidden", http.StatusForbidden)
			return false
		}
	}
	return true
}

// allowConnect enforces the per-IP connect rate and the global
// MaxConnections cap, recording this connection if admitted.
func (p *Publisher) allowConnect(ip string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cfg.MaxConnections > 0 && p.activeConns >= p.cfg.MaxConnections {
		return false
	}

	if p.cfg.ConnectRatePerIP > 0 {
		now := time.Now()
		cutoff := now.Add(-p.cfg.ConnectRateWindow)
		recent := p.connectLog[ip][:0]
		for _, t := range p.connectLog[ip] {
			if t.After(cutoff) {
				recent = append(recent, t)
			}
		}
		if len(recent) >= p.cfg.ConnectRatePerIP {
			p.connectLog[ip] = recent
			return false
		}
		p.connectLog[ip] = append(recent, now)
	}

	p.activeConns++
	return true
}

func (p *Publisher) releaseConnect() {
	p.mu.Lock()
	p.activeConns--
	p.mu.Unlock()
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func parseLastEventID(s string) uint64 {
	var id uint64
	if s == "" {
		return 0
	}
	_, err := fmt.Sscanf(s, "%d", &id)
	if err != nil {
		return 0
	}
	return id
}

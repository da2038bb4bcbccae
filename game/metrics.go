package game

import "sync/atomic"

// Metrics records engine runtime counters for monitoring and debugging.
// All fields are updated atomically so the HTTP layer can read a snapshot
// without touching the engine goroutine.
type Metrics struct {
	TickCount       int64
	TotalTickNs     int64
	CommandsApplied int64
	ErrorsSent      int64
	RoomsCreated    int64
	RoomsEvicted    int64
	TickPanics      int64
}

func (m *Metrics) IncCommandsApplied() { atomic.AddInt64(&m.CommandsApplied, 1) }
func (m *Metrics) IncErrorsSent()      { atomic.AddInt64(&m.ErrorsSent, 1) }
func (m *Metrics) IncRoomsCreated()    { atomic.AddInt64(&m.RoomsCreated, 1) }
func (m *Metrics) IncRoomsEvicted()    { atomic.AddInt64(&m.RoomsEvicted, 1) }
func (m *Metrics) IncTickPanics()      { atomic.AddInt64(&m.TickPanics, 1) }

func (m *Metrics) AddTick(ns int64) {
	atomic.AddInt64(&m.TickCount, 1)
	atomic.AddInt64(&m.TotalTickNs, ns)
}

// Snapshot returns a read-only copy for HTTP output.
func (m *Metrics) Snapshot() map[string]any {
	tick := atomic.LoadInt64(&m.TickCount)
	total := atomic.LoadInt64(&m.TotalTickNs)
	var avgMs float64
	if tick > 0 {
		avgMs = float64(total) / float64(tick) / 1e6
	}
	return map[string]any{
		"tick_count":       tick,
		"avg_tick_ms":      avgMs,
		"commands_applied": atomic.LoadInt64(&m.CommandsApplied),
		"errors_sent":      atomic.LoadInt64(&m.ErrorsSent),
		"rooms_created":    atomic.LoadInt64(&m.RoomsCreated),
		"rooms_evicted":    atomic.LoadInt64(&m.RoomsEvicted),
		"tick_panics":      atomic.LoadInt64(&m.TickPanics),
	}
}

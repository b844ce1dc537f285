package topology

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/codewandler/clstr-agency/core/ds"
	"github.com/codewandler/clstr-agency/core/route"
	"github.com/codewandler/clstr-agency/ports/agency"
)

// Heartbeat statuses reported by servers.
const (
	StatusServingSync  = "SERVINGSYNC"
	StatusInSync       = "INSYNC"
	StatusServingAsync = "SERVINGASYNC"
	StatusSyncing      = "SYNCING"
)

// DefaultHeartbeatInterval is assumed when the store holds no interval.
const DefaultHeartbeatInterval = time.Second

// HeartbeatRecord is the last report of one server.
type HeartbeatRecord struct {
	Status string `json:"status"`
	// Time is the raw report time. It is kept as stored so an unparseable
	// value can still be shown.
	Time string `json:"time"`
}

func (h HeartbeatRecord) Serving() bool {
	return h.Status == StatusServingSync || h.Status == StatusServingAsync
}

func (h HeartbeatRecord) InSync() bool {
	return h.Status == StatusServingSync || h.Status == StatusInSync
}

func (h HeartbeatRecord) OutSync() bool {
	return h.Status == StatusServingAsync || h.Status == StatusSyncing
}

// ReportedAt parses Time. ok is false for a missing or malformed time.
func (h HeartbeatRecord) ReportedAt() (t time.Time, ok bool) {
	t, err := time.Parse(time.RFC3339Nano, h.Time)
	return t, err == nil
}

// HeartbeatMonitor classifies servers by the heartbeats stored under Sync.
// Nothing is polled in the background; every call reads on demand.
type HeartbeatMonitor struct {
	states   route.VersionChecker
	interval route.Getter
	log      *slog.Logger

	mu    sync.Mutex
	known time.Duration
}

func newHeartbeatMonitor(r *route.Router, log *slog.Logger) *HeartbeatMonitor {
	root := r.AddLevel(r.Root(), "Sync", "Sync", route.Get|route.List)
	return &HeartbeatMonitor{
		states:   r.AddLevel(root, "ServerStates", "ServerStates", readOps).(route.VersionChecker),
		interval: r.AddLevel(root, "HeartbeatIntervalMs", "HeartbeatIntervalMs", route.Get).(route.Getter),
		log:      log.With(slog.String("scope", "Sync")),
	}
}

// HeartbeatInterval reads the configured interval once and remembers it.
func (h *HeartbeatMonitor) HeartbeatInterval(ctx context.Context) (time.Duration, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.known > 0 {
		return h.known, nil
	}

	v, found, err := h.interval.Get(ctx, false)
	if err != nil {
		return 0, err
	}
	ms, decErr := agency.Decode[float64](v)
	if !found || decErr != nil || ms <= 0 {
		h.log.Warn("no heartbeat interval configured, using default",
			slog.Duration("default", DefaultHeartbeatInterval))
		return DefaultHeartbeatInterval, nil
	}
	h.known = time.Duration(ms * float64(time.Millisecond))
	return h.known, nil
}

// List returns the last record of every reporting server.
func (h *HeartbeatMonitor) List(ctx context.Context) (map[string]HeartbeatRecord, error) {
	v, found, err := h.states.Read(ctx)
	if err != nil {
		return nil, err
	}
	out := map[string]HeartbeatRecord{}
	if !found {
		return out, nil
	}
	entries, _ := v.(map[string]any)
	for name, raw := range entries {
		if agency.IsReserved(name) {
			continue
		}
		rec, err := agency.Decode[HeartbeatRecord](raw)
		if err != nil {
			h.log.Warn("malformed heartbeat", slog.String("server", name), slog.Any("error", err))
			continue
		}
		out[name] = rec
	}
	return out, nil
}

func (h *HeartbeatMonitor) filter(ctx context.Context, keep func(HeartbeatRecord) bool) ([]string, error) {
	records, err := h.List(ctx)
	if err != nil {
		return nil, err
	}
	names := ds.KeySet(records).Filter(func(name string) bool { return keep(records[name]) })
	return names.Values(), nil
}

// Serving returns the servers answering requests, sorted.
func (h *HeartbeatMonitor) Serving(ctx context.Context) ([]string, error) {
	return h.filter(ctx, HeartbeatRecord.Serving)
}

func (h *HeartbeatMonitor) InSync(ctx context.Context) ([]string, error) {
	return h.filter(ctx, HeartbeatRecord.InSync)
}

func (h *HeartbeatMonitor) OutSync(ctx context.Context) ([]string, error) {
	return h.filter(ctx, HeartbeatRecord.OutSync)
}

// Inactive returns the reporting servers outside InSync and OutSync, sorted.
func (h *HeartbeatMonitor) Inactive(ctx context.Context) ([]string, error) {
	records, err := h.List(ctx)
	if err != nil {
		return nil, err
	}
	reported := ds.KeySet(records)
	with := func(keep func(HeartbeatRecord) bool) func(string) bool {
		return func(name string) bool { return keep(records[name]) }
	}
	active := reported.Filter(with(HeartbeatRecord.InSync)).Union(reported.Filter(with(HeartbeatRecord.OutSync)))
	return reported.Removals(active).Values(), nil
}

// Stale returns the servers whose last report is older than twice the
// heartbeat interval before now, sorted. A report without a readable time is
// stale.
func (h *HeartbeatMonitor) Stale(ctx context.Context, now time.Time) ([]string, error) {
	interval, err := h.HeartbeatInterval(ctx)
	if err != nil {
		return nil, err
	}
	deadline := now.Add(-2 * interval)
	return h.filter(ctx, func(r HeartbeatRecord) bool {
		at, ok := r.ReportedAt()
		return !ok || at.Before(deadline)
	})
}

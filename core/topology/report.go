package topology

import (
	"context"
	"time"
)

// Report is a point-in-time summary of the cluster metadata.
type Report struct {
	GeneratedAt       time.Time                  `json:"generatedAt"`
	HeartbeatInterval time.Duration              `json:"heartbeatInterval"`
	Servers           map[Scope][]ServerInfo     `json:"servers"`
	Coordinators      map[Scope][]string         `json:"coordinators"`
	Diffs             []*DiffResult              `json:"diffs"`
	Heartbeats        map[string]HeartbeatRecord `json:"heartbeats"`
	Stale             []string                   `json:"stale"`
}

// Report reads every scope, both diffs and the heartbeats as of now.
func (c *Cluster) Report(ctx context.Context, now time.Time) (*Report, error) {
	rep := &Report{
		GeneratedAt:  now,
		Servers:      map[Scope][]ServerInfo{},
		Coordinators: map[Scope][]string{},
	}
	for _, s := range []Scope{Target, Plan, Current} {
		view, _ := c.Scope(s)
		servers, err := view.Servers.Sorted(ctx)
		if err != nil {
			return nil, err
		}
		coordinators, err := view.Coordinators.List(ctx)
		if err != nil {
			return nil, err
		}
		rep.Servers[s] = servers
		rep.Coordinators[s] = coordinators
	}

	for _, d := range []*ScopeDiff{c.Diff.Plan, c.Diff.Current} {
		servers, err := d.DBServers(ctx)
		if err != nil {
			return nil, err
		}
		coordinators, err := d.Coordinators(ctx)
		if err != nil {
			return nil, err
		}
		rep.Diffs = append(rep.Diffs, servers, coordinators)
	}

	var err error
	if rep.HeartbeatInterval, err = c.Sync.HeartbeatInterval(ctx); err != nil {
		return nil, err
	}
	if rep.Heartbeats, err = c.Sync.List(ctx); err != nil {
		return nil, err
	}
	if rep.Stale, err = c.StaleServers(ctx, now); err != nil {
		return nil, err
	}
	return rep, nil
}

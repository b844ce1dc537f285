package topology

import (
	"context"
	"fmt"

	"github.com/codewandler/clstr-agency/core/ds"
)

type DiffKind string

const (
	DiffDBServers    DiffKind = "DBServers"
	DiffCoordinators DiffKind = "Coordinators"
)

// Discrepancy holds both sides of a server whose entries disagree, keyed by
// the scope each side was read from.
type Discrepancy map[Scope]ServerInfo

// DiffResult lists what the inferior scope lacks or holds differently. An
// inconsistency is a finding, never an error.
type DiffResult struct {
	Kind       DiffKind               `json:"kind"`
	Superior   Scope                  `json:"superior"`
	Inferior   Scope                  `json:"inferior"`
	Missing    []string               `json:"missing"`
	Difference map[string]Discrepancy `json:"difference"`
}

func (d *DiffResult) Empty() bool {
	return len(d.Missing) == 0 && len(d.Difference) == 0
}

// Diff compares sup against inf. sup must precede inf in the order Target,
// Plan, Current.
func Diff(ctx context.Context, sup, inf *ScopeView, kind DiffKind) (*DiffResult, error) {
	if sup.Scope.rank() < 0 || inf.Scope.rank() < 0 || sup.Scope.rank() >= inf.Scope.rank() {
		return nil, &InvalidScopePairError{Superior: sup.Scope, Inferior: inf.Scope}
	}
	res := &DiffResult{
		Kind:       kind,
		Superior:   sup.Scope,
		Inferior:   inf.Scope,
		Missing:    []string{},
		Difference: map[string]Discrepancy{},
	}

	switch kind {
	case DiffCoordinators:
		supNames, err := sup.Coordinators.List(ctx)
		if err != nil {
			return nil, err
		}
		infNames, err := inf.Coordinators.List(ctx)
		if err != nil {
			return nil, err
		}
		res.Missing = ds.NewStringSet(supNames...).Removals(ds.NewStringSet(infNames...)).Values()

	case DiffDBServers:
		supServers, err := sup.Servers.List(ctx)
		if err != nil {
			return nil, err
		}
		infServers, err := inf.Servers.List(ctx)
		if err != nil {
			return nil, err
		}
		for _, name := range sortedKeys(supServers) {
			want := supServers[name]
			got, ok := infServers[name]
			if !ok {
				res.Missing = append(res.Missing, name)
				continue
			}
			// the address only exists where servers are observed
			stripped := got
			stripped.Address = ""
			if stripped != want {
				res.Difference[name] = Discrepancy{sup.Scope: want, inf.Scope: got}
			}
		}

	default:
		return nil, fmt.Errorf("unknown diff kind %q", kind)
	}
	return res, nil
}

// ScopeDiff is a fixed superior/inferior pair.
type ScopeDiff struct {
	sup, inf *ScopeView
	metrics  Metrics
}

func (d *ScopeDiff) Pair() string { return fmt.Sprintf("%s/%s", d.sup.Scope, d.inf.Scope) }

func (d *ScopeDiff) DBServers(ctx context.Context) (*DiffResult, error) {
	return d.run(ctx, DiffDBServers)
}

func (d *ScopeDiff) Coordinators(ctx context.Context) (*DiffResult, error) {
	return d.run(ctx, DiffCoordinators)
}

func (d *ScopeDiff) run(ctx context.Context, kind DiffKind) (*DiffResult, error) {
	res, err := Diff(ctx, d.sup, d.inf, kind)
	if err != nil {
		return nil, err
	}
	d.metrics.DiffFindings(d.Pair(), string(kind), len(res.Missing), len(res.Difference))
	return res, nil
}

// DiffEngine holds the two comparisons reconciliation cares about. Plan
// diffs Target against Plan: findings there need an operator. Current diffs
// Plan against Current: the cluster is expected to converge on those itself.
type DiffEngine struct {
	Plan    *ScopeDiff
	Current *ScopeDiff
}

// Package topology reads and reconciles cluster topology kept in the agency
// store.
//
// The store holds three parallel scopes of the same shape: Target (what the
// operator wants), Plan (what the scheduler decided) and Current (what the
// servers report). Each scope has a primary/secondary DBServer table, a set
// of coordinators and a database catalog whose collections map shards to
// servers. Only Target can be written through this package; Plan and Current
// views expose no mutating methods at all.
//
// Diffs compare a superior scope against an inferior one. Findings are data,
// not errors: Missing lists entries the inferior scope lacks, Difference the
// entries both hold with different values.
//
// Cluster is the entry point:
//
//	c, _ := topology.New(topology.Options{Router: r})
//	_ = c.AddPrimary(ctx, "db1")
//	_ = c.AddSecondary(ctx, "db2", "db1")
//	res, _ := c.Diff.Plan.DBServers(ctx)
package topology

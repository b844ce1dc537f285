// Package app wires the agency stack: store, router with its versioned
// cache, and the topology facade.
//
// # Basic Usage
//
//	a, err := app.New(app.Config{
//	    Store:  natsStore,
//	    Prefix: "arango",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer a.Stop()
//
//	c := a.Cluster()
//	_ = c.AddPair(ctx, "PRMR-1", "SCND-1")
//	diff, _ := c.Diff.Plan.DBServers(ctx)
//
// Without a Store the app runs on an in-memory tree, which is what tests and
// demos use.
package app

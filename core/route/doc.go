// Package route maps the store's '/'-delimited namespace onto a typed tree of
// routes.
//
// Each route is one of a closed set of variants, chosen once from the
// operation set passed to [Router.AddLevel]:
//
//   - [ListRoute]: List
//   - [ReadRoute]: Get, List
//   - [VersionedRoute]: Get, List, CheckVersion; reads go through the
//     versioned cache
//   - [ReadWriteRoute]: everything a VersionedRoute offers plus Set and Remove
//
// Callers reach capabilities through the [Getter], [Lister], [VersionChecker]
// and [Writer] interfaces, so a read-only route cannot be written through at
// compile time.
//
// # Versioned cache
//
// A versioned route keeps its subtree in the router's cache together with the
// store version it was fetched at. Every read asks the store for the current
// version and refetches only when it moved; concurrent refreshes of the same
// path and version share one store read. Writers never invalidate the cache
// directly; the version bump their write causes does.
//
// Cached values are shared between readers and must be treated as read-only.
//
// # Data-driven children
//
// Children whose names come from the store (database names, collection ids)
// are declared with [Router.AddDynamic] and bound with [Router.Resolve], which
// returns a fresh route on every call:
//
//	dbs := r.AddLevel(plan, "Databases", "Databases", route.Get|route.List|route.CheckVersion)
//	r.AddDynamic(dbs, "*", route.Get|route.List|route.CheckVersion)
//	db, ok, err := r.Resolve(ctx, dbs, "_system")
package route

package topology

import (
	"log/slog"

	"github.com/codewandler/clstr-agency/core/route"
)

// Scope is one of the three parallel views of the cluster.
type Scope string

const (
	Target  Scope = "Target"  // desired
	Plan    Scope = "Plan"    // scheduled
	Current Scope = "Current" // observed
)

func (s Scope) rank() int {
	switch s {
	case Target:
		return 0
	case Plan:
		return 1
	case Current:
		return 2
	default:
		return -1
	}
}

func (s Scope) String() string { return string(s) }

const (
	readOps = route.Get | route.List | route.CheckVersion
	noneRef = "none"
)

// ScopeView is the read-only face of one scope. Diffs consume these.
type ScopeView struct {
	Scope        Scope
	Servers      *ServerRegistry
	Coordinators *CoordinatorRegistry
	Databases    *DatabaseCatalog
}

// TargetScope is the only scope that can be written through this package.
type TargetScope struct {
	Servers      *TargetServerRegistry
	Coordinators *TargetCoordinatorRegistry
	Databases    *TargetDatabaseCatalog
}

// View returns the read-only face of the Target scope.
func (t *TargetScope) View() *ScopeView {
	return &ScopeView{
		Scope:        Target,
		Servers:      t.Servers.ServerRegistry,
		Coordinators: t.Coordinators.CoordinatorRegistry,
		Databases:    t.Databases.DatabaseCatalog,
	}
}

type scopeRoutes struct {
	servers      route.VersionChecker
	coordinators route.VersionChecker
	databases    route.VersionChecker
	registered   route.VersionChecker
}

func buildScopeRoutes(r *route.Router, scope Scope, entityOps route.Ops) scopeRoutes {
	root := r.AddLevel(r.Root(), string(scope), string(scope), route.Get|route.List)

	routes := scopeRoutes{
		servers:      r.AddLevel(root, "DBServers", "DBServers", entityOps).(route.VersionChecker),
		coordinators: r.AddLevel(root, "Coordinators", "Coordinators", entityOps).(route.VersionChecker),
		databases:    r.AddLevel(root, "Databases", "Databases", readOps).(route.VersionChecker),
	}
	r.AddDynamic(routes.databases, "*", readOps)
	if scope == Current {
		routes.registered = r.AddLevel(root, "ServersRegistered", "ServersRegistered", readOps).(route.VersionChecker)
	}
	return routes
}

func newScopeView(r *route.Router, scope Scope, log *slog.Logger) *ScopeView {
	log = log.With(slog.String("scope", string(scope)))
	routes := buildScopeRoutes(r, scope, readOps)
	return &ScopeView{
		Scope:        scope,
		Servers:      newServerRegistry(scope, routes.servers, routes.registered, log),
		Coordinators: &CoordinatorRegistry{scope: scope, route: routes.coordinators},
		Databases:    newDatabaseCatalog(r, scope, routes.databases, readOps, log),
	}
}

func newTargetScope(r *route.Router, log *slog.Logger) *TargetScope {
	log = log.With(slog.String("scope", string(Target)))
	routes := buildScopeRoutes(r, Target, route.ReadWrite)
	return &TargetScope{
		Servers: &TargetServerRegistry{
			ServerRegistry: newServerRegistry(Target, routes.servers, nil, log),
			w:              routes.servers.(route.Writer),
		},
		Coordinators: &TargetCoordinatorRegistry{
			CoordinatorRegistry: &CoordinatorRegistry{scope: Target, route: routes.coordinators},
			w:                   routes.coordinators.(route.Writer),
			log:                 log,
		},
		Databases: &TargetDatabaseCatalog{
			DatabaseCatalog: newDatabaseCatalog(r, Target, routes.databases, route.ReadWrite, log),
		},
	}
}

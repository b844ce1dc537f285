package topology

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/codewandler/clstr-agency/core/route"
	"github.com/codewandler/clstr-agency/ports/agency"
)

type Role uint8

const (
	RolePrimary Role = iota + 1
	RoleSecondary
)

func (r Role) String() string {
	switch r {
	case RolePrimary:
		return "primary"
	case RoleSecondary:
		return "secondary"
	default:
		return fmt.Sprintf("role(%d)", uint8(r))
	}
}

func (r Role) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

func (r *Role) UnmarshalText(b []byte) error {
	switch string(b) {
	case "primary":
		*r = RolePrimary
	case "secondary":
		*r = RoleSecondary
	default:
		return fmt.Errorf("unknown role %q", b)
	}
	return nil
}

// ServerInfo is the derived view of one DBServer. A primary may name its
// secondary; a secondary names the primary it follows.
type ServerInfo struct {
	Name      string `json:"name"`
	Role      Role   `json:"role"`
	Secondary string `json:"secondary,omitempty"`
	Primary   string `json:"primary,omitempty"`
	// Address is only known in the Current scope.
	Address string `json:"address,omitempty"`
}

// Removal tells how RemoveServer matched a name.
type Removal uint8

const (
	NotFound Removal = iota
	RemovedAsPrimary
	RemovedAsSecondary
	RemovedAsCoordinator
)

func (r Removal) String() string {
	switch r {
	case RemovedAsPrimary:
		return "primary"
	case RemovedAsSecondary:
		return "secondary"
	case RemovedAsCoordinator:
		return "coordinator"
	default:
		return "not-found"
	}
}

// ServerRegistry reads the primary/secondary table of one scope. Each
// primary is stored as primary -> secondary name, or "none".
type ServerRegistry struct {
	scope      Scope
	servers    route.VersionChecker
	registered route.VersionChecker
	log        *slog.Logger
}

func newServerRegistry(scope Scope, servers, registered route.VersionChecker, log *slog.Logger) *ServerRegistry {
	return &ServerRegistry{scope: scope, servers: servers, registered: registered, log: log}
}

func (s *ServerRegistry) Scope() Scope { return s.scope }

// Changed reports whether the store holds a newer table than the cache.
func (s *ServerRegistry) Changed(ctx context.Context) (bool, error) {
	return s.servers.Changed(ctx)
}

// pairs returns the raw primary -> secondary table, with "none" mapped to "".
func (s *ServerRegistry) pairs(ctx context.Context) (map[string]string, error) {
	v, found, err := s.servers.Read(ctx)
	if err != nil {
		return nil, err
	}
	out := map[string]string{}
	if !found {
		return out, nil
	}
	m, _ := v.(map[string]any)
	for primary, ref := range m {
		if agency.IsReserved(primary) {
			continue
		}
		out[primary] = secondaryRef(ref)
	}
	return out, nil
}

func secondaryRef(v any) string {
	var ref string
	switch t := v.(type) {
	case string:
		ref = t
	case map[string]any:
		ref, _ = t["secondary"].(string)
	}
	if ref == noneRef {
		return ""
	}
	return ref
}

// List returns every server of the scope keyed by name. A name referenced as
// a secondary is classified as secondary even if it also has a primary entry.
func (s *ServerRegistry) List(ctx context.Context) (map[string]ServerInfo, error) {
	pairs, err := s.pairs(ctx)
	if err != nil {
		return nil, err
	}

	infos := make(map[string]ServerInfo, len(pairs))
	for primary, secondary := range pairs {
		infos[primary] = ServerInfo{Name: primary, Role: RolePrimary, Secondary: secondary}
	}
	for _, primary := range sortedKeys(pairs) {
		secondary := pairs[primary]
		if secondary == "" {
			continue
		}
		if prev, ok := infos[secondary]; ok && prev.Role == RoleSecondary {
			s.log.Warn("server is secondary of several primaries",
				slog.String("server", secondary),
				slog.String("primary", prev.Primary),
				slog.String("other", primary),
			)
			continue
		}
		infos[secondary] = ServerInfo{Name: secondary, Role: RoleSecondary, Primary: primary}
	}

	if s.registered != nil {
		if err := s.attachAddresses(ctx, infos); err != nil {
			return nil, err
		}
	}
	return infos, nil
}

func (s *ServerRegistry) attachAddresses(ctx context.Context, infos map[string]ServerInfo) error {
	v, found, err := s.registered.Read(ctx)
	if err != nil || !found {
		return err
	}
	m, _ := v.(map[string]any)
	for name, info := range infos {
		entry, _ := m[name].(map[string]any)
		if addr, ok := entry["address"].(string); ok {
			info.Address = addr
			infos[name] = info
		}
	}
	return nil
}

// Sorted returns List ordered by name.
func (s *ServerRegistry) Sorted(ctx context.Context) ([]ServerInfo, error) {
	infos, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]ServerInfo, 0, len(infos))
	for _, name := range sortedKeys(infos) {
		out = append(out, infos[name])
	}
	return out, nil
}

// Names returns all server names in alphabetical order.
func (s *ServerRegistry) Names(ctx context.Context) ([]string, error) {
	infos, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	return sortedKeys(infos), nil
}

// Primaries returns the names of all primaries in alphabetical order.
func (s *ServerRegistry) Primaries(ctx context.Context) ([]string, error) {
	infos, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, name := range sortedKeys(infos) {
		if infos[name].Role == RolePrimary {
			out = append(out, name)
		}
	}
	return out, nil
}

// TargetServerRegistry adds the mutations only the Target scope allows.
type TargetServerRegistry struct {
	*ServerRegistry
	w route.Writer
}

func (t *TargetServerRegistry) AddPrimary(ctx context.Context, name string) error {
	if err := t.w.SetKey(ctx, name, noneRef); err != nil {
		return err
	}
	t.log.Info("added primary", slog.String("server", name))
	return nil
}

// AddSecondary attaches name to primaryName. Whether primaryName exists is
// not checked.
func (t *TargetServerRegistry) AddSecondary(ctx context.Context, name, primaryName string) error {
	if err := t.w.SetKey(ctx, primaryName, name); err != nil {
		return err
	}
	t.log.Info("added secondary", slog.String("server", name), slog.String("primary", primaryName))
	return nil
}

func (t *TargetServerRegistry) AddPair(ctx context.Context, primaryName, secondaryName string) error {
	return t.AddSecondary(ctx, secondaryName, primaryName)
}

// RemoveServer removes name and repairs the other side of its pairing:
// removing a primary demotes its secondary to a primary without secondary,
// removing a secondary resets its primary to "none".
func (t *TargetServerRegistry) RemoveServer(ctx context.Context, name string) (Removal, error) {
	pairs, err := t.pairs(ctx)
	if err != nil {
		return NotFound, err
	}

	if secondary, ok := pairs[name]; ok {
		if _, err := t.w.RemoveKey(ctx, name); err != nil {
			return NotFound, err
		}
		if err := t.demote(ctx, pairs, name, secondary); err != nil {
			return NotFound, err
		}
		// a primary that also served as someone's secondary
		if err := t.releaseSecondary(ctx, pairs, name); err != nil {
			return NotFound, err
		}
		t.log.Info("removed primary", slog.String("server", name), slog.String("secondary", secondary))
		return RemovedAsPrimary, nil
	}

	if slices.Contains(sortedValues(pairs), name) {
		if err := t.releaseSecondary(ctx, pairs, name); err != nil {
			return NotFound, err
		}
		t.log.Info("removed secondary", slog.String("server", name))
		return RemovedAsSecondary, nil
	}
	return NotFound, nil
}

// demote turns the secondary of a removed primary into a primary without
// secondary. A secondary that already pairs with a server of its own keeps
// that pairing.
func (t *TargetServerRegistry) demote(ctx context.Context, pairs map[string]string, primary, secondary string) error {
	if secondary == "" {
		return nil
	}
	if own := pairs[secondary]; own != "" && own != primary {
		t.log.Warn("secondary keeps its own pairing",
			slog.String("server", secondary),
			slog.String("removed_primary", primary),
			slog.String("secondary", own),
		)
		return nil
	}
	return t.w.SetKey(ctx, secondary, noneRef)
}

func (t *TargetServerRegistry) releaseSecondary(ctx context.Context, pairs map[string]string, name string) error {
	for _, primary := range sortedKeys(pairs) {
		if primary == name || pairs[primary] != name {
			continue
		}
		if err := t.w.SetKey(ctx, primary, noneRef); err != nil {
			return err
		}
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func sortedValues(m map[string]string) []string {
	values := make([]string, 0, len(m))
	for _, v := range m {
		values = append(values, v)
	}
	slices.Sort(values)
	return values
}

package topology

import (
	"context"
	"log/slog"

	"github.com/codewandler/clstr-agency/core/route"
)

// CoordinatorRegistry lists the coordinators of one scope.
type CoordinatorRegistry struct {
	scope Scope
	route route.VersionChecker
}

func (c *CoordinatorRegistry) Scope() Scope { return c.scope }

// List returns coordinator names in alphabetical order.
func (c *CoordinatorRegistry) List(ctx context.Context) ([]string, error) {
	names, err := c.route.List(ctx)
	if err != nil {
		return nil, err
	}
	if names == nil {
		names = []string{}
	}
	return names, nil
}

func (c *CoordinatorRegistry) Changed(ctx context.Context) (bool, error) {
	return c.route.Changed(ctx)
}

type TargetCoordinatorRegistry struct {
	*CoordinatorRegistry
	w   route.Writer
	log *slog.Logger
}

func (t *TargetCoordinatorRegistry) Add(ctx context.Context, name string) error {
	if err := t.w.SetKey(ctx, name, noneRef); err != nil {
		return err
	}
	t.log.Info("added coordinator", slog.String("coordinator", name))
	return nil
}

// Remove reports false if name was not a coordinator.
func (t *TargetCoordinatorRegistry) Remove(ctx context.Context, name string) (bool, error) {
	ok, err := t.w.RemoveKey(ctx, name)
	if err != nil {
		return false, err
	}
	if ok {
		t.log.Info("removed coordinator", slog.String("coordinator", name))
	}
	return ok, nil
}

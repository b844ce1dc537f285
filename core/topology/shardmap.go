package topology

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/codewandler/clstr-agency/core/route"
	"github.com/codewandler/clstr-agency/ports/agency"
)

// CollectionShardMap maps the shards of one collection to the server holding
// each of them.
type CollectionShardMap struct {
	scope      Scope
	database   string
	collection string
	id         string
	route      route.VersionChecker
	log        *slog.Logger
}

func (m *CollectionShardMap) Database() string   { return m.database }
func (m *CollectionShardMap) Collection() string { return m.collection }
func (m *CollectionShardMap) ID() string         { return m.id }

// Info returns shard -> server as stored. A shard stored as a server list is
// reported with the list's first entry, its leader.
func (m *CollectionShardMap) Info(ctx context.Context) (map[string]string, error) {
	v, found, err := m.route.Read(ctx)
	if err != nil {
		return nil, err
	}
	out := map[string]string{}
	if !found {
		return out, nil
	}
	obj, _ := v.(map[string]any)
	shards, _ := obj["shards"].(map[string]any)
	for shard, holder := range shards {
		if agency.IsReserved(shard) {
			continue
		}
		if server, ok := shardHolder(holder); ok {
			out[shard] = server
		}
	}
	return out, nil
}

func shardHolder(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, t != ""
	case []any:
		if len(t) == 0 {
			return "", false
		}
		s, ok := t[0].(string)
		return s, ok && s != ""
	default:
		return "", false
	}
}

// ShardsByServer inverts Info. Shard ids are listed in ascending order.
func (m *CollectionShardMap) ShardsByServer(ctx context.Context) (map[string][]string, error) {
	info, err := m.Info(ctx)
	if err != nil {
		return nil, err
	}
	out := map[string][]string{}
	for _, shard := range sortedKeys(info) {
		server := info[shard]
		out[server] = append(out[server], shard)
	}
	return out, nil
}

func (m *CollectionShardMap) ShardsForServer(ctx context.Context, server string) ([]string, error) {
	byServer, err := m.ShardsByServer(ctx)
	if err != nil {
		return nil, err
	}
	shards := byServer[server]
	if shards == nil {
		shards = []string{}
	}
	return shards, nil
}

func (m *CollectionShardMap) ServerForShard(ctx context.Context, shard string) (string, bool, error) {
	info, err := m.Info(ctx)
	if err != nil {
		return "", false, err
	}
	server, ok := info[shard]
	return server, ok, nil
}

// TargetShardMap can move shards between servers.
type TargetShardMap struct {
	*CollectionShardMap
	w route.Writer
}

// MoveShard assigns shard to server. It reads the whole collection object
// past the cache, changes the one shard entry and writes the object back.
// Concurrent movers in other processes are not detected.
func (t *TargetShardMap) MoveShard(ctx context.Context, shard, server string) error {
	v, found, err := t.w.Get(ctx, true)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: %s/%s", ErrCollectionNotFound, t.database, t.collection)
	}
	obj, _ := v.(map[string]any)
	shards, _ := obj["shards"].(map[string]any)
	prev, ok := shards[shard]
	if !ok {
		return fmt.Errorf("%w: %s in %s/%s", ErrShardNotFound, shard, t.database, t.collection)
	}

	switch holders := prev.(type) {
	case []any:
		// replace the leader; a follower promoted to leader leaves the followers
		next := make([]any, 0, max(len(holders), 1))
		next = append(next, server)
		for i, h := range holders {
			if i == 0 || h == server {
				continue
			}
			next = append(next, h)
		}
		shards[shard] = next
	default:
		shards[shard] = server
	}

	if err := t.w.Set(ctx, obj); err != nil {
		return err
	}
	from, _ := shardHolder(prev)
	t.log.Info("moved shard",
		slog.String("database", t.database),
		slog.String("collection", t.collection),
		slog.String("shard", shard),
		slog.String("from", from),
		slog.String("to", server),
	)
	return nil
}

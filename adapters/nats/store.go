package nats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/codewandler/clstr-agency/internal/codec"
	"github.com/codewandler/clstr-agency/ports/agency"
)

const (
	nodePrefix   = "node"
	verPrefix    = "ver"
	writesPrefix = "wr"

	// emptyMarker keeps an interior node without children visible.
	emptyMarker = "{}"
)

var segmentPattern = regexp.MustCompile(`^[A-Za-z0-9_\-=]+$`)

type StoreConfig struct {
	Connect Connector    // Connect is used to create the underlying NATS connection. If nil, ConnectDefault() is used.
	Log     *slog.Logger // Log for diagnostics (optional)
	Bucket  string       // Bucket is the KeyValue bucket holding the tree (default: agency)
	// Timeout bounds every single store call (default: 5s).
	Timeout time.Duration
	// MaxBytes caps the bucket size (default: 64MiB).
	MaxBytes int64
	Codec    codec.Codec
}

// Store keeps the agency tree in a JetStream KeyValue bucket. Every leaf is
// one key: the path segments become subject tokens below "node", so a
// subtree is a wildcard filter. Every write rewrites the marker keys below
// "ver" of the written path and its ancestors, and the marker below "wr" of
// the written path alone. The version of a path is the newest revision among
// its "ver" marker and the "wr" markers of its ancestors, so a write from
// higher up also moves every descendant.
type Store struct {
	kv      jetstream.KeyValue
	close   closeFunc
	log     *slog.Logger
	timeout time.Duration
	codec   codec.Codec
}

func NewStore(cfg StoreConfig) (*Store, error) {
	doConnect := cfg.Connect
	if doConnect == nil {
		doConnect = ConnectDefault()
	}
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	bucket := cfg.Bucket
	if bucket == "" {
		bucket = "agency"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	maxBytes := cfg.MaxBytes
	if maxBytes == 0 {
		maxBytes = 64 * 1024 * 1024
	}
	c := cfg.Codec
	if c == nil {
		c = codec.JSON{}
	}

	nc, closeConn, err := doConnect()
	if err != nil {
		return nil, err
	}
	js, err := jetstream.New(nc)
	if err != nil {
		closeConn()
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:   bucket,
		History:  1,
		Storage:  jetstream.FileStorage,
		MaxBytes: maxBytes,
	})
	if err != nil {
		closeConn()
		return nil, fmt.Errorf("create bucket %s: %w", bucket, err)
	}

	return &Store{
		kv:      kv,
		close:   closeConn,
		log:     log.With(slog.String("store", "nats"), slog.String("bucket", bucket)),
		timeout: timeout,
		codec:   c,
	}, nil
}

// Close releases the connection lease.
func (s *Store) Close() { s.close() }

func tokens(path string) ([]string, error) {
	segments := agency.Split(path)
	for _, seg := range segments {
		if !segmentPattern.MatchString(seg) {
			return nil, fmt.Errorf("%w: segment %q", agency.ErrInvalidPath, seg)
		}
	}
	return segments, nil
}

func key(prefix string, segments []string) string {
	if len(segments) == 0 {
		return prefix
	}
	return prefix + "." + strings.Join(segments, ".")
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

// keysBelow returns all live keys strictly below k.
func (s *Store) keysBelow(ctx context.Context, k string) ([]string, error) {
	lister, err := s.kv.ListKeysFiltered(ctx, k+".>")
	if errors.Is(err, jetstream.ErrNoKeysFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []string
	for name := range lister.Keys() {
		out = append(out, name)
	}
	slices.Sort(out)
	return out, nil
}

func (s *Store) leaf(ctx context.Context, k string) (any, bool, error) {
	entry, err := s.kv.Get(ctx, k)
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var v any
	if err := s.codec.Unmarshal(entry.Value(), &v); err != nil {
		return nil, false, fmt.Errorf("decode %s: %w", k, err)
	}
	return v, true, nil
}

func (s *Store) Get(ctx context.Context, path string, recursive bool) (any, error) {
	segments, err := tokens(path)
	if err != nil {
		return nil, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	k := key(nodePrefix, segments)
	if len(segments) > 0 {
		v, ok, err := s.leaf(ctx, k)
		if err != nil || ok {
			return v, err
		}
	}

	below, err := s.keysBelow(ctx, k)
	if err != nil {
		return nil, err
	}
	if len(below) == 0 {
		if len(segments) == 0 {
			return map[string]any{}, nil
		}
		return nil, agency.ErrNotFound
	}

	out := map[string]any{}
	for _, name := range below {
		rel := strings.Split(strings.TrimPrefix(name, k+"."), ".")
		if !recursive && len(rel) > 1 {
			if _, ok := out[rel[0]]; !ok {
				out[rel[0]] = map[string]any{}
			}
			continue
		}
		v, ok, err := s.leaf(ctx, name)
		if err != nil {
			return nil, err
		}
		if ok {
			insert(out, rel, v)
		}
	}
	return out, nil
}

func insert(m map[string]any, rel []string, v any) {
	for _, seg := range rel[:len(rel)-1] {
		child, ok := m[seg].(map[string]any)
		if !ok {
			child = map[string]any{}
			m[seg] = child
		}
		m = child
	}
	last := rel[len(rel)-1]
	if _, isMap := v.(map[string]any); isMap {
		if _, exists := m[last]; exists {
			return
		}
	}
	m[last] = v
}

// flatten turns a normalized value into leaf keys.
func flatten(prefix string, v any, out map[string]any) error {
	m, ok := v.(map[string]any)
	if !ok {
		out[prefix] = v
		return nil
	}
	if len(m) == 0 {
		out[prefix] = map[string]any{}
		return nil
	}
	for k, child := range m {
		if !segmentPattern.MatchString(k) {
			return fmt.Errorf("%w: segment %q", agency.ErrInvalidPath, k)
		}
		if err := flatten(prefix+"."+k, child, out); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Set(ctx context.Context, path string, value any) (bool, error) {
	segments, err := tokens(path)
	if err != nil {
		return false, err
	}
	v, err := agency.Normalize(value)
	if err != nil {
		return false, err
	}
	if _, isMap := v.(map[string]any); len(segments) == 0 && !isMap {
		return false, agency.ErrInvalidPath
	}

	leaves := map[string]any{}
	k := key(nodePrefix, segments)
	if err := flatten(k, v, leaves); err != nil {
		return false, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	// whatever was at or below path and is not rewritten goes away
	stale, err := s.keysBelow(ctx, k)
	if err != nil {
		return false, err
	}
	if len(segments) > 0 {
		stale = append(stale, k)
	}
	// ancestors stored as leaves become interior nodes
	for i := 1; i < len(segments); i++ {
		stale = append(stale, key(nodePrefix, segments[:i]))
	}
	for _, name := range stale {
		if _, keep := leaves[name]; keep {
			continue
		}
		if err := s.deleteIfPresent(ctx, name); err != nil {
			return false, err
		}
	}

	for name, leaf := range leaves {
		data, err := s.encode(leaf)
		if err != nil {
			return false, err
		}
		if _, err := s.kv.Put(ctx, name, data); err != nil {
			return false, err
		}
	}
	if err := s.bump(ctx, segments); err != nil {
		return false, err
	}
	s.log.Debug("set", slog.String("path", path), slog.Int("leaves", len(leaves)))
	return true, nil
}

func (s *Store) encode(v any) ([]byte, error) {
	if m, ok := v.(map[string]any); ok && len(m) == 0 {
		return []byte(emptyMarker), nil
	}
	return s.codec.Marshal(v)
}

func (s *Store) deleteIfPresent(ctx context.Context, k string) error {
	_, err := s.kv.Get(ctx, k)
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return s.kv.Delete(ctx, k)
}

func (s *Store) Remove(ctx context.Context, path string) (bool, error) {
	segments, err := tokens(path)
	if err != nil {
		return false, err
	}
	if len(segments) == 0 {
		return false, agency.ErrInvalidPath
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	k := key(nodePrefix, segments)
	doomed, err := s.keysBelow(ctx, k)
	if err != nil {
		return false, err
	}
	if _, ok, err := s.leaf(ctx, k); err != nil {
		return false, err
	} else if ok {
		doomed = append(doomed, k)
	}
	if len(doomed) == 0 {
		return false, nil
	}
	for _, name := range doomed {
		if err := s.kv.Delete(ctx, name); err != nil {
			return false, err
		}
	}
	if err := s.bump(ctx, segments); err != nil {
		return false, err
	}
	s.log.Debug("remove", slog.String("path", path), slog.Int("keys", len(doomed)))
	return true, nil
}

func (s *Store) List(ctx context.Context, path string, sorted bool) ([]string, error) {
	segments, err := tokens(path)
	if err != nil {
		return nil, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	k := key(nodePrefix, segments)
	below, err := s.keysBelow(ctx, k)
	if err != nil {
		return nil, err
	}
	if len(below) == 0 {
		if len(segments) == 0 {
			return []string{}, nil
		}
		if _, ok, err := s.leaf(ctx, k); err != nil {
			return nil, err
		} else if ok {
			return []string{}, nil
		}
		return nil, agency.ErrNotFound
	}

	seen := map[string]struct{}{}
	names := make([]string, 0, len(below))
	for _, name := range below {
		child, _, _ := strings.Cut(strings.TrimPrefix(name, k+"."), ".")
		if _, dup := seen[child]; dup {
			continue
		}
		seen[child] = struct{}{}
		names = append(names, child)
	}
	if sorted {
		slices.Sort(names)
	}
	return names, nil
}

// VersionOf returns the newest revision among the path's marker and the
// write markers of its ancestors. Bucket revisions grow with every write, so
// the version strictly increases.
func (s *Store) VersionOf(ctx context.Context, path string) (uint64, error) {
	segments, err := tokens(path)
	if err != nil {
		return 0, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	version, err := s.revision(ctx, key(verPrefix, segments))
	if err != nil {
		return 0, err
	}
	for i := 0; i < len(segments); i++ {
		rev, err := s.revision(ctx, key(writesPrefix, segments[:i]))
		if err != nil {
			return 0, err
		}
		version = max(version, rev)
	}
	return version, nil
}

func (s *Store) revision(ctx context.Context, k string) (uint64, error) {
	entry, err := s.kv.Get(ctx, k)
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return entry.Revision(), nil
}

// bump rewrites the markers of the written path and its ancestors, then
// records the write itself.
func (s *Store) bump(ctx context.Context, segments []string) error {
	markers := make([]string, 0, len(segments)+2)
	for i := 0; i <= len(segments); i++ {
		markers = append(markers, key(verPrefix, segments[:i]))
	}
	markers = append(markers, key(writesPrefix, segments))
	for _, m := range markers {
		if _, err := s.kv.Put(ctx, m, []byte("1")); err != nil {
			return err
		}
	}
	return nil
}

var _ agency.Store = (*Store)(nil)

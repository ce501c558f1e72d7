package snapshot

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/wstszx/LicStats/internal/license"
	"github.com/wstszx/LicStats/internal/lmstat"
	"github.com/wstszx/LicStats/internal/metrics"
)

// ErrNoData is returned when a window contains no readable snapshot.
var ErrNoData = errors.New("snapshot: no data available")

// DefaultCacheSize is the number of parsed snapshots kept by a Loader.
const DefaultCacheSize = 256

// LoaderConfig holds loader configuration
type LoaderConfig struct {
	CacheSize int
	Workers   int
}

// Document is a snapshot together with its raw content.
type Document struct {
	Info     Info             `json:"info"`
	Raw      string           `json:"raw_content"`
	Snapshot license.Snapshot `json:"snapshot"`
}

// cacheKey identifies one version of a file. A rewritten file gets a new key.
type cacheKey struct {
	name    string
	size    int64
	modTime int64
}

// Loader reads and parses the snapshots of a window.
type Loader struct {
	store   *Store
	parser  *lmstat.Parser
	cache   *lru.Cache[cacheKey, []license.Feature]
	workers int
	logger  zerolog.Logger
}

// NewLoader creates a loader over store. A nil parser uses the built-in dialects.
func NewLoader(store *Store, parser *lmstat.Parser, cfg LoaderConfig, logger zerolog.Logger) (*Loader, error) {
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = DefaultCacheSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	if parser == nil {
		var err error
		if parser, err = lmstat.NewParser(); err != nil {
			return nil, err
		}
	}

	cache, err := lru.New[cacheKey, []license.Feature](cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create parse cache: %w", err)
	}

	return &Loader{
		store:   store,
		parser:  parser,
		cache:   cache,
		workers: cfg.Workers,
		logger:  logger.With().Str("component", "snapshot-loader").Logger(),
	}, nil
}

// Store returns the underlying snapshot store.
func (l *Loader) Store() *Store {
	return l.store
}

// Load returns the parsed snapshots of the window in capture order.
// Files that cannot be read are logged and skipped. ErrNoData is returned
// when nothing remains.
func (l *Loader) Load(ctx context.Context, w Window) ([]license.Snapshot, error) {
	if w.Days() == 0 {
		snap, _, _, err := l.newest(ctx, false)
		if err != nil {
			return nil, err
		}
		return []license.Snapshot{snap}, nil
	}

	infos, err := l.store.List(w)
	if err != nil {
		return nil, err
	}
	if len(infos) == 0 {
		return nil, ErrNoData
	}

	results := make([]*license.Snapshot, len(infos))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.workers)

	for i, info := range infos {
		i, info := i, info
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			snap, _, err := l.load(info, false)
			if err != nil {
				metrics.SnapshotReadFailures.Inc()
				l.logger.Warn().Err(err).Str("snapshot", info.Name).Msg("Skipping unreadable snapshot")
				return nil
			}
			results[i] = &snap
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// infos is most recent first; callers get capture order.
	out := make([]license.Snapshot, 0, len(results))
	for i := len(results) - 1; i >= 0; i-- {
		if results[i] != nil {
			out = append(out, *results[i])
		}
	}
	if len(out) == 0 {
		return nil, ErrNoData
	}
	return out, nil
}

// Latest returns the most recent readable snapshot with its raw content.
func (l *Loader) Latest(ctx context.Context) (Document, error) {
	snap, raw, info, err := l.newest(ctx, true)
	if err != nil {
		return Document{}, err
	}
	return Document{Info: info, Raw: string(raw), Snapshot: snap}, nil
}

// newest parses the most recent snapshot that can be read. Unreadable files
// are logged and skipped in favor of the next most recent one.
func (l *Loader) newest(ctx context.Context, withRaw bool) (license.Snapshot, []byte, Info, error) {
	infos, err := l.store.all()
	if err != nil {
		return license.Snapshot{}, nil, Info{}, err
	}
	for _, info := range infos {
		if err := ctx.Err(); err != nil {
			return license.Snapshot{}, nil, Info{}, err
		}
		snap, raw, err := l.load(info, withRaw)
		if err != nil {
			metrics.SnapshotReadFailures.Inc()
			l.logger.Warn().Err(err).Str("snapshot", info.Name).Msg("Skipping unreadable snapshot")
			continue
		}
		return snap, raw, info, nil
	}
	return license.Snapshot{}, nil, Info{}, ErrNoData
}

// Open returns the named snapshot with its raw content.
func (l *Loader) Open(ctx context.Context, name string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	info, err := l.store.Stat(name)
	if err != nil {
		return Document{}, err
	}
	return l.document(info)
}

func (l *Loader) document(info Info) (Document, error) {
	snap, raw, err := l.load(info, true)
	if err != nil {
		return Document{}, err
	}
	return Document{Info: info, Raw: string(raw), Snapshot: snap}, nil
}

// load parses one file, reusing the cached parse when the file is unchanged.
// The raw content is only read when it is needed for parsing or withRaw is set.
func (l *Loader) load(info Info, withRaw bool) (license.Snapshot, []byte, error) {
	key := cacheKey{name: info.Name, size: info.Size, modTime: info.ModTime.UnixNano()}
	features, cached := l.cache.Get(key)

	var raw []byte
	if !cached || withRaw {
		var err error
		if raw, err = l.store.Read(info.Name); err != nil {
			return license.Snapshot{}, nil, err
		}
	}

	if cached {
		metrics.ParseCacheHits.Inc()
	} else {
		metrics.ParseCacheMisses.Inc()
		features = l.parser.Parse(string(raw))
		l.cache.Add(key, features)
	}

	return license.Snapshot{
		ID:         info.Name,
		CapturedAt: info.CapturedAt,
		Features:   features,
	}, raw, nil
}

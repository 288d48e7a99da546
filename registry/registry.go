// Package registry 管理已加载的命名格点场及其检索器。
package registry

import (
	"context"
	"errors"
	"runtime"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wyfcoding/geonear/config"
	"github.com/wyfcoding/geonear/geo"
	"github.com/wyfcoding/geonear/gridfield"
	"github.com/wyfcoding/geonear/logging"
	"github.com/wyfcoding/geonear/metrics"
	"github.com/wyfcoding/geonear/nearest"
	"github.com/wyfcoding/geonear/retry"
	"github.com/wyfcoding/geonear/tracing"
	"github.com/wyfcoding/geonear/xerrors"

	"golang.org/x/sync/singleflight"
)

// maxStaleRetries 查询与替换并发时切换到新条目的最大次数。
const maxStaleRetries = 2

// 检索策略名称。
const (
	StrategyKDTree = "kdtree"
	StrategyBrute  = "brute"
)

// IndexOptions 描述检索器的构建与查询参数。
type IndexOptions struct {
	Strategy          string
	LeafSize          int
	ParallelWorkers   int // 0 表示使用 GOMAXPROCS
	ParallelThreshold int // 批量达到该点数时并行查询，0 表示从不并行
}

// IndexOptionsFromConfig 由配置构造检索参数。
func IndexOptionsFromConfig(cfg config.IndexConfig) IndexOptions {
	return IndexOptions{
		Strategy:          cfg.Strategy,
		LeafSize:          cfg.LeafSize,
		ParallelWorkers:   cfg.ParallelWorkers,
		ParallelThreshold: cfg.ParallelThreshold,
	}
}

func (o IndexOptions) workers() int {
	if o.ParallelWorkers > 0 {
		return o.ParallelWorkers
	}
	return runtime.GOMAXPROCS(0)
}

// Option 定义 Registry 构造参数。
type Option func(*Registry)

// WithIndexOptions 设置检索参数。
func WithIndexOptions(opts IndexOptions) Option {
	return func(r *Registry) {
		r.opts.Store(&opts)
	}
}

// WithMetrics 注入指标采集器。
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Registry) {
		r.metrics = m
	}
}

// WithLogger 注入日志记录器。
func WithLogger(l *logging.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithRetry 设置数据集加载的重试策略。
func WithRetry(cfg retry.Config) Option {
	return func(r *Registry) {
		r.retry = cfg
	}
}

// Entry 是一个已注册的格点场与其检索器，注册后不可变。
type Entry struct {
	Field      *gridfield.Field
	Searcher   nearest.Searcher
	Strategy   string
	Generation uint64 // 每次注册单调递增，可用作缓存键的一部分
	BuiltAt    time.Time
	BuildTook  time.Duration
}

// Info 是 Entry 的可序列化摘要。
type Info struct {
	Name       string    `json:"name"`
	Points     int       `json:"points"`
	Strategy   string    `json:"strategy"`
	Generation uint64    `json:"generation"`
	BuiltAt    time.Time `json:"built_at"`
	BuildMS    float64   `json:"build_ms"`
}

// Registry 按名称保存格点场，读操作并发安全。
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	group   singleflight.Group
	opts    atomic.Pointer[IndexOptions]
	gen     atomic.Uint64
	retry   retry.Config
	metrics *metrics.Metrics
	logger  *logging.Logger
}

// New 创建空的注册表。
func New(opts ...Option) *Registry {
	r := &Registry{
		entries: make(map[string]*Entry),
		retry:   retry.DefaultRetryConfig(),
		logger:  logging.Default().Named("registry"),
	}
	r.opts.Store(&IndexOptions{Strategy: StrategyKDTree, LeafSize: nearest.DefaultLeafSize})
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// IndexOptions 返回当前检索参数。
func (r *Registry) IndexOptions() IndexOptions {
	return *r.opts.Load()
}

// SetIndexOptions 替换检索参数，只影响之后的构建与查询。
func (r *Registry) SetIndexOptions(opts IndexOptions) {
	r.opts.Store(&opts)
	r.logger.Info("index options updated", "strategy", opts.Strategy, "leaf_size", opts.LeafSize,
		"parallel_workers", opts.ParallelWorkers, "parallel_threshold", opts.ParallelThreshold)
}

// build 按当前策略为 f 构建检索器。
func (r *Registry) build(ctx context.Context, f *gridfield.Field) (*Entry, error) {
	ctx, span := tracing.StartSpan(ctx, "registry.Build")
	defer span.End()
	tracing.AddTag(ctx, "field", f.Name)
	tracing.AddTag(ctx, "points", f.Len())

	opts := r.IndexOptions()
	start := time.Now()

	var (
		s   nearest.Searcher
		err error
	)
	switch opts.Strategy {
	case StrategyBrute:
		s = nearest.NewBruteForce(f.Coords)
	case StrategyKDTree, "":
		opts.Strategy = StrategyKDTree
		s, err = nearest.Build(f.Coords, nearest.WithLeafSize(opts.LeafSize))
	default:
		err = xerrors.InvalidInput("unknown index strategy %q", opts.Strategy)
	}
	if err != nil {
		tracing.SetError(ctx, err)
		return nil, err
	}

	took := time.Since(start)
	r.metrics.ObserveBuild(f.Name, opts.Strategy, f.Len(), took)
	r.logger.InfoContext(ctx, "field index built", "field", f.Name, "points", f.Len(),
		"strategy", opts.Strategy, "duration", took)

	return &Entry{
		Field:      f,
		Searcher:   s,
		Strategy:   opts.Strategy,
		Generation: r.gen.Add(1),
		BuiltAt:    start,
		BuildTook:  took,
	}, nil
}

// Register 构建并注册格点场，同名格点场已存在时返回 ErrFieldExists。
func (r *Registry) Register(ctx context.Context, f *gridfield.Field) (*Entry, error) {
	if f == nil || f.Name == "" {
		return nil, xerrors.InvalidInput("field must have a name")
	}
	if _, err := r.Get(f.Name); err == nil {
		return nil, xerrors.Derive(xerrors.ErrFieldExists, "%s", f.Name)
	}
	e, err := r.build(ctx, f)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[f.Name]; ok {
		return nil, xerrors.Derive(xerrors.ErrFieldExists, "%s", f.Name)
	}
	r.entries[f.Name] = e
	return e, nil
}

// Replace 构建并注册格点场，替换同名旧条目并释放其坐标集。
// 仍持有旧检索器的查询会得到 ErrStaleIndex。
func (r *Registry) Replace(ctx context.Context, f *gridfield.Field) (*Entry, error) {
	if f == nil || f.Name == "" {
		return nil, xerrors.InvalidInput("field must have a name")
	}
	e, err := r.build(ctx, f)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	old := r.entries[f.Name]
	r.entries[f.Name] = e
	r.mu.Unlock()

	if old != nil && old.Field != f {
		old.Field.Release()
		r.logger.InfoContext(ctx, "field replaced", "field", f.Name, "generation", e.Generation)
	}
	return e, nil
}

// Get 返回指定名称的条目，不存在时返回 ErrFieldNotFound。
func (r *Registry) Get(name string) (*Entry, error) {
	r.mu.RLock()
	e, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		return nil, xerrors.Derive(xerrors.ErrFieldNotFound, "%s", name)
	}
	return e, nil
}

// Names 返回按字典序排列的全部名称。
func (r *Registry) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	r.mu.RUnlock()
	slices.Sort(names)
	return names
}

// Infos 返回按名称排列的全部条目摘要。
func (r *Registry) Infos() []Info {
	names := r.Names()
	out := make([]Info, 0, len(names))
	for _, name := range names {
		e, err := r.Get(name)
		if err != nil {
			continue
		}
		out = append(out, e.Info())
	}
	return out
}

// Info 返回条目摘要。
func (e *Entry) Info() Info {
	return Info{
		Name:       e.Field.Name,
		Points:     e.Field.Len(),
		Strategy:   e.Strategy,
		Generation: e.Generation,
		BuiltAt:    e.BuiltAt,
		BuildMS:    float64(e.BuildTook.Microseconds()) / 1000,
	}
}

// Remove 注销格点场并释放其坐标集，之后仍在使用旧检索器的调用会得到 ErrStaleIndex。
func (r *Registry) Remove(name string) error {
	r.mu.Lock()
	e, ok := r.entries[name]
	delete(r.entries, name)
	r.mu.Unlock()
	if !ok {
		return xerrors.Derive(xerrors.ErrFieldNotFound, "%s", name)
	}
	e.Field.Release()
	r.metrics.ForgetField(name)
	r.logger.Info("field removed", "field", name)
	return nil
}

// LoadOrBuild 返回已注册的条目，不存在时调用 loader 加载并构建。
// 同一名称的并发调用只执行一次 loader。
func (r *Registry) LoadOrBuild(ctx context.Context, name string, loader func(context.Context) (*gridfield.Field, error)) (*Entry, error) {
	if e, err := r.Get(name); err == nil {
		return e, nil
	}
	v, err, shared := r.group.Do(name, func() (any, error) {
		if e, err := r.Get(name); err == nil {
			return e, nil
		}
		f, err := loader(ctx)
		if err != nil {
			return nil, err
		}
		if f.Name != name {
			return nil, xerrors.InvalidInput("loader returned field %q for %q", f.Name, name)
		}
		return r.Register(ctx, f)
	})
	if err != nil {
		r.logger.ErrorContext(ctx, "field load failed", "field", name, "error", err)
		return nil, err
	}
	if shared {
		r.logger.DebugContext(ctx, "field load shared", "field", name)
	}
	return v.(*Entry), nil
}

// Query 在指定格点场上检索每个参考点的最近格点。
// 批量达到并行阈值时按块并发执行。查询与 Replace 并发时自动切换到新条目，
// 只有格点场被移除或未被替换而坐标集已释放时才返回 ErrStaleIndex。
func (r *Registry) Query(ctx context.Context, name string, points []geo.Point) ([]gridfield.Sample, *Entry, error) {
	ctx, span := tracing.StartSpan(ctx, "registry.Query")
	defer span.End()
	tracing.AddTag(ctx, "field", name)
	tracing.AddTag(ctx, "points", len(points))

	e, err := r.Get(name)
	if err != nil {
		tracing.SetError(ctx, err)
		return nil, nil, err
	}

	start := time.Now()
	samples, err := r.search(ctx, e, points)
	for attempt := 0; attempt < maxStaleRetries && errors.Is(err, xerrors.ErrStaleIndex); attempt++ {
		// 查询期间格点场被替换：注册表已持有新条目，改用新条目重试
		cur, gerr := r.Get(name)
		if gerr != nil || cur.Generation == e.Generation {
			break
		}
		tracing.AddTag(ctx, "stale_retry", attempt+1)
		e = cur
		samples, err = r.search(ctx, e, points)
	}
	r.metrics.ObserveQuery(name, e.Strategy, len(points), time.Since(start), err)
	if err != nil {
		tracing.SetError(ctx, err)
		return nil, e, err
	}
	return samples, e, nil
}

func (r *Registry) search(ctx context.Context, e *Entry, points []geo.Point) ([]gridfield.Sample, error) {
	opts := r.IndexOptions()
	var (
		res nearest.Result
		err error
	)
	if opts.ParallelThreshold > 0 && len(points) >= opts.ParallelThreshold {
		tracing.AddTag(ctx, "parallel", true)
		res, err = nearest.NearestParallel(ctx, e.Searcher, points, opts.workers())
	} else {
		res, err = e.Searcher.Nearest(points)
	}
	if err != nil {
		return nil, err
	}
	return e.Field.Samples(res)
}

// Close 注销并释放全部格点场。
func (r *Registry) Close() {
	for _, name := range r.Names() {
		_ = r.Remove(name)
	}
}

func errUnknownSource(ds config.DatasetConfig) error {
	return xerrors.InvalidInput("dataset %q uses unconfigured source %q", ds.Name, ds.Source)
}

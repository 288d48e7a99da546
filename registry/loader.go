package registry

import (
	"context"
	"errors"

	"github.com/wyfcoding/geonear/config"
	"github.com/wyfcoding/geonear/gridfield"
	"github.com/wyfcoding/geonear/retry"
	"github.com/wyfcoding/geonear/storage"
	"github.com/wyfcoding/geonear/xerrors"

	"github.com/sourcegraph/conc/pool"
)

// maxConcurrentLoads 限制启动时同时下载与构建的数据集数量。
const maxConcurrentLoads = 4

// DatasetLoader 返回从 src 读取 CSV 数据集的加载函数。
func DatasetLoader(src storage.Storage, ds config.DatasetConfig) func(context.Context) (*gridfield.Field, error) {
	return func(ctx context.Context) (*gridfield.Field, error) {
		return gridfield.Load(ctx, src, ds.Object, ds.Name)
	}
}

// transient 报告加载错误是否值得重试。分类错误（对象不存在、格式错误、熔断）与取消都不重试。
func transient(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	_, classified := xerrors.FromError(err)
	return !classified
}

// loader 返回带重试的数据集加载函数。
func (r *Registry) loader(src storage.Storage, ds config.DatasetConfig) func(context.Context) (*gridfield.Field, error) {
	load := DatasetLoader(src, ds)
	return func(ctx context.Context) (*gridfield.Field, error) {
		return retry.Do(ctx, r.retry, transient, load)
	}
}

// LoadDatasets 并发加载配置中的全部数据集，任一失败即取消其余加载并返回首个错误。
func (r *Registry) LoadDatasets(ctx context.Context, sources map[string]storage.Storage, datasets []config.DatasetConfig) error {
	p := pool.New().
		WithMaxGoroutines(maxConcurrentLoads).
		WithContext(ctx).
		WithCancelOnError().
		WithFirstError()

	for _, ds := range datasets {
		p.Go(func(ctx context.Context) error {
			src, ok := sources[ds.Source]
			if !ok {
				return errUnknownSource(ds)
			}
			_, err := r.LoadOrBuild(ctx, ds.Name, r.loader(src, ds))
			return err
		})
	}
	return p.Wait()
}

// ReloadDataset 重新读取数据集并替换同名格点场。同一数据集的并发重载只执行一次。
func (r *Registry) ReloadDataset(ctx context.Context, sources map[string]storage.Storage, ds config.DatasetConfig) (*Entry, error) {
	src, ok := sources[ds.Source]
	if !ok {
		return nil, errUnknownSource(ds)
	}
	v, err, _ := r.group.Do("reload:"+ds.Name, func() (any, error) {
		f, err := r.loader(src, ds)(ctx)
		if err != nil {
			return nil, err
		}
		return r.Replace(ctx, f)
	})
	if err != nil {
		r.logger.ErrorContext(ctx, "field reload failed", "field", ds.Name, "error", err)
		return nil, err
	}
	return v.(*Entry), nil
}

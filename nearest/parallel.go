package nearest

import (
	"context"

	"github.com/sourcegraph/conc/pool"

	"github.com/wyfcoding/geonear/geo"
)

// MinChunkSize 并行查询时每个分片的最少参考点数。
const MinChunkSize = 256

// NearestParallel 将一批参考点切成连续分片，在有界 goroutine 池中并发查询后按原顺序拼接。
// 结果与 s.Nearest(points) 完全一致；返回首个错误，分片之间响应 ctx 取消。
// 只读查询之间不需要加锁。
func NearestParallel(ctx context.Context, s Searcher, points []geo.Point, workers int) (Result, error) {
	if workers <= 1 || len(points) < 2*MinChunkSize {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		return s.Nearest(points)
	}

	// 先整体校验，使错误中的位置对应原始批次
	if err := validatePoints(points); err != nil {
		return Result{}, err
	}

	chunk := (len(points) + workers - 1) / workers
	if chunk < MinChunkSize {
		chunk = MinChunkSize
	}

	res := newResult(len(points))
	p := pool.New().
		WithMaxGoroutines(workers).
		WithContext(ctx).
		WithCancelOnError().
		WithFirstError()

	for start := 0; start < len(points); start += chunk {
		end := min(start+chunk, len(points))
		p.Go(func(ctx context.Context) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			part, err := s.Nearest(points[start:end])
			if err != nil {
				return err
			}
			copy(res.Indices[start:end], part.Indices)
			copy(res.Distances[start:end], part.Distances)
			return nil
		})
	}

	if err := p.Wait(); err != nil {
		return Result{}, err
	}
	return res, nil
}

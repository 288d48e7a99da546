package nearest

import (
	"github.com/wyfcoding/geonear/geo"
	"github.com/wyfcoding/geonear/xerrors"
)

// Searcher 是最近格点检索能力的统一抽象。
type Searcher interface {
	// Nearest 为每个参考点返回最近点的下标与大圆距离（米）。
	Nearest(points []geo.Point) (Result, error)
}

// Result 批量查询结果，长度等于参考点个数。
type Result struct {
	Indices   []int     `json:"indices"`
	Distances []float64 `json:"distances"`
}

// Match 单个参考点的查询结果。
type Match struct {
	Index    int     `json:"index"`
	Distance float64 `json:"distance"`
}

func newResult(n int) Result {
	return Result{
		Indices:   make([]int, n),
		Distances: make([]float64, n),
	}
}

// Len 返回结果个数。
func (r Result) Len() int { return len(r.Indices) }

// At 返回第 i 个参考点的结果。
func (r Result) At(i int) Match {
	return Match{Index: r.Indices[i], Distance: r.Distances[i]}
}

// NearestPoint 单点查询的便捷封装，内部仍走批量路径。
func NearestPoint(s Searcher, p geo.Point) (Match, error) {
	res, err := s.Nearest([]geo.Point{p})
	if err != nil {
		return Match{}, err
	}
	return res.At(0), nil
}

// QueryPoints 将平行的纬度、经度数组组装为参考点列。
func QueryPoints(lats, lons []float64) ([]geo.Point, error) {
	if len(lats) != len(lons) {
		return nil, xerrors.InvalidInput("reference latitudes (%d) and longitudes (%d) differ in length", len(lats), len(lons))
	}
	points := make([]geo.Point, len(lats))
	for i := range lats {
		points[i] = geo.Point{Lat: lats[i], Lon: lons[i]}
	}
	return points, nil
}

func validatePoints(points []geo.Point) error {
	for i, p := range points {
		if !geo.ValidLatitude(p.Lat) {
			return xerrors.InvalidInput("reference latitude %v at position %d outside [-90, 90]", p.Lat, i)
		}
	}
	return nil
}

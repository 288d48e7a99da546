package nearest

import (
	"github.com/wyfcoding/geonear/geo"
)

// BruteForce 是精确暴力检索器：每次查询对全部候选点计算 Haversine 距离。
// 不持有任何预计算状态，适合小规模点集或一次性查询。
type BruteForce struct {
	set *CoordinateSet
}

// NewBruteForce 创建暴力检索器。
func NewBruteForce(set *CoordinateSet) *BruteForce {
	return &BruteForce{set: set}
}

// Nearest 实现 Searcher。
func (b *BruteForce) Nearest(points []geo.Point) (Result, error) {
	return NearestBrute(points, b.set)
}

// NearestBrute 对每个参考点线性扫描坐标集，复杂度 O(M·N)。
// 距离在舍入噪声内相同时取下标最小者。
func NearestBrute(points []geo.Point, set *CoordinateSet) (Result, error) {
	c, err := set.load()
	if err != nil {
		return Result{}, err
	}
	if err := validatePoints(points); err != nil {
		return Result{}, err
	}

	res := newResult(len(points))
	for qi, p := range points {
		res.Indices[qi], res.Distances[qi] = bruteOne(p, c)
	}
	return res, nil
}

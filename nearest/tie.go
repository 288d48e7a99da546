package nearest

import (
	"math"

	"github.com/wyfcoding/geonear/geo"
)

// 并列判定。两个候选的 Haversine 距离之差不超过舍入噪声时视为等距，取下标最小者。
// 经度相差 360° 的同一位置、极点上的重复点等场景依赖该规则让两种策略给出相同下标。
const (
	tieAbsMeters = 1e-6
	tieRel       = 1e-12
)

// 索引按弦长平方收集候选的窗口，须覆盖所有在 Haversine 意义下与最优并列的点。
const (
	windowAbs = 1e-12
	windowRel = 1e-9
)

// tieBound 返回与最小距离 d 并列的距离上界。
func tieBound(d float64) float64 {
	return d + tieAbsMeters + tieRel*d
}

// window 返回最小弦长平方 d 对应的候选收集上界。
func window(d float64) float64 {
	return d + windowAbs + windowRel*d
}

// bruteOne 线性扫描全部候选：第一遍求最小距离，第二遍取与之并列的最小下标。
// 查询点为 NaN 或全部候选为 NaN 时返回下标 0。
func bruteOne(p geo.Point, c *coords) (int, float64) {
	minD := math.Inf(1)
	for i := range c.lats {
		if d := geo.Haversine(p.Lat, p.Lon, c.lats[i], c.lons[i]); d < minD {
			minD = d
		}
	}
	if math.IsInf(minD, 1) {
		return 0, geo.Haversine(p.Lat, p.Lon, c.lats[0], c.lons[0])
	}

	bound := tieBound(minD)
	for i := range c.lats {
		if d := geo.Haversine(p.Lat, p.Lon, c.lats[i], c.lons[i]); d <= bound {
			return i, d
		}
	}
	return 0, minD
}

type candidate struct {
	idx  int32
	dist float64
}

// pickTied 对窗口内的候选按 Haversine 重新排序，规则与 bruteOne 一致。
// 传入的切片被原地改写。
func pickTied(p geo.Point, c *coords, cands []candidate, bestSq float64) (int, float64) {
	limit := window(bestSq)
	kept := cands[:0]
	minD := math.Inf(1)
	for _, cd := range cands {
		if !(cd.dist <= limit) {
			continue
		}
		d := geo.Haversine(p.Lat, p.Lon, c.lats[cd.idx], c.lons[cd.idx])
		kept = append(kept, candidate{idx: cd.idx, dist: d})
		if d < minD {
			minD = d
		}
	}
	if math.IsInf(minD, 1) {
		return 0, geo.Haversine(p.Lat, p.Lon, c.lats[0], c.lons[0])
	}

	bound := tieBound(minD)
	best, bestD := int32(-1), 0.0
	for _, cd := range kept {
		if cd.dist <= bound && (best < 0 || cd.idx < best) {
			best, bestD = cd.idx, cd.dist
		}
	}
	return int(best), bestD
}

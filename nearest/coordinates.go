// Package nearest 实现非结构化地理坐标集合上的最近格点检索。
//
// 提供两种等价的检索策略：
//   - Index：单位球面投影后的 k-d 树，一次构建、多次亚线性查询；
//   - BruteForce：逐点计算 Haversine 距离的精确暴力检索，无需预计算。
//
// 两者都实现 Searcher 接口，返回相同形状的 Result（坐标集下标 + 大圆距离，单位米），
// 调用方可以在不修改下游代码的情况下切换策略。
package nearest

import (
	"sync/atomic"

	"github.com/wyfcoding/geonear/geo"
	"github.com/wyfcoding/geonear/xerrors"
)

type coords struct {
	lats []float64
	lons []float64
}

// CoordinateSet 是一组按位置配对的经纬度（单位：度），构建后不可变。
// 构造函数接管传入切片的所有权，调用方之后不得再修改它们。
// 必须通过 NewCoordinateSet 或 FromPoints 构造；零值上的查询返回 ErrInvalidInput。
type CoordinateSet struct {
	data atomic.Pointer[coords]
	n    int
}

// NewCoordinateSet 校验并构造坐标集。
// 长度不一致、点集为空或纬度超出 [-90, 90] 时返回 ErrInvalidInput 类错误。
func NewCoordinateSet(lats, lons []float64) (*CoordinateSet, error) {
	if len(lats) != len(lons) {
		return nil, xerrors.InvalidInput("latitudes (%d) and longitudes (%d) differ in length", len(lats), len(lons))
	}
	if len(lats) == 0 {
		return nil, xerrors.InvalidInput("coordinate set is empty")
	}
	for i, lat := range lats {
		if !geo.ValidLatitude(lat) {
			return nil, xerrors.InvalidInput("latitude %v at index %d outside [-90, 90]", lat, i)
		}
	}

	s := &CoordinateSet{n: len(lats)}
	s.data.Store(&coords{lats: lats, lons: lons})
	return s, nil
}

// FromPoints 由点列构造坐标集。
func FromPoints(points []geo.Point) (*CoordinateSet, error) {
	lats := make([]float64, len(points))
	lons := make([]float64, len(points))
	for i, p := range points {
		lats[i] = p.Lat
		lons[i] = p.Lon
	}
	return NewCoordinateSet(lats, lons)
}

// Len 返回点数 N。
func (s *CoordinateSet) Len() int {
	if s == nil {
		return 0
	}
	return s.n
}

// Point 返回第 i 个点。
func (s *CoordinateSet) Point(i int) (geo.Point, error) {
	c, err := s.load()
	if err != nil {
		return geo.Point{}, err
	}
	if i < 0 || i >= len(c.lats) {
		return geo.Point{}, xerrors.InvalidInput("index %d outside [0, %d)", i, len(c.lats))
	}
	return geo.Point{Lat: c.lats[i], Lon: c.lons[i]}, nil
}

// Lats 返回纬度数组，坐标集释放后返回 nil。返回值只读。
func (s *CoordinateSet) Lats() []float64 {
	if s == nil {
		return nil
	}
	if c := s.data.Load(); c != nil {
		return c.lats
	}
	return nil
}

// Lons 返回经度数组，坐标集释放后返回 nil。返回值只读。
func (s *CoordinateSet) Lons() []float64 {
	if s == nil {
		return nil
	}
	if c := s.data.Load(); c != nil {
		return c.lons
	}
	return nil
}

// Release 释放坐标数据。此后基于该坐标集的索引查询都会返回 ErrStaleIndex。
func (s *CoordinateSet) Release() {
	if s == nil {
		return
	}
	s.data.Store(nil)
}

// Released 报告坐标集是否已释放。nil 坐标集视为已释放。
func (s *CoordinateSet) Released() bool {
	return s == nil || s.data.Load() == nil
}

func (s *CoordinateSet) load() (*coords, error) {
	if s == nil {
		return nil, xerrors.InvalidInput("coordinate set is nil")
	}
	c := s.data.Load()
	if c == nil && s.n == 0 {
		// 零值 CoordinateSet 未经 NewCoordinateSet 构造
		return nil, xerrors.InvalidInput("coordinate set was not constructed")
	}
	if c == nil {
		return nil, xerrors.StaleIndex("coordinate set of %d points was released", s.n)
	}
	return c, nil
}

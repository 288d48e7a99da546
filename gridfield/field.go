// Package gridfield 把带数值的格点场（HRRR 等数值模式输出、观测站网）
// 适配为 nearest 包的坐标集，使任意参考点都能取到最近格点的值。
package gridfield

import (
	"encoding/json"
	"math"

	"github.com/wyfcoding/geonear/geo"
	"github.com/wyfcoding/geonear/nearest"
	"github.com/wyfcoding/geonear/xerrors"
)

// Field 是一个命名的格点场，Values 与 Coords 按位置一一对应。
type Field struct {
	Name   string
	Coords *nearest.CoordinateSet
	Values []float64
}

// Sample 是一次最近格点查询的结果。
type Sample struct {
	Index    int       `json:"index"`
	Distance float64   `json:"distance"`
	Value    float64   `json:"value"`
	Point    geo.Point `json:"point"` // 命中格点的坐标
}

// New 校验并构造格点场，values 的长度必须等于格点数。
func New(name string, lats, lons, values []float64) (*Field, error) {
	set, err := nearest.NewCoordinateSet(lats, lons)
	if err != nil {
		return nil, err
	}
	if len(values) != set.Len() {
		return nil, xerrors.InvalidInput("field %q has %d values for %d gridpoints", name, len(values), set.Len())
	}
	return &Field{Name: name, Coords: set, Values: values}, nil
}

// Len 返回格点数。
func (f *Field) Len() int {
	return f.Coords.Len()
}

// Lookup 用 s 检索每个参考点的最近格点并附带取值。
func (f *Field) Lookup(s nearest.Searcher, points []geo.Point) ([]Sample, error) {
	res, err := s.Nearest(points)
	if err != nil {
		return nil, err
	}
	return f.Samples(res)
}

// Samples 将检索结果映射为带值的样本。距离为 NaN 的结果取值也为 NaN。
func (f *Field) Samples(res nearest.Result) ([]Sample, error) {
	out := make([]Sample, res.Len())
	for i := range out {
		m := res.At(i)
		p, err := f.Coords.Point(m.Index)
		if err != nil {
			return nil, err
		}
		v := f.Values[m.Index]
		if math.IsNaN(m.Distance) {
			v = math.NaN()
		}
		out[i] = Sample{Index: m.Index, Distance: m.Distance, Value: v, Point: p}
	}
	return out, nil
}

// Release 释放坐标集，之后基于它构建的检索器都会返回 ErrStaleIndex。
func (f *Field) Release() {
	f.Coords.Release()
}

type sampleJSON struct {
	Index    int       `json:"index"`
	Distance *float64  `json:"distance"`
	Value    *float64  `json:"value"`
	Point    geo.Point `json:"point"`
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func orNaN(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}

// MarshalJSON 将 NaN 距离与取值编码为 null。
func (s Sample) MarshalJSON() ([]byte, error) {
	return json.Marshal(sampleJSON{
		Index:    s.Index,
		Distance: finite(s.Distance),
		Value:    finite(s.Value),
		Point:    s.Point,
	})
}

// UnmarshalJSON 将 null 还原为 NaN。
func (s *Sample) UnmarshalJSON(data []byte) error {
	var raw sampleJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = Sample{Index: raw.Index, Distance: orNaN(raw.Distance), Value: orNaN(raw.Value), Point: raw.Point}
	return nil
}

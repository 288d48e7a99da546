package gridfield

import (
	"math"

	"github.com/wyfcoding/geonear/geo"
	"github.com/wyfcoding/geonear/xerrors"
)

// LambertEarthRadius 是 GRIB2 shape-of-earth=6 的球体半径，HRRR 标准。
const LambertEarthRadius = 6371229.0

// LambertGrid 保存 GRIB2 GDT 3.30（Lambert 正形圆锥投影）网格参数。
// 经度可以使用 0..360 或带符号的约定。
type LambertGrid struct {
	Ni, Nj         int
	La1, Lo1       float64 // 首个格点（西南角），度
	LoV            float64 // 中央经线，度
	Latin1, Latin2 float64 // 标准纬线，度
	Dx, Dy         float64 // 格距，米
}

func (g *LambertGrid) validate() error {
	switch {
	case g.Ni <= 0 || g.Nj <= 0:
		return xerrors.InvalidInput("lambert grid dimensions %dx%d must be positive", g.Ni, g.Nj)
	case !(g.Dx > 0) || !(g.Dy > 0):
		return xerrors.InvalidInput("lambert grid spacing %vx%v must be positive", g.Dx, g.Dy)
	case g.Latin1 == 0 && g.Latin2 == 0:
		return xerrors.InvalidInput("lambert standard parallels must not both be on the equator")
	}
	return nil
}

// cone 返回圆锥常数 n。
func (g *LambertGrid) cone() float64 {
	if g.Latin1 == g.Latin2 {
		return math.Sin(geo.ToRad(g.Latin1))
	}
	φ1 := geo.ToRad(g.Latin1)
	φ2 := geo.ToRad(g.Latin2)
	return math.Log(math.Cos(φ1)/math.Cos(φ2)) /
		math.Log(math.Tan(math.Pi/4+φ2/2)/math.Tan(math.Pi/4+φ1/2))
}

func (g *LambertGrid) bigF(n float64) float64 {
	φ1 := geo.ToRad(g.Latin1)
	return math.Cos(φ1) * math.Pow(math.Tan(math.Pi/4+φ1/2), n) / n
}

func (g *LambertGrid) rho(n, f, latDeg float64) float64 {
	φ := geo.ToRad(latDeg)
	return LambertEarthRadius * f / math.Pow(math.Tan(math.Pi/4+φ/2), n)
}

// origin 返回首个格点的投影坐标，x 向东、y 向北为正。
func (g *LambertGrid) origin(n, f float64) (x0, y0 float64) {
	ρ0 := g.rho(n, f, g.La1)
	θ0 := n * geo.ToRad(geo.NormLon(g.Lo1)-geo.NormLon(g.LoV))
	return ρ0 * math.Sin(θ0), -ρ0 * math.Cos(θ0)
}

// LatLonToIJ 将经纬度映射到投影空间中最近的 (i, j)，i 向东、j 向北递增。
// 结果可能落在网格之外。
func (g *LambertGrid) LatLonToIJ(lat, lon float64) (i, j int) {
	n := g.cone()
	f := g.bigF(n)
	ρ := g.rho(n, f, lat)
	θ := n * geo.ToRad(geo.NormLon(lon)-geo.NormLon(g.LoV))
	x := ρ * math.Sin(θ)
	y := -ρ * math.Cos(θ)

	x0, y0 := g.origin(n, f)
	return int(math.Round((x - x0) / g.Dx)), int(math.Round((y - y0) / g.Dy))
}

// IJToLatLon 将格点下标反投影为经纬度，经度为带符号形式。
func (g *LambertGrid) IJToLatLon(i, j int) (lat, lon float64) {
	n := g.cone()
	f := g.bigF(n)
	x0, y0 := g.origin(n, f)
	return g.inverse(n, f, x0+float64(i)*g.Dx, y0+float64(j)*g.Dy)
}

func (g *LambertGrid) inverse(n, f, x, y float64) (lat, lon float64) {
	ρ := math.Sqrt(x*x + y*y)
	if ρ == 0 {
		return 90, geo.NormLon(g.LoV)
	}
	θ := math.Atan2(x, -y)
	φ := 2*math.Atan(math.Pow(LambertEarthRadius*f/ρ, 1/n)) - math.Pi/2
	return geo.ToDeg(φ), geo.NormLon(g.LoV) + geo.ToDeg(θ)/n
}

// Coordinates 枚举全部格点的经纬度，按行优先排列（下标 j*Ni+i）。
func (g *LambertGrid) Coordinates() (lats, lons []float64, err error) {
	if err := g.validate(); err != nil {
		return nil, nil, err
	}
	n := g.cone()
	f := g.bigF(n)
	x0, y0 := g.origin(n, f)

	total := g.Ni * g.Nj
	lats = make([]float64, total)
	lons = make([]float64, total)
	for j := range g.Nj {
		y := y0 + float64(j)*g.Dy
		row := j * g.Ni
		for i := range g.Ni {
			lats[row+i], lons[row+i] = g.inverse(n, f, x0+float64(i)*g.Dx, y)
		}
	}
	return lats, lons, nil
}

// FromLambert 由 Lambert 网格与行优先的数值构造格点场。
func FromLambert(name string, g LambertGrid, values []float64) (*Field, error) {
	lats, lons, err := g.Coordinates()
	if err != nil {
		return nil, err
	}
	return New(name, lats, lons, values)
}

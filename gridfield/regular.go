package gridfield

import "github.com/wyfcoding/geonear/xerrors"

// FromRegular 由规则经纬度网格构造格点场。
// 第 j 行第 i 列格点位于 (lat0+j*dLat, lon0+i*dLon)，数值下标为 j*nLon+i。
func FromRegular(name string, lat0, lon0, dLat, dLon float64, nLat, nLon int, values []float64) (*Field, error) {
	if nLat <= 0 || nLon <= 0 {
		return nil, xerrors.InvalidInput("regular grid dimensions %dx%d must be positive", nLat, nLon)
	}
	lats := make([]float64, nLat*nLon)
	lons := make([]float64, nLat*nLon)
	for j := range nLat {
		lat := lat0 + float64(j)*dLat
		for i := range nLon {
			lats[j*nLon+i] = lat
			lons[j*nLon+i] = lon0 + float64(i)*dLon
		}
	}
	return New(name, lats, lons, values)
}

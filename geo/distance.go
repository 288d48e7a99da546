// Package geo 提供了球面地理计算工具。
// 基于球形地球模型实现 Haversine 大圆距离，以及经纬度到单位球笛卡尔坐标的投影，
// 供最近格点检索的暴力路径与索引路径共享同一距离度量。
package geo

import (
	"math"
)

// 地球相关常量。
const (
	// EarthRadiusMeters 球形地球平均半径（米）。
	EarthRadiusMeters = 6371000.0
	degreeToRadFactor = math.Pi / 180.0
)

// Point 表示一个地理经纬度坐标点（单位：度）。
type Point struct {
	Lat float64 `json:"lat"` // 纬度
	Lon float64 `json:"lon"` // 经度
}

// Haversine 计算两点间的大圆距离（单位：米）。
// asin 的参数被截断到 1，防止对跖点或重合点处浮点溢出导致定义域错误。
// 输入含 NaN 时返回 NaN。
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	lat1Rad := lat1 * degreeToRadFactor
	lat2Rad := lat2 * degreeToRadFactor
	dLat := (lat2 - lat1) * degreeToRadFactor
	dLon := (lon2 - lon1) * degreeToRadFactor

	sinLat := math.Sin(dLat / 2)
	sinLon := math.Sin(dLon / 2)
	a := sinLat*sinLat + math.Cos(lat1Rad)*math.Cos(lat2Rad)*sinLon*sinLon

	return 2 * EarthRadiusMeters * math.Asin(math.Min(1, math.Sqrt(a)))
}

// Distance 计算两点间的距离（单位：米）。
func Distance(p1, p2 Point) float64 {
	return Haversine(p1.Lat, p1.Lon, p2.Lat, p2.Lon)
}

// ValidLatitude 报告纬度是否越界。
// NaN 不视为越界，由距离计算向下游传播。
func ValidLatitude(lat float64) bool {
	return !(lat < -90 || lat > 90)
}

// NormLon 将 0..360 经度转换为 -180..180。
func NormLon(lon float64) float64 {
	if lon > 180 {
		return lon - 360
	}
	return lon
}

// ToRad 角度转弧度。
func ToRad(deg float64) float64 { return deg * degreeToRadFactor }

// ToDeg 弧度转角度。
func ToDeg(rad float64) float64 { return rad / degreeToRadFactor }

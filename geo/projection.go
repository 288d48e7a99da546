package geo

import "math"

// Vec3 单位球面上的三维笛卡尔坐标。
type Vec3 [3]float64

// ToUnitVector 将经纬度（度）投影到单位球面。
// 单位球上的欧氏距离是大圆距离的单调函数，且不存在经度回绕与极点奇异问题。
func ToUnitVector(lat, lon float64) Vec3 {
	latRad := lat * degreeToRadFactor
	lonRad := lon * degreeToRadFactor
	cosLat := math.Cos(latRad)
	return Vec3{
		cosLat * math.Cos(lonRad),
		cosLat * math.Sin(lonRad),
		math.Sin(latRad),
	}
}

// DistSq 返回两个向量间欧氏距离的平方。
func (v Vec3) DistSq(o Vec3) float64 {
	dx := v[0] - o[0]
	dy := v[1] - o[1]
	dz := v[2] - o[2]
	return dx*dx + dy*dy + dz*dz
}

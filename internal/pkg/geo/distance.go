package geo

import "math"

// earthRadiusKm 地球平均半径（公里）。
const earthRadiusKm = 6371.0

// DistanceKm 计算两个经纬度坐标之间的大圆距离（haversine 公式）。
//
// 参数:
//
//	lat1, lon1: 第一个点的纬度/经度（十进制度）
//	lat2, lon2: 第二个点的纬度/经度（十进制度）
//
// 返回值:
//
//	float64: 距离，单位公里
func DistanceKm(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusKm * c
}

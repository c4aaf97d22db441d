package utils

import (
	"math"

	"power-grid/model"
)

// EarthRadiusKm 球面地球模型半径 (公里)
const EarthRadiusKm = 6371.0

// KmToMiles 公里转英里系数
const KmToMiles = 0.621371

// DegreesToRadians 角度转弧度
func DegreesToRadians(d float64) float64 {
	return d * math.Pi / 180.0
}

// GreatCircleDistance Haversine 公式计算两点间球面距离 (公里)
// 输入为 (纬度, 经度) 角度值
func GreatCircleDistance(p1, p2 model.Point) float64 {
	lat1 := DegreesToRadians(p1.Lat)
	lon1 := DegreesToRadians(p1.Lng)
	lat2 := DegreesToRadians(p2.Lat)
	lon2 := DegreesToRadians(p2.Lng)

	dLat := lat2 - lat1
	dLon := lon2 - lon1
	// a = sin²(Δlat/2) + cos(lat1) * cos(lat2) * sin²(Δlon/2)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	// 浮点误差可能让 a 略大于 1
	c := 2 * math.Asin(math.Sqrt(math.Min(1, a)))

	return EarthRadiusKm * c
}

// BoundingBoxDiagonal 矩形区域对角线长度 (西南角到东北角, 公里)
func BoundingBoxDiagonal(r model.Region) float64 {
	return GreatCircleDistance(
		model.Point{Lat: r.South, Lng: r.West},
		model.Point{Lat: r.North, Lng: r.East},
	)
}

// PolylineLength 折线总长度 (公里)
// 注意: 点按 GeoJSON 的 [经度, 纬度] 顺序给出
func PolylineLength(points [][2]float64) float64 {
	if len(points) < 2 {
		return 0
	}

	total := 0.0
	for i := 0; i < len(points)-1; i++ {
		p1 := model.Point{Lat: points[i][1], Lng: points[i][0]}
		p2 := model.Point{Lat: points[i+1][1], Lng: points[i+1][0]}
		total += GreatCircleDistance(p1, p2)
	}
	return total
}

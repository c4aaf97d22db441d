package model

// 原始地图数据元素类型
const (
	ElementNode     = "node"
	ElementWay      = "way"
	ElementRelation = "relation"
)

// LatLon 原始几何点
type LatLon struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Member relation 的成员
type Member struct {
	Type     string   `json:"type"`
	Ref      int64    `json:"ref"`
	Role     string   `json:"role"`
	Geometry []LatLon `json:"geometry,omitempty"`
}

// Element 地图数据服务返回的一个原始元素
type Element struct {
	Type     string            `json:"type"`
	ID       int64             `json:"id"`
	Tags     map[string]string `json:"tags,omitempty"`
	Lat      *float64          `json:"lat,omitempty"` // 仅 node
	Lon      *float64          `json:"lon,omitempty"`
	Geometry []LatLon          `json:"geometry,omitempty"` // way 的有序点列
	Members  []Member          `json:"members,omitempty"`  // 仅 relation
}

// Coordinates 将几何点转换为 [经度, 纬度] 序列
func Coordinates(points []LatLon) [][2]float64 {
	coords := make([][2]float64, 0, len(points))
	for _, p := range points {
		coords = append(coords, [2]float64{p.Lon, p.Lat})
	}
	return coords
}

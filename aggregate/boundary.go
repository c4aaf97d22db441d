package aggregate

import (
	"power-grid/model"
)

// minRingPositions 闭合环最少需要的点数
const minRingPositions = 4

// Boundary 将 relation 的 outer 成员拼接为多边形
// 没有任何可用几何时返回一个覆盖 fallback 区域的近似矩形, 保证结果非空
func Boundary(elements []model.Element, name string, fallback model.Region) model.FeatureCollection {
	var features []model.Feature

	for i := range elements {
		el := &elements[i]
		if el.Type != model.ElementRelation {
			continue
		}

		ring := outerRing(el.Members)
		if len(ring) < minRingPositions {
			continue
		}

		relName := el.Tags["name"]
		if relName == "" {
			relName = name
		}
		var props model.Tags
		props.Set("name", model.Text(relName))
		props.Set("type", model.Text("boundary"))
		props.Set("osm_id", model.Number(float64(el.ID)))
		features = append(features, model.NewPolygonFeature(ring, props))
	}

	if len(features) == 0 {
		features = append(features, approximateBoundary(name, fallback))
	}
	return model.NewFeatureCollection(features)
}

// outerRing 按顺序拼接所有 outer way 的几何, 首尾不同则闭合
func outerRing(members []model.Member) [][2]float64 {
	var ring [][2]float64
	for _, m := range members {
		if m.Type != model.ElementWay || m.Role != "outer" {
			continue
		}
		for _, p := range m.Geometry {
			pos := [2]float64{p.Lon, p.Lat}
			// 相邻 way 的衔接点只保留一次
			if n := len(ring); n > 0 && ring[n-1] == pos {
				continue
			}
			ring = append(ring, pos)
		}
	}
	if len(ring) > 0 && ring[0] != ring[len(ring)-1] {
		ring = append(ring, ring[0])
	}
	return ring
}

// approximateBoundary 默认区域的矩形
func approximateBoundary(name string, r model.Region) model.Feature {
	ring := [][2]float64{
		{r.West, r.South}, // SW
		{r.West, r.North}, // NW
		{r.East, r.North}, // NE
		{r.East, r.South}, // SE
		{r.West, r.South},
	}

	var props model.Tags
	props.Set("name", model.Text(name))
	props.Set("type", model.Text("boundary"))
	props.Set("note", model.Text("approximate"))
	return model.NewPolygonFeature(ring, props)
}

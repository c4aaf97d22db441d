// Package aggregate 将原始地图元素转换为 GeoJSON 要素并汇总统计
package aggregate

import (
	"sort"
	"strings"

	"power-grid/model"
	"power-grid/utils"
)

// ClassTag 用于分类的标签键
const ClassTag = "power"

// VoltageTag 电压标签键
const VoltageTag = "voltage"

// Aggregator 按标签类别识别线路和设备
type Aggregator struct {
	TransmissionClass string // 输电线路, 如 "line"
	DistributionClass string // 配电线路, 如 "minor_line"
	DeviceClass       string // 计数的设备, 如 "substation"
}

// Default 默认分类: line / minor_line / substation
func Default() Aggregator {
	return Aggregator{
		TransmissionClass: "line",
		DistributionClass: "minor_line",
		DeviceClass:       "substation",
	}
}

// LineClasses 需要查询的线路类别
func (a Aggregator) LineClasses() []string {
	return []string{a.TransmissionClass, a.DistributionClass}
}

// Power 转换线路和设备元素, 计算里程、设备数和电压范围
func (a Aggregator) Power(elements []model.Element) model.PowerResult {
	var (
		features     []model.Feature
		transmission float64
		distribution float64
		devices      int
		volts        voltageRange
	)

	for i := range elements {
		el := &elements[i]
		class := el.Tags[ClassTag]

		if v, ok := el.Tags[VoltageTag]; ok {
			volts.add(v)
		}

		switch {
		case el.Type == model.ElementWay && (class == a.TransmissionClass || class == a.DistributionClass):
			if len(el.Geometry) < 2 {
				continue
			}
			coords := model.Coordinates(el.Geometry)
			km := utils.PolylineLength(coords)
			miles := km * utils.KmToMiles

			if class == a.TransmissionClass {
				transmission += miles
			} else {
				distribution += miles
			}

			props := copyTags(el.Tags)
			props.Set("osm_id", model.Number(float64(el.ID)))
			props.Set("length_km", model.Number(model.RoundTo(km, 3)))
			props.Set("length_miles", model.Number(model.RoundTo(miles, 3)))
			features = append(features, model.NewLineFeature(coords, props))

		case el.Type == model.ElementNode && class == a.DeviceClass:
			if el.Lat == nil || el.Lon == nil {
				continue
			}
			devices++

			props := copyTags(el.Tags)
			props.Set("osm_id", model.Number(float64(el.ID)))
			features = append(features, model.NewPointFeature(*el.Lon, *el.Lat, props))
		}
	}

	stats := model.Stats{
		TransmissionMiles: model.RoundTo(transmission, 2),
		DistributionMiles: model.RoundTo(distribution, 2),
		DeviceCount:       devices,
	}
	stats.MinVoltage, stats.MaxVoltage = volts.bounds()

	return model.PowerResult{
		GeoJSON: model.NewFeatureCollection(features),
		Stats:   stats,
	}
}

// copyTags 复制所有非空标签 (去除首尾空白后判断), 按键排序
func copyTags(tags map[string]string) model.Tags {
	keys := make([]string, 0, len(tags))
	for k, v := range tags {
		if strings.TrimSpace(v) != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var out model.Tags
	for _, k := range keys {
		out.Set(k, model.Text(tags[k]))
	}
	return out
}

// voltageRange 累积解析出的电压值
type voltageRange struct {
	min, max int64
	seen     bool
}

func (r *voltageRange) add(raw string) {
	v, ok := ParseVoltage(raw)
	if !ok {
		return
	}
	if !r.seen {
		r.min, r.max, r.seen = v, v, true
		return
	}
	if v < r.min {
		r.min = v
	}
	if v > r.max {
		r.max = v
	}
}

func (r *voltageRange) bounds() (*int64, *int64) {
	if !r.seen {
		return nil, nil
	}
	lo, hi := r.min, r.max
	return &lo, &hi
}

package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// TagKind 标签值类型
type TagKind int

const (
	TagText TagKind = iota
	TagNumber
)

// TagValue 标签值: 文本或数字
type TagValue struct {
	Kind   TagKind
	Text   string
	Number float64
}

// Text 构造文本标签值
func Text(s string) TagValue { return TagValue{Kind: TagText, Text: s} }

// Number 构造数字标签值
func Number(n float64) TagValue { return TagValue{Kind: TagNumber, Number: n} }

func (v TagValue) MarshalJSON() ([]byte, error) {
	if v.Kind == TagNumber {
		return json.Marshal(v.Number)
	}
	return json.Marshal(v.Text)
}

func (v *TagValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		v.Kind = TagText
		return json.Unmarshal(data, &v.Text)
	}
	v.Kind = TagNumber
	return json.Unmarshal(data, &v.Number)
}

// Tags 有序的标签映射, 序列化时保持插入顺序
type Tags struct {
	keys   []string
	values map[string]TagValue
}

// Set 设置标签, 已存在的键保持原位置
func (t *Tags) Set(key string, v TagValue) {
	if t.values == nil {
		t.values = make(map[string]TagValue)
	}
	if _, ok := t.values[key]; !ok {
		t.keys = append(t.keys, key)
	}
	t.values[key] = v
}

// Get 读取标签
func (t Tags) Get(key string) (TagValue, bool) {
	v, ok := t.values[key]
	return v, ok
}

// Keys 按插入顺序返回所有键
func (t Tags) Keys() []string {
	return append([]string(nil), t.keys...)
}

// Len 标签数量
func (t Tags) Len() int { return len(t.keys) }

func (t Tags) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range t.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(t.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (t *Tags) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*t = Tags{}
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("tags: expected object, got %v", tok)
	}

	*t = Tags{}
	for dec.More() {
		kt, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := kt.(string)
		if !ok {
			return fmt.Errorf("tags: expected string key, got %v", kt)
		}
		var v TagValue
		if err := dec.Decode(&v); err != nil {
			return fmt.Errorf("tags: value of %q: %w", key, err)
		}
		t.Set(key, v)
	}
	_, err = dec.Token()
	return err
}

// GeometryType GeoJSON 几何类型
type GeometryType string

const (
	GeometryPoint      GeometryType = "Point"
	GeometryLineString GeometryType = "LineString"
	GeometryPolygon    GeometryType = "Polygon"
)

// Geometry GeoJSON 几何体, 坐标均为 [经度, 纬度]
// 按 Type 只使用对应的一个坐标字段
type Geometry struct {
	Type    GeometryType
	Point   [2]float64
	Line    [][2]float64
	Polygon [][][2]float64
}

type geometryJSON struct {
	Type        GeometryType    `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

func (g Geometry) MarshalJSON() ([]byte, error) {
	var coords interface{}
	switch g.Type {
	case GeometryPoint:
		coords = g.Point
	case GeometryLineString:
		coords = g.Line
	case GeometryPolygon:
		coords = g.Polygon
	default:
		return nil, fmt.Errorf("geometry: unknown type %q", g.Type)
	}
	raw, err := json.Marshal(coords)
	if err != nil {
		return nil, err
	}
	return json.Marshal(geometryJSON{Type: g.Type, Coordinates: raw})
}

func (g *Geometry) UnmarshalJSON(data []byte) error {
	var aux geometryJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*g = Geometry{Type: aux.Type}
	switch aux.Type {
	case GeometryPoint:
		return json.Unmarshal(aux.Coordinates, &g.Point)
	case GeometryLineString:
		return json.Unmarshal(aux.Coordinates, &g.Line)
	case GeometryPolygon:
		return json.Unmarshal(aux.Coordinates, &g.Polygon)
	default:
		return fmt.Errorf("geometry: unknown type %q", aux.Type)
	}
}

// Feature GeoJSON 要素
type Feature struct {
	Type       string   `json:"type"`
	Geometry   Geometry `json:"geometry"`
	Properties Tags     `json:"properties"`
}

// NewPointFeature 点要素
func NewPointFeature(lon, lat float64, props Tags) Feature {
	return Feature{
		Type:       "Feature",
		Geometry:   Geometry{Type: GeometryPoint, Point: [2]float64{lon, lat}},
		Properties: props,
	}
}

// NewLineFeature 线要素
func NewLineFeature(coords [][2]float64, props Tags) Feature {
	return Feature{
		Type:       "Feature",
		Geometry:   Geometry{Type: GeometryLineString, Line: coords},
		Properties: props,
	}
}

// NewPolygonFeature 面要素 (单个外环)
func NewPolygonFeature(ring [][2]float64, props Tags) Feature {
	return Feature{
		Type:       "Feature",
		Geometry:   Geometry{Type: GeometryPolygon, Polygon: [][][2]float64{ring}},
		Properties: props,
	}
}

// FeatureCollection GeoJSON 要素集合
type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

// NewFeatureCollection 创建要素集合, features 为 nil 时序列化为空数组
func NewFeatureCollection(features []Feature) FeatureCollection {
	if features == nil {
		features = []Feature{}
	}
	return FeatureCollection{Type: "FeatureCollection", Features: features}
}

// Stats 区域内电力设施汇总
type Stats struct {
	TransmissionMiles float64 `json:"transmission_miles"`
	DistributionMiles float64 `json:"distribution_miles"`
	DeviceCount       int     `json:"device_count"`
	MinVoltage        *int64  `json:"min_voltage"` // 没有电压标签时为 null
	MaxVoltage        *int64  `json:"max_voltage"`
}

// PowerResult 电力设施查询结果
type PowerResult struct {
	GeoJSON FeatureCollection `json:"geojson"`
	Stats   Stats             `json:"stats"`
}

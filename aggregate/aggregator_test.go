package aggregate

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"power-grid/model"
	"power-grid/utils"
)

func fp(v float64) *float64 { return &v }

func way(id int64, tags map[string]string, pts ...model.LatLon) model.Element {
	return model.Element{Type: model.ElementWay, ID: id, Tags: tags, Geometry: pts}
}

func TestPower_TransmissionLineUsesGreatCircle(t *testing.T) {
	elements := []model.Element{
		way(1, map[string]string{"power": "line"}, model.LatLon{Lat: 0, Lon: 0}, model.LatLon{Lat: 0, Lon: 1}),
	}

	res := Default().Power(elements)

	require.Len(t, res.GeoJSON.Features, 1)
	f := res.GeoJSON.Features[0]
	assert.Equal(t, model.GeometryLineString, f.Geometry.Type)
	assert.Equal(t, [][2]float64{{0, 0}, {1, 0}}, f.Geometry.Line)

	// 赤道上 1 度经度的弧长
	oneDegreeKm := utils.EarthRadiusKm * math.Pi / 180
	assert.Equal(t, model.RoundTo(oneDegreeKm*0.621371, 2), res.Stats.TransmissionMiles)
	assert.InDelta(t, 69.09, res.Stats.TransmissionMiles, 0.01)
	assert.Zero(t, res.Stats.DistributionMiles)

	km, ok := f.Properties.Get("length_km")
	require.True(t, ok)
	assert.Equal(t, model.TagNumber, km.Kind)
	assert.Equal(t, model.RoundTo(oneDegreeKm, 3), km.Number)
}

func TestPower_ClassifiesAndCounts(t *testing.T) {
	elements := []model.Element{
		way(1, map[string]string{"power": "line", "voltage": "138000"},
			model.LatLon{Lat: 38.9, Lon: -94.7}, model.LatLon{Lat: 38.95, Lon: -94.7}),
		way(2, map[string]string{"power": "minor_line", "voltage": "12,470"},
			model.LatLon{Lat: 38.9, Lon: -94.7}, model.LatLon{Lat: 38.9, Lon: -94.69}, model.LatLon{Lat: 38.91, Lon: -94.69}),
		// 少于两个点的线路被跳过, 但电压仍然计入
		way(3, map[string]string{"power": "line", "voltage": "345 kV"}, model.LatLon{Lat: 38.9, Lon: -94.7}),
		// 非目标类别
		way(4, map[string]string{"power": "cable"}, model.LatLon{Lat: 0, Lon: 0}, model.LatLon{Lat: 1, Lon: 1}),
		{Type: model.ElementNode, ID: 5, Lat: fp(38.92), Lon: fp(-94.71), Tags: map[string]string{"power": "substation", "voltage": "unknown"}},
		// 缺少坐标的设备被跳过
		{Type: model.ElementNode, ID: 6, Tags: map[string]string{"power": "substation"}},
		{Type: model.ElementNode, ID: 7, Lat: fp(38.92), Lon: fp(-94.71), Tags: map[string]string{"power": "tower"}},
	}

	res := Default().Power(elements)

	require.Len(t, res.GeoJSON.Features, 3)
	assert.Equal(t, 1, res.Stats.DeviceCount)
	assert.Greater(t, res.Stats.TransmissionMiles, 0.0)
	assert.Greater(t, res.Stats.DistributionMiles, 0.0)

	require.NotNil(t, res.Stats.MinVoltage)
	require.NotNil(t, res.Stats.MaxVoltage)
	assert.EqualValues(t, 345, *res.Stats.MinVoltage)
	assert.EqualValues(t, 138000, *res.Stats.MaxVoltage)

	point := res.GeoJSON.Features[2]
	assert.Equal(t, model.GeometryPoint, point.Geometry.Type)
	assert.Equal(t, [2]float64{-94.71, 38.92}, point.Geometry.Point)
}

func TestPower_TagCopyPolicy(t *testing.T) {
	elements := []model.Element{
		way(42, map[string]string{
			"power":    "line",
			"operator": "Evergy",
			"name":     "  ",
			"cables":   "",
			"voltage":  "161000",
		}, model.LatLon{Lat: 0, Lon: 0}, model.LatLon{Lat: 0, Lon: 0.01}),
	}

	res := Default().Power(elements)
	require.Len(t, res.GeoJSON.Features, 1)

	props := res.GeoJSON.Features[0].Properties
	assert.Equal(t, []string{"operator", "power", "voltage", "osm_id", "length_km", "length_miles"}, props.Keys())

	op, _ := props.Get("operator")
	assert.Equal(t, model.Text("Evergy"), op)
	id, _ := props.Get("osm_id")
	assert.Equal(t, 42.0, id.Number)

	raw, err := json.Marshal(res.GeoJSON.Features[0].Properties)
	require.NoError(t, err)
	assert.Regexp(t, `^\{"operator":"Evergy","power":"line","voltage":"161000","osm_id":42,"length_km":`, string(raw))
}

func TestPower_NoVoltageTags(t *testing.T) {
	res := Default().Power([]model.Element{
		way(1, map[string]string{"power": "minor_line"}, model.LatLon{Lat: 0, Lon: 0}, model.LatLon{Lat: 0, Lon: 0.1}),
	})
	assert.Nil(t, res.Stats.MinVoltage)
	assert.Nil(t, res.Stats.MaxVoltage)

	raw, err := json.Marshal(res.Stats)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"min_voltage":null`)
}

func TestPower_EmptyInput(t *testing.T) {
	res := Default().Power(nil)

	assert.Empty(t, res.GeoJSON.Features)
	raw, err := json.Marshal(res.GeoJSON)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"FeatureCollection","features":[]}`, string(raw))
}

func TestPower_MileageRoundedToTwoDecimals(t *testing.T) {
	res := Default().Power([]model.Element{
		way(1, map[string]string{"power": "line"}, model.LatLon{Lat: 38.9, Lon: -94.7}, model.LatLon{Lat: 38.9137, Lon: -94.6871}),
	})
	assert.Equal(t, model.RoundTo(res.Stats.TransmissionMiles, 2), res.Stats.TransmissionMiles)
}

func TestParseVoltage(t *testing.T) {
	tests := []struct {
		in   string
		want int64
		ok   bool
	}{
		{"138000", 138000, true},
		{"138 kV", 138, true},
		{"138,000", 138000, true},
		{" 69000;13800", 69000, true},
		{"", 0, false},
		{"unknown", 0, false},
		{"kV 138", 0, false},
		{"99999999999999999999999", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseVoltage(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

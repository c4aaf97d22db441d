package model

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// MaxRegionDiagonalKm 允许查询的最大区域对角线 (公里)
const MaxRegionDiagonalKm = 60.0

var (
	// ErrInvalidRegion 区域格式错误或坐标越界
	ErrInvalidRegion = errors.New("invalid region")
	// ErrRegionTooLarge 区域过大, 需要放大地图
	ErrRegionTooLarge = errors.New("region too large")
)

// Region 矩形地理区域 (南, 西, 北, 东), 单位为度
type Region struct {
	South float64 `json:"south"`
	West  float64 `json:"west"`
	North float64 `json:"north"`
	East  float64 `json:"east"`
}

// ParseRegion 解析 "south,west,north,east" 格式的字符串
func ParseRegion(s string) (Region, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return Region{}, fmt.Errorf("%w: bbox must be 'south,west,north,east'", ErrInvalidRegion)
	}

	var vals [4]float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return Region{}, fmt.Errorf("%w: %q is not a number", ErrInvalidRegion, p)
		}
		vals[i] = v
	}
	return Region{South: vals[0], West: vals[1], North: vals[2], East: vals[3]}, nil
}

// CheckBounds 检查坐标范围和方向 (不含大小限制)
func (r Region) CheckBounds() error {
	for _, v := range []float64{r.South, r.West, r.North, r.East} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: coordinates must be finite", ErrInvalidRegion)
		}
	}
	if r.South < -90 || r.North > 90 || r.West < -180 || r.East > 180 {
		return fmt.Errorf("%w: coordinates out of range", ErrInvalidRegion)
	}
	if r.South >= r.North || r.West >= r.East {
		return fmt.Errorf("%w: south must be < north, west must be < east", ErrInvalidRegion)
	}
	return nil
}

// Round 将每个坐标四舍五入到 decimals 位小数
// 有损操作: 相近的视口会落到同一个缓存键
func (r Region) Round(decimals int) Region {
	return Region{
		South: RoundTo(r.South, decimals),
		West:  RoundTo(r.West, decimals),
		North: RoundTo(r.North, decimals),
		East:  RoundTo(r.East, decimals),
	}
}

// RoundTo 四舍五入到指定小数位
func RoundTo(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}

// Key 缓存键
func (r Region) Key() string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	return f(r.South) + "," + f(r.West) + "," + f(r.North) + "," + f(r.East)
}

// String 实现 fmt.Stringer
func (r Region) String() string {
	return "(" + r.Key() + ")"
}

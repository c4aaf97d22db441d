package utils

import (
	"fmt"

	"power-grid/model"
)

// ValidateRegion 检查区域是否合法且不超过最大对角线
// 在发起数据抓取之前由调用方执行
func ValidateRegion(r model.Region) error {
	if err := r.CheckBounds(); err != nil {
		return err
	}
	if d := BoundingBoxDiagonal(r); d > model.MaxRegionDiagonalKm {
		return fmt.Errorf("%w: zoom in, diagonal %.1f km exceeds %.0f km",
			model.ErrRegionTooLarge, d, model.MaxRegionDiagonalKm)
	}
	return nil
}

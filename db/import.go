package db

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"power-grid/algo"
	"power-grid/model"
)

// batchSize 批量插入大小
const batchSize = 100

// ImportGraph 从种子 JSON 文件导入组件和供电边
// 在同一事务中执行, 已存在的组件按 ID 覆盖, 供电边整体替换为文件中的边
func (s *Store) ImportGraph(ctx context.Context, filepath string) (components, flows int, err error) {
	data, err := algo.ReadGridData(filepath)
	if err != nil {
		return 0, 0, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(data.Components) > 0 {
			err := tx.Clauses(clause.OnConflict{UpdateAll: true}).
				CreateInBatches(data.Components, batchSize).Error
			if err != nil {
				return fmt.Errorf("插入组件失败: %w", err)
			}
		}

		// 供电边没有自然主键, 以文件为准整体替换
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&model.Flow{}).Error; err != nil {
			return fmt.Errorf("清空供电边失败: %w", err)
		}
		if len(data.Flows) > 0 {
			for i := range data.Flows {
				data.Flows[i].ID = 0
			}
			if err := tx.CreateInBatches(data.Flows, batchSize).Error; err != nil {
				return fmt.Errorf("插入供电边失败: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}

	s.logger.Info("供电图导入完成", "file", filepath, "components", len(data.Components), "flows", len(data.Flows))
	return len(data.Components), len(data.Flows), nil
}

// SeedIfEmpty 组件表为空时导入种子文件
func (s *Store) SeedIfEmpty(ctx context.Context, filepath string) error {
	if filepath == "" {
		return nil
	}
	n, err := s.CountComponents(ctx)
	if err != nil {
		return fmt.Errorf("统计组件失败: %w", err)
	}
	if n > 0 {
		return nil
	}

	s.logger.Info("检测到数据库为空, 正在导入种子数据", "file", filepath)
	_, _, err = s.ImportGraph(ctx, filepath)
	return err
}

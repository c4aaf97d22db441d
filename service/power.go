// Package service 串联缓存、地图数据查询和要素汇总
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"power-grid/aggregate"
	"power-grid/cache"
	"power-grid/metrics"
	"power-grid/model"
	"power-grid/overpass"
	"power-grid/utils"
)

// boundaryKey 边界缓存只有一个键
const boundaryKey = "boundary"

// Fetcher 地图数据查询, 由 overpass.Client 实现
type Fetcher interface {
	Execute(ctx context.Context, query string, timeout time.Duration) (*overpass.Response, error)
}

// Options PowerService 配置
type Options struct {
	BoundaryName  string
	BoundaryArea  model.Region // 边界查询范围, 也是近似边界
	RoundDecimals int          // 区域缓存键精度
	FetchTimeout  time.Duration
	Aggregator    aggregate.Aggregator
	Logger        *slog.Logger
	Metrics       *metrics.Registry
}

// PowerService 电力设施和城市边界的读取服务
//
// 并发请求可能对同一个键重复抓取并写入缓存 (后写入者生效);
// 结果幂等, 同一进程内的并发未命中由 singleflight 合并,
// 合并后的抓取不随任何单个调用方取消.
type PowerService struct {
	fetcher       Fetcher
	boundaryCache cache.Store[model.FeatureCollection]
	powerCache    cache.Store[model.PowerResult]
	group         singleflight.Group

	boundaryName  string
	boundaryArea  model.Region
	roundDecimals int
	fetchTimeout  time.Duration
	agg           aggregate.Aggregator
	logger        *slog.Logger
	metrics       *metrics.Registry
}

// NewPowerService 创建服务, 两个缓存实例由调用方注入
func NewPowerService(
	fetcher Fetcher,
	boundaryCache cache.Store[model.FeatureCollection],
	powerCache cache.Store[model.PowerResult],
	opts Options,
) *PowerService {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Aggregator == (aggregate.Aggregator{}) {
		opts.Aggregator = aggregate.Default()
	}
	return &PowerService{
		fetcher:       fetcher,
		boundaryCache: boundaryCache,
		powerCache:    powerCache,
		boundaryName:  opts.BoundaryName,
		boundaryArea:  opts.BoundaryArea,
		roundDecimals: opts.RoundDecimals,
		fetchTimeout:  opts.FetchTimeout,
		agg:           opts.Aggregator,
		logger:        opts.Logger,
		metrics:       opts.Metrics,
	}
}

// Boundary 返回城市边界, 结果永不为空 (抓取成功但没有几何时返回近似矩形)
func (s *PowerService) Boundary(ctx context.Context) (model.FeatureCollection, error) {
	if fc, ok := s.boundaryCache.Get(ctx, boundaryKey); ok {
		s.metrics.RecordCacheLookup("boundary", true)
		s.logger.Debug("返回缓存的边界")
		return fc, nil
	}
	s.metrics.RecordCacheLookup("boundary", false)

	v, _, err := s.share(ctx, "boundary:"+boundaryKey, func(ctx context.Context) (interface{}, error) {
		// 上一轮合并的抓取可能刚写入
		if fc, ok := s.boundaryCache.Get(ctx, boundaryKey); ok {
			return fc, nil
		}
		elements, err := s.fetch(ctx, "boundary", overpass.BoundaryQuery(s.boundaryName, s.boundaryArea))
		if err != nil {
			return nil, err
		}

		fc := aggregate.Boundary(elements, s.boundaryName, s.boundaryArea)
		if len(fc.Features) == 1 {
			if note, ok := fc.Features[0].Properties.Get("note"); ok && note.Text == "approximate" {
				s.logger.Warn("无法从地图数据提取边界几何, 使用近似矩形", "name", s.boundaryName)
			}
		}

		s.boundaryCache.Put(ctx, boundaryKey, fc)
		return fc, nil
	})
	if err != nil {
		return model.FeatureCollection{}, fmt.Errorf("获取 %s 边界失败: %w", s.boundaryName, err)
	}
	return v.(model.FeatureCollection), nil
}

// Power 返回区域内的电力设施要素和统计
// 缓存键为四舍五入后的区域; 未命中时用调用方的原始区域查询
func (s *PowerService) Power(ctx context.Context, region model.Region) (model.PowerResult, error) {
	key := region.Round(s.roundDecimals).Key()

	if res, ok := s.powerCache.Get(ctx, key); ok {
		s.metrics.RecordCacheLookup("power", true)
		s.logger.Debug("返回缓存的电力数据", "bbox", key)
		return res, nil
	}
	s.metrics.RecordCacheLookup("power", false)

	if err := utils.ValidateRegion(region); err != nil {
		return model.PowerResult{}, err
	}

	v, shared, err := s.share(ctx, "power:"+key, func(ctx context.Context) (interface{}, error) {
		if res, ok := s.powerCache.Get(ctx, key); ok {
			return res, nil
		}
		query := overpass.PowerQuery(region, s.agg.LineClasses(), s.agg.DeviceClass)
		elements, err := s.fetch(ctx, "power", query)
		if err != nil {
			return nil, err
		}

		res := s.agg.Power(elements)
		s.powerCache.Put(ctx, key, res)
		s.logger.Info("电力数据已更新",
			"bbox", key,
			"features", len(res.GeoJSON.Features),
			"transmission_miles", res.Stats.TransmissionMiles,
			"distribution_miles", res.Stats.DistributionMiles,
			"devices", res.Stats.DeviceCount,
		)
		return res, nil
	})
	if err != nil {
		return model.PowerResult{}, fmt.Errorf("获取电力设施失败: %w", err)
	}
	if shared {
		s.logger.Debug("合并了并发的电力数据请求", "bbox", key)
	}
	return v.(model.PowerResult), nil
}

// share 合并同一个键上的并发抓取
// 抓取在脱离调用方取消信号的 ctx 中运行 (仍受单端点超时约束),
// 某个调用方取消只让它自己提前返回, 不影响其他等待者
func (s *PowerService) share(
	ctx context.Context,
	key string,
	fn func(ctx context.Context) (interface{}, error),
) (interface{}, bool, error) {
	detached := context.WithoutCancel(ctx)
	ch := s.group.DoChan(key, func() (interface{}, error) {
		return fn(detached)
	})

	select {
	case res := <-ch:
		return res.Val, res.Shared, res.Err
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
}

func (s *PowerService) fetch(ctx context.Context, resource, query string) ([]model.Element, error) {
	start := time.Now()
	resp, err := s.fetcher.Execute(ctx, query, s.fetchTimeout)
	s.metrics.RecordFetch(resource, time.Since(start))
	if err != nil {
		return nil, err
	}
	return resp.Elements, nil
}

package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"power-grid/model"
	"power-grid/overpass"
)

// PowerSource 城市边界和电力设施数据, 由 service.PowerService 实现
type PowerSource interface {
	Boundary(ctx context.Context) (model.FeatureCollection, error)
	Power(ctx context.Context, region model.Region) (model.PowerResult, error)
}

// pinger 可选的存储连通性检查
type pinger interface {
	Ping(ctx context.Context) error
}

// Health 健康检查, 地图接口不依赖供电图存储
func (h *Handler) Health(c *gin.Context) {
	connected := true
	if p, ok := h.grid.(pinger); ok {
		if err := p.Ping(c.Request.Context()); err != nil {
			h.logger.Warn("供电图存储不可用", "error", err)
			connected = false
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":          "ok",
		"graph_connected": connected,
	})
}

// GetBoundary 城市边界 GeoJSON
func (h *Handler) GetBoundary(c *gin.Context) {
	fc, err := h.power.Boundary(c.Request.Context())
	if err != nil {
		h.upstreamError(c, "获取边界失败", err)
		return
	}
	c.JSON(http.StatusOK, fc)
}

// GetPower 区域内的电力设施和统计, bbox=south,west,north,east
func (h *Handler) GetPower(c *gin.Context) {
	bbox := c.Query("bbox")
	if bbox == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "缺少 bbox 参数"})
		return
	}

	region, err := model.ParseRegion(bbox)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := h.power.Power(c.Request.Context(), region)
	if err != nil {
		if errors.Is(err, model.ErrInvalidRegion) || errors.Is(err, model.ErrRegionTooLarge) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.upstreamError(c, "获取电力设施失败", err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// upstreamError 所有端点都不可用时返回 503, 其余上游错误返回 502
func (h *Handler) upstreamError(c *gin.Context, msg string, err error) {
	h.logger.Error(msg, "error", err, "request_id", c.GetString(requestIDKey))

	status := http.StatusBadGateway
	if errors.Is(err, overpass.ErrAllEndpointsUnavailable) {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"error": msg + ": " + err.Error()})
}

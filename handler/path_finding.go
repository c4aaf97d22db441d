package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"power-grid/algo"
	"power-grid/metrics"
	"power-grid/model"
)

// GridStore 供电图的只读存储, 由 db.Store 和 algo.StaticSource 实现
type GridStore interface {
	algo.GraphSource
	GetComponent(ctx context.Context, id string) (*model.Component, error)
	ListComponents(ctx context.Context, componentType model.ComponentType) ([]model.Component, error)
}

// PathResponse 溯源响应, path 从电源到目标, 无路径时为空数组
type PathResponse struct {
	ComponentID string           `json:"component_id"`
	Path        []model.PathNode `json:"path"`
}

// Handler 持有各接口的依赖
type Handler struct {
	grid     GridStore
	resolver *algo.Resolver
	power    PowerSource
	auth     *Auth
	logger   *slog.Logger
	metrics  *metrics.Registry
}

// New 创建 Handler
func New(grid GridStore, power PowerSource, auth *Auth, logger *slog.Logger, m *metrics.Registry) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		grid:     grid,
		resolver: algo.NewResolver(grid, logger, m),
		power:    power,
		auth:     auth,
		logger:   logger,
		metrics:  m,
	}
}

// PathToSource 从组件回溯到电源的最长供电链
func (h *Handler) PathToSource(c *gin.Context) {
	id := c.Param("id")
	ctx := c.Request.Context()

	// 组件不存在返回 404, 存在但不连通返回空路径
	component, err := h.grid.GetComponent(ctx, id)
	if err != nil {
		h.logger.Error("读取组件失败", "component_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "读取组件失败"})
		return
	}
	if component == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "组件不存在: " + id})
		return
	}

	path, err := h.resolver.ResolveUpstreamPath(ctx, id)
	if err != nil {
		h.logger.Error("溯源失败", "component_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "溯源失败"})
		return
	}

	c.JSON(http.StatusOK, PathResponse{ComponentID: id, Path: path})
}

// GetComponents 获取组件列表, 可按 component_type 过滤
func (h *Handler) GetComponents(c *gin.Context) {
	componentType := model.ComponentType(c.Query("component_type"))
	if componentType != "" && !componentType.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "未知的组件类型: " + string(componentType)})
		return
	}

	components, err := h.grid.ListComponents(c.Request.Context(), componentType)
	if err != nil {
		h.logger.Error("读取组件列表失败", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "读取组件失败"})
		return
	}
	if components == nil {
		components = []model.Component{}
	}

	c.JSON(http.StatusOK, components)
}

// GetComponentByID 根据 ID 获取组件
func (h *Handler) GetComponentByID(c *gin.Context) {
	id := c.Param("id")

	component, err := h.grid.GetComponent(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("读取组件失败", "component_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "读取组件失败"})
		return
	}
	if component == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "组件不存在: " + id})
		return
	}

	c.JSON(http.StatusOK, component)
}

// SearchComponents 按名称或 ID 搜索组件 (不区分大小写)
func (h *Handler) SearchComponents(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "缺少搜索关键词"})
		return
	}

	components, err := h.grid.ListComponents(c.Request.Context(), "")
	if err != nil {
		h.logger.Error("读取组件列表失败", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "读取组件失败"})
		return
	}

	needle := strings.ToLower(query)
	results := make([]model.Component, 0)
	for _, comp := range components {
		if strings.Contains(strings.ToLower(comp.Name), needle) || strings.Contains(strings.ToLower(comp.ID), needle) {
			results = append(results, comp)
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"query":   query,
		"count":   len(results),
		"results": results,
	})
}

// NearestComponent 找到离给定坐标最近的组件
func (h *Handler) NearestComponent(c *gin.Context) {
	lat, errLat := strconv.ParseFloat(c.Query("lat"), 64)
	lng, errLng := strconv.ParseFloat(c.Query("lng"), 64)
	if errLat != nil || errLng != nil || lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "lat/lng 参数无效"})
		return
	}

	g, err := h.grid.LoadGraph(c.Request.Context())
	if err != nil {
		h.logger.Error("加载供电图失败", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "加载供电图失败"})
		return
	}

	nearest := g.NearestComponent(lat, lng)
	if nearest == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "供电图为空"})
		return
	}
	c.JSON(http.StatusOK, nearest)
}

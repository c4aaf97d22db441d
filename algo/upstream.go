package algo

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"power-grid/metrics"
	"power-grid/model"
)

// GraphSource 供电图的只读来源 (数据库或种子文件)
type GraphSource interface {
	LoadGraph(ctx context.Context) (*Graph, error)
}

// LongestUpstreamPath 在所有 "电源 -> ... -> target" 的有向路径中选出边数最多的一条
// 返回从电源到目标的节点 ID 序列; 目标不存在或不可达时返回 nil
//
// 电源按 NodeList 顺序、出边按 AdjList 顺序枚举, 长度相同时保留最先发现的路径.
// 每条路径维护自己的已访问集合以排除环, 深度不超过节点总数.
func (g *Graph) LongestUpstreamPath(targetID string) []string {
	if g.Nodes[targetID] == nil {
		return nil
	}

	// 只在能到达目标的节点中搜索
	reach := g.ancestors(targetID)
	s := &upstreamSearch{
		g:        g,
		target:   targetID,
		reach:    reach,
		onPath:   make(map[string]bool),
		maxDepth: len(g.NodeList),
	}

	for i := range g.NodeList {
		src := &g.NodeList[i]
		if !src.Type.IsSource() || !reach[src.ID] {
			continue
		}
		s.visit(src.ID)
	}

	return s.best
}

// ancestors 反向 BFS, 返回所有能到达 targetID 的节点 (含自身)
func (g *Graph) ancestors(targetID string) map[string]bool {
	seen := map[string]bool{targetID: true}
	queue := []string{targetID}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, prev := range g.RevList[cur] {
			if !seen[prev] {
				seen[prev] = true
				queue = append(queue, prev)
			}
		}
	}
	return seen
}

type upstreamSearch struct {
	g        *Graph
	target   string
	reach    map[string]bool
	onPath   map[string]bool
	path     []string
	best     []string
	maxDepth int
}

func (s *upstreamSearch) visit(id string) {
	s.onPath[id] = true
	s.path = append(s.path, id)
	defer func() {
		s.path = s.path[:len(s.path)-1]
		delete(s.onPath, id)
	}()

	// 至少一条边才算路径
	if id == s.target && len(s.path) > 1 {
		if len(s.path) > len(s.best) {
			s.best = append([]string(nil), s.path...)
		}
		return
	}
	if len(s.path)-1 >= s.maxDepth {
		return
	}

	for _, next := range s.g.AdjList[id] {
		if s.onPath[next] || !s.reach[next] {
			continue
		}
		s.visit(next)
	}
}

// Resolver 溯源服务: 每次调用读取一次图快照
type Resolver struct {
	source  GraphSource
	logger  *slog.Logger
	metrics *metrics.Registry
}

// NewResolver 创建溯源服务
func NewResolver(source GraphSource, logger *slog.Logger, m *metrics.Registry) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{source: source, logger: logger, metrics: m}
}

// ResolveUpstreamPath 返回从电源到目标组件的最长供电链 (电源在前)
// 目标不存在或与电源不连通时返回空切片, 不视为错误
func (r *Resolver) ResolveUpstreamPath(ctx context.Context, targetID string) ([]model.PathNode, error) {
	g, err := r.source.LoadGraph(ctx)
	if err != nil {
		r.metrics.RecordPathResolution("error")
		return nil, fmt.Errorf("加载供电图失败: %w", err)
	}

	ids := g.LongestUpstreamPath(targetID)
	path := make([]model.PathNode, 0, len(ids))
	for _, id := range ids {
		path = append(path, g.Nodes[id].ToPathNode())
	}

	if len(path) == 0 {
		r.metrics.RecordPathResolution("empty")
		r.logger.Debug("未找到供电路径", "component_id", targetID)
	} else {
		r.metrics.RecordPathResolution("found")
		r.logger.Debug("找到供电路径", "component_id", targetID, "hops", len(path)-1)
	}
	return path, nil
}

// StaticSource 内存中的固定图, 实现 GraphSource 和组件查询
type StaticSource struct {
	Graph *Graph
}

// LoadGraph 实现 GraphSource
func (s StaticSource) LoadGraph(_ context.Context) (*Graph, error) {
	return s.Graph, nil
}

// GetComponent 根据 ID 获取组件, 不存在时返回 nil
func (s StaticSource) GetComponent(_ context.Context, id string) (*model.Component, error) {
	c := s.Graph.Nodes[id]
	if c == nil {
		return nil, nil
	}
	out := *c
	return &out, nil
}

// ListComponents 按类型、名称排序列出组件, componentType 为空时返回全部
func (s StaticSource) ListComponents(_ context.Context, componentType model.ComponentType) ([]model.Component, error) {
	out := make([]model.Component, 0, len(s.Graph.NodeList))
	for _, c := range s.Graph.NodeList {
		if componentType == "" || c.Type == componentType {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Type != out[j].Type {
			return out[i].Type < out[j].Type
		}
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

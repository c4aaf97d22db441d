package algo

import (
	"encoding/json"
	"fmt"
	"os"

	"power-grid/model"
	"power-grid/utils"
)

// Graph 供电图快照, 用于溯源
type Graph struct {
	Nodes    map[string]*model.Component // 节点字典 (ID -> Component)
	AdjList  map[string][]string         // 正向邻接表 (供电方 -> 受电方)
	RevList  map[string][]string         // 反向邻接表 (受电方 -> 供电方)
	NodeList []model.Component           // 节点列表, 保持存储的枚举顺序
}

// NewGraph 创建一个空的图
func NewGraph() *Graph {
	return &Graph{
		Nodes:   make(map[string]*model.Component),
		AdjList: make(map[string][]string),
		RevList: make(map[string][]string),
	}
}

// BuildGraph 由组件和供电边构建图
// 端点不存在的边会被忽略, 重复边只保留第一条
func BuildGraph(components []model.Component, flows []model.Flow) *Graph {
	g := NewGraph()

	g.NodeList = make([]model.Component, len(components))
	copy(g.NodeList, components)
	for i := range g.NodeList {
		node := &g.NodeList[i]
		g.Nodes[node.ID] = node
	}

	seen := make(map[[2]string]bool, len(flows))
	for _, f := range flows {
		if g.Nodes[f.From] == nil || g.Nodes[f.To] == nil {
			continue
		}
		key := [2]string{f.From, f.To}
		if seen[key] {
			continue
		}
		seen[key] = true
		g.AdjList[f.From] = append(g.AdjList[f.From], f.To)
		g.RevList[f.To] = append(g.RevList[f.To], f.From)
	}

	return g
}

// LoadFromJSON 从种子 JSON 文件加载供电图
func LoadFromJSON(filepath string) (*Graph, error) {
	data, err := ReadGridData(filepath)
	if err != nil {
		return nil, err
	}
	return BuildGraph(data.Components, data.Flows), nil
}

// ReadGridData 读取并校验种子 JSON 文件
func ReadGridData(filepath string) (*model.GridData, error) {
	file, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("读取文件失败: %w", err)
	}

	var data model.GridData
	if err := json.Unmarshal(file, &data); err != nil {
		return nil, fmt.Errorf("解析 JSON 失败: %w", err)
	}

	for _, c := range data.Components {
		if c.ID == "" {
			return nil, fmt.Errorf("组件缺少 id: %q", c.Name)
		}
		if !c.Type.Valid() {
			return nil, fmt.Errorf("组件 %s 的类型未知: %q", c.ID, c.Type)
		}
	}
	return &data, nil
}

// GetSuppliers 获取直接向该节点供电的节点
func (g *Graph) GetSuppliers(nodeID string) []string {
	return g.RevList[nodeID]
}

// GetNeighbors 获取该节点直接供电的下游节点
func (g *Graph) GetNeighbors(nodeID string) []string {
	return g.AdjList[nodeID]
}

// NearestComponent 找到离给定坐标最近的组件, 图为空时返回 nil
func (g *Graph) NearestComponent(lat, lng float64) *model.Component {
	var nearest *model.Component
	minDist := -1.0

	target := model.Point{Lat: lat, Lng: lng}
	for i := range g.NodeList {
		node := &g.NodeList[i]
		p := model.Point{Lat: node.Latitude, Lng: node.Longitude}
		dist := utils.GreatCircleDistance(target, p)

		if minDist < 0 || dist < minDist {
			minDist = dist
			nearest = node
		}
	}

	return nearest
}

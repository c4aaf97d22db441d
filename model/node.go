package model

import "github.com/lib/pq"

// Point 代表一个经纬度点 (WGS84)
type Point struct {
	Lat float64 // 纬度
	Lng float64 // 经度
}

// ComponentType 电网组件类别
type ComponentType string

const (
	PowerGeneration        ComponentType = "PowerGeneration" // 发电 (溯源起点)
	StepUpSubstation       ComponentType = "StepUpSubstation"
	TransmissionLine       ComponentType = "TransmissionLine"
	TransmissionSubstation ComponentType = "TransmissionSubstation"
	DistributionSubstation ComponentType = "DistributionSubstation"
	DistributionLine       ComponentType = "DistributionLine"
	LocalTransformer       ComponentType = "LocalTransformer"
	ServiceDrop            ComponentType = "ServiceDrop"
	Building               ComponentType = "Building"
)

// ComponentTypes 全部组件类别, 按供电方向排列
var ComponentTypes = []ComponentType{
	PowerGeneration,
	StepUpSubstation,
	TransmissionLine,
	TransmissionSubstation,
	DistributionSubstation,
	DistributionLine,
	LocalTransformer,
	ServiceDrop,
	Building,
}

// Valid 是否为已知类别
func (t ComponentType) Valid() bool {
	for _, known := range ComponentTypes {
		if t == known {
			return true
		}
	}
	return false
}

// IsSource 是否为电源类节点
func (t ComponentType) IsSource() bool {
	return t == PowerGeneration
}

// Component 供电图中的一个组件 (电厂、变电站、线路、用户...)
type Component struct {
	ID        string         `json:"id" gorm:"primaryKey"`
	Name      string         `json:"name" gorm:"index"`
	Type      ComponentType  `json:"type" gorm:"index"`
	Longitude float64        `json:"longitude"`
	Latitude  float64        `json:"latitude"`
	Labels    pq.StringArray `json:"labels,omitempty" gorm:"type:text[]"` // 附加标签
}

// PathNode 溯源路径上的一个节点
type PathNode struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Type      ComponentType `json:"type"`
	Longitude float64       `json:"longitude"`
	Latitude  float64       `json:"latitude"`
}

// ToPathNode 转换为路径节点
func (c *Component) ToPathNode() PathNode {
	return PathNode{
		ID:        c.ID,
		Name:      c.Name,
		Type:      c.Type,
		Longitude: c.Longitude,
		Latitude:  c.Latitude,
	}
}

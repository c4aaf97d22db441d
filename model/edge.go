package model

// Flow 有向供电边: From 向 To 供电
type Flow struct {
	ID   uint   `json:"-" gorm:"primaryKey"` // 自增主键, 保留导入顺序
	From string `json:"from" gorm:"index;not null"`
	To   string `json:"to" gorm:"index;not null"`
}

// GridData 用于解析整个种子 JSON 文件
type GridData struct {
	Meta       map[string]interface{} `json:"meta,omitempty"`
	Components []Component            `json:"components"`
	Flows      []Flow                 `json:"flows"`
}

package overpass

import (
	"fmt"
	"strings"

	"power-grid/model"
)

// queryTimeoutSeconds 服务端查询超时
const queryTimeoutSeconds = 180

// PowerQuery 查询区域内指定类别的线路 (way) 和设备 (node), 附带完整几何
func PowerQuery(r model.Region, lineClasses []string, deviceClass string) string {
	bbox := bboxFilter(r)

	var b strings.Builder
	fmt.Fprintf(&b, "[out:json][timeout:%d];\n(\n", queryTimeoutSeconds)
	for _, class := range lineClasses {
		fmt.Fprintf(&b, "  way[\"power\"=%q]%s;\n", class, bbox)
	}
	if deviceClass != "" {
		fmt.Fprintf(&b, "  node[\"power\"=%q]%s;\n", deviceClass, bbox)
	}
	b.WriteString(");\nout geom;\n")
	return b.String()
}

// BoundaryQuery 查询指定名称的行政边界 relation
func BoundaryQuery(name string, area model.Region) string {
	bbox := bboxFilter(area)

	var b strings.Builder
	fmt.Fprintf(&b, "[out:json][timeout:%d];\n(\n", queryTimeoutSeconds)
	fmt.Fprintf(&b, "  relation[\"name\"=%q][\"admin_level\"=\"8\"]%s;\n", name, bbox)
	fmt.Fprintf(&b, "  relation[\"name\"=%q][\"place\"=\"city\"]%s;\n", name, bbox)
	fmt.Fprintf(&b, "  relation[\"name\"=%q][\"type\"=\"boundary\"]%s;\n", name, bbox)
	b.WriteString(");\nout geom;\n")
	return b.String()
}

func bboxFilter(r model.Region) string {
	return fmt.Sprintf("(%g,%g,%g,%g)", r.South, r.West, r.North, r.East)
}

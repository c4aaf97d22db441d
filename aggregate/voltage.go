package aggregate

import (
	"strconv"
	"strings"
)

// ParseVoltage 提取电压标签开头的整数部分
// 先去掉千位分隔符 ",", 再取开头连续的十进制数字
//
//	"138000"        -> 138000
//	"138 kV"        -> 138
//	"138,000;69000" -> 138000
//	"", "unknown"   -> 无
func ParseVoltage(raw string) (int64, bool) {
	s := strings.ReplaceAll(strings.TrimSpace(raw), ",", "")

	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, false
	}

	v, err := strconv.ParseInt(s[:end], 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

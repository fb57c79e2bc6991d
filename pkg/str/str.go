package str

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

// 字符串转int
func StringToInt(str string) (int, error) {
	if str == "" {
		return 0, nil
	}

	i, err := strconv.Atoi(str)
	if err != nil {
		return 0, err
	}

	return i, err
}

// TruncateRunes 去掉首尾空白后按字符截断
func TruncateRunes(s string, max int) string {
	s = strings.TrimSpace(s)
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	return strings.TrimSpace(string([]rune(s)[:max]))
}

// MergeFold 合并两个列表，忽略大小写去重，保留首次出现的写法和顺序，空串丢弃
func MergeFold(base []string, extra ...string) []string {
	seen := make(map[string]struct{}, len(base)+len(extra))
	result := make([]string, 0, len(base)+len(extra))
	for _, item := range append(append([]string{}, base...), extra...) {
		item = strings.TrimSpace(item)
		key := strings.ToLower(item)
		if item == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		result = append(result, item)
	}
	return result
}

// RemoveFold 忽略大小写删除 remove 中出现的元素
func RemoveFold(base []string, remove ...string) []string {
	if len(remove) == 0 {
		return base
	}
	drop := make(map[string]struct{}, len(remove))
	for _, item := range remove {
		drop[strings.ToLower(strings.TrimSpace(item))] = struct{}{}
	}
	result := make([]string, 0, len(base))
	for _, item := range base {
		if _, ok := drop[strings.ToLower(strings.TrimSpace(item))]; ok {
			continue
		}
		result = append(result, item)
	}
	return result
}

// FloorFloatLimitToString 截取 float 并转为 string，limit 为小数点位数
func FloorFloatLimitToString(f float64, limit int) string {
	if f == 0 || limit == 0 {
		return ""
	}
	temp := strconv.FormatFloat(f, 'g', limit+1, 64)
	if limit+2 > len(temp) {
		limit = len(temp)
	} else {
		limit = limit + 2
	}
	return temp[:limit]
}

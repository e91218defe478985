package fields

import (
	"regexp"
	"strings"
)

// matchAll 收集各模式的匹配结果；有捕获组时取第一个捕获组，否则取整个匹配
func matchAll(text string, patterns ...*regexp.Regexp) []string {
	var out []string
	for _, re := range patterns {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			if len(m) > 1 {
				out = append(out, m[1])
			} else {
				out = append(out, m[0])
			}
		}
	}
	return out
}

// dedupe 修剪空白、丢弃长度不足 minLen 的条目，保留首次出现的顺序
func dedupe(values []string, minLen int) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || len(v) < minLen {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

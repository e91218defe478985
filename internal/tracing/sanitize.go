package tracing

import (
	"strings"

	"go.opentelemetry.io/otel/attribute"
)

// span 属性长度上限（按字符计）
const (
	maxAttrLength      = 200
	maxSQLLength       = 500
	maxRedisKeyLength  = 100
	maxObjectKeyLength = 120
)

// piiKeys 属性名最后一段命中时值需要掩码
var piiKeys = map[string]struct{}{
	"email":    {},
	"phone":    {},
	"name":     {},
	"location": {},
	"address":  {},
	"linkedin": {},
	"github":   {},
}

// Attr 生成字符串属性。联系方式类的键做掩码，其余值按上限截断。
func Attr(key, value string) attribute.KeyValue {
	last := key
	if i := strings.LastIndexByte(key, '.'); i >= 0 {
		last = key[i+1:]
	}
	if _, ok := piiKeys[strings.ToLower(last)]; ok {
		return attribute.String(key, MaskPII(value))
	}
	return attribute.String(key, TruncateString(value, maxAttrLength))
}

// MaskPII 掩码个人信息。邮箱只保留本地部分首字符和域名，
// 其他值保留首尾字符。
func MaskPII(value string) string {
	if value == "" {
		return ""
	}
	if at := strings.LastIndexByte(value, '@'); at > 0 {
		local := []rune(value[:at])
		return string(local[0]) + strings.Repeat("*", len(local)-1) + value[at:]
	}

	runes := []rune(value)
	n := len(runes)
	switch {
	case n == 1:
		return "*"
	case n == 2:
		return string(runes[0]) + "*"
	case n <= 4:
		return string(runes[0]) + strings.Repeat("*", n-2) + string(runes[n-1])
	default:
		return string(runes[:2]) + strings.Repeat("*", n-4) + string(runes[n-2:])
	}
}

// TruncateString 超过 maxLength 个字符时保留首尾，中间用 ... 连接
func TruncateString(s string, maxLength int) string {
	runes := []rune(s)
	if len(runes) <= maxLength {
		return s
	}
	if maxLength <= 3 {
		return string(runes[:maxLength])
	}
	keep := max((maxLength-3)/2, 1)
	return string(runes[:keep]) + "..." + string(runes[len(runes)-keep:])
}

func SafeSQL(sql string) string { return TruncateString(sql, maxSQLLength) }

func SafeRedisKey(key string) string { return TruncateString(key, maxRedisKeyLength) }

func SafeObjectKey(key string) string { return TruncateString(key, maxObjectKeyLength) }

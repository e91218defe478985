package parser

import (
	"regexp"
	"strings"
)

var (
	horizontalSpaceRe = regexp.MustCompile(`[ \t]+`)
	indentedLineRe    = regexp.MustCompile(`\n[ \t]+`)
)

// Normalize 合并连续的空格/制表符，去掉每行行首的缩进，并修剪首尾空白。
// 换行保留不动，页面和表格标记依赖它来维持结构。
// Normalize(Normalize(t)) == Normalize(t)
func Normalize(text string) string {
	text = horizontalSpaceRe.ReplaceAllString(text, " ")
	text = indentedLineRe.ReplaceAllString(text, "\n")
	return strings.TrimSpace(text)
}

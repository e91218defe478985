package fields

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"resume-analyzer-go/internal/types"
)

type skillPattern struct {
	canonical string
	re        *regexp.Regexp
}

// SkillExtractor 在文本中按整词匹配词表条目
type SkillExtractor struct {
	technical []skillPattern
	soft      []skillPattern
	tools     []skillPattern
}

// NewSkillExtractor 预编译词表中每个条目的匹配模式
func NewSkillExtractor(vocab Vocabulary) *SkillExtractor {
	return &SkillExtractor{
		technical: compileSkills(vocab.Technical),
		soft:      compileSkills(vocab.Soft),
		tools:     compileSkills(vocab.Tools),
	}
}

// Extract 返回文本中出现的技能，按词表顺序，每项最多一次
func (s *SkillExtractor) Extract(text string) types.SkillSet {
	result := types.NewSkillSet()
	if text == "" {
		return result
	}
	lower := strings.ToLower(text)
	result.Technical = matchSkills(s.technical, lower)
	result.Soft = matchSkills(s.soft, lower)
	result.Tools = matchSkills(s.tools, lower)
	return result
}

func matchSkills(patterns []skillPattern, lower string) []string {
	found := make([]string, 0)
	for _, p := range patterns {
		if p.re.MatchString(lower) {
			found = append(found, p.canonical)
		}
	}
	return found
}

func compileSkills(entries []string) []skillPattern {
	titler := cases.Title(language.Und)
	patterns := make([]skillPattern, 0, len(entries))
	for _, entry := range entries {
		entry = strings.ToLower(strings.TrimSpace(entry))
		if entry == "" {
			continue
		}
		patterns = append(patterns, skillPattern{
			canonical: titler.String(entry),
			re:        regexp.MustCompile(wholeWordPattern(entry)),
		})
	}
	return patterns
}

// 条目前后必须是字符串边界或非单词字符。单词字符包含所有 Unicode 字母和数字，
// 因此 python 不会匹配 pythonés；c++、c# 这类以符号结尾的条目也用同一规则。
const (
	wordEdgeBefore = `(?:^|[^\p{L}\p{N}_])`
	wordEdgeAfter  = `(?:[^\p{L}\p{N}_]|$)`
)

func wholeWordPattern(entry string) string {
	return wordEdgeBefore + regexp.QuoteMeta(entry) + wordEdgeAfter
}

package fields

import (
	"regexp"
	"strings"

	"resume-analyzer-go/internal/types"
)

const minPhoneDigits = 10

// Matcher 尝试从文本中取出一个候选值，ok=false 表示继续尝试下一个
type Matcher func(text string) (value string, ok bool)

// ContactMatchers 每个字段按顺序尝试的匹配器，首个成功者生效，顺序即优先级
type ContactMatchers struct {
	Email    []Matcher
	Phone    []Matcher
	Location []Matcher
}

var (
	labeledEmailRe = regexp.MustCompile(`[Ee]mail\s*:\s*([a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,})`)
	anyEmailRe     = regexp.MustCompile(`([a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,})`)

	labeledPhoneRe = regexp.MustCompile(`[Pp]hone\s*:\s*([+]?[\d\s\-().]+)`)
	labeledTelRe   = regexp.MustCompile(`[Tt]el\s*:\s*([+]?[\d\s\-().]+)`)
	anyPhoneRe     = regexp.MustCompile(`([+]?[\d\s\-().]{10,})`)

	labeledLocationRe = regexp.MustCompile(`(?i)[Ll]ocation\s*:\s*([A-Z][a-zA-Z\s,]+)`)
	labeledAddressRe  = regexp.MustCompile(`(?i)[Aa]ddress\s*:\s*([A-Z][a-zA-Z\s,]+)`)
	basedInRe         = regexp.MustCompile(`(?i)(?:based in|located in|from)\s+([A-Z][a-zA-Z\s,]+)`)
)

// DefaultContactMatchers 标注形式优先，最后是无标注的兜底模式
func DefaultContactMatchers() ContactMatchers {
	return ContactMatchers{
		Email: []Matcher{
			firstGroup(labeledEmailRe),
			firstGroup(anyEmailRe),
		},
		Phone: []Matcher{
			phoneMatcher(labeledPhoneRe),
			phoneMatcher(labeledTelRe),
			phoneMatcher(anyPhoneRe),
		},
		Location: []Matcher{
			firstGroup(labeledLocationRe),
			firstGroup(labeledAddressRe),
			firstGroup(basedInRe),
		},
	}
}

// ContactExtractor 按匹配器列表提取联系方式
type ContactExtractor struct {
	matchers ContactMatchers
}

// NewContactExtractor 使用给定的匹配器列表
func NewContactExtractor(matchers ContactMatchers) *ContactExtractor {
	return &ContactExtractor{matchers: matchers}
}

// Extract 每个字段一旦命中就不再尝试后续匹配器
func (c *ContactExtractor) Extract(text string) types.ContactInfo {
	if text == "" {
		return types.ContactInfo{}
	}
	return types.ContactInfo{
		Email:    firstMatch(c.matchers.Email, text),
		Phone:    firstMatch(c.matchers.Phone, text),
		Location: firstMatch(c.matchers.Location, text),
	}
}

func firstMatch(matchers []Matcher, text string) string {
	for _, m := range matchers {
		if v, ok := m(text); ok {
			return v
		}
	}
	return ""
}

func firstGroup(re *regexp.Regexp) Matcher {
	return func(text string) (string, bool) {
		m := re.FindStringSubmatch(text)
		if m == nil {
			return "", false
		}
		v := strings.TrimSpace(m[1])
		return v, v != ""
	}
}

// phoneMatcher 只看模式的第一个匹配，清洗后位数不足则交给下一个匹配器
func phoneMatcher(re *regexp.Regexp) Matcher {
	return func(text string) (string, bool) {
		m := re.FindStringSubmatch(text)
		if m == nil {
			return "", false
		}
		cleaned, digits := CleanPhone(m[1])
		return cleaned, digits >= minPhoneDigits
	}
}

// CleanPhone 只保留数字和开头的 +，返回清洗结果及数字个数
func CleanPhone(raw string) (string, int) {
	raw = strings.TrimSpace(raw)
	var b strings.Builder
	digits := 0
	for i, r := range raw {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
			digits++
		case r == '+' && i == 0:
			b.WriteRune(r)
		}
	}
	return b.String(), digits
}

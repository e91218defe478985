package fields

import (
	"regexp"

	"resume-analyzer-go/internal/types"
)

const (
	companySuffixes = `(?:Inc|LLC|Corp|Corporation|Company|Ltd|Group)\.?`
	titleSuffixes   = `(?:Engineer|Developer|Manager|Analyst|Specialist|Consultant|Director|Architect)`
	// 经历条目至少 3 个字符
	minExperienceLen = 3
)

var (
	// 公司名的首字母大小写敏感，"at/with/from" 之后的短语以及任意以公司后缀结尾的短语
	companyAfterPrepositionRe = regexp.MustCompile(`\b(?:at|with|from)\s+([A-Z][a-zA-Z0-9\s&.,-]+` + companySuffixes + `)`)
	companyHeaderRe           = regexp.MustCompile(`([A-Z][a-zA-Z0-9\s&.,-]+` + companySuffixes + `)\s`)

	positionRe         = regexp.MustCompile(`(?:as\s+)?([A-Z][a-zA-Z\s]+` + titleSuffixes + `)`)
	positionTrailingRe = regexp.MustCompile(`([A-Z][a-zA-Z\s]+` + titleSuffixes + `)\s`)

	yearRangeRe = regexp.MustCompile(`(?i)(\d{4}\s*[-–]\s*(?:\d{4}|present|current|now))`)
	spanRe      = regexp.MustCompile(`(?i)(\d+\s+(?:years?|months?))`)
)

// ExtractExperience 提取公司、职位和时间段。
// 三类结果来自互不相关的模式，彼此之间没有对应关系。
func ExtractExperience(text string) types.ExperienceInfo {
	info := types.NewExperienceInfo()
	if text == "" {
		return info
	}
	info.Companies = dedupe(matchAll(text, companyAfterPrepositionRe, companyHeaderRe), minExperienceLen)
	info.Positions = dedupe(matchAll(text, positionRe, positionTrailingRe), minExperienceLen)
	info.Durations = dedupe(matchAll(text, yearRangeRe, spanRe), minExperienceLen)
	return info
}

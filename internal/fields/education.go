package fields

import (
	"regexp"

	"resume-analyzer-go/internal/types"
)

var (
	// 学位缩写允许字母之间带句点，如 B.S. / M.A.
	degreeRe      = regexp.MustCompile(`(?i)\b(Bachelor|B\.?S\.?|B\.?A\.?|Master|M\.?S\.?|M\.?A\.?|PhD|Doctorate)\b`)
	certificateRe = regexp.MustCompile(`(?i)\b(Associate|Diploma|Certificate)\b`)

	institutionOfRe     = regexp.MustCompile(`(?:University|College|Institute|School)\s+of\s+[A-Z][a-zA-Z\s]+`)
	institutionSuffixRe = regexp.MustCompile(`[A-Z][a-zA-Z\s]+(?:University|College|Institute|School)`)

	graduationYearRe = regexp.MustCompile(`\b(?:19|20)\d{2}\b`)
)

// ExtractEducation 提取学位、院校和年份，结果同样是互不配对的集合
func ExtractEducation(text string) types.EducationInfo {
	info := types.NewEducationInfo()
	if text == "" {
		return info
	}
	info.Degrees = dedupe(matchAll(text, degreeRe, certificateRe), 1)
	info.Institutions = dedupe(matchAll(text, institutionOfRe, institutionSuffixRe), 1)
	info.Years = dedupe(matchAll(text, graduationYearRe), 1)
	return info
}
